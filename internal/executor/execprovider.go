package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"

	"github.com/restackio/restack/internal/model"
)

// ExecProvider wraps any executable that speaks JSON over stdin/stdout:
// the agent context goes in, a response with file changes comes out. Any
// program can act as a conversion provider this way.
type ExecProvider struct {
	path string
	args []string
}

// execRequest is the JSON document written to the provider's stdin.
type execRequest struct {
	TaskID       string            `json:"taskId"`
	TaskType     string            `json:"taskType"`
	Description  string            `json:"description"`
	ProjectID    string            `json:"projectId"`
	SourceStack  string            `json:"sourceStack"`
	TargetStack  string            `json:"targetStack"`
	Sources      map[string]string `json:"sources"`
	Converted    map[string]string `json:"converted,omitempty"`
	PriorOutputs map[string]string `json:"priorOutputs,omitempty"`
	PriorError   string            `json:"priorError,omitempty"`
}

// execResponse is the JSON document read from the provider's stdout.
type execResponse struct {
	Output string `json:"output"`
	Files  []struct {
		Path       string `json:"path"`
		ChangeType string `json:"changeType"`
		Content    string `json:"content"`
		OldContent string `json:"oldContent"`
	} `json:"files"`
	Error string `json:"error"`
}

// NewExecProvider creates a provider backed by the executable at path.
func NewExecProvider(path string, args ...string) (*ExecProvider, error) {
	if _, err := exec.LookPath(path); err != nil {
		return nil, fmt.Errorf("executable not found: %s: %w", path, err)
	}
	return &ExecProvider{path: path, args: args}, nil
}

func (p *ExecProvider) Name() string {
	return "exec:" + p.path
}

// Convert runs the executable once for the task, feeding the agent context
// as JSON on stdin and parsing the response from stdout.
func (p *ExecProvider) Convert(ctx context.Context, ac *AgentContext) (*ProviderResponse, error) {
	reqJSON, err := json.Marshal(execRequest{
		TaskID:       ac.Task.ID,
		TaskType:     string(ac.Task.Type),
		Description:  ac.Task.Description,
		ProjectID:    ac.ProjectID,
		SourceStack:  ac.SourceStack.String(),
		TargetStack:  ac.TargetStack.String(),
		Sources:      ac.Sources,
		Converted:    ac.Converted,
		PriorOutputs: ac.PriorOutputs,
		PriorError:   ac.PriorError,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal provider request: %w", err)
	}

	cmd := exec.CommandContext(ctx, p.path, append(p.args, "convert")...)
	cmd.Stdin = bytes.NewReader(reqJSON)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	output, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("provider %s failed: %s: %w", p.path, msg, err)
		}
		return nil, fmt.Errorf("provider %s failed: %w", p.path, err)
	}

	var resp execResponse
	if err := json.Unmarshal(output, &resp); err != nil {
		return nil, fmt.Errorf("provider %s returned invalid JSON: %w", p.path, err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("provider %s reported: %s", p.path, resp.Error)
	}

	out := &ProviderResponse{Output: resp.Output}
	for _, f := range resp.Files {
		ct := model.ChangeType(f.ChangeType)
		if ct == "" {
			ct = model.ChangeUpdate
		}
		out.Files = append(out.Files, model.FileChange{
			Path:       f.Path,
			ChangeType: ct,
			Content:    f.Content,
			OldContent: f.OldContent,
		})
	}
	return out, nil
}
