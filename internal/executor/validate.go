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

// ExecValidator runs an executable once per converted file, feeding the
// content on stdin with the path as the first argument. A non-zero exit
// is a validation finding.
type ExecValidator struct {
	path string
	args []string
}

func NewExecValidator(path string, args ...string) (*ExecValidator, error) {
	if _, err := exec.LookPath(path); err != nil {
		return nil, fmt.Errorf("executable not found: %s: %w", path, err)
	}
	return &ExecValidator{path: path, args: args}, nil
}

func (v *ExecValidator) Validate(ctx context.Context, path, content string) error {
	cmd := exec.CommandContext(ctx, v.path, append(v.args, path)...)
	cmd.Stdin = strings.NewReader(content)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("%s", msg)
		}
		return err
	}
	return nil
}

// ExecIntegrator runs an executable once over the whole converted output,
// passing a JSON document on stdin.
type ExecIntegrator struct {
	path string
	args []string
}

func NewExecIntegrator(path string, args ...string) (*ExecIntegrator, error) {
	if _, err := exec.LookPath(path); err != nil {
		return nil, fmt.Errorf("executable not found: %s: %w", path, err)
	}
	return &ExecIntegrator{path: path, args: args}, nil
}

type integrateRequest struct {
	Converted map[string]string `json:"converted"`
	History   []historyRecord   `json:"history"`
}

type historyRecord struct {
	FilePath string `json:"filePath"`
	Success  bool   `json:"success"`
	Error    string `json:"error,omitempty"`
}

func (i *ExecIntegrator) Integrate(ctx context.Context, converted map[string]string, history []*model.HistoryEntry) error {
	req := integrateRequest{Converted: converted}
	for _, e := range history {
		req.History = append(req.History, historyRecord{FilePath: e.FilePath, Success: e.Success, Error: e.Error})
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal integration request: %w", err)
	}

	cmd := exec.CommandContext(ctx, i.path, append(i.args, "integrate")...)
	cmd.Stdin = bytes.NewReader(payload)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("%s", msg)
		}
		return err
	}
	return nil
}
