// Package executor runs single conversion tasks against an external
// provider and merges their output into the job's shared conversion state.
package executor

import (
	"context"
	"sort"
	"sync"

	"github.com/restackio/restack/internal/model"
)

// ProviderResponse is what a provider returns for one task.
type ProviderResponse struct {
	// Files are the changes the provider wants applied, in order.
	Files []model.FileChange
	// Output is free-form text describing what was done.
	Output string
}

// Provider performs the actual source transformation. Implementations are
// expected to be safe for concurrent calls.
type Provider interface {
	Name() string
	Convert(ctx context.Context, ac *AgentContext) (*ProviderResponse, error)
}

// Validator checks one converted file. A non-nil error is reported as a
// warning; it never fails the task.
type Validator interface {
	Validate(ctx context.Context, path, content string) error
}

// Integrator runs once over the full converted output after all batches
// finish. Failures are best-effort warnings.
type Integrator interface {
	Integrate(ctx context.Context, converted map[string]string, history []*model.HistoryEntry) error
}

// ProjectAnalysis is the structural summary derived once per run and
// shared read-only across tasks.
type ProjectAnalysis struct {
	EntryPoints []string            `yaml:"entry_points" json:"entryPoints"`
	ConfigFiles []string            `yaml:"config_files" json:"configFiles"`
	Imports     map[string][]string `yaml:"imports" json:"imports"`
	FileCount   int                 `yaml:"file_count" json:"fileCount"`
}

// AgentContext is the per-task context handed to the provider.
type AgentContext struct {
	Task        *model.ConversionTask
	ProjectID   string
	SourceStack model.StackDescriptor
	TargetStack model.StackDescriptor
	// Sources maps each of the task's input files to its current content.
	Sources map[string]string
	// Converted, PriorOutputs, and Analysis are populated only when
	// context preservation is enabled.
	Converted    map[string]string
	PriorOutputs map[string]string
	Analysis     *ProjectAnalysis
	// PriorError carries the previous failure for this task's first input
	// file so the provider can self-correct on retry.
	PriorError string
}

// SharedContext is the conversion state owned by one job run: the
// converted-files map and prior task outputs. It is mutated only after a
// task's own execution completes.
type SharedContext struct {
	mu        sync.RWMutex
	converted map[string]string
	outputs   map[string]string
	analysis  *ProjectAnalysis
}

// NewSharedContext creates empty shared state with the given analysis.
func NewSharedContext(analysis *ProjectAnalysis) *SharedContext {
	return &SharedContext{
		converted: make(map[string]string),
		outputs:   make(map[string]string),
		analysis:  analysis,
	}
}

// Merge applies a task's file changes to the converted map and records its
// output text.
func (s *SharedContext) Merge(taskID string, resp *ProviderResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range resp.Files {
		switch ch.ChangeType {
		case model.ChangeDelete:
			delete(s.converted, ch.Path)
		default:
			s.converted[ch.Path] = ch.Content
		}
	}
	s.outputs[taskID] = resp.Output
}

// Converted returns a copy of the converted-files map.
func (s *SharedContext) Converted() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.converted))
	for k, v := range s.converted {
		out[k] = v
	}
	return out
}

// ConvertedFile returns one converted file's content.
func (s *SharedContext) ConvertedFile(path string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	content, ok := s.converted[path]
	return content, ok
}

// ConvertedPaths lists converted file paths, sorted.
func (s *SharedContext) ConvertedPaths() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	paths := make([]string, 0, len(s.converted))
	for p := range s.converted {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Outputs returns a copy of the per-task output texts.
func (s *SharedContext) Outputs() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.outputs))
	for k, v := range s.outputs {
		out[k] = v
	}
	return out
}

// Analysis returns the shared structural summary.
func (s *SharedContext) Analysis() *ProjectAnalysis {
	return s.analysis
}
