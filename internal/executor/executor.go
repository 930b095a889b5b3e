package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/restackio/restack/internal/errclass"
	"github.com/restackio/restack/internal/history"
	"github.com/restackio/restack/internal/logging"
	"github.com/restackio/restack/internal/model"
	"github.com/restackio/restack/internal/workspace"
)

// Request carries everything one task execution needs.
type Request struct {
	Task        *model.ConversionTask
	JobID       string
	ProjectID   string
	SourceStack model.StackDescriptor
	TargetStack model.StackDescriptor
	Tree        *workspace.SourceTree
	Shared      *SharedContext
	// PriorError is the last failure message for this task, set on retry.
	PriorError string
}

// TaskExecutor runs one task at a time against the provider. Shared state
// is only mutated after a successful provider call; a failed task leaves
// the converted map and history untouched.
type TaskExecutor struct {
	provider        Provider
	history         history.Store
	logger          *logging.Logger
	preserveContext bool
}

// New creates a TaskExecutor.
func New(provider Provider, hist history.Store, logger *logging.Logger, preserveContext bool) *TaskExecutor {
	return &TaskExecutor{
		provider:        provider,
		history:         hist,
		logger:          logger.WithComponent("executor"),
		preserveContext: preserveContext,
	}
}

// Execute delegates req.Task to the provider. On success it merges the
// returned file changes into the shared converted map, appends history
// entries, and returns a success result. On failure it returns the raw
// error for the caller to classify; a panicking provider is recovered and
// surfaced the same way.
func (e *TaskExecutor) Execute(ctx context.Context, req Request) (result *model.ConversionResult, err error) {
	task := req.Task

	defer func() {
		if r := recover(); r != nil {
			app := errclass.ClassifyValue(r, "task.execute")
			e.logger.Errorf("provider panic task=%s value=%v", task.ID, r)
			result = nil
			err = app
		}
	}()

	ac, err := e.buildContext(req)
	if err != nil {
		return nil, err
	}

	e.logger.Debugf("dispatch task=%s type=%s provider=%s inputs=%d",
		task.ID, task.Type, e.provider.Name(), len(ac.Sources))

	resp, err := e.provider.Convert(ctx, ac)
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, fmt.Errorf("provider %s returned no response for task %s", e.provider.Name(), task.ID)
	}

	originals := e.captureOriginals(req, resp.Files)
	req.Shared.Merge(task.ID, resp)
	e.appendHistory(ctx, req, resp, originals)

	e.logger.Infof("task done task=%s files=%d", task.ID, len(resp.Files))
	return &model.ConversionResult{
		TaskID: task.ID,
		Status: model.ResultSuccess,
		Output: resp.Output,
		Files:  resp.Files,
	}, nil
}

// buildContext assembles the provider's view of the world for one task.
func (e *TaskExecutor) buildContext(req Request) (*AgentContext, error) {
	sources := make(map[string]string, len(req.Task.InputFiles))
	for _, path := range req.Task.InputFiles {
		if content, ok := req.Shared.ConvertedFile(path); ok && e.preserveContext {
			sources[path] = content
			continue
		}
		content, ok := req.Tree.Read(path)
		if !ok {
			return nil, fmt.Errorf("input file %s: no such file in source tree", path)
		}
		sources[path] = string(content)
	}

	ac := &AgentContext{
		Task:        req.Task,
		ProjectID:   req.ProjectID,
		SourceStack: req.SourceStack,
		TargetStack: req.TargetStack,
		Sources:     sources,
		PriorError:  req.PriorError,
	}
	if e.preserveContext {
		ac.Converted = req.Shared.Converted()
		ac.PriorOutputs = req.Shared.Outputs()
		ac.Analysis = req.Shared.Analysis()
	}
	return ac, nil
}

// captureOriginals snapshots pre-merge content for each changed path so
// history records both sides of the conversion.
func (e *TaskExecutor) captureOriginals(req Request, changes []model.FileChange) map[string]string {
	originals := make(map[string]string, len(changes))
	for _, ch := range changes {
		if ch.OldContent != "" {
			originals[ch.Path] = ch.OldContent
			continue
		}
		if content, ok := req.Shared.ConvertedFile(ch.Path); ok {
			originals[ch.Path] = content
			continue
		}
		if content, ok := req.Tree.Read(ch.Path); ok {
			originals[ch.Path] = string(content)
		}
	}
	return originals
}

func (e *TaskExecutor) appendHistory(ctx context.Context, req Request, resp *ProviderResponse, originals map[string]string) {
	for _, ch := range resp.Files {
		entry := &model.HistoryEntry{
			JobID:            req.JobID,
			FilePath:         ch.Path,
			OriginalContent:  originals[ch.Path],
			ConvertedContent: ch.Content,
			ConversionType:   req.Task.Type,
			Timestamp:        time.Now().UTC(),
			Success:          true,
		}
		if err := e.history.Append(ctx, entry); err != nil {
			// History is an audit trail; losing an entry must not fail the task.
			e.logger.Warnf("history append failed task=%s file=%s err=%v", req.Task.ID, ch.Path, err)
		}
	}
}
