// Package orchestrator drives a conversion plan through resolve,
// batched execution, validation, and integration.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/restackio/restack/internal/errclass"
	"github.com/restackio/restack/internal/executor"
	"github.com/restackio/restack/internal/history"
	"github.com/restackio/restack/internal/logging"
	"github.com/restackio/restack/internal/model"
	"github.com/restackio/restack/internal/resolve"
	"github.com/restackio/restack/internal/retry"
	"github.com/restackio/restack/internal/workspace"
)

// Hooks connects a run to its controlling job. All fields are optional.
type Hooks struct {
	// Gate is consulted before each batch. Blocking in Gate pauses the
	// run between batches; a non-nil error stops dispatch for good.
	Gate func(ctx context.Context, batchIndex int) error
	// OnTask fires after each task reaches a terminal status.
	OnTask func(task *model.ConversionTask, res *model.ConversionResult)
	// OnWarning receives non-fatal findings.
	OnWarning func(msg string)
}

// Run is one conversion execution.
type Run struct {
	JobID       string
	Plan        *model.ConversionPlan
	Tree        *workspace.SourceTree
	SourceStack model.StackDescriptor
	TargetStack model.StackDescriptor
	Hooks       Hooks
}

// Orchestrator executes plans. One orchestrator may serve many jobs; all
// per-run state lives in the Run.
type Orchestrator struct {
	exec       *executor.TaskExecutor
	retryMgr   *retry.Manager
	hist       history.Store
	validator  executor.Validator
	integrator executor.Integrator
	logger     *logging.Logger
	tracer     trace.Tracer
	cfg        model.OrchestratorConfig
	retryCfg   model.RetryConfig
}

// New creates an Orchestrator. validator and integrator may be nil.
func New(exec *executor.TaskExecutor, retryMgr *retry.Manager, hist history.Store,
	validator executor.Validator, integrator executor.Integrator,
	logger *logging.Logger, cfg model.OrchestratorConfig, retryCfg model.RetryConfig) *Orchestrator {
	return &Orchestrator{
		exec:       exec,
		retryMgr:   retryMgr,
		hist:       hist,
		validator:  validator,
		integrator: integrator,
		logger:     logger.WithComponent("orchestrator"),
		tracer:     otel.Tracer("restack/orchestrator"),
		cfg:        cfg,
		retryCfg:   retryCfg,
	}
}

// runState is the mutable cross-batch bookkeeping for one run.
type runState struct {
	mu sync.Mutex
	// priorErrors maps a task's first input file to its last failure
	// message, fed back to the provider on retry.
	priorErrors map[string]string
	failed      map[string]bool
}

// recordAttempt keeps the failure message for retry feedback without
// marking the task failed; a retry may still succeed.
func (s *runState) recordAttempt(task *model.ConversionTask, msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(task.InputFiles) > 0 {
		s.priorErrors[task.InputFiles[0]] = msg
	}
}

// markFailed records a task's terminal failure. Only terminally failed
// tasks count as failed dependencies for the skip policy.
func (s *runState) markFailed(task *model.ConversionTask, msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failed[task.ID] = true
	if len(task.InputFiles) > 0 {
		s.priorErrors[task.InputFiles[0]] = msg
	}
}

func (s *runState) priorError(task *model.ConversionTask) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(task.InputFiles) == 0 {
		return ""
	}
	return s.priorErrors[task.InputFiles[0]]
}

func (s *runState) failedDependency(task *model.ConversionTask) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, dep := range task.Dependencies {
		if s.failed[dep] {
			return dep
		}
	}
	return ""
}

// ExecuteConversion runs the plan to completion. An infeasible plan is the
// only fatal error; individual task failures are recorded as error results
// and never abort siblings. When the gate stops the run, the results
// collected so far are returned.
func (o *Orchestrator) ExecuteConversion(ctx context.Context, run Run) ([]*model.ConversionResult, *errclass.AppError) {
	ctx, span := o.tracer.Start(ctx, "orchestrator.execute_conversion",
		trace.WithAttributes(
			attribute.String("job.id", run.JobID),
			attribute.String("plan.id", run.Plan.ID),
			attribute.Int("plan.tasks", len(run.Plan.Tasks)),
		))
	defer span.End()

	if !run.Plan.Feasible {
		app := errclass.New(errclass.CodePlanInfeasible, fmt.Sprintf("plan %s is marked infeasible", run.Plan.ID))
		app.UserMessage = "The conversion plan cannot be executed."
		return nil, app
	}

	resolution, appErr := resolve.Resolve(run.Plan.Tasks, resolve.Options{
		MaxConcurrent:         o.cfg.MaxConcurrentFiles,
		RejectOutputConflicts: o.cfg.RejectOutputConflicts,
	})
	if appErr != nil {
		return nil, appErr
	}
	o.warnAll(run.Hooks, resolution.Warnings)

	analysis := Analyze(run.Tree)
	shared := executor.NewSharedContext(analysis)
	state := &runState{
		priorErrors: make(map[string]string),
		failed:      make(map[string]bool),
	}

	o.logger.Infof("run start job=%s tasks=%d batches=%d", run.JobID, len(run.Plan.Tasks), len(resolution.Batches))

	var results []*model.ConversionResult
	for i, batch := range resolution.Batches {
		if run.Hooks.Gate != nil {
			if err := run.Hooks.Gate(ctx, i); err != nil {
				o.logger.Infof("run stopped job=%s batch=%d reason=%v", run.JobID, i, err)
				return results, nil
			}
		}

		batchResults := o.executeBatch(ctx, run, shared, state, batch, i)
		results = append(results, batchResults...)
	}

	o.validate(ctx, run, shared, results)
	o.integrate(ctx, run, shared)

	o.logger.Infof("run done job=%s results=%d", run.JobID, len(results))
	return results, nil
}

// executeBatch dispatches every task in the batch concurrently and waits
// for all of them before returning. Results keep the batch's task order.
func (o *Orchestrator) executeBatch(ctx context.Context, run Run, shared *executor.SharedContext,
	state *runState, batch []*model.ConversionTask, batchIndex int) []*model.ConversionResult {
	ctx, span := o.tracer.Start(ctx, "orchestrator.batch",
		trace.WithAttributes(attribute.Int("batch.index", batchIndex), attribute.Int("batch.size", len(batch))))
	defer span.End()

	results := make([]*model.ConversionResult, len(batch))
	var g errgroup.Group
	for j, task := range batch {
		j, task := j, task
		g.Go(func() error {
			results[j] = o.runTask(ctx, run, shared, state, task)
			if run.Hooks.OnTask != nil {
				run.Hooks.OnTask(task, results[j])
			}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// runTask executes one task end to end: dependency-failure policy, retry
// wrapping, terminal status bookkeeping.
func (o *Orchestrator) runTask(ctx context.Context, run Run, shared *executor.SharedContext,
	state *runState, task *model.ConversionTask) *model.ConversionResult {
	if o.cfg.OnDependencyFailure == model.DependencyFailureSkip {
		if dep := state.failedDependency(task); dep != "" {
			task.Status = model.TaskStatusFailed
			msg := fmt.Sprintf("skipped: dependency %s failed", dep)
			state.markFailed(task, msg)
			o.logger.Warnf("task skipped task=%s dep=%s", task.ID, dep)
			return &model.ConversionResult{TaskID: task.ID, Status: model.ResultError, Error: msg}
		}
	}

	task.Status = model.TaskStatusRunning
	req := executor.Request{
		Task:        task,
		JobID:       run.JobID,
		ProjectID:   run.Plan.ProjectID,
		SourceStack: run.SourceStack,
		TargetStack: run.TargetStack,
		Tree:        run.Tree,
		Shared:      shared,
		PriorError:  state.priorError(task),
	}

	var result *model.ConversionResult
	var appErr *errclass.AppError
	if o.retryCfg.Enabled {
		res := retry.Do(ctx, o.retryMgr, retry.Options{
			MaxRetries:         o.retryCfg.MaxRetries,
			BaseDelay:          time.Duration(o.retryCfg.BaseDelayMs) * time.Millisecond,
			ExponentialBackoff: o.retryCfg.ExponentialBackoff,
			MaxDelay:           time.Duration(o.retryCfg.MaxDelayMs) * time.Millisecond,
			Jitter:             o.retryCfg.Jitter,
		}, "task.execute", func(ctx context.Context) (*model.ConversionResult, error) {
			req.PriorError = state.priorError(task)
			r, err := o.exec.Execute(ctx, req)
			if err != nil {
				state.recordAttempt(task, err.Error())
			}
			return r, err
		})
		result, appErr = res.Value, res.Err
		if !res.Success {
			result = nil
		}
	} else {
		r, err := o.exec.Execute(ctx, req)
		if err != nil {
			state.recordAttempt(task, err.Error())
			appErr = errclass.Classify(err, "task.execute")
		}
		result = r
	}

	if appErr != nil || result == nil {
		task.Status = model.TaskStatusFailed
		msg := "task execution failed"
		if appErr != nil {
			msg = appErr.Error()
		}
		state.markFailed(task, msg)
		o.recordFailedHistory(ctx, run, task, msg)
		o.logger.Warnf("task failed task=%s err=%s", task.ID, msg)
		return &model.ConversionResult{TaskID: task.ID, Status: model.ResultError, Error: msg}
	}

	task.Status = model.TaskStatusCompleted
	return result
}

// recordFailedHistory appends an audit entry for a task's final failure so
// unsuccessful conversions stay visible per file.
func (o *Orchestrator) recordFailedHistory(ctx context.Context, run Run, task *model.ConversionTask, msg string) {
	if len(task.InputFiles) == 0 {
		return
	}
	entry := &model.HistoryEntry{
		JobID:          run.JobID,
		FilePath:       task.InputFiles[0],
		ConversionType: task.Type,
		Timestamp:      time.Now().UTC(),
		Success:        false,
		Error:          msg,
	}
	if content, ok := run.Tree.Read(task.InputFiles[0]); ok {
		entry.OriginalContent = string(content)
	}
	if err := o.hist.Append(ctx, entry); err != nil {
		o.logger.Warnf("history append failed job=%s file=%s err=%v", run.JobID, entry.FilePath, err)
	}
}

// validate runs the external validator over every converted file of each
// successful result. Findings become warnings on the result's output text;
// they never flip a success to failure.
func (o *Orchestrator) validate(ctx context.Context, run Run, shared *executor.SharedContext, results []*model.ConversionResult) {
	if !o.cfg.ValidateResults || o.validator == nil {
		return
	}
	ctx, span := o.tracer.Start(ctx, "orchestrator.validate")
	defer span.End()

	for _, res := range results {
		if res.Status != model.ResultSuccess {
			continue
		}
		for _, ch := range res.Files {
			if ch.ChangeType == model.ChangeDelete {
				continue
			}
			content, ok := shared.ConvertedFile(ch.Path)
			if !ok {
				continue
			}
			if err := o.validator.Validate(ctx, ch.Path, content); err != nil {
				warning := fmt.Sprintf("validation warning for %s: %v", ch.Path, err)
				res.Output += "\n" + warning
				o.warnAll(run.Hooks, []string{warning})
			}
		}
	}
}

// integrate runs the integrator once over the full converted output.
// Best-effort: a failure is logged as a warning.
func (o *Orchestrator) integrate(ctx context.Context, run Run, shared *executor.SharedContext) {
	if o.integrator == nil {
		return
	}
	ctx, span := o.tracer.Start(ctx, "orchestrator.integrate")
	defer span.End()

	entries, err := o.hist.ByJob(ctx, run.JobID)
	if err != nil {
		o.logger.Warnf("history read failed job=%s err=%v", run.JobID, err)
	}
	if err := o.integrator.Integrate(ctx, shared.Converted(), entries); err != nil {
		o.warnAll(run.Hooks, []string{fmt.Sprintf("integration warning: %v", err)})
	}
}

func (o *Orchestrator) warnAll(hooks Hooks, warnings []string) {
	for _, w := range warnings {
		o.logger.Warnf("%s", w)
		if hooks.OnWarning != nil {
			hooks.OnWarning(w)
		}
	}
}
