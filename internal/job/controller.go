package job

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/restackio/restack/internal/errclass"
	"github.com/restackio/restack/internal/events"
	"github.com/restackio/restack/internal/logging"
	"github.com/restackio/restack/internal/model"
	"github.com/restackio/restack/internal/orchestrator"
	"github.com/restackio/restack/internal/workspace"
)

// Controller owns job lifecycle: it creates jobs, dispatches the
// orchestrator, applies the state machine to pause/resume/cancel, and
// publishes progress.
type Controller struct {
	store  Store
	bus    *events.Bus
	orch   *orchestrator.Orchestrator
	logger *logging.Logger

	mu     sync.Mutex
	runs   map[string]*runHandle
	unsubs map[string][]func()

	// stateMu serializes every load-modify-put sequence against the store
	// so a progress write racing a lifecycle operation cannot revert the
	// job's status.
	stateMu sync.Mutex
}

// runHandle is the cooperative control channel between the controller and
// one live run. Pausing blocks the orchestrator's batch gate; cancelling
// makes the gate return an error at the next batch boundary.
type runHandle struct {
	mu        sync.Mutex
	paused    bool
	cancelled bool
	resume    chan struct{}

	source      *workspace.SourceTree
	sourceStack model.StackDescriptor
	targetStack model.StackDescriptor
}

var errRunCancelled = errors.New("run cancelled")

func (h *runHandle) gate(ctx context.Context, _ int) error {
	for {
		h.mu.Lock()
		if h.cancelled {
			h.mu.Unlock()
			return errRunCancelled
		}
		if !h.paused {
			h.mu.Unlock()
			return nil
		}
		resume := h.resume
		h.mu.Unlock()

		select {
		case <-resume:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (h *runHandle) setPaused(paused bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.paused == paused {
		return
	}
	h.paused = paused
	if paused {
		h.resume = make(chan struct{})
	} else if h.resume != nil {
		close(h.resume)
	}
}

func (h *runHandle) markCancelled() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cancelled = true
	if h.paused && h.resume != nil {
		close(h.resume)
		h.paused = false
	}
}

// NewController creates a Controller.
func NewController(store Store, bus *events.Bus, orch *orchestrator.Orchestrator, logger *logging.Logger) *Controller {
	return &Controller{
		store:  store,
		bus:    bus,
		orch:   orch,
		logger: logger.WithComponent("job"),
		runs:   make(map[string]*runHandle),
		unsubs: make(map[string][]func()),
	}
}

func notFound(id string) *errclass.AppError {
	app := errclass.New(errclass.CodeNotFound, fmt.Sprintf("job %s not found", id))
	app.Category = errclass.CategoryNotFound
	app.UserMessage = "No such job."
	return app
}

func invalidTransition(cause error) *errclass.AppError {
	app := errclass.New(errclass.CodeInvalidStateTransition, cause.Error())
	app.Category = errclass.CategoryValidation
	app.UserMessage = "The job is not in a state that allows this operation."
	return app
}

func (c *Controller) load(ctx context.Context, id string) (*model.Job, error) {
	job, err := c.store.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, notFound(id)
	}
	return job, err
}

// Create registers a new job for the plan in PENDING with zero progress.
func (c *Controller) Create(ctx context.Context, plan *model.ConversionPlan) (*model.Job, error) {
	id, err := model.NewID(model.IDTypeJob)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	job := &model.Job{
		ID:        id,
		ProjectID: plan.ProjectID,
		Plan:      plan,
		Status:    model.JobStatusPending,
		Progress:  0,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := c.store.Put(ctx, job); err != nil {
		return nil, err
	}
	c.logger.Infof("job created job=%s project=%s tasks=%d", job.ID, job.ProjectID, len(plan.Tasks))
	return job.Clone(), nil
}

// StartOptions carries the run inputs that are not part of the job record.
type StartOptions struct {
	Tree        *workspace.SourceTree
	SourceStack model.StackDescriptor
	TargetStack model.StackDescriptor
}

// Start moves a PENDING job to RUNNING and dispatches the orchestrator on
// a background goroutine.
func (c *Controller) Start(ctx context.Context, id string, opts StartOptions) error {
	c.stateMu.Lock()
	job, err := c.load(ctx, id)
	if err != nil {
		c.stateMu.Unlock()
		return err
	}
	if err := model.ValidateJobTransition(job.Status, model.JobStatusRunning); err != nil {
		c.stateMu.Unlock()
		return invalidTransition(err)
	}

	now := time.Now().UTC()
	job.Status = model.JobStatusRunning
	job.StartedAt = &now
	job.UpdatedAt = now
	if err := c.store.Put(ctx, job); err != nil {
		c.stateMu.Unlock()
		return err
	}
	c.stateMu.Unlock()

	handle := &runHandle{
		source:      opts.Tree,
		sourceStack: opts.SourceStack,
		targetStack: opts.TargetStack,
	}
	c.mu.Lock()
	c.runs[id] = handle
	c.mu.Unlock()

	c.publishState(job)
	go c.run(context.WithoutCancel(ctx), job, handle)
	return nil
}

// run executes the orchestrator for one job and settles the terminal
// state.
func (c *Controller) run(ctx context.Context, job *model.Job, handle *runHandle) {
	total := len(job.Plan.Tasks)
	var progressMu sync.Mutex
	terminal := 0

	hooks := orchestrator.Hooks{
		Gate: handle.gate,
		OnTask: func(task *model.ConversionTask, res *model.ConversionResult) {
			// Held across the store round-trip so concurrent completions
			// cannot write progress out of order.
			progressMu.Lock()
			defer progressMu.Unlock()
			terminal++
			progress := 0
			if total > 0 {
				progress = terminal * 100 / total
			}
			c.updateProgress(ctx, job.ID, progress, task.Description)
		},
		OnWarning: func(msg string) {
			c.bus.Publish(events.Event{Kind: events.KindWarning, JobID: job.ID, Message: msg})
		},
	}

	results, appErr := c.orch.ExecuteConversion(ctx, orchestrator.Run{
		JobID:       job.ID,
		Plan:        job.Plan,
		Tree:        handle.source,
		SourceStack: handle.sourceStack,
		TargetStack: handle.targetStack,
		Hooks:       hooks,
	})

	c.mu.Lock()
	delete(c.runs, job.ID)
	c.mu.Unlock()

	handle.mu.Lock()
	cancelled := handle.cancelled
	handle.mu.Unlock()
	if cancelled {
		// Cancel already removed the record and detached listeners.
		c.logger.Infof("job cancelled job=%s", job.ID)
		return
	}

	c.stateMu.Lock()
	current, err := c.load(ctx, job.ID)
	if err != nil {
		c.stateMu.Unlock()
		c.logger.Errorf("job vanished mid-run job=%s err=%v", job.ID, err)
		return
	}

	now := time.Now().UTC()
	current.Results = results
	current.CompletedAt = &now
	current.UpdatedAt = now
	if appErr != nil {
		current.Status = model.JobStatusFailed
		current.ErrorMessage = appErr.Message
	} else {
		// May settle from PAUSED: a pause landing during the final batch
		// has no later batch to hold, and every task has resolved. The
		// transition table defines paused → completed for this case.
		current.Status = model.JobStatusCompleted
	}
	if putErr := c.store.Put(ctx, current); putErr != nil {
		c.logger.Errorf("job settle failed job=%s err=%v", job.ID, putErr)
	}
	c.stateMu.Unlock()

	c.publishState(current)
	c.detachSubscribers(job.ID)
	c.logger.Infof("job settled job=%s status=%s results=%d", job.ID, current.Status, len(results))
}

// updateProgress persists monotonic progress and publishes it. It re-reads
// the record under stateMu so a concurrent Pause/Resume status write is
// never overwritten with a stale one.
func (c *Controller) updateProgress(ctx context.Context, id string, progress int, currentTask string) {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()

	job, err := c.load(ctx, id)
	if err != nil {
		return
	}
	if progress < job.Progress {
		progress = job.Progress
	}
	job.Progress = progress
	job.CurrentTask = currentTask
	job.UpdatedAt = time.Now().UTC()
	if err := c.store.Put(ctx, job); err != nil {
		c.logger.Warnf("progress update failed job=%s err=%v", id, err)
		return
	}
	c.bus.Publish(events.Event{
		Kind:     events.KindProgress,
		JobID:    id,
		Status:   job.Status,
		Progress: progress,
		Message:  currentTask,
	})
}

// Pause stops dispatch of further batches. In-flight tasks in the current
// batch run to completion.
func (c *Controller) Pause(ctx context.Context, id string) error {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()

	job, err := c.load(ctx, id)
	if err != nil {
		return err
	}
	if err := model.ValidateJobTransition(job.Status, model.JobStatusPaused); err != nil {
		return invalidTransition(err)
	}

	c.mu.Lock()
	handle := c.runs[id]
	c.mu.Unlock()
	if handle != nil {
		handle.setPaused(true)
	}

	job.Status = model.JobStatusPaused
	job.UpdatedAt = time.Now().UTC()
	if err := c.store.Put(ctx, job); err != nil {
		return err
	}
	c.publishState(job)
	return nil
}

// Resume continues a PAUSED job from the next unprocessed batch.
func (c *Controller) Resume(ctx context.Context, id string) error {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()

	job, err := c.load(ctx, id)
	if err != nil {
		return err
	}
	if err := model.ValidateJobTransition(job.Status, model.JobStatusRunning); err != nil {
		return invalidTransition(err)
	}

	c.mu.Lock()
	handle := c.runs[id]
	c.mu.Unlock()
	if handle != nil {
		handle.setPaused(false)
	}

	job.Status = model.JobStatusRunning
	job.UpdatedAt = time.Now().UTC()
	if err := c.store.Put(ctx, job); err != nil {
		return err
	}
	c.publishState(job)
	return nil
}

// Cancel removes a non-terminal job: best-effort pause, listeners
// detached, record deleted. In-flight provider calls are not aborted.
func (c *Controller) Cancel(ctx context.Context, id string) error {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()

	job, err := c.load(ctx, id)
	if err != nil {
		return err
	}
	if model.IsJobTerminal(job.Status) {
		return invalidTransition(fmt.Errorf("cannot cancel terminal job status %q", job.Status))
	}

	c.mu.Lock()
	handle := c.runs[id]
	delete(c.runs, id)
	c.mu.Unlock()
	if handle != nil {
		handle.markCancelled()
	}

	c.detachSubscribers(id)
	if err := c.store.Delete(ctx, id); err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	c.logger.Infof("job removed job=%s", id)
	return nil
}

// GetStatus returns the job's current record.
func (c *Controller) GetStatus(ctx context.Context, id string) (*model.Job, error) {
	return c.load(ctx, id)
}

// ListByProject lists a project's jobs, oldest first.
func (c *Controller) ListByProject(ctx context.Context, projectID string) ([]*model.Job, error) {
	return c.store.ListByProject(ctx, projectID)
}

// OnProgress subscribes cb to the job's progress events. The subscription
// is dropped automatically when the job reaches a terminal state; the
// returned function removes it earlier. A job already in a terminal state
// will emit no further events, so subscribing to one is rejected.
func (c *Controller) OnProgress(ctx context.Context, id string, cb events.Subscriber) (func(), error) {
	job, err := c.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if model.IsJobTerminal(job.Status) {
		return nil, invalidTransition(fmt.Errorf("cannot subscribe to terminal job status %q", job.Status))
	}
	unsub := c.bus.Subscribe(id, cb)
	c.mu.Lock()
	c.unsubs[id] = append(c.unsubs[id], unsub)
	c.mu.Unlock()
	return unsub, nil
}

func (c *Controller) detachSubscribers(id string) {
	c.mu.Lock()
	unsubs := c.unsubs[id]
	delete(c.unsubs, id)
	c.mu.Unlock()
	for _, unsub := range unsubs {
		unsub()
	}
}

func (c *Controller) publishState(job *model.Job) {
	c.bus.Publish(events.Event{
		Kind:     events.KindState,
		JobID:    job.ID,
		Status:   job.Status,
		Progress: job.Progress,
		Message:  job.CurrentTask,
	})
}
