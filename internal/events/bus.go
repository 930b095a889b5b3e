package events

import (
	"sync"
	"time"

	"github.com/restackio/restack/internal/model"
)

// Kind distinguishes what an event reports.
type Kind string

const (
	// KindProgress is published after every task reaches a terminal status.
	KindProgress Kind = "progress"
	// KindState is published when a job's lifecycle status changes.
	KindState Kind = "state"
	// KindWarning carries non-fatal findings (validation, integration).
	KindWarning Kind = "warning"
)

// Event is a single progress notification for a job.
type Event struct {
	Kind      Kind
	JobID     string
	TaskID    string
	Status    model.JobStatus
	Progress  int
	Message   string
	Timestamp time.Time
}

// Subscriber receives events for one job.
type Subscriber func(Event)

// Bus fans job events out to subscribers without ever blocking the
// publisher. Each subscriber gets a buffered channel drained by its own
// goroutine; a full channel drops the event for that subscriber.
type Bus struct {
	mu         sync.RWMutex
	byJob      map[string][]chan Event
	all        []chan Event
	bufferSize int
	closed     bool
}

// NewBus creates an event bus with the given per-subscriber buffer size.
func NewBus(bufferSize int) *Bus {
	if bufferSize <= 0 {
		bufferSize = 100
	}
	return &Bus{
		byJob:      make(map[string][]chan Event),
		bufferSize: bufferSize,
	}
}

// Subscribe registers fn for a single job's events. The returned function
// removes the subscription; calling it more than once is safe.
func (b *Bus) Subscribe(jobID string, fn Subscriber) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return func() {}
	}

	ch := make(chan Event, b.bufferSize)
	b.byJob[jobID] = append(b.byJob[jobID], ch)
	go deliver(ch, fn)

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			subs := b.byJob[jobID]
			for i, sub := range subs {
				if sub == ch {
					b.byJob[jobID] = append(subs[:i], subs[i+1:]...)
					close(ch)
					break
				}
			}
			if len(b.byJob[jobID]) == 0 {
				delete(b.byJob, jobID)
			}
		})
	}
}

// SubscribeAll registers fn for every job's events.
func (b *Bus) SubscribeAll(fn Subscriber) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return func() {}
	}

	ch := make(chan Event, b.bufferSize)
	b.all = append(b.all, ch)
	go deliver(ch, fn)

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			for i, sub := range b.all {
				if sub == ch {
					b.all = append(b.all[:i], b.all[i+1:]...)
					close(ch)
					break
				}
			}
		})
	}
}

// Publish delivers ev to the job's subscribers and to the wildcard
// subscribers. Never blocks; a full subscriber buffer drops the event.
func (b *Bus) Publish(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}

	for _, ch := range b.byJob[ev.JobID] {
		select {
		case ch <- ev:
		default:
		}
	}
	for _, ch := range b.all {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Close shuts the bus down. Subsequent Publish and Subscribe calls are
// no-ops.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true

	for jobID, subs := range b.byJob {
		for _, ch := range subs {
			close(ch)
		}
		delete(b.byJob, jobID)
	}
	for _, ch := range b.all {
		close(ch)
	}
	b.all = nil
}

func deliver(ch chan Event, fn Subscriber) {
	for ev := range ch {
		func() {
			defer func() {
				// A panicking subscriber must not take the bus down.
				recover()
			}()
			fn(ev)
		}()
	}
}
