package events

import (
	"sync"
	"testing"
	"time"

	"github.com/restackio/restack/internal/model"
)

func TestBus_PublishSubscribe(t *testing.T) {
	bus := NewBus(10)
	defer bus.Close()

	var mu sync.Mutex
	var received []Event

	unsub := bus.Subscribe("job_1", func(e Event) {
		mu.Lock()
		received = append(received, e)
		mu.Unlock()
	})
	defer unsub()

	bus.Publish(Event{Kind: KindProgress, JobID: "job_1", TaskID: "task_a", Progress: 50})

	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(received) != 1 {
		t.Fatalf("expected 1 event, got %d", len(received))
	}
	if received[0].Progress != 50 || received[0].TaskID != "task_a" {
		t.Errorf("unexpected event: %+v", received[0])
	}
	if received[0].Timestamp.IsZero() {
		t.Error("publish must stamp the event")
	}
}

func TestBus_JobIsolation(t *testing.T) {
	bus := NewBus(10)
	defer bus.Close()

	var mu sync.Mutex
	var got []string

	unsub := bus.Subscribe("job_1", func(e Event) {
		mu.Lock()
		got = append(got, e.JobID)
		mu.Unlock()
	})
	defer unsub()

	bus.Publish(Event{Kind: KindProgress, JobID: "job_2", Progress: 10})
	bus.Publish(Event{Kind: KindProgress, JobID: "job_1", Progress: 20})

	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 || got[0] != "job_1" {
		t.Errorf("subscriber must only see its own job's events, got %v", got)
	}
}

func TestBus_SubscribeAll(t *testing.T) {
	bus := NewBus(10)
	defer bus.Close()

	var mu sync.Mutex
	count := 0

	unsub := bus.SubscribeAll(func(e Event) {
		mu.Lock()
		count++
		mu.Unlock()
	})
	defer unsub()

	bus.Publish(Event{Kind: KindState, JobID: "job_1", Status: model.JobStatusRunning})
	bus.Publish(Event{Kind: KindState, JobID: "job_2", Status: model.JobStatusRunning})

	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if count != 2 {
		t.Errorf("wildcard subscriber should see all jobs, got %d events", count)
	}
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus(10)
	defer bus.Close()

	var mu sync.Mutex
	count := 0

	unsub := bus.Subscribe("job_1", func(e Event) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	bus.Publish(Event{Kind: KindProgress, JobID: "job_1"})
	time.Sleep(50 * time.Millisecond)

	unsub()
	unsub() // second call is a no-op

	bus.Publish(Event{Kind: KindProgress, JobID: "job_1"})
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if count != 1 {
		t.Errorf("expected 1 event after unsubscribe, got %d", count)
	}
}

func TestBus_PanickingSubscriberDoesNotDisruptOthers(t *testing.T) {
	bus := NewBus(10)
	defer bus.Close()

	unsubBad := bus.Subscribe("job_1", func(e Event) {
		panic("subscriber bug")
	})
	defer unsubBad()

	var mu sync.Mutex
	count := 0
	unsub := bus.Subscribe("job_1", func(e Event) {
		mu.Lock()
		count++
		mu.Unlock()
	})
	defer unsub()

	bus.Publish(Event{Kind: KindProgress, JobID: "job_1"})
	bus.Publish(Event{Kind: KindProgress, JobID: "job_1"})
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if count != 2 {
		t.Errorf("healthy subscriber must keep receiving, got %d", count)
	}
}

func TestBus_PublishNeverBlocksOnFullBuffer(t *testing.T) {
	bus := NewBus(1)
	defer bus.Close()

	block := make(chan struct{})
	unsub := bus.Subscribe("job_1", func(e Event) {
		<-block
	})
	defer unsub()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 50; i++ {
			bus.Publish(Event{Kind: KindProgress, JobID: "job_1", Progress: i})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
	close(block)
}

func TestBus_ClosedBusIgnoresOperations(t *testing.T) {
	bus := NewBus(10)
	bus.Close()
	bus.Close() // idempotent

	unsub := bus.Subscribe("job_1", func(e Event) {
		t.Error("subscriber on a closed bus must never fire")
	})
	bus.Publish(Event{Kind: KindProgress, JobID: "job_1"})
	time.Sleep(20 * time.Millisecond)
	unsub()
}
