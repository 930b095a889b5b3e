// Package history records per-file conversion outcomes so completed work
// survives restarts and failed conversions leave an audit trail.
package history

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/restackio/restack/internal/model"
)

// Store persists conversion history entries.
type Store interface {
	// Append records one entry. Entries are immutable once written.
	Append(ctx context.Context, entry *model.HistoryEntry) error
	// ByJob returns a job's entries ordered by timestamp.
	ByJob(ctx context.Context, jobID string) ([]*model.HistoryEntry, error)
	// ByFile returns every entry touching filePath, newest first.
	ByFile(ctx context.Context, filePath string) ([]*model.HistoryEntry, error)
	Close() error
}

// MemoryStore is the in-process Store used by tests and single-run CLI
// invocations.
type MemoryStore struct {
	mu      sync.RWMutex
	entries []*model.HistoryEntry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Append(ctx context.Context, entry *model.HistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := *entry
	if e.ID == "" {
		e.ID, _ = model.NewID(model.IDTypeHistory)
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	s.entries = append(s.entries, &e)
	return nil
}

func (s *MemoryStore) ByJob(ctx context.Context, jobID string) ([]*model.HistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*model.HistoryEntry
	for _, e := range s.entries {
		if e.JobID == jobID {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func (s *MemoryStore) ByFile(ctx context.Context, filePath string) ([]*model.HistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*model.HistoryEntry
	for _, e := range s.entries {
		if e.FilePath == filePath {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out, nil
}

func (s *MemoryStore) Close() error { return nil }
