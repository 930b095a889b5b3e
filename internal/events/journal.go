package events

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const (
	// DefaultMaxJournalSize is the rotation threshold (50MB).
	DefaultMaxJournalSize = 50 * 1024 * 1024
	journalExtension      = ".jsonl"
	archiveDir            = "archive"
)

// journalRecord is the on-disk form of an event.
type journalRecord struct {
	Timestamp time.Time `json:"timestamp"`
	Kind      string    `json:"kind"`
	JobID     string    `json:"job_id"`
	TaskID    string    `json:"task_id,omitempty"`
	Status    string    `json:"status,omitempty"`
	Progress  int       `json:"progress"`
	Message   string    `json:"message,omitempty"`
}

// Journal is an append-only JSONL record of job events with size-based
// rotation into an archive directory. It is safe for concurrent use.
type Journal struct {
	mu          sync.Mutex
	file        *os.File
	currentSize int64
	maxSize     int64
	path        string
}

// NewJournal opens (or creates) the journal file at path.
func NewJournal(path string, maxSize int64) (*Journal, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxJournalSize
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}

	j := &Journal{path: path, maxSize: maxSize}
	if err := j.open(); err != nil {
		return nil, err
	}
	return j, nil
}

func (j *Journal) open() error {
	file, err := os.OpenFile(j.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open journal: %w", err)
	}
	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return fmt.Errorf("failed to stat journal: %w", err)
	}
	j.file = file
	j.currentSize = stat.Size()
	return nil
}

// Record appends one event to the journal, rotating first if the file has
// grown past the size threshold.
func (j *Journal) Record(ev Event) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.file == nil {
		return fmt.Errorf("journal is closed")
	}

	rec := journalRecord{
		Timestamp: ev.Timestamp,
		Kind:      string(ev.Kind),
		JobID:     ev.JobID,
		TaskID:    ev.TaskID,
		Status:    string(ev.Status),
		Progress:  ev.Progress,
		Message:   ev.Message,
	}
	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode journal record: %w", err)
	}
	line = append(line, '\n')

	if j.currentSize+int64(len(line)) > j.maxSize {
		if err := j.rotate(); err != nil {
			return err
		}
	}

	n, err := j.file.Write(line)
	if err != nil {
		return fmt.Errorf("failed to append journal record: %w", err)
	}
	j.currentSize += int64(n)
	return nil
}

// Attach subscribes the journal to every event on bus. Write failures are
// swallowed; journaling must never affect job execution.
func (j *Journal) Attach(bus *Bus) func() {
	return bus.SubscribeAll(func(ev Event) {
		_ = j.Record(ev)
	})
}

// rotate moves the current file into the archive directory with a
// timestamped name and reopens a fresh journal.
func (j *Journal) rotate() error {
	if err := j.file.Close(); err != nil {
		return fmt.Errorf("failed to close journal for rotation: %w", err)
	}
	j.file = nil

	dir := filepath.Join(filepath.Dir(j.path), archiveDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create archive directory: %w", err)
	}

	base := filepath.Base(j.path)
	name := base[:len(base)-len(filepath.Ext(base))]
	archived := filepath.Join(dir, fmt.Sprintf("%s-%s%s", name, time.Now().UTC().Format("20060102T150405"), journalExtension))
	if err := os.Rename(j.path, archived); err != nil {
		return fmt.Errorf("failed to archive journal: %w", err)
	}

	return j.open()
}

// Close flushes and closes the journal file.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.file == nil {
		return nil
	}
	err := j.file.Close()
	j.file = nil
	return err
}
