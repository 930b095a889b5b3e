package workspace

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/restackio/restack/internal/logging"
)

func TestWatcher_ReportsMutations(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "src", "index.ts"), "export {}")

	var mu sync.Mutex
	var seen []string
	logger := logging.New(log.New(os.Stderr, "", 0), logging.LevelError, "test")

	w, err := NewWatcher(root, func(rel string, op fsnotify.Op) {
		mu.Lock()
		seen = append(seen, rel)
		mu.Unlock()
	}, logger)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop()

	writeFile(t, filepath.Join(root, "src", "index.ts"), "export default 1")

	deadline := time.After(2 * time.Second)
	for {
		mu.Lock()
		n := len(seen)
		mu.Unlock()
		if n > 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("no mutation reported within deadline")
		case <-time.After(10 * time.Millisecond):
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if seen[0] != "src/index.ts" {
		t.Errorf("expected src/index.ts, got %s", seen[0])
	}
}

func TestWatcher_StopIsIdempotentWithoutStart(t *testing.T) {
	logger := logging.New(log.New(os.Stderr, "", 0), logging.LevelError, "test")
	w, err := NewWatcher(t.TempDir(), nil, logger)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	w.Stop()
}
