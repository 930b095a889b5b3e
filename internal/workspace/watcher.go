package workspace

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/restackio/restack/internal/logging"
)

// MutationFunc is called for every outside change to a watched source
// tree while a job runs. rel is the path relative to the tree root.
type MutationFunc func(rel string, op fsnotify.Op)

// Watcher reports filesystem mutations under a source tree root so a
// running job can flag inputs that changed underneath it.
type Watcher struct {
	root    string
	watcher *fsnotify.Watcher
	onEvent MutationFunc
	logger  *logging.Logger

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// NewWatcher creates a watcher over root. Events are delivered on a
// background goroutine after Start.
func NewWatcher(root string, onEvent MutationFunc, logger *logging.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if logger == nil {
		logger = &logging.Logger{}
	}
	return &Watcher{
		root:    root,
		watcher: fsw,
		onEvent: onEvent,
		logger:  logger.WithComponent("workspace.watcher"),
	}, nil
}

// Start registers every directory under the root and begins delivering
// events until Stop or ctx cancellation.
func (w *Watcher) Start(ctx context.Context) error {
	err := filepath.WalkDir(w.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		name := d.Name()
		if path != w.root && (strings.HasPrefix(name, ".") || name == "node_modules") {
			return filepath.SkipDir
		}
		return w.watcher.Add(path)
	})
	if err != nil {
		return fmt.Errorf("watch %s: %w", w.root, err)
	}

	ctx, w.cancel = context.WithCancel(ctx)
	w.wg.Add(1)
	go w.loop(ctx)
	return nil
}

func (w *Watcher) loop(ctx context.Context) {
	defer w.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Remove) {
				continue
			}
			rel, err := filepath.Rel(w.root, event.Name)
			if err != nil {
				continue
			}
			w.logger.Debugf("mutation op=%s file=%s", event.Op, rel)
			if w.onEvent != nil {
				w.onEvent(filepath.ToSlash(rel), event.Op)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Errorf("watcher error=%v", err)
		}
	}
}

// Stop ends event delivery and releases the underlying watcher.
func (w *Watcher) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	_ = w.watcher.Close()
	w.wg.Wait()
}
