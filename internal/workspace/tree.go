// Package workspace holds the source files a conversion job reads and
// writes: an in-memory tree loaded from disk or S3, flushed back with
// atomic writes, and optionally watched for outside mutation.
package workspace

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/restackio/restack/internal/fsutil"
	"github.com/restackio/restack/internal/model"
)

// SourceTree is a concurrency-safe map of relative file paths to contents.
// Task results are merged into it; Flush writes it back to disk.
type SourceTree struct {
	mu    sync.RWMutex
	root  string
	files map[string][]byte
}

// NewSourceTree creates an empty tree rooted at root.
func NewSourceTree(root string) *SourceTree {
	return &SourceTree{
		root:  root,
		files: make(map[string][]byte),
	}
}

// LoadDir walks root and loads every regular file into a tree. Hidden
// directories and node_modules are skipped.
func LoadDir(root string) (*SourceTree, error) {
	tree := NewSourceTree(root)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() {
			if path != root && (strings.HasPrefix(name, ".") || name == "node_modules") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", rel, err)
		}
		tree.files[filepath.ToSlash(rel)] = content
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load source tree: %w", err)
	}
	return tree, nil
}

// Root returns the tree's on-disk root directory.
func (t *SourceTree) Root() string { return t.root }

// Read returns the content of path, or false when absent.
func (t *SourceTree) Read(path string) ([]byte, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	content, ok := t.files[filepath.ToSlash(path)]
	if !ok {
		return nil, false
	}
	out := make([]byte, len(content))
	copy(out, content)
	return out, true
}

// Write stores content at path, replacing any existing entry.
func (t *SourceTree) Write(path string, content []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.files[filepath.ToSlash(path)] = content
}

// Delete removes path from the tree.
func (t *SourceTree) Delete(path string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.files, filepath.ToSlash(path))
}

// Files lists every path in the tree, sorted.
func (t *SourceTree) Files() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	paths := make([]string, 0, len(t.files))
	for p := range t.files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Len returns the number of files in the tree.
func (t *SourceTree) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.files)
}

// Apply merges a result's file changes into the tree in declaration order.
func (t *SourceTree) Apply(changes []model.FileChange) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, ch := range changes {
		path := filepath.ToSlash(ch.Path)
		switch ch.ChangeType {
		case model.ChangeCreate, model.ChangeUpdate:
			t.files[path] = []byte(ch.Content)
		case model.ChangeDelete:
			delete(t.files, path)
		default:
			return fmt.Errorf("unknown change type %q for %s", ch.ChangeType, ch.Path)
		}
	}
	return nil
}

// Flush writes every file to disk under the tree's root using atomic
// writes.
func (t *SourceTree) Flush() error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for path, content := range t.files {
		dst := filepath.Join(t.root, filepath.FromSlash(path))
		if err := fsutil.WriteFileAtomic(dst, content); err != nil {
			return fmt.Errorf("flush %s: %w", path, err)
		}
	}
	return nil
}
