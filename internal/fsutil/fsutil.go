// Package fsutil provides atomic file I/O for plans, job records, and
// converted sources.
package fsutil

import (
	"fmt"
	"os"
	"path/filepath"

	yamlv3 "gopkg.in/yaml.v3"
)

// WriteYAML marshals data and writes it to path atomically.
func WriteYAML(path string, data any) error {
	content, err := yamlv3.Marshal(data)
	if err != nil {
		return fmt.Errorf("yaml marshal: %w", err)
	}
	return WriteAtomic(path, content, true)
}

// ReadYAML reads path and unmarshals it into out.
func ReadYAML(path string, out any) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}
	if err := yamlv3.Unmarshal(content, out); err != nil {
		return fmt.Errorf("parse yaml %s: %w", path, err)
	}
	return nil
}

// WriteAtomic writes content to path via a synced temp file and a rename on
// the same volume. With validateYAML set, the written bytes are re-read and
// parsed before the rename so a torn write can never replace a good file.
func WriteAtomic(path string, content []byte, validateYAML bool) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create parent dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".restack-tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if validateYAML {
		written, err := os.ReadFile(tmpName)
		if err != nil {
			return fmt.Errorf("read temp file for validation: %w", err)
		}
		var v any
		if err := yamlv3.Unmarshal(written, &v); err != nil {
			return fmt.Errorf("yaml validation failed: %w", err)
		}
	}

	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("atomic rename: %w", err)
	}
	return nil
}

// WriteFileAtomic writes arbitrary content (converted source files) with
// the same temp-and-rename discipline, without YAML validation.
func WriteFileAtomic(path string, content []byte) error {
	return WriteAtomic(path, content, false)
}
