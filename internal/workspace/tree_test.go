package workspace

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/restackio/restack/internal/model"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadDir(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "src", "index.ts"), "export {}")
	writeFile(t, filepath.Join(root, "package.json"), "{}")
	writeFile(t, filepath.Join(root, "node_modules", "dep", "index.js"), "skip me")
	writeFile(t, filepath.Join(root, ".git", "HEAD"), "skip me")
	writeFile(t, filepath.Join(root, ".env"), "skip me")

	tree, err := LoadDir(root)
	if err != nil {
		t.Fatalf("LoadDir: %v", err)
	}

	files := tree.Files()
	want := []string{"package.json", "src/index.ts"}
	if len(files) != len(want) {
		t.Fatalf("expected %v, got %v", want, files)
	}
	for i := range want {
		if files[i] != want[i] {
			t.Errorf("expected %v, got %v", want, files)
		}
	}

	content, ok := tree.Read("src/index.ts")
	if !ok || string(content) != "export {}" {
		t.Errorf("unexpected content: %q ok=%v", content, ok)
	}
}

func TestSourceTree_Apply(t *testing.T) {
	tree := NewSourceTree("")
	tree.Write("src/app.ts", []byte("old"))
	tree.Write("src/gone.ts", []byte("bye"))

	err := tree.Apply([]model.FileChange{
		{Path: "src/app.go", ChangeType: model.ChangeCreate, Content: "package app"},
		{Path: "src/app.ts", ChangeType: model.ChangeUpdate, Content: "new"},
		{Path: "src/gone.ts", ChangeType: model.ChangeDelete},
	})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}

	if content, _ := tree.Read("src/app.go"); string(content) != "package app" {
		t.Errorf("create not applied: %q", content)
	}
	if content, _ := tree.Read("src/app.ts"); string(content) != "new" {
		t.Errorf("update not applied: %q", content)
	}
	if _, ok := tree.Read("src/gone.ts"); ok {
		t.Error("delete not applied")
	}
}

func TestSourceTree_ApplyUnknownChangeType(t *testing.T) {
	tree := NewSourceTree("")
	if err := tree.Apply([]model.FileChange{{Path: "x", ChangeType: "rename"}}); err == nil {
		t.Error("expected error for unknown change type")
	}
}

func TestSourceTree_ReadReturnsCopy(t *testing.T) {
	tree := NewSourceTree("")
	tree.Write("a.txt", []byte("abc"))

	content, _ := tree.Read("a.txt")
	content[0] = 'z'

	again, _ := tree.Read("a.txt")
	if string(again) != "abc" {
		t.Error("Read must return a copy, not the backing slice")
	}
}

func TestSourceTree_Flush(t *testing.T) {
	root := t.TempDir()
	tree := NewSourceTree(root)
	tree.Write("cmd/main.go", []byte("package main"))
	tree.Write("go.mod", []byte("module demo"))

	if err := tree.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(root, "cmd", "main.go"))
	if err != nil {
		t.Fatalf("flushed file missing: %v", err)
	}
	if string(data) != "package main" {
		t.Errorf("unexpected flushed content: %q", data)
	}
}
