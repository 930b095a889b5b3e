package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/restackio/restack/internal/workspace"
)

func TestAnalyze(t *testing.T) {
	tree := workspace.NewSourceTree("")
	tree.Write("src/index.ts", []byte("import { helper } from './util'\nimport fs from 'fs'\n"))
	tree.Write("src/util.ts", []byte("export const helper = 1\n"))
	tree.Write("lib/legacy.js", []byte("const u = require('../src/util')\n"))
	tree.Write("package.json", []byte("{}"))
	tree.Write("tsconfig.json", []byte("{}"))
	tree.Write("README.md", []byte("# readme"))

	analysis := Analyze(tree)

	assert.Equal(t, 6, analysis.FileCount)
	assert.Contains(t, analysis.EntryPoints, "src/index.ts")
	assert.Contains(t, analysis.ConfigFiles, "package.json")
	assert.Contains(t, analysis.ConfigFiles, "tsconfig.json")
	assert.NotContains(t, analysis.ConfigFiles, "README.md")

	// Relative imports resolve against the importing file's directory;
	// bare package imports are excluded.
	assert.Equal(t, []string{"src/util"}, analysis.Imports["src/index.ts"])
	assert.Equal(t, []string{"src/util"}, analysis.Imports["lib/legacy.js"])
	assert.NotContains(t, analysis.Imports, "src/util.ts")
}

func TestAnalyze_EmptyTree(t *testing.T) {
	analysis := Analyze(workspace.NewSourceTree(""))
	assert.Equal(t, 0, analysis.FileCount)
	assert.Empty(t, analysis.EntryPoints)
	assert.Empty(t, analysis.Imports)
}
