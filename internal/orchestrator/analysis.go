package orchestrator

import (
	"bufio"
	"bytes"
	"path"
	"regexp"
	"strings"

	"github.com/restackio/restack/internal/executor"
	"github.com/restackio/restack/internal/workspace"
)

var entryPointNames = map[string]bool{
	"main":   true,
	"index":  true,
	"app":    true,
	"server": true,
	"cli":    true,
}

var configFileNames = map[string]bool{
	"package.json":       true,
	"tsconfig.json":      true,
	"go.mod":             true,
	"cargo.toml":         true,
	"pyproject.toml":     true,
	"requirements.txt":   true,
	"pom.xml":            true,
	"build.gradle":       true,
	"dockerfile":         true,
	"docker-compose.yml": true,
	"makefile":           true,
}

var importRe = regexp.MustCompile(`^\s*(?:import\s.*?from\s+['"]([^'"]+)['"]|import\s+['"]([^'"]+)['"]|(?:const|let|var)\s+.*?=\s*require\(['"]([^'"]+)['"]\))`)

// Analyze derives the lightweight structural summary shared read-only
// across all tasks: entry points, config files, and the relative import
// graph.
func Analyze(tree *workspace.SourceTree) *executor.ProjectAnalysis {
	analysis := &executor.ProjectAnalysis{
		Imports:   make(map[string][]string),
		FileCount: tree.Len(),
	}

	for _, file := range tree.Files() {
		base := path.Base(file)
		stem := strings.TrimSuffix(base, path.Ext(base))

		if configFileNames[strings.ToLower(base)] {
			analysis.ConfigFiles = append(analysis.ConfigFiles, file)
		}
		if entryPointNames[strings.ToLower(stem)] && isSourceFile(base) {
			analysis.EntryPoints = append(analysis.EntryPoints, file)
		}

		if imports := scanImports(tree, file); len(imports) > 0 {
			analysis.Imports[file] = imports
		}
	}
	return analysis
}

func isSourceFile(name string) bool {
	switch path.Ext(name) {
	case ".ts", ".tsx", ".js", ".jsx", ".mjs", ".go", ".py", ".rb", ".java":
		return true
	}
	return false
}

// scanImports collects relative import specifiers from one file. External
// package imports are skipped; only intra-project edges matter for the
// graph.
func scanImports(tree *workspace.SourceTree, file string) []string {
	content, ok := tree.Read(file)
	if !ok || !isSourceFile(path.Base(file)) {
		return nil
	}

	var imports []string
	sc := bufio.NewScanner(bytes.NewReader(content))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		m := importRe.FindStringSubmatch(sc.Text())
		if m == nil {
			continue
		}
		spec := m[1]
		if spec == "" {
			spec = m[2]
		}
		if spec == "" {
			spec = m[3]
		}
		if !strings.HasPrefix(spec, ".") {
			continue
		}
		imports = append(imports, path.Clean(path.Join(path.Dir(file), spec)))
	}
	return imports
}
