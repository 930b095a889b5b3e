// Package resolve turns a flat task list with declared dependencies into an
// ordered sequence of concurrency-bounded batches.
package resolve

import (
	"fmt"
	"sort"
	"strings"

	"github.com/restackio/restack/internal/errclass"
	"github.com/restackio/restack/internal/model"
)

// Resolution is the output of resolving a plan's task graph.
type Resolution struct {
	// Batches in execution order. Every task's dependencies are scheduled in
	// a strictly earlier batch; no batch exceeds the concurrency cap.
	Batches [][]*model.ConversionTask
	// Order is the flattened batch order, for logging and previews.
	Order []string
	// Feasible is false when the graph has a cycle, a dangling dependency
	// reference, or duplicate task IDs. No task from an infeasible plan may
	// be executed.
	Feasible bool
	// Warnings carries non-fatal findings (output-path overlaps).
	Warnings []string
}

// Options controls batching.
type Options struct {
	// MaxConcurrent caps the size of each batch. Values < 1 mean unbounded.
	MaxConcurrent int
	// RejectOutputConflicts makes overlapping output paths within one batch
	// infeasible instead of a warning.
	RejectOutputConflicts bool
}

// Resolve computes the batched execution order for tasks. On infeasibility
// it returns a Resolution with Feasible=false together with a non-retryable
// classified error describing the defect.
func Resolve(tasks []*model.ConversionTask, opts Options) (*Resolution, *errclass.AppError) {
	res := &Resolution{Feasible: true}
	if len(tasks) == 0 {
		return res, nil
	}

	byID := make(map[string]*model.ConversionTask, len(tasks))
	for _, t := range tasks {
		if _, dup := byID[t.ID]; dup {
			return infeasible(res, fmt.Sprintf("duplicate task id %q", t.ID))
		}
		byID[t.ID] = t
	}

	// Validate dependency references before ordering.
	for _, t := range tasks {
		for _, dep := range t.Dependencies {
			if dep == t.ID {
				return infeasible(res, fmt.Sprintf("task %q depends on itself", t.ID))
			}
			if _, ok := byID[dep]; !ok {
				return infeasible(res, fmt.Sprintf("task %q depends on unknown task %q", t.ID, dep))
			}
		}
	}

	// Iterative Kahn levels: each round, the eligible set is every
	// unscheduled task whose dependencies are all scheduled. No progress
	// with tasks remaining means a cycle.
	scheduled := make(map[string]bool, len(tasks))
	remaining := len(tasks)

	for remaining > 0 {
		var eligible []*model.ConversionTask
		for _, t := range tasks {
			if scheduled[t.ID] {
				continue
			}
			ready := true
			for _, dep := range t.Dependencies {
				if !scheduled[dep] {
					ready = false
					break
				}
			}
			if ready {
				eligible = append(eligible, t)
			}
		}

		if len(eligible) == 0 {
			path := cyclePath(tasks, scheduled)
			return infeasible(res, "circular dependency detected: "+strings.Join(path, " -> "))
		}

		// Priority descending, then ID ascending for determinism.
		sort.Slice(eligible, func(i, j int) bool {
			if eligible[i].Priority != eligible[j].Priority {
				return eligible[i].Priority > eligible[j].Priority
			}
			return eligible[i].ID < eligible[j].ID
		})

		// Split an over-sized eligible set into sequential sub-batches.
		limit := opts.MaxConcurrent
		if limit < 1 {
			limit = len(eligible)
		}
		for start := 0; start < len(eligible); start += limit {
			end := start + limit
			if end > len(eligible) {
				end = len(eligible)
			}
			batch := eligible[start:end]
			res.Batches = append(res.Batches, batch)
			for _, t := range batch {
				res.Order = append(res.Order, t.ID)
			}
		}

		for _, t := range eligible {
			scheduled[t.ID] = true
		}
		remaining -= len(eligible)
	}

	if conflicts := outputConflicts(res.Batches); len(conflicts) > 0 {
		if opts.RejectOutputConflicts {
			return infeasible(res, "conflicting output paths within one batch: "+strings.Join(conflicts, "; "))
		}
		for _, c := range conflicts {
			res.Warnings = append(res.Warnings,
				"tasks in the same batch write the same output path (last write in task-id order wins): "+c)
		}
	}

	return res, nil
}

func infeasible(res *Resolution, msg string) (*Resolution, *errclass.AppError) {
	res.Feasible = false
	res.Batches = nil
	res.Order = nil
	app := errclass.New(errclass.CodePlanInfeasible, msg)
	app.UserMessage = "The conversion plan cannot be executed: " + msg
	app.RecoveryActions = []errclass.RecoveryAction{
		{Type: errclass.RecoveryManual, Description: "fix the plan's task dependencies"},
	}
	return res, app
}

// cyclePath reconstructs one dependency cycle among the unscheduled tasks
// via DFS with color marking.
func cyclePath(tasks []*model.ConversionTask, scheduled map[string]bool) []string {
	const (
		white = 0
		gray  = 1
		black = 2
	)

	deps := make(map[string][]string)
	var nodes []string
	for _, t := range tasks {
		if scheduled[t.ID] {
			continue
		}
		nodes = append(nodes, t.ID)
		for _, dep := range t.Dependencies {
			if !scheduled[dep] {
				deps[t.ID] = append(deps[t.ID], dep)
			}
		}
	}
	sort.Strings(nodes)

	color := make(map[string]int)
	parent := make(map[string]string)
	var path []string

	var dfs func(node string) bool
	dfs = func(node string) bool {
		color[node] = gray
		for _, dep := range deps[node] {
			if color[dep] == gray {
				path = []string{dep}
				for cur := node; cur != dep; cur = parent[cur] {
					path = append(path, cur)
				}
				path = append(path, dep)
				for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
					path[i], path[j] = path[j], path[i]
				}
				return true
			}
			if color[dep] == white {
				parent[dep] = node
				if dfs(dep) {
					return true
				}
			}
		}
		color[node] = black
		return false
	}

	for _, n := range nodes {
		if color[n] == white && dfs(n) {
			return path
		}
	}
	return []string{"(cycle detected)"}
}

// outputConflicts lists output paths declared by more than one task inside
// a single batch.
func outputConflicts(batches [][]*model.ConversionTask) []string {
	var conflicts []string
	for i, batch := range batches {
		seen := make(map[string]string)
		for _, t := range batch {
			for _, out := range t.OutputFiles {
				if prev, ok := seen[out]; ok {
					conflicts = append(conflicts,
						fmt.Sprintf("batch %d: %s declared by %s and %s", i, out, prev, t.ID))
					continue
				}
				seen[out] = t.ID
			}
		}
	}
	return conflicts
}
