package resolve

import (
	"fmt"
	"strings"
	"testing"

	"github.com/restackio/restack/internal/errclass"
	"github.com/restackio/restack/internal/model"
)

func task(id string, priority int, deps ...string) *model.ConversionTask {
	return &model.ConversionTask{
		ID:           id,
		Type:         model.TaskTypeCodeGeneration,
		Description:  "convert " + id,
		Dependencies: deps,
		Priority:     priority,
		Status:       model.TaskStatusPending,
	}
}

func batchIDs(b []*model.ConversionTask) []string {
	ids := make([]string, len(b))
	for i, t := range b {
		ids[i] = t.ID
	}
	return ids
}

func batchIndex(res *Resolution, id string) int {
	for i, b := range res.Batches {
		for _, t := range b {
			if t.ID == id {
				return i
			}
		}
	}
	return -1
}

func TestResolve_Empty(t *testing.T) {
	res, appErr := Resolve(nil, Options{MaxConcurrent: 2})
	if appErr != nil {
		t.Fatalf("unexpected error: %v", appErr)
	}
	if !res.Feasible || len(res.Batches) != 0 {
		t.Errorf("empty plan should be feasible with no batches")
	}
}

func TestResolve_DiamondDependenciesInEarlierBatches(t *testing.T) {
	tasks := []*model.ConversionTask{
		task("a", 0),
		task("b", 0, "a"),
		task("c", 0, "a"),
		task("d", 0, "b", "c"),
	}
	res, appErr := Resolve(tasks, Options{MaxConcurrent: 4})
	if appErr != nil {
		t.Fatalf("unexpected error: %v", appErr)
	}
	if !res.Feasible {
		t.Fatal("expected feasible")
	}

	for _, tk := range tasks {
		for _, dep := range tk.Dependencies {
			if batchIndex(res, dep) >= batchIndex(res, tk.ID) {
				t.Errorf("dependency %s of %s must be in a strictly earlier batch", dep, tk.ID)
			}
		}
	}
}

func TestResolve_ThreeTaskPlanConcurrencyTwo(t *testing.T) {
	tasks := []*model.ConversionTask{
		task("a", 0),
		task("b", 0),
		task("c", 0, "a", "b"),
	}
	res, appErr := Resolve(tasks, Options{MaxConcurrent: 2})
	if appErr != nil {
		t.Fatalf("unexpected error: %v", appErr)
	}
	if len(res.Batches) != 2 {
		t.Fatalf("expected batches [[a b] [c]], got %d batches", len(res.Batches))
	}
	if got := batchIDs(res.Batches[0]); got[0] != "a" || got[1] != "b" {
		t.Errorf("expected first batch [a b], got %v", got)
	}
	if got := batchIDs(res.Batches[1]); len(got) != 1 || got[0] != "c" {
		t.Errorf("expected second batch [c], got %v", got)
	}
}

func TestResolve_PriorityThenIDOrdering(t *testing.T) {
	tasks := []*model.ConversionTask{
		task("low", 1),
		task("high", 9),
		task("mid-b", 5),
		task("mid-a", 5),
	}
	res, appErr := Resolve(tasks, Options{MaxConcurrent: 10})
	if appErr != nil {
		t.Fatalf("unexpected error: %v", appErr)
	}
	got := batchIDs(res.Batches[0])
	want := []string{"high", "mid-a", "mid-b", "low"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected order %v, got %v", want, got)
		}
	}
}

func TestResolve_ConcurrencyCapSplitsEligibleSet(t *testing.T) {
	tasks := []*model.ConversionTask{
		task("a", 4), task("b", 3), task("c", 2), task("d", 1), task("e", 0),
	}
	res, appErr := Resolve(tasks, Options{MaxConcurrent: 2})
	if appErr != nil {
		t.Fatalf("unexpected error: %v", appErr)
	}
	if len(res.Batches) != 3 {
		t.Fatalf("expected 3 sub-batches, got %d", len(res.Batches))
	}
	for i, b := range res.Batches {
		if len(b) > 2 {
			t.Errorf("batch %d exceeds cap: %v", i, batchIDs(b))
		}
	}
	if res.Order[0] != "a" || res.Order[4] != "e" {
		t.Errorf("expected priority order preserved across sub-batches, got %v", res.Order)
	}
}

func TestResolve_CycleDetected(t *testing.T) {
	tasks := []*model.ConversionTask{
		task("a", 0, "c"),
		task("b", 0, "a"),
		task("c", 0, "b"),
	}
	res, appErr := Resolve(tasks, Options{MaxConcurrent: 2})
	if appErr == nil {
		t.Fatal("expected cycle error")
	}
	if res.Feasible {
		t.Error("cyclic plan must be infeasible")
	}
	if appErr.Code != errclass.CodePlanInfeasible {
		t.Errorf("expected PLAN_INFEASIBLE, got %s", appErr.Code)
	}
	if appErr.Retryable {
		t.Error("infeasible plan errors are not retryable")
	}
	if !strings.Contains(appErr.Message, "circular dependency") {
		t.Errorf("expected cycle description, got %q", appErr.Message)
	}
}

func TestResolve_DanglingDependency(t *testing.T) {
	tasks := []*model.ConversionTask{task("a", 0, "ghost")}
	res, appErr := Resolve(tasks, Options{})
	if appErr == nil || res.Feasible {
		t.Fatal("expected infeasible plan for dangling dependency")
	}
	if !strings.Contains(appErr.Message, "ghost") {
		t.Errorf("error should name the unknown dependency: %q", appErr.Message)
	}
}

func TestResolve_DuplicateIDs(t *testing.T) {
	tasks := []*model.ConversionTask{task("a", 0), task("a", 1)}
	res, appErr := Resolve(tasks, Options{})
	if appErr == nil || res.Feasible {
		t.Fatal("expected infeasible plan for duplicate IDs")
	}
}

func TestResolve_SelfDependency(t *testing.T) {
	tasks := []*model.ConversionTask{task("a", 0, "a")}
	_, appErr := Resolve(tasks, Options{})
	if appErr == nil {
		t.Fatal("expected error for self-dependency")
	}
}

func TestResolve_OutputConflictWarning(t *testing.T) {
	a := task("a", 0)
	a.OutputFiles = []string{"out/main.go"}
	b := task("b", 0)
	b.OutputFiles = []string{"out/main.go"}

	res, appErr := Resolve([]*model.ConversionTask{a, b}, Options{MaxConcurrent: 2})
	if appErr != nil {
		t.Fatalf("overlap should be a warning by default: %v", appErr)
	}
	if len(res.Warnings) != 1 {
		t.Fatalf("expected one warning, got %v", res.Warnings)
	}

	res, appErr = Resolve([]*model.ConversionTask{a, b}, Options{MaxConcurrent: 2, RejectOutputConflicts: true})
	if appErr == nil || res.Feasible {
		t.Error("expected infeasible plan when RejectOutputConflicts is set")
	}
}

func TestResolve_LargeChainTerminates(t *testing.T) {
	// A long linear chain must resolve without recursion depth issues.
	var tasks []*model.ConversionTask
	prev := ""
	for i := 0; i < 500; i++ {
		id := fmt.Sprintf("t-%03d", i)
		if prev == "" {
			tasks = append(tasks, task(id, 0))
		} else {
			tasks = append(tasks, task(id, 0, prev))
		}
		prev = id
	}
	res, appErr := Resolve(tasks, Options{MaxConcurrent: 3})
	if appErr != nil {
		t.Fatalf("unexpected error: %v", appErr)
	}
	if len(res.Batches) != 500 {
		t.Errorf("linear chain of 500 yields 500 batches, got %d", len(res.Batches))
	}
}
