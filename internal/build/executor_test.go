package build

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	jerrors "github.com/jinix-lang/jinix/internal/errors"
)

func noop(context.Context) error { return nil }

func TestPlanValidateCycle(t *testing.T) {
	p := NewPlan()
	if err := p.AddTarget(Target{ID: "A", Deps: []TargetID{"B"}, Action: noop}); err != nil {
		t.Fatal(err)
	}
	if err := p.AddTarget(Target{ID: "B", Deps: []TargetID{"A"}, Action: noop}); err != nil {
		t.Fatal(err)
	}
	if err := p.Validate(); !jerrors.IsCategory(err, jerrors.CategoryInvariant) {
		t.Fatalf("expected cycle error, got %v", err)
	}
}

func TestPlanRejectsBadTargets(t *testing.T) {
	p := NewPlan()
	if err := p.AddTarget(Target{ID: "", Action: noop}); err == nil {
		t.Error("accepted empty ID")
	}
	if err := p.AddTarget(Target{ID: "A"}); err == nil {
		t.Error("accepted nil action")
	}
	if err := p.AddTarget(Target{ID: "A", Deps: []TargetID{"C", "B", "C"}, Action: noop}); err != nil {
		t.Fatal(err)
	}
	if err := p.AddTarget(Target{ID: "A", Action: noop}); err == nil {
		t.Error("accepted duplicate target")
	}
	a, _ := p.Get("A")
	if len(a.Deps) != 2 || a.Deps[0] != "B" || a.Deps[1] != "C" {
		t.Errorf("deps = %v", a.Deps)
	}
	if err := p.Validate(); err == nil {
		t.Error("accepted missing dependencies")
	}
}

// record returns an action appending id to order.
func record(mu *sync.Mutex, order *[]TargetID, id TargetID) Action {
	return func(context.Context) error {
		time.Sleep(5 * time.Millisecond)
		mu.Lock()
		*order = append(*order, id)
		mu.Unlock()
		return nil
	}
}

func TestExecutorRespectsDependencies(t *testing.T) {
	var mu sync.Mutex
	var order []TargetID
	p := NewPlan()
	for _, class := range []string{"demo.A", "demo.B", "demo.C"} {
		id := TranspileTarget(class)
		if err := p.AddTarget(Target{ID: id, Action: record(&mu, &order, id)}); err != nil {
			t.Fatal(err)
		}
	}
	deps := []TargetID{TranspileTarget("demo.A"), TranspileTarget("demo.B"), TranspileTarget("demo.C")}
	if err := p.AddTarget(Target{ID: TargetEmit, Deps: deps, Action: record(&mu, &order, TargetEmit)}); err != nil {
		t.Fatal(err)
	}
	if err := p.AddTarget(Target{ID: TargetCompile, Deps: []TargetID{TargetEmit}, Action: record(&mu, &order, TargetCompile)}); err != nil {
		t.Fatal(err)
	}

	res, stats, err := NewExecutor(4).Execute(context.Background(), p)
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if len(res) != 5 || stats.Succeeded != 5 || stats.Failed != 0 || stats.Skipped != 0 {
		t.Fatalf("results = %v, stats = %+v", res, stats)
	}
	if len(order) != 5 || order[3] != TargetEmit || order[4] != TargetCompile {
		t.Fatalf("order = %v", order)
	}
	if stats.MaxParallel < 2 {
		t.Errorf("transpile targets did not overlap: %+v", stats)
	}
}

func TestExecutorBoundsParallelism(t *testing.T) {
	var running, peak int64
	p := NewPlan()
	for _, id := range []TargetID{"a", "b", "c", "d", "e", "f"} {
		err := p.AddTarget(Target{ID: id, Action: func(context.Context) error {
			n := atomic.AddInt64(&running, 1)
			for {
				old := atomic.LoadInt64(&peak)
				if n <= old || atomic.CompareAndSwapInt64(&peak, old, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt64(&running, -1)
			return nil
		}})
		if err != nil {
			t.Fatal(err)
		}
	}
	if _, _, err := NewExecutor(2).Execute(context.Background(), p); err != nil {
		t.Fatal(err)
	}
	if peak > 2 {
		t.Fatalf("peak parallelism %d exceeds 2 workers", peak)
	}
}

func TestExecutorFailureSkipsDependents(t *testing.T) {
	boom := errors.New("boom")
	p := NewPlan()
	if err := p.AddTarget(Target{ID: "A", Action: noop}); err != nil {
		t.Fatal(err)
	}
	if err := p.AddTarget(Target{ID: "B", Deps: []TargetID{"A"}, Action: func(context.Context) error { return boom }}); err != nil {
		t.Fatal(err)
	}
	if err := p.AddTarget(Target{ID: "C", Deps: []TargetID{"B"}, Action: noop}); err != nil {
		t.Fatal(err)
	}

	res, stats, err := NewExecutor(2).Execute(context.Background(), p)
	if !errors.Is(err, boom) {
		t.Fatalf("error = %v", err)
	}
	if len(res) != 3 || stats.Failed != 1 || stats.Skipped != 1 {
		t.Fatalf("results = %v, stats = %+v", res, stats)
	}
	if !errors.Is(res[2].Err, ErrSkipped) {
		t.Errorf("C result = %v", res[2].Err)
	}
}

func TestExecutorSubgraph(t *testing.T) {
	var ran int64
	count := func(context.Context) error { atomic.AddInt64(&ran, 1); return nil }
	p := NewPlan()
	for _, tg := range []Target{
		{ID: "A", Action: count},
		{ID: "B", Deps: []TargetID{"A"}, Action: count},
		{ID: "unrelated", Action: count},
	} {
		if err := p.AddTarget(tg); err != nil {
			t.Fatal(err)
		}
	}
	res, _, err := NewExecutor(1).Execute(context.Background(), p, "B")
	if err != nil {
		t.Fatal(err)
	}
	if len(res) != 2 || ran != 2 {
		t.Fatalf("ran %d targets: %v", ran, res)
	}
}
