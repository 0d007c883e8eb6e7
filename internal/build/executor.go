package build

import (
	"context"
	"errors"
	"runtime"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// ErrSkipped is recorded for targets that never ran because a dependency
// failed or the build was cancelled.
var ErrSkipped = errors.New("skipped")

// Result is the outcome of one target.
type Result struct {
	ID   TargetID
	Err  error
	Took time.Duration
}

// Stats summarises an execution.
type Stats struct {
	TotalTargets int
	Succeeded    int
	Failed       int
	Skipped      int
	MaxParallel  int
}

// Executor runs a Plan with a bounded number of concurrent actions,
// honouring dependencies. The first failure cancels the rest.
type Executor struct {
	workers int
}

// NewExecutor returns an Executor running at most workers actions at once
// (NumCPU when workers <= 0).
func NewExecutor(workers int) *Executor {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Executor{workers: workers}
}

// Execute runs roots and their dependencies, or the whole plan when roots
// is empty. Results are sorted by target ID; the error is the first action
// failure.
func (e *Executor) Execute(ctx context.Context, plan *Plan, roots ...TargetID) ([]Result, Stats, error) {
	if plan == nil {
		return nil, Stats{}, errors.New("nil plan")
	}
	sub := plan
	if len(roots) > 0 {
		var err error
		if sub, err = plan.Subgraph(roots...); err != nil {
			return nil, Stats{}, err
		}
	}
	if err := sub.Validate(); err != nil {
		return nil, Stats{}, err
	}

	indeg := make(map[TargetID]int, len(sub.nodes))
	rev := make(map[TargetID][]TargetID, len(sub.nodes))
	for _, id := range sub.IDs() {
		for _, d := range sub.nodes[id].Deps {
			indeg[id]++
			rev[d] = append(rev[d], id)
		}
	}

	var (
		mu      sync.Mutex
		results = make(map[TargetID]Result, len(sub.nodes))
		stats   = Stats{TotalTargets: len(sub.nodes)}
		running int
		sem     = make(chan struct{}, e.workers)
	)
	g, gctx := errgroup.WithContext(ctx)

	var schedule func(id TargetID)
	schedule = func(id TargetID) {
		g.Go(func() error {
			select {
			case sem <- struct{}{}:
			case <-gctx.Done():
				return nil
			}
			if gctx.Err() != nil {
				<-sem
				return nil
			}
			mu.Lock()
			running++
			if running > stats.MaxParallel {
				stats.MaxParallel = running
			}
			mu.Unlock()

			start := time.Now()
			err := sub.nodes[id].Action(gctx)
			took := time.Since(start)
			<-sem

			mu.Lock()
			running--
			results[id] = Result{ID: id, Err: err, Took: took}
			var ready []TargetID
			if err == nil {
				stats.Succeeded++
				for _, dep := range rev[id] {
					indeg[dep]--
					if indeg[dep] == 0 {
						ready = append(ready, dep)
					}
				}
			} else {
				stats.Failed++
			}
			mu.Unlock()

			if err != nil {
				return err
			}
			sort.Slice(ready, func(i, j int) bool { return less(sub, ready[i], ready[j]) })
			for _, dep := range ready {
				schedule(dep)
			}
			return nil
		})
	}

	var initial []TargetID
	for _, id := range sub.IDs() {
		if indeg[id] == 0 {
			initial = append(initial, id)
		}
	}
	sort.Slice(initial, func(i, j int) bool { return less(sub, initial[i], initial[j]) })
	for _, id := range initial {
		schedule(id)
	}
	err := g.Wait()

	out := make([]Result, 0, len(sub.nodes))
	for _, id := range sub.IDs() {
		r, ok := results[id]
		if !ok {
			r = Result{ID: id, Err: ErrSkipped}
			stats.Skipped++
		}
		out = append(out, r)
	}
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	return out, stats, err
}

// less orders ready targets heaviest first, then by ID.
func less(p *Plan, a, b TargetID) bool {
	wa, wb := p.nodes[a].Weight, p.nodes[b].Weight
	if wa != wb {
		return wa > wb
	}
	return a < b
}
