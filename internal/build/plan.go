package build

import (
	"context"
	"fmt"
	"sort"
	"strings"

	jerrors "github.com/jinix-lang/jinix/internal/errors"
)

// TargetID identifies a build target, e.g. "transpile:demo.Calc".
type TargetID string

// Common target ID prefixes of a nativization build.
const (
	PrefixTranspile = "transpile:"
	TargetEmit      = TargetID("emit")
	TargetCompile   = TargetID("compile")
)

// TranspileTarget names the target transpiling one class.
func TranspileTarget(class string) TargetID { return TargetID(PrefixTranspile + class) }

// Action materialises a target. It must only touch the target's own
// outputs; ctx is cancelled when another target fails.
type Action func(ctx context.Context) error

// Target is a node of the dependency graph.
type Target struct {
	ID     TargetID
	Deps   []TargetID
	Weight int // relative cost hint; non-positive means 1
	Action Action
}

// Plan is a build dependency graph.
type Plan struct {
	nodes map[TargetID]*Target
}

// NewPlan creates an empty plan.
func NewPlan() *Plan { return &Plan{nodes: make(map[TargetID]*Target)} }

// AddTarget registers t. Dependencies are deduplicated and sorted.
func (p *Plan) AddTarget(t Target) error {
	if t.ID == "" {
		return jerrors.Invalid("target ID is empty")
	}
	if t.Action == nil {
		return jerrors.Invalid("target %s has no action", t.ID)
	}
	if _, ok := p.nodes[t.ID]; ok {
		return jerrors.Invalid("duplicate target: %s", t.ID)
	}
	if t.Weight <= 0 {
		t.Weight = 1
	}
	deps := append([]TargetID(nil), t.Deps...)
	sort.Slice(deps, func(i, j int) bool { return deps[i] < deps[j] })
	uniq := deps[:0]
	for i, d := range deps {
		if i == 0 || d != deps[i-1] {
			uniq = append(uniq, d)
		}
	}
	t.Deps = uniq
	p.nodes[t.ID] = &t
	return nil
}

// Len returns the number of targets.
func (p *Plan) Len() int { return len(p.nodes) }

// Get returns the target with the given ID.
func (p *Plan) Get(id TargetID) (Target, bool) {
	n, ok := p.nodes[id]
	if !ok {
		return Target{}, false
	}
	return *n, true
}

// IDs returns every target ID in sorted order.
func (p *Plan) IDs() []TargetID {
	ids := make([]TargetID, 0, len(p.nodes))
	for id := range p.nodes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Subgraph returns the plan restricted to roots and their transitive
// dependencies.
func (p *Plan) Subgraph(roots ...TargetID) (*Plan, error) {
	out := NewPlan()
	var visit func(TargetID) error
	visit = func(id TargetID) error {
		if _, ok := out.nodes[id]; ok {
			return nil
		}
		t, ok := p.nodes[id]
		if !ok {
			return jerrors.Invalid("unknown target: %s", id)
		}
		for _, d := range t.Deps {
			if err := visit(d); err != nil {
				return err
			}
		}
		return out.AddTarget(*t)
	}
	for _, r := range roots {
		if err := visit(r); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Validate checks that every dependency exists and that the graph is
// acyclic.
func (p *Plan) Validate() error {
	for _, id := range p.IDs() {
		for _, d := range p.nodes[id].Deps {
			if _, ok := p.nodes[d]; !ok {
				return jerrors.Invalid("%s depends on missing %s", id, d)
			}
		}
	}

	const (
		white = iota
		gray
		black
	)
	color := make(map[TargetID]int, len(p.nodes))
	var stack []TargetID
	var visit func(TargetID) error
	visit = func(id TargetID) error {
		switch color[id] {
		case gray:
			path := make([]string, 0, len(stack)+1)
			for _, s := range stack {
				path = append(path, string(s))
			}
			path = append(path, string(id))
			return jerrors.Invariant("cycle detected: %s", strings.Join(path, " -> "))
		case black:
			return nil
		}
		color[id] = gray
		stack = append(stack, id)
		for _, d := range p.nodes[id].Deps {
			if err := visit(d); err != nil {
				return err
			}
		}
		stack = stack[:len(stack)-1]
		color[id] = black
		return nil
	}
	for _, id := range p.IDs() {
		if color[id] == white {
			if err := visit(id); err != nil {
				return err
			}
		}
	}
	return nil
}

// String lists the targets with their dependencies, one per line.
func (p *Plan) String() string {
	var sb strings.Builder
	for _, id := range p.IDs() {
		t := p.nodes[id]
		fmt.Fprintf(&sb, "%s", id)
		if len(t.Deps) > 0 {
			fmt.Fprintf(&sb, " <- %v", t.Deps)
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}
