package codegen

import (
	"strings"

	jerrors "github.com/jinix-lang/jinix/internal/errors"
)

// scope is one statement list of the block tree seen from its position:
// the lists enclosing it (outermost first, the parent list last), the
// construct owning it and the other branch lists of that construct.
type scope struct {
	list      *[]*Node
	parent    *Node
	ancestors []*[]*Node
	siblings  []*[]*Node
}

// walkLists calls fn for every statement list below root, children before
// the list containing them. Constructs are collected before descending
// because fn may rewrite the list that holds them.
func walkLists(root *[]*Node, fn func(scope) error) error {
	return visitList(scope{list: root}, fn)
}

func visitList(s scope, fn func(scope) error) error {
	var constructs []*Node
	for _, n := range *s.list {
		if len(n.Branches) > 0 {
			constructs = append(constructs, n)
		}
	}
	ancestors := make([]*[]*Node, 0, len(s.ancestors)+1)
	ancestors = append(ancestors, s.ancestors...)
	ancestors = append(ancestors, s.list)

	for _, c := range constructs {
		for i := range c.Branches {
			siblings := make([]*[]*Node, 0, len(c.Branches)-1)
			for j := range c.Branches {
				if j != i {
					siblings = append(siblings, &c.Branches[j])
				}
			}
			child := scope{list: &c.Branches[i], parent: c, ancestors: ancestors, siblings: siblings}
			if err := visitList(child, fn); err != nil {
				return err
			}
		}
	}
	return fn(s)
}

// Place inserts the lookups each statement needs and moves them to the
// outermost scope where they are still valid: every node's needs are
// declared in its own list or an enclosing one, no key is declared twice on
// one path, and within a list every lookup follows the lookups it reads.
//
// A lookup shared by all branches of a construct that always runs one of
// them moves before the construct. Lookups inside a loop move before the
// loop even when the loop may not run: JNI lookups have no side effects
// other than possibly raising NoSuchMethodError earlier.
func Place(root *[]*Node, arena *Arena) error {
	p := &placer{arena: arena}
	if err := walkLists(root, p.expand); err != nil {
		return err
	}
	limit := countNodes(*root)*depth(*root) + 1
	for i := 0; ; i++ {
		if i == limit {
			return jerrors.Invariant("lookup placement did not settle after %d passes", limit)
		}
		p.changed = false
		if err := walkLists(root, p.collapse); err != nil {
			return err
		}
		if !p.changed {
			break
		}
	}
	return walkLists(root, p.sort)
}

type placer struct {
	arena   *Arena
	changed bool
}

// expand prepends to each list the lookups its own statements need.
func (p *placer) expand(s scope) error {
	var keys []string
	for _, n := range *s.list {
		if n.Kind == NodeLookup {
			continue
		}
		for _, k := range n.Needs {
			if p.arena.Get(k) == nil {
				return jerrors.Invariant("statement needs unknown lookup %q", k)
			}
			if !hasLookup(*s.list, k) {
				keys = mergeKeys(keys, k)
			}
		}
	}
	if len(keys) == 0 {
		return nil
	}
	out := make([]*Node, 0, len(keys)+len(*s.list))
	for _, k := range keys {
		out = append(out, lookupNode(k))
	}
	*s.list = append(out, *s.list...)
	return nil
}

func (p *placer) collapse(s scope) error {
	if s.parent == nil {
		return nil
	}
	parentList := s.ancestors[len(s.ancestors)-1]
	for _, key := range lookupKeys(*s.list) {
		switch {
		case declaredIn(s.ancestors, key):
			removeLookup(s.list, key)
		case s.parent.IsLoop():
			removeLookup(s.list, key)
			insertLookup(parentList, key)
		case s.parent.IsBranching() && s.parent.Exhaustive && len(s.siblings) > 0 && declaredInAll(s.siblings, key):
			removeLookup(s.list, key)
			for _, sib := range s.siblings {
				removeLookup(sib, key)
			}
			insertLookup(parentList, key)
		default:
			continue
		}
		p.changed = true
	}
	return nil
}

func declaredIn(lists []*[]*Node, key string) bool {
	for _, l := range lists {
		if hasLookup(*l, key) {
			return true
		}
	}
	return false
}

func declaredInAll(lists []*[]*Node, key string) bool {
	for _, l := range lists {
		if !hasLookup(*l, key) {
			return false
		}
	}
	return true
}

// sort orders the lookup head of each list so every lookup follows the
// lookups of the same list its initialiser reads.
func (p *placer) sort(s scope) error {
	head := headLen(*s.list)
	if head < 2 {
		return nil
	}
	keys := lookupKeys((*s.list)[:head])
	sorted, err := sortKeys(keys, func(k string) string { return p.arena.Get(k).Init })
	if err != nil {
		return err
	}
	for i, k := range sorted {
		(*s.list)[i] = lookupNode(k)
	}
	return nil
}

// SortLookups orders lookups so that each follows the ones its initialiser
// reads. Dependencies on lookups outside the slice are ignored.
func SortLookups(lookups []*Lookup) ([]*Lookup, error) {
	byVar := make(map[string]*Lookup, len(lookups))
	keys := make([]string, len(lookups))
	for i, l := range lookups {
		byVar[l.Var] = l
		keys[i] = l.Var
	}
	sorted, err := sortKeys(keys, func(k string) string { return byVar[k].Init })
	if err != nil {
		return nil, err
	}
	out := make([]*Lookup, len(sorted))
	for i, k := range sorted {
		out[i] = byVar[k]
	}
	return out, nil
}

// sortKeys is Kahn's algorithm over the "initialiser mentions" relation,
// preferring the original order among ready keys.
func sortKeys(keys []string, init func(string) string) ([]string, error) {
	deps := make([][]int, len(keys))
	indegree := make([]int, len(keys))
	for i, k := range keys {
		text := init(k)
		for j, other := range keys {
			if i != j && containsToken(text, other) {
				deps[j] = append(deps[j], i)
				indegree[i]++
			}
		}
	}

	out := make([]string, 0, len(keys))
	done := make([]bool, len(keys))
	for len(out) < len(keys) {
		next := -1
		for i := range keys {
			if !done[i] && indegree[i] == 0 {
				next = i
				break
			}
		}
		if next < 0 {
			var cycle []string
			for i, k := range keys {
				if !done[i] {
					cycle = append(cycle, k)
				}
			}
			return nil, jerrors.Invariant("cycle detected among lookups: %s", strings.Join(cycle, ", "))
		}
		done[next] = true
		out = append(out, keys[next])
		for _, d := range deps[next] {
			indegree[d]--
		}
	}
	return out, nil
}
