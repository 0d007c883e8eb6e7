package codegen

import (
	"strings"

	jerrors "github.com/jinix-lang/jinix/internal/errors"
)

// NodeKind classifies block tree nodes.
type NodeKind int

const (
	NodePlain NodeKind = iota
	NodeLookup
	NodeIf
	NodeFor
	NodeWhile
	NodeDoWhile
	NodeSwitch
)

// Slot marks, inside a construct's Code template, where the rendering of the
// next branch list is spliced in.
const Slot = "\x1f"

// Node is one statement of the block tree. Constructs keep their bodies as
// separate branch lists so lookups can still be moved between scopes after
// transpilation.
type Node struct {
	Code     string
	Lookup   string // key of the lookup, for NodeLookup
	Needs    []string
	Branches [][]*Node
	Kind     NodeKind
	// Exhaustive marks a branching construct in which some branch runs on
	// every path (if with else, switch with default).
	Exhaustive bool
}

func plain(code string, needs []string) *Node {
	return &Node{Kind: NodePlain, Code: code, Needs: needs}
}

func lookupNode(key string) *Node {
	return &Node{Kind: NodeLookup, Lookup: key}
}

// IsLoop reports whether the node is a loop construct.
func (n *Node) IsLoop() bool {
	return n.Kind == NodeFor || n.Kind == NodeWhile || n.Kind == NodeDoWhile
}

// IsBranching reports whether the node selects one of several paths.
func (n *Node) IsBranching() bool {
	return n.Kind == NodeIf || n.Kind == NodeSwitch
}

func (n *Node) validate() error {
	if got := strings.Count(n.Code, Slot); got != len(n.Branches) {
		return jerrors.Invariant("block template has %d slots for %d branch lists", got, len(n.Branches))
	}
	return nil
}

// lookupKeys lists the keys of the lookup nodes in list, in order.
func lookupKeys(list []*Node) []string {
	var keys []string
	for _, n := range list {
		if n.Kind == NodeLookup {
			keys = append(keys, n.Lookup)
		}
	}
	return keys
}

func hasLookup(list []*Node, key string) bool {
	for _, n := range list {
		if n.Kind == NodeLookup && n.Lookup == key {
			return true
		}
	}
	return false
}

func removeLookup(list *[]*Node, key string) bool {
	for i, n := range *list {
		if n.Kind == NodeLookup && n.Lookup == key {
			*list = append((*list)[:i:i], (*list)[i+1:]...)
			return true
		}
	}
	return false
}

// insertLookup places key at the end of the lookup head of list unless it
// is already there.
func insertLookup(list *[]*Node, key string) {
	if hasLookup(*list, key) {
		return
	}
	head := headLen(*list)
	out := make([]*Node, 0, len(*list)+1)
	out = append(out, (*list)[:head]...)
	out = append(out, lookupNode(key))
	out = append(out, (*list)[head:]...)
	*list = out
}

// headLen counts the leading lookup nodes of list.
func headLen(list []*Node) int {
	for i, n := range list {
		if n.Kind != NodeLookup {
			return i
		}
	}
	return len(list)
}

func countNodes(list []*Node) int {
	total := 0
	for _, n := range list {
		total++
		for _, b := range n.Branches {
			total += countNodes(b)
		}
	}
	return total
}

func depth(list []*Node) int {
	max := 0
	for _, n := range list {
		for _, b := range n.Branches {
			if d := depth(b); d > max {
				max = d
			}
		}
	}
	return max + 1
}
