package codegen

import (
	"strings"

	jerrors "github.com/jinix-lang/jinix/internal/errors"
)

// DefaultIndent is one nesting level of generated code.
const DefaultIndent = "    "

type renderer struct {
	arena  *Arena
	indent string
}

// Render turns a block tree into source text. Lookup nodes are resolved
// through arena.
func Render(nodes []*Node, arena *Arena, indent string) (string, error) {
	if indent == "" {
		indent = DefaultIndent
	}
	r := &renderer{arena: arena, indent: indent}
	return r.list(nodes)
}

func (r *renderer) list(nodes []*Node) (string, error) {
	parts := make([]string, 0, len(nodes))
	for _, n := range nodes {
		s, err := r.node(n)
		if err != nil {
			return "", err
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, "\n"), nil
}

func (r *renderer) node(n *Node) (string, error) {
	switch n.Kind {
	case NodeLookup:
		l := r.arena.Get(n.Lookup)
		if l == nil {
			return "", jerrors.Invariant("lookup %q is not in the arena", n.Lookup)
		}
		return l.Statement(), nil
	case NodePlain:
		return n.Code, nil
	}
	if err := n.validate(); err != nil {
		return "", err
	}

	parts := strings.Split(n.Code, Slot)
	var sb strings.Builder
	for i, part := range parts {
		if i > 0 && strings.HasPrefix(part, "\n") && emptyBranch(n, i-1) {
			// Drop the line the empty branch would have occupied.
			part = part[1:]
		}
		sb.WriteString(part)
		if i == len(parts)-1 {
			break
		}
		body, err := r.list(n.Branches[i])
		if err != nil {
			return "", err
		}
		sb.WriteString(indentText(body, r.indent))
	}
	return sb.String(), nil
}

func emptyBranch(n *Node, i int) bool {
	return len(n.Branches[i]) == 0
}

// indentText prefixes every line with one level of indentation, except
// empty lines and lines continuing a backslash-terminated line, whose
// leading whitespace belongs to a string literal.
func indentText(text, indent string) string {
	if text == "" {
		return ""
	}
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if line == "" || i > 0 && strings.HasSuffix(lines[i-1], "\\") {
			continue
		}
		lines[i] = indent + line
	}
	return strings.Join(lines, "\n")
}
