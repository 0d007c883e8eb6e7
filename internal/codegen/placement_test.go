package codegen

import (
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/jinix-lang/jinix/internal/ast"
	jerrors "github.com/jinix-lang/jinix/internal/errors"
)

// checkPlacement verifies a placed tree: lookups lead their list, every
// need is declared on the path to its statement, no key is declared twice
// on one path and each lookup follows the lookups it reads.
func checkPlacement(t *testing.T, root []*Node, arena *Arena) {
	t.Helper()
	all := arena.All()
	var visit func(list []*Node, visible []string, path string)
	visit = func(list []*Node, visible []string, path string) {
		own := lookupKeys(list)
		if headLen(list) != len(own) {
			t.Errorf("%s: lookup placed after a statement", path)
		}
		for i, k := range own {
			if hasKey(visible, k) {
				t.Errorf("%s: %s declared again", path, k)
			}
			for _, dep := range all {
				if dep.Var == k || !containsToken(arena.Get(k).Init, dep.Var) {
					continue
				}
				if !hasKey(visible, dep.Var) && !hasKey(own[:i], dep.Var) {
					t.Errorf("%s: %s reads %s before it is declared", path, k, dep.Var)
				}
			}
		}
		scope := append(append([]string(nil), visible...), own...)
		for i, n := range list {
			if n.Kind == NodeLookup {
				continue
			}
			for _, need := range n.Needs {
				if !hasKey(scope, need) {
					t.Errorf("%s[%d]: %s not declared", path, i, need)
				}
			}
			for j, b := range n.Branches {
				visit(b, scope, fmt.Sprintf("%s[%d].%d", path, i, j))
			}
		}
	}
	visit(root, nil, "root")
}

type treeGen struct {
	rng   *rand.Rand
	arena *Arena
	refs  []ast.MethodRef
}

func newTreeGen(seed int64) *treeGen {
	g := &treeGen{rng: rand.New(rand.NewSource(seed)), arena: NewArena()}
	for _, owner := range []string{"A", "b.B", "C$D"} {
		for _, name := range []string{"x", "y"} {
			g.refs = append(g.refs, ast.MethodRef{Owner: owner, Name: name, Return: tVoid})
		}
	}
	return g
}

func (g *treeGen) statement() *Node {
	if g.rng.Intn(4) == 0 {
		return plain("nothing();", nil)
	}
	classKey, methodKey, err := g.arena.Method(g.refs[g.rng.Intn(len(g.refs))])
	if err != nil {
		panic(err)
	}
	return plain("use("+methodKey+");", []string{classKey, methodKey})
}

func (g *treeGen) list(depth int) []*Node {
	n := g.rng.Intn(4)
	out := make([]*Node, 0, n)
	for i := 0; i < n; i++ {
		if depth > 0 && g.rng.Intn(3) == 0 {
			out = append(out, g.construct(depth-1))
			continue
		}
		out = append(out, g.statement())
	}
	return out
}

func (g *treeGen) construct(depth int) *Node {
	var n *Node
	switch g.rng.Intn(4) {
	case 0:
		n = &Node{Kind: NodeIf, Code: "if (c) {\n" + Slot + "\n}"}
		if g.rng.Intn(2) == 0 {
			n.Code += " else {\n" + Slot + "\n}"
			n.Exhaustive = true
		}
	case 1:
		n = &Node{Kind: NodeSwitch, Exhaustive: g.rng.Intn(2) == 0}
		n.Code = "switch (c) {\n" + strings.Repeat("case 0: {\n"+Slot+"\n}\n", 1+g.rng.Intn(3)) + "}"
	case 2:
		n = &Node{Kind: NodeWhile, Code: "while (c) {\n" + Slot + "\n}"}
	default:
		n = &Node{Kind: NodeFor, Code: "for (;;) {\n" + Slot + "\n}"}
	}
	if g.rng.Intn(3) == 0 {
		n.Needs = g.statement().Needs
	}
	for i := strings.Count(n.Code, Slot); i > 0; i-- {
		n.Branches = append(n.Branches, g.list(depth))
	}
	return n
}

func TestPlaceRandomTrees(t *testing.T) {
	for seed := int64(0); seed < 200; seed++ {
		g := newTreeGen(seed)
		root := g.list(4)
		if err := Place(&root, g.arena); err != nil {
			t.Fatalf("seed %d: %v", seed, err)
		}
		checkPlacement(t, root, g.arena)
		if _, err := Render(root, g.arena, ""); err != nil {
			t.Fatalf("seed %d: Render: %v", seed, err)
		}
	}
}

func TestPlaceTranspiledScenarios(t *testing.T) {
	decls := []*ast.MethodDecl{
		methodOf("a", tVoid, &ast.If{Cond: flag(),
			Then: block(do(invoke("call", tVoid)), &ast.While{Cond: flag(), Body: block(do(invoke("other", tVoid)))}),
			Else: block(do(invoke("other", tVoid)))}),
		methodOf("b", tVoid, &ast.For{Body: block(&ast.If{Cond: flag(),
			Then: block(do(staticInvoke("p.Q", "s", tVoid)))})}),
	}
	for _, decl := range decls {
		m := &method{decl: decl, arena: NewArena(), discarded: ast.DiscardedResults(decl.Body)}
		nodes, err := m.block(decl.Body.Stmts)
		if err != nil {
			t.Fatal(err)
		}
		if err := Place(&nodes, m.arena); err != nil {
			t.Fatal(err)
		}
		checkPlacement(t, nodes, m.arena)
	}
}

func TestPlaceUnknownNeed(t *testing.T) {
	root := []*Node{plain("x();", []string{"missing"})}
	err := Place(&root, NewArena())
	if !jerrors.IsCategory(err, jerrors.CategoryInvariant) {
		t.Fatalf("Place error = %v", err)
	}
}

func TestSortKeysCycle(t *testing.T) {
	inits := map[string]string{
		"a": "make(b)",
		"b": "make(c)",
		"c": "make(a)",
		"d": "make()",
	}
	_, err := sortKeys([]string{"a", "b", "c", "d"}, func(k string) string { return inits[k] })
	if !jerrors.IsCategory(err, jerrors.CategoryInvariant) {
		t.Fatalf("sortKeys error = %v", err)
	}
	if !strings.Contains(err.Error(), "cycle detected among lookups: a, b, c") {
		t.Errorf("error = %v", err)
	}
}

func TestSortLookupsDependencyOrder(t *testing.T) {
	arena := NewArena()
	_, key, err := arena.Method(ast.MethodRef{Owner: "A", Name: "run", Return: tVoid})
	if err != nil {
		t.Fatal(err)
	}
	method := arena.Get(key)
	class := arena.Get(ClassVar("A"))
	sorted, err := SortLookups([]*Lookup{method, class})
	if err != nil {
		t.Fatal(err)
	}
	if sorted[0] != class || sorted[1] != method {
		t.Errorf("order = %s, %s", sorted[0].Var, sorted[1].Var)
	}
}

func TestContainsToken(t *testing.T) {
	tests := []struct {
		s, tok string
		want   bool
	}{
		{"env->GetMethodID(class_A, \"x\", \"()V\")", "class_A", true},
		{"env->GetMethodID(class_AB, \"x\", \"()V\")", "class_A", false},
		{"xclass_A", "class_A", false},
		{"f(class_A)", "class_A", true},
		{"class_A_class_A", "class_A", false},
	}
	for _, tt := range tests {
		if got := containsToken(tt.s, tt.tok); got != tt.want {
			t.Errorf("containsToken(%q, %q) = %v", tt.s, tt.tok, got)
		}
	}
}

func TestRenderSlotMismatch(t *testing.T) {
	n := &Node{Kind: NodeIf, Code: "if (x) {\n" + Slot + "\n} else {\n" + Slot + "\n}", Branches: [][]*Node{nil}}
	_, err := Render([]*Node{n}, NewArena(), "")
	if !jerrors.IsCategory(err, jerrors.CategoryInvariant) {
		t.Fatalf("Render error = %v", err)
	}
}

func TestRenderEmptyBranch(t *testing.T) {
	n := &Node{Kind: NodeIf, Code: "if (x) {\n" + Slot + "\n}", Branches: [][]*Node{nil}}
	got, err := Render([]*Node{n}, NewArena(), "")
	if err != nil {
		t.Fatal(err)
	}
	if got != "if (x) {\n}" {
		t.Errorf("Render = %q", got)
	}
}
