package codegen

import (
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/jinix-lang/jinix/internal/ast"
	jerrors "github.com/jinix-lang/jinix/internal/errors"
	"github.com/jinix-lang/jinix/internal/jni"
)

// block transpiles a statement list. Nested bare blocks are flattened into
// the enclosing list.
func (m *method) block(list []ast.Stmt) ([]*Node, error) {
	var out []*Node
	for _, s := range list {
		nodes, err := m.stmt(s)
		if err != nil {
			return nil, err
		}
		out = append(out, nodes...)
	}
	return out, nil
}

// branch transpiles the body of a construct.
func (m *method) branch(s ast.Stmt) ([]*Node, error) {
	switch s := s.(type) {
	case nil:
		return nil, nil
	case *ast.Block:
		return m.block(s.Stmts)
	}
	return m.stmt(s)
}

func (m *method) stmt(s ast.Stmt) ([]*Node, error) {
	nodes, err := m.stmtNodes(s)
	if err != nil {
		return nil, at(err, s.Position())
	}
	return nodes, nil
}

// at records the source position on err unless a nested statement already
// did.
func at(err error, pos ast.Pos) error {
	var se *jerrors.StandardError
	if pos.Line == 0 || !stderrors.As(err, &se) {
		return err
	}
	if _, ok := se.Context["at"]; !ok {
		se.With("at", pos.String())
	}
	return err
}

func (m *method) stmtNodes(s ast.Stmt) ([]*Node, error) {
	switch s := s.(type) {
	case *ast.Block:
		return m.block(s.Stmts)
	case *ast.ExprStmt:
		f, err := m.expr(s.X)
		if err != nil {
			return nil, err
		}
		return []*Node{plain(f.Code+";", f.Needs)}, nil
	case *ast.If:
		return m.ifStmt(s)
	case *ast.While:
		return m.loop(NodeWhile, "while (%s) {\n"+Slot+"\n}", s.Cond, s.Body)
	case *ast.DoWhile:
		return m.loop(NodeDoWhile, "do {\n"+Slot+"\n} while (%s);", s.Cond, s.Body)
	case *ast.For:
		return m.forStmt(s)
	case *ast.ForEach:
		return m.forEach(s)
	case *ast.Switch:
		return m.switchStmt(s)
	case *ast.Break:
		if s.Label != "" {
			return nil, jerrors.Unsupported("labeled break", s.Label)
		}
		return []*Node{plain("break;", nil)}, nil
	case *ast.Continue:
		if s.Label != "" {
			return nil, jerrors.Unsupported("labeled continue", s.Label)
		}
		return []*Node{plain("continue;", nil)}, nil
	case *ast.Return:
		if s.Value == nil {
			return []*Node{plain("return;", nil)}, nil
		}
		f, err := m.expr(s.Value)
		if err != nil {
			return nil, err
		}
		return []*Node{plain("return "+m.toRef(f)+";", f.Needs)}, nil
	case *ast.Throw:
		return m.throw(s)
	case *ast.Empty:
		return []*Node{plain(";", nil)}, nil
	case *ast.Unsupported:
		return nil, jerrors.Unsupported(s.Construct, "")
	}
	return nil, jerrors.Unsupported(fmt.Sprintf("statement %T", s), "")
}

func (m *method) ifStmt(s *ast.If) ([]*Node, error) {
	cond, err := m.expr(s.Cond)
	if err != nil {
		return nil, err
	}
	then, err := m.branch(s.Then)
	if err != nil {
		return nil, err
	}
	n := &Node{Kind: NodeIf, Needs: cond.Needs, Branches: [][]*Node{then}}
	if s.Else == nil {
		n.Code = "if (" + cond.Code + ") {\n" + Slot + "\n}"
		return []*Node{n}, nil
	}
	els, err := m.branch(s.Else)
	if err != nil {
		return nil, err
	}
	n.Code = "if (" + cond.Code + ") {\n" + Slot + "\n} else {\n" + Slot + "\n}"
	n.Branches = append(n.Branches, els)
	n.Exhaustive = true
	return []*Node{n}, nil
}

func (m *method) loop(kind NodeKind, format string, cond ast.Expr, body ast.Stmt) ([]*Node, error) {
	c, err := m.expr(cond)
	if err != nil {
		return nil, err
	}
	b, err := m.branch(body)
	if err != nil {
		return nil, err
	}
	return []*Node{{
		Kind:     kind,
		Code:     fmt.Sprintf(format, c.Code),
		Needs:    c.Needs,
		Branches: [][]*Node{b},
	}}, nil
}

func (m *method) exprList(list []ast.Expr) (string, []string, error) {
	var needs []string
	parts := make([]string, 0, len(list))
	for _, e := range list {
		f, err := m.expr(e)
		if err != nil {
			return "", nil, err
		}
		needs = mergeKeys(needs, f.Needs...)
		parts = append(parts, f.Code)
	}
	return strings.Join(parts, ", "), needs, nil
}

func (m *method) forStmt(s *ast.For) ([]*Node, error) {
	init, needs, err := m.exprList(s.Init)
	if err != nil {
		return nil, err
	}
	cond := ""
	if s.Cond != nil {
		c, err := m.expr(s.Cond)
		if err != nil {
			return nil, err
		}
		cond = " " + c.Code
		needs = mergeKeys(needs, c.Needs...)
	}
	update, updateNeeds, err := m.exprList(s.Update)
	if err != nil {
		return nil, err
	}
	if update != "" {
		update = " " + update
	}
	body, err := m.branch(s.Body)
	if err != nil {
		return nil, err
	}
	return []*Node{{
		Kind:     NodeFor,
		Code:     "for (" + init + ";" + cond + ";" + update + ") {\n" + Slot + "\n}",
		Needs:    mergeKeys(needs, updateNeeds...),
		Branches: [][]*Node{body},
	}}, nil
}

func (m *method) forEach(s *ast.ForEach) ([]*Node, error) {
	if s.Var == nil || len(s.Var.Vars) != 1 {
		return nil, jerrors.Invariant("enhanced for without a single loop variable")
	}
	v, err := m.varDecl(s.Var)
	if err != nil {
		return nil, err
	}
	it, err := m.expr(s.Iterable)
	if err != nil {
		return nil, err
	}
	body, err := m.branch(s.Body)
	if err != nil {
		return nil, err
	}
	return []*Node{{
		Kind:     NodeFor,
		Code:     "for (" + v.Code + " : " + it.Code + ") {\n" + Slot + "\n}",
		Needs:    it.Needs,
		Branches: [][]*Node{body},
	}}, nil
}

// switchStmt renders every group with a body as "case L: {" ... "}". Groups
// without statements only contribute labels and fall through. Arrow rules
// never fall through, so they get a break unless they already leave.
func (m *method) switchStmt(s *ast.Switch) ([]*Node, error) {
	sel, err := m.expr(s.Selector)
	if err != nil {
		return nil, err
	}
	n := &Node{Kind: NodeSwitch, Needs: sel.Needs}
	var tmpl strings.Builder
	tmpl.WriteString("switch (" + sel.Code + ") {\n")

	sawDefault := false
	for _, entry := range s.Entries {
		var labels []string
		if entry.Default() {
			labels = append(labels, "default:")
			sawDefault = true
		}
		for _, l := range entry.Labels {
			f, err := m.expr(l)
			if err != nil {
				return nil, at(err, entry.Position())
			}
			n.Needs = mergeKeys(n.Needs, f.Needs...)
			labels = append(labels, "case "+f.Code+":")
		}
		if len(entry.Body) == 0 && !entry.Rule {
			tmpl.WriteString(strings.Join(labels, "\n") + "\n")
			continue
		}

		body, err := m.block(entry.Body)
		if err != nil {
			return nil, err
		}
		if entry.Rule && !leaves(entry.Body) {
			body = append(body, plain("break;", nil))
		}
		tmpl.WriteString(strings.Join(labels, "\n") + " {\n" + Slot + "\n}\n")
		n.Branches = append(n.Branches, body)
		// A default group reaches this body directly or by falling
		// through, so every selector value runs some branch.
		if sawDefault {
			n.Exhaustive = true
		}
	}
	tmpl.WriteString("}")
	n.Code = tmpl.String()
	return []*Node{n}, nil
}

// leaves reports whether a statement list always transfers control out of
// its switch group.
func leaves(list []ast.Stmt) bool {
	if len(list) == 0 {
		return false
	}
	switch s := list[len(list)-1].(type) {
	case *ast.Break, *ast.Continue, *ast.Return, *ast.Throw:
		return true
	case *ast.Block:
		return leaves(s.Stmts)
	}
	return false
}

// throw raises the exception and returns immediately so native code stops
// running with the exception pending.
func (m *method) throw(s *ast.Throw) ([]*Node, error) {
	f, err := m.expr(s.Value)
	if err != nil {
		return nil, err
	}
	ret := "return;"
	if zero := jni.ZeroValue(m.decl.Return); zero != "" {
		ret = "return " + zero + ";"
	}
	return []*Node{plain("env->Throw((jthrowable)"+f.Code+");\n"+ret, f.Needs)}, nil
}
