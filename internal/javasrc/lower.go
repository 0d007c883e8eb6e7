package javasrc

import (
	stderrors "errors"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/jinix-lang/jinix/internal/ast"
	jerrors "github.com/jinix-lang/jinix/internal/errors"
)

// Lower resolves the body of m into an ast.MethodDecl. Constructs outside the
// transpiled subset become ast.Unsupported nodes so the generator reports them
// with their position; names that cannot be resolved fail here.
func (ix *Index) Lower(m *Method) (*ast.MethodDecl, error) {
	decl := &ast.MethodDecl{
		Class:        m.Class.Name,
		Name:         m.Name,
		Params:       m.Params,
		Return:       m.Return,
		Pos:          m.Pos,
		Static:       m.Static,
		Abstract:     m.Abstract,
		Synchronized: m.Synchronized,
	}
	if m.body == nil {
		return decl, nil
	}
	if m.Class.file == nil || m.Class.file.tree == nil {
		return nil, jerrors.Invariant("source of %s is already closed", m.Class.Name)
	}
	l := &lowerer{ix: ix, file: m.Class.file, class: m.Class, method: m}
	l.push()
	for _, p := range m.Params {
		l.declare(p.Name, p.Type)
	}
	body, err := l.block(m.body)
	if err != nil {
		return nil, jerrors.InMethod(err, m.Class.Name, m.Name)
	}
	decl.Body = body
	return decl, nil
}

type lowerer struct {
	ix     *Index
	file   *File
	class  *Class
	method *Method
	scopes []map[string]ast.Type
}

func (l *lowerer) push() { l.scopes = append(l.scopes, make(map[string]ast.Type)) }
func (l *lowerer) pop()  { l.scopes = l.scopes[:len(l.scopes)-1] }

func (l *lowerer) declare(name string, t ast.Type) { l.scopes[len(l.scopes)-1][name] = t }

func (l *lowerer) local(name string) (ast.Type, bool) {
	for i := len(l.scopes) - 1; i >= 0; i-- {
		if t, ok := l.scopes[i][name]; ok {
			return t, true
		}
	}
	return ast.Type{}, false
}

func (l *lowerer) text(n *sitter.Node) string { return l.file.text(n) }

func (l *lowerer) typeOf(n *sitter.Node) ast.Type {
	return l.ix.resolveType(n, l.class, l.method.typeParams)
}

// atNode records the position of n on err unless an inner node already did.
func atNode(err error, n *sitter.Node) error {
	var se *jerrors.StandardError
	if !stderrors.As(err, &se) {
		return err
	}
	if _, ok := se.Context["at"]; !ok {
		se.With("at", position(n).String())
	}
	return err
}

// ===== Statements =====

func (l *lowerer) block(n *sitter.Node) (*ast.Block, error) {
	l.push()
	defer l.pop()
	b := &ast.Block{At: position(n)}
	for _, c := range children(n) {
		switch {
		case c.Kind() == "{" || c.Kind() == "}" || isComment(c):
			continue
		}
		s, err := l.stmt(c)
		if err != nil {
			return nil, err
		}
		b.Stmts = append(b.Stmts, s)
	}
	return b, nil
}

func (l *lowerer) stmt(n *sitter.Node) (ast.Stmt, error) {
	s, err := l.stmtKind(n)
	if err != nil {
		return nil, atNode(err, n)
	}
	return s, nil
}

func (l *lowerer) stmtKind(n *sitter.Node) (ast.Stmt, error) {
	at := position(n)
	switch n.Kind() {
	case "block":
		return l.block(n)
	case ";":
		return &ast.Empty{At: at}, nil
	case "expression_statement":
		x, err := l.expr(firstNamed(n))
		if err != nil {
			return nil, err
		}
		return &ast.ExprStmt{X: x, At: at}, nil
	case "local_variable_declaration":
		d, err := l.varDecl(n)
		if err != nil {
			return nil, err
		}
		if d == nil {
			return &ast.Unsupported{Construct: "C-style array declarator", At: at}, nil
		}
		return &ast.ExprStmt{X: d, At: at}, nil
	case "if_statement":
		return l.ifStmt(n)
	case "while_statement":
		cond, err := l.condition(n.ChildByFieldName("condition"))
		if err != nil {
			return nil, err
		}
		body, err := l.scoped(n.ChildByFieldName("body"))
		if err != nil {
			return nil, err
		}
		return &ast.While{Cond: cond, Body: body, At: at}, nil
	case "do_statement":
		body, err := l.scoped(n.ChildByFieldName("body"))
		if err != nil {
			return nil, err
		}
		cond, err := l.condition(n.ChildByFieldName("condition"))
		if err != nil {
			return nil, err
		}
		return &ast.DoWhile{Body: body, Cond: cond, At: at}, nil
	case "for_statement":
		return l.forStmt(n)
	case "enhanced_for_statement":
		return l.forEach(n)
	case "switch_expression":
		return l.switchStmt(n)
	case "break_statement":
		s := &ast.Break{At: at}
		if id := firstNamed(n); id != nil {
			s.Label = l.text(id)
		}
		return s, nil
	case "continue_statement":
		s := &ast.Continue{At: at}
		if id := firstNamed(n); id != nil {
			s.Label = l.text(id)
		}
		return s, nil
	case "return_statement":
		s := &ast.Return{At: at}
		if v := firstNamed(n); v != nil {
			x, err := l.expr(v)
			if err != nil {
				return nil, err
			}
			s.Value = x
		}
		return s, nil
	case "throw_statement":
		x, err := l.expr(firstNamed(n))
		if err != nil {
			return nil, err
		}
		return &ast.Throw{Value: x, At: at}, nil
	}
	construct := strings.TrimSuffix(strings.ReplaceAll(n.Kind(), "_", " "), " statement")
	return &ast.Unsupported{Construct: construct + " statement", At: at}, nil
}

// scoped lowers a statement in its own variable scope.
func (l *lowerer) scoped(n *sitter.Node) (ast.Stmt, error) {
	if n == nil {
		return nil, jerrors.Invariant("missing statement")
	}
	l.push()
	defer l.pop()
	return l.stmt(n)
}

// condition lowers the parenthesised condition of a statement without its
// parentheses.
func (l *lowerer) condition(n *sitter.Node) (ast.Expr, error) {
	if n == nil {
		return nil, jerrors.Invariant("missing condition")
	}
	if n.Kind() == "parenthesized_expression" {
		n = firstNamed(n)
	}
	return l.expr(n)
}

func (l *lowerer) ifStmt(n *sitter.Node) (ast.Stmt, error) {
	cond, err := l.condition(n.ChildByFieldName("condition"))
	if err != nil {
		return nil, err
	}
	then, err := l.scoped(n.ChildByFieldName("consequence"))
	if err != nil {
		return nil, err
	}
	s := &ast.If{Cond: cond, Then: then, At: position(n)}
	if alt := n.ChildByFieldName("alternative"); alt != nil {
		if s.Else, err = l.scoped(alt); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// varDecl lowers a local variable declaration and declares its names. A nil
// declaration means a declarator carried its own array dimensions.
func (l *lowerer) varDecl(n *sitter.Node) (*ast.VarDecl, error) {
	typeNode := n.ChildByFieldName("type")
	d := &ast.VarDecl{At: position(n), Final: l.file.modifiers(n).has("final")}
	if typeNode != nil && l.text(typeNode) == "var" {
		d.Inferred = true
	} else {
		d.Typ = l.typeOf(typeNode)
	}
	for _, dn := range fieldChildren(n, "declarator") {
		if dn.ChildByFieldName("dimensions") != nil {
			return nil, nil
		}
		v := &ast.Declarator{Name: l.text(dn.ChildByFieldName("name"))}
		if init := dn.ChildByFieldName("value"); init != nil {
			x, err := l.expr(init)
			if err != nil {
				return nil, err
			}
			v.Init = x
			if d.Inferred && d.Typ.Kind == ast.TypeUnresolved {
				d.Typ = x.Type()
			}
		} else if d.Inferred {
			return nil, jerrors.Invalid("var %s has no initializer", v.Name)
		}
		d.Vars = append(d.Vars, v)
		l.declare(v.Name, d.Typ)
	}
	return d, nil
}

func (l *lowerer) forStmt(n *sitter.Node) (ast.Stmt, error) {
	l.push()
	defer l.pop()
	s := &ast.For{At: position(n)}
	for _, in := range fieldChildren(n, "init") {
		if in.Kind() == "local_variable_declaration" {
			d, err := l.varDecl(in)
			if err != nil {
				return nil, err
			}
			if d == nil {
				return &ast.Unsupported{Construct: "C-style array declarator", At: position(in)}, nil
			}
			s.Init = append(s.Init, d)
			continue
		}
		x, err := l.expr(in)
		if err != nil {
			return nil, err
		}
		s.Init = append(s.Init, x)
	}
	if c := n.ChildByFieldName("condition"); c != nil {
		x, err := l.expr(c)
		if err != nil {
			return nil, err
		}
		s.Cond = x
	}
	for _, u := range fieldChildren(n, "update") {
		x, err := l.expr(u)
		if err != nil {
			return nil, err
		}
		s.Update = append(s.Update, x)
	}
	body, err := l.scoped(n.ChildByFieldName("body"))
	if err != nil {
		return nil, err
	}
	s.Body = body
	return s, nil
}

func (l *lowerer) forEach(n *sitter.Node) (ast.Stmt, error) {
	l.push()
	defer l.pop()
	it, err := l.expr(n.ChildByFieldName("value"))
	if err != nil {
		return nil, err
	}
	typeNode := n.ChildByFieldName("type")
	v := &ast.VarDecl{At: position(n), Final: l.file.modifiers(n).has("final")}
	switch {
	case typeNode != nil && l.text(typeNode) == "var":
		v.Inferred = true
		if elem := it.Type().Elem; elem != nil {
			v.Typ = *elem
		}
	default:
		v.Typ = arrayOf(l.typeOf(typeNode), l.file.dims(n.ChildByFieldName("dimensions")))
	}
	name := l.text(n.ChildByFieldName("name"))
	v.Vars = []*ast.Declarator{{Name: name}}
	l.declare(name, v.Typ)
	body, err := l.scoped(n.ChildByFieldName("body"))
	if err != nil {
		return nil, err
	}
	return &ast.ForEach{Var: v, Iterable: it, Body: body, At: position(n)}, nil
}

// switchStmt lowers a switch. Every label of a colon group gets its own
// entry and only the last one carries the statements, so fall-through stays
// explicit.
func (l *lowerer) switchStmt(n *sitter.Node) (ast.Stmt, error) {
	at := position(n)
	sel, err := l.condition(n.ChildByFieldName("condition"))
	if err != nil {
		return nil, err
	}
	if t := sel.Type(); !t.IsNumeric() || t.Kind == ast.TypeFloat || t.Kind == ast.TypeDouble || t.Kind == ast.TypeLong {
		return &ast.Unsupported{Construct: "switch on " + t.String(), At: at}, nil
	}
	body := n.ChildByFieldName("body")
	if body == nil {
		return nil, jerrors.Invariant("switch without a body")
	}
	l.push()
	defer l.pop()
	s := &ast.Switch{Selector: sel, At: at}
	for _, g := range namedChildren(body) {
		switch g.Kind() {
		case "switch_block_statement_group":
			var entries []*ast.SwitchEntry
			var stmts []ast.Stmt
			for _, c := range namedChildren(g) {
				if isComment(c) {
					continue
				}
				if c.Kind() == "switch_label" {
					e, err := l.label(c)
					if err != nil {
						return nil, err
					}
					entries = append(entries, e)
					continue
				}
				st, err := l.stmt(c)
				if err != nil {
					return nil, err
				}
				stmts = append(stmts, st)
			}
			if len(entries) == 0 {
				return nil, jerrors.Invariant("switch group without a label")
			}
			entries[len(entries)-1].Body = stmts
			s.Entries = append(s.Entries, entries...)
		case "switch_rule":
			var entry *ast.SwitchEntry
			for _, c := range namedChildren(g) {
				if isComment(c) {
					continue
				}
				if c.Kind() == "switch_label" {
					if entry, err = l.label(c); err != nil {
						return nil, err
					}
					entry.Rule = true
					continue
				}
				if entry == nil {
					return nil, jerrors.Invariant("switch rule without a label")
				}
				st, err := l.scoped(c)
				if err != nil {
					return nil, err
				}
				if b, ok := st.(*ast.Block); ok {
					entry.Body = b.Stmts
				} else {
					entry.Body = []ast.Stmt{st}
				}
			}
			if entry != nil {
				s.Entries = append(s.Entries, entry)
			}
		}
	}
	return s, nil
}

func (l *lowerer) label(n *sitter.Node) (*ast.SwitchEntry, error) {
	e := &ast.SwitchEntry{At: position(n)}
	for _, c := range namedChildren(n) {
		if isComment(c) {
			continue
		}
		x, err := l.expr(c)
		if err != nil {
			return nil, err
		}
		e.Labels = append(e.Labels, x)
	}
	return e, nil
}
