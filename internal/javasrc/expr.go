package javasrc

import (
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/jinix-lang/jinix/internal/ast"
	jerrors "github.com/jinix-lang/jinix/internal/errors"
)

func (l *lowerer) expr(n *sitter.Node) (ast.Expr, error) {
	if n == nil {
		return nil, jerrors.Invariant("missing expression")
	}
	x, err := l.exprKind(n)
	if err != nil {
		return nil, atNode(err, n)
	}
	return x, nil
}

func (l *lowerer) exprKind(n *sitter.Node) (ast.Expr, error) {
	at := position(n)
	switch n.Kind() {
	case "decimal_integer_literal", "hex_integer_literal", "octal_integer_literal", "binary_integer_literal":
		v := l.text(n)
		if strings.HasSuffix(v, "l") || strings.HasSuffix(v, "L") {
			return &ast.Literal{Kind: ast.LitLong, Value: v, At: at}, nil
		}
		return &ast.Literal{Kind: ast.LitInt, Value: v, At: at}, nil
	case "decimal_floating_point_literal", "hex_floating_point_literal":
		v := l.text(n)
		if strings.HasSuffix(v, "f") || strings.HasSuffix(v, "F") {
			return &ast.Literal{Kind: ast.LitFloat, Value: v, At: at}, nil
		}
		return &ast.Literal{Kind: ast.LitDouble, Value: v, At: at}, nil
	case "true", "false":
		return &ast.Literal{Kind: ast.LitBool, Value: l.text(n), At: at}, nil
	case "null_literal":
		return &ast.Literal{Kind: ast.LitNull, Value: "null", At: at}, nil
	case "character_literal":
		return &ast.Literal{Kind: ast.LitChar, Value: l.text(n), At: at}, nil
	case "string_literal":
		v := l.text(n)
		if strings.HasPrefix(v, `"""`) {
			return &ast.Literal{Kind: ast.LitTextBlock, Value: TextBlockContent(v), At: at}, nil
		}
		return &ast.Literal{Kind: ast.LitString, Value: v, At: at}, nil
	case "identifier":
		return l.name(n)
	case "this":
		if l.method.Static {
			return nil, jerrors.Unsupported("this in a static method", l.method.Name)
		}
		return &ast.This{Typ: ast.Class(l.class.Name), At: at}, nil
	case "parenthesized_expression":
		x, err := l.expr(firstNamed(n))
		if err != nil {
			return nil, err
		}
		return &ast.Paren{X: x, At: at}, nil
	case "field_access":
		return l.fieldAccess(n)
	case "method_invocation":
		return l.invocation(n)
	case "assignment_expression":
		return l.assignment(n)
	case "binary_expression":
		return l.binary(n)
	case "unary_expression":
		x, err := l.expr(n.ChildByFieldName("operand"))
		if err != nil {
			return nil, err
		}
		op := l.text(n.ChildByFieldName("operator"))
		t := ast.Promote(x.Type(), ast.Primitive(ast.TypeInt))
		if op == "!" {
			t = tBool
		}
		return &ast.Unary{X: x, Op: op, Typ: t, At: at}, nil
	case "update_expression":
		return l.update(n)
	case "cast_expression":
		x, err := l.expr(n.ChildByFieldName("value"))
		if err != nil {
			return nil, err
		}
		return &ast.Cast{X: x, To: l.typeOf(n.ChildByFieldName("type")), At: at}, nil
	case "ternary_expression":
		return l.ternary(n)
	case "instanceof_expression":
		return &ast.UnsupportedExpr{Construct: "instanceof", At: at}, nil
	}
	return &ast.UnsupportedExpr{Construct: strings.ReplaceAll(n.Kind(), "_", " "), At: at}, nil
}

// name resolves a simple name: a local first, then a field of the class or
// of an enclosing class.
func (l *lowerer) name(n *sitter.Node) (ast.Expr, error) {
	id := l.text(n)
	at := position(n)
	if t, ok := l.local(id); ok {
		return &ast.Name{Ident: id, Typ: t, At: at}, nil
	}
	for c := l.class; c != nil; c = c.Outer {
		f, err := l.ix.Field(c.Name, id)
		if err != nil {
			continue
		}
		if !f.Static && (c != l.class || l.method.Static) {
			return nil, jerrors.Unsupported("instance field without a receiver", id)
		}
		ref := fieldRef(f)
		return &ast.Name{Ident: id, Field: &ref, Typ: f.Type, At: at}, nil
	}
	return nil, jerrors.Unresolved("name", id)
}

func fieldRef(f *Field) ast.FieldRef {
	return ast.FieldRef{Owner: f.Class.Name, Name: f.Name, Type: f.Type, Static: f.Static}
}

// scope lowers the qualifier of a member access. Besides expressions it may
// name a class, simple or qualified, for static access.
func (l *lowerer) scope(n *sitter.Node) (ast.Expr, error) {
	switch n.Kind() {
	case "identifier":
		id := l.text(n)
		if x, err := l.name(n); err == nil || !jerrors.IsCategory(err, jerrors.CategoryResolution) {
			return x, err
		}
		if t := l.ix.className(id, l.class); t.Kind == ast.TypeClass {
			return &ast.TypeName{Typ: t, At: position(n)}, nil
		}
		return nil, jerrors.Unresolved("name", id)
	case "field_access":
		x, err := l.expr(n)
		if err == nil || !jerrors.IsCategory(err, jerrors.CategoryResolution) {
			return x, err
		}
		dotted := strings.Join(strings.Fields(l.text(n)), "")
		if t := l.ix.qualifiedName(dotted, l.class); t.Kind == ast.TypeClass && l.ix.Class(t.Name) != nil {
			return &ast.TypeName{Typ: t, At: position(n)}, nil
		}
		return nil, err
	}
	return l.expr(n)
}

// owner returns the class a member is looked up in when accessed through
// scope.
func owner(scope ast.Expr) (string, error) {
	t := scope.Type()
	if t.Kind != ast.TypeClass {
		return "", jerrors.Unsupported("member access on "+t.String(), "")
	}
	return t.Name, nil
}

func (l *lowerer) fieldAccess(n *sitter.Node) (ast.Expr, error) {
	at := position(n)
	objNode := n.ChildByFieldName("object")
	name := l.text(n.ChildByFieldName("field"))
	if objNode == nil {
		return nil, jerrors.Invariant("field access without an object")
	}
	if objNode.Kind() == "super" {
		return &ast.UnsupportedExpr{Construct: "super field access", At: at}, nil
	}
	obj, err := l.scope(objNode)
	if err != nil {
		return nil, err
	}
	if obj.Type().Kind == ast.TypeArray && name == "length" {
		return &ast.UnsupportedExpr{Construct: "array length", At: at}, nil
	}
	cls, err := owner(obj)
	if err != nil {
		return nil, err
	}
	f, err := l.ix.Field(cls, name)
	if err != nil {
		return nil, err
	}
	if _, ok := obj.(*ast.TypeName); ok && !f.Static {
		return nil, jerrors.Unresolved("static field", cls+"."+name)
	}
	return &ast.FieldAccess{Scope: obj, Field: fieldRef(f), At: at}, nil
}

func (l *lowerer) invocation(n *sitter.Node) (ast.Expr, error) {
	at := position(n)
	name := l.text(n.ChildByFieldName("name"))
	var args []ast.Expr
	var argTypes []ast.Type
	if list := n.ChildByFieldName("arguments"); list != nil {
		for _, a := range namedChildren(list) {
			if isComment(a) {
				continue
			}
			x, err := l.expr(a)
			if err != nil {
				return nil, err
			}
			args = append(args, x)
			argTypes = append(argTypes, x.Type())
		}
	}

	objNode := n.ChildByFieldName("object")
	if objNode == nil {
		var firstErr error
		for c := l.class; c != nil; c = c.Outer {
			m, err := l.ix.Method(c.Name, name, argTypes)
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
			if !m.Static && (c != l.class || l.method.Static) {
				return nil, jerrors.Unsupported("instance call without a receiver", name)
			}
			return &ast.Call{Method: m.Ref(), Args: args, At: at}, nil
		}
		return nil, firstErr
	}
	if objNode.Kind() == "super" {
		return &ast.UnsupportedExpr{Construct: "super call", At: at}, nil
	}
	obj, err := l.scope(objNode)
	if err != nil {
		return nil, err
	}
	cls, err := owner(obj)
	if err != nil {
		return nil, err
	}
	m, err := l.ix.Method(cls, name, argTypes)
	if err != nil {
		return nil, err
	}
	if _, ok := obj.(*ast.TypeName); ok && !m.Static {
		return nil, jerrors.Unresolved("static method", cls+"."+name)
	}
	return &ast.Call{Scope: obj, Method: m.Ref(), Args: args, At: at}, nil
}

func (l *lowerer) assignment(n *sitter.Node) (ast.Expr, error) {
	target, err := l.expr(n.ChildByFieldName("left"))
	if err != nil {
		return nil, err
	}
	value, err := l.expr(n.ChildByFieldName("right"))
	if err != nil {
		return nil, err
	}
	return &ast.Assign{Target: target, Value: value, Op: l.text(n.ChildByFieldName("operator")), At: position(n)}, nil
}

func (l *lowerer) binary(n *sitter.Node) (ast.Expr, error) {
	left, err := l.expr(n.ChildByFieldName("left"))
	if err != nil {
		return nil, err
	}
	right, err := l.expr(n.ChildByFieldName("right"))
	if err != nil {
		return nil, err
	}
	op := l.text(n.ChildByFieldName("operator"))
	return &ast.Binary{Left: left, Right: right, Op: op, Typ: binaryType(op, left.Type(), right.Type()), At: position(n)}, nil
}

// binaryType applies the Java typing rules of binary operators.
func binaryType(op string, a, b ast.Type) ast.Type {
	switch op {
	case "==", "!=", "<", ">", "<=", ">=", "&&", "||":
		return tBool
	case "<<", ">>", ">>>":
		return ast.Promote(a, tInt)
	case "&", "|", "^":
		if a.Kind == ast.TypeBoolean && b.Kind == ast.TypeBoolean {
			return tBool
		}
	case "+":
		if a.IsString() || b.IsString() {
			return tString
		}
	}
	return ast.Promote(a, b)
}

func (l *lowerer) update(n *sitter.Node) (ast.Expr, error) {
	var (
		operand *sitter.Node
		op      string
		postfix bool
	)
	for i, c := range children(n) {
		switch c.Kind() {
		case "++", "--":
			op = c.Kind()
			postfix = i > 0
		default:
			if !isComment(c) {
				operand = c
			}
		}
	}
	x, err := l.expr(operand)
	if err != nil {
		return nil, err
	}
	return &ast.Unary{X: x, Op: op, Postfix: postfix, Typ: x.Type(), At: position(n)}, nil
}

func (l *lowerer) ternary(n *sitter.Node) (ast.Expr, error) {
	cond, err := l.expr(n.ChildByFieldName("condition"))
	if err != nil {
		return nil, err
	}
	then, err := l.expr(n.ChildByFieldName("consequence"))
	if err != nil {
		return nil, err
	}
	els, err := l.expr(n.ChildByFieldName("alternative"))
	if err != nil {
		return nil, err
	}
	t := then.Type()
	switch a, b := then.Type(), els.Type(); {
	case a.Equal(b):
	case a.IsNumeric() && b.IsNumeric():
		t = ast.Promote(a, b)
	case a.Kind == ast.TypeNull:
		t = b
	}
	return &ast.Conditional{Cond: cond, Then: then, Else: els, Typ: t, At: position(n)}, nil
}

// TextBlockContent returns the value of a """ text block the way javac
// computes it: incidental indentation and trailing spaces are stripped and
// the \<newline> and \s escapes are applied. Other escapes keep their source
// spelling.
func TextBlockContent(literal string) string {
	body := strings.TrimPrefix(literal, `"""`)
	body = strings.TrimSuffix(body, `"""`)
	body = strings.ReplaceAll(body, "\r\n", "\n")
	if i := strings.IndexByte(body, '\n'); i >= 0 {
		body = body[i+1:]
	}
	lines := strings.Split(body, "\n")

	// The line holding the closing delimiter counts for the indentation
	// even when blank.
	last := len(lines) - 1
	indent := -1
	for i, line := range lines {
		if strings.TrimSpace(line) == "" && i != last {
			continue
		}
		w := len(line) - len(strings.TrimLeft(line, " \t"))
		if indent < 0 || w < indent {
			indent = w
		}
	}
	if indent < 0 {
		indent = 0
	}
	for i, line := range lines {
		if len(line) >= indent {
			line = line[indent:]
		} else {
			line = strings.TrimLeft(line, " \t")
		}
		lines[i] = strings.TrimRight(line, " \t")
	}
	out := strings.Join(lines, "\n")

	var sb strings.Builder
	for i := 0; i < len(out); i++ {
		if out[i] != '\\' || i+1 >= len(out) {
			sb.WriteByte(out[i])
			continue
		}
		switch out[i+1] {
		case '\n':
			i++
		case 's':
			sb.WriteByte(' ')
			i++
		default:
			sb.WriteByte(out[i])
			sb.WriteByte(out[i+1])
			i++
		}
	}
	return sb.String()
}
