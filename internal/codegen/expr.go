package codegen

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/jinix-lang/jinix/internal/ast"
	jerrors "github.com/jinix-lang/jinix/internal/errors"
	"github.com/jinix-lang/jinix/internal/jni"
)

// Fragment is the C++ rendering of one expression together with the
// lookups it references.
type Fragment struct {
	Code  string
	Type  ast.Type
	Needs []string

	repr strRepr
}

const (
	thisObject = "thisObject"
	thisClass  = "thisClass"
)

// method holds the per-method transpilation state.
type method struct {
	decl      *ast.MethodDecl
	arena     *Arena
	discarded map[ast.Expr]bool
	req       Requirements
}

func (m *method) expr(e ast.Expr) (Fragment, error) {
	switch e := e.(type) {
	case nil:
		return Fragment{}, jerrors.Invariant("missing expression")
	case *ast.Literal:
		code, err := literal(e)
		f := Fragment{Code: code, Type: e.Type()}
		if e.Kind == ast.LitString || e.Kind == ast.LitTextBlock {
			f.repr = strLiteral
		}
		return f, err
	case *ast.Name:
		if e.Field != nil {
			return m.fieldRead(nil, *e.Field)
		}
		if e.Ident == "" {
			return Fragment{}, jerrors.Unresolved("name", "")
		}
		f := Fragment{Code: localName(e.Ident), Type: e.Typ}
		if e.Typ.IsString() {
			f.repr = strNative
			if m.isParam(e.Ident) {
				f.repr = strRef
			}
		}
		return f, nil
	case *ast.This:
		recv, err := m.this()
		return Fragment{Code: recv, Type: e.Typ}, err
	case *ast.TypeName:
		return Fragment{}, jerrors.Unsupported("type name used as a value", e.Typ.String())
	case *ast.Paren:
		x, err := m.expr(e.X)
		if err != nil {
			return Fragment{}, err
		}
		return Fragment{Code: "(" + x.Code + ")", Type: x.Type, Needs: x.Needs, repr: x.repr}, nil
	case *ast.Cast:
		return m.cast(e)
	case *ast.Binary:
		return m.binary(e)
	case *ast.Unary:
		if e.Op == "++" || e.Op == "--" {
			return m.increment(e)
		}
		x, err := m.expr(e.X)
		if err != nil {
			return Fragment{}, err
		}
		return Fragment{Code: e.Op + x.Code, Type: e.Typ, Needs: x.Needs}, nil
	case *ast.Conditional:
		return m.conditional(e)
	case *ast.VarDecl:
		return m.varDecl(e)
	case *ast.Assign:
		return m.assign(e)
	case *ast.FieldAccess:
		return m.fieldRead(e.Scope, e.Field)
	case *ast.Call:
		return m.call(e)
	case *ast.UnsupportedExpr:
		return Fragment{}, jerrors.Unsupported(e.Construct, "")
	}
	return Fragment{}, jerrors.Unsupported(fmt.Sprintf("expression %T", e), "")
}

func (m *method) this() (string, error) {
	if m.decl.Static {
		return "", jerrors.Unsupported("instance access from a static method", m.decl.Name)
	}
	return thisObject, nil
}

func (m *method) cast(e *ast.Cast) (Fragment, error) {
	x, err := m.expr(e.X)
	if err != nil {
		return Fragment{}, err
	}
	switch {
	case e.To.IsString() && x.Type.IsString():
		x.Type = e.To
		return x, nil
	case e.To.IsString():
		return Fragment{Code: "(jstring)" + x.Code, Type: e.To, Needs: x.Needs, repr: strRef}, nil
	case e.To.IsReference():
		return Fragment{Code: "(jobject)" + m.toRef(x), Type: e.To, Needs: x.Needs}, nil
	}
	local, _, err := jni.LocalType(e.To)
	if err != nil {
		return Fragment{}, err
	}
	return Fragment{Code: "(" + local + ")" + x.Code, Type: e.To, Needs: x.Needs}, nil
}

func (m *method) binary(e *ast.Binary) (Fragment, error) {
	switch e.Op {
	case ">>>":
		return Fragment{}, jerrors.Unsupported("unsigned right shift", "")
	case "instanceof":
		return Fragment{}, jerrors.Unsupported("instanceof", "")
	}
	l, err := m.expr(e.Left)
	if err != nil {
		return Fragment{}, err
	}
	r, err := m.expr(e.Right)
	if err != nil {
		return Fragment{}, err
	}
	switch {
	case e.Typ.IsString():
		return m.concat(l, r)
	case (e.Op == "==" || e.Op == "!=") && l.Type.IsReference() && r.Type.IsReference():
		return m.sameObject(e.Op, l, r)
	}
	return Fragment{
		Code:  l.Code + " " + e.Op + " " + r.Code,
		Type:  e.Typ,
		Needs: mergeKeys(l.Needs, r.Needs...),
	}, nil
}

func (m *method) conditional(e *ast.Conditional) (Fragment, error) {
	var parts [3]Fragment
	for i, x := range []ast.Expr{e.Cond, e.Then, e.Else} {
		f, err := m.expr(x)
		if err != nil {
			return Fragment{}, err
		}
		parts[i] = f
	}
	then, els := parts[1].Code, parts[2].Code
	repr := strNone
	switch {
	case e.Typ.IsString() && parts[1].repr == strLiteral && parts[2].repr == strLiteral:
		repr = strLiteral
	case e.Typ.IsString() && parts[1].repr == strRef && parts[2].repr == strRef:
		repr = strRef
	case e.Typ.IsString() && parts[1].repr != strNone && parts[2].repr != strNone:
		var err error
		if then, err = m.toNative(parts[1]); err != nil {
			return Fragment{}, err
		}
		if els, err = m.toNative(parts[2]); err != nil {
			return Fragment{}, err
		}
		repr = strNative
	case e.Typ.IsReference():
		then, els = m.toRef(parts[1]), m.toRef(parts[2])
		repr = reprOf(e.Typ)
	}
	needs := mergeKeys(parts[0].Needs, parts[1].Needs...)
	return Fragment{
		Code:  parts[0].Code + " ? " + then + " : " + els,
		Type:  e.Typ,
		Needs: mergeKeys(needs, parts[2].Needs...),
		repr:  repr,
	}, nil
}

func (m *method) varDecl(e *ast.VarDecl) (Fragment, error) {
	typ := "auto"
	if !e.Inferred || e.Typ.IsString() {
		local, include, err := jni.LocalType(e.Typ)
		if err != nil {
			return Fragment{}, err
		}
		m.req.Include(include)
		typ = local
	}
	if e.Final {
		typ = "const " + typ
	}

	var needs []string
	parts := make([]string, 0, len(e.Vars))
	for _, d := range e.Vars {
		name := localName(d.Name)
		if d.Init == nil {
			parts = append(parts, name)
			continue
		}
		f, err := m.expr(d.Init)
		if err != nil {
			return Fragment{}, err
		}
		init, err := m.coerce(f, e.Typ, true)
		if err != nil {
			return Fragment{}, err
		}
		needs = mergeKeys(needs, f.Needs...)
		parts = append(parts, name+" = "+init)
	}
	return Fragment{Code: typ + " " + strings.Join(parts, ", "), Type: ast.Void(), Needs: needs}, nil
}

func (m *method) call(e *ast.Call) (Fragment, error) {
	ref := e.Method
	if ref.Owner == "" || ref.Name == "" {
		return Fragment{}, jerrors.Unresolved("method", ref.Name)
	}
	if len(e.Args) != len(ref.Params) {
		return Fragment{}, jerrors.Invariant("call of %s.%s has %d arguments for %d parameters",
			ref.Owner, ref.Name, len(e.Args), len(ref.Params))
	}
	classKey, methodKey, err := m.arena.Method(ref)
	if err != nil {
		return Fragment{}, err
	}
	recv, err := m.receiver(e.Scope, ref.Static, classKey)
	if err != nil {
		return Fragment{}, err
	}
	channel, err := jni.Channel(ref.Return)
	if err != nil {
		return Fragment{}, err
	}

	needs := mergeKeys([]string{classKey, methodKey}, recv.Needs...)
	args := []string{recv.Code, methodKey}
	for _, a := range e.Args {
		f, err := m.expr(a)
		if err != nil {
			return Fragment{}, err
		}
		needs = mergeKeys(needs, f.Needs...)
		args = append(args, m.toRef(f))
	}

	code := fmt.Sprintf("env->Call%s%sMethod(%s)", staticPart(ref.Static), channel, strings.Join(args, ", "))
	return Fragment{Code: castResult(code, ref.Return), Type: ref.Return, Needs: needs, repr: reprOf(ref.Return)}, nil
}

// receiver returns what a member is accessed through: the class handle for
// static members, otherwise the scope expression or the method's receiver.
func (m *method) receiver(scope ast.Expr, static bool, classKey string) (Fragment, error) {
	if static {
		if scope != nil && !sideEffectFree(scope) {
			return Fragment{}, jerrors.Unsupported("static member access through an expression", "")
		}
		return Fragment{Code: classKey, Needs: []string{classKey}}, nil
	}
	if scope == nil {
		recv, err := m.this()
		return Fragment{Code: recv}, err
	}
	if tn, ok := unparen(scope).(*ast.TypeName); ok {
		return Fragment{}, jerrors.Unresolved("instance member receiver", tn.Typ.String())
	}
	f, err := m.expr(scope)
	if err != nil {
		return Fragment{}, err
	}
	f.Code = m.toRef(f)
	return f, nil
}

// sideEffectFree reports whether evaluating e twice, or not at all, is
// unobservable.
func sideEffectFree(e ast.Expr) bool {
	switch e := e.(type) {
	case nil, *ast.This, *ast.TypeName, *ast.Literal:
		return true
	case *ast.Name:
		return e.Field == nil
	case *ast.Paren:
		return sideEffectFree(e.X)
	}
	return false
}

func unparen(e ast.Expr) ast.Expr {
	for {
		p, ok := e.(*ast.Paren)
		if !ok {
			return e
		}
		e = p.X
	}
}

func staticPart(static bool) string {
	if static {
		return "Static"
	}
	return ""
}

// castResult converts a JNI-typed result to the local type. String
// results become jstring so they can be passed back to JNI.
func castResult(code string, t ast.Type) string {
	if t.IsString() {
		return "(jstring)" + code
	}
	if !t.IsPrimitive() {
		return code
	}
	local, _, _ := jni.LocalType(t)
	return "(" + local + ")" + code
}

// ===== Literals =====

func literal(e *ast.Literal) (string, error) {
	v := e.Value
	switch e.Kind {
	case ast.LitNull:
		return "nullptr", nil
	case ast.LitInt, ast.LitLong:
		return strings.ReplaceAll(v, "_", ""), nil
	case ast.LitFloat:
		return floatLiteral(strings.TrimRight(strings.ReplaceAll(v, "_", ""), "fF")) + "f", nil
	case ast.LitDouble:
		return floatLiteral(strings.TrimRight(strings.ReplaceAll(v, "_", ""), "dD")), nil
	case ast.LitTextBlock:
		return textBlock(v), nil
	case ast.LitChar:
		return charLiteral(v)
	case ast.LitBool, ast.LitString:
		return v, nil
	}
	return "", jerrors.Unsupported("literal", v)
}

// charLiteral keeps ASCII literals as written. Anything else becomes its
// UTF-16 code unit, since a C++ char literal is a signed byte.
func charLiteral(v string) (string, error) {
	body := strings.TrimSuffix(strings.TrimPrefix(v, "'"), "'")
	if len(body) == len(v) || body == "" {
		return "", jerrors.Unsupported("character literal", v)
	}
	var unit rune
	switch {
	case body[0] != '\\':
		r, size := utf8.DecodeRuneInString(body)
		if size != len(body) || r > 0xFFFF {
			return "", jerrors.Unsupported("character literal", v)
		}
		unit = r
	case strings.HasPrefix(body, "\\u"):
		n, err := strconv.ParseUint(strings.TrimLeft(body[1:], "u"), 16, 16)
		if err != nil {
			return "", jerrors.Unsupported("character literal", v)
		}
		unit = rune(n)
	case len(body) > 1 && body[1] >= '0' && body[1] <= '7':
		n, err := strconv.ParseUint(body[1:], 8, 8)
		if err != nil {
			return "", jerrors.Unsupported("character literal", v)
		}
		unit = rune(n)
	case body == `\s`:
		unit = ' '
	default:
		return v, nil
	}
	if unit >= 0x20 && unit < 0x7F && unit != '\\' && unit != '\'' {
		return "'" + string(unit) + "'", nil
	}
	return fmt.Sprintf("(jchar)0x%04X", unit), nil
}

// floatLiteral makes sure a decimal literal without a point or exponent
// still reads as floating point.
func floatLiteral(v string) string {
	if strings.HasPrefix(v, "0x") || strings.HasPrefix(v, "0X") || strings.ContainsAny(v, ".eE") {
		return v
	}
	return v + ".0"
}

// textBlock renders text block content as one C++ string literal spanning
// several physical lines: every newline becomes "\n\" followed by a real
// newline, and unescaped quotes are escaped.
func textBlock(content string) string {
	var sb strings.Builder
	sb.WriteByte('"')
	backslashes := 0
	for _, r := range content {
		switch r {
		case '\n':
			sb.WriteString("\\n\\\n")
			backslashes = 0
			continue
		case '"':
			if backslashes%2 == 0 {
				sb.WriteByte('\\')
			}
		}
		sb.WriteRune(r)
		if r == '\\' {
			backslashes++
		} else {
			backslashes = 0
		}
	}
	sb.WriteByte('"')
	return sb.String()
}
