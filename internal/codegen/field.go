package codegen

import (
	"fmt"
	"strings"

	"github.com/jinix-lang/jinix/internal/ast"
	jerrors "github.com/jinix-lang/jinix/internal/errors"
	"github.com/jinix-lang/jinix/internal/jni"
)

// fieldAccess is a resolved field together with the receiver it is reached
// through.
type fieldAccess struct {
	ref     ast.FieldRef
	recv    Fragment
	key     string
	channel string
	needs   []string
	// pure is set when the receiver may be evaluated more than once.
	pure bool
}

func (m *method) field(scope ast.Expr, ref ast.FieldRef) (*fieldAccess, error) {
	if ref.Owner == "" || ref.Name == "" {
		return nil, jerrors.Unresolved("field", ref.Name)
	}
	classKey, key, err := m.arena.Field(ref)
	if err != nil {
		return nil, err
	}
	channel, err := jni.Channel(ref.Type)
	if err != nil {
		return nil, err
	}
	recv, err := m.receiver(scope, ref.Static, classKey)
	if err != nil {
		return nil, err
	}
	return &fieldAccess{
		ref:     ref,
		recv:    recv,
		key:     key,
		channel: channel,
		needs:   mergeKeys([]string{classKey, key}, recv.Needs...),
		pure:    ref.Static || sideEffectFree(scope),
	}, nil
}

func (a *fieldAccess) get() string {
	return fmt.Sprintf("env->Get%s%sField(%s, %s)", staticPart(a.ref.Static), a.channel, a.recv.Code, a.key)
}

func (a *fieldAccess) set(value string) string {
	return fmt.Sprintf("env->Set%s%sField(%s, %s, %s)", staticPart(a.ref.Static), a.channel, a.recv.Code, a.key, value)
}

func (a *fieldAccess) helper(op HelperOp) Helper {
	return Helper{Op: op, Channel: a.channel, Static: a.ref.Static}
}

func (m *method) fieldRead(scope ast.Expr, ref ast.FieldRef) (Fragment, error) {
	a, err := m.field(scope, ref)
	if err != nil {
		return Fragment{}, err
	}
	return Fragment{Code: castResult(a.get(), ref.Type), Type: ref.Type, Needs: a.needs, repr: reprOf(ref.Type)}, nil
}

func (m *method) assign(e *ast.Assign) (Fragment, error) {
	if e.Op == ">>>=" {
		return Fragment{}, jerrors.Unsupported("unsigned right shift", "")
	}
	value, err := m.expr(e.Value)
	if err != nil {
		return Fragment{}, err
	}
	switch t := unparen(e.Target).(type) {
	case *ast.Name:
		if t.Field == nil {
			return m.localAssign(e, t, value)
		}
		return m.fieldAssign(e, nil, *t.Field, value)
	case *ast.FieldAccess:
		return m.fieldAssign(e, t.Scope, t.Field, value)
	}
	return Fragment{}, jerrors.Unsupported("assignment target", fmt.Sprintf("%T", e.Target))
}

// localAssign writes a local or parameter. String locals hold native text
// and String parameters hold references, so the value is converted to
// whichever the target keeps.
func (m *method) localAssign(e *ast.Assign, t *ast.Name, value Fragment) (Fragment, error) {
	param := m.isParam(t.Ident)
	var (
		v   string
		err error
	)
	switch {
	case t.Typ.IsString() && e.Op == "+=":
		if param {
			return Fragment{}, jerrors.Unsupported("string concatenation into a parameter", t.Ident)
		}
		if value.repr == strNone {
			return Fragment{}, jerrors.Unsupported("string concatenation with a non-String operand", value.Type.String())
		}
		v, err = m.toNative(value)
	case e.Op == "=":
		v, err = m.coerce(value, t.Typ, !param)
	default:
		v = value.Code
	}
	if err != nil {
		return Fragment{}, err
	}
	f := Fragment{Code: localName(t.Ident) + " " + e.Op + " " + v, Type: t.Typ, Needs: value.Needs}
	if t.Typ.IsString() {
		f.repr = strNative
		if param {
			f.repr = strRef
		}
	}
	return f, nil
}

// fieldAssign writes a field. A write whose result is discarded is a plain
// Set call; otherwise a helper stores the value and yields it.
func (m *method) fieldAssign(e *ast.Assign, scope ast.Expr, ref ast.FieldRef, value Fragment) (Fragment, error) {
	a, err := m.field(scope, ref)
	if err != nil {
		return Fragment{}, err
	}
	needs := mergeKeys(a.needs, value.Needs...)

	v := m.toRef(value)
	if e.Op != "=" {
		if !ref.Type.IsPrimitive() {
			return Fragment{}, jerrors.Unsupported("compound assignment to a reference field", ref.Name)
		}
		if !a.pure {
			return Fragment{}, jerrors.Unsupported("compound assignment through a computed receiver", ref.Name)
		}
		local, _, _ := jni.LocalType(ref.Type)
		v = fmt.Sprintf("(%s)(%s %s %s)", local, a.get(), strings.TrimSuffix(e.Op, "="), value.Code)
	}

	if m.discarded[e] {
		return Fragment{Code: a.set(v), Type: ast.Void(), Needs: needs}, nil
	}
	h := a.helper(HelperSetAndGet)
	m.req.Use(h)
	code := fmt.Sprintf("%s(env, %s, %s, %s)", h.Name(), a.recv.Code, a.key, v)
	return Fragment{Code: castResult(code, ref.Type), Type: ref.Type, Needs: needs, repr: reprOf(ref.Type)}, nil
}

// increment handles ++ and --. On locals the operator is kept; on fields a
// discarded update becomes get-add-set and a used one calls the prefix or
// postfix helper so the receiver is evaluated once.
func (m *method) increment(e *ast.Unary) (Fragment, error) {
	var (
		scope ast.Expr
		ref   ast.FieldRef
	)
	switch t := unparen(e.X).(type) {
	case *ast.Name:
		if t.Field == nil {
			name := localName(t.Ident)
			if e.Postfix {
				return Fragment{Code: name + e.Op, Type: t.Typ}, nil
			}
			return Fragment{Code: e.Op + name, Type: t.Typ}, nil
		}
		ref = *t.Field
	case *ast.FieldAccess:
		scope, ref = t.Scope, t.Field
	default:
		return Fragment{}, jerrors.Unsupported("increment target", fmt.Sprintf("%T", e.X))
	}
	if !ref.Type.IsNumeric() {
		return Fragment{}, jerrors.Unsupported("increment of a non-numeric field", ref.Name)
	}

	a, err := m.field(scope, ref)
	if err != nil {
		return Fragment{}, err
	}
	change := "1"
	if e.Op == "--" {
		change = "-1"
	}
	if m.discarded[e] && a.pure {
		local, _, _ := jni.LocalType(ref.Type)
		v := fmt.Sprintf("(%s)(%s + %s)", local, a.get(), change)
		return Fragment{Code: a.set(v), Type: ast.Void(), Needs: a.needs}, nil
	}

	op := HelperPrefixAdd
	if e.Postfix {
		op = HelperPostfixAdd
	}
	h := a.helper(op)
	m.req.Use(h)
	code := fmt.Sprintf("%s(env, %s, %s, %s)", h.Name(), a.recv.Code, a.key, change)
	return Fragment{Code: castResult(code, ref.Type), Type: ref.Type, Needs: a.needs}, nil
}
