package codegen

import (
	"github.com/jinix-lang/jinix/internal/ast"
	jerrors "github.com/jinix-lang/jinix/internal/errors"
	"github.com/jinix-lang/jinix/internal/jni"
)

// strRepr tells how a String-typed fragment holds its value. Declared
// String locals are std::string; everything that crosses JNI (parameters,
// fields, call results) is a jstring.
type strRepr int

const (
	strNone    strRepr = iota
	strLiteral         // C++ string literal
	strNative          // std::string
	strRef             // jstring
)

func reprOf(t ast.Type) strRepr {
	if t.IsString() {
		return strRef
	}
	return strNone
}

func (m *method) isParam(name string) bool {
	for _, p := range m.decl.Params {
		if p.Name == name {
			return true
		}
	}
	return false
}

// toRef yields f as a JNI reference, creating a Java string from native
// text when needed.
func (m *method) toRef(f Fragment) string {
	switch f.repr {
	case strLiteral:
		return "env->NewStringUTF(" + f.Code + ")"
	case strNative:
		return "env->NewStringUTF(" + operand(f.Code) + ".c_str())"
	}
	return f.Code
}

// toNative yields f as text usable where a std::string is expected.
func (m *method) toNative(f Fragment) (string, error) {
	switch f.repr {
	case strLiteral, strNative:
		return f.Code, nil
	case strRef:
		h := Helper{Op: HelperStringValue}
		m.req.Use(h)
		m.req.Include(jni.IncludeString)
		return h.Name() + "(env, " + f.Code + ")", nil
	}
	if f.Type.Kind == ast.TypeNull {
		return "", jerrors.Unsupported("null stored in a String local", "")
	}
	return "", jerrors.Unsupported("non-String value used as a String", f.Type.String())
}

// coerce adapts f to a destination of type to. A native destination keeps
// Strings as std::string; other reference destinations take references.
func (m *method) coerce(f Fragment, to ast.Type, native bool) (string, error) {
	switch {
	case to.IsString() && native:
		return m.toNative(f)
	case to.IsReference():
		return m.toRef(f), nil
	}
	return f.Code, nil
}

// concat renders String +. Both operands must be Strings; the result is a
// std::string.
func (m *method) concat(l, r Fragment) (Fragment, error) {
	for _, f := range []Fragment{l, r} {
		if f.repr == strNone {
			return Fragment{}, jerrors.Unsupported("string concatenation with a non-String operand", f.Type.String())
		}
	}
	left, err := m.toNative(l)
	if err != nil {
		return Fragment{}, err
	}
	right, err := m.toNative(r)
	if err != nil {
		return Fragment{}, err
	}
	if l.repr == strLiteral && r.repr == strLiteral {
		left = "std::string(" + left + ")"
	}
	m.req.Include(jni.IncludeString)
	return Fragment{
		Code:  left + " + " + right,
		Type:  ast.String(),
		Needs: mergeKeys(l.Needs, r.Needs...),
		repr:  strNative,
	}, nil
}

// sameObject renders reference == and != through IsSameObject. Native
// String values have no identity.
func (m *method) sameObject(op string, l, r Fragment) (Fragment, error) {
	for _, f := range []Fragment{l, r} {
		if f.repr == strLiteral || f.repr == strNative {
			return Fragment{}, jerrors.Unsupported("String comparison with "+op, "use equals")
		}
	}
	code := "env->IsSameObject(" + l.Code + ", " + r.Code + ")"
	if op == "!=" {
		code = "!" + code
	}
	return Fragment{Code: code, Type: ast.Primitive(ast.TypeBoolean), Needs: mergeKeys(l.Needs, r.Needs...)}, nil
}

// operand wraps code in parentheses unless it is a plain identifier.
func operand(code string) string {
	for i, c := range code {
		switch {
		case c == '_', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9' && i > 0:
		default:
			return "(" + code + ")"
		}
	}
	return code
}
