// Package jni maps resolved Java types onto the JNI ABI: native type names,
// typed-operation channels, JVM descriptors and exported symbol mangling.
//
// Descriptors are compared by the JVM when handles are looked up, so they
// follow the JVM descriptor grammar exactly.
package jni

import (
	"fmt"
	"strings"

	"github.com/jinix-lang/jinix/internal/ast"
	jerrors "github.com/jinix-lang/jinix/internal/errors"
)

// IncludeString is the header required by std::string locals.
const IncludeString = "<string>"

type primitiveInfo struct {
	local      string // C++ spelling of a local of this type; sized like the Java type
	native     string // JNI typedef
	channel    string // suffix of Call<X>Method / Get<X>Field
	descriptor string
}

var primitives = map[ast.TypeKind]primitiveInfo{
	ast.TypeVoid:    {"void", "void", "Void", "V"},
	ast.TypeBoolean: {"bool", "jboolean", "Boolean", "Z"},
	ast.TypeByte:    {"jbyte", "jbyte", "Byte", "B"},
	ast.TypeChar:    {"jchar", "jchar", "Char", "C"},
	ast.TypeShort:   {"short", "jshort", "Short", "S"},
	ast.TypeInt:     {"int", "jint", "Int", "I"},
	ast.TypeLong:    {"jlong", "jlong", "Long", "J"},
	ast.TypeFloat:   {"float", "jfloat", "Float", "F"},
	ast.TypeDouble:  {"double", "jdouble", "Double", "D"},
}

func checkResolved(t ast.Type) error {
	switch t.Kind {
	case ast.TypeUnresolved:
		return jerrors.Unresolved("type", t.String())
	case ast.TypeVariable:
		return jerrors.Unsupported("generic type", t.String())
	case ast.TypeClass:
		if t.Name == "" {
			return jerrors.Unresolved("type", "<anonymous class>")
		}
	case ast.TypeArray:
		if t.Elem == nil {
			return jerrors.Unresolved("type", "array without element type")
		}
		if t.Elem.Kind == ast.TypeArray {
			return jerrors.Unsupported("multi-dimensional array", t.String())
		}
		if t.Elem.IsVoid() {
			return jerrors.Unsupported("array of void", t.String())
		}
		return checkResolved(*t.Elem)
	}
	return nil
}

// LocalType returns the C++ type used to declare a local of type t, and
// the include it requires ("" when none).
func LocalType(t ast.Type) (string, string, error) {
	if err := checkResolved(t); err != nil {
		return "", "", err
	}
	if p, ok := primitives[t.Kind]; ok {
		return p.local, "", nil
	}
	if t.IsString() {
		return "std::string", IncludeString, nil
	}
	return "jobject", "", nil
}

// NativeType returns the JNI typedef carrying a value of type t across the
// native boundary (parameters, return values).
func NativeType(t ast.Type) (string, error) {
	if err := checkResolved(t); err != nil {
		return "", err
	}
	if p, ok := primitives[t.Kind]; ok {
		return p.native, nil
	}
	if t.IsString() {
		return "jstring", nil
	}
	return "jobject", nil
}

// Channel returns the operation family suffix for values of type t:
// Call<Channel>Method, Get<Channel>Field and so on.
func Channel(t ast.Type) (string, error) {
	if err := checkResolved(t); err != nil {
		return "", err
	}
	if p, ok := primitives[t.Kind]; ok {
		return p.channel, nil
	}
	if t.Kind == ast.TypeNull {
		return "", jerrors.Unsupported("null-typed member", "")
	}
	return "Object", nil
}

// ZeroValue returns a C++ expression for the default value of t, used by
// early returns after a pending exception. Empty for void.
func ZeroValue(t ast.Type) string {
	switch {
	case t.IsVoid():
		return ""
	case t.Kind == ast.TypeBoolean:
		return "JNI_FALSE"
	case t.IsPrimitive():
		return "0"
	}
	return "nullptr"
}

// Descriptor returns the JVM field descriptor of t.
func Descriptor(t ast.Type) (string, error) {
	if err := checkResolved(t); err != nil {
		return "", err
	}
	if p, ok := primitives[t.Kind]; ok {
		return p.descriptor, nil
	}
	switch t.Kind {
	case ast.TypeClass:
		return "L" + InternalName(t.Name) + ";", nil
	case ast.TypeArray:
		elem, err := Descriptor(*t.Elem)
		if err != nil {
			return "", err
		}
		return "[" + elem, nil
	}
	return "", jerrors.Unsupported("type in descriptor", t.String())
}

// MethodDescriptor returns "(<params>)<return>".
func MethodDescriptor(params []ast.Type, ret ast.Type) (string, error) {
	var sb strings.Builder
	sb.WriteByte('(')
	for _, p := range params {
		if p.IsVoid() {
			return "", jerrors.Unsupported("void parameter", "")
		}
		d, err := Descriptor(p)
		if err != nil {
			return "", err
		}
		sb.WriteString(d)
	}
	sb.WriteByte(')')
	d, err := Descriptor(ret)
	if err != nil {
		return "", err
	}
	sb.WriteString(d)
	return sb.String(), nil
}

// InternalName converts a binary class name to the slash form FindClass
// expects: "a.b.Outer$Inner" -> "a/b/Outer$Inner".
func InternalName(binaryName string) string {
	return strings.ReplaceAll(binaryName, ".", "/")
}

// Escape applies the JNI symbol escaping to s: '/' and '.' become '_',
// '_' becomes "_1", ';' "_2", '[' "_3", and any other character outside
// [A-Za-z0-9] becomes "_0xxxx".
func Escape(s string) string {
	var sb strings.Builder
	for _, r := range s {
		switch {
		case r == '/' || r == '.':
			sb.WriteByte('_')
		case r == '_':
			sb.WriteString("_1")
		case r == ';':
			sb.WriteString("_2")
		case r == '[':
			sb.WriteString("_3")
		case r < 0x80 && (r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9'):
			sb.WriteRune(r)
		default:
			fmt.Fprintf(&sb, "_0%04x", r)
		}
	}
	return sb.String()
}

// FunctionName returns the exported symbol the JVM binds a native method
// to. The long form, with the escaped argument descriptor appended after a
// double underscore, is required when several native methods of the class
// share the name.
func FunctionName(class, method string, params []ast.Type, overloaded bool) (string, error) {
	name := "Java_" + Escape(InternalName(class)) + "_" + Escape(method)
	if !overloaded {
		return name, nil
	}
	var args strings.Builder
	for _, p := range params {
		d, err := Descriptor(p)
		if err != nil {
			return "", err
		}
		args.WriteString(d)
	}
	return name + "__" + Escape(args.String()), nil
}
