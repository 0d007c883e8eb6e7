package ast

import "strings"

// TypeKind classifies a resolved Java type.
type TypeKind int

const (
	TypeUnresolved TypeKind = iota
	TypeVoid
	TypeBoolean
	TypeByte
	TypeChar
	TypeShort
	TypeInt
	TypeLong
	TypeFloat
	TypeDouble
	TypeNull
	TypeClass
	TypeArray
	// TypeVariable is a generic type parameter; never transpilable.
	TypeVariable
)

var primitiveNames = map[TypeKind]string{
	TypeVoid:    "void",
	TypeBoolean: "boolean",
	TypeByte:    "byte",
	TypeChar:    "char",
	TypeShort:   "short",
	TypeInt:     "int",
	TypeLong:    "long",
	TypeFloat:   "float",
	TypeDouble:  "double",
}

// StringClass is the binary name of java.lang.String.
const StringClass = "java.lang.String"

// Type is a resolved Java type. Class types carry their binary name
// (package qualified, nested classes joined with '$').
type Type struct {
	Elem *Type
	Name string
	Kind TypeKind
}

// Primitive returns the primitive (or void) type of the given kind.
func Primitive(kind TypeKind) Type { return Type{Kind: kind} }

// Class returns the reference type with the given binary name.
func Class(binaryName string) Type { return Type{Kind: TypeClass, Name: binaryName} }

// ArrayOf returns a one-dimensional array of elem.
func ArrayOf(elem Type) Type { return Type{Kind: TypeArray, Elem: &elem} }

// String is the java.lang.String type.
func String() Type { return Class(StringClass) }

// Void is the void type.
func Void() Type { return Primitive(TypeVoid) }

// PrimitiveByName maps a Java keyword to its type.
func PrimitiveByName(name string) (Type, bool) {
	for k, n := range primitiveNames {
		if n == name {
			return Primitive(k), true
		}
	}
	return Type{}, false
}

// IsPrimitive reports whether t is one of the eight primitive types.
func (t Type) IsPrimitive() bool { return t.Kind >= TypeBoolean && t.Kind <= TypeDouble }

// IsNumeric reports whether t is a primitive other than boolean.
func (t Type) IsNumeric() bool { return t.Kind >= TypeByte && t.Kind <= TypeDouble }

// IsVoid reports whether t is void.
func (t Type) IsVoid() bool { return t.Kind == TypeVoid }

// IsReference reports whether t is a class, array or the null type.
func (t Type) IsReference() bool {
	return t.Kind == TypeClass || t.Kind == TypeArray || t.Kind == TypeNull
}

// IsString reports whether t is java.lang.String.
func (t Type) IsString() bool { return t.Kind == TypeClass && t.Name == StringClass }

// Equal compares two types structurally.
func (t Type) Equal(o Type) bool {
	if t.Kind != o.Kind || t.Name != o.Name {
		return false
	}
	if t.Elem == nil || o.Elem == nil {
		return t.Elem == nil && o.Elem == nil
	}
	return t.Elem.Equal(*o.Elem)
}

// String renders the type in Java source spelling.
func (t Type) String() string {
	switch t.Kind {
	case TypeClass, TypeVariable:
		return strings.ReplaceAll(t.Name, "$", ".")
	case TypeArray:
		if t.Elem == nil {
			return "?[]"
		}
		return t.Elem.String() + "[]"
	case TypeNull:
		return "null"
	case TypeUnresolved:
		if t.Name != "" {
			return t.Name
		}
		return "<unresolved>"
	}
	return primitiveNames[t.Kind]
}

// widening ranks numeric primitives for binary numeric promotion.
var widening = map[TypeKind]int{
	TypeByte:   1,
	TypeShort:  2,
	TypeChar:   2,
	TypeInt:    3,
	TypeLong:   4,
	TypeFloat:  5,
	TypeDouble: 6,
}

// Promote applies Java binary numeric promotion to two numeric types.
func Promote(a, b Type) Type {
	k := TypeInt
	if widening[a.Kind] > widening[k] {
		k = a.Kind
	}
	if widening[b.Kind] > widening[k] {
		k = b.Kind
	}
	return Primitive(k)
}

// AssignableTo reports whether a value of type t can be passed where
// type to is expected without an explicit cast (identity, primitive
// widening, null to reference, or any reference to reference).
func (t Type) AssignableTo(to Type) bool {
	if t.Equal(to) {
		return true
	}
	switch {
	case t.Kind == TypeNull:
		return to.IsReference()
	case t.IsNumeric() && to.IsNumeric():
		if t.Kind == TypeChar {
			return widening[to.Kind] > widening[TypeShort]
		}
		if to.Kind == TypeChar {
			return false
		}
		return widening[t.Kind] < widening[to.Kind]
	case t.IsReference() && to.IsReference():
		return true
	}
	return false
}
