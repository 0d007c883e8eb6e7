package javasrc

import "github.com/jinix-lang/jinix/internal/ast"

// javaLang lists the java.lang types resolvable by simple name without an
// import.
var javaLang = []string{
	"Object", "String", "CharSequence", "StringBuilder", "Math", "System",
	"Integer", "Long", "Short", "Byte", "Character", "Boolean", "Float", "Double", "Number",
	"Class", "Thread", "Runnable", "Iterable", "Comparable",
	"Throwable", "Exception", "RuntimeException", "Error",
	"IllegalArgumentException", "IllegalStateException", "NullPointerException",
	"ArithmeticException", "IndexOutOfBoundsException", "UnsupportedOperationException",
}

var (
	tInt    = ast.Primitive(ast.TypeInt)
	tLong   = ast.Primitive(ast.TypeLong)
	tDouble = ast.Primitive(ast.TypeDouble)
	tFloat  = ast.Primitive(ast.TypeFloat)
	tBool   = ast.Primitive(ast.TypeBoolean)
	tChar   = ast.Primitive(ast.TypeChar)
	tVoid   = ast.Void()
	tObject = ast.Class("java.lang.Object")
	tString = ast.String()
)

type builtinMethod struct {
	name   string
	params []ast.Type
	ret    ast.Type
	static bool
}

// builtinMembers gives the members of library classes callable from
// nativized code. Everything else on these classes is unresolved.
var builtinMembers = map[string][]builtinMethod{
	"java.lang.Object": {
		{name: "hashCode", ret: tInt},
		{name: "toString", ret: tString},
		{name: "equals", params: []ast.Type{tObject}, ret: tBool},
	},
	"java.lang.String": {
		{name: "length", ret: tInt},
		{name: "isEmpty", ret: tBool},
		{name: "charAt", params: []ast.Type{tInt}, ret: tChar},
		{name: "indexOf", params: []ast.Type{tInt}, ret: tInt},
		{name: "substring", params: []ast.Type{tInt, tInt}, ret: tString},
		{name: "concat", params: []ast.Type{tString}, ret: tString},
	},
	"java.lang.Math": {
		{name: "abs", params: []ast.Type{tInt}, ret: tInt, static: true},
		{name: "abs", params: []ast.Type{tLong}, ret: tLong, static: true},
		{name: "abs", params: []ast.Type{tDouble}, ret: tDouble, static: true},
		{name: "max", params: []ast.Type{tInt, tInt}, ret: tInt, static: true},
		{name: "max", params: []ast.Type{tLong, tLong}, ret: tLong, static: true},
		{name: "max", params: []ast.Type{tDouble, tDouble}, ret: tDouble, static: true},
		{name: "min", params: []ast.Type{tInt, tInt}, ret: tInt, static: true},
		{name: "min", params: []ast.Type{tLong, tLong}, ret: tLong, static: true},
		{name: "min", params: []ast.Type{tDouble, tDouble}, ret: tDouble, static: true},
		{name: "sqrt", params: []ast.Type{tDouble}, ret: tDouble, static: true},
		{name: "pow", params: []ast.Type{tDouble, tDouble}, ret: tDouble, static: true},
	},
	"java.lang.System": {
		{name: "currentTimeMillis", ret: tLong, static: true},
		{name: "nanoTime", ret: tLong, static: true},
		{name: "identityHashCode", params: []ast.Type{tObject}, ret: tInt, static: true},
	},
	"java.lang.Integer": {
		{name: "intValue", ret: tInt},
		{name: "bitCount", params: []ast.Type{tInt}, ret: tInt, static: true},
	},
	"java.lang.Long": {
		{name: "longValue", ret: tLong},
		{name: "bitCount", params: []ast.Type{tLong}, ret: tInt, static: true},
	},
	"java.lang.Float": {
		{name: "floatValue", ret: tFloat},
	},
}

type builtinField struct {
	name string
	typ  ast.Type
}

var builtinStatics = map[string][]builtinField{
	"java.lang.Math":    {{"PI", tDouble}, {"E", tDouble}},
	"java.lang.Integer": {{"MAX_VALUE", tInt}, {"MIN_VALUE", tInt}},
	"java.lang.Long":    {{"MAX_VALUE", tLong}, {"MIN_VALUE", tLong}},
}

// builtinClasses materialises the library table as classes.
func builtinClasses() []*Class {
	var out []*Class
	for _, simple := range javaLang {
		name := "java.lang." + simple
		c := &Class{Name: name, Simple: simple, Static: true}
		if name != "java.lang.Object" {
			c.Super = tObject
		}
		for _, bm := range builtinMembers[name] {
			params := make([]ast.Param, len(bm.params))
			for i, p := range bm.params {
				params[i] = ast.Param{Name: string(rune('a' + i)), Type: p}
			}
			c.Methods = append(c.Methods, &Method{Class: c, Name: bm.name, Params: params, Return: bm.ret, Static: bm.static})
		}
		for _, bf := range builtinStatics[name] {
			c.Fields = append(c.Fields, &Field{Class: c, Name: bf.name, Type: bf.typ, Static: true})
		}
		out = append(out, c)
	}
	return out
}
