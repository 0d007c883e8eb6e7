package jni

import (
	"testing"

	"github.com/jinix-lang/jinix/internal/ast"
	jerrors "github.com/jinix-lang/jinix/internal/errors"
)

func TestLocalType(t *testing.T) {
	tests := []struct {
		in      ast.Type
		want    string
		include string
	}{
		{ast.Primitive(ast.TypeBoolean), "bool", ""},
		{ast.Primitive(ast.TypeInt), "int", ""},
		{ast.Primitive(ast.TypeLong), "jlong", ""},
		{ast.Primitive(ast.TypeByte), "jbyte", ""},
		{ast.Primitive(ast.TypeChar), "jchar", ""},
		{ast.Primitive(ast.TypeShort), "short", ""},
		{ast.Primitive(ast.TypeDouble), "double", ""},
		{ast.String(), "std::string", IncludeString},
		{ast.Class("java.util.List"), "jobject", ""},
		{ast.ArrayOf(ast.Primitive(ast.TypeInt)), "jobject", ""},
	}
	for _, tt := range tests {
		got, inc, err := LocalType(tt.in)
		if err != nil {
			t.Errorf("LocalType(%s): %v", tt.in, err)
			continue
		}
		if got != tt.want || inc != tt.include {
			t.Errorf("LocalType(%s) = %q, %q; want %q, %q", tt.in, got, inc, tt.want, tt.include)
		}
	}
}

func TestNativeTypeAndChannel(t *testing.T) {
	tests := []struct {
		in      ast.Type
		native  string
		channel string
	}{
		{ast.Void(), "void", "Void"},
		{ast.Primitive(ast.TypeChar), "jchar", "Char"},
		{ast.Primitive(ast.TypeFloat), "jfloat", "Float"},
		{ast.String(), "jstring", "Object"},
		{ast.Class("a.B"), "jobject", "Object"},
	}
	for _, tt := range tests {
		native, err := NativeType(tt.in)
		if err != nil || native != tt.native {
			t.Errorf("NativeType(%s) = %q, %v", tt.in, native, err)
		}
		channel, err := Channel(tt.in)
		if err != nil || channel != tt.channel {
			t.Errorf("Channel(%s) = %q, %v", tt.in, channel, err)
		}
	}
}

func TestRejectsUnresolvedTypes(t *testing.T) {
	tests := []struct {
		name     string
		in       ast.Type
		category jerrors.ErrorCategory
	}{
		{"unresolved", ast.Type{Name: "Foo"}, jerrors.CategoryResolution},
		{"type variable", ast.Type{Kind: ast.TypeVariable, Name: "T"}, jerrors.CategoryUnsupported},
		{"nested array", ast.ArrayOf(ast.ArrayOf(ast.Primitive(ast.TypeInt))), jerrors.CategoryUnsupported},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Descriptor(tt.in)
			if !jerrors.IsCategory(err, tt.category) {
				t.Errorf("Descriptor error = %v", err)
			}
			if _, _, err := LocalType(tt.in); err == nil {
				t.Error("LocalType accepted the type")
			}
		})
	}
}

func TestMethodDescriptor(t *testing.T) {
	tests := []struct {
		params []ast.Type
		ret    ast.Type
		want   string
	}{
		{nil, ast.Void(), "()V"},
		{[]ast.Type{ast.Primitive(ast.TypeInt), ast.Primitive(ast.TypeInt)}, ast.Primitive(ast.TypeInt), "(II)I"},
		{[]ast.Type{ast.String(), ast.ArrayOf(ast.Primitive(ast.TypeByte))}, ast.Class("a.b.C$D"), "(Ljava/lang/String;[B)La/b/C$D;"},
		{[]ast.Type{ast.Primitive(ast.TypeLong), ast.Primitive(ast.TypeBoolean)}, ast.Primitive(ast.TypeDouble), "(JZ)D"},
	}
	for _, tt := range tests {
		got, err := MethodDescriptor(tt.params, tt.ret)
		if err != nil || got != tt.want {
			t.Errorf("MethodDescriptor = %q, %v; want %q", got, err, tt.want)
		}
	}
}

func TestEscape(t *testing.T) {
	tests := map[string]string{
		"pkg/Util":             "pkg_Util",
		"my_method":            "my_1method",
		"Ljava/lang/String;":   "Ljava_lang_String_2",
		"[I":                   "_3I",
		"Outer$Inner":          "Outer_00024Inner",
		"café":            "caf_000e9",
		"a.b":                  "a_b",
		"Lcom/x_y/Z;[Ljava/A;": "Lcom_x_1y_Z_2_3Ljava_A_2",
	}
	for in, want := range tests {
		if got := Escape(in); got != want {
			t.Errorf("Escape(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFunctionName(t *testing.T) {
	tests := []struct {
		class, method string
		params        []ast.Type
		overloaded    bool
		want          string
	}{
		{"Dummy", "run", nil, false, "Java_Dummy_run"},
		{"a.b.Outer$Inner", "do_it", nil, false, "Java_a_b_Outer_00024Inner_do_1it"},
		{"Dummy", "sum", []ast.Type{ast.Primitive(ast.TypeInt), ast.String()}, true, "Java_Dummy_sum__ILjava_lang_String_2"},
		{"Dummy", "none", nil, true, "Java_Dummy_none__"},
	}
	for _, tt := range tests {
		got, err := FunctionName(tt.class, tt.method, tt.params, tt.overloaded)
		if err != nil || got != tt.want {
			t.Errorf("FunctionName(%s, %s) = %q, %v; want %q", tt.class, tt.method, got, err, tt.want)
		}
	}
}

func TestZeroValue(t *testing.T) {
	tests := map[ast.TypeKind]string{
		ast.TypeVoid:    "",
		ast.TypeBoolean: "JNI_FALSE",
		ast.TypeInt:     "0",
		ast.TypeClass:   "nullptr",
	}
	for kind, want := range tests {
		if got := ZeroValue(ast.Type{Kind: kind, Name: "x"}); got != want {
			t.Errorf("ZeroValue(%d) = %q, want %q", kind, got, want)
		}
	}
}
