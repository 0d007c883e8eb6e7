package codegen

import "strings"

// reservedNames are identifiers a Java local may legally use that mean
// something else in the generated function: the JNI parameters, JNI
// typedefs, and C++ keywords that are not Java keywords.
var reservedNames = map[string]bool{
	"env": true, thisObject: true, thisClass: true,

	"JNIEnv": true, "JavaVM": true, "JNIEXPORT": true, "JNICALL": true,
	"jboolean": true, "jbyte": true, "jchar": true, "jshort": true, "jint": true,
	"jlong": true, "jfloat": true, "jdouble": true, "jsize": true, "jobject": true,
	"jclass": true, "jstring": true, "jthrowable": true, "jarray": true,
	"jfieldID": true, "jmethodID": true, "jvalue": true, "std": true, "NULL": true,

	"alignas": true, "alignof": true, "and": true, "and_eq": true, "asm": true,
	"auto": true, "bitand": true, "bitor": true, "bool": true, "compl": true,
	"concept": true, "consteval": true, "constexpr": true, "constinit": true,
	"const_cast": true, "co_await": true, "co_return": true, "co_yield": true,
	"decltype": true, "delete": true, "dynamic_cast": true, "explicit": true,
	"export": true, "extern": true, "friend": true, "inline": true, "mutable": true,
	"namespace": true, "noexcept": true, "not": true, "not_eq": true, "nullptr": true,
	"operator": true, "or": true, "or_eq": true, "reinterpret_cast": true,
	"register": true, "requires": true, "signed": true, "sizeof": true,
	"static_assert": true, "static_cast": true, "struct": true, "template": true,
	"thread_local": true, "typedef": true, "typeid": true, "typename": true,
	"union": true, "unsigned": true, "using": true, "virtual": true,
	"wchar_t": true, "char8_t": true, "char16_t": true, "char32_t": true,
	"xor": true, "xor_eq": true,
}

// localName is the C++ name of a Java local or parameter. Names that could
// collide with the function's own identifiers get a "_j" prefix: reserved
// words, support helper names, and anything with an underscore, which
// every lookup variable and prefixed name contains. Distinct Java names
// stay distinct.
func localName(name string) string {
	if reservedNames[name] || strings.ContainsRune(name, '_') || helperName(name) {
		return "_j" + name
	}
	return name
}

func helperName(name string) bool {
	for _, prefix := range []string{"SetAndGet", "PrefixAdd", "PostfixAdd", stringValueHelper} {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}
