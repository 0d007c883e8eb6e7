package codegen

import (
	"fmt"
	"strings"

	jerrors "github.com/jinix-lang/jinix/internal/errors"
)

var channelTypes = map[string]string{
	"Boolean": "jboolean",
	"Byte":    "jbyte",
	"Char":    "jchar",
	"Short":   "jshort",
	"Int":     "jint",
	"Long":    "jlong",
	"Float":   "jfloat",
	"Double":  "jdouble",
	"Object":  "jobject",
}

// SupportSource renders the C++ definitions of helpers. Only the helpers
// passed in are emitted.
func SupportSource(helpers []Helper) (string, error) {
	var sb strings.Builder
	for i, h := range helpers {
		if i > 0 {
			sb.WriteString("\n")
		}
		if err := writeHelper(&sb, h); err != nil {
			return "", err
		}
	}
	return sb.String(), nil
}

// stringValueSource copies the modified UTF-8 of a Java string. A null
// string raises NullPointerException and yields "".
const stringValueSource = `static inline std::string StringValue(JNIEnv *env, jstring str) {
    if (str == nullptr) {
        env->ThrowNew(env->FindClass("java/lang/NullPointerException"), "null String");
        return std::string();
    }
    const char *chars = env->GetStringUTFChars(str, nullptr);
    if (chars == nullptr) {
        return std::string();
    }
    std::string value(chars);
    env->ReleaseStringUTFChars(str, chars);
    return value;
}
`

func writeHelper(sb *strings.Builder, h Helper) error {
	if h.Op == HelperStringValue {
		sb.WriteString(stringValueSource)
		return nil
	}
	typ, ok := channelTypes[h.Channel]
	if !ok {
		return jerrors.Invariant("no support helper for channel %q", h.Channel)
	}
	if h.Op != HelperSetAndGet && (h.Channel == "Object" || h.Channel == "Boolean") {
		return jerrors.Invariant("%s has no arithmetic form", h.Name())
	}

	recv, static := "jobject obj", ""
	if h.Static {
		recv, static = "jclass obj", "Static"
	}
	get := fmt.Sprintf("env->Get%s%sField(obj, fieldID)", static, h.Channel)
	set := func(v string) string {
		return fmt.Sprintf("env->Set%s%sField(obj, fieldID, %s);", static, h.Channel, v)
	}

	switch h.Op {
	case HelperSetAndGet:
		fmt.Fprintf(sb, "static inline %s %s(JNIEnv *env, %s, jfieldID fieldID, %s value) {\n", typ, h.Name(), recv, typ)
		fmt.Fprintf(sb, "    %s\n", set("value"))
	case HelperPrefixAdd:
		fmt.Fprintf(sb, "static inline %s %s(JNIEnv *env, %s, jfieldID fieldID, %s change) {\n", typ, h.Name(), recv, typ)
		fmt.Fprintf(sb, "    %s value = (%s)(%s + change);\n", typ, typ, get)
		fmt.Fprintf(sb, "    %s\n", set("value"))
	case HelperPostfixAdd:
		fmt.Fprintf(sb, "static inline %s %s(JNIEnv *env, %s, jfieldID fieldID, %s change) {\n", typ, h.Name(), recv, typ)
		fmt.Fprintf(sb, "    %s value = %s;\n", typ, get)
		fmt.Fprintf(sb, "    %s\n", set(fmt.Sprintf("(%s)(value + change)", typ)))
	}
	sb.WriteString("    return value;\n}\n")
	return nil
}
