package codegen

import (
	"strings"
	"sync"
	"testing"

	"github.com/jinix-lang/jinix/internal/ast"
	jerrors "github.com/jinix-lang/jinix/internal/errors"
)

func TestUnitGlobalPolicy(t *testing.T) {
	tr := New(Options{Policy: PolicyGlobal})
	unit := NewUnit(tr.Options())

	var wg sync.WaitGroup
	for _, name := range []string{"first", "second"} {
		decl := methodOf(name, tVoid, &ast.While{Cond: flag(), Body: block(do(invoke("call", tVoid)))})
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn, err := tr.TranspileMethod(decl)
			if err != nil {
				t.Error(err)
				return
			}
			unit.Add(fn)
		}()
	}
	wg.Wait()

	src, err := unit.Source("jinix.h")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		"static jclass class_Dummy;\nstatic jmethodID Dummy_call_V;\n",
		"    class_Dummy = (jclass)env->NewGlobalRef(env->FindClass(\"Dummy\"));\n" +
			"    Dummy_call_V = env->GetMethodID(class_Dummy, \"call\", \"()V\");\n",
		"JNIEXPORT jint JNICALL JNI_OnLoad(JavaVM *vm, void *reserved) {",
		"JNIEXPORT void JNICALL Java_Dummy_first(JNIEnv *env, jobject thisObject) {\n" +
			"    while (flag) {\n" +
			"        env->CallVoidMethod(thisObject, Dummy_call_V);\n" +
			"    }\n" +
			"}\n",
	} {
		if !strings.Contains(src, want) {
			t.Errorf("source lacks %q\n%s", want, src)
		}
	}
	if n := strings.Count(src, "static jmethodID Dummy_call_V;"); n != 1 {
		t.Errorf("method handle declared %d times", n)
	}
	if strings.Contains(src, "jmethodID Dummy_call_V = ") {
		t.Error("global policy emitted a local lookup")
	}
	if strings.Index(src, "Java_Dummy_first") > strings.Index(src, "Java_Dummy_second") {
		t.Error("functions are not ordered by symbol")
	}
}

func TestUnitInlineSource(t *testing.T) {
	unit := NewUnit(Options{})
	decl := methodOf("f", tInt, &ast.Return{Value: &ast.Unary{X: field(dummy, "a", tInt, false), Op: "++", Typ: tInt}})
	unit.Add(transpileBody(t, decl))

	src, err := unit.Source("jinix.h")
	if err != nil {
		t.Fatal(err)
	}
	want := lines(
		`#include "jinix.h"`,
		"",
		"static inline jint PrefixAddIntField(JNIEnv *env, jobject obj, jfieldID fieldID, jint change) {",
		"    jint value = (jint)(env->GetIntField(obj, fieldID) + change);",
		"    env->SetIntField(obj, fieldID, value);",
		"    return value;",
		"}",
		"",
		"JNIEXPORT jint JNICALL Java_Dummy_f(JNIEnv *env, jobject thisObject) {",
		`    jclass class_Dummy = env->FindClass("Dummy");`,
		`    jfieldID Dummy_a = env->GetFieldID(class_Dummy, "a", "I");`,
		"    return (int)PrefixAddIntField(env, thisObject, Dummy_a, 1);",
		"}",
		"",
	)
	if src != want {
		t.Errorf("source mismatch\n--- got ---\n%s\n--- want ---\n%s", src, want)
	}
	if strings.Contains(src, "JNI_OnLoad") {
		t.Error("inline policy emitted JNI_OnLoad")
	}
}

func TestHeader(t *testing.T) {
	fns, err := New(Options{}).TranspileClass([]*ast.MethodDecl{
		methodOf("b", tVoid),
		{Class: dummy, Name: "a", Return: tBool, Static: true, Body: block(),
			Params: []ast.Param{{Name: "n", Type: tInt}}},
	})
	if err != nil {
		t.Fatal(err)
	}
	got := Header(fns)
	want := lines(
		"#ifndef JINIX_H",
		"#define JINIX_H",
		"",
		"#include <jni.h>",
		"",
		"#ifdef __cplusplus",
		`extern "C" {`,
		"#endif",
		"",
		"JNIEXPORT jboolean JNICALL Java_Dummy_a(JNIEnv *, jclass, jint);",
		"JNIEXPORT void JNICALL Java_Dummy_b(JNIEnv *, jobject);",
		"",
		"#ifdef __cplusplus",
		"}",
		"#endif",
		"",
		"#endif",
		"",
	)
	if got != want {
		t.Errorf("header mismatch\n--- got ---\n%s\n--- want ---\n%s", got, want)
	}
}

func TestSupportSourceOnlyRequested(t *testing.T) {
	src, err := SupportSource([]Helper{{Op: HelperPostfixAdd, Channel: "Long", Static: true}})
	if err != nil {
		t.Fatal(err)
	}
	want := lines(
		"static inline jlong PostfixAddStaticLongField(JNIEnv *env, jclass obj, jfieldID fieldID, jlong change) {",
		"    jlong value = env->GetStaticLongField(obj, fieldID);",
		"    env->SetStaticLongField(obj, fieldID, (jlong)(value + change));",
		"    return value;",
		"}",
		"",
	)
	if src != want {
		t.Errorf("support mismatch\n--- got ---\n%s\n--- want ---\n%s", src, want)
	}
	if _, err := SupportSource([]Helper{{Op: HelperPrefixAdd, Channel: "Object"}}); !jerrors.IsCategory(err, jerrors.CategoryInvariant) {
		t.Errorf("arithmetic helper on objects: %v", err)
	}
	if _, err := SupportSource([]Helper{{Op: HelperSetAndGet, Channel: "Void"}}); !jerrors.IsCategory(err, jerrors.CategoryInvariant) {
		t.Errorf("helper on an unknown channel: %v", err)
	}
}

func TestUnitGlobalLookupsIgnoreAddOrder(t *testing.T) {
	tr := New(Options{Policy: PolicyGlobal})
	fns, err := tr.TranspileClass([]*ast.MethodDecl{
		methodOf("alpha", tVoid, do(staticInvoke("pkg.Zed", "z", tVoid))),
		methodOf("beta", tVoid, do(staticInvoke("pkg.Able", "a", tVoid))),
		methodOf("gamma", tVoid, do(staticInvoke("pkg.Zed", "z", tVoid)), do(invoke("call", tVoid))),
	})
	if err != nil {
		t.Fatal(err)
	}
	render := func(order ...int) string {
		unit := NewUnit(tr.Options())
		for _, i := range order {
			unit.Add(fns[i])
		}
		src, err := unit.Source("jinix.h")
		if err != nil {
			t.Fatal(err)
		}
		return src
	}

	forward := render(0, 1, 2)
	if backward := render(2, 1, 0); backward != forward {
		t.Errorf("source depends on Add order\n--- forward ---\n%s\n--- backward ---\n%s", forward, backward)
	}
	want := "static jclass class_pkg_Zed;\nstatic jmethodID pkg_Zed_z_V;\n" +
		"static jclass class_pkg_Able;\nstatic jmethodID pkg_Able_a_V;\n" +
		"static jclass class_Dummy;\nstatic jmethodID Dummy_call_V;\n"
	if !strings.Contains(forward, want) {
		t.Errorf("globals not in function order\n%s", forward)
	}
}

func TestUnitInlineHasNoGlobals(t *testing.T) {
	unit := NewUnit(Options{})
	unit.Add(transpileBody(t, methodOf("m", tVoid, do(invoke("call", tVoid)))))
	lookups, err := unit.GlobalLookups()
	if err != nil || len(lookups) != 0 {
		t.Errorf("GlobalLookups = %v, %v", lookups, err)
	}
}

func TestEmptyMethodDefinition(t *testing.T) {
	fn := transpileBody(t, methodOf("nop", tVoid))
	if got := fn.Definition(""); got != "JNIEXPORT void JNICALL Java_Dummy_nop(JNIEnv *env, jobject thisObject) {\n}\n" {
		t.Errorf("Definition = %q", got)
	}
}
