package codegen

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// HeaderGuard protects the generated header against double inclusion.
const HeaderGuard = "JINIX_H"

// Header renders the declarations of fns, sorted by symbol.
func Header(fns []*Function) string {
	protos := make([]string, 0, len(fns))
	for _, fn := range fns {
		protos = append(protos, fn.Prototype())
	}
	sort.Strings(protos)

	var sb strings.Builder
	fmt.Fprintf(&sb, "#ifndef %s\n#define %s\n\n#include <jni.h>\n\n", HeaderGuard, HeaderGuard)
	sb.WriteString("#ifdef __cplusplus\nextern \"C\" {\n#endif\n\n")
	for _, p := range protos {
		sb.WriteString(p + "\n")
	}
	if len(protos) > 0 {
		sb.WriteString("\n")
	}
	sb.WriteString("#ifdef __cplusplus\n}\n#endif\n\n#endif\n")
	return sb.String()
}

// Unit accumulates the functions of one native library. Add may be called
// from several goroutines.
type Unit struct {
	mu        sync.Mutex
	opts      Options
	functions []*Function
	req       Requirements
}

// NewUnit returns an empty unit.
func NewUnit(opts Options) *Unit {
	if opts.Policy == "" {
		opts.Policy = PolicyInline
	}
	if opts.Indent == "" {
		opts.Indent = DefaultIndent
	}
	return &Unit{opts: opts}
}

// Add records generated functions.
func (u *Unit) Add(fns ...*Function) {
	u.mu.Lock()
	defer u.mu.Unlock()
	for _, fn := range fns {
		u.functions = append(u.functions, fn)
		u.req.Merge(fn.Requires)
	}
}

// Functions returns the recorded functions ordered by class, then symbol.
func (u *Unit) Functions() []*Function {
	u.mu.Lock()
	defer u.mu.Unlock()
	out := append([]*Function(nil), u.functions...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Class != out[j].Class {
			return out[i].Class < out[j].Class
		}
		return out[i].Symbol < out[j].Symbol
	})
	return out
}

// Len is the number of recorded functions.
func (u *Unit) Len() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.functions)
}

// Header renders the unit's header.
func (u *Unit) Header() string { return Header(u.Functions()) }

// GlobalLookups returns the unit's lookup table in dependency order,
// deduplicated by variable name. Lookups are collected in function order so
// the table does not depend on the order functions were added. It is empty
// under the inline policy.
func (u *Unit) GlobalLookups() ([]*Lookup, error) {
	if u.opts.Policy != PolicyGlobal {
		return nil, nil
	}
	globals := NewArena()
	for _, fn := range u.Functions() {
		for _, l := range fn.Lookups {
			globals.intern(l)
		}
	}
	all := globals.All()
	return SortLookups(all)
}

// Source renders the unit's C++ source, including headerName.
func (u *Unit) Source(headerName string) (string, error) {
	fns := u.Functions()
	u.mu.Lock()
	req := Requirements{}
	req.Merge(u.req)
	u.mu.Unlock()

	var sb strings.Builder
	fmt.Fprintf(&sb, "#include %q\n", headerName)
	for _, inc := range req.Includes() {
		sb.WriteString("#include " + inc + "\n")
	}

	if helpers := req.Helpers(); len(helpers) > 0 {
		support, err := SupportSource(helpers)
		if err != nil {
			return "", err
		}
		sb.WriteString("\n" + support)
	}

	if u.opts.Policy == PolicyGlobal {
		lookups, err := u.GlobalLookups()
		if err != nil {
			return "", err
		}
		if len(lookups) > 0 {
			sb.WriteString("\n")
			u.writeGlobals(&sb, lookups)
		}
	}

	for _, fn := range fns {
		sb.WriteString("\n" + fn.Definition(u.opts.Indent))
	}
	return sb.String(), nil
}

// writeGlobals emits the file-scope handles, their initialiser and the
// JNI_OnLoad entry point that runs it.
func (u *Unit) writeGlobals(sb *strings.Builder, lookups []*Lookup) {
	in := u.opts.Indent
	for _, l := range lookups {
		fmt.Fprintf(sb, "static %s %s;\n", l.Decl, l.Var)
	}
	sb.WriteString("\nstatic void jinix_init(JNIEnv *env) {\n")
	for _, l := range lookups {
		fmt.Fprintf(sb, "%s%s = %s;\n", in, l.Var, l.GlobalInit())
	}
	sb.WriteString("}\n\n")
	sb.WriteString("JNIEXPORT jint JNICALL JNI_OnLoad(JavaVM *vm, void *reserved) {\n")
	fmt.Fprintf(sb, "%sJNIEnv *env;\n", in)
	fmt.Fprintf(sb, "%sif (vm->GetEnv((void **)&env, JNI_VERSION_1_8) != JNI_OK) {\n", in)
	fmt.Fprintf(sb, "%s%sreturn JNI_ERR;\n", in, in)
	fmt.Fprintf(sb, "%s}\n", in)
	fmt.Fprintf(sb, "%sjinix_init(env);\n", in)
	fmt.Fprintf(sb, "%sreturn JNI_VERSION_1_8;\n", in)
	sb.WriteString("}\n")
}
