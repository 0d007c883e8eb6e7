package codegen

import (
	"fmt"
	"strings"

	"github.com/jinix-lang/jinix/internal/ast"
	"github.com/jinix-lang/jinix/internal/jni"
)

// LookupKind classifies the handle a Lookup obtains.
type LookupKind int

const (
	LookupClass LookupKind = iota
	LookupMethod
	LookupStaticMethod
	LookupField
	LookupStaticField
)

func (k LookupKind) String() string {
	switch k {
	case LookupClass:
		return "class"
	case LookupMethod:
		return "method"
	case LookupStaticMethod:
		return "static-method"
	case LookupField:
		return "field"
	case LookupStaticField:
		return "static-field"
	}
	return fmt.Sprintf("LookupKind(%d)", int(k))
}

// Lookup is one JNI handle declaration. Var is derived only from the
// declaring class, the member name and its descriptor, so two call sites of
// the same member produce equal lookups.
type Lookup struct {
	Var        string
	Decl       string // jclass, jmethodID or jfieldID
	Init       string
	Class      string // binary name of the declaring class
	Member     string
	Descriptor string
	Kind       LookupKind
}

// Statement renders the lookup as a local declaration.
func (l *Lookup) Statement() string {
	return l.Decl + " " + l.Var + " = " + l.Init + ";"
}

// GlobalInit is the initialisation used when the handle lives at file
// scope; class references must outlive the local frame of the initialiser.
func (l *Lookup) GlobalInit() string {
	if l.Kind == LookupClass {
		return "(jclass)env->NewGlobalRef(" + l.Init + ")"
	}
	return l.Init
}

// ClassVar is the variable holding the class handle of binaryName.
func ClassVar(binaryName string) string {
	return "class_" + jni.Escape(jni.InternalName(binaryName))
}

// MethodVar is the variable holding a method handle.
func MethodVar(owner, name, descriptor string) string {
	sig := strings.Replace(strings.TrimPrefix(descriptor, "("), ")", "", 1)
	return jni.Escape(jni.InternalName(owner)) + "_" + jni.Escape(name) + "_" + jni.Escape(sig)
}

// FieldVar is the variable holding a field handle.
func FieldVar(owner, name string) string {
	return jni.Escape(jni.InternalName(owner)) + "_" + jni.Escape(name)
}

// Arena owns the lookups of one method (or, under the global policy, one
// compilation unit). Everything else refers to lookups by variable name.
type Arena struct {
	byVar map[string]*Lookup
	order []string
}

// NewArena returns an empty arena.
func NewArena() *Arena {
	return &Arena{byVar: make(map[string]*Lookup)}
}

func (a *Arena) intern(l *Lookup) string {
	if _, ok := a.byVar[l.Var]; !ok {
		a.byVar[l.Var] = l
		a.order = append(a.order, l.Var)
	}
	return l.Var
}

// Get returns the lookup stored under key, or nil.
func (a *Arena) Get(key string) *Lookup { return a.byVar[key] }

// Len is the number of distinct lookups.
func (a *Arena) Len() int { return len(a.order) }

// All returns every lookup in creation order.
func (a *Arena) All() []*Lookup {
	out := make([]*Lookup, 0, len(a.order))
	for _, k := range a.order {
		out = append(out, a.byVar[k])
	}
	return out
}

// Class interns the class lookup for binaryName and returns its key.
func (a *Arena) Class(binaryName string) string {
	internal := jni.InternalName(binaryName)
	return a.intern(&Lookup{
		Kind:  LookupClass,
		Var:   ClassVar(binaryName),
		Decl:  "jclass",
		Init:  fmt.Sprintf("env->FindClass(%q)", internal),
		Class: binaryName,
	})
}

// Method interns the class and method lookups for ref and returns both
// keys, class first.
func (a *Arena) Method(ref ast.MethodRef) (string, string, error) {
	desc, err := jni.MethodDescriptor(ref.Params, ref.Return)
	if err != nil {
		return "", "", err
	}
	classKey := a.Class(ref.Owner)
	kind, getter := LookupMethod, "GetMethodID"
	if ref.Static {
		kind, getter = LookupStaticMethod, "GetStaticMethodID"
	}
	key := a.intern(&Lookup{
		Kind:       kind,
		Var:        MethodVar(ref.Owner, ref.Name, desc),
		Decl:       "jmethodID",
		Init:       fmt.Sprintf("env->%s(%s, %q, %q)", getter, classKey, ref.Name, desc),
		Class:      ref.Owner,
		Member:     ref.Name,
		Descriptor: desc,
	})
	return classKey, key, nil
}

// Field interns the class and field lookups for ref and returns both keys,
// class first.
func (a *Arena) Field(ref ast.FieldRef) (string, string, error) {
	desc, err := jni.Descriptor(ref.Type)
	if err != nil {
		return "", "", err
	}
	classKey := a.Class(ref.Owner)
	kind, getter := LookupField, "GetFieldID"
	if ref.Static {
		kind, getter = LookupStaticField, "GetStaticFieldID"
	}
	key := a.intern(&Lookup{
		Kind:       kind,
		Var:        FieldVar(ref.Owner, ref.Name),
		Decl:       "jfieldID",
		Init:       fmt.Sprintf("env->%s(%s, %q, %q)", getter, classKey, ref.Name, desc),
		Class:      ref.Owner,
		Member:     ref.Name,
		Descriptor: desc,
	})
	return classKey, key, nil
}

// mergeKeys appends the keys of src missing from dst, keeping order.
func mergeKeys(dst []string, src ...string) []string {
	for _, k := range src {
		if !hasKey(dst, k) {
			dst = append(dst, k)
		}
	}
	return dst
}

func hasKey(keys []string, k string) bool {
	for _, x := range keys {
		if x == k {
			return true
		}
	}
	return false
}

// containsToken reports whether tok occurs in s as a whole identifier.
func containsToken(s, tok string) bool {
	for from := 0; ; {
		i := strings.Index(s[from:], tok)
		if i < 0 {
			return false
		}
		start := from + i
		end := start + len(tok)
		if (start == 0 || !isIdentByte(s[start-1])) && (end == len(s) || !isIdentByte(s[end])) {
			return true
		}
		from = start + 1
	}
}

func isIdentByte(c byte) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}
