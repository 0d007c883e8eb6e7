// Package codegen translates resolved Java method bodies into C++ that
// performs the same work through JNI.
//
// Every class, method and field handle a body needs is obtained by a lookup
// statement. Lookups are kept out of the statement text until the whole
// body is transpiled; the placement pass then declares each one in the
// outermost scope where it is valid and before any lookup that reads it.
package codegen

import (
	"fmt"
	"strings"

	"github.com/jinix-lang/jinix/internal/ast"
	jerrors "github.com/jinix-lang/jinix/internal/errors"
	"github.com/jinix-lang/jinix/internal/jni"
)

// Policy selects where lookups are declared.
type Policy string

const (
	// PolicyInline declares lookups inside each function body.
	PolicyInline Policy = "inline"
	// PolicyGlobal declares lookups once per unit and fills them in when
	// the library is loaded.
	PolicyGlobal Policy = "global"
)

// ParsePolicy accepts a policy name; empty means inline.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(PolicyInline):
		return PolicyInline, nil
	case string(PolicyGlobal):
		return PolicyGlobal, nil
	}
	return "", jerrors.Invalid("unknown lookup policy %q (want inline or global)", s)
}

// Options configures a Transpiler.
type Options struct {
	Policy Policy
	// Indent is one nesting level; DefaultIndent when empty.
	Indent string
}

// Transpiler converts method declarations into native functions. It holds
// no per-method state and may be shared between goroutines.
type Transpiler struct {
	opts Options
}

// New returns a Transpiler for opts.
func New(opts Options) *Transpiler {
	if opts.Policy == "" {
		opts.Policy = PolicyInline
	}
	if opts.Indent == "" {
		opts.Indent = DefaultIndent
	}
	return &Transpiler{opts: opts}
}

// Options returns the effective options.
func (t *Transpiler) Options() Options { return t.opts }

// Function is one generated native method.
type Function struct {
	Class  string
	Method string
	Symbol string
	Return string
	// Receiver is "jobject thisObject" or, for static methods,
	// "jclass thisClass".
	Receiver string
	Params   []string
	// Body holds the rendered statements without the outer braces or
	// indentation.
	Body string
	// Lookups lists every handle the body reads. Under the inline policy
	// they are already declared in Body.
	Lookups  []*Lookup
	Requires Requirements
	Static   bool
}

// Prototype is the header declaration of the function.
func (f *Function) Prototype() string {
	types := []string{"JNIEnv *", strings.Fields(f.Receiver)[0]}
	for _, p := range f.Params {
		types = append(types, p[:strings.LastIndexByte(p, ' ')])
	}
	return fmt.Sprintf("JNIEXPORT %s JNICALL %s(%s);", f.Return, f.Symbol, strings.Join(types, ", "))
}

// Definition renders the complete function.
func (f *Function) Definition(indent string) string {
	if indent == "" {
		indent = DefaultIndent
	}
	params := append([]string{"JNIEnv *env", f.Receiver}, f.Params...)
	var sb strings.Builder
	fmt.Fprintf(&sb, "JNIEXPORT %s JNICALL %s(%s) {\n", f.Return, f.Symbol, strings.Join(params, ", "))
	if f.Body != "" {
		sb.WriteString(indentText(f.Body, indent))
		sb.WriteString("\n")
	}
	sb.WriteString("}\n")
	return sb.String()
}

// TranspileMethod converts a single method. Its symbol uses the short JNI
// name; use TranspileClass when a class has overloaded native methods.
func (t *Transpiler) TranspileMethod(decl *ast.MethodDecl) (*Function, error) {
	return t.transpile(decl, false)
}

// TranspileClass converts methods of one class, using the long JNI symbol
// for every name declared more than once.
func (t *Transpiler) TranspileClass(methods []*ast.MethodDecl) ([]*Function, error) {
	names := make(map[string]int)
	for _, m := range methods {
		names[m.Name]++
	}
	out := make([]*Function, 0, len(methods))
	for _, m := range methods {
		fn, err := t.transpile(m, names[m.Name] > 1)
		if err != nil {
			return nil, err
		}
		out = append(out, fn)
	}
	return out, nil
}

func (t *Transpiler) transpile(decl *ast.MethodDecl, overloaded bool) (*Function, error) {
	fn, err := t.function(decl, overloaded)
	if err != nil {
		return nil, jerrors.InMethod(err, decl.Class, decl.Name)
	}
	return fn, nil
}

func checkDecl(decl *ast.MethodDecl) error {
	switch {
	case decl.Abstract:
		return jerrors.Unsupported("abstract method", decl.Name)
	case decl.Synchronized:
		return jerrors.Unsupported("synchronized method", decl.Name)
	case decl.Body == nil:
		return jerrors.Unsupported("method without body", decl.Name)
	case decl.Class == "" || decl.Name == "":
		return jerrors.Unresolved("method declaration", decl.Name)
	}
	return nil
}

func (t *Transpiler) function(decl *ast.MethodDecl, overloaded bool) (*Function, error) {
	if err := checkDecl(decl); err != nil {
		return nil, err
	}
	m := &method{
		decl:      decl,
		arena:     NewArena(),
		discarded: ast.DiscardedResults(decl.Body),
	}
	nodes, err := m.block(decl.Body.Stmts)
	if err != nil {
		return nil, err
	}
	if t.opts.Policy == PolicyInline {
		if err := Place(&nodes, m.arena); err != nil {
			return nil, err
		}
	}
	body, err := Render(nodes, m.arena, t.opts.Indent)
	if err != nil {
		return nil, err
	}

	ret, err := jni.NativeType(decl.Return)
	if err != nil {
		return nil, err
	}
	ref := decl.Ref()
	symbol, err := jni.FunctionName(decl.Class, decl.Name, ref.Params, overloaded)
	if err != nil {
		return nil, err
	}
	params := make([]string, 0, len(decl.Params))
	for _, p := range decl.Params {
		typ, err := jni.NativeType(p.Type)
		if err != nil {
			return nil, err
		}
		params = append(params, typ+" "+localName(p.Name))
	}
	receiver := "jobject " + thisObject
	if decl.Static {
		receiver = "jclass " + thisClass
	}

	return &Function{
		Class:    decl.Class,
		Method:   decl.Name,
		Symbol:   symbol,
		Return:   ret,
		Receiver: receiver,
		Params:   params,
		Body:     body,
		Lookups:  m.arena.All(),
		Requires: m.req,
		Static:   decl.Static,
	}, nil
}
