package javasrc

import (
	"io/fs"
	"path"
	"regexp"
	"sort"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/jinix-lang/jinix/internal/ast"
	jerrors "github.com/jinix-lang/jinix/internal/errors"
)

// Index resolves names across a set of parsed files.
type Index struct {
	files   []*File
	classes map[string]*Class
}

// NewIndex indexes files and resolves every member signature. Types that
// cannot be resolved are kept as unresolved and only fail when a nativized
// body depends on them.
func NewIndex(files ...*File) (*Index, error) {
	ix := &Index{classes: make(map[string]*Class)}
	for _, c := range builtinClasses() {
		ix.classes[c.Name] = c
	}
	for _, f := range files {
		for _, c := range f.Classes {
			if prev, ok := ix.classes[c.Name]; ok && prev.file != nil {
				return nil, jerrors.Invalid("class %s declared in both %s and %s", c.Name, prev.file.Name, f.Name)
			}
			ix.classes[c.Name] = c
		}
		ix.files = append(ix.files, f)
	}
	for _, f := range ix.files {
		for _, c := range f.Classes {
			ix.link(c)
		}
	}
	return ix, nil
}

// Load parses every .java file below root in fsys.
func Load(fsys fs.FS, root string) (*Index, error) {
	var files []*File
	closeAll := func() {
		for _, f := range files {
			f.Close()
		}
	}
	err := fs.WalkDir(fsys, root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || path.Ext(p) != ".java" {
			return nil
		}
		src, err := fs.ReadFile(fsys, p)
		if err != nil {
			return jerrors.External(p, err)
		}
		f, err := Parse(p, src)
		if err != nil {
			return err
		}
		files = append(files, f)
		return nil
	})
	if err != nil {
		closeAll()
		return nil, err
	}
	ix, err := NewIndex(files...)
	if err != nil {
		closeAll()
		return nil, err
	}
	return ix, nil
}

// Close releases every file's syntax tree.
func (ix *Index) Close() {
	for _, f := range ix.files {
		f.Close()
	}
}

// Files returns the indexed files.
func (ix *Index) Files() []*File { return ix.files }

// Class returns the class with the given binary name, or nil.
func (ix *Index) Class(name string) *Class { return ix.classes[name] }

// Classes returns the source classes sorted by name.
func (ix *Index) Classes() []*Class {
	var out []*Class
	for _, f := range ix.files {
		out = append(out, f.Classes...)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (ix *Index) link(c *Class) {
	if c.superNode != nil {
		if n := firstNamed(c.superNode); n != nil {
			c.Super = ix.resolveType(n, c, nil)
		}
	}
	if c.Super.Kind == ast.TypeUnresolved && c.Super.Name == "" && !c.Interface {
		c.Super = tObject
	}
	for _, n := range c.ifaceNodes {
		c.Interfaces = append(c.Interfaces, ix.resolveType(n, c, nil))
	}
	for _, fld := range c.Fields {
		if fld.typeNode != nil {
			fld.Type = arrayOf(ix.resolveType(fld.typeNode, c, nil), fld.dims)
		}
	}
	for _, m := range c.Methods {
		m.Return = ix.resolveType(m.retNode, c, m.typeParams)
		m.Params = m.Params[:0]
		for _, p := range m.paramNodes {
			dims := p.dims
			if p.varargs {
				dims++
			}
			m.Params = append(m.Params, ast.Param{Name: p.name, Type: arrayOf(ix.resolveType(p.typeNode, c, m.typeParams), dims)})
		}
	}
}

func arrayOf(t ast.Type, dims int) ast.Type {
	for i := 0; i < dims; i++ {
		t = ast.ArrayOf(t)
	}
	return t
}

var genericArgs = regexp.MustCompile(`<[^<>]*>`)

// resolveType resolves a type node seen from scope. typeParams lists the
// type variables of the enclosing method.
func (ix *Index) resolveType(n *sitter.Node, scope *Class, typeParams []string) ast.Type {
	if n == nil || scope == nil || scope.file == nil {
		return ast.Type{}
	}
	f := scope.file
	text := f.text(n)
	switch n.Kind() {
	case "integral_type", "floating_point_type", "boolean_type", "void_type":
		t, _ := ast.PrimitiveByName(text)
		return t
	case "type_identifier":
		if isTypeParam(text, scope, typeParams) {
			return ast.Type{Kind: ast.TypeVariable, Name: text}
		}
		return ix.className(text, scope)
	case "scoped_type_identifier":
		for genericArgs.MatchString(text) {
			text = genericArgs.ReplaceAllString(text, "")
		}
		return ix.qualifiedName(strings.Join(strings.Fields(text), ""), scope)
	case "generic_type":
		if base := firstNamed(n); base != nil {
			return ix.resolveType(base, scope, typeParams)
		}
	case "array_type":
		elem := ix.resolveType(n.ChildByFieldName("element"), scope, typeParams)
		return arrayOf(elem, f.dims(n.ChildByFieldName("dimensions")))
	case "annotated_type":
		named := namedChildren(n)
		if len(named) > 0 {
			return ix.resolveType(named[len(named)-1], scope, typeParams)
		}
	}
	return ast.Type{Name: text}
}

func isTypeParam(name string, scope *Class, typeParams []string) bool {
	for _, p := range typeParams {
		if p == name {
			return true
		}
	}
	for c := scope; c != nil; c = c.Outer {
		for _, p := range c.typeParams {
			if p == name {
				return true
			}
		}
		if c.Static {
			break
		}
	}
	return false
}

// className resolves a simple class name: enclosing and member classes,
// single-type imports, the current package, wildcard imports, java.lang.
func (ix *Index) className(simple string, scope *Class) ast.Type {
	if scope == nil || scope.file == nil {
		return ast.Type{Name: simple}
	}
	for c := scope; c != nil; c = c.Outer {
		if c.Simple == simple {
			return ast.Class(c.Name)
		}
		if _, ok := ix.classes[c.Name+"$"+simple]; ok {
			return ast.Class(c.Name + "$" + simple)
		}
	}
	f := scope.file
	for _, imp := range f.Imports {
		if !imp.Static && !imp.Wildcard && (imp.Path == simple || strings.HasSuffix(imp.Path, "."+simple)) {
			return ast.Class(ix.binaryName(imp.Path))
		}
	}
	local := simple
	if f.Package != "" {
		local = f.Package + "." + simple
	}
	if _, ok := ix.classes[local]; ok {
		return ast.Class(local)
	}
	for _, imp := range f.Imports {
		if imp.Static || !imp.Wildcard {
			continue
		}
		if name := ix.binaryName(imp.Path + "." + simple); ix.classes[name] != nil {
			return ast.Class(name)
		}
	}
	if _, ok := ix.classes["java.lang."+simple]; ok {
		return ast.Class("java.lang." + simple)
	}
	return ast.Type{Name: simple}
}

// qualifiedName resolves a dotted name that starts either with a class
// visible from scope or with a package.
func (ix *Index) qualifiedName(dotted string, scope *Class) ast.Type {
	parts := strings.Split(dotted, ".")
	if first := ix.className(parts[0], scope); first.Kind == ast.TypeClass {
		return ast.Class(strings.Join(append([]string{first.Name}, parts[1:]...), "$"))
	}
	name := ix.binaryName(dotted)
	if _, ok := ix.classes[name]; ok {
		return ast.Class(name)
	}
	return ast.Type{Name: dotted}
}

// binaryName maps a canonical name to the binary name of an indexed class,
// turning the dots between nested classes into '$'.
func (ix *Index) binaryName(dotted string) string {
	if _, ok := ix.classes[dotted]; ok {
		return dotted
	}
	parts := strings.Split(dotted, ".")
	for k := len(parts) - 1; k >= 1; k-- {
		cand := strings.Join(parts[:k], ".") + "$" + strings.Join(parts[k:], "$")
		if _, ok := ix.classes[cand]; ok {
			return cand
		}
	}
	return dotted
}

// hierarchy lists owner and its supertypes, nearest first.
func (ix *Index) hierarchy(owner string) []*Class {
	var out []*Class
	seen := make(map[string]bool)
	queue := []string{owner}
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		if seen[name] {
			continue
		}
		seen[name] = true
		c := ix.classes[name]
		if c == nil {
			continue
		}
		out = append(out, c)
		if c.Super.Kind == ast.TypeClass {
			queue = append(queue, c.Super.Name)
		}
		for _, it := range c.Interfaces {
			if it.Kind == ast.TypeClass {
				queue = append(queue, it.Name)
			}
		}
	}
	return out
}

// Field finds a field visible in owner.
func (ix *Index) Field(owner, name string) (*Field, error) {
	if ix.classes[owner] == nil {
		return nil, jerrors.Unresolved("class", owner)
	}
	for _, c := range ix.hierarchy(owner) {
		for _, f := range c.Fields {
			if f.Name == name {
				return f, nil
			}
		}
	}
	return nil, jerrors.Unresolved("field", owner+"."+name)
}

// Method selects the overload of owner.name applicable to args: an exact
// match first, otherwise the most specific applicable candidate.
func (ix *Index) Method(owner, name string, args []ast.Type) (*Method, error) {
	if ix.classes[owner] == nil {
		return nil, jerrors.Unresolved("class", owner)
	}
	var candidates []*Method
	seen := make(map[string]bool)
	for _, c := range ix.hierarchy(owner) {
		for _, m := range c.Methods {
			if m.Name != name || len(m.Params) != len(args) {
				continue
			}
			key := signatureKey(m)
			if seen[key] {
				continue
			}
			seen[key] = true
			candidates = append(candidates, m)
		}
	}

	var applicable []*Method
	for _, m := range candidates {
		exact, ok := true, true
		for i, p := range m.Params {
			if !args[i].Equal(p.Type) {
				exact = false
			}
			if !args[i].AssignableTo(p.Type) {
				ok = false
			}
		}
		if exact {
			return m, nil
		}
		if ok {
			applicable = append(applicable, m)
		}
	}
	switch len(applicable) {
	case 0:
		return nil, jerrors.Unresolved("method", owner+"."+name+describeArgs(args))
	case 1:
		return applicable[0], nil
	}
	for _, m := range applicable {
		if mostSpecific(m, applicable) {
			return m, nil
		}
	}
	return nil, jerrors.Unresolved("method (ambiguous call)", owner+"."+name+describeArgs(args))
}

func signatureKey(m *Method) string {
	parts := make([]string, len(m.Params))
	for i, p := range m.Params {
		parts[i] = p.Type.String()
	}
	return strings.Join(parts, ",")
}

func mostSpecific(m *Method, all []*Method) bool {
	for _, o := range all {
		for i, p := range m.Params {
			if !p.Type.AssignableTo(o.Params[i].Type) {
				return false
			}
		}
	}
	return true
}

func describeArgs(args []ast.Type) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = a.String()
	}
	return "(" + strings.Join(parts, ", ") + ")"
}
