// Package javasrc is the Java frontend: it parses sources with tree-sitter,
// indexes the declared classes and lowers method bodies into the resolved
// tree of internal/ast.
//
// Resolution only knows the classes of the parsed sources plus a small
// table of java.lang types. Anything else is reported, never guessed.
package javasrc

import (
	"fmt"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
	java "github.com/tree-sitter/tree-sitter-java/bindings/go"

	"github.com/jinix-lang/jinix/internal/ast"
	jerrors "github.com/jinix-lang/jinix/internal/errors"
)

// Import is one import declaration.
type Import struct {
	Path     string
	Static   bool
	Wildcard bool
}

// File is a parsed compilation unit. The syntax tree stays alive until
// Close because method bodies are lowered lazily.
type File struct {
	Name    string
	Package string
	Imports []Import
	// Classes lists every class of the file, nested ones included, in
	// declaration order.
	Classes []*Class

	src  []byte
	tree *sitter.Tree
}

// Class is a declared class, interface or enum.
type Class struct {
	Name       string // binary name
	Simple     string
	Outer      *Class
	Super      ast.Type
	Interfaces []ast.Type
	Fields     []*Field
	Methods    []*Method
	Interface  bool
	Static     bool

	file       *File
	node       *sitter.Node
	typeParams []string
	superNode  *sitter.Node
	ifaceNodes []*sitter.Node
}

// Field is a declared field.
type Field struct {
	Class  *Class
	Name   string
	Type   ast.Type
	Static bool

	typeNode *sitter.Node
	dims     int
}

// Method is a declared method.
type Method struct {
	Class        *Class
	Name         string
	Params       []ast.Param
	Return       ast.Type
	Annotations  []string
	Pos          ast.Pos
	Static       bool
	Abstract     bool
	Native       bool
	Synchronized bool

	node       *sitter.Node
	body       *sitter.Node
	typeParams []string
	retNode    *sitter.Node
	paramNodes []paramNode
}

type paramNode struct {
	name     string
	typeNode *sitter.Node
	dims     int
	varargs  bool
}

// Ref describes the method as a callee.
func (m *Method) Ref() ast.MethodRef {
	params := make([]ast.Type, len(m.Params))
	for i, p := range m.Params {
		params[i] = p.Type
	}
	return ast.MethodRef{Owner: m.Class.Name, Name: m.Name, Params: params, Return: m.Return, Static: m.Static}
}

// HasAnnotation reports whether the method carries the annotation, by simple
// or qualified name.
func (m *Method) HasAnnotation(name string) bool {
	for _, a := range m.Annotations {
		if a == name || strings.HasSuffix(a, "."+name) {
			return true
		}
	}
	return false
}

// Parse parses one Java source file and collects its declarations.
func Parse(name string, src []byte) (*File, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	if err := parser.SetLanguage(sitter.NewLanguage(java.Language())); err != nil {
		return nil, jerrors.External(name, err)
	}
	tree := parser.Parse(src, nil)
	if tree == nil {
		return nil, jerrors.External(name, fmt.Errorf("parser returned no tree"))
	}
	root := tree.RootNode()
	if root.HasError() {
		pos := firstError(root)
		tree.Close()
		return nil, jerrors.Invalid("%s:%s: syntax error", name, pos)
	}

	f := &File{Name: name, src: src, tree: tree}
	for _, child := range children(root) {
		switch child.Kind() {
		case "package_declaration":
			if n := firstNamed(child); n != nil {
				f.Package = f.text(n)
			}
		case "import_declaration":
			f.Imports = append(f.Imports, f.importDecl(child))
		case "class_declaration", "interface_declaration", "enum_declaration":
			f.classDecl(child, nil)
		}
	}
	return f, nil
}

// Close releases the syntax tree.
func (f *File) Close() {
	if f.tree != nil {
		f.tree.Close()
		f.tree = nil
	}
}

// Class returns the class with the given binary name, or nil.
func (f *File) Class(name string) *Class {
	for _, c := range f.Classes {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func (f *File) text(n *sitter.Node) string { return n.Utf8Text(f.src) }

func (f *File) importDecl(n *sitter.Node) Import {
	var imp Import
	for _, c := range children(n) {
		switch c.Kind() {
		case "static":
			imp.Static = true
		case "asterisk":
			imp.Wildcard = true
		case "identifier", "scoped_identifier":
			imp.Path = f.text(c)
		}
	}
	return imp
}

func (f *File) classDecl(n *sitter.Node, outer *Class) {
	name := n.ChildByFieldName("name")
	if name == nil {
		return
	}
	c := &Class{Simple: f.text(name), Outer: outer, file: f, node: n}
	switch {
	case outer != nil:
		c.Name = outer.Name + "$" + c.Simple
	case f.Package != "":
		c.Name = f.Package + "." + c.Simple
	default:
		c.Name = c.Simple
	}
	c.Interface = n.Kind() == "interface_declaration"
	mods := f.modifiers(n)
	c.Static = mods.has("static") || c.Interface || outer == nil || n.Kind() == "enum_declaration"
	if tp := n.ChildByFieldName("type_parameters"); tp != nil {
		c.typeParams = f.typeParams(tp)
	}
	c.superNode = n.ChildByFieldName("superclass")
	for _, child := range children(n) {
		switch child.Kind() {
		case "super_interfaces", "extends_interfaces":
			for _, list := range namedChildren(child) {
				c.ifaceNodes = append(c.ifaceNodes, namedChildren(list)...)
			}
		}
	}
	f.Classes = append(f.Classes, c)

	body := n.ChildByFieldName("body")
	if body == nil {
		return
	}
	f.members(c, body)
}

func (f *File) members(c *Class, body *sitter.Node) {
	for _, m := range children(body) {
		switch m.Kind() {
		case "field_declaration", "constant_declaration":
			f.fieldDecl(c, m)
		case "method_declaration":
			f.methodDecl(c, m)
		case "class_declaration", "interface_declaration", "enum_declaration":
			f.classDecl(m, c)
		case "enum_constant":
			if name := m.ChildByFieldName("name"); name != nil {
				c.Fields = append(c.Fields, &Field{Class: c, Name: f.text(name), Type: ast.Class(c.Name), Static: true})
			}
		case "enum_body_declarations":
			f.members(c, m)
		}
	}
}

func (f *File) fieldDecl(c *Class, n *sitter.Node) {
	mods := f.modifiers(n)
	typ := n.ChildByFieldName("type")
	for _, d := range fieldChildren(n, "declarator") {
		name := d.ChildByFieldName("name")
		if name == nil {
			continue
		}
		c.Fields = append(c.Fields, &Field{
			Class:    c,
			Name:     f.text(name),
			Static:   mods.has("static") || c.Interface,
			typeNode: typ,
			dims:     f.dims(d.ChildByFieldName("dimensions")),
		})
	}
}

func (f *File) methodDecl(c *Class, n *sitter.Node) {
	name := n.ChildByFieldName("name")
	if name == nil {
		return
	}
	mods := f.modifiers(n)
	m := &Method{
		Class:        c,
		Name:         f.text(name),
		Annotations:  mods.annotations,
		Pos:          position(n),
		Static:       mods.has("static"),
		Abstract:     mods.has("abstract") || c.Interface && n.ChildByFieldName("body") == nil,
		Native:       mods.has("native"),
		Synchronized: mods.has("synchronized"),
		node:         n,
		body:         n.ChildByFieldName("body"),
		retNode:      n.ChildByFieldName("type"),
	}
	if tp := n.ChildByFieldName("type_parameters"); tp != nil {
		m.typeParams = f.typeParams(tp)
	}
	if params := n.ChildByFieldName("parameters"); params != nil {
		for _, p := range namedChildren(params) {
			switch p.Kind() {
			case "formal_parameter":
				pn := p.ChildByFieldName("name")
				if pn == nil {
					continue
				}
				m.paramNodes = append(m.paramNodes, paramNode{
					name:     f.text(pn),
					typeNode: p.ChildByFieldName("type"),
					dims:     f.dims(p.ChildByFieldName("dimensions")),
				})
			case "spread_parameter":
				pn := paramNode{varargs: true}
				for _, sc := range namedChildren(p) {
					switch sc.Kind() {
					case "variable_declarator":
						if id := sc.ChildByFieldName("name"); id != nil {
							pn.name = f.text(id)
						}
					case "modifiers":
					default:
						if pn.typeNode == nil {
							pn.typeNode = sc
						}
					}
				}
				m.paramNodes = append(m.paramNodes, pn)
			}
		}
	}
	c.Methods = append(c.Methods, m)
}

type modifierSet struct {
	keywords    map[string]bool
	annotations []string
}

func (s modifierSet) has(kw string) bool { return s.keywords[kw] }

func (f *File) modifiers(n *sitter.Node) modifierSet {
	set := modifierSet{keywords: make(map[string]bool)}
	for _, c := range children(n) {
		if c.Kind() != "modifiers" {
			continue
		}
		for _, m := range children(c) {
			switch m.Kind() {
			case "marker_annotation", "annotation":
				if name := m.ChildByFieldName("name"); name != nil {
					set.annotations = append(set.annotations, f.text(name))
				}
			default:
				set.keywords[f.text(m)] = true
			}
		}
	}
	return set
}

func (f *File) typeParams(n *sitter.Node) []string {
	var out []string
	for _, p := range namedChildren(n) {
		if p.Kind() != "type_parameter" {
			continue
		}
		for _, c := range namedChildren(p) {
			if c.Kind() == "type_identifier" || c.Kind() == "identifier" {
				out = append(out, f.text(c))
				break
			}
		}
	}
	return out
}

// dims counts the bracket pairs of a dimensions node.
func (f *File) dims(n *sitter.Node) int {
	if n == nil {
		return 0
	}
	return strings.Count(f.text(n), "[")
}

// ===== tree helpers =====

func children(n *sitter.Node) []*sitter.Node {
	cursor := n.Walk()
	defer cursor.Close()
	return pointers(n.Children(cursor))
}

func namedChildren(n *sitter.Node) []*sitter.Node {
	cursor := n.Walk()
	defer cursor.Close()
	return pointers(n.NamedChildren(cursor))
}

func fieldChildren(n *sitter.Node, field string) []*sitter.Node {
	cursor := n.Walk()
	defer cursor.Close()
	return pointers(n.ChildrenByFieldName(field, cursor))
}

func pointers(nodes []sitter.Node) []*sitter.Node {
	out := make([]*sitter.Node, len(nodes))
	for i := range nodes {
		out[i] = &nodes[i]
	}
	return out
}

func firstNamed(n *sitter.Node) *sitter.Node {
	for _, c := range namedChildren(n) {
		if !isComment(c) {
			return c
		}
	}
	return nil
}

func isComment(n *sitter.Node) bool {
	return n.Kind() == "line_comment" || n.Kind() == "block_comment"
}

func position(n *sitter.Node) ast.Pos {
	p := n.StartPosition()
	return ast.Pos{Line: int(p.Row) + 1, Column: int(p.Column) + 1}
}

func firstError(n *sitter.Node) ast.Pos {
	if n.IsError() || n.IsMissing() {
		return position(n)
	}
	for _, c := range children(n) {
		if c.HasError() || c.IsMissing() {
			return firstError(c)
		}
	}
	return position(n)
}
