package javasrc

import "sort"

// Nativize is the simple name of the marker annotation that selects methods
// for nativization.
const Nativize = "Nativize"

// Key identifies the method in reports as "binary.Class#method".
func (m *Method) Key() string { return m.Class.Name + "#" + m.Name }

// Declaration returns the method's source text, or "" for library methods.
func (m *Method) Declaration() string {
	if m.node == nil || m.Class.file == nil || m.Class.file.tree == nil {
		return ""
	}
	return m.Class.file.text(m.node)
}

// SourceFile returns the name of the file declaring the class.
func (c *Class) SourceFile() string {
	if c.file == nil {
		return ""
	}
	return c.file.Name
}

// Annotated returns the source methods carrying the annotation, grouped by
// class name and in declaration order within a class.
func (ix *Index) Annotated(annotation string) []*Method {
	var out []*Method
	for _, c := range ix.Classes() {
		for _, m := range c.Methods {
			if m.HasAnnotation(annotation) {
				out = append(out, m)
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Class.Name < out[j].Class.Name })
	return out
}

// Nativized is Annotated for the @Nativize marker.
func (ix *Index) Nativized() []*Method { return ix.Annotated(Nativize) }
