package codegen

import "sort"

// HelperOp names a support helper family.
type HelperOp int

const (
	// HelperSetAndGet stores a field value and yields it.
	HelperSetAndGet HelperOp = iota
	// HelperPrefixAdd adds to a field and yields the new value.
	HelperPrefixAdd
	// HelperPostfixAdd adds to a field and yields the old value.
	HelperPostfixAdd
	// HelperStringValue copies a Java string into a std::string. It has no
	// channel.
	HelperStringValue
)

const stringValueHelper = "StringValue"

func (op HelperOp) String() string {
	switch op {
	case HelperPrefixAdd:
		return "PrefixAdd"
	case HelperPostfixAdd:
		return "PostfixAdd"
	case HelperStringValue:
		return stringValueHelper
	}
	return "SetAndGet"
}

// Helper identifies one generated support function.
type Helper struct {
	Channel string
	Op      HelperOp
	Static  bool
}

// Name is the C++ name of the helper, e.g. PostfixAddStaticIntField.
func (h Helper) Name() string {
	if h.Op == HelperStringValue {
		return stringValueHelper
	}
	name := h.Op.String()
	if h.Static {
		name += "Static"
	}
	return name + h.Channel + "Field"
}

// Requirements collects the includes and support helpers generated code
// depends on. The zero value is ready to use.
type Requirements struct {
	includes map[string]bool
	helpers  map[Helper]bool
}

// Include records a required header.
func (r *Requirements) Include(header string) {
	if header == "" {
		return
	}
	if r.includes == nil {
		r.includes = make(map[string]bool)
	}
	r.includes[header] = true
}

// Use records a required helper.
func (r *Requirements) Use(h Helper) {
	if r.helpers == nil {
		r.helpers = make(map[Helper]bool)
	}
	r.helpers[h] = true
}

// Merge adds everything o requires.
func (r *Requirements) Merge(o Requirements) {
	for inc := range o.includes {
		r.Include(inc)
	}
	for h := range o.helpers {
		r.Use(h)
	}
}

// Includes returns the required headers, sorted.
func (r Requirements) Includes() []string {
	out := make([]string, 0, len(r.includes))
	for inc := range r.includes {
		out = append(out, inc)
	}
	sort.Strings(out)
	return out
}

// Helpers returns the required helpers sorted by name.
func (r Requirements) Helpers() []Helper {
	out := make([]Helper, 0, len(r.helpers))
	for h := range r.helpers {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Empty reports whether nothing is required.
func (r Requirements) Empty() bool { return len(r.includes) == 0 && len(r.helpers) == 0 }
