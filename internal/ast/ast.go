// Package ast defines the resolved syntax tree of a Java method chosen for
// nativization.
//
// The tree is produced by a resolving frontend (see internal/javasrc): every
// name, field access and call already knows its static type and the class,
// member and signature it refers to. The code generator only consumes the
// tree and never resolves anything itself. Nodes without resolution data are
// rejected rather than approximated.
package ast

import "fmt"

// Pos is a 1-based source position.
type Pos struct {
	Line   int
	Column int
}

func (p Pos) String() string {
	if p.Line == 0 {
		return "-"
	}
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Node is implemented by every statement and expression.
type Node interface {
	Position() Pos
}

// Stmt is a statement node.
type Stmt interface {
	Node
	stmtNode()
}

// Expr is an expression node. Type reports the static type of the value the
// expression produces; void for calls of void methods.
type Expr interface {
	Node
	Type() Type
	exprNode()
}

// ===== Members =====

// FieldRef identifies a resolved field.
type FieldRef struct {
	Owner  string // binary name of the declaring class
	Name   string
	Type   Type
	Static bool
}

// MethodRef identifies a resolved method.
type MethodRef struct {
	Owner  string // binary name of the declaring class
	Name   string
	Params []Type
	Return Type
	Static bool
}

// Param is a method parameter.
type Param struct {
	Name string
	Type Type
}

// MethodDecl is a method selected for nativization.
type MethodDecl struct {
	Body         *Block
	Class        string // binary name of the enclosing class
	Name         string
	Params       []Param
	Return       Type
	Pos          Pos
	Static       bool
	Abstract     bool
	Synchronized bool
}

// Ref returns the MethodRef describing the declaration itself.
func (m *MethodDecl) Ref() MethodRef {
	params := make([]Type, len(m.Params))
	for i, p := range m.Params {
		params[i] = p.Type
	}
	return MethodRef{Owner: m.Class, Name: m.Name, Params: params, Return: m.Return, Static: m.Static}
}

// ===== Statements =====

type (
	// Block is a braced statement list.
	Block struct {
		Stmts []Stmt
		At    Pos
	}

	// ExprStmt evaluates an expression for its side effects.
	ExprStmt struct {
		X  Expr
		At Pos
	}

	// If is an if statement; Else may be nil.
	If struct {
		Cond Expr
		Then Stmt
		Else Stmt
		At   Pos
	}

	// While is a pre-tested loop.
	While struct {
		Cond Expr
		Body Stmt
		At   Pos
	}

	// DoWhile is a post-tested loop.
	DoWhile struct {
		Body Stmt
		Cond Expr
		At   Pos
	}

	// For is a classic three-clause loop. Init holds either a single
	// VarDecl or a list of expressions; Cond may be nil.
	For struct {
		Cond   Expr
		Body   Stmt
		Init   []Expr
		Update []Expr
		At     Pos
	}

	// ForEach is an enhanced for loop over Iterable.
	ForEach struct {
		Var      *VarDecl
		Iterable Expr
		Body     Stmt
		At       Pos
	}

	// Switch is a switch statement.
	Switch struct {
		Selector Expr
		Entries  []*SwitchEntry
		At       Pos
	}

	// SwitchEntry is one labelled group. Empty Labels means default. Rule
	// entries come from the arrow form and never fall through.
	SwitchEntry struct {
		Labels []Expr
		Body   []Stmt
		Rule   bool
		At     Pos
	}

	// Break is a break statement; labels are unsupported.
	Break struct {
		Label string
		At    Pos
	}

	// Continue is a continue statement; labels are unsupported.
	Continue struct {
		Label string
		At    Pos
	}

	// Return returns from the method; Value may be nil.
	Return struct {
		Value Expr
		At    Pos
	}

	// Throw raises Value as a Java exception.
	Throw struct {
		Value Expr
		At    Pos
	}

	// Empty is the empty statement ";".
	Empty struct {
		At Pos
	}

	// Unsupported stands for a statement form the frontend recognised but
	// the generator does not implement. It carries the construct name for
	// the error message.
	Unsupported struct {
		Construct string
		At        Pos
	}
)

func (s *Block) Position() Pos       { return s.At }
func (s *ExprStmt) Position() Pos    { return s.At }
func (s *If) Position() Pos          { return s.At }
func (s *While) Position() Pos       { return s.At }
func (s *DoWhile) Position() Pos     { return s.At }
func (s *For) Position() Pos         { return s.At }
func (s *ForEach) Position() Pos     { return s.At }
func (s *Switch) Position() Pos      { return s.At }
func (s *SwitchEntry) Position() Pos { return s.At }
func (s *Break) Position() Pos       { return s.At }
func (s *Continue) Position() Pos    { return s.At }
func (s *Return) Position() Pos      { return s.At }
func (s *Throw) Position() Pos       { return s.At }
func (s *Empty) Position() Pos       { return s.At }
func (s *Unsupported) Position() Pos { return s.At }

func (*Block) stmtNode()       {}
func (*ExprStmt) stmtNode()    {}
func (*If) stmtNode()          {}
func (*While) stmtNode()       {}
func (*DoWhile) stmtNode()     {}
func (*For) stmtNode()         {}
func (*ForEach) stmtNode()     {}
func (*Switch) stmtNode()      {}
func (*Break) stmtNode()       {}
func (*Continue) stmtNode()    {}
func (*Return) stmtNode()      {}
func (*Throw) stmtNode()       {}
func (*Empty) stmtNode()       {}
func (*Unsupported) stmtNode() {}

// Default reports whether the entry is the default group.
func (s *SwitchEntry) Default() bool { return len(s.Labels) == 0 }

// ===== Expressions =====

// LiteralKind classifies literals.
type LiteralKind int

const (
	LitNull LiteralKind = iota
	LitBool
	LitInt
	LitLong
	LitFloat
	LitDouble
	LitChar
	LitString
	// LitTextBlock is a """ text block; Value holds the content with
	// incidental indentation already stripped.
	LitTextBlock
)

type (
	// Literal is a constant. Value keeps the source spelling, except for
	// text blocks.
	Literal struct {
		Value string
		Kind  LiteralKind
		At    Pos
	}

	// Name references a local variable or parameter, or a field through
	// an implicit receiver when Field is set.
	Name struct {
		Field *FieldRef
		Ident string
		Typ   Type
		At    Pos
	}

	// This is the receiver of an instance method.
	This struct {
		Typ Type
		At  Pos
	}

	// TypeName is a class used as the scope of a static access, as in
	// A.staticCall().
	TypeName struct {
		Typ Type
		At  Pos
	}

	// Binary is a binary operation.
	Binary struct {
		Left  Expr
		Right Expr
		Op    string
		Typ   Type
		At    Pos
	}

	// Unary is a unary operation. Postfix distinguishes x++ from ++x.
	Unary struct {
		X       Expr
		Op      string
		Typ     Type
		Postfix bool
		At      Pos
	}

	// Conditional is the ternary operator.
	Conditional struct {
		Cond Expr
		Then Expr
		Else Expr
		Typ  Type
		At   Pos
	}

	// Cast converts X to To.
	Cast struct {
		X  Expr
		To Type
		At Pos
	}

	// Paren is a parenthesised expression.
	Paren struct {
		X  Expr
		At Pos
	}

	// VarDecl declares one or more locals of a common type. Inferred marks
	// a `var` declaration.
	VarDecl struct {
		Vars     []*Declarator
		Typ      Type
		Final    bool
		Inferred bool
		At       Pos
	}

	// Assign is an assignment; Op is "=" or a compound operator like "+=".
	Assign struct {
		Target Expr
		Value  Expr
		Op     string
		At     Pos
	}

	// FieldAccess reads Field through Scope. A nil Scope means the implicit
	// receiver (this, or the declaring class when the field is static).
	FieldAccess struct {
		Scope Expr
		Field FieldRef
		At    Pos
	}

	// Call invokes Method on Scope. A nil Scope means the implicit
	// receiver.
	Call struct {
		Scope  Expr
		Args   []Expr
		Method MethodRef
		At     Pos
	}

	// UnsupportedExpr stands for an expression form the generator does not
	// implement.
	UnsupportedExpr struct {
		Construct string
		At        Pos
	}
)

// Declarator is one variable of a VarDecl; Init may be nil.
type Declarator struct {
	Init Expr
	Name string
}

func (e *Literal) Position() Pos         { return e.At }
func (e *Name) Position() Pos            { return e.At }
func (e *This) Position() Pos            { return e.At }
func (e *TypeName) Position() Pos        { return e.At }
func (e *Binary) Position() Pos          { return e.At }
func (e *Unary) Position() Pos           { return e.At }
func (e *Conditional) Position() Pos     { return e.At }
func (e *Cast) Position() Pos            { return e.At }
func (e *Paren) Position() Pos           { return e.At }
func (e *VarDecl) Position() Pos         { return e.At }
func (e *Assign) Position() Pos          { return e.At }
func (e *FieldAccess) Position() Pos     { return e.At }
func (e *Call) Position() Pos            { return e.At }
func (e *UnsupportedExpr) Position() Pos { return e.At }

func (e *Literal) Type() Type {
	switch e.Kind {
	case LitNull:
		return Type{Kind: TypeNull}
	case LitBool:
		return Primitive(TypeBoolean)
	case LitInt:
		return Primitive(TypeInt)
	case LitLong:
		return Primitive(TypeLong)
	case LitFloat:
		return Primitive(TypeFloat)
	case LitDouble:
		return Primitive(TypeDouble)
	case LitChar:
		return Primitive(TypeChar)
	}
	return String()
}
func (e *Name) Type() Type            { return e.Typ }
func (e *This) Type() Type            { return e.Typ }
func (e *TypeName) Type() Type        { return e.Typ }
func (e *Binary) Type() Type          { return e.Typ }
func (e *Unary) Type() Type           { return e.Typ }
func (e *Conditional) Type() Type     { return e.Typ }
func (e *Cast) Type() Type            { return e.To }
func (e *Paren) Type() Type           { return e.X.Type() }
func (e *VarDecl) Type() Type         { return Void() }
func (e *Assign) Type() Type          { return e.Target.Type() }
func (e *FieldAccess) Type() Type     { return e.Field.Type }
func (e *Call) Type() Type            { return e.Method.Return }
func (e *UnsupportedExpr) Type() Type { return Type{} }

func (*Literal) exprNode()         {}
func (*Name) exprNode()            {}
func (*This) exprNode()            {}
func (*TypeName) exprNode()        {}
func (*Binary) exprNode()          {}
func (*Unary) exprNode()           {}
func (*Conditional) exprNode()     {}
func (*Cast) exprNode()            {}
func (*Paren) exprNode()           {}
func (*VarDecl) exprNode()         {}
func (*Assign) exprNode()          {}
func (*FieldAccess) exprNode()     {}
func (*Call) exprNode()            {}
func (*UnsupportedExpr) exprNode() {}
