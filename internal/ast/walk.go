package ast

// Visitor is called by Walk for every node. If Visit returns a nil visitor
// the children of node are skipped.
type Visitor interface {
	Visit(node Node) (w Visitor)
}

// Walk traverses the tree rooted at node in depth-first order.
func Walk(v Visitor, node Node) {
	if node == nil {
		return
	}
	if v = v.Visit(node); v == nil {
		return
	}

	switch n := node.(type) {
	case *Block:
		walkStmts(v, n.Stmts)
	case *ExprStmt:
		walkExpr(v, n.X)
	case *If:
		walkExpr(v, n.Cond)
		walkStmt(v, n.Then)
		walkStmt(v, n.Else)
	case *While:
		walkExpr(v, n.Cond)
		walkStmt(v, n.Body)
	case *DoWhile:
		walkStmt(v, n.Body)
		walkExpr(v, n.Cond)
	case *For:
		walkExprs(v, n.Init)
		walkExpr(v, n.Cond)
		walkExprs(v, n.Update)
		walkStmt(v, n.Body)
	case *ForEach:
		if n.Var != nil {
			Walk(v, n.Var)
		}
		walkExpr(v, n.Iterable)
		walkStmt(v, n.Body)
	case *Switch:
		walkExpr(v, n.Selector)
		for _, e := range n.Entries {
			Walk(v, e)
		}
	case *SwitchEntry:
		walkExprs(v, n.Labels)
		walkStmts(v, n.Body)
	case *Return:
		walkExpr(v, n.Value)
	case *Throw:
		walkExpr(v, n.Value)

	case *Binary:
		walkExpr(v, n.Left)
		walkExpr(v, n.Right)
	case *Unary:
		walkExpr(v, n.X)
	case *Conditional:
		walkExpr(v, n.Cond)
		walkExpr(v, n.Then)
		walkExpr(v, n.Else)
	case *Cast:
		walkExpr(v, n.X)
	case *Paren:
		walkExpr(v, n.X)
	case *VarDecl:
		for _, d := range n.Vars {
			walkExpr(v, d.Init)
		}
	case *Assign:
		walkExpr(v, n.Target)
		walkExpr(v, n.Value)
	case *FieldAccess:
		walkExpr(v, n.Scope)
	case *Call:
		walkExpr(v, n.Scope)
		walkExprs(v, n.Args)
	}

	v.Visit(nil)
}

// walkExpr and walkStmt guard against typed nil interfaces held in
// optional fields.
func walkExpr(v Visitor, e Expr) {
	if e != nil {
		Walk(v, e)
	}
}

func walkStmt(v Visitor, s Stmt) {
	if s != nil {
		Walk(v, s)
	}
}

func walkExprs(v Visitor, list []Expr) {
	for _, e := range list {
		walkExpr(v, e)
	}
}

func walkStmts(v Visitor, list []Stmt) {
	for _, s := range list {
		walkStmt(v, s)
	}
}

type inspector func(Node) bool

func (f inspector) Visit(node Node) Visitor {
	if node != nil && f(node) {
		return f
	}
	return nil
}

// Inspect traverses the tree calling f for every node; f returning false
// prunes the subtree.
func Inspect(node Node, f func(Node) bool) {
	Walk(inspector(f), node)
}

// DiscardedResults returns the set of expressions in body whose value is
// never read: the expression of an expression statement and the init and
// update expressions of a for loop, looking through parentheses. An
// assignment or increment absent from the set has its result consumed by an
// enclosing expression.
func DiscardedResults(body *Block) map[Expr]bool {
	out := make(map[Expr]bool)
	if body == nil {
		return out
	}
	mark := func(e Expr) {
		for e != nil {
			out[e] = true
			p, ok := e.(*Paren)
			if !ok {
				return
			}
			e = p.X
		}
	}
	Inspect(body, func(n Node) bool {
		switch s := n.(type) {
		case *ExprStmt:
			mark(s.X)
		case *For:
			for _, e := range s.Init {
				mark(e)
			}
			for _, e := range s.Update {
				mark(e)
			}
		}
		return true
	})
	return out
}
