package codegen

import (
	"strings"
	"testing"

	"github.com/jinix-lang/jinix/internal/ast"
)

const dummy = "Dummy"

var (
	tInt  = ast.Primitive(ast.TypeInt)
	tLong = ast.Primitive(ast.TypeLong)
	tBool = ast.Primitive(ast.TypeBoolean)
	tVoid = ast.Void()
)

func lit(v string) *ast.Literal { return &ast.Literal{Kind: ast.LitInt, Value: v} }

func local(name string, t ast.Type) *ast.Name { return &ast.Name{Ident: name, Typ: t} }

func flag() *ast.Name { return local("flag", tBool) }

// invoke calls an instance method of Dummy through the implicit receiver.
func invoke(name string, ret ast.Type, args ...ast.Expr) *ast.Call {
	params := make([]ast.Type, len(args))
	for i, a := range args {
		params[i] = a.Type()
	}
	return &ast.Call{Method: ast.MethodRef{Owner: dummy, Name: name, Params: params, Return: ret}, Args: args}
}

func staticInvoke(owner, name string, ret ast.Type, args ...ast.Expr) *ast.Call {
	c := invoke(name, ret, args...)
	c.Method.Owner = owner
	c.Method.Static = true
	c.Scope = &ast.TypeName{Typ: ast.Class(owner)}
	return c
}

func field(owner, name string, t ast.Type, static bool) *ast.Name {
	return &ast.Name{Ident: name, Typ: t, Field: &ast.FieldRef{Owner: owner, Name: name, Type: t, Static: static}}
}

func do(e ast.Expr) ast.Stmt { return &ast.ExprStmt{X: e} }

func block(stmts ...ast.Stmt) *ast.Block { return &ast.Block{Stmts: stmts} }

func declare(name string, t ast.Type, init ast.Expr) *ast.VarDecl {
	return &ast.VarDecl{Typ: t, Vars: []*ast.Declarator{{Name: name, Init: init}}}
}

func methodOf(name string, ret ast.Type, stmts ...ast.Stmt) *ast.MethodDecl {
	return &ast.MethodDecl{Class: dummy, Name: name, Return: ret, Body: block(stmts...)}
}

func transpileBody(t *testing.T, decl *ast.MethodDecl) *Function {
	t.Helper()
	fn, err := New(Options{}).TranspileMethod(decl)
	if err != nil {
		t.Fatalf("TranspileMethod(%s): %v", decl.Name, err)
	}
	return fn
}

func lines(s ...string) string { return strings.Join(s, "\n") }

func assertBody(t *testing.T, got, want string) {
	t.Helper()
	if got != want {
		t.Errorf("body mismatch\n--- got ---\n%s\n--- want ---\n%s", got, want)
	}
}
