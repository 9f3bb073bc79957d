// Package asttest provides terse constructors for building trees in tests.
package asttest

import "tamc/pkg/ast"

func Program(body ast.Stmt) *ast.Program { return &ast.Program{Body: body} }

// Expressions

func Int(v int) *ast.IntLit     { return &ast.IntLit{Value: v} }
func Char(r rune) *ast.CharLit  { return &ast.CharLit{Value: r} }
func Bool(b bool) *ast.BoolLit  { return &ast.BoolLit{Value: b} }
func Id(name string) *ast.Ident { return &ast.Ident{Name: name} }
func Un(op string, e ast.Expr) *ast.UnaryOp {
	return &ast.UnaryOp{Op: op, Operand: e}
}

func Bin(l ast.Expr, op string, r ast.Expr) *ast.BinaryOp {
	return &ast.BinaryOp{Op: op, Left: l, Right: r}
}

func Call(name string, args ...ast.Arg) *ast.FunCall {
	return &ast.FunCall{Func: name, Args: args}
}

func IfE(c, t, e ast.Expr) *ast.IfExpr { return &ast.IfExpr{Cond: c, Then: t, Else: e} }

func LetE(decls []ast.Decl, body ast.Expr) *ast.LetExpr {
	return &ast.LetExpr{Decls: decls, Body: body}
}

func Index(a, i ast.Expr) *ast.Subscript        { return &ast.Subscript{Array: a, Index: i} }
func Dot(r ast.Expr, f string) *ast.FieldAccess { return &ast.FieldAccess{Record: r, Field: f} }
func ArrayOf(elems ...ast.Expr) *ast.ArrayLit   { return &ast.ArrayLit{Elems: elems} }

func RecordOf(fields ...ast.FieldInit) *ast.RecordLit { return &ast.RecordLit{Fields: fields} }
func F(name string, v ast.Expr) ast.FieldInit         { return ast.FieldInit{Name: name, Value: v} }

// Arguments

func Val(e ast.Expr) *ast.ExprArg { return &ast.ExprArg{Value: e} }
func Ref(e ast.Expr) *ast.VarArg  { return &ast.VarArg{Target: e} }
func Fn(name string) *ast.FuncArg { return &ast.FuncArg{Name: name} }

// Statements

func Assign(t, v ast.Expr) *ast.Assign { return &ast.Assign{Target: t, Value: v} }

func Do(name string, args ...ast.Arg) *ast.CallStmt {
	return &ast.CallStmt{Proc: name, Args: args}
}

func Seq(stmts ...ast.Stmt) *ast.Seq { return &ast.Seq{Stmts: stmts} }

func Let(decls []ast.Decl, body ast.Stmt) *ast.LetStmt {
	return &ast.LetStmt{Decls: decls, Body: body}
}

func If(c ast.Expr, t, e ast.Stmt) *ast.IfStmt { return &ast.IfStmt{Cond: c, Then: t, Else: e} }
func While(c ast.Expr, body ast.Stmt) *ast.WhileStmt {
	return &ast.WhileStmt{Cond: c, Body: body}
}

func RepeatUntil(body ast.Stmt, c ast.Expr) *ast.RepeatUntil {
	return &ast.RepeatUntil{Body: body, Cond: c}
}

func RepeatWhile(body ast.Stmt, c ast.Expr) *ast.RepeatWhile {
	return &ast.RepeatWhile{Body: body, Cond: c}
}

func Loop(pre ast.Stmt, c ast.Expr, post ast.Stmt) *ast.LoopWhile {
	return &ast.LoopWhile{Pre: pre, Cond: c, Post: post}
}

func Skip() *ast.Skip { return &ast.Skip{} }

// Declarations

func Ds(ds ...ast.Decl) []ast.Decl { return ds }

func Const(name string, v ast.Expr) *ast.ConstDecl  { return &ast.ConstDecl{Name: name, Value: v} }
func Var(name string, sig ast.TypeSig) *ast.VarDecl { return &ast.VarDecl{Name: name, Sig: sig} }
func Type(name string, sig ast.TypeSig) *ast.TypeDecl {
	return &ast.TypeDecl{Name: name, Sig: sig}
}

func Func(name string, params []ast.Param, result ast.TypeSig, body ast.Expr) *ast.FuncDecl {
	return &ast.FuncDecl{Name: name, Params: params, Result: result, Body: body}
}

func Proc(name string, params []ast.Param, body ast.Stmt) *ast.ProcDecl {
	return &ast.ProcDecl{Name: name, Params: params, Body: body}
}

// Parameters

func Ps(ps ...ast.Param) []ast.Param { return ps }

func Param(name string, sig ast.TypeSig) *ast.ValueParam {
	return &ast.ValueParam{Name: name, Sig: sig}
}

func VarParam(name string, sig ast.TypeSig) *ast.VarParam {
	return &ast.VarParam{Name: name, Sig: sig}
}

func FuncParam(name string, params []ast.Param, result ast.TypeSig) *ast.FuncParam {
	return &ast.FuncParam{Name: name, Params: params, Result: result}
}

func ProcParam(name string, params ...ast.Param) *ast.FuncParam {
	return &ast.FuncParam{Name: name, Params: params}
}

// Type signatures

func Named(name string) *ast.NamedSig { return &ast.NamedSig{Name: name} }
func Integer() *ast.NamedSig          { return Named("Integer") }
func Boolean() *ast.NamedSig          { return Named("Boolean") }
func CharT() *ast.NamedSig            { return Named("Char") }

func Array(n int, elem ast.TypeSig) *ast.ArraySig { return &ast.ArraySig{Len: n, Elem: elem} }

func Record(fields ...ast.FieldSig) *ast.RecordSig { return &ast.RecordSig{Fields: fields} }
func FS(name string, t ast.TypeSig) ast.FieldSig   { return ast.FieldSig{Name: name, Type: t} }

// At sets the position of n and returns it.
func At[N ast.Node](line, col int, n N) N {
	n.SetPos(ast.Pos{Line: line, Column: col})
	return n
}
