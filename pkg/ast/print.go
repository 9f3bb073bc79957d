package ast

import (
	"fmt"
	"strconv"
	"strings"
)

func (n *IntLit) String() string { return strconv.Itoa(n.Value) }
func (n *CharLit) String() string {
	return "'" + string(n.Value) + "'"
}

func (n *BoolLit) String() string {
	if n.Value {
		return "true"
	}
	return "false"
}

func (n *Ident) String() string       { return n.Name }
func (n *Subscript) String() string   { return fmt.Sprintf("%s[%s]", n.Array, n.Index) }
func (n *FieldAccess) String() string { return fmt.Sprintf("%s.%s", n.Record, n.Field) }
func (n *UnaryOp) String() string     { return fmt.Sprintf("(%s%s)", n.Op, n.Operand) }
func (n *BinaryOp) String() string    { return fmt.Sprintf("(%s %s %s)", n.Left, n.Op, n.Right) }
func (n *FunCall) String() string     { return n.Func + "(" + joinArgs(n.Args) + ")" }

func (n *IfExpr) String() string {
	return fmt.Sprintf("if %s then %s else %s", n.Cond, n.Then, n.Else)
}

func (n *LetExpr) String() string {
	return fmt.Sprintf("let %s in %s", joinDecls(n.Decls), n.Body)
}

func (n *ArrayLit) String() string {
	parts := make([]string, len(n.Elems))
	for i, e := range n.Elems {
		parts[i] = e.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func (n *RecordLit) String() string {
	parts := make([]string, len(n.Fields))
	for i, f := range n.Fields {
		parts[i] = fmt.Sprintf("%s ~ %s", f.Name, f.Value)
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func (n *Assign) String() string   { return fmt.Sprintf("%s := %s", n.Target, n.Value) }
func (n *CallStmt) String() string { return n.Proc + "(" + joinArgs(n.Args) + ")" }

func (n *Seq) String() string {
	parts := make([]string, len(n.Stmts))
	for i, s := range n.Stmts {
		parts[i] = s.String()
	}
	return "begin " + strings.Join(parts, "; ") + " end"
}

func (n *LetStmt) String() string {
	return fmt.Sprintf("let %s in %s", joinDecls(n.Decls), n.Body)
}

func (n *IfStmt) String() string {
	if n.Else == nil {
		return fmt.Sprintf("if %s then %s", n.Cond, n.Then)
	}
	return fmt.Sprintf("if %s then %s else %s", n.Cond, n.Then, n.Else)
}

func (n *WhileStmt) String() string   { return fmt.Sprintf("while %s do %s", n.Cond, n.Body) }
func (n *RepeatUntil) String() string { return fmt.Sprintf("repeat %s until %s", n.Body, n.Cond) }
func (n *RepeatWhile) String() string { return fmt.Sprintf("repeat %s while %s", n.Body, n.Cond) }
func (n *LoopWhile) String() string {
	return fmt.Sprintf("loop %s while %s do %s", n.Pre, n.Cond, n.Post)
}
func (n *Forever) String() string { return fmt.Sprintf("forever %s", n.Body) }
func (n *Skip) String() string    { return "skip" }

func (n *ConstDecl) String() string { return fmt.Sprintf("const %s ~ %s", n.Name, n.Value) }
func (n *VarDecl) String() string   { return fmt.Sprintf("var %s : %s", n.Name, n.Sig) }
func (n *TypeDecl) String() string  { return fmt.Sprintf("type %s ~ %s", n.Name, n.Sig) }

func (n *FuncDecl) String() string {
	return fmt.Sprintf("func %s(%s) : %s ~ %s", n.Name, joinParams(n.Params), n.Result, n.Body)
}

func (n *ProcDecl) String() string {
	return fmt.Sprintf("proc %s(%s) ~ %s", n.Name, joinParams(n.Params), n.Body)
}

func (n *ValueParam) String() string { return fmt.Sprintf("%s : %s", n.Name, n.Sig) }
func (n *VarParam) String() string   { return fmt.Sprintf("var %s : %s", n.Name, n.Sig) }

func (n *FuncParam) String() string {
	if n.Result == nil {
		return fmt.Sprintf("proc %s(%s)", n.Name, joinParams(n.Params))
	}
	return fmt.Sprintf("func %s(%s) : %s", n.Name, joinParams(n.Params), n.Result)
}

func (n *ExprArg) String() string { return n.Value.String() }
func (n *VarArg) String() string  { return "var " + n.Target.String() }
func (n *FuncArg) String() string { return n.Name }

func (n *NamedSig) String() string { return n.Name }
func (n *ArraySig) String() string { return fmt.Sprintf("array %d of %s", n.Len, n.Elem) }

func (n *RecordSig) String() string {
	parts := make([]string, len(n.Fields))
	for i, f := range n.Fields {
		parts[i] = fmt.Sprintf("%s : %s", f.Name, f.Type)
	}
	return "record " + strings.Join(parts, ", ") + " end"
}

func joinArgs(args []Arg) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = a.String()
	}
	return strings.Join(parts, ", ")
}

func joinParams(params []Param) string {
	parts := make([]string, len(params))
	for i, p := range params {
		parts[i] = p.String()
	}
	return strings.Join(parts, ", ")
}

func joinDecls(decls []Decl) string {
	parts := make([]string, len(decls))
	for i, d := range decls {
		parts[i] = d.String()
	}
	return strings.Join(parts, "; ")
}
