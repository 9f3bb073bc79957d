// Package ast defines the tree handed over by the parser: a closed set of
// expression, statement, declaration, parameter, argument and type-signature
// node kinds.
//
// Nodes are built once and afterwards either annotated in place (type,
// position and declaration slots) or replaced wholesale by rewrite passes,
// which copy the annotations forward with CopyAnnot.
package ast

import (
	"fmt"

	"tamc/pkg/types"
)

// Pos is a source position.
type Pos struct {
	Line   int
	Column int
}

func (p Pos) String() string { return fmt.Sprintf("%d:%d", p.Line, p.Column) }

// Annot holds the mutable annotation slots every node carries.
type Annot struct {
	pos Pos
	typ types.Type
}

// Position returns the node's source position.
func (a *Annot) Position() Pos { return a.pos }

// SetPos sets the node's source position.
func (a *Annot) SetPos(p Pos) { a.pos = p }

// Type returns the resolved type. Reading it before the checker has set it is
// a broken pipeline precondition and panics.
func (a *Annot) Type() types.Type {
	if a.typ == nil {
		panic(fmt.Sprintf("ast: node at %s read before type annotation", a.pos))
	}
	return a.typ
}

// SetType records the resolved type.
func (a *Annot) SetType(t types.Type) { a.typ = t }

// Typed reports whether the type slot is set.
func (a *Annot) Typed() bool { return a.typ != nil }

func (a *Annot) annot() *Annot { return a }

// Binder is the declaration slot of nodes that name something: identifiers,
// calls, operators and callable arguments.
type Binder struct {
	decl Decl
}

// Decl returns the declaration the name was bound to, or nil before analysis.
func (b *Binder) Decl() Decl { return b.decl }

// SetDecl binds the name to d.
func (b *Binder) SetDecl(d Decl) { b.decl = d }

func (b *Binder) binder() *Binder { return b }

// Node is implemented by every tree node.
type Node interface {
	Position() Pos
	SetPos(Pos)
	Type() types.Type
	SetType(types.Type)
	Typed() bool
	String() string
	annot() *Annot
}

// Bound is implemented by nodes carrying a declaration slot.
type Bound interface {
	Decl() Decl
	SetDecl(Decl)
	binder() *Binder
}

// CopyAnnot copies position, type and declaration annotations from src to
// dst and returns dst.
func CopyAnnot[N Node](dst N, src Node) N {
	*dst.annot() = *src.annot()
	if db, ok := any(dst).(Bound); ok {
		if sb, ok := src.(Bound); ok {
			*db.binder() = *sb.binder()
		}
	}
	return dst
}

// Program is the root of a compilation unit: a single command.
type Program struct {
	Body Stmt
}

func (p *Program) String() string { return p.Body.String() }

// Expressions

// Expr is implemented by every node that produces a value.
type Expr interface {
	Node
	exprNode()
}

// IntLit is an integer literal.
type IntLit struct {
	Annot
	Value int
}

// CharLit is a character literal.
type CharLit struct {
	Annot
	Value rune
}

// BoolLit is a boolean literal. The parser produces identifiers for true and
// false; the constant folder turns them into BoolLit.
type BoolLit struct {
	Annot
	Value bool
}

// Ident is a use of a name.
type Ident struct {
	Annot
	Binder
	Name string
}

// Subscript is Array[Index].
type Subscript struct {
	Annot
	Array Expr
	Index Expr
}

// FieldAccess is Record.Field.
type FieldAccess struct {
	Annot
	Record Expr
	Field  string
}

// UnaryOp applies a prefix operator.
//
//	\ b      UnaryOp{Op: `\`, Operand: b}
type UnaryOp struct {
	Annot
	Binder
	Op      string
	Operand Expr
}

// BinaryOp applies an infix operator.
//
//	x + 1    BinaryOp{Op: "+", Left: x, Right: 1}
type BinaryOp struct {
	Annot
	Binder
	Op    string
	Left  Expr
	Right Expr
}

// FunCall calls a function by name.
type FunCall struct {
	Annot
	Binder
	Func string
	Args []Arg
}

// IfExpr is `if Cond then Then else Else`.
type IfExpr struct {
	Annot
	Cond Expr
	Then Expr
	Else Expr
}

// LetExpr is `let Decls in Body`.
type LetExpr struct {
	Annot
	Decls []Decl
	Body  Expr
}

// ArrayLit is `[e0, e1, ...]`.
type ArrayLit struct {
	Annot
	Elems []Expr
}

// FieldInit is one `name ~ value` member of a record literal.
type FieldInit struct {
	Name  string
	Value Expr
}

// RecordLit is `{a ~ e0, b ~ e1, ...}`.
type RecordLit struct {
	Annot
	Fields []FieldInit
}

func (*IntLit) exprNode()      {}
func (*CharLit) exprNode()     {}
func (*BoolLit) exprNode()     {}
func (*Ident) exprNode()       {}
func (*Subscript) exprNode()   {}
func (*FieldAccess) exprNode() {}
func (*UnaryOp) exprNode()     {}
func (*BinaryOp) exprNode()    {}
func (*FunCall) exprNode()     {}
func (*IfExpr) exprNode()      {}
func (*LetExpr) exprNode()     {}
func (*ArrayLit) exprNode()    {}
func (*RecordLit) exprNode()   {}

// IsLiteral reports whether e is a scalar literal.
func IsLiteral(e Expr) bool {
	switch e.(type) {
	case *IntLit, *CharLit, *BoolLit:
		return true
	}
	return false
}

// Root returns the identifier at the root of an lvalue chain such as
// a[i].f, or nil when e is not an lvalue.
func Root(e Expr) *Ident {
	switch n := e.(type) {
	case *Ident:
		return n
	case *Subscript:
		return Root(n.Array)
	case *FieldAccess:
		return Root(n.Record)
	}
	return nil
}

// Statements

// Stmt is implemented by every command node.
type Stmt interface {
	Node
	stmtNode()
}

// Assign is `Target := Value`.
type Assign struct {
	Annot
	Target Expr
	Value  Expr
}

// CallStmt calls a procedure.
type CallStmt struct {
	Annot
	Binder
	Proc string
	Args []Arg
}

// Seq is `C0; C1; ...`.
type Seq struct {
	Annot
	Stmts []Stmt
}

// LetStmt is `let Decls in Body`.
type LetStmt struct {
	Annot
	Decls []Decl
	Body  Stmt
}

// IfStmt is `if Cond then Then else Else`. A nil Else is an empty command.
type IfStmt struct {
	Annot
	Cond Expr
	Then Stmt
	Else Stmt
}

// WhileStmt is `while Cond do Body`.
type WhileStmt struct {
	Annot
	Cond Expr
	Body Stmt
}

// RepeatUntil is `repeat Body until Cond`.
type RepeatUntil struct {
	Annot
	Body Stmt
	Cond Expr
}

// RepeatWhile is `repeat Body while Cond`.
type RepeatWhile struct {
	Annot
	Body Stmt
	Cond Expr
}

// LoopWhile is `loop Pre while Cond do Post`: Pre runs, the loop exits when
// Cond is false, otherwise Post runs and the loop starts over.
type LoopWhile struct {
	Annot
	Pre  Stmt
	Cond Expr
	Post Stmt
}

// Forever repeats Body unconditionally. Dead-code elimination produces it
// from loops whose guard is always true.
type Forever struct {
	Annot
	Body Stmt
}

// Skip is the empty command.
type Skip struct {
	Annot
}

func (*Assign) stmtNode()      {}
func (*CallStmt) stmtNode()    {}
func (*Seq) stmtNode()         {}
func (*LetStmt) stmtNode()     {}
func (*IfStmt) stmtNode()      {}
func (*WhileStmt) stmtNode()   {}
func (*RepeatUntil) stmtNode() {}
func (*RepeatWhile) stmtNode() {}
func (*LoopWhile) stmtNode()   {}
func (*Forever) stmtNode()     {}
func (*Skip) stmtNode()        {}

// Declarations

// Decl is implemented by every declaration.
type Decl interface {
	Node
	DeclName() string
	declNode()
}

// ConstDecl is `const Name ~ Value`.
type ConstDecl struct {
	Annot
	Name  string
	Value Expr
}

// VarDecl is `var Name : Sig`.
type VarDecl struct {
	Annot
	Name string
	Sig  TypeSig
}

// FuncDecl is `func Name(Params) : Result ~ Body`.
type FuncDecl struct {
	Annot
	Name   string
	Params []Param
	Result TypeSig
	Body   Expr
}

// ProcDecl is `proc Name(Params) ~ Body`.
type ProcDecl struct {
	Annot
	Name   string
	Params []Param
	Body   Stmt
}

// TypeDecl is `type Name ~ Sig`.
type TypeDecl struct {
	Annot
	Name string
	Sig  TypeSig
}

func (d *ConstDecl) DeclName() string { return d.Name }
func (d *VarDecl) DeclName() string   { return d.Name }
func (d *FuncDecl) DeclName() string  { return d.Name }
func (d *ProcDecl) DeclName() string  { return d.Name }
func (d *TypeDecl) DeclName() string  { return d.Name }

func (*ConstDecl) declNode() {}
func (*VarDecl) declNode()   {}
func (*FuncDecl) declNode()  {}
func (*ProcDecl) declNode()  {}
func (*TypeDecl) declNode()  {}

// Parameters

// Param is implemented by every formal parameter.
type Param interface {
	Node
	ParamName() string
	paramNode()
}

// ValueParam is `Name : Sig`; the parameter is constant inside the routine.
type ValueParam struct {
	Annot
	Name string
	Sig  TypeSig
}

// VarParam is `var Name : Sig`.
type VarParam struct {
	Annot
	Name string
	Sig  TypeSig
}

// FuncParam is `func Name(Params) : Result`, or `proc Name(Params)` when
// Result is nil.
type FuncParam struct {
	Annot
	Name   string
	Params []Param
	Result TypeSig
}

func (p *ValueParam) ParamName() string { return p.Name }
func (p *VarParam) ParamName() string   { return p.Name }
func (p *FuncParam) ParamName() string  { return p.Name }

func (*ValueParam) paramNode() {}
func (*VarParam) paramNode()   {}
func (*FuncParam) paramNode()  {}

// Decl lets a parameter stand in as the declaration an identifier binds to.
func (p *ValueParam) DeclName() string { return p.Name }
func (p *VarParam) DeclName() string   { return p.Name }
func (p *FuncParam) DeclName() string  { return p.Name }

func (*ValueParam) declNode() {}
func (*VarParam) declNode()   {}
func (*FuncParam) declNode()  {}

// Arguments

// Arg is implemented by every actual argument.
type Arg interface {
	Node
	argNode()
}

// ExprArg passes the value of an expression.
type ExprArg struct {
	Annot
	Value Expr
}

// VarArg passes a variable by reference.
type VarArg struct {
	Annot
	Target Expr
}

// FuncArg passes a function or procedure by name.
type FuncArg struct {
	Annot
	Binder
	Name string
}

func (*ExprArg) argNode() {}
func (*VarArg) argNode()  {}
func (*FuncArg) argNode() {}

// Type signatures

// TypeSig is implemented by every syntactic type.
type TypeSig interface {
	Node
	sigNode()
}

// NamedSig refers to a declared or standard type by name.
type NamedSig struct {
	Annot
	Name string
}

// ArraySig is `array Len of Elem`.
type ArraySig struct {
	Annot
	Len  int
	Elem TypeSig
}

// FieldSig is one member of a record signature.
type FieldSig struct {
	Name string
	Type TypeSig
}

// RecordSig is `record f0 : T0, f1 : T1 ... end`.
type RecordSig struct {
	Annot
	Fields []FieldSig
}

func (*NamedSig) sigNode()  {}
func (*ArraySig) sigNode()  {}
func (*RecordSig) sigNode() {}
