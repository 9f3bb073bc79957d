package ast

// Mapper supplies the rewrite applied to the children of a node. A nil
// field leaves children of that kind unchanged.
//
// Passes override the node kinds they care about and fall back to MapExpr,
// MapStmt and MapDecl for everything else, which rebuilds the node around the
// rewritten children and copies its annotations forward.
type Mapper struct {
	Expr func(Expr) Expr
	Stmt func(Stmt) Stmt
	Decl func(Decl) Decl
}

func (m Mapper) expr(e Expr) Expr {
	if e == nil || m.Expr == nil {
		return e
	}
	return m.Expr(e)
}

func (m Mapper) stmt(s Stmt) Stmt {
	if s == nil || m.Stmt == nil {
		return s
	}
	return m.Stmt(s)
}

func (m Mapper) decls(ds []Decl) []Decl {
	out := make([]Decl, len(ds))
	for i, d := range ds {
		if m.Decl == nil {
			out[i] = d
		} else {
			out[i] = m.Decl(d)
		}
	}
	return out
}

func (m Mapper) exprs(es []Expr) []Expr {
	out := make([]Expr, len(es))
	for i, e := range es {
		out[i] = m.expr(e)
	}
	return out
}

func (m Mapper) args(as []Arg) []Arg {
	out := make([]Arg, len(as))
	for i, a := range as {
		out[i] = MapArg(a, m)
	}
	return out
}

// MapExpr returns a copy of e whose child expressions and declarations have
// been rewritten by m.
func MapExpr(e Expr, m Mapper) Expr {
	switch n := e.(type) {
	case *IntLit:
		return CopyAnnot(&IntLit{Value: n.Value}, n)
	case *CharLit:
		return CopyAnnot(&CharLit{Value: n.Value}, n)
	case *BoolLit:
		return CopyAnnot(&BoolLit{Value: n.Value}, n)
	case *Ident:
		return CopyAnnot(&Ident{Name: n.Name}, n)
	case *Subscript:
		return CopyAnnot(&Subscript{Array: m.expr(n.Array), Index: m.expr(n.Index)}, n)
	case *FieldAccess:
		return CopyAnnot(&FieldAccess{Record: m.expr(n.Record), Field: n.Field}, n)
	case *UnaryOp:
		return CopyAnnot(&UnaryOp{Op: n.Op, Operand: m.expr(n.Operand)}, n)
	case *BinaryOp:
		return CopyAnnot(&BinaryOp{Op: n.Op, Left: m.expr(n.Left), Right: m.expr(n.Right)}, n)
	case *FunCall:
		return CopyAnnot(&FunCall{Func: n.Func, Args: m.args(n.Args)}, n)
	case *IfExpr:
		return CopyAnnot(&IfExpr{Cond: m.expr(n.Cond), Then: m.expr(n.Then), Else: m.expr(n.Else)}, n)
	case *LetExpr:
		return CopyAnnot(&LetExpr{Decls: m.decls(n.Decls), Body: m.expr(n.Body)}, n)
	case *ArrayLit:
		return CopyAnnot(&ArrayLit{Elems: m.exprs(n.Elems)}, n)
	case *RecordLit:
		fields := make([]FieldInit, len(n.Fields))
		for i, f := range n.Fields {
			fields[i] = FieldInit{Name: f.Name, Value: m.expr(f.Value)}
		}
		return CopyAnnot(&RecordLit{Fields: fields}, n)
	}
	return e
}

// MapStmt returns a copy of s whose children have been rewritten by m.
func MapStmt(s Stmt, m Mapper) Stmt {
	switch n := s.(type) {
	case *Assign:
		return CopyAnnot(&Assign{Target: m.expr(n.Target), Value: m.expr(n.Value)}, n)
	case *CallStmt:
		return CopyAnnot(&CallStmt{Proc: n.Proc, Args: m.args(n.Args)}, n)
	case *Seq:
		stmts := make([]Stmt, len(n.Stmts))
		for i, c := range n.Stmts {
			stmts[i] = m.stmt(c)
		}
		return CopyAnnot(&Seq{Stmts: stmts}, n)
	case *LetStmt:
		return CopyAnnot(&LetStmt{Decls: m.decls(n.Decls), Body: m.stmt(n.Body)}, n)
	case *IfStmt:
		return CopyAnnot(&IfStmt{Cond: m.expr(n.Cond), Then: m.stmt(n.Then), Else: m.stmt(n.Else)}, n)
	case *WhileStmt:
		return CopyAnnot(&WhileStmt{Cond: m.expr(n.Cond), Body: m.stmt(n.Body)}, n)
	case *RepeatUntil:
		return CopyAnnot(&RepeatUntil{Body: m.stmt(n.Body), Cond: m.expr(n.Cond)}, n)
	case *RepeatWhile:
		return CopyAnnot(&RepeatWhile{Body: m.stmt(n.Body), Cond: m.expr(n.Cond)}, n)
	case *LoopWhile:
		return CopyAnnot(&LoopWhile{Pre: m.stmt(n.Pre), Cond: m.expr(n.Cond), Post: m.stmt(n.Post)}, n)
	case *Forever:
		return CopyAnnot(&Forever{Body: m.stmt(n.Body)}, n)
	case *Skip:
		return CopyAnnot(&Skip{}, n)
	}
	return s
}

// MapDecl returns a copy of d whose bodies and values have been rewritten by
// m. Parameters and type signatures are shared with the original.
func MapDecl(d Decl, m Mapper) Decl {
	switch n := d.(type) {
	case *ConstDecl:
		return CopyAnnot(&ConstDecl{Name: n.Name, Value: m.expr(n.Value)}, n)
	case *VarDecl:
		return CopyAnnot(&VarDecl{Name: n.Name, Sig: n.Sig}, n)
	case *FuncDecl:
		return CopyAnnot(&FuncDecl{Name: n.Name, Params: n.Params, Result: n.Result, Body: m.expr(n.Body)}, n)
	case *ProcDecl:
		return CopyAnnot(&ProcDecl{Name: n.Name, Params: n.Params, Body: m.stmt(n.Body)}, n)
	case *TypeDecl:
		return CopyAnnot(&TypeDecl{Name: n.Name, Sig: n.Sig}, n)
	}
	return d
}

// MapArg returns a copy of a whose expression has been rewritten by m.
func MapArg(a Arg, m Mapper) Arg {
	switch n := a.(type) {
	case *ExprArg:
		return CopyAnnot(&ExprArg{Value: m.expr(n.Value)}, n)
	case *VarArg:
		return CopyAnnot(&VarArg{Target: m.expr(n.Target)}, n)
	case *FuncArg:
		return CopyAnnot(&FuncArg{Name: n.Name}, n)
	}
	return a
}

// Inspect walks the tree rooted at n in depth-first order, calling f for
// each node. If f returns false the node's children are skipped.
func Inspect(n Node, f func(Node) bool) {
	if n == nil || !f(n) {
		return
	}
	for _, c := range children(n) {
		Inspect(c, f)
	}
}

func children(n Node) []Node {
	var out []Node
	add := func(cs ...Node) {
		for _, c := range cs {
			if c != nil {
				out = append(out, c)
			}
		}
	}
	switch n := n.(type) {
	case *Subscript:
		add(n.Array, n.Index)
	case *FieldAccess:
		add(n.Record)
	case *UnaryOp:
		add(n.Operand)
	case *BinaryOp:
		add(n.Left, n.Right)
	case *FunCall:
		for _, a := range n.Args {
			add(a)
		}
	case *IfExpr:
		add(n.Cond, n.Then, n.Else)
	case *LetExpr:
		for _, d := range n.Decls {
			add(d)
		}
		add(n.Body)
	case *ArrayLit:
		for _, e := range n.Elems {
			add(e)
		}
	case *RecordLit:
		for _, f := range n.Fields {
			add(f.Value)
		}
	case *Assign:
		add(n.Target, n.Value)
	case *CallStmt:
		for _, a := range n.Args {
			add(a)
		}
	case *Seq:
		for _, s := range n.Stmts {
			add(s)
		}
	case *LetStmt:
		for _, d := range n.Decls {
			add(d)
		}
		add(n.Body)
	case *IfStmt:
		add(n.Cond, n.Then, n.Else)
	case *WhileStmt:
		add(n.Cond, n.Body)
	case *RepeatUntil:
		add(n.Body, n.Cond)
	case *RepeatWhile:
		add(n.Body, n.Cond)
	case *LoopWhile:
		add(n.Pre, n.Cond, n.Post)
	case *Forever:
		add(n.Body)
	case *ConstDecl:
		add(n.Value)
	case *VarDecl:
		add(n.Sig)
	case *TypeDecl:
		add(n.Sig)
	case *FuncDecl:
		for _, p := range n.Params {
			add(p)
		}
		add(n.Result, n.Body)
	case *ProcDecl:
		for _, p := range n.Params {
			add(p)
		}
		add(n.Body)
	case *ValueParam:
		add(n.Sig)
	case *VarParam:
		add(n.Sig)
	case *FuncParam:
		for _, p := range n.Params {
			add(p)
		}
		add(n.Result)
	case *ExprArg:
		add(n.Value)
	case *VarArg:
		add(n.Target)
	case *ArraySig:
		add(n.Elem)
	case *RecordSig:
		for _, f := range n.Fields {
			add(f.Type)
		}
	}
	return out
}
