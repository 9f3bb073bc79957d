package optimize

import "tamc/pkg/ast"

// eliminator removes branches and loops whose guard is a literal.
type eliminator struct {
	removed int
	mapper  ast.Mapper
}

func newEliminator() *eliminator {
	d := &eliminator{}
	d.mapper = ast.Mapper{
		Expr: d.expr,
		Stmt: d.stmt,
		Decl: func(x ast.Decl) ast.Decl { return ast.MapDecl(x, d.mapper) },
	}
	return d
}

func (d *eliminator) run(prog *ast.Program) *ast.Program {
	return &ast.Program{Body: d.stmt(prog.Body)}
}

func guard(e ast.Expr) (value, ok bool) {
	b, ok := e.(*ast.BoolLit)
	if !ok {
		return false, false
	}
	return b.Value, true
}

func (d *eliminator) expr(e ast.Expr) ast.Expr {
	e = ast.MapExpr(e, d.mapper)
	if n, ok := e.(*ast.IfExpr); ok {
		if v, ok := guard(n.Cond); ok {
			d.removed++
			if v {
				return n.Then
			}
			return n.Else
		}
	}
	return e
}

func (d *eliminator) stmt(s ast.Stmt) ast.Stmt {
	s = ast.MapStmt(s, d.mapper)
	switch n := s.(type) {
	case *ast.IfStmt:
		v, ok := guard(n.Cond)
		if !ok {
			return s
		}
		d.removed++
		if v {
			return n.Then
		}
		if n.Else == nil {
			return ast.CopyAnnot(&ast.Skip{}, n)
		}
		return n.Else

	case *ast.WhileStmt:
		v, ok := guard(n.Cond)
		if !ok {
			return s
		}
		d.removed++
		if v {
			return ast.CopyAnnot(&ast.Forever{Body: n.Body}, n)
		}
		return ast.CopyAnnot(&ast.Skip{}, n)

	case *ast.RepeatUntil:
		v, ok := guard(n.Cond)
		if !ok {
			return s
		}
		d.removed++
		if v {
			return n.Body
		}
		return ast.CopyAnnot(&ast.Forever{Body: n.Body}, n)

	case *ast.RepeatWhile:
		v, ok := guard(n.Cond)
		if !ok {
			return s
		}
		d.removed++
		if v {
			return ast.CopyAnnot(&ast.Forever{Body: n.Body}, n)
		}
		return n.Body

	case *ast.LoopWhile:
		v, ok := guard(n.Cond)
		if !ok {
			return s
		}
		d.removed++
		if v {
			body := ast.CopyAnnot(&ast.Seq{Stmts: []ast.Stmt{n.Pre, n.Post}}, n)
			return ast.CopyAnnot(&ast.Forever{Body: body}, n)
		}
		return n.Pre

	case *ast.Seq:
		kept := make([]ast.Stmt, 0, len(n.Stmts))
		for _, c := range n.Stmts {
			if _, skip := c.(*ast.Skip); skip {
				d.removed++
				continue
			}
			kept = append(kept, c)
		}
		switch len(kept) {
		case 0:
			return ast.CopyAnnot(&ast.Skip{}, n)
		case 1:
			return kept[0]
		}
		if len(kept) == len(n.Stmts) {
			return s
		}
		return ast.CopyAnnot(&ast.Seq{Stmts: kept}, n)
	}
	return s
}
