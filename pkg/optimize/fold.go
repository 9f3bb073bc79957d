package optimize

import (
	"fmt"

	"github.com/JohnCGriffin/overflow"

	"tamc/pkg/ast"
	"tamc/pkg/checker"
	"tamc/pkg/diag"
	"tamc/pkg/symtab"
	"tamc/pkg/tam"
)

type intOp func(a, b int16) (int16, bool)

var arithmetic = map[string]intOp{
	"+": overflow.Add16,
	"-": overflow.Sub16,
	"*": overflow.Mul16,
	"/": func(a, b int16) (int16, bool) {
		q, _, ok := tam.Divide(a, b)
		return q, ok
	},
	"//": func(a, b int16) (int16, bool) {
		_, r, ok := tam.Divide(a, b)
		return r, ok
	},
}

var comparisons = map[string]func(a, b int) bool{
	"<":  func(a, b int) bool { return a < b },
	"<=": func(a, b int) bool { return a <= b },
	">":  func(a, b int) bool { return a > b },
	">=": func(a, b int) bool { return a >= b },
}

var logical = map[string]func(a, b bool) bool{
	`/\`: func(a, b bool) bool { return a && b },
	`\/`: func(a, b bool) bool { return a || b },
}

// folder evaluates operators over literal operands and substitutes
// identifiers bound to literal constants. Constant bindings are tracked per
// scope; a nil entry shadows an outer constant of the same name.
type folder struct {
	cfg      Config
	consts   *symtab.Table[ast.Expr]
	folds    int
	total    int
	errs     diag.ErrorList
	reported map[string]bool
	mapper   ast.Mapper
}

func newFolder(cfg Config) *folder {
	f := &folder{
		cfg:      cfg,
		consts:   symtab.New[ast.Expr](0),
		reported: map[string]bool{},
	}
	f.consts.AddConst("true", &ast.BoolLit{Value: true})
	f.consts.AddConst("false", &ast.BoolLit{Value: false})
	f.consts.AddConst("maxint", &ast.IntLit{Value: checker.MaxInt})
	f.mapper = ast.Mapper{Expr: f.expr, Stmt: f.stmt, Decl: f.decl}
	return f
}

// run folds prog to a fixed point: passes repeat while the last one folded
// more than FoldThreshold nodes, until FoldCap folds have been done in total.
func (f *folder) run(prog *ast.Program) *ast.Program {
	start := f.total
	for {
		f.folds = 0
		prog = &ast.Program{Body: f.stmt(prog.Body)}
		f.total += f.folds
		if f.folds <= f.cfg.FoldThreshold || f.total-start >= f.cfg.FoldCap {
			return prog
		}
	}
}

func (f *folder) overflowed(n ast.Node) {
	key := fmt.Sprintf("%s|%s", n.Position(), n)
	if f.reported[key] {
		return
	}
	f.reported[key] = true
	f.errs = append(f.errs, diag.Errorf(n, diag.IntegerTooLarge, "%s overflows", n))
}

func (f *folder) stmt(s ast.Stmt) ast.Stmt {
	if n, ok := s.(*ast.LetStmt); ok {
		f.consts.EnterBlock()
		defer f.consts.ExitScope()
		decls := f.decls(n.Decls)
		return ast.CopyAnnot(&ast.LetStmt{Decls: decls, Body: f.stmt(n.Body)}, n)
	}
	return ast.MapStmt(s, f.mapper)
}

// decls folds a declaration sequence in order, so later declarations see
// the constants bound by earlier ones.
func (f *folder) decls(ds []ast.Decl) []ast.Decl {
	out := make([]ast.Decl, len(ds))
	for i, d := range ds {
		out[i] = f.decl(d)
	}
	return out
}

func (f *folder) decl(d ast.Decl) ast.Decl {
	switch n := d.(type) {
	case *ast.ConstDecl:
		v := f.expr(n.Value)
		if ast.IsLiteral(v) {
			f.consts.AddConst(n.Name, v)
		} else {
			f.consts.Add(n.Name, nil)
		}
		return ast.CopyAnnot(&ast.ConstDecl{Name: n.Name, Value: v}, n)

	case *ast.VarDecl:
		f.consts.Add(n.Name, nil)
		return d

	case *ast.FuncDecl:
		f.consts.Add(n.Name, nil)
		f.consts.EnterScope(0)
		defer f.consts.ExitScope()
		f.shadow(n.Params)
		return ast.CopyAnnot(&ast.FuncDecl{Name: n.Name, Params: n.Params, Result: n.Result, Body: f.expr(n.Body)}, n)

	case *ast.ProcDecl:
		f.consts.Add(n.Name, nil)
		f.consts.EnterScope(0)
		defer f.consts.ExitScope()
		f.shadow(n.Params)
		return ast.CopyAnnot(&ast.ProcDecl{Name: n.Name, Params: n.Params, Body: f.stmt(n.Body)}, n)
	}
	return d
}

func (f *folder) shadow(params []ast.Param) {
	for _, p := range params {
		f.consts.Add(p.ParamName(), nil)
	}
}

func (f *folder) constant(name string) ast.Expr {
	v, err := f.consts.Lookup(name)
	if err != nil {
		return nil
	}
	return v
}

func (f *folder) expr(e ast.Expr) ast.Expr {
	switch n := e.(type) {
	case *ast.Ident:
		if lit := f.constant(n.Name); lit != nil {
			f.folds++
			return literalAt(lit, n)
		}
		return e

	case *ast.LetExpr:
		f.consts.EnterBlock()
		defer f.consts.ExitScope()
		decls := f.decls(n.Decls)
		body := f.expr(n.Body)
		if ast.IsLiteral(body) {
			f.folds++
			return body
		}
		return ast.CopyAnnot(&ast.LetExpr{Decls: decls, Body: body}, n)
	}

	e = ast.MapExpr(e, f.mapper)
	switch n := e.(type) {
	case *ast.UnaryOp:
		if out := f.unary(n); out != nil {
			f.folds++
			return out
		}
	case *ast.BinaryOp:
		if out := f.binary(n); out != nil {
			f.folds++
			return out
		}
	case *ast.FunCall:
		if out := f.call(n); out != nil {
			f.folds++
			return out
		}
	}
	return e
}

func (f *folder) unary(n *ast.UnaryOp) ast.Expr {
	if !checker.IsStandard(n.Decl()) {
		return nil
	}
	switch n.Op {
	case "-":
		a, ok := n.Operand.(*ast.IntLit)
		if !ok {
			return nil
		}
		v, ok := overflow.Sub16(0, int16(a.Value))
		if !ok {
			f.overflowed(n)
			return nil
		}
		return ast.CopyAnnot(&ast.IntLit{Value: int(v)}, n)
	case `\`:
		if b, ok := n.Operand.(*ast.BoolLit); ok {
			return ast.CopyAnnot(&ast.BoolLit{Value: !b.Value}, n)
		}
	}
	return nil
}

func (f *folder) binary(n *ast.BinaryOp) ast.Expr {
	if !checker.IsStandard(n.Decl()) || !ast.IsLiteral(n.Left) || !ast.IsLiteral(n.Right) {
		return nil
	}
	if op, ok := arithmetic[n.Op]; ok {
		a, aok := n.Left.(*ast.IntLit)
		b, bok := n.Right.(*ast.IntLit)
		if !aok || !bok {
			return nil
		}
		if b.Value == 0 && (n.Op == "/" || n.Op == "//") {
			// left for the machine to trap on
			return nil
		}
		v, ok := op(int16(a.Value), int16(b.Value))
		if !ok {
			f.overflowed(n)
			return nil
		}
		return ast.CopyAnnot(&ast.IntLit{Value: int(v)}, n)
	}
	if cmp, ok := comparisons[n.Op]; ok {
		a, aok := n.Left.(*ast.IntLit)
		b, bok := n.Right.(*ast.IntLit)
		if !aok || !bok {
			return nil
		}
		return ast.CopyAnnot(&ast.BoolLit{Value: cmp(a.Value, b.Value)}, n)
	}
	if op, ok := logical[n.Op]; ok {
		a, aok := n.Left.(*ast.BoolLit)
		b, bok := n.Right.(*ast.BoolLit)
		if !aok || !bok {
			return nil
		}
		return ast.CopyAnnot(&ast.BoolLit{Value: op(a.Value, b.Value)}, n)
	}
	switch n.Op {
	case "=", `\=`:
		eq, ok := sameLiteral(n.Left, n.Right)
		if !ok {
			return nil
		}
		if n.Op == `\=` {
			eq = !eq
		}
		return ast.CopyAnnot(&ast.BoolLit{Value: eq}, n)
	}
	return nil
}

// sameLiteral compares two scalar literals of one kind.
func sameLiteral(l, r ast.Expr) (eq, ok bool) {
	switch a := l.(type) {
	case *ast.IntLit:
		b, ok := r.(*ast.IntLit)
		return ok && a.Value == b.Value, ok
	case *ast.CharLit:
		b, ok := r.(*ast.CharLit)
		return ok && a.Value == b.Value, ok
	case *ast.BoolLit:
		b, ok := r.(*ast.BoolLit)
		return ok && a.Value == b.Value, ok
	}
	return false, false
}

func (f *folder) call(n *ast.FunCall) ast.Expr {
	if len(n.Args) != 1 || !checker.IsStandard(n.Decl()) {
		return nil
	}
	arg, ok := n.Args[0].(*ast.ExprArg)
	if !ok {
		return nil
	}
	switch n.Func {
	case "chr":
		if v, ok := arg.Value.(*ast.IntLit); ok && v.Value >= 0 && v.Value <= checker.MaxInt {
			return ast.CopyAnnot(&ast.CharLit{Value: rune(v.Value)}, n)
		}
	case "ord":
		if v, ok := arg.Value.(*ast.CharLit); ok && v.Value <= checker.MaxInt {
			return ast.CopyAnnot(&ast.IntLit{Value: int(v.Value)}, n)
		}
	}
	return nil
}

// literalAt returns a fresh copy of lit carrying the annotations of the node
// it replaces.
func literalAt(lit ast.Expr, at ast.Node) ast.Expr {
	switch l := lit.(type) {
	case *ast.IntLit:
		return ast.CopyAnnot(&ast.IntLit{Value: l.Value}, at)
	case *ast.CharLit:
		return ast.CopyAnnot(&ast.CharLit{Value: l.Value}, at)
	case *ast.BoolLit:
		return ast.CopyAnnot(&ast.BoolLit{Value: l.Value}, at)
	}
	return lit
}
