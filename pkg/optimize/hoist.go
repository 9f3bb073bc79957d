package optimize

import (
	"fmt"

	"tamc/pkg/ast"
	"tamc/pkg/checker"
	"tamc/pkg/symtab"
	"tamc/pkg/types"
)

// Operators that never observe state. / and // are missing because they
// trap on a zero divisor. The arithmetic ones trap on overflow and are
// hoisted only from positions every entry into the loop evaluates.
var (
	pureBinary = map[string]bool{
		"+": true, "-": true, "*": true,
		"<": true, "<=": true, ">": true, ">=": true,
		"=": true, `\=`: true, `/\`: true, `\/`: true,
	}
	pureUnary = map[string]bool{`\`: true, "-": true}
	pureCalls = map[string]bool{"chr": true, "ord": true}
)

// effects is the set of names a routine or loop may assign, directly or
// through the routines it calls.
type effects struct {
	names   map[string]bool
	all     bool
	callees []*effects
	done    bool
}

func newEffects() *effects { return &effects{names: map[string]bool{}} }

// unknown stands for a call through a callable parameter.
var unknown = &effects{all: true, done: true}

func (e *effects) mutate(name string) { e.names[name] = true }

func (e *effects) call(callee *effects) {
	if callee != nil {
		e.callees = append(e.callees, callee)
	}
}

// closure returns every name e may assign, following callees transitively.
func (e *effects) closure() (map[string]bool, bool) {
	out := map[string]bool{}
	seen := map[*effects]bool{}
	worklist := []*effects{e}
	for len(worklist) > 0 {
		cur := worklist[0]
		worklist = worklist[1:]
		if seen[cur] {
			continue
		}
		seen[cur] = true
		if cur.all {
			return nil, true
		}
		for name := range cur.names {
			out[name] = true
		}
		worklist = append(worklist, cur.callees...)
	}
	return out, false
}

// hoister moves loop-invariant pure subexpressions into constants declared
// just outside the loop. Names resolve through a scoped table of routines;
// a nil entry is a name that is not a routine.
type hoister struct {
	scope    *symtab.Table[*effects]
	routines map[ast.Decl]*effects
	next     int
	hoisted  int
}

func newHoister() *hoister {
	return &hoister{
		scope:    symtab.New[*effects](0),
		routines: map[ast.Decl]*effects{},
	}
}

func (h *hoister) run(prog *ast.Program) *ast.Program {
	// names already introduced by an earlier run stay unique
	ast.Inspect(prog.Body, func(n ast.Node) bool {
		if d, ok := n.(*ast.ConstDecl); ok {
			var k int
			if _, err := fmt.Sscanf(d.Name, "$h%d", &k); err == nil && k >= h.next {
				h.next = k + 1
			}
		}
		return true
	})
	return &ast.Program{Body: h.stmt(prog.Body)}
}

func (h *hoister) resolve(name string) *effects {
	e, err := h.scope.Lookup(name)
	if err != nil {
		return nil
	}
	return e
}

// declare binds d in the current scope. A routine's effects are computed
// the first time it is declared, with its own name already bound so that
// recursive calls resolve.
func (h *hoister) declare(d ast.Decl) {
	var params []ast.Param
	var body ast.Node
	switch n := d.(type) {
	case *ast.FuncDecl:
		params, body = n.Params, n.Body
	case *ast.ProcDecl:
		params, body = n.Params, n.Body
	case *ast.TypeDecl:
		return
	default:
		h.scope.Add(d.DeclName(), nil)
		return
	}
	r, ok := h.routines[d]
	if !ok {
		r = newEffects()
		h.routines[d] = r
	}
	h.scope.Add(d.DeclName(), r)
	if r.done {
		return
	}
	r.done = true
	h.scope.EnterScope(0)
	h.bindParams(params)
	h.collect(body, r)
	h.scope.ExitScope()
}

func (h *hoister) bindParams(params []ast.Param) {
	for _, p := range params {
		if _, ok := p.(*ast.FuncParam); ok {
			h.scope.Add(p.ParamName(), unknown)
		} else {
			h.scope.Add(p.ParamName(), nil)
		}
	}
}

// collect records into e everything n may assign: assignment roots, var
// argument roots, names declared inside n and the effects of every routine
// n calls or passes on.
func (h *hoister) collect(n ast.Node, e *effects) {
	switch n := n.(type) {
	case *ast.Assign:
		if root := ast.Root(n.Target); root != nil {
			e.mutate(root.Name)
		}
	case *ast.VarArg:
		if root := ast.Root(n.Target); root != nil {
			e.mutate(root.Name)
		}
	case *ast.CallStmt:
		e.call(h.resolve(n.Proc))
	case *ast.FunCall:
		e.call(h.resolve(n.Func))
	case *ast.FuncArg:
		e.call(h.resolve(n.Name))
	case *ast.LetStmt:
		h.scope.EnterBlock()
		for _, d := range n.Decls {
			e.mutate(d.DeclName())
			h.declare(d)
			h.collect(d, e)
		}
		h.collect(n.Body, e)
		h.scope.ExitScope()
		return
	case *ast.LetExpr:
		h.scope.EnterBlock()
		for _, d := range n.Decls {
			e.mutate(d.DeclName())
			h.declare(d)
			h.collect(d, e)
		}
		h.collect(n.Body, e)
		h.scope.ExitScope()
		return
	case *ast.FuncDecl, *ast.ProcDecl:
		// bodies were summarized by declare
		return
	}
	ast.Inspect(n, func(c ast.Node) bool {
		if c == n {
			return true
		}
		h.collect(c, e)
		return false
	})
}

func (h *hoister) stmt(s ast.Stmt) ast.Stmt {
	switch n := s.(type) {
	case *ast.LetStmt:
		h.scope.EnterBlock()
		defer h.scope.ExitScope()
		decls := make([]ast.Decl, len(n.Decls))
		for i, d := range n.Decls {
			h.declare(d)
			decls[i] = h.decl(d)
		}
		return ast.CopyAnnot(&ast.LetStmt{Decls: decls, Body: h.stmt(n.Body)}, n)
	case *ast.WhileStmt, *ast.RepeatUntil, *ast.RepeatWhile, *ast.LoopWhile, *ast.Forever:
		inner := ast.MapStmt(s, ast.Mapper{Stmt: h.stmt})
		return h.loop(inner)
	}
	return ast.MapStmt(s, ast.Mapper{Stmt: h.stmt})
}

// decl rewrites the loops inside a procedure body, which live in the
// procedure's own scope. Function bodies are expressions and hold no loops.
func (h *hoister) decl(d ast.Decl) ast.Decl {
	n, ok := d.(*ast.ProcDecl)
	if !ok {
		return d
	}
	h.scope.EnterScope(0)
	defer h.scope.ExitScope()
	h.bindParams(n.Params)
	return ast.CopyAnnot(&ast.ProcDecl{Name: n.Name, Params: n.Params, Body: h.stmt(n.Body)}, n)
}

// loop hoists the invariant expressions of one loop, whose inner loops have
// already been processed, and wraps it in the declarations of the hoisted
// constants.
//
// An invariant that may trap is hoisted only if the loop evaluates it on
// every entry, before anything that might not return. A while loop holding
// such a constant is rewritten as `if c then let ... in repeat b while c`,
// so the constant is computed only when the body would run.
func (h *hoister) loop(s ast.Stmt) ast.Stmt {
	e := newEffects()
	h.collect(s, e)
	mutated, all := e.closure()
	if all {
		return s
	}
	sure := entered(s)

	var decls []ast.Decl
	var guard bool
	var m ast.Mapper
	m = ast.Mapper{
		Expr: func(x ast.Expr) ast.Expr {
			orig := x
			x = ast.MapExpr(x, m)
			if !h.invariant(x, mutated) {
				return x
			}
			if mayTrap(x) {
				if !sure[orig] {
					return x
				}
				guard = true
			}
			name := fmt.Sprintf("$h%d", h.next)
			h.next++
			d := ast.CopyAnnot(&ast.ConstDecl{Name: name, Value: x}, x)
			decls = append(decls, d)
			id := ast.CopyAnnot(&ast.Ident{Name: name}, x)
			id.SetDecl(d)
			return id
		},
		Stmt: func(x ast.Stmt) ast.Stmt { return ast.MapStmt(x, m) },
		Decl: func(x ast.Decl) ast.Decl {
			switch x.(type) {
			case *ast.FuncDecl, *ast.ProcDecl:
				return x
			}
			return ast.MapDecl(x, m)
		},
	}
	body := ast.MapStmt(s, m)
	if len(decls) == 0 {
		return s
	}
	h.hoisted += len(decls)
	if w, ok := body.(*ast.WhileStmt); ok && guard {
		rep := ast.CopyAnnot(&ast.RepeatWhile{Body: w.Body, Cond: w.Cond}, s)
		let := ast.CopyAnnot(&ast.LetStmt{Decls: decls, Body: rep}, s)
		return ast.CopyAnnot(&ast.IfStmt{Cond: s.(*ast.WhileStmt).Cond, Then: let}, s)
	}
	return ast.CopyAnnot(&ast.LetStmt{Decls: decls, Body: body}, s)
}

// mayTrap reports whether evaluating e can stop the machine: integer
// arithmetic, unless its operands are literals whose result is in range.
func mayTrap(e ast.Expr) bool {
	switch n := e.(type) {
	case *ast.BinaryOp:
		op, ok := arithmetic[n.Op]
		if !ok {
			return false
		}
		a, aok := n.Left.(*ast.IntLit)
		b, bok := n.Right.(*ast.IntLit)
		if !aok || !bok {
			return true
		}
		_, ok = op(int16(a.Value), int16(b.Value))
		return !ok
	case *ast.UnaryOp:
		if n.Op != "-" {
			return false
		}
		a, ok := n.Operand.(*ast.IntLit)
		return !ok || a.Value == checker.MinInt
	}
	return false
}

// entry walks the part of a loop that runs on every entry, in evaluation
// order, marking the expressions it passes. It stops at the first nested
// loop, branch that might not return or call to a program routine.
type entry struct {
	sure    map[ast.Expr]bool
	stopped bool
}

// entered returns the expressions evaluated each time loop s is entered. A
// while loop is taken to be entered with its condition true.
func entered(s ast.Stmt) map[ast.Expr]bool {
	w := &entry{sure: map[ast.Expr]bool{}}
	switch n := s.(type) {
	case *ast.WhileStmt:
		w.expr(n.Cond)
		w.stmt(n.Body)
	case *ast.RepeatUntil:
		w.stmt(n.Body)
		w.expr(n.Cond)
	case *ast.RepeatWhile:
		w.stmt(n.Body)
		w.expr(n.Cond)
	case *ast.LoopWhile:
		w.stmt(n.Pre)
		w.expr(n.Cond)
	case *ast.Forever:
		w.stmt(n.Body)
	}
	return w.sure
}

func (w *entry) stmt(s ast.Stmt) {
	if w.stopped || s == nil {
		return
	}
	switch n := s.(type) {
	case *ast.Assign:
		w.expr(n.Value)
		w.expr(n.Target)
	case *ast.CallStmt:
		w.args(n.Args)
		w.call(n.Decl())
	case *ast.Seq:
		for _, c := range n.Stmts {
			w.stmt(c)
		}
	case *ast.LetStmt:
		w.decls(n.Decls)
		w.stmt(n.Body)
	case *ast.IfStmt:
		w.expr(n.Cond)
		w.branches(n.Then, n.Else)
	case *ast.Skip:
	default:
		w.stopped = true
	}
}

func (w *entry) expr(e ast.Expr) {
	if w.stopped || e == nil {
		return
	}
	switch n := e.(type) {
	case *ast.Subscript:
		w.expr(n.Array)
		w.expr(n.Index)
	case *ast.FieldAccess:
		w.expr(n.Record)
	case *ast.UnaryOp:
		w.expr(n.Operand)
		w.call(n.Decl())
	case *ast.BinaryOp:
		w.expr(n.Left)
		w.expr(n.Right)
		w.call(n.Decl())
	case *ast.FunCall:
		w.args(n.Args)
		w.call(n.Decl())
	case *ast.IfExpr:
		w.expr(n.Cond)
		w.branches(n.Then, n.Else)
	case *ast.LetExpr:
		w.decls(n.Decls)
		w.expr(n.Body)
	case *ast.ArrayLit:
		for _, c := range n.Elems {
			w.expr(c)
		}
	case *ast.RecordLit:
		for _, f := range n.Fields {
			w.expr(f.Value)
		}
	}
	if !w.stopped {
		w.sure[e] = true
	}
}

func (w *entry) args(as []ast.Arg) {
	for _, a := range as {
		switch a := a.(type) {
		case *ast.ExprArg:
			w.expr(a.Value)
		case *ast.VarArg:
			w.expr(a.Target)
		}
	}
}

func (w *entry) decls(ds []ast.Decl) {
	for _, d := range ds {
		if c, ok := d.(*ast.ConstDecl); ok {
			w.expr(c.Value)
		}
	}
}

func (w *entry) call(d ast.Decl) {
	if !checker.IsStandard(d) {
		w.stopped = true
	}
}

// branches stops the walk unless both arms of a conditional always return.
// Nothing inside either arm is marked.
func (w *entry) branches(arms ...ast.Node) {
	for _, a := range arms {
		if a != nil && mayHang(a) {
			w.stopped = true
		}
	}
}

// mayHang reports whether n contains a loop or a call to a program routine.
// Routine bodies declared inside n are not entered.
func mayHang(n ast.Node) bool {
	found := false
	ast.Inspect(n, func(c ast.Node) bool {
		if found {
			return false
		}
		switch c := c.(type) {
		case *ast.FuncDecl, *ast.ProcDecl:
			return false
		case *ast.WhileStmt, *ast.RepeatUntil, *ast.RepeatWhile, *ast.LoopWhile, *ast.Forever:
			found = true
		case *ast.CallStmt:
			found = !checker.IsStandard(c.Decl())
		case *ast.FunCall:
			found = !checker.IsStandard(c.Decl())
		case *ast.UnaryOp:
			found = !checker.IsStandard(c.Decl())
		case *ast.BinaryOp:
			found = !checker.IsStandard(c.Decl())
		}
		return !found
	})
	return found
}

func (h *hoister) invariant(e ast.Expr, mutated map[string]bool) bool {
	switch n := e.(type) {
	case *ast.BinaryOp:
		return pureBinary[n.Op] && checker.IsStandard(n.Decl()) &&
			operand(n.Left, mutated) && operand(n.Right, mutated)
	case *ast.UnaryOp:
		return pureUnary[n.Op] && checker.IsStandard(n.Decl()) && operand(n.Operand, mutated)
	case *ast.FunCall:
		if !pureCalls[n.Func] || !checker.IsStandard(n.Decl()) || len(n.Args) != 1 {
			return false
		}
		arg, ok := n.Args[0].(*ast.ExprArg)
		return ok && operand(arg.Value, mutated)
	}
	return false
}

// operand reports whether e may be read before the loop starts: a literal,
// or a name the loop never assigns. References are excluded since the loop
// may assign the variable they alias under another name.
func operand(e ast.Expr, mutated map[string]bool) bool {
	if ast.IsLiteral(e) {
		return true
	}
	id, ok := e.(*ast.Ident)
	if !ok || mutated[id.Name] || !id.Typed() {
		return false
	}
	return !types.IsRef(id.Type()) && !types.IsFunc(id.Type())
}
