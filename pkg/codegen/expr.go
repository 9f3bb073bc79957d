package codegen

import (
	"tamc/pkg/asm"
	"tamc/pkg/ast"
	"tamc/pkg/checker"
	"tamc/pkg/tam"
	"tamc/pkg/types"
)

// size is the number of words the value of e occupies once loaded.
func size(e ast.Node) int { return types.Deref(e.Type()).Size() }

// expr pushes the value of e.
func (g *generator) expr(e ast.Expr) {
	g.at(e)
	if v, ok := literalValue(e); ok {
		g.emit(asm.LoadL(v))
		return
	}

	switch n := e.(type) {
	case *ast.Ident:
		if k, ok := g.known(n.Name); ok {
			g.emit(asm.LoadL(k))
			return
		}
		g.load(g.locate(n), size(n))

	case *ast.Subscript, *ast.FieldAccess:
		g.load(g.locate(n), size(n))

	case *ast.UnaryOp:
		start := g.offset()
		g.expr(n.Operand)
		name := n.Op
		if checker.IsStandard(n.Decl()) {
			name = checker.UnaryKey(n.Op)
		}
		g.invoke(name)
		g.setOffset(start + size(n))

	case *ast.BinaryOp:
		start := g.offset()
		g.expr(n.Left)
		g.expr(n.Right)
		c, _ := g.callable(n.Op)
		if p, ok := c.(PrimitiveCallable); ok && (p.Disp == tam.PrimEq || p.Disp == tam.PrimNe) {
			g.emit(asm.LoadL(size(n.Left)))
		}
		g.invoke(n.Op)
		g.setOffset(start + size(n))

	case *ast.FunCall:
		start := g.offset()
		g.args(n.Args)
		g.invoke(n.Func)
		g.setOffset(start + size(n))

	case *ast.IfExpr:
		start := g.offset()
		elseL, end := g.label("else"), g.label("end")
		g.expr(n.Cond)
		g.emit(asm.JumpIf(0, elseL))
		g.expr(n.Then)
		g.emit(asm.Jump(end))
		g.emit(asm.Label(elseL))
		g.setOffset(start)
		g.expr(n.Else)
		g.emit(asm.Label(end))
		g.setOffset(start + size(n))

	case *ast.LetExpr:
		start := g.offset()
		g.enterBlock()
		allocated := g.decls(n.Decls)
		g.expr(n.Body)
		g.emit(asm.Pop(size(n), allocated))
		g.exitScope()
		g.setOffset(start + size(n))

	case *ast.ArrayLit:
		for _, el := range n.Elems {
			g.expr(el)
		}

	case *ast.RecordLit:
		rec, ok := types.Deref(n.Type()).(*types.Record)
		if !ok {
			g.fatal(ErrMalformed, "record literal of type %s", n.Type())
		}
		values := make(map[string]ast.Expr, len(n.Fields))
		for _, f := range n.Fields {
			values[f.Name] = f.Value
		}
		for _, f := range rec.Fields {
			v, ok := values[f.Name]
			if !ok {
				g.fatal(ErrMalformed, "record literal without field %s", f.Name)
			}
			g.expr(v)
		}

	default:
		g.fatal(ErrMalformed, "expression %T", e)
	}
}

func (g *generator) known(name string) (int, bool) {
	e, _ := g.entity(name)
	k, ok := e.(KnownValue)
	return k.Value, ok
}

// location is where an lvalue lives. A static location is disp[reg]; a
// dynamic one has its base address on top of the stack, disp words below
// the value.
type location struct {
	static bool
	reg    tam.Reg
	disp   int
}

// locate finds the storage of a variable, constant or component of one,
// pushing a base address when it is not known statically.
func (g *generator) locate(e ast.Expr) location {
	g.at(e)
	switch n := e.(type) {
	case *ast.Ident:
		ent, depth := g.entity(n.Name)
		a, ok := ent.(Address)
		if !ok {
			g.fatal(ErrMalformed, "%s has no storage", n.Name)
		}
		reg := g.register(depth)
		if a.Ref {
			g.emit(asm.Load(1, reg, a.Offset))
			return location{}
		}
		return location{static: true, reg: reg, disp: a.Offset}

	case *ast.Subscript:
		loc := g.locate(n.Array)
		elem := size(n)
		if i, ok := n.Index.(*ast.IntLit); ok {
			loc.disp += i.Value * elem
			return loc
		}
		if loc.static {
			g.emit(asm.LoadA(loc.reg, loc.disp))
			loc = location{}
		}
		g.expr(n.Index)
		if elem != 1 {
			g.emit(asm.LoadL(elem))
			g.binaryPrim(tam.PrimMult)
		}
		g.binaryPrim(tam.PrimAdd)
		return loc

	case *ast.FieldAccess:
		loc := g.locate(n.Record)
		rec, ok := types.Deref(n.Record.Type()).(*types.Record)
		if !ok {
			g.fatal(ErrMalformed, "%s is not a record", n.Record)
		}
		_, off, ok := rec.Field(n.Field)
		if !ok {
			g.fatal(ErrMalformed, "%s has no field %s", rec, n.Field)
		}
		loc.disp += off
		return loc
	}
	g.fatal(ErrMalformed, "%s is not a variable", e)
	return location{}
}

// address turns a dynamic location into a plain address on the stack.
func (g *generator) address(loc location) {
	if loc.disp != 0 {
		g.emit(asm.LoadL(loc.disp))
		g.binaryPrim(tam.PrimAdd)
	}
}

func (g *generator) load(loc location, n int) {
	if loc.static {
		g.emit(asm.Load(n, loc.reg, loc.disp))
		return
	}
	g.address(loc)
	g.emit(asm.LoadI(n))
}

// store pops a value of n words into loc. A dynamic location's address must
// be above the value.
func (g *generator) store(loc location, n int) {
	if loc.static {
		g.emit(asm.Store(n, loc.reg, loc.disp))
		return
	}
	g.address(loc)
	g.emit(asm.StoreI(n))
}

// invoke calls the routine bound to name once its arguments are pushed. The
// caller settles the stack offset.
func (g *generator) invoke(name string) {
	c, reg := g.callable(name)
	switch c := c.(type) {
	case StaticCallable:
		g.emit(asm.Call(reg, c.Label))
	case DynamicCallable:
		g.emit(asm.Load(2, reg, c.Offset))
		g.emit(asm.CallI())
	case PrimitiveCallable:
		g.emit(asm.CallPrim(c.Disp))
	case CompilerGenerated:
		for _, i := range c.Instrs {
			g.emit(i)
		}
	}
}

func (g *generator) args(as []ast.Arg) {
	for _, a := range as {
		g.at(a)
		switch a := a.(type) {
		case *ast.ExprArg:
			g.expr(a.Value)
		case *ast.VarArg:
			loc := g.locate(a.Target)
			if loc.static {
				g.emit(asm.LoadA(loc.reg, loc.disp))
			} else {
				g.address(loc)
			}
		case *ast.FuncArg:
			g.closure(a)
		default:
			g.fatal(ErrMalformed, "argument %T", a)
		}
	}
}

// closure pushes the static link and code address of a callable argument.
func (g *generator) closure(a *ast.FuncArg) {
	c, reg := g.callable(a.Name)
	switch c := c.(type) {
	case StaticCallable:
		g.emit(asm.LoadA(reg, 0))
		g.emit(asm.LoadLabel(c.Label))
	case DynamicCallable:
		g.emit(asm.Load(2, reg, c.Offset))
	case PrimitiveCallable:
		g.emit(asm.LoadA(tam.SB, 0))
		g.emit(asm.LoadA(tam.PB, c.Disp))
	case CompilerGenerated:
		g.emit(asm.LoadA(tam.SB, 0))
		g.emit(asm.LoadLabel(g.thunk(a, c)))
	}
}

// thunk wraps an inline expansion in a routine of the argument's signature
// and returns its entry label.
func (g *generator) thunk(a *ast.FuncArg, c CompilerGenerated) string {
	ft, ok := a.Type().(*types.Func)
	if !ok {
		g.fatal(ErrMalformed, "%s passed as %s", a.Name, a.Type())
	}
	argsSize := 0
	for _, p := range ft.Params {
		argsSize += p.Size()
	}

	at := g.offset()
	entry, skip := g.routineLabel(a.Name), g.label("skip")
	g.emit(asm.Jump(skip))
	g.emit(asm.Label(entry))
	g.emit(asm.Load(argsSize, tam.LB, -argsSize))
	for _, i := range c.Instrs {
		g.emit(i)
	}
	g.emit(asm.Return(ft.Result.Size(), argsSize))
	g.emit(asm.Label(skip))
	g.setOffset(at)
	return entry
}
