package codegen

import (
	"tamc/pkg/asm"
	"tamc/pkg/ast"
	"tamc/pkg/types"
)

// frameHeader is the link data at the base of every routine frame: static
// link, dynamic link and return address.
const frameHeader = 3

// decls allocates ds in order and returns the number of words they occupy.
func (g *generator) decls(ds []ast.Decl) int {
	start := g.offset()
	for _, d := range ds {
		g.decl(d)
	}
	return g.offset() - start
}

func (g *generator) decl(d ast.Decl) {
	g.at(d)
	switch d := d.(type) {
	case *ast.ConstDecl:
		if v, ok := literalValue(d.Value); ok {
			g.locals.AddConst(d.Name, KnownValue{Value: v})
			return
		}
		at := g.offset()
		g.expr(d.Value)
		g.locals.AddConst(d.Name, Address{Offset: at})

	case *ast.VarDecl:
		at := g.offset()
		g.emit(asm.Push(d.Type().Size()))
		g.locals.Add(d.Name, Address{Offset: at})

	case *ast.FuncDecl:
		ft, ok := d.Type().(*types.Func)
		if !ok {
			g.fatal(ErrMalformed, "function %s of type %s", d.Name, d.Type())
		}
		g.routine(d.Name, d.Params, ft.Result.Size(), func() { g.expr(d.Body) })

	case *ast.ProcDecl:
		g.routine(d.Name, d.Params, 0, func() { g.stmt(d.Body) })

	case *ast.TypeDecl:

	default:
		g.fatal(ErrMalformed, "declaration %T", d)
	}
}

// routine emits a routine body out of line, skipped over by the enclosing
// code. The name is bound before the body so the routine can call itself.
func (g *generator) routine(name string, params []ast.Param, resultSize int, body func()) {
	entry := g.routineLabel(name)
	skip := g.label("skip")
	g.emit(asm.Jump(skip))
	g.callables.AddConst(name, StaticCallable{Label: entry})

	g.emit(asm.Label(entry))
	g.enterFrame(frameHeader)
	argsSize := g.params(params)
	body()
	g.emit(asm.Return(resultSize, argsSize))
	g.exitScope()
	g.emit(asm.Label(skip))
}

// params binds the formals below the frame, where the caller pushed the
// arguments in order, and returns their total size.
func (g *generator) params(ps []ast.Param) int {
	size := 0
	for _, p := range ps {
		size += p.Type().Size()
	}
	at := -size
	for _, p := range ps {
		switch p := p.(type) {
		case *ast.ValueParam:
			g.locals.AddConst(p.Name, Address{Offset: at})
		case *ast.VarParam:
			g.locals.Add(p.Name, Address{Offset: at, Ref: true})
		case *ast.FuncParam:
			g.callables.AddConst(p.Name, DynamicCallable{Offset: at})
		default:
			g.fatal(ErrMalformed, "parameter %T", p)
		}
		at += p.Type().Size()
	}
	return size
}

// literalValue returns the machine word of a scalar literal.
func literalValue(e ast.Expr) (int, bool) {
	switch n := e.(type) {
	case *ast.IntLit:
		return n.Value, true
	case *ast.CharLit:
		return int(n.Value), true
	case *ast.BoolLit:
		if n.Value {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}
