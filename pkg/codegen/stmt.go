package codegen

import (
	"tamc/pkg/asm"
	"tamc/pkg/ast"
)

func (g *generator) stmt(s ast.Stmt) {
	g.at(s)
	switch n := s.(type) {
	case *ast.Assign:
		g.expr(n.Value)
		g.store(g.locate(n.Target), size(n.Value))

	case *ast.CallStmt:
		start := g.offset()
		g.args(n.Args)
		g.invoke(n.Proc)
		g.setOffset(start)

	case *ast.Seq:
		for _, child := range n.Stmts {
			g.stmt(child)
		}

	case *ast.LetStmt:
		g.enterBlock()
		allocated := g.decls(n.Decls)
		g.stmt(n.Body)
		g.emit(asm.Pop(0, allocated))
		g.exitScope()

	case *ast.IfStmt:
		elseL, end := g.label("else"), g.label("end")
		g.expr(n.Cond)
		g.emit(asm.JumpIf(0, elseL))
		g.stmt(n.Then)
		g.emit(asm.Jump(end))
		g.emit(asm.Label(elseL))
		if n.Else != nil {
			g.stmt(n.Else)
		}
		g.emit(asm.Label(end))

	case *ast.WhileStmt:
		body, test := g.label("body"), g.label("test")
		g.emit(asm.Jump(test))
		g.emit(asm.Label(body))
		g.stmt(n.Body)
		g.emit(asm.Label(test))
		g.expr(n.Cond)
		g.emit(asm.JumpIf(1, body))

	case *ast.RepeatUntil:
		body := g.label("repeat")
		g.emit(asm.Label(body))
		g.stmt(n.Body)
		g.expr(n.Cond)
		g.emit(asm.JumpIf(0, body))

	case *ast.RepeatWhile:
		body := g.label("repeat")
		g.emit(asm.Label(body))
		g.stmt(n.Body)
		g.expr(n.Cond)
		g.emit(asm.JumpIf(1, body))

	case *ast.LoopWhile:
		top, end := g.label("loop"), g.label("end")
		g.emit(asm.Label(top))
		g.stmt(n.Pre)
		g.expr(n.Cond)
		g.emit(asm.JumpIf(0, end))
		g.stmt(n.Post)
		g.emit(asm.Jump(top))
		g.emit(asm.Label(end))

	case *ast.Forever:
		top := g.label("loop")
		g.emit(asm.Label(top))
		g.stmt(n.Body)
		g.emit(asm.Jump(top))

	case *ast.Skip:

	default:
		g.fatal(ErrMalformed, "statement %T", s)
	}
}
