// Package codegen lowers a checked, optimized tree into labeled TAM
// instructions.
//
// Two scoped tables drive addressing: locals map names to known values or
// frame-relative addresses, callables map names to the ways a routine can be
// invoked. Both open a frame per routine body and a block per let, so the
// depth of a binding selects the display register directly. The scope-local
// state of the locals table is the current stack offset within the frame.
package codegen

import (
	"fmt"

	"github.com/pkg/errors"

	"tamc/pkg/asm"
	"tamc/pkg/ast"
	"tamc/pkg/checker"
	"tamc/pkg/symtab"
	"tamc/pkg/tam"
)

// Entity is what a value name is bound to.
type Entity interface{ isEntity() }

// KnownValue is a constant whose literal value is compiled into every use.
// It has no storage.
type KnownValue struct {
	Value int
}

// Address is a value stored at Offset from the base of its frame. When Ref
// is set the slot holds the address of the value rather than the value.
type Address struct {
	Offset int
	Ref    bool
}

func (KnownValue) isEntity() {}
func (Address) isEntity()    {}

// Callable is what a routine name is bound to.
type Callable interface{ isCallable() }

// StaticCallable is a declared routine entered at Label.
type StaticCallable struct {
	Label string
}

// DynamicCallable is a callable parameter: a closure of static link and code
// address stored at Offset in its frame.
type DynamicCallable struct {
	Offset int
}

// PrimitiveCallable is a machine primitive.
type PrimitiveCallable struct {
	Disp int
}

// CompilerGenerated is expanded inline at every call.
type CompilerGenerated struct {
	Instrs []asm.Instr
}

func (StaticCallable) isCallable()    {}
func (DynamicCallable) isCallable()   {}
func (PrimitiveCallable) isCallable() {}
func (CompilerGenerated) isCallable() {}

// FatalError aborts generation: a limit of the machine was exceeded or the
// tree was not one the checker accepts.
type FatalError struct {
	Pos ast.Pos
	Err error
}

func (e *FatalError) Error() string { return fmt.Sprintf("%s: %v", e.Pos, e.Err) }

func (e *FatalError) Unwrap() error { return e.Err }

var (
	ErrTooDeep       = errors.New("routines nested too deeply")
	ErrValueTooLarge = errors.New("value too large to move")
	ErrMalformed     = errors.New("malformed tree")
)

var primitives = map[string]int{
	checker.UnaryKey(`\`): tam.PrimNot,
	checker.UnaryKey("-"): tam.PrimNeg,
	`/\`:                  tam.PrimAnd,
	`\/`:                  tam.PrimOr,
	"+":                   tam.PrimAdd,
	"-":                   tam.PrimSub,
	"*":                   tam.PrimMult,
	"/":                   tam.PrimDiv,
	"//":                  tam.PrimMod,
	"<":                   tam.PrimLT,
	"<=":                  tam.PrimLE,
	">":                   tam.PrimGT,
	">=":                  tam.PrimGE,
	"=":                   tam.PrimEq,
	`\=`:                  tam.PrimNe,
	"eol":                 tam.PrimEol,
	"eof":                 tam.PrimEof,
	"get":                 tam.PrimGet,
	"put":                 tam.PrimPut,
	"getint":              tam.PrimGetint,
	"putint":              tam.PrimPutint,
	"geteol":              tam.PrimGeteol,
	"puteol":              tam.PrimPuteol,
}

// chr and ord only change the static type of a word.
var conversions = []string{"chr", "ord"}

type generator struct {
	locals    *symtab.Table[Entity]
	callables *symtab.Table[Callable]
	code      []asm.Instr
	labels    int
	pos       ast.Pos
}

func newGenerator() *generator {
	g := &generator{
		locals:    symtab.New[Entity](0),
		callables: symtab.New[Callable](0),
	}
	g.locals.AddConst("false", KnownValue{Value: 0})
	g.locals.AddConst("true", KnownValue{Value: 1})
	g.locals.AddConst("maxint", KnownValue{Value: checker.MaxInt})
	for name, d := range primitives {
		g.callables.AddConst(name, PrimitiveCallable{Disp: d})
	}
	for _, name := range conversions {
		g.callables.AddConst(name, CompilerGenerated{})
	}
	return g
}

// Generate translates a program the checker accepted into labeled
// instructions ending in HALT. The only errors are *FatalError values.
func Generate(prog *ast.Program) (code []asm.Instr, err error) {
	g := newGenerator()
	defer func() {
		if r := recover(); r != nil {
			fe, ok := r.(*FatalError)
			if !ok {
				panic(r)
			}
			code, err = nil, fe
		}
	}()
	g.stmt(prog.Body)
	g.emit(asm.Halt())
	return g.code, nil
}

func (g *generator) fatal(cause error, format string, args ...any) {
	panic(&FatalError{Pos: g.pos, Err: errors.Wrapf(cause, format, args...)})
}

func (g *generator) at(n ast.Node) {
	if p := n.Position(); p != (ast.Pos{}) {
		g.pos = p
	}
}

// Scopes

func (g *generator) enterFrame(state int) {
	g.locals.EnterScope(state)
	g.callables.EnterScope(state)
}

func (g *generator) enterBlock() {
	g.locals.EnterBlock()
	g.callables.EnterBlock()
}

func (g *generator) exitScope() {
	g.callables.ExitScope()
	g.locals.ExitScope()
}

func (g *generator) offset() int { return g.locals.ScopeLocalState() }

func (g *generator) setOffset(n int) { g.locals.SetScopeLocalState(n) }

func (g *generator) adjust(delta int) { g.setOffset(g.offset() + delta) }

// register returns the register addressing the frame that lies depth frames
// out from the current one.
func (g *generator) register(depth int) tam.Reg {
	if g.locals.Levels()-1-depth == 0 {
		return tam.SB
	}
	r, ok := tam.Display(depth)
	if !ok {
		g.fatal(ErrTooDeep, "static depth %d, at most %d", depth, tam.MaxDisplay)
	}
	return r
}

// entity returns the binding of a value name and how many frames out it
// was declared.
func (g *generator) entity(name string) (Entity, int) {
	e, depth, err := g.locals.LookupWithDepth(name)
	if err != nil {
		g.fatal(ErrMalformed, "value %v", err)
	}
	return e, depth
}

func (g *generator) callable(name string) (Callable, tam.Reg) {
	c, depth, err := g.callables.LookupWithDepth(name)
	if err != nil {
		g.fatal(ErrMalformed, "routine %v", err)
	}
	if _, ok := c.(PrimitiveCallable); ok {
		return c, tam.SB
	}
	if _, ok := c.(CompilerGenerated); ok {
		return c, tam.SB
	}
	return c, g.register(depth)
}

// Emission

func (g *generator) label(prefix string) string {
	g.labels++
	return fmt.Sprintf("%s.%d", prefix, g.labels)
}

// routineLabel names the entry of a routine after the routine when the name
// can be a label; operators get a generic one.
func (g *generator) routineLabel(name string) string {
	if name == "" {
		return g.label("op")
	}
	for i, r := range name {
		letter := r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
		digit := r >= '0' && r <= '9'
		if !letter && !(digit && i > 0) {
			return g.label("op")
		}
	}
	return g.label(name)
}

// emit appends i and tracks its effect on the stack offset. Calls change
// the offset by their signature, which the caller accounts for.
func (g *generator) emit(i asm.Instr) {
	if !i.IsLabel() {
		switch i.Op {
		case tam.OpLOAD, tam.OpLOADI, tam.OpSTORE, tam.OpSTOREI, tam.OpRETURN, tam.OpPOP:
			if i.N > tam.MaxN {
				g.fatal(ErrValueTooLarge, "%d words", i.N)
			}
		}
		switch i.Op {
		case tam.OpLOAD:
			g.adjust(i.N)
		case tam.OpLOADA, tam.OpLOADL:
			g.adjust(1)
		case tam.OpLOADI:
			g.adjust(i.N - 1)
		case tam.OpSTORE:
			g.adjust(-i.N)
		case tam.OpSTOREI:
			g.adjust(-i.N - 1)
		case tam.OpPUSH:
			g.adjust(i.D)
		case tam.OpPOP:
			g.adjust(-i.D)
		case tam.OpJUMPIF, tam.OpJUMPI:
			g.adjust(-1)
		case tam.OpCALLI:
			g.adjust(-2)
		}
	}
	g.code = append(g.code, i)
}

// binaryPrim calls a primitive that takes two words and returns one.
func (g *generator) binaryPrim(d int) {
	g.emit(asm.CallPrim(d))
	g.adjust(-1)
}
