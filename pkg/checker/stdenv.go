package checker

import (
	"strings"

	"tamc/pkg/ast"
	"tamc/pkg/types"
)

// MaxInt is the value of the standard constant maxint.
const MaxInt = 32767

// MinInt is the smallest representable integer.
const MinInt = -32768

type stdFunc struct {
	name   string
	params []types.Type
	result types.Type
}

// Unary and binary minus share a name, so prefix operators are bound under
// UnaryKey(op). UnaryOp lookup uses that key unless the program declares a
// one-parameter function named op.
const unaryPrefix = "unary "

// UnaryKey is the term-namespace key of a prefix operator.
func UnaryKey(op string) string { return unaryPrefix + op }

var stdFuncs = []stdFunc{
	{unaryPrefix + `\`, []types.Type{types.Bool}, types.Bool},
	{unaryPrefix + "-", []types.Type{types.Int}, types.Int},

	{`/\`, []types.Type{types.Bool, types.Bool}, types.Bool},
	{`\/`, []types.Type{types.Bool, types.Bool}, types.Bool},
	{"+", []types.Type{types.Int, types.Int}, types.Int},
	{"-", []types.Type{types.Int, types.Int}, types.Int},
	{"*", []types.Type{types.Int, types.Int}, types.Int},
	{"/", []types.Type{types.Int, types.Int}, types.Int},
	{"//", []types.Type{types.Int, types.Int}, types.Int},
	{"<", []types.Type{types.Int, types.Int}, types.Bool},
	{"<=", []types.Type{types.Int, types.Int}, types.Bool},
	{">", []types.Type{types.Int, types.Int}, types.Bool},
	{">=", []types.Type{types.Int, types.Int}, types.Bool},

	{"chr", []types.Type{types.Int}, types.Char},
	{"ord", []types.Type{types.Char}, types.Int},
	{"eol", nil, types.Bool},
	{"eof", nil, types.Bool},

	{"get", []types.Type{types.RefOf(types.Char)}, types.Void},
	{"put", []types.Type{types.Char}, types.Void},
	{"getint", []types.Type{types.RefOf(types.Int)}, types.Void},
	{"putint", []types.Type{types.Int}, types.Void},
	{"geteol", nil, types.Void},
	{"puteol", nil, types.Void},
}

// Polymorphic equality operators: operands of any one type, result Boolean.
var polyOps = []string{"=", `\=`}

// environment holds the bindings of the standard environment. Its
// declarations have no bodies and are shared by every Check call; they are
// never mutated.
type environment struct {
	types  map[string]*Binding
	terms  map[string]*Binding
	consts map[string]*Binding
	decls  map[ast.Decl]bool
}

var std = newEnvironment()

func newEnvironment() *environment {
	env := &environment{
		types:  map[string]*Binding{},
		terms:  map[string]*Binding{},
		consts: map[string]*Binding{},
		decls:  map[ast.Decl]bool{},
	}
	for _, b := range []struct {
		name string
		t    types.Basic
	}{{"Integer", types.Int}, {"Char", types.Char}, {"Boolean", types.Bool}} {
		d := &ast.TypeDecl{Name: b.name, Sig: &ast.NamedSig{Name: b.name}}
		env.types[b.name] = &Binding{Type: b.t, Const: true, Decl: d}
		env.decls[d] = true
	}

	constant := func(name string, value ast.Expr, t types.Type) {
		value.SetType(t)
		d := &ast.ConstDecl{Name: name, Value: value}
		env.consts[name] = &Binding{Type: t, Const: true, Decl: d}
		env.decls[d] = true
	}
	constant("true", &ast.BoolLit{Value: true}, types.Bool)
	constant("false", &ast.BoolLit{Value: false}, types.Bool)
	constant("maxint", &ast.IntLit{Value: MaxInt}, types.Int)

	for _, f := range stdFuncs {
		ft := &types.Func{Params: f.params, Result: f.result}
		name := strings.TrimPrefix(f.name, unaryPrefix)
		var d ast.Decl
		if f.result == types.Void {
			d = &ast.ProcDecl{Name: name}
		} else {
			d = &ast.FuncDecl{Name: name}
		}
		env.terms[f.name] = &Binding{Type: ft, Const: true, Decl: d}
		env.decls[d] = true
	}
	for _, op := range polyOps {
		d := &ast.FuncDecl{Name: op}
		env.terms[op] = &Binding{Poly: true, Const: true, Decl: d}
		env.decls[d] = true
	}
	return env
}

// IsStandard reports whether d is a declaration of the standard environment.
func IsStandard(d ast.Decl) bool { return std.decls[d] }

// StandardType returns the type bound to a standard callable or constant
// name, for passes that need the standard signatures without a checker.
func StandardType(name string) (types.Type, bool) {
	if b, ok := std.consts[name]; ok {
		return b.Type, true
	}
	if b, ok := std.terms[name]; ok && !b.Poly {
		return b.Type, true
	}
	return nil, false
}
