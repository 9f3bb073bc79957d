// Package checker is the semantic analyzer. It resolves type signatures into
// canonical types, binds every identifier use to its declaration, enforces
// the typing and constancy rules and annotates the tree in place.
//
// Analysis of an expression or declaration stops at its first error, which
// is returned to the enclosing statement. Statements never fail: they record
// the error, fall back to Void, and carry on, so one run reports every
// independent mistake.
package checker

import (
	"errors"
	"fmt"

	"tamc/pkg/ast"
	"tamc/pkg/diag"
	"tamc/pkg/symtab"
	"tamc/pkg/types"
)

type (
	Error     = diag.Error
	ErrorList = diag.ErrorList
)

// Binding is what a name resolves to in the term or the type namespace.
type Binding struct {
	Type  types.Type
	Const bool
	Decl  ast.Decl

	// Poly marks the equality operators, which take operands of any one type
	// and have no fixed signature.
	Poly bool
}

func (b *Binding) String() string {
	if b.Poly {
		return "polymorphic"
	}
	return b.Type.String()
}

type checker struct {
	terms *symtab.Table[*Binding]
	types *symtab.Table[*Binding]
	errs  ErrorList
}

// Check analyzes prog, annotating its nodes, and returns the semantic errors
// found in source order. An empty list means the tree is fully typed.
func Check(prog *ast.Program) ErrorList {
	c := &checker{
		terms: symtab.New[*Binding](0),
		types: symtab.New[*Binding](0),
	}
	for name, b := range std.types {
		c.types.AddConst(name, b)
	}
	for name, b := range std.consts {
		c.terms.AddConst(name, b)
	}
	for name, b := range std.terms {
		c.terms.AddConst(name, b)
	}
	c.stmt(prog.Body)
	return c.errs
}

func errorf(n ast.Node, kind diag.Kind, format string, args ...any) error {
	return diag.Errorf(n, kind, format, args...)
}

// report records err. If n is still untyped it gets the Void fallback so
// later passes over a broken tree never trip on an empty slot. An error that
// is not a diag.Error is recorded as Internal.
func (c *checker) report(err error, n ast.Node) {
	if err == nil {
		return
	}
	var e *diag.Error
	if !errors.As(err, &e) {
		e = &diag.Error{Kind: diag.Internal, Message: err.Error()}
		if n != nil {
			e.Pos = n.Position()
		}
	}
	c.errs = append(c.errs, e)
	if n != nil && !n.Typed() {
		n.SetType(types.Void)
	}
}

func (c *checker) lookupTerm(n ast.Node, name string) (*Binding, error) {
	b, err := c.terms.Lookup(name)
	if err != nil {
		return nil, errorf(n, diag.UndeclaredUse, "undeclared identifier %s", name)
	}
	return b, nil
}

// unaryOp resolves a prefix operator. A one-parameter function declared in
// the program under the operator's own name hides the standard prefix form.
func (c *checker) unaryOp(n *ast.UnaryOp) (*Binding, error) {
	if b, err := c.terms.Lookup(n.Op); err == nil && !IsStandard(b.Decl) {
		if ft, ok := b.Type.(*types.Func); ok && len(ft.Params) == 1 {
			return b, nil
		}
	}
	if b, err := c.terms.Lookup(UnaryKey(n.Op)); err == nil {
		return b, nil
	}
	return c.lookupTerm(n, n.Op)
}

// Statements

func (c *checker) stmt(s ast.Stmt) {
	switch n := s.(type) {
	case *ast.Assign:
		terr := c.variable(n.Target)
		vt, verr := c.expr(n.Value)
		c.report(terr, n.Target)
		c.report(verr, n.Value)
		if terr == nil && verr == nil && !types.Equal(n.Target.Type(), vt) {
			c.report(errorf(n, diag.TypeMismatch, "cannot assign %s to %s of type %s",
				types.Deref(vt), n.Target, types.Deref(n.Target.Type())), nil)
		}
	case *ast.CallStmt:
		c.report(c.call(n), nil)
	case *ast.Seq:
		for _, child := range n.Stmts {
			c.stmt(child)
		}
	case *ast.LetStmt:
		c.terms.EnterBlock()
		c.types.EnterBlock()
		for _, d := range n.Decls {
			if err := c.decl(d); err != nil {
				c.report(err, nil)
				c.fallback(d)
			}
		}
		c.stmt(n.Body)
		c.types.ExitScope()
		c.terms.ExitScope()
	case *ast.IfStmt:
		c.condition(n.Cond)
		c.stmt(n.Then)
		if n.Else != nil {
			c.stmt(n.Else)
		}
	case *ast.WhileStmt:
		c.condition(n.Cond)
		c.stmt(n.Body)
	case *ast.RepeatUntil:
		c.stmt(n.Body)
		c.condition(n.Cond)
	case *ast.RepeatWhile:
		c.stmt(n.Body)
		c.condition(n.Cond)
	case *ast.LoopWhile:
		c.stmt(n.Pre)
		c.condition(n.Cond)
		c.stmt(n.Post)
	case *ast.Forever:
		c.stmt(n.Body)
	case *ast.Skip:
	default:
		c.report(fmt.Errorf("unexpected statement %T", s), nil)
	}
}

func (c *checker) condition(e ast.Expr) {
	t, err := c.expr(e)
	if err != nil {
		c.report(err, e)
		return
	}
	if !types.Equal(t, types.Bool) {
		c.report(errorf(e, diag.TypeMismatch, "condition %s must be Boolean, got %s", e, types.Deref(t)), nil)
	}
}

func (c *checker) call(n *ast.CallStmt) error {
	b, err := c.lookupTerm(n, n.Proc)
	if err != nil {
		return err
	}
	ft, ok := b.Type.(*types.Func)
	if !ok || b.Poly {
		return errorf(n, diag.NotCallable, "%s is not a procedure", n.Proc)
	}
	if ft.Result != types.Void {
		return errorf(n, diag.NotCallable, "%s is a function, not a procedure", n.Proc)
	}
	n.SetDecl(b.Decl)
	return c.args(n, n.Proc, ft, n.Args)
}

// variable checks an assignment target or var argument: an lvalue whose
// root is neither a constant nor a value parameter.
func (c *checker) variable(target ast.Expr) error {
	root := ast.Root(target)
	if root == nil {
		return errorf(target, diag.NotAVariable, "%s is not a variable", target)
	}
	if _, err := c.expr(target); err != nil {
		return err
	}
	if c.terms.IsConst(root.Name) {
		return errorf(target, diag.AssignToConstant, "%s is a constant", root.Name)
	}
	return nil
}

// fallback binds the name of a failed declaration so that its uses do not
// pile up undeclared-identifier errors.
func (c *checker) fallback(d ast.Decl) {
	name := d.DeclName()
	if !d.Typed() {
		d.SetType(types.Void)
	}
	if _, ok := d.(*ast.TypeDecl); ok {
		if !c.types.DeclaredHere(name) {
			c.types.AddConst(name, &Binding{Type: types.Void, Const: true, Decl: d})
		}
		return
	}
	if c.terms.DeclaredHere(name) {
		return
	}
	if _, ok := d.(*ast.VarDecl); ok {
		c.terms.Add(name, &Binding{Type: types.Void, Decl: d})
	} else {
		c.terms.AddConst(name, &Binding{Type: types.Void, Const: true, Decl: d})
	}
}

// Declarations

func (c *checker) decl(d ast.Decl) error {
	name := d.DeclName()
	if _, ok := d.(*ast.TypeDecl); ok {
		if c.types.DeclaredHere(name) {
			return errorf(d, diag.DuplicateDeclaration, "type %s is declared twice", name)
		}
	} else if c.terms.DeclaredHere(name) {
		return errorf(d, diag.DuplicateDeclaration, "%s is declared twice", name)
	}

	switch d := d.(type) {
	case *ast.ConstDecl:
		t, err := c.expr(d.Value)
		if err != nil {
			return err
		}
		t = types.Deref(t)
		d.SetType(t)
		c.terms.AddConst(name, &Binding{Type: t, Const: true, Decl: d})

	case *ast.VarDecl:
		t, err := c.typeSig(d.Sig)
		if err != nil {
			return err
		}
		d.SetType(t)
		c.terms.Add(name, &Binding{Type: t, Decl: d})

	case *ast.TypeDecl:
		t, err := c.typeSig(d.Sig)
		if err != nil {
			return err
		}
		d.SetType(t)
		c.types.AddConst(name, &Binding{Type: t, Const: true, Decl: d})

	case *ast.FuncDecl:
		ft, err := c.signature(d.Params, d.Result)
		if err != nil {
			return err
		}
		d.SetType(ft)
		// bound before the body so the function can call itself
		c.terms.AddConst(name, &Binding{Type: ft, Const: true, Decl: d})
		c.terms.EnterScope(0)
		defer c.terms.ExitScope()
		c.bindParams(d.Params)
		t, err := c.expr(d.Body)
		if err != nil {
			return err
		}
		if !types.Equal(t, ft.Result) {
			return errorf(d.Body, diag.TypeMismatch, "function %s returns %s, body has type %s",
				name, ft.Result, types.Deref(t))
		}

	case *ast.ProcDecl:
		ft, err := c.signature(d.Params, nil)
		if err != nil {
			return err
		}
		d.SetType(ft)
		c.terms.AddConst(name, &Binding{Type: ft, Const: true, Decl: d})
		c.terms.EnterScope(0)
		defer c.terms.ExitScope()
		c.bindParams(d.Params)
		c.stmt(d.Body)

	default:
		return fmt.Errorf("unexpected declaration %T", d)
	}
	return nil
}

func (c *checker) signature(params []ast.Param, result ast.TypeSig) (*types.Func, error) {
	ft := &types.Func{Params: make([]types.Type, 0, len(params)), Result: types.Void}
	seen := make(map[string]bool, len(params))
	for _, p := range params {
		if seen[p.ParamName()] {
			return nil, errorf(p, diag.DuplicateParameter, "duplicate parameter %s", p.ParamName())
		}
		seen[p.ParamName()] = true
		t, err := c.param(p)
		if err != nil {
			return nil, err
		}
		ft.Params = append(ft.Params, t)
	}
	if result != nil {
		rt, err := c.typeSig(result)
		if err != nil {
			return nil, err
		}
		ft.Result = rt
	}
	return ft, nil
}

func (c *checker) param(p ast.Param) (types.Type, error) {
	var t types.Type
	switch p := p.(type) {
	case *ast.ValueParam:
		st, err := c.typeSig(p.Sig)
		if err != nil {
			return nil, err
		}
		t = st
	case *ast.VarParam:
		st, err := c.typeSig(p.Sig)
		if err != nil {
			return nil, err
		}
		t = types.RefOf(st)
	case *ast.FuncParam:
		ft, err := c.signature(p.Params, p.Result)
		if err != nil {
			return nil, err
		}
		t = ft
	default:
		return nil, fmt.Errorf("unexpected parameter %T", p)
	}
	p.SetType(t)
	return t, nil
}

// bindParams binds the formal parameters in the routine's own scope. Only
// var parameters are assignable.
func (c *checker) bindParams(params []ast.Param) {
	for _, p := range params {
		b := &Binding{Type: p.Type(), Decl: p.(ast.Decl)}
		if _, ok := p.(*ast.VarParam); ok {
			c.terms.Add(p.ParamName(), b)
			continue
		}
		b.Const = true
		c.terms.AddConst(p.ParamName(), b)
	}
}

// Arguments

func (c *checker) args(call ast.Node, name string, ft *types.Func, args []ast.Arg) error {
	if len(args) != len(ft.Params) {
		return errorf(call, diag.ArityMismatch, "%s expects %d arguments, got %d", name, len(ft.Params), len(args))
	}
	for i, a := range args {
		if err := c.arg(a, ft.Params[i], name, i+1); err != nil {
			return err
		}
	}
	return nil
}

func (c *checker) arg(a ast.Arg, want types.Type, callee string, pos int) error {
	switch want := want.(type) {
	case *types.Ref:
		va, ok := a.(*ast.VarArg)
		if !ok {
			return errorf(a, diag.InvalidArgumentKind, "argument %d of %s must be a var argument", pos, callee)
		}
		if err := c.variable(va.Target); err != nil {
			return err
		}
		got := types.Deref(va.Target.Type())
		if !types.Equal(got, want.Inner) {
			return errorf(a, diag.TypeMismatch, "argument %d of %s: want var %s, got %s", pos, callee, want.Inner, got)
		}
		va.SetType(types.RefOf(got))

	case *types.Func:
		fa, ok := a.(*ast.FuncArg)
		if !ok {
			return errorf(a, diag.InvalidArgumentKind, "argument %d of %s must name a function or procedure", pos, callee)
		}
		b, err := c.lookupTerm(fa, fa.Name)
		if err != nil {
			return err
		}
		got, ok := b.Type.(*types.Func)
		if !ok || b.Poly {
			return errorf(a, diag.NotCallable, "%s is not a function or procedure", fa.Name)
		}
		if !types.Identical(got, want) {
			return errorf(a, diag.TypeMismatch, "argument %d of %s: want %s, got %s", pos, callee, want, got)
		}
		fa.SetDecl(b.Decl)
		fa.SetType(got)

	default:
		ea, ok := a.(*ast.ExprArg)
		if !ok {
			return errorf(a, diag.InvalidArgumentKind, "argument %d of %s must be a value", pos, callee)
		}
		got, err := c.expr(ea.Value)
		if err != nil {
			return err
		}
		if !types.Equal(got, want) {
			return errorf(a, diag.TypeMismatch, "argument %d of %s: want %s, got %s", pos, callee, want, types.Deref(got))
		}
		ea.SetType(types.Deref(got))
	}
	return nil
}

// Type signatures

func (c *checker) typeSig(s ast.TypeSig) (types.Type, error) {
	t, err := c.resolve(s)
	if err != nil {
		return nil, err
	}
	s.SetType(t)
	return t, nil
}

func (c *checker) resolve(s ast.TypeSig) (types.Type, error) {
	switch n := s.(type) {
	case *ast.NamedSig:
		b, err := c.types.Lookup(n.Name)
		if err == nil {
			return b.Type, nil
		}
		if _, terr := c.terms.Lookup(n.Name); terr == nil {
			return nil, errorf(n, diag.NotAType, "%s is not a type", n.Name)
		}
		return nil, errorf(n, diag.UndeclaredUse, "undeclared type %s", n.Name)

	case *ast.ArraySig:
		if n.Len <= 0 {
			return nil, errorf(n, diag.EmptyArray, "array type must have at least one element")
		}
		if n.Len > MaxInt {
			return nil, errorf(n, diag.IntegerTooLarge, "array length %d out of range", n.Len)
		}
		elem, err := c.typeSig(n.Elem)
		if err != nil {
			return nil, err
		}
		return &types.Array{Len: n.Len, Elem: elem}, nil

	case *ast.RecordSig:
		seen := make(map[string]bool, len(n.Fields))
		fields := make([]types.Field, 0, len(n.Fields))
		for _, f := range n.Fields {
			if seen[f.Name] {
				return nil, errorf(n, diag.DuplicateRecordTypeField, "duplicate field %s in record type", f.Name)
			}
			seen[f.Name] = true
			ft, err := c.typeSig(f.Type)
			if err != nil {
				return nil, err
			}
			fields = append(fields, types.Field{Name: f.Name, Type: ft})
		}
		return types.NewRecord(fields), nil
	}
	return nil, fmt.Errorf("unexpected type signature %T", s)
}
