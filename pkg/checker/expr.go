package checker

import (
	"fmt"

	"tamc/pkg/ast"
	"tamc/pkg/diag"
	"tamc/pkg/symtab"
	"tamc/pkg/types"
)

func (c *checker) expr(e ast.Expr) (types.Type, error) {
	t, err := c.exprType(e)
	if err != nil {
		return nil, err
	}
	e.SetType(t)
	return t, nil
}

func (c *checker) exprType(e ast.Expr) (types.Type, error) {
	switch n := e.(type) {
	case *ast.IntLit:
		if n.Value < MinInt || n.Value > MaxInt {
			return nil, errorf(n, diag.IntegerTooLarge, "integer literal %d out of range", n.Value)
		}
		return types.Int, nil

	case *ast.CharLit:
		return types.Char, nil

	case *ast.BoolLit:
		return types.Bool, nil

	case *ast.Ident:
		b, err := c.lookupTerm(n, n.Name)
		if err != nil {
			return nil, err
		}
		if b.Poly || types.IsFunc(b.Type) {
			return nil, errorf(n, diag.FunctionAsValue, "%s is a function and cannot be used as a value", n.Name)
		}
		n.SetDecl(b.Decl)
		return b.Type, nil

	case *ast.Subscript:
		if ast.Root(n.Array) == nil {
			return nil, errorf(n, diag.NotAVariable, "cannot index %s: not a variable or constant", n.Array)
		}
		bt, err := c.expr(n.Array)
		if err != nil {
			return nil, err
		}
		arr, ok := types.Deref(bt).(*types.Array)
		if !ok {
			return nil, errorf(n, diag.NotAnArray, "%s is not an array", n.Array)
		}
		it, err := c.expr(n.Index)
		if err != nil {
			return nil, err
		}
		if !types.Equal(it, types.Int) {
			return nil, errorf(n.Index, diag.TypeMismatch, "array index must be Integer, got %s", types.Deref(it))
		}
		return propagate(bt, arr.Elem), nil

	case *ast.FieldAccess:
		if ast.Root(n.Record) == nil {
			return nil, errorf(n, diag.NotAVariable, "cannot select from %s: not a variable or constant", n.Record)
		}
		bt, err := c.expr(n.Record)
		if err != nil {
			return nil, err
		}
		rec, ok := types.Deref(bt).(*types.Record)
		if !ok {
			return nil, errorf(n, diag.NotARecord, "%s is not a record", n.Record)
		}
		ft, err := fieldScope(rec).Lookup(n.Field)
		if err != nil {
			return nil, errorf(n, diag.UnknownField, "%s has no field %s", rec, n.Field)
		}
		return propagate(bt, ft), nil

	case *ast.UnaryOp:
		b, err := c.unaryOp(n)
		if err != nil {
			return nil, err
		}
		ft, ok := b.Type.(*types.Func)
		if !ok || b.Poly || len(ft.Params) != 1 {
			return nil, errorf(n, diag.NotCallable, "%s is not a unary operator", n.Op)
		}
		t, err := c.expr(n.Operand)
		if err != nil {
			return nil, err
		}
		if !types.Equal(t, ft.Params[0]) {
			return nil, errorf(n, diag.TypeMismatch, "operand of %s must be %s, got %s", n.Op, ft.Params[0], types.Deref(t))
		}
		n.SetDecl(b.Decl)
		return ft.Result, nil

	case *ast.BinaryOp:
		b, err := c.lookupTerm(n, n.Op)
		if err != nil {
			return nil, err
		}
		lt, err := c.expr(n.Left)
		if err != nil {
			return nil, err
		}
		rt, err := c.expr(n.Right)
		if err != nil {
			return nil, err
		}
		n.SetDecl(b.Decl)
		if b.Poly {
			if !types.Equal(lt, rt) {
				return nil, errorf(n, diag.TypeMismatch, "operands of %s have different types %s and %s",
					n.Op, types.Deref(lt), types.Deref(rt))
			}
			return types.Bool, nil
		}
		ft, ok := b.Type.(*types.Func)
		if !ok || len(ft.Params) != 2 {
			return nil, errorf(n, diag.NotCallable, "%s is not a binary operator", n.Op)
		}
		if !types.Equal(lt, ft.Params[0]) || !types.Equal(rt, ft.Params[1]) {
			return nil, errorf(n, diag.TypeMismatch, "operands of %s must be %s and %s, got %s and %s",
				n.Op, ft.Params[0], ft.Params[1], types.Deref(lt), types.Deref(rt))
		}
		return ft.Result, nil

	case *ast.FunCall:
		b, err := c.lookupTerm(n, n.Func)
		if err != nil {
			return nil, err
		}
		ft, ok := b.Type.(*types.Func)
		if !ok || b.Poly {
			return nil, errorf(n, diag.NotCallable, "%s is not a function", n.Func)
		}
		if ft.Result == types.Void {
			return nil, errorf(n, diag.NotCallable, "%s is a procedure, not a function", n.Func)
		}
		n.SetDecl(b.Decl)
		if err := c.args(n, n.Func, ft, n.Args); err != nil {
			return nil, err
		}
		return ft.Result, nil

	case *ast.IfExpr:
		ct, err := c.expr(n.Cond)
		if err != nil {
			return nil, err
		}
		if !types.Equal(ct, types.Bool) {
			return nil, errorf(n.Cond, diag.TypeMismatch, "condition %s must be Boolean, got %s", n.Cond, types.Deref(ct))
		}
		tt, err := c.expr(n.Then)
		if err != nil {
			return nil, err
		}
		et, err := c.expr(n.Else)
		if err != nil {
			return nil, err
		}
		if !types.Equal(tt, et) {
			return nil, errorf(n, diag.TypeMismatch, "if branches have different types %s and %s",
				types.Deref(tt), types.Deref(et))
		}
		return types.Deref(tt), nil

	case *ast.LetExpr:
		terms, typs := c.terms.Snapshot(), c.types.Snapshot()
		defer func() {
			c.terms.Restore(terms)
			c.types.Restore(typs)
		}()
		c.terms.EnterBlock()
		c.types.EnterBlock()
		for _, d := range n.Decls {
			if err := c.decl(d); err != nil {
				return nil, err
			}
		}
		t, err := c.expr(n.Body)
		if err != nil {
			return nil, err
		}
		return types.Deref(t), nil

	case *ast.ArrayLit:
		if len(n.Elems) == 0 {
			return nil, errorf(n, diag.EmptyArray, "array literal must have at least one element")
		}
		var elem types.Type
		for i, el := range n.Elems {
			t, err := c.expr(el)
			if err != nil {
				return nil, err
			}
			t = types.Deref(t)
			if i == 0 {
				elem = t
				continue
			}
			if !types.Equal(t, elem) {
				return nil, errorf(el, diag.TypeMismatch, "array element %d has type %s, want %s", i, t, elem)
			}
		}
		return &types.Array{Len: len(n.Elems), Elem: elem}, nil

	case *ast.RecordLit:
		seen := make(map[string]bool, len(n.Fields))
		fields := make([]types.Field, 0, len(n.Fields))
		for _, f := range n.Fields {
			if seen[f.Name] {
				return nil, errorf(n, diag.DuplicateRecordField, "duplicate field %s in record literal", f.Name)
			}
			seen[f.Name] = true
			t, err := c.expr(f.Value)
			if err != nil {
				return nil, err
			}
			fields = append(fields, types.Field{Name: f.Name, Type: types.Deref(t)})
		}
		return types.NewRecord(fields), nil
	}
	return nil, fmt.Errorf("unexpected expression %T", e)
}

// propagate gives a component of base the type elem, as a reference when
// base is one.
func propagate(base, elem types.Type) types.Type {
	if types.IsRef(base) {
		return types.RefOf(elem)
	}
	return elem
}

// fieldScope is the transient namespace opened by a field selection: the
// record's field names and nothing else.
func fieldScope(r *types.Record) *symtab.Table[types.Type] {
	s := symtab.New[types.Type](0)
	for _, f := range r.Fields {
		s.Add(f.Name, f.Type)
	}
	return s
}
