package astjson

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"tamc/pkg/ast"
)

var (
	ErrUnknownKind = errors.New("unknown node kind")
	ErrMissing     = errors.New("missing member")
)

// DecodeError locates a malformed node.
type DecodeError struct {
	Kind string
	Pos  ast.Pos
	Err  error
}

func (e *DecodeError) Error() string {
	if e.Pos != (ast.Pos{}) {
		return fmt.Sprintf("%s at %s: %v", e.Kind, e.Pos, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

func (n *node) pos() ast.Pos { return ast.Pos{Line: n.Line, Column: n.Column} }

func (n *node) fail(format string, args ...any) error {
	return &DecodeError{Kind: n.Kind, Pos: n.pos(), Err: fmt.Errorf(format, args...)}
}

func (n *node) missing(member string) error {
	return n.fail("%w %q", ErrMissing, member)
}

func place[N ast.Node](n *node, v N) N {
	if n.Line != 0 || n.Column != 0 {
		v.SetPos(n.pos())
	}
	return v
}

func program(n *node) (*ast.Program, error) {
	if n.Kind != "Program" {
		return nil, n.fail("root must be a Program")
	}
	if n.Body == nil {
		return nil, n.missing("body")
	}
	body, err := stmt(n.Body)
	if err != nil {
		return nil, err
	}
	return &ast.Program{Body: body}, nil
}

func expr(n *node) (ast.Expr, error) {
	switch n.Kind {
	case "IntLit":
		if n.Int == nil {
			return nil, n.missing("int")
		}
		return place(n, &ast.IntLit{Value: *n.Int}), nil

	case "CharLit":
		r, size := utf8.DecodeRuneInString(n.Char)
		if size == 0 || size != len(n.Char) {
			return nil, n.fail("char must be a single character, got %q", n.Char)
		}
		return place(n, &ast.CharLit{Value: r}), nil

	case "BoolLit":
		if n.Bool == nil {
			return nil, n.missing("bool")
		}
		return place(n, &ast.BoolLit{Value: *n.Bool}), nil

	case "Ident":
		if n.Name == "" {
			return nil, n.missing("name")
		}
		return place(n, &ast.Ident{Name: n.Name}), nil

	case "Subscript":
		a, err := child(n, n.Array, "array", expr)
		if err != nil {
			return nil, err
		}
		i, err := child(n, n.Index, "index", expr)
		if err != nil {
			return nil, err
		}
		return place(n, &ast.Subscript{Array: a, Index: i}), nil

	case "FieldAccess":
		r, err := child(n, n.Record, "record", expr)
		if err != nil {
			return nil, err
		}
		if n.Name == "" {
			return nil, n.missing("name")
		}
		return place(n, &ast.FieldAccess{Record: r, Field: n.Name}), nil

	case "UnaryOp":
		e, err := child(n, n.Operand, "operand", expr)
		if err != nil {
			return nil, err
		}
		return place(n, &ast.UnaryOp{Op: n.Op, Operand: e}), nil

	case "BinaryOp":
		l, err := child(n, n.Left, "left", expr)
		if err != nil {
			return nil, err
		}
		r, err := child(n, n.Right, "right", expr)
		if err != nil {
			return nil, err
		}
		return place(n, &ast.BinaryOp{Op: n.Op, Left: l, Right: r}), nil

	case "FunCall":
		args, err := list(n.Args, arg)
		if err != nil {
			return nil, err
		}
		return place(n, &ast.FunCall{Func: n.Name, Args: args}), nil

	case "IfExpr":
		c, err := child(n, n.Cond, "cond", expr)
		if err != nil {
			return nil, err
		}
		t, err := child(n, n.Then, "then", expr)
		if err != nil {
			return nil, err
		}
		e, err := child(n, n.Else, "else", expr)
		if err != nil {
			return nil, err
		}
		return place(n, &ast.IfExpr{Cond: c, Then: t, Else: e}), nil

	case "LetExpr":
		ds, err := list(n.Decls, decl)
		if err != nil {
			return nil, err
		}
		b, err := child(n, n.Body, "body", expr)
		if err != nil {
			return nil, err
		}
		return place(n, &ast.LetExpr{Decls: ds, Body: b}), nil

	case "ArrayLit":
		es, err := list(n.Elems, expr)
		if err != nil {
			return nil, err
		}
		return place(n, &ast.ArrayLit{Elems: es}), nil

	case "RecordLit":
		lit := &ast.RecordLit{}
		for _, f := range n.Fields {
			v, err := child(n, f.Value, "value", expr)
			if err != nil {
				return nil, err
			}
			lit.Fields = append(lit.Fields, ast.FieldInit{Name: f.Name, Value: v})
		}
		return place(n, lit), nil
	}
	return nil, unknown(n, "an expression")
}

func stmt(n *node) (ast.Stmt, error) {
	switch n.Kind {
	case "Assign":
		t, err := child(n, n.Target, "target", expr)
		if err != nil {
			return nil, err
		}
		v, err := child(n, n.Value, "value", expr)
		if err != nil {
			return nil, err
		}
		return place(n, &ast.Assign{Target: t, Value: v}), nil

	case "CallStmt":
		args, err := list(n.Args, arg)
		if err != nil {
			return nil, err
		}
		return place(n, &ast.CallStmt{Proc: n.Name, Args: args}), nil

	case "Seq":
		ss, err := list(n.Stmts, stmt)
		if err != nil {
			return nil, err
		}
		return place(n, &ast.Seq{Stmts: ss}), nil

	case "LetStmt":
		ds, err := list(n.Decls, decl)
		if err != nil {
			return nil, err
		}
		b, err := child(n, n.Body, "body", stmt)
		if err != nil {
			return nil, err
		}
		return place(n, &ast.LetStmt{Decls: ds, Body: b}), nil

	case "IfStmt":
		c, err := child(n, n.Cond, "cond", expr)
		if err != nil {
			return nil, err
		}
		t, err := child(n, n.Then, "then", stmt)
		if err != nil {
			return nil, err
		}
		s := &ast.IfStmt{Cond: c, Then: t}
		if n.Else != nil {
			if s.Else, err = stmt(n.Else); err != nil {
				return nil, err
			}
		}
		return place(n, s), nil

	case "WhileStmt":
		c, err := child(n, n.Cond, "cond", expr)
		if err != nil {
			return nil, err
		}
		b, err := child(n, n.Body, "body", stmt)
		if err != nil {
			return nil, err
		}
		return place(n, &ast.WhileStmt{Cond: c, Body: b}), nil

	case "RepeatUntil", "RepeatWhile":
		b, err := child(n, n.Body, "body", stmt)
		if err != nil {
			return nil, err
		}
		c, err := child(n, n.Cond, "cond", expr)
		if err != nil {
			return nil, err
		}
		if n.Kind == "RepeatUntil" {
			return place(n, &ast.RepeatUntil{Body: b, Cond: c}), nil
		}
		return place(n, &ast.RepeatWhile{Body: b, Cond: c}), nil

	case "LoopWhile":
		pre, err := child(n, n.Pre, "pre", stmt)
		if err != nil {
			return nil, err
		}
		c, err := child(n, n.Cond, "cond", expr)
		if err != nil {
			return nil, err
		}
		post, err := child(n, n.Post, "post", stmt)
		if err != nil {
			return nil, err
		}
		return place(n, &ast.LoopWhile{Pre: pre, Cond: c, Post: post}), nil

	case "Forever":
		b, err := child(n, n.Body, "body", stmt)
		if err != nil {
			return nil, err
		}
		return place(n, &ast.Forever{Body: b}), nil

	case "Skip":
		return place(n, &ast.Skip{}), nil
	}
	return nil, unknown(n, "a command")
}

func decl(n *node) (ast.Decl, error) {
	switch n.Kind {
	case "ConstDecl":
		v, err := child(n, n.Value, "value", expr)
		if err != nil {
			return nil, err
		}
		return place(n, &ast.ConstDecl{Name: n.Name, Value: v}), nil

	case "VarDecl":
		s, err := child(n, n.Sig, "sig", sig)
		if err != nil {
			return nil, err
		}
		return place(n, &ast.VarDecl{Name: n.Name, Sig: s}), nil

	case "TypeDecl":
		s, err := child(n, n.Sig, "sig", sig)
		if err != nil {
			return nil, err
		}
		return place(n, &ast.TypeDecl{Name: n.Name, Sig: s}), nil

	case "FuncDecl":
		ps, err := list(n.Params, param)
		if err != nil {
			return nil, err
		}
		res, err := child(n, n.Result, "result", sig)
		if err != nil {
			return nil, err
		}
		b, err := child(n, n.Body, "body", expr)
		if err != nil {
			return nil, err
		}
		return place(n, &ast.FuncDecl{Name: n.Name, Params: ps, Result: res, Body: b}), nil

	case "ProcDecl":
		ps, err := list(n.Params, param)
		if err != nil {
			return nil, err
		}
		b, err := child(n, n.Body, "body", stmt)
		if err != nil {
			return nil, err
		}
		return place(n, &ast.ProcDecl{Name: n.Name, Params: ps, Body: b}), nil
	}
	return nil, unknown(n, "a declaration")
}

func param(n *node) (ast.Param, error) {
	switch n.Kind {
	case "ValueParam", "VarParam":
		s, err := child(n, n.Sig, "sig", sig)
		if err != nil {
			return nil, err
		}
		if n.Kind == "VarParam" {
			return place(n, &ast.VarParam{Name: n.Name, Sig: s}), nil
		}
		return place(n, &ast.ValueParam{Name: n.Name, Sig: s}), nil

	case "FuncParam":
		ps, err := list(n.Params, param)
		if err != nil {
			return nil, err
		}
		p := &ast.FuncParam{Name: n.Name, Params: ps}
		if n.Result != nil {
			if p.Result, err = sig(n.Result); err != nil {
				return nil, err
			}
		}
		return place(n, p), nil
	}
	return nil, unknown(n, "a parameter")
}

func arg(n *node) (ast.Arg, error) {
	switch n.Kind {
	case "ExprArg":
		v, err := child(n, n.Value, "value", expr)
		if err != nil {
			return nil, err
		}
		return place(n, &ast.ExprArg{Value: v}), nil

	case "VarArg":
		t, err := child(n, n.Target, "target", expr)
		if err != nil {
			return nil, err
		}
		return place(n, &ast.VarArg{Target: t}), nil

	case "FuncArg":
		return place(n, &ast.FuncArg{Name: n.Name}), nil
	}
	return nil, unknown(n, "an argument")
}

func sig(n *node) (ast.TypeSig, error) {
	switch n.Kind {
	case "NamedSig":
		return place(n, &ast.NamedSig{Name: n.Name}), nil

	case "ArraySig":
		if n.Len == nil {
			return nil, n.missing("len")
		}
		e, err := child(n, n.Elem, "elem", sig)
		if err != nil {
			return nil, err
		}
		return place(n, &ast.ArraySig{Len: *n.Len, Elem: e}), nil

	case "RecordSig":
		rs := &ast.RecordSig{}
		for _, f := range n.Fields {
			t, err := child(n, f.Type, "type", sig)
			if err != nil {
				return nil, err
			}
			rs.Fields = append(rs.Fields, ast.FieldSig{Name: f.Name, Type: t})
		}
		return place(n, rs), nil
	}
	return nil, unknown(n, "a type signature")
}

func child[T any](parent, n *node, member string, conv func(*node) (T, error)) (T, error) {
	if n == nil {
		var zero T
		return zero, parent.missing(member)
	}
	return conv(n)
}

func list[T any](ns []*node, conv func(*node) (T, error)) ([]T, error) {
	var out []T
	for _, n := range ns {
		if n == nil {
			return nil, fmt.Errorf("%w: null list element", ErrMissing)
		}
		v, err := conv(n)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func unknown(n *node, want string) error {
	if n.Kind == "" {
		return n.fail("%w: no kind where %s expected", ErrUnknownKind, want)
	}
	return n.fail("%w: not %s", ErrUnknownKind, want)
}
