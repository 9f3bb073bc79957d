package astjson

import (
	"fmt"

	"tamc/pkg/ast"
)

func intp(v int) *int    { return &v }
func boolp(v bool) *bool { return &v }

func encode(n ast.Node) *node {
	if n == nil {
		return nil
	}
	p := n.Position()
	w := &node{Line: p.Line, Column: p.Column}

	switch n := n.(type) {
	case *ast.IntLit:
		w.Kind, w.Int = "IntLit", intp(n.Value)
	case *ast.CharLit:
		w.Kind, w.Char = "CharLit", string(n.Value)
	case *ast.BoolLit:
		w.Kind, w.Bool = "BoolLit", boolp(n.Value)
	case *ast.Ident:
		w.Kind, w.Name = "Ident", n.Name
	case *ast.Subscript:
		w.Kind, w.Array, w.Index = "Subscript", encode(n.Array), encode(n.Index)
	case *ast.FieldAccess:
		w.Kind, w.Record, w.Name = "FieldAccess", encode(n.Record), n.Field
	case *ast.UnaryOp:
		w.Kind, w.Op, w.Operand = "UnaryOp", n.Op, encode(n.Operand)
	case *ast.BinaryOp:
		w.Kind, w.Op, w.Left, w.Right = "BinaryOp", n.Op, encode(n.Left), encode(n.Right)
	case *ast.FunCall:
		w.Kind, w.Name, w.Args = "FunCall", n.Func, encodeAll(n.Args)
	case *ast.IfExpr:
		w.Kind, w.Cond, w.Then, w.Else = "IfExpr", encode(n.Cond), encode(n.Then), encode(n.Else)
	case *ast.LetExpr:
		w.Kind, w.Decls, w.Body = "LetExpr", encodeAll(n.Decls), encode(n.Body)
	case *ast.ArrayLit:
		w.Kind, w.Elems = "ArrayLit", encodeAll(n.Elems)
	case *ast.RecordLit:
		w.Kind = "RecordLit"
		for _, f := range n.Fields {
			w.Fields = append(w.Fields, field{Name: f.Name, Value: encode(f.Value)})
		}

	case *ast.Assign:
		w.Kind, w.Target, w.Value = "Assign", encode(n.Target), encode(n.Value)
	case *ast.CallStmt:
		w.Kind, w.Name, w.Args = "CallStmt", n.Proc, encodeAll(n.Args)
	case *ast.Seq:
		w.Kind, w.Stmts = "Seq", encodeAll(n.Stmts)
	case *ast.LetStmt:
		w.Kind, w.Decls, w.Body = "LetStmt", encodeAll(n.Decls), encode(n.Body)
	case *ast.IfStmt:
		w.Kind, w.Cond, w.Then = "IfStmt", encode(n.Cond), encode(n.Then)
		if n.Else != nil {
			w.Else = encode(n.Else)
		}
	case *ast.WhileStmt:
		w.Kind, w.Cond, w.Body = "WhileStmt", encode(n.Cond), encode(n.Body)
	case *ast.RepeatUntil:
		w.Kind, w.Body, w.Cond = "RepeatUntil", encode(n.Body), encode(n.Cond)
	case *ast.RepeatWhile:
		w.Kind, w.Body, w.Cond = "RepeatWhile", encode(n.Body), encode(n.Cond)
	case *ast.LoopWhile:
		w.Kind, w.Pre, w.Cond, w.Post = "LoopWhile", encode(n.Pre), encode(n.Cond), encode(n.Post)
	case *ast.Forever:
		w.Kind, w.Body = "Forever", encode(n.Body)
	case *ast.Skip:
		w.Kind = "Skip"

	case *ast.ConstDecl:
		w.Kind, w.Name, w.Value = "ConstDecl", n.Name, encode(n.Value)
	case *ast.VarDecl:
		w.Kind, w.Name, w.Sig = "VarDecl", n.Name, encode(n.Sig)
	case *ast.TypeDecl:
		w.Kind, w.Name, w.Sig = "TypeDecl", n.Name, encode(n.Sig)
	case *ast.FuncDecl:
		w.Kind, w.Name, w.Params = "FuncDecl", n.Name, encodeAll(n.Params)
		w.Result, w.Body = encode(n.Result), encode(n.Body)
	case *ast.ProcDecl:
		w.Kind, w.Name, w.Params, w.Body = "ProcDecl", n.Name, encodeAll(n.Params), encode(n.Body)

	case *ast.ValueParam:
		w.Kind, w.Name, w.Sig = "ValueParam", n.Name, encode(n.Sig)
	case *ast.VarParam:
		w.Kind, w.Name, w.Sig = "VarParam", n.Name, encode(n.Sig)
	case *ast.FuncParam:
		w.Kind, w.Name, w.Params = "FuncParam", n.Name, encodeAll(n.Params)
		if n.Result != nil {
			w.Result = encode(n.Result)
		}

	case *ast.ExprArg:
		w.Kind, w.Value = "ExprArg", encode(n.Value)
	case *ast.VarArg:
		w.Kind, w.Target = "VarArg", encode(n.Target)
	case *ast.FuncArg:
		w.Kind, w.Name = "FuncArg", n.Name

	case *ast.NamedSig:
		w.Kind, w.Name = "NamedSig", n.Name
	case *ast.ArraySig:
		w.Kind, w.Len, w.Elem = "ArraySig", intp(n.Len), encode(n.Elem)
	case *ast.RecordSig:
		w.Kind = "RecordSig"
		for _, f := range n.Fields {
			w.Fields = append(w.Fields, field{Name: f.Name, Type: encode(f.Type)})
		}

	default:
		panic(fmt.Sprintf("astjson: unexpected node %T", n))
	}
	return w
}

func encodeAll[N ast.Node](ns []N) []*node {
	var out []*node
	for _, n := range ns {
		out = append(out, encode(n))
	}
	return out
}
