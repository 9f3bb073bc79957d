package astjson

import (
	"errors"
	"strings"
	"testing"

	"tamc/pkg/ast"
	. "tamc/pkg/ast/asttest"
)

func TestDecode(t *testing.T) {
	src := `{
	  "kind": "Program",
	  "body": {
	    "kind": "LetStmt", "line": 1, "column": 1,
	    "decls": [
	      {"kind": "VarDecl", "name": "x", "sig": {"kind": "NamedSig", "name": "Integer"}},
	      {"kind": "ConstDecl", "name": "c", "value": {"kind": "CharLit", "char": "A"}}
	    ],
	    "body": {
	      "kind": "Seq",
	      "stmts": [
	        {"kind": "Assign", "line": 3, "column": 5,
	         "target": {"kind": "Ident", "name": "x"},
	         "value": {"kind": "BinaryOp", "op": "+",
	                   "left": {"kind": "Ident", "name": "x"},
	                   "right": {"kind": "IntLit", "int": 1}}},
	        {"kind": "CallStmt", "name": "put",
	         "args": [{"kind": "ExprArg", "value": {"kind": "Ident", "name": "c"}}]},
	        {"kind": "IfStmt", "cond": {"kind": "BoolLit", "bool": false},
	         "then": {"kind": "Skip"}}
	      ]
	    }
	  }
	}`

	prog, err := Decode([]byte(src))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	let, ok := prog.Body.(*ast.LetStmt)
	if !ok {
		t.Fatalf("body is %T; want *ast.LetStmt", prog.Body)
	}
	if len(let.Decls) != 2 {
		t.Fatalf("got %d declarations", len(let.Decls))
	}
	if c := let.Decls[1].(*ast.ConstDecl).Value.(*ast.CharLit); c.Value != 'A' {
		t.Errorf("char literal = %q", c.Value)
	}
	seq := let.Body.(*ast.Seq)
	if got := seq.Stmts[0].Position(); got != (ast.Pos{Line: 3, Column: 5}) {
		t.Errorf("assign position = %v", got)
	}
	if got := seq.Stmts[0].String(); got != "x := (x + 1)" {
		t.Errorf("assign = %q", got)
	}
	if s := seq.Stmts[2].(*ast.IfStmt); s.Else != nil {
		t.Errorf("absent else decoded as %v", s.Else)
	}
}

func TestRoundTrip(t *testing.T) {
	progs := map[string]*ast.Program{
		"Routines": Program(Let(Ds(
			Type("P", Record(FS("a", Integer()), FS("b", Array(3, CharT())))),
			Var("p", Named("P")),
			Func("f", Ps(Param("n", Integer()), VarParam("r", Named("P")), FuncParam("g", Ps(Param("x", Integer())), Boolean())),
				Boolean(), Call("g", Val(Id("n")))),
			Proc("q", Ps(ProcParam("h")), Do("h")),
		), Seq(
			Assign(Dot(Id("p"), "a"), Int(-4)),
			Assign(Index(Dot(Id("p"), "b"), Int(0)), Char('z')),
			Do("q", Fn("puteol")),
			Do("getint", Ref(Dot(Id("p"), "a"))),
		))),
		"Expressions": Program(Do("putint", Val(LetE(Ds(Const("k", Int(2))),
			IfE(Un(`\`, Bool(true)), Index(ArrayOf(Int(1), Id("k")), Int(1)), Dot(RecordOf(F("y", Int(3)), F("x", Int(4))), "x")))))),
		"Loops": Program(Seq(
			While(Id("true"), Skip()),
			RepeatUntil(Skip(), Id("true")),
			RepeatWhile(Skip(), Id("false")),
			Loop(Skip(), Id("false"), Skip()),
			&ast.Forever{Body: If(Id("true"), Skip(), Skip())},
		)),
	}

	for name, prog := range progs {
		t.Run(name, func(t *testing.T) {
			data, err := Encode(prog)
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			back, err := Decode(data)
			if err != nil {
				t.Fatalf("Decode: %v\n%s", err, data)
			}
			if back.String() != prog.String() {
				t.Errorf("round trip changed the tree:\n got %s\nwant %s", back, prog)
			}
			again, err := Encode(back)
			if err != nil {
				t.Fatal(err)
			}
			if string(again) != string(data) {
				t.Errorf("re-encoding differs:\n%s\n%s", again, data)
			}
		})
	}
}

func TestEncodeIndentation(t *testing.T) {
	var body ast.Stmt = Assign(Id("x"), Int(0))
	for i := 0; i < 4; i++ {
		body = Let(Ds(Var("x", Integer())), Seq(body, Skip()))
	}
	prog := Program(body)

	data, err := Encode(prog)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) > 8192 {
		t.Errorf("encoded %d bytes for %q", len(data), prog)
	}

	// Every line is indented by two spaces per open bracket.
	depth := 0
	for i, line := range strings.Split(string(data), "\n") {
		trimmed := strings.TrimLeft(line, " ")
		if strings.HasPrefix(trimmed, "}") || strings.HasPrefix(trimmed, "]") {
			depth--
		}
		if indent := len(line) - len(trimmed); indent != 2*depth {
			t.Fatalf("line %d: indent %d; want %d\n%s", i+1, indent, 2*depth, data)
		}
		if strings.HasSuffix(trimmed, "{") || strings.HasSuffix(trimmed, "[") {
			depth++
		}
	}
	if depth != 0 {
		t.Errorf("unbalanced output, final depth %d", depth)
	}

	back, err := Decode(data)
	if err != nil {
		t.Fatal(err)
	}
	if back.String() != prog.String() {
		t.Errorf("round trip changed the tree:\n got %s\nwant %s", back, prog)
	}
}

func TestPositionsSurvive(t *testing.T) {
	prog := Program(At(2, 7, Do("puteol")))
	data, err := Encode(prog)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"line": 2`) {
		t.Errorf("no position in %s", data)
	}
	back, err := Decode(data)
	if err != nil {
		t.Fatal(err)
	}
	if got := back.Body.Position(); got != (ast.Pos{Line: 2, Column: 7}) {
		t.Errorf("position = %v", got)
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want error
	}{
		{"NotProgram", `{"kind": "Skip"}`, nil},
		{"NoBody", `{"kind": "Program"}`, ErrMissing},
		{"UnknownKind", `{"kind": "Program", "body": {"kind": "Goto"}}`, ErrUnknownKind},
		{"ExprWhereCommand", `{"kind": "Program", "body": {"kind": "IntLit", "int": 1}}`, ErrUnknownKind},
		{"NoKind", `{"kind": "Program", "body": {}}`, ErrUnknownKind},
		{"MissingInt", `{"kind": "Program", "body": {"kind": "CallStmt", "name": "putint",
			"args": [{"kind": "ExprArg", "value": {"kind": "IntLit"}}]}}`, ErrMissing},
		{"MissingOperand", `{"kind": "Program", "body": {"kind": "Assign",
			"target": {"kind": "Ident", "name": "x"}}}`, ErrMissing},
		{"ArrayWithoutLength", `{"kind": "Program", "body": {"kind": "LetStmt",
			"decls": [{"kind": "VarDecl", "name": "a", "sig": {"kind": "ArraySig",
			"elem": {"kind": "NamedSig", "name": "Integer"}}}], "body": {"kind": "Skip"}}}`, ErrMissing},
		{"LongChar", `{"kind": "Program", "body": {"kind": "CallStmt", "name": "put",
			"args": [{"kind": "ExprArg", "value": {"kind": "CharLit", "char": "ab"}}]}}`, nil},
		{"BadJSON", `{"kind": `, nil},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode([]byte(tc.src))
			if err == nil {
				t.Fatal("expected an error")
			}
			if tc.want != nil && !errors.Is(err, tc.want) {
				t.Errorf("err = %v; want %v", err, tc.want)
			}
		})
	}
}

func TestDecodeErrorPosition(t *testing.T) {
	_, err := Decode([]byte(`{"kind": "Program", "body": {"kind": "WhileStmt", "line": 4, "column": 2,
		"cond": {"kind": "Ident", "name": "b"}}}`))
	var de *DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("err = %v; want a DecodeError", err)
	}
	if de.Kind != "WhileStmt" || de.Pos != (ast.Pos{Line: 4, Column: 2}) {
		t.Errorf("error located at %s %v", de.Kind, de.Pos)
	}
	if !strings.Contains(err.Error(), `"body"`) {
		t.Errorf("err = %q; want the missing member named", err)
	}
}

func TestRead(t *testing.T) {
	prog, err := Read(strings.NewReader(`{"kind": "Program", "body": {"kind": "CallStmt", "name": "puteol"}}`))
	if err != nil {
		t.Fatal(err)
	}
	if got := prog.String(); got != "puteol()" {
		t.Errorf("program = %q", got)
	}
}
