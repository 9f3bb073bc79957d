package codegen

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"

	"tamc/pkg/asm"
	"tamc/pkg/ast"
	. "tamc/pkg/ast/asttest"
	"tamc/pkg/checker"
	"tamc/pkg/tam"
)

func generate(t *testing.T, body ast.Stmt) ([]asm.Instr, error) {
	t.Helper()
	prog := Program(body)
	if errs := checker.Check(prog); len(errs) != 0 {
		t.Fatalf("check failed: %v", errs)
	}
	return Generate(prog)
}

func runCode(t *testing.T, body ast.Stmt, input string) string {
	t.Helper()
	code, err := generate(t, body)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	prog, err := asm.Resolve(code)
	if err != nil {
		t.Fatalf("Resolve: %v\n%s", err, asm.Listing(code))
	}
	var out bytes.Buffer
	m := tam.NewMachine(prog)
	m.Input = strings.NewReader(input)
	m.Output = &out
	m.MaxSteps = 100000
	if err := m.Run(); err != nil {
		t.Fatalf("Run: %v\n%s", err, asm.Listing(code))
	}
	if m.ST != 0 {
		t.Errorf("stack not empty at HALT: ST = %d", m.ST)
	}
	return out.String()
}

func TestListing(t *testing.T) {
	t.Run("GlobalAssign", func(t *testing.T) {
		code, err := generate(t, Let(Ds(Var("x", Integer())), Assign(Id("x"), Bin(Int(2), "+", Int(3)))))
		if err != nil {
			t.Fatal(err)
		}
		want := strings.Join([]string{
			"    PUSH 1",
			"    LOADL 2",
			"    LOADL 3",
			"    CALL add",
			"    STORE(1) 0[SB]",
			"    POP(0) 1",
			"    HALT",
		}, "\n") + "\n"
		if got := asm.Listing(code); got != want {
			t.Errorf("unexpected code\nwant:\n%s\n got:\n%s", want, got)
		}
	})

	t.Run("Routine", func(t *testing.T) {
		code, err := generate(t, Let(
			Ds(Func("double", Ps(Param("n", Integer())), Integer(), Bin(Id("n"), "*", Int(2)))),
			Do("putint", Val(Call("double", Val(Int(21)))))))
		if err != nil {
			t.Fatal(err)
		}
		want := strings.Join([]string{
			"    JUMP skip.2",
			"double.1:",
			"    LOAD(1) -1[LB]",
			"    LOADL 2",
			"    CALL mult",
			"    RETURN(1) 1",
			"skip.2:",
			"    LOADL 21",
			"    CALL(SB) double.1",
			"    CALL putint",
			"    POP(0) 0",
			"    HALT",
		}, "\n") + "\n"
		if got := asm.Listing(code); got != want {
			t.Errorf("unexpected code\nwant:\n%s\n got:\n%s", want, got)
		}
	})

	t.Run("KnownConstantsHaveNoStorage", func(t *testing.T) {
		code, err := generate(t, Let(Ds(Const("k", Int(7))), Do("putint", Val(Id("k")))))
		if err != nil {
			t.Fatal(err)
		}
		if got := asm.Listing(code); !strings.Contains(got, "LOADL 7") || strings.Contains(got, "PUSH") {
			t.Errorf("constant should be loaded as a literal:\n%s", got)
		}
	})

	t.Run("EqualityPassesSize", func(t *testing.T) {
		code, err := generate(t, Let(Ds(Var("a", Array(3, Integer())), Var("b", Array(3, Integer()))),
			If(Bin(Id("a"), "=", Id("b")), Do("puteol"), nil)))
		if err != nil {
			t.Fatal(err)
		}
		got := asm.Listing(code)
		if !strings.Contains(got, "LOAD(3) 0[SB]\n    LOAD(3) 3[SB]\n    LOADL 3\n    CALL eq") {
			t.Errorf("unexpected equality code:\n%s", got)
		}
	})
}

func TestRun(t *testing.T) {
	tests := []struct {
		name  string
		body  ast.Stmt
		input string
		want  string
	}{
		{
			"Arithmetic",
			Do("putint", Val(Bin(Bin(Bin(Int(7), "-", Int(10)), "*", Int(3)), "//", Int(4)))),
			"", "-1",
		},
		{
			"Recursion",
			Let(Ds(Func("fact", Ps(Param("n", Integer())), Integer(),
				IfE(Bin(Id("n"), "<=", Int(1)),
					Int(1),
					Bin(Id("n"), "*", Call("fact", Val(Bin(Id("n"), "-", Int(1)))))))),
				Do("putint", Val(Call("fact", Val(Int(6)))))),
			"", "720",
		},
		{
			"VarParams",
			Let(Ds(
				Var("a", Integer()),
				Var("b", Integer()),
				Proc("swap", Ps(VarParam("x", Integer()), VarParam("y", Integer())),
					Let(Ds(Const("t", Id("x"))), Seq(
						Assign(Id("x"), Id("y")),
						Assign(Id("y"), Id("t")),
					)))),
				Seq(
					Assign(Id("a"), Int(1)),
					Assign(Id("b"), Int(2)),
					Do("swap", Ref(Id("a")), Ref(Id("b"))),
					Do("putint", Val(Id("a"))),
					Do("putint", Val(Id("b"))),
				)),
			"", "21",
		},
		{
			"NestedScopes",
			Let(Ds(
				Var("g", Integer()),
				Proc("outer", Ps(Param("n", Integer())),
					Let(Ds(
						Var("acc", Integer()),
						Proc("inner", Ps(Param("k", Integer())), Seq(
							Assign(Id("acc"), Bin(Id("acc"), "+", Bin(Id("k"), "*", Id("n")))),
							Assign(Id("g"), Bin(Id("g"), "+", Int(1))),
						))),
						Seq(
							Assign(Id("acc"), Int(0)),
							Do("inner", Val(Int(1))),
							Do("inner", Val(Int(2))),
							Assign(Id("g"), Bin(Id("g"), "+", Id("acc"))),
						)))),
				Seq(Do("outer", Val(Int(10))), Do("putint", Val(Id("g"))))),
			"", "32",
		},
		{
			"FuncParams",
			Let(Ds(
				Func("twice", Ps(FuncParam("f", Ps(Param("x", Integer())), Integer()), Param("v", Integer())), Integer(),
					Call("f", Val(Call("f", Val(Id("v")))))),
				Func("inc", Ps(Param("x", Integer())), Integer(), Bin(Id("x"), "+", Int(1))),
				Func("apply", Ps(FuncParam("f", Ps(Param("c", CharT())), Integer()), Param("c", CharT())), Integer(),
					Call("f", Val(Id("c")))),
				Proc("each", Ps(ProcParam("p", Param("n", Integer()))),
					Seq(Do("p", Val(Int(1))), Do("p", Val(Int(2))))),
			), Seq(
				Do("putint", Val(Call("twice", Fn("inc"), Val(Int(5))))),
				Do("put", Val(Char(' '))),
				Do("putint", Val(Call("apply", Fn("ord"), Val(Char('A'))))),
				Do("put", Val(Char(' '))),
				Do("each", Fn("putint")),
			)),
			"", "7 65 12",
		},
		{
			"RecordsAndArrays",
			Let(Ds(
				Type("Point", Record(FS("y", Integer()), FS("x", Integer()))),
				Var("ps", Array(3, Named("Point"))),
				Var("i", Integer()),
			), Seq(
				Assign(Id("i"), Int(0)),
				While(Bin(Id("i"), "<", Int(3)), Seq(
					Assign(Index(Id("ps"), Id("i")), RecordOf(F("x", Id("i")), F("y", Bin(Id("i"), "*", Int(10))))),
					Assign(Id("i"), Bin(Id("i"), "+", Int(1))),
				)),
				Do("putint", Val(Dot(Index(Id("ps"), Int(2)), "y"))),
				Do("put", Val(Char(' '))),
				Do("putint", Val(Dot(Index(Id("ps"), Int(1)), "x"))),
				Do("put", Val(Char(' '))),
				Assign(Dot(Index(Id("ps"), Int(0)), "x"), Int(7)),
				Do("putint", Val(Dot(Index(Id("ps"), Bin(Id("i"), "-", Int(3))), "x"))),
			)),
			"", "20 1 7",
		},
		{
			"CompositeThroughReference",
			Let(Ds(
				Var("a", Array(3, Integer())),
				Proc("fill", Ps(VarParam("r", Array(3, Integer())), Param("v", Integer())), Let(
					Ds(Var("j", Integer())),
					Seq(
						Assign(Id("j"), Int(0)),
						While(Bin(Id("j"), "<", Int(3)), Seq(
							Assign(Index(Id("r"), Id("j")), Bin(Id("v"), "+", Id("j"))),
							Assign(Id("j"), Bin(Id("j"), "+", Int(1))),
						)),
					))),
			), Seq(
				Do("fill", Ref(Id("a")), Val(Int(4))),
				Do("putint", Val(Index(Id("a"), Int(0)))),
				Do("putint", Val(Index(Id("a"), Int(2)))),
			)),
			"", "46",
		},
		{
			"CompositeEquality",
			Let(Ds(Var("a", Array(2, Integer())), Var("b", Array(2, Integer()))), Seq(
				Assign(Id("a"), ArrayOf(Int(1), Int(2))),
				Assign(Id("b"), ArrayOf(Int(1), Int(2))),
				If(Bin(Id("a"), "=", Id("b")), Do("put", Val(Char('y'))), Do("put", Val(Char('n')))),
				Assign(Index(Id("b"), Int(1)), Int(3)),
				If(Bin(Id("a"), `\=`, Id("b")), Do("put", Val(Char('y'))), Do("put", Val(Char('n')))),
				If(Bin(Id("a"), "=", Id("b")), Do("put", Val(Char('y'))), Do("put", Val(Char('n')))),
			)),
			"", "yyn",
		},
		{
			"Input",
			Let(Ds(Var("n", Integer()), Var("c", CharT())), Seq(
				Do("get", Ref(Id("c"))),
				Do("put", Val(Id("c"))),
				Do("get", Ref(Id("c"))),
				Do("put", Val(Id("c"))),
				Do("getint", Ref(Id("n"))),
				Do("putint", Val(Bin(Id("n"), "+", Int(1)))),
			)),
			"hi41", "hi42",
		},
		{
			"Loops",
			Let(Ds(Var("i", Integer())), Seq(
				Assign(Id("i"), Int(0)),
				RepeatUntil(Seq(Do("putint", Val(Id("i"))), Assign(Id("i"), Bin(Id("i"), "+", Int(1)))),
					Bin(Id("i"), ">=", Int(3))),
				RepeatWhile(Assign(Id("i"), Bin(Id("i"), "-", Int(1))), Bin(Id("i"), ">", Int(0))),
				Loop(Seq(Do("putint", Val(Id("i"))), Assign(Id("i"), Bin(Id("i"), "+", Int(1)))),
					Bin(Id("i"), "<", Int(3)),
					Do("put", Val(Char(',')))),
			)),
			"", "0120,1,2",
		},
		{
			"LetExpression",
			Do("putint", Val(Bin(Int(1), "+", LetE(
				Ds(Const("k", Bin(Int(2), "*", Int(3))), Var("t", Integer())),
				Bin(Bin(Id("k"), "+", Id("t")), "+", Int(4)))))),
			"", "11",
		},
		{
			"UnaryOperators",
			Let(Ds(Var("b", Boolean())), Seq(
				Assign(Id("b"), Un(`\`, Id("false"))),
				If(Id("b"), Do("putint", Val(Un("-", Id("maxint")))), nil),
			)),
			"", "-32767",
		},
		{
			"DeepestDisplay",
			nestedProcs(7, Do("putint", Val(Id("v")))),
			"", "1",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := runCode(t, tc.body, tc.input); got != tc.want {
				t.Errorf("output = %q; want %q", got, tc.want)
			}
		})
	}
}

// nestedProcs declares procedures p1..pn, each inside the body of the one
// before. v is declared in p1 and assigned 1 by pn; after is run in p1 once
// the chain of calls returns.
func nestedProcs(n int, after ast.Stmt) ast.Stmt {
	body := ast.Stmt(Assign(Id("v"), Int(1)))
	for k := n; k >= 2; k-- {
		name := fmt.Sprintf("p%d", k)
		if k == 2 {
			body = Let(Ds(Var("v", Integer()), Proc(name, nil, body)), Seq(Do(name), after))
			break
		}
		body = Let(Ds(Proc(name, nil, body)), Do(name))
	}
	return Let(Ds(Proc("p1", nil, body)), Do("p1"))
}

func TestFatal(t *testing.T) {
	t.Run("TooDeep", func(t *testing.T) {
		_, err := generate(t, nestedProcs(8, Skip()))
		if !errors.Is(err, ErrTooDeep) {
			t.Fatalf("err = %v; want ErrTooDeep", err)
		}
		var fe *FatalError
		if !errors.As(err, &fe) {
			t.Errorf("err is %T, want *FatalError", err)
		}
	})

	t.Run("ValueTooLarge", func(t *testing.T) {
		_, err := generate(t, Let(Ds(Var("a", Array(300, Integer())), Var("b", Array(300, Integer()))),
			Assign(Id("a"), Id("b"))))
		if !errors.Is(err, ErrValueTooLarge) {
			t.Fatalf("err = %v; want ErrValueTooLarge", err)
		}
	})

	t.Run("Position", func(t *testing.T) {
		_, err := generate(t, Let(Ds(Var("a", Array(300, Integer()))),
			At(4, 2, Assign(Id("a"), Id("a")))))
		var fe *FatalError
		if !errors.As(err, &fe) {
			t.Fatalf("err = %v; want *FatalError", err)
		}
		if fe.Pos != (ast.Pos{Line: 4, Column: 2}) {
			t.Errorf("Pos = %v; want 4:2", fe.Pos)
		}
	})
}
