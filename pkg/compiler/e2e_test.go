package compiler

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"tamc/pkg/ast"
	. "tamc/pkg/ast/asttest"
	"tamc/pkg/tam"
)

func runResult(t *testing.T, res *Result, input string) string {
	t.Helper()
	var out bytes.Buffer
	m := tam.NewMachine(res.Code)
	m.Input = strings.NewReader(input)
	m.Output = &out
	m.MaxSteps = 200000
	if err := m.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	return out.String()
}

// runCode compiles body with and without optimization and checks both
// builds print the same thing.
func runCode(t *testing.T, build func() ast.Stmt, input string) string {
	t.Helper()
	var outputs []string
	for _, opts := range []Options{DefaultOptions(), {}} {
		res, err := Compile(Program(build()), opts)
		if err != nil {
			t.Fatalf("Compile(%+v): %v", opts, err)
		}
		outputs = append(outputs, runResult(t, res, input))
	}
	if outputs[0] != outputs[1] {
		t.Errorf("optimized output %q differs from unoptimized %q", outputs[0], outputs[1])
	}
	return outputs[0]
}

func TestPrograms_E2E(t *testing.T) {
	tests := []struct {
		name  string
		build func() ast.Stmt
		input string
		want  string
	}{
		{"Fibonacci", fibonacci, "", "55"},
		{"Gcd", gcd, "", "6"},
		{"HoistedLoop", hoistedLoop, "", "12"},
		{"DeadCode", deadCode, "", "2"},
		{"BubbleSort", bubbleSort, "", "12345"},
		{"NestedClosure", nestedClosure, "", "6"},
		{"RecordVarParam", recordVarParam, "", "64A"},
		{"EchoLine", echoLine, "abc\nrest", "abc1"},
		{"FunctionLocals", functionLocals, "", "25"},
		{"ProgramOperators", programOperators, "", "312"},
		{"UnenteredLoopOverflow", unenteredLoopOverflow, "", "7"},
		{"BranchGuardedOverflow", branchGuardedOverflow, "", "3"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := runCode(t, tc.build, tc.input); got != tc.want {
				t.Errorf("output = %q; want %q", got, tc.want)
			}
		})
	}
}

func TestRuntimeTrap_E2E(t *testing.T) {
	res, err := Compile(Program(Let(Ds(Var("x", Integer())),
		Do("putint", Val(Bin(Int(1), "/", Id("x")))))), DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	m := tam.NewMachine(res.Code)
	m.Output = &bytes.Buffer{}
	err = m.Run()
	if !errors.Is(err, tam.ErrDivisionByZero) {
		t.Fatalf("Run() = %v; want ErrDivisionByZero", err)
	}
	var trap *tam.Trap
	if !errors.As(err, &trap) || res.Code[trap.CP].Op != tam.OpCALL {
		t.Errorf("trap should point at the div call: %v", err)
	}
}

func fibonacci() ast.Stmt {
	return Let(Ds(Func("fib", Ps(Param("n", Integer())), Integer(),
		IfE(Bin(Id("n"), "<", Int(2)),
			Id("n"),
			Bin(Call("fib", Val(Bin(Id("n"), "-", Int(1)))), "+", Call("fib", Val(Bin(Id("n"), "-", Int(2)))))))),
		Do("putint", Val(Call("fib", Val(Int(10))))))
}

func gcd() ast.Stmt {
	return Let(Ds(Func("gcd", Ps(Param("a", Integer()), Param("b", Integer())), Integer(),
		IfE(Bin(Id("b"), "=", Int(0)),
			Id("a"),
			Call("gcd", Val(Id("b")), Val(Bin(Id("a"), "//", Id("b"))))))),
		Do("putint", Val(Call("gcd", Val(Int(48)), Val(Int(18))))))
}

func hoistedLoop() ast.Stmt {
	return Let(Ds(Var("x", Integer()), Var("k", Integer())), Seq(
		Assign(Id("k"), Int(1)),
		While(Bin(Id("x"), "<", Int(10)), Assign(Id("x"), Bin(Id("x"), "+", Bin(Id("k"), "+", Int(2))))),
		Do("putint", Val(Id("x"))),
	))
}

func deadCode() ast.Stmt {
	return Seq(
		If(Id("false"), Do("putint", Val(Int(1))), Do("putint", Val(Int(2)))),
		While(Bin(Int(1), ">", Int(2)), Do("putint", Val(Int(9)))),
	)
}

func bubbleSort() ast.Stmt {
	a := func(i ast.Expr) ast.Expr { return Index(Id("a"), i) }
	j1 := func() ast.Expr { return Bin(Id("j"), "+", Int(1)) }
	return Let(Ds(
		Var("a", Array(5, Integer())),
		Var("i", Integer()),
		Var("j", Integer()),
		Var("t", Integer()),
	), Seq(
		Assign(Id("a"), ArrayOf(Int(5), Int(3), Int(4), Int(1), Int(2))),
		Assign(Id("i"), Int(0)),
		While(Bin(Id("i"), "<", Int(4)), Seq(
			Assign(Id("j"), Int(0)),
			While(Bin(Id("j"), "<", Bin(Int(4), "-", Id("i"))), Seq(
				If(Bin(a(Id("j")), ">", a(j1())), Seq(
					Assign(Id("t"), a(Id("j"))),
					Assign(a(Id("j")), a(j1())),
					Assign(a(j1()), Id("t")),
				), nil),
				Assign(Id("j"), j1()),
			)),
			Assign(Id("i"), Bin(Id("i"), "+", Int(1))),
		)),
		Assign(Id("i"), Int(0)),
		While(Bin(Id("i"), "<", Int(5)), Seq(
			Do("putint", Val(a(Id("i")))),
			Assign(Id("i"), Bin(Id("i"), "+", Int(1))),
		)),
	))
}

// nestedClosure passes a routine that reaches into its enclosing frame to a
// routine declared outside it.
func nestedClosure() ast.Stmt {
	return Let(Ds(
		Proc("each", Ps(ProcParam("p", Param("n", Integer()))),
			Seq(Do("p", Val(Int(1))), Do("p", Val(Int(2))), Do("p", Val(Int(3))))),
		Proc("outer", nil, Let(Ds(
			Var("sum", Integer()),
			Proc("add", Ps(Param("n", Integer())), Assign(Id("sum"), Bin(Id("sum"), "+", Id("n")))),
		), Seq(
			Assign(Id("sum"), Int(0)),
			Do("each", Fn("add")),
			Do("putint", Val(Id("sum"))),
		))),
	), Do("outer"))
}

func recordVarParam() ast.Stmt {
	return Let(Ds(
		Type("P", Record(FS("b", CharT()), FS("a", Integer()))),
		Var("p", Named("P")),
		Proc("set", Ps(VarParam("r", Named("P")), Param("v", Integer())), Seq(
			Assign(Dot(Id("r"), "a"), Id("v")),
			Assign(Dot(Id("r"), "b"), Call("chr", Val(Bin(Id("v"), "+", Int(1))))),
		)),
	), Seq(
		Do("set", Ref(Id("p")), Val(Int(64))),
		Do("putint", Val(Dot(Id("p"), "a"))),
		Do("put", Val(Dot(Id("p"), "b"))),
	))
}

func echoLine() ast.Stmt {
	return Let(Ds(Var("c", CharT())), Seq(
		While(Un(`\`, Call("eol")), Seq(
			Do("get", Ref(Id("c"))),
			Do("put", Val(Id("c"))),
		)),
		Do("geteol"),
		Do("putint", Val(Int(1))),
	))
}

// functionLocals uses a let-expression with storage inside a function body.
func functionLocals() ast.Stmt {
	return Let(Ds(Func("sq", Ps(Param("n", Integer())), Integer(),
		LetE(Ds(Const("m", Bin(Id("n"), "+", Int(0)))), Bin(Id("m"), "*", Id("m"))))),
		Do("putint", Val(Call("sq", Val(Int(5))))))
}

// programOperators declares its own + and prefix -, over literal operands.
func programOperators() ast.Stmt {
	return Let(Ds(Func("+", Ps(Param("a", Integer()), Param("b", Integer())), Integer(),
		Bin(Id("a"), "-", Id("b")))),
		Let(Ds(Func("-", Ps(Param("a", Integer())), Integer(), Bin(Id("a"), "*", Int(3)))), Seq(
			Do("putint", Val(Bin(Int(5), "+", Int(2)))),
			Do("putint", Val(Un("-", Int(4)))),
		)))
}

// unenteredLoopOverflow has an overflowing invariant in a loop that never runs.
func unenteredLoopOverflow() ast.Stmt {
	return Let(Ds(Var("x", Integer()), Var("y", Integer())), Seq(
		Assign(Id("y"), Int(1)),
		Assign(Id("x"), Int(0)),
		While(Bin(Id("x"), ">", Int(0)), Assign(Id("x"), Bin(Id("y"), "+", Int(32767)))),
		Do("putint", Val(Int(7))),
	))
}

// branchGuardedOverflow has an overflowing invariant behind a branch that is
// never taken.
func branchGuardedOverflow() ast.Stmt {
	return Let(Ds(Var("x", Integer()), Var("y", Integer())), Seq(
		Assign(Id("y"), Int(1)),
		Assign(Id("x"), Int(0)),
		While(Bin(Id("x"), "<", Int(3)), Seq(
			If(Bin(Id("x"), ">", Int(5)), Assign(Id("x"), Bin(Id("y"), "+", Int(32767))), nil),
			Assign(Id("x"), Bin(Id("x"), "+", Int(1))),
		)),
		Do("putint", Val(Id("x"))),
	))
}
