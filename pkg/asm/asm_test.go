package asm

import (
	"errors"
	"reflect"
	"testing"

	"tamc/pkg/tam"
)

func TestHelperFunctions(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"abc", true},
		{"_abc", true},
		{"abc1", true},
		{"f.3", true},
		{"1abc", false},
		{"", false},
		{"ab-c", false},
	}
	for _, tc := range tests {
		if got := isIdentifier(tc.input); got != tc.want {
			t.Errorf("isIdentifier(%q) = %v; want %v", tc.input, got, tc.want)
		}
	}

	if got := stripComments("LOADL 1 ; one"); got != "LOADL 1 " {
		t.Errorf("stripComments = %q", got)
	}
	if got := normalizeInstructionText("3[LB]"); got != "3 LB " {
		t.Errorf("normalizeInstructionText = %q", got)
	}
}

func TestParseLine(t *testing.T) {
	tests := []struct {
		line    string
		want    parsedLine
		wantErr bool
	}{
		{
			"LOADL 5",
			parsedLine{lineNo: 1, mnemonic: "LOADL", operands: []string{"5"}},
			false,
		},
		{
			"  load(2) 3[LB]  ; comment",
			parsedLine{lineNo: 1, mnemonic: "LOAD", count: "2", operands: []string{"3", "LB"}},
			false,
		},
		{
			"start: HALT",
			parsedLine{lineNo: 1, labels: []string{"start"}, mnemonic: "HALT"},
			false,
		},
		{
			"a: b: JUMP a",
			parsedLine{lineNo: 1, labels: []string{"a", "b"}, mnemonic: "JUMP", operands: []string{"a"}},
			false,
		},
		{
			"CALL(LB) f.1",
			parsedLine{lineNo: 1, mnemonic: "CALL", count: "LB", operands: []string{"f.1"}},
			false,
		},
		{
			"only:",
			parsedLine{lineNo: 1, labels: []string{"only"}},
			false,
		},
		// Invalid cases
		{
			"1label: HALT",
			parsedLine{lineNo: 1},
			true,
		},
		{
			"LOAD(2 3[LB]",
			parsedLine{lineNo: 1},
			true,
		},
	}

	for _, tc := range tests {
		got, err := parseLine(tc.line, 1)
		if (err != nil) != tc.wantErr {
			t.Errorf("parseLine(%q) error = %v, wantErr %v", tc.line, err, tc.wantErr)
			continue
		}
		if tc.wantErr {
			continue
		}
		if got.mnemonic != tc.want.mnemonic || got.count != tc.want.count {
			t.Errorf("parseLine(%q) = %q(%q), want %q(%q)", tc.line, got.mnemonic, got.count, tc.want.mnemonic, tc.want.count)
		}
		if !reflect.DeepEqual(got.labels, tc.want.labels) && !(len(got.labels) == 0 && len(tc.want.labels) == 0) {
			t.Errorf("parseLine(%q) labels = %v, want %v", tc.line, got.labels, tc.want.labels)
		}
		if !reflect.DeepEqual(got.operands, tc.want.operands) && !(len(got.operands) == 0 && len(tc.want.operands) == 0) {
			t.Errorf("parseLine(%q) operands = %v, want %v", tc.line, got.operands, tc.want.operands)
		}
	}
}

func TestAssemble(t *testing.T) {
	tests := []struct {
		name    string
		code    string
		want    []tam.Instruction
		wantErr bool
	}{
		{
			"Basic Instructions",
			`
			LOADL 10
			CALL putint
			HALT
			`,
			[]tam.Instruction{
				{Op: tam.OpLOADL, D: 10},
				{Op: tam.OpCALL, R: tam.PB, N: int(tam.SB), D: tam.PrimPutint},
				{Op: tam.OpHALT},
			},
			false,
		},
		{
			"Labels and Jumps",
			`
			PUSH 1
			loop:
			LOAD(1) 0[SB]
			JUMPIF(0) loop
			JUMP done
			done: HALT
			`,
			[]tam.Instruction{
				{Op: tam.OpPUSH, D: 1},
				{Op: tam.OpLOAD, R: tam.SB, N: 1, D: 0},
				{Op: tam.OpJUMPIF, R: tam.CB, N: 0, D: 1},
				{Op: tam.OpJUMP, R: tam.CB, D: 4},
				{Op: tam.OpHALT},
			},
			false,
		},
		{
			"Redundant Instructions Take No Space",
			`
			PUSH 0
			POP(1) 0
			here: JUMP here
			`,
			[]tam.Instruction{
				{Op: tam.OpJUMP, R: tam.CB, D: 0},
			},
			false,
		},
		{
			"Routine Call",
			`
			CALL(SB) f
			HALT
			f: LOADA 0[L1]
			RETURN(1) 0
			`,
			[]tam.Instruction{
				{Op: tam.OpCALL, R: tam.CB, N: int(tam.SB), D: 2},
				{Op: tam.OpHALT},
				{Op: tam.OpLOADA, R: tam.L1, D: 0},
				{Op: tam.OpRETURN, N: 1, D: 0},
			},
			false,
		},
		{
			"Numeric Forms",
			`
			CALL(LB) 3[CB]
			JUMPIF(1) 0x10[CB]
			STOREI(2)
			`,
			[]tam.Instruction{
				{Op: tam.OpCALL, R: tam.CB, N: int(tam.LB), D: 3},
				{Op: tam.OpJUMPIF, R: tam.CB, N: 1, D: 16},
				{Op: tam.OpSTOREI, N: 2},
			},
			false,
		},
		{
			"Comments",
			`
			; Comment
			LOADL -1 // Comment
			`,
			[]tam.Instruction{{Op: tam.OpLOADL, D: -1}},
			false,
		},
		// Errors
		{"Unknown Instruction", `FOOBAR 1`, nil, true},
		{"Duplicate Label", "l: HALT\nl: HALT", nil, true},
		{"Invalid Register", `LOAD(1) 0[R9]`, nil, true},
		{"Invalid Operand Count", `LOAD(1) 0`, nil, true},
		{"Missing Count", `LOAD 0[SB]`, nil, true},
		{"Unexpected Count", `LOADL(1) 0`, nil, true},
		{"Undefined Label", `JUMP nowhere`, nil, true},
		{"Unknown Primitive", `CALL frobnicate`, nil, true},
		{"Count Out Of Range", `POP(256) 0`, nil, true},
		{"Immediate Out Of Range", `LOADL 40000`, nil, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, _, err := Assemble(tc.code)
			if (err != nil) != tc.wantErr {
				t.Fatalf("Assemble() error = %v, wantErr %v", err, tc.wantErr)
			}
			if !tc.wantErr && !reflect.DeepEqual(got, tc.want) {
				t.Errorf("Assemble() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestListingRoundTrip(t *testing.T) {
	prog := []Instr{
		Jump("skip"),
		Label("f.1"),
		Load(1, tam.LB, -1),
		LoadL(2),
		CallPrim(tam.PrimMult),
		Return(1, 1),
		Label("skip"),
		LoadL(21),
		Call(tam.SB, "f.1"),
		LoadA(tam.SB, 0),
		LoadLabel("f.1"),
		Pop(2, 0),
		JumpIf(0, "skip"),
		Halt(),
	}
	text := Listing(prog)
	back, err := Parse(text)
	if err != nil {
		t.Fatalf("Parse(Listing()): %v\n%s", err, text)
	}
	if !reflect.DeepEqual(back, prog) {
		t.Errorf("round trip mismatch:\n got %v\nwant %v", back, prog)
	}
}

func TestInstrString(t *testing.T) {
	tests := []struct {
		in   Instr
		want string
	}{
		{Label("loop"), "loop:"},
		{Jump("loop"), "JUMP loop"},
		{JumpIf(1, "loop"), "JUMPIF(1) loop"},
		{Call(tam.L2, "f"), "CALL(L2) f"},
		{LoadLabel("f"), "LOADA f"},
		{Store(2, tam.SB, 4), "STORE(2) 4[SB]"},
		{CallPrim(tam.PrimEq), "CALL eq"},
	}
	for _, tc := range tests {
		if got := tc.in.String(); got != tc.want {
			t.Errorf("String() = %q; want %q", got, tc.want)
		}
	}
}

func TestResolveErrors(t *testing.T) {
	t.Run("Undefined", func(t *testing.T) {
		_, err := Resolve([]Instr{Jump("missing")})
		if !errors.Is(err, ErrUndefinedLabel) {
			t.Errorf("err = %v; want ErrUndefinedLabel", err)
		}
	})

	t.Run("Duplicate", func(t *testing.T) {
		_, err := Resolve([]Instr{Label("a"), Halt(), Label("a")})
		if !errors.Is(err, ErrDuplicateLabel) {
			t.Errorf("err = %v; want ErrDuplicateLabel", err)
		}
	})

	t.Run("TooLarge", func(t *testing.T) {
		prog := make([]Instr, tam.CodeSize+1)
		for i := range prog {
			prog[i] = Halt()
		}
		_, err := Resolve(prog)
		if !errors.Is(err, ErrProgramTooLarge) {
			t.Errorf("err = %v; want ErrProgramTooLarge", err)
		}
	})

	t.Run("FieldRange", func(t *testing.T) {
		if _, err := Resolve([]Instr{Pop(300, 1)}); err == nil {
			t.Errorf("Resolve accepted POP(300)")
		}
	})

	t.Run("FitsExactly", func(t *testing.T) {
		prog := make([]Instr, tam.CodeSize)
		for i := range prog {
			prog[i] = Halt()
		}
		if _, err := Resolve(prog); err != nil {
			t.Errorf("Resolve: %v", err)
		}
	})
}

func TestAddresses(t *testing.T) {
	got, err := Addresses([]Instr{
		Label("start"), Push(0), LoadL(1), Label("mid"), Pop(1, 0), Pop(0, 1), Label("end"), Halt(),
	})
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]int{"start": 0, "mid": 1, "end": 2}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Addresses() = %v; want %v", got, want)
	}
}
