package main

import (
	"bytes"
	"errors"
	"go/format"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"tamc/pkg/asm"
	"tamc/pkg/tam"
)

const countdown = `
    PUSH 1
    LOADL 3
    STORE(1) 0[SB]
    JUMP test
body:
    LOAD(1) 0[SB]
    CALL putint
    LOAD(1) 0[SB]
    CALL pred
    STORE(1) 0[SB]
test:
    LOAD(1) 0[SB]
    LOADL 0
    CALL gt
    JUMPIF(1) body
    POP(0) 1
    HALT
`

func TestDefaultOutputPath(t *testing.T) {
	tests := map[string]string{
		"prog.tas":      "prog.tam",
		"dir/prog":      "dir/prog.tam",
		"a.b/prog.json": "a.b/prog.tam",
		"prog.tam.tas":  "prog.tam.tam",
	}
	for in, want := range tests {
		if got := defaultOutputPath(in); got != want {
			t.Errorf("defaultOutputPath(%q) = %q; want %q", in, got, want)
		}
	}
}

func TestAssembleWriteRun(t *testing.T) {
	code, _, err := asm.Assemble(countdown)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}

	path := filepath.Join(t.TempDir(), "countdown.tam")
	if err := writeObject(path, code); err != nil {
		t.Fatalf("writeObject: %v", err)
	}

	var out bytes.Buffer
	m, err := runObject(path, strings.NewReader(""), &out, 1000)
	if err != nil {
		t.Fatalf("runObject: %v", err)
	}
	if out.String() != "321" {
		t.Errorf("output = %q; want 321", out.String())
	}
	if !m.Halted || m.ST != 0 {
		t.Errorf("machine ended with Halted=%t ST=%d", m.Halted, m.ST)
	}
}

func TestRunObjectStepLimit(t *testing.T) {
	code, _, err := asm.Assemble("loop:\n    JUMP loop\n")
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "loop.tam")
	if err := writeObject(path, code); err != nil {
		t.Fatal(err)
	}
	_, err = runObject(path, nil, &bytes.Buffer{}, 50)
	if !errors.Is(err, tam.ErrStepLimit) {
		t.Errorf("err = %v; want ErrStepLimit", err)
	}
}

func TestRunObjectRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.tam")
	if err := os.WriteFile(path, []byte{0, 0, 0, 99, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := runObject(path, nil, nil, 0); err == nil {
		t.Error("expected a bad opcode to be rejected")
	}
}

func TestSourcesAreFormatted(t *testing.T) {
	for _, path := range []string{
		"pkg/tam/machine.go",
		"pkg/tam/tam.go",
		"pkg/ast/asttest/asttest.go",
		"pkg/optimize/hoist.go",
	} {
		t.Run(filepath.Base(path), func(t *testing.T) {
			src, err := os.ReadFile(path)
			if err != nil {
				t.Fatal(err)
			}
			want, err := format.Source(src)
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(src, want) {
				t.Errorf("%s is not gofmt-formatted", path)
			}
		})
	}
}
