// Package asm holds the intermediate code between the generator and the
// machine: instructions with symbolic label targets, the peephole passes
// over them, label resolution into machine instructions, and a textual
// assembler for the same notation.
package asm

import (
	"fmt"
	"strings"

	"tamc/pkg/tam"
)

// Instr is a machine instruction, possibly addressing a label instead of a
// numeric displacement, or a LABEL pseudo-instruction.
type Instr struct {
	tam.Instruction

	// Label names the position of a LABEL pseudo-instruction; such an
	// instruction has no machine counterpart.
	Label string
	// Target, when set, is the label whose code address becomes D, with R
	// set to CB. Used by JUMP, JUMPIF, CALL and LOADA.
	Target string
}

// IsLabel reports whether i is a LABEL pseudo-instruction.
func (i Instr) IsLabel() bool { return i.Label != "" }

// Symbolic reports whether i addresses a label.
func (i Instr) Symbolic() bool { return i.Target != "" }

func (i Instr) String() string {
	if i.IsLabel() {
		return i.Label + ":"
	}
	if !i.Symbolic() {
		return i.Instruction.String()
	}
	switch i.Op {
	case tam.OpCALL:
		return fmt.Sprintf("CALL(%s) %s", tam.Reg(i.N), i.Target)
	case tam.OpJUMPIF:
		return fmt.Sprintf("JUMPIF(%d) %s", i.N, i.Target)
	}
	return fmt.Sprintf("%s %s", i.Op, i.Target)
}

func op(o tam.Op, r tam.Reg, n, d int) Instr {
	return Instr{Instruction: tam.Instruction{Op: o, R: r, N: n, D: d}}
}

// Label is the LABEL pseudo-instruction.
func Label(name string) Instr { return Instr{Label: name} }

func Load(n int, r tam.Reg, d int) Instr  { return op(tam.OpLOAD, r, n, d) }
func LoadA(r tam.Reg, d int) Instr        { return op(tam.OpLOADA, r, 0, d) }
func LoadI(n int) Instr                   { return op(tam.OpLOADI, 0, n, 0) }
func LoadL(d int) Instr                   { return op(tam.OpLOADL, 0, 0, d) }
func Store(n int, r tam.Reg, d int) Instr { return op(tam.OpSTORE, r, n, d) }
func StoreI(n int) Instr                  { return op(tam.OpSTOREI, 0, n, 0) }
func CallI() Instr                        { return op(tam.OpCALLI, 0, 0, 0) }
func Return(n, d int) Instr               { return op(tam.OpRETURN, 0, n, d) }
func Push(d int) Instr                    { return op(tam.OpPUSH, 0, 0, d) }
func Pop(n, d int) Instr                  { return op(tam.OpPOP, 0, n, d) }
func JumpI() Instr                        { return op(tam.OpJUMPI, 0, 0, 0) }
func Halt() Instr                         { return op(tam.OpHALT, 0, 0, 0) }

// CallPrim calls the primitive routine at displacement d, with the dummy
// static link SB.
func CallPrim(d int) Instr { return op(tam.OpCALL, tam.PB, int(tam.SB), d) }

// Call calls the routine at label with the static link held in register link.
func Call(link tam.Reg, label string) Instr {
	i := op(tam.OpCALL, tam.CB, int(link), 0)
	i.Target = label
	return i
}

// Jump jumps to label.
func Jump(label string) Instr {
	i := op(tam.OpJUMP, tam.CB, 0, 0)
	i.Target = label
	return i
}

// JumpIf pops a word and jumps to label when it equals n.
func JumpIf(n int, label string) Instr {
	i := op(tam.OpJUMPIF, tam.CB, n, 0)
	i.Target = label
	return i
}

// LoadLabel pushes the code address of label.
func LoadLabel(label string) Instr {
	i := op(tam.OpLOADA, tam.CB, 0, 0)
	i.Target = label
	return i
}

// Listing renders prog one instruction per line, labels flush left.
func Listing(prog []Instr) string {
	var sb strings.Builder
	for _, i := range prog {
		if !i.IsLabel() {
			sb.WriteString("    ")
		}
		sb.WriteString(i.String())
		sb.WriteByte('\n')
	}
	return sb.String()
}
