// Package tam defines the Triangle Abstract Machine: opcodes, registers,
// primitive routines, the fixed-width instruction encoding and object files,
// plus a reference machine that executes resolved programs.
package tam

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Op is an instruction opcode.
type Op uint8

const (
	OpLOAD   Op = 0
	OpLOADA  Op = 1
	OpLOADI  Op = 2
	OpLOADL  Op = 3
	OpSTORE  Op = 4
	OpSTOREI Op = 5
	OpCALL   Op = 6
	OpCALLI  Op = 7
	OpRETURN Op = 8
	OpPUSH   Op = 10
	OpPOP    Op = 11
	OpJUMP   Op = 12
	OpJUMPI  Op = 13
	OpJUMPIF Op = 14
	OpHALT   Op = 15
)

var opNames = map[Op]string{
	OpLOAD:   "LOAD",
	OpLOADA:  "LOADA",
	OpLOADI:  "LOADI",
	OpLOADL:  "LOADL",
	OpSTORE:  "STORE",
	OpSTOREI: "STOREI",
	OpCALL:   "CALL",
	OpCALLI:  "CALLI",
	OpRETURN: "RETURN",
	OpPUSH:   "PUSH",
	OpPOP:    "POP",
	OpJUMP:   "JUMP",
	OpJUMPI:  "JUMPI",
	OpJUMPIF: "JUMPIF",
	OpHALT:   "HALT",
}

func (o Op) String() string {
	if s, ok := opNames[o]; ok {
		return s
	}
	return fmt.Sprintf("OP%d", uint8(o))
}

// OpByName returns the opcode with the given mnemonic.
func OpByName(name string) (Op, bool) {
	for op, s := range opNames {
		if s == name {
			return op, true
		}
	}
	return 0, false
}

// Reg is a machine register.
type Reg uint8

const (
	CB Reg = 0 // code base
	CT Reg = 1 // code top
	PB Reg = 2 // primitives base
	PT Reg = 3 // primitives top
	SB Reg = 4 // stack base
	ST Reg = 5 // stack top
	HB Reg = 6 // heap base
	HT Reg = 7 // heap top
	LB Reg = 8 // local base
	L1 Reg = 9 // L1..L6 follow the static chain from LB
	L2 Reg = 10
	L3 Reg = 11
	L4 Reg = 12
	L5 Reg = 13
	L6 Reg = 14
	CP Reg = 15 // code pointer
)

var regNames = [...]string{"CB", "CT", "PB", "PT", "SB", "ST", "HB", "HT", "LB", "L1", "L2", "L3", "L4", "L5", "L6", "CP"}

func (r Reg) String() string {
	if int(r) < len(regNames) {
		return regNames[r]
	}
	return fmt.Sprintf("R%d", uint8(r))
}

// RegByName returns the register with the given name.
func RegByName(name string) (Reg, bool) {
	for i, s := range regNames {
		if s == name {
			return Reg(i), true
		}
	}
	return 0, false
}

// MaxDisplay is the number of static levels above the current frame that
// can be addressed through L1..L6.
const MaxDisplay = 6

// Display returns the register addressing the frame depth static levels
// out from the current one: LB for 0, L1..L6 for 1..6.
func Display(depth int) (Reg, bool) {
	if depth < 0 || depth > MaxDisplay {
		return 0, false
	}
	return LB + Reg(depth), true
}

// Primitive routine displacements relative to PB.
const (
	PrimID     = 1
	PrimNot    = 2
	PrimAnd    = 3
	PrimOr     = 4
	PrimSucc   = 5
	PrimPred   = 6
	PrimNeg    = 7
	PrimAdd    = 8
	PrimSub    = 9
	PrimMult   = 10
	PrimDiv    = 11
	PrimMod    = 12
	PrimLT     = 13
	PrimLE     = 14
	PrimGE     = 15
	PrimGT     = 16
	PrimEq     = 17
	PrimNe     = 18
	PrimEol    = 19
	PrimEof    = 20
	PrimGet    = 21
	PrimPut    = 22
	PrimGeteol = 23
	PrimPuteol = 24
	PrimGetint = 25
	PrimPutint = 26
)

var primNames = [...]string{
	PrimID: "id", PrimNot: "not", PrimAnd: "and", PrimOr: "or",
	PrimSucc: "succ", PrimPred: "pred", PrimNeg: "neg",
	PrimAdd: "add", PrimSub: "sub", PrimMult: "mult", PrimDiv: "div", PrimMod: "mod",
	PrimLT: "lt", PrimLE: "le", PrimGE: "ge", PrimGT: "gt", PrimEq: "eq", PrimNe: "ne",
	PrimEol: "eol", PrimEof: "eof", PrimGet: "get", PrimPut: "put",
	PrimGeteol: "geteol", PrimPuteol: "puteol", PrimGetint: "getint", PrimPutint: "putint",
}

// PrimName returns the name of the primitive at displacement d, or "".
func PrimName(d int) string {
	if d > 0 && d < len(primNames) {
		return primNames[d]
	}
	return ""
}

// PrimByName returns the displacement of the named primitive.
func PrimByName(name string) (int, bool) {
	for d, s := range primNames {
		if s == name && name != "" {
			return d, true
		}
	}
	return 0, false
}

// Store sizes and fixed register values.
const (
	CodeSize = 1024
	DataSize = 1024

	// PrimBase is the code address of the primitive routines, just past
	// the code store.
	PrimBase = CodeSize
	PrimTop  = PrimBase + PrimPutint + 1
)

// Field limits of the encoding.
const (
	MaxN = 255
	MinD = -32768
	MaxD = 32767
)

// Instruction is one resolved machine instruction: opcode, register
// operand, count operand and displacement.
type Instruction struct {
	Op Op
	R  Reg
	N  int
	D  int
}

// Validate checks that every field fits the fixed-width encoding.
func (i Instruction) Validate() error {
	if i.Op > OpHALT || i.Op == 9 {
		return fmt.Errorf("invalid opcode %d", i.Op)
	}
	if i.R > CP {
		return fmt.Errorf("%s: register %d out of range", i.Op, i.R)
	}
	if i.N < 0 || i.N > MaxN {
		return fmt.Errorf("%s: count %d out of range", i.Op, i.N)
	}
	if i.D < MinD || i.D > MaxD {
		return fmt.Errorf("%s: displacement %d out of range", i.Op, i.D)
	}
	return nil
}

// Encode packs the instruction into one word: 4-bit opcode, 4-bit register,
// 8-bit count and 16-bit displacement.
func (i Instruction) Encode() uint32 {
	return uint32(i.Op&0x0F)<<28 | uint32(i.R&0x0F)<<24 | uint32(i.N&0xFF)<<16 | uint32(uint16(int16(i.D)))
}

// Decode unpacks a word produced by Encode.
func Decode(w uint32) Instruction {
	return Instruction{
		Op: Op(w >> 28 & 0x0F),
		R:  Reg(w >> 24 & 0x0F),
		N:  int(w >> 16 & 0xFF),
		D:  int(int16(uint16(w))),
	}
}

func (i Instruction) String() string {
	switch i.Op {
	case OpLOAD, OpSTORE:
		return fmt.Sprintf("%s(%d) %d[%s]", i.Op, i.N, i.D, i.R)
	case OpLOADA, OpJUMP:
		return fmt.Sprintf("%s %d[%s]", i.Op, i.D, i.R)
	case OpLOADI, OpSTOREI:
		return fmt.Sprintf("%s(%d)", i.Op, i.N)
	case OpLOADL, OpPUSH:
		return fmt.Sprintf("%s %d", i.Op, i.D)
	case OpCALL:
		if name := PrimName(i.D); i.R == PB && name != "" {
			return "CALL " + name
		}
		return fmt.Sprintf("CALL(%s) %d[%s]", Reg(i.N), i.D, i.R)
	case OpRETURN, OpPOP:
		return fmt.Sprintf("%s(%d) %d", i.Op, i.N, i.D)
	case OpJUMPIF:
		return fmt.Sprintf("JUMPIF(%d) %d[%s]", i.N, i.D, i.R)
	}
	return i.Op.String()
}

// WriteObject writes prog as an object file: four big-endian 32-bit
// integers (opcode, register, count, displacement) per instruction.
func WriteObject(w io.Writer, prog []Instruction) error {
	buf := make([]int32, 0, 4*len(prog))
	for _, i := range prog {
		buf = append(buf, int32(i.Op), int32(i.R), int32(i.N), int32(i.D))
	}
	return binary.Write(w, binary.BigEndian, buf)
}

// ReadObject reads an object file written by WriteObject.
func ReadObject(r io.Reader) ([]Instruction, error) {
	var prog []Instruction
	var fields [4]int32
	for {
		err := binary.Read(r, binary.BigEndian, &fields)
		if err == io.EOF {
			return prog, nil
		}
		if err != nil {
			return nil, fmt.Errorf("instruction %d: %w", len(prog), err)
		}
		if fields[0] < 0 || fields[0] > int32(OpHALT) || fields[1] < 0 || fields[1] > int32(CP) {
			return nil, fmt.Errorf("instruction %d: bad opcode or register", len(prog))
		}
		i := Instruction{Op: Op(fields[0]), R: Reg(fields[1]), N: int(fields[2]), D: int(fields[3])}
		if err := i.Validate(); err != nil {
			return nil, fmt.Errorf("instruction %d: %w", len(prog), err)
		}
		prog = append(prog, i)
	}
}
