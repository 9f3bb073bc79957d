package tam

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"

	"github.com/JohnCGriffin/overflow"
)

// Trap kinds reported by the machine.
var (
	ErrStackOverflow  = errors.New("stack overflow")
	ErrDataAccess     = errors.New("data access violation")
	ErrCodeAccess     = errors.New("code access violation")
	ErrOverflow       = errors.New("arithmetic overflow")
	ErrDivisionByZero = errors.New("division by zero")
	ErrInvalidOp      = errors.New("invalid instruction")
	ErrInput          = errors.New("input error")
	ErrStepLimit      = errors.New("step limit exceeded")
)

// Trap is a run-time failure, with the code address of the instruction that
// caused it.
type Trap struct {
	CP  int
	Err error
}

func (t *Trap) Error() string { return fmt.Sprintf("trap at %d: %v", t.CP, t.Err) }

func (t *Trap) Unwrap() error { return t.Err }

// Machine executes a resolved program. Words are 16-bit signed integers; the
// stack grows upwards from SB = 0 and there is no heap.
type Machine struct {
	Code []Instruction
	Data [DataSize]int16

	CP int
	ST int
	LB int

	Halted bool
	Steps  int

	// MaxSteps stops runaway programs; zero means no limit.
	MaxSteps int

	// Input feeds get, getint, eol and eof. If nil, os.Stdin is used.
	Input io.Reader
	// Output receives put, putint and puteol. If nil, os.Stdout is used.
	Output io.Writer

	in *bufio.Reader
}

// NewMachine loads prog into a fresh machine.
func NewMachine(prog []Instruction) *Machine {
	return &Machine{Code: prog}
}

func (m *Machine) input() *bufio.Reader {
	if m.in == nil {
		var r io.Reader = os.Stdin
		if m.Input != nil {
			r = m.Input
		}
		m.in = bufio.NewReader(r)
	}
	return m.in
}

func (m *Machine) output() io.Writer {
	if m.Output != nil {
		return m.Output
	}
	return os.Stdout
}

// Reg returns the current value of register r. L1..L6 are found by
// following static links out from LB.
func (m *Machine) Reg(r Reg) (int, error) {
	switch r {
	case CB, SB:
		return 0, nil
	case CT:
		return len(m.Code), nil
	case PB:
		return PrimBase, nil
	case PT:
		return PrimTop, nil
	case ST:
		return m.ST, nil
	case HB, HT:
		return DataSize, nil
	case LB:
		return m.LB, nil
	case CP:
		return m.CP, nil
	}
	addr := m.LB
	for i := LB; i < r; i++ {
		link, err := m.load(addr)
		if err != nil {
			return 0, err
		}
		addr = int(link)
	}
	return addr, nil
}

func (m *Machine) load(addr int) (int16, error) {
	if addr < 0 || addr >= m.ST {
		return 0, ErrDataAccess
	}
	return m.Data[addr], nil
}

func (m *Machine) push(vs ...int16) error {
	if m.ST+len(vs) > DataSize {
		return ErrStackOverflow
	}
	copy(m.Data[m.ST:], vs)
	m.ST += len(vs)
	return nil
}

func (m *Machine) pop() (int16, error) {
	if m.ST <= 0 {
		return 0, ErrDataAccess
	}
	m.ST--
	return m.Data[m.ST], nil
}

// popN removes the top n words and returns a copy of them, deepest first.
func (m *Machine) popN(n int) ([]int16, error) {
	if n > m.ST {
		return nil, ErrDataAccess
	}
	out := make([]int16, n)
	copy(out, m.Data[m.ST-n:m.ST])
	m.ST -= n
	return out, nil
}

func (m *Machine) block(addr, n int) ([]int16, error) {
	if addr < 0 || addr+n > m.ST {
		return nil, ErrDataAccess
	}
	out := make([]int16, n)
	copy(out, m.Data[addr:addr+n])
	return out, nil
}

func (m *Machine) storeBlock(addr int, vs []int16) error {
	if addr < 0 || addr+len(vs) > m.ST {
		return ErrDataAccess
	}
	copy(m.Data[addr:], vs)
	return nil
}

func (m *Machine) address(i Instruction) (int, error) {
	base, err := m.Reg(i.R)
	if err != nil {
		return 0, err
	}
	return base + i.D, nil
}

// Step executes one instruction.
func (m *Machine) Step() error {
	if m.Halted {
		return nil
	}
	if m.CP < 0 || m.CP >= len(m.Code) {
		return &Trap{CP: m.CP, Err: ErrCodeAccess}
	}
	at := m.CP
	if err := m.exec(m.Code[at]); err != nil {
		return &Trap{CP: at, Err: err}
	}
	m.Steps++
	return nil
}

// Run executes until HALT or a trap.
func (m *Machine) Run() error {
	for !m.Halted {
		if m.MaxSteps > 0 && m.Steps >= m.MaxSteps {
			return &Trap{CP: m.CP, Err: ErrStepLimit}
		}
		if err := m.Step(); err != nil {
			return err
		}
	}
	return nil
}

func (m *Machine) exec(i Instruction) error {
	next := m.CP + 1
	switch i.Op {
	case OpLOAD:
		addr, err := m.address(i)
		if err != nil {
			return err
		}
		vs, err := m.block(addr, i.N)
		if err != nil {
			return err
		}
		if err := m.push(vs...); err != nil {
			return err
		}

	case OpLOADA:
		addr, err := m.address(i)
		if err != nil {
			return err
		}
		if err := m.push(int16(addr)); err != nil {
			return err
		}

	case OpLOADI:
		addr, err := m.pop()
		if err != nil {
			return err
		}
		vs, err := m.block(int(addr), i.N)
		if err != nil {
			return err
		}
		if err := m.push(vs...); err != nil {
			return err
		}

	case OpLOADL:
		if err := m.push(int16(i.D)); err != nil {
			return err
		}

	case OpSTORE:
		addr, err := m.address(i)
		if err != nil {
			return err
		}
		vs, err := m.popN(i.N)
		if err != nil {
			return err
		}
		if err := m.storeBlock(addr, vs); err != nil {
			return err
		}

	case OpSTOREI:
		addr, err := m.pop()
		if err != nil {
			return err
		}
		vs, err := m.popN(i.N)
		if err != nil {
			return err
		}
		if err := m.storeBlock(int(addr), vs); err != nil {
			return err
		}

	case OpCALL:
		target, err := m.address(i)
		if err != nil {
			return err
		}
		link, err := m.Reg(Reg(i.N))
		if err != nil {
			return err
		}
		return m.call(target, link)

	case OpCALLI:
		target, err := m.pop()
		if err != nil {
			return err
		}
		link, err := m.pop()
		if err != nil {
			return err
		}
		return m.call(int(target), int(link))

	case OpRETURN:
		result, err := m.popN(i.N)
		if err != nil {
			return err
		}
		frame, err := m.block(m.LB, 3)
		if err != nil {
			return err
		}
		m.ST = m.LB - i.D
		if m.ST < 0 {
			return ErrDataAccess
		}
		m.LB = int(frame[1])
		next = int(frame[2])
		if err := m.push(result...); err != nil {
			return err
		}

	case OpPUSH:
		if i.D < 0 {
			return ErrInvalidOp
		}
		if m.ST+i.D > DataSize {
			return ErrStackOverflow
		}
		for k := 0; k < i.D; k++ {
			m.Data[m.ST+k] = 0
		}
		m.ST += i.D

	case OpPOP:
		result, err := m.popN(i.N)
		if err != nil {
			return err
		}
		if i.D < 0 || i.D > m.ST {
			return ErrDataAccess
		}
		m.ST -= i.D
		if err := m.push(result...); err != nil {
			return err
		}

	case OpJUMP:
		addr, err := m.address(i)
		if err != nil {
			return err
		}
		next = addr

	case OpJUMPI:
		addr, err := m.pop()
		if err != nil {
			return err
		}
		next = int(addr)

	case OpJUMPIF:
		v, err := m.pop()
		if err != nil {
			return err
		}
		if int(v) == i.N {
			addr, err := m.address(i)
			if err != nil {
				return err
			}
			next = addr
		}

	case OpHALT:
		m.Halted = true
		return nil

	default:
		return ErrInvalidOp
	}
	m.CP = next
	return nil
}

// call enters the routine at code address target with the given static
// link, or runs the primitive there.
func (m *Machine) call(target, link int) error {
	if target >= PrimBase && target < PrimTop {
		if err := m.primitive(target - PrimBase); err != nil {
			return err
		}
		m.CP++
		return nil
	}
	if target < 0 || target >= len(m.Code) {
		return ErrCodeAccess
	}
	frame := m.ST
	if err := m.push(int16(link), int16(m.LB), int16(m.CP+1)); err != nil {
		return err
	}
	m.LB = frame
	m.CP = target
	return nil
}

func boolWord(b bool) int16 {
	if b {
		return 1
	}
	return 0
}

type arith func(a, b int16) (int16, bool)

var arithmetic = map[int]arith{
	PrimAdd:  overflow.Add16,
	PrimSub:  overflow.Sub16,
	PrimMult: overflow.Mul16,
	PrimDiv: func(a, b int16) (int16, bool) {
		q, _, ok := Divide(a, b)
		return q, ok
	},
	PrimMod: func(a, b int16) (int16, bool) {
		_, r, ok := Divide(a, b)
		return r, ok
	},
}

// Divide is truncating division with remainder, as done by div and mod.
// It fails for a zero divisor and for MinInt / -1. Unlike overflow.Quotient16
// it accepts a zero quotient of operands with mixed signs.
func Divide(a, b int16) (q, r int16, ok bool) {
	if b == 0 || (a == math.MinInt16 && b == -1) {
		return 0, 0, false
	}
	return a / b, a % b, true
}

var comparisons = map[int]func(a, b int16) bool{
	PrimLT: func(a, b int16) bool { return a < b },
	PrimLE: func(a, b int16) bool { return a <= b },
	PrimGE: func(a, b int16) bool { return a >= b },
	PrimGT: func(a, b int16) bool { return a > b },
}

func (m *Machine) primitive(d int) error {
	if op, ok := arithmetic[d]; ok {
		args, err := m.popN(2)
		if err != nil {
			return err
		}
		if (d == PrimDiv || d == PrimMod) && args[1] == 0 {
			return ErrDivisionByZero
		}
		v, ok := op(args[0], args[1])
		if !ok {
			return ErrOverflow
		}
		return m.push(v)
	}
	if cmp, ok := comparisons[d]; ok {
		args, err := m.popN(2)
		if err != nil {
			return err
		}
		return m.push(boolWord(cmp(args[0], args[1])))
	}

	switch d {
	case PrimID:
		return nil

	case PrimNot:
		v, err := m.pop()
		if err != nil {
			return err
		}
		return m.push(boolWord(v == 0))

	case PrimAnd, PrimOr:
		args, err := m.popN(2)
		if err != nil {
			return err
		}
		if d == PrimAnd {
			return m.push(boolWord(args[0] != 0 && args[1] != 0))
		}
		return m.push(boolWord(args[0] != 0 || args[1] != 0))

	case PrimSucc, PrimPred, PrimNeg:
		v, err := m.pop()
		if err != nil {
			return err
		}
		var r int16
		var ok bool
		switch d {
		case PrimSucc:
			r, ok = overflow.Add16(v, 1)
		case PrimPred:
			r, ok = overflow.Sub16(v, 1)
		default:
			r, ok = overflow.Sub16(0, v)
		}
		if !ok {
			return ErrOverflow
		}
		return m.push(r)

	case PrimEq, PrimNe:
		size, err := m.pop()
		if err != nil {
			return err
		}
		if size < 0 {
			return ErrDataAccess
		}
		b, err := m.popN(int(size))
		if err != nil {
			return err
		}
		a, err := m.popN(int(size))
		if err != nil {
			return err
		}
		eq := true
		for k := range a {
			if a[k] != b[k] {
				eq = false
				break
			}
		}
		return m.push(boolWord(eq == (d == PrimEq)))

	case PrimEol:
		c, err := m.peek()
		if err != nil {
			return err
		}
		return m.push(boolWord(c == '\n'))

	case PrimEof:
		_, err := m.input().Peek(1)
		return m.push(boolWord(err == io.EOF))

	case PrimGet:
		addr, err := m.pop()
		if err != nil {
			return err
		}
		c, err := m.input().ReadByte()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInput, err)
		}
		return m.storeBlock(int(addr), []int16{int16(c)})

	case PrimPut:
		v, err := m.pop()
		if err != nil {
			return err
		}
		_, err = m.output().Write([]byte{byte(v)})
		return err

	case PrimGeteol:
		for {
			c, err := m.input().ReadByte()
			if err != nil {
				return fmt.Errorf("%w: %v", ErrInput, err)
			}
			if c == '\n' {
				return nil
			}
		}

	case PrimPuteol:
		_, err := io.WriteString(m.output(), "\n")
		return err

	case PrimGetint:
		addr, err := m.pop()
		if err != nil {
			return err
		}
		v, err := m.readInt()
		if err != nil {
			return err
		}
		return m.storeBlock(int(addr), []int16{v})

	case PrimPutint:
		v, err := m.pop()
		if err != nil {
			return err
		}
		_, err = io.WriteString(m.output(), strconv.Itoa(int(v)))
		return err
	}
	return ErrInvalidOp
}

func (m *Machine) peek() (byte, error) {
	b, err := m.input().Peek(1)
	if err == io.EOF {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInput, err)
	}
	return b[0], nil
}

// readInt skips blanks and reads an optionally signed decimal integer.
func (m *Machine) readInt() (int16, error) {
	in := m.input()
	c, err := in.ReadByte()
	for err == nil && (c == ' ' || c == '\t' || c == '\n' || c == '\r') {
		c, err = in.ReadByte()
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInput, err)
	}
	digits := []byte{c}
	for {
		c, err := in.ReadByte()
		if err != nil {
			break
		}
		if c < '0' || c > '9' {
			_ = in.UnreadByte()
			break
		}
		digits = append(digits, c)
	}
	v, err := strconv.ParseInt(string(digits), 10, 16)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInput, err)
	}
	return int16(v), nil
}
