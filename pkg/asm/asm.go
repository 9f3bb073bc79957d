package asm

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"tamc/pkg/tam"
)

// Assembler reads the textual form of the intermediate code, the notation
// printed by Listing:
//
//	loop:
//	    LOAD(1) 0[SB]
//	    LOADL 10
//	    CALL lt
//	    JUMPIF(1) loop   ; comment
//
// Mnemonics are case-insensitive; labels and primitive names are not.
type Assembler struct {
	instrs []Instr
	lines  []int
}

type parsedLine struct {
	lineNo   int
	labels   []string
	mnemonic string
	count    string
	operands []string
}

func NewAssembler() *Assembler {
	return &Assembler{}
}

// Assemble parses and resolves code. The source map gives the line each
// code address came from.
func Assemble(code string) ([]tam.Instruction, map[int]int, error) {
	return NewAssembler().Assemble(code)
}

// Parse reads code into intermediate instructions without resolving labels.
func Parse(code string) ([]Instr, error) {
	a := NewAssembler()
	if err := a.parse(code); err != nil {
		return nil, err
	}
	return a.instrs, nil
}

func (a *Assembler) Assemble(code string) ([]tam.Instruction, map[int]int, error) {
	if err := a.parse(code); err != nil {
		return nil, nil, err
	}
	prog, err := Resolve(a.instrs)
	if err != nil {
		return nil, nil, err
	}

	sourceMap := make(map[int]int)
	address := 0
	for k, i := range a.instrs {
		if i.IsLabel() || redundant(i) {
			continue
		}
		sourceMap[address] = a.lines[k]
		address++
	}
	return prog, sourceMap, nil
}

func (a *Assembler) parse(code string) error {
	for n, raw := range strings.Split(code, "\n") {
		lineNo := n + 1
		p, err := parseLine(raw, lineNo)
		if err != nil {
			return err
		}
		for _, l := range p.labels {
			a.add(Label(l), lineNo)
		}
		if p.mnemonic == "" {
			continue
		}
		i, err := p.instr()
		if err != nil {
			return err
		}
		a.add(i, lineNo)
	}
	return nil
}

func (a *Assembler) add(i Instr, lineNo int) {
	a.instrs = append(a.instrs, i)
	a.lines = append(a.lines, lineNo)
}

func parseLine(raw string, lineNo int) (parsedLine, error) {
	p := parsedLine{lineNo: lineNo}

	line := strings.TrimSpace(stripComments(raw))
	if line == "" {
		return p, nil
	}

	for {
		colon := strings.IndexByte(line, ':')
		if colon <= 0 {
			break
		}

		beforeColon := strings.TrimSpace(line[:colon])
		if strings.ContainsAny(beforeColon, " \t") {
			break
		}

		if !isIdentifier(beforeColon) {
			return p, fmt.Errorf("invalid label '%s' on line %d", beforeColon, lineNo)
		}

		p.labels = append(p.labels, beforeColon)
		line = strings.TrimSpace(line[colon+1:])
		if line == "" {
			return p, nil
		}
	}

	mnemonic, rest := line, ""
	if sp := strings.IndexAny(line, " \t"); sp >= 0 {
		mnemonic, rest = line[:sp], line[sp+1:]
	}
	if open := strings.IndexByte(mnemonic, '('); open >= 0 {
		if !strings.HasSuffix(mnemonic, ")") {
			return p, fmt.Errorf("unterminated count in '%s' on line %d", mnemonic, lineNo)
		}
		p.count = mnemonic[open+1 : len(mnemonic)-1]
		mnemonic = mnemonic[:open]
	}
	p.mnemonic = strings.ToUpper(mnemonic)
	p.operands = strings.Fields(normalizeInstructionText(rest))
	return p, nil
}

func stripComments(line string) string {
	semicolon := strings.Index(line, ";")
	doubleSlash := strings.Index(line, "//")

	cut := -1
	if semicolon >= 0 {
		cut = semicolon
	}
	if doubleSlash >= 0 && (cut == -1 || doubleSlash < cut) {
		cut = doubleSlash
	}
	if cut >= 0 {
		return line[:cut]
	}
	return line
}

// normalizeInstructionText turns "3[LB]" into "3 LB".
func normalizeInstructionText(line string) string {
	replacer := strings.NewReplacer(",", " ", "[", " ", "]", " ")
	return replacer.Replace(line)
}

func (p parsedLine) errorf(format string, args ...any) error {
	return fmt.Errorf("%s on line %d: %s", p.mnemonic, p.lineNo, fmt.Sprintf(format, args...))
}

func (p parsedLine) expect(counted bool, operands ...int) error {
	if counted != (p.count != "") {
		if counted {
			return p.errorf("missing count")
		}
		return p.errorf("unexpected count")
	}
	for _, n := range operands {
		if len(p.operands) == n {
			return nil
		}
	}
	return p.errorf("%d operands", len(p.operands))
}

// instr builds the instruction of a parsed line. Operand shapes:
// LOAD(n) d[r], LOADA d[r] or LOADA label, LOADI(n), LOADL d,
// STORE(n) d[r], STOREI(n), CALL(link) d[r], CALL(link) label, CALL prim,
// CALLI, RETURN(n) d, PUSH d, POP(n) d, JUMP d[r] or JUMP label, JUMPI,
// JUMPIF(n) d[r] or JUMPIF(n) label, HALT.
func (p parsedLine) instr() (Instr, error) {
	o, ok := tam.OpByName(p.mnemonic)
	if !ok {
		return Instr{}, fmt.Errorf("unknown instruction on line %d: %s", p.lineNo, p.mnemonic)
	}

	switch o {
	case tam.OpCALLI, tam.OpJUMPI, tam.OpHALT:
		if err := p.expect(false, 0); err != nil {
			return Instr{}, err
		}
		return op(o, 0, 0, 0), nil

	case tam.OpLOADI, tam.OpSTOREI:
		if err := p.expect(true, 0); err != nil {
			return Instr{}, err
		}
		n, err := p.parseCount()
		return op(o, 0, n, 0), err

	case tam.OpLOADL, tam.OpPUSH:
		if err := p.expect(false, 1); err != nil {
			return Instr{}, err
		}
		d, err := p.parseImmediate(p.operands[0])
		return op(o, 0, 0, d), err

	case tam.OpRETURN, tam.OpPOP:
		if err := p.expect(true, 1); err != nil {
			return Instr{}, err
		}
		n, err := p.parseCount()
		if err != nil {
			return Instr{}, err
		}
		d, err := p.parseImmediate(p.operands[0])
		return op(o, 0, n, d), err

	case tam.OpLOAD, tam.OpSTORE:
		if err := p.expect(true, 2); err != nil {
			return Instr{}, err
		}
		n, err := p.parseCount()
		if err != nil {
			return Instr{}, err
		}
		return p.addressed(o, n)

	case tam.OpLOADA, tam.OpJUMP:
		if err := p.expect(false, 1, 2); err != nil {
			return Instr{}, err
		}
		if len(p.operands) == 1 {
			return p.symbolic(o, 0, p.operands[0])
		}
		return p.addressed(o, 0)

	case tam.OpJUMPIF:
		if err := p.expect(true, 1, 2); err != nil {
			return Instr{}, err
		}
		n, err := p.parseCount()
		if err != nil {
			return Instr{}, err
		}
		if len(p.operands) == 1 {
			return p.symbolic(o, n, p.operands[0])
		}
		return p.addressed(o, n)

	case tam.OpCALL:
		if p.count == "" {
			if err := p.expect(false, 1); err != nil {
				return Instr{}, err
			}
			d, ok := tam.PrimByName(p.operands[0])
			if !ok {
				return Instr{}, p.errorf("unknown primitive '%s'", p.operands[0])
			}
			return CallPrim(d), nil
		}
		if err := p.expect(true, 1, 2); err != nil {
			return Instr{}, err
		}
		link, err := parseRegister(p.count, p.lineNo)
		if err != nil {
			return Instr{}, err
		}
		if len(p.operands) == 1 {
			return p.symbolic(o, int(link), p.operands[0])
		}
		return p.addressed(o, int(link))
	}
	return Instr{}, fmt.Errorf("unknown instruction on line %d: %s", p.lineNo, p.mnemonic)
}

// addressed builds an instruction whose two operands are d[r].
func (p parsedLine) addressed(o tam.Op, n int) (Instr, error) {
	d, err := p.parseImmediate(p.operands[0])
	if err != nil {
		return Instr{}, err
	}
	r, err := parseRegister(p.operands[1], p.lineNo)
	if err != nil {
		return Instr{}, err
	}
	return op(o, r, n, d), nil
}

func (p parsedLine) symbolic(o tam.Op, n int, label string) (Instr, error) {
	if !isIdentifier(label) {
		return Instr{}, fmt.Errorf("invalid label '%s' on line %d", label, p.lineNo)
	}
	i := op(o, tam.CB, n, 0)
	i.Target = label
	return i, nil
}

func (p parsedLine) parseCount() (int, error) {
	n, err := strconv.Atoi(p.count)
	if err != nil || n < 0 || n > tam.MaxN {
		return 0, fmt.Errorf("invalid count '%s' on line %d", p.count, p.lineNo)
	}
	return n, nil
}

func parseRegister(token string, lineNo int) (tam.Reg, error) {
	r, ok := tam.RegByName(strings.ToUpper(token))
	if !ok {
		return 0, fmt.Errorf("invalid register '%s' on line %d", token, lineNo)
	}
	return r, nil
}

func (p parsedLine) parseImmediate(token string) (int, error) {
	value, err := strconv.ParseInt(token, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid immediate '%s' on line %d", token, p.lineNo)
	}
	if value < tam.MinD || value > tam.MaxD {
		return 0, fmt.Errorf("immediate out of range on line %d: %s", p.lineNo, token)
	}
	return int(value), nil
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}

	for i, r := range s {
		if i == 0 {
			if !unicode.IsLetter(r) && r != '_' {
				return false
			}
			continue
		}

		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' && r != '.' && r != '$' {
			return false
		}
	}

	return true
}
