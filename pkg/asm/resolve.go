package asm

import (
	"errors"
	"fmt"

	"tamc/pkg/tam"
)

var (
	ErrUndefinedLabel  = errors.New("undefined label")
	ErrDuplicateLabel  = errors.New("duplicate label")
	ErrProgramTooLarge = errors.New("program exceeds the code store")
)

// redundant reports whether i has no effect and can be left out of the
// resolved program.
func redundant(i Instr) bool {
	switch i.Op {
	case tam.OpPOP:
		return i.D == 0
	case tam.OpPUSH:
		return i.D == 0
	}
	return false
}

// Resolve translates prog into machine instructions. Pass 1 gives every label
// the address of the next emitted instruction; pass 2 replaces symbolic
// targets by CB-relative addresses and checks every field against the
// encoding.
func Resolve(prog []Instr) ([]tam.Instruction, error) {
	labels, err := layout(prog)
	if err != nil {
		return nil, err
	}
	return emit(prog, labels)
}

// Addresses returns the code address of every label in prog.
func Addresses(prog []Instr) (map[string]int, error) {
	return layout(prog)
}

func layout(prog []Instr) (map[string]int, error) {
	labels := make(map[string]int)
	address := 0
	for _, i := range prog {
		if i.IsLabel() {
			if _, exists := labels[i.Label]; exists {
				return nil, fmt.Errorf("%w %q", ErrDuplicateLabel, i.Label)
			}
			labels[i.Label] = address
			continue
		}
		if redundant(i) {
			continue
		}
		address++
	}
	if address > tam.CodeSize {
		return nil, fmt.Errorf("%w: %d instructions, limit %d", ErrProgramTooLarge, address, tam.CodeSize)
	}
	return labels, nil
}

func emit(prog []Instr, labels map[string]int) ([]tam.Instruction, error) {
	out := make([]tam.Instruction, 0, len(prog))
	for _, i := range prog {
		if i.IsLabel() || redundant(i) {
			continue
		}
		ins := i.Instruction
		if i.Symbolic() {
			addr, ok := labels[i.Target]
			if !ok {
				return nil, fmt.Errorf("%s: %w %q", i, ErrUndefinedLabel, i.Target)
			}
			ins.R = tam.CB
			ins.D = addr
		}
		if err := ins.Validate(); err != nil {
			return nil, fmt.Errorf("instruction %d: %w", len(out), err)
		}
		out = append(out, ins)
	}
	return out, nil
}
