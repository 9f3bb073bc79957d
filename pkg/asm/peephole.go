package asm

import (
	"github.com/JohnCGriffin/overflow"

	"tamc/pkg/tam"
)

// Thread short-circuits jumps to jumps. A label that is immediately followed,
// possibly through further labels, by an unconditional symbolic JUMP is
// redirected to that jump's target, transitively. Every symbolic target is
// rewritten to the end of its chain, the redirected labels are dropped, and
// so is the jump after them when nothing can reach it any more.
func Thread(prog []Instr) []Instr {
	redirect := make(map[string]string)
	for k, i := range prog {
		if !i.IsLabel() {
			continue
		}
		j := k + 1
		for j < len(prog) && prog[j].IsLabel() {
			j++
		}
		if j < len(prog) && prog[j].Op == tam.OpJUMP && prog[j].Symbolic() {
			redirect[i.Label] = prog[j].Target
		}
	}
	if len(redirect) == 0 {
		return prog
	}

	final := func(l string) string {
		seen := make(map[string]bool)
		for {
			next, ok := redirect[l]
			if !ok || seen[l] {
				return l
			}
			seen[l] = true
			l = next
		}
	}

	out := make([]Instr, 0, len(prog))
	dropped := false // the previous instructions were only dropped labels
	for _, i := range prog {
		if i.IsLabel() {
			if final(i.Label) != i.Label {
				dropped = true
				continue
			}
			dropped = false
			out = append(out, i)
			continue
		}
		if i.Symbolic() {
			i.Target = final(i.Target)
		}
		if dropped && i.Op == tam.OpJUMP && len(out) > 0 && transfers(out[len(out)-1]) {
			dropped = false
			continue
		}
		dropped = false
		out = append(out, i)
	}
	return out
}

// transfers reports whether control never falls through i.
func transfers(i Instr) bool {
	switch i.Op {
	case tam.OpJUMP, tam.OpJUMPI, tam.OpRETURN, tam.OpHALT:
		return !i.IsLabel()
	}
	return false
}

var combinable = map[int]func(a, b int16) (int16, bool){
	tam.PrimAdd:  overflow.Add16,
	tam.PrimMult: overflow.Mul16,
}

// Combine folds LOADL x; LOADL y; CALL add (or mult) into LOADL of the
// result when it is representable. Matches cascade, so a chain of literal
// additions becomes one literal.
func Combine(prog []Instr) []Instr {
	out := make([]Instr, 0, len(prog))
	for _, i := range prog {
		out = append(out, i)
		for len(out) >= 3 {
			n := len(out)
			v, ok := combine(out[n-3], out[n-2], out[n-1])
			if !ok {
				break
			}
			out = append(out[:n-3], LoadL(v))
		}
	}
	return out
}

func combine(a, b, call Instr) (int, bool) {
	if !literal(a) || !literal(b) || call.IsLabel() || call.Symbolic() ||
		call.Op != tam.OpCALL || call.R != tam.PB {
		return 0, false
	}
	f, ok := combinable[call.D]
	if !ok {
		return 0, false
	}
	v, ok := f(int16(a.D), int16(b.D))
	return int(v), ok
}

func literal(i Instr) bool {
	return !i.IsLabel() && i.Op == tam.OpLOADL && i.D >= tam.MinD && i.D <= tam.MaxD
}
