// Package optimize rewrites a checked tree: constant folding, loop-invariant
// hoisting and dead-code elimination, always in the order
// fold, hoist, fold, eliminate.
//
// Every pass builds a new tree; the input is never modified.
package optimize

import (
	"tamc/pkg/ast"
	"tamc/pkg/diag"
)

// Config holds the folding knobs.
type Config struct {
	// FoldThreshold: folding passes repeat while the last pass folded more
	// nodes than this.
	FoldThreshold int
	// FoldCap bounds the folds done by one fixed-point run.
	FoldCap int
}

func DefaultConfig() Config {
	return Config{FoldThreshold: 0, FoldCap: 10000}
}

// Stats counts what the passes did.
type Stats struct {
	Folds      int
	Hoisted    int
	Eliminated int
}

// Optimize runs the full pipeline. The returned errors are overflows found
// while folding; the tree is still valid, with the overflowing nodes left in
// place.
func Optimize(prog *ast.Program, cfg Config) (*ast.Program, Stats, diag.ErrorList) {
	if cfg.FoldCap <= 0 {
		cfg.FoldCap = DefaultConfig().FoldCap
	}
	f := newFolder(cfg)
	h := newHoister()
	d := newEliminator()

	prog = f.run(prog)
	prog = h.run(prog)
	prog = f.run(prog)
	prog = d.run(prog)

	return prog, Stats{Folds: f.total, Hoisted: h.hoisted, Eliminated: d.removed}, f.errs
}

// Fold runs constant folding to a fixed point and reports the number of
// folds.
func Fold(prog *ast.Program, cfg Config) (*ast.Program, int, diag.ErrorList) {
	if cfg.FoldCap <= 0 {
		cfg.FoldCap = DefaultConfig().FoldCap
	}
	f := newFolder(cfg)
	prog = f.run(prog)
	return prog, f.total, f.errs
}

// Hoist moves loop-invariant expressions out of loops and reports how many
// constants it introduced.
func Hoist(prog *ast.Program) (*ast.Program, int) {
	h := newHoister()
	prog = h.run(prog)
	return prog, h.hoisted
}

// Eliminate removes statically dead branches and loop guards.
func Eliminate(prog *ast.Program) (*ast.Program, int) {
	d := newEliminator()
	prog = d.run(prog)
	return prog, d.removed
}
