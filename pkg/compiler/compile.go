package compiler

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"tamc/pkg/asm"
	"tamc/pkg/ast"
	"tamc/pkg/checker"
	"tamc/pkg/codegen"
	"tamc/pkg/optimize"
	"tamc/pkg/tam"
)

// Options selects the passes run by Compile.
type Options struct {
	// Optimize runs fold, hoist, fold and dead-code elimination between
	// analysis and code generation.
	Optimize bool
	// Peephole threads jumps and combines literal arithmetic in the IR.
	Peephole bool

	FoldThreshold int
	FoldCap       int

	// Logger receives one Debug entry per pass. Nil logs warnings only to
	// stderr.
	Logger *logrus.Logger
}

func DefaultOptions() Options {
	cfg := optimize.DefaultConfig()
	return Options{
		Optimize:      true,
		Peephole:      true,
		FoldThreshold: cfg.FoldThreshold,
		FoldCap:       cfg.FoldCap,
	}
}

// Result is a compiled program with what the passes produced on the way.
type Result struct {
	// Tree is the tree code was generated from: the checked input, or the
	// optimizer's rewrite of it.
	Tree  *ast.Program
	IR    []asm.Instr
	Code  []tam.Instruction
	Stats optimize.Stats
}

func (o Options) logger() *logrus.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	l := logrus.New()
	l.SetLevel(logrus.WarnLevel)
	return l
}

// Compile checks, optimizes and translates prog. Semantic errors, including
// overflows found while folding, are returned as a checker.ErrorList and
// suppress code generation. prog is annotated in place by the checker.
func Compile(prog *ast.Program, opts Options) (*Result, error) {
	log := opts.logger()

	errs := checker.Check(prog)
	log.WithFields(logrus.Fields{"pass": "check", "errors": len(errs)}).Debug("pass done")
	if len(errs) != 0 {
		return nil, errs
	}

	res := &Result{Tree: prog}
	if opts.Optimize {
		tree, stats, ferrs := optimize.Optimize(prog, optimize.Config{
			FoldThreshold: opts.FoldThreshold,
			FoldCap:       opts.FoldCap,
		})
		log.WithFields(logrus.Fields{
			"pass":       "optimize",
			"folds":      stats.Folds,
			"hoisted":    stats.Hoisted,
			"eliminated": stats.Eliminated,
			"errors":     len(ferrs),
		}).Debug("pass done")
		if len(ferrs) != 0 {
			return nil, ferrs
		}
		res.Tree, res.Stats = tree, stats
	}

	ir, err := codegen.Generate(res.Tree)
	if err != nil {
		return nil, errors.Wrap(err, "code generation")
	}
	log.WithFields(logrus.Fields{"pass": "generate", "instructions": len(ir)}).Debug("pass done")

	if opts.Peephole {
		before := len(ir)
		ir = asm.Combine(asm.Thread(ir))
		log.WithFields(logrus.Fields{"pass": "peephole", "removed": before - len(ir)}).Debug("pass done")
	}
	res.IR = ir

	code, err := asm.Resolve(ir)
	if err != nil {
		return nil, errors.Wrap(err, "label resolution")
	}
	log.WithFields(logrus.Fields{"pass": "resolve", "instructions": len(code)}).Debug("pass done")
	res.Code = code
	return res, nil
}
