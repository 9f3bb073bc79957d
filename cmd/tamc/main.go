// Command tamc compiles a Triangle program, given as the parser's JSON tree,
// into a TAM object file.
package main

import (
	"bytes"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"tamc/pkg/asm"
	"tamc/pkg/ast"
	"tamc/pkg/astjson"
	"tamc/pkg/compiler"
	"tamc/pkg/tam"
)

func main() {
	inPath := flag.String("in", "", "input program: JSON syntax tree, - for stdin")
	outPath := flag.String("out", "", "output object file path (default: input with .tam extension)")
	showAsm := flag.Bool("show-asm", false, "print the symbolic listing before label resolution")
	runProgram := flag.Bool("run", false, "run the compiled program on the TAM interpreter")
	optimize := flag.Bool("O", true, "run the tree optimizer and the peephole passes")
	verbose := flag.Bool("v", false, "log each compiler pass")
	flag.Parse()

	if *inPath == "" {
		fmt.Fprintln(os.Stderr, "nothing to do: provide -in <file.json>")
		flag.Usage()
		os.Exit(2)
	}

	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetLevel(logrus.WarnLevel)
	if *verbose {
		log.SetLevel(logrus.DebugLevel)
	}

	prog, err := readProgram(*inPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read program %q: %v\n", *inPath, err)
		os.Exit(1)
	}

	opts := compiler.Options{Logger: log}
	if *optimize {
		opts = compiler.DefaultOptions()
		opts.Logger = log
	}
	res, err := compiler.Compile(prog, opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "compilation failed: %v\n", err)
		os.Exit(1)
	}

	if *showAsm {
		fmt.Print(asm.Listing(res.IR))
	}

	output := *outPath
	if output == "" && *inPath != "-" {
		output = defaultOutputPath(*inPath)
	}
	if output != "" {
		if err := writeObject(output, res.Code); err != nil {
			fmt.Fprintf(os.Stderr, "failed to write object file %q: %v\n", output, err)
			os.Exit(1)
		}
		log.WithFields(logrus.Fields{"instructions": len(res.Code), "path": output}).Info("object written")
	}

	if *runProgram {
		m := tam.NewMachine(res.Code)
		if err := m.Run(); err != nil {
			fmt.Fprintf(os.Stderr, "run failed: %v\n", err)
			os.Exit(1)
		}
	}
}

func readProgram(path string) (*ast.Program, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		r = bytes.NewReader(data)
	}
	return astjson.Read(r)
}

func defaultOutputPath(inPath string) string {
	ext := filepath.Ext(inPath)
	if ext == "" {
		return inPath + ".tam"
	}
	return strings.TrimSuffix(inPath, ext) + ".tam"
}

func writeObject(path string, prog []tam.Instruction) error {
	var buf bytes.Buffer
	if err := tam.WriteObject(&buf, prog); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}
