package main

import (
	"bytes"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"tamc/pkg/asm"
	"tamc/pkg/tam"
)

func main() {
	inPath := flag.String("in", "", "input TAM assembly file path")
	outPath := flag.String("out", "", "output object file path (default: input with .tam extension)")
	runProgram := flag.Bool("run", false, "run the assembled object file on the TAM interpreter")
	runBinPath := flag.String("run-bin", "", "run an existing object file on the TAM interpreter")
	maxSteps := flag.Int("max-steps", 0, "stop after this many instructions (0: no limit)")
	flag.Parse()

	if *runProgram && *runBinPath != "" {
		fmt.Fprintln(os.Stderr, "use either -run or -run-bin, not both")
		os.Exit(2)
	}

	assembledOutput := ""
	if *inPath != "" {
		source, err := os.ReadFile(*inPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to read input file %q: %v\n", *inPath, err)
			os.Exit(1)
		}

		code, _, err := asm.Assemble(string(source))
		if err != nil {
			fmt.Fprintf(os.Stderr, "assembly failed: %v\n", err)
			os.Exit(1)
		}

		output := *outPath
		if output == "" {
			output = defaultOutputPath(*inPath)
		}

		if err := writeObject(output, code); err != nil {
			fmt.Fprintf(os.Stderr, "failed to write object file %q: %v\n", output, err)
			os.Exit(1)
		}

		fmt.Printf("assembled %d instructions -> %s\n", len(code), output)
		assembledOutput = output
	}

	if *inPath == "" && *runBinPath == "" && !*runProgram {
		fmt.Fprintln(os.Stderr, "nothing to do: provide -in to assemble, -run to run assembled output, or -run-bin <file> to run an existing object file")
		flag.Usage()
		os.Exit(2)
	}

	runTarget := ""
	switch {
	case *runBinPath != "":
		runTarget = *runBinPath
	case *runProgram:
		if assembledOutput == "" {
			fmt.Fprintln(os.Stderr, "-run requires -in, or use -run-bin <file>")
			os.Exit(2)
		}
		runTarget = assembledOutput
	default:
		return
	}

	m, err := runObject(runTarget, os.Stdin, os.Stdout, *maxSteps)
	if err != nil {
		fmt.Fprintf(os.Stderr, "run failed for %q: %v\n", runTarget, err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stderr, "\nrun complete (%s): CP=%d ST=%d steps=%d\n", runTarget, m.CP, m.ST, m.Steps)
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

func readObject(path string) ([]tam.Instruction, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return tam.ReadObject(bytes.NewReader(data))
}

func runObject(path string, in io.Reader, out io.Writer, maxSteps int) (*tam.Machine, error) {
	prog, err := readObject(path)
	if err != nil {
		return nil, err
	}
	if len(prog) > tam.CodeSize {
		return nil, fmt.Errorf("program too large for code store: %d instructions > %d", len(prog), tam.CodeSize)
	}

	m := tam.NewMachine(prog)
	m.Input = in
	m.Output = out
	m.MaxSteps = maxSteps
	return m, m.Run()
}
