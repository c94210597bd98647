package main

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"watc/pkg/compiler"
	"watc/pkg/vm"
	"watc/pkg/wasm"
)

var (
	outputTypes = []string{"all", "lexer", "parser", "preprocessor", "wat", "wasm"}
	verifyTypes = []string{"lexer", "parser", "xml", "wat"}
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// config holds the parsed command line.
type config struct {
	files     []string
	output    string
	outType   string
	verify    string
	optimize  bool
	typeCheck bool
	checkOnly bool
	prune     bool
	exec      bool
	snapshot  string
	maxSteps  int
}

func parseArgs(args []string, stderr io.Writer) (*config, error) {
	fs := flag.NewFlagSet("watc", flag.ContinueOnError)
	fs.SetOutput(stderr)
	cfg := &config{}
	fs.StringVar(&cfg.output, "o", "", "name of the output file")
	fs.StringVar(&cfg.outType, "t", "all", "output type: "+strings.Join(outputTypes, "|"))
	fs.StringVar(&cfg.verify, "v", "", "print a stage for inspection: "+strings.Join(verifyTypes, "|"))
	fs.BoolVar(&cfg.optimize, "op", false, "enable constant folding and dead-branch elimination")
	fs.BoolVar(&cfg.typeCheck, "tc", false, "run the type checker")
	fs.BoolVar(&cfg.checkOnly, "tco", false, "only run the type checker")
	fs.BoolVar(&cfg.prune, "prune", false, "drop functions main never calls")
	fs.BoolVar(&cfg.exec, "run", false, "execute main on the built-in VM")
	fs.StringVar(&cfg.snapshot, "snapshot", "", "write the VM state to this file after -run")
	fs.IntVar(&cfg.maxSteps, "max-steps", 50_000_000, "instruction budget for -run (0 for none)")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: watc [flags] FILE.c...")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if !contains(outputTypes, cfg.outType) {
		return nil, fmt.Errorf("unknown output type %q", cfg.outType)
	}
	if cfg.verify != "" && !contains(verifyTypes, cfg.verify) {
		return nil, fmt.Errorf("unknown verify mode %q", cfg.verify)
	}
	if cfg.snapshot != "" && !cfg.exec {
		return nil, errors.New("-snapshot requires -run")
	}
	cfg.files = fs.Args()
	if len(cfg.files) == 0 {
		fs.Usage()
		return nil, errors.New("no input files")
	}
	for _, f := range cfg.files {
		if filepath.Ext(f) != ".c" {
			return nil, fmt.Errorf("%s: only .c files are accepted", f)
		}
		if info, err := os.Stat(f); err != nil || info.IsDir() {
			return nil, fmt.Errorf("file %s doesn't exist", f)
		}
	}
	return cfg, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func run(args []string, stdout, stderr io.Writer) int {
	cfg, err := parseArgs(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintln(stderr, "watc:", err)
		return 2
	}

	files, err := compiler.LoadSources(cfg.files)
	if err != nil {
		fmt.Fprintln(stderr, "read error:", err)
		return 1
	}

	res, err := compiler.Compile(files, compiler.Options{
		Optimize:      cfg.optimize,
		TypeCheck:     cfg.typeCheck,
		TypeCheckOnly: cfg.checkOnly,
		Prune:         cfg.prune,
		BaseDir:       filepath.Dir(cfg.files[0]),
		Stderr:        stderr,
	})
	if err != nil {
		// Compile reports stage errors itself.
		return 1
	}
	if cfg.checkOnly {
		if len(res.Diagnostics) == 0 {
			fmt.Fprintln(stdout, "No type errors")
			return 0
		}
		return 1
	}

	if err := writeOutput(cfg, res, stdout); err != nil {
		fmt.Fprintln(stderr, "output error:", err)
		return 1
	}
	if err := verify(cfg, res, stdout); err != nil {
		fmt.Fprintln(stderr, "output error:", err)
		return 1
	}
	if cfg.exec {
		if err := execute(cfg, res.Module, stdout); err != nil {
			fmt.Fprintln(stderr, "run error:", err)
			return 1
		}
	}
	return 0
}

// writeOutput writes the artifact selected by -t.
func writeOutput(cfg *config, res *compiler.Result, stdout io.Writer) error {
	switch cfg.outType {
	case "all", "wat":
		return os.WriteFile(outputPath(cfg.output, "out.wat"), []byte(res.WAT), 0o644)
	case "lexer":
		return os.WriteFile(outputPath(cfg.output, "tokens.txt"), []byte(tokenListing(res.Tokens)), 0o644)
	case "parser":
		var buf bytes.Buffer
		if err := compiler.WriteXML(&buf, res.Program); err != nil {
			return err
		}
		return os.WriteFile(outputPath(cfg.output, "parser.xml"), buf.Bytes(), 0o644)
	case "preprocessor":
		return os.WriteFile(outputPath(cfg.output, "preprocessed.c"), []byte(res.Source), 0o644)
	case "wasm":
		wasmPath := outputPath(cfg.output, "out.wasm")
		watPath := strings.TrimSuffix(wasmPath, filepath.Ext(wasmPath)) + ".wat"
		if err := os.WriteFile(watPath, []byte(res.WAT), 0o644); err != nil {
			return err
		}
		bin, err := wasm.Encode(res.Module)
		if err != nil {
			return err
		}
		if err := os.WriteFile(wasmPath, bin, 0o644); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "encoded %d bytes -> %s\n", len(bin), wasmPath)
	}
	return nil
}

func outputPath(output, def string) string {
	if output == "" {
		return def
	}
	return output
}

func tokenListing(tokens []compiler.Token) string {
	var sb strings.Builder
	for _, tok := range tokens {
		sb.WriteString(tok.String())
		sb.WriteString("\n")
	}
	return sb.String()
}

// verify prints the stage selected by -v.
func verify(cfg *config, res *compiler.Result, stdout io.Writer) error {
	switch cfg.verify {
	case "lexer":
		_, err := io.WriteString(stdout, tokenListing(res.Tokens))
		return err
	case "parser":
		return compiler.DumpTree(stdout, res.Program)
	case "xml":
		return compiler.WriteXML(stdout, res.Program)
	case "wat":
		_, err := io.WriteString(stdout, res.WAT)
		return err
	}
	return nil
}

// execute runs main and reports its result the way the browser loader does.
func execute(cfg *config, mod *vm.Module, stdout io.Writer) error {
	machine := vm.New(mod)
	machine.Output = stdout
	machine.MaxSteps = cfg.maxSteps
	ret, err := machine.Call("main")
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Program exit code: %d\n", ret)
	if cfg.snapshot != "" {
		if err := machine.SnapshotToFile(cfg.snapshot); err != nil {
			return err
		}
	}
	return nil
}
