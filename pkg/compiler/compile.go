package compiler

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"watc/pkg/asm"
	"watc/pkg/vm"
)

// assemble turns generated WAT into an executable module.
var assemble = asm.Assemble

// Options controls a compilation.
type Options struct {
	// Optimize enables constant folding and dead-branch elimination.
	Optimize bool
	// TypeCheck runs the type checker and reports its diagnostics.
	TypeCheck bool
	// TypeCheckOnly stops after type checking.
	TypeCheckOnly bool
	// Prune drops functions that main never reaches.
	Prune bool
	// BaseDir resolves #include files not among the inputs.
	BaseDir string
	// Stderr receives stage errors and diagnostics. If nil, os.Stderr is used.
	Stderr io.Writer
}

func (o Options) stderr() io.Writer {
	if o.Stderr != nil {
		return o.Stderr
	}
	return os.Stderr
}

// Result holds the output of every stage that ran.
type Result struct {
	Source      string
	Tokens      []Token
	Program     *Program
	Diagnostics []Diagnostic
	Listing     *Listing
	WAT         string
	Module      *vm.Module
}

// Compile runs the whole pipeline on files: preprocess, lex, parse, type
// check, generate and assemble. On error the returned Result holds the
// stages that completed.
func Compile(files []SourceFile, opts Options) (*Result, error) {
	log := opts.stderr()
	res := &Result{}

	src, err := Preprocess(files, opts.BaseDir)
	if err != nil {
		fmt.Fprintln(log, "preprocess error:", err)
		return res, err
	}
	res.Source = src

	res.Tokens, err = Lex(src)
	if err != nil {
		fmt.Fprintln(log, "lex error:", err)
		return res, err
	}

	res.Program, err = Parse(res.Tokens, src)
	if err != nil {
		fmt.Fprintln(log, "parse error:", err)
		return res, err
	}

	if opts.TypeCheck || opts.TypeCheckOnly {
		res.Diagnostics = TypeCheck(res.Program)
		for _, d := range res.Diagnostics {
			fmt.Fprintln(log, "type error:", d)
		}
		if opts.TypeCheckOnly {
			return res, nil
		}
	}

	prog := res.Program
	if opts.Prune {
		prog = PruneUnreachable(prog)
	}

	res.Listing, err = Lower(prog, opts)
	if err != nil {
		fmt.Fprintln(log, "codegen error:", err)
		return res, err
	}
	res.WAT = res.Listing.String()

	res.Module, err = assemble(res.WAT)
	if err != nil {
		fmt.Fprintln(log, "assembly error:", err)
		return res, err
	}
	return res, nil
}

// CompileSource compiles a single in-memory source.
func CompileSource(src string, opts Options) (*Result, error) {
	return Compile([]SourceFile{{Name: "main.c", Text: src}}, opts)
}

// LoadSources reads paths concurrently and returns them in the given order.
func LoadSources(paths []string) ([]SourceFile, error) {
	files := make([]SourceFile, len(paths))
	var g errgroup.Group
	for i, p := range paths {
		g.Go(func() error {
			data, err := os.ReadFile(p)
			if err != nil {
				return err
			}
			files[i] = SourceFile{Name: filepath.Base(p), Text: string(data)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return files, nil
}
