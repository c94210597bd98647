package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"watc/pkg/compiler"
)

const testSource = `int square(int n) {
    return n * n;
}

int main() {
    int x = 10;
    int y = square(x) + 2;
    print(y);
    return y;
}
`

func main() {
	optimize := flag.Bool("op", false, "enable optimization")
	flag.Parse()

	files := []compiler.SourceFile{{Name: "main.c", Text: testSource}}
	baseDir := "."
	if flag.NArg() > 0 {
		var err error
		files, err = compiler.LoadSources(flag.Args())
		if err != nil {
			fmt.Fprintln(os.Stderr, "read error:", err)
			os.Exit(1)
		}
		baseDir = filepath.Dir(flag.Arg(0))
	}

	// Compile logs the failing stage itself; print whatever completed.
	res, err := compiler.Compile(files, compiler.Options{
		Optimize:  *optimize,
		TypeCheck: true,
		BaseDir:   baseDir,
	})

	if res.Source != "" {
		fmt.Printf("Source:\n%s\n", res.Source)
	}

	if res.Tokens != nil {
		fmt.Printf("Tokens (%d)\n", len(res.Tokens))
		for _, tok := range res.Tokens {
			fmt.Println(" ", tok)
		}
		fmt.Println()
	}

	if res.Program != nil {
		fmt.Println("AST")
		if err := compiler.DumpTree(os.Stdout, res.Program); err != nil {
			fmt.Fprintln(os.Stderr, "dump error:", err)
			os.Exit(1)
		}
		fmt.Println()
	}

	if len(res.Diagnostics) > 0 {
		fmt.Printf("Type Errors (%d)\n", len(res.Diagnostics))
		for _, d := range res.Diagnostics {
			fmt.Println(" ", d)
		}
		fmt.Println()
	}

	if res.Listing != nil {
		fmt.Println("Generated WAT")
		fmt.Print(res.WAT)
		fmt.Println()
		for _, frame := range res.Listing.Frames {
			fmt.Print(frame)
		}
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
