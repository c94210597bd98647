package compiler

// PruneUnreachable returns a copy of prog without the functions that cannot
// be reached from main. printInt is always kept because it is exported by
// every module. A program without main is returned unchanged.
func PruneUnreachable(prog *Program) *Program {
	funcs := make(map[string]*FuncDec, len(prog.Funcs))
	for _, f := range prog.Funcs {
		funcs[f.Name] = f
	}
	if _, ok := funcs["main"]; !ok {
		return prog
	}

	reachable := make(map[string]bool)
	var worklist []string
	addReachable := func(name string) {
		if !reachable[name] {
			reachable[name] = true
			worklist = append(worklist, name)
		}
	}
	addReachable("main")
	addReachable(BuiltinPrintInt)

	for len(worklist) > 0 {
		curr := worklist[0]
		worklist = worklist[1:]

		f, exists := funcs[curr]
		if !exists || f.Body == nil {
			// print or an undefined name; codegen reports the latter
			continue
		}
		for call := range findCalls(f.Body) {
			addReachable(call)
		}
	}

	kept := make([]*FuncDec, 0, len(prog.Funcs))
	for _, f := range prog.Funcs {
		if reachable[f.Name] {
			kept = append(kept, f)
		}
	}
	return &Program{Pos: prog.Pos, Funcs: kept}
}

// findCalls collects the names of every function called under n.
func findCalls(n Node) map[string]bool {
	calls := make(map[string]bool)
	Inspect(n, func(n Node) bool {
		if c, ok := n.(*FuncCall); ok {
			calls[c.Name] = true
		}
		return true
	})
	return calls
}
