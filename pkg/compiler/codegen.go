package compiler

import (
	"fmt"
	"strings"
)

// CodeGen lowers a Program to WebAssembly text format.
//
// Local variables live in a stack frame in linear memory. Each function
// reserves its frame on entry by bumping the in-use counter at address 0 and
// keeps the frame base in one extra local. Parameters arrive in locals and
// are mirrored into the frame.
type CodeGen struct {
	prog      *Program
	opts      Options
	frame     *FrameTable
	nextLabel int

	fbLocal   int // local index holding the frame base
	addrTaken map[string]bool

	// optimize is the current folding mode. It starts as opts.Optimize for
	// each function and is switched off inside loops and comparisons.
	optimize    bool
	loopDepth   int
	branchDepth int

	blocks    []string // every open block and loop label
	breaks    []string
	continues []string

	out    *[]*SExpr // forms emitted by the statement being lowered
	frames []string
}

// Listing is the result of lowering a program.
type Listing struct {
	Module *SExpr
	// Frames holds the frame table dump of each function, in module order.
	Frames []string
}

func (l *Listing) String() string { return l.Module.String() }

func newCodeGen(prog *Program, opts Options) *CodeGen {
	return &CodeGen{
		prog:  prog,
		opts:  opts,
		frame: NewFrameTable(),
	}
}

// Generate lowers prog and renders the module text.
func Generate(prog *Program, opts Options) (string, error) {
	l, err := Lower(prog, opts)
	if err != nil {
		return "", err
	}
	return l.String(), nil
}

// Lower lowers prog to a module tree.
func Lower(prog *Program, opts Options) (*Listing, error) {
	cg := newCodeGen(prog, opts)

	mod := &SExpr{Head: "module", Block: true}
	mod.Args = append(mod.Args, moduleHeader()...)

	seen := make(map[string]bool, len(prog.Funcs))
	for _, fn := range prog.Funcs {
		if fn.Name == BuiltinPrint {
			return nil, newError(UnsupportedConstruct, fn, "%s is provided by the host and cannot be defined", fn.Name)
		}
		if seen[fn.Name] {
			return nil, newError(UnsupportedConstruct, fn, "redefinition of function %q", fn.Name)
		}
		seen[fn.Name] = true
		sym := Mangle(fn.Name)
		mod.Args = append(mod.Args, Sf(`export %q (func $%s)`, sym, sym))
	}

	// Function index 0 is the imported print.
	for i, fn := range prog.Funcs {
		f, err := cg.genFunction(fn, i+1)
		if err != nil {
			return nil, err
		}
		mod.Args = append(mod.Args, f)
	}
	return &Listing{Module: mod, Frames: cg.frames}, nil
}

//  Emission

func (cg *CodeGen) emit(forms ...*SExpr) {
	*cg.out = append(*cg.out, forms...)
}

// capture runs body with a fresh output list and returns what it emitted.
func (cg *CodeGen) capture(body func() error) ([]*SExpr, error) {
	var forms []*SExpr
	saved := cg.out
	cg.out = &forms
	defer func() { cg.out = saved }()
	err := body()
	return forms, err
}

func (cg *CodeGen) newLabel() string {
	l := fmt.Sprintf("$label$%d", cg.nextLabel)
	cg.nextLabel++
	return l
}

// push appends label to stack and returns the matching pop.
func push(stack *[]string, label string) func() {
	*stack = append(*stack, label)
	return func() { *stack = (*stack)[:len(*stack)-1] }
}

// block emits  (kind label body...). label is open while body runs.
func (cg *CodeGen) block(kind, label string, body func() error) error {
	pop := push(&cg.blocks, label)
	defer pop()
	forms, err := cg.capture(body)
	if err != nil {
		return err
	}
	cg.emit(&SExpr{Head: kind + " " + label, Args: forms, Block: true})
	return nil
}

// suspendOptimization turns folding off until the returned func runs.
func (cg *CodeGen) suspendOptimization() func() {
	saved := cg.optimize
	cg.optimize = false
	return func() { cg.optimize = saved }
}

//  Functions

// frameSize is the number of frame bytes fn needs: every parameter plus
// every declaration in the body, whether or not it ends up being lowered.
func frameSize(fn *FuncDec) int {
	size := 0
	for _, p := range fn.Params {
		size += p.Type.Size()
	}
	if fn.Body != nil {
		Inspect(fn.Body, func(n Node) bool {
			if d, ok := n.(*DeclStmt); ok {
				size += d.Type.Size()
			}
			return true
		})
	}
	return size
}

// addressTaken returns the names that appear as the operand of & in fn.
func addressTaken(fn *FuncDec) map[string]bool {
	names := make(map[string]bool)
	if fn.Body == nil {
		return names
	}
	Inspect(fn.Body, func(n Node) bool {
		if u, ok := n.(*UnaryOp); ok && u.Op == UnaryAddr {
			if c, ok := u.X.(*Constant); ok && c.Kind == ConstID {
				names[c.Value] = true
			}
		}
		return true
	})
	return names
}

func (cg *CodeGen) prologue(size int) []*SExpr {
	counter := S("i32.load", i32Const(stackCounterAddr))
	return []*SExpr{
		S("i32.store", i32Const(stackCounterAddr), S("i32.add", counter, i32Const(int32(size)))),
		S(fmt.Sprintf("set_local $%d", cg.fbLocal),
			S("i32.sub", i32Const(stackTop), S("i32.load", i32Const(stackCounterAddr)))),
	}
}

func (cg *CodeGen) epilogue(size int) *SExpr {
	counter := S("i32.load", i32Const(stackCounterAddr))
	return S("i32.store", i32Const(stackCounterAddr), S("i32.sub", counter, i32Const(int32(size))))
}

// emitReturn leaves value on the stack, releases the frame and returns.
func (cg *CodeGen) emitReturn(value *SExpr) {
	cg.emit(value)
	if size := cg.frame.Size(); size > 0 {
		cg.emit(cg.epilogue(size))
	}
	cg.emit(S("return"))
}

func (cg *CodeGen) genFunction(fn *FuncDec, index int) (*SExpr, error) {
	cg.frame.Reset(frameSize(fn))
	cg.addrTaken = addressTaken(fn)
	cg.optimize = cg.opts.Optimize
	cg.loopDepth, cg.branchDepth = 0, 0
	cg.blocks, cg.breaks, cg.continues = nil, nil, nil
	cg.fbLocal = len(fn.Params)

	var head strings.Builder
	fmt.Fprintf(&head, "func $%s (; %d ;)", Mangle(fn.Name), index)
	for i := range fn.Params {
		fmt.Fprintf(&head, " (param $%d i32)", i)
	}
	head.WriteString(" (result i32)")

	body, err := cg.capture(func() error {
		cg.emit(Sf("local $%d i32", cg.fbLocal))
		if size := cg.frame.Size(); size > 0 {
			cg.emit(cg.prologue(size)...)
		}
		for i, p := range fn.Params {
			v := cg.frame.Declare(p.Name, p.Type, i)
			v.AddressTaken = cg.addrTaken[p.Name]
			v.ParamBacked = true
			cg.emit(S(memArg(storeOp(v.Type), v.Offset), getLocal(cg.fbLocal), getLocal(i)))
		}
		if fn.Body != nil {
			if err := cg.genStmts(fn.Body.Stmts); err != nil {
				return err
			}
		}
		// Falling off the end returns 0.
		cg.emitReturn(i32Const(0))
		return nil
	})
	if err != nil {
		return nil, err
	}

	cg.frames = append(cg.frames, fmt.Sprintf("%s\n%s", fn.Name, cg.frame))
	return &SExpr{Head: head.String(), Args: body, Block: true}, nil
}

//  Statements

func (cg *CodeGen) genStmts(stmts []Stmt) error {
	for _, s := range stmts {
		if err := cg.genStmt(s); err != nil {
			return err
		}
	}
	return nil
}

// genScope lowers list in a new lexical scope.
func (cg *CodeGen) genScope(list *StmtList) error {
	if list == nil {
		return nil
	}
	cg.frame.EnterScope()
	defer cg.frame.ExitScope()
	return cg.genStmts(list.Stmts)
}

func (cg *CodeGen) genStmt(s Stmt) error {
	switch n := s.(type) {
	case *DeclStmt:
		return cg.genDecl(n)
	case *AssignmentStmt:
		return cg.genAssignment(n)
	case *StmtList:
		return cg.genScope(n)
	case *IfStmt:
		return cg.genIf(n)
	case *WhileStmt:
		return cg.genWhile(n)
	case *ForStmt:
		return cg.genFor(n)
	case *RetStmt:
		value := i32Const(0)
		if n.Value != nil {
			var err error
			if value, err = cg.lowerExpr(n.Value, nil); err != nil {
				return err
			}
		}
		cg.emitReturn(value)
		return nil
	case *BreakStmt:
		if len(cg.breaks) == 0 {
			return newError(LoopControlOutsideLoop, n, "break outside of a loop")
		}
		cg.emit(Sf("br %s", cg.breaks[len(cg.breaks)-1]))
		return nil
	case *ContinueStmt:
		if len(cg.continues) == 0 {
			return newError(LoopControlOutsideLoop, n, "continue outside of a loop")
		}
		cg.emit(Sf("br %s", cg.continues[len(cg.continues)-1]))
		return nil
	case *ExprStmt:
		return cg.genExprStmt(n)
	}
	return newError(UnsupportedConstruct, s, "cannot lower statement %s", s)
}

func (cg *CodeGen) lookup(n Node, name string) (*FrameVar, error) {
	v, err := cg.frame.Lookup(name)
	if err != nil {
		return nil, newError(UnknownSymbol, n, "undeclared variable %q", name)
	}
	return v, nil
}

func (cg *CodeGen) genDecl(n *DeclStmt) error {
	if n.ArraySize > 0 {
		return newError(UnsupportedConstruct, n, "array %s[%d] is not supported", n.Name, n.ArraySize)
	}

	init := n.Init
	if init == nil {
		init = &Constant{Pos: n.Pos, Kind: ConstInt, Value: "0"}
	}
	for i := 0; i < n.Derefs; i++ {
		init = &UnaryOp{Pos: n.Pos, Op: UnaryDeref, X: init}
	}

	v := cg.frame.Declare(n.Name, n.Type, -1)
	v.AddressTaken = cg.addrTaken[n.Name]
	v.BranchDepth = cg.branchDepth
	v.Foldable = cg.optimize && cg.loopDepth == 0 && !v.AddressTaken
	return cg.assign(n, v, AssignSet, init)
}

func (cg *CodeGen) genAssignment(n *AssignmentStmt) error {
	if n.Index != nil {
		return newError(UnsupportedConstruct, n, "array element assignment to %s is not supported", n.Name)
	}
	v, err := cg.lookup(n, n.Name)
	if err != nil {
		return err
	}
	if n.Derefs > 0 {
		return cg.assignThrough(n, v, n.Derefs, n.Op, n.Value)
	}
	return cg.assign(n, v, n.Op, n.Value)
}

// touch clears v's cached value when the current assignment may not run
// exactly once in program order.
func (cg *CodeGen) touch(v *FrameVar) {
	if cg.loopDepth > 0 || cg.branchDepth > v.BranchDepth {
		v.Foldable = false
	}
}

// assign lowers  v op= rhs.
func (cg *CodeGen) assign(n Node, v *FrameVar, op AssignOp, rhs Expr) error {
	cg.touch(v)
	if cg.optimize && v.Foldable {
		if val, ok := cg.foldInto(v, op, rhs); ok {
			if v.Size != 4 {
				val = int32(uint8(val))
			}
			v.Value = val
			cg.emit(cg.storeVar(v, i32Const(val)))
			return nil
		}
	}

	value := rhs
	if bin, ok := op.Binary(); ok {
		self := &Constant{Pos: n.Position(), Kind: ConstID, Value: v.Name}
		value = &BinOp{Pos: n.Position(), Op: bin, Left: self, Right: rhs}
	}
	lowered, err := cg.lowerExpr(value, v)
	if err != nil {
		return err
	}
	v.Foldable = false
	cg.emit(cg.storeVar(v, lowered))
	return nil
}

// assignThrough lowers  *...*v op= rhs  with derefs leading stars.
func (cg *CodeGen) assignThrough(n Node, v *FrameVar, derefs int, op AssignOp, rhs Expr) error {
	var ptr Expr = &Constant{Pos: n.Position(), Kind: ConstID, Value: v.Name}
	for i := 1; i < derefs; i++ {
		ptr = &UnaryOp{Pos: n.Position(), Op: UnaryDeref, X: ptr}
	}
	addr, err := cg.lowerExpr(ptr, nil)
	if err != nil {
		return err
	}

	value := rhs
	if bin, ok := op.Binary(); ok {
		target := &UnaryOp{Pos: n.Position(), Op: UnaryDeref, X: ptr}
		value = &BinOp{Pos: n.Position(), Op: bin, Left: target, Right: rhs}
	}
	lowered, err := cg.lowerExpr(value, nil)
	if err != nil {
		return err
	}
	cg.emit(S(storeOp(v.Type.WithPointers(-derefs)), addr, lowered))
	return nil
}

func (cg *CodeGen) storeVar(v *FrameVar, value *SExpr) *SExpr {
	if v.InRegister() {
		value = S(fmt.Sprintf("tee_local $%d", v.ParamReg), value)
	}
	return S(memArg(storeOp(v.Type), v.Offset), getLocal(cg.fbLocal), value)
}

func (cg *CodeGen) loadVar(v *FrameVar) *SExpr {
	if v.InRegister() {
		return getLocal(v.ParamReg)
	}
	return S(memArg(loadOp(v.Type), v.Offset), getLocal(cg.fbLocal))
}

func (cg *CodeGen) genExprStmt(n *ExprStmt) error {
	switch x := n.X.(type) {
	case *FuncCall:
		call, err := cg.lowerCall(x, nil, true)
		if err != nil {
			return err
		}
		if x.Name == BuiltinPrint {
			cg.emit(call)
		} else {
			cg.emit(S("drop", call))
		}
		return nil
	case *UnaryOp:
		if x.Op == UnaryInc || x.Op == UnaryDec {
			return cg.genIncDec(x)
		}
	}
	value, err := cg.lowerExpr(n.X, nil)
	if err != nil {
		return err
	}
	cg.emit(S("drop", value))
	return nil
}

// genIncDec lowers ++ and -- as  += 1  and  -= 1.
func (cg *CodeGen) genIncDec(u *UnaryOp) error {
	op := AssignAdd
	if u.Op == UnaryDec {
		op = AssignSub
	}
	one := &Constant{Pos: u.Pos, Kind: ConstInt, Value: "1"}

	derefs := 0
	x := u.X
	for {
		d, ok := x.(*UnaryOp)
		if !ok || d.Op != UnaryDeref {
			break
		}
		derefs++
		x = d.X
	}
	id, ok := x.(*Constant)
	if !ok || id.Kind != ConstID {
		return newError(UnsupportedConstruct, u, "operand of %s must be a variable", u.Op)
	}
	v, err := cg.lookup(id, id.Value)
	if err != nil {
		return err
	}
	if derefs > 0 {
		return cg.assignThrough(u, v, derefs, op, one)
	}
	return cg.assign(u, v, op, one)
}
