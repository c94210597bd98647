package compiler

import (
	"fmt"
	"sort"
	"strings"
)

// FrameVar is the storage record of one declared variable.
type FrameVar struct {
	Name      string
	Type      Type
	Offset    int // byte offset from the frame base
	Size      int
	IsPointer bool
	ParamReg  int // local index holding the parameter, or -1

	// Foldable is true while Value is the statically known current value.
	// Once cleared it stays cleared for the rest of the function.
	Foldable bool
	Value    int32

	ParamBacked  bool // value was derived from a parameter; dumped as Fold: param
	AddressTaken bool // & is applied to the variable somewhere in the function
	BranchDepth  int  // conditional nesting depth at the declaration
}

// IsParam reports whether the variable is a function parameter.
func (v *FrameVar) IsParam() bool { return v.ParamReg >= 0 }

// InRegister reports whether reads may use the parameter register instead of
// the frame slot. char parameters always go through the frame so the value
// is truncated to a byte.
func (v *FrameVar) InRegister() bool {
	return v.ParamReg >= 0 && !v.AddressTaken && v.Size == 4
}

// FrameTable maps variable names to frame slots for the function being lowered.
// Parameters and locals share one frame. Slots are handed out from the top of
// the frame downwards, so the most recently declared variable sits nearest
// the frame base.
type FrameTable struct {
	// Stack of lexical scopes. Each scope maps name -> record.
	scopes []map[string]*FrameVar
	vars   []*FrameVar // every record, in declaration order
	size   int
	next   int
}

func NewFrameTable() *FrameTable {
	t := &FrameTable{}
	t.Reset(0)
	return t
}

// Reset discards every record and prepares a frame of size bytes.
func (t *FrameTable) Reset(size int) {
	t.scopes = []map[string]*FrameVar{make(map[string]*FrameVar)}
	t.vars = nil
	t.size = size
	t.next = size
}

// Size is the total frame size in bytes.
func (t *FrameTable) Size() int { return t.size }

func (t *FrameTable) EnterScope() {
	t.scopes = append(t.scopes, make(map[string]*FrameVar))
}

func (t *FrameTable) ExitScope() {
	if len(t.scopes) > 1 {
		t.scopes = t.scopes[:len(t.scopes)-1]
	}
}

// Declare allocates a slot for name in the current scope. Redeclaring a name
// is not rejected here; the new record shadows the old one. The frame passed
// to Reset must be large enough for every declaration.
func (t *FrameTable) Declare(name string, typ Type, paramReg int) *FrameVar {
	size := typ.Size()
	t.next -= size
	v := &FrameVar{
		Name:      name,
		Type:      typ,
		Offset:    t.next,
		Size:      size,
		IsPointer: typ.IsPointer(),
		ParamReg:  paramReg,
	}
	t.scopes[len(t.scopes)-1][name] = v
	t.vars = append(t.vars, v)
	return v
}

// Lookup returns the innermost record for name.
func (t *FrameTable) Lookup(name string) (*FrameVar, error) {
	for i := len(t.scopes) - 1; i >= 0; i-- {
		if v, ok := t.scopes[i][name]; ok {
			return v, nil
		}
	}
	return nil, &Error{Kind: UnknownSymbol, Msg: fmt.Sprintf("undeclared variable %q", name)}
}

// Vars returns every record in declaration order.
func (t *FrameTable) Vars() []*FrameVar { return t.vars }

// String returns a deterministically ordered dump of the table.
func (t *FrameTable) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Frame (Size: %d)\n", t.size)
	if len(t.vars) == 0 {
		sb.WriteString("  (empty)\n")
		return sb.String()
	}
	vars := append([]*FrameVar(nil), t.vars...)
	sort.SliceStable(vars, func(i, j int) bool { return vars[i].Offset < vars[j].Offset })
	for _, v := range vars {
		reg := "-"
		if v.IsParam() {
			reg = fmt.Sprintf("$%d", v.ParamReg)
		}
		fold := "no"
		switch {
		case v.Foldable:
			fold = fmt.Sprintf("%d", v.Value)
		case v.ParamBacked:
			fold = "param"
		}
		fmt.Fprintf(&sb, "  %-20s  Offset: %d (Size: %d, Type: %s, Param: %s, Fold: %s)\n",
			v.Name, v.Offset, v.Size, v.Type, reg, fold)
	}
	return sb.String()
}
