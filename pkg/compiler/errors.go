package compiler

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a fatal code generation error.
type ErrorKind int

const (
	// UnknownSymbol: an identifier or function with no declaration.
	UnknownSymbol ErrorKind = iota + 1
	// UnsupportedConstruct: an AST shape with no lowering rule (arrays, string values).
	UnsupportedConstruct
	// InvalidNegation: a comparison operator with no complement.
	InvalidNegation
	// LoopControlOutsideLoop: break or continue with no enclosing loop.
	LoopControlOutsideLoop
)

// Sentinels matched by errors.Is against any *Error of the same kind.
var (
	ErrUnknownSymbol          = errors.New("unknown symbol")
	ErrUnsupportedConstruct   = errors.New("unsupported construct")
	ErrInvalidNegation        = errors.New("invalid negation")
	ErrLoopControlOutsideLoop = errors.New("loop control outside loop")
)

func (k ErrorKind) sentinel() error {
	switch k {
	case UnknownSymbol:
		return ErrUnknownSymbol
	case UnsupportedConstruct:
		return ErrUnsupportedConstruct
	case InvalidNegation:
		return ErrInvalidNegation
	case LoopControlOutsideLoop:
		return ErrLoopControlOutsideLoop
	}
	return nil
}

func (k ErrorKind) String() string {
	switch k {
	case UnknownSymbol:
		return "UnknownSymbol"
	case UnsupportedConstruct:
		return "UnsupportedConstruct"
	case InvalidNegation:
		return "InvalidNegation"
	case LoopControlOutsideLoop:
		return "LoopControlOutsideLoop"
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// Error is a fatal code generation error tied to a source position.
type Error struct {
	Kind ErrorKind
	Pos  Pos
	Msg  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Pos, e.Kind, e.Msg)
}

// Unwrap exposes the kind's sentinel so errors.Is(err, ErrUnknownSymbol) works.
func (e *Error) Unwrap() error { return e.Kind.sentinel() }

func newError(kind ErrorKind, n Node, format string, args ...any) *Error {
	var p Pos
	if n != nil {
		p = n.Position()
	}
	return &Error{Kind: kind, Pos: p, Msg: fmt.Sprintf(format, args...)}
}

// KindOf returns the ErrorKind carried by err, or 0 if err is not a code
// generation error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
