// Package dsl compiles the programs rendered from a parse tree into decision functions.
//
// A program is a small indentation-blocked language. The indent of a line is the number of
// tab characters in its leading whitespace, so the first line fixes the outermost level.
//
//	for i in range( len( actions ) ) :
//		score[ i ] = advance_in_action_col( actions[ i ] ) - number_of_neutrals_used( actions[ i ] )
//
// An executed return picks a move (a number is an index into the legal moves, negative numbers
// count from the end). Without a return the move with the highest score wins and the lowest
// index breaks ties.
package dsl

import (
	"errors"
	"fmt"
)

var (
	ErrSyntax         = errors.New("dsl syntax error")
	ErrUnknownFeature = errors.New("unknown feature")
	ErrRuntime        = errors.New("dsl runtime error")

	ErrUndefinedVariable = fmt.Errorf("%w: undefined variable", ErrRuntime)
	ErrIndexOutOfRange   = fmt.Errorf("%w: index out of range", ErrRuntime)
	ErrType              = fmt.Errorf("%w: type mismatch", ErrRuntime)
	ErrNoDecision        = fmt.Errorf("%w: program neither returned nor scored a move", ErrRuntime)
)

type Kind int

const (
	Number Kind = iota
	MoveRef
)

func (k Kind) String() string {
	if k == MoveRef {
		return "move"
	}
	return "number"
}

// Value is a number (booleans are 0 and 1) or a reference to one of the legal moves.
type Value struct {
	Kind Kind
	Num  float64
	Move int
}

func Num(f float64) Value {
	return Value{Kind: Number, Num: f}
}

func Bool(b bool) Value {
	return Num(B(b))
}

func Ref(idx int) Value {
	return Value{Kind: MoveRef, Move: idx}
}

// B converts a boolean into the 0/1 number features return.
func B(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func (v Value) Truth() bool {
	if v.Kind == MoveRef {
		return true
	}
	return v.Num != 0
}

func (v Value) String() string {
	if v.Kind == MoveRef {
		return fmt.Sprintf("actions[%d]", v.Move)
	}
	return fmt.Sprintf("%g", v.Num)
}

// Context is what a program and its features see while deciding.
type Context[S any, M comparable] struct {
	State S
	Moves []M
}

// Index resolves v to a position in Moves. Numbers are truncated, negative numbers count from the end.
func (c Context[S, M]) Index(v Value) (int, error) {
	n := len(c.Moves)
	var idx int
	if v.Kind == MoveRef {
		idx = v.Move
	} else {
		idx = int(v.Num)
		if idx < 0 {
			idx += n
		}
	}
	if idx < 0 || idx >= n {
		return 0, fmt.Errorf("%w: %v with %d legal moves", ErrIndexOutOfRange, v, n)
	}
	return idx, nil
}

func (c Context[S, M]) Move(v Value) (M, error) {
	idx, err := c.Index(v)
	if err != nil {
		var zero M
		return zero, err
	}
	return c.Moves[idx], nil
}
