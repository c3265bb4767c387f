package dsl

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/sw965/progsynth/game"
	"github.com/sw965/progsynth/game/sequential"
)

var ErrUnknownProgram = errors.New("router selected an unknown program")

// Decider picks one of the legal moves of a state.
type Decider[S any, M comparable] interface {
	Decide(S, []M) (M, error)
}

type DeciderFunc[S any, M comparable] func(S, []M) (M, error)

func (f DeciderFunc[S, M]) Decide(state S, moves []M) (M, error) {
	return f(state, moves)
}

// Program is a compiled program. It is immutable, and Decide is safe for concurrent use.
type Program[S any, M comparable] struct {
	text string
	body []stmtFunc[S, M]
}

func Compile[S any, M comparable](text string, features *Features[S, M]) (*Program[S, M], error) {
	ls, err := lines(text)
	if err != nil {
		return nil, err
	}
	if len(ls) == 0 {
		return nil, fmt.Errorf("%w: empty program", ErrSyntax)
	}

	p := &parser[S, M]{features: features, lines: ls}
	body, err := p.block(ls[0].indent)
	if err != nil {
		return nil, err
	}
	if p.pos < len(ls) {
		p.no = ls[p.pos].no
		return nil, p.errorf("unindent does not match the first line")
	}
	return &Program[S, M]{text: text, body: body}, nil
}

func (p *Program[S, M]) Text() string {
	return p.text
}

func (p *Program[S, M]) Decide(state S, moves []M) (move M, err error) {
	if len(moves) == 0 {
		return move, fmt.Errorf("%w: %w", ErrRuntime, game.ErrEmptyLegalMoves)
	}

	defer func() {
		if r := recover(); r != nil {
			var zero M
			move = zero
			err = fmt.Errorf("%w: panic: %v", ErrRuntime, r)
		}
	}()

	e := &env[S, M]{
		ctx:    Context[S, M]{State: state, Moves: moves},
		vars:   map[string]Value{},
		scores: make([]float64, len(moves)),
	}

	returned, err := run(p.body, e)
	if err != nil {
		return move, err
	}
	if returned {
		return e.ctx.Move(e.ret)
	}
	if !e.scored {
		return move, ErrNoDecision
	}

	best := 0
	for i, s := range e.scores[1:] {
		if s > e.scores[best] {
			best = i + 1
		}
	}
	return moves[best], nil
}

// CompileSet compiles one program per name.
func CompileSet[S any, M comparable](texts map[string]string, features *Features[S, M]) (map[string]*Program[S, M], error) {
	programs := make(map[string]*Program[S, M], len(texts))
	for _, name := range slices.Sorted(maps.Keys(texts)) {
		p, err := Compile(texts[name], features)
		if err != nil {
			return nil, fmt.Errorf("program %q: %w", name, err)
		}
		programs[name] = p
	}
	return programs, nil
}

// Router names the program that decides a position.
type Router[S any, M comparable] func(S, []M) (string, error)

func Compose[S any, M comparable, D Decider[S, M]](router Router[S, M], deciders map[string]D) (Decider[S, M], error) {
	if router == nil {
		return nil, fmt.Errorf("router must not be nil")
	}
	if len(deciders) == 0 {
		return nil, fmt.Errorf("deciders must not be empty")
	}

	return DeciderFunc[S, M](func(state S, moves []M) (M, error) {
		name, err := router(state, moves)
		if err != nil {
			var zero M
			return zero, err
		}
		d, ok := deciders[name]
		if !ok {
			var zero M
			return zero, fmt.Errorf("%w: %s", ErrUnknownProgram, name)
		}
		return d.Decide(state, moves)
	}), nil
}

// PolicyFunc turns d into a one-hot policy over the legal moves.
func PolicyFunc[S any, M comparable](d Decider[S, M]) sequential.PolicyFunc[S, M] {
	return func(state S, legalMoves []M) (game.Policy[M], error) {
		move, err := d.Decide(state, legalMoves)
		if err != nil {
			return nil, err
		}
		return game.OneHot(legalMoves, move)
	}
}

func Actor[S any, M, A comparable](name game.ActorName, d Decider[S, M]) sequential.Actor[S, M, A] {
	return sequential.Actor[S, M, A]{
		Name:       name,
		PolicyFunc: PolicyFunc(d),
		SelectFunc: game.MaxSelectFunc[M, A],
	}
}
