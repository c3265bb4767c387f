package dsl

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

var ErrDuplicateFeature = errors.New("duplicate feature")

type FeatureFunc[S any, M comparable] func(Context[S, M], []Value) (float64, error)

// Feature is a named function callable from programs. Arity counts the arguments after the
// implicit state, which programs may write as a bare `state` anywhere in the argument list.
type Feature[S any, M comparable] struct {
	Name  string
	Arity int
	Func  FeatureFunc[S, M]
}

func StateFeature[S any, M comparable](name string, fn func(S) float64) Feature[S, M] {
	return Feature[S, M]{
		Name:  name,
		Arity: 0,
		Func: func(ctx Context[S, M], _ []Value) (float64, error) {
			return fn(ctx.State), nil
		},
	}
}

func MoveFeature[S any, M comparable](name string, fn func(S, M) float64) Feature[S, M] {
	return Feature[S, M]{
		Name:  name,
		Arity: 1,
		Func: func(ctx Context[S, M], args []Value) (float64, error) {
			m, err := ctx.Move(args[0])
			if err != nil {
				return 0, err
			}
			return fn(ctx.State, m), nil
		},
	}
}

func IntFeature[S any, M comparable](name string, fn func(S, int) float64) Feature[S, M] {
	return Feature[S, M]{
		Name:  name,
		Arity: 1,
		Func: func(ctx Context[S, M], args []Value) (float64, error) {
			if args[0].Kind != Number {
				return 0, fmt.Errorf("%w: %s expects a number, got a move", ErrType, name)
			}
			return fn(ctx.State, int(args[0].Num)), nil
		},
	}
}

type Features[S any, M comparable] struct {
	byName map[string]Feature[S, M]
}

func NewFeatures[S any, M comparable](features ...Feature[S, M]) (*Features[S, M], error) {
	fs := &Features[S, M]{byName: map[string]Feature[S, M]{}}
	for _, f := range features {
		if err := fs.Register(f); err != nil {
			return nil, err
		}
	}
	return fs, nil
}

func (fs *Features[S, M]) Register(f Feature[S, M]) error {
	if f.Name == "" {
		return fmt.Errorf("feature name must not be empty")
	}
	if f.Func == nil {
		return fmt.Errorf("feature %q: Func must not be nil", f.Name)
	}
	if f.Arity < 0 {
		return fmt.Errorf("feature %q: Arity must be >= 0, got %d", f.Name, f.Arity)
	}
	if _, ok := fs.byName[f.Name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateFeature, f.Name)
	}
	fs.byName[f.Name] = f
	return nil
}

// Lookup tries the full name first and then its last dotted segment, so `DSL.f` finds `f`.
func (fs *Features[S, M]) Lookup(name string) (Feature[S, M], bool) {
	if fs == nil {
		return Feature[S, M]{}, false
	}
	if f, ok := fs.byName[name]; ok {
		return f, true
	}
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		f, ok := fs.byName[name[i+1:]]
		return f, ok
	}
	return Feature[S, M]{}, false
}

func (fs *Features[S, M]) Names() []string {
	names := make([]string, 0, len(fs.byName))
	for name := range fs.byName {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func (fs *Features[S, M]) Len() int {
	return len(fs.byName)
}
