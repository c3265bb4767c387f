// Package game holds the move policies and selection rules shared by every game engine.
//
// Package game は全てのゲームエンジンで共有される方策と行動選択のルールを提供します。
package game

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"

	"github.com/sw965/omw/mathx"
	"github.com/sw965/omw/mathx/randx"
	"github.com/sw965/omw/slicesx"
)

var (
	ErrEmptyLegalMoves        = errors.New("legalMoves must not be empty")
	ErrNotUniqueLegalMoves    = errors.New("legalMoves contains duplicates")
	ErrPolicySizeMismatch     = errors.New("policy size does not match legal moves count")
	ErrPolicyMissingLegalMove = errors.New("policy is missing a legal move")
	ErrPolicyBadValue         = errors.New("policy has a negative, NaN or Inf value")
	ErrPolicyZeroSum          = errors.New("sum of policy probabilities is zero")
)

type Policy[M comparable] map[M]float32

// OneHot puts all the mass on chosen and zero on every other legal move.
func OneHot[M comparable](legalMoves []M, chosen M) (Policy[M], error) {
	if !slices.Contains(legalMoves, chosen) {
		return nil, fmt.Errorf("%w: %v", ErrPolicyMissingLegalMove, chosen)
	}
	p := make(Policy[M], len(legalMoves))
	for _, m := range legalMoves {
		p[m] = 0
	}
	p[chosen] = 1
	return p, nil
}

func (p Policy[M]) ValidateForLegalMoves(legalMoves []M, checkUnique bool) error {
	if checkUnique {
		if !slicesx.IsUnique(legalMoves) {
			return ErrNotUniqueLegalMoves
		}
	}

	if len(legalMoves) == 0 {
		return ErrEmptyLegalMoves
	}

	if len(p) != len(legalMoves) {
		return fmt.Errorf("%w: policy=%d legalMoves=%d", ErrPolicySizeMismatch, len(p), len(legalMoves))
	}

	var sum float32
	for i, m := range legalMoves {
		v, ok := p[m]
		if !ok {
			return fmt.Errorf("%w: idx=%d move=%v", ErrPolicyMissingLegalMove, i, m)
		}

		if v < 0 || mathx.IsNaN(v) || mathx.IsInf(v, 0) {
			return fmt.Errorf("%w: idx=%d move=%v value=%v", ErrPolicyBadValue, i, m, v)
		}
		sum += v
	}

	if sum == 0 {
		return ErrPolicyZeroSum
	}
	return nil
}

// Prob returns the normalized probability of m.
func (p Policy[M]) Prob(m M) float32 {
	var sum float32
	for _, v := range p {
		sum += v
	}
	if sum == 0 {
		return 0
	}
	return p[m] / sum
}

// SelectFunc picks a move from policy. Moves are visited in the order of legalMoves, so a
// seeded rng reproduces its choice whatever the map iteration order is.
type SelectFunc[M, A comparable] func(Policy[M], []M, A, *rand.Rand) (M, error)

func MaxSelectFunc[M, A comparable](policy Policy[M], legalMoves []M, agent A, rng *rand.Rand) (M, error) {
	if len(policy) == 0 || len(legalMoves) == 0 {
		var zero M
		return zero, ErrEmptyLegalMoves
	}

	max := policy[legalMoves[0]]
	moves := make([]M, 0, len(legalMoves))
	moves = append(moves, legalMoves[0])

	for _, k := range legalMoves[1:] {
		v := policy[k]
		switch {
		case v > max:
			max = v
			moves = moves[:0]
			moves = append(moves, k)
		case v == max:
			moves = append(moves, k)
		}
	}
	return randx.Choice(moves, rng)
}

func WeightedRandomSelectFunc[M, A comparable](policy Policy[M], legalMoves []M, agent A, rng *rand.Rand) (M, error) {
	ws := make([]float32, len(legalMoves))
	for i, m := range legalMoves {
		ws[i] = policy[m]
	}

	idx, err := randx.IntByWeights(ws, rng)
	if err != nil {
		var zero M
		return zero, err
	}
	return legalMoves[idx], nil
}

type ActorName string
