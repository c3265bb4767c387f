package oracle

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/sw965/omw/parallel"
	"github.com/sw965/progsynth/dsl"
	"gonum.org/v1/gonum/stat"
)

var ErrNilPlay = errors.New("Play must not be nil")

// SolitaireFunc plays one single-player game with d and returns the rounds it took.
// finished is false when the game hit its round cap first.
type SolitaireFunc[S any, M comparable] func(d dsl.Decider[S, M], rng *rand.Rand) (rounds int, finished bool, err error)

type SolitaireResult struct {
	Games    int
	Finished int
	Errors   int
	// Mean and StdDev are over the rounds of every game that did not fail.
	Mean   float64
	StdDev float64
}

// Solitaire measures how many rounds a decider needs to finish a game alone.
type Solitaire[S any, M comparable] struct {
	Play    SolitaireFunc[S, M]
	Games   int
	Workers int
	Seed    uint64
}

func (s *Solitaire[S, M]) Validate() error {
	switch {
	case s.Play == nil:
		return ErrNilPlay
	case s.Games <= 0:
		return fmt.Errorf("%w, got %d", ErrNonPositiveGame, s.Games)
	case s.Workers <= 0:
		return fmt.Errorf("%w, got %d", ErrNonPositiveWorkers, s.Workers)
	}
	return nil
}

// recordingDecider keeps the first failure of d so a broken program can be told apart from a
// broken game.
type recordingDecider[S any, M comparable] struct {
	d   dsl.Decider[S, M]
	err error
}

func (r *recordingDecider[S, M]) Decide(state S, moves []M) (M, error) {
	m, err := decideSafely(r.d, state, moves)
	if err != nil && r.err == nil {
		r.err = err
	}
	return m, err
}

// Score plays Games games, game i seeded from Seed and i. A game whose decider fails is
// counted in Errors and left out of the statistics. Any other failure aborts the batch.
func (s *Solitaire[S, M]) Score(ctx context.Context, d dsl.Decider[S, M]) (SolitaireResult, error) {
	if err := s.Validate(); err != nil {
		return SolitaireResult{}, err
	}
	if err := ctx.Err(); err != nil {
		return SolitaireResult{}, err
	}

	rounds := make([]int, s.Games)
	finished := make([]bool, s.Games)
	failed := make([]bool, s.Games)
	err := parallel.For(s.Games, s.Workers, func(_, idx int) error {
		rec := &recordingDecider[S, M]{d: d}
		r, f, err := s.Play(rec, rand.New(rand.NewPCG(s.Seed, uint64(idx))))
		if err != nil {
			if rec.err == nil {
				return fmt.Errorf("game %d: %w", idx, err)
			}
			failed[idx] = true
		}
		rounds[idx], finished[idx] = r, f
		return nil
	})
	if err != nil {
		return SolitaireResult{}, err
	}

	result := SolitaireResult{Games: s.Games}
	xs := make([]float64, 0, s.Games)
	for i := range rounds {
		switch {
		case failed[i]:
			result.Errors++
			continue
		case finished[i]:
			result.Finished++
		}
		xs = append(xs, float64(rounds[i]))
	}
	switch len(xs) {
	case 0:
	case 1:
		result.Mean = xs[0]
	default:
		result.Mean, result.StdDev = stat.MeanStdDev(xs, nil)
	}
	return result, nil
}
