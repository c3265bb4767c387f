package oracle

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/sw965/omw/parallel"
	"github.com/sw965/progsynth/game/sequential"
	"github.com/sw965/progsynth/sa"
	"gonum.org/v1/gonum/stat/distuv"
)

var (
	ErrNotTwoPlayer    = errors.New("versus requires exactly two agents")
	ErrNonPositiveGame = errors.New("Games must be > 0")
	ErrNilNewInit      = errors.New("NewInit must not be nil")
)

type Result struct {
	Wins   int
	Losses int
	Draws  int
	// Errors counts the games decided by an actor failure. They are also counted as wins or losses.
	Errors int
}

func (r Result) Games() int {
	return r.Wins + r.Losses + r.Draws
}

// WinRate is Wins over all games, or 0 when nothing was played.
func (r Result) WinRate() float64 {
	n := r.Games()
	if n == 0 {
		return 0
	}
	return float64(r.Wins) / float64(n)
}

// WinRateInterval is the normal approximation interval of WinRate at the given two-sided
// confidence, clamped to [0, 1].
func (r Result) WinRateInterval(confidence float64) (float64, float64) {
	n := r.Games()
	if n == 0 {
		return 0, 1
	}
	p := r.WinRate()
	z := distuv.UnitNormal.Quantile(1 - (1-confidence)/2)
	half := z * math.Sqrt(p*(1-p)/float64(n))
	return max(0, p-half), min(1, p+half)
}

func (r *Result) add(o sequential.Outcome) {
	switch o {
	case sequential.Win:
		r.Wins++
	case sequential.Loss:
		r.Losses++
	default:
		r.Draws++
	}
}

// Versus plays one actor against another over a batch of games. Game i of a Play call is
// seeded from Seed, the annealing iteration carried by the context and i.
type Versus[S any, M, A comparable] struct {
	Engine sequential.Engine[S, M, A]
	// NewInit builds the initial state of one game.
	NewInit  func(*rand.Rand) (S, error)
	Games    int
	Workers  int
	MaxPlies int
	Seed     uint64
}

func (v *Versus[S, M, A]) Validate() error {
	if err := v.Engine.Validate(); err != nil {
		return err
	}
	switch {
	case len(v.Engine.Agents) != 2:
		return fmt.Errorf("%w, got %d", ErrNotTwoPlayer, len(v.Engine.Agents))
	case v.NewInit == nil:
		return ErrNilNewInit
	case v.Games <= 0:
		return fmt.Errorf("%w, got %d", ErrNonPositiveGame, v.Games)
	case v.Workers <= 0:
		return fmt.Errorf("%w, got %d", ErrNonPositiveWorkers, v.Workers)
	}
	return nil
}

// Seat is the agent player controls in game i. The first mover alternates between games.
func (v *Versus[S, M, A]) Seat(i int) (player, opponent A) {
	return v.Engine.Agents[i%2], v.Engine.Agents[(i+1)%2]
}

func (v *Versus[S, M, A]) outcome(i int, player, opponent sequential.Actor[S, M, A], rng *rand.Rand) (sequential.Outcome, bool, error) {
	init, err := v.NewInit(rng)
	if err != nil {
		return sequential.Draw, false, err
	}

	seat, other := v.Seat(i)
	actors := map[A]sequential.Actor[S, M, A]{seat: player, other: opponent}
	result, err := v.Engine.Play(init, actors, v.MaxPlies, rng)
	if err != nil {
		var ae *sequential.ActorError[A]
		if !errors.As(err, &ae) {
			return sequential.Draw, false, err
		}
		if ae.Agent == seat {
			return sequential.Loss, true, nil
		}
		return sequential.Win, true, nil
	}

	if result.Truncated {
		return sequential.Draw, false, nil
	}
	ranks, err := v.Engine.RankByAgentFunc(result.Final)
	if err != nil {
		return sequential.Draw, false, err
	}
	o, err := ranks.Outcome(seat)
	return o, false, err
}

// Play plays Games games of player against opponent and reports them from player's side.
// A game over MaxPlies is a draw. A failure raised by an actor loses the game for that actor.
// Any other failure aborts the batch.
func (v *Versus[S, M, A]) Play(ctx context.Context, player, opponent sequential.Actor[S, M, A]) (Result, error) {
	if err := v.Validate(); err != nil {
		return Result{}, err
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	var round uint64
	if i, ok := sa.IterationFromContext(ctx); ok {
		round = uint64(i)
	}
	outcomes := make([]sequential.Outcome, v.Games)
	failed := make([]bool, v.Games)
	err := parallel.For(v.Games, v.Workers, func(_, idx int) error {
		rng := rand.New(rand.NewPCG(v.Seed, round<<32|uint64(idx)))
		o, f, err := v.outcome(idx, player, opponent, rng)
		if err != nil {
			return fmt.Errorf("game %d: %w", idx, err)
		}
		outcomes[idx], failed[idx] = o, f
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	var result Result
	for i, o := range outcomes {
		result.add(o)
		if failed[i] {
			result.Errors++
		}
	}
	return result, nil
}
