package oracle

import (
	"context"
	"errors"
	"fmt"

	"github.com/sw965/progsynth/dsl"
	"github.com/sw965/progsynth/game"
	"github.com/sw965/progsynth/game/sequential"
	"github.com/sw965/progsynth/sa"
)

var ErrNilCompose = errors.New("Compose must be set for a candidate with several trees")

// Materializer compiles the programs of a candidate into one decider.
type Materializer[S any, M comparable] struct {
	Features *dsl.Features[S, M]
	// Compose joins the programs of a multi-tree candidate, keyed by tree name.
	Compose func(map[string]*dsl.Program[S, M]) (dsl.Decider[S, M], error)
}

// Decider fails with dsl.ErrSyntax or dsl.ErrUnknownFeature when a program does not compile.
func (m Materializer[S, M]) Decider(c *sa.Candidate) (dsl.Decider[S, M], error) {
	programs, err := dsl.CompileSet(c.Programs(), m.Features)
	if err != nil {
		return nil, err
	}
	if m.Compose != nil {
		return m.Compose(programs)
	}
	if len(programs) != 1 {
		return nil, fmt.Errorf("%w: got %d trees", ErrNilCompose, len(programs))
	}
	var only *dsl.Program[S, M]
	for _, p := range programs {
		only = p
	}
	return only, nil
}

func NewActor[S any, M, A comparable](m Materializer[S, M], name game.ActorName, c *sa.Candidate) (sequential.Actor[S, M, A], error) {
	d, err := m.Decider(c)
	if err != nil {
		return sequential.Actor[S, M, A]{}, err
	}
	return dsl.Actor[S, M, A](name, d), nil
}

// ImitationFitness scores a candidate by its imitation fitness.
type ImitationFitness[S any, M comparable] struct {
	Materializer Materializer[S, M]
	Imitation    *Imitation[S, M]
}

func (f ImitationFitness[S, M]) Score(ctx context.Context, c *sa.Candidate) (float64, error) {
	d, err := f.Materializer.Decider(c)
	if err != nil {
		return 0, err
	}
	result, err := f.Imitation.Score(ctx, d)
	if err != nil {
		return 0, err
	}
	return result.Fitness, nil
}

// BaselineFitness scores a candidate by its number of wins against a fixed opponent.
type BaselineFitness[S any, M, A comparable] struct {
	Materializer Materializer[S, M]
	Versus       *Versus[S, M, A]
	Opponent     sequential.Actor[S, M, A]
}

func (f BaselineFitness[S, M, A]) Score(ctx context.Context, c *sa.Candidate) (float64, error) {
	player, err := NewActor[S, M, A](f.Materializer, "candidate", c)
	if err != nil {
		return 0, err
	}
	result, err := f.Versus.Play(ctx, player, f.Opponent)
	if err != nil {
		return 0, err
	}
	return float64(result.Wins), nil
}

// SelfPlayFitness plays the proposal against the current candidate. The proposal scores its
// wins and the current candidate scores the proposal's losses, so a threshold acceptor keeps
// a proposal that wins at least as often as it loses.
type SelfPlayFitness[S any, M, A comparable] struct {
	Materializer Materializer[S, M]
	Versus       *Versus[S, M, A]
}

// Compare plays challenger against incumbent and reports the challenger's wins and losses.
func (f SelfPlayFitness[S, M, A]) Compare(ctx context.Context, challenger, incumbent *sa.Candidate) (int, int, error) {
	player, err := NewActor[S, M, A](f.Materializer, "challenger", challenger)
	if err != nil {
		return 0, 0, err
	}
	opponent, err := NewActor[S, M, A](f.Materializer, "incumbent", incumbent)
	if err != nil {
		return 0, 0, err
	}
	result, err := f.Versus.Play(ctx, player, opponent)
	if err != nil {
		return 0, 0, err
	}
	return result.Wins, result.Losses, nil
}

func (f SelfPlayFitness[S, M, A]) Evaluate(ctx context.Context, current, proposed *sa.Candidate) (float64, float64, error) {
	wins, losses, err := f.Compare(ctx, proposed, current)
	if err != nil {
		return 0, 0, err
	}
	return float64(losses), float64(wins), nil
}
