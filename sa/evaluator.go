package sa

import (
	"context"

	"golang.org/x/sync/errgroup"
)

type iterationKey struct{}

// WithIteration tags ctx with the annealing iteration it serves.
func WithIteration(ctx context.Context, i int) context.Context {
	return context.WithValue(ctx, iterationKey{}, i)
}

// IterationFromContext returns the iteration Run tagged ctx with. Evaluators that draw random
// games key their seeds on it, so both candidates of an iteration face the same games no matter
// which one is scored first.
func IterationFromContext(ctx context.Context) (int, bool) {
	i, ok := ctx.Value(iterationKey{}).(int)
	return i, ok
}

// Evaluator scores the current candidate and the proposal of one iteration. Both scores come
// from the same call because some fitnesses, like self-play, only exist for the pair.
type Evaluator interface {
	Evaluate(ctx context.Context, current, proposed *Candidate) (float64, float64, error)
}

type EvaluatorFunc func(ctx context.Context, current, proposed *Candidate) (float64, float64, error)

func (f EvaluatorFunc) Evaluate(ctx context.Context, current, proposed *Candidate) (float64, float64, error) {
	return f(ctx, current, proposed)
}

// Scorer rates one candidate on its own.
type Scorer interface {
	Score(ctx context.Context, c *Candidate) (float64, error)
}

type ScorerFunc func(ctx context.Context, c *Candidate) (float64, error)

func (f ScorerFunc) Score(ctx context.Context, c *Candidate) (float64, error) {
	return f(ctx, c)
}

// Independent scores the two candidates one after the other.
func Independent(s Scorer) Evaluator {
	return EvaluatorFunc(func(ctx context.Context, current, proposed *Candidate) (float64, float64, error) {
		c, err := s.Score(ctx, current)
		if err != nil {
			return 0, 0, err
		}
		p, err := s.Score(ctx, proposed)
		if err != nil {
			return 0, 0, err
		}
		return c, p, nil
	})
}

// Concurrent scores the two candidates at the same time and joins before returning.
func Concurrent(s Scorer) Evaluator {
	return EvaluatorFunc(func(ctx context.Context, current, proposed *Candidate) (float64, float64, error) {
		var c, p float64
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			c, err = s.Score(gctx, current)
			return err
		})
		g.Go(func() error {
			var err error
			p, err = s.Score(gctx, proposed)
			return err
		})
		if err := g.Wait(); err != nil {
			return 0, 0, err
		}
		return c, p, nil
	})
}
