// Package sa searches program space with simulated annealing over parse tree mutations.
//
// Every iteration clones the current candidate, mutates the clone, scores both through an
// Evaluator and lets an Acceptor decide at the temperature of a Schedule. Iterations depend
// on each other, so the loop is sequential. Parallelism lives inside evaluators.
//
// Package sa は構文木の突然変異に対する焼きなまし法でプログラム空間を探索します。
package sa

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/rs/zerolog"
	"github.com/sw965/progsynth/parsetree"
)

var (
	ErrNilEvaluator          = errors.New("Evaluator must not be nil")
	ErrNilAcceptor           = errors.New("Acceptor must not be nil")
	ErrNilSchedule           = errors.New("Schedule must not be nil")
	ErrNonPositiveIterations = errors.New("Iterations must be > 0")
)

type Phase int

const (
	Idle Phase = iota
	ProposalBuilt
	Evaluated
	Accepted
	Rejected
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case ProposalBuilt:
		return "proposal_built"
	case Evaluated:
		return "evaluated"
	case Accepted:
		return "accepted"
	case Rejected:
		return "rejected"
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

type Schedule interface {
	Temperature(iteration int) float64
}

// LogSchedule is T(i) = D / ln(i) for i >= 2. A positive Init replaces T(2).
type LogSchedule struct {
	D    float64
	Init float64
}

func (s LogSchedule) Temperature(i int) float64 {
	if i == 2 && s.Init > 0 {
		return s.Init
	}
	if i < 2 {
		i = 2
	}
	return s.D / math.Log(float64(i))
}

type Acceptor interface {
	Accept(current, proposed, temperature float64, rng *rand.Rand) bool
}

// ThresholdAcceptor accepts iff (current/proposed)^(1/T) <= 1, computed in log space.
// A proposed fitness of 0 is always rejected.
type ThresholdAcceptor struct{}

func (ThresholdAcceptor) Accept(current, proposed, temperature float64, _ *rand.Rand) bool {
	if proposed <= 0 {
		return false
	}
	if current <= 0 {
		return true
	}
	if temperature <= 0 {
		return proposed >= current
	}
	return (math.Log(current)-math.Log(proposed))/temperature <= 0
}

// MetropolisAcceptor accepts improvements, and otherwise accepts with probability
// exp(-(current-proposed)/T).
type MetropolisAcceptor struct{}

func (MetropolisAcceptor) Accept(current, proposed, temperature float64, rng *rand.Rand) bool {
	if proposed > current {
		return true
	}
	if temperature <= 0 {
		return false
	}
	return rng.Float64() < math.Exp(-(current-proposed)/temperature)
}

// Strict rejects a proposal that only ties the current candidate and leaves every other
// decision to Acceptor. Self-play needs it: there a tie means the proposal won as many games
// as it lost.
type Strict struct {
	Acceptor Acceptor
}

func (s Strict) Accept(current, proposed, temperature float64, rng *rand.Rand) bool {
	if proposed == current {
		return false
	}
	return s.Acceptor.Accept(current, proposed, temperature, rng)
}

// Step is reported to observers once per iteration. Candidate is set only on acceptance and
// is the new current candidate.
type Step struct {
	Iteration       int
	Phase           Phase
	Temperature     float64
	CurrentFitness  float64
	ProposedFitness float64
	BestFitness     float64
	Candidate       *Candidate
	Mutations       map[string]parsetree.MutationReport
	Size            int
	Duration        time.Duration
}

func (s Step) Accepted() bool {
	return s.Phase == Accepted
}

type Observer interface {
	Observe(context.Context, Step) error
}

type ObserverFunc func(context.Context, Step) error

func (f ObserverFunc) Observe(ctx context.Context, s Step) error {
	return f(ctx, s)
}

type Result struct {
	Current        *Candidate
	Best           *Candidate
	CurrentFitness float64
	BestFitness    float64
	Iterations     int
	Accepted       int
	// Trace holds the current fitness after every iteration.
	Trace []float64
}

type Engine struct {
	Evaluator  Evaluator
	Acceptor   Acceptor
	Schedule   Schedule
	Iterations int
	Observers  []Observer
	Logger     zerolog.Logger
}

func (e *Engine) Validate() error {
	switch {
	case e.Evaluator == nil:
		return ErrNilEvaluator
	case e.Acceptor == nil:
		return ErrNilAcceptor
	case e.Schedule == nil:
		return ErrNilSchedule
	case e.Iterations <= 0:
		return fmt.Errorf("%w: got %d", ErrNonPositiveIterations, e.Iterations)
	}
	return nil
}

func (e *Engine) notify(ctx context.Context, step Step) error {
	for _, o := range e.Observers {
		if err := o.Observe(ctx, step); err != nil {
			return err
		}
	}
	return nil
}

// Run anneals from init for Iterations iterations, numbered from 2 so that ln(i) > 0.
// init is owned by the engine from here on.
func (e *Engine) Run(ctx context.Context, init *Candidate, rng *rand.Rand) (Result, error) {
	if err := e.Validate(); err != nil {
		return Result{}, err
	}
	if init == nil {
		return Result{}, ErrNoTrees
	}

	result := Result{
		Current:     init,
		Best:        init,
		BestFitness: math.Inf(-1),
		Trace:       make([]float64, 0, e.Iterations),
	}

	for i := 2; i <= e.Iterations+1; i++ {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		start := time.Now()

		proposal := result.Current.Clone()
		mutations, err := proposal.Mutate(rng)
		if err != nil {
			return result, fmt.Errorf("iteration %d: %w", i, err)
		}
		e.Logger.Debug().Int("iteration", i).Stringer("phase", ProposalBuilt).Int("size", proposal.Len()).Msg("proposal built")

		current, proposed, err := e.Evaluator.Evaluate(WithIteration(ctx, i), result.Current, proposal)
		if err != nil {
			return result, fmt.Errorf("iteration %d: %w", i, err)
		}
		e.Logger.Debug().Int("iteration", i).Stringer("phase", Evaluated).
			Float64("current", current).Float64("proposed", proposed).Msg("evaluated")

		if current > result.BestFitness {
			result.Best, result.BestFitness = result.Current, current
		}
		if proposed > result.BestFitness {
			result.Best, result.BestFitness = proposal, proposed
		}

		temperature := e.Schedule.Temperature(i)
		step := Step{
			Iteration:       i,
			Phase:           Rejected,
			Temperature:     temperature,
			CurrentFitness:  current,
			ProposedFitness: proposed,
			Mutations:       mutations,
		}

		result.CurrentFitness = current
		if e.Acceptor.Accept(current, proposed, temperature, rng) {
			result.Current, result.CurrentFitness = proposal, proposed
			result.Accepted++
			step.Phase = Accepted
			step.Candidate = proposal
			e.Logger.Info().Int("iteration", i).Float64("temperature", temperature).
				Float64("fitness", proposed).Int("size", proposal.Len()).Msg("accepted")
		}

		result.Iterations++
		result.Trace = append(result.Trace, result.CurrentFitness)
		step.BestFitness = result.BestFitness
		step.Size = result.Current.Len()
		step.Duration = time.Since(start)
		if err := e.notify(ctx, step); err != nil {
			return result, fmt.Errorf("iteration %d: observer: %w", i, err)
		}
	}
	return result, nil
}
