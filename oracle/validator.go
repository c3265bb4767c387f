package oracle

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/sw965/progsynth/dsl"
	"github.com/sw965/progsynth/game"
	"github.com/sw965/progsynth/game/sequential"
	"github.com/sw965/progsynth/sa"
	"golang.org/x/sync/errgroup"
)

type Validation struct {
	Iteration int
	Opponent  game.ActorName
	Result    Result
}

type SolitaireValidation struct {
	Iteration int
	Result    SolitaireResult
}

// Validator plays the current program against reference opponents every EvalStep accepted
// iterations, and alone when Solitaire is set. It is an sa.Observer.
type Validator[S any, M, A comparable] struct {
	Materializer Materializer[S, M]
	Versus       *Versus[S, M, A]
	Opponents    []sequential.Actor[S, M, A]
	Solitaire    *Solitaire[S, M]
	EvalStep     int
	Logger       zerolog.Logger
	// Report receives every validation after it is logged.
	Report          func(Validation)
	ReportSolitaire func(SolitaireValidation)

	accepted         int
	History          []Validation
	SolitaireHistory []SolitaireValidation
}

func (v *Validator[S, M, A]) Observe(ctx context.Context, step sa.Step) error {
	if !step.Accepted() || v.EvalStep <= 0 {
		return nil
	}
	v.accepted++
	if v.accepted%v.EvalStep != 0 {
		return nil
	}
	_, err := v.Validate(ctx, step.Iteration, step.Candidate)
	return err
}

// Validate plays c against every opponent concurrently, together with the solitaire games.
func (v *Validator[S, M, A]) Validate(ctx context.Context, iteration int, c *sa.Candidate) ([]Validation, error) {
	d, err := v.Materializer.Decider(c)
	if err != nil {
		return nil, err
	}
	player := dsl.Actor[S, M, A]("candidate", d)

	validations := make([]Validation, len(v.Opponents))
	g, gctx := errgroup.WithContext(ctx)
	for i, opponent := range v.Opponents {
		g.Go(func() error {
			result, err := v.Versus.Play(gctx, player, opponent)
			if err != nil {
				return fmt.Errorf("against %q: %w", opponent.Name, err)
			}
			validations[i] = Validation{Iteration: iteration, Opponent: opponent.Name, Result: result}
			return nil
		})
	}
	var solitaire SolitaireResult
	if v.Solitaire != nil {
		g.Go(func() error {
			var err error
			solitaire, err = v.Solitaire.Score(gctx, d)
			if err != nil {
				return fmt.Errorf("solitaire: %w", err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, val := range validations {
		lo, hi := val.Result.WinRateInterval(0.95)
		v.Logger.Info().Int("iteration", iteration).Str("opponent", string(val.Opponent)).
			Int("wins", val.Result.Wins).Int("losses", val.Result.Losses).Int("draws", val.Result.Draws).
			Int("errors", val.Result.Errors).Float64("win_rate", val.Result.WinRate()).
			Float64("ci_low", lo).Float64("ci_high", hi).Msg("validation")
		if v.Report != nil {
			v.Report(val)
		}
	}
	v.History = append(v.History, validations...)

	if v.Solitaire != nil {
		v.Logger.Info().Int("iteration", iteration).Int("games", solitaire.Games).
			Int("finished", solitaire.Finished).Int("errors", solitaire.Errors).
			Float64("rounds_mean", solitaire.Mean).Float64("rounds_std", solitaire.StdDev).Msg("solitaire validation")
		val := SolitaireValidation{Iteration: iteration, Result: solitaire}
		if v.ReportSolitaire != nil {
			v.ReportSolitaire(val)
		}
		v.SolitaireHistory = append(v.SolitaireHistory, val)
	}
	return validations, nil
}
