package main

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/spf13/cobra"
	"github.com/sw965/progsynth/oracle"
	"github.com/sw965/progsynth/sa"
)

func newSelfPlayCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "selfplay",
		Short: "Iterate best responses against the current program",
		Long: `Search search.rounds best responses. Each round anneals a fresh program
against the incumbent and replaces it when the response wins more games than
it loses.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, *configPath, func(ctx context.Context, r runner) error {
				return r.selfPlay(ctx)
			})
		},
	}
}

func (a *app[S, M, A]) selfPlay(ctx context.Context) error {
	versus := a.newVersus()
	compare := oracle.SelfPlayFitness[S, M, A]{Materializer: a.materializer, Versus: versus}

	ibr := &sa.IteratedBestResponse{
		NewCandidate: func(rng *rand.Rand) (*sa.Candidate, error) {
			return a.randomCandidate(rng)
		},
		NewSearch: func(incumbent *sa.Candidate) (*sa.Engine, error) {
			opponent, err := oracle.NewActor[S, M, A](a.materializer, "incumbent", incumbent)
			if err != nil {
				return nil, err
			}
			return &sa.Engine{
				Evaluator: sa.Concurrent(oracle.BaselineFitness[S, M, A]{
					Materializer: a.materializer,
					Versus:       versus,
					Opponent:     opponent,
				}),
				Acceptor:   a.newAcceptor(),
				Schedule:   a.newSchedule(),
				Iterations: a.cfg.Search.Iterations,
				Logger:     a.logger,
			}, nil
		},
		Compare: compare.Compare,
		Rounds:  a.cfg.Search.Rounds,
		Logger:  a.logger,
	}
	result, err := ibr.Run(ctx, a.rng())
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "%s rounds %d, replacements %d\n", a.title("selfplay"), result.Rounds, result.Replacements)
	a.printPrograms(result.Incumbent)
	return nil
}
