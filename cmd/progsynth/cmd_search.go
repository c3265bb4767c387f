package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/sw965/progsynth/checkpoint"
	"github.com/sw965/progsynth/dataset"
	"github.com/sw965/progsynth/metrics"
	"github.com/sw965/progsynth/oracle"
	"github.com/sw965/progsynth/sa"
)

func newSearchCmd(configPath *string) *cobra.Command {
	var resume string

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Anneal a program against the configured fitness",
		Long: `Run simulated annealing over the parse trees of the configured game.

The fitness is imitation (agreement with a recorded dataset), baseline (wins
against oracle.opponent) or selfplay (the proposal against the current program).
Every accepted iteration is checkpointed unless checkpoint.backend is none.

Use --resume to start from the latest checkpoint of an earlier run.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, *configPath, func(ctx context.Context, r runner) error {
				return r.search(ctx, resume)
			})
		},
	}
	cmd.Flags().StringVar(&resume, "resume", "", "run id to resume from")
	return cmd
}

func (a *app[S, M, A]) evaluator() (sa.Evaluator, error) {
	switch a.cfg.Search.Fitness {
	case "imitation":
		if a.cfg.Oracle.Dataset == "" {
			return nil, errors.New("imitation fitness needs oracle.dataset")
		}
		samples, err := dataset.Load[S, M](a.cfg.Oracle.Dataset)
		if err != nil {
			return nil, fmt.Errorf("load dataset: %w", err)
		}
		a.logger.Info().Int("samples", len(samples)).Interface("categories", samples.CountByCategory()).
			Msg("dataset loaded")
		return sa.Independent(oracle.ImitationFitness[S, M]{
			Materializer: a.materializer,
			Imitation: &oracle.Imitation[S, M]{
				Samples:   samples,
				Beta:      a.cfg.Oracle.Beta,
				Threshold: a.cfg.Oracle.Threshold,
				Workers:   a.cfg.Oracle.Workers,
				Category:  a.category,
			},
		}), nil
	case "selfplay":
		return oracle.SelfPlayFitness[S, M, A]{Materializer: a.materializer, Versus: a.newVersus()}, nil
	default:
		opponent, err := a.opponent()
		if err != nil {
			return nil, err
		}
		return sa.Concurrent(oracle.BaselineFitness[S, M, A]{
			Materializer: a.materializer,
			Versus:       a.newVersus(),
			Opponent:     opponent,
		}), nil
	}
}

func (a *app[S, M, A]) search(ctx context.Context, resume string) error {
	rng := a.rng()
	evaluator, err := a.evaluator()
	if err != nil {
		return err
	}

	var init *sa.Candidate
	if resume != "" {
		c, cp, err := a.load(ctx, resume)
		if err != nil {
			return err
		}
		a.logger.Info().Str("from", resume).Int("iteration", cp.Iteration).Float64("fitness", cp.Fitness).
			Msg("resumed")
		init = c
	} else {
		init, err = a.randomCandidate(rng)
		if err != nil {
			return err
		}
	}

	runID := checkpoint.NewRunID()
	logger := a.logger.With().Str("run_id", runID).Logger()
	m := metrics.NewObserver()
	observers := []sa.Observer{m}

	store, err := openStore(a.cfg.Checkpoint)
	switch {
	case errors.Is(err, errNoStore):
	case err != nil:
		return err
	default:
		defer store.Close()
		observers = append(observers, &checkpoint.Observer{
			Store:    store,
			RunID:    runID,
			Pairwise: a.cfg.Search.Fitness == "selfplay",
		})
	}

	if a.cfg.Oracle.EvalStep > 0 {
		observers = append(observers, &oracle.Validator[S, M, A]{
			Materializer:    a.materializer,
			Versus:          a.newVersus(),
			Opponents:       a.sortedOpponents(),
			Solitaire:       a.newSolitaire(),
			EvalStep:        a.cfg.Oracle.EvalStep,
			Logger:          logger,
			Report:          m.ObserveValidation,
			ReportSolitaire: m.ObserveSolitaire,
		})
	}

	engine := &sa.Engine{
		Evaluator:  evaluator,
		Acceptor:   a.newAcceptor(),
		Schedule:   a.newSchedule(),
		Iterations: a.cfg.Search.Iterations,
		Observers:  observers,
		Logger:     logger,
	}
	result, err := engine.Run(ctx, init, rng)
	if err != nil {
		return err
	}
	if path := a.cfg.Metrics.Textfile; path != "" {
		if err := m.WriteTextfile(path); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}

	s := sa.Summarize(result.Trace)
	fmt.Fprintf(a.out, "%s %s\n", a.title("run"), runID)
	fmt.Fprintf(a.out, "iterations %d, accepted %d\n", result.Iterations, result.Accepted)
	fmt.Fprintf(a.out, "fitness best %.4g, mean %.4g, stddev %.4g, min %.4g, max %.4g\n",
		result.BestFitness, s.Mean, s.StdDev, s.Min, s.Max)
	a.printPrograms(result.Best)
	return nil
}
