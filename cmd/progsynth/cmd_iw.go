package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/sw965/progsynth/iw"
	"github.com/sw965/progsynth/oracle"
	"github.com/sw965/progsynth/parsetree"
	"github.com/sw965/progsynth/sa"
)

func newIWCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "iw",
		Short: "Enumerate single programs with iterated width",
		Long: `Enumerate the programs of the one-program grammar breadth first, pruning
partial trees that add no novel pairing of width tree.pairing_width. Every
complete program is scored by its wins against oracle.opponent.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, *configPath, func(ctx context.Context, r runner) error {
				return r.iw(ctx)
			})
		},
	}
}

func (a *app[S, M, A]) iw(ctx context.Context) error {
	opponent, err := a.opponent()
	if err != nil {
		return err
	}
	fitness := oracle.BaselineFitness[S, M, A]{
		Materializer: oracle.Materializer[S, M]{Features: a.features},
		Versus:       a.newVersus(),
		Opponent:     opponent,
	}

	search := &iw.Search{
		Grammar:   a.single,
		Width:     a.cfg.Tree.PairingWidth,
		MaxNodes:  a.cfg.Tree.MaxNodes,
		MaxStates: a.cfg.Tree.MaxStates,
		Fitness: func(ctx context.Context, t *parsetree.Tree) (float64, error) {
			c, err := sa.NewCandidate(map[string]*parsetree.Tree{sa.MainTree: t})
			if err != nil {
				return 0, err
			}
			return fitness.Score(ctx, c)
		},
		Logger: a.logger,
	}
	result, err := search.Run(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "%s generated %d, expanded %d, pruned %d, evaluated %d\n",
		a.title("iw"), result.Generated, result.Expanded, result.Pruned, result.Evaluated)
	fmt.Fprintf(a.out, "best %.4g against %s\n%s\n", result.BestFitness, opponent.Name, result.Best.Program())
	return nil
}
