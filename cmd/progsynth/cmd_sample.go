package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newSampleCmd(configPath *string) *cobra.Command {
	var n int

	cmd := &cobra.Command{
		Use:   "sample",
		Short: "Print random programs of the configured game",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, *configPath, func(_ context.Context, r runner) error {
				return r.sample(n)
			})
		},
	}
	cmd.Flags().IntVarP(&n, "count", "n", 3, "number of programs")
	return cmd
}

func (a *app[S, M, A]) sample(n int) error {
	rng := a.rng()
	for i := range n {
		c, err := a.randomCandidate(rng)
		if err != nil {
			return err
		}
		// Compiling catches a grammar that produces programs the interpreter rejects.
		if _, err := a.materializer.Decider(c); err != nil {
			return fmt.Errorf("sample %d: %w", i, err)
		}
		fmt.Fprintf(a.out, "%s %d nodes\n", a.title(fmt.Sprintf("#%d", i+1)), c.Len())
		a.printPrograms(c)
	}
	return nil
}
