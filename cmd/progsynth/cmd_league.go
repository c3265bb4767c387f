package main

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/spf13/cobra"
	"github.com/sw965/progsynth/game"
	"github.com/sw965/progsynth/oracle"
)

func newLeagueCmd(configPath *string) *cobra.Command {
	var (
		games int
		runID string
	)

	cmd := &cobra.Command{
		Use:   "league",
		Short: "Play every opponent against every other one",
		Long: `Play every ordered seating of the available opponents over the same
initial states and rank them by mean result score. With --run the latest
checkpoint of that run joins the league as "program".`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if games <= 0 {
				return fmt.Errorf("--games must be > 0, got %d", games)
			}
			return run(cmd, *configPath, func(ctx context.Context, r runner) error {
				return r.league(ctx, games, runID)
			})
		},
	}
	cmd.Flags().IntVarP(&games, "games", "n", 20, "games per seating")
	cmd.Flags().StringVar(&runID, "run", "", "include the latest program of this run")
	return cmd
}

func (a *app[S, M, A]) league(ctx context.Context, games int, runID string) error {
	actors := a.sortedOpponents()
	if runID != "" {
		c, _, err := a.load(ctx, runID)
		if err != nil {
			return err
		}
		program, err := oracle.NewActor[S, M, A](a.materializer, "program", c)
		if err != nil {
			return err
		}
		actors = append(actors, program)
	}

	inits, err := a.inits(games, a.rng())
	if err != nil {
		return err
	}
	cp, err := a.engine.NewCrossPlayouter(inits, actors, a.cfg.Oracle.MaxPlies, a.workerRNGs())
	if err != nil {
		return err
	}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		_, seats, ok, err := cp.Next()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		a.logger.Debug().Interface("seats", seats).Msg("seating played")
	}

	mean := func(name game.ActorName) float32 {
		return cp.ScoreByActorName[name] / float32(max(cp.GamesByActorName[name], 1))
	}
	names := slices.SortedFunc(maps.Keys(cp.ScoreByActorName), func(x, y game.ActorName) int {
		return cmp.Or(cmp.Compare(mean(y), mean(x)), cmp.Compare(x, y))
	})
	fmt.Fprintf(a.out, "%s %d seatings of %d games\n", a.title("league"), cp.Len(), games)
	for _, name := range names {
		fmt.Fprintf(a.out, "  %-8s %.3f over %d games\n", name, mean(name), cp.GamesByActorName[name])
	}
	return nil
}
