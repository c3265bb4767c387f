package main

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/spf13/cobra"
	"github.com/sw965/progsynth/dataset"
)

func newRecordCmd(configPath *string) *cobra.Command {
	var (
		games int
		out   string
	)

	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record the decisions of the reference player",
		Long: `Play the reference player against itself and save every decision it makes
as an imitation sample. The dataset is written to --out, or oracle.dataset when
--out is not set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if games <= 0 {
				return fmt.Errorf("--games must be > 0, got %d", games)
			}
			return run(cmd, *configPath, func(_ context.Context, r runner) error {
				return r.record(games, out)
			})
		},
	}
	cmd.Flags().IntVarP(&games, "games", "n", 100, "number of games to record")
	cmd.Flags().StringVarP(&out, "out", "o", "", "dataset file")
	return cmd
}

func (a *app[S, M, A]) record(games int, path string) error {
	if path == "" {
		path = a.cfg.Oracle.Dataset
	}
	if path == "" {
		return errors.New("no dataset path: set --out or oracle.dataset")
	}

	inits, err := a.inits(games, a.rng())
	if err != nil {
		return err
	}
	recorder := dataset.Recorder[S, M, A]{
		Engine:    a.engine,
		Reference: a.reference,
		MaxPlies:  a.cfg.Oracle.MaxPlies,
		Category:  a.category,
	}
	d, err := recorder.Record(inits, a.workerRNGs())
	if err != nil {
		return err
	}
	if err := dataset.Save(d, path); err != nil {
		return err
	}
	a.logger.Info().Str("path", path).Int("games", games).Int("samples", len(d)).Msg("dataset saved")

	fmt.Fprintf(a.out, "%s %d samples from %s\n", a.title(path), len(d), a.reference.Name)
	counts := d.CountByCategory()
	for _, category := range slices.Sorted(maps.Keys(counts)) {
		fmt.Fprintf(a.out, "  %-10s %d\n", category, counts[category])
	}
	return nil
}
