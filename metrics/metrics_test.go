package metrics_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sw965/progsynth/metrics"
	"github.com/sw965/progsynth/oracle"
	"github.com/sw965/progsynth/sa"
)

func gather(t *testing.T, o *metrics.Observer) map[string]float64 {
	t.Helper()
	families, err := o.Registry().Gather()
	require.NoError(t, err)

	values := map[string]float64{}
	for _, f := range families {
		for _, m := range f.GetMetric() {
			switch {
			case m.GetCounter() != nil:
				values[f.GetName()] = m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				name := f.GetName()
				for _, l := range m.GetLabel() {
					name += "/" + l.GetValue()
				}
				values[name] = m.GetGauge().GetValue()
			case m.GetHistogram() != nil:
				values[f.GetName()] = float64(m.GetHistogram().GetSampleCount())
			}
		}
	}
	return values
}

func TestObserver(t *testing.T) {
	o := metrics.NewObserver()
	ctx := context.Background()

	require.NoError(t, o.Observe(ctx, sa.Step{
		Iteration: 2, Phase: sa.Rejected, Temperature: 3, CurrentFitness: 0.2, ProposedFitness: 0.1,
		BestFitness: 0.2, Size: 10, Duration: time.Millisecond,
	}))
	require.NoError(t, o.Observe(ctx, sa.Step{
		Iteration: 3, Phase: sa.Accepted, Temperature: 2, CurrentFitness: 0.2, ProposedFitness: 0.5,
		BestFitness: 0.5, Size: 12, Duration: time.Millisecond,
	}))
	o.ObserveValidation(oracle.Validation{Opponent: "glenn", Result: oracle.Result{Wins: 3, Losses: 1}})
	o.ObserveSolitaire(oracle.SolitaireValidation{Result: oracle.SolitaireResult{Games: 4, Finished: 4, Mean: 11.5, StdDev: 2}})

	values := gather(t, o)
	assert.Equal(t, 2.0, values["progsynth_iterations_total"])
	assert.Equal(t, 1.0, values["progsynth_accepted_total"])
	assert.Equal(t, 2.0, values["progsynth_temperature"])
	assert.Equal(t, 0.5, values["progsynth_current_fitness"])
	assert.Equal(t, 0.5, values["progsynth_best_fitness"])
	assert.Equal(t, 12.0, values["progsynth_tree_nodes"])
	assert.Equal(t, 2.0, values["progsynth_iteration_duration_seconds"])
	assert.Equal(t, 0.75, values["progsynth_validation_win_rate/glenn"])
	assert.Equal(t, 11.5, values["progsynth_validation_solitaire_rounds"])
	assert.Equal(t, 2.0, values["progsynth_validation_solitaire_rounds_stddev"])

	// Registries are private to each observer.
	assert.Zero(t, gather(t, metrics.NewObserver())["progsynth_iterations_total"])
}

func TestWriteTextfile(t *testing.T) {
	o := metrics.NewObserver()
	require.NoError(t, o.Observe(context.Background(), sa.Step{Iteration: 2, Phase: sa.Accepted}))

	path := filepath.Join(t.TempDir(), "progsynth.prom")
	require.NoError(t, o.WriteTextfile(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "progsynth_accepted_total 1")
}
