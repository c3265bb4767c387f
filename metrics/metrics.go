// Package metrics exports the progress of a search as prometheus metrics.
package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sw965/progsynth/oracle"
	"github.com/sw965/progsynth/sa"
)

const namespace = "progsynth"

// Observer is an sa.Observer backed by its own registry, so several searches in one process
// do not share collectors.
type Observer struct {
	registry *prometheus.Registry

	iterations  prometheus.Counter
	accepted    prometheus.Counter
	temperature prometheus.Gauge
	current     prometheus.Gauge
	best        prometheus.Gauge
	size        prometheus.Gauge
	duration    prometheus.Histogram
	winRate     *prometheus.GaugeVec

	solitaireMean   prometheus.Gauge
	solitaireStdDev prometheus.Gauge
}

func NewObserver() *Observer {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Observer{
		registry: reg,
		iterations: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "iterations_total",
			Help:      "Search iterations run.",
		}),
		accepted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "accepted_total",
			Help:      "Proposals accepted.",
		}),
		temperature: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "temperature",
			Help:      "Temperature of the latest iteration.",
		}),
		current: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "current_fitness",
			Help:      "Fitness of the current candidate.",
		}),
		best: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "best_fitness",
			Help:      "Best fitness seen so far.",
		}),
		size: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tree_nodes",
			Help:      "Node count of the current candidate.",
		}),
		duration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "iteration_duration_seconds",
			Help:      "Wall time of one iteration, evaluation included.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
		winRate: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "validation_win_rate",
			Help:      "Win rate of the latest validation against each reference opponent.",
		}, []string{"opponent"}),
		solitaireMean: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "validation_solitaire_rounds",
			Help:      "Mean rounds the latest solitaire validation needed to finish a game.",
		}),
		solitaireStdDev: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "validation_solitaire_rounds_stddev",
			Help:      "Standard deviation of the rounds of the latest solitaire validation.",
		}),
	}
}

func (o *Observer) Registry() *prometheus.Registry {
	return o.registry
}

func (o *Observer) Observe(_ context.Context, step sa.Step) error {
	o.iterations.Inc()
	if step.Accepted() {
		o.accepted.Inc()
		o.current.Set(step.ProposedFitness)
	} else {
		o.current.Set(step.CurrentFitness)
	}
	o.temperature.Set(step.Temperature)
	o.best.Set(step.BestFitness)
	o.size.Set(float64(step.Size))
	o.duration.Observe(step.Duration.Seconds())
	return nil
}

// ObserveValidation fits oracle.Validator.Report.
func (o *Observer) ObserveValidation(v oracle.Validation) {
	o.winRate.WithLabelValues(string(v.Opponent)).Set(v.Result.WinRate())
}

// ObserveSolitaire fits oracle.Validator.ReportSolitaire.
func (o *Observer) ObserveSolitaire(v oracle.SolitaireValidation) {
	o.solitaireMean.Set(v.Result.Mean)
	o.solitaireStdDev.Set(v.Result.StdDev)
}

// WriteTextfile writes every metric in the text format read by the node exporter.
func (o *Observer) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, o.registry)
}
