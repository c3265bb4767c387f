// Package dataset records reference decisions for imitation scoring.
//
// Package dataset は模倣評価の為の参照行動を記録します。
package dataset

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"

	"github.com/sw965/omw/encoding/gobx"
	"github.com/sw965/progsynth/game/sequential"
)

var ErrInvalidRatio = errors.New("ratio must be in [0, 1]")

// Sample is one reference decision. Weight is how confident the reference was, and samples
// below an importance threshold can be left out of scoring.
type Sample[S any, M comparable] struct {
	State    S
	Moves    []M
	Move     M
	Weight   float64
	Category string
}

type Dataset[S any, M comparable] []Sample[S, M]

// Filter keeps the samples with Weight >= threshold.
func (d Dataset[S, M]) Filter(threshold float64) Dataset[S, M] {
	out := make(Dataset[S, M], 0, len(d))
	for _, s := range d {
		if s.Weight >= threshold {
			out = append(out, s)
		}
	}
	return out
}

func (d Dataset[S, M]) CountByCategory() map[string]int {
	counts := map[string]int{}
	for _, s := range d {
		counts[s.Category]++
	}
	return counts
}

// Split shuffles a copy of d and cuts it so the first part holds ratio of the samples.
func (d Dataset[S, M]) Split(ratio float64, rng *rand.Rand) (Dataset[S, M], Dataset[S, M], error) {
	if ratio < 0 || ratio > 1 {
		return nil, nil, fmt.Errorf("%w: got %v", ErrInvalidRatio, ratio)
	}
	shuffled := slices.Clone(d)
	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	n := int(float64(len(shuffled)) * ratio)
	return shuffled[:n], shuffled[n:], nil
}

func Save[S any, M comparable](d Dataset[S, M], path string) error {
	return gobx.Save(d, path)
}

func Load[S any, M comparable](path string) (Dataset[S, M], error) {
	return gobx.Load[Dataset[S, M]](path)
}

// CategoryFunc names the kind of a decision, such as a stop, a continue or a column choice.
type CategoryFunc[S any, M comparable] func(S, M) string

// Recorder plays the reference actor against itself and turns every decision into a sample.
type Recorder[S any, M, A comparable] struct {
	Engine    sequential.Engine[S, M, A]
	Reference sequential.Actor[S, M, A]
	MaxPlies  int
	Category  CategoryFunc[S, M]
}

// Record plays one game per init. The workers are one per rng.
func (r Recorder[S, M, A]) Record(inits []S, rngs []*rand.Rand) (Dataset[S, M], error) {
	records, err := r.Engine.RecordPlayouts(inits, r.Reference, r.MaxPlies, rngs)
	if err != nil {
		return nil, err
	}

	d := Dataset[S, M]{}
	for _, record := range records {
		for _, step := range record.Steps {
			var weight float32
			for m := range step.Policy {
				weight = max(weight, step.Policy.Prob(m))
			}

			sample := Sample[S, M]{
				State:  step.State,
				Moves:  r.Engine.Logic.LegalMovesFunc(step.State),
				Move:   step.Move,
				Weight: float64(weight),
			}
			if r.Category != nil {
				sample.Category = r.Category(step.State, step.Move)
			}
			d = append(d, sample)
		}
	}
	return d, nil
}
