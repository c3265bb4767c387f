// Package oracle scores programs, either by how closely they imitate recorded reference
// decisions or by how they fare in games against other actors.
//
// Package oracle はプログラムを、参照行動の模倣度またはゲームの対戦成績で評価します。
package oracle

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/sourcegraph/conc/pool"
	"github.com/sw965/progsynth/dataset"
	"github.com/sw965/progsynth/dsl"
)

var (
	ErrNoSamples          = errors.New("no samples at or above the importance threshold")
	ErrNegativeBeta       = errors.New("Beta must be >= 0")
	ErrNonPositiveWorkers = errors.New("Workers must be > 0")
)

type CategoryResult struct {
	Samples     int
	Errors      int
	Weight      float64
	ErrorWeight float64
}

// Rate is the weighted error rate of the category.
func (c CategoryResult) Rate() float64 {
	if c.Weight == 0 {
		return 0
	}
	return c.ErrorWeight / c.Weight
}

func (c *CategoryResult) add(o CategoryResult) {
	c.Samples += o.Samples
	c.Errors += o.Errors
	c.Weight += o.Weight
	c.ErrorWeight += o.ErrorWeight
}

type ImitationResult struct {
	Samples int
	Errors  int
	// Rate is the weighted error rate over every scored sample.
	Rate float64
	// Fitness is exp(-Beta*Rate). Higher is better and a perfect imitation scores 1.
	Fitness    float64
	ByCategory map[string]CategoryResult
}

// Imitation compares a decider against recorded reference decisions.
type Imitation[S any, M comparable] struct {
	Samples dataset.Dataset[S, M]
	Beta    float64
	// Threshold drops samples whose Weight is below it.
	Threshold float64
	Workers   int
	// Category overrides the category stored in each sample when set.
	Category dataset.CategoryFunc[S, M]
}

func (im *Imitation[S, M]) Validate() error {
	switch {
	case im.Beta < 0:
		return fmt.Errorf("%w, got %v", ErrNegativeBeta, im.Beta)
	case im.Workers <= 0:
		return fmt.Errorf("%w, got %d", ErrNonPositiveWorkers, im.Workers)
	}
	return nil
}

func (im *Imitation[S, M]) category(s dataset.Sample[S, M]) string {
	if im.Category != nil {
		return im.Category(s.State, s.Move)
	}
	return s.Category
}

// decideSafely turns a panic inside d into a runtime error.
func decideSafely[S any, M comparable](d dsl.Decider[S, M], state S, moves []M) (move M, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic: %v", dsl.ErrRuntime, r)
		}
	}()
	return d.Decide(state, moves)
}

// Score runs d over the samples kept by Threshold. A decider error counts as a mismatch.
// The chunks are scored concurrently and joined before returning.
func (im *Imitation[S, M]) Score(ctx context.Context, d dsl.Decider[S, M]) (ImitationResult, error) {
	if err := im.Validate(); err != nil {
		return ImitationResult{}, err
	}
	if err := ctx.Err(); err != nil {
		return ImitationResult{}, err
	}

	samples := im.Samples.Filter(im.Threshold)
	if len(samples) == 0 {
		return ImitationResult{}, ErrNoSamples
	}

	chunk := (len(samples) + im.Workers - 1) / im.Workers
	var mu sync.Mutex
	byCategory := map[string]CategoryResult{}

	p := pool.New().WithMaxGoroutines(im.Workers)
	for start := 0; start < len(samples); start += chunk {
		part := samples[start:min(start+chunk, len(samples))]
		p.Go(func() {
			local := map[string]CategoryResult{}
			for _, s := range part {
				r := CategoryResult{Samples: 1, Weight: s.Weight}
				move, err := decideSafely(d, s.State, s.Moves)
				if err != nil || move != s.Move {
					r.Errors = 1
					r.ErrorWeight = s.Weight
				}
				c := local[im.category(s)]
				c.add(r)
				local[im.category(s)] = c
			}

			mu.Lock()
			defer mu.Unlock()
			for name, r := range local {
				c := byCategory[name]
				c.add(r)
				byCategory[name] = c
			}
		})
	}
	p.Wait()

	var total CategoryResult
	for _, r := range byCategory {
		total.add(r)
	}
	rate := total.Rate()
	return ImitationResult{
		Samples:    total.Samples,
		Errors:     total.Errors,
		Rate:       rate,
		Fitness:    math.Exp(-im.Beta * rate),
		ByCategory: byCategory,
	}, nil
}
