// Package checkpoint persists the accepted iterations of a search so a run can be inspected
// or resumed from its latest program.
//
// Package checkpoint は探索で受理された反復を保存します。
package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sw965/progsynth/grammar"
	"github.com/sw965/progsynth/parsetree"
	"github.com/sw965/progsynth/sa"
)

var ErrNotFound = errors.New("checkpoint not found")

type Checkpoint struct {
	RunID       string                        `yaml:"run_id" json:"run_id"`
	Iteration   int                           `yaml:"iteration" json:"iteration"`
	Temperature float64                       `yaml:"temperature" json:"temperature"`
	Fitness     float64                       `yaml:"fitness" json:"fitness"`
	Programs    map[string]string             `yaml:"programs" json:"programs"`
	Trees       map[string]parsetree.Snapshot `yaml:"trees" json:"trees"`
	SavedAt     time.Time                     `yaml:"saved_at" json:"saved_at"`
	// Pairwise marks a fitness that only ranks a proposal against the program it replaced.
	// Such values are not compared across checkpoints.
	Pairwise bool `yaml:"pairwise,omitempty" json:"pairwise,omitempty"`
}

// Candidate rebuilds the stored trees with their grammars.
func (c Checkpoint) Candidate(grammars map[string]*grammar.Grammar, maxNodes int) (*sa.Candidate, error) {
	trees := make(map[string]*parsetree.Tree, len(c.Trees))
	for name, s := range c.Trees {
		g, ok := grammars[name]
		if !ok {
			return nil, fmt.Errorf("no grammar for tree %q", name)
		}
		t, err := parsetree.Restore(g, s, maxNodes)
		if err != nil {
			return nil, fmt.Errorf("tree %q: %w", name, err)
		}
		trees[name] = t
	}
	return sa.NewCandidate(trees)
}

// Store keeps checkpoints per run. List returns them in iteration order.
type Store interface {
	Save(context.Context, Checkpoint) error
	Latest(ctx context.Context, runID string) (Checkpoint, error)
	List(ctx context.Context, runID string) ([]Checkpoint, error)
	Close() error
}

func NewRunID() string {
	return uuid.NewString()
}

// Observer saves every accepted step of a search into Store.
type Observer struct {
	Store Store
	RunID string
	// Now is time.Now when nil.
	Now func() time.Time
	// Pairwise is set for self-play searches. See Checkpoint.Pairwise.
	Pairwise bool
}

func NewObserver(store Store) *Observer {
	return &Observer{Store: store, RunID: NewRunID()}
}

func (o *Observer) Observe(ctx context.Context, step sa.Step) error {
	if !step.Accepted() {
		return nil
	}
	now := time.Now
	if o.Now != nil {
		now = o.Now
	}
	return o.Store.Save(ctx, Checkpoint{
		RunID:       o.RunID,
		Iteration:   step.Iteration,
		Temperature: step.Temperature,
		Fitness:     step.ProposedFitness,
		Programs:    step.Candidate.Programs(),
		Trees:       step.Candidate.Snapshots(),
		SavedAt:     now().UTC(),
		Pairwise:    o.Pairwise,
	})
}
