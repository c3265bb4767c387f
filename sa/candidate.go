package sa

import (
	"errors"
	"fmt"
	"maps"
	"math/rand/v2"
	"slices"

	"github.com/sw965/progsynth/grammar"
	"github.com/sw965/progsynth/parsetree"
)

// MainTree names the only tree of a single-program candidate.
const MainTree = "main"

var ErrNoTrees = errors.New("candidate must have at least one tree")

// Candidate is a set of named parse trees that are mutated, rendered and scored together.
type Candidate struct {
	names []string
	trees map[string]*parsetree.Tree
}

func NewCandidate(trees map[string]*parsetree.Tree) (*Candidate, error) {
	if len(trees) == 0 {
		return nil, ErrNoTrees
	}
	for name, tree := range trees {
		if tree == nil {
			return nil, fmt.Errorf("tree %q must not be nil", name)
		}
	}
	return &Candidate{
		names: slices.Sorted(maps.Keys(trees)),
		trees: maps.Clone(trees),
	}, nil
}

// NewRandomCandidate builds one random tree per grammar.
func NewRandomCandidate(grammars map[string]*grammar.Grammar, maxNodes int, rng *rand.Rand) (*Candidate, error) {
	trees := make(map[string]*parsetree.Tree, len(grammars))
	for _, name := range slices.Sorted(maps.Keys(grammars)) {
		tree, err := parsetree.New(grammars[name], maxNodes)
		if err != nil {
			return nil, fmt.Errorf("tree %q: %w", name, err)
		}
		if err := tree.Build(rng); err != nil {
			return nil, fmt.Errorf("tree %q: %w", name, err)
		}
		trees[name] = tree
	}
	return NewCandidate(trees)
}

func (c *Candidate) Names() []string {
	return slices.Clone(c.names)
}

func (c *Candidate) Tree(name string) (*parsetree.Tree, bool) {
	t, ok := c.trees[name]
	return t, ok
}

// Clone deep-copies every tree.
func (c *Candidate) Clone() *Candidate {
	trees := make(map[string]*parsetree.Tree, len(c.trees))
	for name, t := range c.trees {
		trees[name] = t.Clone()
	}
	return &Candidate{names: slices.Clone(c.names), trees: trees}
}

// Mutate applies one mutation to every tree, in name order so a seeded rng reproduces the result.
func (c *Candidate) Mutate(rng *rand.Rand) (map[string]parsetree.MutationReport, error) {
	reports := make(map[string]parsetree.MutationReport, len(c.names))
	for _, name := range c.names {
		report, err := c.trees[name].Mutate(rng)
		if err != nil {
			return nil, fmt.Errorf("tree %q: %w", name, err)
		}
		reports[name] = report
	}
	return reports, nil
}

func (c *Candidate) Programs() map[string]string {
	programs := make(map[string]string, len(c.names))
	for _, name := range c.names {
		programs[name] = c.trees[name].Program()
	}
	return programs
}

func (c *Candidate) Snapshots() map[string]parsetree.Snapshot {
	snapshots := make(map[string]parsetree.Snapshot, len(c.names))
	for _, name := range c.names {
		snapshots[name] = c.trees[name].Snapshot()
	}
	return snapshots
}

// Len is the total node count over all trees.
func (c *Candidate) Len() int {
	n := 0
	for _, t := range c.trees {
		n += t.Len()
	}
	return n
}
