// Package iw enumerates programs breadth first over partial parse trees and prunes the
// states that add no new k-pairing of node values (Iterated Width).
//
// Package iw は部分構文木を幅優先で列挙し、新しいk-pairingを持たない状態を枝刈りします。
package iw

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/rs/zerolog"
	"github.com/sw965/progsynth/grammar"
	"github.com/sw965/progsynth/parsetree"
)

var (
	ErrNoComplete = errors.New("no complete program was reached")
	ErrNilFitness = errors.New("Fitness must not be nil")
)

type FitnessFunc func(context.Context, *parsetree.Tree) (float64, error)

type Search struct {
	Grammar *grammar.Grammar
	// Width is k, the largest pairing size checked for novelty.
	Width int
	// MaxNodes drops any partial tree that grows past it.
	MaxNodes int
	// MaxStates caps the number of states taken off the queue.
	MaxStates int
	Fitness   FitnessFunc
	Logger    zerolog.Logger
}

type Result struct {
	Best        *parsetree.Tree
	BestFitness float64
	// Generated counts the children produced by expansion, pruned or not.
	Generated int
	Expanded  int
	Pruned    int
	Evaluated int
}

func (s *Search) Validate() error {
	switch {
	case s.Grammar == nil:
		return fmt.Errorf("Grammar must not be nil")
	case s.Fitness == nil:
		return ErrNilFitness
	case s.Width < 1:
		return fmt.Errorf("Width must be >= 1, got %d", s.Width)
	case s.MaxNodes < 1:
		return fmt.Errorf("MaxNodes must be >= 1, got %d", s.MaxNodes)
	case s.MaxStates < 1:
		return fmt.Errorf("MaxStates must be >= 1, got %d", s.MaxStates)
	}
	return nil
}

// table remembers every pairing seen so far, per pairing size.
type table map[int]map[string]struct{}

// novelty returns the smallest i <= k with an unseen pairing of size i, or 0 when t adds
// nothing new. Every pairing of t is recorded either way.
func (tb table) novelty(t *parsetree.Tree) (int, error) {
	novelty := 0
	for i := 1; i <= t.PairingWidth(); i++ {
		values, err := t.PairingValues(i)
		if err != nil {
			return 0, err
		}
		seen, ok := tb[i]
		if !ok {
			seen = map[string]struct{}{}
			tb[i] = seen
		}
		for _, vs := range values {
			key := strings.Join(vs, "\x00")
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			if novelty == 0 {
				novelty = i
			}
		}
	}
	return novelty, nil
}

// open returns the first childless nonterminal in pre-order, or nil on a complete tree.
// Finishability does not matter here: every production is enumerated anyway, and a tree
// holding any unexpanded nonterminal is not a program.
func open(t *parsetree.Tree) *parsetree.Node {
	for _, n := range t.Leaves() {
		if !n.IsTerminal {
			return n
		}
	}
	return nil
}

func (s *Search) Run(ctx context.Context) (Result, error) {
	if err := s.Validate(); err != nil {
		return Result{}, err
	}

	root, err := parsetree.New(s.Grammar, s.MaxNodes)
	if err != nil {
		return Result{}, err
	}
	if err := root.SetPairingWidth(s.Width); err != nil {
		return Result{}, err
	}
	seen := table{}
	if _, err := seen.novelty(root); err != nil {
		return Result{}, err
	}

	result := Result{BestFitness: math.Inf(-1)}
	queue := []*parsetree.Tree{root}
	for len(queue) > 0 && result.Expanded < s.MaxStates {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		t := queue[0]
		queue = queue[1:]
		result.Expanded++

		node := open(t)
		if node == nil {
			fitness, err := s.Fitness(ctx, t)
			if err != nil {
				return result, err
			}
			result.Evaluated++
			if fitness > result.BestFitness {
				result.Best, result.BestFitness = t, fitness
				s.Logger.Debug().Float64("fitness", fitness).Str("program", t.Program()).Msg("new best")
			}
			continue
		}

		productions, err := s.Grammar.Productions(node.Value)
		if err != nil {
			return result, err
		}
		for _, p := range productions {
			child := t.Clone()
			if err := child.ExpandNode(child.Find(node.ID), p); err != nil {
				return result, err
			}
			child.Renumber()
			result.Generated++

			if child.Len() > s.MaxNodes {
				result.Pruned++
				continue
			}
			novelty, err := seen.novelty(child)
			if err != nil {
				return result, err
			}
			if novelty == 0 {
				result.Pruned++
				continue
			}
			queue = append(queue, child)
		}
	}

	s.Logger.Info().Int("expanded", result.Expanded).Int("generated", result.Generated).
		Int("pruned", result.Pruned).Int("evaluated", result.Evaluated).Msg("iterated width finished")
	if result.Best == nil {
		return result, ErrNoComplete
	}
	return result, nil
}
