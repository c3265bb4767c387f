// Package grammar provides the immutable context-free grammar tables that parse trees are grown from.
// Validation of the quick-finish subset is centralized in New.
//
// Package grammar は構文木を生成するための不変な文脈自由文法を提供します。
// quick-finish 部分集合の検証は New に集約されています。
package grammar

import (
	"errors"
	"fmt"
	"maps"
	"math/rand/v2"
	"slices"
	"strings"

	"github.com/sw965/omw/mathx/randx"
)

var (
	ErrUnknownSymbol        = errors.New("unknown symbol")
	ErrEmptyProduction      = errors.New("empty production")
	ErrUnfinishable         = errors.New("symbol cannot be force-finished")
	ErrRecursiveQuickFinish = errors.New("recursive quick-finish production")
)

// Production is one alternative right-hand side. Each whitespace separated token becomes one child node.
//
// Productionは右辺の選択肢の一つです。空白区切りのトークン毎に子ノードが一つ作られます。
type Production string

func (p Production) Tokens() []string {
	return strings.Fields(string(p))
}

type Grammar struct {
	start      string
	rules      map[string][]Production
	finishable map[string]struct{}
	quick      map[string][]Production
}

func toProductions(ss []string) []Production {
	ps := make([]Production, len(ss))
	for i, s := range ss {
		ps[i] = Production(s)
	}
	return ps
}

// New builds and validates a grammar. A finishable symbol without an entry in quick
// falls back to its full production list.
func New(start string, rules map[string][]string, finishable []string, quick map[string][]string) (*Grammar, error) {
	g := &Grammar{
		start:      start,
		rules:      make(map[string][]Production, len(rules)),
		finishable: make(map[string]struct{}, len(finishable)),
		quick:      make(map[string][]Production, len(quick)),
	}

	for nt, ps := range rules {
		g.rules[nt] = toProductions(ps)
	}

	for _, f := range finishable {
		g.finishable[f] = struct{}{}
	}

	for nt, ps := range quick {
		g.quick[nt] = toProductions(ps)
	}

	for f := range g.finishable {
		if _, ok := g.quick[f]; ok {
			continue
		}
		if ps, ok := g.rules[f]; ok {
			g.quick[f] = ps
		}
	}

	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}

func (g *Grammar) Validate() error {
	if _, ok := g.rules[g.start]; !ok {
		return fmt.Errorf("%w: start symbol %q has no productions", ErrUnknownSymbol, g.start)
	}

	for _, nt := range g.Nonterminals() {
		ps := g.rules[nt]
		if len(ps) == 0 {
			return fmt.Errorf("%w: nonterminal %q has no alternatives", ErrEmptyProduction, nt)
		}
		for i, p := range ps {
			if len(p.Tokens()) == 0 {
				return fmt.Errorf("%w: alternative %d of %q is blank", ErrEmptyProduction, i, nt)
			}
		}
	}

	for _, f := range g.Finishable() {
		if _, ok := g.rules[f]; !ok {
			return fmt.Errorf("%w: finishable symbol %q is not a nonterminal", ErrUnknownSymbol, f)
		}
	}

	quickKeys := slices.Sorted(maps.Keys(g.quick))
	for _, nt := range quickKeys {
		if _, ok := g.rules[nt]; !ok {
			return fmt.Errorf("%w: quick-finish entry %q is not a nonterminal", ErrUnknownSymbol, nt)
		}
		if len(g.quick[nt]) == 0 {
			return fmt.Errorf("%w: quick-finish entry %q has no alternatives", ErrEmptyProduction, nt)
		}
		for _, p := range g.quick[nt] {
			for _, tok := range p.Tokens() {
				if _, ok := g.rules[tok]; !ok {
					continue
				}
				if _, ok := g.finishable[tok]; !ok {
					return fmt.Errorf("%w: %q appears in quick-finish production %q of %q but is not finishable", ErrUnfinishable, tok, p, nt)
				}
			}
		}
	}

	if cycle := g.quickFinishCycle(); cycle != nil {
		return fmt.Errorf("%w: %s", ErrRecursiveQuickFinish, strings.Join(cycle, " -> "))
	}
	return nil
}

// quickFinishCycle returns the first cycle found in the quick-finish dependency graph, or nil.
func (g *Grammar) quickFinishCycle() []string {
	const (
		white = iota
		grey
		black
	)
	color := map[string]int{}
	stack := []string{}

	var visit func(string) []string
	visit = func(nt string) []string {
		color[nt] = grey
		stack = append(stack, nt)
		for _, p := range g.quick[nt] {
			for _, tok := range p.Tokens() {
				if _, ok := g.quick[tok]; !ok {
					continue
				}
				switch color[tok] {
				case grey:
					start := slices.Index(stack, tok)
					cycle := slices.Clone(stack[start:])
					return append(cycle, tok)
				case white:
					if c := visit(tok); c != nil {
						return c
					}
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[nt] = black
		return nil
	}

	for _, nt := range slices.Sorted(maps.Keys(g.quick)) {
		if color[nt] == white {
			if c := visit(nt); c != nil {
				return c
			}
		}
	}
	return nil
}

func (g *Grammar) Start() string {
	return g.start
}

func (g *Grammar) Nonterminals() []string {
	return slices.Sorted(maps.Keys(g.rules))
}

func (g *Grammar) Finishable() []string {
	return slices.Sorted(maps.Keys(g.finishable))
}

// Productions returns a copy of the alternatives registered for nonterminal.
func (g *Grammar) Productions(nonterminal string) ([]Production, error) {
	ps, ok := g.rules[nonterminal]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSymbol, nonterminal)
	}
	return slices.Clone(ps), nil
}

// QuickFinishProductions returns a copy of the reduced alternatives for nonterminal.
func (g *Grammar) QuickFinishProductions(nonterminal string) ([]Production, error) {
	ps, ok := g.quick[nonterminal]
	if !ok {
		return nil, fmt.Errorf("%w: no quick-finish entry for %q", ErrUnknownSymbol, nonterminal)
	}
	return slices.Clone(ps), nil
}

// Expansion picks one alternative for nonterminal uniformly at random.
//
// Expansionは非終端記号の選択肢を一様ランダムに一つ選びます。
func (g *Grammar) Expansion(nonterminal string, rng *rand.Rand) (Production, error) {
	ps, ok := g.rules[nonterminal]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownSymbol, nonterminal)
	}
	return randx.Choice(ps, rng)
}

// QuickFinish picks one alternative from the reduced, non-recursive subset.
func (g *Grammar) QuickFinish(nonterminal string, rng *rand.Rand) (Production, error) {
	ps, ok := g.quick[nonterminal]
	if !ok {
		return "", fmt.Errorf("%w: no quick-finish entry for %q", ErrUnknownSymbol, nonterminal)
	}
	return randx.Choice(ps, rng)
}

func (g *Grammar) IsNonterminal(symbol string) bool {
	_, ok := g.rules[symbol]
	return ok
}

// IsTerminal reports whether none of the tokens of symbol is a nonterminal.
func (g *Grammar) IsTerminal(symbol string) bool {
	for _, tok := range strings.Fields(symbol) {
		if _, ok := g.rules[tok]; ok {
			return false
		}
	}
	return true
}

// IsFinishable reports whether any token of symbol is in the finishable set.
func (g *Grammar) IsFinishable(symbol string) bool {
	for _, tok := range strings.Fields(symbol) {
		if _, ok := g.finishable[tok]; ok {
			return true
		}
	}
	return false
}
