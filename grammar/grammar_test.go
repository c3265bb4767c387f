package grammar_test

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sw965/progsynth/grammar"
)

func TestNewValidation(t *testing.T) {
	tests := []struct {
		name       string
		start      string
		rules      map[string][]string
		finishable []string
		quick      map[string][]string
		wantErr    error
	}{
		{
			name:       "valid",
			start:      "S",
			rules:      map[string][]string{"S": {"a", "a S"}},
			finishable: []string{"S"},
			quick:      map[string][]string{"S": {"a"}},
		},
		{
			name:    "unknown start",
			start:   "X",
			rules:   map[string][]string{"S": {"a"}},
			wantErr: grammar.ErrUnknownSymbol,
		},
		{
			name:    "blank production",
			start:   "S",
			rules:   map[string][]string{"S": {"a", "   "}},
			wantErr: grammar.ErrEmptyProduction,
		},
		{
			name:    "no alternatives",
			start:   "S",
			rules:   map[string][]string{"S": {"A"}, "A": {}},
			wantErr: grammar.ErrEmptyProduction,
		},
		{
			name:       "finishable terminal",
			start:      "S",
			rules:      map[string][]string{"S": {"a"}},
			finishable: []string{"a"},
			wantErr:    grammar.ErrUnknownSymbol,
		},
		{
			name:       "recursive default quick finish",
			start:      "S",
			rules:      map[string][]string{"S": {"a", "a S"}},
			finishable: []string{"S"},
			wantErr:    grammar.ErrRecursiveQuickFinish,
		},
		{
			name:  "indirect quick finish cycle",
			start: "S",
			rules: map[string][]string{
				"S": {"A"},
				"A": {"B x"},
				"B": {"A y", "z"},
			},
			finishable: []string{"S", "A", "B"},
			quick: map[string][]string{
				"A": {"B x"},
				"B": {"A y"},
			},
			wantErr: grammar.ErrRecursiveQuickFinish,
		},
		{
			name:  "quick finish introduces unfinishable nonterminal",
			start: "S",
			rules: map[string][]string{
				"S": {"A", "b"},
				"A": {"c"},
			},
			finishable: []string{"S"},
			quick:      map[string][]string{"S": {"A"}},
			wantErr:    grammar.ErrUnfinishable,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := grammar.New(tc.start, tc.rules, tc.finishable, tc.quick)
			if tc.wantErr == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestIsTerminal(t *testing.T) {
	g, err := grammar.New("S", map[string][]string{
		"S":  {"x = OP"},
		"OP": {"+", "-"},
	}, nil, nil)
	require.NoError(t, err)

	assert.True(t, g.IsTerminal("x"))
	assert.True(t, g.IsTerminal("x = 1"))
	assert.False(t, g.IsTerminal("OP"))
	assert.False(t, g.IsTerminal("1 OP 2"))
	assert.True(t, g.IsTerminal(`\n\t\t`))
}

func TestIsFinishable(t *testing.T) {
	g, err := grammar.New("S", map[string][]string{
		"S": {"A b"},
		"A": {"a"},
	}, []string{"A"}, nil)
	require.NoError(t, err)

	assert.True(t, g.IsFinishable("A"))
	assert.True(t, g.IsFinishable("b A"))
	assert.False(t, g.IsFinishable("S"))
	assert.False(t, g.IsFinishable("a"))
}

func TestExpansion(t *testing.T) {
	g, err := grammar.New("S", map[string][]string{
		"S": {"a", "b", "c"},
	}, nil, nil)
	require.NoError(t, err)

	rng := rand.New(rand.NewPCG(1, 2))
	seen := map[grammar.Production]int{}
	for range 300 {
		p, err := g.Expansion("S", rng)
		require.NoError(t, err)
		seen[p]++
	}
	assert.Len(t, seen, 3)
	for p, n := range seen {
		assert.Greater(t, n, 50, "alternative %q drawn too rarely", p)
	}

	_, err = g.Expansion("nope", rng)
	assert.ErrorIs(t, err, grammar.ErrUnknownSymbol)

	_, err = g.QuickFinish("S", rng)
	assert.ErrorIs(t, err, grammar.ErrUnknownSymbol)
}

func TestQuickFinishDefaultsToRules(t *testing.T) {
	g, err := grammar.New("S", map[string][]string{
		"S": {"T"},
		"T": {"t"},
	}, []string{"S"}, nil)
	require.NoError(t, err)

	ps, err := g.QuickFinishProductions("S")
	require.NoError(t, err)
	assert.Equal(t, []grammar.Production{"T"}, ps)
}

func TestParse(t *testing.T) {
	src := []byte(`
start: S
rules:
  S: ['\t statement']
  statement: ['statement \n\t statement', 'x = NUM \n']
  NUM: ['1', '2']
finishable: [S, statement, NUM]
quick_finish:
  statement: ['x = NUM \n']
`)
	g, err := grammar.Parse(src)
	require.NoError(t, err)
	assert.Equal(t, "S", g.Start())
	assert.Equal(t, []string{"NUM", "S", "statement"}, g.Nonterminals())

	ps, err := g.Productions("S")
	require.NoError(t, err)
	assert.Equal(t, []string{`\t`, "statement"}, ps[0].Tokens())

	doc := g.Document()
	back, err := doc.Grammar()
	require.NoError(t, err)
	assert.Equal(t, g.Finishable(), back.Finishable())
}

func TestParseRejectsRecursiveQuickFinish(t *testing.T) {
	src := []byte(`
start: S
rules:
  S: ['E']
  E: ['E + T', 'T']
  T: ['1']
finishable: [S, E, T]
`)
	_, err := grammar.Parse(src)
	require.ErrorIs(t, err, grammar.ErrRecursiveQuickFinish)
	assert.Contains(t, err.Error(), "E -> E")
}
