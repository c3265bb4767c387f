package parsetree_test

import (
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sw965/progsynth/grammar"
	"github.com/sw965/progsynth/parsetree"
)

func newRNG(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

func repeatGrammar(t *testing.T) *grammar.Grammar {
	t.Helper()
	g, err := grammar.New("S",
		map[string][]string{"S": {"a", "a S"}},
		[]string{"S"},
		map[string][]string{"S": {"a"}},
	)
	require.NoError(t, err)
	return g
}

func exprGrammar(t *testing.T) *grammar.Grammar {
	t.Helper()
	g, err := grammar.Parse([]byte(`
start: S
rules:
  S: ['\t\t statement']
  statement:
    - 'statement \n\t\t statement'
    - 'assign \n\t\t'
    - 'return actions[ expr ] \n\t\t'
  assign: ['var = expr', 'var += expr']
  expr: ['expr OP term', 'term']
  term: ['NUM', 'var', '( expr )']
  var: ['a', 'b']
  NUM: ['0', '1', '2']
  OP: ['+', '-', '*']
finishable: [S, statement, assign, expr, term, var, NUM, OP]
quick_finish:
  statement: ['assign \n\t\t', 'return actions[ expr ] \n\t\t']
  expr: ['term']
  term: ['NUM', 'var']
`))
	require.NoError(t, err)
	return g
}

func assertContiguous(t *testing.T, tree *parsetree.Tree) {
	t.Helper()
	nodes := tree.Nodes()
	require.Equal(t, len(nodes)-1, tree.MaxID())
	seen := make([]bool, len(nodes))
	for _, n := range nodes {
		require.GreaterOrEqual(t, n.ID, 0)
		require.Less(t, n.ID, len(nodes))
		require.False(t, seen[n.ID], "duplicate id %d", n.ID)
		seen[n.ID] = true
	}
	for id := 0; id <= tree.MaxID(); id++ {
		require.NotNil(t, tree.Find(id), "id %d missing", id)
	}
}

func assertComplete(t *testing.T, g *grammar.Grammar, tree *parsetree.Tree) {
	t.Helper()
	for _, n := range tree.Nodes() {
		if n.IsLeaf() {
			require.False(t, g.IsFinishable(n.Value), "unexpanded finishable leaf %q\n%s", n.Value, tree)
		}
	}
	require.True(t, tree.IsFinished())
}

func TestBuildIsComplete(t *testing.T) {
	for _, budget := range []int{1, 5, 20, 100} {
		for seed := range uint64(30) {
			g := exprGrammar(t)
			tree, err := parsetree.New(g, budget)
			require.NoError(t, err)
			require.NoError(t, tree.Build(newRNG(seed)))
			assertComplete(t, g, tree)
			assertContiguous(t, tree)
		}
	}
}

func TestRepeatGrammarRespectsBudget(t *testing.T) {
	const budget = 5
	for seed := range uint64(50) {
		tree, err := parsetree.New(repeatGrammar(t), budget)
		require.NoError(t, err)
		require.NoError(t, tree.Build(newRNG(seed)))

		tokens := strings.Fields(tree.Program())
		require.NotEmpty(t, tokens)
		assert.LessOrEqual(t, len(tokens), budget+1)
		for _, tok := range tokens {
			assert.Equal(t, "a", tok)
		}
	}
}

func TestForceFinishSingleChild(t *testing.T) {
	g, err := grammar.New("S",
		map[string][]string{"S": {"T"}},
		[]string{"S"},
		nil,
	)
	require.NoError(t, err)

	tree, err := parsetree.New(g, 10)
	require.NoError(t, err)
	require.NoError(t, tree.ForceFinish(tree.Root, newRNG(1)))

	require.Len(t, tree.Root.Children, 1)
	child := tree.Root.Children[0]
	assert.Equal(t, "T", child.Value)
	assert.True(t, child.IsTerminal)
	assert.Equal(t, "S", child.Parent)
	assert.Empty(t, child.Children)
}

func TestForceFinishIdempotent(t *testing.T) {
	g := exprGrammar(t)
	tree, err := parsetree.New(g, 30)
	require.NoError(t, err)
	rng := newRNG(7)
	require.NoError(t, tree.Build(rng))

	before := tree.String()
	require.NoError(t, tree.ForceFinish(tree.Root, rng))
	assert.Equal(t, before, tree.String())
}

func TestMutateKeepsInvariants(t *testing.T) {
	g := exprGrammar(t)
	tree, err := parsetree.New(g, 25)
	require.NoError(t, err)
	rng := newRNG(3)
	require.NoError(t, tree.Build(rng))

	for range 200 {
		report, err := tree.Mutate(rng)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, report.NodeID, 0)
		assert.True(t, g.IsNonterminal(report.Symbol), "mutated symbol %q", report.Symbol)

		assert.Equal(t, g.Start(), tree.Root.Value)
		assert.Equal(t, 0, tree.Root.ID)
		assertContiguous(t, tree)
		assertComplete(t, g, tree)
	}
}

func TestMutatePanicsOnBrokenIDs(t *testing.T) {
	g := repeatGrammar(t)
	tree, err := parsetree.New(g, 5)
	require.NoError(t, err)
	require.NoError(t, tree.Build(newRNG(1)))

	for _, n := range tree.Nodes() {
		n.ID += 1000
	}

	defer func() {
		r := recover()
		require.NotNil(t, r)
		ierr, ok := r.(*parsetree.InvariantError)
		require.True(t, ok, "unexpected panic value %v", r)
		assert.Contains(t, ierr.Error(), "does not exist")
		assert.Contains(t, ierr.Dump, "node parent")
	}()
	_, _ = tree.Mutate(newRNG(2))
}

func TestProgramRendering(t *testing.T) {
	g, err := grammar.Parse([]byte(`
start: S
rules:
  S: ['\t\t\t statement']
  statement: ['x = 1 \n\t\t\t return actions[ x ] \n', 'y \n \t z']
finishable: [S, statement]
quick_finish:
  statement: ['y \n \t z']
`))
	require.NoError(t, err)

	tree, err := parsetree.New(g, 50)
	require.NoError(t, err)
	require.NoError(t, tree.ExpandNode(tree.Root, "statement"))
	require.NoError(t, tree.ExpandNode(tree.Root.Children[0], `y \n \t z`))
	tree.Renumber()

	assert.Equal(t, "y \n\tz ", tree.Program())

	tree2, err := parsetree.New(g, 50)
	require.NoError(t, err)
	require.NoError(t, tree2.ExpandNode(tree2.Root, `\t\t\t statement`))
	require.NoError(t, tree2.ExpandNode(tree2.Root.Children[1], `x = 1 \n\t\t\t return actions[ x ] \n`))
	assert.Equal(t, "\t\t\t x = 1 \n\t\t\t return actions[ x ] \n", tree2.Program())
}

func TestProgramIsDeterministicAndCached(t *testing.T) {
	g := exprGrammar(t)
	tree, err := parsetree.New(g, 40)
	require.NoError(t, err)
	rng := newRNG(11)
	require.NoError(t, tree.Build(rng))

	p1 := tree.Program()
	p2 := tree.Program()
	assert.Equal(t, p1, p2)
	assert.Equal(t, p1, tree.Clone().Program())

	changed := false
	for range 100 {
		_, err := tree.Mutate(rng)
		require.NoError(t, err)
		if tree.Program() != p1 {
			changed = true
			break
		}
	}
	assert.True(t, changed, "cached program was never invalidated")
}

func TestCloneIsIndependent(t *testing.T) {
	g := exprGrammar(t)
	tree, err := parsetree.New(g, 30)
	require.NoError(t, err)
	rng := newRNG(5)
	require.NoError(t, tree.Build(rng))

	dump := tree.String()
	program := tree.Program()

	clone := tree.Clone()
	for range 20 {
		_, err := clone.Mutate(rng)
		require.NoError(t, err)
	}

	assert.Equal(t, dump, tree.String())
	assert.Equal(t, program, tree.Program())
	assertContiguous(t, tree)
}

func TestSnapshotRestore(t *testing.T) {
	g := exprGrammar(t)
	tree, err := parsetree.New(g, 30)
	require.NoError(t, err)
	require.NoError(t, tree.Build(newRNG(9)))

	restored, err := parsetree.Restore(g, tree.Snapshot(), tree.MaxNodes)
	require.NoError(t, err)
	assert.Equal(t, tree.String(), restored.String())
	assert.Equal(t, tree.Program(), restored.Program())
	assert.Equal(t, tree.MaxID(), restored.MaxID())

	bad := tree.Snapshot()
	bad.Value = "statement"
	_, err = parsetree.Restore(g, bad, 30)
	assert.ErrorIs(t, err, grammar.ErrUnknownSymbol)
}

func TestPairings(t *testing.T) {
	g := repeatGrammar(t)
	tree, err := parsetree.New(g, 100)
	require.NoError(t, err)
	require.NoError(t, tree.ExpandNode(tree.Root, "a S"))
	require.NoError(t, tree.ExpandNode(tree.Root.Children[1], "a"))
	tree.Renumber()
	require.NoError(t, tree.SetPairingWidth(2))

	ones, err := tree.PairingValues(1)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"S"}, {"a"}, {"S"}, {"a"}}, ones)

	twos, err := tree.PairingValues(2)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"S", "a"}, {"a", "S"}, {"S", "a"}}, twos)

	_, err = tree.Pairings(3)
	assert.Error(t, err)

	assert.Error(t, tree.ExpandNode(tree.Root.Children[0], "a"), "terminal leaf")
	assert.Error(t, tree.ExpandNode(tree.Root.Children[1], "a"), "already expanded")
}
