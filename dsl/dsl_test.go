package dsl_test

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sw965/progsynth/dsl"
	"github.com/sw965/progsynth/game"
)

// state is the running total, moves are the amounts that can be added to it.
func testFeatures(t *testing.T) *dsl.Features[int, int] {
	t.Helper()
	fs, err := dsl.NewFeatures(
		dsl.StateFeature[int, int]("total", func(s int) float64 { return float64(s) }),
		dsl.MoveFeature[int, int]("amount", func(_ int, m int) float64 { return float64(m) }),
		dsl.MoveFeature[int, int]("reaches", func(s int, m int) float64 { return dsl.B(s+m >= 10) }),
		dsl.Feature[int, int]{
			Name:  "boom",
			Arity: 0,
			Func: func(dsl.Context[int, int], []dsl.Value) (float64, error) {
				panic("boom")
			},
		},
		dsl.Feature[int, int]{
			Name:  "fail",
			Arity: 0,
			Func: func(dsl.Context[int, int], []dsl.Value) (float64, error) {
				return 0, fmt.Errorf("feature failed")
			},
		},
	)
	require.NoError(t, err)
	return fs
}

func decide(t *testing.T, text string, state int, moves []int) (int, error) {
	t.Helper()
	p, err := dsl.Compile(text, testFeatures(t))
	require.NoError(t, err, text)
	return p.Decide(state, moves)
}

func TestDecideReturn(t *testing.T) {
	moves := []int{1, 2, 3, 4}
	tests := []struct {
		name string
		text string
		want int
	}{
		{"index", "\t\t\t return actions[ 2 ] \n", 3},
		{"number is an index", "return 1", 2},
		{"negative from the end", "return -1", 4},
		{"variables", "x = 1 \nx += 2 \nx -= 1 \nx *= 1 \nreturn actions[ x ]", 3},
		{"precedence", "return 1 + 2 * 1 - 2", 2},
		{"parentheses", "return ( 1 + 2 ) * 2 - 4", 3},
		{"division", "return 6 / 3", 3},
		{"first reaching move", "for a in actions :\n\tif reaches( state, a ) :\n\t\treturn a\nreturn 0", 3},
		{"dotted feature name", "for a in actions :\n\tif DSL.reaches( a , state ) :\n\t\treturn a\nreturn 0", 3},
		{"range loop", "for i in range( len( actions ) ) :\n\tif amount( actions[ i ] ) == 2 :\n\t\treturn i\nreturn 0", 2},
		{"else branch", "if total( state ) > 100 :\n\treturn 0\nelse :\n\treturn 3", 4},
		{"elif branch", "if total( state ) > 100 :\n\treturn 0\nelif total( state ) == 7 :\n\treturn 1\nelse :\n\treturn 2", 2},
		{"boolean operators", "if not ( 1 > 2 ) and ( 0 or 1 ) :\n\treturn 3\nreturn 0", 4},
		{"move comparison", "if actions[ 0 ] == actions[ -4 ] :\n\treturn 1\nreturn 0", 2},
		{"nested blocks keep their indent", "\t\tfor a in actions :\n\t\t\tx = a\n\t\treturn x", 4},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := decide(t, tc.text, 7, moves)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestDecideScores(t *testing.T) {
	moves := []int{5, 1, 5, 3}

	got, err := decide(t, "for i in range( len( actions ) ) :\n\tscore[ i ] = amount( actions[ i ] )", 0, moves)
	require.NoError(t, err)
	assert.Equal(t, 5, got)

	// 同点の場合は最小のインデックス
	got, err = decide(t, "for a in actions :\n\tscore[ a ] = 1", 0, []int{9, 8, 7})
	require.NoError(t, err)
	assert.Equal(t, 9, got)

	got, err = decide(t, "for a in actions :\n\tscore[ a ] -= amount( a )\n\tscore[ a ] += 1", 0, moves)
	require.NoError(t, err)
	assert.Equal(t, 1, got)

	_, err = decide(t, "x = 1", 0, moves)
	assert.ErrorIs(t, err, dsl.ErrNoDecision)
	assert.ErrorIs(t, err, dsl.ErrRuntime)
}

func TestDecideRuntimeErrors(t *testing.T) {
	moves := []int{1, 2}
	tests := []struct {
		name string
		text string
		want error
	}{
		{"undefined variable", "return y", dsl.ErrUndefinedVariable},
		{"augmented undefined variable", "y += 1 \nreturn 0", dsl.ErrUndefinedVariable},
		{"index out of range", "return actions[ 5 ]", dsl.ErrIndexOutOfRange},
		{"returned index out of range", "return 2", dsl.ErrIndexOutOfRange},
		{"arithmetic on a move", "return actions[ 0 ] + 1", dsl.ErrType},
		{"feature panic", "return boom( state )", dsl.ErrRuntime},
		{"feature error", "return fail( state )", dsl.ErrRuntime},
		{"division by zero", "return 1 / 0", dsl.ErrRuntime},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := decide(t, tc.text, 0, moves)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.want), "got %v", err)
			assert.ErrorIs(t, err, dsl.ErrRuntime)
		})
	}
}

func TestCompileErrors(t *testing.T) {
	fs := testFeatures(t)
	tests := []struct {
		name string
		text string
		want error
	}{
		{"empty", "\n\t\t\n", dsl.ErrSyntax},
		{"unknown feature", "return nope( state )", dsl.ErrUnknownFeature},
		{"unknown dotted feature", "return DSL.nope( state )", dsl.ErrUnknownFeature},
		{"wrong arity", "return amount( state )", dsl.ErrSyntax},
		{"unexpected indent", "x = 1\n\ty = 2", dsl.ErrSyntax},
		{"missing block", "if 1 :\nreturn 0", dsl.ErrSyntax},
		{"missing colon", "if 1\n\treturn 0", dsl.ErrSyntax},
		{"reserved name", "score = 1", dsl.ErrSyntax},
		{"string literal", "if actions[ i ] in ['y','n'] :\n\treturn 0", dsl.ErrSyntax},
		{"dangling operator", "return 1 +", dsl.ErrSyntax},
		{"trailing tokens", "return 1 2", dsl.ErrSyntax},
		{"dedent below first line", "\t\tx = 1\n\treturn x", dsl.ErrSyntax},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := dsl.Compile(tc.text, fs)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestDecideIsDeterministic(t *testing.T) {
	text := "for a in actions :\n\tscore[ a ] = amount( a ) * 2 - total( state )\n"
	p, err := dsl.Compile(text, testFeatures(t))
	require.NoError(t, err)
	assert.Equal(t, text, p.Text())

	rng := rand.New(rand.NewPCG(1, 2))
	for range 50 {
		moves := rng.Perm(6)
		first, err := p.Decide(3, moves)
		require.NoError(t, err)
		second, err := p.Decide(3, moves)
		require.NoError(t, err)
		assert.Equal(t, first, second)
		assert.Equal(t, 5, first)
	}
}

func TestFeaturesRegistry(t *testing.T) {
	fs := testFeatures(t)
	assert.Equal(t, []string{"amount", "boom", "fail", "reaches", "total"}, fs.Names())

	_, ok := fs.Lookup("Toy.total")
	assert.True(t, ok)
	_, ok = fs.Lookup("missing")
	assert.False(t, ok)

	err := fs.Register(dsl.StateFeature[int, int]("total", func(int) float64 { return 0 }))
	assert.ErrorIs(t, err, dsl.ErrDuplicateFeature)
}

func TestComposeAndPolicy(t *testing.T) {
	fs := testFeatures(t)
	programs, err := dsl.CompileSet(map[string]string{
		"low":  "return 0",
		"high": "return -1",
	}, fs)
	require.NoError(t, err)

	router := dsl.Router[int, int](func(s int, _ []int) (string, error) {
		if s < 10 {
			return "low", nil
		}
		return "high", nil
	})
	d, err := dsl.Compose(router, programs)
	require.NoError(t, err)

	got, err := d.Decide(1, []int{4, 5, 6})
	require.NoError(t, err)
	assert.Equal(t, 4, got)
	got, err = d.Decide(20, []int{4, 5, 6})
	require.NoError(t, err)
	assert.Equal(t, 6, got)

	policy, err := dsl.PolicyFunc[int, int](d)(20, []int{4, 5, 6})
	require.NoError(t, err)
	assert.Equal(t, game.Policy[int]{4: 0, 5: 0, 6: 1}, policy)

	broken := dsl.Router[int, int](func(int, []int) (string, error) { return "none", nil })
	d, err = dsl.Compose(broken, programs)
	require.NoError(t, err)
	_, err = d.Decide(0, []int{1})
	assert.ErrorIs(t, err, dsl.ErrUnknownProgram)

	_, err = dsl.CompileSet(map[string]string{"bad": "return"}, fs)
	assert.ErrorIs(t, err, dsl.ErrSyntax)
}
