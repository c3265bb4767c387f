package cantstop_test

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sw965/progsynth/dsl"
	"github.com/sw965/progsynth/game/sequential"
	"github.com/sw965/progsynth/game/sequential/cantstop"
	"github.com/sw965/progsynth/parsetree"
)

func choosing(dice [cantstop.NumDice]int) cantstop.State {
	return cantstop.State{
		Config: cantstop.DefaultConfig(),
		Turn:   cantstop.First,
		Phase:  cantstop.Choosing,
		Dice:   dice,
	}
}

func TestConfig(t *testing.T) {
	cfg := cantstop.DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 2, cfg.Height(2))
	assert.Equal(t, 6, cfg.Height(4))
	assert.Equal(t, 12, cfg.Height(7))
	assert.Equal(t, 2, cfg.Height(12))

	assert.ErrorIs(t, cantstop.Config{InitialHeight: 0, Offset: 2}.Validate(), cantstop.ErrInvalidConfig)
	assert.ErrorIs(t, cantstop.Config{InitialHeight: 2, Offset: -1}.Validate(), cantstop.ErrInvalidConfig)

	_, err := cantstop.NewInitState(cantstop.Config{}, 1, 2)
	assert.ErrorIs(t, err, cantstop.ErrInvalidConfig)
}

func TestMoveString(t *testing.T) {
	assert.Equal(t, "y", cantstop.ContinueMove.String())
	assert.Equal(t, "n", cantstop.StopMove.String())
	assert.Equal(t, "(4,9)", cantstop.AdvanceMove(9, 4).String())
	assert.Equal(t, "(7)", cantstop.AdvanceMove(7).String())
	assert.Panics(t, func() { cantstop.AdvanceMove() })
}

func TestLegalMoves(t *testing.T) {
	tests := []struct {
		name  string
		state func() cantstop.State
		want  []cantstop.Move
	}{
		{
			name: "both sums of every pairing",
			state: func() cantstop.State {
				return choosing([4]int{1, 1, 2, 2})
			},
			want: []cantstop.Move{cantstop.AdvanceMove(2, 4), cantstop.AdvanceMove(3, 3)},
		},
		{
			name: "all neutral markers placed",
			state: func() cantstop.State {
				s := choosing([4]int{2, 3, 1, 4})
				s.Neutral[5], s.Neutral[6], s.Neutral[7] = 1, 1, 1
				return s
			},
			want: []cantstop.Move{cantstop.AdvanceMove(5, 5), cantstop.AdvanceMove(7), cantstop.AdvanceMove(6)},
		},
		{
			name: "claimed columns are closed",
			state: func() cantstop.State {
				s := choosing([4]int{1, 1, 2, 2})
				s.Claimed[2] = cantstop.Second
				return s
			},
			want: []cantstop.Move{cantstop.AdvanceMove(4), cantstop.AdvanceMove(3, 3)},
		},
		{
			name: "bust",
			state: func() cantstop.State {
				s := choosing([4]int{1, 1, 2, 2})
				s.Neutral[5], s.Neutral[6], s.Neutral[7] = 1, 1, 1
				return s
			},
			want: []cantstop.Move{},
		},
		{
			name: "deciding",
			state: func() cantstop.State {
				s := choosing([4]int{1, 1, 2, 2})
				s.Phase = cantstop.Deciding
				return s
			},
			want: []cantstop.Move{cantstop.ContinueMove, cantstop.StopMove},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := cantstop.LegalMoves(tc.state())
			assert.ElementsMatch(t, tc.want, got)
		})
	}
}

func TestAdvanceAndStop(t *testing.T) {
	s := choosing([4]int{1, 1, 2, 2})
	s.Progress[cantstop.First][3] = 2

	s, err := cantstop.MoveFunc(s, cantstop.AdvanceMove(3, 3))
	require.NoError(t, err)
	assert.Equal(t, cantstop.Deciding, s.Phase)
	assert.Equal(t, 4, s.Neutral[3])
	assert.Equal(t, 2, s.Progress[cantstop.First][3])
	assert.Equal(t, 4, s.Position(cantstop.First, 3))
	assert.Equal(t, 2, s.CellsAdvancedThisRound())

	_, err = cantstop.MoveFunc(s, cantstop.AdvanceMove(2, 4))
	assert.ErrorIs(t, err, cantstop.ErrIllegalMove)

	s, err = cantstop.MoveFunc(s, cantstop.StopMove)
	require.NoError(t, err)
	assert.Equal(t, 4, s.Progress[cantstop.First][3])
	assert.Equal(t, 0, s.NeutralsUsed())
	assert.Equal(t, cantstop.NoPlayer, s.Winner)
	assert.NotEqual(t, cantstop.Over, s.Phase)
}

func TestClaimAndWin(t *testing.T) {
	s := choosing([4]int{1, 1, 2, 2})
	s.Phase = cantstop.Deciding
	s.Neutral[4] = s.Config.Height(4)
	s.Progress[cantstop.Second][4] = 3

	claimed, err := cantstop.MoveFunc(s, cantstop.StopMove)
	require.NoError(t, err)
	assert.Equal(t, cantstop.First, claimed.Claimed[4])
	assert.Equal(t, 0, claimed.Progress[cantstop.Second][4])
	assert.Equal(t, 1, claimed.ColumnsWon(cantstop.First))
	assert.Equal(t, cantstop.NoPlayer, claimed.Winner)

	s.Claimed[2], s.Claimed[12] = cantstop.First, cantstop.First
	assert.True(t, s.WillWinAfterStop())

	won, err := cantstop.MoveFunc(s, cantstop.StopMove)
	require.NoError(t, err)
	assert.Equal(t, cantstop.Over, won.Phase)
	assert.Equal(t, cantstop.First, won.Winner)
	assert.Equal(t, cantstop.First, won.Turn)

	rank, err := cantstop.RankByAgentFunc(won)
	require.NoError(t, err)
	assert.Equal(t, sequential.RankByAgent[cantstop.Player]{cantstop.First: 1, cantstop.Second: 2}, rank)

	_, err = cantstop.MoveFunc(won, cantstop.ContinueMove)
	assert.ErrorIs(t, err, cantstop.ErrGameOver)
	assert.Empty(t, cantstop.LegalMoves(won))
}

func TestContinueBusts(t *testing.T) {
	busts, rolls := 0, 0
	for seed := range uint64(200) {
		s, err := cantstop.NewInitState(cantstop.DefaultConfig(), seed, 7)
		require.NoError(t, err)
		s.Phase = cantstop.Deciding
		s.Neutral[2], s.Neutral[3], s.Neutral[12] = 1, 1, 1

		next, err := cantstop.MoveFunc(s, cantstop.ContinueMove)
		require.NoError(t, err)
		assert.Equal(t, cantstop.Choosing, next.Phase)
		if next.Turn == cantstop.Second {
			busts++
			assert.Equal(t, 0, next.NeutralsUsed())
			assert.Equal(t, s.Progress, next.Progress)
		} else {
			rolls++
			assert.Equal(t, s.Neutral, next.Neutral)
		}
		assert.NotEmpty(t, cantstop.LegalMoves(next))
	}
	assert.Positive(t, busts)
	assert.Positive(t, rolls)
}

func TestStateDeterminesDice(t *testing.T) {
	a, err := cantstop.NewInitState(cantstop.DefaultConfig(), 3, 4)
	require.NoError(t, err)
	b, err := cantstop.NewInitState(cantstop.DefaultConfig(), 3, 4)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	a.Phase, b.Phase = cantstop.Deciding, cantstop.Deciding
	next1, err := cantstop.MoveFunc(a, cantstop.ContinueMove)
	require.NoError(t, err)
	next2, err := cantstop.MoveFunc(b, cantstop.ContinueMove)
	require.NoError(t, err)
	assert.Equal(t, next1, next2)

	reseeded := b.Reseed(99, 100)
	assert.Equal(t, b.Dice, reseeded.Dice)
	assert.NotEqual(t, b, reseeded)
}

func TestFeatureHelpers(t *testing.T) {
	s := choosing([4]int{1, 1, 2, 2})
	s.Phase = cantstop.Deciding
	s.Progress[cantstop.First][6] = 2
	s.Neutral[6] = 4
	s.Neutral[8] = 1
	s.Claimed[2] = cantstop.First
	s.Progress[cantstop.Second][7] = 5

	assert.Equal(t, 2+4+1, s.TotalAdvance(cantstop.First))
	assert.Equal(t, 5, s.TotalAdvance(cantstop.Second))
	assert.Equal(t, 3, s.CellsAdvancedThisRound())
	assert.Equal(t, 2, s.CellsAdvancedThisRoundInColumn(6))
	assert.Equal(t, 0, s.CellsAdvancedThisRoundInColumn(13))
	assert.Equal(t, 2, s.PositionsConquered(6))
	assert.Equal(t, []int{6, 8}, s.NeutralColumns())
	assert.True(t, s.AreThereAvailableColumnsToPlay())
	assert.NotContains(t, s.AvailableColumns(), 2)
	assert.NotContains(t, s.AvailableColumns(), 6)

	assert.Equal(t, 1, s.NewNeutrals(cantstop.AdvanceMove(6, 9)))
	assert.Equal(t, 1, s.NewNeutrals(cantstop.AdvanceMove(9, 9)))
	assert.Equal(t, 0, s.NewNeutrals(cantstop.StopMove))

	s.Neutral[12] = 1
	assert.True(t, s.WinsColumn(cantstop.AdvanceMove(12)))
	assert.False(t, s.WinsColumn(cantstop.AdvanceMove(8)))

	fs, err := cantstop.NewFeatures()
	require.NoError(t, err)
	for _, name := range []string{"progress_score", "difficulty_score", "is_stop_action", "move_value", "number_positions_conquered"} {
		_, ok := fs.Lookup(name)
		assert.True(t, ok, name)
	}
}

func TestGlennStopRule(t *testing.T) {
	glenn := cantstop.NewGlenn()
	deciding := func(cols ...int) cantstop.State {
		s := choosing([4]int{1, 1, 2, 2})
		s.Phase = cantstop.Deciding
		for _, col := range cols {
			s.Neutral[col] = 1
		}
		return s
	}
	moves := []cantstop.Move{cantstop.ContinueMove, cantstop.StopMove}

	tests := []struct {
		name  string
		state cantstop.State
		want  cantstop.Move
	}{
		{"free neutral marker keeps rolling", deciding(2, 12), cantstop.ContinueMove},
		// 進捗 2*7 + 2*3 + 2*2 = 24, 難易度 偶数1 + 低5 = 6
		{"low evens reach the threshold", deciding(2, 4, 6), cantstop.StopMove},
		{"middle columns stay below the threshold", deciding(6, 7, 8), cantstop.ContinueMove},
		{"winning stop", func() cantstop.State {
			s := deciding(2, 12)
			s.Neutral[2] = s.Config.Height(2)
			s.Claimed[3], s.Claimed[11] = cantstop.First, cantstop.First
			return s
		}(), cantstop.StopMove},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := glenn.Decide(tc.state, moves)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	assert.Equal(t, 24, deciding(2, 4, 6).ProgressScore(glenn.ProgressValue))
	assert.Equal(t, 6, deciding(2, 4, 6).DifficultyScore(glenn.Odds, glenn.Evens, glenn.Highs, glenn.Lows))
	assert.Equal(t, 0, choosing([4]int{1, 1, 1, 1}).DifficultyScore(glenn.Odds, glenn.Evens, glenn.Highs, glenn.Lows))
}

func TestGlennAdvance(t *testing.T) {
	s := choosing([4]int{1, 1, 2, 2})
	got, err := cantstop.NewGlenn().Decide(s, cantstop.LegalMoves(s))
	require.NoError(t, err)
	// (2,4): 7 + 2 - 2*6, (3,3): 0 - 6
	assert.Equal(t, cantstop.AdvanceMove(2, 4), got)
}

func TestGlennBeatsRandom(t *testing.T) {
	engine := cantstop.NewEngine()
	rng := rand.New(rand.NewPCG(1, 2))
	actors := map[cantstop.Player]sequential.Actor[cantstop.State, cantstop.Move, cantstop.Player]{
		cantstop.First:  cantstop.NewGlennActor(),
		cantstop.Second: sequential.NewRandomActor[cantstop.State, cantstop.Move, cantstop.Player](),
	}

	wins := 0
	for seed := range uint64(20) {
		init, err := cantstop.NewInitState(cantstop.DefaultConfig(), seed, seed+1)
		require.NoError(t, err)
		result, err := engine.Play(init, actors, 0, rng)
		require.NoError(t, err)
		assert.False(t, result.Truncated)
		assert.Equal(t, cantstop.Over, result.Final.Phase)
		if result.Final.Winner == cantstop.First {
			wins++
		}
	}
	assert.Greater(t, wins, 10)
}

func TestGrammarProgramsPlay(t *testing.T) {
	fs, err := cantstop.NewFeatures()
	require.NoError(t, err)
	rng := rand.New(rand.NewPCG(3, 4))

	build := func(name string) *dsl.Program[cantstop.State, cantstop.Move] {
		g, err := cantstop.Grammar(name)
		require.NoError(t, err)
		tree, err := parsetree.New(g, 30)
		require.NoError(t, err)
		require.NoError(t, tree.Build(rng))
		p, err := dsl.Compile(tree.Program(), fs)
		require.NoError(t, err, tree.Program())
		return p
	}

	for range 10 {
		build(cantstop.TreeToy)
	}

	engine := cantstop.NewEngine()
	for seed := range uint64(5) {
		decider, err := cantstop.NewDecider(map[string]*dsl.Program[cantstop.State, cantstop.Move]{
			cantstop.TreeStop:    build(cantstop.TreeStop),
			cantstop.TreeAdvance: build(cantstop.TreeAdvance),
		})
		require.NoError(t, err)

		init, err := cantstop.NewInitState(cantstop.DefaultConfig(), seed, 0)
		require.NoError(t, err)
		_, err = engine.Play(init, map[cantstop.Player]sequential.Actor[cantstop.State, cantstop.Move, cantstop.Player]{
			cantstop.First:  dsl.Actor[cantstop.State, cantstop.Move, cantstop.Player]("program", decider),
			cantstop.Second: cantstop.NewGlennActor(),
		}, 2000, rng)
		require.NoError(t, err)
	}

	_, err = cantstop.NewDecider(map[string]*dsl.Program[cantstop.State, cantstop.Move]{})
	assert.ErrorIs(t, err, dsl.ErrUnknownProgram)
}

func TestCategory(t *testing.T) {
	s := choosing([4]int{1, 1, 2, 2})
	assert.Equal(t, "column", cantstop.Category(s, cantstop.AdvanceMove(2, 4)))
	assert.Equal(t, "yes_no", cantstop.Category(s, cantstop.StopMove))
}

func TestPlaySolitaire(t *testing.T) {
	cfg := cantstop.DefaultConfig()
	glenn := cantstop.NewGlenn()

	rounds, finished, err := cantstop.PlaySolitaire(cfg, glenn, 500, rand.New(rand.NewPCG(1, 2)))
	require.NoError(t, err)
	assert.True(t, finished)
	assert.Positive(t, rounds)

	again, _, err := cantstop.PlaySolitaire(cfg, glenn, 500, rand.New(rand.NewPCG(1, 2)))
	require.NoError(t, err)
	assert.Equal(t, rounds, again)

	// a player that never stops only ends rounds by busting
	neverStops := dsl.DeciderFunc[cantstop.State, cantstop.Move](func(s cantstop.State, moves []cantstop.Move) (cantstop.Move, error) {
		if s.Phase == cantstop.Deciding {
			return cantstop.ContinueMove, nil
		}
		return moves[0], nil
	})
	rounds, finished, err = cantstop.PlaySolitaire(cfg, neverStops, 15, rand.New(rand.NewPCG(3, 4)))
	require.NoError(t, err)
	assert.False(t, finished)
	assert.Equal(t, 15, rounds)

	illegal := dsl.DeciderFunc[cantstop.State, cantstop.Move](func(cantstop.State, []cantstop.Move) (cantstop.Move, error) {
		return cantstop.ContinueMove, nil
	})
	_, _, err = cantstop.PlaySolitaire(cfg, illegal, 15, rand.New(rand.NewPCG(3, 4)))
	assert.ErrorIs(t, err, cantstop.ErrIllegalMove)

	_, _, err = cantstop.PlaySolitaire(cantstop.Config{}, glenn, 15, rand.New(rand.NewPCG(3, 4)))
	assert.ErrorIs(t, err, cantstop.ErrInvalidConfig)
}
