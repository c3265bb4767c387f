package cantstop

import (
	"embed"
	"fmt"

	"github.com/sw965/progsynth/dsl"
	"github.com/sw965/progsynth/grammar"
)

//go:embed grammars/*.yaml
var grammarFS embed.FS

const (
	TreeStop    = "stop"
	TreeAdvance = "advance"
	TreeToy     = "toy"
)

// Grammar loads one of the embedded grammars: TreeToy decides every position with a single
// program, TreeStop and TreeAdvance split the decisions between two programs picked by Route.
func Grammar(name string) (*grammar.Grammar, error) {
	data, err := grammarFS.ReadFile("grammars/" + name + ".yaml")
	if err != nil {
		return nil, fmt.Errorf("cantstop grammar %q: %w", name, err)
	}
	return grammar.Parse(data)
}

// Route sends continue/stop decisions to the stop program and column choices to the advance program.
func Route(s State, moves []Move) (string, error) {
	switch {
	case len(moves) == 0:
		return "", fmt.Errorf("no legal moves to route")
	case s.Phase == Choosing:
		return TreeAdvance, nil
	}
	return TreeStop, nil
}

// Category names the kind of a decision for per-category imitation scores.
func Category(_ State, m Move) string {
	if m.Kind == Advance {
		return "column"
	}
	return "yes_no"
}

// TotalAdvance counts the cells p has climbed in every column, including this turn's progress.
func (s State) TotalAdvance(p Player) int {
	total := 0
	for col := MinColumn; col <= MaxColumn; col++ {
		switch s.Claimed[col] {
		case p:
			total += s.Config.Height(col)
		case NoPlayer:
			total += s.Position(p, col)
		}
	}
	return total
}

func (s State) CellsAdvancedThisRoundInColumn(col int) int {
	if !validColumn(col) || s.Neutral[col] == 0 {
		return 0
	}
	return s.Neutral[col] - s.Progress[s.Turn][col]
}

func (s State) CellsAdvancedThisRound() int {
	total := 0
	for col := MinColumn; col <= MaxColumn; col++ {
		total += s.CellsAdvancedThisRoundInColumn(col)
	}
	return total
}

func (s State) PositionsConquered(col int) int {
	if !validColumn(col) {
		return 0
	}
	return s.Progress[s.Turn][col]
}

// WillWinAfterStop reports whether stopping now would claim the third column.
func (s State) WillWinAfterStop() bool {
	return s.stop().Winner == s.Turn
}

// AvailableColumns lists the columns that are neither claimed nor already carrying a neutral marker.
func (s State) AvailableColumns() []int {
	cols := make([]int, 0, MaxColumn-MinColumn+1)
	for col := MinColumn; col <= MaxColumn; col++ {
		if s.Claimed[col] == NoPlayer && s.Neutral[col] == 0 {
			cols = append(cols, col)
		}
	}
	return cols
}

func (s State) AreThereAvailableColumnsToPlay() bool {
	return s.NeutralsUsed() != NeutralMarkers && len(s.AvailableColumns()) > 0
}

// NewNeutrals is the number of neutral markers m would place.
func (s State) NewNeutrals(m Move) int {
	n := 0
	cols := m.Cols()
	for i, col := range cols {
		if i == 1 && cols[0] == col {
			continue
		}
		if validColumn(col) && s.Neutral[col] == 0 {
			n++
		}
	}
	return n
}

func (s State) WinsColumn(m Move) bool {
	if m.Kind != Advance {
		return false
	}
	next := s.advance(m)
	for _, col := range m.Cols() {
		if next.Neutral[col] >= s.Config.Height(col) {
			return true
		}
	}
	return false
}

// ProgressScore weights this turn's progress in every neutral column: (advance+1) * values[col].
func (s State) ProgressScore(values [MaxColumn + 1]int) int {
	score := 0
	for _, col := range s.NeutralColumns() {
		score += (s.CellsAdvancedThisRoundInColumn(col) + 1) * values[col]
	}
	return score
}

func (s State) DifficultyScore(odds, evens, highs, lows int) int {
	cols := s.NeutralColumns()
	if len(cols) == 0 {
		return 0
	}

	allOdd, allEven, allLow, allHigh := true, true, true, true
	for _, col := range cols {
		allOdd = allOdd && col%2 != 0
		allEven = allEven && col%2 == 0
		allLow = allLow && col <= 7
		allHigh = allHigh && col >= 7
	}

	score := 0
	if allOdd {
		score += odds
	}
	if allEven {
		score += evens
	}
	if allLow {
		score += lows
	}
	if allHigh {
		score += highs
	}
	return score
}

func NewFeatures() (*dsl.Features[State, Move], error) {
	g := NewGlenn()
	state := func(name string, fn func(State) float64) dsl.Feature[State, Move] {
		return dsl.StateFeature[State, Move](name, fn)
	}
	return dsl.NewFeatures(
		state("player_total_advance", func(s State) float64 { return float64(s.TotalAdvance(s.Turn)) }),
		state("opponent_total_advance", func(s State) float64 { return float64(s.TotalAdvance(s.Turn.Opponent())) }),
		state("player_columns_won", func(s State) float64 { return float64(s.ColumnsWon(s.Turn)) }),
		state("opponent_columns_won", func(s State) float64 { return float64(s.ColumnsWon(s.Turn.Opponent())) }),
		state("number_cells_advanced_this_round", func(s State) float64 { return float64(s.CellsAdvancedThisRound()) }),
		state("number_of_neutral_markers_remaining", func(s State) float64 { return float64(NeutralMarkers - s.NeutralsUsed()) }),
		state("will_player_win_after_n", func(s State) float64 { return dsl.B(s.WillWinAfterStop()) }),
		state("are_there_available_columns_to_play", func(s State) float64 { return dsl.B(s.AreThereAvailableColumnsToPlay()) }),
		state("progress_score", func(s State) float64 { return float64(s.ProgressScore(g.ProgressValue)) }),
		state("difficulty_score", func(s State) float64 { return float64(s.DifficultyScore(g.Odds, g.Evens, g.Highs, g.Lows)) }),
		dsl.IntFeature[State, Move]("number_cells_advanced_this_round_for_col", func(s State, col int) float64 {
			return float64(s.CellsAdvancedThisRoundInColumn(col))
		}),
		dsl.IntFeature[State, Move]("number_positions_conquered", func(s State, col int) float64 {
			return float64(s.PositionsConquered(col))
		}),
		dsl.MoveFeature("is_stop_action", func(_ State, m Move) float64 { return dsl.B(m.Kind == Stop) }),
		dsl.MoveFeature("is_continue_action", func(_ State, m Move) float64 { return dsl.B(m.Kind == Continue) }),
		dsl.MoveFeature("advance_in_action_col", func(_ State, m Move) float64 { return float64(m.N) }),
		dsl.MoveFeature("number_of_neutrals_used", func(s State, m Move) float64 { return float64(s.NewNeutrals(m)) }),
		dsl.MoveFeature("action_wins_at_least_one_column", func(s State, m Move) float64 { return dsl.B(s.WinsColumn(m)) }),
		dsl.MoveFeature("move_value", func(s State, m Move) float64 { return float64(g.moveScore(s, m)) }),
	)
}
