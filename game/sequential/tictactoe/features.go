package tictactoe

import (
	_ "embed"

	"github.com/sw965/progsynth/dsl"
	"github.com/sw965/progsynth/grammar"
)

//go:embed grammar.yaml
var grammarYAML []byte

// Grammar returns the scoring grammar: one score expression evaluated for every legal move.
func Grammar() (*grammar.Grammar, error) {
	return grammar.Parse(grammarYAML)
}

// wins reports whether placing move completes a line for mark.
func wins(board Board, move Move, mark Mark) bool {
	if board[move.Row][move.Col] != EmptyMark {
		return false
	}
	board[move.Row][move.Col] = mark
	return board.Winner() == mark
}

func CanWin(state State, move Move) bool {
	return wins(state.Board, move, state.Turn)
}

// BlocksLoss reports whether move occupies the cell the opponent needs to complete a line.
func BlocksLoss(state State, move Move) bool {
	return wins(state.Board, move, state.Turn.Opposite())
}

func (b Board) FreeCells() int {
	n := 0
	for _, row := range b {
		for _, mark := range row {
			if mark == EmptyMark {
				n++
			}
		}
	}
	return n
}

func NewFeatures() (*dsl.Features[State, Move], error) {
	return dsl.NewFeatures(
		dsl.MoveFeature("can_win", func(s State, m Move) float64 { return dsl.B(CanWin(s, m)) }),
		dsl.MoveFeature("blocks_loss", func(s State, m Move) float64 { return dsl.B(BlocksLoss(s, m)) }),
		dsl.MoveFeature("is_center", func(_ State, m Move) float64 { return dsl.B(m.Row == 1 && m.Col == 1) }),
		dsl.MoveFeature("is_corner", func(_ State, m Move) float64 {
			return dsl.B((m.Row == 0 || m.Row == Rows-1) && (m.Col == 0 || m.Col == Cols-1))
		}),
		dsl.StateFeature[State, Move]("free_cells", func(s State) float64 { return float64(s.Board.FreeCells()) }),
		dsl.MoveFeature("row", func(_ State, m Move) float64 { return float64(m.Row) }),
		dsl.MoveFeature("col", func(_ State, m Move) float64 { return float64(m.Col) }),
	)
}
