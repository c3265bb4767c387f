package cantstop

import (
	"fmt"
	"slices"

	"github.com/sw965/progsynth/dsl"
	"github.com/sw965/progsynth/game"
	"github.com/sw965/progsynth/game/sequential"
)

// Glenn is the rule-of-28 heuristic from "A Generalized Heuristic for Can't Stop".
//
// Glennは "A Generalized Heuristic for Can't Stop" のルールオブ28ヒューリスティックです。
type Glenn struct {
	// ProgressValue weighs this turn's progress per column when deciding to stop.
	ProgressValue [MaxColumn + 1]int
	// MoveValue weighs each column of an advance.
	MoveValue [MaxColumn + 1]int
	// Marker is subtracted for every neutral marker an advance would place.
	Marker int

	Odds  int
	Evens int
	Highs int
	Lows  int

	Threshold int
}

func NewGlenn() Glenn {
	return Glenn{
		ProgressValue: [MaxColumn + 1]int{0, 0, 7, 7, 3, 2, 2, 1, 2, 2, 3, 7, 7},
		MoveValue:     [MaxColumn + 1]int{0, 0, 7, 0, 2, 0, 4, 3, 4, 0, 2, 0, 7},
		Marker:        6,
		Odds:          7,
		Evens:         1,
		Highs:         6,
		Lows:          5,
		Threshold:     29,
	}
}

func (g Glenn) moveScore(s State, m Move) int {
	if m.Kind != Advance {
		return 0
	}
	score := 0
	placed := [MaxColumn + 1]bool{}
	for _, col := range m.Cols() {
		if !validColumn(col) {
			continue
		}
		score += g.MoveValue[col]
		if s.Neutral[col] == 0 && !placed[col] {
			score -= g.Marker
		}
		placed[col] = true
	}
	return score
}

// ShouldStop applies the stop rule: always stop on a win, keep rolling while a neutral marker
// and a free column remain, and otherwise stop once progress plus difficulty reaches Threshold.
func (g Glenn) ShouldStop(s State) bool {
	if s.WillWinAfterStop() {
		return true
	}
	if s.AreThereAvailableColumnsToPlay() {
		return false
	}
	score := s.ProgressScore(g.ProgressValue) + s.DifficultyScore(g.Odds, g.Evens, g.Highs, g.Lows)
	return score >= g.Threshold
}

func (g Glenn) Decide(s State, moves []Move) (Move, error) {
	if len(moves) == 0 {
		return Move{}, game.ErrEmptyLegalMoves
	}

	if s.Phase == Deciding {
		want := ContinueMove
		if g.ShouldStop(s) {
			want = StopMove
		}
		if !slices.Contains(moves, want) {
			return Move{}, fmt.Errorf("%w: %v", ErrIllegalMove, want)
		}
		return want, nil
	}

	// 同点の場合は先に現れた手を選ぶ
	best := 0
	bestScore := g.moveScore(s, moves[0])
	for i, m := range moves[1:] {
		if score := g.moveScore(s, m); score > bestScore {
			best, bestScore = i+1, score
		}
	}
	return moves[best], nil
}

func NewGlennActor() sequential.Actor[State, Move, Player] {
	return dsl.Actor[State, Move, Player]("glenn", NewGlenn())
}

// NewDecider routes every position to the stop or advance program.
func NewDecider[D dsl.Decider[State, Move]](deciders map[string]D) (dsl.Decider[State, Move], error) {
	for _, name := range []string{TreeStop, TreeAdvance} {
		if _, ok := deciders[name]; !ok {
			return nil, fmt.Errorf("%w: %s", dsl.ErrUnknownProgram, name)
		}
	}
	return dsl.Compose(dsl.Router[State, Move](Route), deciders)
}
