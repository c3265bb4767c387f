package cantstop

import (
	"fmt"
	"math/rand/v2"
	"slices"

	"github.com/sw965/progsynth/dsl"
)

// settleAlone rerolls for the same player until an advance is playable. Every bust ends a round.
func (s State) settleAlone() (State, int, error) {
	for busts := range maxConsecutiveBusts {
		if len(s.advanceMoves()) > 0 {
			return s, busts, nil
		}
		s.Neutral = [MaxColumn + 1]int{}
		s = s.roll()
	}
	return s, maxConsecutiveBusts, ErrTooManyBusts
}

// PlaySolitaire plays one game of Can't Stop with a single player deciding every move.
// A stop or a bust ends a round and the turn comes back to the same player. It returns the
// rounds played until ColumnsToWin columns are claimed. When maxRounds > 0 the game stops
// once maxRounds rounds are played and finished is false.
func PlaySolitaire(cfg Config, d dsl.Decider[State, Move], maxRounds int, rng *rand.Rand) (rounds int, finished bool, err error) {
	if err := cfg.Validate(); err != nil {
		return 0, false, err
	}
	s := State{Config: cfg, Turn: First, pcg: *rand.NewPCG(rng.Uint64(), rng.Uint64())}
	s, rounds, err = s.roll().settleAlone()
	if err != nil {
		return rounds, false, err
	}

	for {
		if maxRounds > 0 && rounds >= maxRounds {
			return rounds, false, nil
		}

		moves := LegalMoves(s)
		m, err := d.Decide(s, moves)
		if err != nil {
			return rounds, false, err
		}
		if !slices.Contains(moves, m) {
			return rounds, false, fmt.Errorf("%w: %v", ErrIllegalMove, m)
		}

		switch m.Kind {
		case Advance:
			s = s.advance(m)
			continue
		case Stop:
			s = s.stop()
			rounds++
			if s.Phase == Over {
				return rounds, true, nil
			}
		}

		var busts int
		s, busts, err = s.roll().settleAlone()
		rounds += busts
		if err != nil {
			return rounds, false, err
		}
	}
}
