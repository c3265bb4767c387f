package sa

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"
)

// IteratedBestResponse repeatedly searches for a best response to the incumbent and promotes
// it when it beats the incumbent head to head.
//
// IteratedBestResponseは現在の代表に対する最善応答を探索し、直接対決で勝ち越せば代表を置き換えます。
type IteratedBestResponse struct {
	NewCandidate func(*rand.Rand) (*Candidate, error)
	// NewSearch builds the inner search whose evaluator plays against incumbent.
	NewSearch func(incumbent *Candidate) (*Engine, error)
	// Compare plays challenger against incumbent.
	Compare func(ctx context.Context, challenger, incumbent *Candidate) (wins, losses int, err error)
	Rounds  int
	Logger  zerolog.Logger
}

type BestResponseResult struct {
	Incumbent    *Candidate
	Rounds       int
	Replacements int
}

func (ibr *IteratedBestResponse) Validate() error {
	switch {
	case ibr.NewCandidate == nil:
		return fmt.Errorf("NewCandidate must not be nil")
	case ibr.NewSearch == nil:
		return fmt.Errorf("NewSearch must not be nil")
	case ibr.Compare == nil:
		return fmt.Errorf("Compare must not be nil")
	case ibr.Rounds <= 0:
		return fmt.Errorf("Rounds must be > 0, got %d", ibr.Rounds)
	}
	return nil
}

func (ibr *IteratedBestResponse) Run(ctx context.Context, rng *rand.Rand) (BestResponseResult, error) {
	if err := ibr.Validate(); err != nil {
		return BestResponseResult{}, err
	}

	incumbent, err := ibr.NewCandidate(rng)
	if err != nil {
		return BestResponseResult{}, err
	}
	result := BestResponseResult{Incumbent: incumbent}

	for round := 1; round <= ibr.Rounds; round++ {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		start, err := ibr.NewCandidate(rng)
		if err != nil {
			return result, err
		}
		search, err := ibr.NewSearch(result.Incumbent)
		if err != nil {
			return result, err
		}
		response, err := search.Run(ctx, start, rng)
		if err != nil {
			return result, fmt.Errorf("round %d: %w", round, err)
		}

		wins, losses, err := ibr.Compare(ctx, response.Best, result.Incumbent)
		if err != nil {
			return result, fmt.Errorf("round %d: %w", round, err)
		}
		result.Rounds++

		replaced := wins > losses
		if replaced {
			result.Incumbent = response.Best
			result.Replacements++
		}
		ibr.Logger.Info().Int("round", round).Int("wins", wins).Int("losses", losses).
			Bool("replaced", replaced).Msg("best response")
	}
	return result, nil
}

type Summary struct {
	Mean   float64
	StdDev float64
	Min    float64
	Max    float64
}

// Summarize describes a fitness trace. An empty trace gives the zero Summary.
func Summarize(trace []float64) Summary {
	if len(trace) == 0 {
		return Summary{}
	}
	s := Summary{Min: trace[0], Max: trace[0]}
	for _, v := range trace[1:] {
		s.Min = min(s.Min, v)
		s.Max = max(s.Max, v)
	}
	if len(trace) == 1 {
		s.Mean = trace[0]
		return s
	}
	s.Mean, s.StdDev = stat.MeanStdDev(trace, nil)
	return s
}
