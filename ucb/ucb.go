package ucb

import (
	"fmt"
	"math/rand/v2"

	"github.com/chewxy/math32"
	"github.com/sw965/omw/mathx/randx"
)

// Func scores a move from its average value v, prior p, the parent's total trial count and its own.
type Func func(v, p float32, total, n int) float32

// NewUCB1Func returns v + c*sqrt(ln(total)/n). Untried moves score +Inf so every move is tried once.
func NewUCB1Func(c float32) Func {
	return func(v, _ float32, total, n int) float32 {
		if n == 0 {
			return math32.Inf(1)
		}
		return v + c*math32.Sqrt(math32.Log(float32(total))/float32(n))
	}
}

func NewAlphaGoFunc(c float32) Func {
	return func(v, p float32, total, n int) float32 {
		return v + c*p*math32.Sqrt(float32(total))/float32(n+1)
	}
}

type Calculator struct {
	Func       Func
	TotalValue float32
	P          float32
	Trial      int
}

func (c *Calculator) AverageValue() float32 {
	if c.Trial == 0 {
		return 0
	}
	return c.TotalValue / float32(c.Trial)
}

func (c *Calculator) Calculation(totalTrial int) float32 {
	return c.Func(c.AverageValue(), c.P, totalTrial, c.Trial)
}

func (c *Calculator) Update(v float32) {
	c.TotalValue += v
	c.Trial++
}

type Manager[M comparable] map[M]*Calculator

// Ensure adds a uniform-prior calculator for every move that has none yet.
func (m Manager[M]) Ensure(moves []M, fn Func) {
	p := 1 / float32(len(moves))
	for _, move := range moves {
		if _, ok := m[move]; !ok {
			m[move] = &Calculator{Func: fn, P: p}
		}
	}
}

func (m Manager[M]) TotalTrial() int {
	t := 0
	for _, c := range m {
		t += c.Trial
	}
	return t
}

func (m Manager[M]) AverageValue() float32 {
	total := m.TotalTrial()
	if total == 0 {
		return 0
	}
	var v float32
	for _, c := range m {
		v += c.TotalValue
	}
	return v / float32(total)
}

// MaxKeys returns the moves among keys with the highest score. The total trial count is taken
// over keys only, so moves that are not legal right now do not inflate the exploration term.
func (m Manager[M]) MaxKeys(keys []M) ([]M, error) {
	total := 0
	for _, k := range keys {
		c, ok := m[k]
		if !ok {
			return nil, fmt.Errorf("ucb: no calculator for %v", k)
		}
		total += c.Trial
	}

	best := math32.Inf(-1)
	maxKeys := make([]M, 0, len(keys))
	for _, k := range keys {
		v := m[k].Calculation(total)
		switch {
		case v > best:
			best = v
			maxKeys = append(maxKeys[:0], k)
		case v == best:
			maxKeys = append(maxKeys, k)
		}
	}
	return maxKeys, nil
}

// Select breaks ties among MaxKeys at random.
func (m Manager[M]) Select(keys []M, rng *rand.Rand) (M, error) {
	maxKeys, err := m.MaxKeys(keys)
	if err != nil {
		var zero M
		return zero, err
	}
	return randx.Choice(maxKeys, rng)
}

func (m Manager[M]) MaxTrial() int {
	max := 0
	for _, c := range m {
		if c.Trial > max {
			max = c.Trial
		}
	}
	return max
}

func (m Manager[M]) MaxTrialKeys() []M {
	max := m.MaxTrial()
	ks := make([]M, 0, len(m))
	for k, c := range m {
		if c.Trial == max {
			ks = append(ks, k)
		}
	}
	return ks
}

func (m Manager[M]) TrialPercentByKey() map[M]float32 {
	total := m.TotalTrial()
	ps := make(map[M]float32, len(m))
	for k, c := range m {
		if total == 0 {
			ps[k] = 0
			continue
		}
		ps[k] = float32(c.Trial) / float32(total)
	}
	return ps
}
