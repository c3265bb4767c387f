// Package cantstop implements the dice game Can't Stop for two players.
//
// The dice come from a PCG generator stored by value in State, so a state fully determines
// its own future. Reseed replaces the generator, which is how searches sample other futures.
//
// Package cantstop は二人用のダイスゲーム Can't Stop を実装します。
// ダイスの乱数生成器はStateに値として保持されるため、Stateが自身の未来を完全に決定します。
package cantstop

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"

	"github.com/sw965/progsynth/game/sequential"
)

var (
	ErrIllegalMove   = errors.New("illegal move")
	ErrGameOver      = errors.New("game is over")
	ErrInvalidConfig = errors.New("invalid config")
	ErrTooManyBusts  = errors.New("too many consecutive busts")
)

const (
	NumDice        = 4
	Faces          = 6
	MinColumn      = 2
	MaxColumn      = 12
	NeutralMarkers = 3
	ColumnsToWin   = 3

	maxConsecutiveBusts = 10000
)

type Player int

const (
	NoPlayer Player = iota
	First
	Second
)

func (p Player) Opponent() Player {
	switch p {
	case First:
		return Second
	case Second:
		return First
	}
	return NoPlayer
}

func (p Player) String() string {
	switch p {
	case First:
		return "first"
	case Second:
		return "second"
	}
	return "none"
}

type Kind int

const (
	Advance Kind = iota
	Continue
	Stop
)

// Move is comparable so it can key a policy. Columns holds N columns in ascending order.
type Move struct {
	Kind    Kind
	Columns [2]int
	N       int
}

var (
	ContinueMove = Move{Kind: Continue}
	StopMove     = Move{Kind: Stop}
)

func AdvanceMove(cols ...int) Move {
	m := Move{Kind: Advance, N: len(cols)}
	switch len(cols) {
	case 1:
		m.Columns[0] = cols[0]
	case 2:
		m.Columns[0], m.Columns[1] = min(cols[0], cols[1]), max(cols[0], cols[1])
	default:
		panic(fmt.Sprintf("cantstop: an advance uses 1 or 2 columns, got %d", len(cols)))
	}
	return m
}

func (m Move) Cols() []int {
	return m.Columns[:m.N]
}

func (m Move) String() string {
	switch m.Kind {
	case Continue:
		return "y"
	case Stop:
		return "n"
	}
	if m.N == 1 {
		return fmt.Sprintf("(%d)", m.Columns[0])
	}
	return fmt.Sprintf("(%d,%d)", m.Columns[0], m.Columns[1])
}

type Config struct {
	InitialHeight int `yaml:"initial_height" toml:"initial_height" json:"initial_height" env:"INITIAL_HEIGHT"`
	Offset        int `yaml:"offset" toml:"offset" json:"offset" env:"OFFSET"`
}

func DefaultConfig() Config {
	return Config{InitialHeight: 2, Offset: 2}
}

func (c Config) Validate() error {
	if c.InitialHeight < 1 {
		return fmt.Errorf("%w: InitialHeight must be >= 1, got %d", ErrInvalidConfig, c.InitialHeight)
	}
	if c.Offset < 0 {
		return fmt.Errorf("%w: Offset must be >= 0, got %d", ErrInvalidConfig, c.Offset)
	}
	return nil
}

// Height is the number of cells of col. Column 7 is the tallest.
func (c Config) Height(col int) int {
	d := col - 7
	if d < 0 {
		d = -d
	}
	return c.InitialHeight + c.Offset*(5-d)
}

type Phase int

const (
	// Choosing waits for an advance using the current dice.
	Choosing Phase = iota
	// Deciding waits for Continue or Stop.
	Deciding
	Over
)

type State struct {
	Config Config
	Turn   Player
	Phase  Phase
	Dice   [NumDice]int
	// Progress is the committed position per player and column, indexed by Player.
	Progress [3][MaxColumn + 1]int
	// Neutral is the position of the neutral marker of the current turn, 0 when unused.
	Neutral [MaxColumn + 1]int
	Claimed [MaxColumn + 1]Player
	Winner  Player

	pcg rand.PCG
}

func NewInitState(cfg Config, seed1, seed2 uint64) (State, error) {
	if err := cfg.Validate(); err != nil {
		return State{}, err
	}
	s := State{Config: cfg, Turn: First, pcg: *rand.NewPCG(seed1, seed2)}
	return s.roll().settle()
}

// Reseed replaces the dice generator. Dice already on the table are kept.
func (s State) Reseed(seed1, seed2 uint64) State {
	s.pcg = *rand.NewPCG(seed1, seed2)
	return s
}

// Determinize keeps the dice on the table and resamples every later roll.
func Determinize(s State, rng *rand.Rand) State {
	return s.Reseed(rng.Uint64(), rng.Uint64())
}

func (s State) roll() State {
	src := s.pcg
	r := rand.New(&src)
	for i := range s.Dice {
		s.Dice[i] = r.IntN(Faces) + 1
	}
	s.pcg = src
	s.Phase = Choosing
	return s
}

// settle resolves busts until the player to move has a playable advance.
func (s State) settle() (State, error) {
	for range maxConsecutiveBusts {
		if len(s.advanceMoves()) > 0 {
			return s, nil
		}
		s = s.passTurn().roll()
	}
	return s, ErrTooManyBusts
}

func (s State) passTurn() State {
	s.Neutral = [MaxColumn + 1]int{}
	s.Turn = s.Turn.Opponent()
	return s
}

func validColumn(col int) bool {
	return col >= MinColumn && col <= MaxColumn
}

// Position is where p stands in col, counting this turn's progress when p is to move.
func (s State) Position(p Player, col int) int {
	if !validColumn(col) {
		return 0
	}
	if p == s.Turn && s.Neutral[col] > 0 {
		return s.Neutral[col]
	}
	return s.Progress[p][col]
}

func (s State) NeutralsUsed() int {
	n := 0
	for _, pos := range s.Neutral {
		if pos > 0 {
			n++
		}
	}
	return n
}

func (s State) NeutralColumns() []int {
	cols := make([]int, 0, NeutralMarkers)
	for col, pos := range s.Neutral {
		if pos > 0 {
			cols = append(cols, col)
		}
	}
	return cols
}

func (s State) ColumnsWon(p Player) int {
	n := 0
	for _, owner := range s.Claimed {
		if owner == p && p != NoPlayer {
			n++
		}
	}
	return n
}

func (s State) open(col int) bool {
	return s.Claimed[col] == NoPlayer && s.Position(s.Turn, col) < s.Config.Height(col)
}

func (s State) playable(cols ...int) bool {
	used := s.NeutralsUsed()
	for i, col := range cols {
		if !validColumn(col) || !s.open(col) {
			return false
		}
		if s.Neutral[col] == 0 && !slices.Contains(cols[:i], col) {
			used++
		}
	}
	return used <= NeutralMarkers
}

// pairings are the three ways of splitting the dice into two sums.
func (s State) pairings() [3][2]int {
	d := s.Dice
	return [3][2]int{
		{d[0] + d[1], d[2] + d[3]},
		{d[0] + d[2], d[1] + d[3]},
		{d[0] + d[3], d[1] + d[2]},
	}
}

func (s State) advanceMoves() []Move {
	moves := make([]Move, 0, 6)
	add := func(m Move) {
		if !slices.Contains(moves, m) {
			moves = append(moves, m)
		}
	}

	for _, p := range s.pairings() {
		if s.playable(p[0], p[1]) {
			add(AdvanceMove(p[0], p[1]))
			continue
		}
		// 両方は進められない場合、片方ずつ選べる
		if s.playable(p[0]) {
			add(AdvanceMove(p[0]))
		}
		if s.playable(p[1]) {
			add(AdvanceMove(p[1]))
		}
	}
	return moves
}

func LegalMoves(s State) []Move {
	switch s.Phase {
	case Choosing:
		return s.advanceMoves()
	case Deciding:
		return []Move{ContinueMove, StopMove}
	}
	return nil
}

func (s State) advance(m Move) State {
	for _, col := range m.Cols() {
		if s.Neutral[col] == 0 {
			s.Neutral[col] = s.Progress[s.Turn][col]
		}
		s.Neutral[col] = min(s.Neutral[col]+1, s.Config.Height(col))
	}
	s.Phase = Deciding
	return s
}

func (s State) stop() State {
	for _, col := range s.NeutralColumns() {
		pos := s.Neutral[col]
		s.Progress[s.Turn][col] = pos
		if pos >= s.Config.Height(col) {
			s.Claimed[col] = s.Turn
			// 列を獲得したら、他のプレイヤーのマーカーは取り除かれる
			opp := s.Turn.Opponent()
			s.Progress[opp][col] = 0
		}
	}
	s.Neutral = [MaxColumn + 1]int{}
	if s.ColumnsWon(s.Turn) >= ColumnsToWin {
		s.Winner = s.Turn
		s.Phase = Over
	}
	return s
}

func MoveFunc(s State, m Move) (State, error) {
	if s.Phase == Over {
		return State{}, ErrGameOver
	}
	if !slices.Contains(LegalMoves(s), m) {
		return State{}, fmt.Errorf("%w: %v", ErrIllegalMove, m)
	}

	switch m.Kind {
	case Advance:
		return s.advance(m), nil
	case Continue:
		// 出目で進められなければバースト
		return s.roll().settle()
	default:
		next := s.stop()
		if next.Phase == Over {
			return next, nil
		}
		return next.passTurn().roll().settle()
	}
}

func RankByAgentFunc(s State) (sequential.RankByAgent[Player], error) {
	if s.Winner == NoPlayer {
		return sequential.RankByAgent[Player]{}, nil
	}
	return sequential.RankByAgent[Player]{
		s.Winner:            1,
		s.Winner.Opponent(): 2,
	}, nil
}

func NewLogic() sequential.Logic[State, Move, Player] {
	return sequential.Logic[State, Move, Player]{
		LegalMovesFunc: LegalMoves,
		MoveFunc:       MoveFunc,
		EqualFunc: func(a, b State) bool {
			return a == b
		},
		CurrentAgentFunc: func(s State) Player {
			return s.Turn
		},
	}
}

func NewEngine() sequential.Engine[State, Move, Player] {
	engine := sequential.Engine[State, Move, Player]{
		Logic:           NewLogic(),
		RankByAgentFunc: RankByAgentFunc,
		Agents:          []Player{First, Second},
	}
	engine.SetStandardResultScoreByAgentFunc()
	return engine
}
