package main

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"math"
	"math/rand/v2"
	"os"
	"os/signal"
	"slices"

	"github.com/muesli/termenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/sw965/progsynth/checkpoint"
	"github.com/sw965/progsynth/config"
	"github.com/sw965/progsynth/dataset"
	"github.com/sw965/progsynth/dsl"
	"github.com/sw965/progsynth/game/sequential"
	"github.com/sw965/progsynth/game/sequential/cantstop"
	ttt "github.com/sw965/progsynth/game/sequential/tictactoe"
	"github.com/sw965/progsynth/game/sequential/uct"
	"github.com/sw965/progsynth/grammar"
	"github.com/sw965/progsynth/logging"
	"github.com/sw965/progsynth/oracle"
	"github.com/sw965/progsynth/sa"
	"github.com/sw965/progsynth/ucb"
)

// runner is the game-specific side of every command.
type runner interface {
	search(ctx context.Context, resume string) error
	selfPlay(ctx context.Context) error
	record(games int, path string) error
	sample(n int) error
	iw(ctx context.Context) error
	league(ctx context.Context, games int, runID string) error
}

type app[S any, M, A comparable] struct {
	cfg    config.Config
	logger zerolog.Logger
	out    *termenv.Output

	engine  sequential.Engine[S, M, A]
	newInit func(*rand.Rand) (S, error)
	// grammars holds one grammar per tree of a search candidate. single is the grammar of a
	// one-program candidate, which iw enumerates.
	grammars     map[string]*grammar.Grammar
	single       *grammar.Grammar
	features     *dsl.Features[S, M]
	materializer oracle.Materializer[S, M]
	reference    sequential.Actor[S, M, A]
	opponents    map[string]sequential.Actor[S, M, A]
	category     dataset.CategoryFunc[S, M]
	// solitaire is nil for games without a single-player mode.
	solitaire oracle.SolitaireFunc[S, M]
}

// run loads the config, picks the app of the configured game and cancels on interrupt.
func run(cmd *cobra.Command, configPath string, f func(context.Context, runner) error) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger, err := logging.New(logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		return err
	}
	out := termenv.NewOutput(os.Stdout)

	var r runner
	switch cfg.Game.Name {
	case "cantstop":
		r, err = newCantStopApp(cfg, logger, out)
	case "tictactoe":
		r, err = newTicTacToeApp(cfg, logger, out)
	default:
		err = fmt.Errorf("unknown game %q", cfg.Game.Name)
	}
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()
	return f(ctx, r)
}

func newUCTActor[S any, M, A comparable](engine sequential.Engine[S, M, A], cfg config.Config, determinize uct.DeterminizeFunc[S]) sequential.Actor[S, M, A] {
	mcts := &uct.MCTS[S, M, A]{
		Engine:          engine,
		UCBFunc:         ucb.NewUCB1Func(float32(math.Sqrt2)),
		Simulations:     cfg.Oracle.UCTSimulations,
		MaxRolloutPlies: cfg.Oracle.MaxPlies,
		Determinize:     determinize,
	}
	return mcts.NewActor("uct", cfg.Search.Seed)
}

func newCantStopApp(cfg config.Config, logger zerolog.Logger, out *termenv.Output) (*app[cantstop.State, cantstop.Move, cantstop.Player], error) {
	features, err := cantstop.NewFeatures()
	if err != nil {
		return nil, err
	}
	grammars := map[string]*grammar.Grammar{}
	for _, name := range []string{cantstop.TreeStop, cantstop.TreeAdvance, cantstop.TreeToy} {
		g, err := cantstop.Grammar(name)
		if err != nil {
			return nil, err
		}
		grammars[name] = g
	}
	toy := grammars[cantstop.TreeToy]
	delete(grammars, cantstop.TreeToy)

	engine := cantstop.NewEngine()
	gameCfg := cfg.Game.CantStop
	glenn := cantstop.NewGlennActor()
	solitaire := func(d dsl.Decider[cantstop.State, cantstop.Move], rng *rand.Rand) (int, bool, error) {
		return cantstop.PlaySolitaire(gameCfg, d, cfg.Oracle.SolitaireRounds, rng)
	}
	return &app[cantstop.State, cantstop.Move, cantstop.Player]{
		cfg:    cfg,
		logger: logger.With().Str("game", "cantstop").Logger(),
		out:    out,
		engine: engine,
		newInit: func(rng *rand.Rand) (cantstop.State, error) {
			return cantstop.NewInitState(gameCfg, rng.Uint64(), rng.Uint64())
		},
		grammars: grammars,
		single:   toy,
		features: features,
		materializer: oracle.Materializer[cantstop.State, cantstop.Move]{
			Features: features,
			Compose: func(programs map[string]*dsl.Program[cantstop.State, cantstop.Move]) (dsl.Decider[cantstop.State, cantstop.Move], error) {
				return cantstop.NewDecider(programs)
			},
		},
		reference: glenn,
		opponents: map[string]sequential.Actor[cantstop.State, cantstop.Move, cantstop.Player]{
			"glenn":  glenn,
			"uct":    newUCTActor[cantstop.State, cantstop.Move, cantstop.Player](engine, cfg, cantstop.Determinize),
			"random": sequential.NewRandomActor[cantstop.State, cantstop.Move, cantstop.Player](),
		},
		category:  cantstop.Category,
		solitaire: solitaire,
	}, nil
}

// Tic-tac-toe has no hand-written strategy, so UCT is the reference.
func newTicTacToeApp(cfg config.Config, logger zerolog.Logger, out *termenv.Output) (*app[ttt.State, ttt.Move, ttt.Mark], error) {
	features, err := ttt.NewFeatures()
	if err != nil {
		return nil, err
	}
	g, err := ttt.Grammar()
	if err != nil {
		return nil, err
	}

	engine := ttt.NewEngine()
	reference := newUCTActor[ttt.State, ttt.Move, ttt.Mark](engine, cfg, nil)
	return &app[ttt.State, ttt.Move, ttt.Mark]{
		cfg:    cfg,
		logger: logger.With().Str("game", "tictactoe").Logger(),
		out:    out,
		engine: engine,
		newInit: func(*rand.Rand) (ttt.State, error) {
			return ttt.NewInitState(), nil
		},
		grammars:     map[string]*grammar.Grammar{sa.MainTree: g},
		single:       g,
		features:     features,
		materializer: oracle.Materializer[ttt.State, ttt.Move]{Features: features},
		reference:    reference,
		opponents: map[string]sequential.Actor[ttt.State, ttt.Move, ttt.Mark]{
			"uct":    reference,
			"random": sequential.NewRandomActor[ttt.State, ttt.Move, ttt.Mark](),
		},
	}, nil
}

func (a *app[S, M, A]) rng() *rand.Rand {
	return rand.New(rand.NewPCG(a.cfg.Search.Seed, a.cfg.Search.Seed+1))
}

// workerRNGs gives every worker of a batch of games its own generator.
func (a *app[S, M, A]) workerRNGs() []*rand.Rand {
	rngs := make([]*rand.Rand, a.cfg.Oracle.Workers)
	for i := range rngs {
		rngs[i] = rand.New(rand.NewPCG(a.cfg.Search.Seed, uint64(i)+2))
	}
	return rngs
}

func (a *app[S, M, A]) inits(n int, rng *rand.Rand) ([]S, error) {
	inits := make([]S, n)
	for i := range inits {
		s, err := a.newInit(rng)
		if err != nil {
			return nil, err
		}
		inits[i] = s
	}
	return inits, nil
}

func (a *app[S, M, A]) newVersus() *oracle.Versus[S, M, A] {
	return &oracle.Versus[S, M, A]{
		Engine:   a.engine,
		NewInit:  a.newInit,
		Games:    a.cfg.Oracle.Games,
		Workers:  a.cfg.Oracle.Workers,
		MaxPlies: a.cfg.Oracle.MaxPlies,
		Seed:     a.cfg.Search.Seed,
	}
}

// newSolitaire returns nil when the game has no solitaire mode or SolitaireGames is zero.
func (a *app[S, M, A]) newSolitaire() *oracle.Solitaire[S, M] {
	if a.solitaire == nil || a.cfg.Oracle.SolitaireGames == 0 {
		return nil
	}
	return &oracle.Solitaire[S, M]{
		Play:    a.solitaire,
		Games:   a.cfg.Oracle.SolitaireGames,
		Workers: a.cfg.Oracle.Workers,
		Seed:    a.cfg.Search.Seed,
	}
}

func (a *app[S, M, A]) opponent() (sequential.Actor[S, M, A], error) {
	actor, ok := a.opponents[a.cfg.Oracle.Opponent]
	if !ok {
		return actor, fmt.Errorf("opponent %q is not available for %s, have %v",
			a.cfg.Oracle.Opponent, a.cfg.Game.Name, slices.Sorted(maps.Keys(a.opponents)))
	}
	return actor, nil
}

// sortedOpponents lists the opponents by name.
func (a *app[S, M, A]) sortedOpponents() []sequential.Actor[S, M, A] {
	actors := make([]sequential.Actor[S, M, A], 0, len(a.opponents))
	for _, name := range slices.Sorted(maps.Keys(a.opponents)) {
		actors = append(actors, a.opponents[name])
	}
	return actors
}

func (a *app[S, M, A]) randomCandidate(rng *rand.Rand) (*sa.Candidate, error) {
	return sa.NewRandomCandidate(a.grammars, a.cfg.Tree.MaxNodes, rng)
}

func (a *app[S, M, A]) newAcceptor() sa.Acceptor {
	var acceptor sa.Acceptor = sa.ThresholdAcceptor{}
	if a.cfg.Search.Acceptor == "metropolis" {
		acceptor = sa.MetropolisAcceptor{}
	}
	if a.cfg.Search.Fitness == "selfplay" {
		return sa.Strict{Acceptor: acceptor}
	}
	return acceptor
}

func (a *app[S, M, A]) newSchedule() sa.Schedule {
	return sa.LogSchedule{D: a.cfg.Search.D, Init: a.cfg.Search.InitTemperature}
}

var errNoStore = errors.New("checkpoint backend is none")

// openStore returns errNoStore when checkpoints are disabled.
func openStore(cfg config.Checkpoint) (checkpoint.Store, error) {
	switch cfg.Backend {
	case "dir":
		s, err := checkpoint.NewDirStore(cfg.Dir)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "badger":
		s, err := checkpoint.OpenBadgerStore(cfg.Dir)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	return nil, errNoStore
}

// load rebuilds the latest candidate saved under runID.
func (a *app[S, M, A]) load(ctx context.Context, runID string) (*sa.Candidate, checkpoint.Checkpoint, error) {
	store, err := openStore(a.cfg.Checkpoint)
	if err != nil {
		return nil, checkpoint.Checkpoint{}, err
	}
	defer store.Close()

	cp, err := store.Latest(ctx, runID)
	if err != nil {
		return nil, cp, fmt.Errorf("run %s: %w", runID, err)
	}
	c, err := cp.Candidate(a.grammars, a.cfg.Tree.MaxNodes)
	return c, cp, err
}

func (a *app[S, M, A]) title(s string) string {
	return a.out.String(s).Bold().Foreground(a.out.Color("6")).String()
}

func (a *app[S, M, A]) printPrograms(c *sa.Candidate) {
	programs := c.Programs()
	for _, name := range c.Names() {
		fmt.Fprintln(a.out, a.out.String("["+name+"]").Foreground(a.out.Color("2")).String())
		fmt.Fprintln(a.out, programs[name])
	}
}
