// Package config loads the settings of a search run from YAML or TOML, applies PROGSYNTH_*
// environment overrides and validates the result.
//
// Package config は探索の設定をYAMLまたはTOMLから読み込み、環境変数で上書きし、検証します。
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/sw965/progsynth/game/sequential/cantstop"
	"gopkg.in/yaml.v3"
)

const EnvPrefix = "PROGSYNTH_"

var ErrUnsupportedFormat = errors.New("unsupported config format")

type Search struct {
	Iterations      int     `yaml:"iterations" toml:"iterations" json:"iterations" validate:"gt=0" env:"ITERATIONS"`
	D               float64 `yaml:"d" toml:"d" json:"d" validate:"gt=0" env:"D"`
	InitTemperature float64 `yaml:"init_temperature" toml:"init_temperature" json:"init_temperature" validate:"gte=0" env:"INIT_TEMPERATURE"`
	Acceptor        string  `yaml:"acceptor" toml:"acceptor" json:"acceptor" validate:"oneof=threshold metropolis" env:"ACCEPTOR"`
	// Fitness is imitation, baseline (wins against Oracle.Opponent) or selfplay.
	Fitness string `yaml:"fitness" toml:"fitness" json:"fitness" validate:"oneof=imitation baseline selfplay" env:"FITNESS"`
	// Rounds of iterated best response for the selfplay command.
	Rounds int    `yaml:"rounds" toml:"rounds" json:"rounds" validate:"gte=0" env:"ROUNDS"`
	Seed   uint64 `yaml:"seed" toml:"seed" json:"seed" env:"SEED"`
}

type Tree struct {
	MaxNodes     int `yaml:"max_nodes" toml:"max_nodes" json:"max_nodes" validate:"gt=0" env:"MAX_NODES"`
	PairingWidth int `yaml:"pairing_width" toml:"pairing_width" json:"pairing_width" validate:"gte=0" env:"PAIRING_WIDTH"`
	// MaxStates caps the iterated width search.
	MaxStates int `yaml:"max_states" toml:"max_states" json:"max_states" validate:"gt=0" env:"MAX_STATES"`
}

type Oracle struct {
	Games     int     `yaml:"games" toml:"games" json:"games" validate:"gt=0" env:"GAMES"`
	Workers   int     `yaml:"workers" toml:"workers" json:"workers" validate:"gt=0" env:"WORKERS"`
	MaxPlies  int     `yaml:"max_plies" toml:"max_plies" json:"max_plies" validate:"gte=0" env:"MAX_PLIES"`
	Beta      float64 `yaml:"beta" toml:"beta" json:"beta" validate:"gte=0" env:"BETA"`
	Threshold float64 `yaml:"threshold" toml:"threshold" json:"threshold" validate:"gte=0,lte=1" env:"THRESHOLD"`
	// EvalStep validates every EvalStep accepted iterations. Zero disables validation.
	EvalStep int    `yaml:"eval_step" toml:"eval_step" json:"eval_step" validate:"gte=0" env:"EVAL_STEP"`
	Opponent string `yaml:"opponent" toml:"opponent" json:"opponent" validate:"oneof=glenn uct random" env:"OPPONENT"`
	// Dataset is the gob file of recorded reference decisions.
	Dataset        string `yaml:"dataset" toml:"dataset" json:"dataset" env:"DATASET"`
	UCTSimulations int    `yaml:"uct_simulations" toml:"uct_simulations" json:"uct_simulations" validate:"gt=0" env:"UCT_SIMULATIONS"`
	// SolitaireGames are played alone at every validation of a game with a solitaire mode.
	// Zero disables them. SolitaireRounds caps one such game.
	SolitaireGames  int `yaml:"solitaire_games" toml:"solitaire_games" json:"solitaire_games" validate:"gte=0" env:"SOLITAIRE_GAMES"`
	SolitaireRounds int `yaml:"solitaire_rounds" toml:"solitaire_rounds" json:"solitaire_rounds" validate:"gte=0" env:"SOLITAIRE_ROUNDS"`
}

type Game struct {
	Name     string          `yaml:"name" toml:"name" json:"name" validate:"oneof=cantstop tictactoe" env:"NAME"`
	CantStop cantstop.Config `yaml:"cantstop" toml:"cantstop" json:"cantstop" envPrefix:"CANTSTOP_"`
}

type Checkpoint struct {
	Backend string `yaml:"backend" toml:"backend" json:"backend" validate:"oneof=none dir badger" env:"BACKEND"`
	Dir     string `yaml:"dir" toml:"dir" json:"dir" validate:"required_unless=Backend none" env:"DIR"`
}

type Metrics struct {
	// Textfile is written at the end of a run when set.
	Textfile string `yaml:"textfile" toml:"textfile" json:"textfile" env:"TEXTFILE"`
}

type Log struct {
	Level  string `yaml:"level" toml:"level" json:"level" validate:"oneof=trace debug info warn error" env:"LEVEL"`
	Format string `yaml:"format" toml:"format" json:"format" validate:"oneof=auto console json" env:"FORMAT"`
}

type Config struct {
	Search     Search     `yaml:"search" toml:"search" json:"search" envPrefix:"SEARCH_"`
	Tree       Tree       `yaml:"tree" toml:"tree" json:"tree" envPrefix:"TREE_"`
	Oracle     Oracle     `yaml:"oracle" toml:"oracle" json:"oracle" envPrefix:"ORACLE_"`
	Game       Game       `yaml:"game" toml:"game" json:"game" envPrefix:"GAME_"`
	Checkpoint Checkpoint `yaml:"checkpoint" toml:"checkpoint" json:"checkpoint" envPrefix:"CHECKPOINT_"`
	Metrics    Metrics    `yaml:"metrics" toml:"metrics" json:"metrics" envPrefix:"METRICS_"`
	Log        Log        `yaml:"log" toml:"log" json:"log" envPrefix:"LOG_"`
}

func Default() Config {
	return Config{
		Search: Search{
			Iterations: 1000,
			D:          1,
			Acceptor:   "threshold",
			Fitness:    "baseline",
			Rounds:     5,
			Seed:       1,
		},
		Tree: Tree{MaxNodes: 100, PairingWidth: 2, MaxStates: 10000},
		Oracle: Oracle{
			Games:           100,
			Workers:         4,
			MaxPlies:        2000,
			Beta:            1,
			Threshold:       0,
			EvalStep:        10,
			Opponent:        "glenn",
			UCTSimulations:  100,
			SolitaireGames:  100,
			SolitaireRounds: 500,
		},
		Game:       Game{Name: "cantstop", CantStop: cantstop.DefaultConfig()},
		Checkpoint: Checkpoint{Backend: "dir", Dir: "checkpoints"},
		Log:        Log{Level: "info", Format: "auto"},
	}
}

var validate = validator.New()

func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	return c.Game.CantStop.Validate()
}

// Load reads path over the defaults, then applies the environment. An empty path skips the file.
func Load(path string) (Config, error) {
	c := Default()
	if path != "" {
		if err := decodeFile(path, &c); err != nil {
			return Config{}, err
		}
	}
	if err := ApplyEnv(&c, nil); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return c, nil
}

func decodeFile(path string, c *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, c)
	case ".toml":
		_, err = toml.Decode(string(data), c)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
	if err != nil {
		return fmt.Errorf("config %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides every field whose variable is set in environ, or in the process
// environment when environ is nil. A variable is named by EnvPrefix and the upper-cased keys
// of the field's path, e.g. PROGSYNTH_SEARCH_ITERATIONS.
func ApplyEnv(c *Config, environ map[string]string) error {
	if err := env.ParseWithOptions(c, env.Options{Prefix: EnvPrefix, Environment: environ}); err != nil {
		return fmt.Errorf("environment %s*: %w", EnvPrefix, err)
	}
	return nil
}
