package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sw965/progsynth/config"
	"github.com/sw965/progsynth/game/sequential/cantstop"
)

func write(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, config.Default().Validate())

	c, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, config.Default(), c)
}

func TestLoadFiles(t *testing.T) {
	yamlPath := write(t, "run.yaml", `
search:
  iterations: 50
  acceptor: metropolis
game:
  name: tictactoe
  cantstop:
    initial_height: 3
`)
	tomlPath := write(t, "run.toml", `
[search]
iterations = 50
acceptor = "metropolis"

[game]
name = "tictactoe"

[game.cantstop]
initial_height = 3
`)

	for _, path := range []string{yamlPath, tomlPath} {
		t.Run(filepath.Ext(path), func(t *testing.T) {
			c, err := config.Load(path)
			require.NoError(t, err)
			assert.Equal(t, 50, c.Search.Iterations)
			assert.Equal(t, "metropolis", c.Search.Acceptor)
			assert.Equal(t, "tictactoe", c.Game.Name)
			assert.Equal(t, cantstop.Config{InitialHeight: 3, Offset: 2}, c.Game.CantStop)
			// untouched keys keep their defaults
			assert.Equal(t, config.Default().Oracle, c.Oracle)
		})
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := write(t, "run.yaml", "search:\n  iterations: 50\n  seed: 3\n")
	t.Setenv("PROGSYNTH_SEARCH_ITERATIONS", "70")
	t.Setenv("PROGSYNTH_ORACLE_BETA", "2.5")
	t.Setenv("PROGSYNTH_GAME_CANTSTOP_OFFSET", "1")

	c, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 70, c.Search.Iterations)
	assert.Equal(t, uint64(3), c.Search.Seed)
	assert.Equal(t, 2.5, c.Oracle.Beta)
	assert.Equal(t, 1, c.Game.CantStop.Offset)

	t.Setenv("PROGSYNTH_SEARCH_ITERATIONS", "many")
	_, err = config.Load(path)
	assert.ErrorContains(t, err, config.EnvPrefix)
	assert.ErrorContains(t, err, `"Iterations"`)
}

func TestApplyEnv(t *testing.T) {
	c := config.Default()
	environ := map[string]string{
		"PROGSYNTH_LOG_LEVEL":                    "debug",
		"PROGSYNTH_SEARCH_SEED":                  "42",
		"PROGSYNTH_GAME_CANTSTOP_INITIAL_HEIGHT": "4",
		"SEARCH_ITERATIONS":                      "9",
	}
	require.NoError(t, config.ApplyEnv(&c, environ))
	assert.Equal(t, "debug", c.Log.Level)
	assert.Equal(t, uint64(42), c.Search.Seed)
	assert.Equal(t, 4, c.Game.CantStop.InitialHeight)
	// unprefixed variables and unset fields leave the config alone
	assert.Equal(t, config.Default().Search.Iterations, c.Search.Iterations)
	assert.Equal(t, config.Default().Oracle, c.Oracle)

	require.Error(t, config.ApplyEnv(&c, map[string]string{"PROGSYNTH_ORACLE_BETA": "high"}))
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*config.Config)
	}{
		{"zero iterations", func(c *config.Config) { c.Search.Iterations = 0 }},
		{"unknown acceptor", func(c *config.Config) { c.Search.Acceptor = "greedy" }},
		{"threshold above one", func(c *config.Config) { c.Oracle.Threshold = 1.5 }},
		{"dir backend without dir", func(c *config.Config) { c.Checkpoint.Dir = "" }},
		{"unknown game", func(c *config.Config) { c.Game.Name = "chess" }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := config.Default()
			tc.modify(&c)
			var errs validator.ValidationErrors
			assert.ErrorAs(t, c.Validate(), &errs)
		})
	}

	c := config.Default()
	c.Checkpoint = config.Checkpoint{Backend: "none"}
	assert.NoError(t, c.Validate())

	c.Game.CantStop.InitialHeight = 0
	assert.ErrorIs(t, c.Validate(), cantstop.ErrInvalidConfig)

	_, err := config.Load(write(t, "run.json", "{}"))
	assert.ErrorIs(t, err, config.ErrUnsupportedFormat)
}
