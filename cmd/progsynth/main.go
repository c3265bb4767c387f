package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:          "progsynth",
		Short:        "Synthesise game-playing programs from a grammar",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML or TOML config file")

	rootCmd.AddCommand(newSearchCmd(&configPath))
	rootCmd.AddCommand(newSelfPlayCmd(&configPath))
	rootCmd.AddCommand(newRecordCmd(&configPath))
	rootCmd.AddCommand(newSampleCmd(&configPath))
	rootCmd.AddCommand(newIWCmd(&configPath))
	rootCmd.AddCommand(newLeagueCmd(&configPath))

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
