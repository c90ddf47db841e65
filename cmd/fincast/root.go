package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"fincast/internal/cli"
	"fincast/internal/config"
)

var (
	flagDB           string
	flagAsOf         string
	flagSeed         uint64
	flagEngineConfig string
	flagStrategy     string
)

var rootCmd = &cobra.Command{
	Use:   "fincast",
	Short: "Personal finance forecasting engine",
	Long: "Forecast expenses and surplus, simulate unplanned expense shocks, project adaptive " +
		"budgets and split savings capacity across goals.",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "SQLite database path (default $SQLITE_DB_PATH)")
	rootCmd.PersistentFlags().StringVar(&flagAsOf, "as-of", "", "Evaluation instant, YYYY-MM-DD or RFC3339 (default now)")
	rootCmd.PersistentFlags().Uint64Var(&flagSeed, "seed", 0, "Monte Carlo seed, for reproducible simulations")
	rootCmd.PersistentFlags().StringVarP(&flagEngineConfig, "config", "c", "", "Engine tuning TOML file (default $ENGINE_CONFIG_FILE)")
	rootCmd.PersistentFlags().StringVarP(&flagStrategy, "strategy", "s", "", "Allocation strategy (default from engine config)")
}

// openApp loads configuration with flag overrides and bootstraps the
// engine. Logs go to stderr so stdout stays pure JSON.
func openApp(cmd *cobra.Command, adjust ...func(*config.Config)) (*cli.App, error) {
	cfg := config.Load()
	if flagDB != "" {
		cfg.SQLiteDBPath = flagDB
	}
	if flagEngineConfig != "" {
		cfg.EngineConfigFile = flagEngineConfig
	}
	for _, fn := range adjust {
		fn(cfg)
	}

	logger := cli.SetupLogger(cfg, cmd.ErrOrStderr())

	var overrides []cli.EngineOverride
	if cmd.Flags().Changed("seed") {
		seed := flagSeed
		overrides = append(overrides, func(e *config.EngineConfig) { e.SimulationSeed = seed })
	}
	return cli.Bootstrap(cfg, logger, overrides...)
}

// asOf returns the evaluation instant from --as-of.
func asOf() (time.Time, error) {
	return parseAsOf(flagAsOf, time.Now())
}

func parseAsOf(value string, now time.Time) (time.Time, error) {
	if value == "" {
		return now.UTC(), nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --as-of %q: want YYYY-MM-DD or RFC3339", value)
	}
	return t, nil
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
