package main

import (
	"github.com/spf13/cobra"

	"fincast/internal/cli"
	"fincast/internal/services"
)

var flagPublish bool

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Recompute, persist and export every user's report",
	Long: "Recompute every user sequentially, store the snapshots and export the reports to the " +
		"configured spreadsheet. One user's failure never stops the run.",
	Args: cobra.NoArgs,
	RunE: runBatch,
}

func init() {
	batchCmd.Flags().BoolVar(&flagPublish, "publish", true, "Publish forecast.computed events when AMQP is configured")
	rootCmd.AddCommand(batchCmd)
}

func runBatch(cmd *cobra.Command, _ []string) error {
	at, err := asOf()
	if err != nil {
		return err
	}
	app, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	bc, cleanup, err := batchConfig(cmd, app)
	if err != nil {
		return err
	}
	defer cleanup()

	summary, err := services.NewBatchRecomputer(app.Analysis, app.Repo, bc, app.Logger).Run(cmd.Context(), at)
	if err != nil {
		return err
	}
	return writeJSON(cmd, summary)
}

// batchConfig wires the snapshot store and the optional sinks.
func batchConfig(cmd *cobra.Command, app *cli.App) (services.BatchConfig, func(), error) {
	bc := services.BatchConfig{Strategy: flagStrategy, Store: app.Repo}
	cleanup := func() {}

	exporter, err := app.Exporter(cmd.Context())
	if err != nil {
		return bc, cleanup, err
	}
	bc.Exporter = exporter

	if flagPublish {
		client, err := app.AMQP()
		if err != nil {
			return bc, cleanup, err
		}
		if client != nil {
			bc.Publisher = client
			cleanup = func() { client.Close() }
		}
	}
	return bc, cleanup, nil
}
