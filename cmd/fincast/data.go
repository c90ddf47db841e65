package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"fincast/internal/amqp"
	"fincast/internal/core"
	"fincast/internal/log"
	"fincast/internal/storage"
)

var flagPeriod string

var importCmd = &cobra.Command{
	Use:   "import <dataset.json>",
	Short: "Load users, transactions and goals from a JSON file",
	Long: "Load a dataset in one transaction. When AMQP is configured a transactions.ingested " +
		"event is published for every user whose data changed.",
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

var snapshotCmd = &cobra.Command{
	Use:   "snapshot <user-id>",
	Short: "Show the last persisted snapshot of a user",
	Args:  cobra.ExactArgs(1),
	RunE:  runSnapshot,
}

func init() {
	snapshotCmd.Flags().StringVar(&flagPeriod, "period", "", "Period YYYY-MM (default the --as-of month)")
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(snapshotCmd)
}

type importOutput struct {
	Users        int      `json:"users"`
	Transactions int      `json:"transactions"`
	Goals        int      `json:"goals"`
	Touched      []string `json:"touched"`
	Published    int      `json:"published"`
}

func readDataset(path string) (storage.Dataset, error) {
	var ds storage.Dataset
	f, err := os.Open(path)
	if err != nil {
		return ds, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&ds); err != nil {
		return ds, fmt.Errorf("decode dataset %s: %w", path, err)
	}
	return ds, nil
}

func runImport(cmd *cobra.Command, args []string) error {
	ds, err := readDataset(args[0])
	if err != nil {
		return err
	}
	app, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	res, err := app.Repo.Import(cmd.Context(), ds)
	if err != nil {
		return err
	}
	out := importOutput{
		Users:        res.Users,
		Transactions: res.Transactions,
		Goals:        res.Goals,
		Touched:      res.Touched,
	}

	client, err := app.AMQP()
	if err != nil {
		return err
	}
	if client != nil {
		defer client.Close()

		counts := make(map[string]int)
		for _, t := range ds.Transactions {
			counts[t.UserID]++
		}
		for _, userID := range res.Touched {
			msg := amqp.NewTransactionsIngestedMessage(userID, counts[userID])
			if err := client.PublishTransactionsIngested(cmd.Context(), msg); err != nil {
				app.Logger.Warn("Failed to publish transactions.ingested",
					log.FieldUserID, userID,
					log.FieldError, err.Error(),
				)
				continue
			}
			out.Published++
		}
	}
	return writeJSON(cmd, out)
}

func runSnapshot(cmd *cobra.Command, args []string) error {
	period := flagPeriod
	if period == "" {
		at, err := asOf()
		if err != nil {
			return err
		}
		period = core.PeriodKey(at)
	}

	app, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	snap, err := app.Repo.GetSnapshot(cmd.Context(), args[0], period)
	if err != nil {
		return err
	}
	return writeJSON(cmd, snap.Rounded())
}
