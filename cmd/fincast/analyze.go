package main

import (
	"time"

	"github.com/spf13/cobra"

	"fincast/internal/cli"
	"fincast/internal/core"
)

var forecastCmd = &cobra.Command{
	Use:   "forecast <user-id>",
	Short: "Forecast next month's expenses and surplus",
	Args:  cobra.ExactArgs(1),
	RunE:  runForecast,
}

var simulateCmd = &cobra.Command{
	Use:   "simulate <user-id>",
	Short: "Simulate how large an unplanned expense the user can absorb",
	Args:  cobra.ExactArgs(1),
	RunE:  runSimulate,
}

var budgetCmd = &cobra.Command{
	Use:   "budget <user-id>",
	Short: "Project adaptive budgets and savings opportunities",
	Args:  cobra.ExactArgs(1),
	RunE:  runBudget,
}

var allocateCmd = &cobra.Command{
	Use:   "allocate <user-id>",
	Short: "Split savings capacity across active goals",
	Args:  cobra.ExactArgs(1),
	RunE:  runAllocate,
}

var reportCmd = &cobra.Command{
	Use:   "report <user-id>",
	Short: "Full report: forecast, shock simulation, budgets and allocation",
	Args:  cobra.ExactArgs(1),
	RunE:  runReport,
}

func init() {
	rootCmd.AddCommand(forecastCmd)
	rootCmd.AddCommand(simulateCmd)
	rootCmd.AddCommand(budgetCmd)
	rootCmd.AddCommand(allocateCmd)
	rootCmd.AddCommand(reportCmd)
}

// withUser bootstraps the engine, resolves --as-of and runs fn for one
// user.
func withUser(cmd *cobra.Command, fn func(app *cli.App, asOf time.Time) (any, error)) error {
	at, err := asOf()
	if err != nil {
		return err
	}
	app, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	out, err := fn(app, at)
	if err != nil {
		return err
	}
	return writeJSON(cmd, out)
}

func runForecast(cmd *cobra.Command, args []string) error {
	return withUser(cmd, func(app *cli.App, at time.Time) (any, error) {
		res, err := app.Analysis.Forecast(cmd.Context(), args[0], at)
		return res.Rounded(), err
	})
}

func runSimulate(cmd *cobra.Command, args []string) error {
	return withUser(cmd, func(app *cli.App, at time.Time) (any, error) {
		res, err := app.Analysis.Simulate(cmd.Context(), args[0], at)
		return res.Rounded(), err
	})
}

type budgetOutput struct {
	Budgets       []core.BudgetProjection   `json:"budgets"`
	Opportunities []core.SavingsOpportunity `json:"savings_opportunities"`
}

func runBudget(cmd *cobra.Command, args []string) error {
	return withUser(cmd, func(app *cli.App, at time.Time) (any, error) {
		budgets, opps, err := app.Analysis.Budgets(cmd.Context(), args[0], at)
		if err != nil {
			return nil, err
		}
		r := core.Report{Budgets: budgets, Opportunities: opps}.Rounded()
		return budgetOutput{Budgets: r.Budgets, Opportunities: r.Opportunities}, nil
	})
}

func runAllocate(cmd *cobra.Command, args []string) error {
	return withUser(cmd, func(app *cli.App, at time.Time) (any, error) {
		plan, err := app.Analysis.Allocate(cmd.Context(), args[0], at, flagStrategy)
		return plan.Rounded(), err
	})
}

func runReport(cmd *cobra.Command, args []string) error {
	return withUser(cmd, func(app *cli.App, at time.Time) (any, error) {
		r, err := app.Analysis.Report(cmd.Context(), args[0], at, flagStrategy)
		return r.Rounded(), err
	})
}
