package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"fincast/internal/config"
)

var flagAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the JSON query API",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&flagAddr, "addr", "127.0.0.1:8080", "Listen address (overrides $HTTP_ADDR)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	app, err := openApp(cmd, func(cfg *config.Config) {
		if cmd.Flags().Changed("addr") || cfg.HTTPAddr == "" {
			cfg.HTTPAddr = flagAddr
		}
	})
	if err != nil {
		return err
	}
	defer app.Close()
	app.Caches.StartCleanup(app.Config.CacheCleanupInterval)

	srv, err := app.HTTPServer()
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		app.Logger.Info("Query API listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-cmd.Context().Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
