package cmd

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"tallybook/internal/bootstrap"
	"tallybook/internal/bootstrap/logging"
	"tallybook/internal/errs"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the ledger HTTP API",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App, svcs *services) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		// Migration is additive only, so running it on every boot is safe.
		if err := app.InitSchema(ctx); err != nil {
			return errs.Wrap(err, "initialize schema")
		}

		if err := svcs.Server.Start(ctx); err != nil {
			return errs.Wrap(err, "start http server")
		}

		waitCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		<-waitCtx.Done()

		logging.Info(ctx, "shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := svcs.Server.Stop(shutdownCtx); err != nil {
			return errs.Wrap(err, "stop http server")
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
