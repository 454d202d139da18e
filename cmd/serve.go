package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/comply/internal/api"
	"github.com/joescharf/comply/internal/daemon"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long: `Start an HTTP server exposing checks, reviews, runs and audit logs under
/api/v1. By default it listens on port 8080. Use --port to change it.

Only one server may own a database; a PID file next to db_path enforces this.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveStartRun(cmd)
	},
}

var serveStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether a server owns the database",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveStatusRun()
	},
}

var serveStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the server that owns the database",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveStopRun()
	},
}

func init() {
	serveCmd.Flags().IntP("port", "p", 8080, "port to listen on")
	_ = viper.BindPFlag("port", serveCmd.Flags().Lookup("port"))

	serveCmd.AddCommand(serveStatusCmd)
	serveCmd.AddCommand(serveStopCmd)
	rootCmd.AddCommand(serveCmd)
}

// pidFile returns the PID file for the configured database.
func pidFile() *daemon.PIDFile {
	return daemon.ForDatabase(viper.GetString("db_path"))
}

func serveStartRun(cmd *cobra.Command) error {
	pf := pidFile()
	if pid, running := pf.IsRunning(); running && pid != os.Getpid() {
		return fmt.Errorf("server already running (PID %d)", pid)
	}

	svc, set, err := newServerService()
	if err != nil {
		return err
	}

	addr := fmt.Sprintf(":%d", viper.GetInt("port"))
	if dryRun {
		ui.DryRunMsg("Would serve the API at http://localhost%s", addr)
		return nil
	}

	if err := pf.Acquire(); err != nil {
		if errors.Is(err, daemon.ErrAlreadyRunning) {
			return fmt.Errorf("server already running: %w", err)
		}
		return err
	}
	defer func() {
		if err := pf.Release(); err != nil {
			slog.Warn("release PID file", "error", err)
		}
	}()

	handler := api.NewServer(svc, set, viper.GetString("review.citation_prefix"), slog.Default()).Router()
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), shutdownSignals()...)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		ui.Info("Serving API at http://localhost%s/api/v1", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	ui.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func serveStatusRun() error {
	pf := pidFile()
	pid, running := pf.IsRunning()
	if !running {
		ui.Info("Server is not running")
		return nil
	}
	ui.Success("Server is running (PID %d)", pid)
	ui.Info("Database: %s", viper.GetString("db_path"))
	return nil
}

func serveStopRun() error {
	pf := pidFile()
	if _, running := pf.IsRunning(); !running {
		ui.Info("Server is not running")
		return nil
	}

	if dryRun {
		ui.DryRunMsg("Would stop the server")
		return nil
	}

	pid, err := pf.Stop()
	if err != nil {
		return fmt.Errorf("stop server: %w", err)
	}
	ui.Success("Sent stop signal to server (PID %d)", pid)
	return nil
}
