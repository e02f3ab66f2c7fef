package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/autoperf/taudash/internal/api"
	"github.com/autoperf/taudash/internal/scheduler"
	"github.com/autoperf/taudash/internal/session"
	"github.com/autoperf/taudash/internal/taudb"
)

const sweepJobName = "session-sweep"

var (
	servePort int
	serveBind string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the profile API server",
	Long: `Run the taudash HTTP API in the foreground.

Clients log in with database parameters (POST /api/login); the server opens
the database, binds it to a cookie session and answers the application,
trial, metric, thread, metadata and profile queries for that session.
Idle sessions are closed on the [server] session_sweep cron schedule.

Configure in config.toml:
  [server]
  bind_addr = "127.0.0.1"
  api_port = 8080
  api_key = "change-me"      # required for non-loopback bind addresses
  session_ttl = "12h"
  session_sweep = "*/10 * * * *"

  [datasource]
  data_dir = "~/profiles"    # relative database names resolve here

Use Ctrl+C to stop the server gracefully.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntVar(&servePort, "port", 0, "API port (overrides [server] api_port)")
	serveCmd.Flags().StringVar(&serveBind, "bind", "", "bind address (overrides [server] bind_addr)")
}

func runServe(cmd *cobra.Command, args []string) error {
	if servePort != 0 {
		cfg.Server.APIPort = servePort
	}
	if serveBind != "" {
		cfg.Server.BindAddr = serveBind
	}

	// Validate security posture before doing any work
	if err := cfg.Server.ValidateSecure(); err != nil {
		return err
	}
	ttl, err := cfg.SessionTTL()
	if err != nil {
		return err
	}

	sessions := session.NewManager(
		session.TaudbOpener(taudb.OpenOptions{DataDir: cfg.Datasource.DataDir}),
		ttl, logger)
	defer func() {
		if err := sessions.Close(); err != nil {
			logger.Warn("close sessions", "error", err)
		}
	}()

	sched := scheduler.New().WithLogger(logger)
	if err := sched.Add(sweepJobName, cfg.Server.SessionSweep, sessions.SweepJob); err != nil {
		return fmt.Errorf("schedule session sweep: %w", err)
	}
	sched.Start()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	apiServer := api.NewServer(cfg, sessions, sched, logger)

	serverErr := make(chan error, 1)
	go func() {
		if err := apiServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	bindAddr := cfg.Server.BindAddr
	if bindAddr == "" {
		bindAddr = "127.0.0.1"
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "taudash server started\n")
	fmt.Fprintf(out, "  API server: http://%s\n", net.JoinHostPort(bindAddr, strconv.Itoa(cfg.Server.APIPort)))
	fmt.Fprintf(out, "  Data directory: %s\n", cfg.Datasource.DataDir)
	fmt.Fprintf(out, "  Session TTL: %s\n", ttl)
	for _, status := range sched.Status() {
		fmt.Fprintf(out, "  %s: next run at %s\n", status.Name, status.NextRun.Local().Format("2006-01-02 15:04:05"))
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Press Ctrl+C to stop.")

	var runErr error
	select {
	case err := <-serverErr:
		logger.Error("API server error", "error", err)
		runErr = fmt.Errorf("api server: %w", err)
	case <-ctx.Done():
		logger.Info("shutting down", "reason", context.Cause(ctx))
	}

	fmt.Fprintln(out, "Shutting down API server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("API server shutdown error", "error", err)
	}

	schedCtx := sched.Stop()
	select {
	case <-schedCtx.Done():
		fmt.Fprintln(out, "Shutdown complete.")
	case <-time.After(30 * time.Second):
		fmt.Fprintln(out, "Shutdown timed out after 30 seconds.")
	}

	return runErr
}
