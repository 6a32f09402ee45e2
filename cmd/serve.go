package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/laurakrama/DAG2024/internal/loader"
	"github.com/laurakrama/DAG2024/internal/server"
	"github.com/laurakrama/DAG2024/internal/style"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the eligibility and deforestation HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("serve"); err != nil {
			return err
		}
		svc, err := newService(cfg)
		if err != nil {
			return err
		}
		styles, err := style.Load(cfg.Styles.Path)
		if err != nil {
			return err
		}

		// Layers load on the first request so the port opens immediately.
		ws := loader.NewLazy(openWorkspace)

		srv := server.New(ws, svc, styles, server.Options{
			RateLimit:      cfg.Server.RateLimit,
			Burst:          cfg.Server.Burst,
			ComputeTimeout: time.Duration(cfg.Server.ComputeTimeoutSecs) * time.Second,
			AllowedOrigins: cfg.Server.AllowedOrigins,
			Cache:          server.NewResponseCache(cfg.Server.CacheEntries, time.Duration(cfg.Server.CacheTTLSecs)*time.Second),
		})

		return startServer(ctx, srv.Routes(), resolvePort(servePort, cfg.Server.Port))
	},
}

// resolvePort prefers the flag over the configured port.
func resolvePort(flag, configured int) int {
	if flag != 0 {
		return flag
	}
	return configured
}

// startServer serves h until ctx is done, then shuts down gracefully.
func startServer(ctx context.Context, h http.Handler, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		zap.L().Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	zap.L().Info("starting server", zap.Int("port", port))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return eris.Wrap(err, "server listen")
	}

	return nil
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
