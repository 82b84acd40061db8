package cli

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dgnsrekt/vcr_agent/internal/api"
	"github.com/dgnsrekt/vcr_agent/internal/netutil"
	"github.com/dgnsrekt/vcr_agent/internal/progress"
	"github.com/dgnsrekt/vcr_agent/internal/recorder"
)

var serveBindFallbacks = []string{"127.0.0.1:8094", "127.0.0.1:8095", "127.0.0.1:8096"}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the capture HTTP API",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	journal := openJournal()
	defer func() {
		if err := journal.Close(); err != nil {
			slog.Warn("journal close failed", "error", err)
		}
	}()

	broker := progress.NewBroker()
	svc := recorder.NewService(cfg, broker, journal)
	handler := api.NewServer(svc, broker, cfg.CDPURL())

	addr, err := netutil.SelectBindAddr(cfg.APIBindAddr, serveBindFallbacks, true)
	if err != nil {
		return err
	}

	srv := &http.Server{Addr: addr, Handler: handler}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("server shutdown failed", "error", err)
		}
	}()

	slog.Info("capture API listening", "addr", addr, "cassette_dir", cfg.CassetteDir)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	slog.Info("capture API stopped")
	return nil
}
