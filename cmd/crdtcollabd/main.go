// Command crdtcollabd runs the collaborative text-editing demo server:
// a WebSocket hub serving documents backed by the clock/crdt packages.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Polqt/crdtcollab/config"
	"github.com/Polqt/crdtcollab/internal/buildinfo"
	"github.com/Polqt/crdtcollab/session"
	"github.com/Polqt/crdtcollab/transport"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	if len(os.Args) > 1 {
		cfg.Addr = os.Args[1]
	}

	if cfg.LogFormat == "json" {
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))
	}

	hub := session.NewHub(cfg.DocumentIdleTimeout, cfg.StartReplicaID)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go hub.Run(ctx)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws/", transport.NewWSHandler(hub).ServeHTTP)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "ok (%s)\n", buildinfo.Version)
	})

	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: mux,
	}

	go func() {
		slog.Info("crdt collaboration server listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server exited", "err", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("graceful shutdown failed", "err", err)
	}
}
