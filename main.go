// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/danielhkuo/usdt-elasticity/auth"
	"github.com/danielhkuo/usdt-elasticity/backend"
	"github.com/danielhkuo/usdt-elasticity/cliparse"
	"github.com/danielhkuo/usdt-elasticity/dashboard"
	"github.com/danielhkuo/usdt-elasticity/gates"
	"github.com/danielhkuo/usdt-elasticity/middleware"
	"github.com/danielhkuo/usdt-elasticity/poller"
	"github.com/danielhkuo/usdt-elasticity/prefs"
	"github.com/danielhkuo/usdt-elasticity/router"
)

const shutdownTimeout = 10 * time.Second

func main() {
	os.Exit(run(os.Args[1:]))
}

// run returns the process exit code so that deferred cleanup always runs.
func run(args []string) int {
	// Parse configuration
	cfg, err := cliparse.ParseFlags(args)
	if err != nil {
		slog.Error("Error parsing flags", "error", err)
		return 1
	}

	ctx := context.Background()

	// Open the preference store (creates the schema for SQL stores)
	store, err := prefs.Open(ctx, cfg.DatabaseType, cfg.DatabaseURL)
	if err != nil {
		slog.Error("preference store unavailable", "type", cfg.DatabaseType, "error", err)
		return 1
	}
	defer store.Close()
	slog.Info("Preference store ready", "type", cfg.DatabaseType)

	rates, err := prefs.LoadRateTypeContext(ctx, store)
	if err != nil {
		slog.Error("failed to load rate type", "error", err)
		return 1
	}
	defer rates.Close()

	prices, err := prefs.LoadPriceTracker(ctx, store)
	if err != nil {
		slog.Error("failed to load market price", "error", err)
		return 1
	}
	defer prices.Close()

	unlocker := auth.NewUnlocker(store, cfg.UnlockPassphrase, cfg.UnlockSalt)
	if !unlocker.Enabled() {
		slog.Info("No unlock passphrase configured, advanced features are open")
	}

	dash := dashboard.New(backend.NewClient(cfg.BackendURL, cfg.RequestTimeout), dashboard.Options{
		Poll: poller.Options{
			Interval:      cfg.PollInterval,
			SlowThreshold: cfg.SlowThreshold,
			FailureBudget: cfg.PollFailureBudget,
		},
		Guard: unlocker,
		Saver: gates.FileSaver{Dir: cfg.DownloadDir},
	})
	defer dash.Close()

	// Create router
	mux := router.NewRouter(dash, rates, prices, unlocker)

	// Create server
	server := http.Server{
		Handler: middleware.CORS(mux),
		Addr:    ":" + strconv.Itoa(cfg.Port),
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("Listening", "port", cfg.Port, "backend", cfg.BackendURL)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		// signal.Notify requires the channel to be buffered
		ctrlc := make(chan os.Signal, 1)
		signal.Notify(ctrlc, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(ctrlc)

		select {
		case <-ctrlc:
		case <-gctx.Done():
			return nil
		}

		// Stop polling first so open event streams end
		dash.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			server.Close()
			return err
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		slog.Error("Server closed", "error", err)
		return 1
	}
	slog.Info("Server closed")
	return 0
}
