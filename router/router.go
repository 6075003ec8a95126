// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package router

import (
	"net/http"

	"github.com/danielhkuo/usdt-elasticity/auth"
	"github.com/danielhkuo/usdt-elasticity/dashboard"
	"github.com/danielhkuo/usdt-elasticity/handlers"
	"github.com/danielhkuo/usdt-elasticity/middleware"
	"github.com/danielhkuo/usdt-elasticity/prefs"
)

func NewRouter(dash *dashboard.Dashboard, rates *prefs.RateTypeContext, prices *prefs.PriceTracker, unlocker *auth.Unlocker) *http.ServeMux {
	mux := http.NewServeMux()

	// Initialize handlers
	calcHandler := handlers.NewCalculationHandler(dash)
	gateHandler := handlers.NewGateHandler(dash)
	prefHandler := handlers.NewPreferenceHandler(rates, prices, unlocker)

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	mux.HandleFunc("GET /coverage", middleware.WithLogging(calcHandler.GetCoverage))

	// Calculation lifecycle
	mux.HandleFunc("POST /calculations", middleware.WithLogging(calcHandler.CreateCalculation))
	mux.HandleFunc("GET /calculations/current", middleware.WithLogging(calcHandler.GetCurrent))
	mux.HandleFunc("DELETE /calculations/current", middleware.WithLogging(calcHandler.CancelCurrent))
	mux.HandleFunc("POST /calculations/current/retry", middleware.WithLogging(calcHandler.RetryCurrent))
	mux.HandleFunc("GET /calculations/current/result", middleware.WithLogging(calcHandler.GetResult))
	mux.HandleFunc("GET /calculations/current/events", middleware.WithLogging(calcHandler.StreamEvents))

	// Gated features (completed calculation, unlocked when configured)
	mux.HandleFunc("POST /calculations/current/interpretation", middleware.WithLogging(gateHandler.Interpret))
	mux.HandleFunc("GET /calculations/current/interpretation", middleware.WithLogging(gateHandler.GetInterpretation))
	mux.HandleFunc("POST /calculations/current/report", middleware.WithLogging(gateHandler.DownloadReport))

	// Preferences
	mux.HandleFunc("GET /preferences/rate-type", middleware.WithLogging(prefHandler.GetRateType))
	mux.HandleFunc("PUT /preferences/rate-type", middleware.WithLogging(prefHandler.SetRateType))
	mux.HandleFunc("POST /market/price", middleware.WithLogging(prefHandler.ObservePrice))

	// Unlock gate
	mux.HandleFunc("GET /unlock", middleware.WithLogging(prefHandler.GetUnlock))
	mux.HandleFunc("POST /unlock", middleware.WithLogging(prefHandler.Unlock))
	mux.HandleFunc("DELETE /unlock", middleware.WithLogging(prefHandler.Lock))

	// Root endpoint
	mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("usdt-elasticity API v1"))
	})

	return mux
}
