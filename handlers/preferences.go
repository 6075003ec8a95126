// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/danielhkuo/usdt-elasticity/auth"
	"github.com/danielhkuo/usdt-elasticity/middleware"
	"github.com/danielhkuo/usdt-elasticity/models"
	"github.com/danielhkuo/usdt-elasticity/prefs"
)

type PreferenceHandler struct {
	rates    *prefs.RateTypeContext
	prices   *prefs.PriceTracker
	unlocker *auth.Unlocker
}

func NewPreferenceHandler(rates *prefs.RateTypeContext, prices *prefs.PriceTracker, unlocker *auth.Unlocker) *PreferenceHandler {
	return &PreferenceHandler{rates: rates, prices: prices, unlocker: unlocker}
}

// GetRateType handles GET /preferences/rate-type
func (h *PreferenceHandler) GetRateType(w http.ResponseWriter, r *http.Request) {
	middleware.JSONResponse(w, http.StatusOK, models.RateTypeResponse{RateType: string(h.rates.RateType())})
}

// SetRateType handles PUT /preferences/rate-type
func (h *PreferenceHandler) SetRateType(w http.ResponseWriter, r *http.Request) {
	var req models.SetRateTypeRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	rt, err := prefs.ParseRateType(req.RateType)
	if err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "rate_type must be 'oficial' or 'referencial'")
		return
	}

	if err := h.rates.SetRateType(r.Context(), rt); err != nil {
		slog.Error("failed to save rate type", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Preference store error")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.RateTypeResponse{RateType: string(rt)})
}

// ObservePrice handles POST /market/price
// Records the latest market price and reports the change and BCB premium
func (h *PreferenceHandler) ObservePrice(w http.ResponseWriter, r *http.Request) {
	var req models.ObservePriceRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	var premium decimal.NullDecimal
	if req.BCBRate.Valid {
		p, err := prefs.Premium(req.Price, req.BCBRate.Decimal)
		if err != nil {
			middleware.ErrorResponse(w, http.StatusBadRequest, "bcb_rate must be positive")
			return
		}
		premium = decimal.NewNullDecimal(p)
	}

	obs, err := h.prices.Observe(r.Context(), req.Price)
	if errors.Is(err, prefs.ErrInvalidPrice) {
		middleware.ErrorResponse(w, http.StatusBadRequest, "price must be positive")
		return
	}
	if err != nil {
		slog.Error("failed to save market price", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Preference store error")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.PriceObservationResponse{
		Price:      obs.Price,
		Previous:   obs.Previous,
		Delta:      obs.Delta,
		PremiumPct: premium,
		RateType:   string(h.rates.RateType()),
	})
}

// GetUnlock handles GET /unlock
func (h *PreferenceHandler) GetUnlock(w http.ResponseWriter, r *http.Request) {
	ok, until, err := h.unlocker.IsUnlocked(r.Context())
	if err != nil {
		slog.Error("failed to read unlock state", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Preference store error")
		return
	}
	middleware.JSONResponse(w, http.StatusOK, unlockResponse(ok, until))
}

// Unlock handles POST /unlock
func (h *PreferenceHandler) Unlock(w http.ResponseWriter, r *http.Request) {
	var req models.UnlockRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	until, err := h.unlocker.Unlock(r.Context(), req.Passphrase)
	if errors.Is(err, auth.ErrInvalidPassphrase) {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "Invalid passphrase")
		return
	}
	if err != nil {
		slog.Error("failed to save unlock state", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Preference store error")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, unlockResponse(true, until))
}

// Lock handles DELETE /unlock
func (h *PreferenceHandler) Lock(w http.ResponseWriter, r *http.Request) {
	if err := h.unlocker.Lock(r.Context()); err != nil {
		slog.Error("failed to clear unlock state", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Preference store error")
		return
	}
	ok, until, _ := h.unlocker.IsUnlocked(r.Context())
	middleware.JSONResponse(w, http.StatusOK, unlockResponse(ok, until))
}

func unlockResponse(unlocked bool, until time.Time) models.UnlockResponse {
	resp := models.UnlockResponse{Unlocked: unlocked}
	if unlocked && !until.IsZero() {
		resp.UnlockedUntil = &until
	}
	return resp
}
