// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/dustin/go-humanize"

	"github.com/danielhkuo/usdt-elasticity/calcerr"
	"github.com/danielhkuo/usdt-elasticity/dashboard"
	"github.com/danielhkuo/usdt-elasticity/gates"
	"github.com/danielhkuo/usdt-elasticity/middleware"
	"github.com/danielhkuo/usdt-elasticity/models"
)

type GateHandler struct {
	dash *dashboard.Dashboard
}

func NewGateHandler(dash *dashboard.Dashboard) *GateHandler {
	return &GateHandler{dash: dash}
}

// Interpret handles POST /calculations/current/interpretation
// A rate-limited request answers 429 with the panel state; it is not retried
func (h *GateHandler) Interpret(w http.ResponseWriter, r *http.Request) {
	state, err := h.dash.Interpret(r.Context())
	switch {
	case err == nil:
		middleware.JSONResponse(w, http.StatusOK, interpretationResponse(state))
	case errors.Is(err, gates.ErrInFlight):
		middleware.ErrorResponse(w, http.StatusConflict, "Interpretation already in progress")
	case calcerr.IsRateLimit(err):
		resp := interpretationResponse(state)
		if resp.RetryAfter > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(resp.RetryAfter))
		}
		middleware.JSONResponse(w, http.StatusTooManyRequests, resp)
	default:
		middleware.CalcErrorResponse(w, err)
	}
}

// GetInterpretation handles GET /calculations/current/interpretation
func (h *GateHandler) GetInterpretation(w http.ResponseWriter, r *http.Request) {
	middleware.JSONResponse(w, http.StatusOK, interpretationResponse(h.dash.Interpretation()))
}

// DownloadReport handles POST /calculations/current/report
// Fetches the PDF and saves it into the download directory
func (h *GateHandler) DownloadReport(w http.ResponseWriter, r *http.Request) {
	state, err := h.dash.DownloadReport(r.Context())
	if errors.Is(err, gates.ErrInFlight) {
		middleware.ErrorResponse(w, http.StatusConflict, "Report download already in progress")
		return
	}
	if err != nil {
		middleware.CalcErrorResponse(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusCreated, models.ReportResponse{
		Filename: state.Filename,
		Path:     state.Path,
		Size:     humanize.Bytes(uint64(state.Size)),
	})
}

func interpretationResponse(s gates.InterpretationState) models.InterpretationResponse {
	return models.InterpretationResponse{
		CalculationID:     s.CalculationID,
		Loading:           s.Loading,
		Interpretation:    s.Result,
		RateLimitExceeded: s.RateLimitExceeded,
		RetryAfter:        s.RetryAfterSeconds,
		Error:             middleware.ErrorBody(errOrNil(s.Err)),
	}
}

// errOrNil keeps a nil *calcerr.Error from becoming a non-nil error.
func errOrNil(e *calcerr.Error) error {
	if e == nil {
		return nil
	}
	return e
}
