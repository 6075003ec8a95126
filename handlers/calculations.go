// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/danielhkuo/usdt-elasticity/calcerr"
	"github.com/danielhkuo/usdt-elasticity/dashboard"
	"github.com/danielhkuo/usdt-elasticity/middleware"
	"github.com/danielhkuo/usdt-elasticity/models"
	"github.com/danielhkuo/usdt-elasticity/poller"
)

type CalculationHandler struct {
	dash *dashboard.Dashboard
}

func NewCalculationHandler(dash *dashboard.Dashboard) *CalculationHandler {
	return &CalculationHandler{dash: dash}
}

// CreateCalculation handles POST /calculations
// Validates the form input and starts a new calculation, replacing any active one
func (h *CalculationHandler) CreateCalculation(w http.ResponseWriter, r *http.Request) {
	var req models.RawCalculationInput
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	view, fieldErrs := h.dash.Submit(r.Context(), req)
	if fieldErrs != nil {
		middleware.JSONResponse(w, http.StatusBadRequest, models.ValidationErrorResponse{
			Error:  http.StatusText(http.StatusBadRequest),
			Fields: fieldErrs,
		})
		return
	}

	writeState(w, view)
}

// GetCurrent handles GET /calculations/current
func (h *CalculationHandler) GetCurrent(w http.ResponseWriter, r *http.Request) {
	middleware.JSONResponse(w, http.StatusOK, stateResponse(h.dash.Current()))
}

// CancelCurrent handles DELETE /calculations/current
func (h *CalculationHandler) CancelCurrent(w http.ResponseWriter, r *http.Request) {
	if !h.dash.Cancel() {
		middleware.ErrorResponse(w, http.StatusConflict, "No active calculation")
		return
	}
	middleware.JSONResponse(w, http.StatusOK, stateResponse(h.dash.Current()))
}

// RetryCurrent handles POST /calculations/current/retry
// Resubmits the last validated request
func (h *CalculationHandler) RetryCurrent(w http.ResponseWriter, r *http.Request) {
	view, err := h.dash.Retry(r.Context())
	if errors.Is(err, dashboard.ErrNothingToRetry) {
		middleware.ErrorResponse(w, http.StatusConflict, "Nothing to retry")
		return
	}
	writeState(w, view)
}

// GetResult handles GET /calculations/current/result
// Only available once the calculation has COMPLETED
func (h *CalculationHandler) GetResult(w http.ResponseWriter, r *http.Request) {
	calc, err := h.dash.Result(r.Context())
	if err != nil {
		middleware.CalcErrorResponse(w, err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, calc)
}

// StreamEvents handles GET /calculations/current/events
// Streams state changes as server-sent events until the calculation ends
func (h *CalculationHandler) StreamEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Streaming unsupported")
		return
	}

	updates, unsubscribe := h.dash.Subscribe()
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	current := h.dash.Current()
	if err := writeEvent(w, stateResponse(current)); err != nil {
		return
	}
	flusher.Flush()
	if !current.State.Active() {
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case snap, ok := <-updates:
			if !ok {
				return
			}
			view := h.dash.Current()
			if err := writeEvent(w, stateResponse(view)); err != nil {
				slog.Warn("event stream write failed", "error", err)
				return
			}
			flusher.Flush()
			if snap.State.Terminal() {
				return
			}
		}
	}
}

// GetCoverage handles GET /coverage
func (h *CalculationHandler) GetCoverage(w http.ResponseWriter, r *http.Request) {
	coverage, err := h.dash.Coverage(r.Context())
	if err != nil {
		middleware.CalcErrorResponse(w, err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, coverage)
}

func writeState(w http.ResponseWriter, view dashboard.View) {
	status := http.StatusAccepted
	switch view.State {
	case poller.StateCompleted:
		status = http.StatusOK
	case poller.StateFailed:
		status = http.StatusBadGateway
		if view.Err != nil {
			status = calcerr.HTTPStatus(view.Err)
		}
	}
	middleware.JSONResponse(w, status, stateResponse(view))
}

func stateResponse(view dashboard.View) models.CalculationStateResponse {
	resp := models.CalculationStateResponse{
		State:          string(view.State),
		CalculationID:  view.CalculationID,
		ServerStatus:   view.ServerStatus,
		ElapsedSeconds: view.Elapsed.Seconds(),
		Elapsed:        view.ElapsedText,
		Slow:           view.Slow,
		Polls:          view.Polls,
	}
	if view.State != poller.StateIdle {
		req := view.Request
		resp.Request = &req
	}
	if view.Err != nil {
		resp.Error = middleware.ErrorBody(view.Err)
	}
	if !view.StartedAt.IsZero() {
		t := view.StartedAt.UTC()
		resp.StartedAt = &t
	}
	if !view.FinishedAt.IsZero() {
		t := view.FinishedAt.UTC()
		resp.FinishedAt = &t
	}

	switch view.State {
	case poller.StateCancelled:
		resp.CanRetry = true
	case poller.StateFailed:
		resp.CanRetry = view.Err != nil && view.Err.Retryable()
	}
	return resp
}

func writeEvent(w http.ResponseWriter, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: state\ndata: %s\n\n", data)
	return err
}
