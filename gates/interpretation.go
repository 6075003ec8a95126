// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package gates

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/danielhkuo/usdt-elasticity/calcerr"
	"github.com/danielhkuo/usdt-elasticity/models"
)

var ErrInFlight = errors.New("request already in progress")

// Guard decides whether gated features may run. *auth.Unlocker satisfies it.
type Guard interface {
	Require(ctx context.Context) error
}

type InterpretationBackend interface {
	GenerateInterpretation(ctx context.Context, calculationID string) (models.Interpretation, error)
}

// InterpretationState is what the UI renders for the interpretation panel.
type InterpretationState struct {
	CalculationID     string
	Loading           bool
	Result            *models.Interpretation
	Err               *calcerr.Error
	RateLimitExceeded bool
	RetryAfterSeconds int
}

// InterpretationGate requests an AI interpretation for a completed
// calculation. A rate-limited answer is kept with its retry delay and is
// never retried automatically.
type InterpretationGate struct {
	backend InterpretationBackend
	guard   Guard

	mu    sync.Mutex
	state InterpretationState
	// gen identifies the request that owns state; Reset bumps it.
	gen uint64
}

// NewInterpretationGate creates a gate. guard may be nil.
func NewInterpretationGate(backend InterpretationBackend, guard Guard) *InterpretationGate {
	return &InterpretationGate{backend: backend, guard: guard}
}

// Generate requests the interpretation of calc. Only one request runs at
// a time; a concurrent call gets ErrInFlight.
func (g *InterpretationGate) Generate(ctx context.Context, calc *models.ParsedElasticityCalculation) (InterpretationState, error) {
	if err := requireCompleted(calc); err != nil {
		return g.State(), err
	}
	if err := checkGuard(ctx, g.guard); err != nil {
		return g.State(), err
	}

	g.mu.Lock()
	if g.state.Loading {
		s := g.state
		g.mu.Unlock()
		return s, ErrInFlight
	}
	g.gen++
	gen := g.gen
	g.state = InterpretationState{CalculationID: calc.ID, Loading: true}
	g.mu.Unlock()

	result, err := g.backend.GenerateInterpretation(ctx, calc.ID)

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.gen != gen {
		// Reset while in flight; a newer request owns the state.
		return g.state, ErrInFlight
	}
	g.state.Loading = false

	if err != nil {
		e := calcerr.From(err)
		g.state.Err = e
		if e.Kind == calcerr.KindRateLimit {
			g.state.RateLimitExceeded = true
			g.state.RetryAfterSeconds = e.RetryAfterSeconds()
			slog.Warn("interpretation rate limited", "calculation_id", calc.ID, "retry_after", g.state.RetryAfterSeconds)
		} else {
			slog.Error("interpretation failed", "calculation_id", calc.ID, "error", err)
		}
		return g.state, e
	}

	g.state.Result = &result
	slog.Info("interpretation ready", "calculation_id", calc.ID, "model", result.Model, "cached", result.Cached)
	return g.state, nil
}

// State returns the current panel state.
func (g *InterpretationGate) State() InterpretationState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Reset clears the panel, e.g. when a new calculation starts.
func (g *InterpretationGate) Reset() {
	g.mu.Lock()
	g.gen++
	g.state = InterpretationState{}
	g.mu.Unlock()
}

func requireCompleted(calc *models.ParsedElasticityCalculation) error {
	if calc == nil || calc.Status != models.StatusCompleted {
		return calcerr.ErrNotComplete
	}
	return nil
}

func checkGuard(ctx context.Context, guard Guard) error {
	if guard == nil {
		return nil
	}
	return guard.Require(ctx)
}
