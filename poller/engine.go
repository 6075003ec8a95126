// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package poller

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/danielhkuo/usdt-elasticity/calcerr"
	"github.com/danielhkuo/usdt-elasticity/models"
)

// State is the client-side lifecycle state of a calculation.
type State string

const (
	StateIdle       State = "IDLE"
	StateSubmitting State = "SUBMITTING"
	StatePolling    State = "POLLING"
	StateCompleted  State = "COMPLETED"
	StateFailed     State = "FAILED"
	StateCancelled  State = "CANCELLED"
)

// Terminal reports whether s only changes through a new Start.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// Active reports whether a submission or poll loop is running.
func (s State) Active() bool {
	return s == StateSubmitting || s == StatePolling
}

const (
	DefaultInterval      = 2 * time.Second
	DefaultSlowThreshold = 60 * time.Second
	DefaultFailureBudget = 1
)

// Backend is the part of the REST client the engine needs.
type Backend interface {
	CreateCalculation(ctx context.Context, req models.CalculationRequest) (models.CalculationStatus, error)
	GetCalculationStatus(ctx context.Context, id string) (models.CalculationStatus, error)
}

// Options tunes an Engine. Zero values take the defaults above.
type Options struct {
	Interval      time.Duration
	SlowThreshold time.Duration
	// FailureBudget is how many consecutive failed polls end the
	// calculation as FAILED.
	FailureBudget int
	// OnTerminal runs once per terminal transition, outside the engine
	// lock, on the goroutine that caused it. It must not block.
	OnTerminal func(Snapshot)
	Now        func() time.Time
}

// Snapshot is a consistent view of the engine.
type Snapshot struct {
	State         State
	CalculationID string
	ServerStatus  models.Status
	Request       models.CalculationRequest
	Err           *calcerr.Error
	StartedAt     time.Time
	FinishedAt    time.Time
	Elapsed       time.Duration
	Slow          bool
	Polls         int
}

// Engine submits one calculation at a time and polls it to completion.
type Engine struct {
	backend Backend
	opts    Options

	// startMu serializes Start and Close so two loops never overlap.
	startMu sync.Mutex

	mu           sync.Mutex
	state        State
	id           string
	serverStatus models.Status
	req          models.CalculationRequest
	err          *calcerr.Error
	startedAt    time.Time
	finishedAt   time.Time
	polls        int
	failures     int
	gen          uint64
	cancel       context.CancelFunc
	done         chan struct{}
	closed       bool

	subs    map[int]chan Snapshot
	nextSub int
}

// New creates an idle engine.
func New(backend Backend, opts Options) *Engine {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.SlowThreshold <= 0 {
		opts.SlowThreshold = DefaultSlowThreshold
	}
	if opts.FailureBudget <= 0 {
		opts.FailureBudget = DefaultFailureBudget
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Engine{
		backend: backend,
		opts:    opts,
		state:   StateIdle,
		subs:    make(map[int]chan Snapshot),
	}
}

// Start stops any previous calculation, submits req and begins polling.
// The submission itself is synchronous; the returned snapshot is either
// POLLING or terminal.
func (e *Engine) Start(ctx context.Context, req models.CalculationRequest) Snapshot {
	e.startMu.Lock()
	defer e.startMu.Unlock()

	// Retire the previous generation before its loop context is cancelled,
	// so a poll aborted by the cancel is discarded rather than counted.
	e.mu.Lock()
	e.gen++
	e.mu.Unlock()
	e.stopLoop()

	e.mu.Lock()
	if e.closed {
		snap := e.snapshotLocked()
		e.mu.Unlock()
		return snap
	}
	e.gen++
	gen := e.gen
	e.state = StateSubmitting
	e.id = ""
	e.serverStatus = ""
	e.req = req
	e.err = nil
	e.startedAt = e.opts.Now()
	e.finishedAt = time.Time{}
	e.polls = 0
	e.failures = 0

	loopCtx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.publishLocked()
	e.mu.Unlock()

	// Cancel aborts the submission as well as the loop.
	submitCtx, stopSubmit := context.WithCancel(ctx)
	stop := context.AfterFunc(loopCtx, stopSubmit)
	status, err := e.backend.CreateCalculation(submitCtx, req)
	stop()
	stopSubmit()

	e.mu.Lock()
	if e.gen != gen {
		// Cancelled while submitting.
		snap := e.snapshotLocked()
		e.mu.Unlock()
		return snap
	}

	if err != nil {
		kind := calcerr.KindNetwork
		if calcerr.IsRateLimit(err) {
			kind = calcerr.KindRateLimit
		}
		e.finishLocked(StateFailed, calcerr.Wrap(err, kind))
		snap := e.snapshotLocked()
		e.mu.Unlock()
		slog.Warn("calculation submission failed", "error", err)
		e.terminal(snap)
		return snap
	}

	e.id = status.ID
	e.serverStatus = status.Status
	slog.Info("calculation submitted", "calculation_id", status.ID, "method", req.Method, "status", status.Status)

	if status.Status.Terminal() {
		e.applyStatusLocked(status)
		snap := e.snapshotLocked()
		e.mu.Unlock()
		e.terminal(snap)
		return snap
	}

	e.state = StatePolling
	done := make(chan struct{})
	e.done = done
	e.publishLocked()
	snap := e.snapshotLocked()
	e.mu.Unlock()

	go e.loop(loopCtx, gen, status.ID, done)
	return snap
}

// Cancel stops the active calculation. It reports whether anything was
// cancelled; calling it again, or in a terminal state, is a no-op.
func (e *Engine) Cancel() bool {
	e.mu.Lock()
	if !e.state.Active() {
		e.mu.Unlock()
		return false
	}
	// Bumping the generation discards any poll still in flight.
	e.gen++
	e.finishLocked(StateCancelled, nil)
	snap := e.snapshotLocked()
	e.mu.Unlock()

	slog.Info("calculation cancelled", "calculation_id", snap.CalculationID)
	e.terminal(snap)
	return true
}

// Close cancels any active calculation, waits for the poll goroutine to
// exit and closes all subscriptions. The engine cannot be restarted.
func (e *Engine) Close() {
	e.Cancel()

	e.startMu.Lock()
	defer e.startMu.Unlock()

	// Same as Start: a poll aborted by stopLoop must not be applied.
	e.mu.Lock()
	e.gen++
	e.mu.Unlock()
	e.stopLoop()

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.closed = true
	for id, ch := range e.subs {
		delete(e.subs, id)
		close(ch)
	}
}

// Snapshot returns the current view of the engine.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

// Subscribe returns a channel that receives a snapshot on every state
// change. Only the latest undelivered snapshot is kept. The returned
// func unsubscribes.
func (e *Engine) Subscribe() (<-chan Snapshot, func()) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ch := make(chan Snapshot, 1)
	if e.closed {
		close(ch)
		return ch, func() {}
	}
	id := e.nextSub
	e.nextSub++
	e.subs[id] = ch

	return ch, func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if c, ok := e.subs[id]; ok {
			delete(e.subs, id)
			close(c)
		}
	}
}

func (e *Engine) loop(ctx context.Context, gen uint64, id string, done chan struct{}) {
	defer close(done)

	// The timer is re-armed only after a poll resolves, so polls never overlap.
	timer := time.NewTimer(e.opts.Interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		status, err := e.backend.GetCalculationStatus(ctx, id)
		if ctx.Err() != nil {
			return
		}
		if !e.applyPoll(gen, status, err) {
			return
		}
		timer.Reset(e.opts.Interval)
	}
}

// applyPoll records a poll result and reports whether polling continues.
func (e *Engine) applyPoll(gen uint64, status models.CalculationStatus, err error) bool {
	e.mu.Lock()
	if e.gen != gen || e.state != StatePolling {
		e.mu.Unlock()
		return false
	}

	if err != nil {
		e.failures++
		slog.Warn("calculation poll failed",
			"calculation_id", e.id,
			"failures", e.failures,
			"budget", e.opts.FailureBudget,
			"error", err,
		)
		if e.failures < e.opts.FailureBudget {
			e.mu.Unlock()
			return true
		}
		kind := calcerr.KindNetwork
		if calcerr.IsRateLimit(err) {
			kind = calcerr.KindRateLimit
		}
		e.finishLocked(StateFailed, calcerr.Wrap(err, kind))
		snap := e.snapshotLocked()
		e.mu.Unlock()
		e.terminal(snap)
		return false
	}

	e.failures = 0
	e.polls++
	prev := e.serverStatus
	e.applyStatusLocked(status)

	if !e.state.Terminal() {
		if prev != e.serverStatus {
			e.publishLocked()
		}
		e.mu.Unlock()
		return true
	}

	snap := e.snapshotLocked()
	e.mu.Unlock()
	e.terminal(snap)
	return false
}

// applyStatusLocked maps a server status onto the engine state.
// PENDING, PROCESSING and unknown statuses keep polling.
func (e *Engine) applyStatusLocked(status models.CalculationStatus) {
	e.serverStatus = status.Status
	switch status.Status {
	case models.StatusCompleted:
		e.finishLocked(StateCompleted, nil)
	case models.StatusFailed:
		msg := status.ErrorMessage
		if msg == "" {
			msg = "calculation failed"
		}
		e.finishLocked(StateFailed, &calcerr.Error{
			Kind:    calcerr.KindCalculation,
			Code:    status.ErrorCode,
			Message: msg,
		})
	}
}

func (e *Engine) finishLocked(state State, err *calcerr.Error) {
	e.state = state
	e.err = err
	e.finishedAt = e.opts.Now()
	if e.cancel != nil {
		e.cancel()
	}
	e.publishLocked()
}

func (e *Engine) terminal(snap Snapshot) {
	slog.Info("calculation finished",
		"calculation_id", snap.CalculationID,
		"state", snap.State,
		"polls", snap.Polls,
		"elapsed_ms", snap.Elapsed.Milliseconds(),
	)
	if e.opts.OnTerminal != nil {
		e.opts.OnTerminal(snap)
	}
}

// stopLoop cancels the running loop, if any, and waits for it to exit.
// Callers hold startMu.
func (e *Engine) stopLoop() {
	e.mu.Lock()
	cancel, done := e.cancel, e.done
	e.cancel, e.done = nil, nil
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

func (e *Engine) snapshotLocked() Snapshot {
	s := Snapshot{
		State:         e.state,
		CalculationID: e.id,
		ServerStatus:  e.serverStatus,
		Request:       e.req,
		Err:           e.err,
		StartedAt:     e.startedAt,
		FinishedAt:    e.finishedAt,
		Polls:         e.polls,
	}
	switch {
	case e.startedAt.IsZero():
	case e.state.Terminal():
		s.Elapsed = e.finishedAt.Sub(e.startedAt)
	default:
		s.Elapsed = e.opts.Now().Sub(e.startedAt)
		s.Slow = s.Elapsed >= e.opts.SlowThreshold
	}
	return s
}

// publishLocked delivers the current snapshot without blocking,
// replacing any value the subscriber has not read yet.
func (e *Engine) publishLocked() {
	if len(e.subs) == 0 {
		return
	}
	snap := e.snapshotLocked()
	for _, ch := range e.subs {
		select {
		case ch <- snap:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}
