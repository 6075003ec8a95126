// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package dashboard

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/danielhkuo/usdt-elasticity/builder"
	"github.com/danielhkuo/usdt-elasticity/calcerr"
	"github.com/danielhkuo/usdt-elasticity/gates"
	"github.com/danielhkuo/usdt-elasticity/materializer"
	"github.com/danielhkuo/usdt-elasticity/models"
	"github.com/danielhkuo/usdt-elasticity/poller"
)

var ErrNothingToRetry = errors.New("no previous calculation to retry")

// Backend is everything the dashboard needs from the REST client.
type Backend interface {
	poller.Backend
	materializer.Fetcher
	gates.InterpretationBackend
	gates.ReportBackend
	GetDataCoverage(ctx context.Context) (models.DataCoverage, error)
}

type Options struct {
	Poll  poller.Options
	Guard gates.Guard
	Saver gates.Saver
	Now   func() time.Time
}

// View is a snapshot plus display helpers.
type View struct {
	poller.Snapshot
	ElapsedText string
}

// Dashboard owns one calculation lifecycle and the features that depend
// on its result.
type Dashboard struct {
	backend      Backend
	engine       *poller.Engine
	materializer *materializer.Materializer
	interp       *gates.InterpretationGate
	reports      *gates.ReportGate
	now          func() time.Time

	// bg bounds background materializations; Close cancels it.
	bg     context.Context
	stopBg context.CancelFunc
	wg     sync.WaitGroup

	mu          sync.Mutex
	lastRequest *models.CalculationRequest
	result      *models.ParsedElasticityCalculation
	resultID    string
}

func New(backend Backend, opts Options) *Dashboard {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Saver == nil {
		opts.Saver = gates.FileSaver{Dir: "."}
	}

	bg, stop := context.WithCancel(context.Background())
	d := &Dashboard{
		backend:      backend,
		materializer: materializer.New(backend),
		interp:       gates.NewInterpretationGate(backend, opts.Guard),
		reports:      gates.NewReportGate(backend, opts.Saver, opts.Guard),
		now:          opts.Now,
		bg:           bg,
		stopBg:       stop,
	}

	pollOpts := opts.Poll
	pollOpts.OnTerminal = d.onTerminal
	if pollOpts.Now == nil {
		pollOpts.Now = opts.Now
	}
	d.engine = poller.New(backend, pollOpts)
	return d
}

// Submit validates raw and starts a calculation. Input that fails the
// local rules is rejected before any network call; otherwise it is checked
// again against the backend's data coverage when that is available.
// Field errors mean nothing was submitted.
func (d *Dashboard) Submit(ctx context.Context, raw models.RawCalculationInput) (View, builder.FieldErrors) {
	now := d.now()
	if _, errs := builder.Build(raw, nil, now); errs != nil {
		return d.Current(), errs
	}

	var cov *models.DataCoverage
	if coverage, err := d.backend.GetDataCoverage(ctx); err != nil {
		slog.Warn("data coverage unavailable, validating without bounds", "error", err)
	} else {
		cov = &coverage
	}

	req, errs := builder.Build(raw, cov, now)
	if errs != nil {
		return d.Current(), errs
	}

	d.mu.Lock()
	d.lastRequest = &req
	d.mu.Unlock()

	return d.start(ctx, req), nil
}

// Retry resubmits the last validated request.
func (d *Dashboard) Retry(ctx context.Context) (View, error) {
	d.mu.Lock()
	last := d.lastRequest
	d.mu.Unlock()
	if last == nil {
		return d.Current(), ErrNothingToRetry
	}
	return d.start(ctx, *last), nil
}

func (d *Dashboard) start(ctx context.Context, req models.CalculationRequest) View {
	d.mu.Lock()
	d.result, d.resultID = nil, ""
	d.mu.Unlock()
	d.interp.Reset()
	d.reports.Reset()

	return d.view(d.engine.Start(ctx, req))
}

// Cancel stops the active calculation, if any.
func (d *Dashboard) Cancel() bool {
	return d.engine.Cancel()
}

// Current returns the lifecycle state.
func (d *Dashboard) Current() View {
	return d.view(d.engine.Snapshot())
}

// Subscribe forwards engine state changes.
func (d *Dashboard) Subscribe() (<-chan poller.Snapshot, func()) {
	return d.engine.Subscribe()
}

// Result returns the materialized result of the completed calculation,
// fetching it again if the background materialization failed.
func (d *Dashboard) Result(ctx context.Context) (*models.ParsedElasticityCalculation, error) {
	snap := d.engine.Snapshot()
	if snap.State != poller.StateCompleted {
		return nil, calcerr.ErrNotComplete
	}

	d.mu.Lock()
	if d.resultID == snap.CalculationID && d.result != nil {
		r := d.result
		d.mu.Unlock()
		return r, nil
	}
	d.mu.Unlock()

	return d.materialize(ctx, snap.CalculationID)
}

// Interpret requests the AI interpretation of the current result.
func (d *Dashboard) Interpret(ctx context.Context) (gates.InterpretationState, error) {
	calc, err := d.Result(ctx)
	if err != nil {
		return d.interp.State(), err
	}
	return d.interp.Generate(ctx, calc)
}

// Interpretation returns the interpretation panel state.
func (d *Dashboard) Interpretation() gates.InterpretationState {
	return d.interp.State()
}

// DownloadReport fetches and saves the PDF report of the current result.
func (d *Dashboard) DownloadReport(ctx context.Context) (gates.ReportState, error) {
	calc, err := d.Result(ctx)
	if err != nil {
		return d.reports.State(), err
	}
	return d.reports.Download(ctx, calc)
}

// Coverage returns the backend's data coverage.
func (d *Dashboard) Coverage(ctx context.Context) (models.DataCoverage, error) {
	return d.backend.GetDataCoverage(ctx)
}

// Close stops polling and waits for background work.
func (d *Dashboard) Close() {
	d.engine.Close()
	d.stopBg()
	d.wg.Wait()
}

func (d *Dashboard) onTerminal(snap poller.Snapshot) {
	if snap.State != poller.StateCompleted {
		return
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.materialize(d.bg, snap.CalculationID)
	}()
}

func (d *Dashboard) materialize(ctx context.Context, id string) (*models.ParsedElasticityCalculation, error) {
	calc, err := d.materializer.Materialize(ctx, id)

	d.mu.Lock()
	defer d.mu.Unlock()
	// Drop results for a calculation that is no longer current.
	if cur := d.engine.Snapshot(); cur.CalculationID != id || cur.State != poller.StateCompleted {
		return calc, err
	}
	if err != nil {
		return nil, err
	}
	d.resultID = id
	d.result = calc
	return calc, nil
}

func (d *Dashboard) view(s poller.Snapshot) View {
	v := View{Snapshot: s}
	if !s.StartedAt.IsZero() {
		v.ElapsedText = humanizeElapsed(s.Elapsed)
	}
	return v
}

func humanizeElapsed(elapsed time.Duration) string {
	base := time.Unix(0, 0)
	return strings.TrimSpace(humanize.RelTime(base, base.Add(elapsed), "", ""))
}
