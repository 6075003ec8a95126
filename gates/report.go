// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package gates

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"

	"github.com/danielhkuo/usdt-elasticity/calcerr"
	"github.com/danielhkuo/usdt-elasticity/models"
)

type ReportBackend interface {
	DownloadReport(ctx context.Context, calculationID string) (models.Report, error)
}

// Saver stores a downloaded report and returns where it went.
type Saver interface {
	Save(report models.Report) (string, error)
}

// FileSaver writes reports into Dir.
type FileSaver struct {
	Dir string
}

var ErrUnsafeFilename = errors.New("report file name resolves outside the download dir")

// Save writes the report under its own file name. Any directory part of
// the name is dropped, including in the default name built from the id.
func (s FileSaver) Save(report models.Report) (string, error) {
	name := baseName(report.Filename)
	if name == "" {
		name = baseName("reporte_elasticidad_" + report.CalculationID + ".pdf")
	}
	if name == "" {
		return "", ErrUnsafeFilename
	}

	dir := s.Dir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create download dir: %w", err)
	}

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, report.Data, 0o644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	return path, nil
}

// baseName returns the last element of name, or "" when that element
// cannot name a file inside a directory.
func baseName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	name = filepath.Base(name)
	switch name {
	case ".", "..", string(filepath.Separator):
		return ""
	}
	return name
}

// ReportState describes the last report download.
type ReportState struct {
	CalculationID string
	Loading       bool
	Filename      string
	Path          string
	Size          int64
	Err           *calcerr.Error
}

// ReportGate downloads the PDF report of a completed calculation and
// hands it to a Saver.
type ReportGate struct {
	backend ReportBackend
	saver   Saver
	guard   Guard

	mu    sync.Mutex
	state ReportState
	gen   uint64
}

// NewReportGate creates a gate. guard may be nil.
func NewReportGate(backend ReportBackend, saver Saver, guard Guard) *ReportGate {
	return &ReportGate{backend: backend, saver: saver, guard: guard}
}

// Download fetches and saves the report for calc. Errors keep the
// backend's kind: premature, not_found, rate_limit or network.
func (g *ReportGate) Download(ctx context.Context, calc *models.ParsedElasticityCalculation) (ReportState, error) {
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
	g.state = ReportState{CalculationID: calc.ID, Loading: true}
	g.mu.Unlock()

	report, err := g.backend.DownloadReport(ctx, calc.ID)
	var path string
	if err == nil {
		path, err = g.saver.Save(report)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.gen != gen {
		return g.state, ErrInFlight
	}
	g.state.Loading = false

	if err != nil {
		e := calcerr.From(err)
		g.state.Err = e
		slog.Error("report download failed", "calculation_id", calc.ID, "kind", e.Kind, "error", err)
		return g.state, e
	}

	g.state.Filename = filepath.Base(path)
	g.state.Path = path
	g.state.Size = int64(len(report.Data))
	slog.Info("report saved",
		"calculation_id", calc.ID,
		"path", path,
		"size", humanize.Bytes(uint64(len(report.Data))),
	)
	return g.state, nil
}

// State returns the last download state.
func (g *ReportGate) State() ReportState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Reset clears the state, e.g. when a new calculation starts.
func (g *ReportGate) Reset() {
	g.mu.Lock()
	g.gen++
	g.state = ReportState{}
	g.mu.Unlock()
}
