// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package gates

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/danielhkuo/usdt-elasticity/backend"
	"github.com/danielhkuo/usdt-elasticity/calcerr"
	"github.com/danielhkuo/usdt-elasticity/models"
	"github.com/danielhkuo/usdt-elasticity/testutil"
)

var completed = &models.ParsedElasticityCalculation{ID: "c1", Status: models.StatusCompleted}

type lockedGuard struct{ err error }

func (g lockedGuard) Require(ctx context.Context) error { return g.err }

func setup(t *testing.T) (*backend.Client, *testutil.FakeBackend) {
	t.Helper()
	fb := testutil.NewFakeBackend(t)
	return backend.NewClient(fb.URL(), 2*time.Second), fb
}

func TestInterpretationSuccess(t *testing.T) {
	client, fb := setup(t)
	fb.Handle("POST", "/interpretations/c1", testutil.Raw(http.StatusOK,
		`{"interpretation":"La demanda es elástica","model":"claude","generated_at":"2025-02-01T10:00:00Z","cached":true}`))

	gate := NewInterpretationGate(client, nil)
	state, err := gate.Generate(context.Background(), completed)
	if err != nil {
		t.Fatal(err)
	}
	if state.Loading || state.Result == nil {
		t.Fatalf("expected finished state with result, got %+v", state)
	}
	if state.Result.Interpretation != "La demanda es elástica" || !state.Result.Cached {
		t.Errorf("unexpected result %+v", state.Result)
	}
}

func TestInterpretationRateLimitNotRetried(t *testing.T) {
	client, fb := setup(t)
	fb.Handle("POST", "/interpretations/c1", testutil.Raw(http.StatusTooManyRequests,
		`{"error":"Too Many Requests","message":"Límite por hora alcanzado","retry_after":1800}`))

	gate := NewInterpretationGate(client, nil)
	state, err := gate.Generate(context.Background(), completed)
	if !calcerr.IsRateLimit(err) {
		t.Fatalf("expected rate limit error, got %v", err)
	}
	if !state.RateLimitExceeded || state.RetryAfterSeconds != 1800 {
		t.Errorf("expected rateLimitExceeded with 1800s, got %+v", state)
	}

	time.Sleep(20 * time.Millisecond)
	if got := fb.Calls("POST", "/interpretations/c1"); got != 1 {
		t.Errorf("expected exactly one request, got %d", got)
	}
	if got := gate.State(); !got.RateLimitExceeded {
		t.Error("rate limit state should persist until the next request")
	}
}

func TestGatesRequireCompletedCalculation(t *testing.T) {
	client, fb := setup(t)
	interp := NewInterpretationGate(client, nil)
	reports := NewReportGate(client, FileSaver{Dir: t.TempDir()}, nil)

	for _, calc := range []*models.ParsedElasticityCalculation{
		nil,
		{ID: "c1", Status: models.StatusProcessing},
		{ID: "c1", Status: models.StatusFailed},
	} {
		if _, err := interp.Generate(context.Background(), calc); !errors.Is(err, calcerr.ErrNotComplete) {
			t.Errorf("interpretation: expected ErrNotComplete, got %v", err)
		}
		if _, err := reports.Download(context.Background(), calc); !errors.Is(err, calcerr.ErrNotComplete) {
			t.Errorf("report: expected ErrNotComplete, got %v", err)
		}
	}
	if fb.TotalCalls() != 0 {
		t.Errorf("expected no backend calls, got %d", fb.TotalCalls())
	}
}

func TestGatesHonorGuard(t *testing.T) {
	client, fb := setup(t)
	guard := lockedGuard{err: calcerr.ErrLocked}

	if _, err := NewInterpretationGate(client, guard).Generate(context.Background(), completed); !errors.Is(err, calcerr.ErrLocked) {
		t.Errorf("expected ErrLocked, got %v", err)
	}
	if _, err := NewReportGate(client, FileSaver{Dir: t.TempDir()}, guard).Download(context.Background(), completed); !errors.Is(err, calcerr.ErrLocked) {
		t.Errorf("expected ErrLocked, got %v", err)
	}
	if fb.TotalCalls() != 0 {
		t.Errorf("locked gates must not reach the backend, got %d calls", fb.TotalCalls())
	}
}

func TestReportDownloadSaves(t *testing.T) {
	client, fb := setup(t)
	fb.Handle("GET", "/reports/c1", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte("%PDF-1.4 report"))
	})

	dir := filepath.Join(t.TempDir(), "reports")
	gate := NewReportGate(client, FileSaver{Dir: dir}, nil)

	state, err := gate.Download(context.Background(), completed)
	if err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(dir, "reporte_elasticidad_c1.pdf")
	if state.Path != want {
		t.Errorf("expected path %s, got %s", want, state.Path)
	}
	data, err := os.ReadFile(want)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "%PDF-1.4 report" || state.Size != int64(len(data)) {
		t.Errorf("unexpected file contents %q size %d", data, state.Size)
	}
}

func TestReportErrorKinds(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		want    calcerr.Kind
	}{
		{"premature", testutil.Raw(http.StatusBadRequest, `{"code":"CALCULATION_NOT_COMPLETE","message":"still running"}`), calcerr.KindPremature},
		{"not found", testutil.Raw(http.StatusNotFound, `{"detail":"not found"}`), calcerr.KindNotFound},
		{"quota", testutil.Raw(http.StatusTooManyRequests, `{"retry_after":60}`), calcerr.KindRateLimit},
		{"generic", testutil.Raw(http.StatusInternalServerError, `{}`), calcerr.KindNetwork},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, fb := setup(t)
			fb.Handle("GET", "/reports/c1", tt.handler)

			gate := NewReportGate(client, FileSaver{Dir: t.TempDir()}, nil)
			state, err := gate.Download(context.Background(), completed)
			if calcerr.KindOf(err) != tt.want {
				t.Errorf("expected kind %s, got %v", tt.want, err)
			}
			if state.Err == nil || state.Err.Kind != tt.want {
				t.Errorf("expected state error kind %s, got %+v", tt.want, state.Err)
			}
		})
	}
}

func TestFileSaverStripsDirectories(t *testing.T) {
	dir := t.TempDir()
	path, err := FileSaver{Dir: dir}.Save(models.Report{
		CalculationID: "c9",
		Filename:      "../../etc/informe.pdf",
		Data:          []byte("x"),
	})
	if err != nil {
		t.Fatal(err)
	}
	if path != filepath.Join(dir, "informe.pdf") {
		t.Errorf("expected file inside download dir, got %s", path)
	}
}

func TestFileSaverRejectsEscapingNames(t *testing.T) {
	tests := []struct {
		name   string
		report models.Report
		want   string
	}{
		{
			name:   "id with path segments",
			report: models.Report{CalculationID: "x/../../../tmp/evil"},
			want:   "evil.pdf",
		},
		{
			name:   "dot-dot filename falls back to id",
			report: models.Report{CalculationID: "c9", Filename: ".."},
			want:   "reporte_elasticidad_c9.pdf",
		},
		{
			name:   "trailing slash filename",
			report: models.Report{CalculationID: "c9", Filename: "informes/"},
			want:   "informes",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			tt.report.Data = []byte("x")
			path, err := FileSaver{Dir: dir}.Save(tt.report)
			if err != nil {
				t.Fatal(err)
			}
			if path != filepath.Join(dir, tt.want) {
				t.Errorf("expected %s, got %s", filepath.Join(dir, tt.want), path)
			}
		})
	}

	for _, name := range []string{"", " ", ".", "..", "/", "a/.."} {
		if got := baseName(name); got != "" {
			t.Errorf("baseName(%q): expected empty, got %q", name, got)
		}
	}
}

// blockingBackend holds its first call until release is closed.
type blockingBackend struct {
	mu      sync.Mutex
	calls   int
	started chan struct{}
	release chan struct{}
}

func newBlockingBackend() *blockingBackend {
	return &blockingBackend{started: make(chan struct{}), release: make(chan struct{})}
}

func (b *blockingBackend) call() int {
	b.mu.Lock()
	b.calls++
	n := b.calls
	b.mu.Unlock()
	if n == 1 {
		close(b.started)
		<-b.release
	}
	return n
}

func (b *blockingBackend) GenerateInterpretation(ctx context.Context, id string) (models.Interpretation, error) {
	if b.call() == 1 {
		return models.Interpretation{Interpretation: "first"}, nil
	}
	return models.Interpretation{Interpretation: "second"}, nil
}

func (b *blockingBackend) DownloadReport(ctx context.Context, id string) (models.Report, error) {
	if b.call() == 1 {
		return models.Report{CalculationID: id, Filename: "first.pdf", Data: []byte("1")}, nil
	}
	return models.Report{CalculationID: id, Filename: "second.pdf", Data: []byte("22")}, nil
}

func TestInterpretationResetDropsStaleAnswer(t *testing.T) {
	b := newBlockingBackend()
	gate := NewInterpretationGate(b, nil)

	firstErr := make(chan error, 1)
	go func() {
		_, err := gate.Generate(context.Background(), completed)
		firstErr <- err
	}()
	<-b.started

	gate.Reset()
	state, err := gate.Generate(context.Background(), completed)
	if err != nil {
		t.Fatalf("expected second request to succeed, got %v", err)
	}
	if state.Result == nil || state.Result.Interpretation != "second" {
		t.Fatalf("expected second result, got %+v", state.Result)
	}

	close(b.release)
	if err := <-firstErr; !errors.Is(err, ErrInFlight) {
		t.Errorf("expected stale request to report ErrInFlight, got %v", err)
	}
	if got := gate.State(); got.Result == nil || got.Result.Interpretation != "second" {
		t.Errorf("stale answer overwrote state: %+v", got.Result)
	}
}

func TestReportResetDropsStaleDownload(t *testing.T) {
	b := newBlockingBackend()
	gate := NewReportGate(b, FileSaver{Dir: t.TempDir()}, nil)

	firstErr := make(chan error, 1)
	go func() {
		_, err := gate.Download(context.Background(), completed)
		firstErr <- err
	}()
	<-b.started

	gate.Reset()
	if _, err := gate.Download(context.Background(), completed); err != nil {
		t.Fatalf("expected second download to succeed, got %v", err)
	}

	close(b.release)
	if err := <-firstErr; !errors.Is(err, ErrInFlight) {
		t.Errorf("expected stale download to report ErrInFlight, got %v", err)
	}
	if got := gate.State(); got.Filename != "second.pdf" || got.Size != 2 {
		t.Errorf("stale download overwrote state: %+v", got)
	}
}
