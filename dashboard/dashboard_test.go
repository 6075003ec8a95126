// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package dashboard

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/danielhkuo/usdt-elasticity/backend"
	"github.com/danielhkuo/usdt-elasticity/builder"
	"github.com/danielhkuo/usdt-elasticity/calcerr"
	"github.com/danielhkuo/usdt-elasticity/gates"
	"github.com/danielhkuo/usdt-elasticity/models"
	"github.com/danielhkuo/usdt-elasticity/poller"
	"github.com/danielhkuo/usdt-elasticity/testutil"
)

var fixedNow = time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)

const detailBody = `{
	"id": "abc",
	"method": "midpoint",
	"status": "COMPLETED",
	"window_size": "daily",
	"elasticity_coefficient": "-0.85",
	"r_squared": "0.71",
	"data_points_used": "10",
	"is_reliable": true
}`

var scenarioA = models.RawCalculationInput{
	Method:     "midpoint",
	StartDate:  "2025-01-01",
	EndDate:    "2025-01-10",
	WindowSize: "daily",
}

func newTestDashboard(t *testing.T) (*Dashboard, *testutil.FakeBackend) {
	t.Helper()
	fb := testutil.NewFakeBackend(t)
	fb.Handle("GET", "/data-coverage", testutil.Raw(http.StatusOK,
		`{"min_date":"2024-06-01","max_date":"2025-03-14","source":"binance_p2p","total_snapshots":12000}`))

	d := New(backend.NewClient(fb.URL(), 2*time.Second), Options{
		Poll:  poller.Options{Interval: 2 * time.Millisecond},
		Saver: gates.FileSaver{Dir: t.TempDir()},
		Now:   func() time.Time { return fixedNow },
	})
	t.Cleanup(d.Close)
	return d, fb
}

func TestSubmitScenarioA(t *testing.T) {
	d, fb := newTestDashboard(t)
	fb.Handle("POST", "/calculations", testutil.Raw(http.StatusCreated, `{"id":"abc","status":"PENDING"}`))
	fb.Handle("GET", "/calculations/abc/status", testutil.Raw(http.StatusOK, `{"id":"abc","status":"PROCESSING"}`))

	view, errs := d.Submit(context.Background(), scenarioA)
	if errs != nil {
		t.Fatalf("expected valid request, got %v", errs)
	}
	if view.State != poller.StatePolling || view.CalculationID != "abc" {
		t.Errorf("expected POLLING abc, got %s %s", view.State, view.CalculationID)
	}
	if view.Request.EndDate != "2025-01-10T23:59:59Z" {
		t.Errorf("unexpected normalized request %+v", view.Request)
	}
}

func TestSubmitScenarioBMakesNoNetworkCall(t *testing.T) {
	d, fb := newTestDashboard(t)

	_, errs := d.Submit(context.Background(), models.RawCalculationInput{
		Method:    "regression",
		StartDate: "2025-01-01",
		EndDate:   "2025-01-05",
	})
	if errs[builder.FieldEndDate] != "Regresión requiere al menos 14 días de datos" {
		t.Errorf("unexpected errors %v", errs)
	}
	if fb.TotalCalls() != 0 {
		t.Errorf("expected no network calls, got %d", fb.TotalCalls())
	}
}

func TestSubmitChecksCoverage(t *testing.T) {
	d, fb := newTestDashboard(t)

	_, errs := d.Submit(context.Background(), models.RawCalculationInput{
		Method:    "midpoint",
		StartDate: "2024-05-01",
		EndDate:   "2024-06-20",
	})
	if errs[builder.FieldStartDate] != "Datos disponibles desde 2024-06-01" {
		t.Errorf("expected coverage error, got %v", errs)
	}
	if fb.Calls("POST", "/calculations") != 0 {
		t.Error("invalid request must not be submitted")
	}
}

func TestSubmitWithoutCoverage(t *testing.T) {
	d, fb := newTestDashboard(t)
	fb.Handle("GET", "/data-coverage", testutil.Raw(http.StatusInternalServerError, `{}`))
	fb.Handle("POST", "/calculations", testutil.Raw(http.StatusCreated, `{"id":"abc","status":"PENDING"}`))
	fb.Handle("GET", "/calculations/abc/status", testutil.Raw(http.StatusOK, `{"id":"abc","status":"PROCESSING"}`))

	if _, errs := d.Submit(context.Background(), scenarioA); errs != nil {
		t.Fatalf("coverage failure should not block submission, got %v", errs)
	}
}

func TestCompletedCalculationIsMaterialized(t *testing.T) {
	d, fb := newTestDashboard(t)
	fb.Handle("POST", "/calculations", testutil.Raw(http.StatusCreated, `{"id":"abc","status":"PENDING"}`))
	fb.Handle("GET", "/calculations/abc/status", testutil.Sequence(
		testutil.Raw(http.StatusOK, `{"id":"abc","status":"PROCESSING"}`),
		testutil.Raw(http.StatusOK, `{"id":"abc","status":"COMPLETED"}`),
	))
	fb.Handle("GET", "/calculations/abc", testutil.Raw(http.StatusOK, detailBody))

	d.Submit(context.Background(), scenarioA)
	testutil.Eventually(t, 2*time.Second, func() bool {
		d.mu.Lock()
		defer d.mu.Unlock()
		return d.result != nil
	}, "background materialization")

	calc, err := d.Result(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if calc.Classification == nil || *calc.Classification != models.ClassificationInelastic {
		t.Errorf("expected INELASTIC, got %v", calc.Classification)
	}
	if calc.StandardError.Valid {
		t.Error("missing standard_error must be unknown")
	}

	// Cached after the first materialization.
	d.Result(context.Background())
	if got := fb.Calls("GET", "/calculations/abc"); got != 1 {
		t.Errorf("expected one detail fetch, got %d", got)
	}
}

func TestResultBeforeCompletion(t *testing.T) {
	d, _ := newTestDashboard(t)
	if _, err := d.Result(context.Background()); !errors.Is(err, calcerr.ErrNotComplete) {
		t.Errorf("expected ErrNotComplete, got %v", err)
	}
	if _, err := d.Interpret(context.Background()); !errors.Is(err, calcerr.ErrNotComplete) {
		t.Errorf("expected ErrNotComplete, got %v", err)
	}
	if _, err := d.DownloadReport(context.Background()); !errors.Is(err, calcerr.ErrNotComplete) {
		t.Errorf("expected ErrNotComplete, got %v", err)
	}
}

func TestResultRefetchesAfterFailure(t *testing.T) {
	d, fb := newTestDashboard(t)
	fb.Handle("POST", "/calculations", testutil.Raw(http.StatusCreated, `{"id":"abc","status":"COMPLETED"}`))
	fb.Handle("GET", "/calculations/abc", testutil.Sequence(
		testutil.Raw(http.StatusInternalServerError, `{}`),
		testutil.Raw(http.StatusOK, detailBody),
	))

	d.Submit(context.Background(), scenarioA)
	var calc *models.ParsedElasticityCalculation
	testutil.Eventually(t, 2*time.Second, func() bool {
		var err error
		calc, err = d.Result(context.Background())
		return err == nil
	}, "re-fetch after failed materialization")

	if calc.ID != "abc" {
		t.Errorf("unexpected calc %+v", calc)
	}
	if got := fb.Calls("GET", "/calculations/abc"); got < 2 {
		t.Errorf("expected a second fetch, got %d", got)
	}
}

func TestScenarioCAndRetry(t *testing.T) {
	d, fb := newTestDashboard(t)
	fb.Handle("POST", "/calculations", testutil.Sequence(
		testutil.Raw(http.StatusCreated, `{"id":"abc","status":"PENDING"}`),
		testutil.Raw(http.StatusCreated, `{"id":"def","status":"PENDING"}`),
	))
	fb.Handle("GET", "/calculations/abc/status", testutil.Raw(http.StatusOK,
		`{"id":"abc","status":"FAILED","error_message":"Price variation too small"}`))
	fb.Handle("GET", "/calculations/def/status", testutil.Raw(http.StatusOK, `{"id":"def","status":"PROCESSING"}`))

	if _, err := d.Retry(context.Background()); !errors.Is(err, ErrNothingToRetry) {
		t.Errorf("expected ErrNothingToRetry, got %v", err)
	}

	d.Submit(context.Background(), scenarioA)
	testutil.Eventually(t, 2*time.Second, func() bool {
		return d.Current().State == poller.StateFailed
	}, "calculation failure")

	view := d.Current()
	if view.Err == nil || view.Err.Message != "Price variation too small" || view.Err.Kind != calcerr.KindCalculation {
		t.Fatalf("unexpected error %+v", view.Err)
	}

	view, err := d.Retry(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if view.CalculationID != "def" || view.State != poller.StatePolling {
		t.Errorf("expected retry to poll def, got %s %s", view.CalculationID, view.State)
	}
}

func TestCancel(t *testing.T) {
	d, fb := newTestDashboard(t)
	fb.Handle("POST", "/calculations", testutil.Raw(http.StatusCreated, `{"id":"abc","status":"PENDING"}`))
	fb.Handle("GET", "/calculations/abc/status", testutil.Raw(http.StatusOK, `{"id":"abc","status":"PROCESSING"}`))

	d.Submit(context.Background(), scenarioA)
	if !d.Cancel() {
		t.Fatal("expected cancel")
	}
	if d.Cancel() {
		t.Error("second cancel should be a no-op")
	}
	if d.Current().State != poller.StateCancelled {
		t.Errorf("expected CANCELLED, got %s", d.Current().State)
	}
}

func TestInterpretAndReport(t *testing.T) {
	d, fb := newTestDashboard(t)
	fb.Handle("POST", "/calculations", testutil.Raw(http.StatusCreated, `{"id":"abc","status":"COMPLETED"}`))
	fb.Handle("GET", "/calculations/abc", testutil.Raw(http.StatusOK, detailBody))
	fb.Handle("POST", "/interpretations/abc", testutil.Raw(http.StatusTooManyRequests, `{"retry_after":1800}`))
	fb.Handle("GET", "/reports/abc", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte("%PDF"))
	})

	d.Submit(context.Background(), scenarioA)

	state, err := d.Interpret(context.Background())
	if !calcerr.IsRateLimit(err) || state.RetryAfterSeconds != 1800 {
		t.Errorf("expected rate limit with 1800s, got %+v %v", state, err)
	}

	report, err := d.DownloadReport(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if report.Filename != "reporte_elasticidad_abc.pdf" || report.Size != 4 {
		t.Errorf("unexpected report state %+v", report)
	}
}

func TestHumanizeElapsed(t *testing.T) {
	if got := humanizeElapsed(30 * time.Second); got != "30 seconds" {
		t.Errorf("expected '30 seconds', got %q", got)
	}
}
