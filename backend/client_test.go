// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/danielhkuo/usdt-elasticity/calcerr"
	"github.com/danielhkuo/usdt-elasticity/models"
	"github.com/danielhkuo/usdt-elasticity/testutil"
)

func newTestClient(t *testing.T) (*Client, *testutil.FakeBackend) {
	t.Helper()
	fb := testutil.NewFakeBackend(t)
	return NewClient(fb.URL(), 2*time.Second), fb
}

func TestCreateCalculation(t *testing.T) {
	client, fb := newTestClient(t)

	var got models.CalculationRequest
	var requestID string
	fb.Handle("POST", "/calculations", func(w http.ResponseWriter, r *http.Request) {
		requestID = r.Header.Get("X-Request-ID")
		json.NewDecoder(r.Body).Decode(&got)
		testutil.JSON(http.StatusCreated, models.CalculationStatus{ID: "calc-1", Status: models.StatusPending})(w, r)
	})

	req := models.CalculationRequest{
		Method:     models.MethodMidpoint,
		StartDate:  "2025-01-01T00:00:00Z",
		EndDate:    "2025-01-10T23:59:59Z",
		WindowSize: models.WindowDaily,
	}
	status, err := client.CreateCalculation(context.Background(), req)
	if err != nil {
		t.Fatalf("CreateCalculation failed: %v", err)
	}
	if status.ID != "calc-1" || status.Status != models.StatusPending {
		t.Errorf("unexpected status %+v", status)
	}
	if got != req {
		t.Errorf("expected body %+v, got %+v", req, got)
	}
	if requestID == "" {
		t.Error("expected X-Request-ID header")
	}
}

func TestCreateCalculationWithoutID(t *testing.T) {
	client, fb := newTestClient(t)
	fb.Handle("POST", "/calculations", testutil.Raw(http.StatusCreated, `{"status":"PENDING"}`))

	_, err := client.CreateCalculation(context.Background(), models.CalculationRequest{})
	if calcerr.KindOf(err) != calcerr.KindNetwork {
		t.Errorf("expected network error, got %v", err)
	}
}

func TestGetCalculationStatusFillsID(t *testing.T) {
	client, fb := newTestClient(t)
	fb.Handle("GET", "/calculations/abc/status", testutil.Raw(http.StatusOK, `{"status":"PROCESSING"}`))

	status, err := client.GetCalculationStatus(context.Background(), "abc")
	if err != nil {
		t.Fatal(err)
	}
	if status.ID != "abc" || status.Status != models.StatusProcessing {
		t.Errorf("unexpected status %+v", status)
	}
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		handler    http.HandlerFunc
		wantKind   calcerr.Kind
		wantCode   string
		wantRetry  int
		wantStatus int
	}{
		{
			name:       "rate limit body",
			handler:    testutil.Raw(http.StatusTooManyRequests, `{"error":"Too Many Requests","message":"Límite alcanzado","retry_after":1800}`),
			wantKind:   calcerr.KindRateLimit,
			wantRetry:  1800,
			wantStatus: 429,
		},
		{
			name: "rate limit header",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Retry-After", "120")
				testutil.Raw(http.StatusTooManyRequests, `{"detail":"slow down"}`)(w, r)
			},
			wantKind:   calcerr.KindRateLimit,
			wantRetry:  120,
			wantStatus: 429,
		},
		{
			name:       "nested detail",
			handler:    testutil.Raw(http.StatusTooManyRequests, `{"detail":{"message":"cuota","code":"RATE_LIMITED","retry_after":60}}`),
			wantKind:   calcerr.KindRateLimit,
			wantCode:   calcerr.CodeRateLimited,
			wantRetry:  60,
			wantStatus: 429,
		},
		{
			name:       "not found",
			handler:    testutil.Raw(http.StatusNotFound, `{"detail":"Calculation not found"}`),
			wantKind:   calcerr.KindNotFound,
			wantStatus: 404,
		},
		{
			name:       "not complete",
			handler:    testutil.Raw(http.StatusConflict, `{"message":"not ready"}`),
			wantKind:   calcerr.KindPremature,
			wantStatus: 409,
		},
		{
			name:       "not complete code on 400",
			handler:    testutil.Raw(http.StatusBadRequest, `{"code":"CALCULATION_NOT_COMPLETE"}`),
			wantKind:   calcerr.KindPremature,
			wantCode:   calcerr.CodeCalculationNotComplete,
			wantStatus: 400,
		},
		{
			name:       "validation",
			handler:    testutil.Raw(http.StatusUnprocessableEntity, `{"error_code":"INVALID_DATE_RANGE","message":"bad range"}`),
			wantKind:   calcerr.KindValidation,
			wantCode:   calcerr.CodeInvalidDateRange,
			wantStatus: 422,
		},
		{
			name:       "server error",
			handler:    testutil.Raw(http.StatusInternalServerError, `oops`),
			wantKind:   calcerr.KindNetwork,
			wantStatus: 500,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, fb := newTestClient(t)
			fb.Handle("POST", "/interpretations/c1", tt.handler)

			_, err := client.GenerateInterpretation(context.Background(), "c1")
			var e *calcerr.Error
			if !errors.As(err, &e) {
				t.Fatalf("expected *calcerr.Error, got %v", err)
			}
			if e.Kind != tt.wantKind {
				t.Errorf("expected kind %s, got %s", tt.wantKind, e.Kind)
			}
			if e.Code != tt.wantCode {
				t.Errorf("expected code %q, got %q", tt.wantCode, e.Code)
			}
			if e.RetryAfterSeconds() != tt.wantRetry {
				t.Errorf("expected retry after %d, got %d", tt.wantRetry, e.RetryAfterSeconds())
			}
			if e.StatusCode != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, e.StatusCode)
			}
			if e.RequestID == "" {
				t.Error("expected request id on error")
			}
		})
	}
}

func TestTransportFailureIsNetwork(t *testing.T) {
	fb := testutil.NewFakeBackend(t)
	client := NewClient(fb.URL(), time.Second)
	fb.Server.Close()

	_, err := client.GetDataCoverage(context.Background())
	if calcerr.KindOf(err) != calcerr.KindNetwork {
		t.Errorf("expected network error, got %v", err)
	}
}

func TestDownloadReport(t *testing.T) {
	client, fb := newTestClient(t)
	pdf := []byte("%PDF-1.4 fake")

	fb.Handle("GET", "/reports/c1", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", `attachment; filename="informe.pdf"`)
		w.Write(pdf)
	})
	fb.Handle("GET", "/reports/c2", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Write(pdf)
	})

	report, err := client.DownloadReport(context.Background(), "c1")
	if err != nil {
		t.Fatal(err)
	}
	if report.Filename != "informe.pdf" {
		t.Errorf("expected filename from Content-Disposition, got %s", report.Filename)
	}
	if string(report.Data) != string(pdf) {
		t.Errorf("unexpected body %q", report.Data)
	}

	report, err = client.DownloadReport(context.Background(), "c2")
	if err != nil {
		t.Fatal(err)
	}
	if report.Filename != "reporte_elasticidad_c2.pdf" {
		t.Errorf("expected default filename, got %s", report.Filename)
	}
}

func TestParseRetryAfterHeader(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"", 0},
		{"30", 30 * time.Second},
		{"-5", 0},
		{now.Add(90 * time.Second).Format(http.TimeFormat), 90 * time.Second},
		{now.Add(-time.Minute).Format(http.TimeFormat), 0},
		{"later", 0},
	}
	for _, tt := range tests {
		if got := parseRetryAfterHeader(tt.in, now); got != tt.want {
			t.Errorf("parseRetryAfterHeader(%q): expected %v, got %v", tt.in, tt.want, got)
		}
	}
}
