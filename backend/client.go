// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/danielhkuo/usdt-elasticity/calcerr"
	"github.com/danielhkuo/usdt-elasticity/models"
)

const (
	// DefaultTimeout bounds a single backend call.
	DefaultTimeout = 30 * time.Second

	// maxErrorBody caps how much of an error response is read.
	maxErrorBody = 64 << 10

	headerRequestID = "X-Request-ID"
)

// Client talks to the elasticity backend REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for baseURL. A zero timeout uses DefaultTimeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// NewClientWithHTTP creates a client using a caller-provided http.Client.
func NewClientWithHTTP(baseURL string, hc *http.Client) *Client {
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), httpClient: hc}
}

// CreateCalculation handles POST /calculations
func (c *Client) CreateCalculation(ctx context.Context, req models.CalculationRequest) (models.CalculationStatus, error) {
	var out models.CalculationStatus
	if err := c.doJSON(ctx, http.MethodPost, "/calculations", req, &out); err != nil {
		return models.CalculationStatus{}, err
	}
	if out.ID == "" {
		return models.CalculationStatus{}, calcerr.New(calcerr.KindNetwork, "backend returned a calculation without id")
	}
	return out, nil
}

// GetCalculationStatus handles GET /calculations/{id}/status
func (c *Client) GetCalculationStatus(ctx context.Context, id string) (models.CalculationStatus, error) {
	var out models.CalculationStatus
	if err := c.doJSON(ctx, http.MethodGet, "/calculations/"+url.PathEscape(id)+"/status", nil, &out); err != nil {
		return models.CalculationStatus{}, err
	}
	if out.ID == "" {
		out.ID = id
	}
	return out, nil
}

// GetCalculation handles GET /calculations/{id}
func (c *Client) GetCalculation(ctx context.Context, id string) (models.CalculationDetail, error) {
	var out models.CalculationDetail
	if err := c.doJSON(ctx, http.MethodGet, "/calculations/"+url.PathEscape(id), nil, &out); err != nil {
		return models.CalculationDetail{}, err
	}
	return out, nil
}

// GenerateInterpretation handles POST /interpretations/{calculationId}
func (c *Client) GenerateInterpretation(ctx context.Context, calculationID string) (models.Interpretation, error) {
	var out models.Interpretation
	if err := c.doJSON(ctx, http.MethodPost, "/interpretations/"+url.PathEscape(calculationID), nil, &out); err != nil {
		return models.Interpretation{}, err
	}
	return out, nil
}

// GetDataCoverage handles GET /data-coverage
func (c *Client) GetDataCoverage(ctx context.Context) (models.DataCoverage, error) {
	var out models.DataCoverage
	if err := c.doJSON(ctx, http.MethodGet, "/data-coverage", nil, &out); err != nil {
		return models.DataCoverage{}, err
	}
	return out, nil
}

// DownloadReport handles GET /reports/{calculationId}
func (c *Client) DownloadReport(ctx context.Context, calculationID string) (models.Report, error) {
	resp, requestID, err := c.do(ctx, http.MethodGet, "/reports/"+url.PathEscape(calculationID), nil)
	if err != nil {
		return models.Report{}, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.Report{}, &calcerr.Error{Kind: calcerr.KindNetwork, Message: "read report body", RequestID: requestID, Err: err}
	}

	return models.Report{
		CalculationID: calculationID,
		Filename:      reportFilename(resp.Header.Get("Content-Disposition"), calculationID),
		ContentType:   resp.Header.Get("Content-Type"),
		Data:          data,
	}, nil
}

// doJSON sends body as JSON (when non-nil) and decodes a 2xx response into out.
func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	resp, requestID, err := c.do(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &calcerr.Error{
			Kind:       calcerr.KindNetwork,
			Message:    fmt.Sprintf("decode %s %s response", method, path),
			StatusCode: resp.StatusCode,
			RequestID:  requestID,
			Err:        err,
		}
	}
	return nil
}

// do performs the request. Non-2xx responses are converted to *calcerr.Error
// and their body is closed; on success the caller owns resp.Body.
func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, string, error) {
	requestID := uuid.NewString()

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, requestID, fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, requestID, fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(headerRequestID, requestID)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		slog.Warn("backend request failed", "method", method, "path", path, "request_id", requestID, "error", err)
		return nil, requestID, &calcerr.Error{
			Kind:      calcerr.KindNetwork,
			Message:   fmt.Sprintf("%s %s: %v", method, path, err),
			RequestID: requestID,
			Err:       err,
		}
	}

	slog.Debug("backend request",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"request_id", requestID,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, requestID, nil
	}

	defer resp.Body.Close()
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return nil, requestID, errorFromResponse(resp, raw, requestID)
}

// errorPayload accepts both {"message", "code"} bodies and {"detail": ...}
// bodies, where detail may be a string or an object.
type errorPayload struct {
	Error      string          `json:"error"`
	Message    string          `json:"message"`
	Code       string          `json:"code"`
	ErrorCode  string          `json:"error_code"`
	RetryAfter *float64        `json:"retry_after"`
	Detail     json.RawMessage `json:"detail"`
}

func errorFromResponse(resp *http.Response, raw []byte, requestID string) *calcerr.Error {
	var p errorPayload
	_ = json.Unmarshal(raw, &p)

	if len(p.Detail) > 0 {
		var s string
		if err := json.Unmarshal(p.Detail, &s); err == nil {
			if p.Message == "" {
				p.Message = s
			}
		} else {
			var nested errorPayload
			if err := json.Unmarshal(p.Detail, &nested); err == nil {
				if p.Message == "" {
					p.Message = nested.Message
				}
				if p.Code == "" {
					p.Code = firstNonEmpty(nested.Code, nested.ErrorCode)
				}
				if p.RetryAfter == nil {
					p.RetryAfter = nested.RetryAfter
				}
			}
		}
	}

	code := firstNonEmpty(p.Code, p.ErrorCode)
	msg := firstNonEmpty(p.Message, p.Error, http.StatusText(resp.StatusCode))

	e := &calcerr.Error{
		Kind:       kindForStatus(resp.StatusCode, code),
		Code:       code,
		Message:    msg,
		StatusCode: resp.StatusCode,
		RequestID:  requestID,
	}
	if e.Kind == calcerr.KindRateLimit {
		if p.RetryAfter != nil && *p.RetryAfter > 0 {
			e.RetryAfter = time.Duration(*p.RetryAfter * float64(time.Second))
		} else {
			e.RetryAfter = parseRetryAfterHeader(resp.Header.Get("Retry-After"), time.Now())
		}
	}
	return e
}

func kindForStatus(status int, code string) calcerr.Kind {
	switch {
	case code == calcerr.CodeCalculationNotComplete:
		return calcerr.KindPremature
	case status == http.StatusTooManyRequests:
		return calcerr.KindRateLimit
	case status == http.StatusNotFound:
		return calcerr.KindNotFound
	case status == http.StatusConflict || status == http.StatusTooEarly:
		return calcerr.KindPremature
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return calcerr.KindValidation
	default:
		return calcerr.KindNetwork
	}
}

// parseRetryAfterHeader accepts delay-seconds or an HTTP date.
func parseRetryAfterHeader(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil && at.After(now) {
		return at.Sub(now)
	}
	return 0
}

func reportFilename(disposition, calculationID string) string {
	if disposition != "" {
		if _, params, err := mime.ParseMediaType(disposition); err == nil {
			if name := strings.TrimSpace(params["filename"]); name != "" {
				return name
			}
		}
	}
	return "reporte_elasticidad_" + calculationID + ".pdf"
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
