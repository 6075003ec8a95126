// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Method is the elasticity estimation method.
type Method string

const (
	MethodMidpoint   Method = "midpoint"
	MethodRegression Method = "regression"
)

// WindowSize is the aggregation window applied to market snapshots.
type WindowSize string

const (
	WindowHourly WindowSize = "hourly"
	WindowDaily  WindowSize = "daily"
	WindowWeekly WindowSize = "weekly"
)

// Status is the server-reported progress of a calculation.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
)

// Terminal reports whether no further server-side progress is expected.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Classification of the elasticity magnitude
type Classification string

const (
	ClassificationElastic   Classification = "ELASTIC"
	ClassificationInelastic Classification = "INELASTIC"
	ClassificationUnitary   Classification = "UNITARY"
)

// Request types

// RawCalculationInput is what the form sends before any validation.
type RawCalculationInput struct {
	Method     string `json:"method"`
	StartDate  string `json:"start_date"`
	EndDate    string `json:"end_date"`
	WindowSize string `json:"window_size"`
}

// CalculationRequest is the validated payload for POST /calculations.
// Immutable once submitted.
type CalculationRequest struct {
	Method     Method     `json:"method"`
	StartDate  string     `json:"start_date"`
	EndDate    string     `json:"end_date"`
	WindowSize WindowSize `json:"window_size"`
}

type SetRateTypeRequest struct {
	RateType string `json:"rate_type"`
}

type ObservePriceRequest struct {
	Price   decimal.Decimal     `json:"price"`
	BCBRate decimal.NullDecimal `json:"bcb_rate"`
}

type UnlockRequest struct {
	Passphrase string `json:"passphrase"`
}

// Response types

// CalculationStatus mirrors both the submission response and
// GET /calculations/{id}/status.
type CalculationStatus struct {
	ID           string `json:"id"`
	Status       Status `json:"status"`
	ErrorMessage string `json:"error_message,omitempty"`
	ErrorCode    string `json:"error_code,omitempty"`
}

// ConfidenceIntervalPayload is the wire shape of a confidence interval.
type ConfidenceIntervalPayload struct {
	Lower json.RawMessage `json:"lower"`
	Upper json.RawMessage `json:"upper"`
}

// CalculationDetail is GET /calculations/{id} as served by the backend.
// Decimals arrive string-encoded and timestamps as ISO strings; numeric
// fields are kept raw so that null, missing, and malformed values can be
// told apart during materialization.
type CalculationDetail struct {
	ID                    string                     `json:"id"`
	Method                Method                     `json:"method"`
	Status                Status                     `json:"status"`
	WindowSize            WindowSize                 `json:"window_size"`
	StartDate             string                     `json:"start_date"`
	EndDate               string                     `json:"end_date"`
	ElasticityCoefficient json.RawMessage            `json:"elasticity_coefficient"`
	ElasticityMagnitude   json.RawMessage            `json:"elasticity_magnitude"`
	StandardError         json.RawMessage            `json:"standard_error"`
	RSquared              json.RawMessage            `json:"r_squared"`
	DataPointsUsed        json.RawMessage            `json:"data_points_used"`
	AverageDataQuality    json.RawMessage            `json:"average_data_quality"`
	ConfidenceInterval    *ConfidenceIntervalPayload `json:"confidence_interval_95"`
	IsReliable            *bool                      `json:"is_reliable"`
	ReliabilityNote       string                     `json:"reliability_note"`
	ErrorMessage          string                     `json:"error_message"`
	CreatedAt             string                     `json:"created_at"`
	CompletedAt           string                     `json:"completed_at"`
}

// Interpretation is the AI-generated reading of a calculation.
type Interpretation struct {
	Interpretation string    `json:"interpretation"`
	Model          string    `json:"model"`
	GeneratedAt    time.Time `json:"generated_at"`
	Cached         bool      `json:"cached"`
}

// DataCoverage reports which dates the backend has market snapshots for.
type DataCoverage struct {
	MinDate        string `json:"min_date"`
	MaxDate        string `json:"max_date"`
	Source         string `json:"source"`
	TotalSnapshots int64  `json:"total_snapshots"`
}

// Report is a generated PDF report.
type Report struct {
	CalculationID string
	Filename      string
	ContentType   string
	Data          []byte
}

type ValidationErrorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields"`
}

type RateTypeResponse struct {
	RateType string `json:"rate_type"`
}

type PriceObservationResponse struct {
	Price      decimal.Decimal     `json:"price"`
	Previous   decimal.NullDecimal `json:"previous"`
	Delta      decimal.NullDecimal `json:"delta"`
	PremiumPct decimal.NullDecimal `json:"premium_pct"`
	RateType   string              `json:"rate_type"`
}

type UnlockResponse struct {
	Unlocked      bool       `json:"unlocked"`
	UnlockedUntil *time.Time `json:"unlocked_until,omitempty"`
}

// CalculationStateResponse is the lifecycle view served to the UI.
type CalculationStateResponse struct {
	State          string              `json:"state"`
	CalculationID  string              `json:"calculation_id,omitempty"`
	ServerStatus   Status              `json:"server_status,omitempty"`
	Request        *CalculationRequest `json:"request,omitempty"`
	Error          *ErrorResponse      `json:"error,omitempty"`
	CanRetry       bool                `json:"can_retry"`
	StartedAt      *time.Time          `json:"started_at,omitempty"`
	FinishedAt     *time.Time          `json:"finished_at,omitempty"`
	ElapsedSeconds float64             `json:"elapsed_seconds"`
	Elapsed        string              `json:"elapsed,omitempty"`
	Slow           bool                `json:"slow"`
	Polls          int                 `json:"polls"`
}

type InterpretationResponse struct {
	CalculationID     string          `json:"calculation_id,omitempty"`
	Loading           bool            `json:"loading"`
	Interpretation    *Interpretation `json:"interpretation,omitempty"`
	RateLimitExceeded bool            `json:"rate_limit_exceeded"`
	RetryAfter        int             `json:"retry_after,omitempty"`
	Error             *ErrorResponse  `json:"error,omitempty"`
}

type ReportResponse struct {
	Filename string `json:"filename"`
	Path     string `json:"path"`
	Size     string `json:"size"`
}

// Domain types

// ConfidenceInterval is a 95% interval around the coefficient.
type ConfidenceInterval struct {
	Lower decimal.NullDecimal `json:"lower"`
	Upper decimal.NullDecimal `json:"upper"`
}

// ParsedElasticityCalculation is a display-ready calculation.
// Unknown numbers are NullDecimal with Valid=false, never zero.
type ParsedElasticityCalculation struct {
	ID                    string              `json:"id"`
	Method                Method              `json:"method"`
	Status                Status              `json:"status"`
	WindowSize            WindowSize          `json:"window_size"`
	ElasticityCoefficient decimal.NullDecimal `json:"elasticity_coefficient"`
	ElasticityMagnitude   decimal.NullDecimal `json:"elasticity_magnitude"`
	Classification        *Classification     `json:"classification,omitempty"`
	StandardError         decimal.NullDecimal `json:"standard_error"`
	RSquared              decimal.NullDecimal `json:"r_squared"`
	DataPointsUsed        decimal.NullDecimal `json:"data_points_used"`
	AverageDataQuality    decimal.NullDecimal `json:"average_data_quality"`
	ConfidenceInterval    *ConfidenceInterval `json:"confidence_interval,omitempty"`
	IsReliable            bool                `json:"is_reliable"`
	ReliabilityNote       string              `json:"reliability_note,omitempty"`
	ErrorMessage          string              `json:"error_message,omitempty"`
	CreatedAt             *time.Time          `json:"created_at"`
	CompletedAt           *time.Time          `json:"completed_at"`
	StartDate             *time.Time          `json:"start_date"`
	EndDate               *time.Time          `json:"end_date"`
}

// Error response

type ErrorResponse struct {
	Error      string `json:"error"`
	Message    string `json:"message,omitempty"`
	Code       string `json:"code,omitempty"`
	Kind       string `json:"kind,omitempty"`
	RetryAfter int    `json:"retry_after,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
}
