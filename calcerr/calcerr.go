// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package calcerr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Kind classifies a failure by what the user can do about it.
type Kind string

const (
	KindValidation      Kind = "validation"
	KindNetwork         Kind = "network"
	KindCalculation     Kind = "calculation"
	KindRateLimit       Kind = "rate_limit"
	KindMaterialization Kind = "materialization"
	KindNotFound        Kind = "not_found"
	KindPremature       Kind = "premature"
	KindLocked          Kind = "locked"
)

// Structured backend error codes.
const (
	CodeInsufficientVariation  = "INSUFFICIENT_VARIATION"
	CodeInsufficientData       = "INSUFFICIENT_DATA"
	CodeInvalidDateRange       = "INVALID_DATE_RANGE"
	CodeCalculationNotComplete = "CALCULATION_NOT_COMPLETE"
	CodeRateLimited            = "RATE_LIMITED"
	CodeNotFound               = "NOT_FOUND"
)

var (
	ErrLocked      = &Error{Kind: KindLocked, Message: "advanced features are locked"}
	ErrNotComplete = &Error{Kind: KindPremature, Code: CodeCalculationNotComplete, Message: "calculation is not complete"}
)

// Error is a classified lifecycle failure.
type Error struct {
	Kind       Kind
	Code       string
	Message    string
	StatusCode int
	RetryAfter time.Duration
	RequestID  string
	Err        error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Code != "" {
		return fmt.Sprintf("%s [%s]: %s", e.Kind, e.Code, msg)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches on kind so that errors.Is(err, ErrLocked) works for copies.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && (t.Code == "" || e.Code == t.Code)
}

// RetryAfterSeconds rounds the retry delay up to whole seconds.
func (e *Error) RetryAfterSeconds() int {
	if e.RetryAfter <= 0 {
		return 0
	}
	secs := int(e.RetryAfter / time.Second)
	if e.RetryAfter%time.Second != 0 {
		secs++
	}
	return secs
}

// Retryable reports whether repeating the same call may succeed.
// Rate limits are retryable but only after RetryAfter, never blindly.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindNetwork, KindMaterialization, KindRateLimit:
		return true
	default:
		return false
	}
}

// New creates an Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap classifies err under kind. An existing *Error keeps its code,
// retry hint and request id.
func Wrap(err error, kind Kind) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		out := *e
		out.Kind = kind
		return &out
	}
	return &Error{Kind: kind, Message: err.Error(), Err: err}
}

// From returns err as an *Error, classifying unknown errors as network.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{Kind: KindNetwork, Message: err.Error(), Err: err}
}

// KindOf returns the kind of err, or "" when err is nil.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	return From(err).Kind
}

func IsRateLimit(err error) bool {
	return KindOf(err) == KindRateLimit
}

// HTTPStatus maps a kind to the status the dashboard API answers with.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindRateLimit:
		return http.StatusTooManyRequests
	case KindNotFound:
		return http.StatusNotFound
	case KindPremature:
		return http.StatusConflict
	case KindLocked:
		return http.StatusForbidden
	case KindCalculation:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadGateway
	}
}

var suggestions = map[string]string{
	CodeInsufficientVariation:  "La variación de precios es muy pequeña. Pruebe un rango de fechas más amplio.",
	CodeInsufficientData:       "No hay suficientes datos en el rango. Amplíe el rango o use una ventana más corta.",
	CodeInvalidDateRange:       "Revise las fechas seleccionadas.",
	CodeRateLimited:            "Se alcanzó el límite por hora. Espere antes de intentarlo de nuevo.",
	CodeCalculationNotComplete: "Espere a que el cálculo termine.",
}

// legacyPatterns covers backends that only send free text.
// TODO: drop once every backend deployment sends error_code.
var legacyPatterns = []struct {
	substr string
	code   string
}{
	{"variation", CodeInsufficientVariation},
	{"variación", CodeInsufficientVariation},
	{"insufficient", CodeInsufficientData},
	{"not enough", CodeInsufficientData},
	{"insuficientes", CodeInsufficientData},
}

// Suggestion returns a next-step hint for a failure. Structured codes win;
// message matching is only a fallback.
func Suggestion(code, message string) string {
	if s, ok := suggestions[code]; ok {
		return s
	}
	lower := strings.ToLower(message)
	for _, p := range legacyPatterns {
		if strings.Contains(lower, p.substr) {
			return suggestions[p.code]
		}
	}
	return ""
}

// SuggestionFor is Suggestion applied to an error.
func SuggestionFor(err error) string {
	if err == nil {
		return ""
	}
	e := From(err)
	if e.Kind == KindRateLimit && e.Code == "" {
		return suggestions[CodeRateLimited]
	}
	return Suggestion(e.Code, e.Message)
}
