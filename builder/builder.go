// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package builder

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/danielhkuo/usdt-elasticity/models"
)

const (
	MaxSpanDays       = 90
	MinDaysRegression = 14
	MinDaysMidpoint   = 7
)

// Field names used as FieldErrors keys
const (
	FieldStartDate  = "start_date"
	FieldEndDate    = "end_date"
	FieldMethod     = "method"
	FieldWindowSize = "window_size"
)

const dateLayout = "2006-01-02"

// FieldErrors maps a request field to a human-readable message.
type FieldErrors map[string]string

// Error lets FieldErrors travel as an error when the caller wants one.
func (fe FieldErrors) Error() string {
	keys := make([]string, 0, len(fe))
	for k := range fe {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+fe[k])
	}
	return strings.Join(parts, "; ")
}

// set keeps the first error reported for a field.
func (fe FieldErrors) set(field, msg string) {
	if _, exists := fe[field]; !exists {
		fe[field] = msg
	}
}

// MinimumDays returns the shortest span a method accepts.
func MinimumDays(m models.Method) int {
	if m == models.MethodRegression {
		return MinDaysRegression
	}
	return MinDaysMidpoint
}

// Build validates raw form input and normalizes it into a CalculationRequest.
// coverage may be nil when the backend's data range is unknown.
// On failure the returned FieldErrors is non-empty and the request is zero.
func Build(in models.RawCalculationInput, coverage *models.DataCoverage, now time.Time) (models.CalculationRequest, FieldErrors) {
	errs := FieldErrors{}

	method := models.Method(strings.TrimSpace(in.Method))
	switch method {
	case models.MethodMidpoint, models.MethodRegression:
	default:
		errs.set(FieldMethod, "Método inválido")
	}

	window := models.WindowSize(strings.TrimSpace(in.WindowSize))
	switch window {
	case "":
		window = models.WindowDaily
	case models.WindowHourly, models.WindowDaily, models.WindowWeekly:
	default:
		errs.set(FieldWindowSize, "Ventana de agregación inválida")
	}

	today := truncateDay(now.UTC())
	start, startOK := checkDate(errs, FieldStartDate, in.StartDate, "La fecha de inicio es requerida", today)
	end, endOK := checkDate(errs, FieldEndDate, in.EndDate, "La fecha de fin es requerida", today)

	if startOK && endOK {
		span := spanDays(start, end)
		switch {
		case !start.Before(end):
			errs.set(FieldEndDate, "La fecha de fin debe ser posterior a la fecha de inicio")
		case span > MaxSpanDays:
			errs.set(FieldEndDate, fmt.Sprintf("El rango máximo es de %d días", MaxSpanDays))
		case method == models.MethodRegression && span < MinDaysRegression:
			errs.set(FieldEndDate, fmt.Sprintf("Regresión requiere al menos %d días de datos", MinDaysRegression))
		case method == models.MethodMidpoint && span < MinDaysMidpoint:
			errs.set(FieldEndDate, fmt.Sprintf("Punto medio requiere al menos %d días de datos", MinDaysMidpoint))
		}
	}

	if minDate, maxDate, ok := coverageBounds(coverage); ok {
		if startOK && start.Before(minDate) {
			errs.set(FieldStartDate, "Datos disponibles desde "+minDate.Format(dateLayout))
		}
		if endOK && end.After(maxDate) {
			errs.set(FieldEndDate, "Datos disponibles hasta "+maxDate.Format(dateLayout))
		}
	}

	if len(errs) > 0 {
		return models.CalculationRequest{}, errs
	}

	return models.CalculationRequest{
		Method:     method,
		StartDate:  start.Format(time.RFC3339),
		EndDate:    endOfDay(end).Format(time.RFC3339),
		WindowSize: window,
	}, nil
}

// checkDate applies rules 1-3 to one field.
func checkDate(errs FieldErrors, field, raw, requiredMsg string, today time.Time) (time.Time, bool) {
	if strings.TrimSpace(raw) == "" {
		errs.set(field, requiredMsg)
		return time.Time{}, false
	}
	d, err := ParseDate(raw)
	if err != nil {
		errs.set(field, "Fecha inválida")
		return time.Time{}, false
	}
	if d.After(today) {
		errs.set(field, "La fecha no puede estar en el futuro")
		return time.Time{}, false
	}
	return d, true
}

// ParseDate accepts YYYY-MM-DD or RFC 3339 and returns UTC midnight of that day.
func ParseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(dateLayout, raw); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", raw, err)
	}
	return truncateDay(t.UTC()), nil
}

func coverageBounds(c *models.DataCoverage) (time.Time, time.Time, bool) {
	if c == nil {
		return time.Time{}, time.Time{}, false
	}
	minDate, err := ParseDate(c.MinDate)
	if err != nil {
		return time.Time{}, time.Time{}, false
	}
	maxDate, err := ParseDate(c.MaxDate)
	if err != nil {
		return time.Time{}, time.Time{}, false
	}
	if maxDate.Before(minDate) {
		return time.Time{}, time.Time{}, false
	}
	return minDate, maxDate, true
}

func spanDays(start, end time.Time) int {
	return int(end.Sub(start).Hours() / 24)
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func endOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 0, time.UTC)
}
