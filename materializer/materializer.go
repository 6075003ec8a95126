// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package materializer

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/danielhkuo/usdt-elasticity/calcerr"
	"github.com/danielhkuo/usdt-elasticity/models"
)

// Fetcher loads the full calculation record.
type Fetcher interface {
	GetCalculation(ctx context.Context, id string) (models.CalculationDetail, error)
}

// DefaultFetchTimeout bounds a shared detail fetch.
const DefaultFetchTimeout = 30 * time.Second

// Materializer turns backend calculation records into display-ready values.
type Materializer struct {
	fetcher Fetcher
	group   singleflight.Group
	timeout time.Duration
}

func New(fetcher Fetcher) *Materializer {
	return &Materializer{fetcher: fetcher, timeout: DefaultFetchTimeout}
}

// Materialize fetches and parses calculation id. Concurrent calls for the
// same id share one request, which is not tied to any single caller: a
// caller whose ctx ends stops waiting without failing the others.
// Fetch failures are KindMaterialization.
func (m *Materializer) Materialize(ctx context.Context, id string) (*models.ParsedElasticityCalculation, error) {
	ch := m.group.DoChan(id, func() (interface{}, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.timeout)
		defer cancel()

		detail, err := m.fetcher.GetCalculation(fetchCtx, id)
		if err != nil {
			return nil, err
		}
		if detail.ID == "" {
			detail.ID = id
		}
		return Parse(detail), nil
	})

	select {
	case <-ctx.Done():
		return nil, calcerr.Wrap(ctx.Err(), calcerr.KindMaterialization)
	case res := <-ch:
		if res.Err != nil {
			slog.Warn("materialization failed", "calculation_id", id, "error", res.Err)
			return nil, calcerr.Wrap(res.Err, calcerr.KindMaterialization)
		}
		if res.Shared {
			slog.Debug("materialization shared", "calculation_id", id)
		}
		return res.Val.(*models.ParsedElasticityCalculation), nil
	}
}

// Parse converts a raw record. It never fails: any numeric field that is
// missing, null or malformed is left unknown rather than zero.
func Parse(d models.CalculationDetail) *models.ParsedElasticityCalculation {
	p := &models.ParsedElasticityCalculation{
		ID:                    d.ID,
		Method:                d.Method,
		Status:                d.Status,
		WindowSize:            d.WindowSize,
		ElasticityCoefficient: ParseDecimal(d.ElasticityCoefficient),
		ElasticityMagnitude:   ParseDecimal(d.ElasticityMagnitude),
		StandardError:         ParseDecimal(d.StandardError),
		RSquared:              ParseDecimal(d.RSquared),
		DataPointsUsed:        ParseDecimal(d.DataPointsUsed),
		AverageDataQuality:    ParseDecimal(d.AverageDataQuality),
		ReliabilityNote:       d.ReliabilityNote,
		ErrorMessage:          d.ErrorMessage,
		CreatedAt:             ParseTime(d.CreatedAt),
		CompletedAt:           ParseTime(d.CompletedAt),
		StartDate:             ParseTime(d.StartDate),
		EndDate:               ParseTime(d.EndDate),
	}
	if d.IsReliable != nil {
		p.IsReliable = *d.IsReliable
	}

	if d.ConfidenceInterval != nil {
		ci := models.ConfidenceInterval{
			Lower: ParseDecimal(d.ConfidenceInterval.Lower),
			Upper: ParseDecimal(d.ConfidenceInterval.Upper),
		}
		if ci.Lower.Valid || ci.Upper.Valid {
			p.ConfidenceInterval = &ci
		}
	}

	if p.ElasticityCoefficient.Valid {
		if !p.ElasticityMagnitude.Valid {
			p.ElasticityMagnitude = decimal.NewNullDecimal(p.ElasticityCoefficient.Decimal.Abs())
		}
		c := Classify(p.ElasticityMagnitude.Decimal)
		p.Classification = &c
	}

	return p
}

var one = decimal.NewFromInt(1)

// Classify buckets an elasticity magnitude. Magnitudes that round to 1.00
// are unitary.
func Classify(magnitude decimal.Decimal) models.Classification {
	switch magnitude.Abs().Round(2).Cmp(one) {
	case 0:
		return models.ClassificationUnitary
	case 1:
		return models.ClassificationElastic
	default:
		return models.ClassificationInelastic
	}
}

// ParseDecimal accepts a JSON number or a numeric string.
func ParseDecimal(raw json.RawMessage) decimal.NullDecimal {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return decimal.NullDecimal{}
	}

	s := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &s); err != nil {
			return decimal.NullDecimal{}
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return decimal.NullDecimal{}
		}
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(d)
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// ParseTime accepts ISO-8601 timestamps with or without fraction and zone.
// Zone-less values are read as UTC. Unparsable input yields nil.
func ParseTime(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}
