// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package prefs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/shopspring/decimal"
)

// RateType selects which Banco Central de Bolivia rate premiums are
// measured against.
type RateType string

const (
	RateOficial     RateType = "oficial"
	RateReferencial RateType = "referencial"

	DefaultRateType = RateOficial
)

var (
	ErrInvalidRateType = errors.New("invalid rate type")
	ErrInvalidRate     = errors.New("bcb rate must be positive")
)

var hundred = decimal.NewFromInt(100)

// ParseRateType validates s.
func ParseRateType(s string) (RateType, error) {
	switch rt := RateType(s); rt {
	case RateOficial, RateReferencial:
		return rt, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidRateType, s)
	}
}

// RateTypeContext holds the selected rate type, loaded once from the
// store and written through on every change.
type RateTypeContext struct {
	store Store

	mu       sync.RWMutex
	rateType RateType
	closed   bool
}

// LoadRateTypeContext reads the persisted choice. Missing or unknown
// values fall back to DefaultRateType.
func LoadRateTypeContext(ctx context.Context, store Store) (*RateTypeContext, error) {
	c := &RateTypeContext{store: store, rateType: DefaultRateType}

	v, ok, err := store.Get(ctx, KeyRateType)
	if err != nil {
		return nil, err
	}
	if ok {
		rt, err := ParseRateType(v)
		if err != nil {
			slog.Warn("ignoring stored rate type", "value", v)
		} else {
			c.rateType = rt
		}
	}
	return c, nil
}

func (c *RateTypeContext) RateType() RateType {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.rateType
}

// SetRateType persists rt and makes it current.
func (c *RateTypeContext) SetRateType(ctx context.Context, rt RateType) error {
	if _, err := ParseRateType(string(rt)); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if err := c.store.Set(ctx, KeyRateType, string(rt)); err != nil {
		return err
	}
	c.rateType = rt
	return nil
}

// Close detaches the context from the store; later writes fail.
func (c *RateTypeContext) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

// Premium is how far the market price sits above the BCB rate, in
// percent, rounded to two decimals.
func Premium(market, bcbRate decimal.Decimal) (decimal.Decimal, error) {
	if !bcbRate.IsPositive() {
		return decimal.Decimal{}, ErrInvalidRate
	}
	return market.Sub(bcbRate).Div(bcbRate).Mul(hundred).Round(2), nil
}
