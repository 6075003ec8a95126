// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package prefs

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/shopspring/decimal"
)

var ErrInvalidPrice = errors.New("price must be positive")

// Observation is the result of recording a market price.
type Observation struct {
	Price    decimal.Decimal
	Previous decimal.NullDecimal
	Delta    decimal.NullDecimal
}

// PriceTracker remembers the last observed USDT/BOB market price so the
// dashboard can show the change since the previous visit.
type PriceTracker struct {
	store Store

	mu     sync.Mutex
	last   decimal.NullDecimal
	closed bool
}

// LoadPriceTracker reads the last persisted price. An unparsable value is
// treated as no previous price.
func LoadPriceTracker(ctx context.Context, store Store) (*PriceTracker, error) {
	p := &PriceTracker{store: store}

	v, ok, err := store.Get(ctx, KeyLastMarketPrice)
	if err != nil {
		return nil, err
	}
	if ok {
		d, err := decimal.NewFromString(v)
		if err != nil {
			slog.Warn("ignoring stored market price", "value", v)
		} else {
			p.last = decimal.NewNullDecimal(d)
		}
	}
	return p, nil
}

// Observe records price and returns it together with the previous price
// and the difference, both unknown on the first observation.
func (p *PriceTracker) Observe(ctx context.Context, price decimal.Decimal) (Observation, error) {
	if !price.IsPositive() {
		return Observation{}, ErrInvalidPrice
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return Observation{}, ErrClosed
	}

	if err := p.store.Set(ctx, KeyLastMarketPrice, price.String()); err != nil {
		return Observation{}, err
	}

	obs := Observation{Price: price, Previous: p.last}
	if p.last.Valid {
		obs.Delta = decimal.NewNullDecimal(price.Sub(p.last.Decimal))
	}
	p.last = decimal.NewNullDecimal(price)
	return obs, nil
}

// Last returns the most recent price, if any.
func (p *PriceTracker) Last() decimal.NullDecimal {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}

// Close detaches the tracker from the store; later observations fail.
func (p *PriceTracker) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
}
