// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package prefs

import (
	"context"
	"errors"

	"github.com/danielhkuo/usdt-elasticity/db"
)

// Preference keys
const (
	KeyRateType        = "bcb_rate_type"
	KeyLastMarketPrice = "last_market_price"
	KeyUnlockedUntil   = "ai_unlocked_until"
)

var ErrClosed = errors.New("preference store closed")

// Store is a client-local key-value cache. Writes are last-write-wins;
// nothing stored here is authoritative.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Open connects to the store selected by dbType.
func Open(ctx context.Context, dbType, url string) (Store, error) {
	if dbType == db.TypeRedis {
		return OpenRedis(ctx, url)
	}
	return OpenSQL(ctx, dbType, url)
}
