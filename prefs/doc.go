// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package prefs persists client-local preferences.

# Stores

Store is a small key-value interface with three implementations picked by
DATABASE_TYPE:

	sqlite    SQLStore over modernc.org/sqlite (default, WAL mode)
	postgres  SQLStore over lib/pq
	redis     RedisStore over go-redis, keys under "usdt-elasticity:pref:"

	store, err := prefs.Open(ctx, cfg.DatabaseType, cfg.DatabaseURL)
	defer store.Close()

Writes are last-write-wins with no locking across processes. Everything
stored here is a cache of user choices and safe to lose.

# Keys

	bcb_rate_type       oficial | referencial
	last_market_price   decimal string
	ai_unlocked_until   RFC 3339 expiry written by the unlock gate

# Contexts

RateTypeContext and PriceTracker load their value once, write through on
change and are closed with the server:

	rates, err := prefs.LoadRateTypeContext(ctx, store)
	premium, err := prefs.Premium(marketPrice, bcbRate)

	prices, err := prefs.LoadPriceTracker(ctx, store)
	obs, err := prices.Observe(ctx, price)
*/
package prefs
