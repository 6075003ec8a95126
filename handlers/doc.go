// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package handlers contains HTTP request handlers for the USDT elasticity dashboard API.

# Handler Types

Each handler is a struct holding the dependencies it needs:

  - CalculationHandler: calculation lifecycle, result and event stream
  - GateHandler: AI interpretation and PDF report
  - PreferenceHandler: rate type, market price and unlock state

Handlers are created via constructor functions:

	calcHandler := handlers.NewCalculationHandler(dash)
	prefHandler := handlers.NewPreferenceHandler(rates, prices, unlocker)

# Calculation Lifecycle

One calculation is tracked at a time. Submitting a new one replaces it.

	POST   /calculations                   → CreateCalculation (400 with field errors)
	GET    /calculations/current           → GetCurrent
	DELETE /calculations/current           → CancelCurrent (409 when nothing is active)
	POST   /calculations/current/retry     → RetryCurrent
	GET    /calculations/current/result    → GetResult (409 until COMPLETED)
	GET    /calculations/current/events    → StreamEvents (text/event-stream)
	GET    /coverage                       → GetCoverage

Submission answers 202 while the calculation is in flight, 200 once it has
completed, and the status of the failure kind when it failed.

# Gated Features

	POST /calculations/current/interpretation → Interpret
	GET  /calculations/current/interpretation → GetInterpretation
	POST /calculations/current/report         → DownloadReport

Both require a COMPLETED calculation and, when a passphrase is configured,
an unlocked dashboard (403 otherwise). A rate-limited interpretation answers
429 with Retry-After and is never retried automatically.

# Preferences

	GET|PUT       /preferences/rate-type
	POST          /market/price
	GET|POST|DELETE /unlock
*/
package handlers
