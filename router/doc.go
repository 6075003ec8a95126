// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package router defines HTTP routes for the USDT elasticity dashboard API.

# Route Registration

NewRouter creates a configured http.ServeMux with all endpoints:

	mux := router.NewRouter(dash, rates, prices, unlocker)

# Endpoints

Health and data coverage:

	GET /health
	GET /coverage

Calculation lifecycle:

	POST   /calculations                - Validate and submit
	GET    /calculations/current        - Current state
	DELETE /calculations/current        - Cancel
	POST   /calculations/current/retry  - Resubmit the last request
	GET    /calculations/current/result - Materialized result
	GET    /calculations/current/events - Server-sent state events

Gated features:

	POST /calculations/current/interpretation - Request AI interpretation
	GET  /calculations/current/interpretation - Interpretation panel state
	POST /calculations/current/report         - Download the PDF report

Preferences and unlock:

	GET  /preferences/rate-type
	PUT  /preferences/rate-type
	POST /market/price
	GET  /unlock
	POST /unlock
	DELETE /unlock

Every route except /health and / is wrapped in middleware.WithLogging.
*/
package router
