// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package main provides the entry point for the USDT elasticity dashboard server.

The dashboard submits price elasticity calculations for the Bolivian USDT
P2P market to the elasticity backend, follows them until they finish, and
serves the materialized result, an AI interpretation and a PDF report.

# Starting the Server

The backend URL is required; everything else has a default:

	BACKEND_URL=http://localhost:8000/api/v1 go run .

Or with flags:

	go run . -p 3318 -b http://localhost:8000/api/v1 -t redis -d redis://localhost:6379/0

# Configuration

Settings resolve from flags, then environment (a .env file is loaded if
present), then the YAML file given with -c, then defaults. See package
cliparse for the full table.

  - BACKEND_URL (-b): elasticity backend base URL
  - DATABASE_TYPE (-t): sqlite (default), postgres or redis
  - DATABASE_URL (-d): store path or URL
  - UNLOCK_PASSPHRASE / UNLOCK_SALT: gate for interpretation and reports
  - PORT (-p): server port (default: 3318)

# Architecture

  - builder: form validation into a CalculationRequest
  - backend: REST client and error classification
  - poller: calculation lifecycle state machine
  - materializer: lenient parsing of calculation results
  - gates: interpretation and report features
  - dashboard: ties the above to a single active calculation
  - prefs: persisted preferences (sqlite, postgres or redis)
  - auth: unlock pass-phrase
  - handlers, router, middleware: HTTP API

See package documentation for each component.
*/
package main
