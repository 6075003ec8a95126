// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package models defines wire and domain types shared by the lifecycle client
and the dashboard API.

# Backend Wire Types

Shapes exchanged with the elasticity backend:

  - CalculationRequest: method, start_date, end_date, window_size
  - CalculationStatus: id, status, error_message
  - CalculationDetail: full result with string-encoded decimals
  - Interpretation: interpretation, model, generated_at, cached
  - DataCoverage: min_date, max_date, source, total_snapshots
  - ErrorResponse: error, message, code, retry_after

# Domain Types

  - ParsedElasticityCalculation: display-ready result, nullable numbers
  - ConfidenceInterval: lower/upper bounds
  - Report: downloaded PDF bytes

Nullable numbers use decimal.NullDecimal so that "unknown" never collapses
into zero.

# Constants

Methods:

	MethodMidpoint   = "midpoint"
	MethodRegression = "regression"

Window sizes:

	WindowHourly = "hourly"
	WindowDaily  = "daily"
	WindowWeekly = "weekly"

Statuses:

	StatusPending    = "PENDING"
	StatusProcessing = "PROCESSING"
	StatusCompleted  = "COMPLETED"
	StatusFailed     = "FAILED"
*/
package models
