// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package materializer converts GET /calculations/{id} records into
// ParsedElasticityCalculation values. Unknown numbers stay unknown
// (decimal.NullDecimal with Valid false) so the UI can show "N/A"
// instead of a misleading zero.
package materializer
