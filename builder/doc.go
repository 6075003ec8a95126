// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package builder turns raw form input into a validated CalculationRequest.

	req, errs := builder.Build(input, coverage, time.Now())
	if len(errs) > 0 {
		// errs["end_date"] == "Regresión requiere al menos 14 días de datos"
	}

# Rules

Checked in order, with the first failure per field kept:

 1. both dates present
 2. both dates parse (YYYY-MM-DD or RFC 3339)
 3. neither date is after today
 4. start before end
 5. span at most 90 days
 6. span at least 14 days (regression) or 7 days (midpoint)
 7. dates inside the backend's data coverage, when coverage is known

Build is pure: it reads only its arguments and never touches the network.
Dates are emitted in UTC, start_date at 00:00:00 and end_date at 23:59:59.
*/
package builder
