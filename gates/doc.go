// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package gates holds the features that only make sense once a calculation
has COMPLETED: the AI interpretation and the PDF report.

Both gates refuse calculations that are missing or not completed with
calcerr.ErrNotComplete, consult an optional Guard (the unlock gate) and
allow a single request at a time.

# Interpretation

	state, err := interp.Generate(ctx, calc)
	if state.RateLimitExceeded {
		// show "try again in state.RetryAfterSeconds"
	}

A 429 from the backend is stored, not retried.

# Report

	state, err := reports.Download(ctx, calc)

The PDF is handed to a Saver. FileSaver writes it into the download
directory as reporte_elasticidad_<id>.pdf unless the backend names it.
*/
package gates
