// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package backend is the REST client for the elasticity backend.

# Endpoints

	POST /calculations                   CreateCalculation
	GET  /calculations/{id}/status       GetCalculationStatus
	GET  /calculations/{id}              GetCalculation
	POST /interpretations/{calculationId} GenerateInterpretation
	GET  /reports/{calculationId}        DownloadReport (application/pdf)
	GET  /data-coverage                  GetDataCoverage

# Errors

Every failure is a *calcerr.Error. Transport errors and 5xx answers are
KindNetwork. Other statuses map as follows:

	429        KindRateLimit (retry_after from body, else Retry-After header)
	404        KindNotFound
	409, 425   KindPremature (also any CALCULATION_NOT_COMPLETE code)
	400, 422   KindValidation

Error bodies may be {"error", "message", "code", "retry_after"} or
FastAPI-style {"detail": ...} where detail is a string or an object.

# Request IDs

Each call sends a fresh X-Request-ID which is logged and copied into
the returned error.
*/
package backend
