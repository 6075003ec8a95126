// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package middleware provides HTTP middleware and helper functions.

# Request Logging

Wrap handlers with request logging:

	mux.HandleFunc("GET /coverage", middleware.WithLogging(handler))

Each request gets an X-Request-ID (the client's, or a new UUID) which is
echoed in the response and logged with method, path, status and
duration_ms.

# CORS Middleware

Enable cross-origin requests for the dashboard frontend:

	server := http.Server{
		Handler: middleware.CORS(mux),
	}

X-Request-ID and Retry-After are exposed to browser code.

# JSON Helpers

	middleware.JSONResponse(w, http.StatusOK, data)
	middleware.ErrorResponse(w, http.StatusBadRequest, "message")

Lifecycle errors carry their kind, code, retry delay and a suggestion:

	middleware.CalcErrorResponse(w, err)

Status follows calcerr.HTTPStatus; rate limits add a Retry-After header.

# Client IP Extraction

	ip := middleware.GetClientIP(r)

Checks X-Forwarded-For, then X-Real-IP, then RemoteAddr.
*/
package middleware
