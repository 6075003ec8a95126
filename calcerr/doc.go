// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package calcerr classifies failures of the calculation lifecycle.

Every failure that reaches the UI is an *Error with a Kind:

  - validation: rejected before or by the backend's input checks
  - network: the call did not complete (transport, timeout, 5xx)
  - calculation: the backend ran but could not produce a result
  - rate_limit: HTTP 429, carries RetryAfter
  - materialization: the result exists but could not be fetched or parsed
  - not_found, premature: report and detail lookups
  - locked: the local unlock gate is closed

Suggestions are looked up by structured backend code. Matching on message
text is kept only for backends that predate error codes.
*/
package calcerr
