// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package auth provides the client-local unlock gate for advanced features
(AI interpretation and PDF reports).

# Digests

The configured pass-phrase is never kept in memory in plain form. It is
reduced to an HMAC-SHA256 digest keyed by UNLOCK_SALT:

	digest := auth.Digest(passphrase, salt)
	err := auth.ValidatePassphrase(candidate, digest, salt)

Comparison uses hmac.Equal. Digests are URL-safe base64 without padding.

# Unlocker

	u := auth.NewUnlocker(store, cfg.UnlockPassphrase, cfg.UnlockSalt)
	until, err := u.Unlock(ctx, phrase)   // opens for 24h
	ok, until, err := u.IsUnlocked(ctx)
	err = u.Lock(ctx)
	err = u.Require(ctx)                  // calcerr.ErrLocked when closed

The expiry is stored under ai_unlocked_until in the preference store.

# Trust boundary

This gate is not security. The expiry lives in a store the user controls
and the backend enforces nothing based on it. Real access control, if
needed, belongs on the backend. With no pass-phrase configured the gate
is disabled and always open.
*/
package auth
