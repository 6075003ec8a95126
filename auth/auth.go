// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/danielhkuo/usdt-elasticity/calcerr"
	"github.com/danielhkuo/usdt-elasticity/prefs"
)

var ErrInvalidPassphrase = errors.New("invalid passphrase")

// DefaultTTL is how long an unlock lasts.
const DefaultTTL = 24 * time.Hour

// Digest derives a comparable digest of passphrase keyed by salt
func Digest(passphrase, salt string) string {
	h := hmac.New(sha256.New, []byte(salt))
	h.Write([]byte(passphrase))
	sum := h.Sum(nil)
	return strings.TrimRight(base64.URLEncoding.EncodeToString(sum), "=")
}

// ValidatePassphrase checks passphrase against a digest from Digest
func ValidatePassphrase(passphrase, digest, salt string) error {
	if !hmac.Equal([]byte(Digest(passphrase, salt)), []byte(digest)) {
		return ErrInvalidPassphrase
	}
	return nil
}

// Unlocker hides advanced features behind a pass-phrase. It is a UX
// speed bump, not access control: the expiry lives in the client-local
// store and anyone with access to it can extend it.
type Unlocker struct {
	store  prefs.Store
	salt   string
	digest string
	ttl    time.Duration
	now    func() time.Time
}

// NewUnlocker creates a gate for passphrase. Only its digest is kept.
// An empty passphrase disables the gate.
func NewUnlocker(store prefs.Store, passphrase, salt string) *Unlocker {
	u := &Unlocker{store: store, salt: salt, ttl: DefaultTTL, now: time.Now}
	if passphrase != "" {
		u.digest = Digest(passphrase, salt)
	}
	return u
}

// Enabled reports whether a pass-phrase is configured.
func (u *Unlocker) Enabled() bool {
	return u.digest != ""
}

// Unlock opens the gate for the TTL when passphrase matches.
func (u *Unlocker) Unlock(ctx context.Context, passphrase string) (time.Time, error) {
	if !u.Enabled() {
		return time.Time{}, nil
	}
	if err := ValidatePassphrase(passphrase, u.digest, u.salt); err != nil {
		slog.Warn("unlock rejected")
		return time.Time{}, err
	}

	until := u.now().Add(u.ttl).UTC()
	if err := u.store.Set(ctx, prefs.KeyUnlockedUntil, until.Format(time.RFC3339)); err != nil {
		return time.Time{}, err
	}
	slog.Info("advanced features unlocked", "until", until)
	return until, nil
}

// IsUnlocked reports whether the gate is open and until when. A disabled
// gate is always open.
func (u *Unlocker) IsUnlocked(ctx context.Context) (bool, time.Time, error) {
	if !u.Enabled() {
		return true, time.Time{}, nil
	}
	v, ok, err := u.store.Get(ctx, prefs.KeyUnlockedUntil)
	if err != nil || !ok {
		return false, time.Time{}, err
	}
	until, err := time.Parse(time.RFC3339, v)
	if err != nil {
		slog.Warn("ignoring stored unlock expiry", "value", v)
		return false, time.Time{}, nil
	}
	if !u.now().Before(until) {
		return false, time.Time{}, nil
	}
	return true, until, nil
}

// Lock closes the gate immediately.
func (u *Unlocker) Lock(ctx context.Context) error {
	return u.store.Delete(ctx, prefs.KeyUnlockedUntil)
}

// Require returns calcerr.ErrLocked unless the gate is open.
func (u *Unlocker) Require(ctx context.Context) error {
	ok, _, err := u.IsUnlocked(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return calcerr.ErrLocked
	}
	return nil
}
