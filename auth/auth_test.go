// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package auth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/danielhkuo/usdt-elasticity/calcerr"
	"github.com/danielhkuo/usdt-elasticity/db"
	"github.com/danielhkuo/usdt-elasticity/prefs"
	"github.com/danielhkuo/usdt-elasticity/testutil"
)

func TestDigest(t *testing.T) {
	tests := []struct {
		name       string
		passphrase string
		salt       string
	}{
		{"standard", "abrete sesamo", "secret-salt"},
		{"empty passphrase", "", "salt"},
		{"empty salt", "abrete", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d1 := Digest(tt.passphrase, tt.salt)
			d2 := Digest(tt.passphrase, tt.salt)
			if d1 != d2 {
				t.Errorf("Digest() not deterministic: %s != %s", d1, d2)
			}
			// 32 bytes base64 without padding
			if len(d1) != 43 {
				t.Errorf("Digest() length = %d, want 43", len(d1))
			}
			if strings.ContainsAny(d1, "+/=") {
				t.Errorf("Digest() is not URL-safe: %s", d1)
			}
		})
	}

	if Digest("a", "salt1") == Digest("a", "salt2") {
		t.Error("different salts should produce different digests")
	}
}

func TestValidatePassphrase(t *testing.T) {
	digest := Digest("correcto", "salt")

	if err := ValidatePassphrase("correcto", digest, "salt"); err != nil {
		t.Errorf("expected valid, got %v", err)
	}
	if err := ValidatePassphrase("incorrecto", digest, "salt"); !errors.Is(err, ErrInvalidPassphrase) {
		t.Errorf("expected ErrInvalidPassphrase, got %v", err)
	}
	if err := ValidatePassphrase("correcto", digest, "other-salt"); !errors.Is(err, ErrInvalidPassphrase) {
		t.Errorf("expected ErrInvalidPassphrase for wrong salt, got %v", err)
	}
}

func newTestUnlocker(t *testing.T, passphrase string) (*Unlocker, *time.Time) {
	t.Helper()
	store := prefs.NewSQLStore(testutil.SetupTestDB(t), db.TypeSQLite)
	u := NewUnlocker(store, passphrase, "test-salt")
	clock := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	u.now = func() time.Time { return clock }
	return u, &clock
}

func TestUnlockerLifecycle(t *testing.T) {
	ctx := context.Background()
	u, clock := newTestUnlocker(t, "abrete")

	if ok, _, _ := u.IsUnlocked(ctx); ok {
		t.Fatal("expected locked initially")
	}
	if err := u.Require(ctx); !errors.Is(err, calcerr.ErrLocked) {
		t.Errorf("expected ErrLocked, got %v", err)
	}

	if _, err := u.Unlock(ctx, "cerrado"); !errors.Is(err, ErrInvalidPassphrase) {
		t.Errorf("expected ErrInvalidPassphrase, got %v", err)
	}

	until, err := u.Unlock(ctx, "abrete")
	if err != nil {
		t.Fatal(err)
	}
	if want := clock.Add(24 * time.Hour); !until.Equal(want) {
		t.Errorf("expected expiry %v, got %v", want, until)
	}
	ok, got, err := u.IsUnlocked(ctx)
	if err != nil || !ok || !got.Equal(until) {
		t.Errorf("expected unlocked until %v, got ok=%v until=%v err=%v", until, ok, got, err)
	}
	if err := u.Require(ctx); err != nil {
		t.Errorf("expected open gate, got %v", err)
	}

	*clock = clock.Add(24 * time.Hour)
	if ok, _, _ := u.IsUnlocked(ctx); ok {
		t.Error("expected unlock to expire after 24h")
	}

	*clock = clock.Add(-time.Hour)
	if ok, _, _ := u.IsUnlocked(ctx); !ok {
		t.Error("expected unlocked within the TTL")
	}
	if err := u.Lock(ctx); err != nil {
		t.Fatal(err)
	}
	if ok, _, _ := u.IsUnlocked(ctx); ok {
		t.Error("expected locked after Lock")
	}
}

func TestUnlockerDisabled(t *testing.T) {
	ctx := context.Background()
	u, _ := newTestUnlocker(t, "")

	if u.Enabled() {
		t.Fatal("expected disabled gate")
	}
	if ok, _, _ := u.IsUnlocked(ctx); !ok {
		t.Error("disabled gate must be open")
	}
	if err := u.Require(ctx); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
}

func TestUnlockerIgnoresCorruptExpiry(t *testing.T) {
	ctx := context.Background()
	u, _ := newTestUnlocker(t, "abrete")
	u.store.Set(ctx, prefs.KeyUnlockedUntil, "forever")

	if ok, _, err := u.IsUnlocked(ctx); ok || err != nil {
		t.Errorf("expected locked without error, got ok=%v err=%v", ok, err)
	}
}
