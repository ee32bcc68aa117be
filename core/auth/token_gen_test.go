package auth

import (
	"strconv"
	"testing"
	"time"
)

func TestMakeVerifyToken(t *testing.T) {
	secret := []byte("secret")
	timeout := 3 * 24 * time.Hour
	fingerprint := []byte("2f7d1a0e-6b4c-4f7e-9a53-1c0d2b3e4f5a$2a$10$hash2024-07-15T08:00:00Z")

	validToken, err := makeToken(secret, fingerprint)
	if err != nil {
		t.Fatalf("makeToken() failed: %v", err)
	}

	// generate an expired token
	dayLate := timeout + (24 * time.Hour)
	nowFunc = func() time.Time { return time.Now().Add(-dayLate) }
	expiredToken, err := makeToken(secret, fingerprint)
	nowFunc = time.Now // reset
	if err != nil {
		t.Fatalf("makeToken() failed: %v", err)
	}

	ts := b32.EncodeToString([]byte(strconv.Itoa(numDaysSince2001(time.Now()))))

	tests := []struct {
		name        string
		fingerprint []byte
		token       string
		wantErr     error
	}{
		{name: "no token", fingerprint: fingerprint, wantErr: errInvalidToken},
		{name: "invalid parts len", fingerprint: fingerprint, token: "lmaooolol", wantErr: errInvalidToken},
		{name: "invalid base32", fingerprint: fingerprint, token: "hahaha-sigsig", wantErr: errInvalidToken},
		{name: "invalid timestamp", fingerprint: fingerprint, token: b32.EncodeToString([]byte("lol")) + "-sigsig", wantErr: errInvalidToken},
		{name: "invalid signature", fingerprint: fingerprint, token: ts + "-sigsig", wantErr: errInvalidToken},
		{name: "other fingerprint", fingerprint: []byte("changed"), token: validToken, wantErr: errInvalidToken},
		{name: "expired token", fingerprint: fingerprint, token: expiredToken, wantErr: errTokenExpired},
		{name: "valid token", fingerprint: fingerprint, token: validToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := verifyToken(secret, tt.fingerprint, tt.token, timeout); err != tt.wantErr {
				t.Errorf("verifyToken() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestEncodeDecodeUID(t *testing.T) {
	id := "2f7d1a0e-6b4c-4f7e-9a53-1c0d2b3e4f5a"
	got, err := decodeUID(EncodeUID(id))
	if err != nil {
		t.Fatalf("decodeUID() failed: %v", err)
	}
	if got != id {
		t.Errorf("decodeUID() = %q, want %q", got, id)
	}

	if _, err = decodeUID("not base64!"); err == nil {
		t.Error("decodeUID() expected an error")
	}
}
