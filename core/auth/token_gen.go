package auth

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base32"
	"encoding/base64"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

var (
	salt    = []byte("fatsal.lms.core.auth.token_gen")
	nowFunc = time.Now // mockable

	// errors
	errInvalidToken = errors.New("invalid token")
	errTokenExpired = errors.New("token expired")

	b32 = base32.StdEncoding.WithPadding(base32.NoPadding)
)

// EncodeUID base64 encodes given user ID
func EncodeUID(id string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(id))
}

// decodeUID base64 decodes given UID
func decodeUID(uid string) (string, error) {
	idBytes, err := base64.RawURLEncoding.DecodeString(uid)
	if err != nil {
		return "", err
	}
	return string(idBytes), nil
}

// makeToken generates a password reset token bound to the user's credential fingerprint.
func makeToken(secret []byte, fingerprint []byte) (string, error) {
	return makeTokenWithTimestamp(secret, fingerprint, numDaysSince2001(nowFunc()))
}

// verifyToken checks that a password reset token is valid for fingerprint and younger than timeout.
func verifyToken(secret []byte, fingerprint []byte, token string, timeout time.Duration) error {
	if token == "" {
		return errInvalidToken
	}

	parts := strings.SplitN(token, "-", 2)
	if len(parts) < 2 {
		return errInvalidToken
	}

	data, err := b32.DecodeString(parts[0])
	if err != nil {
		return errInvalidToken
	}
	ts, err := strconv.Atoi(string(data))
	if err != nil {
		return errInvalidToken
	}

	// check that token has not been tampered with
	newToken, err := makeTokenWithTimestamp(secret, fingerprint, ts)
	if err != nil {
		return err
	}
	if subtle.ConstantTimeCompare([]byte(newToken), []byte(token)) == 0 {
		return errInvalidToken
	}

	// check that the timestamp is within limit
	if (numDaysSince2001(nowFunc()) - ts) > int(timeout/(24*time.Hour)) {
		return errTokenExpired
	}
	return nil
}

func makeTokenWithTimestamp(secret []byte, fingerprint []byte, ts int) (string, error) {
	tsB32 := b32.EncodeToString([]byte(strconv.Itoa(ts)))
	sig, err := sign(secret, hashValue(fingerprint, ts))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%s", tsB32, sig), nil
}

func numDaysSince2001(t time.Time) int {
	ref := time.Date(2001, time.January, 1, 0, 0, 0, 0, time.UTC)
	return int(math.Ceil(t.Sub(ref).Hours() / 24))
}

func sign(secret []byte, val []byte) (string, error) {
	key := sha256.Sum256(append(append([]byte{}, salt...), secret...))
	h := hmac.New(sha256.New, key[:])
	if _, err := h.Write(val); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil)), nil
}

func hashValue(fingerprint []byte, ts int) []byte {
	var val bytes.Buffer
	val.Write(fingerprint)
	val.WriteString(strconv.Itoa(ts))
	return val.Bytes()
}
