package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/pkg/errors"
)

var signingMethod = jwt.SigningMethodHS256

// Claims represents the authorization claims transmitted via a JWT.
// Id holds the session id and Subject the auth user id.
type Claims struct {
	jwt.StandardClaims
	Email string `json:"email,omitempty"`
}

func newClaims(issuer string, sess Session, email string, now time.Time) *Claims {
	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Id:        sess.ID,
			Issuer:    issuer,
			Subject:   sess.UserID,
			ExpiresAt: sess.ExpiresAt.Unix(),
			IssuedAt:  now.Unix(),
		},
		Email: email,
	}
}

// generateToken signs claims with key.
func generateToken(claims *Claims, key []byte) (string, error) {
	token := jwt.NewWithClaims(signingMethod, claims)
	ss, err := token.SignedString(key)
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

// parseToken verifies the signature of tokenStr. Expired tokens are refused unless allowExpired.
func parseToken(tokenStr string, key []byte, allowExpired bool) (*Claims, error) {
	claims := new(Claims)
	_, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if token.Method.Alg() != signingMethod.Alg() {
			return nil, errors.Errorf("unexpected signing method %q", token.Method.Alg())
		}
		return key, nil
	})
	if err != nil {
		var ve *jwt.ValidationError
		if !(allowExpired && errors.As(err, &ve) && ve.Errors == jwt.ValidationErrorExpired) {
			return nil, ErrNoSession
		}
	}
	if claims.Id == "" || claims.Subject == "" {
		return nil, ErrNoSession
	}
	return claims, nil
}

func newRefreshToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", errors.Wrap(err, "generating refresh token")
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
