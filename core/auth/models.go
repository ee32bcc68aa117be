package auth

import (
	"time"

	"github.com/volatiletech/null/v8"
)

type EventType string

const (
	SignedIn  EventType = "SIGNED_IN"
	SignedOut EventType = "SIGNED_OUT"
)

type (
	// Identity is the raw auth identity, without any application data.
	Identity struct {
		UserID        string `json:"user_id"`
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
	}

	// Session is the credential state handed to a client after signing in.
	Session struct {
		ID               string    `json:"-"`
		UserID           string    `json:"-"`
		AccessToken      string    `json:"access_token"`
		RefreshToken     string    `json:"refresh_token"`
		ExpiresAt        time.Time `json:"expires_at"`
		RefreshExpiresAt time.Time `json:"refresh_expires_at"`
	}

	// Event is an auth state transition. An empty SessionID on SIGNED_OUT means every session of UserID.
	Event struct {
		ID        string    `json:"id"`
		Type      EventType `json:"type"`
		SessionID string    `json:"session_id,omitempty"`
		UserID    string    `json:"user_id"`
		At        time.Time `json:"at"`
	}

	// Credential is a row of auth_users.
	Credential struct {
		ID               string    `db:"id"`
		Email            string    `db:"email"`
		PasswordHash     []byte    `db:"password_hash"`
		EmailConfirmedAt null.Time `db:"email_confirmed_at"`
		LastSignInAt     null.Time `db:"last_sign_in_at"`
		CreatedAt        time.Time `db:"created_at"`
		UpdatedAt        time.Time `db:"updated_at"`
	}

	// SessionRecord is a row of auth_sessions. Only the hash of the refresh token is stored.
	SessionRecord struct {
		ID               string    `db:"id"`
		UserID           string    `db:"user_id"`
		RefreshTokenHash string    `db:"refresh_token_hash"`
		CreatedAt        time.Time `db:"created_at"`
		ExpiresAt        time.Time `db:"expires_at"`
		RefreshExpiresAt time.Time `db:"refresh_expires_at"`
		RevokedAt        null.Time `db:"revoked_at"`
	}

	// NewCredential is what SignUp needs to create an auth identity.
	NewCredential struct {
		Email    string
		Password string
		Verified bool
	}

	// CredentialPatch changes the auth side of a user. Empty fields are left untouched.
	CredentialPatch struct {
		Email    string
		Password string
	}
)

func (c Credential) Identity() Identity {
	return Identity{UserID: c.ID, Email: c.Email, EmailVerified: c.EmailConfirmedAt.Valid}
}

// Active reports whether the session can still be used at t.
func (s SessionRecord) Active(t time.Time) bool {
	return !s.RevokedAt.Valid && t.Before(s.RefreshExpiresAt)
}
