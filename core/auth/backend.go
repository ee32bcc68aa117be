package auth

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
	"golang.org/x/crypto/bcrypt"

	"github.com/fatsal/lms/core"
)

var (
	// errors
	ErrNoSession          = errors.New("no session")
	ErrCredentialExists   = errors.New("an identity with this email already exists")
	ErrCredentialNotFound = core.NewNotFoundError("credential")
	ErrSessionNotFound    = core.NewNotFoundError("session")
)

type (
	// Backend is the authentication primitive the Provider wraps.
	Backend interface {
		SignInWithPassword(ctx context.Context, email, password string) (Session, Identity, error)
		// GetUser resolves an access token to its identity and session id.
		GetUser(ctx context.Context, accessToken string) (Identity, string, error)
		SignOut(ctx context.Context, accessToken string) error
		// SignOutUser revokes every session of userID.
		SignOutUser(ctx context.Context, userID string) error
		Refresh(ctx context.Context, refreshToken string) (Session, error)
		UpdateUser(ctx context.Context, userID string, patch CredentialPatch) error
		SignUp(ctx context.Context, nc NewCredential) (Identity, error)
		DeleteUser(ctx context.Context, userID string) error
		// Fingerprint changes whenever the password or the last sign in changes.
		Fingerprint(ctx context.Context, userID string) ([]byte, error)
	}

	CredentialRepository interface {
		CreateCredential(ctx context.Context, cred Credential) (Credential, error)
		GetCredential(ctx context.Context, id string) (Credential, error)
		GetCredentialByEmail(ctx context.Context, email string) (Credential, error)
		UpdateCredential(ctx context.Context, cred Credential) (Credential, error)
		DeleteCredential(ctx context.Context, id string) error
	}

	SessionRepository interface {
		CreateSession(ctx context.Context, rec SessionRecord) error
		GetSession(ctx context.Context, id string) (SessionRecord, error)
		GetSessionByRefreshHash(ctx context.Context, hash string) (SessionRecord, error)
		UpdateSession(ctx context.Context, rec SessionRecord) error
		RevokeSession(ctx context.Context, id string, at time.Time) error
		RevokeUserSessions(ctx context.Context, userID string, at time.Time) error
		// DeleteExpiredSessions removes sessions revoked or expired before olderThan.
		DeleteExpiredSessions(ctx context.Context, olderThan time.Time) (int64, error)
	}

	localBackend struct {
		conf     *core.Config
		creds    CredentialRepository
		sessions SessionRepository
		nowFunc  func() time.Time
	}
)

var _ Backend = (*localBackend)(nil)

// NewLocalBackend builds a Backend over the auth_users and auth_sessions tables.
func NewLocalBackend(conf *core.Config, creds CredentialRepository, sessions SessionRepository) Backend {
	return &localBackend{conf: conf, creds: creds, sessions: sessions, nowFunc: time.Now}
}

func (b *localBackend) now() time.Time {
	return b.nowFunc().UTC()
}

// unavailable keeps auth and not found errors as they are and marks every other failure as a backend failure.
func unavailable(op string, err error) error {
	if err == nil || err == ErrNoSession || core.IsBackendUnavailable(err) || core.IsNotFound(err) {
		return err
	}
	if _, ok := core.AsAuthError(err); ok {
		return err
	}
	return core.NewBackendUnavailable(op, err)
}

func (b *localBackend) SignInWithPassword(ctx context.Context, email, password string) (Session, Identity, error) {
	cred, err := b.creds.GetCredentialByEmail(ctx, core.CleanString(email, true /* lower */))
	if err != nil {
		if core.IsNotFound(err) {
			return Session{}, Identity{}, core.NewAuthError(core.AuthInvalidCredentials)
		}
		return Session{}, Identity{}, unavailable("auth.signIn", err)
	}
	if err = bcrypt.CompareHashAndPassword(cred.PasswordHash, []byte(password)); err != nil {
		return Session{}, Identity{}, core.NewAuthError(core.AuthInvalidCredentials)
	}
	if !cred.EmailConfirmedAt.Valid {
		return Session{}, Identity{}, core.NewAuthError(core.AuthUnverifiedEmail)
	}

	sess, err := b.newSession(ctx, cred)
	if err != nil {
		return Session{}, Identity{}, unavailable("auth.signIn", err)
	}

	cred.LastSignInAt = null.TimeFrom(b.now())
	if _, err = b.creds.UpdateCredential(ctx, cred); err != nil {
		return Session{}, Identity{}, unavailable("auth.signIn", err)
	}
	return sess, cred.Identity(), nil
}

func (b *localBackend) newSession(ctx context.Context, cred Credential) (Session, error) {
	now := b.now()
	refresh, err := newRefreshToken()
	if err != nil {
		return Session{}, err
	}
	rec := SessionRecord{
		ID:               uuid.NewString(),
		UserID:           cred.ID,
		RefreshTokenHash: hashToken(refresh),
		CreatedAt:        now,
		ExpiresAt:        now.Add(b.conf.Session.AccessTTL),
		RefreshExpiresAt: now.Add(b.conf.Session.RefreshTTL),
	}
	if err = b.sessions.CreateSession(ctx, rec); err != nil {
		return Session{}, errors.Wrap(err, "creating session")
	}
	return b.issue(rec, cred.Email, refresh, now)
}

func (b *localBackend) issue(rec SessionRecord, email, refresh string, now time.Time) (Session, error) {
	sess := Session{
		ID:               rec.ID,
		UserID:           rec.UserID,
		RefreshToken:     refresh,
		ExpiresAt:        rec.ExpiresAt,
		RefreshExpiresAt: rec.RefreshExpiresAt,
	}
	token, err := generateToken(newClaims(b.conf.AppName, sess, email, now), []byte(b.conf.SecretKey))
	if err != nil {
		return Session{}, err
	}
	sess.AccessToken = token
	return sess, nil
}

func (b *localBackend) GetUser(ctx context.Context, accessToken string) (Identity, string, error) {
	claims, err := parseToken(accessToken, []byte(b.conf.SecretKey), false)
	if err != nil {
		return Identity{}, "", err
	}

	rec, err := b.sessions.GetSession(ctx, claims.Id)
	if err != nil {
		if core.IsNotFound(err) {
			return Identity{}, "", ErrNoSession
		}
		return Identity{}, "", unavailable("auth.getUser", err)
	}
	if rec.UserID != claims.Subject || !rec.Active(b.now()) {
		return Identity{}, "", ErrNoSession
	}

	cred, err := b.creds.GetCredential(ctx, rec.UserID)
	if err != nil {
		if core.IsNotFound(err) {
			return Identity{}, "", ErrNoSession
		}
		return Identity{}, "", unavailable("auth.getUser", err)
	}
	return cred.Identity(), rec.ID, nil
}

func (b *localBackend) SignOut(ctx context.Context, accessToken string) error {
	claims, err := parseToken(accessToken, []byte(b.conf.SecretKey), true /* allowExpired */)
	if err != nil {
		return err
	}
	if err = b.sessions.RevokeSession(ctx, claims.Id, b.now()); err != nil {
		if core.IsNotFound(err) {
			return ErrNoSession
		}
		return unavailable("auth.signOut", err)
	}
	return nil
}

func (b *localBackend) SignOutUser(ctx context.Context, userID string) error {
	return unavailable("auth.signOutUser", b.sessions.RevokeUserSessions(ctx, userID, b.now()))
}

// Refresh rotates the refresh token of an active session and issues a new access token.
func (b *localBackend) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	if refreshToken == "" {
		return Session{}, core.NewAuthError(core.AuthSessionExpired)
	}
	rec, err := b.sessions.GetSessionByRefreshHash(ctx, hashToken(refreshToken))
	if err != nil {
		if core.IsNotFound(err) {
			return Session{}, core.NewAuthError(core.AuthSessionExpired)
		}
		return Session{}, unavailable("auth.refresh", err)
	}
	now := b.now()
	if !rec.Active(now) {
		return Session{}, core.NewAuthError(core.AuthSessionExpired)
	}

	cred, err := b.creds.GetCredential(ctx, rec.UserID)
	if err != nil {
		if core.IsNotFound(err) {
			return Session{}, core.NewAuthError(core.AuthSessionExpired)
		}
		return Session{}, unavailable("auth.refresh", err)
	}

	refresh, err := newRefreshToken()
	if err != nil {
		return Session{}, err
	}
	rec.RefreshTokenHash = hashToken(refresh)
	rec.ExpiresAt = now.Add(b.conf.Session.AccessTTL)
	rec.RefreshExpiresAt = now.Add(b.conf.Session.RefreshTTL)
	if err = b.sessions.UpdateSession(ctx, rec); err != nil {
		return Session{}, unavailable("auth.refresh", err)
	}
	return b.issue(rec, cred.Email, refresh, now)
}

func (b *localBackend) UpdateUser(ctx context.Context, userID string, patch CredentialPatch) error {
	cred, err := b.creds.GetCredential(ctx, userID)
	if err != nil {
		return unavailable("auth.updateUser", err)
	}
	if email := core.CleanString(patch.Email, true /* lower */); email != "" {
		cred.Email = email
	}
	if patch.Password != "" {
		if cred.PasswordHash, err = hashPassword(patch.Password); err != nil {
			return err
		}
	}
	cred.UpdatedAt = b.now()
	_, err = b.creds.UpdateCredential(ctx, cred)
	return unavailable("auth.updateUser", err)
}

func (b *localBackend) SignUp(ctx context.Context, nc NewCredential) (Identity, error) {
	email := core.CleanString(nc.Email, true /* lower */)
	if _, err := b.creds.GetCredentialByEmail(ctx, email); err == nil {
		return Identity{}, ErrCredentialExists
	} else if !core.IsNotFound(err) {
		return Identity{}, unavailable("auth.signUp", err)
	}

	hash, err := hashPassword(nc.Password)
	if err != nil {
		return Identity{}, err
	}
	now := b.now()
	cred := Credential{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if nc.Verified {
		cred.EmailConfirmedAt = null.TimeFrom(now)
	}
	if cred, err = b.creds.CreateCredential(ctx, cred); err != nil {
		return Identity{}, unavailable("auth.signUp", err)
	}
	return cred.Identity(), nil
}

func (b *localBackend) DeleteUser(ctx context.Context, userID string) error {
	return unavailable("auth.deleteUser", b.creds.DeleteCredential(ctx, userID))
}

func (b *localBackend) Fingerprint(ctx context.Context, userID string) ([]byte, error) {
	cred, err := b.creds.GetCredential(ctx, userID)
	if err != nil {
		return nil, unavailable("auth.fingerprint", err)
	}
	fp := append([]byte(cred.ID), cred.PasswordHash...)
	if cred.LastSignInAt.Valid {
		fp = append(fp, cred.LastSignInAt.Time.UTC().Format(time.RFC3339Nano)...)
	}
	return fp, nil
}

func hashPassword(pwd string) ([]byte, error) {
	if strings.TrimSpace(pwd) == "" {
		return nil, errors.New("empty password")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	return hash, errors.Wrap(err, "hashing password")
}
