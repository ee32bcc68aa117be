package sqlxrepos

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/fatsal/lms/core"
	"github.com/fatsal/lms/core/auth"
)

const credentialColumns = `id, email, password_hash, email_confirmed_at, last_sign_in_at, created_at, updated_at`

type credentialRepository struct {
	exec core.DBExecutor
}

var _ auth.CredentialRepository = (*credentialRepository)(nil) // interface compliance check

func NewCredentialRepository(exec core.DBExecutor) *credentialRepository {
	return &credentialRepository{exec: exec}
}

func (repo credentialRepository) CreateCredential(ctx context.Context, cred auth.Credential) (auth.Credential, error) {
	q := `INSERT INTO auth_users (` + credentialColumns + `)
		VALUES (:id, :email, :password_hash, :email_confirmed_at, :last_sign_in_at, :created_at, :updated_at)`
	if _, err := repo.exec.NamedExecContext(ctx, q, cred); err != nil {
		if isUniqueViolation(err, "auth_users_email_key") {
			return auth.Credential{}, auth.ErrCredentialExists
		}
		return auth.Credential{}, errors.Wrap(err, "inserting credential")
	}
	return cred, nil
}

func (repo credentialRepository) GetCredential(ctx context.Context, id string) (auth.Credential, error) {
	var cred auth.Credential
	q := `SELECT ` + credentialColumns + ` FROM auth_users WHERE id = $1`
	if err := repo.exec.GetContext(ctx, &cred, q, id); err != nil {
		return auth.Credential{}, trapNoRowsErr(err, auth.ErrCredentialNotFound, "getting credential")
	}
	return cred, nil
}

func (repo credentialRepository) GetCredentialByEmail(ctx context.Context, email string) (auth.Credential, error) {
	var cred auth.Credential
	q := `SELECT ` + credentialColumns + ` FROM auth_users WHERE email = $1`
	if err := repo.exec.GetContext(ctx, &cred, q, email); err != nil {
		return auth.Credential{}, trapNoRowsErr(err, auth.ErrCredentialNotFound, "getting credential by email")
	}
	return cred, nil
}

func (repo credentialRepository) UpdateCredential(ctx context.Context, cred auth.Credential) (auth.Credential, error) {
	q := `UPDATE auth_users SET email = :email, password_hash = :password_hash,
		email_confirmed_at = :email_confirmed_at, last_sign_in_at = :last_sign_in_at, updated_at = :updated_at
		WHERE id = :id`
	res, err := repo.exec.NamedExecContext(ctx, q, cred)
	if err != nil {
		if isUniqueViolation(err, "auth_users_email_key") {
			return auth.Credential{}, auth.ErrCredentialExists
		}
		return auth.Credential{}, errors.Wrap(err, "updating credential")
	}
	if err = checkAffected(res, auth.ErrCredentialNotFound, "updating credential"); err != nil {
		return auth.Credential{}, err
	}
	return cred, nil
}

func (repo credentialRepository) DeleteCredential(ctx context.Context, id string) error {
	_, err := repo.exec.ExecContext(ctx, `DELETE FROM auth_users WHERE id = $1`, id)
	return errors.Wrap(err, "deleting credential")
}

const sessionColumns = `id, user_id, refresh_token_hash, created_at, expires_at, refresh_expires_at, revoked_at`

type sessionRepository struct {
	exec core.DBExecutor
}

var _ auth.SessionRepository = (*sessionRepository)(nil) // interface compliance check

func NewSessionRepository(exec core.DBExecutor) *sessionRepository {
	return &sessionRepository{exec: exec}
}

func (repo sessionRepository) CreateSession(ctx context.Context, rec auth.SessionRecord) error {
	q := `INSERT INTO auth_sessions (` + sessionColumns + `)
		VALUES (:id, :user_id, :refresh_token_hash, :created_at, :expires_at, :refresh_expires_at, :revoked_at)`
	_, err := repo.exec.NamedExecContext(ctx, q, rec)
	return errors.Wrap(err, "inserting session")
}

func (repo sessionRepository) GetSession(ctx context.Context, id string) (auth.SessionRecord, error) {
	var rec auth.SessionRecord
	q := `SELECT ` + sessionColumns + ` FROM auth_sessions WHERE id = $1`
	if err := repo.exec.GetContext(ctx, &rec, q, id); err != nil {
		return auth.SessionRecord{}, trapNoRowsErr(err, auth.ErrSessionNotFound, "getting session")
	}
	return rec, nil
}

func (repo sessionRepository) GetSessionByRefreshHash(ctx context.Context, hash string) (auth.SessionRecord, error) {
	var rec auth.SessionRecord
	q := `SELECT ` + sessionColumns + ` FROM auth_sessions WHERE refresh_token_hash = $1`
	if err := repo.exec.GetContext(ctx, &rec, q, hash); err != nil {
		return auth.SessionRecord{}, trapNoRowsErr(err, auth.ErrSessionNotFound, "getting session by refresh token")
	}
	return rec, nil
}

func (repo sessionRepository) UpdateSession(ctx context.Context, rec auth.SessionRecord) error {
	q := `UPDATE auth_sessions SET refresh_token_hash = :refresh_token_hash, expires_at = :expires_at,
		refresh_expires_at = :refresh_expires_at, revoked_at = :revoked_at
		WHERE id = :id`
	res, err := repo.exec.NamedExecContext(ctx, q, rec)
	if err != nil {
		return errors.Wrap(err, "updating session")
	}
	return checkAffected(res, auth.ErrSessionNotFound, "updating session")
}

func (repo sessionRepository) RevokeSession(ctx context.Context, id string, at time.Time) error {
	res, err := repo.exec.ExecContext(ctx,
		`UPDATE auth_sessions SET revoked_at = COALESCE(revoked_at, $2) WHERE id = $1`, id, at.UTC())
	if err != nil {
		return errors.Wrap(err, "revoking session")
	}
	return checkAffected(res, auth.ErrSessionNotFound, "revoking session")
}

func (repo sessionRepository) RevokeUserSessions(ctx context.Context, userID string, at time.Time) error {
	_, err := repo.exec.ExecContext(ctx,
		`UPDATE auth_sessions SET revoked_at = $2 WHERE user_id = $1 AND revoked_at IS NULL`, userID, at.UTC())
	return errors.Wrap(err, "revoking user sessions")
}

func (repo sessionRepository) DeleteExpiredSessions(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := repo.exec.ExecContext(ctx,
		`DELETE FROM auth_sessions WHERE revoked_at < $1 OR refresh_expires_at < $1`, olderThan.UTC())
	if err != nil {
		return 0, errors.Wrap(err, "deleting expired sessions")
	}
	n, err := res.RowsAffected()
	return n, errors.Wrap(err, "deleting expired sessions")
}
