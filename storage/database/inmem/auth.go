package inmemdb

import (
	"context"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/fatsal/lms/core/auth"
)

type credentialRepository struct {
	db *DB
}

var _ auth.CredentialRepository = (*credentialRepository)(nil) // interface compliance check

func NewCredentialRepository(db *DB) *credentialRepository {
	return &credentialRepository{db: db}
}

func (repo *credentialRepository) CreateCredential(_ context.Context, cred auth.Credential) (auth.Credential, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, c := range repo.db.credentials {
		if c.Email == cred.Email {
			return auth.Credential{}, auth.ErrCredentialExists
		}
	}
	repo.db.credentials[cred.ID] = &cred
	return cred, nil
}

func (repo *credentialRepository) GetCredential(_ context.Context, id string) (auth.Credential, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if c, ok := repo.db.credentials[id]; ok {
		return *c, nil
	}
	return auth.Credential{}, auth.ErrCredentialNotFound
}

func (repo *credentialRepository) GetCredentialByEmail(_ context.Context, email string) (auth.Credential, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, c := range repo.db.credentials {
		if c.Email == email {
			return *c, nil
		}
	}
	return auth.Credential{}, auth.ErrCredentialNotFound
}

func (repo *credentialRepository) UpdateCredential(_ context.Context, cred auth.Credential) (auth.Credential, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.credentials[cred.ID]; !ok {
		return auth.Credential{}, auth.ErrCredentialNotFound
	}
	for _, c := range repo.db.credentials {
		if c.ID != cred.ID && c.Email == cred.Email {
			return auth.Credential{}, auth.ErrCredentialExists
		}
	}
	repo.db.credentials[cred.ID] = &cred
	return cred, nil
}

func (repo *credentialRepository) DeleteCredential(_ context.Context, id string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	delete(repo.db.credentials, id)
	for sid, s := range repo.db.sessions {
		if s.UserID == id {
			delete(repo.db.sessions, sid)
		}
	}
	return nil
}

type sessionRepository struct {
	db *DB
}

var _ auth.SessionRepository = (*sessionRepository)(nil) // interface compliance check

func NewSessionRepository(db *DB) *sessionRepository {
	return &sessionRepository{db: db}
}

func (repo *sessionRepository) CreateSession(_ context.Context, rec auth.SessionRecord) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	repo.db.sessions[rec.ID] = &rec
	return nil
}

func (repo *sessionRepository) GetSession(_ context.Context, id string) (auth.SessionRecord, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if s, ok := repo.db.sessions[id]; ok {
		return *s, nil
	}
	return auth.SessionRecord{}, auth.ErrSessionNotFound
}

func (repo *sessionRepository) GetSessionByRefreshHash(_ context.Context, hash string) (auth.SessionRecord, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, s := range repo.db.sessions {
		if s.RefreshTokenHash == hash {
			return *s, nil
		}
	}
	return auth.SessionRecord{}, auth.ErrSessionNotFound
}

func (repo *sessionRepository) UpdateSession(_ context.Context, rec auth.SessionRecord) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.sessions[rec.ID]; !ok {
		return auth.ErrSessionNotFound
	}
	repo.db.sessions[rec.ID] = &rec
	return nil
}

func (repo *sessionRepository) RevokeSession(_ context.Context, id string, at time.Time) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	s, ok := repo.db.sessions[id]
	if !ok {
		return auth.ErrSessionNotFound
	}
	if !s.RevokedAt.Valid {
		s.RevokedAt = null.TimeFrom(at.UTC())
	}
	return nil
}

func (repo *sessionRepository) RevokeUserSessions(_ context.Context, userID string, at time.Time) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, s := range repo.db.sessions {
		if s.UserID == userID && !s.RevokedAt.Valid {
			s.RevokedAt = null.TimeFrom(at.UTC())
		}
	}
	return nil
}

func (repo *sessionRepository) DeleteExpiredSessions(_ context.Context, olderThan time.Time) (int64, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	var n int64
	for id, s := range repo.db.sessions {
		if (s.RevokedAt.Valid && s.RevokedAt.Time.Before(olderThan)) || s.RefreshExpiresAt.Before(olderThan) {
			delete(repo.db.sessions, id)
			n++
		}
	}
	return n, nil
}
