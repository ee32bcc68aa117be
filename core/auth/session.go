package auth

import (
	"context"
	"time"

	"github.com/fatsal/lms/core/access"
	"github.com/fatsal/lms/core/profile"
)

type (
	// StateStore is the provider's local session state: the profile loaded for each session
	// and a marker for sessions signed out locally.
	StateStore interface {
		GetProfile(ctx context.Context, sessionID string) (profile.Profile, bool, error)
		// SetProfile is a no-op once the session has been cleared.
		SetProfile(ctx context.Context, sessionID string, p profile.Profile) error
		// Clear drops the session profile and marks the session signed out.
		Clear(ctx context.Context, sessionID string) error
		// ClearUser drops the profile of every session of userID.
		ClearUser(ctx context.Context, userID string) error
		IsCleared(ctx context.Context, sessionID string) (bool, error)
	}

	// StatePruner is a StateStore whose cleared markers do not expire by themselves.
	StatePruner interface {
		// PruneCleared forgets the sessions cleared before clearedBefore and returns how many.
		PruneCleared(ctx context.Context, clearedBefore time.Time) (int, error)
	}

	// EventBus carries auth state transitions.
	EventBus interface {
		Publish(ctx context.Context, event Event) error
		// Subscribe delivers events until ctx is done, then closes the channel.
		Subscribe(ctx context.Context) (<-chan Event, error)
	}
)

// SessionContext is what one request knows about its caller.
// A nil Profile means the request is unauthenticated.
type SessionContext struct {
	SessionID string
	Token     string
	Profile   *profile.Profile
	Caps      access.Capabilities
}

func (sc *SessionContext) Authenticated() bool {
	return sc != nil && sc.Profile != nil
}

// Principal is nil for unauthenticated requests.
func (sc *SessionContext) Principal() *access.Principal {
	if !sc.Authenticated() {
		return nil
	}
	p := sc.Profile.Principal()
	return &p
}

// Scope narrows base to the caller's rows. Unauthenticated requests see nothing.
func (sc *SessionContext) Scope(base access.Scope) access.Scope {
	p := sc.Principal()
	if p == nil {
		return access.Scope{Deny: true}
	}
	return access.ScopeFilter(*p, base)
}

func (sc *SessionContext) Can(caps ...access.Capability) bool {
	return sc.Authenticated() && sc.Caps.HasAny(caps...)
}

// Clear forgets everything the request knew about its caller.
func (sc *SessionContext) Clear() {
	if sc == nil {
		return
	}
	sc.SessionID = ""
	sc.Token = ""
	sc.Profile = nil
	sc.Caps = nil
}

func newSessionContext(sessionID, token string, p profile.Profile) *SessionContext {
	return &SessionContext{
		SessionID: sessionID,
		Token:     token,
		Profile:   &p,
		Caps:      p.Capabilities(),
	}
}
