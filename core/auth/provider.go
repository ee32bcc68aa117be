package auth

import (
	"context"
	"net/mail"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/fatsal/lms/core"
	"github.com/fatsal/lms/core/profile"
)

var (
	// errors
	ErrNoProfile      = errors.New("no profile for this identity")
	ErrAlreadyStarted = errors.New("auth state subscription already started")
)

type (
	ProviderOptions struct {
		Conf     *core.Config
		Logger   core.Logger
		Backend  Backend
		Profiles profile.ServiceInterface
		State    StateStore
		Bus      EventBus
		Mailer   core.EmailService
	}

	// Provider is the single source of truth for who is logged in and what their profile is.
	Provider struct {
		conf     *core.Config
		logger   core.Logger
		backend  Backend
		profiles profile.ServiceInterface
		state    StateStore
		bus      EventBus
		mailer   core.EmailService

		mu     sync.Mutex
		cancel context.CancelFunc
		done   chan struct{}
	}
)

func NewProvider(opts ProviderOptions) *Provider {
	return &Provider{
		conf:     opts.Conf,
		logger:   opts.Logger,
		backend:  opts.Backend,
		profiles: opts.Profiles,
		state:    opts.State,
		bus:      opts.Bus,
		mailer:   opts.Mailer,
	}
}

// ResolveSession asks the backend who owns token. It has no side effects.
func (p *Provider) ResolveSession(ctx context.Context, token string) (Identity, string, error) {
	if token == "" {
		return Identity{}, "", ErrNoSession
	}
	ident, sessionID, err := p.backend.GetUser(ctx, token)
	if err != nil {
		if core.IsBackendUnavailable(err) {
			return Identity{}, "", err
		}
		return Identity{}, "", ErrNoSession
	}

	cleared, err := p.state.IsCleared(ctx, sessionID)
	if err != nil {
		return Identity{}, "", core.NewBackendUnavailable("auth.resolveSession", err)
	}
	if cleared {
		return Identity{}, "", ErrNoSession
	}
	return ident, sessionID, nil
}

// LoadProfile returns the profile of userID, from the session state when possible.
func (p *Provider) LoadProfile(ctx context.Context, sessionID, userID string) (profile.Profile, error) {
	if prof, ok, err := p.state.GetProfile(ctx, sessionID); err != nil {
		p.logger.Warn("reading session state", err)
	} else if ok && prof.ID == userID {
		return prof, nil
	}

	prof, err := p.profiles.GetByID(ctx, userID)
	if err != nil {
		if core.IsNotFound(err) {
			return profile.Profile{}, ErrNoProfile
		}
		return profile.Profile{}, core.NewBackendUnavailable("auth.loadProfile", err)
	}

	if err = p.state.SetProfile(ctx, sessionID, prof); err != nil {
		p.logger.Warn("writing session state", err)
	}
	return prof, nil
}

// Authenticate resolves token into a SessionContext. It never fails: a missing session,
// a missing or deactivated profile and an unreachable backend all give an unauthenticated context.
func (p *Provider) Authenticate(ctx context.Context, token string) *SessionContext {
	sc := &SessionContext{Token: token}

	ident, sessionID, err := p.ResolveSession(ctx, token)
	if err != nil {
		if core.IsBackendUnavailable(err) {
			p.logger.Error("resolving session", err)
		}
		return sc
	}
	sc.SessionID = sessionID

	prof, err := p.LoadProfile(ctx, sessionID, ident.UserID)
	if err != nil {
		if err != ErrNoProfile {
			p.logger.Error("loading profile", err, map[string]interface{}{"userID": ident.UserID})
		}
		return sc
	}
	if !prof.IsActive {
		return sc
	}
	return newSessionContext(sessionID, token, prof)
}

// SignIn looks up the email registered for identityNumber and authenticates with it.
func (p *Provider) SignIn(ctx context.Context, identityNumber, password string) (Session, profile.Profile, error) {
	identityNumber = core.CleanString(identityNumber)
	if identityNumber == "" || password == "" {
		return Session{}, profile.Profile{}, core.NewAuthError(core.AuthInvalidCredentials)
	}

	prof, err := p.profiles.GetByIdentityNumber(ctx, identityNumber)
	if err != nil {
		if core.IsNotFound(err) {
			return Session{}, profile.Profile{}, core.NewAuthError(core.AuthUnknownIdentity)
		}
		return Session{}, profile.Profile{}, core.NewBackendUnavailable("auth.signIn", err)
	}
	if !prof.IsActive {
		return Session{}, profile.Profile{}, core.NewAuthError(core.AuthAccountDeactivated)
	}

	sess, ident, err := p.backend.SignInWithPassword(ctx, prof.Email, password)
	if err != nil {
		return Session{}, profile.Profile{}, err
	}

	loaded, err := p.LoadProfile(ctx, sess.ID, ident.UserID)
	if err != nil {
		if sErr := p.backend.SignOut(ctx, sess.AccessToken); sErr != nil {
			p.logger.Error("discarding session without profile", sErr)
		}
		if err == ErrNoProfile {
			return Session{}, profile.Profile{}, core.NewAuthError(core.AuthUnknownIdentity)
		}
		return Session{}, profile.Profile{}, err
	}

	p.publish(ctx, SignedIn, sess.ID, ident.UserID)
	return sess, loaded, nil
}

// SignOut clears the local state of sc before calling the backend, whatever the backend says.
// The returned error is only meant for logging: the caller is signed out either way.
func (p *Provider) SignOut(ctx context.Context, sc *SessionContext) error {
	if sc == nil {
		return nil
	}
	sessionID, token := sc.SessionID, sc.Token
	var userID string
	if sc.Profile != nil {
		userID = sc.Profile.ID
	}
	sc.Clear()

	if sessionID != "" {
		if err := p.state.Clear(ctx, sessionID); err != nil {
			p.logger.Error("clearing session state", err)
		}
	}

	var err error
	if token != "" {
		if err = p.backend.SignOut(ctx, token); err == ErrNoSession {
			err = nil
		}
	}
	if sessionID != "" {
		p.publish(ctx, SignedOut, sessionID, userID)
	}
	return errors.Wrap(err, "signing out")
}

// SignOutEverywhere revokes every session of userID.
func (p *Provider) SignOutEverywhere(ctx context.Context, userID string) error {
	if err := p.state.ClearUser(ctx, userID); err != nil {
		p.logger.Error("clearing user sessions state", err)
	}
	err := p.backend.SignOutUser(ctx, userID)
	p.publish(ctx, SignedOut, "", userID)
	return errors.Wrap(err, "signing out everywhere")
}

// Refresh rotates the tokens of an active session.
func (p *Provider) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	sess, err := p.backend.Refresh(ctx, refreshToken)
	if err != nil {
		return Session{}, err
	}
	cleared, err := p.state.IsCleared(ctx, sess.ID)
	if err != nil {
		return Session{}, core.NewBackendUnavailable("auth.refresh", err)
	}
	if cleared {
		return Session{}, core.NewAuthError(core.AuthSessionExpired)
	}
	return sess, nil
}

// SignUp creates the auth identity and its profile. The identity is removed again if the
// profile cannot be stored.
func (p *Provider) SignUp(ctx context.Context, np profile.NewProfile) (profile.Profile, error) {
	ident, err := p.backend.SignUp(ctx, NewCredential{Email: np.Email, Password: np.Password, Verified: true})
	if err != nil {
		if err == ErrCredentialExists {
			return profile.Profile{}, core.NewValidationError(err, core.FieldError{Field: "email", Error: err.Error()})
		}
		return profile.Profile{}, errors.Wrap(err, "creating identity")
	}

	prof, err := p.profiles.Create(ctx, ident.UserID, np)
	if err != nil {
		if dErr := p.backend.DeleteUser(ctx, ident.UserID); dErr != nil {
			p.logger.Error("removing orphan identity", dErr, map[string]interface{}{"userID": ident.UserID})
		}
		return profile.Profile{}, errors.Wrap(err, "creating profile")
	}
	return prof, nil
}

// UpdateUser applies a validated settings patch to the profile and, for passwords and
// emails, to the auth identity.
func (p *Provider) UpdateUser(ctx context.Context, sc *SessionContext, orig profile.Profile, up profile.UpdateProfile) (profile.Profile, error) {
	if up.Password != "" {
		if err := p.backend.UpdateUser(ctx, orig.ID, CredentialPatch{Password: up.Password}); err != nil {
			return profile.Profile{}, errors.Wrap(err, "updating password")
		}
	}

	prof, err := p.profiles.Update(ctx, orig, up)
	if err != nil {
		return profile.Profile{}, errors.Wrap(err, "updating profile")
	}

	if sc != nil && sc.SessionID != "" && sc.Profile != nil && sc.Profile.ID == prof.ID {
		if err = p.state.SetProfile(ctx, sc.SessionID, prof); err != nil {
			p.logger.Warn("writing session state", err)
		}
		sc.Profile = &prof
		sc.Caps = prof.Capabilities()
	} else if err = p.state.ClearUser(ctx, prof.ID); err != nil {
		p.logger.Warn("clearing user sessions state", err)
	}
	return prof, nil
}

// RequestPasswordReset mails a reset link. Unknown emails are ignored so callers cannot enumerate accounts.
func (p *Provider) RequestPasswordReset(ctx context.Context, email string) error {
	prof, err := p.profiles.GetByEmail(ctx, email)
	if err != nil {
		if core.IsNotFound(err) {
			return nil
		}
		return errors.Wrap(err, "finding profile by email")
	}
	if !prof.IsActive {
		return nil
	}

	fp, err := p.backend.Fingerprint(ctx, prof.ID)
	if err != nil {
		return errors.Wrap(err, "reading credential")
	}
	token, err := makeToken([]byte(p.conf.SecretKey), fp)
	if err != nil {
		return errors.Wrap(err, "making reset token")
	}

	msg := core.NewEmailMessage(
		p.conf,
		mail.Address{Name: prof.FullName, Address: prof.Email},
		"Reset your password",
		"password_reset",
		map[string]string{
			"IdentityNumber": prof.IdentityNumber,
			"UID":            EncodeUID(prof.ID),
			"Token":          token,
		},
	)
	p.mailer.SendMessages(msg)
	return nil
}

// ConfirmPasswordReset sets pwd if token is valid for uid, then signs the user out everywhere.
func (p *Provider) ConfirmPasswordReset(ctx context.Context, uid, token, pwd string) error {
	userID, err := decodeUID(uid)
	if err != nil {
		return core.NewValidationError(errInvalidToken, core.FieldError{Field: "uid", Error: errInvalidToken.Error()})
	}
	prof, err := p.profiles.GetByID(ctx, userID)
	if err != nil {
		if core.IsNotFound(err) {
			return core.NewValidationError(errInvalidToken, core.FieldError{Field: "uid", Error: errInvalidToken.Error()})
		}
		return errors.Wrap(err, "finding profile")
	}

	fp, err := p.backend.Fingerprint(ctx, prof.ID)
	if err != nil {
		return errors.Wrap(err, "reading credential")
	}
	if err = verifyToken([]byte(p.conf.SecretKey), fp, token, p.conf.PasswordResetTimeoutDelta); err != nil {
		return core.NewValidationError(err, core.FieldError{Field: "token", Error: err.Error()})
	}
	if err = profile.CheckPassword(pwd, prof.FullName, prof.IdentityNumber, prof.Email); err != nil {
		return err
	}

	if err = p.backend.UpdateUser(ctx, prof.ID, CredentialPatch{Password: pwd}); err != nil {
		return errors.Wrap(err, "setting password")
	}
	return p.SignOutEverywhere(ctx, prof.ID)
}

// SetPassword is the administrative password reset: no token, sessions revoked.
func (p *Provider) SetPassword(ctx context.Context, userID, pwd string) error {
	if err := p.backend.UpdateUser(ctx, userID, CredentialPatch{Password: pwd}); err != nil {
		return errors.Wrap(err, "setting password")
	}
	return p.SignOutEverywhere(ctx, userID)
}

// DeleteUser revokes every session of userID, then removes its profile and its identity.
func (p *Provider) DeleteUser(ctx context.Context, userID string) error {
	if err := p.SignOutEverywhere(ctx, userID); err != nil {
		return errors.Wrap(err, "deleting user")
	}
	if err := p.profiles.Delete(ctx, userID); err != nil {
		return errors.Wrap(err, "deleting profile")
	}
	if err := p.backend.DeleteUser(ctx, userID); err != nil {
		return errors.Wrap(err, "deleting identity")
	}
	return nil
}

func (p *Provider) publish(ctx context.Context, typ EventType, sessionID, userID string) {
	if p.bus == nil {
		return
	}
	event := Event{
		ID:        uuid.NewString(),
		Type:      typ,
		SessionID: sessionID,
		UserID:    userID,
		At:        time.Now().UTC(),
	}
	if err := p.bus.Publish(ctx, event); err != nil {
		p.logger.Error("publishing auth event", err, map[string]interface{}{"type": typ})
	}
}

// Start acquires the auth state subscription. There is at most one per Provider.
func (p *Provider) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cancel != nil {
		return ErrAlreadyStarted
	}
	subCtx, cancel := context.WithCancel(ctx)
	events, err := p.bus.Subscribe(subCtx)
	if err != nil {
		cancel()
		return errors.Wrap(err, "subscribing to auth events")
	}

	p.cancel = cancel
	p.done = make(chan struct{})
	go p.listen(subCtx, events, p.done)
	return nil
}

// Close releases the subscription and waits for the listener to stop.
func (p *Provider) Close() error {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	return nil
}

func (p *Provider) listen(ctx context.Context, events <-chan Event, done chan<- struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			p.handle(ctx, event)
		}
	}
}

func (p *Provider) handle(ctx context.Context, event Event) {
	switch event.Type {
	case SignedIn:
		if event.SessionID == "" {
			return
		}
		if _, err := p.LoadProfile(ctx, event.SessionID, event.UserID); err != nil && err != ErrNoProfile {
			p.logger.Error("reloading profile", err, map[string]interface{}{"userID": event.UserID})
		}
	case SignedOut:
		var err error
		if event.SessionID != "" {
			err = p.state.Clear(ctx, event.SessionID)
		} else {
			err = p.state.ClearUser(ctx, event.UserID)
		}
		if err != nil {
			p.logger.Error("clearing session state", err)
		}
	}
}
