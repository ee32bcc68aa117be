package auth_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fatsal/lms/core"
	"github.com/fatsal/lms/core/access"
	"github.com/fatsal/lms/core/auth"
	"github.com/fatsal/lms/testutil"
)

// failingBackend refuses every sign out.
type failingBackend struct {
	auth.Backend
}

func (failingBackend) SignOut(context.Context, string) error {
	return core.NewBackendUnavailable("auth.signOut", errors.New("connection refused"))
}

// unreachableBackend cannot resolve any access token.
type unreachableBackend struct {
	auth.Backend
}

func (unreachableBackend) GetUser(context.Context, string) (auth.Identity, string, error) {
	return auth.Identity{}, "", core.NewBackendUnavailable("auth.getUser", errors.New("connection refused"))
}

func TestProvider_SignIn(t *testing.T) {
	env := testutil.NewEnv(t)
	sch := env.CreateSchool(t, "MA Fathus Salafi")
	teacher := env.CreateProfile(t, "Ahmad Fauzi", "198705122010011001", access.RoleTeacher, sch.ID, true)
	inactive := env.CreateProfile(t, "Siti Aminah", "198903042012012002", access.RoleTeacher, sch.ID, false)

	tests := []struct {
		name           string
		identityNumber string
		password       string
		wantReason     core.AuthReason
	}{
		{name: "empty identity number", password: testutil.Password, wantReason: core.AuthInvalidCredentials},
		{name: "empty password", identityNumber: teacher.IdentityNumber, wantReason: core.AuthInvalidCredentials},
		{name: "unknown identity number", identityNumber: "000000000000000000", password: testutil.Password, wantReason: core.AuthUnknownIdentity},
		{name: "wrong password", identityNumber: teacher.IdentityNumber, password: "wrong-password", wantReason: core.AuthInvalidCredentials},
		{name: "deactivated account", identityNumber: inactive.IdentityNumber, password: testutil.Password, wantReason: core.AuthAccountDeactivated},
		{name: "padded identity number", identityNumber: "  " + teacher.IdentityNumber + " ", password: testutil.Password},
		{name: "valid credentials", identityNumber: teacher.IdentityNumber, password: testutil.Password},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sess, prof, err := env.Provider.SignIn(context.Background(), tt.identityNumber, tt.password)
			if tt.wantReason != "" {
				ae, ok := core.AsAuthError(err)
				require.True(t, ok, "want AuthError, got %v", err)
				assert.Equal(t, tt.wantReason, ae.Reason)
				assert.Empty(t, sess.AccessToken)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, sess.AccessToken)
			assert.NotEmpty(t, sess.RefreshToken)
			assert.Equal(t, teacher.ID, prof.ID)
		})
	}
}

func TestProvider_Authenticate(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	sch := env.CreateSchool(t, "MTs Fathus Salafi")
	student := env.CreateProfile(t, "Rizki Pratama", "0051234567", access.RoleStudent, sch.ID, true)
	sess := env.SignIn(t, student)

	sc := env.Provider.Authenticate(ctx, sess.AccessToken)
	require.True(t, sc.Authenticated())
	assert.Equal(t, sess.ID, sc.SessionID)
	assert.Equal(t, student.ID, sc.Profile.ID)
	assert.True(t, sc.Can(access.ViewLessons))
	assert.False(t, sc.Can(access.ManageSchools))
	assert.Equal(t, access.Scope{SchoolID: sch.ID, StudentID: student.ID}, sc.Scope(access.Scope{}))

	for _, token := range []string{"", "not-a-jwt", sess.RefreshToken} {
		sc = env.Provider.Authenticate(ctx, token)
		assert.False(t, sc.Authenticated(), "token %q", token)
		assert.True(t, sc.Scope(access.Scope{}).Deny)
	}
}

func TestProvider_Authenticate_unreachableBackend(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	sch := env.CreateSchool(t, "MTs Fathus Salafi")
	teacher := env.CreateProfile(t, "Nur Hidayah", "198811112011012003", access.RoleTeacher, sch.ID, true)
	sess := env.SignIn(t, teacher)

	provider := auth.NewProvider(auth.ProviderOptions{
		Conf:     env.Conf,
		Logger:   env.Logger,
		Backend:  unreachableBackend{env.Backend},
		Profiles: env.ProfileSv,
		State:    env.State,
		Mailer:   env.Mailer,
	})

	_, _, err := provider.ResolveSession(ctx, sess.AccessToken)
	assert.True(t, core.IsBackendUnavailable(err), "want BackendUnavailableError, got %v", err)

	sc := provider.Authenticate(ctx, sess.AccessToken)
	assert.False(t, sc.Authenticated())
	assert.Nil(t, sc.Profile)
	assert.True(t, sc.Scope(access.Scope{}).Deny)

	// the session itself survives the outage
	assert.True(t, env.Provider.Authenticate(ctx, sess.AccessToken).Authenticated())
}

func TestProvider_DeleteUser(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	sch := env.CreateSchool(t, "MA Fathus Salafi")
	staff := env.CreateProfile(t, "Dewi Lestari", "199001012015042001", access.RoleStaff, sch.ID, true)
	first := env.SignIn(t, staff)
	second := env.SignIn(t, staff)

	require.NoError(t, env.Provider.DeleteUser(ctx, staff.ID))

	assert.False(t, env.Provider.Authenticate(ctx, first.AccessToken).Authenticated())
	assert.False(t, env.Provider.Authenticate(ctx, second.AccessToken).Authenticated())
	_, err := env.ProfileSv.GetByID(ctx, staff.ID)
	assert.True(t, core.IsNotFound(err), "want not found, got %v", err)

	_, _, err = env.Provider.SignIn(ctx, staff.IdentityNumber, testutil.Password)
	ae, ok := core.AsAuthError(err)
	require.True(t, ok, "want AuthError, got %v", err)
	assert.Equal(t, core.AuthUnknownIdentity, ae.Reason)
}

func TestProvider_SignOut(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	sch := env.CreateSchool(t, "MI Fathus Salafi")
	staff := env.CreateProfile(t, "Dewi Lestari", "199001012015042001", access.RoleStaff, sch.ID, true)

	t.Run("backend failure still clears local state", func(t *testing.T) {
		provider := auth.NewProvider(auth.ProviderOptions{
			Conf:     env.Conf,
			Logger:   env.Logger,
			Backend:  failingBackend{env.Backend},
			Profiles: env.ProfileSv,
			State:    env.State,
			Mailer:   env.Mailer,
		})
		sess := env.SignIn(t, staff)
		sc := provider.Authenticate(ctx, sess.AccessToken)
		require.True(t, sc.Authenticated())

		err := provider.SignOut(ctx, sc)
		require.Error(t, err)
		assert.True(t, core.IsBackendUnavailable(err))

		assert.False(t, sc.Authenticated())
		assert.Empty(t, sc.Token)
		cleared, err := env.State.IsCleared(ctx, sess.ID)
		require.NoError(t, err)
		assert.True(t, cleared)
		assert.False(t, provider.Authenticate(ctx, sess.AccessToken).Authenticated())
	})

	t.Run("revokes the session", func(t *testing.T) {
		sess := env.SignIn(t, staff)
		sc := env.Provider.Authenticate(ctx, sess.AccessToken)
		require.NoError(t, env.Provider.SignOut(ctx, sc))

		_, _, err := env.Backend.GetUser(ctx, sess.AccessToken)
		assert.Equal(t, auth.ErrNoSession, err)
		_, err = env.Provider.Refresh(ctx, sess.RefreshToken)
		ae, ok := core.AsAuthError(err)
		require.True(t, ok)
		assert.Equal(t, core.AuthSessionExpired, ae.Reason)
	})

	t.Run("late profile load does not resurrect the session", func(t *testing.T) {
		sess := env.SignIn(t, staff)
		sc := env.Provider.Authenticate(ctx, sess.AccessToken)
		require.NoError(t, env.Provider.SignOut(ctx, sc))

		_, err := env.Provider.LoadProfile(ctx, sess.ID, staff.ID)
		require.NoError(t, err)
		_, ok, err := env.State.GetProfile(ctx, sess.ID)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("nil context", func(t *testing.T) {
		assert.NoError(t, env.Provider.SignOut(ctx, nil))
	})
}

func TestProvider_Refresh(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	sch := env.CreateSchool(t, "RA Fathus Salafi")
	teacher := env.CreateProfile(t, "Nur Hidayah", "198811112011012003", access.RoleTeacher, sch.ID, true)
	sess := env.SignIn(t, teacher)

	refreshed, err := env.Provider.Refresh(ctx, sess.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, refreshed.ID)
	assert.NotEqual(t, sess.RefreshToken, refreshed.RefreshToken)
	assert.True(t, env.Provider.Authenticate(ctx, refreshed.AccessToken).Authenticated())

	// the old refresh token was rotated out
	_, err = env.Provider.Refresh(ctx, sess.RefreshToken)
	_, ok := core.AsAuthError(err)
	assert.True(t, ok)
}

func TestProvider_Subscription(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()

	require.NoError(t, env.Provider.Start(ctx))
	assert.Equal(t, auth.ErrAlreadyStarted, env.Provider.Start(ctx))

	sch := env.CreateSchool(t, "TK Fathus Salafi")
	teacher := env.CreateProfile(t, "Umar Said", "197912122005011004", access.RoleTeacher, sch.ID, true)
	sess := env.SignIn(t, teacher)
	require.True(t, env.Provider.Authenticate(ctx, sess.AccessToken).Authenticated())

	// another instance signs the session out
	require.NoError(t, env.Bus.Publish(ctx, auth.Event{ID: "evt-1", Type: auth.SignedOut, SessionID: sess.ID, UserID: teacher.ID, At: time.Now()}))
	assert.Eventually(t, func() bool {
		cleared, _ := env.State.IsCleared(ctx, sess.ID)
		return cleared
	}, time.Second, 10*time.Millisecond)
	assert.False(t, env.Provider.Authenticate(ctx, sess.AccessToken).Authenticated())

	require.NoError(t, env.Provider.Close())
	require.NoError(t, env.Provider.Close())
	assert.NoError(t, env.Provider.Start(ctx))
}

func TestProvider_PasswordReset(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	sch := env.CreateSchool(t, "MA Fathus Salafi")
	teacher := env.CreateProfile(t, "Hasan Basri", "198402022009011005", access.RoleTeacher, sch.ID, true)
	sess := env.SignIn(t, teacher)

	require.NoError(t, env.Provider.RequestPasswordReset(ctx, "nobody@lms.test"))
	require.Empty(t, env.Mailer.Sent())

	require.NoError(t, env.Provider.RequestPasswordReset(ctx, teacher.Email))
	sent := env.Mailer.Sent()
	require.Len(t, sent, 1)
	data, ok := sent[0].TemplateData.(map[string]string)
	require.True(t, ok)
	assert.Equal(t, teacher.IdentityNumber, data["IdentityNumber"])

	newPassword := "Semester-Genap-2025"
	err := env.Provider.ConfirmPasswordReset(ctx, data["UID"], "bad-token", newPassword)
	var ve *core.ValidationError
	require.True(t, errors.As(err, &ve), "want ValidationError, got %v", err)

	require.NoError(t, env.Provider.ConfirmPasswordReset(ctx, data["UID"], data["Token"], newPassword))

	// every session is revoked and the token cannot be replayed
	assert.False(t, env.Provider.Authenticate(ctx, sess.AccessToken).Authenticated())
	err = env.Provider.ConfirmPasswordReset(ctx, data["UID"], data["Token"], newPassword)
	assert.True(t, errors.As(err, &ve))

	_, _, err = env.Provider.SignIn(ctx, teacher.IdentityNumber, testutil.Password)
	assert.Error(t, err)
	_, _, err = env.Provider.SignIn(ctx, teacher.IdentityNumber, newPassword)
	assert.NoError(t, err)
}
