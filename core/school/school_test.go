package school_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fatsal/lms/core"
	"github.com/fatsal/lms/core/access"
	"github.com/fatsal/lms/core/school"
	"github.com/fatsal/lms/testutil"
)

func TestNewSchool_Validate(t *testing.T) {
	validate, _ := core.NewValidator()

	tests := []struct {
		name    string
		ns      school.NewSchool
		wantErr bool
	}{
		{name: "valid", ns: school.NewSchool{Name: " MA Fathus Salafi ", Level: "MA"}},
		{name: "unknown level", ns: school.NewSchool{Name: "SMA Fathus Salafi", Level: "SMA"}, wantErr: true},
		{name: "short name", ns: school.NewSchool{Name: "MA", Level: "MA"}, wantErr: true},
		{name: "missing level", ns: school.NewSchool{Name: "MA Fathus Salafi"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ns := tt.ns
			err := ns.Validate(validate)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "MA Fathus Salafi", ns.Name)
		})
	}
}

func TestService_Scope(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	ma := env.CreateSchool(t, "MA Fathus Salafi")
	mts := env.CreateSchool(t, "MTs Fathus Salafi")

	schools, err := env.SchoolSv.Query(ctx, access.Scope{})
	require.NoError(t, err)
	require.Len(t, schools, 2)
	assert.Equal(t, ma.ID, schools[0].ID)

	scope := access.ScopeFilter(access.Principal{Role: access.RolePrincipal, SchoolID: mts.ID}, access.Scope{})
	schools, err = env.SchoolSv.Query(ctx, scope)
	require.NoError(t, err)
	require.Len(t, schools, 1)
	assert.Equal(t, mts.ID, schools[0].ID)

	_, err = env.SchoolSv.GetByID(ctx, ma.ID, scope)
	assert.True(t, core.IsNotFound(err))

	n, err := env.SchoolSv.Count(ctx, access.Scope{Deny: true})
	require.NoError(t, err)
	assert.Zero(t, n)

	names, err := env.SchoolSv.Names(ctx, access.Scope{})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{ma.ID: ma.Name, mts.ID: mts.Name}, names)
}
