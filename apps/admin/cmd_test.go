package main

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fatsal/lms/core"
	"github.com/fatsal/lms/core/access"
	"github.com/fatsal/lms/testutil"
)

func setup(t *testing.T) (*commandLine, *testutil.Env) {
	env := testutil.NewEnv(t)
	return &commandLine{
		provider: env.Provider,
		profiles: env.ProfileSv,
		validate: env.Validate,
	}, env
}

func mockPassword(t *testing.T, pwd string) {
	orig := readPasswordFunc
	readPasswordFunc = func(fd int) ([]byte, error) { return []byte(pwd), nil }
	t.Cleanup(func() { readPasswordFunc = orig })
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
}

func Test_commandLine_migrate(t *testing.T) {
	cli, _ := setup(t)

	orig := gooseRunFunc
	t.Cleanup(func() { gooseRunFunc = orig })
	gooseRunFunc = func(command string, db *sql.DB, dir string, args ...string) error {
		if dir != "migrations" {
			return fmt.Errorf("unexpected migrations dir %q", dir)
		}
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to":
			if len(args) == 0 {
				return fmt.Errorf("up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		case "down-to":
			if len(args) == 0 {
				return fmt.Errorf("down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "down-to: non-int arg", args: []string{"migrate", "down-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-by-one", args: []string{"migrate", "up-by-one"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "redo", args: []string{"migrate", "redo"}},
		{name: "reset", args: []string{"migrate", "reset"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "version", args: []string{"migrate", "version"}},
		{name: "create", args: []string{"migrate", "create", "course", "sql"}},
		{name: "fix", args: []string{"migrate", "fix"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			switch {
			case tt.wantErr != nil:
				assert.Equal(t, tt.wantErr, err)
			case tt.wantErrStr != "":
				require.Error(t, err)
				assert.Equal(t, tt.wantErrStr, err.Error())
			default:
				assert.NoError(t, err)
			}
		})
	}
}

func Test_commandLine_addUser(t *testing.T) {
	cli, env := setup(t)
	ctx := context.Background()
	sch := env.CreateSchool(t, "MA Fathus Salafi")
	existing := env.CreateProfile(t, "Siti Aminah", "198903042012012002", access.RoleTeacher, sch.ID, false)

	tests := []struct {
		name    string
		args    []string
		pwd     string
		wantErr bool
	}{
		{name: "no args", args: []string{"adduser"}, wantErr: true},
		{name: "no password", args: []string{"adduser", "-name", "Admin Yayasan", "-email", "admin@lms.test", "-identity", "197001011995031001"}, wantErr: true},
		{name: "unknown role", args: []string{"adduser", "-name", "Admin Yayasan", "-email", "admin@lms.test", "-identity", "197001011995031001", "-role", "Librarian"}, pwd: "Tahfidz-Quran-2024!", wantErr: true},
		{name: "weak password", args: []string{"adduser", "-name", "Admin Yayasan", "-email", "admin@lms.test", "-identity", "197001011995031001"}, pwd: "12345678", wantErr: true},
		{name: "new admin", args: []string{"adduser", "-name", "Admin Yayasan", "-email", "admin@lms.test", "-identity", "197001011995031001"}, pwd: "Tahfidz-Quran-2024!"},
		{name: "existing user is reactivated", args: []string{"adduser", "-name", "Siti", "-email", existing.Email, "-identity", existing.IdentityNumber}, pwd: "Tahfidz-Quran-2025!"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockPassword(t, tt.pwd)
			err := cli.run(append([]string{"admin"}, tt.args...))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}

	admin, err := env.ProfileSv.GetByIdentityNumber(ctx, "197001011995031001")
	require.NoError(t, err)
	assert.Equal(t, access.RoleAdmin, admin.Role)
	_, _, err = env.Provider.SignIn(ctx, admin.IdentityNumber, "Tahfidz-Quran-2024!")
	assert.NoError(t, err)

	reactivated, err := env.ProfileSv.GetByID(ctx, existing.ID)
	require.NoError(t, err)
	assert.True(t, reactivated.IsActive)
	assert.Equal(t, access.RoleTeacher, reactivated.Role)
	_, _, err = env.Provider.SignIn(ctx, existing.IdentityNumber, "Tahfidz-Quran-2025!")
	assert.NoError(t, err)
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli, env := setup(t)
	ctx := context.Background()
	sch := env.CreateSchool(t, "MTs Fathus Salafi")
	usr := env.CreateProfile(t, "Dewi Lestari", "199001012015042001", access.RoleStaff, sch.ID, true)
	token := env.SignIn(t, usr).AccessToken

	tests := []struct {
		name    string
		args    []string
		pwd     string
		wantErr error
	}{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "identity but no password", args: []string{"resetpassword", "-identity", usr.IdentityNumber}, wantErr: errHelp},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockPassword(t, tt.pwd)
			assert.Equal(t, tt.wantErr, cli.run(append([]string{"admin"}, tt.args...)))
		})
	}

	t.Run("user not found", func(t *testing.T) {
		mockPassword(t, "Tahfidz-Quran-2024!")
		err := cli.run([]string{"admin", "resetpassword", "-identity", "000"})
		assert.True(t, core.IsNotFound(err), "got %v", err)
	})

	t.Run("reset", func(t *testing.T) {
		mockPassword(t, "Tahfidz-Quran-2024!")
		require.NoError(t, cli.run([]string{"admin", "resetpassword", "-identity", usr.IdentityNumber}))

		_, _, err := env.Provider.SignIn(ctx, usr.IdentityNumber, testutil.Password)
		assert.Error(t, err)
		_, _, err = env.Provider.SignIn(ctx, usr.IdentityNumber, "Tahfidz-Quran-2024!")
		assert.NoError(t, err)

		// sessions opened before the reset are revoked
		assert.False(t, env.Provider.Authenticate(ctx, token).Authenticated())
	})
}
