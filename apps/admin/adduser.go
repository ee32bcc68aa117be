package main

import (
	"context"

	"github.com/fatsal/lms/core"
	"github.com/fatsal/lms/core/access"
	"github.com/fatsal/lms/core/profile"
)

type newUser struct {
	name, email, identity, role, schoolID, password string
}

// addUser creates a profile, or reactivates an existing one and sets its password.
func (cli *commandLine) addUser(nu newUser) error {
	ctx := context.Background()
	identity := core.CleanString(nu.identity)

	prof, err := cli.profiles.GetByIdentityNumber(ctx, identity)
	switch {
	case err == nil:
		if err = profile.CheckPassword(nu.password, prof.FullName, prof.IdentityNumber, prof.Email); err != nil {
			return err
		}
		active := true
		if _, err = cli.profiles.Update(ctx, prof, profile.UpdateProfile{FullName: prof.FullName, IsActive: &active}); err != nil {
			return err
		}
		return cli.provider.SetPassword(ctx, prof.ID, nu.password)
	case !core.IsNotFound(err):
		return err
	}

	role, err := access.ParseRole(nu.role)
	if err != nil {
		return err
	}
	np := profile.NewProfile{
		FullName:        nu.name,
		Email:           nu.email,
		IdentityNumber:  identity,
		Role:            role,
		SchoolID:        nu.schoolID,
		Password:        nu.password,
		PasswordConfirm: nu.password,
	}
	if err = np.Validate(cli.validate, cli.profiles); err != nil {
		return err
	}
	if err = profile.CheckPassword(np.Password, np.FullName, np.IdentityNumber, np.Email); err != nil {
		return err
	}
	_, err = cli.provider.SignUp(ctx, np)
	return err
}
