package main

import (
	"context"

	"github.com/fatsal/lms/core"
	"github.com/fatsal/lms/core/profile"
)

// resetPassword sets the password and revokes every session of the user.
func (cli *commandLine) resetPassword(identity, pwd string) error {
	ctx := context.Background()
	prof, err := cli.profiles.GetByIdentityNumber(ctx, core.CleanString(identity))
	if err != nil {
		return err
	}
	if err = profile.CheckPassword(pwd, prof.FullName, prof.IdentityNumber, prof.Email); err != nil {
		return err
	}
	return cli.provider.SetPassword(ctx, prof.ID, pwd)
}
