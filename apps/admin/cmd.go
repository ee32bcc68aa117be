package main

import (
	"errors"
	"flag"
	"fmt"
	"syscall"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"golang.org/x/term"

	"github.com/fatsal/lms/core/auth"
	"github.com/fatsal/lms/core/profile"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db       *sqlx.DB
	provider *auth.Provider
	profiles profile.ServiceInterface
	validate *validator.Validate
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  adduser -name NAME -email EMAIL -identity NUMBER [-role ROLE] [-school SCHOOL_ID] - create a user or reset an existing one")
	fmt.Println("  resetpassword -identity NUMBER - reset user's password")
	fmt.Println("  migrate COMMAND [ARGS...] - run database migrations (up, down, status, ...)")
}

func promptPassword() (string, error) {
	fmt.Print("Enter password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", err
	}
	return string(pwd), nil
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addUserCmd := flag.NewFlagSet("adduser", flag.ContinueOnError)
	addUserName := addUserCmd.String("name", "", "The user's full name.")
	addUserEmail := addUserCmd.String("email", "", "The user's email.")
	addUserIdentity := addUserCmd.String("identity", "", "The user's NIP or NISN. The password will be prompted next.")
	addUserRole := addUserCmd.String("role", "Admin", "The user's role.")
	addUserSchool := addUserCmd.String("school", "", "The user's school ID. Required by school scoped roles.")

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ContinueOnError)
	resetPasswordIdentity := resetPasswordCmd.String("identity", "", "The user's NIP or NISN. The password will be prompted next.")

	switch args[1] {
	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addUserName == "" || *addUserEmail == "" || *addUserIdentity == "" {
			addUserCmd.Usage()
			return errHelp
		}
		pwd, err := promptPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			addUserCmd.Usage()
			return errHelp
		}
		return cli.addUser(newUser{
			name:     *addUserName,
			email:    *addUserEmail,
			identity: *addUserIdentity,
			role:     *addUserRole,
			schoolID: *addUserSchool,
			password: pwd,
		})
	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *resetPasswordIdentity == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := promptPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		return cli.resetPassword(*resetPasswordIdentity, pwd)
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	default:
		cli.printUsage()
		return errHelp
	}
}
