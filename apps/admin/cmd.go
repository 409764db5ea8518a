package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"syscall"

	"golang.org/x/term"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/tarpaulin/backend/core/user"
	"github.com/tarpaulin/backend/storage/database"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db     *mongo.Database
	usrSvc user.Service
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  addadmin -name NAME -email EMAIL - create an admin account; the password is prompted next")
	fmt.Println("  ensureindexes                    - create the database indexes the app relies on")
}

func (cli *commandLine) run(ctx context.Context, args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addAdminCmd := flag.NewFlagSet("addadmin", flag.ExitOnError)
	addAdminName := addAdminCmd.String("name", "Admin", "The admin's display name.")
	addAdminEmail := addAdminCmd.String("email", "", "The admin's email address. The password will be prompted next.")

	switch args[1] {
	case "addadmin":
		if err := addAdminCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addAdminEmail == "" {
			addAdminCmd.Usage()
			return errHelp
		}
		fmt.Print("Enter password:")
		pwd, err := readPasswordFunc(syscall.Stdin)
		fmt.Println()
		if err != nil {
			return err
		}
		if len(pwd) == 0 {
			addAdminCmd.Usage()
			return errHelp
		}
		return cli.addAdmin(ctx, *addAdminName, *addAdminEmail, string(pwd))
	case "ensureindexes":
		return database.EnsureIndexes(ctx, cli.db)
	default:
		cli.printUsage()
		return errHelp
	}
}
