package main

import (
	"context"

	"github.com/pkg/errors"

	"github.com/tarpaulin/backend/core"
	"github.com/tarpaulin/backend/core/authz"
	"github.com/tarpaulin/backend/core/user"
)

// addAdmin creates an admin account, or promotes and re-keys an existing one.
func (cli *commandLine) addAdmin(ctx context.Context, name, email, pwd string) error {
	email = core.CleanString(email, true /* lower */)

	usr, err := cli.usrSvc.GetByEmail(ctx, email)
	if err != nil {
		if errors.Cause(err) != user.ErrNotFound {
			return err
		}
		_, err = cli.usrSvc.Create(ctx, user.NewUser{
			Name:     core.CleanString(name),
			Email:    email,
			Password: pwd,
			Role:     authz.RoleAdmin,
		})
		return err
	}

	_, err = cli.usrSvc.Update(ctx, usr.ID, user.UpdateUser{
		Role:     authz.RoleAdmin,
		Password: pwd,
	})
	return err
}
