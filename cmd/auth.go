package main

import (
	"context"
	"errors"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/manhwatrack/internal/auth"
	"github.com/desertthunder/manhwatrack/internal/shared"
)

// AuthRegister creates an account and saves its token to local storage.
func (r *Runner) AuthRegister(ctx context.Context, cmd *cli.Command) error {
	accounts, err := r.accounts(ctx)
	if err != nil {
		return err
	}

	sess, err := accounts.Register(ctx, cmd.String("email"), cmd.String("name"), cmd.String("password"), cmd.String("confirm"))
	if err != nil {
		return err
	}
	return r.signIn(sess, "✓ Account created")
}

// AuthLogin signs in and saves the token to local storage.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	accounts, err := r.accounts(ctx)
	if err != nil {
		return err
	}

	sess, err := accounts.Login(ctx, cmd.String("email"), cmd.String("password"))
	if err != nil {
		return err
	}
	return r.signIn(sess, "✓ Signed in")
}

func (r *Runner) signIn(sess *auth.Session, headline string) error {
	if err := r.librarySession().SignIn(sess.Token); err != nil {
		return err
	}
	r.logger.Info("signed in", "user", sess.User.ID)
	return r.writePlain("%s as %s\n", headline, sess.User.Email)
}

// AuthLogout removes the saved token.
func (r *Runner) AuthLogout(ctx context.Context, cmd *cli.Command) error {
	if err := r.librarySession().SignOut(); err != nil {
		return err
	}
	return r.writePlain("✓ Signed out\n")
}

// AuthPassword changes the signed-in user's password.
func (r *Runner) AuthPassword(ctx context.Context, cmd *cli.Command) error {
	uid, err := r.librarySession().UserID()
	if err != nil {
		return err
	}
	accounts, err := r.accounts(ctx)
	if err != nil {
		return err
	}

	if err := accounts.ChangePassword(ctx, uid, cmd.String("current"), cmd.String("password"), cmd.String("confirm")); err != nil {
		return err
	}
	return r.writePlain("✓ Password changed\n")
}

// AuthStatus reports who is signed in.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	uid, err := r.librarySession().UserID()
	if errors.Is(err, shared.ErrNotAuthenticated) {
		return r.writePlain("✗ Not signed in\n")
	}
	if err != nil {
		return r.writePlain("✗ %s\n", auth.UserMessage(err))
	}

	store, err := r.openStore(ctx)
	if err != nil {
		return err
	}
	user, err := store.Users.Get(ctx, uid)
	if err != nil {
		return err
	}
	return r.writePlain("✓ Signed in as %s (%s)\n", user.Email, user.Name)
}
