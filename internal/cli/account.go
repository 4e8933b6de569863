package cli

import (
	"context"
	"fmt"

	"github.com/agonv/tapertrack/internal/auth"
)

type LoginCmd struct {
	Username string `help:"Account username." short:"u"`
	Password string `help:"Account password (prompted if omitted)." short:"p"`
}

func (c *LoginCmd) Run(ctx *Context) error {
	if err := promptCredentials(&c.Username, &c.Password); err != nil {
		return err
	}

	err := ctx.Controller.Login(context.Background(), c.Username, c.Password)
	if auth.IsRejection(err) {
		return fmt.Errorf("login rejected: %v", err)
	}
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	fmt.Printf("Logged in as %s\n", c.Username)
	return nil
}

type RegisterCmd struct {
	Username string `help:"Desired username (letters, digits, underscores)." short:"u"`
	Password string `help:"Password, at least 6 characters (prompted if omitted)." short:"p"`
}

func (c *RegisterCmd) Run(ctx *Context) error {
	if err := promptCredentials(&c.Username, &c.Password); err != nil {
		return err
	}

	err := ctx.Controller.Register(context.Background(), c.Username, c.Password)
	if auth.IsRejection(err) {
		return fmt.Errorf("registration rejected: %v", err)
	}
	if err != nil {
		return fmt.Errorf("registration failed: %w", err)
	}

	fmt.Printf("Account created, logged in as %s\n", c.Username)
	return nil
}

type LogoutCmd struct{}

func (c *LogoutCmd) Run(ctx *Context) error {
	if err := ctx.Controller.Logout(); err != nil {
		return err
	}
	fmt.Println("Logged out.")
	return nil
}

type StatusCmd struct{}

func (c *StatusCmd) Run(ctx *Context) error {
	if sess, ok := ctx.Sessions.Current(); ok {
		fmt.Printf("Logged in as:  %s\n", sess.Username)
	} else {
		fmt.Println("Logged in as:  (not logged in)")
	}
	fmt.Printf("Sync status:   %s\n", ctx.Engine.Status())

	if err := ctx.Client.Ping(context.Background()); err != nil {
		fmt.Printf("Server:        unreachable (%v)\n", err)
	} else {
		fmt.Println("Server:        ok")
	}
	return nil
}
