package cli

import (
	"context"
	"fmt"

	"github.com/charmbracelet/huh"

	"github.com/agonv/tapertrack/internal/api"
	"github.com/agonv/tapertrack/internal/app"
	"github.com/agonv/tapertrack/internal/auth"
	"github.com/agonv/tapertrack/internal/localstore"
	"github.com/agonv/tapertrack/internal/logstore"
	"github.com/agonv/tapertrack/internal/syncengine"
)

// Context is the shared wiring every command receives.
type Context struct {
	Controller *app.Controller
	Store      *logstore.Store
	Engine     *syncengine.Engine
	Sessions   *auth.Manager
	Client     *api.Client
	Local      *localstore.Store
	DataDir    string
}

// ensureReady resumes the session, pulls remote state and clears the PIN
// gate. Commands that read or write log data call this first.
func (c *Context) ensureReady(ctx context.Context) error {
	if err := c.Controller.Start(ctx); err != nil {
		return err
	}

	switch c.Controller.Phase() {
	case app.PhaseUnauthenticated:
		return fmt.Errorf("not logged in, run 'tapertrack login' first")
	case app.PhaseLocked:
		if err := c.promptUnlock(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Context) promptUnlock() error {
	for attempts := 0; attempts < 3; attempts++ {
		var code string
		form := huh.NewForm(huh.NewGroup(
			huh.NewInput().
				Title("Enter PIN").
				EchoMode(huh.EchoModePassword).
				Value(&code),
		))
		if err := form.Run(); err != nil {
			return err
		}
		if err := c.Controller.Unlock(code); err == nil {
			return nil
		}
		fmt.Println("Incorrect code.")
	}
	return fmt.Errorf("too many incorrect PIN attempts")
}

func promptCredentials(username, password *string) error {
	var fields []huh.Field
	if *username == "" {
		fields = append(fields, huh.NewInput().Title("Username").Value(username))
	}
	if *password == "" {
		fields = append(fields, huh.NewInput().
			Title("Password").
			EchoMode(huh.EchoModePassword).
			Value(password))
	}
	if len(fields) == 0 {
		return nil
	}
	return huh.NewForm(huh.NewGroup(fields...)).Run()
}
