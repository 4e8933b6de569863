package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/alecthomas/kong"
	"github.com/rs/zerolog"

	"github.com/agonv/tapertrack/internal/api"
	"github.com/agonv/tapertrack/internal/app"
	"github.com/agonv/tapertrack/internal/auth"
	"github.com/agonv/tapertrack/internal/cli"
	"github.com/agonv/tapertrack/internal/localstore"
	"github.com/agonv/tapertrack/internal/logstore"
	"github.com/agonv/tapertrack/internal/syncengine"
)

var CLI struct {
	Version kong.VersionFlag
	DataDir string `help:"Local data directory." type:"path" default:"~/.config/tapertrack" env:"TAPERTRACK_DATA_DIR"`
	Server  string `help:"Sync server base URL." default:"http://localhost:8080" env:"TAPERTRACK_SERVER"`

	Serve cli.ServeCmd `cmd:"" help:"Run the sync backend server."`

	Login    cli.LoginCmd    `cmd:"" help:"Log in to the sync server."`
	Register cli.RegisterCmd `cmd:"" help:"Create an account."`
	Logout   cli.LogoutCmd   `cmd:"" help:"Log out and clear the stored session."`
	Status   cli.StatusCmd   `cmd:"" help:"Show session and sync status."`

	Show     cli.ShowCmd     `cmd:"" help:"Show a day's log." default:"1"`
	Log      cli.LogCmd      `cmd:"" help:"Record or update a day's log."`
	History  cli.HistoryCmd  `cmd:"" help:"List recent log entries."`
	Schedule cli.ScheduleCmd `cmd:"" help:"Print the daily medication schedule."`

	Stock cli.StockCmd `cmd:"" help:"Show or update medication stock and days of supply left."`

	Taper struct {
		List   cli.TaperListCmd   `cmd:"" help:"Show the taper plan." default:"1"`
		Start  cli.TaperStartCmd  `cmd:"" help:"Set the protocol start date."`
		Edit   cli.TaperEditCmd   `cmd:"" help:"Edit a taper step."`
		Add    cli.TaperAddCmd    `cmd:"" help:"Append a taper step."`
		Remove cli.TaperRemoveCmd `cmd:"" help:"Remove a taper step."`
	} `cmd:"" help:"Manage the taper plan."`

	Settings struct {
		Show   cli.SettingsShowCmd   `cmd:"" help:"Show current settings." default:"1"`
		Pin    cli.SettingsPinCmd    `cmd:"" help:"Enable or disable the local PIN lock."`
		Notify cli.SettingsNotifyCmd `cmd:"" help:"Configure the daily reminder."`
	} `cmd:"" help:"Manage settings."`

	Sync cli.SyncCmd `cmd:"" help:"Push local state to the server now."`
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("tapertrack"),
		kong.Description("Medication-taper and wellness tracker with cloud sync"),
		kong.UsageOnError(),
		kong.Vars{"version": "v0.3.0"},
	)

	local, err := localstore.New(filepath.Join(CLI.DataDir, "local"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// Instant paint before any network call: seed the store from the last
	// persisted aggregate if there is one.
	state, err := local.LoadState()
	if err != nil && !errors.Is(err, localstore.ErrNotFound) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	store := logstore.New(state, local)

	client := api.NewClient(CLI.Server, 0)
	sessions := auth.NewManager(client, local)

	logger := zerolog.New(os.Stderr).With().Timestamp().Logger().Level(zerolog.WarnLevel)
	engine := syncengine.New(store, client, sessions, syncengine.Options{Logger: logger})

	controller := app.New(store, engine, sessions, local)
	engine.SetOnUnauthorized(controller.HandleUnauthorized)

	appCtx := &cli.Context{
		Controller: controller,
		Store:      store,
		Engine:     engine,
		Sessions:   sessions,
		Client:     client,
		Local:      local,
		DataDir:    CLI.DataDir,
	}

	if err := ctx.Run(appCtx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
