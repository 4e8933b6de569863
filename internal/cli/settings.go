package cli

import (
	"context"
	"fmt"

	"github.com/charmbracelet/huh"
)

type SettingsShowCmd struct{}

func (c *SettingsShowCmd) Run(ctx *Context) error {
	if err := ctx.ensureReady(context.Background()); err != nil {
		return err
	}

	s := ctx.Controller.Settings()
	pin := "disabled"
	if s.IsPinEnabled {
		pin = "enabled"
	}
	notify := "disabled"
	if s.NotificationsEnabled {
		notify = fmt.Sprintf("enabled at %s", s.NotificationTime)
	}
	fmt.Printf("PIN lock:       %s\n", pin)
	fmt.Printf("Daily reminder: %s\n", notify)
	return nil
}

type SettingsPinCmd struct {
	Disable bool   `help:"Turn the PIN lock off." xor:"pin"`
	Code    string `help:"4-digit code to enable the lock with (prompted if omitted)." xor:"pin"`
}

func (c *SettingsPinCmd) Run(ctx *Context) error {
	if err := ctx.ensureReady(context.Background()); err != nil {
		return err
	}

	settings := ctx.Controller.Settings()
	if c.Disable {
		settings.IsPinEnabled = false
		settings.PinCode = ""
		if err := ctx.Controller.UpdateSettings(settings); err != nil {
			return err
		}
		fmt.Println("PIN lock disabled.")
		return nil
	}

	code := c.Code
	if code == "" {
		form := huh.NewForm(huh.NewGroup(
			huh.NewInput().
				Title("New 4-digit PIN").
				EchoMode(huh.EchoModePassword).
				Value(&code),
		))
		if err := form.Run(); err != nil {
			return err
		}
	}

	settings.IsPinEnabled = true
	settings.PinCode = code
	if err := ctx.Controller.UpdateSettings(settings); err != nil {
		return err
	}
	fmt.Println("PIN lock enabled. The code stays on this device only; there is no recovery if forgotten.")
	return nil
}

type SettingsNotifyCmd struct {
	Disable bool   `help:"Turn the daily reminder off."`
	Time    string `help:"Reminder time of day (HH:MM)." default:"09:00"`
}

func (c *SettingsNotifyCmd) Run(ctx *Context) error {
	if err := ctx.ensureReady(context.Background()); err != nil {
		return err
	}

	settings := ctx.Controller.Settings()
	if c.Disable {
		settings.NotificationsEnabled = false
	} else {
		settings.NotificationsEnabled = true
		settings.NotificationTime = c.Time
	}
	if err := ctx.Controller.UpdateSettings(settings); err != nil {
		return err
	}

	if err := ctx.Engine.Flush(context.Background()); err != nil {
		fmt.Printf("Settings saved locally; cloud sync failed: %v\n", err)
		return nil
	}
	if settings.NotificationsEnabled {
		fmt.Printf("Daily reminder set for %s.\n", settings.NotificationTime)
	} else {
		fmt.Println("Daily reminder disabled.")
	}
	return nil
}

type SyncCmd struct{}

func (c *SyncCmd) Run(ctx *Context) error {
	if err := ctx.ensureReady(context.Background()); err != nil {
		return err
	}
	if err := ctx.Engine.Flush(context.Background()); err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}
	fmt.Println("Synced.")
	return nil
}
