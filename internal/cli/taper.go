package cli

import (
	"context"
	"fmt"

	"github.com/agonv/tapertrack/internal/models"
)

type TaperListCmd struct{}

func (c *TaperListCmd) Run(ctx *Context) error {
	if err := ctx.ensureReady(context.Background()); err != nil {
		return err
	}

	if start := ctx.Store.StartDate(); start != "" {
		fmt.Printf("Protocol started %s\n\n", start)
	}

	for i, step := range ctx.Store.Schedule() {
		status := " "
		if step.Done {
			status = "x"
		}
		critical := ""
		if step.IsCritical {
			critical = "  ⚠ critical phase"
		}
		fmt.Printf("[%s] %d. Weeks %-6s %-12s %s%s\n", status, i+1, step.Weeks, step.DoseLabel(), step.Notes, critical)
	}
	return nil
}

type TaperStartCmd struct {
	Date string `arg:"" help:"Protocol start date (YYYY-MM-DD or 'today')." default:"today"`
}

func (c *TaperStartCmd) Run(ctx *Context) error {
	date, err := resolveDate(c.Date)
	if err != nil {
		return err
	}
	if err := ctx.ensureReady(context.Background()); err != nil {
		return err
	}
	if err := ctx.Controller.SetStartDate(date); err != nil {
		return err
	}
	if err := ctx.Engine.Flush(context.Background()); err != nil {
		fmt.Printf("Start date saved locally; cloud sync failed: %v\n", err)
		return nil
	}
	fmt.Printf("Protocol start date set to %s.\n", date)
	return nil
}

type TaperEditCmd struct {
	Step int `arg:"" help:"Step number to edit (1-based)."`

	Weeks    *string  `help:"Weeks label, e.g. '3-4'."`
	Dose     *float64 `help:"Target dose in mg."`
	DoseText *string  `help:"Textual dose placeholder, e.g. 'Below 2.0'."`
	Notes    *string  `help:"Instructional note."`
	Critical *bool    `help:"Mark as a critical phase."`
	Done     *bool    `help:"Mark the step completed."`
}

func (c *TaperEditCmd) Run(ctx *Context) error {
	if err := ctx.ensureReady(context.Background()); err != nil {
		return err
	}

	steps := ctx.Store.Schedule()
	if c.Step < 1 || c.Step > len(steps) {
		return fmt.Errorf("step %d out of range (1-%d)", c.Step, len(steps))
	}
	step := &steps[c.Step-1]
	if c.Weeks != nil {
		step.Weeks = *c.Weeks
	}
	if c.Dose != nil {
		step.Dose = *c.Dose
		step.DoseText = ""
	}
	if c.DoseText != nil {
		step.DoseText = *c.DoseText
	}
	if c.Notes != nil {
		step.Notes = *c.Notes
	}
	if c.Critical != nil {
		step.IsCritical = *c.Critical
	}
	if c.Done != nil {
		step.Done = *c.Done
	}

	if err := ctx.Controller.ReplaceSchedule(steps); err != nil {
		return err
	}
	return flushAfterEdit(ctx, fmt.Sprintf("Updated taper step %d.", c.Step))
}

type TaperAddCmd struct {
	Weeks    string  `help:"Weeks label." required:""`
	Dose     float64 `help:"Target dose in mg."`
	DoseText string  `help:"Textual dose placeholder (overrides --dose display)."`
	Notes    string  `help:"Instructional note."`
	Critical bool    `help:"Mark as a critical phase."`
}

func (c *TaperAddCmd) Run(ctx *Context) error {
	if err := ctx.ensureReady(context.Background()); err != nil {
		return err
	}

	steps := append(ctx.Store.Schedule(), models.TaperStep{
		Weeks:      c.Weeks,
		Dose:       c.Dose,
		DoseText:   c.DoseText,
		Notes:      c.Notes,
		IsCritical: c.Critical,
	})
	if err := ctx.Controller.ReplaceSchedule(steps); err != nil {
		return err
	}
	return flushAfterEdit(ctx, "Added taper step.")
}

type TaperRemoveCmd struct {
	Step int `arg:"" help:"Step number to remove (1-based)."`
}

func (c *TaperRemoveCmd) Run(ctx *Context) error {
	if err := ctx.ensureReady(context.Background()); err != nil {
		return err
	}

	steps := ctx.Store.Schedule()
	if c.Step < 1 || c.Step > len(steps) {
		return fmt.Errorf("step %d out of range (1-%d)", c.Step, len(steps))
	}
	steps = append(steps[:c.Step-1], steps[c.Step:]...)
	if err := ctx.Controller.ReplaceSchedule(steps); err != nil {
		return err
	}
	return flushAfterEdit(ctx, fmt.Sprintf("Removed taper step %d.", c.Step))
}

func flushAfterEdit(ctx *Context, message string) error {
	if err := ctx.Engine.Flush(context.Background()); err != nil {
		fmt.Printf("%s Saved locally; cloud sync failed: %v\n", message, err)
		return nil
	}
	fmt.Println(message)
	return nil
}
