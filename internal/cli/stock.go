package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/agonv/tapertrack/internal/models"
)

type StockCmd struct {
	Total *float64 `help:"Set the current total stock in mg (a recount)."`
	Add   *float64 `help:"Record a refill: add this many mg and stamp today as the refill date."`
}

func (c *StockCmd) Run(ctx *Context) error {
	if err := ctx.ensureReady(context.Background()); err != nil {
		return err
	}

	changed := false
	if c.Total != nil {
		if err := ctx.Controller.SetStock(*c.Total); err != nil {
			return err
		}
		changed = true
	}
	if c.Add != nil {
		if err := ctx.Controller.AddStock(*c.Add); err != nil {
			return err
		}
		changed = true
	}

	inv := ctx.Controller.Inventory()
	fmt.Printf("Stock:        %.0f mg\n", inv.TotalMg)
	if inv.LastRefillDate != "" {
		fmt.Printf("Last refill:  %s\n", inv.LastRefillDate)
	}
	if days, ok := ctx.Controller.DaysOfStock(); ok {
		until := time.Now().AddDate(0, 0, days).Format(models.DateFormat)
		fmt.Printf("Supply:       %d days (until %s)\n", days, until)
		if days < models.RefillSoonThresholdDays {
			fmt.Println("Refill soon.")
		}
	} else {
		fmt.Println("Supply:       unknown (no current dose recorded)")
	}

	if changed {
		if err := ctx.Engine.Flush(context.Background()); err != nil {
			fmt.Printf("Stock saved locally; cloud sync failed: %v\n", err)
		}
	}
	return nil
}
