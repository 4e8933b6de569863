package cli

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/agonv/tapertrack/internal/models"
)

type ShowCmd struct {
	Date string `arg:"" help:"Date to show (YYYY-MM-DD or 'today')." default:"today"`
}

func resolveDate(s string) (string, error) {
	if s == "today" {
		return models.Today(), nil
	}
	if _, err := time.Parse(models.DateFormat, s); err != nil {
		return "", fmt.Errorf("invalid date format, use YYYY-MM-DD or 'today': %w", err)
	}
	return s, nil
}

func (c *ShowCmd) Run(ctx *Context) error {
	date, err := resolveDate(c.Date)
	if err != nil {
		return err
	}
	if err := ctx.ensureReady(context.Background()); err != nil {
		return err
	}

	entry, persisted := ctx.Controller.Entry(date)
	if persisted {
		fmt.Printf("Log for %s:\n\n", date)
	} else {
		fmt.Printf("Log for %s (not yet saved, doses carried forward):\n\n", date)
	}

	fmt.Printf("  Lexapro dose:   %.1f mg\n", entry.LDose)
	if entry.BDose != "" {
		fmt.Printf("  Benzo dose:     %s\n", entry.BDose)
	}
	fmt.Printf("  Sleep:          %.1f h", entry.SleepHrs)
	if entry.NapMinutes > 0 {
		fmt.Printf(" (+%d min nap)", entry.NapMinutes)
	}
	fmt.Println()
	fmt.Printf("  Anxiety:        %d/10\n", entry.AnxietyLevel)
	fmt.Printf("  Mood:           %d/10\n", entry.MoodLevel)
	fmt.Printf("  Depression:     %d/10\n", entry.DepressionLevel)
	fmt.Printf("  Brain zaps:     %s\n", zapLabel(entry.BrainZapLevel))
	fmt.Printf("  Smoking:        %d/10\n", entry.SmokingLevel)

	printBP := func(label string, bp *models.BloodPressure) {
		if bp == nil {
			return
		}
		irregular := ""
		if bp.Irregular {
			irregular = " (irregular)"
		}
		fmt.Printf("  BP %-12s %d/%d, pulse %d%s\n", label+":", bp.Systolic, bp.Diastolic, bp.Pulse, irregular)
	}
	printBP("morning", entry.BPMorning)
	printBP("night", entry.BPNight)

	if entry.DailyNote != "" {
		fmt.Printf("  Note:           %s\n", entry.DailyNote)
	}

	if len(entry.CompletedItems) > 0 {
		fmt.Println("\n  Taken:")
		keys := make([]string, 0, len(entry.CompletedItems))
		for k, taken := range entry.CompletedItems {
			if taken {
				keys = append(keys, k)
			}
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Printf("    [x] %s\n", k)
		}
	}
	if entry.Completed {
		fmt.Println("\n  Day marked complete.")
	}
	return nil
}

func zapLabel(level int) string {
	switch level {
	case 0:
		return "none"
	case 1:
		return "mild"
	case 2:
		return "moderate"
	case 3:
		return "severe"
	default:
		return fmt.Sprintf("%d", level)
	}
}

type HistoryCmd struct {
	Days int `help:"How many recent days to list." default:"14"`
}

func (c *HistoryCmd) Run(ctx *Context) error {
	if err := ctx.ensureReady(context.Background()); err != nil {
		return err
	}

	entries := ctx.Controller.EntriesSince(c.Days)
	if len(entries) == 0 {
		fmt.Println("No log entries yet.")
		return nil
	}

	fmt.Printf("%-12s %7s %6s %5s %5s %5s\n", "Date", "L-dose", "Sleep", "Anx", "Mood", "Zaps")
	for _, e := range entries {
		fmt.Printf("%-12s %6.1f %6.1f %5d %5d %5d\n",
			e.Date, e.LDose, e.SleepHrs, e.AnxietyLevel, e.MoodLevel, e.BrainZapLevel)
	}
	return nil
}

type ScheduleCmd struct{}

func (c *ScheduleCmd) Run(ctx *Context) error {
	fmt.Println("Daily medication schedule:")
	for _, slot := range models.DailySchedule() {
		marker := ""
		if slot.Conditional {
			marker = " (only if needed)"
		}
		fmt.Printf("\n%s  %s%s\n", slot.Time, slot.Label, marker)
		for _, item := range slot.Items {
			fmt.Printf("  - %s\n", item)
		}
		if slot.RequiresBP {
			fmt.Println("  Take a blood-pressure reading.")
		}
	}
	return nil
}
