package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/agonv/tapertrack/internal/app"
	"github.com/agonv/tapertrack/internal/models"
)

type LogCmd struct {
	Date string `help:"Date to edit (YYYY-MM-DD or 'today')." default:"today"`

	LDose      *float64 `help:"Lexapro dose in mg."`
	BDose      *string  `help:"Benzo dose (free text)."`
	Sleep      *float64 `help:"Hours slept last night."`
	Nap        *int     `help:"Nap duration in minutes."`
	Anxiety    *int     `help:"Anxiety level 1-10."`
	Mood       *int     `help:"Mood level 1-10."`
	Depression *int     `help:"Depression level 1-10."`
	Zaps       *int     `help:"Brain-zap severity 0-3."`
	Smoking    *int     `help:"Smoking/craving level 1-10."`
	Note       *string  `help:"Free-text note for the day."`

	BPMorning string `help:"Morning blood pressure as sys/dia/pulse, e.g. 120/80/65."`
	BPNight   string `help:"Night blood pressure as sys/dia/pulse."`

	Take []string `help:"Mark schedule items taken, as slotID:item (repeatable)." sep:"none"`
	Skip []string `help:"Mark schedule items not taken, as slotID:item (repeatable)." sep:"none"`

	Complete bool `help:"Mark the whole day complete."`
}

func parseBP(s string) (*models.BloodPressure, error) {
	parts := strings.Split(s, "/")
	if len(parts) != 3 {
		return nil, fmt.Errorf("expected sys/dia/pulse, got %q", s)
	}
	vals := make([]int, 3)
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("invalid blood pressure %q: %w", s, err)
		}
		vals[i] = v
	}
	return &models.BloodPressure{Systolic: vals[0], Diastolic: vals[1], Pulse: vals[2]}, nil
}

// completionKey accepts "slotID:item" or a raw map key.
func completionKey(s string) string {
	if slot, item, ok := strings.Cut(s, ":"); ok {
		return slot + "_" + item
	}
	return s
}

func (c *LogCmd) Run(ctx *Context) error {
	date, err := resolveDate(c.Date)
	if err != nil {
		return err
	}
	if err := ctx.ensureReady(context.Background()); err != nil {
		return err
	}

	patch := app.EntryPatch{
		LDose:           c.LDose,
		BDose:           c.BDose,
		SleepHrs:        c.Sleep,
		NapMinutes:      c.Nap,
		AnxietyLevel:    c.Anxiety,
		MoodLevel:       c.Mood,
		DepressionLevel: c.Depression,
		BrainZapLevel:   c.Zaps,
		SmokingLevel:    c.Smoking,
		DailyNote:       c.Note,
	}

	if c.BPMorning != "" {
		bp, err := parseBP(c.BPMorning)
		if err != nil {
			return err
		}
		patch.BPMorning = bp
	}
	if c.BPNight != "" {
		bp, err := parseBP(c.BPNight)
		if err != nil {
			return err
		}
		patch.BPNight = bp
	}

	if len(c.Take) > 0 || len(c.Skip) > 0 {
		patch.CompletedItems = map[string]bool{}
		for _, item := range c.Take {
			patch.CompletedItems[completionKey(item)] = true
		}
		for _, item := range c.Skip {
			patch.CompletedItems[completionKey(item)] = false
		}
	}
	if c.Complete {
		done := true
		patch.Completed = &done
	}

	if _, err := ctx.Controller.ApplyEntryPatch(date, patch); err != nil {
		return err
	}

	if err := ctx.Engine.Flush(context.Background()); err != nil {
		fmt.Printf("Saved locally for %s; cloud sync failed: %v\n", date, err)
		return nil
	}
	fmt.Printf("Saved log for %s.\n", date)
	return nil
}
