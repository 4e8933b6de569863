package app

import (
	"fmt"

	"github.com/agonv/tapertrack/internal/models"
)

// EntryPatch names the fields an edit changes. ApplyEntryPatch clones the
// previous snapshot (or the carry-forward projection) and applies only the
// named changes, so an edit can never silently drop fields it did not touch.
type EntryPatch struct {
	LDose           *float64
	BDose           *string
	SleepHrs        *float64
	NapMinutes      *int
	AnxietyLevel    *int
	MoodLevel       *int
	DepressionLevel *int
	BrainZapLevel   *int
	SmokingLevel    *int
	BPMorning       *models.BloodPressure
	BPNight         *models.BloodPressure
	DailyNote       *string
	Completed       *bool

	// CompletedItems entries merge into the adherence map by key.
	CompletedItems map[string]bool
}

func checkRange(name string, v, lo, hi int) error {
	if v < lo || v > hi {
		return fmt.Errorf("%s must be between %d and %d", name, lo, hi)
	}
	return nil
}

func (p EntryPatch) validate() error {
	if p.AnxietyLevel != nil {
		if err := checkRange("anxiety", *p.AnxietyLevel, 1, 10); err != nil {
			return err
		}
	}
	if p.MoodLevel != nil {
		if err := checkRange("mood", *p.MoodLevel, 1, 10); err != nil {
			return err
		}
	}
	if p.DepressionLevel != nil {
		if err := checkRange("depression", *p.DepressionLevel, 1, 10); err != nil {
			return err
		}
	}
	if p.BrainZapLevel != nil {
		if err := checkRange("brain zaps", *p.BrainZapLevel, 0, 3); err != nil {
			return err
		}
	}
	if p.SmokingLevel != nil {
		if err := checkRange("smoking", *p.SmokingLevel, 1, 10); err != nil {
			return err
		}
	}
	if p.SleepHrs != nil && (*p.SleepHrs < 0 || *p.SleepHrs > 24) {
		return fmt.Errorf("sleep hours must be between 0 and 24")
	}
	if p.NapMinutes != nil && *p.NapMinutes < 0 {
		return fmt.Errorf("nap minutes cannot be negative")
	}
	return nil
}

func (p EntryPatch) applyTo(e *models.DailyLogEntry) {
	if p.LDose != nil {
		e.LDose = *p.LDose
	}
	if p.BDose != nil {
		e.BDose = *p.BDose
	}
	if p.SleepHrs != nil {
		e.SleepHrs = *p.SleepHrs
	}
	if p.NapMinutes != nil {
		e.NapMinutes = *p.NapMinutes
	}
	if p.AnxietyLevel != nil {
		e.AnxietyLevel = *p.AnxietyLevel
	}
	if p.MoodLevel != nil {
		e.MoodLevel = *p.MoodLevel
	}
	if p.DepressionLevel != nil {
		e.DepressionLevel = *p.DepressionLevel
	}
	if p.BrainZapLevel != nil {
		e.BrainZapLevel = *p.BrainZapLevel
	}
	if p.SmokingLevel != nil {
		e.SmokingLevel = *p.SmokingLevel
	}
	if p.BPMorning != nil {
		bp := *p.BPMorning
		e.BPMorning = &bp
	}
	if p.BPNight != nil {
		bp := *p.BPNight
		e.BPNight = &bp
	}
	if p.DailyNote != nil {
		e.DailyNote = *p.DailyNote
	}
	if p.Completed != nil {
		e.Completed = *p.Completed
	}
	for k, v := range p.CompletedItems {
		e.CompletedItems[k] = v
	}
}

// ApplyEntryPatch materializes the entry for date (first write persists a
// carry-forward projection) and upserts it with the patch applied.
func (c *Controller) ApplyEntryPatch(date string, patch EntryPatch) (models.DailyLogEntry, error) {
	if !models.ValidDate(date) {
		return models.DailyLogEntry{}, fmt.Errorf("invalid date %q", date)
	}
	if err := patch.validate(); err != nil {
		return models.DailyLogEntry{}, err
	}

	entry, _ := c.store.Entry(date)
	patch.applyTo(&entry)
	if err := c.store.UpsertEntry(entry); err != nil {
		return models.DailyLogEntry{}, err
	}
	return entry, nil
}
