package models

import (
	"fmt"
	"time"
)

// DateFormat is the canonical key format for daily entries.
const DateFormat = "2006-01-02"

// BloodPressure is a single cuff reading taken in the morning or at night.
type BloodPressure struct {
	Systolic  int  `json:"sys"`
	Diastolic int  `json:"dia"`
	Pulse     int  `json:"pulse"`
	Irregular bool `json:"irregular,omitempty"`
}

// DailyLogEntry is one day's medication adherence and wellness log.
// Exactly one entry exists per date; edits replace the whole entry.
type DailyLogEntry struct {
	Date string `json:"date"` // YYYY-MM-DD

	// CompletedItems maps "<scheduleSlotID>_<itemName>" to taken/not-taken.
	CompletedItems map[string]bool `json:"completedItems"`

	// Doses. LDose is the current taper dose in mg; BDose is free text
	// because some regimens are described, not measured.
	LDose float64 `json:"lDose"`
	BDose string  `json:"bDose"`

	SleepHrs   float64 `json:"sleepHrs"`
	NapMinutes int     `json:"napMinutes,omitempty"`

	// Ratings. Anxiety, mood, depression and smoking are 1-10;
	// brain zaps are 0=none, 1=mild, 2=moderate, 3=severe.
	AnxietyLevel    int `json:"anxietyLevel"`
	MoodLevel       int `json:"moodLevel"`
	DepressionLevel int `json:"depressionLevel,omitempty"`
	BrainZapLevel   int `json:"brainZapLevel,omitempty"`
	SmokingLevel    int `json:"smokingLevel"`

	BPMorning *BloodPressure `json:"bpMorning,omitempty"`
	BPNight   *BloodPressure `json:"bpNight,omitempty"`

	DailyNote string `json:"dailyNote,omitempty"`
	Completed bool   `json:"completed,omitempty"`
}

// Clone returns a deep copy. Entries are replaced wholesale on edit, so
// callers patch a clone of the previous snapshot rather than mutate shared state.
func (e DailyLogEntry) Clone() DailyLogEntry {
	out := e
	out.CompletedItems = make(map[string]bool, len(e.CompletedItems))
	for k, v := range e.CompletedItems {
		out.CompletedItems[k] = v
	}
	if e.BPMorning != nil {
		bp := *e.BPMorning
		out.BPMorning = &bp
	}
	if e.BPNight != nil {
		bp := *e.BPNight
		out.BPNight = &bp
	}
	return out
}

// TaperStep is one phase of the dose-reduction plan. Steps are kept in
// insertion order; the user may add, remove and edit them freely.
type TaperStep struct {
	Weeks string `json:"weeks"`
	// Dose is the numeric target; DoseText overrides the display when the
	// phase has no single number (e.g. "Below 2.0").
	Dose       float64 `json:"dose"`
	DoseText   string  `json:"doseText,omitempty"`
	Notes      string  `json:"notes"`
	IsCritical bool    `json:"isCritical,omitempty"`
	Done       bool    `json:"done,omitempty"`
}

// DoseLabel renders the step's target dose for display.
func (s TaperStep) DoseLabel() string {
	if s.DoseText != "" {
		return s.DoseText
	}
	return fmt.Sprintf("%.1f mg", s.Dose)
}

// ScheduleItem is one slot of the fixed daily medication schedule.
type ScheduleItem struct {
	ID          string   `json:"id"`
	Time        string   `json:"time"` // HH:MM or a label like "Night"
	Label       string   `json:"label"`
	Items       []string `json:"items"`
	Notes       []string `json:"notes"`
	RequiresBP  bool     `json:"requiresBP,omitempty"`
	Conditional bool     `json:"conditional,omitempty"`
}

// CompletionKey builds the CompletedItems key for an item within this slot.
func (s ScheduleItem) CompletionKey(item string) string {
	return s.ID + "_" + item
}

// UserSettings is the per-user singleton. The PIN gates local UI visibility
// only; it is stored locally and stripped before any network transmission.
type UserSettings struct {
	IsPinEnabled         bool   `json:"isPinEnabled"`
	PinCode              string `json:"pinCode,omitempty"`
	NotificationsEnabled bool   `json:"notificationsEnabled"`
	NotificationTime     string `json:"notificationTime"` // HH:MM
}

// Sanitized returns a copy safe to transmit: PIN material removed.
func (s UserSettings) Sanitized() UserSettings {
	out := s
	out.IsPinEnabled = false
	out.PinCode = ""
	return out
}

// Inventory tracks remaining medication stock in milligrams, entered as a
// running total (e.g. 30 pills x 10mg = 300).
type Inventory struct {
	TotalMg        float64 `json:"totalMg"`
	LastRefillDate string  `json:"lastRefillDate,omitempty"` // YYYY-MM-DD
}

// DaysRemaining estimates how many days the stock lasts at the given daily
// dose. Zero or unknown dose means no estimate.
func (inv Inventory) DaysRemaining(dailyDose float64) int {
	if dailyDose <= 0 {
		return 0
	}
	return int(inv.TotalMg / dailyDose)
}

// RefillSoonThresholdDays is the supply level below which the stock display
// warns the user to refill.
const RefillSoonThresholdDays = 7

// Session is the authenticated identity: an opaque bearer token plus the
// display username. A zero Session means unauthenticated.
type Session struct {
	Token    string `json:"token"`
	Username string `json:"username"`
}

// Valid reports whether the session carries a credential.
func (s Session) Valid() bool {
	return s.Token != ""
}

// AppState is the aggregate root: the whole document synchronized with the
// backend. It is persisted and transmitted as one JSON document, never partially.
type AppState struct {
	Logs      []DailyLogEntry `json:"logs"`
	Schedule  []TaperStep     `json:"schedule"`
	StartDate string          `json:"startDate,omitempty"`
	Settings  UserSettings    `json:"settings"`
	Inventory Inventory       `json:"inventory"`
}

// ValidDate reports whether s is a well-formed YYYY-MM-DD date.
func ValidDate(s string) bool {
	_, err := time.Parse(DateFormat, s)
	return err == nil
}

// AddDays shifts a YYYY-MM-DD date by n days (n may be negative).
func AddDays(date string, n int) (string, error) {
	t, err := time.Parse(DateFormat, date)
	if err != nil {
		return "", fmt.Errorf("invalid date %q: %w", date, err)
	}
	return t.AddDate(0, 0, n).Format(DateFormat), nil
}

// Today returns the current date in the local time zone.
func Today() string {
	return time.Now().Format(DateFormat)
}
