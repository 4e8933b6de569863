package models

// Neutral defaults applied to the rating fields of a carry-forward
// projection. Dose fields are inherited from the nearest prior entry;
// everything below is reset so yesterday's mood never masquerades as today's.
const (
	DefaultSleepHrs   = 7.0
	DefaultNapMinutes = 0
	DefaultAnxiety    = 5
	DefaultMood       = 5
	DefaultDepression = 1
	DefaultBrainZap   = 0
	DefaultSmoking    = 5
)

// DefaultTaperSchedule is the stock reduction plan a new user starts from.
// It enters the schedule editable; users reshape it to their own protocol.
func DefaultTaperSchedule() []TaperStep {
	return []TaperStep{
		{Weeks: "1–2", Dose: 5.0, Notes: "Baseline: Ensure you are stable here first."},
		{Weeks: "3–4", Dose: 4.5, Notes: "~10% reduction. Hold until stable."},
		{Weeks: "5–6", Dose: 4.0, Notes: "Hold until stable."},
		{Weeks: "7–8", Dose: 3.6, Notes: "Hold until stable."},
		{Weeks: "9–10", Dose: 3.2, Notes: "Hold until stable."},
		{Weeks: "11–12", Dose: 2.9, Notes: "Hold until stable."},
		{Weeks: "13–14", Dose: 2.6, Notes: "Hold until stable."},
		{Weeks: "15–16", Dose: 2.3, Notes: "Hold until stable."},
		{Weeks: "17–18", Dose: 2.0, Notes: "Critical Zone: Reductions feel heavier here.", IsCritical: true},
		{Weeks: "19+", DoseText: "Below 2.0", Notes: "Reduce by 0.1 mg or 0.2 mg every 2–4 weeks."},
	}
}

// DailySchedule is the fixed medication timetable the adherence checkboxes
// key against.
func DailySchedule() []ScheduleItem {
	return []ScheduleItem{
		{
			ID:    "morning_0800",
			Time:  "08:00",
			Label: "Morning",
			Items: []string{
				"Lexapro (current taper dose)",
				"Benzo (full daily dose)",
				"Omega 3-6-9",
				"Vitamin D3",
				"Vitamin C",
			},
			Notes: []string{
				"Take with breakfast and water",
				"Avoid caffeine spikes",
				"Do not skip or delay doses",
			},
			RequiresBP: true,
		},
		{
			ID:    "midday_1200",
			Time:  "12:00",
			Label: "Midday",
			Items: []string{"B-Complex", "Zinc"},
			Notes: []string{
				"Take every other day",
				"Normal meals and hydration",
				"Smoking as usual during SSRI taper",
			},
		},
		{
			ID:    "afternoon_1500",
			Time:  "15:00",
			Label: "Afternoon",
			Items: []string{"L-theanine (low dose)"},
			Notes: []string{
				"Only if anxiety increases",
				"Do not stack doses",
				"Avoid if sedated",
			},
			Conditional: true,
		},
		{
			ID:    "evening_2000",
			Time:  "20:00",
			Label: "Evening",
			Items: []string{"Magnesium glycinate"},
			Notes: []string{
				"2–3 hrs before bed",
				"Avoid alcohol",
				"Reduce if daytime sedation occurs",
			},
		},
		{
			ID:    "night_bedtime",
			Time:  "Night",
			Label: "Bedtime",
			Items: []string{"Nothing"},
			Notes: []string{
				"Screens dimmed",
				"Same bedtime nightly",
			},
			RequiresBP: true,
		},
	}
}

// DefaultSettings returns the settings a fresh install starts with.
func DefaultSettings() UserSettings {
	return UserSettings{
		IsPinEnabled:         false,
		PinCode:              "",
		NotificationsEnabled: false,
		NotificationTime:     "09:00",
	}
}

// NewDefaultState builds the aggregate for a brand-new user: no logs, the
// stock taper schedule, no start date, default settings.
func NewDefaultState() *AppState {
	return &AppState{
		Logs:     []DailyLogEntry{},
		Schedule: DefaultTaperSchedule(),
		Settings: DefaultSettings(),
	}
}

// StartingDose is the dose a carry-forward projection falls back to when no
// prior entry exists: the first numeric step of the given schedule.
func StartingDose(schedule []TaperStep) float64 {
	for _, step := range schedule {
		if step.DoseText == "" {
			return step.Dose
		}
	}
	return 0
}
