package logstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agonv/tapertrack/internal/models"
)

type recordingPersister struct {
	saves int
	last  *models.AppState
}

func (p *recordingPersister) SaveState(state *models.AppState) error {
	p.saves++
	p.last = state
	return nil
}

func entryFor(date string, lDose float64) models.DailyLogEntry {
	return models.DailyLogEntry{
		Date:           date,
		CompletedItems: map[string]bool{},
		LDose:          lDose,
		BDose:          "0.5mg",
		SleepHrs:       6,
		AnxietyLevel:   8,
		MoodLevel:      3,
		SmokingLevel:   7,
	}
}

func TestEntry_CarryForwardFromPriorDate(t *testing.T) {
	s := New(nil, nil)
	require.NoError(t, s.UpsertEntry(entryFor("2024-03-01", 5.0)))

	entry, persisted := s.Entry("2024-03-05")

	assert.False(t, persisted)
	assert.Equal(t, "2024-03-05", entry.Date)
	assert.Equal(t, 5.0, entry.LDose)
	assert.Equal(t, "0.5mg", entry.BDose)
	assert.Equal(t, models.DefaultAnxiety, entry.AnxietyLevel)
	assert.Equal(t, models.DefaultMood, entry.MoodLevel)
	assert.Equal(t, models.DefaultDepression, entry.DepressionLevel)
	assert.Equal(t, models.DefaultBrainZap, entry.BrainZapLevel)
	assert.Equal(t, models.DefaultSmoking, entry.SmokingLevel)
	assert.Equal(t, models.DefaultSleepHrs, entry.SleepHrs)
	assert.Empty(t, entry.CompletedItems)
	assert.Empty(t, entry.DailyNote)
}

func TestEntry_CarryForwardUsesMostRecentPrior(t *testing.T) {
	s := New(nil, nil)
	require.NoError(t, s.UpsertEntry(entryFor("2024-03-01", 5.0)))
	require.NoError(t, s.UpsertEntry(entryFor("2024-03-03", 4.5)))
	require.NoError(t, s.UpsertEntry(entryFor("2024-03-10", 4.0)))

	entry, _ := s.Entry("2024-03-05")
	assert.Equal(t, 4.5, entry.LDose, "should inherit from 03-03, not 03-01 or 03-10")
}

func TestEntry_NoPriorFallsBackToScheduleStartingDose(t *testing.T) {
	s := New(nil, nil)

	entry, persisted := s.Entry("2024-03-05")
	assert.False(t, persisted)
	assert.Equal(t, 5.0, entry.LDose, "default schedule starts at 5.0")
	assert.Empty(t, entry.BDose)
}

func TestEntry_ProjectionIsNotPersisted(t *testing.T) {
	s := New(nil, nil)
	require.NoError(t, s.UpsertEntry(entryFor("2024-03-01", 5.0)))

	first, _ := s.Entry("2024-03-05")
	second, _ := s.Entry("2024-03-05")

	// Equivalent but distinct projections: mutating one must not leak into
	// the other, and the store still has only the one real entry.
	first.CompletedItems["morning_0800_Vitamin C"] = true
	assert.Empty(t, second.CompletedItems)
	assert.Len(t, s.Entries(), 1)
}

func TestUpsertEntry_Idempotent(t *testing.T) {
	s := New(nil, nil)
	e := entryFor("2024-03-01", 5.0)

	require.NoError(t, s.UpsertEntry(e))
	require.NoError(t, s.UpsertEntry(e))

	entries := s.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, e.Date, entries[0].Date)
	assert.Equal(t, e.LDose, entries[0].LDose)
}

func TestUpsertEntry_ReplacesWholeEntry(t *testing.T) {
	s := New(nil, nil)
	require.NoError(t, s.UpsertEntry(entryFor("2024-03-01", 5.0)))

	replacement := entryFor("2024-03-01", 4.5)
	replacement.DailyNote = "rough day"
	require.NoError(t, s.UpsertEntry(replacement))

	entry, persisted := s.Entry("2024-03-01")
	assert.True(t, persisted)
	assert.Equal(t, 4.5, entry.LDose)
	assert.Equal(t, "rough day", entry.DailyNote)
	assert.Len(t, s.Entries(), 1)
}

func TestUpsertEntry_RejectsInvalidDate(t *testing.T) {
	s := New(nil, nil)
	err := s.UpsertEntry(entryFor("03/01/2024", 5.0))
	assert.Error(t, err)
}

func TestMutations_PersistSynchronouslyAndNotify(t *testing.T) {
	p := &recordingPersister{}
	s := New(nil, p)

	require.NoError(t, s.UpsertEntry(entryFor("2024-03-01", 5.0)))
	assert.Equal(t, 1, p.saves, "upsert must hit durable storage before returning")

	select {
	case <-s.Changes():
	default:
		t.Fatal("expected a change notification after a mutation")
	}

	require.NoError(t, s.SetStartDate("2024-03-01"))
	require.NoError(t, s.ReplaceSchedule(models.DefaultTaperSchedule()))
	require.NoError(t, s.ReplaceSettings(models.DefaultSettings()))
	assert.Equal(t, 4, p.saves)
}

func TestChanges_CoalesceBursts(t *testing.T) {
	s := New(nil, nil)
	require.NoError(t, s.UpsertEntry(entryFor("2024-03-01", 5.0)))
	require.NoError(t, s.UpsertEntry(entryFor("2024-03-02", 5.0)))
	require.NoError(t, s.UpsertEntry(entryFor("2024-03-03", 5.0)))

	<-s.Changes()
	select {
	case <-s.Changes():
		t.Fatal("burst should coalesce into a single pending notification")
	default:
	}
}

func TestReplaceAll_InstallsRemoteStateSilently(t *testing.T) {
	p := &recordingPersister{}
	s := New(nil, p)

	remote := &models.AppState{
		Logs:     []models.DailyLogEntry{entryFor("2024-02-28", 5.0)},
		Schedule: models.DefaultTaperSchedule(),
		Settings: models.UserSettings{IsPinEnabled: true, PinCode: "1234", NotificationTime: "08:00"},
	}
	require.NoError(t, s.ReplaceAll(remote))

	assert.Equal(t, 1, p.saves, "remote state must still persist locally")
	select {
	case <-s.Changes():
		t.Fatal("a load must not trigger a save notification")
	default:
	}

	// PIN material never survives into the aggregate, wherever it came from.
	assert.False(t, s.Settings().IsPinEnabled)
	assert.Empty(t, s.Settings().PinCode)

	_, persisted := s.Entry("2024-02-28")
	assert.True(t, persisted)
}

func TestSnapshot_IsSanitizedDeepCopy(t *testing.T) {
	s := New(nil, nil)
	require.NoError(t, s.UpsertEntry(entryFor("2024-03-01", 5.0)))
	require.NoError(t, s.ReplaceSettings(models.UserSettings{NotificationsEnabled: true, NotificationTime: "09:00"}))

	snap := s.Snapshot()
	snap.Logs[0].CompletedItems["x"] = true
	snap.Logs[0].LDose = 1.0

	entry, _ := s.Entry("2024-03-01")
	assert.Equal(t, 5.0, entry.LDose)
	assert.Empty(t, entry.CompletedItems)
	assert.Empty(t, snap.Settings.PinCode)
}

func TestReplaceInventory_PersistsAndNotifies(t *testing.T) {
	p := &recordingPersister{}
	s := New(nil, p)

	require.NoError(t, s.ReplaceInventory(models.Inventory{TotalMg: 300, LastRefillDate: "2024-03-01"}))

	inv := s.Inventory()
	assert.Equal(t, 300.0, inv.TotalMg)
	assert.Equal(t, "2024-03-01", inv.LastRefillDate)

	assert.Equal(t, 1, p.saves)
	select {
	case <-s.Changes():
	default:
		t.Fatal("inventory change must wake the sync engine")
	}

	snap := s.Snapshot()
	assert.Equal(t, 300.0, snap.Inventory.TotalMg, "stock travels with the synced document")
}

func TestGeneration_TracksMutations(t *testing.T) {
	s := New(nil, nil)
	g0 := s.Generation()
	require.NoError(t, s.UpsertEntry(entryFor("2024-03-01", 5.0)))
	assert.Equal(t, g0+1, s.Generation())
}
