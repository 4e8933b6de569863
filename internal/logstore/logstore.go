// Package logstore owns the in-memory AppState aggregate: the single source
// of truth the UI reads from and writes to. Every mutation is written
// synchronously to the local durable store before a change notification is
// published for the sync engine.
package logstore

import (
	"fmt"
	"sort"
	"sync"

	"github.com/agonv/tapertrack/internal/models"
)

// Persister is the durable local sink mutations are flushed to before they
// are acknowledged. *localstore.Store satisfies it.
type Persister interface {
	SaveState(*models.AppState) error
}

// Store holds the aggregate. Mutations come from the app's logical thread;
// the sync engine reads snapshots from its own goroutine, so access is
// guarded by a single RWMutex.
type Store struct {
	mu        sync.RWMutex
	state     *models.AppState
	persister Persister
	index     map[string]int // date -> position in state.Logs
	changes   chan struct{}
	gen       uint64
}

// New builds a store around an initial aggregate. A nil state starts the
// default brand-new-user aggregate.
func New(state *models.AppState, persister Persister) *Store {
	if state == nil {
		state = models.NewDefaultState()
	}
	s := &Store{
		state:     state,
		persister: persister,
		changes:   make(chan struct{}, 1),
	}
	s.reindex()
	return s
}

func (s *Store) reindex() {
	s.index = make(map[string]int, len(s.state.Logs))
	for i, e := range s.state.Logs {
		s.index[e.Date] = i
	}
}

// Changes is a coalescing notification channel: at least one receive is
// pending after any mutation, bursts collapse into a single signal.
func (s *Store) Changes() <-chan struct{} {
	return s.changes
}

// Generation counts mutations since construction. The sync engine compares
// generations to tell whether local state has edits a remote overwrite
// would discard.
func (s *Store) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gen
}

func (s *Store) mutated() error {
	s.gen++
	var persistErr error
	if s.persister != nil {
		if err := s.persister.SaveState(s.state); err != nil {
			// Durability is threatened but the in-memory state is still
			// good; report, keep running, still wake the sync engine.
			persistErr = fmt.Errorf("local persist failed: %w", err)
		}
	}
	select {
	case s.changes <- struct{}{}:
	default:
	}
	return persistErr
}

// Entry returns the persisted entry for date, or a carry-forward projection:
// dose fields copied from the most recent entry strictly before date, all
// rating fields reset to the neutral defaults. The projection is not stored;
// it exists only until the caller writes an edit back. The second return
// reports whether a persisted entry was found.
func (s *Store) Entry(date string) (models.DailyLogEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i, ok := s.index[date]; ok {
		return s.state.Logs[i].Clone(), true
	}

	entry := models.DailyLogEntry{
		Date:            date,
		CompletedItems:  map[string]bool{},
		LDose:           models.StartingDose(s.state.Schedule),
		SleepHrs:        models.DefaultSleepHrs,
		NapMinutes:      models.DefaultNapMinutes,
		AnxietyLevel:    models.DefaultAnxiety,
		MoodLevel:       models.DefaultMood,
		DepressionLevel: models.DefaultDepression,
		BrainZapLevel:   models.DefaultBrainZap,
		SmokingLevel:    models.DefaultSmoking,
	}

	if prev, ok := s.latestBefore(date); ok {
		entry.LDose = prev.LDose
		entry.BDose = prev.BDose
	}
	return entry, false
}

func (s *Store) latestBefore(date string) (models.DailyLogEntry, bool) {
	best := -1
	for i, e := range s.state.Logs {
		if e.Date >= date {
			continue
		}
		if best < 0 || e.Date > s.state.Logs[best].Date {
			best = i
		}
	}
	if best < 0 {
		return models.DailyLogEntry{}, false
	}
	return s.state.Logs[best], true
}

// UpsertEntry replaces the entry with the same date, or appends. Total
// replacement: the caller passes a complete entry; partial updates are built
// by cloning the previous snapshot and patching it.
func (s *Store) UpsertEntry(entry models.DailyLogEntry) error {
	if !models.ValidDate(entry.Date) {
		return fmt.Errorf("invalid entry date %q", entry.Date)
	}
	if entry.CompletedItems == nil {
		entry.CompletedItems = map[string]bool{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if i, ok := s.index[entry.Date]; ok {
		s.state.Logs[i] = entry
	} else {
		s.state.Logs = append(s.state.Logs, entry)
		s.index[entry.Date] = len(s.state.Logs) - 1
	}
	return s.mutated()
}

// Entries returns all persisted entries in ascending date order.
func (s *Store) Entries() []models.DailyLogEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.DailyLogEntry, 0, len(s.state.Logs))
	for _, e := range s.state.Logs {
		out = append(out, e.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

// Schedule returns the taper plan in its stored order.
func (s *Store) Schedule() []models.TaperStep {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.TaperStep, len(s.state.Schedule))
	copy(out, s.state.Schedule)
	return out
}

// ReplaceSchedule swaps the whole taper plan. No merge.
func (s *Store) ReplaceSchedule(steps []models.TaperStep) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Schedule = make([]models.TaperStep, len(steps))
	copy(s.state.Schedule, steps)
	return s.mutated()
}

// StartDate returns the protocol start date, empty if unset.
func (s *Store) StartDate() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.StartDate
}

// SetStartDate replaces the protocol start date.
func (s *Store) SetStartDate(date string) error {
	if date != "" && !models.ValidDate(date) {
		return fmt.Errorf("invalid start date %q", date)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.StartDate = date
	return s.mutated()
}

// Settings returns the synced settings (notification preferences; PIN
// material never enters the aggregate).
func (s *Store) Settings() models.UserSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Settings
}

// ReplaceSettings swaps the synced settings wholesale. PIN fields are
// stripped here so they cannot leak into the synchronized document.
func (s *Store) ReplaceSettings(settings models.UserSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Settings = settings.Sanitized()
	return s.mutated()
}

// Inventory returns the current medication stock record.
func (s *Store) Inventory() models.Inventory {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Inventory
}

// ReplaceInventory swaps the stock record wholesale.
func (s *Store) ReplaceInventory(inv models.Inventory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Inventory = inv
	return s.mutated()
}

// Snapshot returns a deep copy of the aggregate for transmission.
func (s *Store) Snapshot() *models.AppState {
	snap, _ := s.SnapshotWithGeneration()
	return snap
}

// SnapshotWithGeneration returns a deep copy plus the mutation generation it
// reflects, captured atomically so the sync engine can record exactly which
// state a successful save covered.
func (s *Store) SnapshotWithGeneration() (*models.AppState, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := &models.AppState{
		Logs:      make([]models.DailyLogEntry, 0, len(s.state.Logs)),
		Schedule:  make([]models.TaperStep, len(s.state.Schedule)),
		StartDate: s.state.StartDate,
		Settings:  s.state.Settings.Sanitized(),
		Inventory: s.state.Inventory,
	}
	for _, e := range s.state.Logs {
		out.Logs = append(out.Logs, e.Clone())
	}
	copy(out.Schedule, s.state.Schedule)
	return out, s.gen
}

// ReplaceAll installs a remote document wholesale (remote-wins load). It
// persists locally but publishes no change notification, so a load never
// echoes back out as a save.
func (s *Store) ReplaceAll(state *models.AppState) error {
	if state == nil {
		return fmt.Errorf("cannot replace state with nil")
	}
	if state.Logs == nil {
		state.Logs = []models.DailyLogEntry{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
	s.state.Settings = s.state.Settings.Sanitized()
	s.reindex()
	if s.persister != nil {
		if err := s.persister.SaveState(s.state); err != nil {
			return fmt.Errorf("local persist failed: %w", err)
		}
	}
	return nil
}

// Reset drops the aggregate back to brand-new-user defaults. Used when a
// session is invalidated and in-memory entries must be cleared.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = models.NewDefaultState()
	s.reindex()
	s.gen++
}
