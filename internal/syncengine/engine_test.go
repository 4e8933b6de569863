package syncengine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agonv/tapertrack/internal/logstore"
	"github.com/agonv/tapertrack/internal/models"
)

type fakeBackend struct {
	mu        sync.Mutex
	saved     []*models.AppState
	saveErr   error
	loadState *models.AppState
	loadErr   error

	// gate, when set, blocks Save until it is closed.
	gate chan struct{}
	// started receives once per Save as it begins.
	started chan struct{}
	// onLoad runs before Load returns; used to simulate a session change
	// while a request is in flight.
	onLoad func()
}

func (b *fakeBackend) Save(ctx context.Context, session models.Session, state *models.AppState) error {
	b.mu.Lock()
	gate := b.gate
	started := b.started
	err := b.saveErr
	b.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if gate != nil {
		<-gate
	}

	b.mu.Lock()
	b.saved = append(b.saved, state)
	b.mu.Unlock()
	return err
}

func (b *fakeBackend) Load(ctx context.Context, session models.Session) (*models.AppState, error) {
	if b.onLoad != nil {
		b.onLoad()
	}
	if b.loadErr != nil {
		return nil, b.loadErr
	}
	return b.loadState, nil
}

func (b *fakeBackend) saveCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.saved)
}

func (b *fakeBackend) savedAt(i int) *models.AppState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.saved[i]
}

func (b *fakeBackend) setSaveErr(err error) {
	b.mu.Lock()
	b.saveErr = err
	b.mu.Unlock()
}

type fakeSessions struct {
	mu            sync.Mutex
	session       models.Session
	invalidations int
}

func (s *fakeSessions) Current() (models.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session, s.session.Valid()
}

func (s *fakeSessions) Invalidate() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = models.Session{}
	s.invalidations++
	return nil
}

func (s *fakeSessions) set(sess models.Session) {
	s.mu.Lock()
	s.session = sess
	s.mu.Unlock()
}

func (s *fakeSessions) invalidated() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.invalidations
}

func entryFor(date string) models.DailyLogEntry {
	return models.DailyLogEntry{
		Date:           date,
		CompletedItems: map[string]bool{},
		LDose:          5.0,
		SleepHrs:       7,
		AnxietyLevel:   5,
		MoodLevel:      5,
		SmokingLevel:   5,
	}
}

func newTestEngine(t *testing.T, backend *fakeBackend, opts Options) (*Engine, *logstore.Store, *fakeSessions) {
	t.Helper()
	store := logstore.New(nil, nil)
	sessions := &fakeSessions{session: models.Session{Token: "tok", Username: "agon"}}
	if opts.Debounce == 0 {
		opts.Debounce = 80 * time.Millisecond
	}
	if opts.Timeout == 0 {
		opts.Timeout = time.Second
	}
	return New(store, backend, sessions, opts), store, sessions
}

func runEngine(t *testing.T, e *Engine) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	go e.Run(ctx)
	return cancel
}

func eventually(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestRun_DebounceCoalescesBurstIntoOneSave(t *testing.T) {
	backend := &fakeBackend{}
	engine, store, _ := newTestEngine(t, backend, Options{})
	cancel := runEngine(t, engine)
	defer cancel()

	// Three edits faster than the debounce: one save, carrying all three.
	require.NoError(t, store.UpsertEntry(entryFor("2024-03-01")))
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, store.UpsertEntry(entryFor("2024-03-02")))
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, store.UpsertEntry(entryFor("2024-03-03")))

	eventually(t, time.Second, func() bool { return backend.saveCount() == 1 })
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, 1, backend.saveCount(), "burst must coalesce into exactly one save")
	assert.Len(t, backend.savedAt(0).Logs, 3, "the save carries state as of the last mutation")
	assert.Equal(t, StatusSuccess, engine.Status())
}

func TestRun_EditsToSameDateMergeIntoOneSave(t *testing.T) {
	backend := &fakeBackend{}
	engine, store, _ := newTestEngine(t, backend, Options{})
	cancel := runEngine(t, engine)
	defer cancel()

	first := entryFor("2024-03-01")
	first.AnxietyLevel = 8
	require.NoError(t, store.UpsertEntry(first))

	time.Sleep(20 * time.Millisecond)

	second := first.Clone()
	second.DailyNote = "still shaky"
	require.NoError(t, store.UpsertEntry(second))

	eventually(t, time.Second, func() bool { return backend.saveCount() == 1 })
	time.Sleep(150 * time.Millisecond)
	require.Equal(t, 1, backend.saveCount())

	saved := backend.savedAt(0)
	require.Len(t, saved.Logs, 1)
	assert.Equal(t, 8, saved.Logs[0].AnxietyLevel)
	assert.Equal(t, "still shaky", saved.Logs[0].DailyNote)
}

func TestRun_AtMostOneInFlightThenResendLatest(t *testing.T) {
	gate := make(chan struct{})
	backend := &fakeBackend{gate: gate, started: make(chan struct{}, 2)}
	engine, store, _ := newTestEngine(t, backend, Options{})
	cancel := runEngine(t, engine)
	defer cancel()

	require.NoError(t, store.UpsertEntry(entryFor("2024-03-01")))
	<-backend.started // save #1 is in flight, blocked

	// Two mutations while the save is stuck; their debounce fires during
	// the flight and must queue exactly one resend.
	require.NoError(t, store.UpsertEntry(entryFor("2024-03-02")))
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, store.UpsertEntry(entryFor("2024-03-03")))
	time.Sleep(150 * time.Millisecond)

	assert.Equal(t, 0, backend.saveCount(), "no second request while one is in flight")

	close(gate)
	<-backend.started // the queued resend

	eventually(t, time.Second, func() bool { return backend.saveCount() == 2 })
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, 2, backend.saveCount(), "exactly one subsequent save after the first resolves")
	assert.Len(t, backend.savedAt(0).Logs, 1)
	assert.Len(t, backend.savedAt(1).Logs, 3, "the resend carries the latest state, not an intermediate one")
}

func TestRun_SaveFailureIsTerminalUntilNextMutation(t *testing.T) {
	backend := &fakeBackend{saveErr: errors.New("connection reset")}
	engine, store, _ := newTestEngine(t, backend, Options{})
	cancel := runEngine(t, engine)
	defer cancel()

	require.NoError(t, store.UpsertEntry(entryFor("2024-03-01")))
	eventually(t, time.Second, func() bool { return backend.saveCount() == 1 })
	assert.Equal(t, StatusError, engine.Status())

	// No scheduled retry, no backoff.
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, 1, backend.saveCount())

	// The next mutation's debounce cycle is the only retry path.
	backend.setSaveErr(nil)
	require.NoError(t, store.UpsertEntry(entryFor("2024-03-02")))
	eventually(t, time.Second, func() bool { return backend.saveCount() == 2 })
	eventually(t, time.Second, func() bool { return engine.Status() == StatusSuccess })
}

func TestRun_UnauthorizedSaveInvalidatesSession(t *testing.T) {
	backend := &fakeBackend{saveErr: ErrUnauthorized}
	engine, store, sessions := newTestEngine(t, backend, Options{})

	var callbacks int
	var mu sync.Mutex
	engine.SetOnUnauthorized(func() {
		mu.Lock()
		callbacks++
		mu.Unlock()
	})

	cancel := runEngine(t, engine)
	defer cancel()

	require.NoError(t, store.UpsertEntry(entryFor("2024-03-01")))
	eventually(t, time.Second, func() bool { return sessions.invalidated() == 1 })
	eventually(t, time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return callbacks == 1
	})

	// The token is never retried.
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, 1, backend.saveCount())
}

func TestLoad_RemoteWinsOverwritesLocal(t *testing.T) {
	remote := &models.AppState{
		Logs:     []models.DailyLogEntry{entryFor("2024-01-15")},
		Schedule: models.DefaultTaperSchedule(),
		Settings: models.DefaultSettings(),
	}
	backend := &fakeBackend{loadState: remote}
	engine, store, _ := newTestEngine(t, backend, Options{})

	// Local edits exist; remote-wins discards them without merging.
	require.NoError(t, store.UpsertEntry(entryFor("2024-03-01")))
	require.NoError(t, engine.Load(context.Background()))

	entries := store.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "2024-01-15", entries[0].Date)
	assert.Equal(t, StatusSuccess, engine.Status())
	assert.False(t, engine.Dirty())
}

func TestLoad_NotFoundKeepsLocalDefaults(t *testing.T) {
	backend := &fakeBackend{loadErr: ErrNotFound}
	engine, store, _ := newTestEngine(t, backend, Options{})

	require.NoError(t, store.UpsertEntry(entryFor("2024-03-01")))
	require.NoError(t, engine.Load(context.Background()))

	assert.Len(t, store.Entries(), 1, "a brand-new remote user keeps local state")
}

func TestLoad_UnauthorizedInvalidatesImmediately(t *testing.T) {
	backend := &fakeBackend{loadErr: ErrUnauthorized}
	engine, _, sessions := newTestEngine(t, backend, Options{})

	var unauthorized bool
	engine.SetOnUnauthorized(func() { unauthorized = true })

	err := engine.Load(context.Background())
	require.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, 1, sessions.invalidated())
	assert.True(t, unauthorized)
}

func TestLoad_StaleResponseForChangedSessionIsDiscarded(t *testing.T) {
	remote := &models.AppState{
		Logs:     []models.DailyLogEntry{entryFor("2024-01-15")},
		Settings: models.DefaultSettings(),
	}
	backend := &fakeBackend{loadState: remote}
	engine, store, sessions := newTestEngine(t, backend, Options{})

	// The user logs out while the request is in flight.
	backend.onLoad = func() { sessions.set(models.Session{}) }

	require.NoError(t, engine.Load(context.Background()))
	assert.Empty(t, store.Entries(), "a stale load response must not be applied")
}

func TestLoad_TransientFailureLeavesLocalAuthoritative(t *testing.T) {
	backend := &fakeBackend{loadErr: errors.New("timeout")}
	engine, store, _ := newTestEngine(t, backend, Options{})

	require.NoError(t, store.UpsertEntry(entryFor("2024-03-01")))
	err := engine.Load(context.Background())

	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnauthorized)
	assert.Len(t, store.Entries(), 1)
	assert.Equal(t, StatusError, engine.Status())
}

func TestFlush_SavesImmediately(t *testing.T) {
	backend := &fakeBackend{}
	engine, store, _ := newTestEngine(t, backend, Options{Debounce: time.Hour})

	require.NoError(t, store.UpsertEntry(entryFor("2024-03-01")))
	require.NoError(t, engine.Flush(context.Background()))

	assert.Equal(t, 1, backend.saveCount())
	assert.Equal(t, StatusSuccess, engine.Status())
	assert.False(t, engine.Dirty())
}

func TestFlush_WithoutSessionFails(t *testing.T) {
	backend := &fakeBackend{}
	engine, _, sessions := newTestEngine(t, backend, Options{})
	sessions.set(models.Session{})

	assert.Error(t, engine.Flush(context.Background()))
	assert.Equal(t, 0, backend.saveCount())
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "idle", StatusIdle.String())
	assert.Equal(t, "syncing", StatusSyncing.String())
	assert.Equal(t, "success", StatusSuccess.String())
	assert.Equal(t, "error", StatusError.String())
}
