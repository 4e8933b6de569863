package localstore

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agonv/tapertrack/internal/models"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(filepath.Join(t.TempDir(), "local"))
	require.NoError(t, err)
	return store
}

func TestFreshStoreHasNothing(t *testing.T) {
	store := newStore(t)

	_, err := store.LoadState()
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = store.LoadSession()
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = store.LoadSettings()
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStateRoundTrip(t *testing.T) {
	store := newStore(t)

	state := models.NewDefaultState()
	state.StartDate = "2024-01-01"
	state.Logs = append(state.Logs, models.DailyLogEntry{Date: "2024-03-01", LDose: 5.0})
	require.NoError(t, store.SaveState(state))

	loaded, err := store.LoadState()
	require.NoError(t, err)
	assert.Equal(t, "2024-01-01", loaded.StartDate)
	require.Len(t, loaded.Logs, 1)
	assert.Equal(t, 5.0, loaded.Logs[0].LDose)
}

func TestStateSurvivesReopen(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "local")
	store, err := New(dir)
	require.NoError(t, err)

	state := models.NewDefaultState()
	state.StartDate = "2024-01-01"
	require.NoError(t, store.SaveState(state))

	reopened, err := New(dir)
	require.NoError(t, err)
	loaded, err := reopened.LoadState()
	require.NoError(t, err)
	assert.Equal(t, "2024-01-01", loaded.StartDate)
}

func TestSessionRoundTripAndClear(t *testing.T) {
	store := newStore(t)

	sess := models.Session{Token: "tok-abc", Username: "agon_v"}
	require.NoError(t, store.SaveSession(sess))

	loaded, err := store.LoadSession()
	require.NoError(t, err)
	assert.Equal(t, sess, loaded)

	require.NoError(t, store.ClearSession())
	_, err = store.LoadSession()
	assert.ErrorIs(t, err, ErrNotFound)

	// Clearing an already-clear key is a no-op.
	require.NoError(t, store.ClearSession())
}

func TestSettingsRoundTrip(t *testing.T) {
	store := newStore(t)

	settings := models.UserSettings{
		IsPinEnabled:         true,
		PinCode:              "1234",
		NotificationsEnabled: true,
		NotificationTime:     "08:30",
	}
	require.NoError(t, store.SaveSettings(settings))

	loaded, err := store.LoadSettings()
	require.NoError(t, err)
	assert.Equal(t, settings, loaded)
}

func TestKeysAreIndependent(t *testing.T) {
	store := newStore(t)

	require.NoError(t, store.SaveSession(models.Session{Token: "tok", Username: "agon_v"}))
	require.NoError(t, store.SaveSettings(models.UserSettings{IsPinEnabled: true, PinCode: "1234"}))
	require.NoError(t, store.SaveState(models.NewDefaultState()))

	require.NoError(t, store.ClearState())

	_, err := store.LoadState()
	assert.ErrorIs(t, err, ErrNotFound)

	// Session and settings are untouched by a state wipe.
	sess, err := store.LoadSession()
	require.NoError(t, err)
	assert.Equal(t, "tok", sess.Token)
	settings, err := store.LoadSettings()
	require.NoError(t, err)
	assert.Equal(t, "1234", settings.PinCode)
}

func TestLoadStateNormalizesNilLogs(t *testing.T) {
	store := newStore(t)

	require.NoError(t, store.SaveState(&models.AppState{StartDate: "2024-01-01"}))
	loaded, err := store.LoadState()
	require.NoError(t, err)
	assert.NotNil(t, loaded.Logs)
}
