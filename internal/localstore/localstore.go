// Package localstore is the durable on-disk side of the client: the last
// known app state, the session credential and the user settings are kept
// under independent keys so each survives a restart on its own. Writes are
// synchronous; by the time a mutation returns, the document is on disk.
package localstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/peterbourgon/diskv/v3"

	"github.com/agonv/tapertrack/internal/models"
)

// ErrNotFound is returned when a key has never been written.
var ErrNotFound = errors.New("localstore: not found")

const (
	keyState    = "app_state"
	keySession  = "session"
	keySettings = "settings"
)

// Store is a diskv-backed key-value store rooted at a single directory,
// one file per key.
type Store struct {
	d        *diskv.Diskv
	basePath string
}

// New opens (creating if needed) the local store at basePath.
func New(basePath string) (*Store, error) {
	if err := os.MkdirAll(basePath, 0700); err != nil {
		return nil, fmt.Errorf("failed to create local store directory: %w", err)
	}
	return &Store{
		d: diskv.New(diskv.Options{
			BasePath:     basePath,
			CacheSizeMax: 1024 * 1024, // 1MB
		}),
		basePath: basePath,
	}, nil
}

// BasePath returns the directory backing this store.
func (s *Store) BasePath() string {
	return s.basePath
}

func (s *Store) writeJSON(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to serialize %s: %w", key, err)
	}
	if err := s.d.Write(key, data); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

func (s *Store) readJSON(key string, v any) error {
	if !s.d.Has(key) {
		return ErrNotFound
	}
	data, err := s.d.Read(key)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", key, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", key, err)
	}
	return nil
}

// SaveState persists the full aggregate.
func (s *Store) SaveState(state *models.AppState) error {
	return s.writeJSON(keyState, state)
}

// LoadState returns the last persisted aggregate, or ErrNotFound on a
// fresh install.
func (s *Store) LoadState() (*models.AppState, error) {
	state := &models.AppState{}
	if err := s.readJSON(keyState, state); err != nil {
		return nil, err
	}
	if state.Logs == nil {
		state.Logs = []models.DailyLogEntry{}
	}
	return state, nil
}

// ClearState removes the persisted aggregate.
func (s *Store) ClearState() error {
	if !s.d.Has(keyState) {
		return nil
	}
	return s.d.Erase(keyState)
}

// SaveSession persists the credential so the app can resume without a login.
func (s *Store) SaveSession(sess models.Session) error {
	return s.writeJSON(keySession, sess)
}

// LoadSession returns the stored credential, or ErrNotFound.
func (s *Store) LoadSession() (models.Session, error) {
	var sess models.Session
	if err := s.readJSON(keySession, &sess); err != nil {
		return models.Session{}, err
	}
	return sess, nil
}

// ClearSession removes the stored credential.
func (s *Store) ClearSession() error {
	if !s.d.Has(keySession) {
		return nil
	}
	return s.d.Erase(keySession)
}

// SaveSettings persists user settings, PIN included. The PIN lives only
// here; it is never part of the synchronized document.
func (s *Store) SaveSettings(settings models.UserSettings) error {
	return s.writeJSON(keySettings, settings)
}

// LoadSettings returns the stored settings, or ErrNotFound.
func (s *Store) LoadSettings() (models.UserSettings, error) {
	var settings models.UserSettings
	if err := s.readJSON(keySettings, &settings); err != nil {
		return models.UserSettings{}, err
	}
	return settings, nil
}
