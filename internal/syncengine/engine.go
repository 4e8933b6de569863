// Package syncengine reconciles the local aggregate with the remote backend.
// Mutations arrive as coalesced change notifications from the log store; a
// trailing debounce collapses an edit burst into a single full-document save.
// At most one save is in flight at a time; a debounce that fires while one is
// outstanding marks a pending resend which always transmits the latest state.
package syncengine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/agonv/tapertrack/internal/logstore"
	"github.com/agonv/tapertrack/internal/models"
)

// Backend contract errors. Implementations map their transport's responses
// onto these; anything else is a transient failure.
var (
	// ErrNotFound means the user has no remote document yet (brand-new user).
	ErrNotFound = errors.New("sync: no remote data")
	// ErrUnauthorized means the credential was rejected. Fatal to the
	// session: no retry with the same token.
	ErrUnauthorized = errors.New("sync: unauthorized")
)

// Backend is the remote store of the full AppState document.
type Backend interface {
	Load(ctx context.Context, session models.Session) (*models.AppState, error)
	Save(ctx context.Context, session models.Session, state *models.AppState) error
}

// SessionSource supplies the current credential and accepts invalidation
// when the backend rejects it. *auth.Manager satisfies it.
type SessionSource interface {
	Current() (models.Session, bool)
	Invalidate() error
}

const (
	DefaultDebounce = 2 * time.Second
	DefaultTimeout  = 5 * time.Second
)

// Options tune an Engine. Zero values fall back to the defaults above.
type Options struct {
	// Debounce is the trailing quiet period after the last mutation before a
	// save fires. There is deliberately no max-wait ceiling: an unbroken edit
	// stream defers the save until it pauses.
	Debounce time.Duration
	// Timeout bounds each network call so the syncing state cannot hang.
	Timeout time.Duration
	Logger  zerolog.Logger
	// OnStatusChange, if set, observes every status transition.
	OnStatusChange func(Status)
	// OnUnauthorized, if set, runs after the session has been invalidated in
	// response to a rejected load or save.
	OnUnauthorized func()
}

// Engine drives the debounced push loop and the remote-wins load.
type Engine struct {
	backend  Backend
	sessions SessionSource
	store    *logstore.Store

	debounce time.Duration
	timeout  time.Duration
	logger   zerolog.Logger

	onStatusChange func(Status)
	onUnauthorized func()

	// saveMu serializes actual network saves across the run loop and Flush.
	saveMu sync.Mutex

	mu            sync.Mutex
	status        Status
	lastSyncedGen uint64
}

// New builds an engine around a store, a backend and a session source.
func New(store *logstore.Store, backend Backend, sessions SessionSource, opts Options) *Engine {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	return &Engine{
		backend:        backend,
		sessions:       sessions,
		store:          store,
		debounce:       opts.Debounce,
		timeout:        opts.Timeout,
		logger:         opts.Logger,
		onStatusChange: opts.OnStatusChange,
		onUnauthorized: opts.OnUnauthorized,
	}
}

// SetOnUnauthorized registers the rejection callback after construction;
// the controller that owns it is built after the engine.
func (e *Engine) SetOnUnauthorized(fn func()) {
	e.mu.Lock()
	e.onUnauthorized = fn
	e.mu.Unlock()
}

// Status returns the current sync indicator.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

func (e *Engine) setStatus(s Status) {
	e.mu.Lock()
	changed := e.status != s
	e.status = s
	e.mu.Unlock()
	if changed && e.onStatusChange != nil {
		e.onStatusChange(s)
	}
}

// Dirty reports whether the store holds mutations no successful save has
// covered yet.
func (e *Engine) Dirty() bool {
	e.mu.Lock()
	last := e.lastSyncedGen
	e.mu.Unlock()
	return e.store.Generation() != last
}

func (e *Engine) markSynced(gen uint64) {
	e.mu.Lock()
	e.lastSyncedGen = gen
	e.mu.Unlock()
}

// Run consumes change notifications until ctx is cancelled. Every mutation
// resets the debounce timer; the timer firing starts a save unless one is
// already in flight, in which case a resend is queued for when it resolves.
func (e *Engine) Run(ctx context.Context) {
	timer := time.NewTimer(e.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	results := make(chan error, 1)
	inFlight := false
	pending := false

	start := func() {
		inFlight = true
		e.setStatus(StatusSyncing)
		go func() {
			results <- e.saveOnce(ctx)
		}()
	}

	for {
		select {
		case <-ctx.Done():
			return

		case <-e.store.Changes():
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(e.debounce)

		case <-timer.C:
			if inFlight {
				pending = true
				continue
			}
			start()

		case err := <-results:
			inFlight = false
			if errors.Is(err, ErrUnauthorized) {
				// Session is gone; a queued resend would only fail again.
				pending = false
				continue
			}
			if pending {
				pending = false
				start()
			}
		}
	}
}

// saveOnce pushes the current full aggregate and translates the outcome into
// a status. All backend failures stop here; nothing propagates to the UI as
// a panic or unhandled error.
func (e *Engine) saveOnce(ctx context.Context) error {
	session, ok := e.sessions.Current()
	if !ok {
		e.setStatus(StatusIdle)
		return nil
	}

	e.saveMu.Lock()
	defer e.saveMu.Unlock()

	snap, gen := e.store.SnapshotWithGeneration()

	cctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	err := e.backend.Save(cctx, session, snap)
	switch {
	case err == nil:
		e.markSynced(gen)
		e.setStatus(StatusSuccess)
		return nil
	case errors.Is(err, ErrUnauthorized):
		e.logger.Warn().Msg("save rejected, invalidating session")
		e.handleUnauthorized()
		return ErrUnauthorized
	default:
		// Transient. No scheduled retry: the next mutation's debounce cycle
		// is the only retry path.
		e.logger.Error().Err(err).Msg("save failed")
		e.setStatus(StatusError)
		return err
	}
}

// Flush performs an immediate save, bypassing the debounce. One-shot
// callers (CLI commands) use it to push before the process exits.
func (e *Engine) Flush(ctx context.Context) error {
	if _, ok := e.sessions.Current(); !ok {
		return fmt.Errorf("not logged in")
	}
	e.setStatus(StatusSyncing)
	return e.saveOnce(ctx)
}

// Load fetches the remote document and installs it remote-wins. ErrNotFound
// is a brand-new user: local defaults stand, no overwrite. A response that
// arrives after the session changed is discarded, never applied.
func (e *Engine) Load(ctx context.Context) error {
	session, ok := e.sessions.Current()
	if !ok {
		return fmt.Errorf("not logged in")
	}

	cctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	state, err := e.backend.Load(cctx, session)
	switch {
	case errors.Is(err, ErrNotFound):
		e.markSynced(e.store.Generation())
		e.setStatus(StatusIdle)
		return nil
	case errors.Is(err, ErrUnauthorized):
		e.logger.Warn().Msg("load rejected, invalidating session")
		e.handleUnauthorized()
		return ErrUnauthorized
	case err != nil:
		e.logger.Error().Err(err).Msg("load failed")
		e.setStatus(StatusError)
		return fmt.Errorf("load failed: %w", err)
	}

	// Stale-response guard: the user may have logged out (or switched
	// accounts) while the request was in flight.
	if current, ok := e.sessions.Current(); !ok || current.Token != session.Token {
		e.logger.Warn().Msg("discarding load response for a stale session")
		return nil
	}

	if e.Dirty() {
		// Known tradeoff of the remote-wins policy: a prior failed save plus
		// a reload silently drops local edits. Surface it in the log.
		e.logger.Warn().Msg("remote load overwrites unsynced local edits")
	}

	if err := e.store.ReplaceAll(state); err != nil {
		return err
	}
	e.markSynced(e.store.Generation())
	e.setStatus(StatusSuccess)
	return nil
}

func (e *Engine) handleUnauthorized() {
	if err := e.sessions.Invalidate(); err != nil {
		e.logger.Error().Err(err).Msg("failed to clear session")
	}
	e.setStatus(StatusIdle)
	e.mu.Lock()
	fn := e.onUnauthorized
	e.mu.Unlock()
	if fn != nil {
		fn()
	}
}
