// Package auth owns the bearer-credential lifecycle: acquisition at
// login/registration, persistence across restarts, and immediate
// invalidation when the backend rejects the token.
package auth

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"

	"github.com/agonv/tapertrack/internal/localstore"
	"github.com/agonv/tapertrack/internal/models"
)

// Credential rules, enforced server-side and mirrored here for fast feedback.
const (
	MaxUsernameLen = 50
	MinPasswordLen = 6
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]{1,50}$`)

// RejectionError is a user-facing credential rejection (bad password,
// duplicate username, weak password). It is reported to the caller as a
// message, never as a crash, and is distinct from network failure.
type RejectionError struct {
	Reason string
}

func (e *RejectionError) Error() string {
	return e.Reason
}

// Reject builds a RejectionError.
func Reject(format string, args ...any) error {
	return &RejectionError{Reason: fmt.Sprintf(format, args...)}
}

// IsRejection reports whether err is a credential rejection as opposed to a
// transport failure.
func IsRejection(err error) bool {
	var r *RejectionError
	return errors.As(err, &r)
}

// ValidateCredentials checks the registration constraints: username
// non-empty, alphanumeric/underscore, at most MaxUsernameLen; password at
// least MinPasswordLen.
func ValidateCredentials(username, password string) error {
	if username == "" {
		return Reject("username is required")
	}
	if !usernamePattern.MatchString(username) {
		return Reject("username must be 1-%d letters, digits or underscores", MaxUsernameLen)
	}
	if len(password) < MinPasswordLen {
		return Reject("password must be at least %d characters", MinPasswordLen)
	}
	return nil
}

// Authenticator exchanges credentials for a session. The HTTP client in
// internal/api implements it against the sync backend.
type Authenticator interface {
	Login(ctx context.Context, username, password string) (models.Session, error)
	Register(ctx context.Context, username, password string) (models.Session, error)
}

// Manager holds the current session and keeps the persisted copy in step.
type Manager struct {
	authenticator Authenticator
	local         *localstore.Store

	mu      sync.Mutex
	session models.Session
}

// NewManager builds a manager, restoring any session persisted by a
// previous run.
func NewManager(authenticator Authenticator, local *localstore.Store) *Manager {
	m := &Manager{authenticator: authenticator, local: local}
	if local != nil {
		if sess, err := local.LoadSession(); err == nil && sess.Valid() {
			m.session = sess
		}
	}
	return m
}

// Current returns the active session, if any.
func (m *Manager) Current() (models.Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session, m.session.Valid()
}

func (m *Manager) install(sess models.Session) error {
	m.mu.Lock()
	m.session = sess
	m.mu.Unlock()
	if m.local != nil {
		if err := m.local.SaveSession(sess); err != nil {
			return fmt.Errorf("session acquired but not persisted: %w", err)
		}
	}
	return nil
}

// Acquire exchanges a username and password for a session. A rejection
// (IsRejection) means bad credentials; any other error is a network or
// server fault. An existing unrelated session is left untouched on failure.
func (m *Manager) Acquire(ctx context.Context, username, password string) (models.Session, error) {
	if username == "" || password == "" {
		return models.Session{}, Reject("username and password are required")
	}
	sess, err := m.authenticator.Login(ctx, username, password)
	if err != nil {
		return models.Session{}, err
	}
	if err := m.install(sess); err != nil {
		return sess, err
	}
	return sess, nil
}

// Register creates an account and logs in. Constraints are validated
// locally first so obvious mistakes never leave the machine, then again by
// the server, which additionally enforces uniqueness.
func (m *Manager) Register(ctx context.Context, username, password string) (models.Session, error) {
	if err := ValidateCredentials(username, password); err != nil {
		return models.Session{}, err
	}
	sess, err := m.authenticator.Register(ctx, username, password)
	if err != nil {
		return models.Session{}, err
	}
	if err := m.install(sess); err != nil {
		return sess, err
	}
	return sess, nil
}

// Invalidate drops the session from memory and disk. Called on explicit
// logout and whenever the backend answers Unauthorized; the token is never
// retried after that.
func (m *Manager) Invalidate() error {
	m.mu.Lock()
	m.session = models.Session{}
	m.mu.Unlock()
	if m.local != nil {
		if err := m.local.ClearSession(); err != nil {
			return fmt.Errorf("failed to clear persisted session: %w", err)
		}
	}
	return nil
}
