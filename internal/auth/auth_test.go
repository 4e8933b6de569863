package auth

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agonv/tapertrack/internal/localstore"
	"github.com/agonv/tapertrack/internal/models"
)

type fakeAuthenticator struct {
	loginErr    error
	registerErr error
	session     models.Session
	calls       int
}

func (f *fakeAuthenticator) Login(ctx context.Context, username, password string) (models.Session, error) {
	f.calls++
	if f.loginErr != nil {
		return models.Session{}, f.loginErr
	}
	return f.session, nil
}

func (f *fakeAuthenticator) Register(ctx context.Context, username, password string) (models.Session, error) {
	f.calls++
	if f.registerErr != nil {
		return models.Session{}, f.registerErr
	}
	return f.session, nil
}

func newLocal(t *testing.T) *localstore.Store {
	t.Helper()
	local, err := localstore.New(t.TempDir())
	require.NoError(t, err)
	return local
}

func TestValidateCredentials(t *testing.T) {
	tests := []struct {
		name     string
		username string
		password string
		wantErr  string
	}{
		{"valid", "agon_v", "secret123", ""},
		{"valid short username", "ab", "secret123", ""},
		{"empty username", "", "secret123", "username is required"},
		{"username with spaces", "a b", "secret123", "letters, digits or underscores"},
		{"username with symbols", "agon!", "secret123", "letters, digits or underscores"},
		{"username too long", strings.Repeat("a", 51), "secret123", "letters, digits or underscores"},
		{"short password", "ab", "short", "at least 6 characters"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCredentials(tt.username, tt.password)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, IsRejection(err), "validation failures are rejections, not faults")
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRegister_WeakPasswordNeverLeavesTheMachine(t *testing.T) {
	fake := &fakeAuthenticator{session: models.Session{Token: "tok", Username: "ab"}}
	m := NewManager(fake, newLocal(t))

	_, err := m.Register(context.Background(), "ab", "short")

	require.Error(t, err)
	assert.True(t, IsRejection(err))
	assert.Contains(t, err.Error(), "password")
	assert.Equal(t, 0, fake.calls, "no network call on local validation failure")
	_, ok := m.Current()
	assert.False(t, ok)
}

func TestAcquire_InstallsAndPersistsSession(t *testing.T) {
	local := newLocal(t)
	fake := &fakeAuthenticator{session: models.Session{Token: "tok", Username: "agon"}}
	m := NewManager(fake, local)

	sess, err := m.Acquire(context.Background(), "agon", "secret123")
	require.NoError(t, err)
	assert.Equal(t, "tok", sess.Token)

	current, ok := m.Current()
	assert.True(t, ok)
	assert.Equal(t, "agon", current.Username)

	// A new manager over the same local store resumes the session.
	resumed := NewManager(fake, local)
	current, ok = resumed.Current()
	assert.True(t, ok)
	assert.Equal(t, "tok", current.Token)
}

func TestAcquire_RejectionLeavesExistingSessionUntouched(t *testing.T) {
	local := newLocal(t)
	fake := &fakeAuthenticator{session: models.Session{Token: "tok", Username: "agon"}}
	m := NewManager(fake, local)
	_, err := m.Acquire(context.Background(), "agon", "secret123")
	require.NoError(t, err)

	fake.loginErr = &RejectionError{Reason: "Invalid credentials"}
	_, err = m.Acquire(context.Background(), "agon", "wrongpass")

	require.Error(t, err)
	assert.True(t, IsRejection(err))
	_, ok := m.Current()
	assert.True(t, ok, "a failed re-login must not clobber the current session")
}

func TestAcquire_NetworkErrorIsNotARejection(t *testing.T) {
	fake := &fakeAuthenticator{loginErr: errors.New("connection refused")}
	m := NewManager(fake, newLocal(t))

	_, err := m.Acquire(context.Background(), "agon", "secret123")

	require.Error(t, err)
	assert.False(t, IsRejection(err), "transport failure must be distinguishable from bad credentials")
}

func TestAcquire_EmptyCredentialsRejectedLocally(t *testing.T) {
	fake := &fakeAuthenticator{}
	m := NewManager(fake, newLocal(t))

	_, err := m.Acquire(context.Background(), "", "")
	require.Error(t, err)
	assert.True(t, IsRejection(err))
	assert.Equal(t, 0, fake.calls)
}

func TestInvalidate_ClearsMemoryAndDisk(t *testing.T) {
	local := newLocal(t)
	fake := &fakeAuthenticator{session: models.Session{Token: "tok", Username: "agon"}}
	m := NewManager(fake, local)
	_, err := m.Acquire(context.Background(), "agon", "secret123")
	require.NoError(t, err)

	require.NoError(t, m.Invalidate())

	_, ok := m.Current()
	assert.False(t, ok)

	resumed := NewManager(fake, local)
	_, ok = resumed.Current()
	assert.False(t, ok, "invalidation must clear the persisted credential too")
}
