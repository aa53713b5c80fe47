package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

var (
	// ErrNoSession is returned by mutations that require a stored session.
	ErrNoSession = errors.New("no session")
	// ErrInvalidSession is returned by Save for a session without an access token.
	ErrInvalidSession = errors.New("session requires an access token")
	// ErrSessionReplaced is returned by PatchAccessToken when the stored
	// session belongs to a different sign-in than the caller expected.
	ErrSessionReplaced = errors.New("session replaced by another sign-in")
	// ErrBackendUnavailable wraps backend read/write failures.
	ErrBackendUnavailable = errors.New("session backend unavailable")
)

// Store is the single owner of the persisted [Session].
//
// All reads and writes go through one RWMutex so that, within a process, a
// reader never observes a half-applied mutation such as a token patch.
//
//	Concurrency: safe for use by multiple goroutines.
type Store struct {
	backend Backend
	logger  zerolog.Logger
	mu      sync.RWMutex
}

// StoreOption configures a [Store].
type StoreOption func(*Store)

// WithLogger sets the logger used for swallowed load failures.
func WithLogger(logger zerolog.Logger) StoreOption {
	return func(s *Store) {
		s.logger = logger
	}
}

// NewStore returns a [Store] over backend. A nil backend selects a fresh
// [MemoryBackend].
func NewStore(backend Backend, opts ...StoreOption) *Store {
	if backend == nil {
		backend = NewMemoryBackend()
	}
	s := &Store{
		backend: backend,
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load returns the current session, or nil for a guest. Missing, malformed,
// or unreadable records all yield nil; Load never fails.
func (s *Store) Load(ctx context.Context) *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadLocked(ctx)
}

func (s *Store) loadLocked(ctx context.Context) *Session {
	data, err := s.backend.Get(ctx)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.logger.Warn().Err(err).Msg("session load failed")
		}
		return nil
	}

	sess, err := Decode(data)
	if err != nil {
		s.logger.Warn().Err(err).Msg("discarding unreadable session record")
		return nil
	}
	if sess.AccessToken == "" {
		return nil
	}
	return sess
}

// Save replaces the stored session.
func (s *Store) Save(ctx context.Context, sess *Session) error {
	if sess == nil || sess.AccessToken == "" {
		return ErrInvalidSession
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(ctx, sess)
}

func (s *Store) saveLocked(ctx context.Context, sess *Session) error {
	data, err := Encode(sess)
	if err != nil {
		return err
	}
	if err := s.backend.Put(ctx, data); err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return nil
}

// Clear removes the stored session. Clearing an absent session succeeds.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.backend.Delete(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return nil
}

// PatchAccessToken replaces the access token of the stored session and
// leaves every other field untouched. When owner is non-nil the stored
// session must be the same sign-in ([Session.SameSignIn]); otherwise
// [ErrSessionReplaced] is returned and nothing is written. It returns
// [ErrNoSession] when no session is stored.
func (s *Store) PatchAccessToken(ctx context.Context, owner *Session, token string) error {
	if token == "" {
		return ErrInvalidSession
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.loadLocked(ctx)
	if sess == nil {
		return ErrNoSession
	}
	if owner != nil && !sess.SameSignIn(owner) {
		return ErrSessionReplaced
	}
	sess.AccessToken = token
	return s.saveLocked(ctx, sess)
}

// ClearIf removes the stored session only when it is the same sign-in as
// owner. It reports whether a record was removed; an absent or replaced
// session is left alone.
func (s *Store) ClearIf(ctx context.Context, owner *Session) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.loadLocked(ctx)
	if sess == nil || !sess.SameSignIn(owner) {
		return false, nil
	}
	if err := s.backend.Delete(ctx); err != nil {
		return false, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return true, nil
}

// UpdateProfile applies patch to the stored session and returns the result.
// Tokens, identity, and role are never changed.
func (s *Store) UpdateProfile(ctx context.Context, patch ProfilePatch) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.loadLocked(ctx)
	if sess == nil {
		return nil, ErrNoSession
	}
	patch.apply(sess)
	if err := s.saveLocked(ctx, sess); err != nil {
		return nil, err
	}
	return sess.Clone(), nil
}
