// Package session holds the client-side record of who is logged in.
//
// A Store is the single source of truth shared by every command and by the
// HTTP adapter. Token and user are always set and cleared together:
// IsAuthenticated is true exactly when both are present.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"github.com/me/blogfront/internal/logging"
	"github.com/me/blogfront/internal/storage"
	"github.com/me/blogfront/pkg/model"
)

// StorageKey names the persisted session record.
const StorageKey = "auth-storage"

// State is a snapshot of the session.
type State struct {
	Token           string      `json:"token"`
	User            *model.User `json:"user"`
	IsAuthenticated bool        `json:"isAuthenticated"`
}

// record is the persisted shape. Token is a pointer so a logged-out record
// round-trips as null rather than "".
type record struct {
	Token           *string     `json:"token"`
	User            *model.User `json:"user"`
	IsAuthenticated bool        `json:"isAuthenticated"`
}

// Store is the process-wide session. The zero value is not usable; call New.
type Store struct {
	mu      sync.RWMutex
	token   string
	user    *model.User
	storage storage.Storage // nil once degraded to memory-only
	logger  *slog.Logger
}

// New creates a Store and restores it from st. A missing, unreadable or
// malformed record yields the logged-out state. st may be nil for a
// memory-only session.
func New(st storage.Storage, logger *slog.Logger) *Store {
	s := &Store{
		storage: st,
		logger:  logging.OrDiscard(logger).With("component", "session"),
	}
	s.restore()
	return s
}

func (s *Store) restore() {
	if s.storage == nil {
		return
	}
	data, err := s.storage.Get(context.Background(), StorageKey)
	if errors.Is(err, storage.ErrNotFound) {
		s.logger.Debug("no persisted session")
		return
	}
	if err != nil {
		s.degrade("read", err)
		return
	}

	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		s.logger.Warn("ignoring malformed session record", "error", err)
		return
	}
	hasToken := rec.Token != nil && *rec.Token != ""
	hasUser := rec.User.Valid()
	switch {
	case hasToken && hasUser:
		s.token = *rec.Token
		s.user = rec.User.Clone()
		s.logger.Debug("session restored", "username", s.user.Username)
	case !hasToken && !hasUser:
		s.logger.Debug("persisted session is logged out")
	default:
		s.logger.Warn("ignoring half-formed session record", "has_token", hasToken, "has_user", hasUser)
	}
}

// Login records token and user as the current session and persists them.
// It never contacts the backend: the credential is assumed validated by the
// caller. An empty token or an unusable user leaves the state unchanged.
func (s *Store) Login(token string, user *model.User) {
	if token == "" || !user.Valid() {
		s.logger.Warn("login ignored: token and user must both be set",
			"has_token", token != "", "has_user", user.Valid())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	s.user = user.Clone()
	s.persistLocked()
	s.logger.Info("logged in", "username", user.Username, "user_id", user.ID)
}

// Logout clears the session and removes the persisted record. Calling it
// while logged out is a no-op with the same resulting state.
func (s *Store) Logout() {
	s.mu.Lock()
	defer s.mu.Unlock()
	was := s.user
	s.token = ""
	s.user = nil
	if s.storage != nil {
		if err := s.storage.Remove(context.Background(), StorageKey); err != nil {
			s.clearRecordLocked(err)
		}
	}
	if was != nil {
		s.logger.Info("logged out", "username", was.Username)
	}
}

// State returns a consistent snapshot of the session.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return State{
		Token:           s.token,
		User:            s.user.Clone(),
		IsAuthenticated: s.token != "" && s.user != nil,
	}
}

// Token returns the current bearer token, or "" when logged out.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// User returns a copy of the current user, or nil when logged out.
func (s *Store) User() *model.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user.Clone()
}

// Persistent reports whether the session is still backed by durable storage.
func (s *Store) Persistent() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.storage != nil
}

// Close releases the underlying storage. The in-memory state stays readable.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.storage == nil {
		return nil
	}
	err := s.storage.Close()
	s.storage = nil
	return err
}

// persistLocked writes the current state. Caller holds mu.
func (s *Store) persistLocked() {
	if s.storage == nil {
		return
	}
	token := s.token
	data, err := json.Marshal(record{
		Token:           &token,
		User:            s.user,
		IsAuthenticated: true,
	})
	if err != nil {
		s.degrade("encode", err)
		return
	}
	if err := s.storage.Set(context.Background(), StorageKey, data); err != nil {
		s.degrade("write", err)
	}
}

// clearRecordLocked runs when removing the record failed. It overwrites the
// record with a logged-out one so the next start does not restore the old
// session, then degrades. Caller holds mu.
func (s *Store) clearRecordLocked(removeErr error) {
	data, err := json.Marshal(record{})
	if err == nil {
		err = s.storage.Set(context.Background(), StorageKey, data)
	}
	if err != nil {
		s.logger.Warn("could not clear persisted session; the stale record is still on disk",
			"remove_error", removeErr, "overwrite_error", err)
	}
	s.degrade("remove", removeErr)
}

// degrade drops durable storage for the rest of the process.
func (s *Store) degrade(op string, err error) {
	s.logger.Warn("session storage unavailable, continuing in memory", "op", op, "error", err)
	if s.storage != nil {
		_ = s.storage.Close()
	}
	s.storage = nil
}
