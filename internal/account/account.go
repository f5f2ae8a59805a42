// Package account runs the login, registration and logout workflows that
// tie the auth endpoints to the session store.
package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/me/blogfront/internal/blogapi"
	"github.com/me/blogfront/internal/forms"
	"github.com/me/blogfront/internal/logging"
	"github.com/me/blogfront/internal/session"
	"github.com/me/blogfront/pkg/model"
)

var (
	// ErrNotLoggedIn is returned for actions that need a session.
	ErrNotLoggedIn = errors.New("you must be logged in")
	// ErrNotOwner is returned before dispatch when the current user did not
	// write the post.
	ErrNotOwner = errors.New("only the author can modify this post")
)

// IdentityError means the backend accepted the credentials but the user's
// record could not be fetched afterwards. The session is not changed.
type IdentityError struct {
	Username string
	Err      error
}

func (e *IdentityError) Error() string {
	return fmt.Sprintf("credentials accepted, but fetching user %q failed: %v", e.Username, e.Err)
}

func (e *IdentityError) Unwrap() error { return e.Err }

// Service couples the auth client and the session.
type Service struct {
	auth    *blogapi.AuthClient
	session *session.Store
	logger  *slog.Logger
}

// NewService creates an account service.
func NewService(auth *blogapi.AuthClient, sess *session.Store, logger *slog.Logger) *Service {
	return &Service{
		auth:    auth,
		session: sess,
		logger:  logging.OrDiscard(logger).With("component", "account"),
	}
}

// Login validates form, obtains a token and the user's record, and records
// both in the session. On any failure the session is left as it was.
func (s *Service) Login(ctx context.Context, form forms.LoginForm) (session.State, error) {
	if err := form.Validate(); err != nil {
		return s.session.State(), err
	}

	tok, err := s.auth.Login(ctx, form.Username, form.Password)
	if err != nil {
		s.logger.Debug("login rejected", "username", form.Username, "error", err)
		return s.session.State(), err
	}
	user, err := s.auth.GetUser(ctx, form.Username)
	if err != nil {
		return s.session.State(), &IdentityError{Username: form.Username, Err: err}
	}
	if err := s.establish(tok.AccessToken, user); err != nil {
		return s.session.State(), err
	}
	return s.session.State(), nil
}

// Register creates the account and logs straight in with it.
func (s *Service) Register(ctx context.Context, form forms.RegisterForm) (session.State, error) {
	if err := form.Validate(); err != nil {
		return s.session.State(), err
	}

	user, err := s.auth.Register(ctx, form.Username, form.Password)
	if err != nil {
		return s.session.State(), err
	}
	s.logger.Info("registered", "username", user.Username, "user_id", user.ID)

	tok, err := s.auth.Login(ctx, form.Username, form.Password)
	if err != nil {
		return s.session.State(), fmt.Errorf("log in after registration: %w", err)
	}
	if err := s.establish(tok.AccessToken, user); err != nil {
		return s.session.State(), err
	}
	return s.session.State(), nil
}

func (s *Service) establish(token string, user *model.User) error {
	if !user.Valid() {
		return errors.New("backend returned an incomplete user record")
	}
	s.session.Login(token, user)
	return nil
}

// Logout ends the session. It never contacts the backend.
func (s *Service) Logout() {
	s.session.Logout()
}

// State returns the current session snapshot.
func (s *Service) State() session.State {
	return s.session.State()
}

// CanModify reports whether state's user wrote post.
func CanModify(state session.State, post *model.Post) bool {
	return state.IsAuthenticated && state.User != nil && post != nil && state.User.ID == post.AuthorID
}

// CheckModify returns ErrNotLoggedIn or ErrNotOwner when the current user
// may not edit or delete post.
func (s *Service) CheckModify(post *model.Post) error {
	state := s.session.State()
	if !state.IsAuthenticated {
		return ErrNotLoggedIn
	}
	if !CanModify(state, post) {
		return ErrNotOwner
	}
	return nil
}
