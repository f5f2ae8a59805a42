package blogapi

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/me/blogfront/internal/apiclient"
)

// Remapped failures. Callers match them with errors.Is; the underlying
// *apiclient.HTTPError stays reachable with errors.As.
var (
	ErrUsernameTaken      = errors.New("username may already exist")
	ErrInvalidCredentials = errors.New("Invalid username or password")
	ErrNotFound           = errors.New("not found")
	ErrUnauthorized       = errors.New("not logged in or session expired")
	ErrForbidden          = errors.New("not authorized to modify this post")
	ErrNothingToUpdate    = errors.New("nothing to update: set a title, content or image")
)

// Error is a resource-client failure with a clearer message than the raw
// HTTP status.
type Error struct {
	Op   string
	Kind error
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

// Unwrap exposes both the remapped kind and the original error.
func (e *Error) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// remap translates selected HTTP statuses into sentinel errors and wraps
// everything else with the operation name.
func remap(op string, err error, byStatus map[int]error) error {
	if kind, ok := byStatus[apiclient.StatusCode(err)]; ok {
		return &Error{Op: op, Kind: kind, Err: err}
	}
	return fmt.Errorf("%s: %w", op, err)
}

// writeStatuses are the statuses shared by authenticated post operations.
var writeStatuses = map[int]error{
	http.StatusUnauthorized: ErrUnauthorized,
	http.StatusForbidden:    ErrForbidden,
	http.StatusNotFound:     ErrNotFound,
}
