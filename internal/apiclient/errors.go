package apiclient

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/me/blogfront/pkg/model"
)

// HTTPError is a non-2xx backend response.
type HTTPError struct {
	Method     string
	Path       string
	StatusCode int
	// Detail is the backend's "detail" message, when it sent one.
	Detail string
	// Body is the raw response body.
	Body string
	// API is the decoded error body, nil if it was not JSON.
	API *model.APIError
}

func newHTTPError(method, path string, status int, body []byte) *HTTPError {
	e := &HTTPError{
		Method:     method,
		Path:       path,
		StatusCode: status,
		Body:       string(body),
	}
	if apiErr := model.ParseAPIError(body); apiErr != nil {
		e.API = apiErr
		e.Detail = apiErr.Error()
	}
	return e
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	msg := e.Detail
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("%s %s: HTTP %d: %s", e.Method, e.Path, e.StatusCode, msg)
}

// StatusCode returns the HTTP status carried by err, or 0 if err is not an
// HTTPError.
func StatusCode(err error) int {
	var he *HTTPError
	if errors.As(err, &he) {
		return he.StatusCode
	}
	return 0
}

// Detail returns the backend "detail" message carried by err, if any.
func Detail(err error) string {
	var he *HTTPError
	if errors.As(err, &he) {
		return he.Detail
	}
	return ""
}
