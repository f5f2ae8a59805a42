package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/me/blogfront/internal/account"
	"github.com/me/blogfront/internal/apiclient"
	"github.com/me/blogfront/internal/blogapi"
	"github.com/me/blogfront/internal/forms"
)

// describe turns err into the line shown to the user. Remapped and
// validation errors read as they are; raw backend failures show the
// backend's detail when it sent one, else a generic message.
func describe(err error, server string) string {
	var ve *forms.ValidationError
	if errors.As(err, &ve) {
		return ve.Error()
	}
	var ie *account.IdentityError
	if errors.As(err, &ie) {
		return fmt.Sprintf("credentials accepted, but the user record for %q could not be fetched (%s); you are not logged in",
			ie.Username, describe(ie.Err, server))
	}
	if errors.Is(err, account.ErrNotLoggedIn) {
		return err.Error() + "; run 'blog login' first"
	}
	var be *blogapi.Error
	if errors.As(err, &be) {
		if errors.Is(be.Kind, blogapi.ErrUnauthorized) {
			return be.Kind.Error() + "; run 'blog login'"
		}
		return be.Kind.Error()
	}
	var he *apiclient.HTTPError
	if errors.As(err, &he) {
		if he.Detail != "" {
			return he.Detail
		}
		return fmt.Sprintf("request failed: %s", http.StatusText(he.StatusCode))
	}
	var ne net.Error
	if errors.As(err, &ne) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Sprintf("request failed: could not reach %s", server)
	}
	return err.Error()
}
