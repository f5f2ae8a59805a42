// Package blogapi contains typed clients for the blog backend's auth and
// posts resources. Each call is a single request/response exchange: no
// retries, no caching.
package blogapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/me/blogfront/internal/apiclient"
	"github.com/me/blogfront/pkg/model"
)

// AuthClient covers /register, /token and /users.
type AuthClient struct {
	api *apiclient.Client
}

func NewAuthClient(api *apiclient.Client) *AuthClient {
	return &AuthClient{api: api}
}

// Register creates an account. A 400 means the username is taken.
func (c *AuthClient) Register(ctx context.Context, username, password string) (*model.User, error) {
	resp, err := c.api.PostJSON(ctx, "/register", model.Credentials{Username: username, Password: password})
	if err != nil {
		return nil, remap("register", err, map[int]error{http.StatusBadRequest: ErrUsernameTaken})
	}
	var user model.User
	if err := resp.Decode(&user); err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}
	return &user, nil
}

// Login exchanges credentials for a bearer token. It does not touch the
// session; see account.Service for that.
func (c *AuthClient) Login(ctx context.Context, username, password string) (*model.TokenResponse, error) {
	resp, err := c.api.PostJSON(ctx, "/token", model.Credentials{Username: username, Password: password})
	if err != nil {
		return nil, remap("login", err, map[int]error{
			http.StatusBadRequest:   ErrInvalidCredentials,
			http.StatusUnauthorized: ErrInvalidCredentials,
		})
	}
	var tok model.TokenResponse
	if err := resp.Decode(&tok); err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	if tok.AccessToken == "" {
		return nil, errors.New("login: backend returned an empty access token")
	}
	return &tok, nil
}

// GetUser fetches the public record of username.
func (c *AuthClient) GetUser(ctx context.Context, username string) (*model.User, error) {
	resp, err := c.api.Get(ctx, "/users/"+url.PathEscape(username))
	if err != nil {
		return nil, remap("get user", err, map[int]error{http.StatusNotFound: ErrNotFound})
	}
	var user model.User
	if err := resp.Decode(&user); err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &user, nil
}
