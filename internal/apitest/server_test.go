package apitest

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/me/blogfront/internal/logging"
)

func do(t *testing.T, s *Server, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("X-Request-ID", "req_test")
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func TestRegisterAndToken(t *testing.T) {
	s := New()

	rec := do(t, s, http.MethodPost, "/register", "", `{"username":"alice","password":"secret1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":1,"username":"alice"}`, rec.Body.String())
	assert.Equal(t, "req_test", rec.Header().Get("X-Request-ID"))

	rec = do(t, s, http.MethodPost, "/register", "", `{"username":"alice","password":"other"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"detail":"Username already registered"}`, rec.Body.String())

	rec = do(t, s, http.MethodPost, "/token", "", `{"username":"alice","password":"nope"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Incorrect password")

	rec = do(t, s, http.MethodPost, "/token", "", `{"username":"alice","password":"secret1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var tok struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tok))
	assert.NotEmpty(t, tok.AccessToken)
	assert.Equal(t, "bearer", tok.TokenType)
}

func TestRegister_MissingField(t *testing.T) {
	s := New()

	rec := do(t, s, http.MethodPost, "/register", "", `{"username":"alice"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), `"loc":["body","password"]`)
}

func TestAuthRequired(t *testing.T) {
	s := New()

	rec := do(t, s, http.MethodDelete, "/posts/1", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"detail":"Not authenticated"}`, rec.Body.String())

	rec = do(t, s, http.MethodDelete, "/posts/1", "garbage", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"detail":"Could not validate credentials"}`, rec.Body.String())
}

func TestExpiredToken(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s := New(WithClock(func() time.Time { return now }), WithTokenTTL(time.Minute))
	s.SeedUser("alice", "secret1")
	id := s.SeedPost("alice", "t", "c")
	tok := s.Token("alice")

	now = now.Add(2 * time.Minute)
	rec := do(t, s, http.MethodDelete, "/posts/"+strconv.FormatInt(id, 10), tok, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPostsRendering(t *testing.T) {
	now := time.Date(2026, 3, 4, 5, 6, 7, 890000000, time.UTC)
	s := New(WithClock(func() time.Time { return now }))
	s.SeedUser("alice", "secret1")
	s.SeedPost("alice", "t", "c")

	rec := do(t, s, http.MethodGet, "/posts?skip=0&limit=5", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	// Naive timestamps, like the real backend.
	assert.Contains(t, rec.Body.String(), `"created_at":"2026-03-04T05:06:08.890000"`)
	assert.Contains(t, rec.Body.String(), `"author":{"id":1,"username":"alice"}`)

	rec = do(t, s, http.MethodGet, "/posts?limit=101", "", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = do(t, s, http.MethodGet, "/posts/search?query=", "", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestRequestLog(t *testing.T) {
	var buf bytes.Buffer
	s := New(WithLogger(logging.NewLoggerWithWriter(logging.ParseLevel("debug"), "text", &buf)))

	do(t, s, http.MethodGet, "/posts/42", "", "")
	assert.Contains(t, buf.String(), "status=404")
	assert.Contains(t, buf.String(), "request_id=req_test")
}
