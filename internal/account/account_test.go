package account

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/me/blogfront/internal/apiclient"
	"github.com/me/blogfront/internal/apitest"
	"github.com/me/blogfront/internal/blogapi"
	"github.com/me/blogfront/internal/forms"
	"github.com/me/blogfront/internal/logging"
	"github.com/me/blogfront/internal/session"
	"github.com/me/blogfront/internal/storage"
	"github.com/me/blogfront/pkg/model"
)

type fixture struct {
	srv     *apitest.Server
	session *session.Store
	svc     *Service
	posts   *blogapi.PostsClient
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	srv, url := apitest.Start(t)
	sess := session.New(storage.NewMemoryStorage(), logging.Discard())
	api := apiclient.NewClient(url, sess, logging.Discard())
	return &fixture{
		srv:     srv,
		session: sess,
		svc:     NewService(blogapi.NewAuthClient(api), sess, logging.Discard()),
		posts:   blogapi.NewPostsClient(api),
	}
}

func TestRegisterThenCreatePost(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	state, err := f.svc.Register(ctx, forms.RegisterForm{Username: "alice", Password: "secret1", ConfirmPassword: "secret1"})
	require.NoError(t, err)
	assert.True(t, state.IsAuthenticated)
	assert.Equal(t, "alice", state.User.Username)
	assert.NotEmpty(t, state.Token)

	post, err := f.posts.Create(ctx, model.PostInput{Title: "Hello", Content: "World"})
	require.NoError(t, err)
	assert.Equal(t, "alice", post.AuthorName())
	assert.True(t, CanModify(f.svc.State(), post))
}

func TestLogin_FetchesIdentity(t *testing.T) {
	f := newFixture(t)
	id := f.srv.SeedUser("alice", "secret1")

	state, err := f.svc.Login(context.Background(), forms.LoginForm{Username: " alice", Password: "secret1"})
	require.NoError(t, err)
	assert.True(t, state.IsAuthenticated)
	assert.Equal(t, id, state.User.ID)
	assert.Equal(t, "alice", state.User.Username)
}

func TestLogin_WrongPasswordKeepsSession(t *testing.T) {
	f := newFixture(t)
	f.srv.SeedUser("alice", "secret1")
	f.srv.SeedUser("bob", "secret2")
	ctx := context.Background()

	_, err := f.svc.Login(ctx, forms.LoginForm{Username: "bob", Password: "secret2"})
	require.NoError(t, err)
	before := f.session.State()

	state, err := f.svc.Login(ctx, forms.LoginForm{Username: "alice", Password: "wrong12"})
	require.Error(t, err)
	assert.ErrorIs(t, err, blogapi.ErrInvalidCredentials)
	assert.Contains(t, err.Error(), "Invalid username or password")
	assert.Equal(t, before, state)
	assert.Equal(t, before, f.session.State())
}

func TestLogin_InvalidFormNeverDispatches(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Login(context.Background(), forms.LoginForm{})
	var ve *forms.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Empty(t, f.srv.AuthHeaders())
	assert.False(t, f.session.State().IsAuthenticated)
}

func TestLogin_IdentityLookupFails(t *testing.T) {
	backend := apitest.New()
	backend.SeedUser("alice", "secret1")
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/users/") {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		backend.ServeHTTP(w, r)
	}))
	t.Cleanup(ts.Close)

	sess := session.New(storage.NewMemoryStorage(), logging.Discard())
	api := apiclient.NewClient(ts.URL, sess, logging.Discard())
	svc := NewService(blogapi.NewAuthClient(api), sess, logging.Discard())

	state, err := svc.Login(context.Background(), forms.LoginForm{Username: "alice", Password: "secret1"})
	var ie *IdentityError
	require.True(t, errors.As(err, &ie), "got %v", err)
	assert.Equal(t, "alice", ie.Username)
	assert.Equal(t, http.StatusInternalServerError, apiclient.StatusCode(err))
	assert.False(t, errors.Is(err, blogapi.ErrInvalidCredentials))
	assert.False(t, state.IsAuthenticated)
	assert.Equal(t, session.State{}, sess.State())
}

func TestRegister_Taken(t *testing.T) {
	f := newFixture(t)
	f.srv.SeedUser("alice", "secret1")

	state, err := f.svc.Register(context.Background(), forms.RegisterForm{Username: "alice", Password: "secret1", ConfirmPassword: "secret1"})
	assert.ErrorIs(t, err, blogapi.ErrUsernameTaken)
	assert.False(t, state.IsAuthenticated)
}

func TestLogout(t *testing.T) {
	f := newFixture(t)
	f.srv.SeedUser("alice", "secret1")
	ctx := context.Background()

	_, err := f.svc.Login(ctx, forms.LoginForm{Username: "alice", Password: "secret1"})
	require.NoError(t, err)

	f.svc.Logout()
	assert.Equal(t, session.State{}, f.svc.State())

	// Requests after logout carry no credentials.
	_, err = f.posts.Create(ctx, model.PostInput{Title: "t", Content: "c"})
	assert.ErrorIs(t, err, blogapi.ErrUnauthorized)
	heads := f.srv.AuthHeaders()
	assert.Equal(t, "", heads[len(heads)-1])
}

func TestCheckModify(t *testing.T) {
	f := newFixture(t)
	aliceID := f.srv.SeedUser("alice", "secret1")
	f.srv.SeedUser("bob", "secret2")
	id := f.srv.SeedPost("alice", "mine", "text")
	ctx := context.Background()

	post, err := f.posts.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, aliceID, post.AuthorID)

	assert.ErrorIs(t, f.svc.CheckModify(post), ErrNotLoggedIn)

	_, err = f.svc.Login(ctx, forms.LoginForm{Username: "bob", Password: "secret2"})
	require.NoError(t, err)
	assert.ErrorIs(t, f.svc.CheckModify(post), ErrNotOwner)
	assert.False(t, CanModify(f.svc.State(), post))

	// The backend agrees when the check is bypassed.
	err = f.posts.Delete(ctx, id)
	assert.ErrorIs(t, err, blogapi.ErrForbidden)

	_, err = f.svc.Login(ctx, forms.LoginForm{Username: "alice", Password: "secret1"})
	require.NoError(t, err)
	assert.NoError(t, f.svc.CheckModify(post))
}

func TestCanModify_Nil(t *testing.T) {
	assert.False(t, CanModify(session.State{}, nil))
	assert.False(t, CanModify(session.State{IsAuthenticated: true}, &model.Post{AuthorID: 1}))
}
