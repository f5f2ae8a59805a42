package blogapi

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/me/blogfront/internal/apiclient"
	"github.com/me/blogfront/internal/apitest"
	"github.com/me/blogfront/internal/logging"
	"github.com/me/blogfront/pkg/model"
)

// pngHeader is enough for content sniffing.
var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

type tokenBox struct {
	mu  sync.Mutex
	tok string
}

func (b *tokenBox) Token() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tok
}

func (b *tokenBox) set(tok string) {
	b.mu.Lock()
	b.tok = tok
	b.mu.Unlock()
}

type fixture struct {
	srv    *apitest.Server
	tokens *tokenBox
	auth   *AuthClient
	posts  *PostsClient
}

func newFixture(t *testing.T, opts ...apitest.Option) *fixture {
	t.Helper()
	srv, url := apitest.Start(t, opts...)
	tokens := &tokenBox{}
	api := apiclient.NewClient(url, tokens, logging.Discard())
	return &fixture{
		srv:    srv,
		tokens: tokens,
		auth:   NewAuthClient(api),
		posts:  NewPostsClient(api),
	}
}

func TestRegisterLoginCreate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user, err := f.auth.Register(ctx, "alice", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.NotZero(t, user.ID)

	tok, err := f.auth.Login(ctx, "alice", "secret1")
	require.NoError(t, err)
	assert.NotEmpty(t, tok.AccessToken)
	assert.Equal(t, "bearer", tok.TokenType)

	f.tokens.set(tok.AccessToken)
	post, err := f.posts.Create(ctx, model.PostInput{Title: "Hello", Content: "World"})
	require.NoError(t, err)
	assert.Equal(t, "Hello", post.Title)
	assert.Equal(t, "World", post.Content)
	assert.Equal(t, "alice", post.AuthorName())
	assert.False(t, post.HasImage())
	assert.False(t, post.CreatedAt.IsZero())

	page, err := f.posts.List(ctx, model.DefaultListOptions())
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, post.ID, page.Items[0].ID)
	assert.Equal(t, "alice", page.Items[0].AuthorName())
}

func TestRegister_UsernameTaken(t *testing.T) {
	f := newFixture(t)
	f.srv.SeedUser("alice", "secret1")

	_, err := f.auth.Register(context.Background(), "alice", "other12")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUsernameTaken)
	assert.Equal(t, 400, apiclient.StatusCode(err))
	assert.Equal(t, "Username already registered", apiclient.Detail(err))
}

func TestLogin_InvalidCredentials(t *testing.T) {
	f := newFixture(t)
	f.srv.SeedUser("alice", "secret1")

	for _, tc := range []struct{ name, user, pass string }{
		{"wrong password", "alice", "nope123"},
		{"unknown user", "bob", "secret1"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.auth.Login(context.Background(), tc.user, tc.pass)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidCredentials)
			assert.Contains(t, err.Error(), "Invalid username or password")

			var he *apiclient.HTTPError
			require.ErrorAs(t, err, &he)
			assert.Equal(t, 400, he.StatusCode)
		})
	}
}

func TestGetUser(t *testing.T) {
	f := newFixture(t)
	id := f.srv.SeedUser("alice", "secret1")

	user, err := f.auth.GetUser(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, id, user.ID)

	_, err = f.auth.GetUser(context.Background(), "nobody")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreate_RequiresToken(t *testing.T) {
	f := newFixture(t)

	_, err := f.posts.Create(context.Background(), model.PostInput{Title: "t", Content: "c"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, 0, f.srv.PostCount())
	assert.Equal(t, []string{""}, f.srv.AuthHeaders())
}

func TestCreate_WithImage(t *testing.T) {
	f := newFixture(t)
	f.srv.SeedUser("alice", "secret1")
	f.tokens.set(f.srv.Token("alice"))

	post, err := f.posts.Create(context.Background(), model.PostInput{
		Title:     "pic",
		Content:   "see image",
		Image:     bytes.NewReader(pngHeader),
		ImageName: "a.png",
	})
	require.NoError(t, err)
	require.True(t, post.HasImage())

	data, err := post.DecodeImage()
	require.NoError(t, err)
	assert.Equal(t, pngHeader, data)
}

func TestSearch(t *testing.T) {
	f := newFixture(t)
	f.srv.SeedUser("alice", "secret1")
	f.srv.SeedPost("alice", "Go tips", "channels")
	f.srv.SeedPost("alice", "Cooking", "pasta with GO-juice")
	f.srv.SeedPost("alice", "Travel", "Lisbon")
	ctx := context.Background()

	page, err := f.posts.Search(ctx, "go", model.DefaultListOptions())
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)

	// A blank query is the plain listing.
	all, err := f.posts.List(ctx, model.DefaultListOptions())
	require.NoError(t, err)
	for _, q := range []string{"", "   "} {
		blank, err := f.posts.Search(ctx, q, model.DefaultListOptions())
		require.NoError(t, err)
		assert.Equal(t, all, blank)
	}
}

func TestList_NewestFirst(t *testing.T) {
	f := newFixture(t)
	f.srv.SeedUser("alice", "secret1")
	first := f.srv.SeedPost("alice", "one", "1")
	second := f.srv.SeedPost("alice", "two", "2")

	page, err := f.posts.List(context.Background(), model.DefaultListOptions())
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.Equal(t, second, page.Items[0].ID)
	assert.Equal(t, first, page.Items[1].ID)
}

func seedPosts(srv *apitest.Server, n int) {
	srv.SeedUser("alice", "secret1")
	for i := 0; i < n; i++ {
		srv.SeedPost("alice", fmt.Sprintf("post %d", i), "body")
	}
}

func TestList_ProbePagination(t *testing.T) {
	f := newFixture(t)
	seedPosts(f.srv, 12)
	ctx := context.Background()

	first, err := f.posts.List(ctx, model.PageOptions(1, model.PostsPerPage))
	require.NoError(t, err)
	assert.Len(t, first.Items, 9)
	assert.True(t, first.HasMore)
	assert.Equal(t, -1, first.Total)
	assert.Equal(t, -1, first.PageCount())

	second, err := f.posts.List(ctx, model.PageOptions(2, model.PostsPerPage))
	require.NoError(t, err)
	assert.Len(t, second.Items, 3)
	assert.False(t, second.HasMore)
	assert.Equal(t, 2, second.PageNumber())

	third, err := f.posts.List(ctx, model.PageOptions(3, model.PostsPerPage))
	require.NoError(t, err)
	assert.Empty(t, third.Items)
	assert.NotNil(t, third.Items)
	assert.False(t, third.HasMore)
}

func TestList_ExactPageHasNoMore(t *testing.T) {
	f := newFixture(t)
	seedPosts(f.srv, 9)

	page, err := f.posts.List(context.Background(), model.PageOptions(1, model.PostsPerPage))
	require.NoError(t, err)
	assert.Len(t, page.Items, 9)
	assert.False(t, page.HasMore)
}

func TestList_MaxLimitAssumesMoreWhenFull(t *testing.T) {
	f := newFixture(t)
	seedPosts(f.srv, model.MaxLimit)

	page, err := f.posts.List(context.Background(), model.ListOptions{Limit: 500})
	require.NoError(t, err)
	assert.Equal(t, model.MaxLimit, page.Limit)
	assert.Len(t, page.Items, model.MaxLimit)
	assert.True(t, page.HasMore)
}

func TestList_TotalCountHeader(t *testing.T) {
	f := newFixture(t, apitest.WithTotalCount())
	seedPosts(f.srv, 12)
	ctx := context.Background()

	first, err := f.posts.List(ctx, model.PageOptions(1, model.PostsPerPage))
	require.NoError(t, err)
	assert.Equal(t, 12, first.Total)
	assert.Equal(t, 2, first.PageCount())
	assert.True(t, first.HasMore)

	second, err := f.posts.List(ctx, model.PageOptions(2, model.PostsPerPage))
	require.NoError(t, err)
	assert.False(t, second.HasMore)
}

func TestUpdate(t *testing.T) {
	f := newFixture(t)
	f.srv.SeedUser("alice", "secret1")
	id := f.srv.SeedPost("alice", "old title", "old content")
	f.tokens.set(f.srv.Token("alice"))
	ctx := context.Background()

	post, err := f.posts.Update(ctx, id, model.PostInput{Title: "new title"})
	require.NoError(t, err)
	assert.Equal(t, "new title", post.Title)
	assert.Equal(t, "old content", post.Content)
	assert.True(t, post.Edited())
}

func TestUpdate_NothingToChange(t *testing.T) {
	f := newFixture(t)
	f.srv.SeedUser("alice", "secret1")
	id := f.srv.SeedPost("alice", "t", "c")
	f.tokens.set(f.srv.Token("alice"))

	_, err := f.posts.Update(context.Background(), id, model.PostInput{})
	assert.ErrorIs(t, err, ErrNothingToUpdate)
	// No request went out.
	assert.Empty(t, f.srv.AuthHeaders())
}

func TestWrite_NotAuthor(t *testing.T) {
	f := newFixture(t)
	f.srv.SeedUser("alice", "secret1")
	f.srv.SeedUser("bob", "secret2")
	id := f.srv.SeedPost("alice", "mine", "hands off")
	f.tokens.set(f.srv.Token("bob"))
	ctx := context.Background()

	_, err := f.posts.Update(ctx, id, model.PostInput{Title: "hijacked"})
	assert.ErrorIs(t, err, ErrForbidden)

	err = f.posts.Delete(ctx, id)
	assert.ErrorIs(t, err, ErrForbidden)
	assert.Equal(t, 1, f.srv.PostCount())
}

func TestGetAndDelete(t *testing.T) {
	f := newFixture(t)
	f.srv.SeedUser("alice", "secret1")
	id := f.srv.SeedPost("alice", "t", "c")
	f.tokens.set(f.srv.Token("alice"))
	ctx := context.Background()

	post, err := f.posts.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "t", post.Title)

	require.NoError(t, f.posts.Delete(ctx, id))
	assert.Equal(t, 0, f.srv.PostCount())

	_, err = f.posts.Get(ctx, id)
	assert.ErrorIs(t, err, ErrNotFound)
	err = f.posts.Delete(ctx, id)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestError_Unwrap(t *testing.T) {
	cause := &apiclient.HTTPError{Method: "GET", Path: "/posts/1", StatusCode: 404}
	err := remap("get post", cause, map[int]error{404: ErrNotFound})

	assert.Equal(t, "get post: not found", err.Error())
	assert.True(t, errors.Is(err, ErrNotFound))
	var he *apiclient.HTTPError
	assert.True(t, errors.As(err, &he))

	other := remap("get post", &apiclient.HTTPError{StatusCode: 500}, map[int]error{404: ErrNotFound})
	assert.False(t, errors.Is(other, ErrNotFound))
	assert.Equal(t, 500, apiclient.StatusCode(other))
}
