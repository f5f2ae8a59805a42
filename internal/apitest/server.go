// Package apitest provides an in-memory stand-in for the blog backend so
// client code can be exercised end to end in tests. It mirrors the
// backend's routes, status codes and error bodies, not its storage.
package apitest

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/me/blogfront/internal/logging"
)

// timeLayout is the backend's naive ISO-8601 rendering.
const timeLayout = "2006-01-02T15:04:05.000000"

type user struct {
	ID       int64
	Username string
	Hash     []byte
}

type post struct {
	ID        int64
	Title     string
	Content   string
	Image     []byte
	CreatedAt time.Time
	UpdatedAt time.Time
	AuthorID  int64
}

// Server is a fake blog backend.
type Server struct {
	mu         sync.Mutex
	users      map[string]*user
	posts      map[int64]*post
	nextUserID int64
	nextPostID int64
	authHeads  []string

	secret     []byte
	tokenTTL   time.Duration
	totalCount bool
	now        func() time.Time
	logger     *slog.Logger
	router     chi.Router
}

// Option configures a Server.
type Option func(*Server)

// WithTotalCount makes list endpoints send X-Total-Count.
func WithTotalCount() Option {
	return func(s *Server) { s.totalCount = true }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// WithTokenTTL sets the lifetime of issued tokens (default 30 minutes).
func WithTokenTTL(d time.Duration) Option {
	return func(s *Server) { s.tokenTTL = d }
}

// WithLogger logs served requests at debug level.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// New creates a fake backend.
func New(opts ...Option) *Server {
	s := &Server{
		users:    make(map[string]*user),
		posts:    make(map[int64]*post),
		secret:   []byte("apitest-secret"),
		tokenTTL: 30 * time.Minute,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.OrDiscard(s.logger).With("component", "apitest")
	s.routes()
	return s
}

// Start serves s on an httptest server closed at test cleanup and returns
// its base URL.
func Start(t testing.TB, opts ...Option) (*Server, string) {
	t.Helper()
	s := New(opts...)
	ts := httptest.NewServer(s)
	t.Cleanup(ts.Close)
	return s, ts.URL
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLog(s.logger))
	r.Use(s.recordAuth)

	r.Post("/register", s.handleRegister)
	r.Post("/token", s.handleToken)
	r.Get("/users/{username}", s.handleGetUser)

	r.Get("/posts", s.handleListPosts)
	r.Get("/posts/search", s.handleSearchPosts)
	r.Get("/posts/{id}", s.handleGetPost)
	r.Post("/posts", s.handleCreatePost)
	r.Put("/posts/{id}", s.handleUpdatePost)
	r.Delete("/posts/{id}", s.handleDeletePost)

	s.router = r
}

func (s *Server) recordAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.authHeads = append(s.authHeads, r.Header.Get("Authorization"))
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

// AuthHeaders returns the Authorization header of every request served, in
// order ("" when absent).
func (s *Server) AuthHeaders() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.authHeads...)
}

// --- seeding helpers ---

// SeedUser registers username directly and returns its id.
func (s *Server) SeedUser(username, password string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, err := s.addUserLocked(username, password)
	if err != nil {
		panic(err)
	}
	return u.ID
}

// SeedPost stores a post by username and returns its id. Each seeded post is
// one second newer than the previous one.
func (s *Server) SeedPost(username, title, content string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[username]
	if !ok {
		panic(fmt.Sprintf("apitest: unknown user %q", username))
	}
	p := s.addPostLocked(u, title, content, nil)
	p.CreatedAt = p.CreatedAt.Add(time.Duration(p.ID) * time.Second)
	p.UpdatedAt = p.CreatedAt
	return p.ID
}

// Token issues a valid token for username, as /token would.
func (s *Server) Token(username string) string {
	tok, err := s.issueToken(username)
	if err != nil {
		panic(err)
	}
	return tok
}

// PostCount returns the number of stored posts.
func (s *Server) PostCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.posts)
}

func (s *Server) addUserLocked(username, password string) (*user, error) {
	if _, exists := s.users[username]; exists {
		return nil, errors.New("Username already registered")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return nil, err
	}
	s.nextUserID++
	u := &user{ID: s.nextUserID, Username: username, Hash: hash}
	s.users[username] = u
	return u, nil
}

func (s *Server) addPostLocked(author *user, title, content string, image []byte) *post {
	s.nextPostID++
	now := s.now().UTC()
	p := &post{
		ID:        s.nextPostID,
		Title:     title,
		Content:   content,
		Image:     image,
		CreatedAt: now,
		UpdatedAt: now,
		AuthorID:  author.ID,
	}
	s.posts[p.ID] = p
	return p
}

// --- tokens ---

func (s *Server) issueToken(username string) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   username,
		ExpiresAt: jwt.NewNumericDate(s.now().Add(s.tokenTTL)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// currentUser resolves the bearer token the way the backend does: 401 when
// missing or invalid.
func (s *Server) currentUser(w http.ResponseWriter, r *http.Request) (*user, bool) {
	header := r.Header.Get("Authorization")
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || raw == "" {
		w.Header().Set("WWW-Authenticate", "Bearer")
		writeDetail(w, http.StatusUnauthorized, "Not authenticated")
		return nil, false
	}

	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil || claims.Subject == "" {
		w.Header().Set("WWW-Authenticate", "Bearer")
		writeDetail(w, http.StatusUnauthorized, "Could not validate credentials")
		return nil, false
	}

	s.mu.Lock()
	u, ok := s.users[claims.Subject]
	s.mu.Unlock()
	if !ok {
		writeDetail(w, http.StatusNotFound, "User not found")
		return nil, false
	}
	return u, true
}

// --- auth handlers ---

type credentials struct {
	Username *string `json:"username"`
	Password *string `json:"password"`
}

func decodeCredentials(w http.ResponseWriter, r *http.Request) (string, string, bool) {
	var c credentials
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		writeValidation(w, fieldError{Loc: []any{"body"}, Msg: "invalid JSON", Type: "value_error.jsondecode"})
		return "", "", false
	}
	var missing []fieldError
	if c.Username == nil {
		missing = append(missing, missingField("body", "username"))
	}
	if c.Password == nil {
		missing = append(missing, missingField("body", "password"))
	}
	if len(missing) > 0 {
		writeValidation(w, missing...)
		return "", "", false
	}
	return *c.Username, *c.Password, true
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	username, password, ok := decodeCredentials(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	u, err := s.addUserLocked(username, password)
	s.mu.Unlock()
	if err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, userOut{ID: u.ID, Username: u.Username})
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	username, password, ok := decodeCredentials(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	u, exists := s.users[username]
	s.mu.Unlock()
	if !exists {
		writeDetail(w, http.StatusBadRequest, "Incorrect username")
		return
	}
	if bcrypt.CompareHashAndPassword(u.Hash, []byte(password)) != nil {
		writeDetail(w, http.StatusBadRequest, "Incorrect password")
		return
	}
	tok, err := s.issueToken(u.Username)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"access_token": tok, "token_type": "bearer"})
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	u, ok := s.users[chi.URLParam(r, "username")]
	s.mu.Unlock()
	if !ok {
		writeDetail(w, http.StatusNotFound, "User not found")
		return
	}
	writeJSON(w, http.StatusOK, userOut{ID: u.ID, Username: u.Username})
}

// --- post handlers ---

func (s *Server) handleListPosts(w http.ResponseWriter, r *http.Request) {
	s.listPosts(w, r, func(*post) bool { return true })
}

func (s *Server) handleSearchPosts(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")
	if query == "" {
		writeValidation(w, fieldError{Loc: []any{"query", "query"}, Msg: "ensure this value has at least 1 characters", Type: "value_error.any_str.min_length"})
		return
	}
	needle := strings.ToLower(query)
	s.listPosts(w, r, func(p *post) bool {
		return strings.Contains(strings.ToLower(p.Title), needle) || strings.Contains(strings.ToLower(p.Content), needle)
	})
}

func (s *Server) listPosts(w http.ResponseWriter, r *http.Request, match func(*post) bool) {
	skip, limit, ok := pageParams(w, r)
	if !ok {
		return
	}

	s.mu.Lock()
	var matched []*post
	for _, p := range s.posts {
		if match(p) {
			matched = append(matched, p)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})
	total := len(matched)
	if skip > len(matched) {
		skip = len(matched)
	}
	end := skip + limit
	if end > len(matched) {
		end = len(matched)
	}
	out := make([]postOut, 0, end-skip)
	for _, p := range matched[skip:end] {
		out = append(out, s.renderLocked(p))
	}
	s.mu.Unlock()

	if s.totalCount {
		w.Header().Set("X-Total-Count", strconv.Itoa(total))
	}
	writeJSON(w, http.StatusOK, out)
}

func pageParams(w http.ResponseWriter, r *http.Request) (int, int, bool) {
	skip, limit := 0, 10
	var errs []fieldError
	if v := r.URL.Query().Get("skip"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			errs = append(errs, fieldError{Loc: []any{"query", "skip"}, Msg: "ensure this value is greater than or equal to 0", Type: "value_error"})
		}
		skip = n
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 100 {
			errs = append(errs, fieldError{Loc: []any{"query", "limit"}, Msg: "ensure this value is between 1 and 100", Type: "value_error"})
		}
		limit = n
	}
	if len(errs) > 0 {
		writeValidation(w, errs...)
		return 0, 0, false
	}
	return skip, limit, true
}

func (s *Server) lookupPost(w http.ResponseWriter, r *http.Request) (*post, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeValidation(w, fieldError{Loc: []any{"path", "post_id"}, Msg: "value is not a valid integer", Type: "type_error.integer"})
		return nil, false
	}
	s.mu.Lock()
	p, ok := s.posts[id]
	s.mu.Unlock()
	if !ok {
		writeDetail(w, http.StatusNotFound, "Post not found")
		return nil, false
	}
	return p, true
}

func (s *Server) handleGetPost(w http.ResponseWriter, r *http.Request) {
	p, ok := s.lookupPost(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	out := s.renderLocked(p)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

// readPostForm parses the multipart body. Missing fields come back empty.
func readPostForm(w http.ResponseWriter, r *http.Request) (title, content string, image []byte, ok bool) {
	if err := r.ParseMultipartForm(10 << 20); err != nil {
		writeValidation(w, fieldError{Loc: []any{"body"}, Msg: "invalid multipart body", Type: "value_error"})
		return "", "", nil, false
	}
	title = r.FormValue("title")
	content = r.FormValue("content")
	f, _, err := r.FormFile("image")
	if err == nil {
		defer f.Close()
		image, err = io.ReadAll(f)
		if err != nil {
			writeDetail(w, http.StatusBadRequest, "could not read image")
			return "", "", nil, false
		}
	}
	return title, content, image, true
}

func (s *Server) handleCreatePost(w http.ResponseWriter, r *http.Request) {
	u, ok := s.currentUser(w, r)
	if !ok {
		return
	}
	title, content, image, ok := readPostForm(w, r)
	if !ok {
		return
	}
	var missing []fieldError
	if title == "" {
		missing = append(missing, missingField("body", "title"))
	}
	if content == "" {
		missing = append(missing, missingField("body", "content"))
	}
	if len(missing) > 0 {
		writeValidation(w, missing...)
		return
	}

	s.mu.Lock()
	out := s.renderLocked(s.addPostLocked(u, title, content, image))
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleUpdatePost(w http.ResponseWriter, r *http.Request) {
	u, ok := s.currentUser(w, r)
	if !ok {
		return
	}
	p, ok := s.lookupPost(w, r)
	if !ok {
		return
	}
	if p.AuthorID != u.ID {
		writeDetail(w, http.StatusForbidden, "Not authorized to update this post")
		return
	}
	title, content, image, ok := readPostForm(w, r)
	if !ok {
		return
	}

	s.mu.Lock()
	if title != "" {
		p.Title = title
	}
	if content != "" {
		p.Content = content
	}
	if image != nil {
		p.Image = image
	}
	p.UpdatedAt = s.now().UTC()
	out := s.renderLocked(p)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDeletePost(w http.ResponseWriter, r *http.Request) {
	u, ok := s.currentUser(w, r)
	if !ok {
		return
	}
	p, ok := s.lookupPost(w, r)
	if !ok {
		return
	}
	if p.AuthorID != u.ID {
		writeDetail(w, http.StatusForbidden, "Not authorized to delete this post")
		return
	}
	s.mu.Lock()
	delete(s.posts, p.ID)
	s.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

// --- rendering ---

type userOut struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

type postOut struct {
	ID        int64    `json:"id"`
	Title     string   `json:"title"`
	Content   string   `json:"content"`
	Image     *string  `json:"image"`
	ImageData *string  `json:"image_data"`
	CreatedAt string   `json:"created_at"`
	UpdatedAt string   `json:"updated_at"`
	AuthorID  int64    `json:"author_id"`
	Author    *userOut `json:"author"`
}

func (s *Server) renderLocked(p *post) postOut {
	out := postOut{
		ID:        p.ID,
		Title:     p.Title,
		Content:   p.Content,
		CreatedAt: p.CreatedAt.Format(timeLayout),
		UpdatedAt: p.UpdatedAt.Format(timeLayout),
		AuthorID:  p.AuthorID,
	}
	if len(p.Image) > 0 {
		enc := base64.StdEncoding.EncodeToString(p.Image)
		out.ImageData = &enc
	}
	for _, u := range s.users {
		if u.ID == p.AuthorID {
			out.Author = &userOut{ID: u.ID, Username: u.Username}
			break
		}
	}
	return out
}

type fieldError struct {
	Loc  []any  `json:"loc"`
	Msg  string `json:"msg"`
	Type string `json:"type"`
}

func missingField(where, name string) fieldError {
	return fieldError{Loc: []any{where, name}, Msg: "field required", Type: "value_error.missing"}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func writeValidation(w http.ResponseWriter, errs ...fieldError) {
	writeJSON(w, http.StatusUnprocessableEntity, map[string][]fieldError{"detail": errs})
}
