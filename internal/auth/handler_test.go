package auth_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/student-sections/sections-api/internal/auth"
	"github.com/student-sections/sections-api/internal/authority"
	"github.com/student-sections/sections-api/internal/platform/httpx"
	"github.com/student-sections/sections-api/internal/rbac"
	"github.com/student-sections/sections-api/internal/shared"
	"github.com/student-sections/sections-api/internal/users"
	_ "github.com/student-sections/sections-api/testing"
)

type memRepo struct {
	mu       sync.Mutex
	accounts []users.Account
}

func (m *memRepo) Create(_ context.Context, in users.NewUser) (users.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if a.Email == in.Email {
			return users.User{}, shared.ErrDuplicate
		}
	}
	u := users.User{ID: int64(len(m.accounts) + 1), Email: in.Email, FullName: in.FullName, Role: in.Role, IsActive: true}
	m.accounts = append(m.accounts, users.Account{User: u, PasswordHash: in.PasswordHash})
	return u, nil
}

func (m *memRepo) FindByEmail(_ context.Context, email string) (users.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if a.Email == email {
			return a, nil
		}
	}
	return users.Account{}, shared.ErrNotFound
}

func (m *memRepo) FindByID(_ context.Context, id int64) (users.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id < 1 || int(id) > len(m.accounts) {
		return users.Account{}, shared.ErrNotFound
	}
	return m.accounts[id-1], nil
}

func (m *memRepo) List(_ context.Context, limit, offset int) ([]users.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]users.User, 0, len(m.accounts))
	for i, a := range m.accounts {
		if i >= offset && len(out) < limit {
			out = append(out, a.User)
		}
	}
	return out, nil
}

func (m *memRepo) Count(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.accounts), nil
}

func (m *memRepo) UpdatePassword(_ context.Context, id int64, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id < 1 || int(id) > len(m.accounts) {
		return shared.ErrNotFound
	}
	m.accounts[id-1].PasswordHash = hash
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []shared.AuthEvent
}

func (p *recordingPublisher) Publish(_ context.Context, event shared.AuthEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) kinds() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Kind)
	}
	return out
}

type testServer struct {
	router    http.Handler
	events    *recordingPublisher
	authority *authority.Authority
}

func newTestServer(t *testing.T, loginPerMinute int) *testServer {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	hasher := authority.NewHasher(authority.HasherParams{Memory: 1024, Time: 1, Threads: 1})
	signer, err := authority.NewHMACSigner([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)

	repo := &memRepo{}
	authz, err := authority.New(authority.Config{
		Signer:      signer,
		TTL:         30 * time.Minute,
		Hasher:      hasher,
		Revocations: authority.NewRedisRevocationList(client),
	}, users.NewPrincipalStore(repo))
	require.NoError(t, err)

	accounts := users.NewService(repo, hasher, authz)
	_, err = accounts.EnsureInitialAdmin(context.Background(), "admin@example.com", "Admin123", "Admin")
	require.NoError(t, err)

	events := &recordingPublisher{}
	middleware := rbac.Middleware{Authority: authz, Logger: logger}
	handler := auth.NewHandler(logger, auth.NewService(logger, authz, accounts, events), middleware, loginPerMinute)

	r := chi.NewRouter()
	r.Route("/api/v1/auth", handler.MountRoutes)
	return &testServer{router: r, events: events, authority: authz}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)
	return rr
}

func (s *testServer) login(t *testing.T, email, password string) authority.Token {
	t.Helper()
	rr := s.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": email, "password": password})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var token authority.Token
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &token))
	return token
}

func TestLoginIssuesBearerToken(t *testing.T) {
	s := newTestServer(t, 0)

	token := s.login(t, "ADMIN@example.com", "Admin123")
	assert.Equal(t, "bearer", token.TokenType)
	assert.Equal(t, int64(1800), token.ExpiresIn)
	assert.NotEmpty(t, token.AccessToken)
	assert.Equal(t, []string{shared.EventLoginSucceeded}, s.events.kinds())
}

func TestLoginInvalidCredentials(t *testing.T) {
	s := newTestServer(t, 0)

	for _, body := range []map[string]string{
		{"email": "admin@example.com", "password": "wrongpass1"},
		{"email": "ghost@example.com", "password": "Admin123"},
	} {
		rr := s.do(t, http.MethodPost, "/api/v1/auth/login", "", body)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		var problem httpx.ProblemDetail
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &problem))
		assert.Equal(t, "incorrect email or password", problem.Detail)
	}
	assert.Equal(t, []string{shared.EventLoginFailed, shared.EventLoginFailed}, s.events.kinds())
}

func TestLoginRejectsBadPayload(t *testing.T) {
	s := newTestServer(t, 0)

	rr := s.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": "nope", "password": ""})
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	labels := []string{strings.Repeat("a", 60), strings.Repeat("b", 60), strings.Repeat("c", 60), strings.Repeat("d", 60), strings.Repeat("e", 60)}
	long := "alice@" + strings.Join(labels, ".") + ".com"
	require.Greater(t, len(long), 255)
	rr = s.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": long, "password": "Admin123"})
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Empty(t, s.events.kinds())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewBufferString("{"))
	res := httptest.NewRecorder()
	s.router.ServeHTTP(res, req)
	assert.Equal(t, http.StatusBadRequest, res.Code)
}

func TestRegisterMeAndChangePassword(t *testing.T) {
	s := newTestServer(t, 0)

	rr := s.do(t, http.MethodPost, "/api/v1/auth/register", "", users.RegisterInput{Email: "alice@example.com", FullName: "Alice", Password: "Student42"})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var created users.User
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &created))
	assert.Equal(t, authority.RoleUser, created.Role)

	rr = s.do(t, http.MethodPost, "/api/v1/auth/register", "", users.RegisterInput{Email: "alice@example.com", FullName: "Alice", Password: "Student42"})
	assert.Equal(t, http.StatusConflict, rr.Code)

	token := s.login(t, "alice@example.com", "Student42")

	rr = s.do(t, http.MethodGet, "/api/v1/auth/me", token.AccessToken, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var me users.User
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &me))
	assert.Equal(t, "alice@example.com", me.Email)

	rr = s.do(t, http.MethodPost, "/api/v1/auth/change-password", token.AccessToken, users.ChangePasswordInput{CurrentPassword: "nope", NewPassword: "Student43"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = s.do(t, http.MethodPost, "/api/v1/auth/change-password", token.AccessToken, users.ChangePasswordInput{CurrentPassword: "Student42", NewPassword: "Student43"})
	assert.Equal(t, http.StatusNoContent, rr.Code)

	s.login(t, "alice@example.com", "Student43")
	rr = s.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": "alice@example.com", "password": "Student42"})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestAdminCreateUserRequiresCapability(t *testing.T) {
	s := newTestServer(t, 0)
	admin := s.login(t, "admin@example.com", "Admin123")

	body := users.CreateInput{Email: "bob@example.com", FullName: "Bob", Password: "Faculty77", Role: "admin"}
	rr := s.do(t, http.MethodPost, "/api/v1/auth/admin/create-user", admin.AccessToken, body)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = s.do(t, http.MethodPost, "/api/v1/auth/register", "", users.RegisterInput{Email: "carl@example.com", FullName: "Carl", Password: "Student42"})
	require.Equal(t, http.StatusCreated, rr.Code)
	user := s.login(t, "carl@example.com", "Student42")

	body.Email = "eve@example.com"
	rr = s.do(t, http.MethodPost, "/api/v1/auth/admin/create-user", user.AccessToken, body)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = s.do(t, http.MethodPost, "/api/v1/auth/admin/create-user", "", body)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestRefreshAndLogout(t *testing.T) {
	s := newTestServer(t, 0)
	token := s.login(t, "admin@example.com", "Admin123")

	rr := s.do(t, http.MethodPost, "/api/v1/auth/refresh", token.AccessToken, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var refreshed authority.Token
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &refreshed))
	assert.NotEqual(t, token.AccessToken, refreshed.AccessToken)

	rr = s.do(t, http.MethodPost, "/api/v1/auth/logout", token.AccessToken, nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = s.do(t, http.MethodGet, "/api/v1/auth/me", token.AccessToken, nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = s.do(t, http.MethodGet, "/api/v1/auth/me", refreshed.AccessToken, nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, s.events.kinds(), shared.EventLoggedOut)
}

func TestLoginRateLimit(t *testing.T) {
	s := newTestServer(t, 2)
	body := map[string]string{"email": "admin@example.com", "password": "wrongpass1"}

	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodPost, "/api/v1/auth/login", "", body).Code)
	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodPost, "/api/v1/auth/login", "", body).Code)
	assert.Equal(t, http.StatusTooManyRequests, s.do(t, http.MethodPost, "/api/v1/auth/login", "", body).Code)
}
