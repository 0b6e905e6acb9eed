package auth_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/formgate/formgate/internal/auth"
	"github.com/formgate/formgate/internal/shared"
)

type stubRepo struct {
	user            *auth.User
	createdSessions []string
	deletedSessions []string
}

func (s *stubRepo) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	if s.user == nil || s.user.Email != email {
		return nil, shared.ErrNotFound
	}
	return s.user, nil
}

func (s *stubRepo) CreateSession(ctx context.Context, id string, userID int64, expiresAt time.Time, ip, ua string) error {
	s.createdSessions = append(s.createdSessions, id)
	return nil
}

func (s *stubRepo) DeleteSession(ctx context.Context, id string) error {
	s.deletedSessions = append(s.deletedSessions, id)
	return nil
}

func newAuthHandler(t *testing.T, repo auth.Repository) (*auth.Handler, *shared.SessionManager) {
	t.Helper()
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sessionManager := shared.NewSessionManager(redisClient, "formgate_session", time.Hour, false)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := auth.NewHandler(logger, auth.NewService(repo), sessionManager)
	return handler, sessionManager
}

func doLogin(t *testing.T, handler *auth.Handler, sm *shared.SessionManager, body string) (*httptest.ResponseRecorder, *shared.Session) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	sess, err := sm.Load(context.Background(), req)
	require.NoError(t, err)
	req = req.WithContext(shared.ContextWithSession(req.Context(), sess))

	res := httptest.NewRecorder()
	newRouter(handler).ServeHTTP(res, req)
	require.NoError(t, sm.Commit(req.Context(), res, sess))
	return res, sess
}

func newRouter(handler *auth.Handler) http.Handler {
	r := chi.NewRouter()
	handler.MountRoutes(r)
	return r
}

func TestLoginSuccess(t *testing.T) {
	hashed, err := bcrypt.GenerateFromPassword([]byte("correct-horse"), bcrypt.DefaultCost)
	require.NoError(t, err)

	repo := &stubRepo{user: &auth.User{ID: 42, Email: "user@test.local", PasswordHash: string(hashed), IsActive: true}}
	handler, sm := newAuthHandler(t, repo)

	res, sess := doLogin(t, handler, sm, `{"email":"user@test.local","password":"correct-horse"}`)

	require.Equal(t, http.StatusOK, res.Code)
	var payload struct {
		UserID int64  `json:"user_id"`
		Email  string `json:"email"`
	}
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &payload))
	assert.Equal(t, int64(42), payload.UserID)
	assert.Equal(t, "42", sess.User())
	assert.Equal(t, []string{sess.ID}, repo.createdSessions)
}

func TestLoginInvalidCredentials(t *testing.T) {
	hashed, err := bcrypt.GenerateFromPassword([]byte("correct-horse"), bcrypt.DefaultCost)
	require.NoError(t, err)

	repo := &stubRepo{user: &auth.User{ID: 42, Email: "user@test.local", PasswordHash: string(hashed), IsActive: true}}
	handler, sm := newAuthHandler(t, repo)

	res, sess := doLogin(t, handler, sm, `{"email":"user@test.local","password":"wrong-password"}`)

	require.Equal(t, http.StatusUnauthorized, res.Code)
	assert.Empty(t, sess.User())
	assert.Empty(t, repo.createdSessions)
}

func TestLoginInactiveUser(t *testing.T) {
	hashed, err := bcrypt.GenerateFromPassword([]byte("correct-horse"), bcrypt.DefaultCost)
	require.NoError(t, err)

	repo := &stubRepo{user: &auth.User{ID: 42, Email: "user@test.local", PasswordHash: string(hashed), IsActive: false}}
	handler, sm := newAuthHandler(t, repo)

	res, _ := doLogin(t, handler, sm, `{"email":"user@test.local","password":"correct-horse"}`)

	require.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestLoginValidation(t *testing.T) {
	handler, sm := newAuthHandler(t, &stubRepo{})

	res, _ := doLogin(t, handler, sm, `{"email":"not-an-email","password":"short"}`)

	require.Equal(t, http.StatusBadRequest, res.Code)
}

func TestLogoutDestroysSession(t *testing.T) {
	repo := &stubRepo{}
	handler, sm := newAuthHandler(t, repo)

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	sess, err := sm.Load(context.Background(), req)
	require.NoError(t, err)
	sess.SetUser("42")
	req = req.WithContext(shared.ContextWithSession(req.Context(), sess))

	res := httptest.NewRecorder()
	newRouter(handler).ServeHTTP(res, req)

	require.Equal(t, http.StatusNoContent, res.Code)
	assert.Equal(t, []string{sess.ID}, repo.deletedSessions)
}
