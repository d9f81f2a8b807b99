package auth_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qa-portal/internal/auth"
	"qa-portal/internal/config"
	"qa-portal/internal/engine"
	"qa-portal/internal/model"
	"qa-portal/internal/storage"
	"qa-portal/internal/store"
	"qa-portal/internal/tree"
)

const testSecret = "test-secret"

// countingReader counts hierarchy reads.
type countingReader struct {
	tree.Reader
	calls atomic.Int32
}

func (r *countingReader) Standards(ctx context.Context) ([]model.Standard, error) {
	r.calls.Add(1)
	return r.Reader.Standards(ctx)
}

func (r *countingReader) Indicators(ctx context.Context, standardID *int64) ([]model.Indicator, error) {
	r.calls.Add(1)
	return r.Reader.Indicators(ctx, standardID)
}

type testEnv struct {
	app    *fiber.App
	store  *store.Store
	reader *countingReader
}

func newTestEnv(t *testing.T, loginAttempts int) *testEnv {
	t.Helper()
	ctx := context.Background()
	s, err := store.New(ctx, config.DatabaseConfig{Driver: "sqlite", Path: t.TempDir(), Name: "auth"})
	require.NoError(t, err)
	t.Cleanup(s.Close)
	require.NoError(t, s.Bootstrap(ctx))

	log := logrus.New()
	log.SetOutput(io.Discard)

	ah, err := auth.NewAuthHandler(s, config.AuthConfig{
		Password:   "qa-admin",
		JWTSecret:  testSecret,
		AccessTTL:  time.Hour,
		RefreshTTL: time.Hour,
	}, log)
	require.NoError(t, err)

	reader := &countingReader{Reader: tree.FromStore(s)}
	files := storage.NewMemoryStorage("")
	policy, err := engine.NewUploadPolicy(config.DefaultUploadRules, 0)
	require.NoError(t, err)
	h := engine.NewHandler(engine.Deps{
		Store:    s,
		Loader:   tree.NewLoader(reader, log),
		Uploader: engine.NewUploader(files, policy, nil),
		Files:    files,
		Logger:   log,
	})

	app := fiber.New(fiber.Config{ErrorHandler: engine.ErrorHandler(log)})
	auth.RegisterAuthRoutes(app, ah, auth.LoginLimiter(loginAttempts, time.Minute))
	engine.RegisterRoutes(app, h, auth.AuthMiddleware(testSecret), auth.RequireAdmin())
	return &testEnv{app: app, store: s, reader: reader}
}

func (e *testEnv) post(t *testing.T, path string, body any) (int, map[string]any) {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	return e.send(t, req)
}

func (e *testEnv) send(t *testing.T, req *http.Request) (int, map[string]any) {
	t.Helper()
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func (e *testEnv) login(t *testing.T) map[string]any {
	t.Helper()
	status, body := e.post(t, "/api/auth/login", map[string]string{"password": "qa-admin"})
	require.Equal(t, http.StatusOK, status, body)
	return body["data"].(map[string]any)
}

func adminTree(token string) *http.Request {
	req, _ := http.NewRequest(http.MethodGet, "/api/admin/tree", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func TestAdminTree_RequiresToken(t *testing.T) {
	env := newTestEnv(t, 10)

	status, body := env.send(t, adminTree(""))
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHORIZED", body["error"].(map[string]any)["code"])

	status, _ = env.send(t, adminTree("garbage"))
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Zero(t, env.reader.calls.Load(), "no data load before authentication")

	pair := env.login(t)
	status, _ = env.send(t, adminTree(pair["access_token"].(string)))
	assert.Equal(t, http.StatusOK, status)
	assert.NotZero(t, env.reader.calls.Load())
}

func TestAdminMutation_RequiresToken(t *testing.T) {
	env := newTestEnv(t, 10)
	status, _ := env.post(t, "/api/admin/indicators/1/topics", map[string]string{"title": "x"})
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestPublicTree_Open(t *testing.T) {
	env := newTestEnv(t, 10)
	req, _ := http.NewRequest(http.MethodGet, "/api/tree", nil)
	status, _ := env.send(t, req)
	assert.Equal(t, http.StatusOK, status)
}

func TestLogin_WrongPassword(t *testing.T) {
	env := newTestEnv(t, 10)
	status, _ := env.post(t, "/api/auth/login", map[string]string{"password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, status)
	status, _ = env.post(t, "/api/auth/login", map[string]string{})
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestRefresh_RotatesToken(t *testing.T) {
	env := newTestEnv(t, 10)
	pair := env.login(t)
	oldRefresh := pair["refresh_token"].(string)

	status, body := env.post(t, "/api/auth/refresh", map[string]string{"refresh_token": oldRefresh})
	require.Equal(t, http.StatusOK, status, body)
	fresh := body["data"].(map[string]any)
	assert.NotEqual(t, oldRefresh, fresh["refresh_token"])

	status, _ = env.post(t, "/api/auth/refresh", map[string]string{"refresh_token": oldRefresh})
	assert.Equal(t, http.StatusUnauthorized, status, "a refresh token is single use")

	status, _ = env.post(t, "/api/auth/logout", map[string]string{"refresh_token": fresh["refresh_token"].(string)})
	assert.Equal(t, http.StatusOK, status)
	status, _ = env.post(t, "/api/auth/refresh", map[string]string{"refresh_token": fresh["refresh_token"].(string)})
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestRefresh_Expired(t *testing.T) {
	env := newTestEnv(t, 10)
	rt, err := env.store.InsertRefreshToken(context.Background(), env.store.DB, auth.AdminSubject, -time.Minute)
	require.NoError(t, err)

	status, _ := env.post(t, "/api/auth/refresh", map[string]string{"refresh_token": rt.Token})
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestLogin_RateLimited(t *testing.T) {
	env := newTestEnv(t, 2)
	for i := 0; i < 2; i++ {
		status, _ := env.post(t, "/api/auth/login", map[string]string{"password": "nope"})
		assert.Equal(t, http.StatusUnauthorized, status)
	}
	status, body := env.post(t, "/api/auth/login", map[string]string{"password": "qa-admin"})
	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.Equal(t, "RATE_LIMITED", body["error"].(map[string]any)["code"])
}

func TestNewAuthHandler_NeedsPassword(t *testing.T) {
	_, err := auth.NewAuthHandler(nil, config.AuthConfig{JWTSecret: "x"}, nil)
	assert.Error(t, err)

	hash, err := auth.HashPassword("from-hash")
	require.NoError(t, err)
	_, err = auth.NewAuthHandler(nil, config.AuthConfig{PasswordHash: hash}, nil)
	assert.NoError(t, err)
}
