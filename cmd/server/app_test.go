package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qa-portal/internal/config"
	"qa-portal/internal/store"
)

func testConfig(t *testing.T) *config.Config {
	return &config.Config{
		Server:   config.ServerConfig{BodyLimit: 8 << 20},
		Database: config.DatabaseConfig{Driver: "sqlite", Path: t.TempDir(), Name: "server"},
		Storage:  config.StorageConfig{Driver: "memory", MaxFileSize: 1 << 20},
		Auth: config.AuthConfig{
			Password:         "qa-admin",
			JWTSecret:        "test-secret",
			AccessTTL:        time.Hour,
			RefreshTTL:       time.Hour,
			LoginMaxAttempts: 10,
			LoginWindow:      time.Minute,
		},
		Upload:  config.UploadConfig{Rules: config.DefaultUploadRules},
		Metrics: config.MetricsConfig{Enabled: true, Path: "/metrics"},
		Audit:   config.AuditConfig{Enabled: true, BufferSize: 10, FlushIntervalMs: 10},
	}
}

func newTestServer(t *testing.T) *server {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)
	srv, err := newServer(context.Background(), testConfig(t), log)
	require.NoError(t, err)
	t.Cleanup(srv.close)
	return srv
}

func request(t *testing.T, srv *server, method, path, token string, body any) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := srv.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, raw
}

func TestServer_HealthAndMetrics(t *testing.T) {
	srv := newTestServer(t)

	resp, body := request(t, srv, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))
	assert.NotEmpty(t, resp.Header.Get("X-Trace-ID"))

	resp, body = request(t, srv, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "go_goroutines")
}

func TestServer_AdminFlowIsAudited(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	_, err := srv.store.Seed(ctx, []store.SeedStandard{{
		Code: "1", Name: "คุณภาพของผู้เรียน",
		Indicators: []store.SeedIndicator{{Code: "1.1", Name: "ผลสัมฤทธิ์"}},
	}})
	require.NoError(t, err)
	inds, err := srv.store.ListIndicators(ctx, srv.store.DB, nil)
	require.NoError(t, err)
	require.Len(t, inds, 1)

	resp, _ := request(t, srv, http.MethodGet, "/api/admin/tree", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, body := request(t, srv, http.MethodPost, "/api/auth/login", "", map[string]string{"password": "qa-admin"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var login struct {
		Data struct {
			AccessToken string `json:"access_token"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(body, &login))
	token := login.Data.AccessToken

	resp, body = request(t, srv, http.MethodPost, fmt.Sprintf("/api/admin/indicators/%d/topics", inds[0].ID), token,
		map[string]string{"title": "ด้านคุณภาพผู้เรียน"})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	require.Eventually(t, func() bool {
		_, body := request(t, srv, http.MethodGet, "/api/admin/events?entity=topic", token, nil)
		return strings.Contains(string(body), `"action":"create"`)
	}, 2*time.Second, 20*time.Millisecond)

	_, body = request(t, srv, http.MethodGet, "/metrics", "", nil)
	assert.Contains(t, string(body), "/api/admin/indicators/:id/topics")
}
