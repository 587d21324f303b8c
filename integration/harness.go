// Package integration drives the fully wired server over real HTTP.
package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fitcircle/fitcircle/api/rest"
	"github.com/fitcircle/fitcircle/audit"
	"github.com/fitcircle/fitcircle/cache"
	"github.com/fitcircle/fitcircle/config"
	"github.com/fitcircle/fitcircle/hook"
	"github.com/fitcircle/fitcircle/scheduler"
	"github.com/fitcircle/fitcircle/social"
	"github.com/fitcircle/fitcircle/social/notify"
	"github.com/fitcircle/fitcircle/testutil"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const AdminKey = "integration-admin-key"

// TestServer wraps a real HTTP server with every subsystem wired as in main.go.
type TestServer struct {
	DB     *gorm.DB
	Cache  cache.Cache
	Audit  *audit.Service
	Server *httptest.Server
	URL    string
}

// NewTestServer creates a fully wired server for integration testing.
func NewTestServer(t *testing.T) *TestServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.SetupTestDB(t)
	c := testutil.SetupTestCache(t)
	logger := zap.NewNop()

	cfg := &config.Config{
		Server: config.ServerConfig{AdminKey: AdminKey},
		Security: config.SecurityConfig{
			JWTSecret: "integration-test-secret",
			JWTTTLH:   72 * time.Hour,
		},
		Social: config.SocialConfig{
			MessageMaxLen:     500,
			DescriptionMaxLen: 1000,
			NotificationTTL:   720 * time.Hour,
			UnreadCacheTTL:    5 * time.Minute,
			PageSize:          10,
		},
	}

	auditSvc := audit.New(db, logger)
	inbox := notify.NewInbox(db, c, cfg.Social, logger)
	hooks := hook.NewCenter(logger)
	social.RegisterObservers(hooks, auditSvc, inbox)
	svc := social.NewService(db, notify.NewDBEmitter(), hooks, cfg.Social, logger)

	sched := scheduler.New(logger)
	require.NoError(t, sched.AddCron("notification_purge", "@daily", func(ctx context.Context) {
		_, _, _ = inbox.PurgeReadLocked(ctx, time.Now().Add(-cfg.Social.NotificationTTL), time.Minute)
	}))

	r := rest.NewRouter(rest.Deps{
		Config:    cfg,
		DB:        db,
		Cache:     c,
		Social:    svc,
		Inbox:     inbox,
		Scheduler: sched,
		Logger:    logger,
	})
	server := httptest.NewServer(r)
	t.Cleanup(func() {
		server.Close()
		sched.Stop()
		auditSvc.Stop(nil)
	})

	return &TestServer{DB: db, Cache: c, Audit: auditSvc, Server: server, URL: server.URL}
}

// Close shuts down the HTTP server. The remaining subsystems stop on test cleanup.
func (ts *TestServer) Close() {
	ts.Server.Close()
}

// FlushAudit stops the audit writer so every queued entry is on disk.
func (ts *TestServer) FlushAudit() {
	ts.Audit.Stop(nil)
}

// --- HTTP helpers ---

func (ts *TestServer) do(t *testing.T, method, path string, body interface{}, token string, headers ...string) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, ts.URL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

// PostJSON sends a POST request with JSON body and optional Bearer token.
func (ts *TestServer) PostJSON(t *testing.T, path string, body interface{}, token string) *http.Response {
	t.Helper()
	return ts.do(t, http.MethodPost, path, body, token)
}

// Get sends a GET request with optional Bearer token.
func (ts *TestServer) Get(t *testing.T, path string, token string) *http.Response {
	t.Helper()
	return ts.do(t, http.MethodGet, path, nil, token)
}

// Delete sends a DELETE request with optional Bearer token.
func (ts *TestServer) Delete(t *testing.T, path string, token string) *http.Response {
	t.Helper()
	return ts.do(t, http.MethodDelete, path, nil, token)
}

// Put sends a PUT request with JSON body and optional Bearer token.
func (ts *TestServer) Put(t *testing.T, path string, body interface{}, token string) *http.Response {
	t.Helper()
	return ts.do(t, http.MethodPut, path, body, token)
}

// Admin sends a request to an /api/admin route with the admin key.
func (ts *TestServer) Admin(t *testing.T, method, path string, body interface{}) *http.Response {
	t.Helper()
	return ts.do(t, method, path, body, "", "X-Admin-Key", AdminKey)
}

// ReadJSON reads and decodes a JSON response body into the given target.
func ReadJSON(t *testing.T, resp *http.Response, target interface{}) {
	t.Helper()
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, target), "body: %s", string(data))
}

// Expect asserts the status code, decodes the body and returns it.
func Expect(t *testing.T, resp *http.Response, status int) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	ReadJSON(t, resp, &out)
	require.Equal(t, status, resp.StatusCode, "body: %v", out)
	return out
}

// --- Auth helpers ---

// Login logs in (auto-registers on first call) and returns the token and user ID.
func (ts *TestServer) Login(t *testing.T, username, password string) (token string, userID int64) {
	t.Helper()
	resp := ts.PostJSON(t, "/api/auth/login", map[string]string{
		"username": username,
		"password": password,
	}, "")
	result := Expect(t, resp, http.StatusOK)
	return result["token"].(string), int64(result["user_id"].(float64))
}

var testCounter uint64

// UniqueID returns a short unique string suitable for usernames and group names.
func UniqueID(prefix string) string {
	n := atomic.AddUint64(&testCounter, 1)
	return fmt.Sprintf("%s_%d_%d", prefix, time.Now().UnixNano()%100000, n)
}

// ID extracts a numeric field from a decoded body.
func ID(body map[string]interface{}, key string) int64 {
	return int64(body[key].(float64))
}
