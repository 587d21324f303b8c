package rest_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fitcircle/fitcircle/api/rest"
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

func init() {
	gin.SetMode(gin.TestMode)
}

const adminKey = "test-admin-key"

type env struct {
	r  *gin.Engine
	db *gorm.DB
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db := testutil.SetupTestDB(t)
	c := testutil.SetupTestCache(t)
	logger := zap.NewNop()
	cfg := &config.Config{
		Server:   config.ServerConfig{AdminKey: adminKey},
		Security: config.SecurityConfig{
			JWTSecret: "test-secret", JWTTTLH: 72 * time.Hour,
			LoginMaxFailures: 3, LoginLockout: time.Minute,
		},
		Social: config.SocialConfig{
			MessageMaxLen: 100, DescriptionMaxLen: 200, PageSize: 2,
			NotificationTTL: time.Hour, UnreadCacheTTL: time.Minute,
		},
	}
	inbox := notify.NewInbox(db, c, cfg.Social, logger)
	hc := hook.NewCenter(logger)
	social.RegisterObservers(hc, nil, inbox)
	svc := social.NewService(db, notify.NewDBEmitter(), hc, cfg.Social, logger)
	sched := scheduler.New(logger)
	t.Cleanup(sched.Stop)

	r := rest.NewRouter(rest.Deps{
		Config: cfg, DB: db, Cache: c, Social: svc, Inbox: inbox, Scheduler: sched, Logger: logger,
	})
	return &env{r: r, db: db}
}

func doJSON(r *gin.Engine, method, path string, body interface{}, headers ...string) *httptest.ResponseRecorder {
	var buf *bytes.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		buf = bytes.NewReader(b)
	} else {
		buf = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func postJSON(r *gin.Engine, path string, body interface{}, headers ...string) *httptest.ResponseRecorder {
	return doJSON(r, http.MethodPost, path, body, headers...)
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

// user is a logged-in test account.
type user struct {
	id    int64
	token string
}

func (u user) auth() []string { return []string{"Authorization", "Bearer " + u.token} }

func (e *env) login(t *testing.T, name string) user {
	t.Helper()
	w := postJSON(e.r, "/api/auth/login", map[string]string{"username": name, "password": "pass1234"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode(t, w)
	return user{id: int64(resp["user_id"].(float64)), token: resp["token"].(string)}
}

func (e *env) call(t *testing.T, u user, method, path string, body interface{}) (int, map[string]interface{}) {
	t.Helper()
	w := doJSON(e.r, method, path, body, u.auth()...)
	var out map[string]interface{}
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return w.Code, out
}
