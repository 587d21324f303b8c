package rest_test

import (
	"net/http"
	"testing"

	"github.com/fitcircle/fitcircle/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoginAutoRegister(t *testing.T) {
	e := newEnv(t)

	w := postJSON(e.r, "/api/auth/login", map[string]string{"username": "alice", "password": "pass1234"})
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode(t, w)
	assert.NotEmpty(t, resp["token"])
	assert.NotZero(t, resp["user_id"])
	assert.Equal(t, "alice", resp["username"])

	var acc model.Account
	require.NoError(t, e.db.Where("username = ?", "alice").Take(&acc).Error)
	assert.NotEqual(t, "pass1234", acc.PasswordHash)
	assert.NotNil(t, acc.LastLoginAt)
}

func TestLogin_Validation(t *testing.T) {
	e := newEnv(t)
	w := postJSON(e.r, "/api/auth/login", map[string]string{"username": "a", "password": "pass1234"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = postJSON(e.r, "/api/auth/login", map[string]string{"username": "alice"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLoginWrongPassword(t *testing.T) {
	e := newEnv(t)
	first := e.login(t, "bob")

	w := postJSON(e.r, "/api/auth/login", map[string]string{"username": "bob", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	again := e.login(t, "bob")
	assert.Equal(t, first.id, again.id)
}

func TestLoginLockout(t *testing.T) {
	e := newEnv(t)
	e.login(t, "carol")

	wrong := map[string]string{"username": "carol", "password": "nope"}
	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusUnauthorized, postJSON(e.r, "/api/auth/login", wrong).Code)
	}
	w := postJSON(e.r, "/api/auth/login", map[string]string{"username": "carol", "password": "pass1234"})
	assert.Equal(t, http.StatusTooManyRequests, w.Code, "right password is refused while locked")

	// Other usernames are unaffected.
	e.login(t, "dave")
}

func TestLoginSuccessResetsFailures(t *testing.T) {
	e := newEnv(t)
	e.login(t, "erin")

	wrong := map[string]string{"username": "erin", "password": "nope"}
	for i := 0; i < 2; i++ {
		postJSON(e.r, "/api/auth/login", wrong)
	}
	e.login(t, "erin")
	for i := 0; i < 2; i++ {
		postJSON(e.r, "/api/auth/login", wrong)
	}
	e.login(t, "erin")
}

func TestLogout(t *testing.T) {
	e := newEnv(t)
	u := e.login(t, "dave")

	w := postJSON(e.r, "/api/auth/logout", nil, u.auth()...)
	assert.Equal(t, http.StatusOK, w.Code)

	w = postJSON(e.r, "/api/auth/logout", nil, u.auth()...)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRefresh(t *testing.T) {
	e := newEnv(t)
	u := e.login(t, "refreshuser")

	w := postJSON(e.r, "/api/auth/refresh", nil, u.auth()...)
	require.Equal(t, http.StatusOK, w.Code)
	newToken := decode(t, w)["token"].(string)
	assert.NotEqual(t, u.token, newToken)

	code, _ := e.call(t, u, http.MethodGet, "/api/friends", nil)
	assert.Equal(t, http.StatusUnauthorized, code, "old token revoked")
	code, _ = e.call(t, user{id: u.id, token: newToken}, http.MethodGet, "/api/friends", nil)
	assert.Equal(t, http.StatusOK, code)
}

func TestRefresh_NoToken(t *testing.T) {
	e := newEnv(t)
	w := postJSON(e.r, "/api/auth/refresh", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLoginBannedAccount(t *testing.T) {
	e := newEnv(t)
	e.login(t, "bannedacc")

	require.NoError(t, e.db.Model(&model.Account{}).Where("username = ?", "bannedacc").Update("status", 0).Error)

	w := postJSON(e.r, "/api/auth/login", map[string]string{"username": "bannedacc", "password": "pass1234"})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestHealth(t *testing.T) {
	e := newEnv(t)
	w := doJSON(e.r, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Trace-ID"))
}
