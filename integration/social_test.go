package integration

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/fitcircle/fitcircle/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func notificationTypes(t *testing.T, ts *TestServer, token string) []string {
	t.Helper()
	body := Expect(t, ts.Get(t, "/api/notifications", token), http.StatusOK)
	var out []string
	for _, it := range body["items"].([]interface{}) {
		out = append(out, it.(map[string]interface{})["type"].(string))
	}
	return out
}

func unread(t *testing.T, ts *TestServer, token string) int64 {
	t.Helper()
	return ID(Expect(t, ts.Get(t, "/api/notifications/unread-count", token), http.StatusOK), "unread")
}

func TestFriendshipLifecycle(t *testing.T) {
	ts := NewTestServer(t)
	defer ts.Close()

	aliceTok, _ := ts.Login(t, UniqueID("alice"), "pass1234")
	bobTok, bobID := ts.Login(t, UniqueID("bob"), "pass1234")

	resp := ts.do(t, http.MethodPost, "/api/friends/requests",
		map[string]interface{}{"receiver_id": bobID, "message": "tempo run on sunday?"}, aliceTok,
		"X-Trace-ID", "it-trace-send")
	req := Expect(t, resp, http.StatusCreated)
	assert.Equal(t, "it-trace-send", resp.Header.Get("X-Trace-ID"))
	assert.EqualValues(t, 1, unread(t, ts, bobTok))

	resp = ts.PostJSON(t, fmt.Sprintf("/api/friends/requests/%d/accept", ID(req, "id")), nil, bobTok)
	friendship := Expect(t, resp, http.StatusOK)
	assert.Equal(t, "active", friendship["status"])
	assert.Equal(t, []string{"friend_request_accepted"}, notificationTypes(t, ts, aliceTok))

	// A second accept of the same request is rejected and changes nothing.
	resp = ts.PostJSON(t, fmt.Sprintf("/api/friends/requests/%d/accept", ID(req, "id")), nil, bobTok)
	assert.Equal(t, "conflict", Expect(t, resp, http.StatusConflict)["kind"])

	resp = ts.PostJSON(t, fmt.Sprintf("/api/friends/%d/block", bobID), nil, aliceTok)
	Expect(t, resp, http.StatusOK)
	body := Expect(t, ts.Get(t, "/api/friends", bobTok), http.StatusOK)
	assert.Empty(t, body["friends"])
	assert.Contains(t, notificationTypes(t, ts, bobTok), "user_block")

	ts.FlushAudit()
	var sent model.AuditLog
	require.NoError(t, ts.DB.Where("action = ?", "send_friend_request").Take(&sent).Error)
	assert.Equal(t, "it-trace-send", sent.TraceID)
	assert.Empty(t, sent.Error)

	var rejected []model.AuditLog
	require.NoError(t, ts.DB.Where("action = ? AND error <> ''", "accept_friend_request").Find(&rejected).Error)
	assert.Len(t, rejected, 1)
}

func TestGroupLifecycle(t *testing.T) {
	ts := NewTestServer(t)
	defer ts.Close()

	adminTok, _ := ts.Login(t, UniqueID("coach"), "pass1234")
	bobTok, bobID := ts.Login(t, UniqueID("bob"), "pass1234")
	carolTok, _ := ts.Login(t, UniqueID("carol"), "pass1234")

	name := UniqueID("Runners")
	group := Expect(t, ts.PostJSON(t, "/api/groups", map[string]string{"name": name, "description": "5k club"}, adminTok), http.StatusCreated)
	gid := ID(group, "id")

	bobReq := Expect(t, ts.PostJSON(t, fmt.Sprintf("/api/groups/%d/requests", gid), map[string]string{"message": "hi"}, bobTok), http.StatusCreated)
	carolReq := Expect(t, ts.PostJSON(t, fmt.Sprintf("/api/groups/%d/requests", gid), nil, carolTok), http.StatusCreated)

	pending := Expect(t, ts.Get(t, fmt.Sprintf("/api/groups/%d/requests", gid), adminTok), http.StatusOK)
	assert.Len(t, pending["requests"], 2)

	Expect(t, ts.PostJSON(t, fmt.Sprintf("/api/groups/requests/%d/accept", ID(bobReq, "id")), nil, adminTok), http.StatusOK)
	Expect(t, ts.PostJSON(t, fmt.Sprintf("/api/groups/requests/%d/decline", ID(carolReq, "id")), nil, adminTok), http.StatusOK)

	detail := Expect(t, ts.Get(t, fmt.Sprintf("/api/groups/%d", gid), carolTok), http.StatusOK)
	assert.EqualValues(t, 2, detail["member_count"])
	assert.Equal(t, name, detail["name"])

	body := Expect(t, ts.Get(t, "/api/notifications", bobTok), http.StatusOK)
	item := body["items"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "group_request_accepted", item["type"])
	assert.Equal(t, fmt.Sprintf("/api/groups/%d", gid), item["link"])
	assert.Contains(t, item["message"], name)
	assert.Contains(t, notificationTypes(t, ts, carolTok), "group_request_declined")

	Expect(t, ts.PostJSON(t, fmt.Sprintf("/api/groups/%d/members/%d/block", gid, bobID), nil, adminTok), http.StatusOK)
	mine := Expect(t, ts.Get(t, "/api/groups/mine", bobTok), http.StatusOK)
	assert.Empty(t, mine["groups"])
	resp := ts.PostJSON(t, fmt.Sprintf("/api/groups/%d/requests", gid), nil, bobTok)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()

	Expect(t, ts.Delete(t, fmt.Sprintf("/api/groups/%d", gid), adminTok), http.StatusOK)
	resp = ts.Get(t, fmt.Sprintf("/api/groups/%d", gid), bobTok)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	// Notifications outlive the group; the message falls back to a placeholder.
	body = Expect(t, ts.Get(t, "/api/notifications", bobTok), http.StatusOK)
	assert.NotEmpty(t, body["items"])
}

func TestAdminEndpoints(t *testing.T) {
	ts := NewTestServer(t)
	defer ts.Close()

	aliceTok, aliceID := ts.Login(t, UniqueID("alice"), "pass1234")

	metrics := Expect(t, ts.Admin(t, http.MethodGet, "/api/admin/metrics", nil), http.StatusOK)
	assert.EqualValues(t, 1, metrics["stats"].(map[string]interface{})["users"])

	sched := Expect(t, ts.Admin(t, http.MethodGet, "/api/admin/scheduler", nil), http.StatusOK)
	tasks := sched["tasks"].([]interface{})
	require.Len(t, tasks, 1)
	purge := tasks[0].(map[string]interface{})
	assert.Equal(t, "notification_purge", purge["name"])
	assert.Equal(t, "cron", purge["kind"])
	assert.NotEmpty(t, purge["next_run"])

	Expect(t, ts.Admin(t, http.MethodPost, fmt.Sprintf("/api/admin/accounts/%d/ban", aliceID), map[string]bool{"ban": true}), http.StatusOK)
	resp := ts.Get(t, "/api/friends", aliceTok)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()

	resp = ts.Get(t, "/api/admin/metrics", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}
