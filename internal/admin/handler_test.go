package admin

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/grokvideo/backend/internal/models"
	"github.com/grokvideo/backend/internal/observability"
	"github.com/grokvideo/backend/internal/store"
)

func newTestHandler(t *testing.T) (*Handler, *store.Memory) {
	t.Helper()
	st := store.NewMemory()
	return NewHandler(st, NewTokenService("test-secret"), "test-key", observability.NewMetrics(), nil), st
}

func do(t *testing.T, h http.HandlerFunc, method, target string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	rec := httptest.NewRecorder()
	h(rec, req)

	var resp map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), "body: %s", rec.Body.String())
	}
	return rec, resp
}

func TestCreateUserMissingFields(t *testing.T) {
	h, _ := newTestHandler(t)
	for _, body := range []map[string]any{
		{"username": "alice"},
		{"password": "p1"},
		{},
	} {
		rec, resp := do(t, h.CreateUser, http.MethodPost, "/admin/users", body)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Equal(t, "Missing fields", resp["error"])
	}
}

func TestCreateUserPlanDefaults(t *testing.T) {
	h, st := newTestHandler(t)
	ctx := context.Background()

	cases := []struct {
		name  string
		body  map[string]any
		plan  string
		limit *int
	}{
		{"plan defaults to trial with limit 10", map[string]any{"username": "u1", "password": "p"}, "trial", intp(10)},
		{"basic gets 50", map[string]any{"username": "u2", "password": "p", "plan": "basic"}, "basic", intp(50)},
		{"premium gets 200", map[string]any{"username": "u3", "password": "p", "plan": "premium"}, "premium", intp(200)},
		{"unlimited gets -1", map[string]any{"username": "u4", "password": "p", "plan": "unlimited"}, "unlimited", intp(-1)},
		{"explicit limit wins", map[string]any{"username": "u5", "password": "p", "plan": "basic", "video_limit": 7}, "basic", intp(7)},
		{"unknown plan gets no default", map[string]any{"username": "u6", "password": "p", "plan": "custom"}, "custom", nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, _ := do(t, h.CreateUser, http.MethodPost, "/admin/users", tc.body)
			require.Equal(t, http.StatusOK, rec.Code)

			a, err := st.GetByUsername(ctx, tc.body["username"].(string))
			require.NoError(t, err)
			require.Equal(t, tc.plan, a.Plan)
			if tc.limit == nil {
				require.Nil(t, a.VideoLimit)
			} else {
				require.NotNil(t, a.VideoLimit)
				require.Equal(t, *tc.limit, *a.VideoLimit)
			}
			require.True(t, a.IsActive)
			require.Equal(t, 0, a.VideosUsed)
		})
	}
}

func intp(v int) *int { return &v }

func TestCreateUserReplaceResetsUsage(t *testing.T) {
	h, st := newTestHandler(t)
	ctx := context.Background()

	rec, _ := do(t, h.CreateUser, http.MethodPost, "/admin/users", map[string]any{"username": "alice", "password": "p1", "plan": "basic"})
	require.Equal(t, http.StatusOK, rec.Code)
	_, _, err := st.AddUsage(ctx, "alice", 30)
	require.NoError(t, err)

	rec, _ = do(t, h.CreateUser, http.MethodPost, "/admin/users", map[string]any{"username": "alice", "password": "p2", "plan": "basic"})
	require.Equal(t, http.StatusOK, rec.Code)

	a, err := st.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, 0, a.VideosUsed)
	require.Equal(t, "p2", a.Password)
}

func TestUpdateUserValidation(t *testing.T) {
	h, _ := newTestHandler(t)

	rec, resp := do(t, h.UpdateUser, http.MethodPut, "/admin/users", map[string]any{"plan": "basic"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "Missing username", resp["error"])

	rec, resp = do(t, h.UpdateUser, http.MethodPut, "/admin/users", map[string]any{"username": "alice"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "Nothing to update", resp["error"])
}

func TestUpdateUserPartialFields(t *testing.T) {
	h, st := newTestHandler(t)
	ctx := context.Background()
	mid := "machine-a"
	require.NoError(t, st.Upsert(ctx, &models.Account{Username: "alice", Password: "p1", Plan: "basic", MachineID: &mid, VideoLimit: intp(50)}))
	_, _, err := st.AddUsage(ctx, "alice", 5)
	require.NoError(t, err)

	rec, _ := do(t, h.UpdateUser, http.MethodPut, "/admin/users", map[string]any{"username": "alice", "is_active": false})
	require.Equal(t, http.StatusOK, rec.Code)

	a, err := st.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	require.False(t, a.IsActive)
	// untouched fields stay put
	require.Equal(t, "p1", a.Password)
	require.Equal(t, 5, a.VideosUsed)
	require.NotNil(t, a.MachineID)

	rec, _ = do(t, h.UpdateUser, http.MethodPut, "/admin/users", map[string]any{"username": "alice", "reset_machine": true, "reset_usage": true})
	require.Equal(t, http.StatusOK, rec.Code)

	a, err = st.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	require.Nil(t, a.MachineID)
	require.Equal(t, 0, a.VideosUsed)
}

func TestDeleteUser(t *testing.T) {
	h, st := newTestHandler(t)
	require.NoError(t, st.Upsert(context.Background(), &models.Account{Username: "alice", Password: "p1"}))

	rec, resp := do(t, h.DeleteUser, http.MethodDelete, "/admin/users?username=alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, true, resp["ok"])

	// deleting a missing row is still ok
	rec, _ = do(t, h.DeleteUser, http.MethodDelete, "/admin/users?username=alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, resp = do(t, h.DeleteUser, http.MethodDelete, "/admin/users", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "Missing username", resp["error"])
}

func TestBulkCountsAttemptsNotSuccesses(t *testing.T) {
	h, st := newTestHandler(t)
	ctx := context.Background()
	require.NoError(t, st.Upsert(ctx, &models.Account{Username: "alice", Password: "p1", Plan: "basic"}))
	_, _, err := st.AddUsage(ctx, "alice", 9)
	require.NoError(t, err)

	// bob does not exist; the count still reports both attempts
	rec, resp := do(t, h.Bulk, http.MethodPost, "/admin/bulk", map[string]any{"action": "reset_usage", "usernames": []string{"alice", "bob"}})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, true, resp["ok"])
	require.Equal(t, float64(2), resp["count"])

	a, err := st.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, 0, a.VideosUsed)
}

func TestBulkActions(t *testing.T) {
	h, st := newTestHandler(t)
	ctx := context.Background()
	mid := "machine-a"
	require.NoError(t, st.Upsert(ctx, &models.Account{Username: "alice", Password: "p1", Plan: "basic", MachineID: &mid}))

	rec, _ := do(t, h.Bulk, http.MethodPost, "/admin/bulk", map[string]any{"action": "lock", "usernames": []string{"alice"}})
	require.Equal(t, http.StatusOK, rec.Code)
	a, _ := st.GetByUsername(ctx, "alice")
	require.False(t, a.IsActive)

	do(t, h.Bulk, http.MethodPost, "/admin/bulk", map[string]any{"action": "unlock", "usernames": []string{"alice"}})
	a, _ = st.GetByUsername(ctx, "alice")
	require.True(t, a.IsActive)

	do(t, h.Bulk, http.MethodPost, "/admin/bulk", map[string]any{"action": "reset_machine", "usernames": []string{"alice"}})
	a, _ = st.GetByUsername(ctx, "alice")
	require.Nil(t, a.MachineID)

	do(t, h.Bulk, http.MethodPost, "/admin/bulk", map[string]any{"action": "set_limit", "usernames": []string{"alice"}, "value": 99})
	a, _ = st.GetByUsername(ctx, "alice")
	require.NotNil(t, a.VideoLimit)
	require.Equal(t, 99, *a.VideoLimit)

	do(t, h.Bulk, http.MethodPost, "/admin/bulk", map[string]any{"action": "delete", "usernames": []string{"alice"}})
	_, err := st.GetByUsername(ctx, "alice")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestBulkValidation(t *testing.T) {
	h, _ := newTestHandler(t)

	rec, resp := do(t, h.Bulk, http.MethodPost, "/admin/bulk", map[string]any{"action": "lock", "usernames": []string{}})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "No users selected", resp["error"])

	rec, resp = do(t, h.Bulk, http.MethodPost, "/admin/bulk", map[string]any{"action": "explode", "usernames": []string{"alice"}})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "Unknown action", resp["error"])

	rec, resp = do(t, h.Bulk, http.MethodPost, "/admin/bulk", map[string]any{"action": "set_limit", "usernames": []string{"alice"}})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "Missing value", resp["error"])
}

func TestListUsers(t *testing.T) {
	h, st := newTestHandler(t)
	ctx := context.Background()
	require.NoError(t, st.Upsert(ctx, &models.Account{Username: "alice", Password: "p1", Plan: "basic"}))
	require.NoError(t, st.Upsert(ctx, &models.Account{Username: "bob", Password: "p2", Plan: "trial"}))

	rec := httptest.NewRecorder()
	h.ListUsers(rec, httptest.NewRequest(http.MethodGet, "/admin/users", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Users []map[string]any `json:"users"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Users, 2)
	for _, u := range resp.Users {
		_, leaked := u["password"]
		require.False(t, leaked, "password must not appear in the listing")
	}
}

func TestAdminLogin(t *testing.T) {
	h, _ := newTestHandler(t)

	rec, resp := do(t, h.Login, http.MethodPost, "/admin/login", map[string]any{"key": "wrong"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "Unauthorized", resp["error"])

	rec, resp = do(t, h.Login, http.MethodPost, "/admin/login", map[string]any{"key": "test-key"})
	require.Equal(t, http.StatusOK, rec.Code)
	token, _ := resp["token"].(string)
	require.NotEmpty(t, token)
	require.NoError(t, h.tokens.Validate(token))
}
