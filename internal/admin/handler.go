package admin

import (
	_ "embed"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/grokvideo/backend/internal/models"
	"github.com/grokvideo/backend/internal/observability"
	"github.com/grokvideo/backend/internal/store"
)

//go:embed dashboard.html
var dashboardHTML []byte

type Handler struct {
	store    store.Store
	tokens   *TokenService
	adminKey string
	metrics  *observability.Metrics
	log      *slog.Logger
}

func NewHandler(st store.Store, tokens *TokenService, adminKey string, metrics *observability.Metrics, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{store: st, tokens: tokens, adminKey: adminKey, metrics: metrics, log: log}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// Dashboard handles GET /admin.
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(dashboardHTML)
}

type loginRequest struct {
	Key string `json:"key"`
}

// Login handles POST /admin/login: exchanges the admin key for a session
// token.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Key != h.adminKey {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	token, err := h.tokens.Issue()
	if err != nil {
		h.log.Error("issue admin token", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

// ListUsers handles GET /admin/users.
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.List(r.Context())
	if err != nil {
		h.log.Error("list users", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	h.metrics.AccountsTotal.Set(float64(len(users)))
	if users == nil {
		users = []*models.Account{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

type upsertRequest struct {
	Username   string  `json:"username"`
	Password   string  `json:"password"`
	Plan       string  `json:"plan"`
	ExpiresAt  string  `json:"expires_at"`
	MachineID  *string `json:"machine_id"`
	VideoLimit *int    `json:"video_limit"`
}

// CreateUser handles POST /admin/users: full insert-or-replace keyed by
// username.
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req upsertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Missing fields")
		return
	}
	if req.Plan == "" {
		req.Plan = models.PlanTrial
	}
	limit := req.VideoLimit
	if limit == nil {
		if def, ok := models.DefaultVideoLimit(req.Plan); ok {
			limit = &def
		}
	}
	acc := &models.Account{
		Username:   req.Username,
		Password:   req.Password,
		Plan:       req.Plan,
		ExpiresAt:  req.ExpiresAt,
		MachineID:  req.MachineID,
		VideoLimit: limit,
	}
	if err := h.store.Upsert(r.Context(), acc); err != nil {
		h.log.Error("upsert user", "username", req.Username, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

type patchRequest struct {
	Username     string  `json:"username"`
	Password     *string `json:"password"`
	Plan         *string `json:"plan"`
	ExpiresAt    *string `json:"expires_at"`
	IsActive     *bool   `json:"is_active"`
	MachineID    *string `json:"machine_id"`
	VideoLimit   *int    `json:"video_limit"`
	ResetMachine bool    `json:"reset_machine"`
	ResetUsage   bool    `json:"reset_usage"`
}

// UpdateUser handles PUT /admin/users: applies only the fields present in
// the request.
func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	var req patchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Username == "" {
		writeError(w, http.StatusBadRequest, "Missing username")
		return
	}
	patch := store.AccountPatch{
		Password:     req.Password,
		Plan:         req.Plan,
		ExpiresAt:    req.ExpiresAt,
		IsActive:     req.IsActive,
		MachineID:    req.MachineID,
		VideoLimit:   req.VideoLimit,
		ResetMachine: req.ResetMachine,
		ResetUsage:   req.ResetUsage,
	}
	if patch.Empty() {
		writeError(w, http.StatusBadRequest, "Nothing to update")
		return
	}
	if err := h.store.Patch(r.Context(), req.Username, patch); err != nil {
		h.log.Error("patch user", "username", req.Username, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// DeleteUser handles DELETE /admin/users?username=…. Deleting a missing
// user still reports ok.
func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	username := r.URL.Query().Get("username")
	if username == "" {
		writeError(w, http.StatusBadRequest, "Missing username")
		return
	}
	if err := h.store.Delete(r.Context(), username); err != nil {
		h.log.Error("delete user", "username", username, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

type bulkRequest struct {
	Action    string   `json:"action"`
	Usernames []string `json:"usernames"`
	Value     *int     `json:"value"`
}

// Bulk handles POST /admin/bulk. The action is applied to every username
// independently and sequentially; per-row failures are not surfaced and the
// count reports attempts, not verified successes.
func (h *Handler) Bulk(w http.ResponseWriter, r *http.Request) {
	var req bulkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if len(req.Usernames) == 0 {
		writeError(w, http.StatusBadRequest, "No users selected")
		return
	}

	boolPtr := func(v bool) *bool { return &v }
	var patch store.AccountPatch
	switch req.Action {
	case "delete":
		// handled below
	case "lock":
		patch.IsActive = boolPtr(false)
	case "unlock":
		patch.IsActive = boolPtr(true)
	case "reset_machine":
		patch.ResetMachine = true
	case "reset_usage":
		patch.ResetUsage = true
	case "set_limit":
		if req.Value == nil {
			writeError(w, http.StatusBadRequest, "Missing value")
			return
		}
		patch.VideoLimit = req.Value
	default:
		writeError(w, http.StatusBadRequest, "Unknown action")
		return
	}

	count := 0
	for _, username := range req.Usernames {
		var err error
		if req.Action == "delete" {
			err = h.store.Delete(r.Context(), username)
		} else {
			err = h.store.Patch(r.Context(), username, patch)
		}
		if err != nil {
			h.log.Error("bulk action", "action", req.Action, "username", username, "error", err)
		}
		count++
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "count": count})
}
