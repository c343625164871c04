package license

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/grokvideo/backend/internal/observability"
	"github.com/grokvideo/backend/internal/store"
)

// Error strings are part of the desktop client contract; the client shows
// them to the user verbatim.
const (
	msgMissingCredentials = "Missing credentials"
	msgMissingUsername    = "Missing username"
	msgUserNotFound       = "User not found"
	msgBadCredentials     = "Sai tài khoản hoặc mật khẩu"
	msgAccountLocked      = "Tài khoản đã bị khóa"
	msgMachineTaken       = "Tài khoản đã được đăng ký trên máy khác. Liên hệ admin để reset."
	msgMachineInUse       = "Tài khoản đang dùng trên máy khác"
)

type Handler struct {
	svc     *Service
	metrics *observability.Metrics
	log     *slog.Logger
}

func NewHandler(svc *Service, metrics *observability.Metrics, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{svc: svc, metrics: metrics, log: log}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func fail(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"ok": false, "error": msg})
}

type loginRequest struct {
	Username  string `json:"username"`
	Password  string `json:"password"`
	MachineID string `json:"machine_id"`
}

// Login handles POST /login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fail(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Username == "" || req.Password == "" {
		fail(w, http.StatusBadRequest, msgMissingCredentials)
		return
	}
	snap, err := h.svc.Authenticate(r.Context(), req.Username, req.Password, req.MachineID)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidCredentials):
			h.metrics.LoginsTotal.WithLabelValues("invalid_credentials").Inc()
			fail(w, http.StatusUnauthorized, msgBadCredentials)
		case errors.Is(err, ErrAccountLocked):
			h.metrics.LoginsTotal.WithLabelValues("locked").Inc()
			fail(w, http.StatusForbidden, msgAccountLocked)
		case errors.Is(err, ErrMachineMismatch):
			h.metrics.LoginsTotal.WithLabelValues("machine_mismatch").Inc()
			fail(w, http.StatusForbidden, msgMachineTaken)
		default:
			h.log.Error("login failed", "username", req.Username, "error", err)
			fail(w, http.StatusInternalServerError, "internal error")
		}
		return
	}
	h.metrics.LoginsTotal.WithLabelValues("success").Inc()
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":          true,
		"username":    snap.Username,
		"plan":        snap.Plan,
		"expires_at":  snap.ExpiresAt,
		"video_limit": snap.VideoLimit,
		"videos_used": snap.VideosUsed,
	})
}

type checkRequest struct {
	Username  string `json:"username"`
	MachineID string `json:"machine_id"`
}

// Check handles POST /check.
func (h *Handler) Check(w http.ResponseWriter, r *http.Request) {
	var req checkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fail(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Username == "" {
		fail(w, http.StatusBadRequest, msgMissingUsername)
		return
	}
	ent, err := h.svc.CheckEntitlement(r.Context(), req.Username, req.MachineID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			fail(w, http.StatusNotFound, msgUserNotFound)
			return
		}
		h.log.Error("check failed", "username", req.Username, "error", err)
		fail(w, http.StatusInternalServerError, "internal error")
		return
	}
	resp := map[string]any{
		"ok":          ent.OK,
		"expired":     ent.Expired,
		"plan":        ent.Plan,
		"expires_at":  ent.ExpiresAt,
		"video_limit": ent.VideoLimit,
		"videos_used": ent.VideosUsed,
	}
	switch ent.Deny {
	case DenyLocked:
		resp["error"] = msgAccountLocked
	case DenyMachine:
		resp["error"] = msgMachineInUse
	}
	writeJSON(w, http.StatusOK, resp)
}

type quotaRequest struct {
	Username string `json:"username"`
}

// CheckLimit handles POST /check-limit.
func (h *Handler) CheckLimit(w http.ResponseWriter, r *http.Request) {
	var req quotaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fail(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Username == "" {
		fail(w, http.StatusBadRequest, msgMissingUsername)
		return
	}
	q, err := h.svc.CheckQuota(r.Context(), req.Username)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			fail(w, http.StatusNotFound, msgUserNotFound)
		case errors.Is(err, ErrAccountLocked):
			fail(w, http.StatusForbidden, msgAccountLocked)
		default:
			h.log.Error("check-limit failed", "username", req.Username, "error", err)
			fail(w, http.StatusInternalServerError, "internal error")
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":           true,
		"can_generate": q.CanGenerate,
		"video_limit":  q.VideoLimit,
		"videos_used":  q.VideosUsed,
		"remaining":    q.Remaining,
	})
}

type recordUsageRequest struct {
	Username string `json:"username"`
	Count    int    `json:"count"`
}

// RecordUsage handles POST /record-usage.
func (h *Handler) RecordUsage(w http.ResponseWriter, r *http.Request) {
	var req recordUsageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fail(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Username == "" {
		fail(w, http.StatusBadRequest, msgMissingUsername)
		return
	}
	used, limit, err := h.svc.RecordUsage(r.Context(), req.Username, req.Count)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			fail(w, http.StatusNotFound, msgUserNotFound)
			return
		}
		h.log.Error("record-usage failed", "username", req.Username, "error", err)
		fail(w, http.StatusInternalServerError, "internal error")
		return
	}
	count := req.Count
	if count < 1 {
		count = 1
	}
	h.metrics.UsageRecordedTotal.Add(float64(count))
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":          true,
		"videos_used": used,
		"video_limit": limit,
	})
}
