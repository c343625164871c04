package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

// ---------------------------------------------------------------------------
// Mocks
// ---------------------------------------------------------------------------

type stubValidator struct {
	err error
}

func (s *stubValidator) Validate(_ string) error { return s.err }

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("passed"))
})

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestAdminAuthWithKey(t *testing.T) {
	mw := AdminAuth("secret-key", &stubValidator{})(okHandler)

	cases := []struct {
		name string
		key  string
		want int
	}{
		{"correct key", "secret-key", http.StatusOK},
		{"wrong key", "nope", http.StatusUnauthorized},
		{"no key at all", "", http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin/users", nil)
			if tc.key != "" {
				req.Header.Set("X-Admin-Key", tc.key)
			}
			rec := httptest.NewRecorder()
			mw.ServeHTTP(rec, req)
			if rec.Code != tc.want {
				t.Errorf("expected %d, got %d", tc.want, rec.Code)
			}
		})
	}
}

func TestAdminAuthWithBearerToken(t *testing.T) {
	valid := AdminAuth("secret-key", &stubValidator{})(okHandler)
	invalid := AdminAuth("secret-key", &stubValidator{err: errors.New("expired")})(okHandler)

	req := httptest.NewRequest(http.MethodGet, "/admin/users", nil)
	req.Header.Set("Authorization", "Bearer some-token")
	rec := httptest.NewRecorder()
	valid.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("valid token: expected 200, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	invalid.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("invalid token: expected 401, got %d", rec.Code)
	}
}

func TestAdminAuthKeyTakesPrecedence(t *testing.T) {
	// wrong key is rejected even when a valid token is attached
	mw := AdminAuth("secret-key", &stubValidator{})(okHandler)
	req := httptest.NewRequest(http.MethodGet, "/admin/users", nil)
	req.Header.Set("X-Admin-Key", "wrong")
	req.Header.Set("Authorization", "Bearer some-token")
	rec := httptest.NewRecorder()
	mw.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}

func TestAdminAuthResponseBody(t *testing.T) {
	mw := AdminAuth("secret-key", nil)(okHandler)
	req := httptest.NewRequest(http.MethodGet, "/admin/users", nil)
	rec := httptest.NewRecorder()
	mw.ServeHTTP(rec, req)
	if body := rec.Body.String(); body != `{"error":"Unauthorized"}` {
		t.Errorf("unexpected body: %s", body)
	}
}
