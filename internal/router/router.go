package router

import (
	"net/http"
	"strings"

	"github.com/grokvideo/backend/internal/admin"
	"github.com/grokvideo/backend/internal/license"
	"github.com/grokvideo/backend/internal/observability"
)

// New builds the route table. Public endpoints are unauthenticated (the
// desktop client has no session concept); /admin/users and /admin/bulk sit
// behind the admin key.
func New(lic *license.Handler, adm *admin.Handler, adminAuth func(http.Handler) http.Handler, metrics *observability.Metrics) http.Handler {
	mux := http.NewServeMux()

	handle := func(pattern string, h http.Handler) {
		// route pattern, not the raw URL, keeps the metric label bounded
		path := pattern[strings.Index(pattern, " ")+1:]
		mux.Handle(pattern, metrics.Instrument(path, h))
	}

	handle("POST /login", http.HandlerFunc(lic.Login))
	handle("POST /check", http.HandlerFunc(lic.Check))
	handle("POST /check-limit", http.HandlerFunc(lic.CheckLimit))
	handle("POST /record-usage", http.HandlerFunc(lic.RecordUsage))

	handle("GET /admin", http.HandlerFunc(adm.Dashboard))
	handle("POST /admin/login", http.HandlerFunc(adm.Login))

	handle("GET /admin/users", adminAuth(http.HandlerFunc(adm.ListUsers)))
	handle("POST /admin/users", adminAuth(http.HandlerFunc(adm.CreateUser)))
	handle("PUT /admin/users", adminAuth(http.HandlerFunc(adm.UpdateUser)))
	handle("DELETE /admin/users", adminAuth(http.HandlerFunc(adm.DeleteUser)))
	handle("POST /admin/bulk", adminAuth(http.HandlerFunc(adm.Bulk)))

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("GET /metrics", metrics.Handler())

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"Not found"}`))
	})

	return stripTrailingSlash(mux)
}

// stripTrailingSlash normalizes paths like the worker did, so the desktop
// client may call /login/ and /login interchangeably.
func stripTrailingSlash(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(r.URL.Path) > 1 && strings.HasSuffix(r.URL.Path, "/") {
			r.URL.Path = strings.TrimRight(r.URL.Path, "/")
		}
		next.ServeHTTP(w, r)
	})
}
