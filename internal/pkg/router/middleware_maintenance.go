package router

import (
	"net/http"
	"slices"

	"github.com/shandysiswandi/ayurclinic/internal/pkg/config"
)

// middlewareMaintenance answers 503 for routes listed in
// app.maintenance.endpoints as "METHOD /path". The list is read per request so
// a config reload takes effect without restart.
func middlewareMaintenance(cfg config.Config) Middleware {
	return func(next http.Handler) http.Handler {
		if cfg == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			route := r.Method + " " + matchedRoutePath(r)
			if slices.Contains(cfg.GetArray("app.maintenance.endpoints"), route) {
				writeJSON(w, Response{Message: "Service is under maintenance"}, http.StatusServiceUnavailable)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
