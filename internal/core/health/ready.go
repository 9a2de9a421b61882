package health

import (
	"context"
	"encoding/json"
	"maps"
	"net/http"
	"slices"
	"time"
)

const checkTimeout = 2 * time.Second

// Readiness pings every named dependency. It answers 503 while any of them fails; with no
// dependencies the service is always ready.
func Readiness(checks map[string]Pinger) http.HandlerFunc {
	names := slices.Sorted(maps.Keys(checks))
	return func(w http.ResponseWriter, r *http.Request) {
		type resp struct {
			Status string            `json:"status"`
			Checks map[string]string `json:"checks,omitempty"`
		}
		ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
		defer cancel()

		out := resp{Status: "ready", Checks: map[string]string{}}
		for _, name := range names {
			if err := checks[name].Ping(ctx); err != nil {
				out.Status = "not_ready"
				out.Checks[name] = err.Error()
				continue
			}
			out.Checks[name] = "ok"
		}
		w.Header().Set("Content-Type", "application/json")
		if out.Status != "ready" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(out)
	}
}
