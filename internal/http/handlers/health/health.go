// Package health serves the liveness and readiness probes.
package health

import (
	"context"
	"net/http"
	"time"

	"github.com/aanand-mishra/student-crud-api/internal/utils/response"
)

// Pinger is anything whose reachability can be checked.
// storage.Storage satisfies it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Response is the probe body.
type Response struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

const pingTimeout = 5 * time.Second

// Healthz handles GET /healthz. It reports 200 while the process is up
// and never touches dependencies.
func Healthz(w http.ResponseWriter, _ *http.Request) {
	response.WriteJSON(w, http.StatusOK, Response{Status: "ok"})
}

// Readyz handles GET /readyz. It pings storage and answers 503 when the
// store is unreachable.
func Readyz(store Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), pingTimeout)
		defer cancel()

		if err := store.Ping(ctx); err != nil {
			response.WriteJSON(w, http.StatusServiceUnavailable, Response{
				Status: "unavailable",
				Checks: map[string]string{"storage": "error: " + err.Error()},
			})
			return
		}

		response.WriteJSON(w, http.StatusOK, Response{
			Status: "ok",
			Checks: map[string]string{"storage": "ok"},
		})
	}
}
