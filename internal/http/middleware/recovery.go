package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/aanand-mishra/student-crud-api/internal/utils/response"
)

// Recoverer turns a panic in a handler into a logged 500 envelope.
// The panic value and stack only go to the log.
func Recoverer(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rvr := recover()
				if rvr == nil {
					return
				}
				// Let net/http abort the connection as it intends to.
				if rvr == http.ErrAbortHandler {
					panic(rvr)
				}

				logger.Error("panic recovered",
					slog.String("request_id", GetRequestID(r.Context())),
					slog.Any("panic", rvr),
					slog.String("stack", string(debug.Stack())),
				)

				response.InternalError(w)
			}()

			next.ServeHTTP(w, r)
		})
	}
}
