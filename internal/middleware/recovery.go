package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"
)

const internalErrorJSON = `{"error":"Internal server error","code":"INTERNAL_ERROR"}`

// Recoverer turns a panic into a 500 and logs it with the stack.
// JSON endpoints get the JSON error body. When the handler already started
// the response only the log entry is written.
func Recoverer(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rw := wrapResponseWriter(w)

			defer func() {
				rvr := recover()
				if rvr == nil {
					return
				}
				if rvr == http.ErrAbortHandler {
					panic(rvr)
				}

				logger.LogAttrs(r.Context(), slog.LevelError, "panic recovered",
					slog.String("request_id", GetRequestID(r.Context())),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.Any("panic", rvr),
					slog.String("stack", string(debug.Stack())),
				)

				if rw.wroteHeader {
					return
				}
				if isAPIPath(r.URL.Path) {
					rw.Header().Set("Content-Type", "application/json")
					rw.WriteHeader(http.StatusInternalServerError)
					_, _ = rw.Write([]byte(internalErrorJSON))
					return
				}
				http.Error(rw, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			}()

			next.ServeHTTP(rw, r)
		})
	}
}
