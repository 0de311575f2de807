package middleware

import (
	"errors"
	"net/http"
	"runtime/debug"

	apperrors "rentcore/pkg/errors"
	"rentcore/pkg/logger"
)

// Recovery turns a handler panic into a 500. http.ErrAbortHandler is passed on
// so net/http can drop the connection quietly.
func Recovery(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				p := recover()
				if p == nil {
					return
				}

				value, stack := p, []byte(nil)
				if hp, ok := p.(handlerPanic); ok {
					value, stack = hp.value, hp.stack
				}
				if err, ok := value.(error); ok && errors.Is(err, http.ErrAbortHandler) {
					panic(value)
				}
				if stack == nil {
					stack = debug.Stack()
				}

				log.Error("Panic recovered",
					"request_id", RequestID(r.Context()),
					"error", value,
					"method", r.Method,
					"path", r.URL.Path,
					"stack", string(stack),
				)
				writeJSONError(w, http.StatusInternalServerError, apperrors.CodeInternal, "Internal server error")
			}()

			next.ServeHTTP(w, r)
		})
	}
}
