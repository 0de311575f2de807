package middleware

import (
	"context"
	"net/http"
	"runtime/debug"
	"sync"
	"time"

	apperrors "rentcore/pkg/errors"
	"rentcore/pkg/logger"
)

// deadlineWriter passes writes through until the deadline fires, then drops them.
type deadlineWriter struct {
	http.ResponseWriter
	mu      sync.Mutex
	expired bool
	started bool
}

func (dw *deadlineWriter) WriteHeader(code int) {
	dw.mu.Lock()
	defer dw.mu.Unlock()
	if dw.expired || dw.started {
		return
	}
	dw.started = true
	dw.ResponseWriter.WriteHeader(code)
}

func (dw *deadlineWriter) Write(b []byte) (int, error) {
	dw.mu.Lock()
	defer dw.mu.Unlock()
	if dw.expired {
		return 0, http.ErrHandlerTimeout
	}
	dw.started = true
	return dw.ResponseWriter.Write(b)
}

// expire stops further writes and reports whether the response is still untouched.
func (dw *deadlineWriter) expire() bool {
	dw.mu.Lock()
	defer dw.mu.Unlock()
	dw.expired = true
	return !dw.started
}

// handlerPanic carries a panic out of the handler goroutine with the stack
// where it happened.
type handlerPanic struct {
	value any
	stack []byte
}

// RequestTimeout bounds every request's context. Services see the deadline
// through ctx; lock waits and Mongo calls give up when it passes. A panic in
// the handler is re-raised on the serving goroutine so Recovery still sees it.
func RequestTimeout(timeout time.Duration, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()
			r = r.WithContext(ctx)

			dw := &deadlineWriter{ResponseWriter: w}
			done := make(chan struct{})
			panicked := make(chan handlerPanic, 1)

			go func() {
				defer func() {
					if p := recover(); p != nil {
						panicked <- handlerPanic{value: p, stack: debug.Stack()}
						return
					}
					close(done)
				}()
				next.ServeHTTP(dw, r)
			}()

			select {
			case p := <-panicked:
				panic(p)
			case <-done:
			case <-ctx.Done():
				if dw.expire() {
					writeJSONError(w, http.StatusGatewayTimeout, apperrors.CodeTimeout, "Request timeout")
				}
				log.Warn("Request deadline exceeded",
					"request_id", RequestID(r.Context()),
					"method", r.Method,
					"path", r.URL.Path,
					"timeout", timeout,
				)
			}
		})
	}
}
