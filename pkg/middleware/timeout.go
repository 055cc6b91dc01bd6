package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	apperrors "studiobook/pkg/errors"
	httputil "studiobook/pkg/http"
	"studiobook/pkg/logger"
)

// timeoutWriter keeps its own header map so a handler still running after
// the deadline never touches the real response.
type timeoutWriter struct {
	w           http.ResponseWriter
	header      http.Header
	mu          sync.Mutex
	timedOut    bool
	wroteHeader bool
}

func newTimeoutWriter(w http.ResponseWriter) *timeoutWriter {
	return &timeoutWriter{w: w, header: make(http.Header)}
}

func (tw *timeoutWriter) Header() http.Header {
	return tw.header
}

func (tw *timeoutWriter) WriteHeader(code int) {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	tw.writeHeaderLocked(code)
}

func (tw *timeoutWriter) writeHeaderLocked(code int) {
	if tw.timedOut || tw.wroteHeader {
		return
	}
	dst := tw.w.Header()
	for k, v := range tw.header {
		dst[k] = v
	}
	tw.wroteHeader = true
	tw.w.WriteHeader(code)
}

func (tw *timeoutWriter) Write(b []byte) (int, error) {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	if tw.timedOut {
		return 0, http.ErrHandlerTimeout
	}
	tw.writeHeaderLocked(http.StatusOK)
	return tw.w.Write(b)
}

// expire marks the writer timed out and reports whether the caller may still
// write the timeout response.
func (tw *timeoutWriter) expire() bool {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	tw.timedOut = true
	return !tw.wroteHeader
}

// RequestTimeout bounds handler run time. The handler keeps its context, so
// store and gateway calls see the deadline and stop; the client gets a 503.
func RequestTimeout(timeout time.Duration, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()
			r = r.WithContext(ctx)

			tw := newTimeoutWriter(w)
			done := make(chan struct{})
			go func() {
				defer close(done)
				next.ServeHTTP(tw, r)
			}()

			select {
			case <-done:
			case <-ctx.Done():
				log.Warn("Request timed out",
					"request_id", RequestID(r),
					"method", r.Method,
					"path", r.URL.Path,
					"timeout", timeout.String(),
				)
				if !tw.expire() {
					return
				}
				if err := httputil.WriteJSON(w, http.StatusServiceUnavailable, httputil.ErrorResponse{
					Error:     "Request timeout",
					Code:      apperrors.CodeTimeout,
					Retryable: true,
				}); err != nil {
					log.Error("failed to write timeout response", "request_id", RequestID(r), "error", err)
				}
			}
		})
	}
}
