package middleware

import (
	"crypto/subtle"
	"net/http"

	"studiobook/pkg/logger"
)

const CallbackTokenHeader = "X-Callback-Token"

// CallbackTokenVerification rejects payment gateway callbacks that do not
// carry the shared verification token.
func CallbackTokenVerification(token string, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			received := r.Header.Get(CallbackTokenHeader)

			if received == "" {
				rejectCallback(w, log, r, "Missing "+CallbackTokenHeader+" header")
				return
			}

			if !verifyToken(received, token) {
				rejectCallback(w, log, r, "Invalid callback token")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func verifyToken(received, expected string) bool {
	if expected == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(received), []byte(expected)) == 1
}

func rejectCallback(w http.ResponseWriter, log *logger.Logger, r *http.Request, reason string) {
	log.Warn("Payment callback verification failed",
		"request_id", RequestID(r),
		"reason", reason,
		"path", r.URL.Path,
		"remote_addr", r.RemoteAddr,
	)

	writeJSONError(w, http.StatusUnauthorized, "Unauthorized")
}
