package httpserver

import (
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/jimei-edu/authsvc/internal/model"
	"github.com/jimei-edu/authsvc/internal/token"
)

// RefreshAdvisedHeader is set on authenticated responses when the presented
// token has entered its refresh window.
const RefreshAdvisedHeader = "X-Token-Refresh-Advised"

// statusWriter captures the response status for request logging.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Logging returns middleware for structured request logging.
// No payloads are logged, only request metadata.
func Logging(log *zap.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)

			log.Info("http",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", sw.status),
				zap.Duration("dur", time.Since(start)),
				zap.String("remote", r.RemoteAddr),
			)
		})
	}
}

// Recover returns middleware that turns panics into a logged 500 response.
func Recover(log *zap.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					log.Error("panic",
						zap.Any("reason", rec),
						zap.ByteString("stack", debug.Stack()),
						zap.String("path", r.URL.Path),
					)
					writeError(w, http.StatusInternalServerError, "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// Authenticate returns the request-authentication middleware. It extracts a
// bearer token, verifies it and binds a Principal into the request context.
// Every failure mode (missing header, non-bearer scheme, malformed, expired,
// bad signature, bad claims) fails closed to an unauthenticated request that
// still proceeds; rejection is deferred to handlers that require a principal.
// An already-bound principal is never overridden.
func Authenticate(codec *token.Codec, log *zap.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := PrincipalFromCtx(r.Context()); ok {
				next.ServeHTTP(w, r)
				return
			}

			tok, ok := bearerToken(r)
			if !ok || !codec.Verify(tok) {
				next.ServeHTTP(w, r)
				return
			}

			sub, err := codec.Subject(tok)
			if err != nil {
				log.Warn("verified token with unusable subject claim")
				next.ServeHTTP(w, r)
				return
			}
			username, err := codec.Username(tok)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}
			role, err := codec.Role(tok)
			if err != nil {
				log.Warn("verified token with unknown role claim")
				next.ServeHTTP(w, r)
				return
			}

			if codec.NearExpiry(tok) {
				w.Header().Set(RefreshAdvisedHeader, "true")
			}

			ctx := WithPrincipal(r.Context(), model.Principal{
				UserID:   sub,
				Username: username,
				Role:     role,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken extracts a token from "Authorization: Bearer <token>".
func bearerToken(r *http.Request) (string, bool) {
	v := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(v) >= 7 && strings.EqualFold(v[:7], "bearer ") {
		t := strings.TrimSpace(v[7:])
		if t != "" {
			return t, true
		}
	}
	return "", false
}
