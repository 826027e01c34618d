package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ferrydl/ferry"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

// RequestIDHeader carries the request id in and out.
const RequestIDHeader = "X-Request-ID"

type requestIDKey struct{}

// RequestID reuses the inbound X-Request-ID header or generates a UUID, and
// echoes it on the response.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}

		w.Header().Set(RequestIDHeader, id)
		ctx := context.WithValue(r.Context(), requestIDKey{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestIDFromContext returns the id set by RequestID.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// RequestRecorder counts served requests.
type RequestRecorder interface {
	RecordRequest(ctx context.Context, method string, status int)
}

// AccessLog logs one line per request. The recorder may be nil.
func AccessLog(logger *slog.Logger, recorder RequestRecorder) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}

			logger.InfoContext(r.Context(), "request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", RequestIDFromContext(r.Context()),
			)

			if recorder != nil {
				recorder.RecordRequest(r.Context(), r.Method, status)
			}
		})
	}
}

// Authenticator resolves a bearer token to a user.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*ferry.User, error)
}

// AuthMiddleware attaches the user named by the Authorization bearer token
// to the request context. Requests without a token continue anonymously.
// Pass nil to disable authentication.
func AuthMiddleware(auth Authenticator) func(http.Handler) http.Handler {
	if auth == nil {
		return func(next http.Handler) http.Handler {
			return next
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			user, err := auth.Authenticate(r.Context(), token)
			if err != nil {
				w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
				HandleError(w, r, fmt.Errorf("authenticate: %w: %w", ErrUnauthenticated, err))
				return
			}

			next.ServeHTTP(w, r.WithContext(ferry.WithUser(r.Context(), user)))
		})
	}
}

// RequireRole rejects anonymous requests with 401 and users without the
// role with 403.
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := ferry.UserFromContext(r.Context())
			if user == nil {
				w.Header().Set("WWW-Authenticate", "Bearer")
				HandleError(w, r, ErrUnauthenticated)
				return
			}

			if !user.HasRole(role) {
				HandleError(w, r, fmt.Errorf("require role %s: %w", role, ferry.ErrUnauthorized))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}

	token = strings.TrimSpace(token)
	return token, token != ""
}
