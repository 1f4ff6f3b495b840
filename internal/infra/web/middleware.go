package web

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"telegram-sticker-cloner/internal/infra/logging"
	"telegram-sticker-cloner/internal/infra/metrics"
)

type Middleware func(http.Handler) http.Handler

func TraceID() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := logging.WithTraceID(r.Context(), uuid.NewString())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequestLog logs every request and counts it by route pattern.
func RequestLog(logger *zerolog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &respWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)

			route := r.URL.Path
			if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
				route = rc.RoutePattern()
			}
			metrics.IncAdminAPIRequest(r.Method+" "+route, strconv.Itoa(ww.status))
			logging.With(r.Context(), logger).Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.status).
				Dur("duration", time.Since(start)).
				Msg("http_request")
		})
	}
}

type respWriter struct {
	http.ResponseWriter
	status int
}

func (w *respWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func Recover(logger *zerolog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logging.With(r.Context(), logger).Error().Interface("panic", rec).Msg("panic recovered")
					writeError(w, http.StatusInternalServerError, "internal error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func Timeout(d time.Duration) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireOwner rejects requests without a valid owner token.
func RequireOwner(auth *AuthManager) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, err := auth.ParseFromRequest(r)
			switch {
			case err == nil:
				next.ServeHTTP(w, r)
			case errors.Is(err, ErrNotOwner):
				writeError(w, http.StatusForbidden, err.Error())
			default:
				writeError(w, http.StatusUnauthorized, err.Error())
			}
		})
	}
}
