package http

import (
	"context"
	stdhttp "net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/marcelofinamorvieira/record-comments/internal/comment/identity"
)

const requestIDHeader = "X-Request-ID"

type requestIDKey struct{}

func (h *Handler) requestID(next stdhttp.Handler) stdhttp.Handler {
	return stdhttp.HandlerFunc(func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
		id := r.Header.Get(requestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

func requestLogger(r *stdhttp.Request, logger zerolog.Logger) *zerolog.Logger {
	l := logger.With().Str("method", r.Method).Str("path", r.URL.Path)
	if id, ok := r.Context().Value(requestIDKey{}).(string); ok {
		l = l.Str("request_id", id)
	}
	out := l.Logger()
	return &out
}

type statusRecorder struct {
	stdhttp.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (h *Handler) accessLog(next stdhttp.Handler) stdhttp.Handler {
	return stdhttp.HandlerFunc(func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: stdhttp.StatusOK}
		next.ServeHTTP(rec, r)

		requestLogger(r, h.logger).Info().
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

// auth resolves the acting principal from the bearer token.
func (h *Handler) auth(next stdhttp.HandlerFunc) stdhttp.Handler {
	return stdhttp.HandlerFunc(func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			writeJSON(w, stdhttp.StatusUnauthorized, map[string]any{"error": "not authorized"})
			return
		}

		p, err := identity.ParseToken(h.secret, strings.TrimSpace(token))
		if err != nil {
			writeJSON(w, stdhttp.StatusUnauthorized, map[string]any{"error": "not authorized"})
			return
		}

		next.ServeHTTP(w, r.WithContext(identity.WithPrincipal(r.Context(), p)))
	})
}
