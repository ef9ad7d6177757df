package http

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/text/language"

	"github.com/Sentinel-Gate/sessiongate/internal/ctxkey"
	"github.com/Sentinel-Gate/sessiongate/internal/domain/session"
)

// requestIDContextKey is the type for the request ID context key.
type requestIDContextKey struct{}

// RequestIDKey is the context key for the request ID.
var RequestIDKey = requestIDContextKey{}

// clientIPContextKey is the type for the client IP context key.
type clientIPContextKey struct{}

// LoggerKey is the context key for the enriched logger.
// Uses shared key type from ctxkey package to allow cross-package access without import cycles.
var LoggerKey = ctxkey.LoggerKey{}

// RequestIDMiddleware extracts or generates a request ID and enriches the logger.
// The request ID is stored in context using RequestIDKey.
// An enriched logger with request_id field is stored using LoggerKey.
func RequestIDMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get("X-Request-ID")
			if requestID == "" {
				requestID = uuid.New().String()
			}

			enrichedLogger := logger.With("request_id", requestID)

			ctx := context.WithValue(r.Context(), RequestIDKey, requestID)
			ctx = context.WithValue(ctx, LoggerKey, enrichedLogger)

			w.Header().Set("X-Request-ID", requestID)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// LoggerFromContext retrieves the enriched logger from context.
// Returns slog.Default() if no logger is in context.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(LoggerKey).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}

// RealIPMiddleware extracts the client's real IP address for login throttling.
// It checks X-Forwarded-For and X-Real-IP headers (for reverse proxy support),
// falling back to r.RemoteAddr if no proxy headers are present.
// Only the first IP in X-Forwarded-For is trusted.
func RealIPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), clientIPContextKey{}, extractRealIP(r))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ClientIPFromContext returns the address stored by RealIPMiddleware.
func ClientIPFromContext(ctx context.Context) string {
	ip, _ := ctx.Value(clientIPContextKey{}).(string)
	return ip
}

func extractRealIP(r *http.Request) string {
	// Format: X-Forwarded-For: client, proxy1, proxy2
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// CookieConfig controls the session cookie.
type CookieConfig struct {
	Name   string
	Secure bool
}

// SessionMiddleware attaches a session.Handle to every request. The client's
// cookie is resolved through sessions; a new session and cookie are issued
// when the cookie is missing or no longer known. Handles obtained from the
// context expire the cookie when invalidated.
func SessionMiddleware(sessions *session.SessionService, cookie CookieConfig, onError func(http.ResponseWriter, *http.Request, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var id string
			if c, err := r.Cookie(cookie.Name); err == nil {
				id = c.Value
			}

			h, created, err := sessions.Open(r.Context(), id)
			if err != nil {
				onError(w, r, err)
				return
			}
			if created {
				http.SetCookie(w, cookie.issue(h.ID()))
			}

			ch := &cookieHandle{Handle: h, w: w, cookie: cookie}
			ctx := context.WithValue(r.Context(), ctxkey.SessionKey{}, session.Handle(ch))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SessionFromContext returns the handle attached by SessionMiddleware, or nil.
func SessionFromContext(ctx context.Context) session.Handle {
	h, _ := ctx.Value(ctxkey.SessionKey{}).(session.Handle)
	return h
}

func (c CookieConfig) issue(id string) *http.Cookie {
	return &http.Cookie{
		Name:     c.Name,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func (c CookieConfig) expire() *http.Cookie {
	cookie := c.issue("")
	cookie.MaxAge = -1
	return cookie
}

// cookieHandle is a session handle bound to one HTTP exchange.
type cookieHandle struct {
	session.Handle
	w      http.ResponseWriter
	cookie CookieConfig
}

// Invalidate discards the stored session and tells the client to drop the cookie.
func (h *cookieHandle) Invalidate(ctx context.Context) error {
	http.SetCookie(h.w, h.cookie.expire())
	return h.Handle.Invalidate(ctx)
}

// LocaleMiddleware negotiates the response language from Accept-Language.
// match maps the client's preferences onto a supported language.
// Requests without a usable header carry language.Und, which consumers
// replace with their default locale.
func LocaleMiddleware(match func(...language.Tag) language.Tag) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			locale := language.Und
			if header := r.Header.Get("Accept-Language"); header != "" {
				if tags, _, err := language.ParseAcceptLanguage(header); err == nil && len(tags) > 0 {
					locale = match(tags...)
				}
			}
			ctx := context.WithValue(r.Context(), ctxkey.LocaleKey{}, locale)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// LocaleFromContext returns the negotiated locale, or language.Und.
func LocaleFromContext(ctx context.Context) language.Tag {
	if tag, ok := ctx.Value(ctxkey.LocaleKey{}).(language.Tag); ok {
		return tag
	}
	return language.Und
}
