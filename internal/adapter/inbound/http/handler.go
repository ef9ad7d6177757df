package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/text/language"

	"github.com/Sentinel-Gate/sessiongate/internal/domain/account"
	"github.com/Sentinel-Gate/sessiongate/internal/domain/catalog"
	"github.com/Sentinel-Gate/sessiongate/internal/domain/guard"
	"github.com/Sentinel-Gate/sessiongate/internal/domain/i18n"
	"github.com/Sentinel-Gate/sessiongate/internal/domain/session"
	"github.com/Sentinel-Gate/sessiongate/internal/service"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// Handler serves the API routes.
type Handler struct {
	auth     *service.AuthService
	products *service.ProductService
	guard    *guard.Guard
	sessions *session.SessionService
	adapter  *session.Adapter
	messages i18n.Resolver
	match    func(...language.Tag) language.Tag
	cookie   CookieConfig
	logger   *slog.Logger
	metrics  *Metrics
	health   *HealthChecker
	gatherer prometheus.Gatherer
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the logger for the handler.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) { h.logger = logger }
}

// WithMetrics records request and guard metrics and serves them from gatherer on /metrics.
func WithMetrics(m *Metrics, gatherer prometheus.Gatherer) Option {
	return func(h *Handler) {
		h.metrics = m
		h.gatherer = gatherer
	}
}

// WithHealthChecker serves /health.
func WithHealthChecker(hc *HealthChecker) Option {
	return func(h *Handler) { h.health = hc }
}

// WithCookie overrides the session cookie settings. Default: "SESSIONID", not secure.
func WithCookie(c CookieConfig) Option {
	return func(h *Handler) { h.cookie = c }
}

// WithLocaleMatcher sets how Accept-Language preferences map to a supported
// language. Default: the first preference as is.
func WithLocaleMatcher(match func(...language.Tag) language.Tag) Option {
	return func(h *Handler) { h.match = match }
}

// NewHandler creates the API handler.
func NewHandler(
	auth *service.AuthService,
	products *service.ProductService,
	g *guard.Guard,
	sessions *session.SessionService,
	adapter *session.Adapter,
	messages i18n.Resolver,
	opts ...Option,
) *Handler {
	h := &Handler{
		auth:     auth,
		products: products,
		guard:    g,
		sessions: sessions,
		adapter:  adapter,
		messages: messages,
		cookie:   CookieConfig{Name: "SESSIONID"},
		logger:   slog.Default(),
		match: func(tags ...language.Tag) language.Tag {
			return tags[0]
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes returns the fully wrapped HTTP handler.
func (h *Handler) Routes() http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("POST /api/login", h.handleLogin)
	api.HandleFunc("POST /api/logout", h.handleLogout)
	api.Handle("GET /api/session-check", h.guarded(h.bound(h.checkSession)))
	api.Handle("GET /api/products", h.guarded(h.perRequest(h.listProducts)))
	api.Handle("GET /api/products/{id}", h.guarded(h.perRequest(h.getProduct)))

	mux := http.NewServeMux()
	mux.Handle("/api/", SessionMiddleware(h.sessions, h.cookie, h.sessionError)(LocaleMiddleware(h.match)(api)))
	if h.health != nil {
		mux.Handle("GET /health", h.health.Handler())
	}
	if h.gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))
	}

	var handler http.Handler = mux
	if h.metrics != nil {
		handler = MetricsMiddleware(h.metrics)(handler)
	}
	handler = RealIPMiddleware(handler)
	handler = RequestIDMiddleware(h.logger)(handler)
	return handler
}

// loginRequest is the body of POST /api/login.
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// loginResponse is the body of a successful login.
type loginResponse struct {
	Message  string `json:"message"`
	Username string `json:"username"`
}

// sessionStatus is the body of GET /api/session-check.
type sessionStatus struct {
	Message   string    `json:"message"`
	Username  string    `json:"username"`
	LoginTime time.Time `json:"login_time"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	locale := LocaleFromContext(ctx)
	logger := LoggerFromContext(ctx)

	var req loginRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil || req.Username == "" || req.Password == "" {
		h.respondError(w, http.StatusBadRequest, h.t(i18n.KeyInvalidRequest, locale))
		return
	}

	user, err := h.auth.Login(ctx, SessionFromContext(ctx), ClientIPFromContext(ctx), req.Username, req.Password)
	var throttled *service.ThrottledError
	switch {
	case err == nil:
		h.countLogin("success")
		h.respondJSON(w, http.StatusOK, loginResponse{
			Message:  h.t(i18n.KeyLoginSuccess, locale),
			Username: user.Username,
		})
	case errors.As(err, &throttled):
		h.countLogin("throttled")
		w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(throttled.RetryAfter.Seconds()))))
		h.respondError(w, http.StatusTooManyRequests, h.t(i18n.KeyTooManyAttempts, locale))
	case errors.Is(err, account.ErrInvalidCredentials):
		h.countLogin("invalid")
		h.respondError(w, http.StatusUnauthorized, h.t(i18n.KeyInvalidCredentials, locale))
	default:
		h.countLogin("error")
		logger.Error("login failed", "username", req.Username, "error", err)
		h.respondError(w, http.StatusInternalServerError, h.t(i18n.KeyInternal, locale))
	}
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.auth.Logout(ctx, SessionFromContext(ctx)); err != nil {
		if h.metrics != nil {
			h.metrics.InvalidationFailures.Inc()
		}
		LoggerFromContext(ctx).Warn("logout could not invalidate session", "error", err)
	}
	h.respondJSON(w, http.StatusOK, guard.MessageBody{Message: h.t(i18n.KeyLogoutSuccess, LocaleFromContext(ctx))})
}

// checkSession reports who is logged in. Only reachable for valid sessions.
func (h *Handler) checkSession(ctx context.Context) (any, error) {
	s := h.adapter.Get(ctx, SessionFromContext(ctx))
	status := sessionStatus{
		Message:  h.t(i18n.KeySessionActive, LocaleFromContext(ctx)),
		Username: s.Username,
	}
	if s.LoginTimeMillis != nil {
		status.LoginTime = time.UnixMilli(*s.LoginTimeMillis).UTC()
	}
	return guard.OK(status), nil
}

func (h *Handler) listProducts(r *http.Request) guard.Operation {
	filter := r.URL.Query().Get("filter")
	return func(ctx context.Context) (any, error) {
		listing, err := h.products.List(ctx, filter)
		if err != nil {
			return nil, err
		}
		return guard.OK(listing), nil
	}
}

func (h *Handler) getProduct(r *http.Request) guard.Operation {
	id := r.PathValue("id")
	return func(ctx context.Context) (any, error) {
		product, err := h.products.Get(ctx, id)
		if errors.Is(err, catalog.ErrProductNotFound) {
			msg := strings.ReplaceAll(h.t(i18n.KeyProductNotFound, LocaleFromContext(ctx)), "{id}", id)
			return guard.Failure(http.StatusNotFound, msg), nil
		}
		if err != nil {
			return nil, err
		}
		return guard.OK(product), nil
	}
}

// protectedCall is an operation already bound to the session guard.
type protectedCall func(ctx context.Context, call guard.Call) (*guard.Response, error)

// bound protects an operation that needs nothing from the request but its
// context. The guard binding is built once.
func (h *Handler) bound(op guard.Operation) func(*http.Request) protectedCall {
	protected := h.guard.Protect(op)
	return func(*http.Request) protectedCall { return protected }
}

// perRequest protects an operation built from request parameters.
func (h *Handler) perRequest(op func(*http.Request) guard.Operation) func(*http.Request) protectedCall {
	return func(r *http.Request) protectedCall { return h.guard.Protect(op(r)) }
}

// guarded serves a protected call with the request's session and locale.
func (h *Handler) guarded(protect func(*http.Request) protectedCall) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		call := guard.Call{Session: SessionFromContext(ctx), Locale: LocaleFromContext(ctx)}

		resp, err := protect(r)(ctx, call)
		if err != nil {
			h.countDecision("failed")
			h.respondGuardError(w, r, call.Locale, err)
			return
		}
		if resp.Status == http.StatusUnauthorized {
			h.countDecision("rejected")
		} else {
			h.countDecision("allowed")
		}
		h.respondGuarded(w, r, resp)
	})
}

// entityTagger is implemented by bodies that carry an ETag.
type entityTagger interface {
	EntityTag() string
}

func (h *Handler) respondGuarded(w http.ResponseWriter, r *http.Request, resp *guard.Response) {
	if tagged, ok := resp.Body.(entityTagger); ok && resp.Status == http.StatusOK {
		etag := tagged.EntityTag()
		w.Header().Set("ETag", etag)
		if r.Header.Get("If-None-Match") == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
	}
	h.respondJSON(w, resp.Status, resp.Body)
}

func (h *Handler) respondGuardError(w http.ResponseWriter, r *http.Request, locale language.Tag, err error) {
	logger := LoggerFromContext(r.Context())

	var opErr *guard.OperationError
	if errors.As(err, &opErr) {
		if opErr.Status() >= http.StatusInternalServerError {
			logger.Error("guarded operation failed", "kind", opErr.Kind, "error", err)
		} else {
			logger.Info("guarded operation rejected input", "kind", opErr.Kind, "error", err)
		}
		h.respondError(w, opErr.Status(), opErr.PublicMessage())
		return
	}

	if errors.Is(err, guard.ErrMissingSession) {
		logger.Error("guarded route reached without a session", "path", r.URL.Path)
	} else {
		logger.Error("guarded call failed", "error", err)
	}
	h.respondError(w, http.StatusInternalServerError, h.t(i18n.KeyInternal, locale))
}

func (h *Handler) sessionError(w http.ResponseWriter, r *http.Request, err error) {
	LoggerFromContext(r.Context()).Error("failed to open session", "error", err)
	h.respondError(w, http.StatusInternalServerError, h.t(i18n.KeyInternal, language.Und))
}

func (h *Handler) t(key string, locale language.Tag) string {
	return h.messages.Resolve(key, locale)
}

func (h *Handler) countLogin(result string) {
	if h.metrics != nil {
		h.metrics.LoginAttempts.WithLabelValues(result).Inc()
	}
}

func (h *Handler) countDecision(result string) {
	if h.metrics != nil {
		h.metrics.GuardDecisions.WithLabelValues(result).Inc()
	}
}

// respondJSON writes a JSON response with the given status code.
func (h *Handler) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode JSON response", "error", err)
	}
}

// respondError writes a JSON error response with the given status code and message.
func (h *Handler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, guard.ErrorBody{Error: message})
}
