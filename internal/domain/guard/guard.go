// Package guard implements the session guard: a decorator that lets a
// protected operation run only when the caller's session is authenticated
// and its login is younger than the configured timeout, and shapes the
// outcome into a Response.
//
// Evaluation order for every call:
//
//  1. no session handle: ErrMissingSession
//  2. loggedIn and login time not both present: 401 not-logged-in
//  3. now - login time > timeout: invalidate (best effort), 401 session-expired
//  4. otherwise the operation runs and its result is repackaged
package guard

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/language"

	"github.com/Sentinel-Gate/sessiongate/internal/domain/i18n"
	"github.com/Sentinel-Gate/sessiongate/internal/domain/session"
)

const instrumentationName = "github.com/Sentinel-Gate/sessiongate/internal/domain/guard"

// State is the outcome of validating a session.
type State int

const (
	// StateAnonymous means the session carries no complete login.
	StateAnonymous State = iota + 1
	// StateExpired means the login is older than the timeout.
	StateExpired
	// StateValid means the wrapped operation may run.
	StateValid
)

func (s State) String() string {
	switch s {
	case StateAnonymous:
		return "anonymous"
	case StateExpired:
		return "expired"
	case StateValid:
		return "valid"
	default:
		return "unknown"
	}
}

// Call is the per-invocation input of the guard.
type Call struct {
	// Session is the caller's session handle. Nil is a host wiring defect.
	Session session.Handle
	// Locale selects the language of generated messages.
	// language.Und means the guard's default locale.
	Locale language.Tag
}

// Operation is a protected unit of work. It may return a *Response to fully
// control the outgoing response, or any other value to get a generic success.
type Operation func(ctx context.Context) (any, error)

// Guard validates sessions and decorates operations. It holds only read-only
// configuration and is safe for concurrent use.
type Guard struct {
	adapter       *session.Adapter
	timeout       Timeout
	messages      i18n.Resolver
	defaultLocale language.Tag
	now           func() time.Time
	logger        *slog.Logger
	tracer        trace.Tracer
	decisions     metric.Int64Counter
}

// Option configures a Guard.
type Option func(*guardOptions)

type guardOptions struct {
	defaultLocale  language.Tag
	now            func() time.Time
	logger         *slog.Logger
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
}

// WithDefaultLocale sets the locale used when a call carries none. Default: English.
func WithDefaultLocale(tag language.Tag) Option {
	return func(o *guardOptions) { o.defaultLocale = tag }
}

// WithClock overrides the time source. Default: time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *guardOptions) { o.now = now }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *guardOptions) { o.logger = logger }
}

// WithTracerProvider sets the tracer provider. Default: the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *guardOptions) { o.tracerProvider = tp }
}

// WithMeterProvider sets the meter provider. Default: the global provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *guardOptions) { o.meterProvider = mp }
}

// New creates a Guard. A nil resolver resolves every key to itself.
func New(adapter *session.Adapter, timeout Timeout, messages i18n.Resolver, opts ...Option) *Guard {
	o := guardOptions{
		defaultLocale: language.English,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.tracerProvider == nil {
		o.tracerProvider = otel.GetTracerProvider()
	}
	if o.meterProvider == nil {
		o.meterProvider = otel.GetMeterProvider()
	}
	if messages == nil {
		messages = i18n.KeyResolver
	}
	if adapter == nil {
		adapter = session.NewAdapter(o.logger)
	}

	decisions, err := o.meterProvider.Meter(instrumentationName).Int64Counter(
		"sessionguard.decisions",
		metric.WithDescription("Session guard decisions by resulting state"),
	)
	if err != nil {
		o.logger.Warn("session guard metrics disabled", "error", err)
		decisions, _ = metricnoop.NewMeterProvider().Meter(instrumentationName).Int64Counter("sessionguard.decisions")
	}

	return &Guard{
		adapter:       adapter,
		timeout:       timeout,
		messages:      messages,
		defaultLocale: o.defaultLocale,
		now:           o.now,
		logger:        o.logger,
		tracer:        o.tracerProvider.Tracer(instrumentationName),
		decisions:     decisions,
	}
}

// Timeout returns the configured timeout.
func (g *Guard) Timeout() Timeout { return g.timeout }

// Evaluate classifies the session of call without side effects.
func (g *Guard) Evaluate(ctx context.Context, call Call) (State, session.Session, error) {
	if call.Session == nil {
		return 0, session.Session{}, ErrMissingSession
	}
	s := g.adapter.Get(ctx, call.Session)
	if !s.Authenticated() {
		return StateAnonymous, s, nil
	}
	elapsed := g.now().UnixMilli() - *s.LoginTimeMillis
	if elapsed > g.timeout.Millis() {
		return StateExpired, s, nil
	}
	return StateValid, s, nil
}

// Invoke validates the session of call and, when valid, runs op.
//
// Rejections are returned as 401 responses, not errors. Failures of op are
// returned as *OperationError with the original error as cause.
func (g *Guard) Invoke(ctx context.Context, call Call, op Operation) (*Response, error) {
	ctx, span := g.tracer.Start(ctx, "sessionguard.invoke")
	defer span.End()

	state, s, err := g.Evaluate(ctx, call)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.String("session.state", state.String()))
	g.decisions.Add(ctx, 1, metric.WithAttributes(attribute.String("state", state.String())))
	locale := g.locale(call)

	switch state {
	case StateAnonymous:
		g.logger.Debug("session rejected", "session_id", call.Session.ID(), "state", state)
		return Failure(http.StatusUnauthorized, g.messages.Resolve(i18n.KeyNotLoggedIn, locale)), nil
	case StateExpired:
		g.logger.Debug("session rejected", "session_id", call.Session.ID(), "state", state,
			"username", s.Username)
		// Failure is already logged by the adapter and must not change the response.
		_ = g.adapter.Invalidate(ctx, call.Session)
		return Failure(http.StatusUnauthorized, g.messages.Resolve(i18n.KeySessionExpired, locale)), nil
	}

	result, err := op(ctx)
	if err != nil {
		opErr := g.wrap(err, locale)
		span.RecordError(err)
		span.SetStatus(codes.Error, opErr.Kind.String())
		return nil, opErr
	}
	return g.repackage(result, locale), nil
}

// Protect binds op to the guard, returning a function that can be invoked
// repeatedly with different calls.
func (g *Guard) Protect(op Operation) func(ctx context.Context, call Call) (*Response, error) {
	return func(ctx context.Context, call Call) (*Response, error) {
		return g.Invoke(ctx, call, op)
	}
}

func (g *Guard) locale(call Call) language.Tag {
	if call.Locale == language.Und {
		return g.defaultLocale
	}
	return call.Locale
}

func (g *Guard) repackage(result any, locale language.Tag) *Response {
	switch v := result.(type) {
	case *Response:
		if v != nil {
			return v
		}
	case Response:
		return &v
	}
	return OK(MessageBody{Message: g.messages.Resolve(i18n.KeyProcessSuccess, locale)})
}

func (g *Guard) wrap(err error, locale language.Tag) *OperationError {
	var inner *OperationError
	if errors.As(err, &inner) {
		// Keep the inner classification but the full error as cause.
		return &OperationError{Kind: inner.Kind, Message: inner.Message, Cause: err}
	}
	kind := classify(err)
	key := i18n.KeyOperationFailed
	switch kind {
	case KindDataAccess:
		key = i18n.KeyDatabase
	case KindInvalidArgument:
		key = i18n.KeyInvalidArgument
	}
	return &OperationError{
		Kind:    kind,
		Message: g.messages.Resolve(key, locale),
		Cause:   err,
	}
}
