package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"golang.org/x/text/language"

	"github.com/Sentinel-Gate/sessiongate/internal/adapter/inbound/http"
	"github.com/Sentinel-Gate/sessiongate/internal/adapter/outbound/cel"
	"github.com/Sentinel-Gate/sessiongate/internal/adapter/outbound/memory"
	"github.com/Sentinel-Gate/sessiongate/internal/adapter/outbound/messages"
	"github.com/Sentinel-Gate/sessiongate/internal/adapter/outbound/sqlite"
	"github.com/Sentinel-Gate/sessiongate/internal/adapter/outbound/telemetry"
	"github.com/Sentinel-Gate/sessiongate/internal/config"
	"github.com/Sentinel-Gate/sessiongate/internal/domain/account"
	"github.com/Sentinel-Gate/sessiongate/internal/domain/catalog"
	"github.com/Sentinel-Gate/sessiongate/internal/domain/guard"
	"github.com/Sentinel-Gate/sessiongate/internal/domain/ratelimit"
	"github.com/Sentinel-Gate/sessiongate/internal/domain/session"
	"github.com/Sentinel-Gate/sessiongate/internal/service"
)

// Credentials of the user created in dev mode when none are configured.
const (
	demoUsername = "demo"
	demoPassword = "demo"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the API server",
	Long: `Start the sessiongate API server.

Users and products from the config file are written to the database before
the server starts accepting requests.

Examples:
  # Start with config file settings
  sessiongate start

  # Start with demo products and a demo/demo user
  sessiongate start --dev

  # Start with a specific config file
  sessiongate --config /path/to/config.yaml start`,
	RunE: runStart,
}

var devMode bool

func init() {
	startCmd.Flags().BoolVar(&devMode, "dev", false, "Enable development mode (debug logging, demo data)")
	rootCmd.AddCommand(startCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	// Load configuration (without validation, so CLI flags can override first)
	cfg, err := config.LoadConfigRaw()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if devMode {
		cfg.DevMode = true
	}
	cfg.SetDevDefaults()

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	// stop() restores default signal handling so a second Ctrl+C does a hard kill.
	ctx, stop := signal.NotifyContext(context.Background(), gracefulSignals()...)
	go func() {
		<-ctx.Done()
		stop()
	}()

	logger := newLogger(cfg.Server, cfg.DevMode, os.Stderr)
	if configFile := config.ConfigFileUsed(); configFile != "" {
		logger.Info("loaded config", "file", configFile)
	}

	return run(ctx, cfg, logger, nil)
}

// run wires every component and serves until ctx is cancelled.
// ready, if non-nil, receives the bound listen address.
func run(ctx context.Context, cfg *config.Config, logger *slog.Logger, ready func(net.Addr)) error {
	if cfg.DevMode {
		logger.Warn("development mode enabled: do not use in production")
	}

	// ===== Persistence =====
	db, err := sqlite.Open(ctx, cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() { _ = db.Close() }()
	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	logger.Debug("database ready", "path", cfg.Database.Path)

	// ===== Telemetry =====
	providers, err := telemetry.Setup(ctx, telemetry.Config{
		Exporter:       cfg.Telemetry.Exporter,
		MetricInterval: config.Duration(cfg.Telemetry.MetricInterval),
		ServiceName:    "sessiongate",
		ServiceVersion: Version,
	}, os.Stderr)
	if err != nil {
		return fmt.Errorf("failed to set up telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown failed", "error", err)
		}
	}()
	otel.SetTracerProvider(providers.TracerProvider)
	otel.SetMeterProvider(providers.MeterProvider)

	// ===== Messages and guard =====
	catalogMessages, defaultLocale, err := loadMessages(cfg.I18n.DefaultLocale)
	if err != nil {
		return fmt.Errorf("failed to load message catalogs: %w", err)
	}
	for tag, missing := range catalogMessages.Missing() {
		if len(missing) > 0 {
			logger.Warn("message catalog is incomplete", "locale", tag.String(), "missing", missing)
		}
	}
	timeout, err := guard.NewTimeout(cfg.Session.TimeoutMillis, catalogMessages, defaultLocale)
	if err != nil {
		return err
	}

	sessionStore := memory.NewSessionStoreWithConfig(config.Duration(cfg.Session.CleanupInterval))
	sessionStore.StartCleanup(ctx)
	defer sessionStore.Stop()

	sessions := session.NewSessionService(sessionStore, session.Config{
		IdleTimeout: config.Duration(cfg.Session.IdleTTL),
	})
	adapter := session.NewAdapter(logger)
	sessionGuard := guard.New(adapter, timeout, catalogMessages,
		guard.WithDefaultLocale(defaultLocale),
		guard.WithLogger(logger),
		guard.WithTracerProvider(providers.TracerProvider),
		guard.WithMeterProvider(providers.MeterProvider),
	)

	// ===== Services =====
	var authOpts []service.AuthOption
	var limiterSize http.Sizer
	if cfg.RateLimit.Enabled {
		limiter := memory.NewRateLimiterWithConfig(
			config.Duration(cfg.RateLimit.CleanupInterval),
			config.Duration(cfg.RateLimit.MaxTTL),
		)
		limiter.StartCleanup(ctx)
		defer limiter.Stop()
		limiterSize = limiter

		authOpts = append(authOpts, service.WithLoginThrottle(limiter, ratelimit.Policy{
			Rate:   cfg.RateLimit.LoginRate,
			Burst:  cfg.RateLimit.LoginRate,
			Period: time.Minute,
		}))
	}
	authService := service.NewAuthService(sqlite.NewUserStore(db), adapter, logger, authOpts...)
	if err := seedUsers(ctx, cfg, authService, logger); err != nil {
		return fmt.Errorf("failed to seed users: %w", err)
	}

	filter, err := cel.NewEvaluator()
	if err != nil {
		return fmt.Errorf("failed to create product filter: %w", err)
	}
	productService := service.NewProductService(sqlite.NewProductStore(db), filter, logger)
	if err := productService.Seed(ctx, toProducts(cfg.Catalog.Products)); err != nil {
		return fmt.Errorf("failed to seed products: %w", err)
	}
	logger.Debug("seeded catalog", "products", len(cfg.Catalog.Products))

	// ===== HTTP =====
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := http.NewMetrics(reg, sessionStore.Size)

	handler := http.NewHandler(authService, productService, sessionGuard, sessions, adapter, catalogMessages,
		http.WithLogger(logger),
		http.WithMetrics(metrics, reg),
		http.WithHealthChecker(http.NewHealthChecker(sessionStore, limiterSize, db, Version)),
		http.WithCookie(http.CookieConfig{Name: cfg.Session.CookieName, Secure: cfg.Session.CookieSecure}),
		http.WithLocaleMatcher(catalogMessages.Match),
	)

	logger.Info("sessiongate starting",
		"version", Version,
		"dev_mode", cfg.DevMode,
		"http_addr", cfg.Server.HTTPAddr,
		"session_timeout", timeout.Duration(),
		"default_locale", defaultLocale.String(),
		"languages", catalogMessages.Languages(),
		"rate_limit", cfg.RateLimit.Enabled,
		"telemetry", cfg.Telemetry.Exporter,
	)
	if ready == nil {
		ready = func(addr net.Addr) { printBanner(os.Stderr, Version, addr.String(), cfg.DevMode) }
	}

	return http.NewServer(cfg.Server.HTTPAddr, handler.Routes(), logger).Start(ctx, ready)
}

// loadMessages loads the built-in catalogs with the supported language closest
// to locale as the default.
func loadMessages(locale string) (*messages.Catalog, language.Tag, error) {
	probe, err := messages.Load(language.English)
	if err != nil {
		return nil, language.Und, err
	}
	tag, err := language.Parse(locale)
	if err != nil {
		return nil, language.Und, fmt.Errorf("invalid default locale %q: %w", locale, err)
	}
	defaultLocale := probe.Match(tag)
	if defaultLocale == language.English {
		return probe, defaultLocale, nil
	}
	c, err := messages.Load(defaultLocale)
	return c, defaultLocale, err
}

// seedUsers writes configured users to the database. In dev mode without
// configured users a demo user is created instead.
func seedUsers(ctx context.Context, cfg *config.Config, auth *service.AuthService, logger *slog.Logger) error {
	users := cfg.Auth.Users
	if cfg.DevMode && len(users) == 0 {
		hash, err := account.HashPassword(demoPassword)
		if err != nil {
			return err
		}
		users = []config.UserConfig{{Username: demoUsername, PasswordHash: hash}}
		logger.Warn("dev mode: demo user enabled", "username", demoUsername, "password", demoPassword)
	}

	for _, u := range users {
		if err := auth.EnsureUser(ctx, u.Username, u.PasswordHash); err != nil {
			return fmt.Errorf("user %s: %w", u.Username, err)
		}
	}
	logger.Debug("seeded users", "users", len(users))
	return nil
}

func toProducts(in []config.ProductConfig) []catalog.Product {
	out := make([]catalog.Product, 0, len(in))
	for _, p := range in {
		out = append(out, catalog.Product{SKU: p.SKU, Name: p.Name, PriceCents: p.PriceCents})
	}
	return out
}

// newLogger builds the process logger. DevMode always forces debug.
func newLogger(cfg config.ServerConfig, devMode bool, w io.Writer) *slog.Logger {
	level := parseLogLevel(cfg.LogLevel)
	if devMode {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// parseLogLevel converts a string log level to slog.Level.
// Returns slog.LevelInfo for unrecognized values.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// printBanner prints a startup banner with the API address and mode.
func printBanner(w io.Writer, version, addr string, devMode bool) {
	const (
		reset  = "\033[0m"
		bold   = "\033[1m"
		cyan   = "\033[36m"
		green  = "\033[32m"
		yellow = "\033[33m"
		dim    = "\033[2m"
	)

	base := "http://" + addr
	if strings.HasPrefix(addr, ":") {
		base = "http://localhost" + addr
	}

	modeStr := green + "production" + reset
	if devMode {
		modeStr = yellow + "development" + reset + dim + " (demo/demo)" + reset
	}

	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "  %s%s sessiongate %s%s\n", bold, cyan, version, reset)
	fmt.Fprintf(w, "  %s─────────────────────────────────────%s\n", dim, reset)
	fmt.Fprintf(w, "  %-10s %s/api/\n", "API:", base)
	fmt.Fprintf(w, "  %-10s %s/health\n", "Health:", base)
	fmt.Fprintf(w, "  %-10s %s/metrics\n", "Metrics:", base)
	fmt.Fprintf(w, "  %-10s %s\n", "Mode:", modeStr)
	fmt.Fprintf(w, "  %s─────────────────────────────────────%s\n", dim, reset)
	fmt.Fprintf(w, "\n")
}
