package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/umarmf343/PhantomViews/internal/access"
	"github.com/umarmf343/PhantomViews/internal/account"
	"github.com/umarmf343/PhantomViews/internal/api"
	"github.com/umarmf343/PhantomViews/internal/auth"
	"github.com/umarmf343/PhantomViews/internal/config"
	"github.com/umarmf343/PhantomViews/internal/events"
	"github.com/umarmf343/PhantomViews/internal/health"
	"github.com/umarmf343/PhantomViews/internal/idempotency"
	"github.com/umarmf343/PhantomViews/internal/kv"
	"github.com/umarmf343/PhantomViews/internal/license"
	"github.com/umarmf343/PhantomViews/internal/mail"
	"github.com/umarmf343/PhantomViews/internal/middleware"
	"github.com/umarmf343/PhantomViews/internal/payment"
	"github.com/umarmf343/PhantomViews/internal/render"
	"github.com/umarmf343/PhantomViews/internal/tour"
)

// serviceName identifies the server in traces.
const serviceName = "phantomviews-api"

// ledgerCleanupInterval is how often expired ledger records are purged.
const ledgerCleanupInterval = time.Hour

// app holds the wired components behind the HTTP routes.
type app struct {
	cfg    *config.Config
	logger *slog.Logger

	tours      tour.Repository
	licenses   *license.Engine
	gate       *access.Gate
	builder    *render.Builder
	checkout   *payment.CheckoutService
	reconciler *payment.Reconciler
	nonces     *auth.NonceService
	jwt        *auth.JWTService
	hub        *events.Hub
	ledger     idempotency.Repository
	rateStore  middleware.RateLimitStore

	registry    *prometheus.Registry
	httpMetrics *middleware.Metrics
	health      *api.HealthHandlers

	closers []func() error
}

// newApp opens the configured backing services and wires every component.
// Without DATABASE_URL or REDIS_URL the in-memory stores are used.
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger, registry: prometheus.NewRegistry()}

	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.httpMetrics = middleware.NewMetrics()
	licenseMetrics := license.NewMetrics()
	paymentMetrics := payment.NewMetrics()
	for _, r := range []interface{ Register(prometheus.Registerer) error }{a.httpMetrics, licenseMetrics, paymentMetrics} {
		if err := r.Register(a.registry); err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
	}

	var (
		db          *sql.DB
		redisClient *redis.Client
		store       kv.Store
	)

	if cfg.DatabaseURL != "" {
		var err error
		db, err = tour.OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db.Close)
		repo := tour.NewPostgresRepository(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			a.Close()
			return nil, err
		}
		a.tours = repo
	} else {
		logger.Warn("DATABASE_URL not set, tours are kept in memory")
		a.tours = tour.NewInMemoryRepository()
	}

	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		redisClient = redis.NewClient(opts)
		a.closers = append(a.closers, redisClient.Close)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			a.Close()
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		store = kv.NewRedisStore(redisClient)
		a.ledger = idempotency.NewRedisRepository(redisClient, idempotency.DefaultExpiry)
		a.rateStore = middleware.NewRedisRateLimitStore(redisClient, a.httpMetrics)
	} else {
		logger.Warn("REDIS_URL not set, license state and delivery ledger are kept in memory")
		store = kv.NewInMemoryStore()
		a.ledger = idempotency.NewInMemoryRepository()
		a.rateStore = middleware.NewInMemoryRateLimitStore()
	}

	bus := events.NewBus()
	a.hub = events.NewHub()
	bus.Subscribe(events.LogHandler(logger))
	bus.Subscribe(a.hub.Handle)

	a.licenses = license.NewEngine(store, bus, license.WithMetrics(licenseMetrics))
	a.gate = access.NewGate(cfg.FreeSceneLimit)
	a.builder = render.NewBuilder()

	httpClient := payment.NewHTTPClient()
	gateways := payment.NewRegistry(
		payment.NewPaystackGateway(payment.PaystackConfig{
			PublicKey:  cfg.PaystackPublicKey,
			SecretKey:  cfg.PaystackSecretKey,
			BaseURL:    cfg.PaystackBaseURL,
			HTTPClient: httpClient,
		}),
		payment.NewFlutterwaveGateway(payment.FlutterwaveConfig{
			PublicKey:   cfg.FlutterwavePublicKey,
			SecretKey:   cfg.FlutterwaveSecretKey,
			WebhookHash: cfg.FlutterwaveWebhookHash,
			BaseURL:     cfg.FlutterwaveBaseURL,
			HTTPClient:  httpClient,
		}),
		payment.NewStripeGateway(payment.StripeConfig{
			APIKey:        cfg.StripeAPIKey,
			WebhookSecret: cfg.StripeWebhookSecret,
			HTTPClient:    httpClient,
		}),
	)

	pricing := payment.Pricing{Monthly: cfg.PriceMonthly, Yearly: cfg.PriceYearly, Currency: cfg.Currency}
	site := payment.Site{URL: cfg.SiteURL, Name: cfg.SiteName, CallbackURL: cfg.CallbackURL()}
	a.checkout = payment.NewCheckoutService(gateways, pricing, site, paymentMetrics)

	var sender mail.Sender = mail.NewLogSender(logger)
	var smtpChecker api.HealthChecker
	if cfg.SMTPHost != "" {
		sender = mail.NewSMTPSender(mail.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
		})
		smtpChecker = health.NewSMTPChecker(cfg.SMTPHost, cfg.SMTPPort)
	}

	a.reconciler = payment.NewReconciler(gateways, a.licenses,
		payment.WithDirectory(account.NewInMemoryDirectory()),
		payment.WithMailer(sender),
		payment.WithPublisher(bus),
		payment.WithLedger(a.ledger),
		payment.WithReconcilerMetrics(paymentMetrics),
	)

	a.jwt = auth.NewJWTServiceWithRotation(cfg.JWTSecret, cfg.JWTPreviousSecret)
	a.nonces = auth.NewNonceService(cfg.NonceSecret)

	hc := api.HealthHandlersConfig{MetricsEnabled: true, SMTPChecker: smtpChecker}
	if db != nil {
		hc.DBChecker = health.NewDBChecker(db)
	}
	if redisClient != nil {
		hc.RedisChecker = health.NewRedisChecker(redisClient)
	}
	a.health = api.NewHealthHandlers(hc)

	logger.Info("services wired",
		"gateways", gateways.Names(),
		"free_scene_limit", a.gate.Limit(),
		"postgres", db != nil,
		"redis", redisClient != nil,
		"smtp", cfg.SMTPHost != "",
	)
	return a, nil
}

// Close releases the backing connections in reverse order of opening.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Error("failed to close resource", "error", err)
		}
	}
	a.closers = nil
}

// runBackground starts the ledger cleanup loop. It stops with ctx.
func (a *app) runBackground(ctx context.Context) {
	go idempotency.RunPeriodicCleanup(ctx, a.ledger, ledgerCleanupInterval, idempotency.DefaultExpiry)
}

// routes builds the mux and wraps it in the middleware chain:
// RequestID -> Tracing -> HTTPMetrics -> Logging -> global rate limit -> mux.
func (a *app) routes() http.Handler {
	mux := http.NewServeMux()

	editor := middleware.RequireRole(a.jwt, auth.RoleEditor)
	admin := middleware.RequireRole(a.jwt, auth.RoleAdmin)
	editorCORS := middleware.CORS(middleware.DefaultEditorCORS(a.cfg.SiteURL))
	protected := func(role func(http.Handler) http.Handler, h http.HandlerFunc) http.Handler {
		return editorCORS(role(h))
	}

	// Ambient
	mux.HandleFunc("GET /health", a.health.Health)
	mux.HandleFunc("GET /ready", a.health.Ready)
	mux.Handle("GET /metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}))

	// Tours
	tours := api.NewTourHandlers(a.tours, a.licenses, a.gate, a.builder)
	mux.Handle("POST /tours", protected(editor, tours.CreateTour))
	mux.Handle("GET /tours/{id}", protected(editor, tours.GetTour))
	mux.Handle("PUT /tours/{id}", protected(editor, tours.SaveTour))
	mux.Handle("POST /tours/{id}", protected(editor, tours.SaveTour))
	mux.Handle("GET /tours/{id}/payload", middleware.PublicCORS(http.HandlerFunc(tours.Payload)))
	mux.Handle("GET /tours/{id}/embed", middleware.PublicCORS(http.HandlerFunc(tours.Embed)))

	// License administration
	licenses := api.NewLicenseHandlers(a.licenses, a.checkout.Pricing(), a.gate.Limit())
	activateLimit := middleware.RateLimiter(a.rateStore, middleware.DefaultCheckoutLimit(),
		middleware.PrefixedKeyFunc("license", middleware.UserKeyFunc()), a.httpMetrics)
	mux.Handle("POST /license/activate", editorCORS(admin(activateLimit(http.HandlerFunc(licenses.Activate)))))
	mux.Handle("POST /license/deactivate", protected(admin, licenses.Deactivate))
	mux.Handle("GET /license/status", protected(admin, licenses.Status))
	mux.Handle("POST /license/validate", protected(admin, licenses.Validate))

	// Checkout
	checkout := api.NewCheckoutHandlers(a.checkout, a.nonces)
	checkoutLimit := middleware.RateLimiter(a.rateStore, middleware.DefaultCheckoutLimit(),
		middleware.PrefixedKeyFunc("checkout", middleware.UserKeyFunc()), a.httpMetrics)
	mux.Handle("GET /checkout/nonce", protected(admin, checkout.Nonce))
	// Replays happen after auth; a cached checkout URL is only served to admins.
	checkoutIdem := middleware.Idempotency(a.ledger, map[string]bool{"/checkout": true}, a.httpMetrics)
	mux.Handle("POST /checkout", editorCORS(admin(checkoutLimit(checkoutIdem(http.HandlerFunc(checkout.CreateCheckout))))))

	// Gateway webhooks
	webhooks := api.NewWebhookHandlers(a.reconciler)
	webhookLimit := middleware.RateLimiter(a.rateStore, middleware.WebhookLimit(a.cfg.WebhookRateLimit),
		middleware.PrefixedKeyFunc("webhook", middleware.IPKeyFunc()), a.httpMetrics)
	mux.Handle("POST /webhook/{gateway}", webhookLimit(http.HandlerFunc(webhooks.HandleWebhook)))

	// Live license events for the admin screen
	eventHandlers := api.NewEventHandlers(a.hub, a.jwt, []string{a.cfg.SiteURL})
	mux.HandleFunc("GET /events", eventHandlers.Stream)

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		api.WriteError(w, r.Context(), http.StatusNotFound, api.ErrCodeNotFound, "The requested resource was not found")
	})

	globalLimit := middleware.RateLimiter(a.rateStore, middleware.DefaultGlobalLimit(),
		middleware.PrefixedKeyFunc("global", middleware.IPKeyFunc()), a.httpMetrics)

	var handler http.Handler = mux
	handler = globalLimit(handler)
	handler = middleware.Logging(a.logger)(handler)
	handler = middleware.HTTPMetrics(a.httpMetrics)(handler)
	handler = middleware.Tracing(serviceName)(handler)
	handler = middleware.RequestID(handler)
	return handler
}
