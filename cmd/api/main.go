// Package main is the entrypoint for the house plan catalog web server.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/myfreehouseplans/catalog/internal/analytics"
	"github.com/myfreehouseplans/catalog/internal/cache"
	"github.com/myfreehouseplans/catalog/internal/config"
	"github.com/myfreehouseplans/catalog/internal/handler"
	"github.com/myfreehouseplans/catalog/internal/mail"
	"github.com/myfreehouseplans/catalog/internal/metrics"
	"github.com/myfreehouseplans/catalog/internal/middleware"
	"github.com/myfreehouseplans/catalog/internal/repository"
	"github.com/myfreehouseplans/catalog/internal/server"
	"github.com/myfreehouseplans/catalog/internal/service"
	"github.com/myfreehouseplans/catalog/internal/upload"
	"github.com/myfreehouseplans/catalog/internal/web"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := initLogger(cfg)

	if cfg.AutoMigrate {
		if err := repository.Migrate(cfg.DatabaseURL); err != nil {
			logger.Error("failed to run migrations", slog.String("error", sanitizeError(err, cfg.DatabaseURL)))
			os.Exit(1)
		}
		logger.Info("migrations applied")
	}

	repo, err := repository.New(ctx, cfg.DatabaseURL, repository.PoolOptions{
		MaxConns:        cfg.DBMaxConns,
		MinConns:        cfg.DBMinConns,
		MaxConnIdleTime: cfg.DBMaxConnIdleTime,
	})
	if err != nil {
		logger.Error(
			"failed to connect to database",
			slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
			slog.String("database_url", redactURL(cfg.DatabaseURL)),
		)
		os.Exit(1)
	}
	defer repo.Close()
	logger.Info("connected to database")

	cacheClient, err := cache.New(ctx, cfg.RedisURL, cache.Options{
		PoolSize:     cfg.RedisPoolSize,
		MinIdleConns: cfg.RedisMinIdleConns,
		PoolTimeout:  cfg.RedisPoolTimeout,
	})
	if err != nil {
		logger.Error(
			"failed to connect to Redis",
			slog.String("error", sanitizeError(err, cfg.RedisURL)),
			slog.String("redis_url", redactURL(cfg.RedisURL)),
		)
		os.Exit(1)
	}
	defer cacheClient.Close()
	logger.Info("connected to Redis")

	app, err := newApp(cfg, repo, cacheClient, logger)
	if err != nil {
		logger.Error("failed to initialize application", "error", err)
		os.Exit(1)
	}

	if cfg.BootstrapAdmin() {
		created, err := app.auth.EnsureAdmin(ctx, service.AdminInput{
			Username: cfg.AdminUsername,
			Email:    cfg.AdminEmail,
			Password: cfg.AdminPassword,
		})
		if err != nil {
			logger.Error("failed to ensure admin account", "error", err)
			os.Exit(1)
		}
		if created {
			logger.Info("admin account created", "username", cfg.AdminUsername)
		}
	}

	r := setupRouter(app, cfg, logger)

	srv := server.New(r, server.Options{
		Port:            cfg.AppPort,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		IdleTimeout:     cfg.IdleTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, logger)

	workers := app.startWorkers(ctx, srv, logger)

	logger.Info("starting server",
		"port", cfg.AppPort,
		"site_url", cfg.SiteURL,
		"env", cfg.AppEnv,
	)

	if err := srv.Run(); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
	if err := workers.Wait(); err != nil {
		logger.Error("background worker error", "error", err)
	}
}

// app holds the wired services and handlers.
type app struct {
	auth      *service.AuthService
	uploads   *upload.Store
	tracker   *analytics.Tracker
	reporter  *analytics.Reporter
	publisher *analytics.Publisher
	logWorker *analytics.Worker
	retention *analytics.Retention
	flusher   *service.ViewFlusher
	cache     *cache.Cache

	health   *handler.HealthHandler
	public   *handler.PublicHandler
	contact  *handler.ContactHandler
	blog     *handler.BlogHandler
	analyzer *handler.AnalyzerHandler
	admin    *handler.AdminHandler
	webhook  *handler.WebhookHandler
	metricsH *handler.MetricsHandler
	base     *handler.Handler
}

func newApp(cfg *config.Config, repo *repository.Repository, cacheClient *cache.Cache, logger *slog.Logger) (*app, error) {
	recorder := metrics.NewInMemory()

	plans := repository.NewPlanRepository(repo)
	categories := repository.NewCategoryRepository(repo)
	faqs := repository.NewFAQRepository(repo)
	contacts := repository.NewContactRepository(repo)
	orders := repository.NewOrderRepository(repo)
	posts := repository.NewBlogRepository(repo)
	users := repository.NewUserRepository(repo)
	settings := repository.NewSettingsRepository(repo)
	requestLogs := repository.NewRequestLogRepository(repo)

	var sender mail.Sender
	if cfg.MailEnabled() {
		sender = mail.NewSMTPSender(mail.SMTPConfig{
			Host:     cfg.MailServer,
			Port:     cfg.MailPort,
			UseTLS:   cfg.MailUseTLS,
			Username: cfg.MailUsername,
			Password: cfg.MailPassword,
			From:     cfg.MailDefaultSender,
		}, logger)
	} else {
		sender = mail.NewLogSender(logger)
	}

	uploads := upload.New(cfg.UploadDir, cfg.ProtectedUploadDir, cfg.AllowedUploadExtensions, cfg.MaxUploadSize, logger)
	if err := uploads.Init(); err != nil {
		return nil, err
	}

	settingsService := service.NewSettingsService(settings, logger)
	catalogService := service.NewCatalogService(plans, categories, faqs, cacheClient, settingsService, service.CatalogConfig{
		PlansPerPage: cfg.PlansPerPage,
		PlanCacheTTL: cfg.PlanCacheTTL,
		ProtectedDir: cfg.ProtectedUploadDir,
	}, logger, recorder)
	planService := service.NewPlanService(plans, cacheClient, logger)
	categoryService := service.NewCategoryService(categories, logger)
	faqService := service.NewFAQService(faqs, plans, logger)
	contactService := service.NewContactService(contacts, plans, sender, service.ContactConfig{
		AdminEmail:   cfg.AdminEmail,
		SiteName:     cfg.SiteName,
		ProtectedDir: cfg.ProtectedUploadDir,
	}, logger, recorder)
	orderService := service.NewOrderService(orders, plans, cfg.GumroadWebhookToken, cfg.OrdersPerPage, logger, recorder)
	blogService := service.NewBlogService(posts, cfg.BlogPostsPerPage, logger)
	authService := service.NewAuthService(users, cacheClient, cfg.SessionTTL, logger)
	dashboardService := service.NewDashboardService(plans, orders, contacts, requestLogs, logger)
	seoService := service.NewSEOService(cfg.SiteName, cfg.SiteURL, plans, categories, posts)

	renderer, err := web.NewRenderer(logger)
	if err != nil {
		return nil, err
	}
	base := handler.New(renderer, seoService, cfg.SessionCookieSecure, logger)

	a := &app{
		auth:    authService,
		uploads: uploads,
		flusher: service.NewViewFlusher(cacheClient, plans, cfg.ViewFlushInterval, logger),
		cache:   cacheClient,
		health: handler.NewHealthHandler(map[string]handler.HealthChecker{
			"postgres": repo,
			"redis":    cacheClient,
			"uploads":  uploads,
		}),
		public:   handler.NewPublicHandler(base, catalogService),
		contact:  handler.NewContactHandler(base, contactService, uploads),
		blog:     handler.NewBlogHandler(base, blogService),
		analyzer: handler.NewAnalyzerHandler(base),
		admin: handler.NewAdminHandler(base, handler.AdminDeps{
			Auth:       authService,
			Dashboard:  dashboardService,
			Plans:      planService,
			Categories: categoryService,
			FAQs:       faqService,
			Contacts:   contactService,
			Orders:     orderService,
			Blog:       blogService,
			Settings:   settingsService,
			Uploads:    uploads,
		}),
		webhook: handler.NewWebhookHandler(orderService, logger),
		metricsH: handler.NewMetricsHandler(recorder, map[string]metrics.PoolReporter{
			"postgres": repo,
			"redis":    cacheClient,
		}),
		base: base,
	}

	if cfg.VisitTrackingEnabled {
		a.tracker = analytics.NewTracker()
		a.reporter = analytics.NewReporter(a.tracker, analytics.ReporterConfig{
			Endpoint: cfg.VisitTrackingAPI,
			Interval: cfg.VisitTrackingInterval,
			Secret:   cfg.VisitTrackingSecret,
		}, logger, recorder)
	}

	if cfg.RequestLogEnabled {
		a.publisher = analytics.NewPublisher(cacheClient.Client(), logger, recorder)
		a.logWorker = analytics.NewWorker(cacheClient.Client(), requestLogs, analytics.WorkerConfig{
			BatchSize:    cfg.RequestLogBatchSize,
			BlockTimeout: cfg.RequestLogBlockTimeout,
		}, logger, recorder)
		a.retention = analytics.NewRetention(requestLogs, cfg.RequestLogRetention, logger)
	}

	return a, nil
}

// startWorkers runs the background loops. Each one registers its shutdown
// with the server so it drains after the listener closes.
func (a *app) startWorkers(ctx context.Context, srv *server.Server, logger *slog.Logger) *errgroup.Group {
	ctx, cancel := context.WithCancel(ctx)
	srv.OnShutdown("background_workers", func(context.Context) error {
		cancel()
		return nil
	})

	var g errgroup.Group

	g.Go(func() error { return a.flusher.Run(ctx) })
	srv.OnShutdown("view_flusher", a.flusher.Shutdown)

	if a.reporter != nil {
		g.Go(func() error { return a.reporter.Run(ctx) })
		srv.OnShutdown("visit_reporter", a.reporter.Shutdown)
	}

	if a.logWorker != nil {
		g.Go(func() error {
			err := a.logWorker.Run(ctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
		srv.OnShutdown("request_log_worker", a.logWorker.Shutdown)
	}

	if a.retention != nil {
		g.Go(func() error {
			a.retention.Run(ctx)
			return nil
		})
	}

	logger.Info("background workers started",
		"visit_reporter", a.reporter != nil,
		"request_log_worker", a.logWorker != nil,
	)
	return &g
}

// initLogger initializes the slog logger based on configuration.
func initLogger(cfg *config.Config) *slog.Logger {
	var h slog.Handler

	level := parseLogLevel(cfg.LogLevel)

	opts := &slog.HandlerOptions{
		Level: level,
	}

	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(h)
	slog.SetDefault(logger)

	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// setupRouter configures the chi router with all routes and middleware.
func setupRouter(a *app, cfg *config.Config, logger *slog.Logger) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.CleanPath)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recoverer(logger))
	r.Use(middleware.SecurityHeaders(middleware.SecurityConfig{
		IsDevelopment: cfg.IsDevelopment(),
		ImageSources:  cfg.ImageSources,
	}))
	if a.tracker != nil {
		r.Use(a.tracker.Middleware)
	}
	if a.publisher != nil {
		r.Use(middleware.RequestLogging(a.publisher))
	}
	r.Use(chimiddleware.Compress(5, "text/html", "text/css", "application/javascript", "application/json", "application/xml"))

	var limiter middleware.Limiter
	if cfg.RateLimitEnabled {
		limiter = a.cache
	}
	smallBody := middleware.MaxBodySize(cfg.MaxRequestBodySize)
	uploadBody := middleware.MaxBodySize(cfg.MaxUploadSize)

	// Health endpoints
	r.Get("/healthz", a.health.Healthz)
	r.Get("/readyz", a.health.Readyz)

	// Assets
	r.Handle("/static/*", http.StripPrefix("/static/", web.Static()))
	r.Handle(upload.PublicURLPrefix+"*", http.StripPrefix(upload.PublicURLPrefix, noDirListing(http.FileServer(http.Dir(a.uploads.PublicDir())))))

	// Public pages
	r.Get("/", a.public.Home)
	r.Get("/plans", a.public.Plans)
	r.Get("/plans/category/{slug}", a.public.Category)
	r.Get("/plan/code/{code}", a.public.PlanByCode)
	r.Get("/plan/{slug}", a.public.PlanDetail)
	r.Get("/go/{slug}/{pack}", a.public.GumroadRedirect)
	r.Get("/download/free/{id}", a.public.FreeDownload)
	r.Get("/about", a.public.StaticPage("about", "About us", "Who draws the plans and how the packs work."))
	r.Get("/privacy", a.public.StaticPage("privacy", "Privacy policy", "How we handle your data."))
	r.Get("/terms", a.public.StaticPage("terms", "Terms of use", "Terms for using the site and the plans."))
	r.Get("/sitemap.xml", a.public.Sitemap)
	r.Get("/robots.txt", a.public.Robots)

	r.Get("/blog", a.blog.Index)
	r.Get("/blog/{slug}", a.blog.Post)

	r.Get("/tools/floor-plan-analyzer", a.analyzer.Form)
	r.With(smallBody).Post("/tools/floor-plan-analyzer", a.analyzer.Analyze)

	r.Get("/contact", a.contact.Form)
	r.With(
		uploadBody,
		middleware.RateLimit(middleware.RateLimitConfig{
			Logger:  logger,
			Limiter: limiter,
			Key:     middleware.IPKeyFunc("contact"),
			Limit:   cfg.RateLimitContactPerHour,
			Window:  time.Hour,
		}),
	).Post("/contact", a.contact.Submit)

	// JSON endpoints
	r.Route("/api", func(r chi.Router) {
		cors := middleware.DefaultCORSConfig()
		cors.AllowedOrigins = cfg.GetCORSAllowedOrigins()
		cors.AllowedMethods = []string{http.MethodGet, http.MethodPost, http.MethodOptions}
		r.Use(middleware.CORS(cors))
		r.Use(smallBody)
		r.Use(middleware.RateLimit(middleware.RateLimitConfig{
			Logger:  logger,
			Limiter: limiter,
			Key:     middleware.IPKeyFunc("api"),
			Limit:   cfg.RateLimitAPIPerMinute,
			Window:  time.Minute,
		}))

		r.Get("/plans/filter", a.public.FilterPlans)
		r.Post("/floor-plan-analyzer", a.analyzer.AnalyzeJSON)
	})

	r.With(smallBody).Post("/webhooks/gumroad", a.webhook.Gumroad)

	// Admin
	r.Route("/admin", func(r chi.Router) {
		r.Get("/login", a.admin.LoginForm)
		r.With(
			smallBody,
			middleware.RateLimit(middleware.RateLimitConfig{
				Logger:  logger,
				Limiter: limiter,
				Key:     middleware.IPKeyFunc("login"),
				Limit:   cfg.RateLimitLoginPerMinute,
				Window:  time.Minute,
			}),
		).Post("/login", a.admin.Login)

		r.Group(func(r chi.Router) {
			r.Use(uploadBody)
			r.Use(middleware.RequireAdmin(a.auth, logger))
			r.Use(middleware.CSRF(logger))

			r.Get("/", a.admin.Dashboard)
			r.Post("/logout", a.admin.Logout)
			r.Get("/metrics", a.metricsH.Metrics)

			r.Route("/plans", func(r chi.Router) {
				r.Get("/", a.admin.Plans)
				r.Get("/new", a.admin.NewPlan)
				r.Post("/new", a.admin.CreatePlan)
				r.Get("/{id}/edit", a.admin.EditPlan)
				r.Post("/{id}/edit", a.admin.UpdatePlan)
				r.Post("/{id}/delete", a.admin.DeletePlan)
				r.Post("/{id}/publish", a.admin.TogglePublish)
				r.Post("/{id}/feature", a.admin.ToggleFeatured)
				r.Get("/{id}/faqs", a.admin.FAQs)
				r.Post("/{id}/faqs", a.admin.CreateFAQ)
				r.Get("/{id}/faqs/{fid}/edit", a.admin.EditFAQ)
				r.Post("/{id}/faqs/{fid}/edit", a.admin.UpdateFAQ)
				r.Post("/{id}/faqs/{fid}/delete", a.admin.DeleteFAQ)
			})

			r.Route("/categories", func(r chi.Router) {
				r.Get("/", a.admin.Categories)
				r.Get("/new", a.admin.NewCategory)
				r.Post("/new", a.admin.CreateCategory)
				r.Get("/{id}/edit", a.admin.EditCategory)
				r.Post("/{id}/edit", a.admin.UpdateCategory)
				r.Post("/{id}/delete", a.admin.DeleteCategory)
			})

			r.Route("/messages", func(r chi.Router) {
				r.Get("/", a.admin.Messages)
				r.Get("/{id}", a.admin.Message)
				r.Post("/{id}/status", a.admin.UpdateMessageStatus)
				r.Post("/{id}/important", a.admin.ToggleImportant)
				r.Get("/{id}/attachment", a.admin.Attachment)
			})

			r.Get("/orders", a.admin.Orders)

			r.Route("/blog", func(r chi.Router) {
				r.Get("/", a.admin.BlogPosts)
				r.Get("/new", a.admin.NewPost)
				r.Post("/new", a.admin.CreatePost)
				r.Get("/{id}/edit", a.admin.EditPost)
				r.Post("/{id}/edit", a.admin.UpdatePost)
				r.Post("/{id}/delete", a.admin.DeletePost)
			})

			r.Get("/settings/packs", a.admin.Packs)
			r.Post("/settings/packs", a.admin.SavePacks)
		})
	})

	// 404 and 405 handlers
	r.NotFound(a.base.NotFound)
	r.MethodNotAllowed(a.base.MethodNotAllowed)

	return r
}

// noDirListing hides directory indexes of the upload folder.
func noDirListing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "" || strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

var passwordPattern = regexp.MustCompile(`(?i)password=[^\s]+`)

func redactURL(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "[redacted]"
	}

	if parsed.User != nil {
		username := parsed.User.Username()
		if username == "" {
			parsed.User = url.User("redacted")
		} else {
			parsed.User = url.User(username)
		}
	}

	return parsed.String()
}

func sanitizeError(err error, secrets ...string) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		redacted := redactURL(secret)
		if redacted == "" {
			redacted = "[redacted]"
		}
		msg = strings.ReplaceAll(msg, secret, redacted)
	}

	return passwordPattern.ReplaceAllString(msg, "password=redacted")
}
