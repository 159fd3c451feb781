package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"

	"teacherhr/internal/domain/appraisal"
	"teacherhr/internal/domain/audit"
	"teacherhr/internal/domain/auth"
	"teacherhr/internal/domain/cpe"
	"teacherhr/internal/domain/kpi"
	"teacherhr/internal/domain/notifications"
	"teacherhr/internal/domain/reports"
	"teacherhr/internal/domain/rubric"
	"teacherhr/internal/domain/teachers"
	"teacherhr/internal/platform/config"
	"teacherhr/internal/platform/db"
	"teacherhr/internal/platform/email"
	"teacherhr/internal/platform/events"
	"teacherhr/internal/platform/jobs"
	"teacherhr/internal/platform/logger"
	"teacherhr/internal/platform/metrics"
	"teacherhr/internal/transport/http/api"
	appraisalshandler "teacherhr/internal/transport/http/handlers/appraisals"
	audithandler "teacherhr/internal/transport/http/handlers/audit"
	authhandler "teacherhr/internal/transport/http/handlers/auth"
	cpehandler "teacherhr/internal/transport/http/handlers/cpe"
	kpihandler "teacherhr/internal/transport/http/handlers/kpi"
	notificationshandler "teacherhr/internal/transport/http/handlers/notifications"
	reportshandler "teacherhr/internal/transport/http/handlers/reports"
	rubricshandler "teacherhr/internal/transport/http/handlers/rubrics"
	teachershandler "teacherhr/internal/transport/http/handlers/teachers"
	"teacherhr/internal/transport/http/middleware"
	"teacherhr/migrations"
)

const (
	loginAttempts = 10
	loginWindow   = time.Minute
)

type App struct {
	Config  config.Config
	DB      *pgxpool.Pool
	Router  http.Handler
	Jobs    *jobs.Service
	Metrics *metrics.Collector
	Log     *logger.Logger
	closers []func() error
}

// New connects, migrates, seeds and wires every service. Background jobs are
// not started; call App.Jobs.Start.
func New(ctx context.Context, cfg config.Config, log *logger.Logger) (*App, error) {
	if log == nil {
		log = logger.Nop()
	}
	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	app := &App{Config: cfg, DB: pool, Log: log, Metrics: metrics.New()}
	app.closers = append(app.closers, func() error { pool.Close(); return nil })

	if cfg.RunMigrations {
		if err := db.Migrate(ctx, pool, migrations.FS); err != nil {
			app.Close()
			return nil, fmt.Errorf("migrations: %w", err)
		}
	}
	if cfg.RunSeed {
		if err := db.Seed(ctx, pool, cfg); err != nil {
			app.Close()
			return nil, fmt.Errorf("seed: %w", err)
		}
	}

	publisher, err := app.publisher(ctx)
	if err != nil {
		app.Close()
		return nil, err
	}

	perms := auth.StaticPermissions{}
	auditSvc := audit.New(pool)
	teacherSvc := teachers.NewService(teachers.NewStore(pool))
	rubricSvc := rubric.NewService(rubric.NewStore(pool), log.With("service", "rubric"))
	kpiSvc := kpi.NewService(kpi.NewStore(pool), log.With("service", "kpi"))
	cpeSvc := cpe.NewService(cpe.NewStore(pool), log.With("service", "cpe"))
	cpeSvc.Requirement = rubricSvc.CPERequirement(cfg.RubricKey)
	notificationSvc := notifications.New(notifications.NewStore(pool), email.New(cfg, log), cfg.EmailFrom, log.With("service", "notifications"))
	app.closers = append(app.closers, func() error { notificationSvc.Wait(); return nil })

	// Seeds the default rubric on first boot so the first request does not race it.
	if _, err := rubricSvc.ActiveVersion(ctx, cfg.RubricKey); err != nil {
		app.Close()
		return nil, fmt.Errorf("load rubric %s: %w", cfg.RubricKey, err)
	}

	appraisalSvc, err := appraisal.NewService(appraisal.Deps{
		Store:   appraisal.NewStore(pool),
		Rubrics: rubricSvc,
		CPE:     cpeSvc,
		KPIs:    kpiSvc,
		Events: events.Sinks{
			events.NewAppraisalSink(publisher, log),
			notifications.NewTransitionNotifier(notificationSvc, teacherSvc, log),
		},
		Audit:     auditSvc,
		Metrics:   app.Metrics,
		Log:       log.With("service", "appraisal"),
		RubricKey: cfg.RubricKey,
	})
	if err != nil {
		app.Close()
		return nil, err
	}

	app.Jobs = jobs.New(jobs.NewRunStore(pool), appraisalSvc, cpeSvc, jobs.Options{
		ComplianceCron: cfg.ComplianceCron,
		Concurrency:    cfg.RecalcConcurrency,
	}, log)
	reportSvc := reports.NewService(reports.NewStore(pool), appraisalSvc, teacherSvc, cpeSvc)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer(log))
	router.Use(middleware.Logger(log, app.Metrics))
	router.Use(middleware.SecureHeaders(cfg.IsProduction()))
	router.Use(middleware.BodyLimit(cfg.MaxBodyBytes))
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"Content-Length", "Content-Disposition", "X-Request-ID", "X-Total-Count"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	router.Use(middleware.Auth(cfg.JWTSecret))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	router.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := pool.Ping(ctx); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	router.Route("/api/v1", func(r chi.Router) {
		authHandler := authhandler.NewHandler(auth.NewService(auth.NewStore(pool), cfg.JWTSecret, cfg.JWTTTL), log)
		r.With(middleware.LoginRateLimit(loginAttempts, loginWindow)).Post("/auth/login", authHandler.HandleLogin)
		r.Get("/auth/me", authHandler.HandleMe)

		appraisalshandler.NewHandler(appraisalSvc, perms, log).RegisterRoutes(r)
		kpihandler.NewHandler(kpiSvc, perms, auditSvc, notificationSvc, teacherSvc, log).RegisterRoutes(r)
		cpehandler.NewHandler(cpeSvc, perms, auditSvc, notificationSvc, teacherSvc, log).RegisterRoutes(r)
		rubricshandler.NewHandler(rubricSvc, cfg.RubricKey, perms, auditSvc, log).RegisterRoutes(r)
		teachershandler.NewHandler(teacherSvc, perms, auditSvc, log).RegisterRoutes(r)
		notificationshandler.NewHandler(notificationSvc, log).RegisterRoutes(r)
		audithandler.NewHandler(auditSvc, perms, log).RegisterRoutes(r)
		reportshandler.NewHandler(reportSvc, app.Jobs, perms, auditSvc, log).RegisterRoutes(r)

		if cfg.MetricsEnabled {
			r.Get("/metrics", app.handleMetrics)
		}
	})

	router.Mount("/", spaHandler{staticPath: cfg.FrontendDir, indexPath: "index.html"})
	app.Router = router
	return app, nil
}

// publisher always logs events and also pushes them to Redis when configured.
func (a *App) publisher(ctx context.Context) (events.Publisher, error) {
	fanout := events.Fanout{events.NewLogPublisher(a.Log)}
	if a.Config.RedisURL == "" {
		return fanout, nil
	}
	redisPub, err := events.NewRedisPublisher(ctx, a.Config.RedisURL, a.Config.EventsChannel)
	if err != nil {
		return nil, fmt.Errorf("redis events: %w", err)
	}
	a.closers = append(a.closers, redisPub.Close)
	return append(fanout, redisPub), nil
}

func (a *App) handleMetrics(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	if user.Role != auth.RoleHRAdmin {
		api.Fail(w, http.StatusForbidden, "forbidden", "hr role required", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, a.Metrics.Snapshot(), middleware.GetRequestID(r.Context()))
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.Log.Warn("close failed", "err", err)
		}
	}
	a.closers = nil
}

func Run() {
	cfg := config.Load()
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid configuration", "err", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := New(ctx, cfg, log)
	if err != nil {
		log.Fatal("startup failed", "err", err)
	}
	defer app.Close()

	if err := app.Jobs.Start(ctx); err != nil {
		log.Fatal("jobs start failed", "err", err)
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           app.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn("graceful shutdown failed", "err", err)
		}
	}()

	log.Info("teacher appraisal server listening", "addr", cfg.Addr, "env", cfg.Environment)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("server failed", "err", err)
	}
}

type spaHandler struct {
	staticPath string
	indexPath  string
}

func (h spaHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}

	path := filepath.Join(h.staticPath, r.URL.Path)
	_, err := os.Stat(path)
	if err == nil {
		http.FileServer(http.Dir(h.staticPath)).ServeHTTP(w, r)
		return
	}

	if os.IsNotExist(err) {
		http.ServeFile(w, r, filepath.Join(h.staticPath, h.indexPath))
		return
	}

	http.NotFound(w, r)
}
