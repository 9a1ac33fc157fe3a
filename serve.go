package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/fasthttp/router"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/valyala/fasthttp"

	"leakdiag/internal/admin"
	"leakdiag/internal/archive"
	"leakdiag/internal/config"
	"leakdiag/internal/crm"
	"leakdiag/internal/db"
	"leakdiag/internal/http/handlers"
	appmw "leakdiag/internal/http/middleware"
	"leakdiag/internal/logger"
	"leakdiag/internal/notify"
	"leakdiag/internal/submission"
	ui "leakdiag/web"
)

const shutdownTimeout = 20 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP service (intake form, diagnostic API, admin)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(parent context.Context) error {
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log := logger.Init(logger.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, File: cfg.LogFile})

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sqlDB, err := db.Connect(cfg)
	if err != nil {
		return fmt.Errorf("failed to connect database: %w", err)
	}
	store := db.NewStore(sqlDB)
	db.StartSessionCleanupWorker(ctx, store, cfg.SessionCleanup, logger.Component(log, "retention"))

	gateway, err := admin.NewGateway(admin.Options{
		Password:     cfg.AdminPassword,
		PasswordHash: cfg.AdminPasswordHash,
		Secret:       cfg.JWTSecret,
		TTL:          cfg.SessionTTL,
	}, store)
	if err != nil {
		return fmt.Errorf("admin gateway: %w", err)
	}
	if !gateway.Configured() {
		log.Warn("APP_ADMIN_PASSWORD not set; admin login is disabled")
	}

	var mailer notify.Mailer
	if cfg.MailEnabled() {
		mailer = notify.NewSMTPMailer(cfg.Mail)
	} else {
		log.Warn("APP_SMTP_HOST not set; reports will not be emailed")
	}
	dispatcher := notify.NewDispatcher(mailer, notify.OptionsFromConfig(cfg), logger.Component(log, "email"))

	crmClient := crm.New(crm.OptionsFromConfig(cfg.CRM), logger.Component(log, "crm"))
	if !crmClient.Configured() {
		log.Warn("CRM credentials not set; leads will not be synced")
	}

	reports, err := archive.New(ctx, cfg.Archive)
	if err != nil {
		return fmt.Errorf("report archive: %w", err)
	}

	metrics := handlers.InitPrometheusMetrics()
	svc := submission.NewService(store, dispatcher, crmClient, reports, metrics, submission.Options{
		CalendarURL: cfg.CalendarURL,
		Timeout:     cfg.IntegrationTimeout,
	}, logger.Component(log, "api"))

	handler := newHandler(app{
		submitter:   svc,
		gateway:     gateway,
		submissions: store,
		reports:     reports,
		metrics:     metrics,
		gatherer:    prometheus.DefaultGatherer,
		calendarURL: cfg.CalendarURL,
		log:         log,
	})

	server := &fasthttp.Server{
		Handler:            handler,
		Name:               "leakdiag",
		ReadTimeout:        30 * time.Second,
		WriteTimeout:       cfg.IntegrationTimeout + 30*time.Second,
		MaxRequestBodySize: 1 << 20,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", cfg.ListenAddr).Info("leakdiag listening")
		errCh <- server.ListenAndServe(cfg.ListenAddr)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.ShutdownWithContext(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}

// app carries what the router needs.
type app struct {
	submitter   handlers.Submitter
	gateway     handlers.Authenticator
	submissions handlers.SubmissionReader
	reports     archive.Storage
	metrics     *handlers.Metrics
	gatherer    prometheus.Gatherer
	calendarURL string
	log         logrus.FieldLogger
}

func newHandler(a app) fasthttp.RequestHandler {
	r := router.New()
	r.SaveMatchedRoutePath = true

	apiLog := logger.Component(a.log, "api")
	adminLog := logger.Component(a.log, "admin")
	adminAuth := appmw.AdminAuth(a.gateway, adminLog)

	r.GET("/healthz", func(ctx *fasthttp.RequestCtx) {
		ctx.SetStatusCode(fasthttp.StatusOK)
		ctx.SetBodyString("ok")
	})
	r.ServeFS("/static/{filepath:*}", ui.StaticFS())

	r.GET("/", handlers.IndexPage(a.calendarURL, apiLog))
	r.GET("/admin", handlers.AdminPage(adminLog))

	r.GET("/api/diagnostic", handlers.DiagnosticInfo())
	r.POST("/api/diagnostic", handlers.DiagnosticSubmit(a.submitter, apiLog))

	r.POST("/api/admin/login", handlers.AdminLogin(a.gateway, adminLog))
	r.POST("/api/admin/verify", handlers.AdminVerify(a.gateway, adminLog))
	r.POST("/api/admin/logout", adminAuth(handlers.AdminLogout(a.gateway, adminLog)))
	r.GET("/api/admin/submissions", adminAuth(handlers.AdminSubmissions(a.submissions, adminLog)))
	r.GET("/api/admin/submissions/{id}", adminAuth(handlers.AdminSubmission(a.submissions, adminLog)))
	r.GET("/api/admin/submissions/{id}/report", adminAuth(handlers.AdminReport(a.submissions, a.reports, adminLog)))
	r.GET("/api/admin/stats", adminAuth(handlers.AdminStats(a.submissions, adminLog)))

	r.GET("/metrics", adminAuth(handlers.MetricsHandler(a.gatherer)))

	// Global middleware chain: request logger, then request metrics, then router.
	var obs appmw.RequestObserver
	if a.metrics != nil {
		obs = a.metrics
	}
	return handlers.RequestLogger(logger.Component(a.log, "http"))(appmw.RequestMetrics(obs)(r.Handler))
}
