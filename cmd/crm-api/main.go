package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/swagger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/MuhamadAgungGumelar/crm-automation-be/internal/core/audit"
	"github.com/MuhamadAgungGumelar/crm-automation-be/internal/core/auth"
	"github.com/MuhamadAgungGumelar/crm-automation-be/internal/core/email"
	"github.com/MuhamadAgungGumelar/crm-automation-be/internal/core/jobs"
	"github.com/MuhamadAgungGumelar/crm-automation-be/internal/core/realtime"
	"github.com/MuhamadAgungGumelar/crm-automation-be/internal/core/sms"
	"github.com/MuhamadAgungGumelar/crm-automation-be/internal/core/workflow"
	"github.com/MuhamadAgungGumelar/crm-automation-be/internal/modules/crm/handlers"
	"github.com/MuhamadAgungGumelar/crm-automation-be/internal/modules/crm/repositories"
	"github.com/MuhamadAgungGumelar/crm-automation-be/internal/modules/crm/services"
	"github.com/MuhamadAgungGumelar/crm-automation-be/internal/shared/config"
	"github.com/MuhamadAgungGumelar/crm-automation-be/internal/shared/database"
	"github.com/MuhamadAgungGumelar/crm-automation-be/internal/shared/tracing"
	"github.com/MuhamadAgungGumelar/crm-automation-be/internal/shared/utils"

	_ "github.com/MuhamadAgungGumelar/crm-automation-be/cmd/crm-api/docs"
)

// @title CRM Automation API
// @version 1.0
// @description Workflow automation for the multi-tenant CRM: rule authoring, event ingest and execution history.
// @contact.name API Support
// @license.name MIT
// @host localhost:8080
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg := config.LoadConfig()
	utils.InitLogger(cfg.LogLevel, cfg.Env)
	log.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("starting crm-api")

	if cfg.JWTSecret == "" {
		log.Fatal().Msg("JWT_SECRET is required")
	}
	if cfg.RedisURL == "" {
		utils.LogWarn("REDIS_URL not set, execution outcomes will not be published", nil)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.TracingEnabled {
		shutdownTracing, err := tracing.Setup(ctx, cfg.ServiceName)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to set up tracing")
		}
		defer func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownTracing(flushCtx); err != nil {
				log.Warn().Err(err).Msg("failed to flush traces")
			}
		}()
	}

	db, err := database.NewDB(cfg.DatabaseURL, !cfg.IsProduction())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer database.Close(db)
	sqlDB, err := db.DB()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to get sql.DB")
	}

	// Repositories
	workflowRepo := repositories.NewWorkflowRepo(db)
	executionRecorder := repositories.NewExecutionRecorder(db)
	taskRepo := repositories.NewTaskRepo(db)
	entityRepo := repositories.NewEntityRepo(db)

	// Outbound providers
	emailProvider, err := email.NewProvider(cfg.EmailProvider, cfg.EmailAPIKey, cfg.EmailFrom, cfg.EmailFromName)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to configure email provider")
	}
	emailService := email.NewService(emailProvider)
	smsService := sms.NewService(sms.NewProvider(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFromNumber))
	utils.LogInfo("providers configured", map[string]interface{}{
		"email": emailService.GetProviderName(),
		"sms":   smsService.GetProviderName(),
	})

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := workflow.NewMetrics(registry)

	// Engine
	executor := workflow.NewActionExecutor(workflow.ActionDeps{
		Tasks:   taskRepo,
		Email:   emailService,
		SMS:     smsService,
		Fields:  entityRepo,
		HTTP:    &http.Client{Timeout: cfg.WorkflowActionTimeout},
		Timeout: cfg.WorkflowActionTimeout,
	})
	engineOpts := []workflow.Option{
		workflow.WithMetrics(metrics),
		workflow.WithTracer(tracing.Tracer("crm-automation/workflow")),
	}
	if cfg.RedisURL != "" {
		redisClient, err := realtime.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer redisClient.Close()
		engineOpts = append(engineOpts, workflow.WithPublisher(realtime.NewRedisPublisher(redisClient)))
		log.Info().Msg("execution outcomes published to redis")
	}
	engine := workflow.NewEngine(repositories.NewRuleStore(workflowRepo), executionRecorder, executor, engineOpts...)

	// Async dispatch
	jobService := jobs.NewService(db)
	jobService.RegisterWorker(jobs.WorkerConfig{
		Queue:        workflow.TriggerQueue,
		Concurrency:  cfg.WorkflowConcurrency,
		PollInterval: cfg.WorkflowPollInterval,
		Timeout:      5 * time.Minute,
	}, workflow.NewTriggerJobHandler(engine))
	if err := jobService.StartWorkers(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to start workers")
	}
	dispatcher := workflow.NewDispatcher(jobService)

	// Services
	auditService := audit.NewService(db)
	workflowService := services.NewWorkflowService(workflowRepo, executionRecorder, engine, auditService)
	eventService := services.NewEventService(dispatcher)

	// Retention
	scheduler := workflow.NewScheduler()
	retention := []struct {
		name   string
		maxAge time.Duration
		purge  workflow.Purger
	}{
		{"execution-retention", cfg.ExecutionRetention, executionRecorder.DeleteOlderThan},
		{"job-retention", cfg.JobRetention, jobService.Cleanup},
		{"audit-retention", cfg.AuditRetention, auditService.DeleteOldLogs},
	}
	for _, r := range retention {
		if err := scheduler.AddRetention(r.name, cfg.RetentionSchedule, r.maxAge, r.purge); err != nil {
			log.Fatal().Err(err).Str("task", r.name).Msg("failed to schedule retention")
		}
	}
	scheduler.Start()

	// Handlers
	jwtService := auth.NewJWTService(cfg.JWTSecret, cfg.JWTIssuer)
	workflowHandler := handlers.NewWorkflowHandler(workflowService)
	eventHandler := handlers.NewEventHandler(eventService)
	healthHandler := handlers.NewHealthHandler(sqlDB, jobService)

	app := fiber.New(fiber.Config{
		AppName: "CRM Automation API",
	})

	app.Use(recover.New())
	app.Use(cors.New())

	app.Get("/swagger/*", swagger.HandlerDefault)
	app.Get("/health", healthHandler.GetHealth)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	api := app.Group("/api/v1", auth.AuthMiddleware(jwtService))
	workflowHandler.RegisterRoutes(api)
	eventHandler.RegisterRoutes(api)

	go func() {
		<-ctx.Done()
		log.Info().Msg("shutting down crm-api")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Error().Err(err).Msg("failed to shut down http server")
		}
	}()

	log.Info().Msgf("crm-api running at :%s", cfg.Port)
	log.Info().Msgf("swagger UI: http://localhost:%s/swagger/", cfg.Port)
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Error().Err(err).Msg("http server stopped")
	}

	<-scheduler.Stop().Done()
	jobService.StopWorkers()
	log.Info().Msg("crm-api stopped")
}
