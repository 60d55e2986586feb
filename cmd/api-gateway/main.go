package main

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/schoolcore/sms-api/api/swagger"
	"github.com/schoolcore/sms-api/internal/handler"
	"github.com/schoolcore/sms-api/internal/middleware"
	"github.com/schoolcore/sms-api/internal/models"
	"github.com/schoolcore/sms-api/internal/repository"
	"github.com/schoolcore/sms-api/internal/service"
	"github.com/schoolcore/sms-api/pkg/cache"
	"github.com/schoolcore/sms-api/pkg/config"
	"github.com/schoolcore/sms-api/pkg/database"
	"github.com/schoolcore/sms-api/pkg/logger"
	"github.com/schoolcore/sms-api/pkg/middleware/cors"
	"github.com/schoolcore/sms-api/pkg/middleware/requestid"
)

// @title SchoolCore SMS API
// @version 1.0.0
// @description Multi-tenant school management core
// @BasePath /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("load config: %v", err))
	}

	log, err := logger.New(cfg)
	if err != nil {
		panic(fmt.Sprintf("init logger: %v", err))
	}
	defer func() { _ = log.Sync() }()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		log.Fatal("connect postgres", zap.Error(err))
	}
	defer func() { _ = db.Close() }()

	// Redis is optional; the cache layer degrades to pass-through
	// when no client is available.
	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		log.Warn("redis unavailable, lookups will skip caching", zap.Error(err))
		redisClient = nil
	}

	validate := validator.New()

	// Repositories
	auditRepo := repository.NewAuditRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, log)
	cbtRepo := repository.NewCbtRepository(db)
	classRepo := repository.NewClassRepository(db)
	componentRepo := repository.NewComponentRepository(db)
	gradingRepo := repository.NewGradingRepository(db)
	pinRepo := repository.NewPinRepository(db)
	promotionRepo := repository.NewPromotionRepository(db)
	resultRepo := repository.NewResultRepository(db)
	sequenceRepo := repository.NewSequenceRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	subjectRepo := repository.NewSubjectRepository(db)
	termRepo := repository.NewTermRepository(db)
	userRepo := repository.NewUserRepository(db)

	// Services
	metricsService := service.NewMetricsService()
	authService := service.NewAuthService(userRepo, cfg.JWT, validate, log)
	calendarService := service.NewCalendarService(sessionRepo, termRepo, validate, log)
	gradingService := service.NewGradingService(gradingRepo, cacheRepo, validate, log)
	componentService := service.NewComponentService(componentRepo, subjectRepo, cacheRepo, cfg.Cache.MaxScoreTTL, validate, log)
	resultService := service.NewResultService(
		resultRepo,
		studentRepo,
		subjectRepo,
		termRepo,
		componentRepo,
		gradingRepo,
		cacheRepo,
		auditRepo,
		metricsService,
		cfg.Results.MaxBatchSize,
		cfg.Cache.GradingScaleTTL,
		validate,
		log,
	)
	cbtService := service.NewCbtService(
		cbtRepo,
		componentRepo,
		termRepo,
		sessionRepo,
		classRepo,
		subjectRepo,
		studentRepo,
		gradingRepo,
		cacheRepo,
		auditRepo,
		metricsService,
		cfg.Cache.GradingScaleTTL,
		validate,
		log,
	)
	promotionService := service.NewPromotionService(
		promotionRepo,
		studentRepo,
		classRepo,
		sessionRepo,
		termRepo,
		auditRepo,
		metricsService,
		validate,
		log,
	)
	pinService := service.NewPinService(pinRepo, sequenceRepo, studentRepo, auditRepo, cfg.Pins, validate, log)

	// Handlers
	authHandler := handler.NewAuthHandler(authService)
	calendarHandler := handler.NewCalendarHandler(calendarService)
	gradingHandler := handler.NewGradingHandler(gradingService)
	componentHandler := handler.NewComponentHandler(componentService)
	resultHandler := handler.NewResultHandler(resultService)
	cbtHandler := handler.NewCbtHandler(cbtService)
	promotionHandler := handler.NewPromotionHandler(promotionService)
	pinHandler := handler.NewPinHandler(pinService)
	metricsHandler := handler.NewMetricsHandler(metricsService)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestid.Middleware())
	r.Use(logger.GinMiddleware(log))
	r.Use(cors.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsService))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Health)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.POST("/auth/login", authHandler.Login)

	authed := api.Group("")
	authed.Use(middleware.JWT(authService))
	authed.GET("/auth/me", authHandler.Me)

	staff := authed.Group("")
	staff.Use(middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin, models.RoleTeacher))

	admin := authed.Group("")
	admin.Use(middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin))

	// Academic calendar
	staff.GET("/sessions", calendarHandler.ListSessions)
	admin.POST("/sessions", calendarHandler.CreateSession)
	admin.PUT("/sessions/:id", calendarHandler.UpdateSession)
	admin.DELETE("/sessions/:id", calendarHandler.DeleteSession)
	staff.GET("/sessions/:id/terms", calendarHandler.ListTerms)
	admin.POST("/sessions/:id/terms", calendarHandler.CreateTerm)
	admin.PUT("/terms/:id", calendarHandler.UpdateTerm)
	admin.POST("/terms/:id/archive", calendarHandler.ArchiveTerm)
	admin.POST("/terms/:id/reopen", calendarHandler.ReopenTerm)

	// Grading scales
	staff.GET("/grading/scales", gradingHandler.ListScales)
	staff.GET("/grading/scales/:id", gradingHandler.GetScale)
	admin.POST("/grading/scales", gradingHandler.CreateScale)
	admin.PUT("/grading/scales/:id/ranges",
		middleware.Audit(auditRepo, "GRADE_RANGES_UPDATE", "grading_scale"),
		gradingHandler.UpdateRanges)

	// Assessment components
	staff.GET("/components", componentHandler.List)
	staff.GET("/components/:id", componentHandler.Get)
	admin.POST("/components", componentHandler.Create)
	admin.PUT("/components/:id", componentHandler.Update)
	admin.DELETE("/components/:id", componentHandler.Delete)
	admin.POST("/components/:id/structures", componentHandler.AddStructure)
	staff.GET("/components/:id/max-score", componentHandler.ResolveMaxScore)

	// Results
	staff.POST("/results/batch",
		middleware.Audit(auditRepo, "RESULT_BATCH_UPSERT", "result"),
		resultHandler.BatchUpsert)
	staff.GET("/results", resultHandler.List)
	staff.GET("/results/export/:student_id", resultHandler.Export)

	// CBT score imports
	admin.POST("/cbt/links", cbtHandler.CreateLink)
	staff.GET("/cbt/links/:id", cbtHandler.GetLink)
	admin.DELETE("/cbt/links/:id", cbtHandler.DeleteLink)
	staff.POST("/cbt/links/:id/import",
		middleware.Audit(auditRepo, "CBT_IMPORT", "cbt_score_import"),
		cbtHandler.ImportScores)
	staff.GET("/cbt/links/:id/imports", cbtHandler.ListImports)
	admin.POST("/cbt/links/:id/approve", cbtHandler.Approve)
	admin.POST("/cbt/links/:id/reject", cbtHandler.Reject)
	admin.POST("/cbt/links/:id/sync",
		middleware.Audit(auditRepo, "CBT_SYNC", "cbt_score_import"),
		cbtHandler.Sync)

	// Promotions
	admin.POST("/promotions",
		middleware.Audit(auditRepo, "PROMOTION", "student_promotion"),
		promotionHandler.Promote)
	staff.GET("/promotions/students/:student_id", promotionHandler.History)

	// Result-check pins
	admin.POST("/pins",
		middleware.Audit(auditRepo, "PIN_ISSUE", "result_pin"),
		pinHandler.Issue)
	authed.POST("/pins/verify", pinHandler.Verify)

	addr := fmt.Sprintf(":%d", cfg.Port)
	log.Info("starting api gateway", zap.String("addr", addr), zap.String("env", cfg.Env))
	if err := r.Run(addr); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}
