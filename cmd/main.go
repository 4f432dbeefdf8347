package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/lshigami/padhoplus/config"
	"github.com/lshigami/padhoplus/database"
	_ "github.com/lshigami/padhoplus/docs" // Swagger docs
	"github.com/lshigami/padhoplus/internal/cache"
	"github.com/lshigami/padhoplus/internal/controller"
	adminctrl "github.com/lshigami/padhoplus/internal/controller/admin"
	userctrl "github.com/lshigami/padhoplus/internal/controller/user"
	"github.com/lshigami/padhoplus/internal/gateway"
	"github.com/lshigami/padhoplus/internal/job"
	"github.com/lshigami/padhoplus/internal/logger"
	"github.com/lshigami/padhoplus/internal/middleware"
	"github.com/lshigami/padhoplus/internal/model"
	"github.com/lshigami/padhoplus/internal/policy"
	"github.com/lshigami/padhoplus/internal/repository"
	"github.com/lshigami/padhoplus/internal/service"
	"github.com/lshigami/padhoplus/internal/validation"
	"github.com/rs/zerolog/log"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

// @title PadhoPlus API
// @version 1.0
// @description Exam preparation backend: batches, mock tests with ranking, practice, doubts, payments and progress tracking.
// @contact.name API Support
// @contact.email support@padhoplus.in
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	logger.Init()

	app := fx.New(
		fx.Provide(
			config.NewConfig,
			database.NewDatabase,
			NewGinEngine,
			cache.NewLeaderboard,
			middleware.NewJWTAuth,
			job.NewPaymentReconciler,
		),

		// Repositories Layer
		fx.Provide(
			repository.NewUserRepository,
			repository.NewSubjectRepository,
			repository.NewBatchRepository,
			repository.NewEnrollmentRepository,
			repository.NewQuestionRepository,
			repository.NewTestRepository,
			repository.NewTestAttemptRepository,
			repository.NewPracticeRepository,
			repository.NewDoubtRepository,
			repository.NewPaymentRepository,
			repository.NewAnalyticsRepository,
		),

		// Services Layer
		fx.Provide(
			service.NewScoreConverterService,
			service.NewDoubtAssistant,
			service.NewCatalogService,
			service.NewUserTestService,
			service.NewTestSubmissionService,
			service.NewPracticeService,
			service.NewDoubtService,
			service.NewAnalyticsService,
			NewPaymentService,
			func(a service.AnalyticsService) service.ProgressTracker { return a },
			func(a *middleware.JWTAuth) service.TokenIssuer { return a },
			func(p service.PaymentService) job.Reconciler { return p },
			service.NewAuthService,
		),

		// API Controllers Layer
		fx.Provide(
			userctrl.NewAuthController,
			userctrl.NewCatalogController,
			userctrl.NewUserTestController,
			userctrl.NewPracticeController,
			userctrl.NewDoubtController,
			userctrl.NewAnalyticsController,
			userctrl.NewPaymentController,
			adminctrl.NewAdminCatalogController,
			adminctrl.NewAdminTestController,
			adminctrl.NewAdminController,
		),

		fx.Invoke(
			ConfigureLogger,
			validation.Register,
			AutoMigrateDB,
			RegisterRoutes,
			StartServer,
			StartBackgroundJobs,
		),
	)

	if err := app.Start(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("Failed to start application")
	}

	<-app.Done()
	log.Info().Msg("Application shutting down gracefully...")

	stopCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := app.Stop(stopCtx); err != nil {
		log.Error().Err(err).Msg("Graceful shutdown failed")
	}
}

func ConfigureLogger(cfg *config.Config) {
	logger.Apply(cfg)
}

// NewPaymentService registers PhonePe when credentials are present. Without
// them payments answer 503 and the rest of the API still serves.
func NewPaymentService(cfg *config.Config, paymentRepo repository.PaymentRepository, batchRepo repository.BatchRepository) service.PaymentService {
	var gateways []service.PaymentGateway
	phonepe, err := gateway.NewPhonePeClient(cfg)
	switch {
	case errors.Is(err, gateway.ErrNotConfigured):
		log.Warn().Msg("PhonePe credentials missing, payments are disabled")
	case err != nil:
		log.Error().Err(err).Msg("Failed to configure PhonePe")
	default:
		gateways = append(gateways, phonepe)
	}
	return service.NewPaymentService(paymentRepo, batchRepo, gateways...)
}

func NewGinEngine(cfg *config.Config) *gin.Engine {
	switch cfg.Server.Mode {
	case gin.ReleaseMode, gin.TestMode:
		gin.SetMode(cfg.Server.Mode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()

	r.Use(gin.LoggerWithFormatter(func(param gin.LogFormatterParams) string {
		log.Info().
			Str("client_ip", param.ClientIP).
			Str("method", param.Method).
			Str("path", param.Path).
			Int("status_code", param.StatusCode).
			Dur("latency", param.Latency).
			Str("user_agent", param.Request.UserAgent()).
			Str("error_message", param.ErrorMessage).
			Msg("gin_request")
		return ""
	}))
	r.Use(gin.Recovery())

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-VERIFY"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// URL: http://localhost:PORT/swagger/index.html
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return r
}

type Controllers struct {
	fx.In

	Auth         *userctrl.AuthController
	Catalog      *userctrl.CatalogController
	Tests        *userctrl.UserTestController
	Practice     *userctrl.PracticeController
	Doubts       *userctrl.DoubtController
	Analytics    *userctrl.AnalyticsController
	Payments     *userctrl.PaymentController
	AdminCatalog *adminctrl.AdminCatalogController
	AdminTests   *adminctrl.AdminTestController
	Admin        *adminctrl.AdminController
}

func RegisterRoutes(router *gin.Engine, auth *middleware.JWTAuth, c Controllers) {
	router.GET("/health", controller.Health)

	api := router.Group("/api/v1")

	// Public
	api.POST("/auth/register", c.Auth.Register)
	api.POST("/auth/login", c.Auth.Login)
	api.GET("/subjects", c.Catalog.ListSubjects)
	api.GET("/batches", c.Catalog.ListBatches)
	api.GET("/achievements", c.Analytics.Achievements)
	api.GET("/payments/gateways", c.Payments.ListGateways)
	api.POST("/payments/callback", c.Payments.PaymentCallback)
	api.POST("/payments/webhook", c.Payments.PaymentWebhook)

	authed := api.Group("", auth.RequireAuth())
	{
		authed.GET("/auth/me", c.Auth.Me)
		authed.GET("/enrollments", c.Catalog.MyEnrollments)

		authed.GET("/tests", c.Tests.GetAllTests)
		authed.GET("/tests/:test_id", c.Tests.GetTestDetails)
		authed.GET("/tests/:test_id/leaderboard", c.Tests.GetLeaderboard)
		authed.GET("/attempts", c.Tests.GetUserTestAttempts)
		authed.GET("/attempts/:attempt_id", c.Tests.GetSpecificTestAttemptDetails)
		authed.GET("/attempts/:attempt_id/analysis", c.Tests.GetAttemptAnalysis)

		authed.POST("/doubts", c.Doubts.CreateDoubt)
		authed.GET("/doubts", c.Doubts.ListDoubts)
		authed.GET("/doubts/:doubt_id", c.Doubts.GetDoubt)
		authed.POST("/doubts/:doubt_id/responses", c.Doubts.RespondToDoubt)
		authed.POST("/doubts/:doubt_id/resolve", c.Doubts.ResolveDoubt)
		authed.POST("/doubts/:doubt_id/upvote", c.Doubts.UpvoteDoubt)
		authed.POST("/doubt-responses/:response_id/accept", c.Doubts.AcceptResponse)
		authed.POST("/doubt-responses/:response_id/upvote", c.Doubts.UpvoteResponse)

		authed.GET("/analytics/dashboard", c.Analytics.Dashboard)
		authed.GET("/analytics/performance", c.Analytics.Performance)
		authed.GET("/analytics/streak", c.Analytics.Streak)
		authed.GET("/analytics/activity", c.Analytics.Activity)
		authed.GET("/achievements/mine", c.Analytics.MyAchievements)

		authed.GET("/payments/status/:transaction_id", c.Payments.CheckPaymentStatus)
		authed.GET("/payments/history", c.Payments.PaymentHistory)
	}

	student := authed.Group("", middleware.RequireCapability(policy.TakeTests))
	{
		student.POST("/batches/:batch_id/enroll", c.Catalog.EnrollFree)
		student.POST("/tests/:test_id/start", c.Tests.StartTest)
		student.POST("/attempts/:attempt_id/responses", c.Tests.SaveResponse)
		student.POST("/attempts/:attempt_id/submit", c.Tests.SubmitTestAttempt)
		student.POST("/attempts/:attempt_id/abandon", c.Tests.AbandonAttempt)

		student.POST("/practice", c.Practice.StartPractice)
		student.POST("/practice/:session_id/complete", c.Practice.CompletePractice)
		student.GET("/practice", c.Practice.ListPractice)
		student.GET("/practice/:session_id", c.Practice.GetPractice)

		student.POST("/payments/initiate", c.Payments.InitiatePayment)
	}

	moderator := authed.Group("/doubts", middleware.RequireCapability(policy.ModerateDoubts))
	{
		moderator.POST("/:doubt_id/assign", c.Doubts.AssignDoubt)
		moderator.POST("/:doubt_id/ai-draft", c.Doubts.DraftAIAnswer)
	}

	admin := authed.Group("/admin")
	{
		catalog := admin.Group("", middleware.RequireCapability(policy.ManageCatalog))
		catalog.POST("/subjects", c.AdminCatalog.CreateSubject)
		catalog.POST("/subjects/:subject_id/topics", c.AdminCatalog.CreateTopic)
		catalog.POST("/batches", c.AdminCatalog.CreateBatch)
		catalog.POST("/questions", c.AdminTests.CreateQuestion)
		catalog.GET("/questions", c.AdminTests.ListQuestions)
		catalog.POST("/tests", c.AdminTests.CreateTest)
		catalog.POST("/tests/:test_id/questions", c.AdminTests.AttachQuestions)
		catalog.PATCH("/tests/:test_id/status", c.AdminTests.UpdateTestStatus)

		admin.GET("/dashboard/teacher", middleware.RequireCapability(policy.ViewTeacherDashboard), c.Admin.TeacherDashboard)

		platform := admin.Group("", middleware.RequireCapability(policy.ViewAdminDashboard))
		platform.GET("/dashboard", c.Admin.AdminDashboard)
		platform.POST("/achievements/award", c.Admin.AwardAchievement)
		platform.POST("/payments/:transaction_id/refund", c.Admin.RefundPayment)
	}
}

// StartServer manages the HTTP server lifecycle.
func StartServer(lc fx.Lifecycle, router *gin.Engine, cfg *config.Config, leaderboard cache.Leaderboard) {
	server := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info().Msgf("PadhoPlus API server starting on port %s", cfg.Server.Port)
			log.Info().Msgf("Swagger UI available at http://localhost:%s/swagger/index.html", cfg.Server.Port)
			go func() {
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal().Err(err).Msg("Server ListenAndServe failed")
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info().Msg("Server shutting down...")
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				return err
			}
			return leaderboard.Close()
		},
	})
}

func StartBackgroundJobs(lc fx.Lifecycle, reconciler *job.PaymentReconciler) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return reconciler.Start()
		},
		OnStop: func(ctx context.Context) error {
			return reconciler.Stop(ctx)
		},
	})
}

func AutoMigrateDB(db *gorm.DB) error {
	log.Info().Msg("Running database migrations...")
	err := db.AutoMigrate(
		&model.User{},
		&model.Subject{},
		&model.Topic{},
		&model.Batch{},
		&model.Enrollment{},
		&model.Question{},
		&model.Test{},
		&model.TestAttempt{},
		&model.TestResponse{},
		&model.PracticeSession{},
		&model.Doubt{},
		&model.DoubtResponse{},
		&model.DoubtUpvote{},
		&model.Payment{},
		&model.PaymentGatewayEvent{},
		&model.Achievement{},
		&model.UserAchievement{},
		&model.Streak{},
		&model.DailyActivity{},
	)
	if err != nil {
		log.Error().Err(err).Msg("Database migration failed")
		return err
	}
	log.Info().Msg("Database migration completed successfully.")
	return nil
}
