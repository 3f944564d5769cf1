package router

import (
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/studyplanner/api/config"
	"github.com/studyplanner/api/database"
	"github.com/studyplanner/api/handlers"
	authhandler "github.com/studyplanner/api/handlers/auth"
	"github.com/studyplanner/api/handlers/dashboard"
	planhandler "github.com/studyplanner/api/handlers/plan"
	schedulehandler "github.com/studyplanner/api/handlers/schedule"
	"github.com/studyplanner/api/services"
	"github.com/studyplanner/api/services/gemini"
	"github.com/studyplanner/api/utils/auth"
	"github.com/studyplanner/api/utils/cache"
	"github.com/studyplanner/api/utils/middleware"
	"gorm.io/gorm"
)

// SetupRoutes wires middleware, services and all route groups
func SetupRoutes(app *fiber.App, store database.Storage) {
	getEnv, err := config.Get()
	if err != nil {
		panic("failed to load configuration: " + err.Error())
	}

	db, ok := store.GetDB().(*gorm.DB)
	if !ok {
		panic("storage does not expose a gorm connection")
	}

	// Global middleware
	middleware.SetupSecurity(app, middleware.SecurityConfig{
		AllowedOrigins:    "*",
		RateLimitRequests: 100,
		RateLimitWindow:   1 * time.Minute,
	})

	// Auth plumbing
	jwtManager := auth.NewJWTManager(auth.JWTConfig{
		Secret:        getEnv.JWT_SECRET,
		Expiry:        15 * time.Minute,
		RefreshExpiry: 7 * 24 * time.Hour,
		Issuer:        getEnv.JWT_ISSUER,
	})
	tokenService := auth.NewTokenService(getEnv.JWT_SECRET, getEnv.JWT_ISSUER)
	authMiddleware := middleware.NewAuthMiddleware(jwtManager, db)

	// Brute force protection degrades to nil when Redis is unavailable;
	// login still works, just without lockouts.
	var bruteForce *middleware.BruteForceProtection
	if getEnv.REDIS_URL != "" {
		redisCache, err := cache.NewRedisCache(getEnv.REDIS_URL)
		if err != nil {
			log.Printf("router: redis unavailable, brute force protection disabled: %v", err)
		} else {
			bruteForce = middleware.NewBruteForceProtection(redisCache)
		}
	}

	// Services
	emailService := services.NewEmailService(services.EmailConfig{
		Host:     getEnv.SMTP_HOST,
		Port:     getEnv.SMTP_PORT,
		Username: getEnv.SMTP_USERNAME,
		Password: getEnv.SMTP_PASSWORD,
		From:     getEnv.SMTP_FROM,
		AppURL:   getEnv.APP_URL,
	})
	geminiClient := gemini.NewClient(gemini.Config{
		APIKey:  getEnv.GEMINI_API_KEY,
		Model:   getEnv.GEMINI_MODEL,
		Timeout: getEnv.SCHEDULE_API_TIMEOUT,
	})
	scheduleService := services.NewScheduleService(db, geminiClient)
	progressService := services.NewProgressService(db)

	// Handlers
	authH := authhandler.NewHandler(db, jwtManager, tokenService, emailService, bruteForce)
	planH := planhandler.NewHandler(db, scheduleService)
	scheduleH := schedulehandler.NewHandler(db, progressService)
	dashboardH := dashboard.NewHandler(db, progressService)

	// Health
	app.Get("/health", handlers.HealthCheck(store))

	v1 := app.Group("/api/v1")

	// Public auth routes
	authGroup := v1.Group("/auth")
	authGroup.Post("/register", authH.Register)
	authGroup.Get("/verify", authH.Verify)
	if bruteForce != nil {
		authGroup.Post("/login", bruteForce.CheckAndRecordAttempt(), authH.Login)
	} else {
		authGroup.Post("/login", authH.Login)
	}
	authGroup.Post("/refresh", authH.Refresh)
	authGroup.Post("/forgot-password", authH.ForgotPassword)
	authGroup.Post("/reset-password", authH.ResetPassword)
	authGroup.Get("/verify-email-change", authH.VerifyEmailChange)

	// Authenticated auth routes
	authGroup.Post("/logout", authMiddleware.Required(), authH.Logout)
	authGroup.Get("/me", authMiddleware.Required(), authH.Me)
	authGroup.Put("/profile", authMiddleware.Required(), authH.UpdateProfile)
	authGroup.Post("/change-password", authMiddleware.Required(), authH.ChangePassword)
	authGroup.Post("/change-email", authMiddleware.Required(), authH.ChangeEmail)

	// Plans
	plans := v1.Group("/plans", authMiddleware.Required())
	plans.Post("/", planH.Create)
	plans.Get("/", planH.List)
	plans.Get("/:id", planH.Get)
	plans.Put("/:id", planH.Update)
	plans.Post("/:id/subjects", planH.AddSubject)
	plans.Get("/:id/subjects", planH.ListSubjects)
	plans.Post("/:id/generate", planH.Generate)
	plans.Get("/:id/schedule", scheduleH.ListForPlan)

	// Subjects
	subjects := v1.Group("/subjects", authMiddleware.Required())
	subjects.Post("/:subjectId/topics", planH.AddTopics)

	// Schedule entries
	entries := v1.Group("/schedule", authMiddleware.Required())
	entries.Get("/today", scheduleH.Today)
	entries.Post("/:id/complete", scheduleH.Complete)
	entries.Post("/:id/skip", scheduleH.Skip)
	entries.Put("/:id/dates", scheduleH.UpdateDates)

	// Dashboard
	v1.Get("/dashboard", authMiddleware.Required(), dashboardH.Overview)
}
