package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"collective-project-system/handlers"
	"collective-project-system/middleware"
	"collective-project-system/models"
	"collective-project-system/services"
	"collective-project-system/utils"
	"collective-project-system/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	app := fiber.New(fiber.Config{
		BodyLimit: 512 * 1024 * 1024, // 512MB, raw clips come in through /media
	})

	// 🔐 GLOBAL: only Gateway requests allowed
	app.Use(middleware.GatewayAuthMiddleware())

	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	if allowedOrigins == "" {
		log.Println("⚠️  ALLOWED_ORIGINS environment variable not set, using default: http://localhost:3000")
		allowedOrigins = "http://localhost:3000"
	}
	origins := strings.Split(allowedOrigins, ",")
	for i, origin := range origins {
		origins[i] = strings.TrimSpace(origin)
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(origins, ","),
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, User-Agent, Cache-Control, X-User-ID, X-User-Name, X-Service-Token",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	if err := utils.InitR2(); err != nil {
		log.Fatal("failed to initialize R2 client:", err)
	}
	utils.InitRedis()

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.User{},
		&models.UserDevice{},
		&models.Project{},
		&models.Challenge{},
		&models.Contribution{},
		&models.ProjectLike{},
		&models.Achievement{},
		&models.UserAchievement{},
		&models.Notification{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	if err := utils.EnsureUploadDirs(); err != nil {
		log.Fatal("failed to ensure upload dirs:", err)
	}

	achievementService := services.NewAchievementService(db)
	if err := achievementService.SeedCatalog(); err != nil {
		log.Fatal("failed to seed achievement catalog:", err)
	}

	rewardService := services.NewRewardService(db, services.LoadRewardConfig(), achievementService)
	notificationService := services.NewNotificationService(db, services.NewPushClientFromEnv(db))
	projectService := services.NewProjectService(db, rewardService, notificationService)
	processorService := services.NewProcessorService(db, projectService, notificationService, services.NewFFmpegComposer())

	// --- External service mirrors ---
	accountServiceURL := os.Getenv("ACCOUNT_SERVICE_URL")
	if accountServiceURL == "" {
		log.Fatal("ACCOUNT_SERVICE_URL environment variable not set")
	}
	serviceToken := os.Getenv("PROJECT_SERVICE_TOKEN")
	if serviceToken == "" {
		log.Fatal("PROJECT_SERVICE_TOKEN environment variable not set")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	userSyncWorker := workers.NewUserSyncWorker(db, accountServiceURL, serviceToken)
	userSyncWorker.Start(ctx)

	likesSyncClient := workers.NewLikesSyncClient(db)
	go workers.PollLikes(ctx, likesSyncClient, 30*time.Second)

	sweepInterval := time.Duration(services.SweepIntervalMinutes()) * time.Minute
	processorService.StartSweepScheduler(ctx, sweepInterval)

	handlers.SetupProjectRoutes(app, projectService, processorService)
	handlers.SetupProgressionRoutes(app, db)

	app.Static("/uploads", "./uploads")

	go func() {
		if err := app.Listen(":5300"); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Println("✅ Server running on http://localhost:5300")
	log.Println("✅ User sync worker running")
	log.Println("✅ Likes polling running (every 30s)")
	log.Printf("✅ Auto-sweep running (every %s)", sweepInterval)
	log.Println("✅ GatewayAuthMiddleware enforced globally — all requests must come from Gateway")

	<-ctx.Done()
	log.Println("Shutting down server...")
}
