package main

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/reduanahmadswe/SmartHealthcare-sub001/internal/config"
	"github.com/reduanahmadswe/SmartHealthcare-sub001/internal/database"
	"github.com/reduanahmadswe/SmartHealthcare-sub001/internal/redislock"
	"github.com/reduanahmadswe/SmartHealthcare-sub001/internal/routes"
	"github.com/reduanahmadswe/SmartHealthcare-sub001/pkg/logging"
)

func main() {
	// 1. Load Config
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	appLogger := logging.New(cfg.LogLevel)

	// 2. Connect to Database
	if cfg.DBUrl == "" {
		log.Fatal("DB_URL is required")
	}
	if err := database.ConnectDB(cfg.DBUrl); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.CloseDB()

	// 3. Optional Redis slot lock. The unique index alone keeps booking
	// correct; the lock only cuts down conflict errors under contention.
	locker := redislock.NewNoopLocker()
	if cfg.RedisAddr != "" {
		redisClient, err := database.ConnectRedis(cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			log.Fatalf("Failed to connect to redis: %v", err)
		}
		defer redisClient.Close()
		locker = redislock.NewRedisSlotLocker(redisClient, redislock.DefaultLockTTL)
	}

	// 4. Setup Fiber
	app := fiber.New()

	// Middleware
	app.Use(cors.New())
	app.Use(fiberlogger.New())
	app.Use(recover.New())

	// Routes
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
		})
	})
	routes.RegisterRoutes(app, cfg, database.DB, locker, appLogger)

	// 5. Start Server
	log.Printf("Server starting on port %s", cfg.Port)
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("Server failed to start: %v", err)
	}
}
