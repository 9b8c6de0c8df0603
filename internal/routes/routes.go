package routes

import (
	websocket "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/reduanahmadswe/SmartHealthcare-sub001/internal/config"
	"github.com/reduanahmadswe/SmartHealthcare-sub001/internal/handlers"
	"github.com/reduanahmadswe/SmartHealthcare-sub001/internal/middleware"
	"github.com/reduanahmadswe/SmartHealthcare-sub001/internal/redislock"
	"github.com/reduanahmadswe/SmartHealthcare-sub001/internal/repository"
	"github.com/reduanahmadswe/SmartHealthcare-sub001/internal/services"
	chatws "github.com/reduanahmadswe/SmartHealthcare-sub001/internal/websocket"
	"github.com/reduanahmadswe/SmartHealthcare-sub001/pkg/logging"
)

func RegisterRoutes(
	app *fiber.App,
	cfg *config.Config,
	db *pgxpool.Pool,
	locker redislock.Locker,
	logger *logging.Logger,
) {
	store := repository.NewRetryingDB(db)
	userRepo := repository.NewUserRepository(store)
	scheduleRepo := repository.NewScheduleRepository(store)
	consultationRepo := repository.NewConsultationRepository(store)
	messageRepo := repository.NewMessageRepository(store)

	guard := services.NewSlotGuard(scheduleRepo, locker)
	notifier := services.NewLogNotifier(logger)
	consultationService := services.NewConsultationService(
		db,
		consultationRepo,
		scheduleRepo,
		userRepo,
		guard,
		notifier,
		cfg.MaxReschedules,
	)
	scheduleService := services.NewScheduleService(db, scheduleRepo, userRepo)
	channelService := services.NewChannelService(consultationRepo, messageRepo)

	hub := chatws.NewHub()
	go hub.Run()

	authHandler := handlers.NewAuthHandler(userRepo, cfg.JWTSecret)
	scheduleHandler := handlers.NewScheduleHandler(scheduleService)
	consultationHandler := handlers.NewConsultationHandler(consultationService)
	channelHandler := handlers.NewChannelHandler(channelService, hub, cfg.JWTSecret)

	api := app.Group("/api")

	auth := api.Group("/auth")
	auth.Post("/register", authHandler.Register)
	auth.Post("/login", authHandler.Login)
	auth.Get("/me", middleware.AuthRequired(cfg.JWTSecret), authHandler.Me)

	authProtected := api.Group("/v1", middleware.AuthRequired(cfg.JWTSecret))

	providers := authProtected.Group("/providers")
	providers.Get("/:id/schedule", scheduleHandler.Get)
	providers.Put("/schedule", scheduleHandler.Update)

	consultations := authProtected.Group("/consultations")
	consultations.Post("/book", consultationHandler.Book)
	consultations.Get("", consultationHandler.List)
	consultations.Get("/availability", consultationHandler.CheckAvailability)
	consultations.Get("/:id", consultationHandler.Get)
	consultations.Put("/:id/status", consultationHandler.UpdateStatus)
	consultations.Put("/:id/reschedule", consultationHandler.Reschedule)
	consultations.Post("/:id/rating", consultationHandler.Rate)
	consultations.Get("/:id/messages", channelHandler.History)

	messages := authProtected.Group("/messages")
	messages.Put("/:messageId/read", channelHandler.MarkRead)
	messages.Delete("/:messageId", channelHandler.Delete)

	api.Use("/v1/ws", channelHandler.WebSocketAuth)
	api.Get("/v1/ws", websocket.New(channelHandler.HandleWebSocket))
}
