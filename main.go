package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"wellness-progression-service/config"
	"wellness-progression-service/handlers"
	"wellness-progression-service/messaging"
	"wellness-progression-service/middleware"
	"wellness-progression-service/models"
	"wellness-progression-service/services"
	"wellness-progression-service/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Info().Msg("⚠️  no .env file found, reading environment variables directly")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	initLogger(cfg.LogLevel)

	app := fiber.New(fiber.Config{
		AppName: "wellness-progression-service",
	})

	// 🔐 GLOBAL: only Gateway requests allowed — no exceptions.
	app.Use(middleware.GatewayAuthMiddleware(cfg.GatewayToken))

	origins := make([]string, 0)
	for _, origin := range strings.Split(cfg.AllowedOrigins, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(origins, ","),
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, X-User-ID, X-User-Roles, X-Service-Token",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Storage: postgres when configured, in-memory otherwise (local dev).
	var store services.ProgressionStore
	var db *gorm.DB
	if cfg.DatabaseURL != "" {
		db, err = gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{TranslateError: true})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		if err := db.AutoMigrate(
			&models.UserProgression{},
			&models.ActivityRecord{},
			&models.UserAchievement{},
			&models.UserMirror{},
		); err != nil {
			log.Fatal().Err(err).Msg("failed to migrate database")
		}
		store = services.NewGormProgressionStore(db)
	} else {
		log.Warn().Msg("⚠️  DATABASE_URL not set — using in-memory store, state is lost on restart")
		store = services.NewMemoryProgressionStore()
	}

	// Event sink: RabbitMQ when configured, log-only otherwise.
	var sink messaging.EventSink = messaging.LogSink{}
	if cfg.RabbitMQURL != "" {
		conn, err := amqp.Dial(cfg.RabbitMQURL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
		}
		defer conn.Close()
		sink, err = messaging.NewRabbitMQEventSink(conn, cfg.EventQueue)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create event sink")
		}
	} else {
		log.Warn().Msg("⚠️  RABBITMQ_URL not set — progression events are log-only")
	}

	// Idempotency guard: redis when configured, in-process otherwise.
	var guard services.IdempotencyGuard = services.NewMemoryIdempotencyGuard()
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("invalid REDIS_URL")
		}
		guard = services.NewRedisIdempotencyGuard(redis.NewClient(opts))
	} else {
		log.Warn().Msg("⚠️  REDIS_URL not set — idempotency keys are checked in-process only")
	}

	rules := services.NewRewardRuleEngine(cfg.ManualAwardMaxXP)
	ledger := services.NewProgressionLedger(store, sink)
	evaluator := services.NewAchievementEvaluator(ledger, models.AchievementCatalog())
	gamification := services.NewGamificationService(rules, ledger, evaluator, store)

	handlers.SetupProgressionRoutes(app, gamification, guard)
	handlers.SetupAchievementRoutes(app, gamification)

	gamification.StartStreakScheduler(cfg.StreakSweepInterval)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.SyncServiceURL != "" && db != nil {
		syncWorker := workers.NewProfileSyncWorker(db, cfg.SyncServiceURL, cfg.SyncServicePath, cfg.SyncServiceToken)
		syncWorker.Start(ctx)
	} else {
		log.Warn().Msg("profile sync worker disabled (needs SYNC_SERVICE_URL and a database)")
	}

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Error().Err(err).Msg("server error")
		}
	}()

	log.Info().Str("port", cfg.Port).Msg("✅ progression service running")
	log.Info().Msg("✅ GatewayAuthMiddleware enforced globally — all requests must come through the Gateway")

	<-ctx.Done()
	log.Info().Msg("shutting down server...")
	if err := app.Shutdown(); err != nil {
		log.Error().Err(err).Msg("shutdown error")
	}
}

func initLogger(level string) {
	parsed, err := zerolog.ParseLevel(level)
	if err != nil {
		parsed = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(parsed)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
}
