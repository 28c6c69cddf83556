package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-gate-api/internal/config"
	"github.com/noah-isme/gema-gate-api/internal/database"
	"github.com/noah-isme/gema-gate-api/internal/gate"
	"github.com/noah-isme/gema-gate-api/internal/handler"
	"github.com/noah-isme/gema-gate-api/internal/middleware"
	"github.com/noah-isme/gema-gate-api/internal/realtime"
	"github.com/noah-isme/gema-gate-api/internal/repository"
	"github.com/noah-isme/gema-gate-api/internal/router"
	"github.com/noah-isme/gema-gate-api/internal/scanner"
	"github.com/noah-isme/gema-gate-api/internal/service"
	cloud "github.com/noah-isme/gema-gate-api/pkg/cloudinary"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", cfg.AppName).Logger()
	if cfg.AppEnv == "development" {
		logger = logger.Level(zerolog.DebugLevel)
	} else {
		logger = logger.Level(zerolog.InfoLevel)
	}

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	redisClient, err := database.ConnectRedis(cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	hubOptions := realtime.Options{Channel: cfg.RealtimeChannel}
	switch cfg.RealtimeTransport {
	case config.RealtimeTransportRedis:
		hubOptions.Redis = redisClient
	case config.RealtimeTransportNATS:
		var natsConn *nats.Conn
		natsConn, err = database.ConnectNATS(cfg.NATSURL, cfg.AppName, logger)
		if err != nil {
			log.Fatalf("failed to connect to nats: %v", err)
		}
		defer natsConn.Close()
		hubOptions.NATS = natsConn
	}
	hub := realtime.NewHub(hubOptions, logger)

	var blobs service.BlobStore
	if cfg.CloudinaryCloudName != "" {
		uploader, err := cloud.New(cloud.Config{
			CloudName: cfg.CloudinaryCloudName,
			APIKey:    cfg.CloudinaryAPIKey,
			APISecret: cfg.CloudinaryAPISecret,
			Folder:    cfg.CloudinaryUploadFolder,
		}, logger)
		if err != nil {
			log.Fatalf("failed to create cloudinary client: %v", err)
		}
		blobs = uploader
	} else {
		logger.Warn().Msg("cloudinary not configured, lost and found photos are disabled")
	}

	localizer, err := service.NewLocalizer(cfg.Locale, cfg.Timezone)
	if err != nil {
		log.Fatalf("failed to load locale: %v", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	studentRepo := repository.NewStudentRepository(db)
	releaseRepo := repository.NewReleaseRepository(db)
	accessRecordRepo := repository.NewAccessRecordRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	lostFoundRepo := repository.NewLostFoundRepository(db)

	identityCache := redisClient
	if cfg.IdentityCacheTTL == 0 {
		identityCache = nil
	}
	identityResolver := service.NewIdentityResolver(studentRepo, identityCache, cfg.IdentityCacheTTL, logger)
	notificationService := service.NewNotificationService(notificationRepo, hub, validate, logger)
	releaseService := service.NewReleaseService(releaseRepo, accessRecordRepo, notificationService, hub, localizer, logger)
	reaper := service.NewExpiryReaper(lostFoundRepo, blobs, hub, cfg.LostFoundRetention, logger)
	photoConfig := service.PhotoConfig{
		MaxBytes:     int64(cfg.PhotoMaxSizeMB) << 20,
		MaxPixels:    cfg.PhotoMaxPixels,
		MaxDimension: cfg.PhotoMaxDimension,
		JPEGQuality:  cfg.PhotoJPEGQuality,
	}
	lostFoundService := service.NewLostFoundService(lostFoundRepo, blobs, hub, reaper, validate, photoConfig, localizer, logger)

	gateHandler := handler.NewGateHandler(gate.Dependencies{
		Identity:  identityResolver,
		Releases:  releaseService,
		Localizer: localizer,
		Scanner: scanner.Config{
			Cooldown:   cfg.ScanCooldown,
			MountDelay: cfg.ScannerMountDelay,
		},
		Logger: logger,
	}, logger)
	releaseHandler := handler.NewReleaseHandler(releaseService, logger, cfg.SSEKeepAlive)
	identityHandler := handler.NewIdentityHandler(identityResolver, logger)
	lostFoundHandler := handler.NewLostFoundHandler(lostFoundService, handler.LostFoundHandlerConfig{
		MaxPhotoBytes:   photoConfig.MaxBytes,
		UploadRateLimit: cfg.UploadRateLimit,
		KeepAlive:       cfg.SSEKeepAlive,
	}, logger)
	notificationHandler := handler.NewNotificationHandler(notificationService, logger, cfg.SSEKeepAlive)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := hub.Start(ctx); err != nil {
		log.Fatalf("failed to start realtime hub: %v", err)
	}

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		BodyLimit:    int(photoConfig.MaxBytes) + 1<<20,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		GateHandler:         gateHandler,
		ReleaseHandler:      releaseHandler,
		IdentityHandler:     identityHandler,
		LostFoundHandler:    lostFoundHandler,
		NotificationHandler: notificationHandler,
		JWTMiddleware:       middleware.JWTProtected(cfg.JWTSecret),
		NodeID:              hub.NodeID(),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	logger.Info().
		Str("address", cfg.HTTPAddress()).
		Str("realtime", cfg.RealtimeTransport).
		Str("node", hub.NodeID()).
		Msg("gate api started")

	waitForShutdown(app, cancel, reaper)
}

func waitForShutdown(app *fiber.App, stopHub context.CancelFunc, reaper *service.ExpiryReaper) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	stopHub()
	reaper.Wait()

	log.Println("server stopped")
}
