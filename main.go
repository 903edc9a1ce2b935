package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"profile-service/config"
	"profile-service/db"
	"profile-service/handlers"
	"profile-service/logger"
	"profile-service/middleware"
	"profile-service/repository"
	"profile-service/routes"
	"profile-service/secretmanager"
	"profile-service/service"
	"profile-service/storage"
	"profile-service/telemetry"

	gorillaHandlers "github.com/gorilla/handlers"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
)

const (
	serviceName     = "profile-service"
	shutdownTimeout = 10 * time.Second
)

var (
	loadEnv       = godotenv.Load
	loadConfig    = config.Load
	connectDB     = db.Connect
	migrateDB     = db.Migrate
	newImageStore = storage.New
	initTelemetry = telemetry.Init
	setupRoutes   = routes.SetupRoutes
	serve         = serveHTTP
	getSecret     = secretmanager.GetSecret
	logFatal      = func(err error) { zlog.Fatal().Err(err).Msg("profile service stopped") }
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		logFatal(err)
	}
}

func run(ctx context.Context) error {
	envErr := loadEnv()
	appEnv := os.Getenv("APP_ENV")
	if appEnv == "" {
		appEnv = "dev"
	}

	bootLog := logger.New(logger.Options{Level: os.Getenv("LOG_LEVEL"), Service: serviceName})
	if envErr != nil {
		bootLog.Info().Msg("no .env file found; using system environment variables")
	}
	bootLog.Info().Str("environment", appEnv).Msg("starting")

	if appEnv == "prod" {
		if err := loadProdSecrets(ctx); err != nil {
			return err
		}
	}

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	log := logger.New(logger.Options{Level: cfg.LogLevel, Pretty: cfg.LogPretty, Service: cfg.Telemetry.ServiceName})

	conn, err := connectDB(ctx, cfg.DB)
	if err != nil {
		return fmt.Errorf("database connection error: %w", err)
	}
	defer conn.Close()
	log.Info().Str("host", cfg.DB.Host).Str("database", cfg.DB.Name).Msg("connected to postgres")

	if cfg.DB.AutoMigrate {
		if err := migrateDB(ctx, conn); err != nil {
			return fmt.Errorf("database migration error: %w", err)
		}
		log.Info().Msg("profiles schema applied")
	}

	var images service.ImageStore
	store, err := newImageStore(ctx, cfg.Storage)
	switch {
	case errors.Is(err, storage.ErrNotConfigured):
		log.Warn().Str("driver", cfg.Storage.Driver).Msg("image storage not configured; uploads will fail")
	case err != nil:
		log.Error().Err(err).Str("driver", cfg.Storage.Driver).Msg("image storage unavailable; uploads will fail")
		images = storage.Unavailable(err)
	default:
		defer store.Close()
		images = store
		log.Info().Str("driver", cfg.Storage.Driver).Str("bucket", cfg.Storage.Bucket).Msg("image storage ready")
	}

	shutdownTelemetry, err := initTelemetry(ctx, cfg.Telemetry, cfg.AppEnv, log)
	if err != nil {
		return fmt.Errorf("telemetry error: %w", err)
	}
	defer func() {
		if err := shutdownTelemetry(context.Background()); err != nil {
			log.Warn().Err(err).Msg("telemetry shutdown failed")
		}
	}()

	profileService := service.NewProfileService(repository.NewProfileRepository(conn), images, cfg.Storage.SignedURLTTL, log)
	router := setupRoutes(handlers.NewProfileHandler(profileService), handlers.NewHealthHandler(conn))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           buildHandler(cfg, router, log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Info().
		Str("port", cfg.Port).
		Str("environment", cfg.AppEnv).
		Str("cors", strings.Join(cfg.CORS.AllowedOrigins, ",")).
		Msg("starting server")
	return serve(ctx, srv)
}

// buildHandler layers the request middleware around the router. The tracing
// span is opened first so the request log line can carry its ids.
func buildHandler(cfg config.Config, router http.Handler, log zerolog.Logger) http.Handler {
	corsOpts := []gorillaHandlers.CORSOption{
		gorillaHandlers.AllowedOrigins(cfg.CORS.AllowedOrigins),
		gorillaHandlers.AllowedMethods([]string{"GET", "POST", "PUT", "OPTIONS"}),
		gorillaHandlers.AllowedHeaders([]string{"Content-Type", "Authorization", "X-Requested-With", middleware.RequestIDHeader}),
		gorillaHandlers.ExposedHeaders([]string{middleware.RequestIDHeader}),
	}

	var handler http.Handler = gorillaHandlers.CORS(corsOpts...)(router)
	handler = middleware.RequestLogger(handler)
	handler = middleware.RequestID(log)(handler)
	return telemetry.Handler(handler, cfg.Telemetry.ServiceName)
}

func serveHTTP(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
