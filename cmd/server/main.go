package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/v2/mongo"

	apiecho "github.com/keeperfind/keeper-auth/api/echo"
	"github.com/keeperfind/keeper-auth/cache"
	cacheredis "github.com/keeperfind/keeper-auth/cache/redis"
	"github.com/keeperfind/keeper-auth/config"
	"github.com/keeperfind/keeper-auth/delivery"
	"github.com/keeperfind/keeper-auth/domain"
	"github.com/keeperfind/keeper-auth/identity"
	"github.com/keeperfind/keeper-auth/internal/auth"
	"github.com/keeperfind/keeper-auth/internal/codehash"
	"github.com/keeperfind/keeper-auth/internal/metrics"
	"github.com/keeperfind/keeper-auth/internal/server"
	"github.com/keeperfind/keeper-auth/internal/sweeper"
	"github.com/keeperfind/keeper-auth/mongodb"
	"github.com/keeperfind/keeper-auth/services"
	"github.com/keeperfind/keeper-auth/tracing"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	initLogger(cfg)
	log.Info().
		Str("http_port", cfg.HTTPPort).
		Str("store_backend", cfg.StoreBackend).
		Str("log_level", cfg.LogLevel).
		Msg("Starting keeper-auth server")

	tp, err := tracing.InitTracerProvider(cfg.OtelServiceName)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize TracerProvider")
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("TracerProvider shutdown failed")
		}
	}()

	metrics.Register(prometheus.DefaultRegisterer)

	ctx := context.Background()
	repo, identityUpdater, cleanup := buildStore(ctx, cfg)
	defer cleanup()

	hasher := codehash.New(cfg.CodeHashSecret)
	service := services.NewAuthCodeService(repo, hasher, cfg.RetentionMargin())

	api := apiecho.NewAuthCodeAPI(service, identityUpdater, delivery.NewLogSender(), apiecho.URLConfig{
		ConfirmationURLBase: cfg.ConfirmationURLBase(),
		ResetURLBase:        cfg.ResetURLBase(),
	})

	sw := sweeper.New(service, cfg.SweepInterval())
	if err := sw.Start(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start sweeper")
	}
	defer sw.Stop()

	srv := server.NewHTTPServer(cfg, api)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-sigCtx.Done()

	log.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}
}

func initLogger(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
		log.Warn().Str("configured_log_level", cfg.LogLevel).Msg("Invalid LOG_LEVEL, defaulting to info")
	}
	zerolog.SetGlobalLevel(level)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}

// buildStore constructs the configured code store backend and the matching
// identity updater. The returned cleanup closes backend connections.
func buildStore(ctx context.Context, cfg *config.Config) (domain.AuthCodeRepository, domain.IdentityUpdater, func()) {
	switch cfg.StoreBackend {
	case "mongo":
		client, db, err := mongodb.Connect(ctx, cfg.MongoURI, cfg.MongoDBName)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to MongoDB")
		}
		repo, err := mongodb.NewAuthCodeRepository(ctx, db)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize AuthCodeRepository")
		}
		updater := mongodb.NewIdentityRepository(db, auth.NewBcryptPasswordHasher(0))
		cleanup := func() { disconnectMongo(client) }
		return repo, updater, cleanup

	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			log.Fatal().Err(err).Msg("Failed to ping Redis")
		}
		repo := cacheredis.NewCodeStore(client, cfg.RedisKeyPrefix, cfg.RetentionMargin())
		cleanup := func() {
			if err := client.Close(); err != nil {
				log.Error().Err(err).Msg("Redis close failed")
			}
		}
		return repo, identity.NewLogUpdater(), cleanup

	case "memory":
		store := cache.NewMemoryCodeStore(cfg.RetentionMargin())
		return store, identity.NewLogUpdater(), store.Stop

	default:
		log.Fatal().Str("store_backend", cfg.StoreBackend).Msg("Unknown store backend")
		return nil, nil, nil
	}
}

func disconnectMongo(client *mongo.Client) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Disconnect(ctx); err != nil {
		log.Error().Err(err).Msg("MongoDB disconnect failed")
	}
}
