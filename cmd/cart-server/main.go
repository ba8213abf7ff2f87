package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/matthewhartstonge/argon2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/fjod/cartsync/internal/auth"
	c "github.com/fjod/cartsync/internal/cache"
	"github.com/fjod/cartsync/internal/config"
	h "github.com/fjod/cartsync/internal/http"
	"github.com/fjod/cartsync/internal/poller"
	"github.com/fjod/cartsync/internal/repository"
	s "github.com/fjod/cartsync/internal/service"
	"github.com/fjod/cartsync/pkg/logger"
	"github.com/fjod/cartsync/pkg/telemetry"
)

const (
	serviceName = "cart-server"
	version     = "0.1.0"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		logrus.WithError(err).Fatal("failed to read .env")
	}
	cfg, err := config.LoadServer()
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}

	log := logger.New(serviceName, cfg.LogLevel)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tp, err := telemetry.InitTracerProvider(ctx, serviceName, version, cfg.OTLPEndpoint)
	if err != nil {
		log.WithError(err).Fatal("failed to init tracing")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("tracer provider shutdown failed")
		}
	}()

	repo, closeRepo := openRepository(ctx, cfg, log)
	defer closeRepo()

	cache, closeCache := openCache(ctx, cfg, log)
	defer closeCache()

	service := s.NewCartService(repo, cache, log)

	users, err := auth.ParseUsers(argon2.DefaultConfig(), cfg.Users)
	if err != nil {
		log.WithError(err).Fatal("invalid CART_USERS")
	}
	if users.Len() == 0 {
		log.Warn("no users configured; logins will fail")
	}
	if cfg.JWTSecret == config.DefaultJWTSecret {
		log.Warn("JWT_SECRET not set, using the development secret")
	}
	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTTTL)

	router := h.NewRouter(h.RouterConfig{
		Cart:           h.NewCartHandler(service, cfg.RequestTimeout, log),
		Auth:           h.NewAuthHandler(users, tokens, cfg.JWTTTL, log),
		Tokens:         tokens,
		RequestTimeout: cfg.RequestTimeout,
		MaxBodyBytes:   cfg.MaxRequestBodySize,
		Log:            log,
	})

	if len(cfg.KafkaBrokers) > 0 {
		p := poller.NewPoller(poller.NewKafkaReader(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaGroupID), service, log)
		defer p.Close()
		go p.Run(ctx)
		log.WithField("topic", cfg.KafkaTopic).Info("order consumer started")
	}

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      otelhttp.NewHandler(router, serviceName),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.WithField("port", cfg.HTTPPort).Info("cart server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server error")
		}
	}()

	// Graceful shutdown
	<-ctx.Done()
	log.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("server forced to shutdown")
	}
	log.Info("server exited")
}

func openRepository(ctx context.Context, cfg *config.ServerConfig, log logrus.FieldLogger) (repository.CartRepository, func()) {
	if cfg.Store == config.StoreMemory {
		log.Info("using in-memory cart store")
		return repository.NewMemoryRepository(), func() {}
	}

	mongoDB, err := repository.ConnectMongoDB(ctx, cfg.MongoURI, cfg.MongoDBName)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to MongoDB")
	}
	repo := repository.NewMongoRepository(mongoDB)
	if err := repo.CreateIndexes(ctx); err != nil {
		log.WithError(err).Fatal("failed to create MongoDB indexes")
	}
	log.WithField("db", cfg.MongoDBName).Info("connected to MongoDB")

	return repo, func() {
		disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := mongoDB.Client().Disconnect(disconnectCtx); err != nil {
			log.WithError(err).Warn("MongoDB disconnect failed")
		}
	}
}

func openCache(ctx context.Context, cfg *config.ServerConfig, log logrus.FieldLogger) (c.CartCache, func()) {
	if cfg.RedisAddr == "" {
		log.Info("cart cache disabled")
		return c.Noop{}, func() {}
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       0,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.WithError(err).Fatal("Redis connection failed")
	}
	log.WithField("addr", cfg.RedisAddr).Info("Redis ping succeeded")

	return c.NewRedisCache(redisClient), func() { redisClient.Close() }
}
