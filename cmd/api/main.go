package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"tryonserver/internal/access"
	"tryonserver/internal/adapter/repo"
	"tryonserver/internal/http/handlers"
	"tryonserver/internal/http/httpapi"
	"tryonserver/internal/infra"
	"tryonserver/internal/infra/geoip"
	"tryonserver/internal/ledger"
	"tryonserver/internal/middleware"
	"tryonserver/internal/queue"
	"tryonserver/internal/storage"
)

func main() {
	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv, "api")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: db connection failed")
	}
	defer pool.Close()

	fileStore, err := storage.NewFileStore(cfg.StoragePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: failed to configure storage")
	}

	amqpClient, err := infra.NewAMQPClient(cfg.AMQPURL, cfg.BatchQueueName, "", logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: amqp connection failed")
	}
	defer amqpClient.Close()
	if amqpClient == nil {
		logger.Warn().Msg("api: no AMQP_URL, workers rely on polling alone")
	}

	var countryLookup middleware.CountryLookup
	resolver, err := geoip.NewResolver(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("api: geoip unavailable")
	} else if resolver != nil {
		defer resolver.Close()
		countryLookup = resolver.CountryCode
	}

	var limiter middleware.Limiter = middleware.NewMemoryLimiter()
	redisClient, err := infra.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword)
	if err != nil {
		logger.Warn().Err(err).Msg("api: redis unavailable, using in-process rate limits")
	} else if redisClient != nil {
		defer redisClient.Close()
		limiter = infra.NewRedisLimiter(redisClient)
	}

	ldg := ledger.New()
	queueStore := repo.NewQueueStore(pool, ldg)
	businesses := repo.NewBusinessRepository(pool)
	consents := repo.NewConsentRepository(pool)

	admitter := queue.NewAdmitter(
		businesses,
		repo.NewModelRepository(pool),
		consents,
		queueStore,
		queue.NewAMQPTrigger(amqpClient, cfg.BatchQueueName),
		logger,
	)

	app := &handlers.App{
		Config:     cfg,
		Logger:     logger,
		Admitter:   admitter,
		Businesses: businesses,
		Batches:    repo.NewBatchRepository(pool),
		Jobs:       repo.NewJobRepository(pool),
		Gate:       access.NewGate(consents, logger),
		Store:      fileStore,
		Payouts:    ledger.NewPayouts(pool, ldg, logger),
	}

	router := httpapi.NewRouter(app, httpapi.Options{
		JWTSecret:       cfg.JWTSecret,
		RateLimitPerMin: cfg.RateLimitPerMin,
		Limiter:         limiter,
		CountryLookup:   countryLookup,
		AllowedOrigins:  cfg.AllowedOrigins,
	})
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on %s", server.Addr())
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
