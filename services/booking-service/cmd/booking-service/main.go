package main

import (
	"context"
	"net/http"
	"time"
	_ "time/tzdata"

	"github.com/md-rashed-zaman/linkbook/libs/auth"
	"github.com/md-rashed-zaman/linkbook/libs/config"
	"github.com/md-rashed-zaman/linkbook/libs/db"
	"github.com/md-rashed-zaman/linkbook/libs/httpx"
	"github.com/md-rashed-zaman/linkbook/libs/kafkax"
	otelx "github.com/md-rashed-zaman/linkbook/libs/otel"
	"github.com/md-rashed-zaman/linkbook/libs/runtime"
	"github.com/md-rashed-zaman/linkbook/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/linkbook/services/booking-service/internal/handlers"
	"github.com/md-rashed-zaman/linkbook/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/linkbook/services/booking-service/internal/slotcache"
	"github.com/md-rashed-zaman/linkbook/services/booking-service/internal/storage"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	service := config.String("SERVICE_NAME", "booking-service")
	port, err := config.Port("PORT", "8083")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	cfg, err := loadSettings()
	if err != nil {
		logger.Error("config load failed", "err", err)
		panic(err)
	}

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	var store storage.Store
	if cfg.DatabaseURL != "" {
		pool, err := db.Open(ctx, cfg.DatabaseURL, db.Options{MaxConns: cfg.DBMaxConns})
		if err != nil {
			logger.Error("db connection failed", "err", err)
			panic(err)
		}
		defer pool.Close()

		pg := storage.NewPostgresStore(pool, logger)
		if cfg.AutoMigrate {
			if err := pg.Migrate(ctx); err != nil {
				logger.Error("db migration failed", "err", err)
				panic(err)
			}
		}
		store = pg
	} else {
		logger.Warn("DATABASE_URL not set; using in-memory store")
		mem := storage.NewMemoryStore()
		if cfg.SeedDemo {
			if err := seedDemo(ctx, mem, logger); err != nil {
				logger.Error("demo seed failed", "err", err)
			}
		}
		store = mem
	}

	checks := []runtime.ReadyCheck{{Name: "store", Check: store.Ready}}

	var (
		slotCache   booking.SlotCache
		rateLimitMW httpx.Middleware
	)
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer func() { _ = rdb.Close() }()
		checks = append(checks, runtime.ReadyCheck{Name: "redis", Check: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})

		slotCache = slotcache.NewRedis(rdb, cfg.SlotCacheTTL, "", logger)
		rl := httpx.NewRedisRateLimiter(rdb, cfg.RateLimitPerMinute, time.Minute, "linkbook:rl")
		rateLimitMW = rl.Middleware(logger, cfg.RateLimitFailOpen)
		logger.Info("slot cache and rate limiting enabled (redis)", "per_minute", cfg.RateLimitPerMinute, "redis_addr", cfg.RedisAddr)
	} else {
		slotCache = slotcache.NewMemory(cfg.SlotCacheTTL)
		rl := httpx.NewRateLimiter(cfg.RateLimitPerMinute, time.Minute)
		go rl.RunSweeper(ctx, time.Minute)
		rateLimitMW = rl.Middleware()
		logger.Info("slot cache and rate limiting enabled (in-memory)", "per_minute", cfg.RateLimitPerMinute)
	}

	var writer outbox.Writer
	if brokers := kafkax.SplitBrokers(cfg.KafkaBrokers); len(brokers) > 0 {
		kw := kafkax.NewWriter(brokers)
		defer func() { _ = kw.Close() }()
		writer = kw
		checks = append(checks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)})
	}
	publisher := outbox.NewPublisher(store, writer, logger, outbox.Config{
		PollEvery: cfg.OutboxPollEvery,
		BatchSize: cfg.OutboxBatchSize,
	})
	go publisher.Run(ctx)

	svc := booking.NewService(store, logger, booking.Config{
		SideEffectTimeout: cfg.SideEffectTimeout,
		CancelTokenTTL:    cfg.CancelTokenTTL,
	}, booking.WithSlotCache(slotCache))

	mux := runtime.NewBaseMuxWithReady(checks...)
	handlers.Register(mux, svc, logger, auth.RequireBearer(cfg.JWTSecret))

	httpHandler := httpx.Chain(mux,
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins: cfg.CORSAllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Authorization", "Content-Type", "X-Request-Id", "Idempotency-Key"},
			MaxAge:         cfg.CORSMaxAge,
		}),
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithRecover(logger),
		httpx.WithBodyLimit(cfg.BodyLimitBytes),
		httpx.WithTimeout(cfg.RequestTimeout),
		rateLimitMW,
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "booking")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	svc.Wait()
	logger.Info("http server stopped")
}
