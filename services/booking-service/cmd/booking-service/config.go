package main

import (
	"time"

	"github.com/md-rashed-zaman/linkbook/libs/config"
)

type settings struct {
	DatabaseURL string `envconfig:"DATABASE_URL"`
	AutoMigrate bool   `envconfig:"DB_AUTO_MIGRATE" default:"true"`
	DBMaxConns  int32  `envconfig:"DB_MAX_CONNS" default:"10"`

	JWTSecret string `envconfig:"JWT_SECRET" default:"dev-secret"`

	KafkaBrokers    string        `envconfig:"KAFKA_BROKERS"`
	OutboxPollEvery time.Duration `envconfig:"OUTBOX_POLL_INTERVAL" default:"2s"`
	OutboxBatchSize int           `envconfig:"OUTBOX_BATCH_SIZE" default:"50"`

	RedisAddr     string `envconfig:"REDIS_ADDR"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	SlotCacheTTL      time.Duration `envconfig:"SLOT_CACHE_TTL" default:"15s"`
	SideEffectTimeout time.Duration `envconfig:"SIDE_EFFECT_TIMEOUT" default:"3s"`
	CancelTokenTTL    time.Duration `envconfig:"CANCEL_TOKEN_TTL" default:"720h"`

	RateLimitPerMinute int           `envconfig:"RATE_LIMIT_PER_MINUTE" default:"60"`
	RateLimitFailOpen  bool          `envconfig:"RATE_LIMIT_FAIL_OPEN" default:"true"`
	RequestTimeout     time.Duration `envconfig:"REQUEST_TIMEOUT" default:"10s"`
	BodyLimitBytes     int64         `envconfig:"REQUEST_BODY_LIMIT_BYTES" default:"1048576"`

	CORSAllowedOrigins []string      `envconfig:"CORS_ALLOWED_ORIGINS"`
	CORSMaxAge         time.Duration `envconfig:"CORS_MAX_AGE" default:"10m"`

	// SeedDemo loads a demo provider into the in-memory store when DATABASE_URL is unset.
	SeedDemo bool `envconfig:"SEED_DEMO" default:"false"`
}

func loadSettings() (settings, error) {
	var s settings
	if err := config.Process("", &s); err != nil {
		return settings{}, err
	}
	return s, nil
}
