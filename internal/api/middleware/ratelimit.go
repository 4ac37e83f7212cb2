package middleware

import (
	"fmt"

	"github.com/MacJediWizard/orgwarden/internal/config"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	mgin "github.com/ulule/limiter/v3/drivers/middleware/gin"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"
)

const limiterPrefix = "orgwarden_limiter"

// NewRateLimiter creates a Gin middleware for per-client-IP rate limiting.
// Counters live in Redis when cfg.RedisURL is set so that several replicas
// share one budget, and in process memory otherwise.
func NewRateLimiter(cfg config.RateLimitConfig) (gin.HandlerFunc, error) {
	if cfg.Requests <= 0 || cfg.Period <= 0 {
		return nil, fmt.Errorf("invalid rate limit %d per %s", cfg.Requests, cfg.Period)
	}

	rate := limiter.Rate{
		Period: cfg.Period,
		Limit:  cfg.Requests,
	}

	store, err := newLimiterStore(cfg.RedisURL)
	if err != nil {
		return nil, err
	}

	return mgin.NewMiddleware(limiter.New(store, rate)), nil
}

func newLimiterStore(redisURL string) (limiter.Store, error) {
	if redisURL == "" {
		return memory.NewStoreWithOptions(limiter.StoreOptions{
			Prefix:          limiterPrefix,
			CleanUpInterval: limiter.DefaultCleanUpInterval,
		}), nil
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	store, err := sredis.NewStoreWithOptions(redis.NewClient(opts), limiter.StoreOptions{Prefix: limiterPrefix})
	if err != nil {
		return nil, fmt.Errorf("create redis limiter store: %w", err)
	}
	return store, nil
}
