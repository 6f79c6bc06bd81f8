package database

import (
	"github.com/go-redis/redis"
	"github.com/jwvaartjes/dental-relay/internal/config"
)

// NewRedis opens a go-redis client for the configured Redis; the app keeps
// it as App.RC. The pairing mirror (C7) and the asynq GC task queues open
// their own connections from the same settings.
func NewRedis(cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Pass,
		DB:       cfg.DB,
	})
	return client, nil
}
