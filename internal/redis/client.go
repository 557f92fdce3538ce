package redisclient

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hackgods/care-scheduling/internal/config"
)

const (
	defaultPoolSize = 20
	connectTimeout  = 5 * time.Second
)

// Options describes one redis endpoint. The scheduling processes share the
// lock keyspace and the notification channel, so they all use DB 0.
type Options struct {
	Addr       string
	Username   string
	Password   string
	ClientName string
	PoolSize   int
}

// OptionsFromConfig names the connection after the process using it, which is
// what CLIENT LIST shows.
func OptionsFromConfig(cfg config.Config, clientName string) Options {
	return Options{
		Addr:       cfg.RedisAddr,
		Username:   cfg.RedisUsername,
		Password:   cfg.RedisPassword,
		ClientName: clientName,
	}
}

// NewRedisClient connects and pings. ctx bounds the ping only.
func NewRedisClient(ctx context.Context, opts Options) (*redis.Client, error) {
	if opts.Addr == "" {
		return nil, fmt.Errorf("redis address is empty")
	}
	if opts.PoolSize <= 0 {
		opts.PoolSize = defaultPoolSize
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Username:     opts.Username,
		Password:     opts.Password,
		ClientName:   opts.ClientName,
		DB:           0,
		DialTimeout:  connectTimeout,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		PoolSize:     opts.PoolSize,
		MinIdleConns: 2,
	})

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", opts.Addr, err)
	}

	return rdb, nil
}
