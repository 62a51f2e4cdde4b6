package database

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/SlpAus/meme-arena-backend/internal/platform/config"
	"github.com/redis/go-redis/v9"
)

// OpenRedis 初始化与Redis的连接，并用Ping测试连接是否可用
func OpenRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("无法连接到Redis: %w", err)
	}

	slog.Info("Redis 连接成功", slog.String("address", cfg.Address))
	return rdb, nil
}
