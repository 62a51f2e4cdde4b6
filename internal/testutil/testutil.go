// Package testutil 提供各模块测试共用的数据库与Redis夹具。
package testutil

import (
	"fmt"
	"testing"

	"github.com/SlpAus/meme-arena-backend/internal/platform/config"
	"github.com/SlpAus/meme-arena-backend/internal/platform/database"
	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// NewTestDB 打开一个测试独占的内存SQLite数据库，并迁移给定的模型
func NewTestDB(t *testing.T, models ...any) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := database.Open(config.DatabaseConfig{
		Driver:   config.DriverSqlite,
		DSN:      dsn,
		LogLevel: "silent",
	})
	if err != nil {
		t.Fatalf("无法打开测试数据库: %v", err)
	}
	t.Cleanup(func() { _ = database.Close(db) })

	if len(models) > 0 {
		if err := db.AutoMigrate(models...); err != nil {
			t.Fatalf("无法迁移测试数据库: %v", err)
		}
	}
	return db
}

// NewTestRedis 启动一个miniredis实例并返回连接到它的客户端
func NewTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

// ResetCacheStatus 将全局缓存状态恢复为健康，避免测试之间互相影响
func ResetCacheStatus(t *testing.T) {
	t.Helper()
	database.SetRedisHealthy(true)
	database.ClearCacheStale()
	t.Cleanup(func() {
		database.SetRedisHealthy(true)
		database.ClearCacheStale()
	})
}
