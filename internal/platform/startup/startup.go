package startup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/SlpAus/meme-arena-backend/internal/battle"
	"github.com/SlpAus/meme-arena-backend/internal/meme"
	"github.com/SlpAus/meme-arena-backend/internal/platform/health"
	"github.com/SlpAus/meme-arena-backend/internal/platform/metadata"
	"gorm.io/gorm"
)

// MigrateAll 迁移所有模块的表结构
func MigrateAll(db *gorm.DB) error {
	if err := metadata.Migrate(db); err != nil {
		return err
	}
	if err := meme.Migrate(db); err != nil {
		return err
	}
	if err := battle.Migrate(db); err != nil {
		return err
	}
	return nil
}

// SeedDefaults 在空表中写入内置表情包，并记录写入时间
func SeedDefaults(ctx context.Context, db *gorm.DB) (int, error) {
	inserted, err := meme.SeedDefaults(ctx, meme.NewRepository(db))
	if err != nil {
		return 0, err
	}
	if inserted > 0 {
		if err := metadata.SetTime(db.WithContext(ctx), metadata.SeededAtKey, time.Now()); err != nil {
			return inserted, fmt.Errorf("无法记录初始化时间: %w", err)
		}
	}
	return inserted, nil
}

// InitializeApplication 是服务启动时执行的总入口
func InitializeApplication(ctx context.Context, db *gorm.DB, memes *meme.Service, seed bool) error {
	slog.Info("开始应用初始化...")

	if err := MigrateAll(db); err != nil {
		return err
	}
	if seed {
		if _, err := SeedDefaults(ctx, db); err != nil {
			return err
		}
	}
	if err := memes.WarmupCache(ctx); err != nil {
		return err
	}

	slog.Info("应用初始化完成")
	return nil
}

// RebuildCache 返回健康检查器在运行时热重建缓存所用的函数
func RebuildCache(memes *meme.Service) health.RebuildFunc {
	return func(ctx context.Context) error {
		slog.Info("开始缓存热重建...")
		if err := memes.WarmupCache(ctx); err != nil {
			return err
		}
		slog.Info("缓存热重建完成")
		return nil
	}
}

// ResetDatabase 删除并重建所有表，评分和对决记录全部清空
func ResetDatabase(db *gorm.DB) error {
	if err := db.Migrator().DropTable(&battle.Battle{}, &meme.Meme{}, &metadata.Metadata{}); err != nil {
		return fmt.Errorf("删除数据表失败: %w", err)
	}
	slog.Warn("已删除 battles, memes, metadata 表")
	return MigrateAll(db)
}
