package meme

import (
	"context"
	"fmt"
	"log/slog"

	"gorm.io/gorm"
)

// Migrate 负责自动迁移memes表结构
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&Meme{}); err != nil {
		return fmt.Errorf("无法迁移memes表: %w", err)
	}
	slog.Info("Meme数据库表迁移成功。")
	return nil
}

// DefaultMemes 返回空库初始化时写入的内置表情包
func DefaultMemes() []*Meme {
	return []*Meme{
		NewMeme("defaults/distracted-boyfriend", "Distracted Boyfriend", "https://i.imgflip.com/1ur9b0.jpg", ""),
		NewMeme("defaults/drake-hotline-bling", "Drake Hotline Bling", "https://i.imgflip.com/2wifvo.jpg", ""),
		NewMeme("defaults/two-buttons", "Two Buttons", "https://i.imgflip.com/1otk96.jpg", ""),
		NewMeme("defaults/change-my-mind", "Change My Mind", "https://i.imgflip.com/24y43o.jpg", ""),
		NewMeme("defaults/mocking-spongebob", "Mocking Spongebob", "https://i.imgflip.com/1otpo4.jpg", ""),
	}
}

// SeedDefaults 在memes表为空时写入内置表情包，返回写入的数量
// 表中已有数据时什么也不做，因此可以重复调用
func SeedDefaults(ctx context.Context, repo *Repository) (int, error) {
	count, err := repo.Count(ctx)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		slog.Debug("memes表已有数据，跳过内置表情包", slog.Int64("count", count))
		return 0, nil
	}

	defaults := DefaultMemes()
	for _, m := range defaults {
		if err := repo.Upsert(ctx, m); err != nil {
			return 0, err
		}
	}
	slog.Info("已写入内置表情包", slog.Int("count", len(defaults)))
	return len(defaults), nil
}
