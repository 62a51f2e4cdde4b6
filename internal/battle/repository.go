package battle

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// Append 追加一条对决记录
func (r *Repository) Append(ctx context.Context, b *Battle) error {
	if err := r.db.WithContext(ctx).Create(b).Error; err != nil {
		return fmt.Errorf("写入对决记录失败: %w", err)
	}
	return nil
}

// PairUsed 判断对决令牌是否已经出现在记录中
func (r *Repository) PairUsed(ctx context.Context, pairID string) (bool, error) {
	var b Battle
	err := r.db.WithContext(ctx).Select("id").Where("pair_id = ?", pairID).Take(&b).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("查询对决令牌失败: %w", err)
	}
	return true, nil
}

// CountForMeme 统计某个表情包参与过的对决场次
func (r *Repository) CountForMeme(ctx context.Context, memeID uint) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&Battle{}).
		Where("meme1_id = ? OR meme2_id = ?", memeID, memeID).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("统计对决场次失败: %w", err)
	}
	return n, nil
}

// Migrate 负责自动迁移battles表结构
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&Battle{}); err != nil {
		return fmt.Errorf("无法迁移battles表: %w", err)
	}
	return nil
}
