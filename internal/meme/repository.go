package meme

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrMemeNotFound 表示请求的表情包不存在
	ErrMemeNotFound = errors.New("表情包不存在")
	// ErrStaleRow 表示条件更新没有命中任何行，读到的数据已被其他事务修改
	ErrStaleRow = errors.New("表情包数据已被并发修改")
)

// Repository 封装了memes表上的所有查询
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx 返回绑定到给定事务的仓库副本
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// GetByID 按主键查找表情包
func (r *Repository) GetByID(ctx context.Context, id uint) (*Meme, error) {
	var m Meme
	err := r.db.WithContext(ctx).First(&m, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrMemeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("查询表情包 %d 失败: %w", id, err)
	}
	return &m, nil
}

// LockPair 在当前事务内按id顺序锁定两行，并按参数顺序返回
// 任意一个id不存在时返回ErrMemeNotFound
func (r *Repository) LockPair(ctx context.Context, a, b uint) (*Meme, *Meme, error) {
	q := r.db.WithContext(ctx)
	// SQLite没有行锁，单连接本身已经串行化了写事务
	if q.Dialector.Name() == "postgres" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var rows []Meme
	if err := q.Where("id IN ?", []uint{a, b}).Order("id asc").Find(&rows).Error; err != nil {
		return nil, nil, fmt.Errorf("锁定表情包失败: %w", err)
	}

	var first, second *Meme
	for i := range rows {
		switch rows[i].ID {
		case a:
			first = &rows[i]
		case b:
			second = &rows[i]
		}
	}
	if first == nil || second == nil {
		return nil, nil, ErrMemeNotFound
	}
	return first, second, nil
}

// ApplyResult 以条件更新的方式写入新的评分，并把胜场或负场加一
// 条件包含读到的评分和场次，未命中任何行时返回ErrStaleRow
func (r *Repository) ApplyResult(ctx context.Context, m *Meme, newRating int, won bool) error {
	counter := "losses"
	if won {
		counter = "wins"
	}

	res := r.db.WithContext(ctx).Model(&Meme{}).
		Where("id = ? AND elo_score = ? AND wins = ? AND losses = ?", m.ID, m.EloScore, m.Wins, m.Losses).
		Updates(map[string]any{
			"elo_score": newRating,
			counter:     gorm.Expr(counter+" + ?", 1),
		})
	if res.Error != nil {
		return fmt.Errorf("更新表情包 %d 的评分失败: %w", m.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrStaleRow
	}

	m.EloScore = newRating
	if won {
		m.Wins++
	} else {
		m.Losses++
	}
	return nil
}

// RandomPair 随机取出最多两个不同的表情包，exclude中的id不参与抽取
func (r *Repository) RandomPair(ctx context.Context, exclude []uint) ([]Meme, error) {
	q := r.db.WithContext(ctx).Model(&Meme{})
	if len(exclude) > 0 {
		q = q.Where("id NOT IN ?", exclude)
	}

	var memes []Meme
	if err := q.Order("RANDOM()").Limit(2).Find(&memes).Error; err != nil {
		return nil, fmt.Errorf("随机抽取表情包失败: %w", err)
	}
	return memes, nil
}

// Leaderboard 按评分降序返回所有表情包，评分相同时id小的在前
func (r *Repository) Leaderboard(ctx context.Context) ([]Meme, error) {
	var memes []Meme
	if err := r.db.WithContext(ctx).Order("elo_score desc").Order("id asc").Find(&memes).Error; err != nil {
		return nil, fmt.Errorf("读取排行榜失败: %w", err)
	}
	return memes, nil
}

func (r *Repository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&Meme{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("统计表情包数量失败: %w", err)
	}
	return n, nil
}

// Upsert 以uid为键插入或更新表情包的内容字段，评分和场次保持不变
func (r *Repository) Upsert(ctx context.Context, m *Meme) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "uid"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "cover", "description", "updated_at"}),
	}).Create(m).Error
	if err != nil {
		return fmt.Errorf("写入表情包 %q 失败: %w", m.UID, err)
	}
	return nil
}

// GetByUID 按内容目录中的uid查找表情包
func (r *Repository) GetByUID(ctx context.Context, uid string) (*Meme, error) {
	var m Meme
	err := r.db.WithContext(ctx).Where("uid = ?", uid).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrMemeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("查询表情包 %q 失败: %w", uid, err)
	}
	return &m, nil
}
