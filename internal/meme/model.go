package meme

import (
	"github.com/SlpAus/meme-arena-backend/internal/elo"
	"gorm.io/gorm"
)

// Meme 定义了数据库中表情包的数据结构
type Meme struct {
	// gorm.Model 包含 ID, CreatedAt, UpdatedAt, DeletedAt
	gorm.Model

	// UID 是表情包在内容目录中的稳定标识, 同步时以它为准进行upsert
	UID string `gorm:"uniqueIndex;not null;size:255"`

	Name        string `gorm:"not null;size:255"`
	Cover       string `gorm:"not null;size:1024"`
	Description string

	// --- 以下是用于排名的字段 ---

	// EloScore 是当前的ELO分数，新表情包从1500开始
	EloScore int `gorm:"column:elo_score;not null;default:1500;index"`
	Wins     int `gorm:"not null;default:0"`
	Losses   int `gorm:"not null;default:0"`
}

// Summary 是对外公开的表情包视图
type Summary struct {
	ID          uint   `json:"id"`
	Name        string `json:"name"`
	Cover       string `json:"cover"`
	Description string `json:"description"`
	EloScore    int    `json:"elo_score"`
	Wins        int    `json:"wins"`
	Losses      int    `json:"losses"`
}

// RankedSummary 是排行榜中的一行，Rank从1开始
type RankedSummary struct {
	Rank int `json:"rank"`
	Summary
}

// ToSummary 把数据库行转换为对外视图
func (m *Meme) ToSummary() Summary {
	return Summary{
		ID:          m.ID,
		Name:        m.Name,
		Cover:       m.Cover,
		Description: m.Description,
		EloScore:    m.EloScore,
		Wins:        m.Wins,
		Losses:      m.Losses,
	}
}

// NewMeme 创建一个尚未入库的表情包，评分从默认值开始
func NewMeme(uid, name, cover, description string) *Meme {
	return &Meme{
		UID:         uid,
		Name:        name,
		Cover:       cover,
		Description: description,
		EloScore:    elo.DefaultRating,
	}
}
