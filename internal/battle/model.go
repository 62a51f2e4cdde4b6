package battle

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidBattle 表示提交的对决参数不合法
	ErrInvalidBattle = errors.New("无效的对决")
	// ErrInvalidPairToken 表示对决令牌缺失或签名不匹配
	ErrInvalidPairToken = errors.New("无效的对决令牌")
	// ErrPairAlreadyUsed 表示同一个对决令牌被重复提交
	ErrPairAlreadyUsed = errors.New("对决令牌已被使用")
	// ErrConflict 表示条件更新在重试次数内始终没有命中
	ErrConflict = errors.New("并发冲突")
)

// Battle 是一次对决的只追加记录
type Battle struct {
	ID       uint `gorm:"primaryKey"`
	Meme1ID  uint `gorm:"column:meme1_id;not null;index"`
	Meme2ID  uint `gorm:"column:meme2_id;not null;index"`
	WinnerID uint `gorm:"column:winner_id;not null"`
	// PairID 是提交时携带的对决令牌，没有令牌时为NULL
	// 唯一索引允许多个NULL，同一令牌只能被使用一次
	PairID    *string `gorm:"column:pair_id;uniqueIndex;size:64"`
	CreatedAt time.Time
}

// Submission 是一次对决结果的提交
type Submission struct {
	Meme1ID   uint   `json:"meme1_id" binding:"required"`
	Meme2ID   uint   `json:"meme2_id" binding:"required"`
	WinnerID  uint   `json:"winner_id" binding:"required"`
	PairID    string `json:"pair_id"`
	Signature string `json:"signature"`
}

// Validate 检查参数本身是否自洽，不访问数据库
func (s Submission) Validate() error {
	switch {
	case s.Meme1ID == 0 || s.Meme2ID == 0 || s.WinnerID == 0:
		return fmt.Errorf("%w: 缺少表情包ID", ErrInvalidBattle)
	case s.Meme1ID == s.Meme2ID:
		return fmt.Errorf("%w: 表情包不能与自己对决", ErrInvalidBattle)
	case s.WinnerID != s.Meme1ID && s.WinnerID != s.Meme2ID:
		return fmt.Errorf("%w: 胜者必须是参与对决的表情包之一", ErrInvalidBattle)
	}
	return nil
}

// LoserID 返回另一方的id，调用前必须先通过Validate
func (s Submission) LoserID() uint {
	if s.WinnerID == s.Meme1ID {
		return s.Meme2ID
	}
	return s.Meme1ID
}

// RatingChange 描述一个表情包在本次对决中的评分变化
type RatingChange struct {
	ID  uint `json:"id"`
	Old int  `json:"old"`
	New int  `json:"new"`
}

// Result 是一次成功提交的结果
type Result struct {
	BattleID uint         `json:"battle_id"`
	Winner   RatingChange `json:"winner"`
	Loser    RatingChange `json:"loser"`
}
