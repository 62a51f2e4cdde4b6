package battle

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/SlpAus/meme-arena-backend/internal/elo"
	"github.com/SlpAus/meme-arena-backend/internal/meme"
	"gorm.io/gorm"
)

// Standing 是一个表情包的评分和场次
type Standing struct {
	EloScore int
	Wins     int
	Losses   int
}

// Drift 记录库中的数值与按对决记录重放得到的数值不一致的表情包
type Drift struct {
	MemeID   uint
	Stored   Standing
	Replayed Standing
}

// ReplayReport 汇总一次重放
type ReplayReport struct {
	Battles int
	// Orphaned 是引用了已不存在的表情包的对决数，这些记录被跳过
	Orphaned int
	Drifts   []Drift
	Applied  bool
}

// Replay 从初始分数开始按id顺序重放全部对决记录，得到每个表情包应有的评分和场次
// apply为false时只报告差异，为true时在同一个事务内把差异写回memes表
func Replay(ctx context.Context, db *gorm.DB, apply bool) (*ReplayReport, error) {
	report := &ReplayReport{}

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var memes []meme.Meme
		if err := tx.Order("id asc").Find(&memes).Error; err != nil {
			return fmt.Errorf("读取表情包失败: %w", err)
		}
		standings := make(map[uint]*Standing, len(memes))
		for _, m := range memes {
			standings[m.ID] = &Standing{EloScore: elo.DefaultRating}
		}

		var battles []Battle
		if err := tx.Order("id asc").Find(&battles).Error; err != nil {
			return fmt.Errorf("读取对决记录失败: %w", err)
		}
		for _, b := range battles {
			loserID := b.Meme1ID
			if b.WinnerID == b.Meme1ID {
				loserID = b.Meme2ID
			}
			w, okW := standings[b.WinnerID]
			l, okL := standings[loserID]
			if !okW || !okL {
				report.Orphaned++
				continue
			}
			w.EloScore, l.EloScore = elo.Update(w.EloScore, l.EloScore)
			w.Wins++
			l.Losses++
			report.Battles++
		}

		for _, m := range memes {
			stored := Standing{EloScore: m.EloScore, Wins: m.Wins, Losses: m.Losses}
			replayed := *standings[m.ID]
			if stored != replayed {
				report.Drifts = append(report.Drifts, Drift{MemeID: m.ID, Stored: stored, Replayed: replayed})
			}
		}

		if !apply {
			return nil
		}
		for _, d := range report.Drifts {
			err := tx.Model(&meme.Meme{}).Where("id = ?", d.MemeID).Updates(map[string]any{
				"elo_score": d.Replayed.EloScore,
				"wins":      d.Replayed.Wins,
				"losses":    d.Replayed.Losses,
			}).Error
			if err != nil {
				return fmt.Errorf("写回表情包 %d 失败: %w", d.MemeID, err)
			}
		}
		report.Applied = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("对决记录重放完成",
		slog.Int("battles", report.Battles),
		slog.Int("orphaned", report.Orphaned),
		slog.Int("drifts", len(report.Drifts)),
		slog.Bool("applied", report.Applied))
	return report, nil
}
