package battle

import (
	"context"

	"github.com/SlpAus/meme-arena-backend/internal/meme"
	"gorm.io/gorm"
)

// CountMismatch 是胜负场次之和与对决记录数不一致的表情包
type CountMismatch struct {
	MemeID   uint
	Recorded int
	Battles  int64
}

// AuditCounts 检查每个表情包的 wins+losses 是否等于它参与过的对决记录数
func AuditCounts(ctx context.Context, db *gorm.DB) ([]CountMismatch, error) {
	memes, err := meme.NewRepository(db).Leaderboard(ctx)
	if err != nil {
		return nil, err
	}

	battles := NewRepository(db)
	var out []CountMismatch
	for _, m := range memes {
		played, err := battles.CountForMeme(ctx, m.ID)
		if err != nil {
			return nil, err
		}
		if recorded := m.Wins + m.Losses; int64(recorded) != played {
			out = append(out, CountMismatch{MemeID: m.ID, Recorded: recorded, Battles: played})
		}
	}
	return out, nil
}
