package battle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/SlpAus/meme-arena-backend/internal/elo"
	"github.com/SlpAus/meme-arena-backend/internal/meme"
	"github.com/SlpAus/meme-arena-backend/internal/platform/database"
	"github.com/SlpAus/meme-arena-backend/internal/platform/metrics"
	"github.com/SlpAus/meme-arena-backend/pkg/token"
	"gorm.io/gorm"
)

// Options 控制对决提交的校验与重试
type Options struct {
	RequirePairToken bool
	MaxRetries       int
}

// Service 负责把一次对决结果原子地写入数据库
type Service struct {
	db      *gorm.DB
	memes   *meme.Service
	signer  *token.Signer
	opts    Options
	metrics *metrics.Metrics
}

func NewService(db *gorm.DB, memes *meme.Service, signer *token.Signer, opts Options, m *metrics.Metrics) *Service {
	if opts.MaxRetries < 1 {
		opts.MaxRetries = 1
	}
	return &Service{db: db, memes: memes, signer: signer, opts: opts, metrics: m}
}

// Submit 校验并记录一次对决结果。
// 两个评分更新和对决记录在同一个事务中完成，条件更新未命中时整个事务重试。
func (s *Service) Submit(ctx context.Context, sub Submission) (*Result, error) {
	if err := s.check(sub); err != nil {
		s.metrics.BattlesTotal.WithLabelValues(metrics.ResultInvalid).Inc()
		return nil, err
	}

	var (
		res           *Result
		winner, loser *meme.Meme
		err           error
	)
	for attempt := 1; ; attempt++ {
		res, winner, loser, err = s.apply(ctx, sub)
		if !errors.Is(err, ErrConflict) || attempt >= s.opts.MaxRetries {
			break
		}
		s.metrics.BattleRetries.Inc()
		slog.Debug("对决事务冲突，重试", slog.Int("attempt", attempt), slog.Any("error", err))
	}
	if err != nil {
		s.metrics.BattlesTotal.WithLabelValues(outcome(err)).Inc()
		return nil, err
	}

	s.memes.RefreshCache(ctx, winner, loser)
	s.metrics.BattlesTotal.WithLabelValues(metrics.ResultAccepted).Inc()
	s.metrics.RatingChange.Observe(elo.Change(res.Winner.Old, res.Loser.Old))
	slog.Debug("对决已记录",
		slog.Uint64("battle_id", uint64(res.BattleID)),
		slog.Uint64("winner", uint64(res.Winner.ID)),
		slog.Int("winner_new", res.Winner.New),
		slog.Uint64("loser", uint64(res.Loser.ID)),
		slog.Int("loser_new", res.Loser.New),
	)
	return res, nil
}

// check 完成所有不需要事务的校验
// 提交中带了令牌时总是校验，RequirePairToken只决定缺少令牌是否允许
func (s *Service) check(sub Submission) error {
	if err := sub.Validate(); err != nil {
		return err
	}
	if sub.PairID == "" && sub.Signature == "" {
		if s.opts.RequirePairToken {
			return fmt.Errorf("%w: 缺少令牌", ErrInvalidPairToken)
		}
		return nil
	}
	payload := token.NewPairPayload(sub.PairID, sub.Meme1ID, sub.Meme2ID)
	if !s.signer.Verify(payload, sub.Signature) {
		return fmt.Errorf("%w: 签名不匹配", ErrInvalidPairToken)
	}
	return nil
}

func (s *Service) apply(ctx context.Context, sub Submission) (*Result, *meme.Meme, *meme.Meme, error) {
	var (
		res           Result
		winner, loser *meme.Meme
	)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		memes := s.memes.Repository().WithTx(tx)
		battles := NewRepository(tx)

		var pairID *string
		if sub.PairID != "" {
			used, err := battles.PairUsed(ctx, sub.PairID)
			if err != nil {
				return err
			}
			if used {
				return ErrPairAlreadyUsed
			}
			pairID = &sub.PairID
		}

		w, l, err := memes.LockPair(ctx, sub.WinnerID, sub.LoserID())
		if err != nil {
			return err
		}

		oldWinner, oldLoser := w.EloScore, l.EloScore
		newWinner, newLoser := elo.Update(oldWinner, oldLoser)

		if err := memes.ApplyResult(ctx, w, newWinner, true); err != nil {
			return conflict(err)
		}
		if err := memes.ApplyResult(ctx, l, newLoser, false); err != nil {
			return conflict(err)
		}

		record := Battle{
			Meme1ID:  sub.Meme1ID,
			Meme2ID:  sub.Meme2ID,
			WinnerID: sub.WinnerID,
			PairID:   pairID,
		}
		if err := battles.Append(ctx, &record); err != nil {
			if database.IsDuplicateKeyError(err) {
				return ErrPairAlreadyUsed
			}
			return err
		}

		res = Result{
			BattleID: record.ID,
			Winner:   RatingChange{ID: w.ID, Old: oldWinner, New: newWinner},
			Loser:    RatingChange{ID: l.ID, Old: oldLoser, New: newLoser},
		}
		winner, loser = w, l
		return nil
	})
	if err != nil {
		return nil, nil, nil, err
	}
	return &res, winner, loser, nil
}

func conflict(err error) error {
	if errors.Is(err, meme.ErrStaleRow) {
		return fmt.Errorf("%w: %w", ErrConflict, err)
	}
	return err
}

func outcome(err error) string {
	switch {
	case errors.Is(err, meme.ErrMemeNotFound):
		return metrics.ResultNotFound
	case errors.Is(err, ErrConflict):
		return metrics.ResultConflict
	case errors.Is(err, ErrPairAlreadyUsed):
		return metrics.ResultInvalid
	default:
		return metrics.ResultError
	}
}
