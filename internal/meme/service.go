package meme

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/SlpAus/meme-arena-backend/internal/platform/database"
	"github.com/SlpAus/meme-arena-backend/internal/platform/metrics"
	"github.com/SlpAus/meme-arena-backend/pkg/token"
	"github.com/google/uuid"
)

// Pair 是一次对决的两个候选以及对应的签名令牌
type Pair struct {
	Memes     []Summary
	PairID    string
	Signature string
}

// Service 组合了数据库仓库和可选的Redis缓存
type Service struct {
	repo    *Repository
	cache   *RankingCache
	signer  *token.Signer
	metrics *metrics.Metrics
}

// NewService 创建meme服务，cache为nil表示没有配置Redis
func NewService(repo *Repository, cache *RankingCache, signer *token.Signer, m *metrics.Metrics) *Service {
	return &Service{repo: repo, cache: cache, signer: signer, metrics: m}
}

func (s *Service) Repository() *Repository {
	return s.repo
}

// BattlePair 随机选出两个不同的表情包。
// exclude通常是上一轮的两个id，剩余数量不足两个时忽略它。
// 表情包总数不足两个时返回空的Memes。
func (s *Service) BattlePair(ctx context.Context, exclude []uint) (*Pair, error) {
	memes, err := s.repo.RandomPair(ctx, exclude)
	if err != nil {
		return nil, err
	}
	if len(memes) < 2 && len(exclude) > 0 {
		memes, err = s.repo.RandomPair(ctx, nil)
		if err != nil {
			return nil, err
		}
	}
	if len(memes) < 2 {
		return &Pair{Memes: []Summary{}}, nil
	}

	pairID, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("无法生成对决ID: %w", err)
	}
	signature, err := s.signer.Sign(token.NewPairPayload(pairID.String(), memes[0].ID, memes[1].ID))
	if err != nil {
		return nil, fmt.Errorf("无法为对决签名: %w", err)
	}

	s.metrics.PairsServed.Inc()
	return &Pair{
		Memes:     []Summary{memes[0].ToSummary(), memes[1].ToSummary()},
		PairID:    pairID.String(),
		Signature: signature,
	}, nil
}

// Leaderboard 返回完整排行榜。
// Redis可用时读缓存，缓存读取失败时标记过期并回退到数据库。
func (s *Service) Leaderboard(ctx context.Context) ([]RankedSummary, error) {
	if s.cache != nil && database.IsRedisHealthy() {
		summaries, err := s.cache.Leaderboard(ctx)
		if err == nil {
			s.metrics.LeaderboardReads.WithLabelValues(metrics.SourceCache).Inc()
			return withRanks(summaries), nil
		}
		slog.Warn("读取排行榜缓存失败，回退到数据库", slog.Any("error", err))
		database.MarkCacheStale()
	}

	memes, err := s.repo.Leaderboard(ctx)
	if err != nil {
		return nil, err
	}
	s.metrics.LeaderboardReads.WithLabelValues(metrics.SourceDatabase).Inc()

	summaries := make([]Summary, len(memes))
	for i := range memes {
		summaries[i] = memes[i].ToSummary()
	}
	return withRanks(summaries), nil
}

func withRanks(summaries []Summary) []RankedSummary {
	out := make([]RankedSummary, len(summaries))
	for i, s := range summaries {
		out[i] = RankedSummary{Rank: i + 1, Summary: s}
	}
	return out
}

// GetByID 返回单个表情包，不存在时返回ErrMemeNotFound
func (s *Service) GetByID(ctx context.Context, id uint) (*Summary, error) {
	m, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	summary := m.ToSummary()
	return &summary, nil
}

// WarmupCache 用数据库中的全部表情包重建Redis缓存
func (s *Service) WarmupCache(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	memes, err := s.repo.Leaderboard(ctx)
	if err != nil {
		return err
	}
	if err := s.cache.Warmup(ctx, memes); err != nil {
		s.metrics.CacheRebuilds.WithLabelValues("failure").Inc()
		return err
	}
	s.metrics.CacheRebuilds.WithLabelValues("success").Inc()
	slog.Info("排行榜缓存预热完成", slog.Int("count", len(memes)))
	return nil
}

// RefreshCache 在对决提交后更新两个表情包的缓存条目。
// 失败不影响已提交的结果，只把缓存标记为过期等待健康检查器重建。
func (s *Service) RefreshCache(ctx context.Context, memes ...*Meme) {
	if s.cache == nil {
		return
	}
	if !database.IsRedisHealthy() {
		// 不可用期间的写入会丢失，恢复后需要整体重建
		database.MarkCacheStale()
		return
	}
	written, err := s.cache.Put(ctx, memes...)
	if err != nil {
		slog.Warn("更新排行榜缓存失败", slog.Any("error", err))
		database.MarkCacheStale()
		return
	}
	if written < len(memes) {
		slog.Debug("缓存中已有更新的版本，跳过旧数据", slog.Int("skipped", len(memes)-written))
	}
}
