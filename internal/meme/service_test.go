package meme

import (
	"context"
	"testing"

	"github.com/SlpAus/meme-arena-backend/internal/platform/database"
	"github.com/SlpAus/meme-arena-backend/internal/platform/metrics"
	"github.com/SlpAus/meme-arena-backend/internal/testutil"
	"github.com/SlpAus/meme-arena-backend/pkg/token"
	"github.com/prometheus/client_golang/prometheus"
	prom "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fixture struct {
	db      *gorm.DB
	svc     *Service
	cache   *RankingCache
	signer  *token.Signer
	metrics *metrics.Metrics
}

func newFixture(t *testing.T, withCache bool) *fixture {
	t.Helper()
	testutil.ResetCacheStatus(t)

	db := testutil.NewTestDB(t, &Meme{})
	signer, err := token.NewSigner("test-secret")
	require.NoError(t, err)
	m := metrics.New(prometheus.NewRegistry())

	var cache *RankingCache
	if withCache {
		_, rdb := testutil.NewTestRedis(t)
		cache = NewRankingCache(rdb)
	}
	return &fixture{
		db:      db,
		svc:     NewService(NewRepository(db), cache, signer, m),
		cache:   cache,
		signer:  signer,
		metrics: m,
	}
}

func TestService_BattlePair(t *testing.T) {
	f := newFixture(t, false)
	for _, uid := range []string{"a", "b", "c", "d", "e"} {
		createMeme(t, f.db, uid, 1500)
	}

	pair, err := f.svc.BattlePair(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, pair.Memes, 2)
	assert.NotEqual(t, pair.Memes[0].ID, pair.Memes[1].ID)
	assert.NotEmpty(t, pair.PairID)

	payload := token.NewPairPayload(pair.PairID, pair.Memes[1].ID, pair.Memes[0].ID)
	assert.True(t, f.signer.Verify(payload, pair.Signature))
	assert.Equal(t, 1.0, prom.ToFloat64(f.metrics.PairsServed))
}

func TestService_BattlePair_Exclude(t *testing.T) {
	f := newFixture(t, false)
	for _, uid := range []string{"a", "b", "c", "d"} {
		createMeme(t, f.db, uid, 1500)
	}

	for i := 0; i < 10; i++ {
		pair, err := f.svc.BattlePair(context.Background(), []uint{1, 2})
		require.NoError(t, err)
		require.Len(t, pair.Memes, 2)
		assert.ElementsMatch(t, []uint{3, 4}, []uint{pair.Memes[0].ID, pair.Memes[1].ID})
	}
}

func TestService_BattlePair_ExcludeIgnoredWhenTooFewRemain(t *testing.T) {
	f := newFixture(t, false)
	for _, uid := range []string{"a", "b", "c"} {
		createMeme(t, f.db, uid, 1500)
	}

	pair, err := f.svc.BattlePair(context.Background(), []uint{1, 2})
	require.NoError(t, err)
	require.Len(t, pair.Memes, 2)
	assert.NotEqual(t, pair.Memes[0].ID, pair.Memes[1].ID)
}

func TestService_BattlePair_NotEnoughMemes(t *testing.T) {
	f := newFixture(t, false)

	pair, err := f.svc.BattlePair(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, pair.Memes)
	assert.Empty(t, pair.PairID)

	createMeme(t, f.db, "only", 1500)
	pair, err = f.svc.BattlePair(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, pair.Memes)
	assert.Zero(t, prom.ToFloat64(f.metrics.PairsServed))
}

func TestService_Leaderboard_FromDatabase(t *testing.T) {
	f := newFixture(t, false)
	createMeme(t, f.db, "b", 1480)
	createMeme(t, f.db, "a", 1520)

	rows, err := f.svc.Leaderboard(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, 1, rows[0].Rank)
	assert.Equal(t, "a", rows[0].Name)
	assert.Equal(t, 2, rows[1].Rank)
	assert.Equal(t, 1480, rows[1].EloScore)
	assert.Equal(t, 1.0, prom.ToFloat64(f.metrics.LeaderboardReads.WithLabelValues(metrics.SourceDatabase)))
}

func TestService_Leaderboard_FromCache(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	createMeme(t, f.db, "a", 1500)
	createMeme(t, f.db, "b", 1500)
	createMeme(t, f.db, "c", 1600)
	require.NoError(t, f.svc.WarmupCache(ctx))

	// 直接改库不经过缓存，读到的仍是缓存中的旧数据
	require.NoError(t, f.db.Model(&Meme{}).Where("uid = ?", "a").Update("elo_score", 2000).Error)

	rows, err := f.svc.Leaderboard(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"c", "a", "b"}, []string{rows[0].Name, rows[1].Name, rows[2].Name})
	assert.Equal(t, 1500, rows[1].EloScore)
	assert.Equal(t, 1.0, prom.ToFloat64(f.metrics.LeaderboardReads.WithLabelValues(metrics.SourceCache)))
	assert.Equal(t, 1.0, prom.ToFloat64(f.metrics.CacheRebuilds.WithLabelValues("success")))
}

func TestService_Leaderboard_UnhealthyCacheFallsBack(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	createMeme(t, f.db, "a", 1500)
	require.NoError(t, f.svc.WarmupCache(ctx))
	require.NoError(t, f.db.Model(&Meme{}).Where("uid = ?", "a").Update("elo_score", 1700).Error)

	database.SetRedisHealthy(false)

	rows, err := f.svc.Leaderboard(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 1700, rows[0].EloScore)
}

func TestService_Leaderboard_BrokenCacheMarksStale(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	createMeme(t, f.db, "a", 1500)
	createMeme(t, f.db, "b", 1600)
	require.NoError(t, f.svc.WarmupCache(ctx))
	require.NoError(t, f.cache.rdb.Del(ctx, SummaryKey).Err())

	rows, err := f.svc.Leaderboard(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "b", rows[0].Name)
	assert.True(t, database.IsCacheStale())
}

func TestService_RefreshCache(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	a := createMeme(t, f.db, "a", 1500)
	b := createMeme(t, f.db, "b", 1500)
	require.NoError(t, f.svc.WarmupCache(ctx))

	a.EloScore, a.Losses = 1484, 1
	b.EloScore, b.Wins = 1516, 1
	f.svc.RefreshCache(ctx, a, b)
	assert.False(t, database.IsCacheStale())

	rows, err := f.svc.Leaderboard(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "b", rows[0].Name)
	assert.Equal(t, 1, rows[0].Wins)
	assert.Equal(t, 1484, rows[1].EloScore)
}

func TestService_RefreshCache_WhileUnhealthyMarksStale(t *testing.T) {
	f := newFixture(t, true)
	a := createMeme(t, f.db, "a", 1500)

	database.SetRedisHealthy(false)
	f.svc.RefreshCache(context.Background(), a)
	assert.True(t, database.IsCacheStale())
}

func TestService_GetByID(t *testing.T) {
	f := newFixture(t, false)
	m := createMeme(t, f.db, "a", 1530)

	got, err := f.svc.GetByID(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Equal(t, 1530, got.EloScore)

	_, err = f.svc.GetByID(context.Background(), 42)
	assert.ErrorIs(t, err, ErrMemeNotFound)
}

func TestService_RefreshCache_OlderSnapshotLandingLastIsIgnored(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	a := createMeme(t, f.db, "a", 1500)
	require.NoError(t, f.svc.WarmupCache(ctx))

	older := *a
	older.EloScore, older.Wins = 1516, 1
	newer := *a
	newer.EloScore, newer.Wins, newer.Losses = 1499, 1, 1

	f.svc.RefreshCache(ctx, &newer)
	f.svc.RefreshCache(ctx, &older)
	assert.False(t, database.IsCacheStale())

	rows, err := f.cache.Leaderboard(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 1499, rows[0].EloScore)
	assert.Equal(t, 1, rows[0].Losses)

	score, err := f.cache.rdb.ZScore(ctx, RankingKey, member(a.ID)).Result()
	require.NoError(t, err)
	assert.Equal(t, 1499.0, score)
}

func TestRankingCache_PutReportsWrittenEntries(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	a := createMeme(t, f.db, "a", 1500)
	b := createMeme(t, f.db, "b", 1500)
	require.NoError(t, f.svc.WarmupCache(ctx))

	// 版本与缓存相同，不写入
	n, err := f.cache.Put(ctx, a, b)
	require.NoError(t, err)
	assert.Zero(t, n)

	a.EloScore, a.Wins = 1516, 1
	n, err = f.cache.Put(ctx, a, b)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	v, err := f.cache.rdb.HGet(ctx, VersionKey, member(a.ID)).Int()
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}
