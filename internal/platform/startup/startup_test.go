package startup

import (
	"context"
	"testing"

	"github.com/SlpAus/meme-arena-backend/internal/battle"
	"github.com/SlpAus/meme-arena-backend/internal/meme"
	"github.com/SlpAus/meme-arena-backend/internal/platform/metadata"
	"github.com/SlpAus/meme-arena-backend/internal/platform/metrics"
	"github.com/SlpAus/meme-arena-backend/internal/testutil"
	"github.com/SlpAus/meme-arena-backend/pkg/token"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newMemeService(t *testing.T, db *gorm.DB, withCache bool) (*meme.Service, *meme.RankingCache) {
	t.Helper()
	testutil.ResetCacheStatus(t)
	signer, err := token.NewSigner("secret")
	require.NoError(t, err)

	var cache *meme.RankingCache
	if withCache {
		_, rdb := testutil.NewTestRedis(t)
		cache = meme.NewRankingCache(rdb)
	}
	return meme.NewService(meme.NewRepository(db), cache, signer, metrics.New(prometheus.NewRegistry())), cache
}

func TestInitializeApplication(t *testing.T) {
	db := testutil.NewTestDB(t)
	memes, cache := newMemeService(t, db, true)
	ctx := context.Background()

	require.NoError(t, InitializeApplication(ctx, db, memes, true))

	n, err := memes.Repository().Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)

	seededAt, err := metadata.GetTime(db, metadata.SeededAtKey)
	require.NoError(t, err)
	assert.False(t, seededAt.IsZero())

	rows, err := cache.Leaderboard(ctx)
	require.NoError(t, err)
	assert.Len(t, rows, 5)

	// 第二次启动不会重复写入
	require.NoError(t, InitializeApplication(ctx, db, memes, true))
	n, err = memes.Repository().Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)
}

func TestInitializeApplication_WithoutSeed(t *testing.T) {
	db := testutil.NewTestDB(t)
	memes, _ := newMemeService(t, db, false)

	require.NoError(t, InitializeApplication(context.Background(), db, memes, false))
	n, err := memes.Repository().Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.True(t, db.Migrator().HasTable(&battle.Battle{}))
}

func TestResetDatabase(t *testing.T) {
	db := testutil.NewTestDB(t)
	memes, _ := newMemeService(t, db, false)
	ctx := context.Background()
	require.NoError(t, InitializeApplication(ctx, db, memes, true))
	require.NoError(t, db.Create(&battle.Battle{Meme1ID: 1, Meme2ID: 2, WinnerID: 1}).Error)

	require.NoError(t, ResetDatabase(db))

	var memeCount, battleCount int64
	require.NoError(t, db.Model(&meme.Meme{}).Count(&memeCount).Error)
	require.NoError(t, db.Model(&battle.Battle{}).Count(&battleCount).Error)
	assert.Zero(t, memeCount)
	assert.Zero(t, battleCount)

	seededAt, err := metadata.GetTime(db, metadata.SeededAtKey)
	require.NoError(t, err)
	assert.True(t, seededAt.IsZero())
}

func TestRebuildCache(t *testing.T) {
	db := testutil.NewTestDB(t)
	memes, cache := newMemeService(t, db, true)
	ctx := context.Background()
	require.NoError(t, InitializeApplication(ctx, db, memes, true))

	require.NoError(t, db.Model(&meme.Meme{}).Where("id = ?", 3).Update("elo_score", 1700).Error)
	require.NoError(t, RebuildCache(memes)(ctx))

	rows, err := cache.Leaderboard(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, rows)
	assert.Equal(t, uint(3), rows[0].ID)
	assert.Equal(t, 1700, rows[0].EloScore)
}
