package meme

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// 排行榜缓存使用的Redis键名
const (
	// SummaryKey 是一个Redis Hash，id -> Summary的JSON
	SummaryKey = "meme_summary"
	// RankingKey 是一个Redis Sorted Set，按ELO分数排序
	RankingKey = "meme_ranking"
	// VersionKey 是一个Redis Hash，id -> 写入时的场次(wins+losses)
	VersionKey = "meme_version"
)

// ErrCacheIncomplete 表示排名集合中的成员在摘要Hash里找不到
var ErrCacheIncomplete = errors.New("排行榜缓存不完整")

// RankingCache 是排行榜在Redis中的副本，数据库始终是唯一的事实来源
type RankingCache struct {
	rdb *redis.Client
}

func NewRankingCache(rdb *redis.Client) *RankingCache {
	return &RankingCache{rdb: rdb}
}

// putScript 只在缓存中的版本比传入的旧时才写入，ARGV按 id, version, summary, score 四个一组
// 返回实际写入的条目数
var putScript = redis.NewScript(`
local written = 0
for i = 1, #ARGV, 4 do
	local id = ARGV[i]
	local version = tonumber(ARGV[i + 1])
	local current = tonumber(redis.call('HGET', KEYS[3], id) or '-1')
	if current < version then
		redis.call('HSET', KEYS[3], id, ARGV[i + 1])
		redis.call('HSET', KEYS[1], id, ARGV[i + 2])
		redis.call('ZADD', KEYS[2], ARGV[i + 3], id)
		written = written + 1
	end
end
return written
`)

func member(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

// version 是表情包的单调版本号，每场对决恰好让它加一
func version(m *Meme) int {
	return m.Wins + m.Losses
}

func (c *RankingCache) queue(ctx context.Context, pipe redis.Pipeliner, m *Meme) error {
	data, err := json.Marshal(m.ToSummary())
	if err != nil {
		return fmt.Errorf("无法序列化表情包 %d: %w", m.ID, err)
	}
	pipe.HSet(ctx, SummaryKey, member(m.ID), data)
	pipe.ZAdd(ctx, RankingKey, redis.Z{Score: float64(m.EloScore), Member: member(m.ID)})
	pipe.HSet(ctx, VersionKey, member(m.ID), version(m))
	return nil
}

// Warmup 清空缓存并用给定的全部表情包重建
func (c *RankingCache) Warmup(ctx context.Context, memes []Meme) error {
	pipe := c.rdb.TxPipeline()
	pipe.Del(ctx, SummaryKey, RankingKey, VersionKey)
	for i := range memes {
		if err := c.queue(ctx, pipe, &memes[i]); err != nil {
			return err
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("预热排行榜缓存失败: %w", err)
	}
	return nil
}

// Put 写入若干表情包的最新数据。
// 并发提交完成的顺序与提交顺序无关，版本不比缓存新的条目会被跳过，返回实际写入的条目数。
func (c *RankingCache) Put(ctx context.Context, memes ...*Meme) (int, error) {
	if len(memes) == 0 {
		return 0, nil
	}
	args := make([]any, 0, len(memes)*4)
	for _, m := range memes {
		data, err := json.Marshal(m.ToSummary())
		if err != nil {
			return 0, fmt.Errorf("无法序列化表情包 %d: %w", m.ID, err)
		}
		args = append(args, member(m.ID), version(m), string(data), m.EloScore)
	}
	written, err := putScript.Run(ctx, c.rdb, []string{SummaryKey, RankingKey, VersionKey}, args...).Int()
	if err != nil {
		return 0, fmt.Errorf("更新排行榜缓存失败: %w", err)
	}
	return written, nil
}

// Leaderboard 读取缓存中的完整排行榜，顺序与数据库查询一致
func (c *RankingCache) Leaderboard(ctx context.Context) ([]Summary, error) {
	ids, err := c.rdb.ZRevRange(ctx, RankingKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("读取排名集合失败: %w", err)
	}
	if len(ids) == 0 {
		return []Summary{}, nil
	}

	values, err := c.rdb.HMGet(ctx, SummaryKey, ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("读取表情包摘要失败: %w", err)
	}

	out := make([]Summary, 0, len(values))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("%w: 缺少 %s", ErrCacheIncomplete, ids[i])
		}
		var s Summary
		if err := json.Unmarshal([]byte(raw), &s); err != nil {
			return nil, fmt.Errorf("无法解析表情包摘要 %s: %w", ids[i], err)
		}
		out = append(out, s)
	}

	// 有序集合对同分成员按字典序倒排，这里改成id升序
	slices.SortStableFunc(out, func(a, b Summary) int {
		if a.EloScore != b.EloScore {
			return cmp.Compare(b.EloScore, a.EloScore)
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}
