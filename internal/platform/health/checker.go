package health

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/SlpAus/meme-arena-backend/internal/platform/database"
	"github.com/SlpAus/meme-arena-backend/pkg/lifecycle"
	"github.com/redis/go-redis/v9"
)

const (
	checkInterval = 5 * time.Second
	pingTimeout   = 2 * time.Second
)

var runIDPattern = regexp.MustCompile(`run_id:([a-f0-9]+)`)

// RebuildFunc 从数据库重建Redis中的全部缓存
type RebuildFunc func(ctx context.Context) error

// Checker 定期检查Redis，并在它重启或缓存过期时重建缓存。
// 检查结果同步到database包的全局缓存状态，供读路径判断是否回退到数据库。
type Checker struct {
	status   statusManager
	rebuild  RebuildFunc
	runID    func(ctx context.Context) (string, error)
	interval time.Duration
}

func NewChecker(rdb *redis.Client, rebuild RebuildFunc) *Checker {
	return &Checker{
		rebuild:  rebuild,
		runID:    redisRunID(rdb),
		interval: checkInterval,
	}
}

// redisRunID 从INFO server中提取run_id，Redis每次重启后它都会变化
func redisRunID(rdb *redis.Client) func(ctx context.Context) (string, error) {
	return func(ctx context.Context) (string, error) {
		ctx, cancel := context.WithTimeout(ctx, pingTimeout)
		defer cancel()
		info, err := rdb.Info(ctx, "server").Result()
		if err != nil {
			return "", err
		}
		matches := runIDPattern.FindStringSubmatch(info)
		if len(matches) < 2 {
			return "", fmt.Errorf("无法在Redis INFO中找到run_id")
		}
		return matches[1], nil
	}
}

// State 返回当前的缓存健康状态
func (c *Checker) State() State {
	return c.status.state()
}

// Initialize 在启动时获取初始的run_id
func (c *Checker) Initialize(ctx context.Context) error {
	runID, err := c.runID(ctx)
	if err != nil {
		return fmt.Errorf("无法获取Redis Run ID: %w", err)
	}
	c.status.setInitialRunID(runID)
	slog.Info("获取初始Redis Run ID成功", slog.String("run_id", runID))
	return nil
}

// PerformCheck 执行一次完整的健康检查和可能的修复操作
func (c *Checker) PerformCheck(ctx context.Context) {
	runID, err := c.runID(ctx)
	connected := err == nil

	if c.status.assess(connected, runID, database.IsCacheStale()) {
		database.SetRedisHealthy(false)
		// 先清除过期标记，重建期间新产生的过期会留到下一轮处理
		database.ClearCacheStale()

		rebuildErr := c.rebuild(ctx)
		if rebuildErr != nil {
			slog.Error("健康检查: 缓存热重建失败", slog.Any("error", rebuildErr))
		}
		after, err := c.runID(ctx)
		if err != nil {
			slog.Error("健康检查: 缓存重建后无法连接到Redis，重建无效")
		}
		c.status.markRebuildComplete(rebuildErr == nil && err == nil, after)
	}

	database.SetRedisHealthy(c.State() == StateHealthy)
}

// Run 是后台循环，直到生命周期句柄收到停机信号
func (c *Checker) Run(h *lifecycle.Handle) {
	slog.Info("Redis健康检查器已启动", slog.Duration("interval", c.interval))
	for {
		if err := h.Sleep(c.interval); err != nil {
			slog.Info("Redis健康检查器已停止")
			return
		}
		c.PerformCheck(h.Ctx())
	}
}
