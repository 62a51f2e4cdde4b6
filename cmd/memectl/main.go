package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/SlpAus/meme-arena-backend/internal/battle"
	"github.com/SlpAus/meme-arena-backend/internal/meme"
	"github.com/SlpAus/meme-arena-backend/internal/memesync"
	"github.com/SlpAus/meme-arena-backend/internal/platform/config"
	"github.com/SlpAus/meme-arena-backend/internal/platform/database"
	"github.com/SlpAus/meme-arena-backend/internal/platform/logging"
	"github.com/SlpAus/meme-arena-backend/internal/platform/metadata"
	"github.com/SlpAus/meme-arena-backend/internal/platform/startup"
	"github.com/urfave/cli/v2"
	"gorm.io/gorm"
)

// env 是每个子命令共用的连接
type env struct {
	db    *gorm.DB
	cache *meme.RankingCache
	close func()
}

func open(c *cli.Context) (*env, error) {
	cfg, err := config.LoadConfig(c.StringSlice("config")...)
	if err != nil {
		return nil, err
	}
	logging.Setup(cfg.Log)

	db, err := database.Open(cfg.Database)
	if err != nil {
		return nil, err
	}
	e := &env{db: db, close: func() { _ = database.Close(db) }}

	if cfg.Database.Redis.Enabled() {
		rdb, err := database.OpenRedis(c.Context, cfg.Database.Redis)
		if err != nil {
			// 缓存不可用不影响数据库操作，服务端的健康检查会在Redis恢复后重建
			slog.Warn("无法连接Redis，跳过缓存刷新", slog.Any("error", err))
			return e, nil
		}
		e.cache = meme.NewRankingCache(rdb)
		e.close = func() {
			_ = rdb.Close()
			_ = database.Close(db)
		}
	}
	return e, nil
}

// refreshCache 用数据库中的当前内容重建排行榜缓存
func (e *env) refreshCache(ctx context.Context) error {
	if e.cache == nil {
		return nil
	}
	memes, err := meme.NewRepository(e.db).Leaderboard(ctx)
	if err != nil {
		return err
	}
	if err := e.cache.Warmup(ctx, memes); err != nil {
		return err
	}
	fmt.Printf("排行榜缓存已重建，共 %d 个表情包\n", len(memes))
	return nil
}

// withEnv 为子命令打开连接并在结束后关闭
func withEnv(action func(c *cli.Context, e *env) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		e, err := open(c)
		if err != nil {
			return err
		}
		defer e.close()
		return action(c, e)
	}
}

func main() {
	app := &cli.App{
		Name:  "memectl",
		Usage: "meme arena 数据库维护工具",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:  "config",
				Usage: "查找 config.yaml 的目录，可重复",
			},
		},
		Commands: []*cli.Command{
			initCommand(),
			resetCommand(),
			syncCommand(),
			replayCommand(),
			statusCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		slog.Error("命令执行失败", slog.Any("error", err))
		os.Exit(1)
	}
}

func initCommand() *cli.Command {
	return &cli.Command{
		Name:  "init",
		Usage: "迁移表结构，表为空时写入默认表情包",
		Action: withEnv(func(c *cli.Context, e *env) error {
			if err := startup.MigrateAll(e.db); err != nil {
				return err
			}
			inserted, err := startup.SeedDefaults(c.Context, e.db)
			if err != nil {
				return err
			}
			fmt.Printf("初始化完成，写入 %d 个默认表情包\n", inserted)
			return e.refreshCache(c.Context)
		}),
	}
}

func resetCommand() *cli.Command {
	return &cli.Command{
		Name:  "reset",
		Usage: "删除并重建所有表，清空评分和对决记录",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "yes", Usage: "确认执行"},
			&cli.BoolFlag{Name: "seed", Usage: "重建后写入默认表情包"},
		},
		Action: withEnv(func(c *cli.Context, e *env) error {
			if !c.Bool("yes") {
				return errors.New("reset 会删除所有数据，请加上 --yes 确认")
			}
			if err := startup.ResetDatabase(e.db); err != nil {
				return err
			}
			if c.Bool("seed") {
				inserted, err := startup.SeedDefaults(c.Context, e.db)
				if err != nil {
					return err
				}
				fmt.Printf("写入 %d 个默认表情包\n", inserted)
			}
			fmt.Println("数据库已重置")
			return e.refreshCache(c.Context)
		}),
	}
}

func syncCommand() *cli.Command {
	return &cli.Command{
		Name:      "sync",
		Usage:     "把markdown文件同步到memes表",
		ArgsUsage: "<文件或目录>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "root", Value: "data", Usage: "内容根目录，uid是文件相对它的路径"},
		},
		Action: withEnv(func(c *cli.Context, e *env) error {
			target := c.Args().First()
			if target == "" {
				target = c.String("root")
			}
			if err := startup.MigrateAll(e.db); err != nil {
				return err
			}

			result, err := memesync.NewSyncer(e.db, c.String("root")).Run(c.Context, target)
			if err != nil {
				return err
			}
			fmt.Printf("同步完成: 成功 %d (新建 %d), 失败 %d\n", result.Success, result.Created, result.Failed)
			for _, msg := range result.Errors {
				fmt.Printf("  - %s\n", msg)
			}

			if err := e.refreshCache(c.Context); err != nil {
				return err
			}
			if result.Failed > 0 {
				return cli.Exit("", 1)
			}
			return nil
		}),
	}
}

func replayCommand() *cli.Command {
	return &cli.Command{
		Name:  "replay",
		Usage: "按对决记录重放评分，报告或修复与库中不一致的表情包",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "apply", Usage: "把重放结果写回数据库"},
		},
		Action: withEnv(func(c *cli.Context, e *env) error {
			report, err := battle.Replay(c.Context, e.db, c.Bool("apply"))
			if err != nil {
				return err
			}
			fmt.Printf("重放 %d 场对决，跳过 %d 场\n", report.Battles, report.Orphaned)
			for _, d := range report.Drifts {
				fmt.Printf("  表情包 %d: 库中 %d (%d胜%d负)，重放 %d (%d胜%d负)\n",
					d.MemeID,
					d.Stored.EloScore, d.Stored.Wins, d.Stored.Losses,
					d.Replayed.EloScore, d.Replayed.Wins, d.Replayed.Losses)
			}
			if len(report.Drifts) == 0 {
				fmt.Println("没有发现差异")
				return nil
			}
			if !report.Applied {
				fmt.Println("加上 --apply 写回重放结果")
				return nil
			}
			return e.refreshCache(c.Context)
		}),
	}
}

func statusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "打印表情包数量、最近一次同步信息，并核对胜负场次",
		Action: withEnv(func(c *cli.Context, e *env) error {
			count, err := meme.NewRepository(e.db).Count(c.Context)
			if err != nil {
				return err
			}
			seededAt, err := metadata.GetTime(e.db, metadata.SeededAtKey)
			if err != nil {
				return err
			}
			syncedAt, err := metadata.GetTime(e.db, metadata.LastSyncAtKey)
			if err != nil {
				return err
			}
			synced, err := metadata.GetInt(e.db, metadata.LastSyncCountKey)
			if err != nil {
				return err
			}

			fmt.Printf("表情包数量: %d\n", count)
			fmt.Printf("默认数据写入时间: %s\n", formatTime(seededAt))
			fmt.Printf("最近同步: %s (%d 个)\n", formatTime(syncedAt), synced)

			mismatches, err := battle.AuditCounts(c.Context, e.db)
			if err != nil {
				return err
			}
			if len(mismatches) == 0 {
				fmt.Println("胜负场次与对决记录一致")
				return nil
			}
			for _, m := range mismatches {
				fmt.Printf("  表情包 %d: 胜负合计 %d，对决记录 %d\n", m.MemeID, m.Recorded, m.Battles)
			}
			fmt.Println("场次不一致，可以用 replay --apply 修复")
			return nil
		}),
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "无"
	}
	return t.Local().Format(time.DateTime)
}
