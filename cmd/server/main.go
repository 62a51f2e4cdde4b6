package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/SlpAus/meme-arena-backend/api"
	"github.com/SlpAus/meme-arena-backend/internal/battle"
	"github.com/SlpAus/meme-arena-backend/internal/meme"
	"github.com/SlpAus/meme-arena-backend/internal/platform/config"
	"github.com/SlpAus/meme-arena-backend/internal/platform/database"
	"github.com/SlpAus/meme-arena-backend/internal/platform/health"
	"github.com/SlpAus/meme-arena-backend/internal/platform/logging"
	"github.com/SlpAus/meme-arena-backend/internal/platform/metrics"
	"github.com/SlpAus/meme-arena-backend/internal/platform/ratelimit"
	"github.com/SlpAus/meme-arena-backend/internal/platform/shutdown"
	"github.com/SlpAus/meme-arena-backend/internal/platform/startup"
	"github.com/SlpAus/meme-arena-backend/pkg/lifecycle"
	"github.com/SlpAus/meme-arena-backend/pkg/token"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

func main() {
	if err := run(); err != nil {
		slog.Error("服务启动失败", slog.Any("error", err))
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	logger := logging.Setup(cfg.Log)
	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}

	ctx := context.Background()

	signer, err := token.NewSigner(cfg.Battle.PairTokenSecret)
	if err != nil {
		return err
	}
	if cfg.Battle.PairTokenSecret == "" {
		slog.Warn("未配置 battle.pairTokenSecret，使用随机密钥，重启后已下发的对决令牌全部失效")
	}

	// 1. 连接数据库和Redis
	db, err := database.Open(cfg.Database)
	if err != nil {
		return err
	}
	closers := []func() error{func() error { return database.Close(db) }}

	var rdb *redis.Client
	var cache *meme.RankingCache
	if cfg.Database.Redis.Enabled() {
		rdb, err = database.OpenRedis(ctx, cfg.Database.Redis)
		if err != nil {
			return err
		}
		closers = append(closers, rdb.Close)
		cache = meme.NewRankingCache(rdb)
	} else {
		slog.Info("未配置Redis，排行榜直接读取数据库")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// 2. 执行应用启动初始化流程
	memes := meme.NewService(meme.NewRepository(db), cache, signer, m)
	if err := startup.InitializeApplication(ctx, db, memes, cfg.Seed.Defaults); err != nil {
		return err
	}

	// 3. 启动后台的Redis健康检查器
	services := lifecycle.NewManager()
	var checker *health.Checker
	if rdb != nil {
		checker = health.NewChecker(rdb, startup.RebuildCache(memes))
		if err := checker.Initialize(ctx); err != nil {
			return err
		}
		checker.PerformCheck(ctx)
		if err := services.Go("redis-health-checker", checker.Run); err != nil {
			return err
		}
	}

	// 4. 组装HTTP服务
	battles := battle.NewService(db, memes, signer, battle.Options{
		RequirePairToken: cfg.Battle.RequirePairToken,
		MaxRetries:       cfg.Battle.MaxRetries,
	}, m)

	handlers := api.Handlers{
		Memes:   meme.NewHandler(memes),
		Battles: battle.NewHandler(battles),
		Health:  health.Handler(db, checker),
	}
	if cfg.Server.RateLimit.PerSecond > 0 {
		handlers.Limiter = ratelimit.New(cfg.Server.RateLimit.PerSecond, cfg.Server.RateLimit.Burst)
	}
	if cfg.Server.Metrics {
		handlers.Metrics = promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
	}

	server := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           api.NewRouter(cfg.Server, logger, handlers),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		slog.Info("服务器已准备就绪，开始监听", slog.String("address", cfg.Server.Address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP服务器异常退出", slog.Any("error", err))
			cancel()
		}
	}()

	shutdown.NewCoordinator(server, services, closers...).ListenForSignals(serveCtx)
	return nil
}
