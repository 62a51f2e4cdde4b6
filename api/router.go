package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/SlpAus/meme-arena-backend/internal/battle"
	"github.com/SlpAus/meme-arena-backend/internal/meme"
	"github.com/SlpAus/meme-arena-backend/internal/platform/config"
	"github.com/SlpAus/meme-arena-backend/internal/platform/logging"
	"github.com/SlpAus/meme-arena-backend/internal/platform/ratelimit"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Handlers 汇总了路由需要的所有处理器
type Handlers struct {
	Memes   *meme.Handler
	Battles *battle.Handler
	Health  gin.HandlerFunc
	// Limiter 为nil时不限流
	Limiter *ratelimit.IPRateLimiter
	// Metrics 为nil时不注册 /metrics
	Metrics http.Handler
}

// NewRouter 创建gin引擎并挂载中间件
func NewRouter(cfg config.ServerConfig, logger *slog.Logger, h Handlers) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), logging.GinMiddleware(logger))
	corsConfig := cors.Config{
		AllowOrigins:     cfg.Cors.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", meme.HeaderPairID, meme.HeaderPairSignature},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.Cors.AllowedOrigins) == 0 {
		corsConfig.AllowOrigins = nil
		corsConfig.AllowAllOrigins = true
		corsConfig.AllowCredentials = false
	}
	r.Use(cors.New(corsConfig))

	SetupRoutes(r, h)
	return r
}

// SetupRoutes 注册项目的所有API路由
func SetupRoutes(router *gin.Engine, h Handlers) {
	router.GET("/health", h.Health)
	if h.Metrics != nil {
		router.GET("/metrics", gin.WrapH(h.Metrics))
	}

	api := router.Group("/api")
	{
		// 表情包相关的路由
		api.GET("/battle-pair", h.Memes.GetBattlePair)
		api.GET("/leaderboard", h.Memes.GetLeaderboard)
		api.GET("/memes/:id", h.Memes.GetMemeByID)
		api.POST("/init", h.Memes.InitDatabase)

		// 对决结果提交，按IP限流
		submit := []gin.HandlerFunc{h.Battles.SubmitResult}
		if h.Limiter != nil {
			submit = append([]gin.HandlerFunc{h.Limiter.Middleware()}, submit...)
		}
		api.POST("/battle-result", submit...)
	}
}
