package meme

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/SlpAus/meme-arena-backend/internal/platform/database"
	"github.com/gin-gonic/gin"
)

// 对决令牌通过响应头下发
const (
	HeaderPairID        = "X-Pair-Id"
	HeaderPairSignature = "X-Pair-Signature"
)

const maxExclude = 2

// Handler 提供meme相关的HTTP接口
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// parseID 解析一个正整数id
func parseID(raw string) (uint, bool) {
	id, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 0)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

// parseExclude 同时支持 ?exclude=1&exclude=2 和 ?exclude=1,2
func parseExclude(values []string) ([]uint, bool) {
	var ids []uint
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			id, ok := parseID(part)
			if !ok {
				return nil, false
			}
			ids = append(ids, id)
		}
	}
	if len(ids) > maxExclude {
		return nil, false
	}
	return ids, true
}

// GetBattlePair 获取一对用于对战的表情包
func (h *Handler) GetBattlePair(c *gin.Context) {
	exclude, ok := parseExclude(c.QueryArray("exclude"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "exclude 必须是最多两个正整数id"})
		return
	}

	pair, err := h.svc.BattlePair(c.Request.Context(), exclude)
	if err != nil {
		slog.Error("获取对决失败", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "获取对决失败"})
		return
	}

	if pair.PairID != "" {
		c.Header(HeaderPairID, pair.PairID)
		c.Header(HeaderPairSignature, pair.Signature)
	}
	c.JSON(http.StatusOK, pair.Memes)
}

// GetLeaderboard 获取完整排行榜
func (h *Handler) GetLeaderboard(c *gin.Context) {
	rows, err := h.svc.Leaderboard(c.Request.Context())
	if err != nil {
		slog.Error("获取排行榜失败", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "获取排行榜数据失败"})
		return
	}
	c.JSON(http.StatusOK, rows)
}

// GetMemeByID 根据ID获取单个表情包
func (h *Handler) GetMemeByID(c *gin.Context) {
	id, ok := parseID(c.Param("id"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的表情包ID"})
		return
	}

	summary, err := h.svc.GetByID(c.Request.Context(), id)
	if errors.Is(err, ErrMemeNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "找不到该表情包"})
		return
	}
	if err != nil {
		slog.Error("查询表情包失败", slog.Uint64("id", uint64(id)), slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "数据库查询失败"})
		return
	}
	c.JSON(http.StatusOK, summary)
}

// InitDatabase 在表为空时写入内置表情包，可以重复调用
func (h *Handler) InitDatabase(c *gin.Context) {
	ctx := c.Request.Context()
	inserted, err := SeedDefaults(ctx, h.svc.Repository())
	if err != nil {
		slog.Error("初始化表情包失败", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "初始化数据库失败"})
		return
	}
	if inserted > 0 {
		if err := h.svc.WarmupCache(ctx); err != nil {
			slog.Warn("初始化后预热缓存失败", slog.Any("error", err))
			database.MarkCacheStale()
		}
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "inserted": inserted})
}
