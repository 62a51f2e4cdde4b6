package battle

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/SlpAus/meme-arena-backend/internal/meme"
	"github.com/gin-gonic/gin"
)

// Handler 提供对决结果提交接口
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// SubmitResult 处理一次对决结果的提交
func (h *Handler) SubmitResult(c *gin.Context) {
	var body Submission
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求参数无效: 需要 meme1_id, meme2_id 和 winner_id"})
		return
	}

	res, err := h.svc.Submit(c.Request.Context(), body)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{
			"success":   true,
			"battle_id": res.BattleID,
			"winner":    res.Winner,
			"loser":     res.Loser,
		})
	case errors.Is(err, ErrInvalidBattle), errors.Is(err, ErrInvalidPairToken):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, meme.ErrMemeNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "找不到参与对决的表情包"})
	case errors.Is(err, ErrPairAlreadyUsed):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		slog.Error("记录对决结果失败", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "服务器内部错误"})
	}
}
