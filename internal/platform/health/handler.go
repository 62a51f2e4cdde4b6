package health

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Handler 返回 GET /health 的处理函数。
// checker为nil表示没有配置Redis，缓存状态报告为disabled。
func Handler(db *gorm.DB, checker *Checker) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := "ok"
		code := http.StatusOK

		dbStatus := "up"
		if err := ping(c.Request.Context(), db); err != nil {
			dbStatus = "down"
			status = "unavailable"
			code = http.StatusServiceUnavailable
		}

		cacheStatus := "disabled"
		if checker != nil {
			cacheStatus = checker.State().String()
			if cacheStatus != StateHealthy.String() && code == http.StatusOK {
				status = "degraded"
			}
		}

		c.JSON(code, gin.H{
			"status":    status,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"database":  dbStatus,
			"cache":     cacheStatus,
		})
	}
}

func ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return sqlDB.PingContext(ctx)
}
