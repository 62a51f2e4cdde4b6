package shutdown

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SlpAus/meme-arena-backend/pkg/lifecycle"
)

const (
	httpTimeout     = 15 * time.Second
	servicesTimeout = 10 * time.Second
)

// Coordinator 负责编排应用程序的优雅停机流程
type Coordinator struct {
	server   *http.Server
	services *lifecycle.Manager
	closers  []func() error

	httpTimeout     time.Duration
	servicesTimeout time.Duration
}

// NewCoordinator 创建停机协调器。
// closers按注册的相反顺序在最后执行，用于关闭数据库和Redis连接。
func NewCoordinator(server *http.Server, services *lifecycle.Manager, closers ...func() error) *Coordinator {
	return &Coordinator{
		server:          server,
		services:        services,
		closers:         closers,
		httpTimeout:     httpTimeout,
		servicesTimeout: servicesTimeout,
	}
}

// ListenForSignals 阻塞直到收到SIGINT/SIGTERM或ctx被取消，然后执行停机
func (c *Coordinator) ListenForSignals(ctx context.Context) {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	slog.Info("收到关闭信号，开始优雅停机...")
	c.Shutdown()
}

// Shutdown 依次关闭HTTP服务器、后台服务和底层连接
func (c *Coordinator) Shutdown() {
	// 关闭HTTP服务器，允许正在进行的请求完成
	shutdownCtx, cancel := context.WithTimeout(context.Background(), c.httpTimeout)
	defer cancel()
	if err := c.server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("HTTP服务器关闭错误", slog.Any("error", err))
	} else {
		slog.Info("HTTP服务器已关闭")
	}

	c.services.Shutdown()
	if remaining := c.services.WaitWithTimeout(c.servicesTimeout); len(remaining) > 0 {
		slog.Warn("部分后台服务未能按时退出", slog.Any("services", remaining))
	} else {
		slog.Info("所有后台服务已退出")
	}

	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			slog.Error("关闭连接失败", slog.Any("error", err))
		}
	}

	slog.Info("优雅停机完成")
}
