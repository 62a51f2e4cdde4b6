package database

import (
	"log/slog"
	"sync"
)

// statusManager 负责线程安全地管理和提供缓存层的健康状态。
type statusManager struct {
	mu             sync.RWMutex
	isRedisHealthy bool
	isCacheStale   bool
}

// 全局的状态管理器实例
var globalStatus = &statusManager{
	isRedisHealthy: true, // 默认启动时是健康的
}

// IsRedisHealthy 返回Redis缓存当前是否可以读取。
// 缓存被标记为过期时同样视为不可用，读取方应回退到数据库。
func IsRedisHealthy() bool {
	globalStatus.mu.RLock()
	defer globalStatus.mu.RUnlock()
	return globalStatus.isRedisHealthy && !globalStatus.isCacheStale
}

// SetRedisHealthy 由健康检查器调用，线程安全地更新健康状态。
func SetRedisHealthy(isHealthy bool) {
	globalStatus.mu.Lock()
	defer globalStatus.mu.Unlock()

	// 只有当状态发生变化时才打印日志
	if globalStatus.isRedisHealthy != isHealthy {
		globalStatus.isRedisHealthy = isHealthy
		if isHealthy {
			slog.Info("健康检查: Redis服务状态已更新为 [可用]")
		} else {
			slog.Warn("健康检查: Redis服务状态已更新为 [不可用]")
		}
	}
}

// MarkCacheStale 在缓存写入失败后调用，缓存将在下一次健康检查时重建。
func MarkCacheStale() {
	globalStatus.mu.Lock()
	defer globalStatus.mu.Unlock()
	if !globalStatus.isCacheStale {
		slog.Warn("排行榜缓存已被标记为过期，等待重建")
	}
	globalStatus.isCacheStale = true
}

// IsCacheStale 报告缓存是否等待重建
func IsCacheStale() bool {
	globalStatus.mu.RLock()
	defer globalStatus.mu.RUnlock()
	return globalStatus.isCacheStale
}

// ClearCacheStale 在缓存重建成功后调用
func ClearCacheStale() {
	globalStatus.mu.Lock()
	defer globalStatus.mu.Unlock()
	globalStatus.isCacheStale = false
}
