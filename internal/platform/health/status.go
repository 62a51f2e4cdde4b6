package health

import (
	"log/slog"
	"sync"
)

// State 定义了缓存层的健康状态
type State int

const (
	StateHealthy State = iota
	StateDegraded
	StateRebuilding
)

func (s State) String() string {
	switch s {
	case StateHealthy:
		return "healthy"
	case StateDegraded:
		return "degraded"
	case StateRebuilding:
		return "rebuilding"
	default:
		return "unknown"
	}
}

// statusManager 负责线程安全地维护状态机
type statusManager struct {
	mu             sync.RWMutex
	currentState   State
	lastKnownRunID string
}

func (sm *statusManager) state() State {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.currentState
}

func (sm *statusManager) setInitialRunID(runID string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.lastKnownRunID = runID
}

// assess 根据一次检查的结果推进状态机，返回是否需要重建缓存。
// stale表示缓存在上次检查之后丢失过写入。
func (sm *statusManager) assess(connected bool, newRunID string, stale bool) (needsRebuild bool) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	restarted := sm.lastKnownRunID != "" && sm.lastKnownRunID != newRunID

	switch sm.currentState {
	case StateHealthy:
		switch {
		case !connected:
			sm.currentState = StateDegraded
			slog.Warn("健康检查: Redis连接丢失，系统状态 -> [降级]")
		case restarted:
			sm.currentState = StateRebuilding
			needsRebuild = true
			slog.Warn("健康检查: 检测到Redis重启，系统状态 -> [重建中]",
				slog.String("old_run_id", sm.lastKnownRunID), slog.String("new_run_id", newRunID))
		case stale:
			sm.currentState = StateRebuilding
			needsRebuild = true
			slog.Warn("健康检查: 排行榜缓存已过期，系统状态 -> [重建中]")
		}
	case StateDegraded:
		if connected {
			if restarted || stale {
				sm.currentState = StateRebuilding
				needsRebuild = true
				slog.Info("健康检查: Redis已恢复但缓存需要重建，系统状态 -> [重建中]")
			} else {
				sm.currentState = StateHealthy
				slog.Info("健康检查: Redis连接已恢复，系统状态 -> [健康]")
			}
		}
	case StateRebuilding:
		if !connected {
			sm.currentState = StateDegraded
			slog.Warn("健康检查: 在缓存重建期间Redis连接再次丢失，系统状态 -> [降级]")
		} else {
			// 连接正常但仍处于重建状态，说明上次重建失败了
			needsRebuild = true
			slog.Info("健康检查: 系统处于[重建中]状态，将再次尝试重建缓存")
		}
	}

	if connected {
		sm.lastKnownRunID = newRunID
	}
	return needsRebuild
}

// markRebuildComplete 在一次重建尝试之后调用。
// 重建期间Redis再次重启时，这次重建无效，保持[重建中]等待下一轮。
func (sm *statusManager) markRebuildComplete(success bool, runIDAfterRebuild string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.currentState != StateRebuilding {
		return
	}

	if success && sm.lastKnownRunID != runIDAfterRebuild {
		slog.Error("健康检查: 缓存重建期间检测到Redis再次重启，重建无效",
			slog.String("old_run_id", sm.lastKnownRunID), slog.String("new_run_id", runIDAfterRebuild))
		sm.lastKnownRunID = runIDAfterRebuild
		return
	}

	if success {
		sm.currentState = StateHealthy
		slog.Info("健康检查: 缓存重建成功，系统状态 -> [健康]")
	} else {
		slog.Error("健康检查: 缓存重建失败，系统状态保持 [重建中] 以待重试")
	}
}
