package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "memearena"

// 对决结果的标签取值
const (
	ResultAccepted = "accepted"
	ResultInvalid  = "invalid"
	ResultNotFound = "not_found"
	ResultConflict = "conflict"
	ResultError    = "error"
)

// 排行榜数据来源的标签取值
const (
	SourceCache    = "cache"
	SourceDatabase = "database"
)

// Metrics 汇总了服务暴露的所有Prometheus指标
type Metrics struct {
	BattlesTotal     *prometheus.CounterVec
	BattleRetries    prometheus.Counter
	RatingChange     prometheus.Histogram
	PairsServed      prometheus.Counter
	LeaderboardReads *prometheus.CounterVec
	CacheRebuilds    *prometheus.CounterVec
}

// New 创建指标并注册到给定的Registerer
// 测试中应传入独立的prometheus.NewRegistry()，避免重复注册
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		BattlesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "battles_total",
			Help:      "Battle submissions by outcome.",
		}, []string{"result"}),
		BattleRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "battle_retries_total",
			Help:      "Battle transactions retried after a conditional rating update matched no row.",
		}),
		RatingChange: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rating_change_points",
			Help:      "Points transferred from loser to winner per battle, before rounding.",
			Buckets:   []float64{1, 2, 4, 8, 12, 16, 20, 24, 28, 32},
		}),
		PairsServed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pairs_served_total",
			Help:      "Battle pairs handed out.",
		}),
		LeaderboardReads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "leaderboard_reads_total",
			Help:      "Leaderboard reads by data source.",
		}, []string{"source"}),
		CacheRebuilds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_rebuilds_total",
			Help:      "Leaderboard cache rebuilds by result.",
		}, []string{"result"}),
	}

	reg.MustRegister(
		m.BattlesTotal,
		m.BattleRetries,
		m.RatingChange,
		m.PairsServed,
		m.LeaderboardReads,
		m.CacheRebuilds,
	)
	return m
}
