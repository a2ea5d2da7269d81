// Package metrics 流水线的 Prometheus 指标
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "aime_datagen"

// 裁判调用结果
const (
	OutcomeOK      = "ok"
	OutcomeError   = "error"
	OutcomeInvalid = "invalid"
)

// Metrics 全部指标
type Metrics struct {
	JudgeCalls   *prometheus.CounterVec
	JudgeLatency prometheus.Histogram

	TurnsScored      prometheus.Counter
	DialoguesScored  *prometheus.CounterVec
	DialoguesSkipped *prometheus.CounterVec

	RecordsGenerated *prometheus.CounterVec
}

// DefaultMetrics 注册在默认 Registry 上的全局实例
var DefaultMetrics = NewMetrics(prometheus.DefaultRegisterer)

// NewMetrics 创建并注册所有指标
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		JudgeCalls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "judge_calls_total",
			Help:      "Total number of judge model calls by outcome",
		}, []string{"outcome"}),
		JudgeLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "judge_call_duration_seconds",
			Help:      "Latency of a single judge model call",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		}),
		TurnsScored: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_scored_total",
			Help:      "Total number of dialogue turns scored",
		}),
		DialoguesScored: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dialogues_scored_total",
			Help:      "Total number of dialogues scored by mode",
		}, []string{"mode"}),
		DialoguesSkipped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dialogues_skipped_total",
			Help:      "Total number of dialogues skipped by reason",
		}, []string{"reason"}),
		RecordsGenerated: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_generated_total",
			Help:      "Total number of synthetic records generated by scheme",
		}, []string{"scheme"}),
	}
}
