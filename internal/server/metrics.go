package server

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metricsRegistry struct {
	registry     *prometheus.Registry
	mintsTotal   *prometheus.CounterVec
	tokensTotal  *prometheus.CounterVec
	rewardsTotal *prometheus.CounterVec
	mintDuration prometheus.Histogram
}

func newMetricsRegistry() *metricsRegistry {
	mints := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "quizmint_mints_total",
		Help: "Total mint requests by terminal status",
	}, []string{"status"})

	tokens := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "quizmint_quiz_tokens_total",
		Help: "Quiz capability token issuance attempts",
	}, []string{"status"})

	rewards := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "quizmint_reward_transfers_total",
		Help: "Reward transfer legs by outcome",
	}, []string{"status"})

	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "quizmint_mint_duration_seconds",
		Help:    "End-to-end duration of mint orchestration",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
	})

	r := prometheus.NewRegistry()
	r.MustRegister(mints, tokens, rewards, duration)

	return &metricsRegistry{
		registry:     r,
		mintsTotal:   mints,
		tokensTotal:  tokens,
		rewardsTotal: rewards,
		mintDuration: duration,
	}
}

func (m *metricsRegistry) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *metricsRegistry) incMint(status string) {
	m.mintsTotal.WithLabelValues(status).Inc()
}

func (m *metricsRegistry) incToken(status string) {
	m.tokensTotal.WithLabelValues(status).Inc()
}

func (m *metricsRegistry) incReward(status string) {
	m.rewardsTotal.WithLabelValues(status).Inc()
}

func (m *metricsRegistry) observeMintDuration(d time.Duration) {
	m.mintDuration.Observe(d.Seconds())
}
