package registry

import (
	"math/big"

	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics for monitoring service.
var (
	// invocations prometheus metric.
	invocations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Help:      "Number of registry calls by method and result",
			Name:      "registry_invocations_total",
			Namespace: "somns",
		},
		[]string{"method", "result"},
	)
	// activeNames prometheus metric.
	activeNames = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Help:      "Number of registered unexpired names",
			Name:      "active_names",
			Namespace: "somns",
		},
	)
	// expiredNames prometheus metric.
	expiredNames = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Help:      "Number of expired names not yet registered again",
			Name:      "expired_names",
			Namespace: "somns",
		},
	)
	// feeBalance prometheus metric.
	feeBalance = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Help:      "Accumulated fee balance in smallest units",
			Name:      "fee_balance",
			Namespace: "somns",
		},
	)
)

func init() {
	prometheus.MustRegister(
		invocations,
		activeNames,
		expiredNames,
		feeBalance,
	)
}

func updateInvocationMetric(method string, err error) {
	result := "ok"
	if err != nil {
		result = "fail"
	}
	invocations.WithLabelValues(method, result).Inc()
}

func updateStatsMetrics(s Stats) {
	activeNames.Set(float64(s.Active))
	expiredNames.Set(float64(s.Expired))
	feeBalance.Set(toFloat(s.Balance))
}

func toFloat(v *uint256.Int) float64 {
	if v == nil {
		return 0
	}
	f, _ := new(big.Float).SetInt(v.ToBig()).Float64()
	return f
}
