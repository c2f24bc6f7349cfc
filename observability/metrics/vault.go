package metrics

import (
	"math/big"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type VaultMetrics struct {
	operations   *prometheus.CounterVec
	opFailures   *prometheus.CounterVec
	totalShares  *prometheus.GaugeVec
	rewardsPaid  *prometheus.CounterVec
	rewardFunded *prometheus.CounterVec
}

var (
	vaultOnce     sync.Once
	vaultRegistry *VaultMetrics
)

func Vault() *VaultMetrics {
	vaultOnce.Do(func() {
		vaultRegistry = &VaultMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "vault_operations_total",
				Help: "Count of applied vault operations by kind and pool.",
			}, []string{"op", "pool"}),
			opFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "vault_operation_failures_total",
				Help: "Count of rejected vault operations by kind and pool.",
			}, []string{"op", "pool"}),
			totalShares: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: "vault_total_shares",
				Help: "Outstanding share supply per pool.",
			}, []string{"pool"}),
			rewardsPaid: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "vault_rewards_paid_total",
				Help: "Cumulative reward payout per pool in base units.",
			}, []string{"pool"}),
			rewardFunded: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "vault_rewards_funded_total",
				Help: "Cumulative reward funding per pool in base units.",
			}, []string{"pool"}),
		}
		prometheus.MustRegister(
			vaultRegistry.operations,
			vaultRegistry.opFailures,
			vaultRegistry.totalShares,
			vaultRegistry.rewardsPaid,
			vaultRegistry.rewardFunded,
		)
	})
	return vaultRegistry
}

// ObserveOp records one applied or rejected operation.
func (m *VaultMetrics) ObserveOp(op, pool string, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.opFailures.WithLabelValues(op, pool).Inc()
		return
	}
	m.operations.WithLabelValues(op, pool).Inc()
}

// SetTotalShares publishes the pool's share supply. Values beyond float64
// precision are reported approximately; the gauge is observability only.
func (m *VaultMetrics) SetTotalShares(pool string, shares *big.Int) {
	if m == nil || shares == nil {
		return
	}
	f, _ := new(big.Float).SetInt(shares).Float64()
	m.totalShares.WithLabelValues(pool).Set(f)
}

// AddRewardsPaid accumulates a claim payout.
func (m *VaultMetrics) AddRewardsPaid(pool string, amount *big.Int) {
	if m == nil || amount == nil || amount.Sign() <= 0 {
		return
	}
	f, _ := new(big.Float).SetInt(amount).Float64()
	m.rewardsPaid.WithLabelValues(pool).Add(f)
}

// AddRewardsFunded accumulates a reward top-up.
func (m *VaultMetrics) AddRewardsFunded(pool string, amount *big.Int) {
	if m == nil || amount == nil || amount.Sign() <= 0 {
		return
	}
	f, _ := new(big.Float).SetInt(amount).Float64()
	m.rewardFunded.WithLabelValues(pool).Add(f)
}
