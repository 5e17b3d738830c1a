// Package metrics counts what lotteryctl does on chain and writes the
// counters as a Prometheus textfile for node_exporter to pick up.
package metrics

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Transaction outcomes.
const (
	StatusSuccess  = "success"
	StatusReverted = "reverted"
	StatusFailed   = "failed"
)

// Metrics holds the lotteryctl collectors. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	transactions   *prometheus.CounterVec
	gasUsed        *prometheus.CounterVec
	deployments    *prometheus.CounterVec
	rounds         *prometheus.CounterVec
	randomnessWait *prometheus.HistogramVec
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		// Transaction metrics
		transactions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lottery_transactions_total",
				Help: "Transactions sent, by action and outcome",
			},
			[]string{"network", "action", "status"},
		),
		gasUsed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lottery_gas_used_total",
				Help: "Gas used by mined transactions",
			},
			[]string{"network", "action"},
		),

		deployments: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lottery_deployments_total",
				Help: "Contracts deployed",
			},
			[]string{"network", "contract"},
		),

		// Round metrics
		rounds: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lottery_rounds_ended_total",
				Help: "Lotteries ended, by whether the winner was drawn in time",
			},
			[]string{"network", "outcome"},
		),
		randomnessWait: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "lottery_randomness_wait_seconds",
				Help:    "Time between ending a lottery and reading its winner",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300},
			},
			[]string{"network"},
		),
	}
}

// Gatherer exposes the registry.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

// ObserveTx records a transaction. receipt may be nil when err is set.
func (m *Metrics) ObserveTx(network, action string, receipt *types.Receipt, err error) {
	if m == nil {
		return
	}
	status := StatusSuccess
	switch {
	case err != nil && receipt == nil:
		status = StatusFailed
	case receipt != nil && receipt.Status != types.ReceiptStatusSuccessful:
		status = StatusReverted
	}
	m.transactions.WithLabelValues(network, action, status).Inc()
	if receipt != nil {
		m.gasUsed.WithLabelValues(network, action).Add(float64(receipt.GasUsed))
	}
}

// ObserveDeployment records a deployed contract.
func (m *Metrics) ObserveDeployment(network, contract string) {
	if m == nil {
		return
	}
	m.deployments.WithLabelValues(network, contract).Inc()
}

// ObserveRound records an ended lottery.
func (m *Metrics) ObserveRound(network string, pending bool, wait time.Duration) {
	if m == nil {
		return
	}
	outcome := "drawn"
	if pending {
		outcome = "pending"
	}
	m.rounds.WithLabelValues(network, outcome).Inc()
	m.randomnessWait.WithLabelValues(network).Observe(wait.Seconds())
}

// WriteTextfile writes every collected sample to path in the text
// exposition format. The file is replaced atomically.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
