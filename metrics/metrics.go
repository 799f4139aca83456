// Package metrics exposes Prometheus collectors for vesting engine activity.
// Token amounts are reported as float64 approximations; exact accounting
// lives in the engine, these series exist for dashboards and alerting only.
package metrics

import (
	"math/big"

	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the engine collectors. A nil *Metrics is a valid no-op sink.
type Metrics struct {
	SchedulesCreated prometheus.Counter
	Releases         prometheus.Counter
	Revocations      prometheus.Counter
	Withdrawals      prometheus.Counter
	TokensReleased   prometheus.Counter

	CommittedTokens    prometheus.Gauge
	WithdrawableTokens prometheus.Gauge
}

// New registers the engine collectors with the given registry.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		SchedulesCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "vesting_schedules_created_total",
			Help: "Number of vesting schedules created.",
		}),
		Releases: factory.NewCounter(prometheus.CounterOpts{
			Name: "vesting_releases_total",
			Help: "Number of release operations committed.",
		}),
		Revocations: factory.NewCounter(prometheus.CounterOpts{
			Name: "vesting_revocations_total",
			Help: "Number of schedules revoked.",
		}),
		Withdrawals: factory.NewCounter(prometheus.CounterOpts{
			Name: "vesting_withdrawals_total",
			Help: "Number of pool withdrawals committed.",
		}),
		TokensReleased: factory.NewCounter(prometheus.CounterOpts{
			Name: "vesting_tokens_released_total",
			Help: "Approximate token units released to beneficiaries.",
		}),
		CommittedTokens: factory.NewGauge(prometheus.GaugeOpts{
			Name: "vesting_committed_tokens",
			Help: "Approximate outstanding committed token units.",
		}),
		WithdrawableTokens: factory.NewGauge(prometheus.GaugeOpts{
			Name: "vesting_withdrawable_tokens",
			Help: "Approximate withdrawable pool token units.",
		}),
	}
}

// ObserveCreate records a committed schedule creation.
func (m *Metrics) ObserveCreate() {
	if m == nil {
		return
	}
	m.SchedulesCreated.Inc()
}

// ObserveRelease records a committed release of amount tokens.
func (m *Metrics) ObserveRelease(amount *uint256.Int) {
	if m == nil {
		return
	}
	m.Releases.Inc()
	m.TokensReleased.Add(approx(amount))
}

// ObserveRevoke records a committed revocation.
func (m *Metrics) ObserveRevoke() {
	if m == nil {
		return
	}
	m.Revocations.Inc()
}

// ObserveWithdraw records a committed pool withdrawal.
func (m *Metrics) ObserveWithdraw() {
	if m == nil {
		return
	}
	m.Withdrawals.Inc()
}

// SetPools updates the committed/withdrawable gauges.
func (m *Metrics) SetPools(committed, withdrawable *uint256.Int) {
	if m == nil {
		return
	}
	m.CommittedTokens.Set(approx(committed))
	m.WithdrawableTokens.Set(approx(withdrawable))
}

func approx(v *uint256.Int) float64 {
	if v == nil {
		return 0
	}
	f, _ := new(big.Float).SetInt(v.ToBig()).Float64()
	return f
}
