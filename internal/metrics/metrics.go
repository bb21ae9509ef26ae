package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the reconciliation instruments. A nil *Metrics is valid and records nothing.
type Metrics struct {
	allocations       *prometheus.CounterVec
	allocatedAmount   prometheus.Counter
	taxRecords        *prometheus.CounterVec
	aggregateFallback *prometheus.CounterVec
	shareLinkUnlocks  *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		allocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fuel",
			Subsystem: "reconciliation",
			Name:      "allocations_total",
			Help:      "Bank payment allocations by outcome.",
		}, []string{"outcome"}),
		allocatedAmount: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fuel",
			Subsystem: "reconciliation",
			Name:      "allocated_amount_total",
			Help:      "Sum of amounts applied to orders by bank allocations.",
		}),
		taxRecords: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fuel",
			Subsystem: "reconciliation",
			Name:      "tax_records_written_total",
			Help:      "Tax records appended, by source.",
		}, []string{"source"}),
		aggregateFallback: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fuel",
			Subsystem: "reconciliation",
			Name:      "aggregate_zero_fallback_total",
			Help:      "Read aggregations that failed and were displayed as zero.",
		}, []string{"aggregate"}),
		shareLinkUnlocks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fuel",
			Subsystem: "share_links",
			Name:      "unlock_attempts_total",
			Help:      "Share link passcode attempts by outcome.",
		}, []string{"outcome"}),
	}
	if reg != nil {
		reg.MustRegister(m.allocations, m.allocatedAmount, m.taxRecords, m.aggregateFallback, m.shareLinkUnlocks)
	}
	return m
}

func (m *Metrics) RecordAllocation(outcome string, amount float64) {
	if m == nil {
		return
	}
	m.allocations.WithLabelValues(outcome).Inc()
	if amount > 0 {
		m.allocatedAmount.Add(amount)
	}
}

func (m *Metrics) RecordTaxRecord(source string) {
	if m == nil {
		return
	}
	m.taxRecords.WithLabelValues(source).Inc()
}

func (m *Metrics) RecordAggregateFallback(aggregate string) {
	if m == nil {
		return
	}
	m.aggregateFallback.WithLabelValues(aggregate).Inc()
}

func (m *Metrics) RecordUnlock(outcome string) {
	if m == nil {
		return
	}
	m.shareLinkUnlocks.WithLabelValues(outcome).Inc()
}
