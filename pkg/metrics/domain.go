package metrics

import "github.com/prometheus/client_golang/prometheus"

// Bulk adjustment row outcomes.
const (
	OutcomeUpdated = "updated"
	OutcomeSkipped = "skipped"
)

// DomainMetrics counts pricing and account lifecycle events.
type DomainMetrics struct {
	priceMutations  *prometheus.CounterVec
	bulkAdjustRows  *prometheus.CounterVec
	registrations   *prometheus.CounterVec
	outboxPublished *prometheus.CounterVec
}

func NewDomainMetrics(reg prometheus.Registerer) *DomainMetrics {
	if reg == nil {
		return &DomainMetrics{}
	}
	m := &DomainMetrics{
		priceMutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "price_mutations_total",
			Help:      "Price changes written to history, by change type.",
		}, []string{"change_type"}),
		bulkAdjustRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bulk_adjust_rows_total",
			Help:      "Client price rows touched by bulk adjustments.",
		}, []string{"outcome"}),
		registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "account_transitions_total",
			Help:      "Registration and account state transitions.",
		}, []string{"transition", "outcome"}),
		outboxPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_publish_total",
			Help:      "Outbox events handed to the broker.",
		}, []string{"event_type", "outcome"}),
	}
	reg.MustRegister(m.priceMutations, m.bulkAdjustRows, m.registrations, m.outboxPublished)
	return m
}

func (m *DomainMetrics) IncPriceMutation(changeType string) {
	if m == nil || m.priceMutations == nil {
		return
	}
	m.priceMutations.WithLabelValues(normalizeLabel(changeType)).Inc()
}

func (m *DomainMetrics) AddBulkAdjustRows(updated, skipped int) {
	if m == nil || m.bulkAdjustRows == nil {
		return
	}
	m.bulkAdjustRows.WithLabelValues(OutcomeUpdated).Add(float64(updated))
	m.bulkAdjustRows.WithLabelValues(OutcomeSkipped).Add(float64(skipped))
}

// IncTransition records an attempted account transition such as "approve"
// together with its outcome.
func (m *DomainMetrics) IncTransition(transition, outcome string) {
	if m == nil || m.registrations == nil {
		return
	}
	m.registrations.WithLabelValues(normalizeLabel(transition), normalizeLabel(outcome)).Inc()
}

func (m *DomainMetrics) IncOutboxPublish(eventType, outcome string) {
	if m == nil || m.outboxPublished == nil {
		return
	}
	m.outboxPublished.WithLabelValues(normalizeLabel(eventType), normalizeLabel(outcome)).Inc()
}
