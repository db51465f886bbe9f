package metrics

import "github.com/prometheus/client_golang/prometheus"

// WebhookMetrics counts payment webhook deliveries by outcome.
type WebhookMetrics struct {
	events      *prometheus.CounterVec
	rejections  *prometheus.CounterVec
	sideEffects *prometheus.CounterVec
	unmatched   *prometheus.CounterVec
}

func NewWebhookMetrics(reg prometheus.Registerer) *WebhookMetrics {
	if reg == nil {
		return &WebhookMetrics{}
	}
	events := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "webhook_events_total",
		Help:      "Payment webhook events processed, by event type and outcome.",
	}, []string{"type", "outcome"})
	rejections := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "webhook_rejections_total",
		Help:      "Payment webhook deliveries rejected at the gate.",
	}, []string{"reason"})
	sideEffects := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "webhook_side_effect_failures_total",
		Help:      "Best-effort webhook side effects that failed.",
	}, []string{"effect"})
	unmatched := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "webhook_unmatched_captures_total",
		Help:      "Successful payments received for orders no longer awaiting payment, by order status.",
	}, []string{"status"})
	reg.MustRegister(events, rejections, sideEffects, unmatched)
	return &WebhookMetrics{events: events, rejections: rejections, sideEffects: sideEffects, unmatched: unmatched}
}

// ObserveEvent counts a processed event. outcome is applied, noop, ignored or duplicate.
func (m *WebhookMetrics) ObserveEvent(eventType, outcome string) {
	if m == nil || m.events == nil {
		return
	}
	m.events.WithLabelValues(normalizeLabel(eventType), normalizeLabel(outcome)).Inc()
}

func (m *WebhookMetrics) IncRejected(reason string) {
	if m == nil || m.rejections == nil {
		return
	}
	m.rejections.WithLabelValues(normalizeLabel(reason)).Inc()
}

func (m *WebhookMetrics) IncSideEffectFailure(effect string) {
	if m == nil || m.sideEffects == nil {
		return
	}
	m.sideEffects.WithLabelValues(normalizeLabel(effect)).Inc()
}

// IncUnmatchedCapture counts a captured payment the order state machine refused. These need manual reconciliation.
func (m *WebhookMetrics) IncUnmatchedCapture(status string) {
	if m == nil || m.unmatched == nil {
		return
	}
	m.unmatched.WithLabelValues(normalizeLabel(status)).Inc()
}
