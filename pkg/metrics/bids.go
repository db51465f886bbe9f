package metrics

import "github.com/prometheus/client_golang/prometheus"

// BidMetrics counts bid placement attempts by result.
type BidMetrics struct {
	placed *prometheus.CounterVec
}

func NewBidMetrics(reg prometheus.Registerer) *BidMetrics {
	if reg == nil {
		return &BidMetrics{}
	}
	placed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "bids_total",
		Help:      "Bid placement attempts, by result.",
	}, []string{"result"})
	reg.MustRegister(placed)
	return &BidMetrics{placed: placed}
}

// Observe records accepted, outbid, too_low, below_reserve, conflict or error.
func (m *BidMetrics) Observe(result string) {
	if m == nil || m.placed == nil {
		return
	}
	m.placed.WithLabelValues(normalizeLabel(result)).Inc()
}
