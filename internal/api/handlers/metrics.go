package handlers

import (
	"fmt"
	"net/http"
	"sync/atomic"

	"tiergate/internal/engine/tiering"
)

// Metrics holds the service counters exported at /metrics. Counters are
// atomic so webhook handling never contends on a lock for bookkeeping.
type Metrics struct {
	EventsReceived  atomic.Int64
	EventsProcessed atomic.Int64
	EventsSkipped   atomic.Int64

	decisions [tiering.TierFour + 1]atomic.Int64
}

func NewMetrics() *Metrics {
	return &Metrics{}
}

func (m *Metrics) RecordDecision(tier tiering.Tier) {
	if tier >= 0 && int(tier) < len(m.decisions) {
		m.decisions[tier].Add(1)
	}
}

type MetricsHandler struct {
	metrics *Metrics
}

func NewMetricsHandler(metrics *Metrics) *MetricsHandler {
	return &MetricsHandler{metrics: metrics}
}

func (h *MetricsHandler) Export(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")

	fmt.Fprintf(w, "# HELP tiergate_up Is the server up\n")
	fmt.Fprintf(w, "# TYPE tiergate_up gauge\n")
	fmt.Fprintf(w, "tiergate_up 1\n")

	fmt.Fprintf(w, "# HELP tiergate_events_total Webhook events by outcome\n")
	fmt.Fprintf(w, "# TYPE tiergate_events_total counter\n")
	fmt.Fprintf(w, "tiergate_events_total{outcome=\"received\"} %d\n", h.metrics.EventsReceived.Load())
	fmt.Fprintf(w, "tiergate_events_total{outcome=\"processed\"} %d\n", h.metrics.EventsProcessed.Load())
	fmt.Fprintf(w, "tiergate_events_total{outcome=\"skipped\"} %d\n", h.metrics.EventsSkipped.Load())

	fmt.Fprintf(w, "# HELP tiergate_decisions_total Decisions by tier\n")
	fmt.Fprintf(w, "# TYPE tiergate_decisions_total counter\n")
	for _, tier := range tiering.AllTiers() {
		fmt.Fprintf(w, "tiergate_decisions_total{tier=%q} %d\n", tier.String(), h.metrics.decisions[tier].Load())
	}
}
