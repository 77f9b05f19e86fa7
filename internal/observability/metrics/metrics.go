package metrics

import "github.com/prometheus/client_golang/prometheus"

// HarnessMetrics exposes counters/histograms for a message-exchange run.
type HarnessMetrics struct {
	outboundTotal  *prometheus.CounterVec
	inboundTotal   *prometheus.CounterVec
	sendLatency    *prometheus.HistogramVec
	webhookLatency prometheus.Histogram
}

func NewHarnessMetrics(reg prometheus.Registerer) *HarnessMetrics {
	m := &HarnessMetrics{
		outboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "whatsapp",
			Subsystem: "harness",
			Name:      "outbound_total",
			Help:      "Outbound send attempts by outcome and script",
		}, []string{"provider", "status", "script"}),
		inboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "whatsapp",
			Subsystem: "harness",
			Name:      "inbound_total",
			Help:      "Inbound webhook callbacks by extraction status",
		}, []string{"status"}),
		sendLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "whatsapp",
			Subsystem: "harness",
			Name:      "send_latency_seconds",
			Help:      "Latency of transport CreateMessage calls",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider"}),
		webhookLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "whatsapp",
			Subsystem: "harness",
			Name:      "webhook_latency_seconds",
			Help:      "Latency of inbound webhook handling",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.outboundTotal, m.inboundTotal, m.sendLatency, m.webhookLatency)
	return m
}

func (m *HarnessMetrics) ObserveOutbound(provider, status, script string) {
	if m == nil {
		return
	}
	m.outboundTotal.WithLabelValues(provider, status, script).Inc()
}

func (m *HarnessMetrics) ObserveInbound(status string) {
	if m == nil {
		return
	}
	m.inboundTotal.WithLabelValues(status).Inc()
}

func (m *HarnessMetrics) ObserveSendLatency(provider string, seconds float64) {
	if m == nil {
		return
	}
	m.sendLatency.WithLabelValues(provider).Observe(seconds)
}

func (m *HarnessMetrics) ObserveWebhookLatency(seconds float64) {
	if m == nil {
		return
	}
	m.webhookLatency.Observe(seconds)
}
