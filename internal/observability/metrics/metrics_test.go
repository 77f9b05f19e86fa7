package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	mfs, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.Metric {
			if matchLabels(metric, labels) {
				return metric.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func matchLabels(metric *dto.Metric, labels map[string]string) bool {
	found := 0
	for _, lp := range metric.GetLabel() {
		if want, ok := labels[lp.GetName()]; ok && want == lp.GetValue() {
			found++
		}
	}
	return found == len(labels)
}

func TestHarnessMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewHarnessMetrics(reg)
	m.ObserveOutbound("twilio", "sent", "arabic")
	m.ObserveOutbound("twilio", "sent", "arabic")
	m.ObserveOutbound("twilio", "failed", "latin")
	m.ObserveInbound("ok")
	m.ObserveSendLatency("twilio", 0.2)
	m.ObserveWebhookLatency(0.01)

	assert.Equal(t, 2.0, counterValue(t, reg, "whatsapp_harness_outbound_total",
		map[string]string{"status": "sent", "script": "arabic"}))
	assert.Equal(t, 1.0, counterValue(t, reg, "whatsapp_harness_outbound_total",
		map[string]string{"status": "failed"}))
	assert.Equal(t, 1.0, counterValue(t, reg, "whatsapp_harness_inbound_total",
		map[string]string{"status": "ok"}))
}

func TestHarnessMetricsNilSafe(t *testing.T) {
	var m *HarnessMetrics
	m.ObserveOutbound("twilio", "sent", "latin")
	m.ObserveInbound("ok")
	m.ObserveSendLatency("twilio", 0.1)
	m.ObserveWebhookLatency(0.1)
}

func TestOutboundByScript(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewHarnessMetrics(reg)
	m.ObserveOutbound("twilio", "sent", "arabic")
	m.ObserveOutbound("kapso", "sent", "arabic")
	m.ObserveOutbound("twilio", "failed", "arabic")
	m.ObserveOutbound("twilio", "sent", "latin")
	m.ObserveInbound("ok")

	got, err := OutboundByScript(reg)
	require.NoError(t, err)
	assert.Equal(t, map[string]ScriptCounts{
		"arabic": {"sent": 2, "failed": 1},
		"latin":  {"sent": 1},
	}, got)

	empty, err := OutboundByScript(nil)
	require.NoError(t, err)
	assert.Nil(t, empty)
}
