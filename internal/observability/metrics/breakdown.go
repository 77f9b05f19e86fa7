package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

const outboundFamily = "whatsapp_harness_outbound_total"

// ScriptCounts is the outbound attempt count per status for one script.
type ScriptCounts map[string]int

// OutboundByScript reads the outbound counter back out of a gatherer and
// groups it by script label, summed across providers.
func OutboundByScript(g prometheus.Gatherer) (map[string]ScriptCounts, error) {
	if g == nil {
		return nil, nil
	}
	families, err := g.Gather()
	if err != nil {
		return nil, fmt.Errorf("metrics: gather: %w", err)
	}
	out := make(map[string]ScriptCounts)
	for _, mf := range families {
		if mf.GetName() != outboundFamily {
			continue
		}
		for _, metric := range mf.GetMetric() {
			script := labelValue(metric, "script")
			status := labelValue(metric, "status")
			if out[script] == nil {
				out[script] = make(ScriptCounts)
			}
			out[script][status] += int(metric.GetCounter().GetValue())
		}
	}
	return out, nil
}

func labelValue(metric *dto.Metric, name string) string {
	for _, lp := range metric.GetLabel() {
		if lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}
