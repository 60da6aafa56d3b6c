package metrics

import (
	"sort"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

const operationsFamily = "clinic_scheduling_operations_total"

// OperationCount is one operation/outcome pair read back from the registry.
type OperationCount struct {
	Operation string  `json:"operation"`
	Outcome   string  `json:"outcome"`
	Count     float64 `json:"count"`
}

// SnapshotOperations reads the scheduling operation counters from gatherer.
// Errors and a missing family yield an empty slice.
func SnapshotOperations(gatherer prometheus.Gatherer) []OperationCount {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	mfs, err := gatherer.Gather()
	if err != nil {
		return []OperationCount{}
	}

	var family *dto.MetricFamily
	for _, mf := range mfs {
		if mf != nil && mf.GetName() == operationsFamily {
			family = mf
			break
		}
	}
	if family == nil {
		return []OperationCount{}
	}

	out := make([]OperationCount, 0, len(family.GetMetric()))
	for _, metric := range family.GetMetric() {
		if metric == nil || metric.GetCounter() == nil {
			continue
		}
		out = append(out, OperationCount{
			Operation: labelValue(metric, "operation"),
			Outcome:   labelValue(metric, "outcome"),
			Count:     metric.GetCounter().GetValue(),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Operation != out[j].Operation {
			return out[i].Operation < out[j].Operation
		}
		return out[i].Outcome < out[j].Outcome
	})
	return out
}

func labelValue(metric *dto.Metric, name string) string {
	for _, lp := range metric.GetLabel() {
		if lp != nil && lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}
