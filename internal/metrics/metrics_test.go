package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestNewRegistersAllSeries(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.BlocksIndexed.Inc()
	m.InscriptionsBlessed.Inc()
	m.InscriptionsCursed.Inc()
	m.TransfersEmitted.Inc()
	m.RPCRetries.Inc()
	m.IndexedHeight.Set(42)
	m.LostSats.Set(1000)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	if len(families) != 7 {
		t.Fatalf("Gather returned %d families, want 7", len(families))
	}

	var heightFamily *dto.MetricFamily
	for _, f := range families {
		if f.GetName() == "ordindex_indexed_height" {
			heightFamily = f
		}
	}
	if heightFamily == nil {
		t.Fatal("ordindex_indexed_height not registered")
	}
	if got := heightFamily.Metric[0].GetGauge().GetValue(); got != 42 {
		t.Errorf("ordindex_indexed_height = %v, want 42", got)
	}
}
