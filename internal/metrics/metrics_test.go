package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/rawblock/triarb-engine/pkg/models"
)

func TestRecordFilterCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.RecordFilterCounts(map[models.RejectReason]int{
		models.ReasonStaleness: 3,
		models.ReasonVolume:    2,
	})

	var out dto.Metric
	_ = m.FilterRejections.WithLabelValues(string(models.ReasonStaleness)).Write(&out)
	if out.Counter.GetValue() != 3 {
		t.Fatalf("expected 3 staleness rejections, got %v", out.Counter.GetValue())
	}
}

func TestRecordOutcomeAndBreakerGauge(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.RecordOutcome(models.OutcomeAccepted)
	var out dto.Metric
	_ = m.Submissions.WithLabelValues("accepted").Write(&out)
	if out.Counter.GetValue() != 1 {
		t.Fatalf("expected 1 accepted outcome, got %v", out.Counter.GetValue())
	}

	m.SetBreakerOpen(true)
	var gauge dto.Metric
	_ = m.BreakerOpen.Write(&gauge)
	if gauge.Gauge.GetValue() != 1 {
		t.Fatalf("expected breaker gauge 1, got %v", gauge.Gauge.GetValue())
	}
}
