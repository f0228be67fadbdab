package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestCronJobMetricsExportsCountersAndHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewCronJobMetrics(reg)
	job := "stock-alert"
	metrics.ObserveDuration(job, 250*time.Millisecond)
	metrics.IncSuccess(job)
	metrics.IncFailure(job)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "bistro_cron_job_success_total", "job", job); err != nil {
		t.Fatalf("fetch success: %v", err)
	} else if got != 1 {
		t.Fatalf("expected success=1, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "bistro_cron_job_failure_total", "job", job); err != nil {
		t.Fatalf("fetch failure: %v", err)
	} else if got != 1 {
		t.Fatalf("expected failure=1, got %f", got)
	}

	if got, err := fetchHistogramSum(mfs, "bistro_cron_job_duration_seconds", "job", job); err != nil {
		t.Fatalf("fetch duration: %v", err)
	} else if got <= 0 {
		t.Fatalf("expected duration sum > 0, got %f", got)
	}
}

func TestStockMetricsCountersAndGauges(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewStockMetrics(reg)
	m.IncAdjustment("ORDER_DEDUCT")
	m.IncAdjustment("ORDER_DEDUCT")
	m.IncRejection("INSUFFICIENT_STOCK")
	m.IncAutoBlocked()
	m.SetStockHealth(3, 1)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchCounterValue(mfs, "bistro_inventory_stock_adjustments_total", "type", "ORDER_DEDUCT"); err != nil || got != 2 {
		t.Fatalf("expected 2 deduct adjustments, got %f err=%v", got, err)
	}
	if got, err := fetchCounterValue(mfs, "bistro_inventory_stock_rejections_total", "code", "INSUFFICIENT_STOCK"); err != nil || got != 1 {
		t.Fatalf("expected 1 rejection, got %f err=%v", got, err)
	}
	if got := fetchGaugeValue(mfs, "bistro_inventory_low_stock_items"); got != 3 {
		t.Fatalf("expected low stock gauge 3, got %f", got)
	}
	if got := fetchGaugeValue(mfs, "bistro_inventory_out_of_stock_items"); got != 1 {
		t.Fatalf("expected out of stock gauge 1, got %f", got)
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var stock *StockMetrics
	stock.IncAdjustment("MANUAL_ADD")
	stock.SetStockHealth(1, 1)
	var outbox *OutboxMetrics
	outbox.IncPublished("menu_item_blocked")
	NewOutboxMetrics(nil).IncFailed("menu_item_blocked")
}

func TestOutboxMetricsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewOutboxMetrics(reg)
	m.IncPublished("menu_item_blocked")
	m.IncFailed("")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchCounterValue(mfs, "bistro_outbox_published_total", "event_type", "menu_item_blocked"); err != nil || got != 1 {
		t.Fatalf("expected 1 published, got %f err=%v", got, err)
	}
	if got, err := fetchCounterValue(mfs, "bistro_outbox_failed_total", "event_type", "unknown"); err != nil || got != 1 {
		t.Fatalf("expected blank label to normalize, got %f err=%v", got, err)
	}
}

func fetchGaugeValue(mfs []*dto.MetricFamily, name string) float64 {
	mf := findMetricFamily(mfs, name)
	if mf == nil || len(mf.GetMetric()) == 0 {
		return -1
	}
	return mf.GetMetric()[0].GetGauge().GetValue()
}

func fetchCounterValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing label %s=%s", name, label, value)
}

func fetchHistogramSum(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetHistogram().GetSampleSum(), nil
		}
	}
	return 0, fmt.Errorf("histogram %q missing label %s=%s", name, label, value)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabel(labels []*dto.LabelPair, name, value string) bool {
	for _, label := range labels {
		if label.GetName() == name && label.GetValue() == value {
			return true
		}
	}
	return false
}
