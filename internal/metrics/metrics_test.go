package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// findMetricFamily は収集結果から名前でメトリクスファミリーを探す。
func findMetricFamily(t *testing.T, reg *prometheus.Registry, name string) *dto.MetricFamily {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() == name {
			return mf
		}
	}
	t.Fatalf("%s metric not found", name)
	return nil
}

// TestCacheCounters はキャッシュヒット・ミスのカウンタが増加することを検証する。
func TestCacheCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordCacheHit()
	c.RecordCacheHit()
	c.RecordCacheMiss()

	if v := findMetricFamily(t, reg, "shelfman_cache_hit_total").GetMetric()[0].GetCounter().GetValue(); v != 2 {
		t.Errorf("cache_hit_total = %v, want 2", v)
	}
	if v := findMetricFamily(t, reg, "shelfman_cache_miss_total").GetMetric()[0].GetCounter().GetValue(); v != 1 {
		t.Errorf("cache_miss_total = %v, want 1", v)
	}
}

// TestRecordFetchFailure_LabelsByReason は取得失敗が理由ラベル別に集計されることを検証する。
func TestRecordFetchFailure_LabelsByReason(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordFetchFailure("transport")
	c.RecordFetchFailure("status")
	c.RecordFetchFailure("status")

	mf := findMetricFamily(t, reg, "shelfman_fetch_fail_total")
	got := make(map[string]float64)
	for _, m := range mf.GetMetric() {
		for _, lp := range m.GetLabel() {
			if lp.GetName() == "reason" {
				got[lp.GetValue()] = m.GetCounter().GetValue()
			}
		}
	}
	if got["transport"] != 1 {
		t.Errorf("transport = %v, want 1", got["transport"])
	}
	if got["status"] != 2 {
		t.Errorf("status = %v, want 2", got["status"])
	}
}

// TestRecordHTTPStatus_IncrementsCounterWithLabel はステータスコードラベルが付与されることを検証する。
func TestRecordHTTPStatus_IncrementsCounterWithLabel(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordHTTPStatus(200)
	c.RecordHTTPStatus(200)
	c.RecordHTTPStatus(503)

	mf := findMetricFamily(t, reg, "shelfman_http_status_total")
	if len(mf.GetMetric()) != 2 {
		t.Fatalf("expected 2 label sets, got %d", len(mf.GetMetric()))
	}
	for _, m := range mf.GetMetric() {
		code := m.GetLabel()[0].GetValue()
		val := m.GetCounter().GetValue()
		switch code {
		case "200":
			if val != 2 {
				t.Errorf("status 200 = %v, want 2", val)
			}
		case "503":
			if val != 1 {
				t.Errorf("status 503 = %v, want 1", val)
			}
		default:
			t.Errorf("unexpected status label %q", code)
		}
	}
}

// TestRecordFetchLatency_ObservesHistogram はレイテンシがヒストグラムに記録されることを検証する。
func TestRecordFetchLatency_ObservesHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordFetchLatency(150 * time.Millisecond)

	h := findMetricFamily(t, reg, "shelfman_fetch_latency_seconds").GetMetric()[0].GetHistogram()
	if h.GetSampleCount() != 1 {
		t.Errorf("sample count = %d, want 1", h.GetSampleCount())
	}
	if h.GetSampleSum() < 0.149 || h.GetSampleSum() > 0.151 {
		t.Errorf("sample sum = %v, want ~0.15", h.GetSampleSum())
	}
}

// TestRecordBooksNormalized_AddsCount は正規化件数が加算されることを検証する。
func TestRecordBooksNormalized_AddsCount(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordBooksNormalized(8)
	c.RecordBooksNormalized(0)

	if v := findMetricFamily(t, reg, "shelfman_books_normalized_total").GetMetric()[0].GetCounter().GetValue(); v != 8 {
		t.Errorf("books_normalized_total = %v, want 8", v)
	}
}

// TestHandler_ReturnsPrometheusFormat はハンドラーがテキスト形式でメトリクスを返すことを検証する。
func TestHandler_ReturnsPrometheusFormat(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordFetchSuccess()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	Handler(reg).ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "shelfman_fetch_success_total 1") {
		t.Errorf("response should contain shelfman_fetch_success_total 1, got:\n%s", body)
	}
}

// TestInterfaces はCollectorとNopがMetricsCollectorを満たすことを検証する。
func TestInterfaces(t *testing.T) {
	var _ MetricsCollector = NewCollector(prometheus.NewRegistry())
	var _ MetricsCollector = Nop{}
}

// TestMultipleCollectors_IndependentRegistries は別レジストリへの登録が衝突しないことを検証する。
func TestMultipleCollectors_IndependentRegistries(t *testing.T) {
	reg1 := prometheus.NewRegistry()
	reg2 := prometheus.NewRegistry()

	c1 := NewCollector(reg1)
	_ = NewCollector(reg2)

	c1.RecordCacheHit()

	if v := findMetricFamily(t, reg2, "shelfman_cache_hit_total").GetMetric()[0].GetCounter().GetValue(); v != 0 {
		t.Errorf("reg2 cache_hit_total = %v, want 0", v)
	}
}
