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

// findMetric は指定した名前とラベル値を持つメトリクスを返す。
func findMetric(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) *dto.Metric {
	t.Helper()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if labelsMatch(m, labels) {
				return m
			}
		}
	}
	t.Fatalf("metric %s%v not found", name, labels)
	return nil
}

func labelsMatch(m *dto.Metric, labels map[string]string) bool {
	matched := 0
	for _, lp := range m.GetLabel() {
		if want, ok := labels[lp.GetName()]; ok {
			if lp.GetValue() != want {
				return false
			}
			matched++
		}
	}
	return matched == len(labels)
}

// TestNewCollector_ReturnsNonNil はCollectorが正常に生成されることを検証する。
func TestNewCollector_ReturnsNonNil(t *testing.T) {
	reg := prometheus.NewRegistry()
	if c := NewCollector(reg); c == nil {
		t.Fatal("expected non-nil Collector")
	}
}

// TestNewCollector_DuplicateRegistration_Panics は同一レジストリへの二重登録でpanicすることを検証する。
func TestNewCollector_DuplicateRegistration_Panics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewCollector(reg)

	defer func() {
		if recover() == nil {
			t.Error("expected panic on duplicate registration")
		}
	}()
	NewCollector(reg)
}

func TestRecordUpload_CountsByOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordUpload(UploadSuccess)
	c.RecordUpload(UploadSuccess)
	c.RecordUpload(UploadInvalid)

	if v := findMetric(t, reg, "trackbox_uploads_total", map[string]string{"outcome": "success"}).GetCounter().GetValue(); v != 2 {
		t.Errorf("success uploads = %v, want 2", v)
	}
	if v := findMetric(t, reg, "trackbox_uploads_total", map[string]string{"outcome": "invalid"}).GetCounter().GetValue(); v != 1 {
		t.Errorf("invalid uploads = %v, want 1", v)
	}
}

func TestRecordUploadBytes_AddsSize(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordUploadBytes(1024)
	c.RecordUploadBytes(512)

	if v := findMetric(t, reg, "trackbox_upload_bytes_total", nil).GetCounter().GetValue(); v != 1536 {
		t.Errorf("upload bytes = %v, want 1536", v)
	}
}

func TestRecordBlobLatency_ObservesHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordBlobLatency(250 * time.Millisecond)

	h := findMetric(t, reg, "trackbox_blob_put_latency_seconds", nil).GetHistogram()
	if h.GetSampleCount() != 1 {
		t.Errorf("sample count = %d, want 1", h.GetSampleCount())
	}
	if h.GetSampleSum() != 0.25 {
		t.Errorf("sample sum = %v, want 0.25", h.GetSampleSum())
	}
}

func TestRecordSessionResolution_CountsBySource(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordSessionResolution("database")

	if v := findMetric(t, reg, "trackbox_session_resolutions_total", map[string]string{"source": "database"}).GetCounter().GetValue(); v != 1 {
		t.Errorf("database resolutions = %v, want 1", v)
	}
}

func TestRecordLibraryLoad_SuccessAndError(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordLibraryLoad(true)
	c.RecordLibraryLoad(false)
	c.RecordLibraryLoad(false)

	if v := findMetric(t, reg, "trackbox_library_loads_total", map[string]string{"outcome": "success"}).GetCounter().GetValue(); v != 1 {
		t.Errorf("success loads = %v, want 1", v)
	}
	if v := findMetric(t, reg, "trackbox_library_loads_total", map[string]string{"outcome": "error"}).GetCounter().GetValue(); v != 2 {
		t.Errorf("error loads = %v, want 2", v)
	}
}

func TestRecordHTTPStatus_CountsByCode(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordHTTPStatus(http.StatusOK)
	c.RecordHTTPStatus(http.StatusRequestEntityTooLarge)

	if v := findMetric(t, reg, "trackbox_http_status_total", map[string]string{"status_code": "413"}).GetCounter().GetValue(); v != 1 {
		t.Errorf("413 count = %v, want 1", v)
	}
}

// TestHandler_ServesMetrics はスクレイプ用ハンドラーがメトリクスを返すことを検証する。
func TestHandler_ServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordUpload(UploadSuccess)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	Handler(reg).ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `trackbox_uploads_total{outcome="success"} 1`) {
		t.Errorf("response should contain upload counter, got:\n%s", body)
	}
}
