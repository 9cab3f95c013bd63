package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/trackbox/internal/auth"
)

// TestRecoveryMiddleware_PanicReturnsJSON500 はpanic時に統一フォーマットの500が返ることを検証する。
func TestRecoveryMiddleware_PanicReturnsJSON500(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	handler := NewRecoveryMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
	var body ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if body.Code != "INTERNAL_ERROR" {
		t.Errorf("code = %q", body.Code)
	}
	if !bytes.Contains(buf.Bytes(), []byte("panic recovered")) {
		t.Errorf("expected panic to be logged, got %s", buf.String())
	}
}

// TestSecurityHeadersMiddleware_SetsHeaders はセキュリティヘッダーが付与されることを検証する。
func TestSecurityHeadersMiddleware_SetsHeaders(t *testing.T) {
	handler := NewSecurityHeadersMiddleware()(okHandler())

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	want := map[string]string{
		"X-Content-Type-Options":  "nosniff",
		"X-Frame-Options":         "DENY",
		"Referrer-Policy":         "strict-origin-when-cross-origin",
		"Content-Security-Policy": contentSecurityPolicy,
	}
	for header, value := range want {
		if got := w.Header().Get(header); got != value {
			t.Errorf("%s = %q, want %q", header, got, value)
		}
	}
}

// TestMetricsMiddleware_RecordsStatus はレスポンスのステータスコードが記録されることを検証する。
func TestMetricsMiddleware_RecordsStatus(t *testing.T) {
	collector := &mockMetrics{}
	handler := NewMetricsMiddleware(collector)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusSeeOther)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/", nil))

	if len(collector.statuses) != 1 || collector.statuses[0] != http.StatusSeeOther {
		t.Errorf("statuses = %v", collector.statuses)
	}
}

// TestMiddlewareChain_FullOrder はchi.Router上で全ミドルウェアを本番と同じ順序で組み合わせた動作を検証する。
func TestMiddlewareChain_FullOrder(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	resolver := &mockResolver{
		resolveFn: func(ctx context.Context, cookieHeader string) (auth.Resolution, error) {
			if cookieHeader == "" {
				return auth.Unauthenticated(), nil
			}
			return authenticated("user-chain", "chain@example.com"), nil
		},
	}
	collector := &mockMetrics{}
	rl := newTestRateLimiter(t, 5)

	r := chi.NewRouter()
	r.Use(NewRecoveryMiddleware(logger))
	r.Use(NewSecurityHeadersMiddleware())
	r.Use(NewLoggingMiddleware(logger))
	r.Use(NewMetricsMiddleware(collector))
	r.Use(NewSessionMiddleware(resolver, collector, logger))
	r.Use(NewOriginCheckMiddleware("http://example.com"))
	r.With(rl.UploadMiddleware(collector)).Post("/", func(w http.ResponseWriter, r *http.Request) {
		userID, _ := UserIDFromContext(r.Context())
		w.Write([]byte(userID))
	})

	// 同一オリジンのフォーム送信は認証情報付きで通る
	req := httptest.NewRequest(http.MethodPost, "http://example.com/", nil)
	req.Header.Set("Content-Type", "multipart/form-data; boundary=x")
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Cookie", "session=abc")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if w.Body.String() != "user-chain" {
		t.Errorf("body = %q, want %q", w.Body.String(), "user-chain")
	}
	if w.Header().Get("X-Frame-Options") != "DENY" {
		t.Error("security headers should be set")
	}

	// クロスサイトのフォーム送信は403
	req = httptest.NewRequest(http.MethodPost, "http://example.com/", nil)
	req.Header.Set("Content-Type", "multipart/form-data; boundary=x")
	req.Header.Set("Origin", "https://evil.example")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("cross-site status = %d, want %d", w.Code, http.StatusForbidden)
	}
	if len(collector.statuses) != 2 || collector.statuses[1] != http.StatusForbidden {
		t.Errorf("statuses = %v", collector.statuses)
	}
}
