package server

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"justicebench/internal/analysis"
	"justicebench/internal/batch"
	"justicebench/internal/cases"
	"justicebench/internal/llm"
	"justicebench/internal/shared/config"
	"justicebench/internal/shared/server/middleware"
	"justicebench/internal/shared/telemetry"
)

func newTestRouter(t *testing.T, limiter *middleware.RateLimiter) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	restore := telemetry.SetOutput(io.Discard)
	t.Cleanup(restore)
	caseSvc := cases.NewService(cases.NewMemoryRepo())
	return NewRouter(RouterDeps{
		Config:          config.Config{Env: "dev"},
		CaseHandler:     cases.NewHandler(caseSvc),
		BatchHandler:    batch.NewHandler(batch.NewPool(batch.NewRegistry(), 1), nil),
		AnalysisHandler: analysis.NewHandler(analysis.NewService(caseSvc, llm.PlaceholderClient{})),
		Limiter:         limiter,
	})
}

func TestHealthAndMetrics(t *testing.T) {
	r := newTestRouter(t, nil)

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 from health, got %d", resp.Code)
	}
	if resp.Header().Get("X-Request-Id") == "" {
		t.Fatalf("expected request id header")
	}

	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 from metrics, got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), "batch_submitted_total") {
		t.Fatalf("expected batch counters in metrics output, got %s", resp.Body.String())
	}
}

func TestProgressPollingIsRateLimited(t *testing.T) {
	now := time.Unix(1700000000, 0)
	limiter := middleware.NewRateLimiter(func() time.Time { return now })
	r := newTestRouter(t, limiter)

	burst := defaultRateRules[middleware.GroupPolling].Burst
	for i := 0; i < burst; i++ {
		resp := httptest.NewRecorder()
		r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/batches/missing/progress", nil))
		if resp.Code != http.StatusNotFound {
			t.Fatalf("request %d: expected 404, got %d", i, resp.Code)
		}
	}
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/batches/missing/progress", nil))
	if resp.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after burst, got %d", resp.Code)
	}

	// Case routes are not limited.
	for i := 0; i < burst+5; i++ {
		resp := httptest.NewRecorder()
		r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/cases", nil))
		if resp.Code != http.StatusOK {
			t.Fatalf("expected 200 listing cases, got %d", resp.Code)
		}
	}
}

func TestAnalysisRoutesShareSubmitBucket(t *testing.T) {
	now := time.Unix(1700000000, 0)
	limiter := middleware.NewRateLimiter(func() time.Time { return now })
	r := newTestRouter(t, limiter)

	post := func(path string) int {
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(`{"case_id":"missing","case_ids":["missing"]}`))
		req.Header.Set("Content-Type", "application/json")
		resp := httptest.NewRecorder()
		r.ServeHTTP(resp, req)
		return resp.Code
	}

	burst := defaultRateRules[middleware.GroupSubmit].Burst
	paths := []string{"/api/v1/analyses", "/api/v1/cases/missing/questions", "/api/v1/questions"}
	for i := 0; i < burst; i++ {
		if code := post(paths[i%len(paths)]); code != http.StatusNotFound {
			t.Fatalf("request %d: expected 404, got %d", i, code)
		}
	}
	if code := post("/api/v1/questions"); code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after burst, got %d", code)
	}

	// Reading the history is not limited.
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/analyses", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 reading history, got %d", resp.Code)
	}
}

func TestAddr(t *testing.T) {
	tests := map[string]string{"": ":8080", ":9000": ":9000", "7000": ":7000"}
	for in, want := range tests {
		if got := Addr(in); got != want {
			t.Fatalf("Addr(%q) = %q, want %q", in, got, want)
		}
	}
}
