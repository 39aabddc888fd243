package openai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"justicebench/internal/llm"
	"justicebench/internal/shared/telemetry"
)

func TestIsGPT5(t *testing.T) {
	tests := []struct {
		name  string
		model string
		want  bool
	}{
		{name: "gpt5", model: "gpt-5", want: true},
		{name: "gpt5 variant", model: "gpt-5-mini", want: true},
		{name: "gpt5 uppercase", model: " GPT-5o ", want: true},
		{name: "gpt4", model: "gpt-4o", want: false},
		{name: "empty", model: "", want: false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if got := isGPT5(tt.model); got != tt.want {
				t.Fatalf("isGPT5(%q) = %v, want %v", tt.model, got, tt.want)
			}
		})
	}
}

type recorded struct {
	mu   sync.Mutex
	body map[string]any
}

func newServer(t *testing.T, rec *recorded, status int, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode request: %v", err)
		}
		rec.mu.Lock()
		rec.body = payload
		rec.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		resp := map[string]any{
			"choices": []map[string]any{{"message": map[string]any{"role": "assistant", "content": content}}},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func silence(t *testing.T) {
	t.Helper()
	restore := telemetry.SetOutput(io.Discard)
	t.Cleanup(restore)
}

func TestModelOverrideFromContext(t *testing.T) {
	silence(t)
	rec := &recorded{}
	server := newServer(t, rec, http.StatusOK, "判决驳回原告诉讼请求")
	defer server.Close()

	client, err := NewClient("test-key", "gpt-4o-mini", server.URL+"/")
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	got, err := client.AnalyzeCase(llm.WithModel(context.Background(), "deepseek-chat"), llm.AnalyzeInput{CaseTitle: "借款纠纷", CaseText: "..."})
	if err != nil {
		t.Fatalf("AnalyzeCase: %v", err)
	}
	if got != "判决驳回原告诉讼请求" {
		t.Fatalf("unexpected content %q", got)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.body["model"] != "deepseek-chat" {
		t.Fatalf("expected override model, got %v", rec.body["model"])
	}
	if _, ok := rec.body["response_format"]; ok {
		t.Fatalf("expected free-text call to omit response_format")
	}
}

func TestGenerateQuestionsParsesJSON(t *testing.T) {
	silence(t)
	rec := &recorded{}
	server := newServer(t, rec, http.StatusOK, `{"questions":["Q1"," ","Q2"]}`)
	defer server.Close()

	client, _ := NewClient("k", "gpt-4o-mini", server.URL)
	got, err := client.GenerateQuestions(context.Background(), "case text")
	if err != nil {
		t.Fatalf("GenerateQuestions: %v", err)
	}
	if len(got) != 2 || got[0] != "Q1" || got[1] != "Q2" {
		t.Fatalf("unexpected questions %v", got)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	format, _ := rec.body["response_format"].(map[string]any)
	if format["type"] != "json_object" {
		t.Fatalf("expected json_object response format, got %v", rec.body["response_format"])
	}
}

func TestServerErrorIsRetryable(t *testing.T) {
	silence(t)
	rec := &recorded{}
	server := newServer(t, rec, http.StatusBadGateway, "x")
	defer server.Close()

	client, _ := NewClient("k", "gpt-4o-mini", server.URL)
	_, err := client.MaskText(context.Background(), "张三")
	if err == nil || !strings.Contains(err.Error(), "http status 502") {
		t.Fatalf("expected http status error, got %v", err)
	}
	if !llm.ShouldRetry(err) {
		t.Fatalf("expected 5xx to be retryable")
	}
}

func TestNewClientRequiresKey(t *testing.T) {
	if _, err := NewClient("", "gpt-4o-mini", ""); err == nil {
		t.Fatalf("expected missing key error")
	}
}
