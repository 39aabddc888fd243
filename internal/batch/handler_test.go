package batch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

type stubPlanner struct {
	known map[string]bool
	err   error
}

func (p stubPlanner) Plan(ctx context.Context, itemIDs []string, question string) ([]string, Capability, error) {
	if p.err != nil {
		return nil, nil, p.err
	}
	var known []string
	for _, id := range itemIDs {
		if p.known[id] {
			known = append(known, id)
		}
	}
	if len(known) == 0 {
		return nil, nil, ErrNoKnownItems
	}
	return known, echoCapability(), nil
}

func newTestRouter(planner Planner) (*gin.Engine, *Pool) {
	gin.SetMode(gin.TestMode)
	pool := NewPool(NewRegistry(), 4)
	r := gin.New()
	NewHandler(pool, planner).RegisterRoutes(r.Group("/api/v1"))
	return r, pool
}

func postJSON(r *gin.Engine, path string, body any) *httptest.ResponseRecorder {
	payload, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func TestSubmitThenPollProgress(t *testing.T) {
	r, pool := newTestRouter(stubPlanner{known: map[string]bool{"c1": true, "c2": true}})

	resp := postJSON(r, "/api/v1/batches", map[string]any{"case_ids": []string{"c1", "c2", "gone"}})
	if resp.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", resp.Code, resp.Body.String())
	}
	var accepted struct {
		TaskID  string   `json:"task_id"`
		Status  string   `json:"status"`
		Total   int      `json:"total"`
		Skipped []string `json:"skipped"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &accepted); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if accepted.TaskID == "" || accepted.Status != "pending" || accepted.Total != 2 || len(accepted.Skipped) != 1 || accepted.Skipped[0] != "gone" {
		t.Fatalf("unexpected accept body: %+v", accepted)
	}

	pool.Wait()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/batches/"+accepted.TaskID+"/progress", nil)
	progResp := httptest.NewRecorder()
	r.ServeHTTP(progResp, req)
	if progResp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", progResp.Code)
	}
	var body struct {
		Progress Snapshot `json:"progress"`
	}
	if err := json.Unmarshal(progResp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Progress.Status != StatusCompleted || body.Progress.Success != 2 || len(body.Progress.Results) != 2 {
		t.Fatalf("unexpected progress: %+v", body.Progress)
	}
}

func TestSubmitRejectsMalformedIDs(t *testing.T) {
	r, _ := newTestRouter(stubPlanner{known: map[string]bool{"c1": true}})

	for name, ids := range map[string][]string{
		"empty":     {},
		"blank":     {"c1", ""},
		"duplicate": {"c1", "c1"},
	} {
		resp := postJSON(r, "/api/v1/batches", map[string]any{"case_ids": ids})
		if resp.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", name, resp.Code)
		}
	}
}

func TestSubmitUnknownCasesIs404(t *testing.T) {
	r, _ := newTestRouter(stubPlanner{known: map[string]bool{}})
	resp := postJSON(r, "/api/v1/batches", map[string]any{"case_ids": []string{"nope"}})
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}

func TestSubmitPlannerErrorIs500(t *testing.T) {
	r, _ := newTestRouter(stubPlanner{err: errors.New("db down")})
	resp := postJSON(r, "/api/v1/batches", map[string]any{"case_ids": []string{"c1"}})
	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.Code)
	}
}

func TestProgressUnknownTaskIs404(t *testing.T) {
	r, _ := newTestRouter(stubPlanner{})
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/batches/does-not-exist/progress", nil))
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
	var body struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	_ = json.Unmarshal(resp.Body.Bytes(), &body)
	if body.Error.Message != "task missing or expired" {
		t.Fatalf("unexpected message %q", body.Error.Message)
	}
}
