package benchclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"justicebench/internal/analysis"
	"justicebench/internal/batch"
	"justicebench/internal/cases"
	"justicebench/internal/evaluation"
	"justicebench/internal/llm"
	"justicebench/internal/workflow"
)

const apiPrefix = "/api/v1"

// Client talks to the justicebench HTTP API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New constructs a Client for baseURL (e.g. http://localhost:8080). A nil
// httpClient uses one with a 5 minute timeout, enough for a slow model call.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Minute}
	}
	return &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient: httpClient,
	}
}

// APIError is a non-2xx response carrying the standard error body.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("http status %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("http status %d: %s: %s", e.Status, e.Code, e.Message)
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) doJSONRequest(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+apiPrefix+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
		var env errorEnvelope
		if json.Unmarshal(raw, &env) == nil && env.Error.Code != "" {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
		}
		return apiErr
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", req.Method, req.URL.Path, err)
	}
	return nil
}

// CreateCase stores a case.
func (c *Client) CreateCase(ctx context.Context, in cases.CreateInput) (cases.Case, error) {
	var out cases.Case
	err := c.doJSONRequest(ctx, http.MethodPost, "/cases", in, &out)
	return out, err
}

// ListCases returns stored cases newest first.
func (c *Client) ListCases(ctx context.Context, limit, offset int) ([]cases.Case, error) {
	q := url.Values{}
	q.Set("limit", fmt.Sprint(limit))
	q.Set("offset", fmt.Sprint(offset))
	var out struct {
		Cases []cases.Case `json:"cases"`
	}
	err := c.doJSONRequest(ctx, http.MethodGet, "/cases?"+q.Encode(), nil, &out)
	return out.Cases, err
}

// AnalyzeCase analyzes one stored case outside any batch.
func (c *Client) AnalyzeCase(ctx context.Context, caseID, question string) (analysis.Entry, error) {
	var out struct {
		Result analysis.Entry `json:"result"`
	}
	err := c.doJSONRequest(ctx, http.MethodPost, "/analyses", map[string]any{
		"case_id":  caseID,
		"question": question,
	}, &out)
	return out.Result, err
}

// ListResults returns the results history, oldest first.
func (c *Client) ListResults(ctx context.Context) ([]analysis.Entry, error) {
	var out struct {
		Results []analysis.Entry `json:"results"`
	}
	err := c.doJSONRequest(ctx, http.MethodGet, "/analyses", nil, &out)
	return out.Results, err
}

// GenerateCaseQuestions asks for up to n test questions about one case.
// n == 0 uses the server maximum.
func (c *Client) GenerateCaseQuestions(ctx context.Context, caseID string, n int) (analysis.CaseQuestions, error) {
	var out analysis.CaseQuestions
	err := c.doJSONRequest(ctx, http.MethodPost, "/cases/"+url.PathEscape(caseID)+"/questions", map[string]any{
		"num_questions": n,
	}, &out)
	return out, err
}

// GenerateQuestionsBatch asks for up to n questions for each case.
func (c *Client) GenerateQuestionsBatch(ctx context.Context, caseIDs []string, n int) (analysis.QuestionBatch, error) {
	var out analysis.QuestionBatch
	err := c.doJSONRequest(ctx, http.MethodPost, "/questions", map[string]any{
		"case_ids":               caseIDs,
		"num_questions_per_case": n,
	}, &out)
	return out, err
}

// Submission is the server's acknowledgement of a batch.
type Submission struct {
	TaskID  string       `json:"task_id"`
	Status  batch.Status `json:"status"`
	Total   int          `json:"total"`
	Skipped []string     `json:"skipped"`
}

// SubmitBatch starts a batch analysis of caseIDs.
func (c *Client) SubmitBatch(ctx context.Context, caseIDs []string, question string) (Submission, error) {
	var out Submission
	err := c.doJSONRequest(ctx, http.MethodPost, "/batches", map[string]any{
		"case_ids": caseIDs,
		"question": question,
	}, &out)
	return out, err
}

// GetProgress returns the current snapshot of a batch.
func (c *Client) GetProgress(ctx context.Context, taskID string) (batch.Snapshot, error) {
	var out struct {
		Progress batch.Snapshot `json:"progress"`
	}
	err := c.doJSONRequest(ctx, http.MethodGet, "/batches/"+url.PathEscape(taskID)+"/progress", nil, &out)
	return out.Progress, err
}

// CreateSession uploads a file (multipart) or pasted text.
func (c *Client) CreateSession(ctx context.Context, upload workflow.Upload) (string, string, error) {
	var out struct {
		SessionID string `json:"session_id"`
		Text      string `json:"text"`
	}
	if len(upload.Data) == 0 {
		err := c.doJSONRequest(ctx, http.MethodPost, "/sessions", map[string]string{
			"file_name": upload.FileName,
			"text":      upload.Text,
		}, &out)
		return out.SessionID, out.Text, err
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fileName := upload.FileName
	if fileName == "" {
		fileName = "upload"
	}
	part, err := mw.CreateFormFile("file", fileName)
	if err != nil {
		return "", "", err
	}
	if _, err := part.Write(upload.Data); err != nil {
		return "", "", err
	}
	if err := mw.Close(); err != nil {
		return "", "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+apiPrefix+"/sessions", &body)
	if err != nil {
		return "", "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	err = c.do(req, &out)
	return out.SessionID, out.Text, err
}

func sessionPath(id string, rest ...string) string {
	path := "/sessions/" + url.PathEscape(id)
	for _, r := range rest {
		path += "/" + r
	}
	return path
}

func (c *Client) Mask(ctx context.Context, sessionID, mode string) (string, error) {
	var out struct {
		RedactedText string `json:"redacted_text"`
	}
	err := c.doJSONRequest(ctx, http.MethodPost, sessionPath(sessionID, "mask"), map[string]string{"mode": mode}, &out)
	return out.RedactedText, err
}

func (c *Client) SetRedacted(ctx context.Context, sessionID, text string) error {
	return c.doJSONRequest(ctx, http.MethodPut, sessionPath(sessionID, "redacted"), map[string]string{"redacted_text": text}, nil)
}

func (c *Client) GenerateQuestions(ctx context.Context, sessionID string) ([]string, error) {
	var out struct {
		Questions []string `json:"questions"`
	}
	err := c.doJSONRequest(ctx, http.MethodPost, sessionPath(sessionID, "questions", "generate"), nil, &out)
	return out.Questions, err
}

func (c *Client) ReplaceQuestions(ctx context.Context, sessionID string, questions []string) error {
	if questions == nil {
		questions = []string{}
	}
	return c.doJSONRequest(ctx, http.MethodPut, sessionPath(sessionID, "questions"), map[string]any{"questions": questions}, nil)
}

func (c *Client) GenerateAnswer(ctx context.Context, sessionID string, index int, model string) (llm.Answer, error) {
	var out llm.Answer
	err := c.doJSONRequest(ctx, http.MethodPost, sessionPath(sessionID, "answers", fmt.Sprint(index)), map[string]string{"model": model}, &out)
	return out, err
}

func (c *Client) Evaluate(ctx context.Context, sessionID string, index int, reference string) (evaluation.Record, error) {
	var out struct {
		Evaluation evaluation.Record `json:"evaluation"`
	}
	err := c.doJSONRequest(ctx, http.MethodPost, sessionPath(sessionID, "evaluations", fmt.Sprint(index)), map[string]string{"reference": reference}, &out)
	return out.Evaluation, err
}

func (c *Client) DeleteSession(ctx context.Context, sessionID string) error {
	return c.doJSONRequest(ctx, http.MethodDelete, sessionPath(sessionID), nil, nil)
}

var _ workflow.API = (*Client)(nil)
