package analysis

import (
	"errors"
	"io"
	"strings"

	"github.com/gin-gonic/gin"

	"justicebench/internal/batch"
	"justicebench/internal/shared/server/respond"
)

// Handler serves single-case analysis, the results history and question
// generation for stored cases.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches analysis routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/analyses", h.analyze)
	rg.GET("/analyses", h.list)
	rg.POST("/cases/:id/questions", h.caseQuestions)
	rg.POST("/questions", h.batchQuestions)
}

type analyzeRequest struct {
	CaseID   string `json:"case_id"`
	Question string `json:"question"`
}

func (h *Handler) analyze(c *gin.Context) {
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.ValidationError(c, "invalid request body", nil)
		return
	}
	caseID := strings.TrimSpace(req.CaseID)
	if caseID == "" {
		respond.ValidationError(c, "case_id is required", nil)
		return
	}
	c.Set("caseId", caseID)

	entry, err := h.Svc.AnalyzeOne(c.Request.Context(), caseID, req.Question)
	if err != nil {
		h.writeError(c, err, "failed to analyze case")
		return
	}
	respond.OK(c, gin.H{"result": entry})
}

func (h *Handler) list(c *gin.Context) {
	entries := h.Svc.History.List()
	respond.OK(c, gin.H{"results": entries, "total": len(entries)})
}

type questionsRequest struct {
	Count int `json:"num_questions"`
}

func (h *Handler) caseQuestions(c *gin.Context) {
	caseID := c.Param("id")
	c.Set("caseId", caseID)

	var req questionsRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		respond.ValidationError(c, "invalid request body", nil)
		return
	}
	out, err := h.Svc.GenerateQuestions(c.Request.Context(), caseID, req.Count)
	if err != nil {
		h.writeError(c, err, "failed to generate questions")
		return
	}
	respond.OK(c, out)
}

type batchQuestionsRequest struct {
	CaseIDs []string `json:"case_ids"`
	Count   int      `json:"num_questions_per_case"`
}

func (h *Handler) batchQuestions(c *gin.Context) {
	var req batchQuestionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.ValidationError(c, "invalid request body", nil)
		return
	}
	ids, err := batch.ValidateItems(req.CaseIDs)
	if err != nil {
		respond.ValidationError(c, err.Error(), nil)
		return
	}
	out, err := h.Svc.GenerateQuestionsBatch(c.Request.Context(), ids, req.Count)
	if err != nil {
		if errors.Is(err, ErrCaseNotFound) {
			respond.NotFound(c, "none of the requested cases exist")
			return
		}
		h.writeError(c, err, "failed to generate questions")
		return
	}
	respond.OK(c, out)
}

func (h *Handler) writeError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, ErrCaseNotFound):
		respond.NotFound(c, "case not found")
	case errors.Is(err, ErrEmptyCaseText), errors.Is(err, ErrInvalidQuestionCount):
		respond.ValidationError(c, err.Error(), nil)
	case errors.Is(err, ErrUpstream):
		respond.Upstream(c, err.Error())
	default:
		respond.Internal(c, fallback)
	}
}
