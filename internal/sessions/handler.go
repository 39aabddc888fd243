package sessions

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"justicebench/internal/extract"
	"justicebench/internal/masking"
	"justicebench/internal/shared/server/respond"
)

const maxUploadSize = 10 << 20 // 10MB

// Handler wires HTTP handlers to the session service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches session routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/sessions", h.create)
	rg.GET("/sessions/:id", h.get)
	rg.DELETE("/sessions/:id", h.delete)
	rg.POST("/sessions/:id/mask", h.mask)
	rg.PUT("/sessions/:id/redacted", h.setRedacted)
	rg.POST("/sessions/:id/questions/generate", h.generateQuestions)
	rg.PUT("/sessions/:id/questions", h.replaceQuestions)
	rg.POST("/sessions/:id/answers/:index", h.answer)
	rg.POST("/sessions/:id/evaluations/:index", h.evaluate)
	rg.GET("/sessions/:id/summary", h.summary)
}

type createRequest struct {
	FileName string `json:"file_name"`
	Text     string `json:"text"`
}

func (h *Handler) create(c *gin.Context) {
	var in CreateInput
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadSize)
		fileHeader, err := c.FormFile("file")
		if err != nil {
			respond.ValidationError(c, "file is required", nil)
			return
		}
		file, err := fileHeader.Open()
		if err != nil {
			respond.ValidationError(c, "unable to read file", nil)
			return
		}
		defer file.Close()
		data, err := io.ReadAll(file)
		if err != nil {
			respond.ValidationError(c, "unable to read file", nil)
			return
		}
		in = CreateInput{
			FileName: fileHeader.Filename,
			MimeType: fileHeader.Header.Get("Content-Type"),
			Data:     data,
		}
	} else {
		var req createRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respond.ValidationError(c, "invalid request body", nil)
			return
		}
		in = CreateInput{FileName: req.FileName, Text: req.Text}
	}

	sess, err := h.Svc.Create(c.Request.Context(), in)
	if err != nil {
		h.fail(c, err, "failed to create session")
		return
	}
	c.Set("sessionId", sess.ID)
	respond.Created(c, gin.H{"session_id": sess.ID, "text": sess.RawText})
}

func (h *Handler) get(c *gin.Context) {
	id := h.sessionID(c)
	sess, err := h.Svc.Get(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err, "failed to fetch session")
		return
	}
	respond.OK(c, sess)
}

func (h *Handler) delete(c *gin.Context) {
	if err := h.Svc.Delete(c.Request.Context(), h.sessionID(c)); err != nil {
		h.fail(c, err, "failed to delete session")
		return
	}
	c.Status(http.StatusNoContent)
}

type maskRequest struct {
	Mode string `json:"mode"`
}

func (h *Handler) mask(c *gin.Context) {
	id := h.sessionID(c)
	var req maskRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respond.ValidationError(c, "invalid request body", nil)
			return
		}
	}
	mode, err := masking.ParseMode(req.Mode)
	if err != nil {
		respond.ValidationError(c, err.Error(), nil)
		return
	}
	res, err := h.Svc.Mask(c.Request.Context(), id, mode)
	if err != nil {
		h.fail(c, err, "failed to mask text")
		return
	}
	respond.OK(c, gin.H{"redacted_text": res.Text, "mode": res.Mode, "fell_back": res.FellBack})
}

type redactedRequest struct {
	RedactedText string `json:"redacted_text"`
}

func (h *Handler) setRedacted(c *gin.Context) {
	id := h.sessionID(c)
	var req redactedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.ValidationError(c, "invalid request body", nil)
		return
	}
	if _, err := h.Svc.SetRedacted(c.Request.Context(), id, req.RedactedText); err != nil {
		h.fail(c, err, "failed to update redacted text")
		return
	}
	respond.OK(c, gin.H{"ok": true})
}

func (h *Handler) generateQuestions(c *gin.Context) {
	questions, err := h.Svc.GenerateQuestions(c.Request.Context(), h.sessionID(c))
	if err != nil {
		h.fail(c, err, "failed to generate questions")
		return
	}
	respond.OK(c, gin.H{"questions": questions})
}

type questionsRequest struct {
	Questions []string `json:"questions"`
}

func (h *Handler) replaceQuestions(c *gin.Context) {
	id := h.sessionID(c)
	var req questionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.ValidationError(c, "invalid request body", nil)
		return
	}
	if _, err := h.Svc.ReplaceQuestions(c.Request.Context(), id, req.Questions); err != nil {
		h.fail(c, err, "failed to update questions")
		return
	}
	respond.OK(c, gin.H{"ok": true})
}

type answerRequest struct {
	Model string `json:"model"`
}

func (h *Handler) answer(c *gin.Context) {
	id := h.sessionID(c)
	index, ok := h.index(c)
	if !ok {
		return
	}
	var req answerRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respond.ValidationError(c, "invalid request body", nil)
			return
		}
	}
	answer, err := h.Svc.GenerateAnswer(c.Request.Context(), id, index, req.Model)
	if err != nil {
		h.fail(c, err, "failed to generate answer")
		return
	}
	respond.OK(c, answer)
}

type evaluateRequest struct {
	Reference string `json:"reference"`
}

func (h *Handler) evaluate(c *gin.Context) {
	id := h.sessionID(c)
	index, ok := h.index(c)
	if !ok {
		return
	}
	var req evaluateRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respond.ValidationError(c, "invalid request body", nil)
			return
		}
	}
	res, err := h.Svc.Evaluate(c.Request.Context(), id, index, req.Reference)
	if err != nil {
		h.fail(c, err, "failed to evaluate answer")
		return
	}
	respond.OK(c, gin.H{"evaluation": res.Record, "fallback": res.Fallback})
}

func (h *Handler) summary(c *gin.Context) {
	sum, err := h.Svc.Summary(c.Request.Context(), h.sessionID(c))
	if err != nil {
		h.fail(c, err, "failed to summarize session")
		return
	}
	respond.OK(c, gin.H{"summary": sum})
}

func (h *Handler) sessionID(c *gin.Context) string {
	id := c.Param("id")
	c.Set("sessionId", id)
	return id
}

func (h *Handler) index(c *gin.Context) (int, bool) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil || index < 0 {
		respond.ValidationError(c, "index must be a non-negative integer", nil)
		return 0, false
	}
	return index, true
}

func (h *Handler) fail(c *gin.Context, err error, fallbackMessage string) {
	switch {
	case errors.Is(err, ErrNotFound):
		respond.NotFound(c, "session not found or expired")
	case errors.Is(err, ErrInvalidInput),
		errors.Is(err, ErrTooManyQuestions),
		errors.Is(err, ErrIndexOutOfRange),
		errors.Is(err, extract.ErrUnsupportedType),
		errors.Is(err, extract.ErrNoText),
		errors.Is(err, extract.ErrUnreadable):
		respond.ValidationError(c, err.Error(), nil)
	case errors.Is(err, ErrNoRedactedText), errors.Is(err, ErrNoAnswer), errors.Is(err, ErrConflict):
		respond.Precondition(c, err.Error())
	case errors.Is(err, ErrUpstream):
		respond.Error(c, http.StatusBadGateway, "upstream_error", fallbackMessage, gin.H{"cause": err.Error()})
	default:
		respond.Internal(c, fallbackMessage)
	}
}
