package cases

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"justicebench/internal/shared/server/respond"
)

// Handler wires HTTP handlers to the case service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches case routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/cases", h.list)
	rg.POST("/cases", h.create)
	rg.GET("/cases/:id", h.get)
	rg.DELETE("/cases/:id", h.delete)
}

func (h *Handler) create(c *gin.Context) {
	var in CreateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respond.ValidationError(c, "invalid request body", nil)
		return
	}
	created, err := h.Svc.Create(c.Request.Context(), in)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidCase):
			respond.ValidationError(c, err.Error(), nil)
		default:
			respond.Internal(c, "failed to create case")
		}
		return
	}
	c.Set("caseId", created.ID)
	respond.Created(c, created)
}

func (h *Handler) get(c *gin.Context) {
	id := c.Param("id")
	c.Set("caseId", id)
	found, err := h.Svc.Get(c.Request.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.NotFound(c, "case not found")
		default:
			respond.Internal(c, "failed to fetch case")
		}
		return
	}
	respond.OK(c, found)
}

func (h *Handler) list(c *gin.Context) {
	limit := 50
	offset := 0
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			limit = parsed
		}
	}
	if limit < 0 {
		limit = 0
	}
	if v := c.Query("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			offset = parsed
		}
	}
	if offset < 0 {
		offset = 0
	}

	found, err := h.Svc.List(c.Request.Context(), limit, offset)
	if err != nil {
		respond.Internal(c, "failed to list cases")
		return
	}
	respond.OK(c, gin.H{"cases": found})
}

func (h *Handler) delete(c *gin.Context) {
	id := c.Param("id")
	c.Set("caseId", id)
	if err := h.Svc.Delete(c.Request.Context(), id); err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.NotFound(c, "case not found")
		default:
			respond.Internal(c, "failed to delete case")
		}
		return
	}
	c.Status(http.StatusNoContent)
}
