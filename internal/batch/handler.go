package batch

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"

	"justicebench/internal/shared/server/respond"
)

// ErrNoKnownItems is returned by a Planner when none of the requested IDs
// name a stored item.
var ErrNoKnownItems = errors.New("no known items")

// Planner resolves requested item IDs to the ones that exist and builds the
// capability that will analyze them.
type Planner interface {
	Plan(ctx context.Context, itemIDs []string, question string) (known []string, capability Capability, err error)
}

// Handler wires HTTP handlers to the pool and registry.
type Handler struct {
	Pool    *Pool
	Planner Planner
}

// NewHandler constructs a Handler.
func NewHandler(pool *Pool, planner Planner) *Handler {
	return &Handler{Pool: pool, Planner: planner}
}

// RegisterRoutes attaches batch routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/batches", h.submit)
	rg.GET("/batches/:id/progress", h.progress)
}

type submitRequest struct {
	CaseIDs  []string `json:"case_ids"`
	Question string   `json:"question"`
}

func (h *Handler) submit(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.ValidationError(c, "invalid request body", nil)
		return
	}
	items, err := ValidateItems(req.CaseIDs)
	if err != nil {
		respond.ValidationError(c, err.Error(), nil)
		return
	}

	known, capability, err := h.Planner.Plan(c.Request.Context(), items, req.Question)
	if err != nil {
		switch {
		case errors.Is(err, ErrNoKnownItems):
			respond.NotFound(c, "none of the requested cases exist")
		default:
			respond.Internal(c, "failed to start batch")
		}
		return
	}

	taskID, err := h.Pool.Submit(c.Request.Context(), known, capability)
	if err != nil {
		switch {
		case IsSubmissionError(err):
			respond.ValidationError(c, err.Error(), nil)
		default:
			respond.Internal(c, "failed to start batch")
		}
		return
	}
	c.Set("taskId", taskID)

	respond.Accepted(c, gin.H{
		"task_id": taskID,
		"status":  StatusPending,
		"total":   len(known),
		"skipped": skippedItems(items, known),
	})
}

func skippedItems(items, known []string) []string {
	found := make(map[string]struct{}, len(known))
	for _, id := range known {
		found[id] = struct{}{}
	}
	skipped := []string{}
	for _, id := range items {
		if _, ok := found[id]; !ok {
			skipped = append(skipped, id)
		}
	}
	return skipped
}

func (h *Handler) progress(c *gin.Context) {
	taskID := c.Param("id")
	c.Set("taskId", taskID)

	snap, err := h.Pool.Registry().Progress(taskID)
	if err != nil {
		switch {
		case errors.Is(err, ErrTaskNotFound):
			respond.NotFound(c, ErrTaskNotFound.Error())
		default:
			respond.Internal(c, "failed to read progress")
		}
		return
	}
	respond.OK(c, gin.H{"progress": snap})
}
