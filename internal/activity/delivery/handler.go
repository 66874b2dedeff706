package delivery

import (
	"errors"
	"net/http"
	"strconv"

	"crono-backend/internal/activity/domain"
	"crono-backend/internal/activity/usecase"
	authdelivery "crono-backend/internal/auth/delivery"

	"github.com/gin-gonic/gin"
)

// ActivityHandler handles the completion boundary of activities
type ActivityHandler struct {
	activityUsecase usecase.ActivityUsecase
}

// NewActivityHandler creates a new ActivityHandler
func NewActivityHandler(activityUsecase usecase.ActivityUsecase) *ActivityHandler {
	return &ActivityHandler{activityUsecase: activityUsecase}
}

// SetCompletedRequest is the body of the completion toggle
type SetCompletedRequest struct {
	Completed *bool  `json:"completed" binding:"required"`
	Shape     string `json:"shape"`
}

// SetCompleted flips the completed flag
// PATCH /api/activities/:id/completed
func (h *ActivityHandler) SetCompleted(c *gin.Context) {
	ownerID := authdelivery.OwnerID(c)

	var req SetCompletedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	shape := domain.ShapeStandalone
	switch domain.Shape(req.Shape) {
	case "", domain.ShapeStandalone:
	case domain.ShapeEmbedded:
		shape = domain.ShapeEmbedded
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "shape must be standalone or embedded"})
		return
	}

	ref := domain.ActivityRef{ID: c.Param("id"), OwnerID: ownerID, Shape: shape}
	result, err := h.activityUsecase.SetCompleted(c.Request.Context(), ownerID, ref, *req.Completed)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Activity not found"})
		case errors.Is(err, domain.ErrForbidden):
			c.JSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, result)
}

// ListCompleted returns the owner's completed archive
// GET /api/activities/completed?limit=50
func (h *ActivityHandler) ListCompleted(c *gin.Context) {
	ownerID := authdelivery.OwnerID(c)
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	items, err := h.activityUsecase.ListCompleted(c.Request.Context(), ownerID, limit)
	if err != nil {
		if errors.Is(err, domain.ErrOwnerNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Owner not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"completed": items,
		"total":     len(items),
	})
}
