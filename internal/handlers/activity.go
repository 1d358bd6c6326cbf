package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ecotrace/footprint-backend/internal/services"
)

type ActivityHandler struct {
	activity services.ActivityService
}

func NewActivityHandler(activity services.ActivityService) *ActivityHandler {
	return &ActivityHandler{activity: activity}
}

type recordActivityRequest struct {
	DataType string  `json:"data_type" binding:"required"`
	Scope    int     `json:"scope" binding:"required"`
	Value    float64 `json:"value"`
	Unit     string  `json:"unit" binding:"required"`
}

// POST /api/companies/:id/activity
func (h *ActivityHandler) Record(c *gin.Context) {
	companyID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_company_id", err)
		return
	}
	var req recordActivityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request_body", err)
		return
	}
	entry, err := h.activity.Record(c.Request.Context(), companyID, req.DataType, req.Scope, req.Value, req.Unit)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"entry": entry})
}

type recomputeActivityRequest struct {
	Value float64 `json:"value"`
}

// POST /api/activity/:id/recompute
func (h *ActivityHandler) Recompute(c *gin.Context) {
	entryID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_entry_id", err)
		return
	}
	var req recomputeActivityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request_body", err)
		return
	}
	entry, err := h.activity.Recompute(c.Request.Context(), entryID, req.Value)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"entry": entry})
}

// GET /api/companies/:id/activity
func (h *ActivityHandler) List(c *gin.Context) {
	companyID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_company_id", err)
		return
	}
	entries, err := h.activity.List(c.Request.Context(), companyID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"entries": entries})
}
