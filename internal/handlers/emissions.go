package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ecotrace/footprint-backend/internal/emissions"
)

type EmissionsHandler struct {
	agg *emissions.Aggregator
}

func NewEmissionsHandler(agg *emissions.Aggregator) *EmissionsHandler {
	return &EmissionsHandler{agg: agg}
}

// GET /api/companies/:id/emissions
//
// Scope totals are reported in tonnes CO2e; the aggregator works in kg
// internally and converts once at this boundary.
func (h *EmissionsHandler) GetCompanyEmissions(c *gin.Context) {
	companyID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_company_id", err)
		return
	}
	summary, err := h.agg.Aggregate(c.Request.Context(), companyID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"emissions": summary.Tonnes()})
}
