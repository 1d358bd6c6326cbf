package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ecotrace/footprint-backend/internal/consistency"
	"github.com/ecotrace/footprint-backend/internal/footprint"
	"github.com/ecotrace/footprint-backend/internal/repos"
)

type ConsistencyHandler struct {
	svc      *consistency.Service
	products repos.ProductRepo
	calc     *footprint.Calculator
}

func NewConsistencyHandler(svc *consistency.Service, products repos.ProductRepo, calc *footprint.Calculator) *ConsistencyHandler {
	return &ConsistencyHandler{svc: svc, products: products, calc: calc}
}

type auditRequest struct {
	ProductID *uuid.UUID `json:"product_id"`
}

// POST /api/consistency/audit
//
// With a product_id in the body only that product is audited, otherwise the
// whole catalog is swept.
func (h *ConsistencyHandler) Audit(c *gin.Context) {
	var req auditRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			RespondError(c, http.StatusBadRequest, "invalid_request_body", err)
			return
		}
	}
	var (
		report *consistency.Report
		err    error
	)
	if req.ProductID != nil {
		report, err = h.svc.AuditProduct(c.Request.Context(), *req.ProductID)
	} else {
		report, err = h.svc.AuditAll(c.Request.Context())
	}
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"report": report})
}

// POST /api/products/:id/sync
//
// Recomputes the footprint inline and writes it through the same sync path
// the job handler uses, so manual syncs and job completions behave
// identically.
func (h *ConsistencyHandler) Sync(c *gin.Context) {
	productID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_product_id", err)
		return
	}
	product, err := h.products.GetByID(c.Request.Context(), nil, productID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	if product == nil {
		RespondError(c, http.StatusNotFound, "product_not_found", errors.New("product not found"))
		return
	}
	result, err := h.calc.Calculate(c.Request.Context(), product)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	changed, err := h.svc.Sync(c.Request.Context(), productID, result, nil)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"product_id": productID, "changed": changed, "footprint": result})
}

type recoverRequest struct {
	Fields []string `json:"fields"`
}

// POST /api/products/:id/recover
func (h *ConsistencyHandler) Recover(c *gin.Context) {
	productID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_product_id", err)
		return
	}
	var req recoverRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			RespondError(c, http.StatusBadRequest, "invalid_request_body", err)
			return
		}
	}
	result, err := h.svc.Recover(c.Request.Context(), productID, req.Fields)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"product_id": productID, "footprint": result})
}

// GET /api/companies/:id/alerts
func (h *ConsistencyHandler) ListAlerts(c *gin.Context) {
	companyID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_company_id", err)
		return
	}
	alerts, err := h.svc.ListActiveAlerts(c.Request.Context(), companyID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"alerts": alerts})
}
