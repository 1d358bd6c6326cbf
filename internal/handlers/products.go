package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ecotrace/footprint-backend/internal/footprint"
	"github.com/ecotrace/footprint-backend/internal/repos"
	"github.com/ecotrace/footprint-backend/internal/types"
)

type ProductsHandler struct {
	products repos.ProductRepo
	calc     *footprint.Calculator
}

func NewProductsHandler(products repos.ProductRepo, calc *footprint.Calculator) *ProductsHandler {
	return &ProductsHandler{products: products, calc: calc}
}

// GET /api/products/:id/footprint
//
// Returns the cached per-field footprints by default. With ?fresh=true the
// footprint is recomputed inline without touching the cache, which is useful
// for previewing a dataset change before enqueueing a calculation job.
func (h *ProductsHandler) GetFootprint(c *gin.Context) {
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

	if c.Query("fresh") == "true" {
		result, err := h.calc.Calculate(c.Request.Context(), product)
		if err != nil {
			RespondServiceError(c, err)
			return
		}
		RespondOK(c, gin.H{"product_id": product.ID, "fresh": true, "footprint": result})
		return
	}

	cached := map[string]*types.CachedFootprint{}
	for _, field := range []string{types.FieldCarbon, types.FieldWater, types.FieldWaste} {
		cf, err := product.CachedField(field)
		if err != nil {
			RespondServiceError(c, err)
			return
		}
		cached[field] = cf
	}
	RespondOK(c, gin.H{"product_id": product.ID, "fresh": false, "cached": cached})
}
