package jobs

import (
	"fmt"

	"github.com/ecotrace/footprint-backend/internal/consistency"
	"github.com/ecotrace/footprint-backend/internal/footprint"
	"github.com/ecotrace/footprint-backend/internal/platform/logger"
	"github.com/ecotrace/footprint-backend/internal/repos"
	"github.com/ecotrace/footprint-backend/internal/types"
)

// FootprintHandler executes a product footprint calculation job through the
// coarse checkpoint sequence: gather inputs, resolve materials, compute
// stages, finalize and persist. Cancellation is observed only at those
// boundaries.
type FootprintHandler struct {
	products repos.ProductRepo
	calc     *footprint.Calculator
	syncer   *consistency.Service
	log      *logger.Logger
}

func NewFootprintHandler(products repos.ProductRepo, calc *footprint.Calculator, syncer *consistency.Service, baseLog *logger.Logger) *FootprintHandler {
	return &FootprintHandler{
		products: products,
		calc:     calc,
		syncer:   syncer,
		log:      baseLog.With("handler", types.JobTypeFootprintCalculate),
	}
}

func (h *FootprintHandler) Run(jc *Context) {
	if !jc.Checkpoint(types.JobStageGatherInputs, 10, "loading product") {
		return
	}
	productID := jc.Job.ProductID
	product, err := h.products.GetByID(jc.Ctx, nil, productID)
	if err != nil {
		jc.Fail(types.JobStageGatherInputs, fmt.Errorf("load product: %w", err))
		return
	}
	if product == nil {
		jc.Fail(types.JobStageGatherInputs, fmt.Errorf("product %s not found", productID))
		return
	}

	if !jc.Checkpoint(types.JobStageResolveMaterials, 40, "resolving material impacts") {
		return
	}
	result, err := h.calc.Calculate(jc.Ctx, product)
	if err != nil {
		jc.Fail(types.JobStageComputeStages, err)
		return
	}

	if !jc.Checkpoint(types.JobStageComputeStages, 70, "combining lifecycle stages") {
		return
	}

	if !jc.Checkpoint(types.JobStageFinalize, 90, "persisting result") {
		return
	}
	// Cache writes are gated on the process-wide auto-sync toggle; when it
	// is off, completion stores only the job's result snapshot and an
	// explicit sync call is required to touch the product cache.
	if h.syncer.AutoSyncEnabled() {
		if _, sErr := h.syncer.Sync(jc.Ctx, product.ID, result, jc.Job.StartedAt); sErr != nil {
			jc.Fail(types.JobStageFinalize, fmt.Errorf("sync footprint cache: %w", sErr))
			return
		}
	}
	jc.Succeed(result)
}
