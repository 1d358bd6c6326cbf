package consistency

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"

	"github.com/ecotrace/footprint-backend/internal/footprint"
	"github.com/ecotrace/footprint-backend/internal/observability"
	"github.com/ecotrace/footprint-backend/internal/platform/logger"
	"github.com/ecotrace/footprint-backend/internal/repos"
	"github.com/ecotrace/footprint-backend/internal/types"
)

var allFields = []string{types.FieldCarbon, types.FieldWater, types.FieldWaste}

type Config struct {
	// EpsilonPct is the drift floor; differences below it are noise and not
	// reported. Percent, default 1.
	EpsilonPct float64
	// AutoSyncEnabled governs whether job completion may write the product
	// cache. When false an explicit sync call is the only write path;
	// cached footprints can back published claims, so overwriting them is
	// an intentional action, not a side effect.
	AutoSyncEnabled bool
	// AuditParallelism bounds concurrent recomputations in a full audit.
	AuditParallelism int
}

func (c Config) withDefaults() Config {
	if c.EpsilonPct <= 0 {
		c.EpsilonPct = 1
	}
	if c.AuditParallelism <= 0 {
		c.AuditParallelism = 4
	}
	return c
}

// Discrepancy is one field-level drift finding.
type Discrepancy struct {
	ProductID         uuid.UUID `json:"product_id"`
	Field             string    `json:"field"`
	StoredValue       float64   `json:"stored_value"`
	RecalculatedValue float64   `json:"recalculated_value"`
	PercentDifference float64   `json:"percent_difference"`
	Severity          string    `json:"severity"`
}

type Report struct {
	AuditedProducts int           `json:"audited_products"`
	Discrepancies   []Discrepancy `json:"discrepancies"`
	StartedAt       time.Time     `json:"started_at"`
	FinishedAt      time.Time     `json:"finished_at"`
}

// Service audits cached footprint values against fresh recomputation and owns
// the only write paths into the product footprint cache (sync, recover).
// Audit findings are advisory; nothing is auto-fixed.
type Service struct {
	products repos.ProductRepo
	jobs     repos.CalculationJobRepo
	alerts   repos.ConsistencyAlertRepo
	calc     *footprint.Calculator
	cfg      Config
	log      *logger.Logger
}

func NewService(
	products repos.ProductRepo,
	jobs repos.CalculationJobRepo,
	alerts repos.ConsistencyAlertRepo,
	calc *footprint.Calculator,
	cfg Config,
	baseLog *logger.Logger,
) *Service {
	return &Service{
		products: products,
		jobs:     jobs,
		alerts:   alerts,
		calc:     calc,
		cfg:      cfg.withDefaults(),
		log:      baseLog.With("component", "ConsistencyMonitor"),
	}
}

func (s *Service) AutoSyncEnabled() bool { return s.cfg.AutoSyncEnabled }

// Severity classifies a percent difference. Thresholds: critical above 50%,
// high above 20%, medium otherwise.
func Severity(percentDifference float64) string {
	switch {
	case percentDifference > 50:
		return types.SeverityCritical
	case percentDifference > 20:
		return types.SeverityHigh
	default:
		return types.SeverityMedium
	}
}

// PercentDifference measures drift of a stored value relative to the
// authoritative recalculated one.
func PercentDifference(stored, recalculated float64) float64 {
	if recalculated == 0 {
		if stored == 0 {
			return 0
		}
		return 100
	}
	return math.Abs(stored-recalculated) / math.Abs(recalculated) * 100
}

// AuditProduct recomputes one product and records drift alerts for its cached
// fields.
func (s *Service) AuditProduct(ctx context.Context, productID uuid.UUID) (*Report, error) {
	product, err := s.products.GetByID(ctx, nil, productID)
	if err != nil {
		return nil, fmt.Errorf("load product: %w", err)
	}
	if product == nil {
		return nil, fmt.Errorf("product %s not found", productID)
	}
	report := &Report{StartedAt: time.Now().UTC()}
	found, err := s.auditOne(ctx, product)
	if err != nil {
		return nil, err
	}
	report.AuditedProducts = 1
	report.Discrepancies = found
	report.FinishedAt = time.Now().UTC()
	return report, nil
}

// AuditAll audits every product with bounded parallelism. It only reads
// cached values and recomputes independently, so it can run alongside
// ordinary calculation jobs without blocking them.
func (s *Service) AuditAll(ctx context.Context) (*Report, error) {
	products, err := s.products.ListAll(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	report := &Report{StartedAt: time.Now().UTC()}
	results := make([][]Discrepancy, len(products))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.AuditParallelism)
	for i, product := range products {
		g.Go(func() error {
			found, aErr := s.auditOne(gctx, product)
			if aErr != nil {
				s.log.Warn("product audit failed", "product_id", product.ID, "error", aErr)
				return nil
			}
			results[i] = found
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	for _, found := range results {
		report.Discrepancies = append(report.Discrepancies, found...)
	}
	report.AuditedProducts = len(products)
	report.FinishedAt = time.Now().UTC()
	return report, nil
}

func (s *Service) auditOne(ctx context.Context, product *types.Product) ([]Discrepancy, error) {
	fresh, err := s.calc.Calculate(ctx, product)
	if err != nil {
		return nil, err
	}
	var found []Discrepancy
	for _, field := range allFields {
		cached, cErr := product.CachedField(field)
		if cErr != nil {
			s.log.Warn("unreadable cached footprint", "product_id", product.ID, "field", field, "error", cErr)
			continue
		}
		if cached == nil {
			// Never calculated; nothing to compare against.
			continue
		}
		recalculated := fresh.PerUnit(field)
		pct := PercentDifference(cached.Value, recalculated)
		if pct < s.cfg.EpsilonPct {
			continue
		}
		d := Discrepancy{
			ProductID:         product.ID,
			Field:             field,
			StoredValue:       cached.Value,
			RecalculatedValue: recalculated,
			PercentDifference: pct,
			Severity:          Severity(pct),
		}
		found = append(found, d)
		if err := s.recordAlert(ctx, product, d); err != nil {
			s.log.Warn("record alert failed", "product_id", product.ID, "field", field, "error", err)
		}
	}
	return found, nil
}

// recordAlert persists the finding unless an equal unresolved alert already
// exists, so repeated audits of unchanged drift do not pile up duplicates.
func (s *Service) recordAlert(ctx context.Context, product *types.Product, d Discrepancy) error {
	open, err := s.alerts.FindOpen(ctx, nil, product.ID, d.Field)
	if err != nil {
		return err
	}
	if open != nil && open.StoredValue == d.StoredValue && open.RecalculatedValue == d.RecalculatedValue {
		return nil
	}
	now := time.Now().UTC()
	alert := &types.ConsistencyAlert{
		ID:                uuid.New(),
		ProductID:         product.ID,
		CompanyID:         product.CompanyID,
		Severity:          d.Severity,
		Field:             d.Field,
		StoredValue:       d.StoredValue,
		RecalculatedValue: d.RecalculatedValue,
		PercentDifference: d.PercentDifference,
		DetectedAt:        now,
		Resolved:          false,
	}
	if _, err := s.alerts.Create(ctx, nil, alert); err != nil {
		return err
	}
	s.log.Warn("footprint drift detected",
		"product_id", product.ID,
		"field", d.Field,
		"severity", d.Severity,
		"percent_difference", d.PercentDifference,
	)
	if d.Severity == types.SeverityCritical {
		observability.ReportDriftAlert(ctx, s.log, alert)
	}
	return nil
}

// Sync overwrites the cached footprint fields with the given result, stamping
// fresh metadata. Idempotent: a second call with the same result changes
// nothing and produces no new alerts on a later audit. jobStartedAt, when
// known, is used to detect a product edit that raced the calculation; the
// most recently timestamped write wins and the conflict is logged, never
// silently dropped.
func (s *Service) Sync(ctx context.Context, productID uuid.UUID, result *types.FootprintResult, jobStartedAt *time.Time) (bool, error) {
	if result == nil {
		return false, fmt.Errorf("missing result")
	}
	product, err := s.products.GetByID(ctx, nil, productID)
	if err != nil {
		return false, fmt.Errorf("load product: %w", err)
	}
	if product == nil {
		return false, fmt.Errorf("product %s not found", productID)
	}
	if jobStartedAt != nil && product.UpdatedAt.After(*jobStartedAt) {
		s.log.Warn("sync conflict: product edited after calculation started; most recent write wins",
			"product_id", productID,
			"product_updated_at", product.UpdatedAt,
			"job_started_at", *jobStartedAt,
		)
	}

	updates := map[string]interface{}{}
	var changedFields []string
	for _, field := range allFields {
		fresh := types.CachedFootprint{
			Value:             result.PerUnit(field),
			CalculationMethod: footprint.CalculationMethodAutomated,
			DatasetVersion:    result.DatasetVersion,
			ComputedAt:        result.ComputedAt,
		}
		cached, cErr := product.CachedField(field)
		if cErr == nil && cached != nil &&
			cached.Value == fresh.Value &&
			cached.DatasetVersion == fresh.DatasetVersion {
			continue
		}
		raw, mErr := json.Marshal(fresh)
		if mErr != nil {
			return false, mErr
		}
		updates[cacheColumn(field)] = datatypes.JSON(raw)
		changedFields = append(changedFields, field)
	}
	if len(updates) == 0 {
		return false, nil
	}
	if err := s.products.UpdateCachedFields(ctx, nil, productID, updates); err != nil {
		return false, fmt.Errorf("write footprint cache: %w", err)
	}
	if _, err := s.alerts.ResolveForFields(ctx, nil, productID, changedFields); err != nil {
		s.log.Warn("resolve alerts failed", "product_id", productID, "error", err)
	}
	s.log.Info("footprint cache synced", "product_id", productID, "fields", changedFields)
	return true, nil
}

// Recover reconstructs the named cached fields from the most recent completed
// job result. It never invents values: without a prior successful calculation
// there is nothing to recover from and the call fails.
func (s *Service) Recover(ctx context.Context, productID uuid.UUID, fields []string) (*types.FootprintResult, error) {
	if len(fields) == 0 {
		fields = allFields
	}
	for _, field := range fields {
		if cacheColumn(field) == "" {
			return nil, fmt.Errorf("unknown footprint field %q", field)
		}
	}
	job, err := s.jobs.MostRecentCompleted(ctx, nil, productID)
	if err != nil {
		return nil, fmt.Errorf("load job history: %w", err)
	}
	if job == nil || len(job.Result) == 0 {
		return nil, fmt.Errorf("no completed calculation result available for product %s", productID)
	}
	var result types.FootprintResult
	if err := json.Unmarshal(job.Result, &result); err != nil {
		return nil, fmt.Errorf("decode stored result: %w", err)
	}

	updates := map[string]interface{}{}
	for _, field := range fields {
		entry := types.CachedFootprint{
			Value:             result.PerUnit(field),
			CalculationMethod: footprint.CalculationMethodAutomated,
			DatasetVersion:    result.DatasetVersion,
			ComputedAt:        result.ComputedAt,
		}
		raw, mErr := json.Marshal(entry)
		if mErr != nil {
			return nil, mErr
		}
		updates[cacheColumn(field)] = datatypes.JSON(raw)
	}
	if err := s.products.UpdateCachedFields(ctx, nil, productID, updates); err != nil {
		return nil, fmt.Errorf("write footprint cache: %w", err)
	}
	if _, err := s.alerts.ResolveForFields(ctx, nil, productID, fields); err != nil {
		s.log.Warn("resolve alerts failed", "product_id", productID, "error", err)
	}
	s.log.Info("footprint cache recovered", "product_id", productID, "fields", fields, "from_job", job.ID)
	return &result, nil
}

func (s *Service) ListActiveAlerts(ctx context.Context, companyID uuid.UUID) ([]*types.ConsistencyAlert, error) {
	return s.alerts.ListActiveByCompany(ctx, nil, companyID)
}

func cacheColumn(field string) string {
	switch field {
	case types.FieldCarbon:
		return "cached_carbon"
	case types.FieldWater:
		return "cached_water"
	case types.FieldWaste:
		return "cached_waste"
	}
	return ""
}
