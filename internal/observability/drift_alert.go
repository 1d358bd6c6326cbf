package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/ecotrace/footprint-backend/internal/platform/envutil"
	"github.com/ecotrace/footprint-backend/internal/platform/logger"
	"github.com/ecotrace/footprint-backend/internal/types"
)

type driftAlertState struct {
	mu   sync.Mutex
	last map[string]time.Time
}

var driftAlerts driftAlertState

// ReportDriftAlert posts a critical consistency alert to the ops webhook.
// Rate-limited per product+field so a recurring audit does not flood the
// channel; the durable record is the consistency_alert row, this is only the
// page.
func ReportDriftAlert(ctx context.Context, log *logger.Logger, alert *types.ConsistencyAlert) {
	if alert == nil {
		return
	}
	if !envutil.Bool("DRIFT_ALERTS_ENABLED", false) {
		return
	}
	webhook := envutil.String("DRIFT_ALERT_WEBHOOK", "")
	if webhook == "" {
		return
	}

	key := alert.ProductID.String() + "/" + alert.Field
	minInterval := envutil.Duration("DRIFT_ALERT_MIN_INTERVAL", time.Hour)
	driftAlerts.mu.Lock()
	if driftAlerts.last == nil {
		driftAlerts.last = map[string]time.Time{}
	}
	last := driftAlerts.last[key]
	if !last.IsZero() && time.Since(last) < minInterval {
		driftAlerts.mu.Unlock()
		return
	}
	driftAlerts.last[key] = time.Now()
	driftAlerts.mu.Unlock()

	payload := map[string]any{
		"title":              "Critical footprint drift detected",
		"product_id":         alert.ProductID.String(),
		"field":              alert.Field,
		"stored_value":       alert.StoredValue,
		"recalculated_value": alert.RecalculatedValue,
		"percent_difference": alert.PercentDifference,
		"detected_at":        alert.DetectedAt.UTC().Format(time.RFC3339),
	}
	body, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhook, bytes.NewReader(body))
	if err != nil {
		if log != nil {
			log.Warn("drift alert request build failed", "error", err)
		}
		return
	}
	req.Header.Set("Content-Type", "application/json")
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		if log != nil {
			log.Warn("drift alert post failed", "error", err)
		}
		return
	}
	_ = resp.Body.Close()
	if log != nil {
		log.Info("drift alert sent", "status", resp.StatusCode, "product_id", alert.ProductID)
	}
}
