// Package anomaly flags transactions whose quantity deviates from the
// statistics of the records just before them.
package anomaly

import (
	"fmt"
	"math"
	"time"

	"StockPulse/internal/domain/errs"
	"StockPulse/internal/domain/models"
	"StockPulse/internal/domain/service"
	"StockPulse/internal/services/features"
	"StockPulse/pkg/config"
	"StockPulse/pkg/util"

	"gonum.org/v1/gonum/stat"
)

type Detector struct {
	cfg config.Anomaly
}

func NewDetector(cfg config.Anomaly) *Detector {
	return &Detector{cfg: cfg}
}

// Detect sorts records by date and scores each one against a trailing window
// of at most cfg.Window preceding records. The first record has no window and
// is never reported.
func (d *Detector) Detect(records []models.Observation, threshold float64) (*models.AnomalyReport, error) {
	if len(records) < d.cfg.MinRecords {
		return nil, errs.Validation("Insufficient data for anomaly detection")
	}
	if threshold <= 0 || math.IsNaN(threshold) {
		return nil, errs.Validation("threshold must be positive, got %v", threshold)
	}

	sorted := features.SortByDate(records)
	qty := features.Targets(sorted)

	found := make([]models.AnomalyRecord, 0)
	for i := 1; i < len(sorted); i++ {
		window := qty[max(0, i-d.cfg.Window):i]
		mean := stat.Mean(window, nil)
		std := 0.0
		if len(window) > 1 {
			std = stat.StdDev(window, nil)
		}
		if std == 0 || math.IsNaN(std) {
			std = 1
		}
		z := (qty[i] - mean) / std
		if math.Abs(z) <= threshold {
			continue
		}
		found = append(found, models.AnomalyRecord{
			Date:     formatDate(sorted[i].Date),
			Quantity: qty[i],
			Expected: util.Round(mean, 2),
			ZScore:   util.Round(z, 2),
		})
	}

	report := &models.AnomalyReport{Anomalies: found, Message: "No anomalies detected"}
	if len(found) > 0 {
		report.Message = fmt.Sprintf("Detected %d anomalies", len(found))
	}
	return report, nil
}

// formatDate keeps the time of day only for transaction-level timestamps.
func formatDate(t time.Time) string {
	if t.Equal(util.StartOfDay(t)) {
		return t.Format(models.DateLayout)
	}
	return t.Format(time.RFC3339)
}

var _ service.AnomalyDetector = (*Detector)(nil)
