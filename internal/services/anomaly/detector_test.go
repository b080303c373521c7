package anomaly

import (
	"errors"
	"testing"
	"time"

	"StockPulse/internal/domain/errs"
	"StockPulse/internal/domain/models"
	"StockPulse/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day0 = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func series(qty ...float64) []models.Observation {
	obs := make([]models.Observation, len(qty))
	for i, q := range qty {
		obs[i] = models.Observation{Date: day0.AddDate(0, 0, i), Quantity: q}
	}
	return obs
}

func newDetector() *Detector { return NewDetector(config.Default().Anomaly) }

func TestDetectSpike(t *testing.T) {
	obs := series(5, 5, 5, 5, 5, 5, 100, 5, 5, 5, 5, 5)

	report, err := newDetector().Detect(obs, 3)
	require.NoError(t, err)
	require.Len(t, report.Anomalies, 1)

	a := report.Anomalies[0]
	assert.Equal(t, "2024-03-07", a.Date)
	assert.Equal(t, 100.0, a.Quantity)
	assert.Equal(t, 5.0, a.Expected)
	assert.Equal(t, 95.0, a.ZScore)
	assert.Equal(t, "Detected 1 anomalies", report.Message)
}

func TestDetectSortsInput(t *testing.T) {
	obs := series(5, 5, 5, 5, 5, 5, 100, 5, 5, 5, 5, 5)
	reversed := make([]models.Observation, len(obs))
	for i := range obs {
		reversed[len(obs)-1-i] = obs[i]
	}

	a, err := newDetector().Detect(obs, 3)
	require.NoError(t, err)
	b, err := newDetector().Detect(reversed, 3)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestDetectFlatSeries(t *testing.T) {
	report, err := newDetector().Detect(series(4, 4, 4, 4, 4, 4, 4, 4, 4, 4), 3)
	require.NoError(t, err)
	assert.Empty(t, report.Anomalies)
	assert.NotNil(t, report.Anomalies)
	assert.Equal(t, "No anomalies detected", report.Message)
}

func TestDetectZeroVarianceWindowUsesUnitStd(t *testing.T) {
	// a deviation of 2 over a flat window is below the threshold, 4 is above
	report, err := newDetector().Detect(series(10, 10, 10, 10, 10, 10, 10, 12, 10, 10, 10, 10, 10, 10, 10, 14), 3)
	require.NoError(t, err)
	require.Len(t, report.Anomalies, 1)
	assert.Equal(t, 14.0, report.Anomalies[0].Quantity)
	assert.Equal(t, 10.0, report.Anomalies[0].Expected)
}

func TestDetectFirstRecordNeverFlagged(t *testing.T) {
	report, err := newDetector().Detect(series(1000, 1, 1, 1, 1, 1, 1, 1, 1, 1), 0.5)
	require.NoError(t, err)
	for _, a := range report.Anomalies {
		assert.NotEqual(t, "2024-03-01", a.Date)
	}
}

func TestDetectRequiresTenRecords(t *testing.T) {
	_, err := newDetector().Detect(series(5, 5, 5, 5, 5, 5, 100, 5, 5), 3)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrValidation))
	assert.Equal(t, "Insufficient data for anomaly detection", err.Error())
}

func TestDetectRejectsNonPositiveThreshold(t *testing.T) {
	_, err := newDetector().Detect(series(1, 2, 3, 4, 5, 6, 7, 8, 9, 10), 0)
	assert.True(t, errors.Is(err, errs.ErrValidation))
}

func TestDetectKeepsTimeOfDay(t *testing.T) {
	obs := series(5, 5, 5, 5, 5, 5, 5, 5, 5, 50)
	obs[9].Date = obs[9].Date.Add(14*time.Hour + 30*time.Minute)
	report, err := newDetector().Detect(obs, 3)
	require.NoError(t, err)
	require.Len(t, report.Anomalies, 1)
	assert.Equal(t, "2024-03-10T14:30:00Z", report.Anomalies[0].Date)
}
