package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"StockPulse/internal/domain/errs"
	"StockPulse/internal/domain/models"
	"StockPulse/internal/service/ratelimit"
	xhttp "StockPulse/pkg/http"
	"StockPulse/pkg/http/middleware"
	xlogger "StockPulse/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeOps struct {
	lastItem  string
	lastDays  int
	lastSales []models.SalesRecord
	lastObs   []models.Observation
	threshold float64
}

func (f *fakeOps) Train(_ context.Context, itemID string, sales []models.SalesRecord) models.Outcome[models.TrainAck] {
	f.lastItem, f.lastSales = itemID, sales
	return models.Success(models.TrainAck{ItemID: itemID, Samples: len(sales)}, "Model for item "+itemID+" trained successfully")
}

func (f *fakeOps) TrainObservations(_ context.Context, itemID string, obs []models.Observation) models.Outcome[models.TrainAck] {
	f.lastItem, f.lastObs = itemID, obs
	return models.Success(models.TrainAck{ItemID: itemID, Samples: len(obs)}, "ok")
}

func (f *fakeOps) TrainAsync(_ context.Context, itemID string, _ []models.SalesRecord) models.Outcome[models.TrainJob] {
	return models.Success(models.TrainJob{JobID: "job-1", ItemID: itemID, Topic: "train"}, "queued")
}

func (f *fakeOps) Predict(_ context.Context, itemID string, days int) models.Outcome[models.ForecastResult] {
	f.lastItem, f.lastDays = itemID, days
	if itemID == "ghost" {
		return models.Failure[models.ForecastResult](errs.NotFound("No model found for item %s", itemID))
	}
	return models.Success(models.ForecastResult{ItemID: itemID, Period: days, Model: models.ModelRandomForest}, "")
}

func (f *fakeOps) ForecastARIMA(_ context.Context, itemID string, _ []models.SalesRecord, _ int) models.Outcome[models.ForecastResult] {
	return models.Failure[models.ForecastResult](errs.Fit(nil, "Failed to create ARIMA forecast"))
}

func (f *fakeOps) Ensemble(_ context.Context, itemID string, _ []models.SalesRecord, days int) models.Outcome[models.ForecastResult] {
	return models.Success(models.ForecastResult{ItemID: itemID, Period: days, Model: models.ModelEnsemble}, "")
}

func (f *fakeOps) DetectAnomalies(_ context.Context, _ []models.SalesRecord, threshold float64) models.Outcome[models.AnomalyReport] {
	f.threshold = threshold
	return models.Success(models.AnomalyReport{Anomalies: []models.AnomalyRecord{}, Message: "No anomalies detected"}, "No anomalies detected")
}

func (f *fakeOps) OptimizeInventory(_ context.Context, products []models.Product, _ []models.ForecastResult) models.Outcome[models.InventoryReport] {
	if len(products) == 0 {
		return models.Failure[models.InventoryReport](errs.Validation("No product or forecast data provided"))
	}
	return models.Success(models.InventoryReport{Timestamp: "2024-06-03 10:00:00"}, "")
}

func newTestEcho(t *testing.T, ops ForecastOperations, rl *ratelimit.Limiter, apiKey string) *echo.Echo {
	t.Helper()
	reg := prometheus.NewRegistry()
	h := NewForecastEchoHandler(xlogger.Nop(), ops, rl, apiKey)
	return xhttp.NewServer(h, xhttp.WithMetrics("/metrics", reg, reg)).Echo()
}

func postJSON(e *echo.Echo, path, body string, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func decodeOutcome[T any](t *testing.T, rec *httptest.ResponseRecorder) models.Outcome[T] {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	var out models.Outcome[T]
	require.NoError(t, json.Unmarshal(env.Data, &out))
	return out
}

func TestHealth(t *testing.T) {
	e := newTestEcho(t, &fakeOps{}, nil, "")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}

func TestPredictDefaultsDays(t *testing.T) {
	ops := &fakeOps{}
	e := newTestEcho(t, ops, nil, "")

	rec := postJSON(e, "/api/v1/forecasts/predict", `{"item_id":"sku-1"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 30, ops.lastDays)
	out := decodeOutcome[models.ForecastResult](t, rec)
	assert.Equal(t, models.OutcomeSuccess, out.Status)
	assert.Equal(t, "sku-1", out.Data.ItemID)
}

func TestPredictNotFound(t *testing.T) {
	e := newTestEcho(t, &fakeOps{}, nil, "")
	rec := postJSON(e, "/api/v1/forecasts/predict", `{"item_id":"ghost","days":7}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	out := decodeOutcome[models.ForecastResult](t, rec)
	assert.Equal(t, models.OutcomeError, out.Status)
	assert.Equal(t, errs.KindNotFound, out.Kind)
	assert.Equal(t, "No model found for item ghost", out.Message)
}

func TestPredictRejectsBadDays(t *testing.T) {
	e := newTestEcho(t, &fakeOps{}, nil, "")
	rec := postJSON(e, "/api/v1/forecasts/predict", `{"item_id":"a","days":366}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "ERR_LTE")
}

func TestTrainValidatesRecords(t *testing.T) {
	ops := &fakeOps{}
	e := newTestEcho(t, ops, nil, "")

	rec := postJSON(e, "/api/v1/models/train", `{"item_id":"a","sales_data":[{"date":"2024-01-01"}]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "sales_data[0].quantity")

	rec = postJSON(e, "/api/v1/models/train", `{"item_id":"a","sales_data":[{"date":"2024-01-01","quantity":4}]}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, ops.lastSales, 1)
	assert.Equal(t, 4.0, *ops.lastSales[0].Quantity)
}

func TestRequestRulesRejectBadIDsAndDates(t *testing.T) {
	e := newTestEcho(t, &fakeOps{}, nil, "")

	rec := postJSON(e, "/api/v1/forecasts/predict", `{"item_id":"../etc","days":3}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "ERR_ITEMID")

	rec = postJSON(e, "/api/v1/anomalies/detect", `{"transaction_data":[{"date":"yesterday","quantity":1}]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "transaction_data[0].date must be a date")
}

func TestTrainAsyncAccepted(t *testing.T) {
	e := newTestEcho(t, &fakeOps{}, nil, "")
	rec := postJSON(e, "/api/v1/models/train/async", `{"item_id":"a","sales_data":[]}`)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	out := decodeOutcome[models.TrainJob](t, rec)
	assert.Equal(t, "job-1", out.Data.JobID)
}

func TestARIMAFitFailureIs422(t *testing.T) {
	e := newTestEcho(t, &fakeOps{}, nil, "")
	rec := postJSON(e, "/api/v1/forecasts/arima", `{"item_id":"a","sales_data":[],"days":5}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, errs.KindFit, decodeOutcome[models.ForecastResult](t, rec).Kind)
}

func TestDetectAnomaliesDefaultThreshold(t *testing.T) {
	ops := &fakeOps{}
	e := newTestEcho(t, ops, nil, "")
	rec := postJSON(e, "/api/v1/anomalies/detect", `{"transaction_data":[]}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3.0, ops.threshold)

	rec = postJSON(e, "/api/v1/anomalies/detect", `{"transaction_data":[],"threshold":-1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOptimizeInventoryValidation(t *testing.T) {
	e := newTestEcho(t, &fakeOps{}, nil, "")
	rec := postJSON(e, "/api/v1/inventory/optimize", `{"product_data":[],"forecast_data":[]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "No product or forecast data provided", decodeOutcome[models.InventoryReport](t, rec).Message)
}

func TestAPIKeyRequiredWhenConfigured(t *testing.T) {
	e := newTestEcho(t, &fakeOps{}, nil, "configured-key")
	rec := postJSON(e, "/api/v1/forecasts/predict", `{"item_id":"a"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = postJSON(e, "/api/v1/forecasts/predict", `{"item_id":"a"}`, middleware.HeaderAPIKey, "configured-key")
	assert.Equal(t, http.StatusOK, rec.Code)

	health := httptest.NewRecorder()
	e.ServeHTTP(health, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, health.Code, "health stays open")
}

func TestTrainIsRateLimited(t *testing.T) {
	e := newTestEcho(t, &fakeOps{}, ratelimit.New(2, 0), "")
	body := `{"item_id":"a","sales_data":[]}`
	assert.Equal(t, http.StatusOK, postJSON(e, "/api/v1/models/train", body).Code)
	assert.Equal(t, http.StatusOK, postJSON(e, "/api/v1/models/train", body).Code)
	assert.Equal(t, http.StatusTooManyRequests, postJSON(e, "/api/v1/models/train", body).Code)
	assert.Equal(t, http.StatusOK, postJSON(e, "/api/v1/forecasts/predict", `{"item_id":"a"}`).Code)
}

func TestTrainUpload(t *testing.T) {
	ops := &fakeOps{}
	e := newTestEcho(t, ops, nil, "")

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	require.NoError(t, w.WriteField("item_id", "sku-9"))
	fw, err := w.CreateFormFile("file", "sales.csv")
	require.NoError(t, err)
	_, err = fw.Write([]byte("date,quantity\n2024-01-01,3\n2024-01-02,4\n"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/models/train/upload", &buf)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "sku-9", ops.lastItem)
	assert.Len(t, ops.lastObs, 2)
}

func TestTrainUploadRejectsBadFile(t *testing.T) {
	e := newTestEcho(t, &fakeOps{}, nil, "")

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	require.NoError(t, w.WriteField("item_id", "sku-9"))
	fw, err := w.CreateFormFile("file", "sales.csv")
	require.NoError(t, err)
	_, _ = fw.Write([]byte("date,quantity\n2024-01-01,many\n"))
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/models/train/upload", &buf)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "row 2")
}
