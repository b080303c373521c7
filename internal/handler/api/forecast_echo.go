package api

import (
	"context"
	"net/http"

	"StockPulse/internal/domain/models"
	"StockPulse/internal/service/ratelimit"
	"StockPulse/internal/services/salesimport"
	xhttp "StockPulse/pkg/http"
	"StockPulse/pkg/http/middleware"
	xlogger "StockPulse/pkg/logger"

	"github.com/labstack/echo/v4"
)

// maxUploadBytes caps sales file uploads.
const maxUploadBytes = 10 << 20

// ForecastOperations is the operation boundary the handler exposes.
type ForecastOperations interface {
	Train(ctx context.Context, itemID string, sales []models.SalesRecord) models.Outcome[models.TrainAck]
	TrainObservations(ctx context.Context, itemID string, obs []models.Observation) models.Outcome[models.TrainAck]
	TrainAsync(ctx context.Context, itemID string, sales []models.SalesRecord) models.Outcome[models.TrainJob]
	Predict(ctx context.Context, itemID string, days int) models.Outcome[models.ForecastResult]
	ForecastARIMA(ctx context.Context, itemID string, sales []models.SalesRecord, days int) models.Outcome[models.ForecastResult]
	Ensemble(ctx context.Context, itemID string, sales []models.SalesRecord, days int) models.Outcome[models.ForecastResult]
	DetectAnomalies(ctx context.Context, transactions []models.SalesRecord, threshold float64) models.Outcome[models.AnomalyReport]
	OptimizeInventory(ctx context.Context, products []models.Product, forecasts []models.ForecastResult) models.Outcome[models.InventoryReport]
}

// ForecastEchoHandler serves the forecasting API.
type ForecastEchoHandler struct {
	logger *xlogger.Logger
	ops    ForecastOperations
	rl     *ratelimit.Limiter
	apiKey string
}

// NewForecastEchoHandler wires the handler. apiKey comes from configuration
// or the environment; empty disables the check.
func NewForecastEchoHandler(logger *xlogger.Logger, ops ForecastOperations, rl *ratelimit.Limiter, apiKey string) *ForecastEchoHandler {
	return &ForecastEchoHandler{logger: logger, ops: ops, rl: rl, apiKey: apiKey}
}

func (h *ForecastEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.Health)

	g := e.Group("/api/v1", middleware.APIKey(h.apiKey))
	train := g.Group("/models", h.rateLimit("train"))
	train.POST("/train", h.Train)
	train.POST("/train/async", h.TrainAsync)
	train.POST("/train/upload", h.TrainUpload)

	g.POST("/forecasts/predict", h.Predict)
	g.POST("/forecasts/arima", h.ARIMA)
	g.POST("/forecasts/ensemble", h.Ensemble)
	g.POST("/anomalies/detect", h.DetectAnomalies)
	g.POST("/inventory/optimize", h.OptimizeInventory)
}

func (h *ForecastEchoHandler) Health(c echo.Context) error {
	return xhttp.SuccessResponse(c, map[string]string{"status": "healthy"})
}

func (h *ForecastEchoHandler) Train(c echo.Context) error {
	req := &models.TrainRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	return respond(c, h.ops.Train(c.Request().Context(), req.ItemID, req.SalesData))
}

func (h *ForecastEchoHandler) TrainAsync(c echo.Context) error {
	req := &models.TrainRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	out := h.ops.TrainAsync(c.Request().Context(), req.ItemID, req.SalesData)
	if out.OK() {
		return xhttp.AcceptedResponse(c, out)
	}
	return respond(c, out)
}

// TrainUpload trains from a multipart CSV or XLSX file.
func (h *ForecastEchoHandler) TrainUpload(c echo.Context) error {
	c.Request().Body = http.MaxBytesReader(c.Response(), c.Request().Body, maxUploadBytes)

	itemID := c.FormValue("item_id")
	if itemID == "" {
		return xhttp.AppErrorResponse(c, xhttp.NewAppError("ERR_REQUIRED", "item_id", "item_id is required", http.StatusBadRequest))
	}
	fh, err := c.FormFile("file")
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestErrorf("file is required: %v", err))
	}
	f, err := fh.Open()
	if err != nil {
		h.logger.Error("open upload", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("failed to read upload").WithError(err))
	}
	defer f.Close()

	obs, err := salesimport.Parse(fh.Filename, f)
	if err != nil {
		return respond(c, models.Failure[models.TrainAck](err))
	}
	return respond(c, h.ops.TrainObservations(c.Request().Context(), itemID, obs))
}

func (h *ForecastEchoHandler) Predict(c echo.Context) error {
	req := &models.PredictRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	return respond(c, h.ops.Predict(c.Request().Context(), req.ItemID, req.Days))
}

func (h *ForecastEchoHandler) ARIMA(c echo.Context) error {
	req := &models.ForecastRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	return respond(c, h.ops.ForecastARIMA(c.Request().Context(), req.ItemID, req.SalesData, req.Days))
}

func (h *ForecastEchoHandler) Ensemble(c echo.Context) error {
	req := &models.ForecastRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	return respond(c, h.ops.Ensemble(c.Request().Context(), req.ItemID, req.SalesData, req.Days))
}

func (h *ForecastEchoHandler) DetectAnomalies(c echo.Context) error {
	req := &models.AnomalyRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	return respond(c, h.ops.DetectAnomalies(c.Request().Context(), req.TransactionData, req.Threshold))
}

func (h *ForecastEchoHandler) OptimizeInventory(c echo.Context) error {
	req := &models.OptimizeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	return respond(c, h.ops.OptimizeInventory(c.Request().Context(), req.ProductData, req.ForecastData))
}

func (h *ForecastEchoHandler) rateLimit(scope string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if h.rl != nil && !h.rl.Allow(c.RealIP()+":"+scope) {
				h.logger.Warn("rate limited", xlogger.String("scope", scope), xlogger.String("remote", c.RealIP()))
				return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("too many training requests"))
			}
			return next(c)
		}
	}
}

// respond writes an Outcome with the status its kind maps to.
func respond[T any](c echo.Context, out models.Outcome[T]) error {
	return xhttp.KindResponse(c, string(out.Kind), out)
}
