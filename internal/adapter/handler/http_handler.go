package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/rl1809/stock-ledger/internal/core/domain"
	"github.com/rl1809/stock-ledger/internal/core/service"
)

// CacheClearer drops cached snapshots so the next load hits the backend.
type CacheClearer interface {
	ClearCache(ctx context.Context) error
}

type HTTPHandler struct {
	inventory *service.InventoryService
	ledger    *service.Ledger
	cache     CacheClearer
	metrics   http.Handler
	logger    logrus.FieldLogger
}

type LineRequest struct {
	Item     string `json:"item" binding:"required"`
	Category string `json:"category"`
	Quantity int    `json:"quantity" binding:"required,min=1"`
}

type AddRequest struct {
	Location string        `json:"location" binding:"required"`
	Items    []LineRequest `json:"items" binding:"required,min=1,dive"`
}

type PurchaseRequest struct {
	Location string        `json:"location" binding:"required"`
	Items    []LineRequest `json:"items" binding:"required,min=1,dive"`
}

type MoveRequest struct {
	From  string        `json:"from" binding:"required"`
	To    string        `json:"to" binding:"required,nefield=From"`
	Items []LineRequest `json:"items" binding:"required,min=1,dive"`
}

type NoteRequest struct {
	Item   string `json:"item" binding:"required"`
	Detail string `json:"detail" binding:"required"`
}

type LineResponse struct {
	Item    string              `json:"item"`
	Success bool                `json:"success"`
	Message string              `json:"message,omitempty"`
	Entry   *domain.LedgerEntry `json:"entry,omitempty"`
}

func NewHTTPHandler(inventory *service.InventoryService, cache CacheClearer, metrics http.Handler, logger logrus.FieldLogger) *HTTPHandler {
	return &HTTPHandler{
		inventory: inventory,
		ledger:    inventory.Ledger(),
		cache:     cache,
		metrics:   metrics,
		logger:    logger,
	}
}

func (h *HTTPHandler) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", h.HealthCheck)
	if h.metrics != nil {
		router.GET("/metrics", gin.WrapH(h.metrics))
	}

	api := router.Group("/api")
	api.GET("/inventory", h.ListInventory)
	api.POST("/items", h.AddItems)
	api.DELETE("/items/:item", h.DeleteItem)
	api.POST("/purchases", h.Purchase)
	api.POST("/moves", h.Move)
	api.GET("/logs", h.ListLogs)
	api.POST("/logs/notes", h.RecordNote)
	api.GET("/summary/daily", h.DailySummary)
	api.GET("/summary/monthly", h.MonthlySummary)
	api.GET("/summary/items", h.ItemSummary)
	api.POST("/cache/clear", h.ClearCache)
	return router
}

func (h *HTTPHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *HTTPHandler) ListInventory(c *gin.Context) {
	snapshot := h.inventory.Query(service.Filter{
		Search:   c.Query("q"),
		Location: c.Query("location"),
	})
	c.JSON(http.StatusOK, gin.H{"items": snapshot.Rows()})
}

func (h *HTTPHandler) AddItems(c *gin.Context) {
	var req AddRequest
	if !h.bind(c, &req) {
		return
	}
	results := h.inventory.AddBatch(c.Request.Context(), req.Location, toLines(req.Items))
	h.writeBatch(c, results)
}

func (h *HTTPHandler) Purchase(c *gin.Context) {
	var req PurchaseRequest
	if !h.bind(c, &req) {
		return
	}
	results := h.inventory.PurchaseBatch(c.Request.Context(), req.Location, toLines(req.Items))
	h.writeBatch(c, results)
}

func (h *HTTPHandler) Move(c *gin.Context) {
	var req MoveRequest
	if !h.bind(c, &req) {
		return
	}
	results := h.inventory.MoveBatch(c.Request.Context(), req.From, req.To, toLines(req.Items))
	h.writeBatch(c, results)
}

func (h *HTTPHandler) DeleteItem(c *gin.Context) {
	entry, err := h.inventory.Delete(c.Request.Context(), c.Param("item"), c.Query("location"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entry": entry})
}

func (h *HTTPHandler) ListLogs(c *gin.Context) {
	raw := c.Query("date")
	if raw == "" {
		c.JSON(http.StatusOK, gin.H{"entries": h.ledger.Entries()})
		return
	}
	date, err := domain.ParseDate(raw)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"date": date, "entries": h.ledger.QueryByDate(date)})
}

func (h *HTTPHandler) RecordNote(c *gin.Context) {
	var req NoteRequest
	if !h.bind(c, &req) {
		return
	}
	entry, err := h.ledger.RecordNote(c.Request.Context(), req.Item, req.Detail)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"entry": entry})
}

func (h *HTTPHandler) DailySummary(c *gin.Context) {
	metric, ok := h.metric(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"daily": h.ledger.AggregateDaily(metric)})
}

func (h *HTTPHandler) MonthlySummary(c *gin.Context) {
	metric, ok := h.metric(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"monthly": h.ledger.AggregateMonthly(metric)})
}

func (h *HTTPHandler) ItemSummary(c *gin.Context) {
	metric, ok := h.metric(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": h.ledger.AggregateByItem(metric)})
}

func (h *HTTPHandler) ClearCache(c *gin.Context) {
	if h.cache == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no cache configured"})
		return
	}
	if err := h.cache.ClearCache(c.Request.Context()); err != nil {
		h.logger.WithError(err).Error("clear cache")
		c.JSON(http.StatusBadGateway, gin.H{"error": "cache unavailable"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *HTTPHandler) metric(c *gin.Context) (domain.Metric, bool) {
	metric, err := domain.ParseMetric(c.Query("metric"))
	if err != nil {
		h.writeError(c, err)
		return 0, false
	}
	return metric, true
}

func (h *HTTPHandler) bind(c *gin.Context, req any) bool {
	err := c.ShouldBindJSON(req)
	if err == nil {
		return true
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "fields": processValidationErrors(verrs)})
		return false
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
	return false
}

// writeBatch answers 200 when every line committed. A single failing line is
// reported with its own status, a mix with 207 and the per-line list.
func (h *HTTPHandler) writeBatch(c *gin.Context, results service.BatchResult) {
	lines := make([]LineResponse, 0, len(results))
	for _, r := range results {
		line := LineResponse{Item: r.Item, Success: r.OK(), Entry: r.Entry}
		if r.Err != nil {
			line.Message = r.Err.Error()
		}
		lines = append(lines, line)
	}

	failed := results.Failed()
	switch {
	case len(failed) == 0:
		c.JSON(http.StatusOK, gin.H{"results": lines})
	case len(results) == 1:
		c.JSON(errorStatus(failed[0].Err), gin.H{"error": failed[0].Err.Error(), "results": lines})
	default:
		c.JSON(http.StatusMultiStatus, gin.H{"results": lines})
	}
}

func (h *HTTPHandler) writeError(c *gin.Context, err error) {
	status := errorStatus(err)
	if status >= http.StatusInternalServerError {
		h.logger.WithError(err).WithField("path", c.FullPath()).Error("request failed")
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrDuplicateItem):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInsufficientStock):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrPersistenceWrite), errors.Is(err, domain.ErrBatchAborted), errors.Is(err, domain.ErrLoad):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func processValidationErrors(verrs validator.ValidationErrors) map[string]string {
	out := make(map[string]string, len(verrs))
	for _, ve := range verrs {
		out[ve.Namespace()] = ve.Tag()
	}
	return out
}

func toLines(items []LineRequest) []service.ItemQuantity {
	lines := make([]service.ItemQuantity, len(items))
	for i, it := range items {
		lines[i] = service.ItemQuantity{Item: it.Item, Category: it.Category, Quantity: it.Quantity}
	}
	return lines
}
