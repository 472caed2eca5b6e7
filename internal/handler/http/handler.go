package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	_ "github.com/aniladanir/webhook-inbox/docs"
	"github.com/aniladanir/webhook-inbox/internal/domain"
	"github.com/aniladanir/webhook-inbox/internal/metrics"
	"github.com/aniladanir/webhook-inbox/internal/service"
	"github.com/aniladanir/webhook-inbox/internal/signature"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// webhook bodies above this size are rejected before verification
const maxBodyBytes = 1 << 20

type Handler struct {
	inbox     service.Inbox
	collector *metrics.Collector
	server    *http.Server
}

type errorResponse struct {
	Error string `json:"error"`
}

type validationErrorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields"`
}

type statusResponse struct {
	Status string `json:"status"`
}

// @title Webhook Inbox API
// @version 1.0
// @description Signed webhook ingestion and query service
// @host localhost:8080
// @BasePath /
func NewHttpHandler(addr string, svc service.Inbox, collector *metrics.Collector, logger *slog.Logger) *Handler {
	h := &Handler{
		inbox:     svc,
		collector: collector,
	}

	// create router
	router := gin.New()
	router.Use(requestTelemetry(logger, collector), gin.Recovery())

	// register routes
	router.POST("/webhook", h.webhook)
	router.GET("/messages", h.listMessages)
	router.GET("/stats", h.stats)
	router.GET("/health/live", h.healthLive)
	router.GET("/health/ready", h.healthReady)
	router.GET("/metrics", h.metrics)
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// create http server
	h.server = &http.Server{
		Addr:    addr,
		Handler: router.Handler(),
	}

	return h
}

func (h *Handler) Run() error {
	return h.server.ListenAndServe()
}

func (h *Handler) Shutdown(ctx context.Context) error {
	return h.server.Shutdown(ctx)
}

// Webhook godoc
// @Summary Ingest a signed message
// @Description Verifies the X-Signature HMAC over the raw body, validates the payload and stores it. Redelivery of a known message_id is acknowledged identically.
// @Tags Ingestion
// @Accept json
// @Produce json
// @Param X-Signature header string true "lowercase hex HMAC-SHA256 of the raw body"
// @Param message body domain.WebhookPayload true "message payload"
// @Success 200 {object} statusResponse
// @Failure 400 {object} validationErrorResponse
// @Failure 401 {object} errorResponse
// @Failure 500 {object} errorResponse
// @Router /webhook [post]
func (h *Handler) webhook(c *gin.Context) {
	// The raw bytes feed the HMAC check; nothing may parse or rewrite
	// the body before verification.
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes))
	if err != nil {
		c.Set(logKeyResult, "body_read_error")
		c.JSON(http.StatusBadRequest, validationErrorResponse{
			Error:  "validation_failed",
			Fields: map[string]string{"body": "unreadable or too large"},
		})
		return
	}

	result, err := h.inbox.Ingest(c.Request.Context(), body, c.GetHeader("X-Signature"))

	var validationErr *service.ValidationError
	switch {
	case errors.Is(err, signature.ErrInvalidSignature) || errors.Is(err, signature.ErrMissingSignature):
		h.collector.IncWebhook(domain.OutcomeInvalidSignature)
		c.Set(logKeyResult, string(domain.OutcomeInvalidSignature))
		c.JSON(http.StatusUnauthorized, errorResponse{Error: "invalid signature"})
	case errors.As(err, &validationErr):
		c.Set(logKeyResult, "validation_error")
		c.JSON(http.StatusBadRequest, validationErrorResponse{
			Error:  "validation_failed",
			Fields: validationErr.Fields,
		})
	case err != nil:
		_ = c.Error(err)
		c.Set(logKeyResult, "internal_error")
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal error"})
	default:
		h.collector.IncWebhook(result.Outcome)
		c.Set(logKeyMessageID, result.MessageID)
		c.Set(logKeyDup, result.Duplicate)
		c.Set(logKeyResult, string(result.Outcome))
		c.JSON(http.StatusOK, statusResponse{Status: "ok"})
	}
}

// ListMessages godoc
// @Summary List stored messages
// @Description Filtered, paginated listing ordered by (ts, message_id)
// @Tags Messages
// @Produce json
// @Param limit query int false "page size (default 50, max 500)"
// @Param offset query int false "page offset"
// @Param from query string false "exact sender match"
// @Param since query string false "inclusive lower bound on ts"
// @Param q query string false "case-insensitive substring match on text"
// @Success 200 {object} domain.ListResult
// @Failure 500 {object} errorResponse
// @Router /messages [get]
func (h *Handler) listMessages(c *gin.Context) {
	filter := domain.ListFilter{
		From:   c.Query("from"),
		Since:  c.Query("since"),
		Query:  c.Query("q"),
		Limit:  parseInt(c.Query("limit"), 50),
		Offset: parseInt(c.Query("offset"), 0),
	}

	result, err := h.inbox.List(c.Request.Context(), filter)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}

	c.JSON(http.StatusOK, result)
}

// Stats godoc
// @Summary Aggregate message statistics
// @Description Totals, distinct senders, top ten senders and the ts bounds
// @Tags Messages
// @Produce json
// @Success 200 {object} domain.Stats
// @Failure 500 {object} errorResponse
// @Router /stats [get]
func (h *Handler) stats(c *gin.Context) {
	stats, err := h.inbox.Stats(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}

	c.JSON(http.StatusOK, stats)
}

// HealthLive godoc
// @Summary Liveness probe
// @Tags Health
// @Produce json
// @Success 200 {object} statusResponse
// @Router /health/live [get]
func (h *Handler) healthLive(c *gin.Context) {
	c.JSON(http.StatusOK, statusResponse{Status: "alive"})
}

// HealthReady godoc
// @Summary Readiness probe
// @Description Reports ready only when the storage backend answers a ping
// @Tags Health
// @Produce json
// @Success 200 {object} statusResponse
// @Failure 503 {object} statusResponse
// @Router /health/ready [get]
func (h *Handler) healthReady(c *gin.Context) {
	if err := h.inbox.Ready(c.Request.Context()); err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusServiceUnavailable, statusResponse{Status: "unavailable"})
		return
	}
	c.JSON(http.StatusOK, statusResponse{Status: "ready"})
}

// Metrics godoc
// @Summary Request counters
// @Description Text exposition of the http and webhook outcome counters
// @Tags Health
// @Produce plain
// @Success 200 {string} string
// @Router /metrics [get]
func (h *Handler) metrics(c *gin.Context) {
	c.String(http.StatusOK, h.collector.Render())
}

func parseInt(raw string, def int) int {
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}
