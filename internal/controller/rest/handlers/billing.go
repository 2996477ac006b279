package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/lumora-app/billing-service/internal/domain/billing"
	"github.com/lumora-app/billing-service/internal/domain/gateway"
	"github.com/lumora-app/billing-service/internal/webhook"
	"github.com/lumora-app/billing-service/pkg/logger"
	"github.com/lumora-app/billing-service/pkg/metrics"

	"github.com/gin-gonic/gin"
)

type BillingHandler struct {
	reconciler *billing.ReconcilerService
	processor  webhook.Processor
	audit      billing.AuditSink // nil when no sink is configured
	logger     *logger.Logger
}

func NewBillingHandler(r *billing.ReconcilerService, p webhook.Processor, audit billing.AuditSink, l *logger.Logger) BillingHandler {
	return BillingHandler{
		reconciler: r,
		processor:  p,
		audit:      audit,
		logger:     l,
	}
}

type confirmOrderRequest struct {
	OrderID string `json:"order_id" binding:"required"`
}

// ConfirmOrder resolves the authoritative state of one order on demand.
// Gateway-reported failures proxy the gateway's status code; failures
// without one become 502. Misconfiguration is this service's fault and
// stays a 500 with no internals leaked.
func (h *BillingHandler) ConfirmOrder(c *gin.Context) {
	var req confirmOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "order_id is required"})
		return
	}

	result, err := h.reconciler.Confirm(c.Request.Context(), req.OrderID)
	if err != nil {
		h.confirmError(c, req.OrderID, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *BillingHandler) confirmError(c *gin.Context, orderID string, err error) {
	switch {
	case errors.Is(err, billing.ErrInvalidRequest):
		c.JSON(http.StatusBadRequest, gin.H{"error": "order_id is required"})
	case errors.Is(err, gateway.ErrMisconfigured):
		h.logger.Error("confirm failed, gateway credentials missing: order_id=%s", orderID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "service misconfigured"})
	default:
		var gwErr *gateway.Error
		if errors.As(err, &gwErr) {
			status := gwErr.HTTPStatus
			if status < http.StatusBadRequest {
				status = http.StatusBadGateway
			}
			h.logger.Warn("confirm failed at gateway: order_id=%s status=%d code=%s", orderID, status, gwErr.Code)
			c.JSON(status, gin.H{"error": gwErr.Message})
			return
		}
		h.logger.Error("confirm failed: order_id=%s error=%v", orderID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// Webhook acknowledges provider notifications. The only contract with the
// provider is receipt: a parseable payload is accepted with
// {"received":true} no matter what it contains, so the provider never
// retries events we have already recorded.
func (h *BillingHandler) Webhook(c *gin.Context) {
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		metrics.WebhooksReceived.WithLabelValues("malformed").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"received": false})
		return
	}

	var event billing.OrderWebhook
	if err := json.Unmarshal(raw, &event); err != nil {
		metrics.WebhooksReceived.WithLabelValues("malformed").Inc()
		h.logger.Warn("unparseable webhook payload rejected: error=%v", err)
		c.JSON(http.StatusBadRequest, gin.H{"received": false})
		return
	}
	event.Raw = raw

	if err := h.processor.ProcessOrderWebhook(c.Request.Context(), event); err != nil {
		// Receipt was not durably recorded; ask the provider to retry.
		h.logger.Error("webhook receipt not recorded: order_id=%s error=%v", event.OrderID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"received": false})
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}

func (h *BillingHandler) GetOrder(c *gin.Context) {
	orderID := c.Param("order_id")

	res, err := h.reconciler.GetOrderByID(c.Request.Context(), orderID)
	if err != nil {
		switch {
		case errors.Is(err, billing.ErrInvalidRequest):
			c.JSON(http.StatusBadRequest, gin.H{"error": "order_id is required"})
		case errors.Is(err, billing.ErrOrderNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
		default:
			h.logger.Error("get order failed: order_id=%s error=%v", orderID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		}
		return
	}

	c.JSON(http.StatusOK, res)
}

func (h *BillingHandler) GetOrderEvents(c *gin.Context) {
	orderID := c.Param("order_id")

	events, err := h.reconciler.GetEvents(c.Request.Context(), orderID)
	if err != nil {
		h.logger.Error("get order events failed: order_id=%s error=%v", orderID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": events})
}

func (h *BillingHandler) GetOrderAudit(c *gin.Context) {
	if h.audit == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "audit sink not configured"})
		return
	}

	query := billing.AuditEventQuery{OrderIDs: []string{c.Param("order_id")}}
	if kinds, ok := c.GetQueryArray("kinds"); ok {
		for _, k := range kinds {
			query.Kinds = append(query.Kinds, billing.AuditEventKind(k))
		}
	}

	events, err := h.audit.GetAuditEvents(c.Request.Context(), query)
	if err != nil {
		h.logger.Error("get audit events failed: order_id=%s error=%v", c.Param("order_id"), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": events})
}
