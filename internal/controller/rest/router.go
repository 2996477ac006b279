package rest

import (
	"github.com/lumora-app/billing-service/internal/controller/rest/handlers"
	"github.com/lumora-app/billing-service/pkg/health"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lumora-app/billing-service/pkg/metrics"
)

type Router struct {
	billing handlers.BillingHandler
	health  *health.Registry
}

func NewRouter(billing handlers.BillingHandler, healthReg *health.Registry) *Router {
	return &Router{
		billing: billing,
		health:  healthReg,
	}
}

func (r *Router) SetUp(engine *gin.Engine) {
	engine.POST("/billing/confirm-order", r.billing.ConfirmOrder)
	engine.POST("/billing/webhook", r.billing.Webhook)

	engine.GET("/billing/orders/:order_id", r.billing.GetOrder)
	engine.GET("/billing/orders/:order_id/events", r.billing.GetOrderEvents)
	engine.GET("/billing/orders/:order_id/audit", r.billing.GetOrderAudit)

	engine.GET("/health/live", health.LivenessHandler())
	engine.GET("/health/ready", health.ReadinessHandler(r.health, health.DefaultTimeout))

	engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})))
}
