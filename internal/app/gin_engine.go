package app

import (
	"github.com/lumora-app/billing-service/pkg/logger"
	"github.com/lumora-app/billing-service/pkg/metrics"

	"github.com/gin-gonic/gin"
)

func NewGinEngine(l *logger.Logger) *gin.Engine {
	engine := gin.New()
	engine.Use(logger.CorrelationMiddleware(), metrics.GinMiddleware(), l.GinBodyLogger(), gin.Recovery())
	return engine
}
