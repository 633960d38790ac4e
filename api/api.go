package api

import (
	"fmt"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"rotation/internal/config"
	"rotation/internal/logger"
	"rotation/internal/pricing"
	"rotation/internal/repository"
	"rotation/internal/universe"
)

// ApiHandler serves backtest and screen runs over HTTP, and doubles
// as the process dependency bundle. Each request builds its own
// config from the base plus request overrides, so concurrent
// requests never share mutable state.
type ApiHandler struct {
	BaseConfig      *config.Config
	PriceRepository repository.PriceRepository
	PricingService  pricing.Service
	UniverseService universe.Service
}

func (m ApiHandler) InitializeRouterEngine() *gin.Engine {
	router := gin.Default()
	router.Use(cors.Default())
	router.Use(m.logRequestMiddlware)

	router.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(200, gin.H{"status": "ok"})
	})
	router.POST("/backtest", m.backtest)
	router.POST("/screen", m.screen)

	return router
}

func (m ApiHandler) StartApi(port int) error {
	router := m.InitializeRouterEngine()
	return router.Run(fmt.Sprintf(":%d", port))
}

func returnErrorJson(err error, c *gin.Context) {
	returnErrorJsonCode(err, c, 500)
}

func returnErrorJsonCode(err error, c *gin.Context, code int) {
	logger.FromContext(c.Request.Context()).Errorw("request failed",
		"route", c.Request.URL.Path,
		"code", code,
		"error", err,
	)
	c.AbortWithStatusJSON(code, gin.H{
		"error": err.Error(),
	})
}

func (m ApiHandler) logRequestMiddlware(ctx *gin.Context) {
	start := time.Now()
	ctx.Next()

	logger.FromContext(ctx.Request.Context()).Infow("request",
		"method", ctx.Request.Method,
		"route", ctx.Request.URL.Path,
		"status", ctx.Writer.Status(),
		"durationMs", time.Since(start).Milliseconds(),
		"ip", ctx.ClientIP(),
	)
}
