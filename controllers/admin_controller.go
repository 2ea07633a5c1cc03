package controllers

import (
	"net/http"
	"time"

	"fabrikaProject/middleware"
	"fabrikaProject/services"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// AdminController обслуживает служебные маршруты /admin
type AdminController struct {
	finance *services.FinanceService
	started time.Time
}

// NewAdminController создает новый экземпляр AdminController
func NewAdminController(finance *services.FinanceService) *AdminController {
	return &AdminController{finance: finance, started: time.Now()}
}

// Health сообщает, что сервис работает
func (c *AdminController) Health(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"uptime": time.Since(c.started).Round(time.Second).String(),
	})
}

// Reconcile заново сводит итоги всех договоров и проектов
func (c *AdminController) Reconcile(ctx *gin.Context) {
	report, err := c.finance.ReconcileAll(ctx.Request.Context())
	if err != nil {
		_ = ctx.Error(err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	ctx.JSON(http.StatusOK, report)
}

// NewAdminRouter собирает gin движок служебных маршрутов.
// Движок монтируется в основной роутер по префиксу /admin.
func NewAdminRouter(admin *AdminController, jwtKey []byte, users middleware.UserLookup) *gin.Engine {
	engine := gin.New()
	engine.Use(middleware.Recovery())
	engine.Use(middleware.Logger())
	engine.Use(middleware.CORSMiddleware())
	engine.Use(middleware.RateLimit())

	group := engine.Group("/admin")
	group.GET("/health", admin.Health)
	group.GET("/metrics", gin.WrapH(promhttp.Handler()))

	protected := group.Group("")
	protected.Use(middleware.Auth(jwtKey, users))
	protected.POST("/reconcile", admin.Reconcile)

	return engine
}
