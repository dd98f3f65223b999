// Package router mounts the JSON API on a gin engine.
package router

import (
	"net/http"
	"time"

	"github.com/chamithdewmin/iphoneCenter.lk-sub000/internal/config"
	"github.com/chamithdewmin/iphoneCenter.lk-sub000/internal/handlers"
	"github.com/chamithdewmin/iphoneCenter.lk-sub000/internal/metrics"
	"github.com/chamithdewmin/iphoneCenter.lk-sub000/internal/middleware"
	"github.com/chamithdewmin/iphoneCenter.lk-sub000/internal/scope"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type Options struct {
	HTTP    config.HTTP
	Metrics *metrics.Metrics
	// Gatherer backs GET /metrics; nil leaves the route unmounted.
	Gatherer prometheus.Gatherer
	Log      *zap.Logger
}

func New(h *handlers.Handler, opts Options) (*gin.Engine, error) {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(opts.Log))
	r.Use(middleware.Metrics(opts.Metrics))

	r.Use(cors.New(cors.Config{
		AllowOrigins:     opts.HTTP.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middleware.BranchHeader, middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "online"}) })
	if opts.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))
	}

	login := []gin.HandlerFunc{h.Login}
	if opts.HTTP.LoginRateLimit != "" {
		limit, err := middleware.RateLimit(opts.HTTP.LoginRateLimit)
		if err != nil {
			return nil, err
		}
		login = append([]gin.HandlerFunc{limit}, login...)
	}
	r.POST("/login", login...)

	// Only opens if we explicitly allow it in .env
	if h.AllowRegistration {
		r.POST("/register", h.Register)
		opts.Log.Warn("registration route is OPEN; disable ALLOW_REGISTRATION in production")
	}

	api := r.Group("/api")
	api.Use(middleware.AuthMiddleware(h.Tokens))
	{
		api.GET("/branches", h.ListBranches)

		inv := api.Group("/inventory")
		inv.GET("/stock", h.GetStock)
		inv.PUT("/stock-quantity", h.SetStockQuantity)
		inv.GET("/products", h.ListProducts)
		inv.GET("/products/:id", h.GetProduct)
		inv.GET("/barcode/generate/:productId", h.GenerateBarcode)
		inv.GET("/barcode/pdf/:barcode", h.BarcodePDF)
		inv.GET("/imei", h.ListIMEIs)
		inv.POST("/imei", h.RegisterIMEIs)
		inv.GET("/transfers", h.ListTransfers)
		inv.POST("/transfers", h.CreateTransfer)
		inv.GET("/movements", h.ListMovements)

		orders := api.Group("/per-orders")
		orders.GET("", h.ListPerOrders)
		orders.POST("", h.CreatePerOrder)
		orders.GET("/:id", h.GetPerOrder)
		orders.PATCH("/:id", h.UpdatePerOrder)
		orders.POST("/:id/cancel", h.CancelPerOrder)
		orders.POST("/:id/convert-to-sale", h.ConvertPerOrder)

		sales := api.Group("/billing/sales")
		sales.GET("", h.ListSales)
		sales.POST("", h.CreateSale)
		sales.GET("/:id", h.GetSale)
		sales.POST("/:id/payments", h.AddPayment)

		// ADMIN ONLY
		admin := api.Group("")
		admin.Use(middleware.RequireRole(scope.RoleAdmin))
		{
			admin.POST("/branches", h.CreateBranch)
			admin.PATCH("/branches/:id", h.UpdateBranch)
			admin.POST("/inventory/products", h.CreateProduct)
			admin.GET("/reports/sales-summary", h.SalesSummary)
			admin.POST("/ask", h.AskAI)
		}
	}

	return r, nil
}
