package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/infraroutepro/infraroutepro/api/handler"
	"github.com/infraroutepro/infraroutepro/internal/service"
	"github.com/infraroutepro/infraroutepro/pkg/logger"
)

// SetupRouter 设置路由
func SetupRouter(routingService *service.RoutingService, exporterService *service.ExporterService) *gin.Engine {
	// 设置Gin模式
	gin.SetMode(gin.ReleaseMode)

	// 创建路由引擎
	r := gin.New()

	// 添加中间件
	r.Use(gin.Recovery())
	r.Use(CORSMiddleware())
	r.Use(RequestIDMiddleware())
	r.Use(LoggingMiddleware())

	// 创建处理器
	routingHandler := handler.NewRoutingHandler(routingService)
	telemetryHandler := handler.NewTelemetryHandler(routingService, exporterService)
	deviceHandler := handler.NewDeviceHandler(routingService.Registry())

	// 根路径
	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"name":    "Infra Route Pro",
			"version": "1.0.0",
			"status":  "running",
		})
	})

	// API v1 路由组
	v1 := r.Group("/api/v1")
	{
		// 健康检查
		v1.GET("/health", routingHandler.Health)

		// 路由与分类
		v1.POST("/route", routingHandler.Route)
		v1.POST("/classify", routingHandler.Classify)

		// 遥测
		tele := v1.Group("/telemetry")
		{
			tele.POST("/executions", telemetryHandler.RecordExecution)
			tele.GET("/health", telemetryHandler.GetHealthReport)
			tele.POST("/export", telemetryHandler.Export)
			tele.POST("/reset", telemetryHandler.Reset)
		}

		// 设备与清单
		v1.GET("/devices", deviceHandler.ListDevices)
		v1.POST("/devices/categorize", deviceHandler.CategorizeByStack)
		v1.GET("/devices/vendor/:vendor", deviceHandler.GetDevicesByVendor)
		v1.GET("/devices/:name", deviceHandler.GetDevice)
		v1.POST("/registry/reload", deviceHandler.ReloadRegistry)
	}

	return r
}

// CORSMiddleware 跨域中间件
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Request-ID")
		c.Header("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

// RequestIDMiddleware 请求ID中间件
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Header("X-Request-ID", requestID)
		c.Set("request_id", requestID)
		c.Next()
	}
}

// LoggingMiddleware 日志中间件
func LoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start)
		requestID := c.GetString("request_id")
		statusCode := c.Writer.Status()

		logger.Info("HTTP Request",
			"request_id", requestID,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", statusCode,
			"duration", duration,
			"client_ip", c.ClientIP(),
		)

		if statusCode >= 400 {
			logger.Error("HTTP Error",
				"request_id", requestID,
				"method", c.Request.Method,
				"path", c.Request.URL.Path,
				"status", statusCode,
			)
		}
	}
}
