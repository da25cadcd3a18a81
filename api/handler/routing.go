package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/infraroutepro/infraroutepro/internal/database"
	"github.com/infraroutepro/infraroutepro/internal/service"
	"github.com/infraroutepro/infraroutepro/pkg/logger"
)

// RoutingHandler 路由处理器
type RoutingHandler struct {
	routingService *service.RoutingService
}

// NewRoutingHandler 创建路由处理器
func NewRoutingHandler(routingService *service.RoutingService) *RoutingHandler {
	return &RoutingHandler{routingService: routingService}
}

// TextRequest 自由文本请求体
type TextRequest struct {
	Text string `json:"text" binding:"required"`
}

// Route 处理一次完整路由请求：意图分类 + 设备/厂商/栈解析
// @Summary 请求路由决策
// @Tags routing
// @Accept json
// @Produce json
// @Router /api/v1/route [post]
func (h *RoutingHandler) Route(c *gin.Context) {
	var req TextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Error("Invalid route request", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Code:    "INVALID_PARAMS",
			Message: "请求参数无效: " + err.Error(),
		})
		return
	}

	if strings.TrimSpace(req.Text) == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Code:    "MISSING_TEXT",
			Message: "请求文本不能为空",
		})
		return
	}

	result := h.routingService.Route(c.Request.Context(), req.Text)
	c.JSON(http.StatusOK, SuccessResponse{
		Code:    "OK",
		Message: "路由决策完成",
		Data:    result,
	})
}

// Classify 仅做意图分类
// @Summary 意图分类
// @Tags routing
// @Router /api/v1/classify [post]
func (h *RoutingHandler) Classify(c *gin.Context) {
	var req TextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Code:    "INVALID_PARAMS",
			Message: "请求参数无效: " + err.Error(),
		})
		return
	}

	result := h.routingService.Classify(c.Request.Context(), req.Text)
	c.JSON(http.StatusOK, SuccessResponse{
		Code:    "OK",
		Message: "分类完成",
		Data:    result,
	})
}

// Health 服务健康检查
func (h *RoutingHandler) Health(c *gin.Context) {
	dbStatus := "ok"
	if err := database.Health(); err != nil {
		dbStatus = "error: " + err.Error()
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "running",
		"database": dbStatus,
		"devices":  h.routingService.Registry().DeviceCount(),
	})
}
