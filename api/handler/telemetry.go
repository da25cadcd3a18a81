package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/infraroutepro/infraroutepro/internal/service"
	"github.com/infraroutepro/infraroutepro/internal/telemetry"
	"github.com/infraroutepro/infraroutepro/pkg/logger"
)

// TelemetryHandler 遥测处理器
type TelemetryHandler struct {
	routingService  *service.RoutingService
	exporterService *service.ExporterService
}

// NewTelemetryHandler 创建遥测处理器
func NewTelemetryHandler(routingService *service.RoutingService, exporterService *service.ExporterService) *TelemetryHandler {
	return &TelemetryHandler{
		routingService:  routingService,
		exporterService: exporterService,
	}
}

// ExecutionRequest 执行结果上报请求体
type ExecutionRequest struct {
	Device     string  `json:"device" binding:"required"`
	Command    string  `json:"command" binding:"required"`
	Status     string  `json:"status" binding:"required"`
	DurationMS float64 `json:"duration_ms,omitempty"`
}

// RecordExecution 上报一次命令执行结果，返回触发的告警
// @Summary 上报执行结果
// @Tags telemetry
// @Router /api/v1/telemetry/executions [post]
func (h *TelemetryHandler) RecordExecution(c *gin.Context) {
	var req ExecutionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Error("Invalid execution record", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Code:    "INVALID_PARAMS",
			Message: "执行记录参数无效: " + err.Error(),
		})
		return
	}

	status := telemetry.ParseStatus(req.Status)
	alerts := h.routingService.RecordExecution(c.GetString("request_id"), req.Device, req.Command, status, req.DurationMS)
	if alerts == nil {
		alerts = []string{}
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Code:    "OK",
		Message: "执行结果已记录",
		Data: gin.H{
			"device":  req.Device,
			"command": req.Command,
			"status":  string(status),
			"alerts":  alerts,
		},
	})
}

// GetHealthReport 获取健康报告快照
// @Summary 健康报告
// @Tags telemetry
// @Router /api/v1/telemetry/health [get]
func (h *TelemetryHandler) GetHealthReport(c *gin.Context) {
	c.JSON(http.StatusOK, h.routingService.Telemetry().HealthReport())
}

// Export 触发一次健康报告导出
// @Summary 导出健康报告
// @Tags telemetry
// @Router /api/v1/telemetry/export [post]
func (h *TelemetryHandler) Export(c *gin.Context) {
	if err := h.exporterService.Export(c.Request.Context()); err != nil {
		// 导出失败不影响内存统计，返回202提示调用方检查日志
		c.JSON(http.StatusAccepted, SuccessResponse{
			Code:    "EXPORT_PARTIAL",
			Message: "导出未完全成功: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Code:    "OK",
		Message: "健康报告已导出",
	})
}

// Reset 清空遥测统计
// @Summary 重置遥测
// @Tags telemetry
// @Router /api/v1/telemetry/reset [post]
func (h *TelemetryHandler) Reset(c *gin.Context) {
	h.routingService.Telemetry().Reset()
	c.JSON(http.StatusOK, SuccessResponse{
		Code:    "OK",
		Message: "遥测统计已清空",
	})
}
