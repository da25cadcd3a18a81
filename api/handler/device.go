package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/infraroutepro/infraroutepro/internal/registry"
	"github.com/infraroutepro/infraroutepro/pkg/logger"
)

// DeviceHandler 设备查询处理器
type DeviceHandler struct {
	registry *registry.Registry
}

// NewDeviceHandler 创建设备处理器
func NewDeviceHandler(reg *registry.Registry) *DeviceHandler {
	return &DeviceHandler{registry: reg}
}

// ListDevices 列出全部已注册设备
// @Summary 设备列表
// @Tags device
// @Router /api/v1/devices [get]
func (h *DeviceHandler) ListDevices(c *gin.Context) {
	c.JSON(http.StatusOK, SuccessResponse{
		Code: "OK",
		Data: gin.H{
			"count":   h.registry.DeviceCount(),
			"devices": h.registry.Devices(),
			"summary": h.registry.Summary(),
		},
	})
}

// GetDevice 查询单台设备
// @Summary 设备详情
// @Tags device
// @Router /api/v1/devices/{name} [get]
func (h *DeviceHandler) GetDevice(c *gin.Context) {
	name := c.Param("name")
	device, ok := h.registry.DeviceInfo(name)
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Code:    "DEVICE_NOT_FOUND",
			Message: "设备不存在: " + name,
		})
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Code: "OK",
		Data: gin.H{
			"device": device,
			"stack":  h.registry.StackForDevice(name),
		},
	})
}

// GetDevicesByVendor 按厂商查询设备
// @Summary 厂商设备列表
// @Tags device
// @Router /api/v1/devices/vendor/{vendor} [get]
func (h *DeviceHandler) GetDevicesByVendor(c *gin.Context) {
	vendor := c.Param("vendor")
	devices := h.registry.DevicesByVendor(vendor)
	if devices == nil {
		devices = []string{}
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Code: "OK",
		Data: gin.H{
			"vendor":  vendor,
			"stack":   h.registry.StackForVendor(vendor),
			"devices": devices,
		},
	})
}

// CategorizeRequest 栈分组请求体
type CategorizeRequest struct {
	Devices []string `json:"devices" binding:"required"`
}

// CategorizeByStack 将设备列表按自动化栈分组
// @Summary 设备栈分组
// @Tags device
// @Router /api/v1/devices/categorize [post]
func (h *DeviceHandler) CategorizeByStack(c *gin.Context) {
	var req CategorizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Code:    "INVALID_PARAMS",
			Message: "请求参数无效: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Code: "OK",
		Data: h.registry.CategorizeByStack(req.Devices),
	})
}

// ReloadRegistry 重新加载设备清单（原子换入新索引）
// @Summary 重载设备清单
// @Tags device
// @Router /api/v1/registry/reload [post]
func (h *DeviceHandler) ReloadRegistry(c *gin.Context) {
	h.registry.Reload()
	logger.Info("Registry reload requested via API", "devices", h.registry.DeviceCount())

	c.JSON(http.StatusOK, SuccessResponse{
		Code:    "OK",
		Message: "设备清单已重载",
		Data:    gin.H{"devices": h.registry.DeviceCount()},
	})
}
