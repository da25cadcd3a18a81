package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/infraroutepro/infraroutepro/internal/classifier"
	"github.com/infraroutepro/infraroutepro/internal/config"
	"github.com/infraroutepro/infraroutepro/internal/database"
	"github.com/infraroutepro/infraroutepro/internal/model"
	"github.com/infraroutepro/infraroutepro/internal/registry"
	"github.com/infraroutepro/infraroutepro/internal/telemetry"
	"github.com/infraroutepro/infraroutepro/pkg/logger"
)

// RoutingService 请求编排服务：分类→厂商/栈解析→遥测记录
type RoutingService struct {
	cfg        *config.Config
	registry   *registry.Registry
	classifier *classifier.Classifier
	telemetry  *telemetry.Engine
}

// NewRoutingService 创建路由服务
func NewRoutingService(cfg *config.Config, reg *registry.Registry, cls *classifier.Classifier, tel *telemetry.Engine) *RoutingService {
	return &RoutingService{
		cfg:        cfg,
		registry:   reg,
		classifier: cls,
		telemetry:  tel,
	}
}

// RouteResult 一次路由决策的完整结果
type RouteResult struct {
	RequestID      string                   `json:"request_id"`
	Classification classifier.Result        `json:"classification"`
	Routing        registry.RoutingDecision `json:"routing"`
	// Stack 推荐执行栈；仅在路由到设备或厂商时有值
	Stack string `json:"stack,omitempty"`
}

// Route 对一段自由文本完成分类与路由决策。分类永不失败（内部降级），
// 仅 NETWORK_DEVICE 意图会继续做设备/厂商解析。
func (s *RoutingService) Route(ctx context.Context, text string) RouteResult {
	requestID := uuid.New().String()

	result := RouteResult{
		RequestID:      requestID,
		Classification: s.classifier.Classify(ctx, text),
	}

	if result.Classification.Intent == classifier.IntentNetworkDevice {
		result.Routing = s.registry.ResolveRouting(text)
		if result.Routing.Vendor != "" || len(result.Routing.Devices) > 0 {
			result.Stack = s.registry.StackForVendor(result.Routing.Vendor)
		}
	}

	logger.Info("Request routed", "request_id", requestID,
		"intent", string(result.Classification.Intent),
		"method", result.Classification.Method,
		"devices", len(result.Routing.Devices))

	return result
}

// Classify 仅做意图分类
func (s *RoutingService) Classify(ctx context.Context, text string) classifier.Result {
	return s.classifier.Classify(ctx, text)
}

// Registry 暴露注册表（设备查询接口使用）
func (s *RoutingService) Registry() *registry.Registry {
	return s.registry
}

// Telemetry 暴露遥测引擎
func (s *RoutingService) Telemetry() *telemetry.Engine {
	return s.telemetry
}

// RecordExecution 记录一次执行结果并返回触发的告警。
// requestID 取自HTTP请求上下文，用于审计行与请求日志的关联；为空时生成新id。
// 审计行写入SQLite为尽力而为：失败只记日志，不影响内存统计与告警。
func (s *RoutingService) RecordExecution(requestID, device, command string, status telemetry.Status, durationMS float64) []string {
	alerts := s.telemetry.RecordExecution(device, command, status, durationMS)

	if requestID == "" {
		requestID = uuid.New().String()
	}
	logRow := model.ExecutionLog{
		RequestID:  requestID,
		Device:     device,
		Command:    command,
		Status:     string(status),
		DurationMS: durationMS,
		Alerts:     len(alerts),
	}

	if err := database.WithRetry(func(db *gorm.DB) error {
		return db.Create(&logRow).Error
	}, 3, 50*time.Millisecond); err != nil {
		logger.Error("Failed to persist execution log", "device", device, "error", err)
	}

	for _, alert := range alerts {
		row := model.AlertLog{Device: device, Command: command, Message: alert}
		if err := database.WithRetry(func(db *gorm.DB) error {
			return db.Create(&row).Error
		}, 3, 50*time.Millisecond); err != nil {
			logger.Error("Failed to persist alert log", "device", device, "error", err)
		}
	}

	return alerts
}
