package telemetry

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/infraroutepro/infraroutepro/pkg/logger"
)

// 健康状态分层阈值
const (
	healthyRate  = 0.9
	degradedRate = 0.7
)

// DeviceHealth 设备健康视图
type DeviceHealth struct {
	SuccessRate   float64 `json:"success_rate"`
	Total         int     `json:"total"`
	Success       int     `json:"success"`
	Failure       int     `json:"failure"`
	Timeout       int     `json:"timeout"`
	AvgDurationMS float64 `json:"avg_duration_ms"`
	LastExecution string  `json:"last_execution,omitempty"`
	Status        string  `json:"status"`
}

// CommandHealth 命令健康视图
type CommandHealth struct {
	SuccessRate float64  `json:"success_rate"`
	Total       int      `json:"total"`
	Success     int      `json:"success"`
	Failure     int      `json:"failure"`
	FailedOn    []string `json:"failed_on"`
	Status      string   `json:"status"`
}

// HealthReport 健康报告快照
type HealthReport struct {
	Timestamp string                   `json:"timestamp"`
	Devices   map[string]DeviceHealth  `json:"devices"`
	Commands  map[string]CommandHealth `json:"commands"`
	Alerts    []string                 `json:"alerts"`
}

func statusTier(successRate float64) string {
	switch {
	case successRate >= healthyRate:
		return "healthy"
	case successRate >= degradedRate:
		return "degraded"
	default:
		return "critical"
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// HealthReport 生成当前健康报告快照
func (e *Engine) HealthReport() HealthReport {
	e.mu.Lock()
	defer e.mu.Unlock()

	report := HealthReport{
		Timestamp: e.now().Format(time.RFC3339),
		Devices:   make(map[string]DeviceHealth),
		Commands:  make(map[string]CommandHealth),
		Alerts:    []string{},
	}

	for device, m := range e.devices {
		if m.total == 0 {
			continue
		}
		rate := float64(m.success) / float64(m.total)
		report.Devices[device] = DeviceHealth{
			SuccessRate:   rate,
			Total:         m.total,
			Success:       m.success,
			Failure:       m.failure,
			Timeout:       m.timeout,
			AvgDurationMS: round2(m.avgDurationMS),
			LastExecution: m.lastExecution.Format(time.RFC3339),
			Status:        statusTier(rate),
		}
	}

	for command, m := range e.commands {
		if m.total == 0 {
			continue
		}
		rate := float64(m.success) / float64(m.total)
		failedOn := make([]string, 0, len(m.failedOn))
		for d := range m.failedOn {
			failedOn = append(failedOn, d)
		}
		sort.Strings(failedOn)
		report.Commands[command] = CommandHealth{
			SuccessRate: rate,
			Total:       m.total,
			Success:     m.success,
			Failure:     m.failure,
			FailedOn:    failedOn,
			Status:      statusTier(rate),
		}
	}

	return report
}

// ExportMetrics 将健康报告写入JSON文件。写入失败只记日志，不影响内存状态。
func (e *Engine) ExportMetrics(path string) error {
	report := e.HealthReport()

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		logger.Error("Failed to marshal health report", "error", err)
		return fmt.Errorf("failed to marshal health report: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		logger.Error("Failed to create metrics directory", "path", path, "error", err)
		return fmt.Errorf("failed to create metrics directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		logger.Error("Failed to export metrics", "path", path, "error", err)
		return fmt.Errorf("failed to export metrics: %w", err)
	}

	logger.Info("Metrics exported", "path", path)
	return nil
}
