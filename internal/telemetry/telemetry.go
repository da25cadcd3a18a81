package telemetry

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/infraroutepro/infraroutepro/pkg/logger"
)

// Status 执行状态
type Status string

const (
	StatusSuccess        Status = "success"
	StatusFailure        Status = "failure"
	StatusTimeout        Status = "timeout"
	StatusInvalidCommand Status = "invalid_command"
	StatusNoDevice       Status = "no_device"
	StatusUnknown        Status = "unknown"
)

// ParseStatus 解析状态字符串；未知值归入 unknown
func ParseStatus(s string) Status {
	switch Status(strings.ToLower(strings.TrimSpace(s))) {
	case StatusSuccess:
		return StatusSuccess
	case StatusFailure:
		return StatusFailure
	case StatusTimeout:
		return StatusTimeout
	case StatusInvalidCommand:
		return StatusInvalidCommand
	case StatusNoDevice:
		return StatusNoDevice
	default:
		return StatusUnknown
	}
}

// emaAlpha 执行耗时指数滑动平均的平滑因子
const emaAlpha = 0.3

type historyEntry struct {
	status Status
	at     time.Time
}

// deviceMetrics 单设备计数器。不变式：total == success + failure
// （timeout等非成功状态计入failure，同时单独计数）
type deviceMetrics struct {
	total         int
	success       int
	failure       int
	timeout       int
	avgDurationMS float64
	lastExecution time.Time
	history       []historyEntry
}

// commandMetrics 单命令计数器与失败设备集合
type commandMetrics struct {
	total    int
	success  int
	failure  int
	failedOn map[string]bool
}

// Thresholds 告警阈值
type Thresholds struct {
	// FailureRate 失败率阈值（样本数≥10后才评估）
	FailureRate float64
	// ConsecutiveFailures 连续失败阈值
	ConsecutiveFailures int
	// RegressionDevices 同一命令失败设备数阈值
	RegressionDevices int
}

// DefaultThresholds 默认告警阈值
func DefaultThresholds() Thresholds {
	return Thresholds{
		FailureRate:         0.3,
		ConsecutiveFailures: 5,
		RegressionDevices:   3,
	}
}

// Engine 命令执行遥测引擎：维护设备/命令级实时统计并在阈值突破时产出告警。
// 所有修改操作串行化；公共方法不向外抛错。
type Engine struct {
	mu        sync.Mutex
	retention time.Duration
	limits    Thresholds
	devices   map[string]*deviceMetrics
	commands  map[string]*commandMetrics
	// now 可注入时钟，测试用
	now func() time.Time
}

// NewEngine 创建遥测引擎；retention 为状态历史保留窗口
func NewEngine(retention time.Duration, limits Thresholds) *Engine {
	if retention <= 0 {
		retention = time.Hour
	}
	if limits.FailureRate <= 0 {
		limits.FailureRate = 0.3
	}
	if limits.ConsecutiveFailures <= 0 {
		limits.ConsecutiveFailures = 5
	}
	if limits.RegressionDevices <= 0 {
		limits.RegressionDevices = 3
	}
	return &Engine{
		retention: retention,
		limits:    limits,
		devices:   make(map[string]*deviceMetrics),
		commands:  make(map[string]*commandMetrics),
		now:       time.Now,
	}
}

// RecordExecution 记录一次命令执行并返回本次触发的告警（可能为空）。
// durationMS<=0 视为未上报耗时，跳过EMA更新。
func (e *Engine) RecordExecution(device, command string, status Status, durationMS float64) []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()

	dev := e.devices[device]
	if dev == nil {
		dev = &deviceMetrics{}
		e.devices[device] = dev
	}

	dev.total++
	dev.lastExecution = now
	if status == StatusSuccess {
		dev.success++
	} else {
		dev.failure++
		if status == StatusTimeout {
			dev.timeout++
		}
	}
	dev.history = append(dev.history, historyEntry{status: status, at: now})

	if durationMS > 0 {
		dev.avgDurationMS = emaAlpha*durationMS + (1-emaAlpha)*dev.avgDurationMS
	}

	// 按保留窗口从队头剪除过期历史（滑动时间截断，非定长环）
	cutoff := now.Add(-e.retention)
	idx := 0
	for idx < len(dev.history) && !dev.history[idx].at.After(cutoff) {
		idx++
	}
	if idx > 0 {
		dev.history = append([]historyEntry(nil), dev.history[idx:]...)
	}

	cmd := e.commands[command]
	if cmd == nil {
		cmd = &commandMetrics{failedOn: make(map[string]bool)}
		e.commands[command] = cmd
	}
	cmd.total++
	if status == StatusSuccess {
		cmd.success++
	} else {
		cmd.failure++
		cmd.failedOn[device] = true
	}

	alerts := e.checkAlerts(device, command)
	for _, alert := range alerts {
		logger.Warn("ALERT: " + alert)
	}
	return alerts
}

// checkAlerts 评估全部告警规则；各规则独立，可同时触发。调用方须持锁。
func (e *Engine) checkAlerts(device, command string) []string {
	var alerts []string

	dev := e.devices[device]
	cmd := e.commands[command]

	// 规则1：高失败率（至少10个样本）
	if dev.total >= 10 {
		rate := float64(dev.failure) / float64(dev.total)
		if rate > e.limits.FailureRate {
			alerts = append(alerts, fmt.Sprintf(
				"HIGH FAILURE RATE on %s: %.1f%% (%d/%d failed)",
				device, rate*100, dev.failure, dev.total))
		}
	}

	// 规则2：连续失败（倒查最近至多10条历史，遇成功即止）
	recent := dev.history
	if len(recent) > 10 {
		recent = recent[len(recent)-10:]
	}
	consecutive := 0
	for i := len(recent) - 1; i >= 0; i-- {
		if recent[i].status == StatusSuccess {
			break
		}
		consecutive++
	}
	if consecutive >= e.limits.ConsecutiveFailures {
		alerts = append(alerts, fmt.Sprintf(
			"CONSECUTIVE FAILURES on %s: %d in a row - possible code regression",
			device, consecutive))
	}

	// 规则3：跨设备命令回归（终身计数，非窗口）
	if len(cmd.failedOn) >= e.limits.RegressionDevices {
		names := make([]string, 0, len(cmd.failedOn))
		for d := range cmd.failedOn {
			names = append(names, d)
		}
		sort.Strings(names)
		alerts = append(alerts, fmt.Sprintf(
			"COMMAND REGRESSION: '%s' failing on multiple devices (%s) - likely code issue",
			command, strings.Join(names, ", ")))
	}

	return alerts
}

// Reset 清空全部统计
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.devices = make(map[string]*deviceMetrics)
	e.commands = make(map[string]*commandMetrics)
}
