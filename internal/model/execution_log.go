package model

import "time"

// ExecutionLog 命令执行审计记录
// - request_id: 关联一次API请求（uuid）
// - device/command/status: 执行结果三要素
// - duration_ms: 执行耗时（毫秒，可为0表示未上报）
// - alerts: 本次记录触发的告警数量
//
// 注意：该表仅作事后审计，决策引擎不会读取它；写入失败只记日志不影响内存统计

type ExecutionLog struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	RequestID  string    `gorm:"index" json:"request_id"`
	Device     string    `gorm:"not null;index" json:"device"`
	Command    string    `gorm:"not null;index" json:"command"`
	Status     string    `gorm:"not null" json:"status"`
	DurationMS float64   `json:"duration_ms"`
	Alerts     int       `json:"alerts"`
	CreatedAt  time.Time `json:"created_at"`
}

func (ExecutionLog) TableName() string { return "execution_logs" }
