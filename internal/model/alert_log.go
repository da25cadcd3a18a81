package model

import "time"

// AlertLog 告警审计记录（每条触发的告警一行）
type AlertLog struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Device    string    `gorm:"index" json:"device"`
	Command   string    `gorm:"index" json:"command"`
	Message   string    `gorm:"not null" json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

func (AlertLog) TableName() string { return "alert_logs" }
