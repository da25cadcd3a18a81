package service

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/infraroutepro/infraroutepro/internal/classifier"
	"github.com/infraroutepro/infraroutepro/internal/config"
	"github.com/infraroutepro/infraroutepro/internal/database"
	"github.com/infraroutepro/infraroutepro/internal/model"
	"github.com/infraroutepro/infraroutepro/internal/registry"
	"github.com/infraroutepro/infraroutepro/internal/telemetry"
)

// TestRecordExecutionAuditRequestID 审计行必须携带调用方传入的请求id，
// 以便与HTTP请求日志关联；未传入时生成uuid兜底
func TestRecordExecutionAuditRequestID(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, database.InitSQLite(config.SQLiteConfig{
		Path:            filepath.Join(dir, "audit.db"),
		MaxIdleConns:    1,
		MaxOpenConns:    1,
		ConnMaxLifetime: time.Hour,
	}))
	t.Cleanup(func() { _ = database.Close() })

	svc := NewRoutingService(
		&config.Config{},
		registry.New(filepath.Join(dir, "missing.yaml"), ""),
		classifier.New(nil, 0.3, 200, time.Second),
		telemetry.NewEngine(time.Hour, telemetry.DefaultThresholds()),
	)

	svc.RecordExecution("req-123", "R1", "show version", telemetry.StatusSuccess, 80)

	var row model.ExecutionLog
	require.NoError(t, database.GetDB().Where("request_id = ?", "req-123").First(&row).Error)
	assert.Equal(t, "R1", row.Device)
	assert.Equal(t, "show version", row.Command)
	assert.Equal(t, "success", row.Status)
	assert.Equal(t, float64(80), row.DurationMS)

	// 请求id缺失时生成新id，审计行仍可单独追溯
	svc.RecordExecution("", "R2", "show version", telemetry.StatusFailure, 0)
	var rows []model.ExecutionLog
	require.NoError(t, database.GetDB().Where("device = ?", "R2").Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.NotEmpty(t, rows[0].RequestID)
	assert.NotEqual(t, "req-123", rows[0].RequestID)
}
