package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	minio "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"golang.org/x/sync/errgroup"

	"github.com/infraroutepro/infraroutepro/internal/config"
	"github.com/infraroutepro/infraroutepro/internal/telemetry"
	"github.com/infraroutepro/infraroutepro/pkg/logger"
)

// ExporterService 健康报告导出服务：本地文件与MinIO对象存储，
// 按配置后端路由（local | minio | both），支持定时导出
type ExporterService struct {
	cfg    *config.Config
	engine *telemetry.Engine
	client *minio.Client
	stop   chan struct{}
	done   chan struct{}
}

// NewExporterService 创建导出服务
func NewExporterService(cfg *config.Config, engine *telemetry.Engine) *ExporterService {
	return &ExporterService{
		cfg:    cfg,
		engine: engine,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Start 初始化MinIO客户端（按需）并启动定时导出
func (s *ExporterService) Start(ctx context.Context) error {
	backend := strings.ToLower(strings.TrimSpace(s.cfg.Storage.Backend))
	if backend == "minio" || backend == "both" {
		s.client = s.initMinioClient()
	}

	if s.cfg.Telemetry.ExportInterval > 0 {
		go s.exportLoop()
	} else {
		close(s.done)
	}
	return nil
}

// Stop 停止定时导出
func (s *ExporterService) Stop() {
	close(s.stop)
	<-s.done
}

func (s *ExporterService) exportLoop() {
	defer close(s.done)
	ticker := time.NewTicker(s.cfg.Telemetry.ExportInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := s.Export(context.Background()); err != nil {
				logger.Warn("Scheduled metrics export failed", "error", err)
			}
		case <-s.stop:
			return
		}
	}
}

// initMinioClient 初始化MinIO客户端；配置不完整或连接失败时返回nil并降级本地
func (s *ExporterService) initMinioClient() *minio.Client {
	host := strings.TrimSpace(s.cfg.Storage.Minio.Host)
	port := s.cfg.Storage.Minio.Port
	if host == "" || port <= 0 {
		logger.Warn("MinIO configuration incomplete; host/port missing")
		return nil
	}
	endpoint := fmt.Sprintf("%s:%d", host, port)

	// 自定义传输以提升连接与响应的鲁棒性
	transport := &http.Transport{
		DialContext:           (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		TLSHandshakeTimeout:   5 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 5 * time.Second,
		IdleConnTimeout:       90 * time.Second,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   100,
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:     credentials.NewStaticV4(s.cfg.Storage.Minio.AccessKey, s.cfg.Storage.Minio.SecretKey, ""),
		Secure:    s.cfg.Storage.Minio.Secure,
		Transport: transport,
	})
	if err != nil {
		logger.Error("MinIO client initialization failed", "error", err)
		return nil
	}

	logger.Info("MinIO exporter initialized", "endpoint", endpoint, "bucket", s.cfg.Storage.Minio.Bucket)
	return client
}

// Export 导出一次健康报告。本地与MinIO并行写入；任一失败记日志并返回，
// 但不影响内存统计。
func (s *ExporterService) Export(ctx context.Context) error {
	backend := strings.ToLower(strings.TrimSpace(s.cfg.Storage.Backend))

	g, gctx := errgroup.WithContext(ctx)

	if backend == "local" || backend == "both" || backend == "" {
		g.Go(func() error {
			return s.engine.ExportMetrics(s.cfg.Telemetry.ExportPath)
		})
	}

	if backend == "minio" || backend == "both" {
		g.Go(func() error {
			return s.exportToMinio(gctx)
		})
	}

	return g.Wait()
}

func (s *ExporterService) exportToMinio(ctx context.Context) error {
	if s.client == nil {
		// MinIO 未初始化：回退本地写入，保底不丢报告
		logger.Warn("MinIO backend selected but client not initialized; falling back to local")
		return s.engine.ExportMetrics(s.cfg.Telemetry.ExportPath)
	}

	report := s.engine.HealthReport()
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal health report: %w", err)
	}

	bucket := strings.TrimSpace(s.cfg.Storage.Minio.Bucket)
	if bucket == "" {
		return fmt.Errorf("minio bucket not configured")
	}

	prefix := strings.Trim(s.cfg.Storage.Minio.Prefix, "/")
	objectName := fmt.Sprintf("%s/health_report_%s.json", prefix, time.Now().Format("20060102_150405"))

	_, err = s.client.PutObject(ctx, bucket, objectName, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		logger.Error("MinIO export failed", "object", objectName, "error", err)
		return fmt.Errorf("minio export failed: %w", err)
	}

	logger.Info("Metrics exported to MinIO", "bucket", bucket, "object", objectName)
	return nil
}
