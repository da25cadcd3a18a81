package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/infraroutepro/infraroutepro/api/router"
	"github.com/infraroutepro/infraroutepro/internal/classifier"
	"github.com/infraroutepro/infraroutepro/internal/config"
	"github.com/infraroutepro/infraroutepro/internal/database"
	"github.com/infraroutepro/infraroutepro/internal/registry"
	"github.com/infraroutepro/infraroutepro/internal/service"
	"github.com/infraroutepro/infraroutepro/internal/telemetry"
	"github.com/infraroutepro/infraroutepro/pkg/cache"
	"github.com/infraroutepro/infraroutepro/pkg/llm"
	"github.com/infraroutepro/infraroutepro/pkg/logger"
)

func main() {
	// 加载配置
	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 初始化日志
	if err := logger.Init(logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		FilePath:   cfg.Log.FilePath,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
		Compress:   cfg.Log.Compress,
	}); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	logger.Info("Starting Infra Route Pro Server", "version", "1.0.0")

	// 初始化数据库（审计存储）
	if err := database.InitSQLite(cfg.Database.SQLite); err != nil {
		logger.Fatal("Failed to initialize database", "error", err)
	}
	defer database.Close()

	// 初始化Redis缓存（可选，失败不致命）
	if err := cache.InitRedis(cfg.Cache); err != nil {
		logger.Warn("Redis cache unavailable, classification cache disabled", "error", err)
	}
	defer cache.Close()

	// 构建设备注册表（清单缺失时保持为空，路由走兜底）
	reg := registry.New(cfg.Inventory.TestbedPath, cfg.Inventory.VendorTagPath)

	// 构建意图分类器；未配置LLM后端时全部走关键字回退
	var backend classifier.Backend
	if cfg.Classifier.BaseURL != "" {
		backend = llm.NewClient(cfg.Classifier.BaseURL, cfg.Classifier.APIKey, cfg.Classifier.Model, cfg.Classifier.Timeout)
		logger.Info("LLM classification backend configured", "model", cfg.Classifier.Model)
	} else {
		logger.Warn("No LLM backend configured, classification uses keyword fallback only")
	}
	cls := classifier.New(backend, cfg.Classifier.Temperature, cfg.Classifier.MaxTokens, cfg.Classifier.Timeout,
		classifier.WithCacheTTL(cfg.Classifier.CacheTTL))

	// 构建遥测引擎
	tel := telemetry.NewEngine(
		time.Duration(cfg.Telemetry.RetentionSeconds)*time.Second,
		telemetry.Thresholds{
			FailureRate:         cfg.Telemetry.FailureRateThreshold,
			ConsecutiveFailures: cfg.Telemetry.ConsecutiveFailures,
			RegressionDevices:   cfg.Telemetry.RegressionDevices,
		},
	)

	// 创建路由服务
	routingService := service.NewRoutingService(cfg, reg, cls, tel)

	// 创建导出服务
	ctx := context.Background()
	exporterService := service.NewExporterService(cfg, tel)
	if err := exporterService.Start(ctx); err != nil {
		logger.Fatal("Failed to start exporter service", "error", err)
	}
	defer exporterService.Stop()

	// 设置路由
	r := router.SetupRouter(routingService, exporterService)

	// 创建HTTP服务器
	server := &http.Server{
		Addr:           fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:        r,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxHeaderBytes: 1 << 20, // 1MB
	}

	// 启动服务器
	go func() {
		logger.Info("Server starting", "port", cfg.Server.Port, "mode", cfg.Server.Mode)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", "error", err)
		}
	}()

	// 清单文件监听与热重载（整体重建索引后原子换入）
	if cfg.Inventory.WatchEnable {
		go watchInventory(cfg, reg)
	}

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Server shutting down...")

	// 优雅关闭服务器
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	} else {
		logger.Info("Server shutdown complete")
	}
}

// watchInventory 监听清单与厂商标签文件变化，去抖后触发注册表重载
func watchInventory(cfg *config.Config, reg *registry.Registry) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Warn("Inventory watch init failed", "error", err)
		return
	}
	defer watcher.Close()

	for _, path := range []string{cfg.Inventory.TestbedPath, cfg.Inventory.VendorTagPath} {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); err != nil {
			logger.Warn("Inventory watch: file not found, skip watch", "path", path, "error", err)
			continue
		}
		if err := watcher.Add(path); err != nil {
			logger.Warn("Inventory watch add failed", "path", path, "error", err)
		}
	}

	var debounce *time.Timer
	debounceInterval := 300 * time.Millisecond
	trigger := func() {
		reg.Reload()
		logger.Info("Inventory reloaded by file change", "devices", reg.DeviceCount())
	}

	for {
		select {
		case ev := <-watcher.Events:
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(debounceInterval, trigger)
			}
		case err := <-watcher.Errors:
			logger.Warn("Inventory watch error", "error", err)
		}
	}
}
