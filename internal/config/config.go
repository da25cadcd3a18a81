package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 应用配置结构
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Inventory  InventoryConfig  `mapstructure:"inventory"`
	Classifier ClassifierConfig `mapstructure:"classifier"`
	Telemetry  TelemetryConfig  `mapstructure:"telemetry"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Log        LogConfig        `mapstructure:"log"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Mode         string        `mapstructure:"mode"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// InventoryConfig 设备清单配置
type InventoryConfig struct {
	// TestbedPath 设备清单文件路径（testbed.yaml）
	TestbedPath string `mapstructure:"testbed_path"`
	// VendorTagPath 厂商-自动化栈映射文件路径（vendor_tags.yaml）
	VendorTagPath string `mapstructure:"vendor_tag_path"`
	// WatchEnable 是否监听清单文件变化并热重载
	WatchEnable bool `mapstructure:"watch_enable"`
}

// ClassifierConfig 意图分类配置
type ClassifierConfig struct {
	// BaseURL LLM后端地址（OpenAI兼容接口）；为空时仅使用关键字回退
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	// Temperature 采样温度：分类要求稳定输出，默认0.3
	Temperature float64 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	// Timeout LLM调用超时；超时后立即走关键字回退，不阻塞调用方
	Timeout time.Duration `mapstructure:"timeout"`
	// CacheTTL 分类结果缓存时长（Redis启用时生效）
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// TelemetryConfig 遥测配置
type TelemetryConfig struct {
	// RetentionSeconds 状态历史保留窗口（秒）
	RetentionSeconds int `mapstructure:"retention_seconds"`
	// FailureRateThreshold 高失败率阈值（0-1）
	FailureRateThreshold float64 `mapstructure:"failure_rate_threshold"`
	// ConsecutiveFailures 连续失败告警阈值
	ConsecutiveFailures int `mapstructure:"consecutive_failures"`
	// RegressionDevices 同一命令在多少台设备上失败视为代码回归
	RegressionDevices int `mapstructure:"regression_devices"`
	// ExportPath 健康报告导出文件路径
	ExportPath string `mapstructure:"export_path"`
	// ExportInterval 定时导出周期；0表示关闭定时导出
	ExportInterval time.Duration `mapstructure:"export_interval"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	SQLite SQLiteConfig `mapstructure:"sqlite"`
}

// SQLiteConfig SQLite配置
type SQLiteConfig struct {
	Path            string        `mapstructure:"path"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// StorageConfig 健康报告对象存储配置
type StorageConfig struct {
	// Backend 导出后端：local | minio | both
	Backend string      `mapstructure:"backend"`
	Minio   MinioConfig `mapstructure:"minio"`
}

// MinioConfig 对象存储配置
type MinioConfig struct {
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	Prefix    string `mapstructure:"prefix"`
	Secure    bool   `mapstructure:"secure"`
}

// CacheConfig Redis缓存配置（Host为空表示不启用）
type CacheConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

var globalConfig *Config

// Load 加载配置文件
func Load(configPath string) (*Config, error) {
	viper.SetConfigType("yaml")

	// 设置默认值
	setDefaults()

	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		// 默认配置文件路径
		viper.SetConfigName("config")
		viper.AddConfigPath("./configs")
		viper.AddConfigPath("../configs")
		viper.AddConfigPath("../../configs")
	}

	// 设置环境变量前缀
	viper.SetEnvPrefix("INFRA_ROUTER")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// 读取配置文件
	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// 环境变量替换（${VAR}形式）
	config.Classifier.APIKey = expandEnv(config.Classifier.APIKey)
	config.Storage.Minio.AccessKey = expandEnv(config.Storage.Minio.AccessKey)
	config.Storage.Minio.SecretKey = expandEnv(config.Storage.Minio.SecretKey)
	config.Cache.Password = expandEnv(config.Cache.Password)

	// 兼容旧键名：inventory.path -> inventory.testbed_path
	if strings.TrimSpace(config.Inventory.TestbedPath) == "" {
		if viper.IsSet("inventory.path") {
			p := strings.TrimSpace(viper.GetString("inventory.path"))
			if p != "" {
				config.Inventory.TestbedPath = p
			}
		}
	}

	globalConfig = &config
	return &config, nil
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.mode", "release")
	viper.SetDefault("server.read_timeout", 30*time.Second)
	viper.SetDefault("server.write_timeout", 30*time.Second)

	// 设备清单默认路径
	viper.SetDefault("inventory.testbed_path", "configs/testbed.yaml")
	viper.SetDefault("inventory.vendor_tag_path", "configs/vendor_tags.yaml")
	viper.SetDefault("inventory.watch_enable", true)

	// 分类器默认：低温度稳定输出，超时后立刻走关键字回退
	viper.SetDefault("classifier.temperature", 0.3)
	viper.SetDefault("classifier.max_tokens", 200)
	viper.SetDefault("classifier.timeout", 10*time.Second)
	viper.SetDefault("classifier.cache_ttl", 5*time.Minute)

	// 遥测默认阈值
	viper.SetDefault("telemetry.retention_seconds", 3600)
	viper.SetDefault("telemetry.failure_rate_threshold", 0.3)
	viper.SetDefault("telemetry.consecutive_failures", 5)
	viper.SetDefault("telemetry.regression_devices", 3)
	viper.SetDefault("telemetry.export_path", "./data/metrics/health_report.json")
	viper.SetDefault("telemetry.export_interval", time.Duration(0))

	viper.SetDefault("database.sqlite.path", "./data/router.db")
	viper.SetDefault("database.sqlite.max_idle_conns", 1)
	viper.SetDefault("database.sqlite.max_open_conns", 1)
	viper.SetDefault("database.sqlite.conn_max_lifetime", time.Hour)

	// 导出后端默认仅本地文件
	viper.SetDefault("storage.backend", "local")
	viper.SetDefault("storage.minio.prefix", "health-reports")

	// 默认日志级别 info（可通过 log.level 覆盖为 debug/warn/error 等）
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "text")
	viper.SetDefault("log.output", "console")
}

// Get 获取全局配置
func Get() *Config {
	return globalConfig
}

// expandEnv 替换 ${VAR} 形式的环境变量引用
func expandEnv(val string) string {
	if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
		envVar := strings.TrimSuffix(strings.TrimPrefix(val, "${"), "}")
		if v := os.Getenv(envVar); v != "" {
			return v
		}
	}
	return val
}

// GetServerAddr 获取服务器地址
func (c *Config) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
