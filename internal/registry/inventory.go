package registry

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/infraroutepro/infraroutepro/internal/util"
	"github.com/infraroutepro/infraroutepro/pkg/logger"
)

// testbedDoc 设备清单文档结构（testbed.yaml）
type testbedDoc struct {
	Devices map[string]DeviceConfig `yaml:"devices"`
}

// DeviceConfig 单台设备的清单条目
type DeviceConfig struct {
	Platform    string                      `yaml:"platform"`
	OS          string                      `yaml:"os"`
	Type        string                      `yaml:"type"`
	Alias       string                      `yaml:"alias"`
	Connections map[string]ConnectionConfig `yaml:"connections"`
}

// ConnectionConfig 连接块（仅取管理IP）
type ConnectionConfig struct {
	IP string `yaml:"ip"`
}

// ManagementIP 取 cli 连接块的管理IP；缺失时返回 "unknown"
func (c DeviceConfig) ManagementIP() string {
	if cli, ok := c.Connections["cli"]; ok && cli.IP != "" {
		return cli.IP
	}
	return "unknown"
}

// vendorTagDoc 厂商-自动化栈映射文档结构（vendor_tags.yaml）
type vendorTagDoc struct {
	Stacks map[string]stackEntry `yaml:"stacks"`
}

type stackEntry struct {
	Vendors []string `yaml:"vendors"`
}

// defaultVendorStackMap 内置厂商→栈映射；override 文件按厂商覆盖
func defaultVendorStackMap() map[string]string {
	return map[string]string{
		"cisco":   "pyats",
		"linux":   "ansible",
		"windows": "ansible",
		"juniper": "ansible",
		"hpe":     "ansible",
		"meraki":  "ansible",
		"azure":   "ansible",
	}
}

// loadVendorStackMap 加载厂商→栈映射；任何加载失败都回退默认映射（软失败）
func loadVendorStackMap(path string) map[string]string {
	stackMap := defaultVendorStackMap()

	if strings.TrimSpace(path) == "" {
		return stackMap
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		logger.Warn("Vendor tag file not found, using defaults", "path", path, "error", err)
		return stackMap
	}

	var doc vendorTagDoc
	if err := yaml.Unmarshal(util.EnsureUTF8Bytes(raw), &doc); err != nil {
		logger.Error("Failed to parse vendor tag file, using defaults", "path", path, "error", err)
		return stackMap
	}

	for stackName, entry := range doc.Stacks {
		for _, vendor := range entry.Vendors {
			key := strings.ToLower(strings.TrimSpace(vendor))
			if key != "" {
				stackMap[key] = stackName
			}
		}
	}

	return stackMap
}

// loadTestbed 读取并解析设备清单文件
func loadTestbed(path string) (map[string]DeviceConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var doc testbedDoc
	if err := yaml.Unmarshal(util.EnsureUTF8Bytes(raw), &doc); err != nil {
		return nil, fmt.Errorf("failed to parse testbed: %w", err)
	}
	if len(doc.Devices) == 0 {
		return nil, fmt.Errorf("no devices found in testbed %s", path)
	}
	return doc.Devices, nil
}
