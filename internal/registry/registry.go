package registry

import (
	"sort"
	"strings"
	"sync"

	"github.com/infraroutepro/infraroutepro/pkg/logger"
)

// defaultStack 未识别厂商的兜底自动化栈
const defaultStack = "pyats"

// Device 注册后的设备元数据（加载后只读）
type Device struct {
	Name     string `json:"name"`
	Vendor   string `json:"vendor"`
	Platform string `json:"platform"`
	OS       string `json:"os"`
	Type     string `json:"type"`
	Alias    string `json:"alias"`
	IP       string `json:"ip"`
}

// snapshot 一次加载构建的完整索引。重载时整体重建后原子换入，
// 读取方永远看到一致的索引，不会观察到半成品。
type snapshot struct {
	devices          map[string]*Device
	deviceOrder      []string
	vendorToDevices  map[string][]string
	platformToVendor map[string]string
	vendorStackMap   map[string]string
}

// Registry 设备注册表：厂商识别与自动化栈路由的入口
type Registry struct {
	testbedPath   string
	vendorTagPath string

	mu   sync.RWMutex
	snap *snapshot
}

// New 创建注册表并立即加载清单。清单缺失不报错：注册表保持为空，
// 下游查询走 unknown/pyats 兜底（故障打开，路由层不因一个文件缺失而瘫痪）。
func New(testbedPath, vendorTagPath string) *Registry {
	r := &Registry{
		testbedPath:   testbedPath,
		vendorTagPath: vendorTagPath,
	}
	r.snap = buildSnapshot(testbedPath, vendorTagPath)
	return r
}

// Reload 重新加载清单并原子换入新索引
func (r *Registry) Reload() {
	snap := buildSnapshot(r.testbedPath, r.vendorTagPath)

	r.mu.Lock()
	r.snap = snap
	r.mu.Unlock()

	logger.Info("Device registry reloaded", "devices", len(snap.devices))
}

func (r *Registry) snapshot() *snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snap
}

// buildSnapshot 构建完整索引：加载栈映射与设备清单并逐台注册
func buildSnapshot(testbedPath, vendorTagPath string) *snapshot {
	snap := &snapshot{
		devices:          make(map[string]*Device),
		vendorToDevices:  make(map[string][]string),
		platformToVendor: make(map[string]string),
		vendorStackMap:   loadVendorStackMap(vendorTagPath),
	}

	configs, err := loadTestbed(testbedPath)
	if err != nil {
		logger.Error("Failed to load testbed, registry left empty", "path", testbedPath, "error", err)
		return snap
	}

	for name, cfg := range configs {
		snap.register(name, cfg)
	}
	// map遍历顺序不稳定，按名称排一次序保证文本抽取结果可复现
	sort.Strings(snap.deviceOrder)

	logger.Info("Loaded devices from testbed", "count", len(snap.devices), "path", testbedPath)
	return snap
}

// register 注册单台设备并维护厂商/平台索引
func (s *snapshot) register(name string, cfg DeviceConfig) {
	platform := strings.ToLower(orUnknown(cfg.Platform))
	osType := strings.ToLower(orUnknown(cfg.OS))

	vendor := DetectVendor(platform, osType, name)

	s.devices[name] = &Device{
		Name:     name,
		Vendor:   vendor,
		Platform: platform,
		OS:       osType,
		Type:     orUnknown(cfg.Type),
		Alias:    cfg.Alias,
		IP:       cfg.ManagementIP(),
	}
	s.deviceOrder = append(s.deviceOrder, name)

	s.vendorToDevices[vendor] = append(s.vendorToDevices[vendor], name)

	// 平台索引首次出现者生效，后续同平台设备不覆盖
	if _, ok := s.platformToVendor[platform]; !ok {
		s.platformToVendor[platform] = vendor
	}

	logger.Debug("Registered device", "device", name, "vendor", vendor, "platform", platform, "os", osType)
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return "unknown"
	}
	return s
}

// DeviceCount 已注册设备数量
func (r *Registry) DeviceCount() int {
	return len(r.snapshot().devices)
}

// DeviceInfo 查询单台设备元数据
func (r *Registry) DeviceInfo(name string) (*Device, bool) {
	d, ok := r.snapshot().devices[name]
	return d, ok
}

// DeviceVendor 查询设备厂商；未注册设备返回空串
func (r *Registry) DeviceVendor(name string) string {
	if d, ok := r.snapshot().devices[name]; ok {
		return d.Vendor
	}
	return ""
}

// DevicesByVendor 按厂商列出设备
func (r *Registry) DevicesByVendor(vendor string) []string {
	return r.snapshot().vendorToDevices[strings.ToLower(vendor)]
}

// Devices 列出全部设备（按名称序）
func (r *Registry) Devices() []*Device {
	snap := r.snapshot()
	out := make([]*Device, 0, len(snap.deviceOrder))
	for _, name := range snap.deviceOrder {
		out = append(out, snap.devices[name])
	}
	return out
}

// Summary 厂商→设备名汇总
func (r *Registry) Summary() map[string][]string {
	snap := r.snapshot()
	out := make(map[string][]string, len(snap.vendorToDevices))
	for vendor, devices := range snap.vendorToDevices {
		out[vendor] = append([]string(nil), devices...)
	}
	return out
}

// StackForVendor 厂商→自动化栈。全函数：空串与未识别厂商一律返回默认栈
func (r *Registry) StackForVendor(vendor string) string {
	if strings.TrimSpace(vendor) == "" {
		return defaultStack
	}
	if stack, ok := r.snapshot().vendorStackMap[strings.ToLower(vendor)]; ok {
		return stack
	}
	return defaultStack
}

// StackForDevice 设备→自动化栈（经厂商映射）
func (r *Registry) StackForDevice(name string) string {
	return r.StackForVendor(r.DeviceVendor(name))
}

// CategorizeByStack 将设备列表按自动化栈分组。空名称直接丢弃；
// 未注册设备仍会经兜底栈归组，分组并集等于去重后的输入。
func (r *Registry) CategorizeByStack(deviceNames []string) map[string][]string {
	categorized := make(map[string][]string)
	for _, name := range deviceNames {
		if name == "" {
			continue
		}
		stack := r.StackForDevice(name)
		categorized[stack] = append(categorized[stack], name)
	}
	return categorized
}

// ExtractDevicesFromText 在文本中大小写不敏感地匹配已注册设备名，
// 结果按注册序去重返回
func (r *Registry) ExtractDevicesFromText(text string) []string {
	snap := r.snapshot()
	lower := strings.ToLower(text)

	var mentioned []string
	seen := make(map[string]bool)
	for _, name := range snap.deviceOrder {
		if seen[name] {
			continue
		}
		if strings.Contains(lower, strings.ToLower(name)) {
			mentioned = append(mentioned, name)
			seen[name] = true
		}
	}
	return mentioned
}

// RoutingDecision 路由决策结果
type RoutingDecision struct {
	Devices []string `json:"devices,omitempty"`
	Vendor  string   `json:"vendor,omitempty"`
	// Stacks 命中设备的栈分组；仅在 Devices 非空时填充
	Stacks map[string][]string `json:"stacks,omitempty"`
}

// ResolveRouting 自由文本→路由决策，调度层的唯一入口：
//  1. 文本中出现已注册设备名：返回设备列表，厂商取首个命中设备的厂商
//  2. 无设备但命中厂商关键字：仅返回厂商
//  3. 均未命中：空决策
func (r *Registry) ResolveRouting(text string) RoutingDecision {
	mentioned := r.ExtractDevicesFromText(text)

	if len(mentioned) > 0 {
		vendor := ""
		for _, dev := range mentioned {
			if v := r.DeviceVendor(dev); v != "" {
				vendor = v
				break
			}
		}
		logger.Info("Routing by explicit devices", "devices", strings.Join(mentioned, ","), "vendor", vendor)
		return RoutingDecision{
			Devices: mentioned,
			Vendor:  vendor,
			Stacks:  r.CategorizeByStack(mentioned),
		}
	}

	if vendor := VendorFromKeywords(text); vendor != "" {
		logger.Info("Routing by vendor keyword", "vendor", vendor)
		return RoutingDecision{Vendor: vendor}
	}

	logger.Info("No routing signal detected in text")
	return RoutingDecision{}
}
