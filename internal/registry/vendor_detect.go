package registry

import "strings"

// vendorRule 厂商识别规则：platform 或 os 命中任一关键字即判定为该厂商。
// 规则按顺序求值，先命中者生效（优先级表，不是并行匹配）。
type vendorRule struct {
	vendor       string
	platformKeys []string
	osKeys       []string
}

var vendorRules = []vendorRule{
	{vendor: "juniper", platformKeys: []string{"junos", "juniper", "vsrx", "srx", "mx", "ex"}, osKeys: []string{"junos"}},
	{vendor: "cisco", platformKeys: []string{"ios", "iosxe", "iosxr", "csr", "nxos", "cisco"}, osKeys: []string{"ios", "iosxe"}},
	{vendor: "hpe", platformKeys: []string{"comware", "hpe", "hp"}, osKeys: []string{"comware"}},
	{vendor: "meraki", platformKeys: []string{"meraki"}, osKeys: []string{"meraki"}},
	{vendor: "linux", platformKeys: []string{"ubuntu", "linux", "debian", "centos", "rhel"}, osKeys: []string{"linux", "ubuntu", "debian", "centos", "rhel"}},
	// winrm 出现在 platform 字段时按连接类型视为 windows
	{vendor: "windows", platformKeys: []string{"windows", "winrm"}, osKeys: []string{"windows"}},
}

// nameRule 设备名兜底规则：platform/os 均未命中时按设备名推断
type nameRule struct {
	keys   []string
	vendor string
}

var nameRules = []nameRule{
	{keys: []string{"router", "switch"}, vendor: "cisco"},
	{keys: []string{"firewall", "srx"}, vendor: "juniper"},
	{keys: []string{"vm", "host"}, vendor: "linux"},
}

// keywordRule 自由文本厂商关键字规则（与 vendorRules 同序）
type keywordRule struct {
	keys   []string
	vendor string
}

var keywordRules = []keywordRule{
	{keys: []string{"junos", "juniper", "vsrx", "srx"}, vendor: "juniper"},
	{keys: []string{"cisco", "ios", "iosxe"}, vendor: "cisco"},
	{keys: []string{"comware", "hpe"}, vendor: "hpe"},
	{keys: []string{"meraki"}, vendor: "meraki"},
	{keys: []string{"linux", "ubuntu", "bash", "uname"}, vendor: "linux"},
	{keys: []string{"windows", "powershell"}, vendor: "windows"},
}

func containsAny(s string, keys []string) bool {
	for _, k := range keys {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}

// DetectVendor 按规则表识别厂商：platform/os 逐条匹配，未命中时按设备名兜底，
// 仍未命中返回 "unknown"
func DetectVendor(platform, osType, deviceName string) string {
	platform = strings.ToLower(platform)
	osType = strings.ToLower(osType)

	for _, rule := range vendorRules {
		if containsAny(platform, rule.platformKeys) || containsAny(osType, rule.osKeys) {
			return rule.vendor
		}
	}

	if deviceName != "" {
		name := strings.ToLower(deviceName)
		for _, rule := range nameRules {
			if containsAny(name, rule.keys) {
				return rule.vendor
			}
		}
	}

	return "unknown"
}

// VendorFromKeywords 从自由文本中按关键字识别厂商；未命中返回空串
func VendorFromKeywords(text string) string {
	lower := strings.ToLower(text)
	for _, rule := range keywordRules {
		if containsAny(lower, rule.keys) {
			return rule.vendor
		}
	}
	return ""
}
