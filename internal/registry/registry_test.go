package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTestbed = `
devices:
  R1:
    platform: iosxe
    os: iosxe
    type: router
    connections:
      cli:
        ip: 10.0.0.1
  R2:
    platform: iosxe
    os: iosxe
    type: router
    connections:
      cli:
        ip: 10.0.0.2
  FW1:
    platform: vsrx
    os: junos
    type: firewall
    connections:
      cli:
        ip: 10.0.2.1
  HOST1:
    platform: ubuntu
    os: linux
    type: server
    connections:
      cli:
        ip: 10.0.3.1
`

const testVendorTags = `
stacks:
  pyats:
    vendors:
      - cisco
  ansible:
    vendors:
      - juniper
      - linux
  netmiko:
    vendors:
      - hpe
`

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	return New(
		writeTempFile(t, "testbed.yaml", testTestbed),
		writeTempFile(t, "vendor_tags.yaml", testVendorTags),
	)
}

// TestLoadDevices 加载清单并建立索引
func TestLoadDevices(t *testing.T) {
	reg := newTestRegistry(t)

	assert.Equal(t, 4, reg.DeviceCount())

	r1, ok := reg.DeviceInfo("R1")
	require.True(t, ok)
	assert.Equal(t, "cisco", r1.Vendor)
	assert.Equal(t, "iosxe", r1.Platform)
	assert.Equal(t, "10.0.0.1", r1.IP)

	assert.Equal(t, "juniper", reg.DeviceVendor("FW1"))
	assert.Equal(t, "linux", reg.DeviceVendor("HOST1"))
	assert.Equal(t, "", reg.DeviceVendor("NOPE"))

	assert.ElementsMatch(t, []string{"R1", "R2"}, reg.DevicesByVendor("cisco"))
}

// TestMissingTestbedFailsOpen 清单缺失时注册表为空，下游查询走兜底
func TestMissingTestbedFailsOpen(t *testing.T) {
	reg := New("/nonexistent/testbed.yaml", "/nonexistent/vendor_tags.yaml")

	assert.Equal(t, 0, reg.DeviceCount())
	assert.Equal(t, "pyats", reg.StackForDevice("anything"))
	assert.Empty(t, reg.ExtractDevicesFromText("show version on R1"))

	decision := reg.ResolveRouting("do something unclear")
	assert.Empty(t, decision.Devices)
	assert.Equal(t, "", decision.Vendor)
}

// TestStackForVendor 全函数：任意输入都返回非空栈名
func TestStackForVendor(t *testing.T) {
	reg := newTestRegistry(t)

	assert.Equal(t, "pyats", reg.StackForVendor("cisco"))
	assert.Equal(t, "pyats", reg.StackForVendor("CISCO"), "厂商查询应大小写不敏感")
	assert.Equal(t, "ansible", reg.StackForVendor("juniper"))
	// override文件可以把厂商映射到新栈
	assert.Equal(t, "netmiko", reg.StackForVendor("hpe"))
	// 空串与未识别厂商走默认栈
	assert.Equal(t, "pyats", reg.StackForVendor(""))
	assert.Equal(t, "pyats", reg.StackForVendor("frobnicator"))
	// windows 未被override覆盖，保留内置默认
	assert.Equal(t, "ansible", reg.StackForVendor("windows"))
}

// TestVendorTagsMissingUsesDefaults 标签文件缺失回退内置映射
func TestVendorTagsMissingUsesDefaults(t *testing.T) {
	reg := New(writeTempFile(t, "testbed.yaml", testTestbed), "/nonexistent/tags.yaml")
	assert.Equal(t, "pyats", reg.StackForVendor("cisco"))
	assert.Equal(t, "ansible", reg.StackForVendor("juniper"))
}

// TestCategorizeByStack 分组构成划分：并集等于去空后的输入
func TestCategorizeByStack(t *testing.T) {
	reg := newTestRegistry(t)

	groups := reg.CategorizeByStack([]string{"R1", "FW1", "HOST1", "R2", "", "GHOST"})

	assert.ElementsMatch(t, []string{"R1", "R2", "GHOST"}, groups["pyats"], "未注册设备经兜底归入默认栈")
	assert.ElementsMatch(t, []string{"FW1", "HOST1"}, groups["ansible"])

	total := 0
	for _, devices := range groups {
		total += len(devices)
	}
	assert.Equal(t, 5, total, "空名称被丢弃，其余全部归组")
}

// TestExtractDevicesFromText 大小写不敏感匹配，去重
func TestExtractDevicesFromText(t *testing.T) {
	reg := newTestRegistry(t)

	devices := reg.ExtractDevicesFromText("compare r1 with FW1 and r1 again")
	assert.Equal(t, []string{"FW1", "R1"}, devices)

	assert.Empty(t, reg.ExtractDevicesFromText("nothing here"))
}

// TestResolveRoutingExplicitDevice 文本命中设备名时按设备路由
func TestResolveRoutingExplicitDevice(t *testing.T) {
	reg := newTestRegistry(t)

	decision := reg.ResolveRouting("show interfaces on R1")
	assert.Equal(t, []string{"R1"}, decision.Devices)
	assert.Equal(t, "cisco", decision.Vendor)
	assert.Equal(t, []string{"R1"}, decision.Stacks["pyats"])
}

// TestResolveRoutingVendorKeyword 无设备但命中厂商关键字
func TestResolveRoutingVendorKeyword(t *testing.T) {
	reg := newTestRegistry(t)

	decision := reg.ResolveRouting("check junos uptime")
	assert.Empty(t, decision.Devices)
	assert.Equal(t, "juniper", decision.Vendor)
}

// TestResolveRoutingNoSignal 均未命中返回空决策
func TestResolveRoutingNoSignal(t *testing.T) {
	reg := newTestRegistry(t)

	decision := reg.ResolveRouting("please do the thing")
	assert.Empty(t, decision.Devices)
	assert.Equal(t, "", decision.Vendor)
}

// TestReloadSwapsSnapshot 重载后读取到新索引
func TestReloadSwapsSnapshot(t *testing.T) {
	testbedPath := writeTempFile(t, "testbed.yaml", testTestbed)
	reg := New(testbedPath, "")
	assert.Equal(t, 4, reg.DeviceCount())

	smaller := `
devices:
  SW9:
    platform: nxos
    os: nxos
    type: switch
    connections:
      cli:
        ip: 10.9.9.9
`
	require.NoError(t, os.WriteFile(testbedPath, []byte(smaller), 0644))
	reg.Reload()

	assert.Equal(t, 1, reg.DeviceCount())
	assert.Equal(t, "cisco", reg.DeviceVendor("SW9"))
	assert.Equal(t, "", reg.DeviceVendor("R1"), "旧索引整体被替换")
}

// TestPlatformIndexFirstWins 平台索引首次出现者生效
func TestPlatformIndexFirstWins(t *testing.T) {
	reg := newTestRegistry(t)
	snap := reg.snapshot()
	assert.Equal(t, "cisco", snap.platformToVendor["iosxe"])
	assert.Equal(t, "juniper", snap.platformToVendor["vsrx"])
}
