package router

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/infraroutepro/infraroutepro/internal/classifier"
	"github.com/infraroutepro/infraroutepro/internal/config"
	"github.com/infraroutepro/infraroutepro/internal/registry"
	"github.com/infraroutepro/infraroutepro/internal/service"
	"github.com/infraroutepro/infraroutepro/internal/telemetry"
)

const routerTestbed = `
devices:
  R1:
    platform: iosxe
    os: iosxe
    type: router
    connections:
      cli:
        ip: 10.0.0.1
  FW1:
    platform: vsrx
    os: junos
    type: firewall
    connections:
      cli:
        ip: 10.0.2.1
`

// newTestServer 组装不依赖外部后端的完整HTTP栈：
// 无LLM（关键字回退）、无Redis、无MinIO、数据库未初始化（审计写入降级为日志）
func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	dir := t.TempDir()
	testbedPath := filepath.Join(dir, "testbed.yaml")
	require.NoError(t, os.WriteFile(testbedPath, []byte(routerTestbed), 0644))

	cfg := &config.Config{}
	cfg.Storage.Backend = "local"
	cfg.Telemetry.ExportPath = filepath.Join(dir, "health_report.json")

	reg := registry.New(testbedPath, "")
	cls := classifier.New(nil, 0.3, 200, time.Second)
	engine := telemetry.NewEngine(time.Hour, telemetry.DefaultThresholds())

	routingService := service.NewRoutingService(cfg, reg, cls, engine)
	exporterService := service.NewExporterService(cfg, engine)

	server := httptest.NewServer(SetupRouter(routingService, exporterService))
	t.Cleanup(server.Close)
	return server
}

func postJSON(t *testing.T, url string, body interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	var decoded map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

func getJSON(t *testing.T, url string) (*http.Response, map[string]interface{}) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	var decoded map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

// TestRouteEndpoint 完整路由链路：分类→设备解析→栈推荐
func TestRouteEndpoint(t *testing.T) {
	server := newTestServer(t)

	resp, body := postJSON(t, server.URL+"/api/v1/route", map[string]string{
		"text": "show interface status on R1",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
	assert.Equal(t, "OK", body["code"])

	data := body["data"].(map[string]interface{})
	assert.NotEmpty(t, data["request_id"])

	classification := data["classification"].(map[string]interface{})
	assert.Equal(t, "NETWORK_DEVICE", classification["intent"])
	assert.Equal(t, "keywords", classification["method"])

	routing := data["routing"].(map[string]interface{})
	devices := routing["devices"].([]interface{})
	require.Len(t, devices, 1)
	assert.Equal(t, "R1", devices[0])
	assert.Equal(t, "cisco", routing["vendor"])
	assert.Equal(t, "pyats", data["stack"])
}

// TestRouteEndpointValidation 空文本与缺字段均返回400
func TestRouteEndpointValidation(t *testing.T) {
	server := newTestServer(t)

	resp, body := postJSON(t, server.URL+"/api/v1/route", map[string]string{"text": "   "})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "MISSING_TEXT", body["code"])

	resp, body = postJSON(t, server.URL+"/api/v1/route", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "INVALID_PARAMS", body["code"])
}

// TestClassifyEndpoint 非设备意图不做路由解析
func TestClassifyEndpoint(t *testing.T) {
	server := newTestServer(t)

	resp, body := postJSON(t, server.URL+"/api/v1/classify", map[string]string{
		"text": "create ticket for the incident",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	data := body["data"].(map[string]interface{})
	assert.Equal(t, "SERVICENOW", data["intent"])
}

// TestTelemetryEndpoints 上报执行→健康报告→重置
func TestTelemetryEndpoints(t *testing.T) {
	server := newTestServer(t)

	for i := 0; i < 5; i++ {
		resp, body := postJSON(t, server.URL+"/api/v1/telemetry/executions", map[string]interface{}{
			"device":      "R1",
			"command":     "show version",
			"status":      "failure",
			"duration_ms": 120,
		})
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		if i == 4 {
			data := body["data"].(map[string]interface{})
			alerts := data["alerts"].([]interface{})
			require.NotEmpty(t, alerts, "第5次连续失败应返回告警")
			assert.Contains(t, alerts[0], "CONSECUTIVE FAILURES")
		}
	}

	// 健康报告直接返回快照，不包外层envelope
	resp, body := getJSON(t, server.URL+"/api/v1/telemetry/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, body["timestamp"])
	devices := body["devices"].(map[string]interface{})
	r1 := devices["R1"].(map[string]interface{})
	assert.Equal(t, "critical", r1["status"])
	assert.Equal(t, float64(5), r1["total"])

	resp, _ = postJSON(t, server.URL+"/api/v1/telemetry/reset", map[string]string{})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	_, body = getJSON(t, server.URL+"/api/v1/telemetry/health")
	assert.Empty(t, body["devices"])
}

// TestDeviceEndpoints 设备清单查询
func TestDeviceEndpoints(t *testing.T) {
	server := newTestServer(t)

	resp, body := getJSON(t, server.URL+"/api/v1/devices")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	data := body["data"].(map[string]interface{})
	assert.Equal(t, float64(2), data["count"])

	resp, body = getJSON(t, server.URL+"/api/v1/devices/R1")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	data = body["data"].(map[string]interface{})
	device := data["device"].(map[string]interface{})
	assert.Equal(t, "cisco", device["vendor"])
	assert.Equal(t, "pyats", data["stack"])

	resp, body = getJSON(t, server.URL+"/api/v1/devices/NOPE")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "DEVICE_NOT_FOUND", body["code"])

	resp, body = postJSON(t, server.URL+"/api/v1/devices/categorize", map[string]interface{}{
		"devices": []string{"R1", "FW1"},
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	groups := body["data"].(map[string]interface{})
	assert.Len(t, groups["pyats"], 1)
	assert.Len(t, groups["ansible"], 1)
}

// TestHealthEndpoint 数据库未初始化时健康检查仍返回200并如实上报
func TestHealthEndpoint(t *testing.T) {
	server := newTestServer(t)

	resp, body := getJSON(t, server.URL+"/api/v1/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "running", body["status"])
	assert.Contains(t, body["database"], "not initialized")
	assert.Equal(t, float64(2), body["devices"])
}
