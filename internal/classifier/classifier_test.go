package classifier

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/infraroutepro/infraroutepro/pkg/llm"
)

// fakeBackend 可编程模型后端
type fakeBackend struct {
	response string
	err      error
	calls    int
}

func (f *fakeBackend) Model() string { return "fake-model" }

func (f *fakeBackend) Complete(ctx context.Context, req llm.Request) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func newTestClassifier(backend Backend) *Classifier {
	return New(backend, 0.3, 200, 5*time.Second)
}

// TestClassifyWithLLM 模型返回合法JSON时走llm路径
func TestClassifyWithLLM(t *testing.T) {
	backend := &fakeBackend{
		response: `{"intent": "NETWORK_DEVICE", "confidence": 0.95, "reasoning": "device query"}`,
	}
	c := newTestClassifier(backend)

	result := c.Classify(context.Background(), "show interface status on R1")
	assert.Equal(t, IntentNetworkDevice, result.Intent)
	assert.Equal(t, 0.95, result.Confidence)
	assert.Equal(t, MethodLLM, result.Method)
	assert.Equal(t, "device query", result.Reasoning)
}

// TestClassifyInvalidIntentCoercedToOther 闭集外标签归为OTHER，不报错
func TestClassifyInvalidIntentCoercedToOther(t *testing.T) {
	backend := &fakeBackend{
		response: `{"intent": "BANANA", "confidence": 0.8, "reasoning": "??"}`,
	}
	c := newTestClassifier(backend)

	result := c.Classify(context.Background(), "whatever")
	assert.Equal(t, IntentOther, result.Intent)
	assert.Equal(t, MethodLLM, result.Method)
}

// TestClassifyMissingConfidenceDefaults 缺省置信度取0.5
func TestClassifyMissingConfidenceDefaults(t *testing.T) {
	backend := &fakeBackend{response: `{"intent": "SEARCH"}`}
	c := newTestClassifier(backend)

	result := c.Classify(context.Background(), "search for stuff")
	assert.Equal(t, IntentSearch, result.Intent)
	assert.Equal(t, 0.5, result.Confidence)
	assert.Equal(t, "LLM classification", result.Reasoning)
}

// TestClassifyBackendErrorFallsBack 后端异常时永远降级为关键字
func TestClassifyBackendErrorFallsBack(t *testing.T) {
	backend := &fakeBackend{err: fmt.Errorf("connection refused")}
	c := newTestClassifier(backend)

	for _, text := range []string{
		"show interface brief",
		"create ticket for outage",
		"what is bgp",
		"random gibberish",
	} {
		result := c.Classify(context.Background(), text)
		assert.Equal(t, MethodKeywords, result.Method, "后端不可用时method必须是keywords")
		assert.Contains(t, intentOrder, result.Intent, "结果必须落在闭集内")
	}
}

// TestClassifyBadJSONFallsBack 模型输出无法解析时降级
func TestClassifyBadJSONFallsBack(t *testing.T) {
	backend := &fakeBackend{response: "Sure! The intent is NETWORK_DEVICE."}
	c := newTestClassifier(backend)

	result := c.Classify(context.Background(), "show version on R1")
	assert.Equal(t, MethodKeywords, result.Method)
}

// TestClassifyNilBackend 未配置后端时直接走关键字
func TestClassifyNilBackend(t *testing.T) {
	c := newTestClassifier(nil)
	result := c.Classify(context.Background(), "explain vlan")
	assert.Equal(t, MethodKeywords, result.Method)
	assert.Equal(t, IntentKnowledge, result.Intent)
}

// TestKeywordClassificationDeterministic 相同输入必须得到相同结果
func TestKeywordClassificationDeterministic(t *testing.T) {
	text := "configure vlan 10 on the switch"
	first := classifyWithKeywords(text)
	for i := 0; i < 10; i++ {
		again := classifyWithKeywords(text)
		assert.Equal(t, first.Intent, again.Intent)
		assert.Equal(t, first.Confidence, again.Confidence)
	}
}

// TestKeywordScoring 关键字评分与置信度
func TestKeywordScoring(t *testing.T) {
	// "show interface"+"configure"+"device" 命中NETWORK_DEVICE
	result := classifyWithKeywords("configure the device and show interface status")
	assert.Equal(t, IntentNetworkDevice, result.Intent)
	assert.Greater(t, result.Confidence, 0.5)

	result = classifyWithKeywords("create ticket for the incident")
	assert.Equal(t, IntentServiceNow, result.Intent)

	result = classifyWithKeywords("terraform a storage account in azure")
	assert.Equal(t, IntentInfrastructure, result.Intent)

	result = classifyWithKeywords("search for network automation trends")
	assert.Equal(t, IntentSearch, result.Intent)
}

// TestKeywordNoMatch 无命中时OTHER且固定低置信度
func TestKeywordNoMatch(t *testing.T) {
	result := classifyWithKeywords("zzzzz qqqqq")
	assert.Equal(t, IntentOther, result.Intent)
	assert.Equal(t, 0.3, result.Confidence)
	assert.Equal(t, MethodKeywords, result.Method)
}

// TestParseIntent 意图闭集校验
func TestParseIntent(t *testing.T) {
	intent, ok := ParseIntent("network_device")
	assert.True(t, ok)
	assert.Equal(t, IntentNetworkDevice, intent)

	intent, ok = ParseIntent(" SERVICENOW ")
	assert.True(t, ok)
	assert.Equal(t, IntentServiceNow, intent)

	intent, ok = ParseIntent("nonsense")
	assert.False(t, ok)
	assert.Equal(t, IntentOther, intent)
}
