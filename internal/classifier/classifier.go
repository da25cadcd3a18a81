package classifier

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"github.com/infraroutepro/infraroutepro/pkg/cache"
	"github.com/infraroutepro/infraroutepro/pkg/llm"
	"github.com/infraroutepro/infraroutepro/pkg/logger"
)

// 分类方法来源标记：调用方据此区分降级模式
const (
	MethodLLM      = "llm"
	MethodKeywords = "keywords"
)

// systemPrompt 意图分类系统提示词，要求模型仅输出JSON
const systemPrompt = `You are an expert at classifying user requests for a network automation platform.

Your task is to classify requests into ONE of these categories:
- KNOWLEDGE: User asking for definitions, explanations, or general information (e.g., "What is network automation?", "Explain VLAN", "How does routing work?")
- NETWORK_DEVICE: User wants to query or configure actual network devices (e.g., "Show interface status on R1", "Configure VLAN 10", "Check BGP neighbors")
- INFRASTRUCTURE: User wants to create/manage cloud infrastructure (e.g., "Create Azure VM", "Deploy firewall", "Create VNet", "Set up storage account")
- SERVICENOW: User wants to create/manage tickets or incidents (e.g., "Create a ticket", "Check incident status", "Log a problem")
- SEARCH: User wants a general web search (e.g., "Search for network trends", "Find latest Azure features")
- OTHER: Request doesn't fit above categories

Always respond in JSON format with ONLY these fields:
{
  "intent": "INTENT_HERE",
  "confidence": 0.95,
  "reasoning": "Brief explanation of why this intent was chosen"
}

Do not include any text outside the JSON.`

// Result 单次分类结果
type Result struct {
	Intent     Intent  `json:"intent"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
	Method     string  `json:"method"`
}

// Backend 模型后端契约：注入式，分类器不与任何具体供应商耦合
type Backend interface {
	Model() string
	Complete(ctx context.Context, req llm.Request) (string, error)
}

// Classifier 两段式意图分类器：优先模型分类，失败降级关键字匹配
type Classifier struct {
	backend     Backend
	temperature float64
	maxTokens   int
	timeout     time.Duration
	cacheTTL    time.Duration
}

// Option 分类器可选项
type Option func(*Classifier)

// WithCacheTTL 设置分类结果缓存时长
func WithCacheTTL(ttl time.Duration) Option {
	return func(c *Classifier) { c.cacheTTL = ttl }
}

// New 创建分类器。backend 可为 nil：此时所有请求直接走关键字回退。
func New(backend Backend, temperature float64, maxTokens int, timeout time.Duration, opts ...Option) *Classifier {
	c := &Classifier{
		backend:     backend,
		temperature: temperature,
		maxTokens:   maxTokens,
		timeout:     timeout,
	}
	if c.timeout <= 0 {
		c.timeout = 10 * time.Second
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify 对自由文本做意图分类。永不返回错误：模型侧任何异常
// （网络、超时、JSON解析、未知标签）都会收敛到关键字回退结果。
func (c *Classifier) Classify(ctx context.Context, text string) Result {
	if c.backend == nil {
		logger.Warn("No LLM backend configured, falling back to keyword matching")
		return classifyWithKeywords(text)
	}

	if result, ok := c.cachedResult(ctx, text); ok {
		return result
	}

	result, err := c.classifyWithLLM(ctx, text)
	if err != nil {
		logger.Error("LLM classification failed, falling back to keywords", "error", err)
		return classifyWithKeywords(text)
	}

	c.storeResult(ctx, text, result)
	return result
}

// llmPayload 模型返回的JSON负载；confidence 用指针区分缺省与显式0
type llmPayload struct {
	Intent     string   `json:"intent"`
	Confidence *float64 `json:"confidence"`
	Reasoning  string   `json:"reasoning"`
}

func (c *Classifier) classifyWithLLM(ctx context.Context, text string) (Result, error) {
	// 超时独立于调用方：到期即降级，绝不悬挂调用方
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	logger.Debug("Classifying with LLM", "model", c.backend.Model(), "text", text)

	raw, err := c.backend.Complete(ctx, llm.Request{
		SystemPrompt: systemPrompt,
		UserText:     text,
		Temperature:  c.temperature,
		MaxTokens:    c.maxTokens,
	})
	if err != nil {
		return Result{}, err
	}

	var payload llmPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		logger.Warn("Failed to parse LLM JSON response", "raw", raw)
		return Result{}, err
	}

	intent, known := ParseIntent(payload.Intent)
	if !known {
		logger.Warn("LLM returned invalid intent, defaulting to OTHER", "intent", payload.Intent)
	}

	confidence := 0.5
	if payload.Confidence != nil {
		confidence = *payload.Confidence
	}
	reasoning := payload.Reasoning
	if reasoning == "" {
		reasoning = "LLM classification"
	}

	logger.Info("Classification", "intent", string(intent), "confidence", confidence, "method", MethodLLM)

	return Result{
		Intent:     intent,
		Confidence: confidence,
		Reasoning:  reasoning,
		Method:     MethodLLM,
	}, nil
}

func cacheKey(text string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(text))))
	return "classify:" + hex.EncodeToString(sum[:8])
}

func (c *Classifier) cachedResult(ctx context.Context, text string) (Result, bool) {
	if c.cacheTTL <= 0 || !cache.Enabled() {
		return Result{}, false
	}
	var result Result
	if err := cache.Get(ctx, cacheKey(text), &result); err != nil {
		return Result{}, false
	}
	logger.Debug("Classification cache hit", "intent", string(result.Intent))
	return result, true
}

func (c *Classifier) storeResult(ctx context.Context, text string, result Result) {
	if c.cacheTTL <= 0 || !cache.Enabled() {
		return
	}
	if err := cache.Set(ctx, cacheKey(text), result, c.cacheTTL); err != nil {
		logger.Debug("Classification cache store failed", "error", err)
	}
}
