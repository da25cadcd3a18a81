package classifier

import "strings"

// Intent 请求意图（闭集）
type Intent string

const (
	IntentKnowledge      Intent = "KNOWLEDGE"
	IntentNetworkDevice  Intent = "NETWORK_DEVICE"
	IntentInfrastructure Intent = "INFRASTRUCTURE"
	IntentServiceNow     Intent = "SERVICENOW"
	IntentSearch         Intent = "SEARCH"
	IntentOther          Intent = "OTHER"
)

// intentOrder 意图枚举顺序；关键字评分平局时顺序靠前者胜出
var intentOrder = []Intent{
	IntentKnowledge,
	IntentNetworkDevice,
	IntentInfrastructure,
	IntentServiceNow,
	IntentSearch,
	IntentOther,
}

// ParseIntent 校验意图字符串；不在闭集内时返回 OTHER 与 false
func ParseIntent(s string) (Intent, bool) {
	intent := Intent(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range intentOrder {
		if intent == known {
			return intent, true
		}
	}
	return IntentOther, false
}

// keywordPatterns 关键字回退评分表：每个意图对应一组字面短语，
// 文本中每命中一个短语计1分
var keywordPatterns = map[Intent][]string{
	IntentInfrastructure: {
		"create vm", "create vnet", "create subnet", "create firewall",
		"create azure", "deploy vm", "terraform", "infrastructure",
		"storage account", "app gateway", "resource group",
	},
	IntentNetworkDevice: {
		"show interface", "show version", "configure", "cisco",
		"router", "switch", "device", "testbed", "pyats",
		"r1", "r2", "sw1", "sw2", "vlan", "acl", "bgp",
	},
	IntentServiceNow: {
		"create ticket", "incident", "problem", "ticket",
		"create problem", "create incident",
	},
	IntentKnowledge: {
		"what is", "explain", "tell me about", "how does",
		"definition of", "describe", "what are", "information about",
	},
	IntentSearch: {
		"search for", "find", "look up", "research",
	},
}

// classifyWithKeywords 确定性关键字分类：最高分意图胜出，
// 置信度为该意图得分占总分比例；无任何命中时返回 OTHER @ 0.3
func classifyWithKeywords(text string) Result {
	lower := strings.ToLower(text)

	scores := make(map[Intent]int, len(intentOrder))
	total := 0
	for intent, keywords := range keywordPatterns {
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				scores[intent]++
				total++
			}
		}
	}

	best := IntentOther
	bestScore := 0
	for _, intent := range intentOrder {
		if scores[intent] > bestScore {
			best = intent
			bestScore = scores[intent]
		}
	}

	confidence := 0.3
	if bestScore > 0 {
		confidence = float64(bestScore) / float64(total)
	} else {
		best = IntentOther
	}

	return Result{
		Intent:     best,
		Confidence: confidence,
		Reasoning:  "Keyword match: " + string(best),
		Method:     MethodKeywords,
	}
}
