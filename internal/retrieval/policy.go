package retrieval

import (
	"knowledge-bot-go/internal/model"
	"regexp"
	"strings"
)

// Tier 标识上下文使用策略中命中的层级。
type Tier int

const (
	// TierNone 表示文档库为空，没有进入任何层级。
	TierNone Tier = iota
	// TierExplicitReference 问题明确提到了文档或邮件，强制使用全部文档（阈值 0）。
	TierExplicitReference
	// TierStrongMatch 至少两个关键词命中。
	TierStrongMatch
	// TierGeneralKnowledge 一般性知识问题，不使用上下文。
	TierGeneralKnowledge
	// TierFallback 至少一个关键词命中时使用上下文。
	TierFallback
)

func (t Tier) String() string {
	switch t {
	case TierExplicitReference:
		return "explicit_reference"
	case TierStrongMatch:
		return "strong_match"
	case TierGeneralKnowledge:
		return "general_knowledge"
	case TierFallback:
		return "fallback"
	default:
		return "none"
	}
}

// 各层级的阈值
const (
	explicitThreshold = 0
	strongThreshold   = 2
	fallbackThreshold = 1
)

// patternRule 把一条正则绑定到它触发的层级。
type patternRule struct {
	tier    Tier
	pattern *regexp.Regexp
}

// patternRules 是按层级声明的问题模式表，匹配对象是小写后的问题。
var patternRules = []patternRule{
	{TierExplicitReference, regexp.MustCompile(`\b(our|my|the company|this document|according to|email|message)\b`)},
	{TierExplicitReference, regexp.MustCompile(`\b(report|file|document|presentation|email)\b`)},
	{TierExplicitReference, regexp.MustCompile(`\b(uploaded|provided|attached|sent)\b`)},
	{TierGeneralKnowledge, regexp.MustCompile(`\b(what is|define|explain|how to|tell me about)\b`)},
	{TierGeneralKnowledge, regexp.MustCompile(`\b(general|generally|typical|usually|common)\b`)},
}

// MatchesTier 判断问题是否命中指定层级的任意一条模式。
func MatchesTier(question string, tier Tier) bool {
	lower := strings.ToLower(question)
	for _, rule := range patternRules {
		if rule.tier == tier && rule.pattern.MatchString(lower) {
			return true
		}
	}
	return false
}

// Decision 是上下文使用策略的结果。
type Decision struct {
	UseContext bool
	Documents  []model.Document
	Tier       Tier
}

// Decide 按层级（先命中者生效）决定是否把检索到的文档作为上下文：
//  1. 问题明确提到文档/邮件：阈值 0，全部文档都算命中；
//  2. 阈值 2 有命中：使用这些文档；
//  3. 一般性知识问题：不使用上下文；
//  4. 否则阈值 1，有命中才使用。
func Decide(question string, docs []model.Document) Decision {
	if len(docs) == 0 {
		return Decision{Tier: TierNone}
	}

	if MatchesTier(question, TierExplicitReference) {
		return Decision{UseContext: true, Documents: Rank(question, docs, explicitThreshold), Tier: TierExplicitReference}
	}

	if strong := Rank(question, docs, strongThreshold); len(strong) > 0 {
		return Decision{UseContext: true, Documents: strong, Tier: TierStrongMatch}
	}

	if MatchesTier(question, TierGeneralKnowledge) {
		return Decision{Tier: TierGeneralKnowledge}
	}

	fallback := Rank(question, docs, fallbackThreshold)
	return Decision{UseContext: len(fallback) > 0, Documents: fallback, Tier: TierFallback}
}
