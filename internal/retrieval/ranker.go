// Package retrieval 实现了关键词排序、上下文使用策略以及可替换的检索后端。
package retrieval

import (
	"knowledge-bot-go/internal/model"
	"sort"
	"strings"
	"unicode/utf8"
)

// MaxResults 是一次排序最多返回的文档数。
const MaxResults = 3

// stopWords 中的词不参与相关性打分。
var stopWords = map[string]struct{}{
	"what": {}, "how": {}, "where": {}, "when": {}, "why": {}, "who": {},
	"is": {}, "are": {}, "the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "but": {},
	"was": {}, "were": {},
	"in": {}, "on": {}, "at": {}, "to": {}, "for": {}, "of": {}, "with": {}, "by": {}, "about": {},
	"can": {}, "could": {}, "should": {}, "would": {}, "do": {}, "does": {}, "did": {},
}

// Keywords 将问题按空白切分、转小写、去掉结尾标点，
// 再过滤掉长度不超过 2 的词和停用词。重复的词会保留。
func Keywords(question string) []string {
	fields := strings.Fields(question)
	keywords := make([]string, 0, len(fields))
	for _, f := range fields {
		word := strings.TrimRight(strings.ToLower(f), ".,!?")
		if utf8.RuneCountInString(word) <= 2 {
			continue
		}
		if _, stop := stopWords[word]; stop {
			continue
		}
		keywords = append(keywords, word)
	}
	return keywords
}

// Score 统计出现在 content 中的关键词个数。
// 匹配是子串匹配而非按词边界，例如 "cat" 也会命中 "category"。
func Score(keywords []string, content string) int {
	lower := strings.ToLower(content)
	score := 0
	for _, k := range keywords {
		if strings.Contains(lower, k) {
			score++
		}
	}
	return score
}

// RankedResult 是单次排序过程中的文档及其得分。
type RankedResult struct {
	Document model.Document
	Score    int
}

// RankScored 返回得分不低于 threshold 的文档（附带得分），按得分降序，
// 同分保持原有插入顺序，最多 MaxResults 条。threshold 为 0 时所有文档都算命中。
func RankScored(question string, docs []model.Document, threshold int) []RankedResult {
	if len(docs) == 0 {
		return nil
	}
	keywords := Keywords(question)
	results := make([]RankedResult, 0, len(docs))
	for _, doc := range docs {
		s := Score(keywords, doc.Content)
		if s >= threshold {
			results = append(results, RankedResult{Document: doc, Score: s})
		}
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > MaxResults {
		results = results[:MaxResults]
	}
	return results
}

// Rank 与 RankScored 相同，但只返回文档。
func Rank(question string, docs []model.Document, threshold int) []model.Document {
	ranked := RankScored(question, docs, threshold)
	if len(ranked) == 0 {
		return nil
	}
	out := make([]model.Document, len(ranked))
	for i, r := range ranked {
		out[i] = r.Document
	}
	return out
}
