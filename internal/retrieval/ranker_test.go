package retrieval

import (
	"fmt"
	"knowledge-bot-go/internal/model"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func doc(name, content string) model.Document {
	return model.Document{Filename: name, Content: content, FileType: model.FileTypeTxt, Size: int64(len(content))}
}

func filenames(docs []model.Document) []string {
	names := make([]string, len(docs))
	for i, d := range docs {
		names[i] = d.Filename
	}
	return names
}

func TestKeywords(t *testing.T) {
	tests := []struct {
		name     string
		question string
		want     []string
	}{
		{"stop words and short tokens dropped", "What was the revenue?", []string{"revenue"}},
		{"trailing punctuation stripped", "Budget, forecast! growth.", []string{"budget", "forecast", "growth"}},
		{"stop word with punctuation", "Who? is... it", []string{}},
		{"duplicates kept", "revenue revenue", []string{"revenue", "revenue"}},
		{"lowercased", "ACME Corp", []string{"acme", "corp"}},
		{"empty", "   ", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Keywords(tt.question))
		})
	}
}

func TestScoreIsSubstringMatch(t *testing.T) {
	assert.Equal(t, 1, Score([]string{"cat"}, "A Category of things"))
	assert.Equal(t, 2, Score([]string{"revenue", "acme"}, "ACME revenue grew"))
	assert.Equal(t, 0, Score(nil, "anything"))
}

func TestRankEmptyStore(t *testing.T) {
	for _, threshold := range []int{0, 1, 2, 10} {
		assert.Empty(t, Rank("anything at all", nil, threshold))
		assert.Empty(t, Rank("", []model.Document{}, threshold))
	}
}

func TestRankAtMostThreeResults(t *testing.T) {
	var docs []model.Document
	for i := 0; i < 10; i++ {
		docs = append(docs, doc(fmt.Sprintf("%d.txt", i), "revenue report"))
	}
	for _, threshold := range []int{0, 1, 2} {
		assert.LessOrEqual(t, len(Rank("revenue report", docs, threshold)), MaxResults)
	}
}

func TestRankThresholdZeroMatchesEverything(t *testing.T) {
	docs := []model.Document{doc("a.txt", "alpha"), doc("b.txt", "beta")}

	got := Rank("completely unrelated question", docs, 0)
	assert.Equal(t, []string{"a.txt", "b.txt"}, filenames(got))
}

func TestRankStableOnTies(t *testing.T) {
	docs := []model.Document{
		doc("first.txt", "budget"),
		doc("second.txt", "budget forecast"),
		doc("third.txt", "budget"),
		doc("fourth.txt", "budget"),
	}

	got := RankScored("budget forecast", docs, 1)
	require.Len(t, got, 3)
	assert.Equal(t, "second.txt", got[0].Document.Filename)
	assert.Equal(t, 2, got[0].Score)
	// 同分按插入顺序
	assert.Equal(t, "first.txt", got[1].Document.Filename)
	assert.Equal(t, "third.txt", got[2].Document.Filename)
}

func TestRankStopWordsNeverScore(t *testing.T) {
	docs := []model.Document{doc("a.txt", "what is the answer and how should we do it")}

	scored := RankScored("What is the and how should do?", docs, 0)
	require.Len(t, scored, 1)
	assert.Equal(t, 0, scored[0].Score)
	assert.Empty(t, Rank("What is the and how should do?", docs, 1))
}

func TestRankRevenueScenario(t *testing.T) {
	docs := []model.Document{doc("q1.txt", "Quarterly revenue report for Acme Corp increased 12%")}

	got := RankScored("What was the revenue?", docs, 1)
	require.Len(t, got, 1)
	assert.Equal(t, "q1.txt", got[0].Document.Filename)
	assert.Equal(t, 1, got[0].Score)
}

func TestRankOrdersByScore(t *testing.T) {
	docs := []model.Document{
		doc("low.txt", "pricing only"),
		doc("high.txt", "pricing strategy roadmap"),
	}

	got := RankScored("pricing strategy roadmap", docs, 1)
	require.Len(t, got, 2)
	assert.Equal(t, []int{3, 1}, []int{got[0].Score, got[1].Score})
	assert.Equal(t, []string{"high.txt", "low.txt"}, filenames(Rank("pricing strategy roadmap", docs, 1)))
}

func TestRankFavoursLongerDocuments(t *testing.T) {
	docs := []model.Document{
		doc("short.txt", "revenue"),
		doc("long.txt", "revenue margin churn pipeline and many other words"),
	}

	got := Rank("revenue margin churn", docs, 1)
	assert.Equal(t, []string{"long.txt", "short.txt"}, filenames(got))
}
