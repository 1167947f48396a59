package classify

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/TobiSchelling/topicwatch/internal/config"
	"github.com/TobiSchelling/topicwatch/internal/llm"
)

// mockProvider implements llm.Provider for testing.
type mockProvider struct {
	response string
	err      error
	last     llm.Request
}

func (m *mockProvider) Generate(_ context.Context, req llm.Request) (string, error) {
	m.last = req
	return m.response, m.err
}

func (m *mockProvider) IsConfigured() bool { return true }
func (m *mockProvider) Name() string       { return "mock" }

var testTopics = []config.Topic{
	{Name: "Regulatory", Keywords: []string{"FDA", "approval"}},
	{Name: "Oncology", Keywords: []string{"cancer", "tumor"}},
	{Name: "Pricing", Keywords: []string{"IRA", "price"}},
}

func TestLLMClassifier(t *testing.T) {
	mock := &mockProvider{response: `{"topics": ["regulatory", "Oncology", "Made Up"],
		"confidence": {"Regulatory": 0.95, "oncology": 0.8, "Made Up": 0.99}}`}
	c := NewLLMClassifier(mock, testTopics, 0.7)

	res, err := c.Classify(context.Background(), Input{Title: "FDA approves cancer drug", Description: "desc"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Join(res.Topics, ",") != "Regulatory,Oncology" {
		t.Errorf("expected configured names in configured order, got %v", res.Topics)
	}
	if res.Confidence["Regulatory"] != 0.95 || res.Confidence["Oncology"] != 0.8 {
		t.Errorf("unexpected scores %v", res.Confidence)
	}
	if _, ok := res.Confidence["Made Up"]; ok {
		t.Error("expected unknown topic to be dropped")
	}

	if !mock.last.JSON || mock.last.System == "" {
		t.Errorf("expected a JSON request with a system prompt, got %+v", mock.last)
	}
	if !strings.Contains(mock.last.Prompt, "FDA approves cancer drug") || !strings.Contains(mock.last.Prompt, "- Pricing") {
		t.Error("expected prompt to carry the title and topic list")
	}
	if !strings.Contains(mock.last.Prompt, "confidence > 0.70") {
		t.Error("expected prompt to state the threshold")
	}
}

func TestLLMClassifierThresholdAndClamp(t *testing.T) {
	mock := &mockProvider{response: "```json\n" + `{"topics": ["Regulatory", "Oncology", "Pricing"],
		"confidence": {"Regulatory": 1.4, "Oncology": 0.5}}` + "\n```"}
	res, err := NewLLMClassifier(mock, testTopics, 0.7).Classify(context.Background(), Input{Title: "t"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Join(res.Topics, ",") != "Regulatory,Pricing" {
		t.Errorf("expected low score dropped, got %v", res.Topics)
	}
	if res.Confidence["Regulatory"] != 1 {
		t.Errorf("expected clamp to 1, got %v", res.Confidence["Regulatory"])
	}
	if res.Confidence["Pricing"] != 0.7 {
		t.Errorf("expected unscored topic to get the threshold, got %v", res.Confidence["Pricing"])
	}
}

func TestLLMClassifierErrors(t *testing.T) {
	c := NewLLMClassifier(&mockProvider{err: errors.New("timeout")}, testTopics, 0.7)
	if _, err := c.Classify(context.Background(), Input{Title: "t"}); err == nil {
		t.Error("expected provider error to surface")
	}

	c = NewLLMClassifier(&mockProvider{response: "I cannot help with that"}, testTopics, 0.7)
	if _, err := c.Classify(context.Background(), Input{Title: "t"}); err == nil {
		t.Error("expected unreadable response to be an error")
	}
}

func TestScore(t *testing.T) {
	tests := map[int]float64{0: 0, 1: 0.75, 2: 1, 5: 1}
	for hits, want := range tests {
		if got := Score(hits); got != want {
			t.Errorf("Score(%d) = %v, want %v", hits, got, want)
		}
	}
}

func TestKeywordClassifier(t *testing.T) {
	c := NewKeywordClassifier(testTopics, 0.7)
	res, err := c.Classify(context.Background(), Input{
		Title:       "FDA grants approval to tumor therapy",
		Description: "The spiral of negotiations continues.",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Join(res.Topics, ",") != "Regulatory,Oncology" {
		t.Errorf("unexpected topics %v", res.Topics)
	}
	if res.Confidence["Regulatory"] != 1 {
		t.Errorf("expected two hits to score 1, got %v", res.Confidence["Regulatory"])
	}
	if res.Confidence["Oncology"] != 0.75 {
		t.Errorf("expected one hit to score 0.75, got %v", res.Confidence["Oncology"])
	}
}

func TestKeywordClassifierNoMatch(t *testing.T) {
	res, _ := NewKeywordClassifier(testTopics, 0.7).Classify(context.Background(), Input{Title: "Quarterly earnings call"})
	if !res.Empty() {
		t.Errorf("expected no topics, got %v", res.Topics)
	}
}

func TestKeywordClassifierHighThreshold(t *testing.T) {
	res, _ := NewKeywordClassifier(testTopics, 0.9).Classify(context.Background(), Input{Title: "New cancer data"})
	if !res.Empty() {
		t.Errorf("expected single hit to miss a 0.9 threshold, got %v", res.Topics)
	}
}

func TestFallbackUsesKeywordsOnError(t *testing.T) {
	c := &Fallback{
		Primary:   NewLLMClassifier(&mockProvider{err: errors.New("down")}, testTopics, 0.7),
		Secondary: NewKeywordClassifier(testTopics, 0.7),
	}
	res, err := c.Classify(context.Background(), Input{Title: "Cancer trial"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Join(res.Topics, ",") != "Oncology" {
		t.Errorf("expected keyword result, got %v", res.Topics)
	}
}

func TestNewWithoutProvider(t *testing.T) {
	cfg := &config.Config{Monitor: config.Monitor{Topics: testTopics, ClassificationThreshold: 0.7}}
	if _, ok := New(cfg, nil).(*KeywordClassifier); !ok {
		t.Error("expected keyword classifier without a provider")
	}
	if _, ok := New(cfg, &mockProvider{}).(*Fallback); !ok {
		t.Error("expected fallback chain with a provider")
	}
}
