// Package classify assigns configured topics, with confidence scores, to
// feed entries.
package classify

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/TobiSchelling/topicwatch/internal/config"
	"github.com/TobiSchelling/topicwatch/internal/llm"
)

const classifySystem = "You are a pharmaceutical industry expert who classifies news articles."

const classifyPrompt = `Analyze the following news article and identify which of these topics it relates to.
An article can relate to multiple topics. Return the relevant topics and confidence scores.

Article Title: %s
Article Description: %s

Topics to consider:
%s

Return your response as a JSON object with two keys:
- "topics": list of relevant topic names from the list above
- "confidence": object mapping each identified topic to a confidence score (0.0-1.0)

Only include topics with confidence > %.2f.`

// Input is the text a classifier sees: feed metadata only, never the
// scraped page.
type Input struct {
	Title       string
	Description string
}

// Result lists matched topics in configured order. Every topic has a score.
type Result struct {
	Topics     []string
	Confidence map[string]float64
}

// Empty reports whether no topic matched.
func (r Result) Empty() bool { return len(r.Topics) == 0 }

// Classifier assigns topics to an article.
type Classifier interface {
	Classify(ctx context.Context, in Input) (Result, error)
}

// New builds the configured classifier: the LLM when a provider is
// available, backed by keyword matching.
func New(cfg *config.Config, provider llm.Provider) Classifier {
	keywords := NewKeywordClassifier(cfg.Monitor.Topics, cfg.Monitor.ClassificationThreshold)
	if provider == nil {
		log.Println("No LLM provider available, classifying by keywords")
		return keywords
	}
	return &Fallback{
		Primary:   NewLLMClassifier(provider, cfg.Monitor.Topics, cfg.Monitor.ClassificationThreshold),
		Secondary: keywords,
	}
}

// LLMClassifier asks a language model for topics and scores.
type LLMClassifier struct {
	provider  llm.Provider
	topics    []config.Topic
	threshold float64
}

// NewLLMClassifier creates an LLM-backed classifier.
func NewLLMClassifier(provider llm.Provider, topics []config.Topic, threshold float64) *LLMClassifier {
	return &LLMClassifier{provider: provider, topics: topics, threshold: threshold}
}

func (c *LLMClassifier) Classify(ctx context.Context, in Input) (Result, error) {
	prompt := fmt.Sprintf(classifyPrompt, in.Title, in.Description, c.topicList(), c.threshold)

	text, err := c.provider.Generate(ctx, llm.Request{
		System:      classifySystem,
		Prompt:      prompt,
		MaxTokens:   256,
		Temperature: 0.1,
		JSON:        true,
	})
	if err != nil {
		return Result{}, fmt.Errorf("classifying %q: %w", in.Title, err)
	}

	var parsed struct {
		Topics     []string           `json:"topics"`
		Confidence map[string]float64 `json:"confidence"`
	}
	if err := llm.DecodeJSONResponse(text, &parsed); err != nil {
		return Result{}, fmt.Errorf("classifying %q: unreadable response: %w", in.Title, err)
	}

	return c.normalize(parsed.Topics, parsed.Confidence), nil
}

// normalize maps the model's labels onto configured topic names, drops
// anything unknown or under the threshold, and clamps scores to [0, 1].
// A topic returned without a score is given the threshold itself.
func (c *LLMClassifier) normalize(topics []string, scores map[string]float64) Result {
	lookup := func(m map[string]float64, name string) (float64, bool) {
		for k, v := range m {
			if strings.EqualFold(strings.TrimSpace(k), name) {
				return v, true
			}
		}
		return 0, false
	}

	picked := make(map[string]bool)
	for _, t := range topics {
		picked[strings.ToLower(strings.TrimSpace(t))] = true
	}

	res := Result{Confidence: make(map[string]float64)}
	for _, topic := range c.topics {
		if !picked[strings.ToLower(topic.Name)] {
			continue
		}
		score, ok := lookup(scores, topic.Name)
		if !ok {
			score = c.threshold
		}
		score = clamp(score)
		if score < c.threshold {
			continue
		}
		res.Topics = append(res.Topics, topic.Name)
		res.Confidence[topic.Name] = score
	}
	return res
}

func (c *LLMClassifier) topicList() string {
	lines := make([]string, len(c.topics))
	for i, t := range c.topics {
		lines[i] = "- " + t.Name
	}
	return strings.Join(lines, "\n")
}

// KeywordClassifier scores topics by how many of their keywords (and the
// topic name itself) appear in the title and description.
type KeywordClassifier struct {
	topics    []config.Topic
	threshold float64
}

// NewKeywordClassifier creates a keyword classifier.
func NewKeywordClassifier(topics []config.Topic, threshold float64) *KeywordClassifier {
	return &KeywordClassifier{topics: topics, threshold: threshold}
}

// Score is min(1, 0.5 + 0.25 * hits) for a topic with at least one hit.
func Score(hits int) float64 {
	if hits <= 0 {
		return 0
	}
	return clamp(0.5 + 0.25*float64(hits))
}

func (c *KeywordClassifier) Classify(_ context.Context, in Input) (Result, error) {
	text := strings.ToLower(in.Title + " " + in.Description)

	res := Result{Confidence: make(map[string]float64)}
	for _, topic := range c.topics {
		terms := append([]string{topic.Name}, topic.Keywords...)
		seen := make(map[string]bool)
		hits := 0
		for _, term := range terms {
			term = strings.ToLower(strings.TrimSpace(term))
			if term == "" || seen[term] {
				continue
			}
			seen[term] = true
			if containsWord(text, term) {
				hits++
			}
		}
		score := Score(hits)
		if hits == 0 || score < c.threshold {
			continue
		}
		res.Topics = append(res.Topics, topic.Name)
		res.Confidence[topic.Name] = score
	}
	return res, nil
}

// containsWord matches term on word boundaries so "ira" does not match
// "spiral".
func containsWord(text, term string) bool {
	for start := 0; ; {
		i := strings.Index(text[start:], term)
		if i < 0 {
			return false
		}
		i += start
		end := i + len(term)
		if (i == 0 || !isWordByte(text[i-1])) && (end == len(text) || !isWordByte(text[end])) {
			return true
		}
		start = i + 1
	}
}

func isWordByte(b byte) bool {
	return b == '_' || b >= '0' && b <= '9' || b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z'
}

// Fallback uses Secondary whenever Primary fails.
type Fallback struct {
	Primary   Classifier
	Secondary Classifier
}

func (f *Fallback) Classify(ctx context.Context, in Input) (Result, error) {
	res, err := f.Primary.Classify(ctx, in)
	if err == nil {
		return res, nil
	}
	if ctx.Err() != nil {
		return Result{}, ctx.Err()
	}
	log.Printf("Error classifying article %q, using keywords: %v", in.Title, err)
	return f.Secondary.Classify(ctx, in)
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
