// Package summarize writes short analyst summaries of classified articles.
package summarize

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/TobiSchelling/topicwatch/internal/llm"
)

const summarySystem = "You are a pharmaceutical industry analyst creating concise summaries."

const summaryPrompt = `Create a concise summary of this news article for industry professionals.
Focus on key facts, implications, and relevance to the industry.

Title: %s
Topics: %s
Content: %s

Provide a 2-3 paragraph summary highlighting:
1. Main news/announcement
2. Key details and implications
3. Relevance to the industry`

// Input is what a summary is written from. Content is the scraped page text
// and may be empty.
type Input struct {
	Title       string
	Description string
	Content     string
	Topics      []string
}

// Summarizer produces article summaries with an LLM. Without a provider,
// or when generation fails, the feed description is used.
type Summarizer struct {
	provider  llm.Provider
	maxTokens int
}

// NewSummarizer creates a summarizer. provider may be nil.
func NewSummarizer(provider llm.Provider, maxTokens int) *Summarizer {
	if maxTokens <= 0 {
		maxTokens = 512
	}
	return &Summarizer{provider: provider, maxTokens: maxTokens}
}

// Summarize never fails: the description is the fallback summary.
func (s *Summarizer) Summarize(ctx context.Context, in Input) string {
	if s.provider == nil {
		return in.Description
	}

	body := in.Content
	if body == "" {
		body = in.Description
	}
	if strings.TrimSpace(body) == "" {
		return in.Description
	}

	topics := "none"
	if len(in.Topics) > 0 {
		topics = strings.Join(in.Topics, ", ")
	}

	text, err := s.provider.Generate(ctx, llm.Request{
		System:      summarySystem,
		Prompt:      fmt.Sprintf(summaryPrompt, in.Title, topics, body),
		MaxTokens:   s.maxTokens,
		Temperature: 0.3,
	})
	if err != nil {
		log.Printf("Error generating summary for %q: %v", in.Title, err)
		return in.Description
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return in.Description
	}
	return text
}
