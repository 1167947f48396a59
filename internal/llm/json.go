package llm

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"
)

// ParseJSONResponse parses a JSON object from an LLM reply, handling
// markdown code fences. It returns nil if the reply is not a JSON object.
func ParseJSONResponse(text string) map[string]any {
	var result map[string]any
	if err := DecodeJSONResponse(text, &result); err != nil {
		log.Printf("Failed to parse LLM response as JSON: %v", err)
		return nil
	}
	return result
}

// DecodeJSONResponse unmarshals an LLM reply into v. Code fences and any
// chatter around the outermost object are ignored.
func DecodeJSONResponse(text string, v any) error {
	text = stripFences(strings.TrimSpace(text))
	if text == "" {
		return fmt.Errorf("empty response")
	}

	if err := json.Unmarshal([]byte(text), v); err == nil {
		return nil
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return fmt.Errorf("no JSON object in response")
	}
	return json.Unmarshal([]byte(text[start:end+1]), v)
}

func stripFences(text string) string {
	if !strings.HasPrefix(text, "```") {
		return text
	}
	lines := strings.Split(text, "\n")
	endIdx := len(lines)
	for i := len(lines) - 1; i > 0; i-- {
		if strings.TrimSpace(lines[i]) == "```" {
			endIdx = i
			break
		}
	}
	if endIdx <= 1 {
		return ""
	}
	return strings.Join(lines[1:endIdx], "\n")
}
