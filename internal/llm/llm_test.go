package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestParseJSONResponsePlain(t *testing.T) {
	result := ParseJSONResponse(`{"key": "value", "num": 42}`)
	if result == nil {
		t.Fatal("expected non-nil result")
	}
	if result["key"] != "value" {
		t.Errorf("expected key='value', got %v", result["key"])
	}
	if result["num"] != float64(42) {
		t.Errorf("expected num=42, got %v", result["num"])
	}
}

func TestParseJSONResponseWithCodeFence(t *testing.T) {
	text := "```json\n{\"key\": \"value\"}\n```"
	result := ParseJSONResponse(text)
	if result == nil {
		t.Fatal("expected non-nil result")
	}
	if result["key"] != "value" {
		t.Errorf("expected key='value', got %v", result["key"])
	}
}

func TestParseJSONResponseWithPlainFence(t *testing.T) {
	text := "```\n{\"key\": \"value\"}\n```"
	result := ParseJSONResponse(text)
	if result == nil {
		t.Fatal("expected non-nil result")
	}
	if result["key"] != "value" {
		t.Errorf("expected key='value', got %v", result["key"])
	}
}

func TestParseJSONResponseInvalid(t *testing.T) {
	result := ParseJSONResponse("not json at all")
	if result != nil {
		t.Error("expected nil for invalid JSON")
	}
}

func TestParseJSONResponseEmpty(t *testing.T) {
	result := ParseJSONResponse("")
	if result != nil {
		t.Error("expected nil for empty string")
	}
}

func TestParseJSONResponseWhitespace(t *testing.T) {
	result := ParseJSONResponse("  \n  {\"key\": \"value\"}  \n  ")
	if result == nil {
		t.Fatal("expected non-nil result")
	}
	if result["key"] != "value" {
		t.Errorf("expected key='value', got %v", result["key"])
	}
}

func TestParseJSONResponseWithChatter(t *testing.T) {
	result := ParseJSONResponse("Sure! Here it is: {\"topics\": [\"Oncology\"]} Hope that helps.")
	if result == nil {
		t.Fatal("expected non-nil result")
	}
	topics, ok := result["topics"].([]any)
	if !ok || len(topics) != 1 || topics[0] != "Oncology" {
		t.Errorf("unexpected topics %v", result["topics"])
	}
}

func TestDecodeJSONResponseTyped(t *testing.T) {
	var out struct {
		Topics     []string           `json:"topics"`
		Confidence map[string]float64 `json:"confidence"`
	}
	text := "```json\n{\"topics\": [\"Regulatory\"], \"confidence\": {\"Regulatory\": 0.92}}\n```"
	if err := DecodeJSONResponse(text, &out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out.Topics) != 1 || out.Confidence["Regulatory"] != 0.92 {
		t.Errorf("unexpected decode %+v", out)
	}
}

func TestParseJSONResponseArrayRejected(t *testing.T) {
	if result := ParseJSONResponse(`["a", "b"]`); result != nil {
		t.Errorf("expected nil for a JSON array, got %v", result)
	}
}

func TestOllamaGenerate(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"message": {"content": "hello"}}`))
	}))
	defer srv.Close()

	p := NewOllamaProvider("qwen2.5:7b", srv.URL+"/")
	out, err := p.Generate(context.Background(), Request{System: "sys", Prompt: "hi", MaxTokens: 64, JSON: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "hello" {
		t.Errorf("expected 'hello', got %q", out)
	}
	if got["format"] != "json" {
		t.Errorf("expected json format, got %v", got["format"])
	}
	msgs, _ := got["messages"].([]any)
	if len(msgs) != 2 {
		t.Errorf("expected system and user messages, got %v", got["messages"])
	}
	opts, _ := got["options"].(map[string]any)
	if opts["temperature"] != 0.3 || opts["num_predict"] != float64(64) {
		t.Errorf("unexpected options %v", opts)
	}
}

func TestOllamaIsConfigured(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"models": [{"name": "qwen2.5:7b"}]}`))
	}))
	defer srv.Close()

	if !NewOllamaProvider("qwen2.5:7b", srv.URL).IsConfigured() {
		t.Error("expected model to be found")
	}
	if NewOllamaProvider("llama3", srv.URL).IsConfigured() {
		t.Error("expected missing model to be reported")
	}
}

func TestOpenAIGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("missing bearer token")
		}
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		if _, ok := body["response_format"]; ok {
			t.Error("plain request should not set response_format")
		}
		w.Write([]byte(`{"choices": [{"message": {"content": "summary"}}]}`))
	}))
	defer srv.Close()

	p := &OpenAIProvider{Model: "gpt-4o-mini", APIKey: "test-key", BaseURL: srv.URL, client: srv.Client()}
	out, err := p.Generate(context.Background(), Request{Prompt: "hi"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "summary" {
		t.Errorf("expected 'summary', got %q", out)
	}
}

func TestOpenAIErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p := &OpenAIProvider{Model: "m", APIKey: "k", BaseURL: srv.URL, client: srv.Client()}
	if _, err := p.Generate(context.Background(), Request{Prompt: "hi"}); err == nil {
		t.Fatal("expected error on 429")
	}
}

func TestOpenAIWithoutKey(t *testing.T) {
	p := NewOpenAIProvider("m", "TOPICWATCH_TEST_UNSET_KEY")
	if p.IsConfigured() {
		t.Fatal("expected provider without key to be unconfigured")
	}
	if _, err := p.Generate(context.Background(), Request{Prompt: "hi"}); err == nil {
		t.Error("expected error without key")
	}
}
