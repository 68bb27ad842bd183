package generation

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mohammad-safakhou/trender/internal/engine"
)

func TestGeminiParsesFunctionCall(t *testing.T) {
	var got struct {
		Contents []struct {
			Role  string `json:"role"`
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"contents"`
		GenerationConfig struct {
			Temperature     float64 `json:"temperature"`
			MaxOutputTokens int     `json:"maxOutputTokens"`
		} `json:"generationConfig"`
		Tools []struct {
			FunctionDeclarations []struct {
				Name string `json:"name"`
			} `json:"functionDeclarations"`
		} `json:"tools"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models/gemini-2.0-flash:generateContent" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if key := r.URL.Query().Get("key"); key != "gm-key" {
			t.Errorf("expected key param, got %q", key)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Write([]byte(`{
			"candidates":[{"content":{"parts":[{"functionCall":{"name":"web_search","args":{"query":"gatos"}}}]}}],
			"usageMetadata":{"promptTokenCount":12,"candidatesTokenCount":3}
		}`))
	}))
	defer srv.Close()

	p := NewGemini("gemini", testPool("gm-key"), testHTTPClient(),
		GeminiConfig{BaseURL: srv.URL, Model: "gemini-2.0-flash"})
	resp, err := p.Generate(context.Background(), engine.GenerationRequest{
		Messages: []engine.Message{
			{Role: "system", Content: "voce e um assistente"},
			{Role: "user", Content: "o que esta em alta"},
		},
		Tools:       []engine.ToolSpec{{Name: "web_search", Parameters: json.RawMessage(`{"type":"object"}`)}},
		Temperature: 0.5,
		MaxTokens:   256,
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}

	if len(got.Contents) != 1 || got.Contents[0].Role != "user" {
		t.Fatalf("expected system folded into one user turn, got %+v", got.Contents)
	}
	text := got.Contents[0].Parts[0].Text
	if !strings.HasPrefix(text, "voce e um assistente\n\n") {
		t.Fatalf("expected system prompt prefix, got %q", text)
	}
	if got.GenerationConfig.MaxOutputTokens != 256 {
		t.Fatalf("expected maxOutputTokens 256, got %d", got.GenerationConfig.MaxOutputTokens)
	}
	if len(got.Tools) != 1 || got.Tools[0].FunctionDeclarations[0].Name != "web_search" {
		t.Fatalf("expected function declarations, got %+v", got.Tools)
	}

	if resp.ToolCall == nil {
		t.Fatal("expected tool call")
	}
	if resp.ToolCall.Name != "web_search" || resp.ToolCall.ID != "fc-web_search" {
		t.Fatalf("unexpected tool call %+v", resp.ToolCall)
	}
	if !strings.Contains(resp.ToolCall.Arguments, `"query"`) {
		t.Fatalf("expected args carried through, got %q", resp.ToolCall.Arguments)
	}
	if resp.PromptTokens != 12 || resp.CompletionTokens != 3 {
		t.Fatalf("unexpected usage %d/%d", resp.PromptTokens, resp.CompletionTokens)
	}
}

func TestGeminiConcatenatesTextParts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"ola "},{"text":"mundo"}]}}]}`))
	}))
	defer srv.Close()

	p := NewGemini("gemini", testPool("gm-key"), testHTTPClient(),
		GeminiConfig{BaseURL: srv.URL, Model: "gemini-2.0-flash"})
	resp, err := p.Generate(context.Background(), engine.GenerationRequest{
		Messages: []engine.Message{{Role: "user", Content: "oi"}},
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if resp.Text != "ola mundo" {
		t.Fatalf("unexpected text %q", resp.Text)
	}
}

func TestGeminiNoCandidatesIsMalformed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"candidates":[]}`))
	}))
	defer srv.Close()

	p := NewGemini("gemini", testPool("gm-key"), testHTTPClient(),
		GeminiConfig{BaseURL: srv.URL, Model: "gemini-2.0-flash"})
	_, err := p.Generate(context.Background(), engine.GenerationRequest{
		Messages: []engine.Message{{Role: "user", Content: "oi"}},
	})
	if !errors.Is(err, engine.ErrMalformedResponse) {
		t.Fatalf("expected malformed response, got %v", err)
	}
}

func TestGeminiTranscriptConversion(t *testing.T) {
	g := &Gemini{}
	contents, err := g.contents([]engine.Message{
		{Role: "system", Content: "regras"},
		{Role: "user", Content: "pergunta"},
		{Role: "assistant", ToolCalls: []engine.ToolCall{{Name: "web_search", Arguments: `{"query":"x"}`}}},
		{Role: "tool", Content: "resultados"},
		{Role: "assistant", Content: "resposta"},
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if len(contents) != 4 {
		t.Fatalf("expected 4 turns, got %d", len(contents))
	}
	if contents[1].Role != "model" || contents[1].Parts[0].FunctionCall == nil {
		t.Fatalf("expected model function call turn, got %+v", contents[1])
	}
	fr := contents[2]
	if fr.Role != "function" || fr.Parts[0].FunctionResponse == nil {
		t.Fatalf("expected function response turn, got %+v", fr)
	}
	if fr.Parts[0].FunctionResponse.Name != "web_search" {
		t.Fatalf("expected response named after the pending call, got %q", fr.Parts[0].FunctionResponse.Name)
	}
	if contents[3].Role != "model" || contents[3].Parts[0].Text != "resposta" {
		t.Fatalf("unexpected final turn %+v", contents[3])
	}
}

func TestGeminiOrphanToolResponse(t *testing.T) {
	g := &Gemini{}
	_, err := g.contents([]engine.Message{{Role: "tool", Content: "resultados"}})
	if err == nil {
		t.Fatal("expected error for tool response without a call")
	}
}

func TestNormalizeArgs(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", `{}`},
		{"   ", `{}`},
		{`{"query":"gatos"}`, `{"query":"gatos"}`},
		{`gatos virais`, `{"query":"gatos virais"}`},
	}
	for _, tt := range tests {
		if got := string(normalizeArgs(tt.in)); got != tt.want {
			t.Errorf("normalizeArgs(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}
