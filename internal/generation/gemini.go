package generation

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/mohammad-safakhou/trender/internal/engine"
)

type GeminiConfig struct {
	BaseURL string
	Model   string
}

// Gemini speaks the native generateContent API. The credential travels as a
// query parameter and the system prompt folds into the first user turn, since
// the v1beta content roles are only user, model and function.
type Gemini struct {
	id    string
	pool  *engine.CredentialPool
	httpc *engine.HTTPClient
	cfg   GeminiConfig
}

func NewGemini(id string, pool *engine.CredentialPool, httpc *engine.HTTPClient, cfg GeminiConfig) *Gemini {
	return &Gemini{id: id, pool: pool, httpc: httpc, cfg: cfg}
}

func (g *Gemini) Name() string  { return g.id }
func (g *Gemini) Model() string { return g.cfg.Model }

type geminiPart struct {
	Text         string `json:"text,omitempty"`
	FunctionCall *struct {
		Name string          `json:"name"`
		Args json.RawMessage `json:"args,omitempty"`
	} `json:"functionCall,omitempty"`
	FunctionResponse *struct {
		Name     string                 `json:"name"`
		Response map[string]interface{} `json:"response"`
	} `json:"functionResponse,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role"`
	Parts []geminiPart `json:"parts"`
}

func (g *Gemini) Generate(ctx context.Context, req engine.GenerationRequest) (engine.GenerationResponse, error) {
	contents, err := g.contents(req.Messages)
	if err != nil {
		return engine.GenerationResponse{}, err
	}

	body := map[string]interface{}{
		"contents": contents,
		"generationConfig": map[string]interface{}{
			"temperature":     req.Temperature,
			"maxOutputTokens": req.MaxTokens,
		},
	}
	if len(req.Tools) > 0 {
		decls := make([]map[string]interface{}, 0, len(req.Tools))
		for _, t := range req.Tools {
			decls = append(decls, map[string]interface{}{
				"name":        t.Name,
				"description": t.Description,
				"parameters":  t.Parameters,
			})
		}
		body["tools"] = []map[string]interface{}{{"functionDeclarations": decls}}
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s",
		strings.TrimRight(g.cfg.BaseURL, "/"), g.cfg.Model, g.pool.Next())

	var out struct {
		Candidates []struct {
			Content struct {
				Parts []geminiPart `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
		UsageMetadata struct {
			PromptTokenCount     int `json:"promptTokenCount"`
			CandidatesTokenCount int `json:"candidatesTokenCount"`
		} `json:"usageMetadata"`
	}
	if err := g.httpc.DoJSON(ctx, http.MethodPost, url, nil, body, &out); err != nil {
		return engine.GenerationResponse{}, err
	}
	if len(out.Candidates) == 0 {
		return engine.GenerationResponse{}, fmt.Errorf("%w: no candidates", engine.ErrMalformedResponse)
	}

	resp := engine.GenerationResponse{
		PromptTokens:     out.UsageMetadata.PromptTokenCount,
		CompletionTokens: out.UsageMetadata.CandidatesTokenCount,
	}
	var text strings.Builder
	for _, part := range out.Candidates[0].Content.Parts {
		if part.FunctionCall != nil && resp.ToolCall == nil {
			resp.ToolCall = &engine.ToolCall{
				ID:        "fc-" + part.FunctionCall.Name,
				Name:      part.FunctionCall.Name,
				Arguments: string(part.FunctionCall.Args),
			}
			continue
		}
		text.WriteString(part.Text)
	}
	resp.Text = text.String()
	return resp, nil
}

// contents converts the dialect-neutral transcript into Gemini turns. Tool
// responses need the function name back, which comes from the assistant turn
// that requested the call.
func (g *Gemini) contents(messages []engine.Message) ([]geminiContent, error) {
	var contents []geminiContent
	var system string
	pendingTool := ""

	for _, m := range messages {
		switch m.Role {
		case "system":
			system = m.Content
		case "user":
			text := m.Content
			if system != "" {
				text = system + "\n\n" + text
				system = ""
			}
			contents = append(contents, geminiContent{
				Role:  "user",
				Parts: []geminiPart{{Text: text}},
			})
		case "assistant":
			if len(m.ToolCalls) > 0 {
				tc := m.ToolCalls[0]
				pendingTool = tc.Name
				part := geminiPart{}
				part.FunctionCall = &struct {
					Name string          `json:"name"`
					Args json.RawMessage `json:"args,omitempty"`
				}{Name: tc.Name, Args: normalizeArgs(tc.Arguments)}
				contents = append(contents, geminiContent{Role: "model", Parts: []geminiPart{part}})
				continue
			}
			contents = append(contents, geminiContent{Role: "model", Parts: []geminiPart{{Text: m.Content}}})
		case "tool":
			if pendingTool == "" {
				return nil, fmt.Errorf("tool response without a preceding call")
			}
			part := geminiPart{}
			part.FunctionResponse = &struct {
				Name     string                 `json:"name"`
				Response map[string]interface{} `json:"response"`
			}{Name: pendingTool, Response: map[string]interface{}{"content": m.Content}}
			contents = append(contents, geminiContent{Role: "function", Parts: []geminiPart{part}})
			pendingTool = ""
		default:
			return nil, fmt.Errorf("unsupported message role %q", m.Role)
		}
	}
	return contents, nil
}

// normalizeArgs keeps arguments a JSON object even when the model produced
// loose text.
func normalizeArgs(args string) json.RawMessage {
	trimmed := strings.TrimSpace(args)
	if trimmed == "" {
		return json.RawMessage(`{}`)
	}
	if !json.Valid([]byte(trimmed)) {
		quoted, _ := json.Marshal(trimmed)
		return json.RawMessage(`{"query":` + string(quoted) + `}`)
	}
	return json.RawMessage(trimmed)
}

var _ engine.GenerationProvider = (*Gemini)(nil)
