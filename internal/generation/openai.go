// Package generation contains the model provider adapters. Two wire dialects
// cover the whole chain: OpenAI-style chat completions (OpenRouter, Groq,
// OpenAI) and the native Gemini API.
package generation

import (
	"context"
	"fmt"
	"net/http"

	"github.com/mohammad-safakhou/trender/internal/engine"
)

type OpenAIConfig struct {
	BaseURL string
	Model   string
}

// OpenAI speaks the chat-completions dialect with function tools.
type OpenAI struct {
	id    string
	pool  *engine.CredentialPool
	httpc *engine.HTTPClient
	cfg   OpenAIConfig
}

func NewOpenAI(id string, pool *engine.CredentialPool, httpc *engine.HTTPClient, cfg OpenAIConfig) *OpenAI {
	return &OpenAI{id: id, pool: pool, httpc: httpc, cfg: cfg}
}

func (o *OpenAI) Name() string  { return o.id }
func (o *OpenAI) Model() string { return o.cfg.Model }

type chatToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type chatMessage struct {
	Role       string         `json:"role"`
	Content    string         `json:"content,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
	ToolCalls  []chatToolCall `json:"tool_calls,omitempty"`
}

func (o *OpenAI) Generate(ctx context.Context, req engine.GenerationRequest) (engine.GenerationResponse, error) {
	messages := make([]chatMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		cm := chatMessage{Role: m.Role, Content: m.Content, ToolCallID: m.ToolCallID}
		for _, tc := range m.ToolCalls {
			call := chatToolCall{ID: tc.ID, Type: "function"}
			call.Function.Name = tc.Name
			call.Function.Arguments = tc.Arguments
			cm.ToolCalls = append(cm.ToolCalls, call)
		}
		messages = append(messages, cm)
	}

	body := map[string]interface{}{
		"model":       o.cfg.Model,
		"messages":    messages,
		"temperature": req.Temperature,
		"max_tokens":  req.MaxTokens,
	}
	if len(req.Tools) > 0 {
		tools := make([]map[string]interface{}, 0, len(req.Tools))
		for _, t := range req.Tools {
			tools = append(tools, map[string]interface{}{
				"type": "function",
				"function": map[string]interface{}{
					"name":        t.Name,
					"description": t.Description,
					"parameters":  t.Parameters,
				},
			})
		}
		body["tools"] = tools
	}
	headers := map[string]string{"Authorization": "Bearer " + o.pool.Next()}

	var out struct {
		Choices []struct {
			Message struct {
				Content   string         `json:"content"`
				ToolCalls []chatToolCall `json:"tool_calls"`
			} `json:"message"`
			FinishReason string `json:"finish_reason"`
		} `json:"choices"`
		Usage struct {
			PromptTokens     int `json:"prompt_tokens"`
			CompletionTokens int `json:"completion_tokens"`
		} `json:"usage"`
	}
	if err := o.httpc.DoJSON(ctx, http.MethodPost, o.cfg.BaseURL+"/chat/completions", headers, body, &out); err != nil {
		return engine.GenerationResponse{}, err
	}
	if len(out.Choices) == 0 {
		return engine.GenerationResponse{}, fmt.Errorf("%w: no choices", engine.ErrMalformedResponse)
	}

	choice := out.Choices[0]
	resp := engine.GenerationResponse{
		Text:             choice.Message.Content,
		PromptTokens:     out.Usage.PromptTokens,
		CompletionTokens: out.Usage.CompletionTokens,
	}
	if len(choice.Message.ToolCalls) > 0 {
		tc := choice.Message.ToolCalls[0]
		if tc.Function.Name == "" {
			return engine.GenerationResponse{}, fmt.Errorf("%w: tool call without a function name", engine.ErrMalformedResponse)
		}
		resp.ToolCall = &engine.ToolCall{ID: tc.ID, Name: tc.Function.Name, Arguments: tc.Function.Arguments}
	}
	return resp, nil
}

var _ engine.GenerationProvider = (*OpenAI)(nil)
