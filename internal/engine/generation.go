package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
)

const generationSystemPrompt = "You are a trend research assistant. " +
	"Use the web_search tool to gather current sources before answering. " +
	"Ground every claim in the returned results and answer in the user's language."

const (
	degradedFailureMessage = "The language model failed before producing a complete response. " +
		"Search data for this session may still be available. Please retry shortly."
	degradedExhaustedMessage = "All language model providers are currently unavailable or rate limited. " +
		"Please retry shortly."
	degradedLoopMessage = "The language model kept requesting more searches without producing a final " +
		"answer. Please narrow the request and retry."
)

// WebSearchTool is the single tool exposed to models during generation.
var WebSearchTool = ToolSpec{
	Name:        "web_search",
	Description: "Search the web, video and social platforms for current content about a topic. Returns titles, URLs and snippets.",
	Parameters: json.RawMessage(`{
		"type": "object",
		"properties": {
			"query": {"type": "string", "description": "The search query"}
		},
		"required": ["query"]
	}`),
}

// SearchRunner executes a full search for a tool call. Implemented by the
// search pipeline.
type SearchRunner interface {
	RunSearch(ctx context.Context, query, sessionID string) (*AggregatedResult, error)
}

// GenerationResult is the outcome of one generation request. Degraded marks a
// canned fallback produced after provider failure rather than model output.
type GenerationResult struct {
	SessionID  string `json:"session_id"`
	Text       string `json:"text"`
	Provider   string `json:"provider"`
	Model      string `json:"model"`
	Iterations int    `json:"iterations"`
	ToolCalls  int    `json:"tool_calls"`
	Degraded   bool   `json:"degraded"`
}

// GenerationOptions tune the conversation loop and the serialized tool block.
type GenerationOptions struct {
	MaxIterations int
	Temperature   float64
	MaxTokens     int
	ToolWebTop    int
	ToolVideoTop  int
	ToolSocialTop int
	ToolViralTop  int
	ToolSnippet   int
}

func (o *GenerationOptions) normalize() {
	if o.MaxIterations <= 0 {
		o.MaxIterations = 3
	}
	if o.Temperature <= 0 {
		o.Temperature = 0.7
	}
	if o.MaxTokens <= 0 {
		o.MaxTokens = 2048
	}
	if o.ToolWebTop <= 0 {
		o.ToolWebTop = 10
	}
	if o.ToolVideoTop <= 0 {
		o.ToolVideoTop = 5
	}
	if o.ToolSocialTop <= 0 {
		o.ToolSocialTop = 5
	}
	if o.ToolViralTop <= 0 {
		o.ToolViralTop = 5
	}
	if o.ToolSnippet <= 0 {
		o.ToolSnippet = 200
	}
}

// GenerationOrchestrator drives tool-calling conversations across a priority
// chain of model providers. Tool-capable providers are tried first; a provider
// that rate limits through its whole credential pool is disabled and the next
// one in the chain takes over with a fresh conversation.
type GenerationOrchestrator struct {
	registry *Registry
	runner   SearchRunner
	rec      Recorder
	logger   *log.Logger
	opts     GenerationOptions
}

func NewGenerationOrchestrator(registry *Registry, runner SearchRunner, rec Recorder, logger *log.Logger, opts GenerationOptions) *GenerationOrchestrator {
	if rec == nil {
		rec = NopRecorder{}
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[GEN] ", log.LstdFlags)
	}
	opts.normalize()
	return &GenerationOrchestrator{registry: registry, runner: runner, rec: rec, logger: logger, opts: opts}
}

// Generate answers a prompt, searching the web when the model asks to. An
// empty sessionID starts a fresh session. The returned error is non-nil only
// when no generation provider is configured at all; provider failures surface
// as a degraded result instead.
func (g *GenerationOrchestrator) Generate(ctx context.Context, prompt, sessionID string) (*GenerationResult, error) {
	chain := g.chain()
	if len(chain) == 0 {
		return nil, ErrNoProviders
	}
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	for _, e := range chain {
		if !g.registry.Usable(e) {
			continue
		}
		res, err := g.converse(ctx, e, sessionID, prompt)
		if err == nil {
			return res, nil
		}
		if KindOf(err) == KindRateLimited {
			g.logger.Printf("provider=%s exhausted credentials, moving down the chain", e.ID)
			continue
		}
		g.logger.Printf("provider=%s failed: %v", e.ID, err)
		return g.degraded(sessionID, e, degradedFailureMessage), nil
	}
	return g.degraded(sessionID, nil, degradedExhaustedMessage), nil
}

// chain orders providers for fallback: tool-capable ones by priority, then the
// remaining generation-only ones by priority.
func (g *GenerationOrchestrator) chain() []*Entry {
	tools := g.registry.Chain(CapTools)
	seen := make(map[string]bool, len(tools))
	for _, e := range tools {
		seen[e.ID] = true
	}
	chain := tools
	for _, e := range g.registry.Chain(CapGeneration) {
		if !seen[e.ID] {
			chain = append(chain, e)
		}
	}
	return chain
}

func (g *GenerationOrchestrator) converse(ctx context.Context, e *Entry, sessionID, prompt string) (*GenerationResult, error) {
	messages := []Message{
		{Role: "system", Content: generationSystemPrompt},
		{Role: "user", Content: prompt},
	}
	var tools []ToolSpec
	if e.Has(CapTools) {
		tools = []ToolSpec{WebSearchTool}
	}

	toolCalls := 0
	for iter := 1; iter <= g.opts.MaxIterations; iter++ {
		resp, err := g.generate(ctx, e, GenerationRequest{
			Messages:    messages,
			Tools:       tools,
			Temperature: g.opts.Temperature,
			MaxTokens:   g.opts.MaxTokens,
		})
		if err != nil {
			return nil, err
		}

		if resp.ToolCall != nil {
			toolCalls++
			messages = append(messages, Message{Role: "assistant", ToolCalls: []ToolCall{*resp.ToolCall}})
			messages = append(messages, Message{
				Role:       "tool",
				ToolCallID: resp.ToolCall.ID,
				Content:    g.runTool(ctx, *resp.ToolCall, sessionID, prompt),
			})
			continue
		}
		if strings.TrimSpace(resp.Text) == "" {
			return nil, NewProviderError(e.ID, KindProtocol, 0, errors.New("empty completion"))
		}
		g.rec.GenerationIterations(iter)
		g.logger.Printf("provider=%s model=%s iterations=%d tool_calls=%d", e.ID, e.Model, iter, toolCalls)
		return &GenerationResult{
			SessionID:  sessionID,
			Text:       resp.Text,
			Provider:   e.ID,
			Model:      e.Model,
			Iterations: iter,
			ToolCalls:  toolCalls,
		}, nil
	}

	g.rec.GenerationIterations(g.opts.MaxIterations)
	g.logger.Printf("provider=%s hit the iteration cap without a final answer", e.ID)
	res := g.degraded(sessionID, e, degradedLoopMessage)
	res.Iterations = g.opts.MaxIterations
	res.ToolCalls = toolCalls
	return res, nil
}

// generate performs one model call, rotating credentials on rate limits the
// same way search calls do.
func (g *GenerationOrchestrator) generate(ctx context.Context, e *Entry, req GenerationRequest) (GenerationResponse, error) {
	tries := 1
	if e.Pool != nil && e.Pool.Size() > 1 {
		tries = e.Pool.Size()
	}
	var lastErr error
	for attempt := 1; attempt <= tries; attempt++ {
		resp, err := g.call(ctx, e, req)
		if err == nil {
			g.rec.ProviderCall(e.ID, "ok")
			return resp, nil
		}
		lastErr = Classify(e.ID, err)
		g.rec.ProviderCall(e.ID, KindOf(lastErr).String())
		if KindOf(lastErr) != KindRateLimited {
			return GenerationResponse{}, lastErr
		}
		g.logger.Printf("provider=%s rate limited, rotating credential (%d/%d)", e.ID, attempt, tries)
	}
	g.registry.MarkUnavailable(e.ID)
	g.rec.ProviderDisabled(e.ID)
	return GenerationResponse{}, lastErr
}

// call runs one model attempt under the entry's timeout.
func (g *GenerationOrchestrator) call(ctx context.Context, e *Entry, req GenerationRequest) (GenerationResponse, error) {
	if e.Timeout > 0 {
		cctx, cancel := context.WithTimeout(ctx, e.Timeout)
		defer cancel()
		return e.Gen.Generate(cctx, req)
	}
	return e.Gen.Generate(ctx, req)
}

// runTool executes a web_search call and serializes the result into a compact
// block the model can cite from. Tool failures are reported back to the model
// as text so the conversation can continue.
func (g *GenerationOrchestrator) runTool(ctx context.Context, tc ToolCall, sessionID, fallbackQuery string) string {
	if tc.Name != WebSearchTool.Name {
		return fmt.Sprintf("Unknown tool %q. Only web_search is available.", tc.Name)
	}
	var args struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal([]byte(tc.Arguments), &args); err != nil || strings.TrimSpace(args.Query) == "" {
		args.Query = fallbackQuery
	}
	res, err := g.runner.RunSearch(ctx, args.Query, sessionID)
	if err != nil {
		return fmt.Sprintf("Search failed: %v. Answer from what you already know.", err)
	}
	return g.formatToolResults(res)
}

func (g *GenerationOrchestrator) formatToolResults(res *AggregatedResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Search results for %q: %d sources, %d unique URLs.\n",
		res.Query, res.Stats.TotalSources, res.Stats.UniqueURLs)
	g.section(&b, "Web results", res.Web, g.opts.ToolWebTop, false)
	g.section(&b, "Video results", res.Video, g.opts.ToolVideoTop, false)
	g.section(&b, "Social results", res.Social, g.opts.ToolSocialTop, false)
	g.section(&b, "Viral content", res.Viral, g.opts.ToolViralTop, true)
	return b.String()
}

func (g *GenerationOrchestrator) section(b *strings.Builder, name string, records []SearchRecord, top int, scored bool) {
	if len(records) == 0 {
		return
	}
	if len(records) > top {
		records = records[:top]
	}
	fmt.Fprintf(b, "\n%s:\n", name)
	for _, r := range records {
		snippet := r.Snippet
		if snippet == "" {
			snippet = r.Content
		}
		if scored {
			fmt.Fprintf(b, "- [%.1f] %s (%s): %s\n", r.ViralScore, r.Title, r.URL, Truncate(snippet, g.opts.ToolSnippet))
			continue
		}
		fmt.Fprintf(b, "- %s (%s): %s\n", r.Title, r.URL, Truncate(snippet, g.opts.ToolSnippet))
	}
}

func (g *GenerationOrchestrator) degraded(sessionID string, e *Entry, msg string) *GenerationResult {
	res := &GenerationResult{SessionID: sessionID, Text: msg, Degraded: true}
	if e != nil {
		res.Provider = e.ID
		res.Model = e.Model
	}
	return res
}
