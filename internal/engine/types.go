package engine

import (
	"context"
	"encoding/json"
	"time"
)

// Capability tags what a provider can do. Registry selection filters on it.
type Capability string

const (
	CapWebSearch    Capability = "web_search"
	CapNeuralSearch Capability = "neural_search"
	CapVideoSearch  Capability = "video_search"
	CapSocialSearch Capability = "social_search"
	CapGeneration   Capability = "generation"
	CapTools        Capability = "tools"
)

// Metrics carries the raw engagement numbers a provider reported for a record.
// Unused fields stay zero; the scorer picks the relevant ones per platform.
type Metrics struct {
	Views          int64   `json:"views,omitempty"`
	Likes          int64   `json:"likes,omitempty"`
	Comments       int64   `json:"comments,omitempty"`
	Shares         int64   `json:"shares,omitempty"`
	Retweets       int64   `json:"retweets,omitempty"`
	Replies        int64   `json:"replies,omitempty"`
	Quotes         int64   `json:"quotes,omitempty"`
	EngagementRate float64 `json:"engagement_rate,omitempty"`
}

// SearchRecord is one normalized result from a provider adapter.
// Immutable once produced; the aggregator owns scoring.
type SearchRecord struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	URL         string  `json:"url"`
	Snippet     string  `json:"snippet,omitempty"`
	Content     string  `json:"content,omitempty"`
	Source      string  `json:"source"`
	Platform    string  `json:"platform"`
	Author      string  `json:"author,omitempty"`
	PublishedAt string  `json:"published_at,omitempty"`
	Relevance   float64 `json:"relevance"`
	Metrics     Metrics `json:"metrics,omitempty"`
	ViralScore  float64 `json:"viral_score"`
}

// Stats summarizes one aggregated search session.
type Stats struct {
	TotalSources    int     `json:"total_sources"`
	UniqueURLs      int     `json:"unique_urls"`
	ContentChars    int     `json:"content_chars"`
	APICalls        int     `json:"api_calls_made"`
	DurationSeconds float64 `json:"search_duration"`
}

// AggregatedResult is the merged, filtered, deduplicated, scored output of one
// fan-out. Categorized by capability class, plus the viral subset.
type AggregatedResult struct {
	SessionID     string         `json:"session_id"`
	Query         string         `json:"query"`
	StartedAt     time.Time      `json:"started_at"`
	Web           []SearchRecord `json:"web_results"`
	Video         []SearchRecord `json:"video_results"`
	Social        []SearchRecord `json:"social_results"`
	Viral         []SearchRecord `json:"viral_content"`
	ProvidersUsed []string       `json:"providers_used"`
	Stats         Stats          `json:"statistics"`
}

// SearchRequest is the normalized query handed to every search adapter.
type SearchRequest struct {
	Query string
	Limit int
}

// SearchProvider is a normalizing adapter over one external search backend.
type SearchProvider interface {
	Name() string
	Search(ctx context.Context, req SearchRequest) ([]SearchRecord, error)
}

// Message is one turn of a generation conversation.
type Message struct {
	Role       string
	Content    string
	ToolCallID string
	ToolCalls  []ToolCall
}

// ToolCall is a provider's request to invoke a named tool.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// ToolSpec describes a tool offered to a generation provider.
type ToolSpec struct {
	Name        string
	Description string
	Parameters  json.RawMessage
}

// GenerationRequest is the normalized wire contract for generation providers.
type GenerationRequest struct {
	Messages    []Message
	Tools       []ToolSpec
	Temperature float64
	MaxTokens   int
}

// GenerationResponse carries either final text or a tool invocation.
type GenerationResponse struct {
	Text             string
	ToolCall         *ToolCall
	PromptTokens     int
	CompletionTokens int
}

// GenerationProvider is a normalizing adapter over one text-generation backend.
type GenerationProvider interface {
	Name() string
	Model() string
	Generate(ctx context.Context, req GenerationRequest) (GenerationResponse, error)
}

// Storage persists aggregated results and capture outcomes keyed by session.
// The engine only acts on the returned error, never on stored state.
type Storage interface {
	SaveResult(ctx context.Context, res *AggregatedResult) error
	SaveCaptures(ctx context.Context, sessionID string, results []CaptureResult) error
}

// CaptureItem is one viral URL handed to the browser-capture service.
type CaptureItem struct {
	URL        string  `json:"url"`
	Platform   string  `json:"platform"`
	Title      string  `json:"title,omitempty"`
	ViralScore float64 `json:"viral_score"`
}

// CaptureResult reports one capture attempt.
type CaptureResult struct {
	URL        string    `json:"url"`
	Success    bool      `json:"success"`
	Path       string    `json:"path,omitempty"`
	Text       string    `json:"text,omitempty"`
	Error      string    `json:"error,omitempty"`
	CapturedAt time.Time `json:"captured_at"`
}

// CaptureService screenshots viral URLs. Fire-and-forget enrichment: the
// engine never blocks a search result on it.
type CaptureService interface {
	Capture(ctx context.Context, sessionID string, items []CaptureItem) []CaptureResult
}
