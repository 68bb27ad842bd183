package providers

import (
	"context"
	"net/http"

	"github.com/mohammad-safakhou/trender/internal/engine"
)

const exaDefaultURL = "https://api.exa.ai/search"

type ExaConfig struct {
	BaseURL            string
	QueryHint          string
	Limit              int
	IncludeDomains     []string
	StartPublishedDate string
}

// Exa runs neural semantic search at exa.ai.
type Exa struct {
	pool  *engine.CredentialPool
	httpc *engine.HTTPClient
	cfg   ExaConfig
}

func NewExa(pool *engine.CredentialPool, httpc *engine.HTTPClient, cfg ExaConfig) *Exa {
	if cfg.BaseURL == "" {
		cfg.BaseURL = exaDefaultURL
	}
	if cfg.Limit <= 0 {
		cfg.Limit = 10
	}
	return &Exa{pool: pool, httpc: httpc, cfg: cfg}
}

func (e *Exa) Name() string { return "exa" }

func (e *Exa) Search(ctx context.Context, req engine.SearchRequest) ([]engine.SearchRecord, error) {
	limit := req.Limit
	if limit <= 0 || limit > e.cfg.Limit {
		limit = e.cfg.Limit
	}
	body := map[string]interface{}{
		"query":         decorateQuery(req.Query, e.cfg.QueryHint),
		"numResults":    limit,
		"useAutoprompt": true,
		"type":          "neural",
	}
	if len(e.cfg.IncludeDomains) > 0 {
		body["includeDomains"] = e.cfg.IncludeDomains
	}
	if e.cfg.StartPublishedDate != "" {
		body["startPublishedDate"] = e.cfg.StartPublishedDate
	}
	headers := map[string]string{"x-api-key": e.pool.Next()}

	var out struct {
		Results []struct {
			Title         string  `json:"title"`
			URL           string  `json:"url"`
			Text          string  `json:"text"`
			Score         float64 `json:"score"`
			PublishedDate string  `json:"publishedDate"`
			Author        string  `json:"author"`
		} `json:"results"`
	}
	if err := e.httpc.DoJSON(ctx, http.MethodPost, e.cfg.BaseURL, headers, body, &out); err != nil {
		return nil, err
	}

	records := make([]engine.SearchRecord, 0, len(out.Results))
	for _, item := range out.Results {
		if item.URL == "" {
			continue
		}
		relevance := item.Score
		if relevance <= 0 {
			relevance = 0.8
		}
		records = append(records, engine.SearchRecord{
			Title:       item.Title,
			URL:         item.URL,
			Snippet:     engine.Truncate(item.Text, 300),
			Content:     item.Text,
			Source:      e.Name(),
			Platform:    "web",
			Author:      item.Author,
			PublishedAt: item.PublishedDate,
			Relevance:   relevance,
		})
	}
	return records, nil
}
