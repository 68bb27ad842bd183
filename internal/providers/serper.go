package providers

import (
	"context"
	"net/http"

	"github.com/mohammad-safakhou/trender/internal/engine"
)

const serperDefaultURL = "https://google.serper.dev/search"

type SerperConfig struct {
	BaseURL   string
	Region    string
	Language  string
	QueryHint string
	Limit     int
}

// Serper is the Google results wrapper at serper.dev.
type Serper struct {
	pool  *engine.CredentialPool
	httpc *engine.HTTPClient
	cfg   SerperConfig
}

func NewSerper(pool *engine.CredentialPool, httpc *engine.HTTPClient, cfg SerperConfig) *Serper {
	if cfg.BaseURL == "" {
		cfg.BaseURL = serperDefaultURL
	}
	if cfg.Limit <= 0 {
		cfg.Limit = 10
	}
	return &Serper{pool: pool, httpc: httpc, cfg: cfg}
}

func (s *Serper) Name() string { return "serper" }

func (s *Serper) Search(ctx context.Context, req engine.SearchRequest) ([]engine.SearchRecord, error) {
	limit := req.Limit
	if limit <= 0 || limit > s.cfg.Limit {
		limit = s.cfg.Limit
	}
	body := map[string]interface{}{
		"q":           decorateQuery(req.Query, s.cfg.QueryHint),
		"gl":          s.cfg.Region,
		"hl":          s.cfg.Language,
		"num":         limit,
		"autocorrect": true,
	}
	headers := map[string]string{"X-API-KEY": s.pool.Next()}

	var out struct {
		Organic []struct {
			Title    string `json:"title"`
			Link     string `json:"link"`
			Snippet  string `json:"snippet"`
			Position int    `json:"position"`
		} `json:"organic"`
	}
	if err := s.httpc.DoJSON(ctx, http.MethodPost, s.cfg.BaseURL, headers, body, &out); err != nil {
		return nil, err
	}

	records := make([]engine.SearchRecord, 0, len(out.Organic))
	for _, item := range out.Organic {
		if item.Link == "" {
			continue
		}
		records = append(records, engine.SearchRecord{
			Title:     item.Title,
			URL:       item.Link,
			Snippet:   item.Snippet,
			Source:    s.Name(),
			Platform:  "web",
			Relevance: 0.85,
		})
	}
	return records, nil
}
