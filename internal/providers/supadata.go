package providers

import (
	"context"
	"net/http"

	"github.com/mohammad-safakhou/trender/internal/engine"
)

const supadataDefaultURL = "https://api.supadata.ai/v1/search"

type SupadataConfig struct {
	BaseURL   string
	QueryHint string
	Limit     int
	Platforms []string
}

// Supadata searches feed platforms (Instagram, Facebook, TikTok) through the
// supadata social-search RPC and keeps the engagement metrics on each post.
type Supadata struct {
	pool  *engine.CredentialPool
	httpc *engine.HTTPClient
	cfg   SupadataConfig
}

func NewSupadata(pool *engine.CredentialPool, httpc *engine.HTTPClient, cfg SupadataConfig) *Supadata {
	if cfg.BaseURL == "" {
		cfg.BaseURL = supadataDefaultURL
	}
	if cfg.Limit <= 0 {
		cfg.Limit = 50
	}
	if len(cfg.Platforms) == 0 {
		cfg.Platforms = []string{"instagram", "facebook", "tiktok"}
	}
	return &Supadata{pool: pool, httpc: httpc, cfg: cfg}
}

func (s *Supadata) Name() string { return "supadata" }

func (s *Supadata) Search(ctx context.Context, req engine.SearchRequest) ([]engine.SearchRecord, error) {
	body := map[string]interface{}{
		"method": "social_search",
		"params": map[string]interface{}{
			"query":           decorateQuery(req.Query, s.cfg.QueryHint),
			"platforms":       s.cfg.Platforms,
			"limit":           s.cfg.Limit,
			"sort_by":         "engagement",
			"include_metrics": true,
		},
	}
	headers := map[string]string{"Authorization": "Bearer " + s.pool.Next()}

	var out struct {
		Result struct {
			Posts []struct {
				Caption        string  `json:"caption"`
				URL            string  `json:"url"`
				Platform       string  `json:"platform"`
				Author         string  `json:"author"`
				PublishedAt    string  `json:"published_at"`
				Likes          int64   `json:"likes"`
				Comments       int64   `json:"comments"`
				Shares         int64   `json:"shares"`
				EngagementRate float64 `json:"engagement_rate"`
			} `json:"posts"`
		} `json:"result"`
	}
	if err := s.httpc.DoJSON(ctx, http.MethodPost, s.cfg.BaseURL, headers, body, &out); err != nil {
		return nil, err
	}

	records := make([]engine.SearchRecord, 0, len(out.Result.Posts))
	for _, post := range out.Result.Posts {
		if post.URL == "" {
			continue
		}
		platform := post.Platform
		if platform == "" {
			platform = "social"
		}
		rec := engine.SearchRecord{
			Title:       engine.Truncate(post.Caption, 100),
			URL:         post.URL,
			Content:     post.Caption,
			Source:      s.Name(),
			Platform:    platform,
			Author:      post.Author,
			PublishedAt: post.PublishedAt,
			Relevance:   0.8,
			Metrics: engine.Metrics{
				Likes:          post.Likes,
				Comments:       post.Comments,
				Shares:         post.Shares,
				EngagementRate: post.EngagementRate,
			},
		}
		engine.ScoreRecord(&rec)
		records = append(records, rec)
	}
	return records, nil
}
