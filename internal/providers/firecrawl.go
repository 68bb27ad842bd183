package providers

import (
	"context"
	"errors"
	"net/http"

	"github.com/mohammad-safakhou/trender/internal/engine"
)

const firecrawlDefaultURL = "https://api.firecrawl.dev"

type FirecrawlConfig struct {
	BaseURL     string
	QueryHint   string
	Limit       int
	ScrapeLimit int
}

// Firecrawl is a two-stage adapter: search for candidate URLs, then scrape
// the top ones to markdown and parse records out of the page text. The whole
// run spends a single credential.
type Firecrawl struct {
	pool  *engine.CredentialPool
	httpc *engine.HTTPClient
	cfg   FirecrawlConfig
}

func NewFirecrawl(pool *engine.CredentialPool, httpc *engine.HTTPClient, cfg FirecrawlConfig) *Firecrawl {
	if cfg.BaseURL == "" {
		cfg.BaseURL = firecrawlDefaultURL
	}
	if cfg.Limit <= 0 {
		cfg.Limit = 5
	}
	if cfg.ScrapeLimit <= 0 {
		cfg.ScrapeLimit = 3
	}
	return &Firecrawl{pool: pool, httpc: httpc, cfg: cfg}
}

func (f *Firecrawl) Name() string { return "firecrawl" }

func (f *Firecrawl) Search(ctx context.Context, req engine.SearchRequest) ([]engine.SearchRecord, error) {
	headers := map[string]string{"Authorization": "Bearer " + f.pool.Next()}

	var search struct {
		Success bool `json:"success"`
		Data    []struct {
			URL string `json:"url"`
		} `json:"data"`
	}
	body := map[string]interface{}{
		"query": decorateQuery(req.Query, f.cfg.QueryHint),
		"limit": f.cfg.Limit,
	}
	if err := f.httpc.DoJSON(ctx, http.MethodPost, f.cfg.BaseURL+"/v1/search", headers, body, &search); err != nil {
		return nil, err
	}

	var records []engine.SearchRecord
	scraped := 0
	for _, item := range search.Data {
		if item.URL == "" {
			continue
		}
		if scraped == f.cfg.ScrapeLimit {
			break
		}
		scraped++

		var scrape struct {
			Success bool `json:"success"`
			Data    struct {
				Markdown string `json:"markdown"`
			} `json:"data"`
		}
		scrapeBody := map[string]interface{}{
			"url":             item.URL,
			"formats":         []string{"markdown"},
			"onlyMainContent": true,
			"includeTags":     []string{"p", "h1", "h2", "h3", "article"},
			"excludeTags":     []string{"nav", "footer", "header", "aside"},
		}
		if err := f.httpc.DoJSON(ctx, http.MethodPost, f.cfg.BaseURL+"/v1/scrape", headers, scrapeBody, &scrape); err != nil {
			// A depleted plan or rate limit affects every remaining scrape,
			// so surface it. A single bad page does not.
			var statusErr *engine.HTTPStatusError
			if errors.As(err, &statusErr) && (statusErr.Status == http.StatusPaymentRequired || statusErr.Status == http.StatusTooManyRequests) {
				return nil, err
			}
			if ctx.Err() != nil {
				return nil, err
			}
			continue
		}
		if len(scrape.Data.Markdown) < 500 {
			continue
		}
		records = append(records, parseContentRecords(scrape.Data.Markdown, f.Name(), item.URL, 0)...)
	}
	return records, nil
}
