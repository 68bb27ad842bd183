package providers

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/mohammad-safakhou/trender/internal/engine"
)

const googleCSEDefaultURL = "https://www.googleapis.com/customsearch/v1"

type GoogleCSEConfig struct {
	BaseURL      string
	CSEID        string
	Region       string
	Language     string
	QueryHint    string
	Limit        int
	DateRestrict string
}

// GoogleCSE queries the Google Custom Search JSON API. It needs a search
// engine ID besides the key pool.
type GoogleCSE struct {
	pool  *engine.CredentialPool
	httpc *engine.HTTPClient
	cfg   GoogleCSEConfig
}

func NewGoogleCSE(pool *engine.CredentialPool, httpc *engine.HTTPClient, cfg GoogleCSEConfig) *GoogleCSE {
	if cfg.BaseURL == "" {
		cfg.BaseURL = googleCSEDefaultURL
	}
	if cfg.Limit <= 0 || cfg.Limit > 10 {
		cfg.Limit = 10
	}
	if cfg.DateRestrict == "" {
		cfg.DateRestrict = "m6"
	}
	return &GoogleCSE{pool: pool, httpc: httpc, cfg: cfg}
}

func (g *GoogleCSE) Name() string { return "google" }

func (g *GoogleCSE) Search(ctx context.Context, req engine.SearchRequest) ([]engine.SearchRecord, error) {
	limit := req.Limit
	if limit <= 0 || limit > g.cfg.Limit {
		limit = g.cfg.Limit
	}
	params := url.Values{}
	params.Set("key", g.pool.Next())
	params.Set("cx", g.cfg.CSEID)
	params.Set("q", decorateQuery(req.Query, g.cfg.QueryHint))
	params.Set("num", strconv.Itoa(limit))
	params.Set("lr", "lang_"+g.cfg.Language)
	params.Set("gl", g.cfg.Region)
	params.Set("safe", "off")
	params.Set("dateRestrict", g.cfg.DateRestrict)

	var out struct {
		Items []struct {
			Title   string `json:"title"`
			Link    string `json:"link"`
			Snippet string `json:"snippet"`
			Pagemap struct {
				Metatags []map[string]string `json:"metatags"`
			} `json:"pagemap"`
		} `json:"items"`
	}
	if err := g.httpc.DoJSON(ctx, http.MethodGet, g.cfg.BaseURL+"?"+params.Encode(), nil, nil, &out); err != nil {
		return nil, err
	}

	records := make([]engine.SearchRecord, 0, len(out.Items))
	for _, item := range out.Items {
		if item.Link == "" {
			continue
		}
		published := ""
		if len(item.Pagemap.Metatags) > 0 {
			published = item.Pagemap.Metatags[0]["article:published_time"]
		}
		records = append(records, engine.SearchRecord{
			Title:       item.Title,
			URL:         item.Link,
			Snippet:     item.Snippet,
			Source:      g.Name(),
			Platform:    "web",
			PublishedAt: published,
			Relevance:   0.9,
		})
	}
	return records, nil
}
