package providers

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/mohammad-safakhou/trender/internal/engine"
)

const (
	jinaDefaultURL    = "https://r.jina.ai"
	jinaDefaultTarget = "https://www.google.com/search?q=%s"
)

type JinaConfig struct {
	BaseURL   string
	Target    string
	QueryHint string
}

// Jina fetches a rendered search page through the r.jina.ai reader and mines
// records out of the returned plain text.
type Jina struct {
	pool  *engine.CredentialPool
	httpc *engine.HTTPClient
	cfg   JinaConfig
}

func NewJina(pool *engine.CredentialPool, httpc *engine.HTTPClient, cfg JinaConfig) *Jina {
	if cfg.BaseURL == "" {
		cfg.BaseURL = jinaDefaultURL
	}
	if cfg.Target == "" {
		cfg.Target = jinaDefaultTarget
	}
	return &Jina{pool: pool, httpc: httpc, cfg: cfg}
}

func (j *Jina) Name() string { return "jina" }

func (j *Jina) Search(ctx context.Context, req engine.SearchRequest) ([]engine.SearchRecord, error) {
	query := decorateQuery(req.Query, j.cfg.QueryHint)
	target := fmt.Sprintf(j.cfg.Target, url.QueryEscape(query))
	headers := map[string]string{
		"Authorization": "Bearer " + j.pool.Next(),
		"Accept":        "text/plain",
	}

	content, err := j.httpc.GetText(ctx, strings.TrimRight(j.cfg.BaseURL, "/")+"/"+target, headers, 0)
	if err != nil {
		return nil, err
	}
	if runeLen(content) <= 100 {
		return nil, nil
	}

	records := []engine.SearchRecord{{
		Title:     "Live search overview: " + req.Query,
		URL:       target,
		Snippet:   engine.Truncate(content, 300),
		Content:   engine.Truncate(content, 2000),
		Source:    j.Name(),
		Platform:  "web",
		Relevance: 0.8,
	}}
	return append(records, parseContentRecords(content, j.Name(), target, 0)...), nil
}
