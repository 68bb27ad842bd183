package providers

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/mohammad-safakhou/trender/internal/engine"
)

const xDefaultURL = "https://api.twitter.com/2"

type XConfig struct {
	BaseURL string
	Lang    string
	Limit   int
}

// X searches recent posts on X (Twitter API v2) with public metrics and
// resolves authors from the user expansion.
type X struct {
	pool  *engine.CredentialPool
	httpc *engine.HTTPClient
	cfg   XConfig
}

func NewX(pool *engine.CredentialPool, httpc *engine.HTTPClient, cfg XConfig) *X {
	if cfg.BaseURL == "" {
		cfg.BaseURL = xDefaultURL
	}
	if cfg.Limit <= 0 || cfg.Limit > 100 {
		cfg.Limit = 50
	}
	return &X{pool: pool, httpc: httpc, cfg: cfg}
}

func (x *X) Name() string { return "x" }

func (x *X) Search(ctx context.Context, req engine.SearchRequest) ([]engine.SearchRecord, error) {
	query := req.Query
	if x.cfg.Lang != "" {
		query += " lang:" + x.cfg.Lang
	}
	params := url.Values{}
	params.Set("query", query)
	params.Set("max_results", strconv.Itoa(x.cfg.Limit))
	params.Set("tweet.fields", "public_metrics,created_at,author_id")
	params.Set("user.fields", "username,verified,public_metrics")
	params.Set("expansions", "author_id")
	headers := map[string]string{"Authorization": "Bearer " + x.pool.Next()}

	var out struct {
		Data []struct {
			ID            string `json:"id"`
			Text          string `json:"text"`
			AuthorID      string `json:"author_id"`
			CreatedAt     string `json:"created_at"`
			PublicMetrics struct {
				RetweetCount int64 `json:"retweet_count"`
				ReplyCount   int64 `json:"reply_count"`
				LikeCount    int64 `json:"like_count"`
				QuoteCount   int64 `json:"quote_count"`
			} `json:"public_metrics"`
		} `json:"data"`
		Includes struct {
			Users []struct {
				ID       string `json:"id"`
				Username string `json:"username"`
			} `json:"users"`
		} `json:"includes"`
	}
	if err := x.httpc.DoJSON(ctx, http.MethodGet, x.cfg.BaseURL+"/tweets/search/recent?"+params.Encode(), headers, nil, &out); err != nil {
		return nil, err
	}

	users := make(map[string]string, len(out.Includes.Users))
	for _, u := range out.Includes.Users {
		users[u.ID] = u.Username
	}

	records := make([]engine.SearchRecord, 0, len(out.Data))
	for _, tweet := range out.Data {
		if tweet.ID == "" {
			continue
		}
		rec := engine.SearchRecord{
			ID:          tweet.ID,
			Title:       engine.Truncate(tweet.Text, 100),
			URL:         "https://twitter.com/i/status/" + tweet.ID,
			Content:     tweet.Text,
			Source:      x.Name(),
			Platform:    "twitter",
			Author:      users[tweet.AuthorID],
			PublishedAt: tweet.CreatedAt,
			Relevance:   0.75,
			Metrics: engine.Metrics{
				Retweets: tweet.PublicMetrics.RetweetCount,
				Likes:    tweet.PublicMetrics.LikeCount,
				Replies:  tweet.PublicMetrics.ReplyCount,
				Quotes:   tweet.PublicMetrics.QuoteCount,
			},
		}
		engine.ScoreRecord(&rec)
		records = append(records, rec)
	}
	return records, nil
}
