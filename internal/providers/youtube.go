package providers

import (
	"context"
	"net/http"
	"net/url"
	"sort"
	"strconv"

	"github.com/mohammad-safakhou/trender/internal/engine"
)

const youtubeDefaultURL = "https://www.googleapis.com/youtube/v3"

type YouTubeConfig struct {
	BaseURL        string
	QueryHint      string
	Limit          int
	RegionCode     string
	Language       string
	PublishedAfter string
}

// YouTube searches the Data API ordered by view count and joins per-video
// statistics so records carry engagement metrics.
type YouTube struct {
	pool  *engine.CredentialPool
	httpc *engine.HTTPClient
	cfg   YouTubeConfig
}

func NewYouTube(pool *engine.CredentialPool, httpc *engine.HTTPClient, cfg YouTubeConfig) *YouTube {
	if cfg.BaseURL == "" {
		cfg.BaseURL = youtubeDefaultURL
	}
	if cfg.Limit <= 0 || cfg.Limit > 25 {
		cfg.Limit = 25
	}
	if cfg.RegionCode == "" {
		cfg.RegionCode = "BR"
	}
	if cfg.Language == "" {
		cfg.Language = "pt"
	}
	if cfg.PublishedAfter == "" {
		cfg.PublishedAfter = "2023-01-01T00:00:00Z"
	}
	return &YouTube{pool: pool, httpc: httpc, cfg: cfg}
}

func (y *YouTube) Name() string { return "youtube" }

func (y *YouTube) Search(ctx context.Context, req engine.SearchRequest) ([]engine.SearchRecord, error) {
	limit := req.Limit
	if limit <= 0 || limit > y.cfg.Limit {
		limit = y.cfg.Limit
	}
	key := y.pool.Next()

	params := url.Values{}
	params.Set("part", "snippet,id")
	params.Set("q", decorateQuery(req.Query, y.cfg.QueryHint))
	params.Set("key", key)
	params.Set("maxResults", strconv.Itoa(limit))
	params.Set("order", "viewCount")
	params.Set("type", "video")
	params.Set("regionCode", y.cfg.RegionCode)
	params.Set("relevanceLanguage", y.cfg.Language)
	params.Set("publishedAfter", y.cfg.PublishedAfter)

	var out struct {
		Items []struct {
			ID struct {
				VideoID string `json:"videoId"`
			} `json:"id"`
			Snippet struct {
				Title        string `json:"title"`
				Description  string `json:"description"`
				ChannelTitle string `json:"channelTitle"`
				PublishedAt  string `json:"publishedAt"`
			} `json:"snippet"`
		} `json:"items"`
	}
	if err := y.httpc.DoJSON(ctx, http.MethodGet, y.cfg.BaseURL+"/search?"+params.Encode(), nil, nil, &out); err != nil {
		return nil, err
	}

	records := make([]engine.SearchRecord, 0, len(out.Items))
	for _, item := range out.Items {
		if item.ID.VideoID == "" {
			continue
		}
		metrics := y.videoStats(ctx, item.ID.VideoID, key)
		rec := engine.SearchRecord{
			ID:          item.ID.VideoID,
			Title:       item.Snippet.Title,
			URL:         "https://www.youtube.com/watch?v=" + item.ID.VideoID,
			Snippet:     item.Snippet.Description,
			Source:      y.Name(),
			Platform:    "youtube",
			Author:      item.Snippet.ChannelTitle,
			PublishedAt: item.Snippet.PublishedAt,
			Relevance:   0.85,
			Metrics:     metrics,
		}
		engine.ScoreRecord(&rec)
		records = append(records, rec)
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].ViralScore > records[j].ViralScore
	})
	return records, nil
}

// videoStats joins statistics for one video with the same credential as the
// search call. The API returns counters as JSON strings. Failures degrade to
// zero metrics rather than failing the whole search.
func (y *YouTube) videoStats(ctx context.Context, videoID, key string) engine.Metrics {
	params := url.Values{}
	params.Set("part", "statistics")
	params.Set("id", videoID)
	params.Set("key", key)

	var out struct {
		Items []struct {
			Statistics struct {
				ViewCount    string `json:"viewCount"`
				LikeCount    string `json:"likeCount"`
				CommentCount string `json:"commentCount"`
			} `json:"statistics"`
		} `json:"items"`
	}
	if err := y.httpc.DoJSON(ctx, http.MethodGet, y.cfg.BaseURL+"/videos?"+params.Encode(), nil, nil, &out); err != nil {
		return engine.Metrics{}
	}
	if len(out.Items) == 0 {
		return engine.Metrics{}
	}
	stats := out.Items[0].Statistics
	return engine.Metrics{
		Views:    parseCount(stats.ViewCount),
		Likes:    parseCount(stats.LikeCount),
		Comments: parseCount(stats.CommentCount),
	}
}

func parseCount(s string) int64 {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
