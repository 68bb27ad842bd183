package engine

import (
	"log"
	"strings"
	"time"
)

// defaultMarkers flag records that are simulated or boilerplate rather than
// real published content. Matching is case-insensitive substring over the
// title, content and URL.
var defaultMarkers = []string{
	"example",
	"exemplo",
	"sample",
	"test",
	"mock",
	"demo",
	"placeholder",
	"lorem ipsum",
	"fake",
	"dummy",
	"template",
}

// Blocklist holds lowercase markers used to drop simulated content.
type Blocklist []string

// NewBlocklist returns the default markers plus any extras from config.
func NewBlocklist(extra []string) Blocklist {
	markers := make(Blocklist, 0, len(defaultMarkers)+len(extra))
	markers = append(markers, defaultMarkers...)
	for _, m := range extra {
		m = strings.ToLower(strings.TrimSpace(m))
		if m != "" {
			markers = append(markers, m)
		}
	}
	return markers
}

// Matches reports whether the record trips any marker.
func (b Blocklist) Matches(rec *SearchRecord) bool {
	haystack := strings.ToLower(rec.Title + " " + rec.Content + " " + rec.URL)
	for _, m := range b {
		if strings.Contains(haystack, m) {
			return true
		}
	}
	return false
}

// Aggregator folds fan-out output into a single result: it drops simulated
// content, deduplicates by URL keeping the first occurrence, truncates
// oversized fields, scores every record and selects the viral shortlist.
type Aggregator struct {
	blocklist  Blocklist
	snippetMax int
	contentMax int
	viralTop   int
	logger     *log.Logger
}

func NewAggregator(blocklist Blocklist, snippetMax, contentMax, viralTop int, logger *log.Logger) *Aggregator {
	if logger == nil {
		logger = log.New(log.Writer(), "[ORCH] ", log.LstdFlags)
	}
	return &Aggregator{
		blocklist:  blocklist,
		snippetMax: snippetMax,
		contentMax: contentMax,
		viralTop:   viralTop,
		logger:     logger,
	}
}

// Aggregate builds the final result for a session from raw fan-out output.
func (a *Aggregator) Aggregate(query, sessionID string, fr *FanoutResult) *AggregatedResult {
	web := a.filter(fr.Web)
	video := a.filter(fr.Video)
	social := a.filter(fr.Social)
	total := len(web) + len(video) + len(social)
	dropped := len(fr.Web) + len(fr.Video) + len(fr.Social) - total

	seen := make(map[string]bool, total)
	web = dedup(web, seen)
	video = dedup(video, seen)
	social = dedup(social, seen)

	contentChars := 0
	all := make([]SearchRecord, 0, len(web)+len(video)+len(social))
	for _, bucket := range [][]SearchRecord{web, video, social} {
		for i := range bucket {
			bucket[i].Snippet = Truncate(bucket[i].Snippet, a.snippetMax)
			bucket[i].Content = Truncate(bucket[i].Content, a.contentMax)
			ScoreRecord(&bucket[i])
			contentChars += len(bucket[i].Content)
		}
		all = append(all, bucket...)
	}

	res := &AggregatedResult{
		SessionID:     sessionID,
		Query:         query,
		StartedAt:     fr.StartedAt,
		Web:           web,
		Video:         video,
		Social:        social,
		Viral:         TopViral(all, a.viralTop),
		ProvidersUsed: fr.Providers,
		Stats: Stats{
			TotalSources:    total,
			UniqueURLs:      len(all),
			ContentChars:    contentChars,
			APICalls:        fr.APICalls,
			DurationSeconds: time.Since(fr.StartedAt).Seconds(),
		},
	}
	a.logger.Printf("aggregated session=%s sources=%d unique=%d viral=%d dropped=%d providers=%v",
		sessionID, total, len(all), len(res.Viral), dropped, fr.Providers)
	return res
}

func (a *Aggregator) filter(records []SearchRecord) []SearchRecord {
	kept := records[:0:0]
	for _, r := range records {
		if !a.blocklist.Matches(&r) {
			kept = append(kept, r)
		}
	}
	return kept
}

// dedup keeps the first record per URL, preserving order. Records without a
// URL cannot collide and pass through.
func dedup(records []SearchRecord, seen map[string]bool) []SearchRecord {
	kept := records[:0:0]
	for _, r := range records {
		if r.URL != "" {
			if seen[r.URL] {
				continue
			}
			seen[r.URL] = true
		}
		kept = append(kept, r)
	}
	return kept
}

// Truncate cuts s to at most n runes, appending an ellipsis when it cut.
// n <= 0 leaves s untouched.
func Truncate(s string, n int) string {
	if n <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
