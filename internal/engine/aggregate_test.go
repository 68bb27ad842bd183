package engine

import (
	"strings"
	"testing"
	"time"
)

func testAggregator(extra []string) *Aggregator {
	return NewAggregator(NewBlocklist(extra), 300, 2000, 10, testLogger())
}

func TestAggregateFiltersSimulatedContent(t *testing.T) {
	fr := &FanoutResult{
		StartedAt: time.Now(),
		Web: []SearchRecord{
			{Title: "Exemplo Produto", URL: "https://a.example.dev/1", Relevance: 0.9},
			{Title: "Real trend report", URL: "https://news.site/1", Relevance: 0.9},
		},
	}
	res := testAggregator(nil).Aggregate("q", "s1", fr)
	if len(res.Web) != 1 {
		t.Fatalf("expected 1 surviving record, got %d", len(res.Web))
	}
	if res.Web[0].Title != "Real trend report" {
		t.Fatalf("expected the real record to survive, got %q", res.Web[0].Title)
	}
}

func TestBlocklistMarkers(t *testing.T) {
	markers := []string{"example", "exemplo", "sample", "test", "mock", "demo",
		"placeholder", "lorem ipsum", "fake", "dummy", "template"}
	bl := NewBlocklist(nil)
	for _, m := range markers {
		rec := SearchRecord{Title: "Breaking: " + strings.ToUpper(m) + " spotted", URL: "https://real.site/x"}
		if !bl.Matches(&rec) {
			t.Fatalf("expected marker %q to match case-insensitively", m)
		}
	}
	clean := SearchRecord{Title: "Novo produto lancado", URL: "https://real.site/y", Content: "cobertura completa"}
	if bl.Matches(&clean) {
		t.Fatalf("expected clean record to pass")
	}
}

func TestBlocklistMatchesURLAndContent(t *testing.T) {
	bl := NewBlocklist(nil)
	byURL := SearchRecord{Title: "Fine", URL: "https://site.dev/placeholder/page"}
	if !bl.Matches(&byURL) {
		t.Fatalf("expected URL marker to match")
	}
	byContent := SearchRecord{Title: "Fine", URL: "https://site.dev/ok", Content: "this is lorem ipsum filler"}
	if !bl.Matches(&byContent) {
		t.Fatalf("expected content marker to match")
	}
}

func TestBlocklistExtras(t *testing.T) {
	bl := NewBlocklist([]string{"  Spam  ", ""})
	rec := SearchRecord{Title: "total SPAM post", URL: "https://site.dev/1"}
	if !bl.Matches(&rec) {
		t.Fatalf("expected extra marker to match after trim and lower")
	}
}

func TestAggregateDedupFirstWins(t *testing.T) {
	fr := &FanoutResult{
		StartedAt: time.Now(),
		Web: []SearchRecord{
			{Title: "from serper", URL: "https://news.site/1", Source: "serper"},
			{Title: "from google", URL: "https://news.site/1", Source: "google"},
		},
		Video: []SearchRecord{
			{Title: "same url again", URL: "https://news.site/1", Source: "youtube", Platform: "youtube"},
		},
	}
	res := testAggregator(nil).Aggregate("q", "s1", fr)
	if len(res.Web) != 1 || len(res.Video) != 0 {
		t.Fatalf("expected first occurrence to win across buckets, web=%d video=%d", len(res.Web), len(res.Video))
	}
	if res.Web[0].Source != "serper" {
		t.Fatalf("expected the serper record kept, got %q", res.Web[0].Source)
	}
	if res.Stats.TotalSources != 3 || res.Stats.UniqueURLs != 1 {
		t.Fatalf("expected total=3 unique=1, got total=%d unique=%d", res.Stats.TotalSources, res.Stats.UniqueURLs)
	}
}

func TestAggregateKeepsRecordsWithoutURL(t *testing.T) {
	fr := &FanoutResult{
		StartedAt: time.Now(),
		Web: []SearchRecord{
			{Title: "no url one"},
			{Title: "no url two"},
		},
	}
	res := testAggregator(nil).Aggregate("q", "s1", fr)
	if len(res.Web) != 2 {
		t.Fatalf("expected url-less records to pass dedup, got %d", len(res.Web))
	}
}

func TestAggregateTruncation(t *testing.T) {
	long := strings.Repeat("x", 5000)
	fr := &FanoutResult{
		StartedAt: time.Now(),
		Web: []SearchRecord{
			{Title: "big record", URL: "https://news.site/big", Snippet: long, Content: long},
		},
	}
	res := testAggregator(nil).Aggregate("q", "s1", fr)
	rec := res.Web[0]
	if len([]rune(rec.Snippet)) != 303 {
		t.Fatalf("expected snippet capped at 300 runes plus ellipsis, got %d", len([]rune(rec.Snippet)))
	}
	if !strings.HasSuffix(rec.Snippet, "...") {
		t.Fatalf("expected truncated snippet to end with ellipsis")
	}
	if len([]rune(rec.Content)) != 2003 {
		t.Fatalf("expected content capped at 2000 runes plus ellipsis, got %d", len([]rune(rec.Content)))
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("short", 300); got != "short" {
		t.Fatalf("expected pass-through, got %q", got)
	}
	if got := Truncate("abcdef", 3); got != "abc..." {
		t.Fatalf("expected abc..., got %q", got)
	}
	if got := Truncate("não há nada aqui", 6); got != "não há..." {
		t.Fatalf("expected rune-safe cut, got %q", got)
	}
	if got := Truncate("anything", 0); got != "anything" {
		t.Fatalf("expected n<=0 to leave the string alone, got %q", got)
	}
}

func TestAggregateScoresAndViral(t *testing.T) {
	fr := &FanoutResult{
		StartedAt: time.Now().Add(-2 * time.Second),
		APICalls:  4,
		Providers: []string{"serper", "youtube"},
		Web: []SearchRecord{
			{Title: "plain page", URL: "https://news.site/1", Relevance: 0.5},
		},
		Video: []SearchRecord{
			{Title: "hot video", URL: "https://video.site/1", Platform: "youtube",
				Metrics: Metrics{Views: 1_000_000, Likes: 50_000, Comments: 5_000}},
		},
	}
	res := testAggregator(nil).Aggregate("q", "s1", fr)
	if len(res.Viral) == 0 {
		t.Fatalf("expected viral shortlist")
	}
	if res.Viral[0].URL != "https://video.site/1" || res.Viral[0].ViralScore != 10.0 {
		t.Fatalf("expected the video on top with score 10.0, got %+v", res.Viral[0])
	}
	if res.Stats.APICalls != 4 {
		t.Fatalf("expected api calls carried through, got %d", res.Stats.APICalls)
	}
	if res.Stats.DurationSeconds < 2 {
		t.Fatalf("expected duration measured from fan-out start, got %v", res.Stats.DurationSeconds)
	}
	if len(res.ProvidersUsed) != 2 {
		t.Fatalf("expected providers carried through, got %v", res.ProvidersUsed)
	}
}
