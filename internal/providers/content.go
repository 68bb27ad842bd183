// Package providers contains the concrete search adapters. Each adapter owns
// its credential pool, speaks one upstream wire format and normalizes output
// into engine.SearchRecord.
package providers

import (
	"strings"

	"github.com/mohammad-safakhou/trender/internal/engine"
)

// contentMarkers drop obviously simulated lines during raw-content parsing.
// The aggregator applies the full blocklist later; this early pass just keeps
// the parser from building records around boilerplate.
var contentMarkers = []string{"exemplo", "sample", "test", "mock"}

var titleMarkers = []string{"exemplo", "sample", "test", "mock", "demo"}

// decorateQuery appends the configured regional hint to a query.
func decorateQuery(query, hint string) string {
	hint = strings.TrimSpace(hint)
	if hint == "" {
		return query
	}
	return strings.TrimSpace(query) + " " + hint
}

// parseContentRecords extracts search records from scraped page text. The
// format is loose: a long line without a URL shape starts a record, an
// http/www line attaches the URL, a medium line becomes the snippet. Records
// with short or simulated titles are dropped. sourceURL backfills records the
// page text gave no URL for.
func parseContentRecords(content, source, sourceURL string, limit int) []engine.SearchRecord {
	if limit <= 0 {
		limit = 15
	}
	if strings.TrimSpace(content) == "" {
		return nil
	}

	var records []engine.SearchRecord
	var current *engine.SearchRecord
	flush := func() {
		if current != nil && current.Title != "" {
			records = append(records, *current)
		}
		current = nil
	}

	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		switch {
		case isTitleLine(line):
			flush()
			current = &engine.SearchRecord{
				Title:     line,
				Source:    source,
				Platform:  "web",
				Relevance: 0.8,
			}
		case strings.HasPrefix(line, "http") || strings.HasPrefix(line, "www"):
			if current != nil {
				current.URL = line
			}
		case runeLen(line) >= 50 && runeLen(line) <= 200 && current != nil:
			if !containsAny(strings.ToLower(line), contentMarkers) {
				current.Snippet = line
			}
		}
	}
	flush()

	kept := records[:0]
	for _, r := range records {
		if runeLen(r.Title) <= 10 || containsAny(strings.ToLower(r.Title), titleMarkers) {
			continue
		}
		if r.URL == "" {
			r.URL = sourceURL
		}
		kept = append(kept, r)
		if len(kept) == limit {
			break
		}
	}
	return kept
}

// isTitleLine treats a line as a heading when it is long enough and does not
// look like a URL or a domain fragment.
func isTitleLine(line string) bool {
	if runeLen(line) <= 20 {
		return false
	}
	if strings.HasPrefix(line, "http") || strings.HasPrefix(line, "www") {
		return false
	}
	head := line
	if len(head) > 10 {
		head = head[:10]
	}
	if strings.Contains(head, ".") {
		return false
	}
	return !strings.Contains(strings.ToLower(line), "exemplo") &&
		!strings.HasPrefix(line, "Sample")
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

func runeLen(s string) int {
	return len([]rune(s))
}
