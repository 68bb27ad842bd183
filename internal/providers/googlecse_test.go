package providers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mohammad-safakhou/trender/internal/engine"
)

func TestGoogleCSEParsesItems(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if got := q.Get("cx"); got != "cse-123" {
			t.Errorf("expected cx param, got %q", got)
		}
		if got := q.Get("key"); got != "g-key" {
			t.Errorf("expected key param, got %q", got)
		}
		if got := q.Get("q"); got != "moda Brasil" {
			t.Errorf("expected decorated query, got %q", got)
		}
		if got := q.Get("lr"); got != "lang_pt" {
			t.Errorf("expected lr lang_pt, got %q", got)
		}
		if got := q.Get("dateRestrict"); got != "m6" {
			t.Errorf("expected default dateRestrict m6, got %q", got)
		}
		w.Write([]byte(`{"items":[
			{"title":"Moda de inverno","link":"https://a.example","snippet":"resumo a",
			 "pagemap":{"metatags":[{"article:published_time":"2026-01-15T10:00:00Z"}]}},
			{"title":"Sem link","snippet":"descartado"}
		]}`))
	}))
	defer srv.Close()

	p := NewGoogleCSE(testPool("g-key"), testHTTPClient(), GoogleCSEConfig{
		BaseURL:   srv.URL,
		CSEID:     "cse-123",
		Region:    "br",
		Language:  "pt",
		QueryHint: "Brasil",
	})
	records, err := p.Search(context.Background(), engine.SearchRequest{Query: "moda"})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected linkless item dropped, got %d records", len(records))
	}
	rec := records[0]
	if rec.URL != "https://a.example" || rec.Source != "google" {
		t.Fatalf("unexpected record %+v", rec)
	}
	if rec.PublishedAt != "2026-01-15T10:00:00Z" {
		t.Fatalf("expected published time from metatags, got %q", rec.PublishedAt)
	}
	if rec.Relevance != 0.9 {
		t.Fatalf("expected relevance 0.9, got %v", rec.Relevance)
	}
}
