package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/mohammad-safakhou/trender/internal/engine"
)

func scrapedPage() string {
	return strings.Join([]string{
		"Mercado de revenda de tenis cresce no inverno brasileiro",
		"https://loja.example/tenis",
		"A revenda de tenis de edicao limitada cresceu vinte por cento no ultimo trimestre.",
		"Coletivo de moda de rua abre loja conceito no centro",
		"https://loja.example/conceito",
		"Compradores formaram fila na madrugada para a abertura da nova loja conceito.",
		"a.b.c " + strings.Repeat("z", 260),
	}, "\n")
}

func firecrawlSearchBody(urls ...string) string {
	var b strings.Builder
	b.WriteString(`{"success":true,"data":[`)
	for i, u := range urls {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString(`{"url":"` + u + `"}`)
	}
	b.WriteString(`]}`)
	return b.String()
}

func TestFirecrawlSearchesThenScrapes(t *testing.T) {
	var scrapes int32
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/search", func(w http.ResponseWriter, r *http.Request) {
		if auth := r.Header.Get("Authorization"); auth != "Bearer fc-key" {
			t.Errorf("expected bearer credential, got %q", auth)
		}
		w.Write([]byte(firecrawlSearchBody("https://p1.example", "https://p2.example", "https://p3.example")))
	})
	mux.HandleFunc("/v1/scrape", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&scrapes, 1)
		body, _ := json.Marshal(map[string]interface{}{
			"success": true,
			"data":    map[string]string{"markdown": scrapedPage()},
		})
		w.Write(body)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	p := NewFirecrawl(testPool("fc-key"), testHTTPClient(), FirecrawlConfig{
		BaseURL:     srv.URL,
		Limit:       5,
		ScrapeLimit: 2,
	})
	records, err := p.Search(context.Background(), engine.SearchRequest{Query: "moda"})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if n := atomic.LoadInt32(&scrapes); n != 2 {
		t.Fatalf("expected scrape limit of 2, got %d scrapes", n)
	}
	if len(records) != 4 {
		t.Fatalf("expected 2 records per scraped page, got %d", len(records))
	}
	if records[0].URL != "https://loja.example/tenis" {
		t.Fatalf("expected in-page url, got %q", records[0].URL)
	}
	if records[0].Source != "firecrawl" {
		t.Fatalf("expected source firecrawl, got %q", records[0].Source)
	}
}

func TestFirecrawlCreditExhaustionSurfaces(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/search", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(firecrawlSearchBody("https://p1.example")))
	})
	mux.HandleFunc("/v1/scrape", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	p := NewFirecrawl(testPool("fc-key"), testHTTPClient(), FirecrawlConfig{BaseURL: srv.URL})
	_, err := p.Search(context.Background(), engine.SearchRequest{Query: "moda"})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if engine.KindOf(err) != engine.KindInsufficientCredit {
		t.Fatalf("expected insufficient credit kind, got %v", engine.KindOf(err))
	}
}

func TestFirecrawlSkipsBadPages(t *testing.T) {
	var scrapes int32
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/search", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(firecrawlSearchBody("https://p1.example", "https://p2.example")))
	})
	mux.HandleFunc("/v1/scrape", func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&scrapes, 1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		body, _ := json.Marshal(map[string]interface{}{
			"success": true,
			"data":    map[string]string{"markdown": scrapedPage()},
		})
		w.Write(body)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	p := NewFirecrawl(testPool("fc-key"), testHTTPClient(), FirecrawlConfig{BaseURL: srv.URL})
	records, err := p.Search(context.Background(), engine.SearchRequest{Query: "moda"})
	if err != nil {
		t.Fatalf("expected bad page skipped, got %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected records from the healthy page only, got %d", len(records))
	}
}

func TestFirecrawlIgnoresThinPages(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/search", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(firecrawlSearchBody("https://p1.example")))
	})
	mux.HandleFunc("/v1/scrape", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":true,"data":{"markdown":"pagina curta"}}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	p := NewFirecrawl(testPool("fc-key"), testHTTPClient(), FirecrawlConfig{BaseURL: srv.URL})
	records, err := p.Search(context.Background(), engine.SearchRequest{Query: "moda"})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected thin page ignored, got %d records", len(records))
	}
}
