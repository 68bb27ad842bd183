// Package capture screenshots viral URLs with a headless browser and extracts
// readable page text as enrichment.
package capture

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	readability "github.com/go-shiori/go-readability"

	"github.com/mohammad-safakhou/trender/internal/engine"
)

type Service struct {
	dir      string
	timeout  time.Duration
	maxChars int
	logger   *log.Logger
}

func New(dir string, timeout time.Duration, maxChars int, logger *log.Logger) *Service {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if maxChars <= 0 {
		maxChars = 5000
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[CAPTURE] ", log.LstdFlags)
	}
	return &Service{dir: dir, timeout: timeout, maxChars: maxChars, logger: logger}
}

// Capture renders each URL in a fresh tab and writes
// <dir>/<sessionID>/viral_content_NN.png. One bad page never stops the rest.
func (s *Service) Capture(ctx context.Context, sessionID string, items []engine.CaptureItem) []engine.CaptureResult {
	sessionDir := filepath.Join(s.dir, sessionID)
	if err := os.MkdirAll(sessionDir, 0o755); err != nil {
		s.logger.Printf("session=%s cannot create capture dir: %v", sessionID, err)
		results := make([]engine.CaptureResult, 0, len(items))
		for _, item := range items {
			results = append(results, engine.CaptureResult{
				URL: item.URL, Error: err.Error(), CapturedAt: time.Now(),
			})
		}
		return results
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.WindowSize(1920, 1080),
		chromedp.UserAgent("trender/1.0 (+https://github.com/mohammad-safakhou/trender)"),
	)
	actx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	results := make([]engine.CaptureResult, 0, len(items))
	for i, item := range items {
		path := filepath.Join(sessionDir, fmt.Sprintf("viral_content_%02d.png", i+1))
		results = append(results, s.captureOne(actx, item, path))
	}
	return results
}

func (s *Service) captureOne(actx context.Context, item engine.CaptureItem, path string) engine.CaptureResult {
	res := engine.CaptureResult{URL: item.URL, CapturedAt: time.Now()}

	bctx, cancelBrowser := chromedp.NewContext(actx)
	defer cancelBrowser()
	tctx, cancel := context.WithTimeout(bctx, s.timeout)
	defer cancel()

	var html string
	var shot []byte
	err := chromedp.Run(tctx,
		chromedp.Navigate(item.URL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(2*time.Second),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
		chromedp.CaptureScreenshot(&shot),
	)
	if err != nil {
		res.Error = err.Error()
		s.logger.Printf("url=%s capture failed: %v", item.URL, err)
		return res
	}
	if err := os.WriteFile(path, shot, 0o644); err != nil {
		res.Error = err.Error()
		return res
	}
	res.Success = true
	res.Path = path
	res.Text = s.readableText(html, item.URL)
	s.logger.Printf("url=%s captured to %s", item.URL, path)
	return res
}

// readableText extracts the main article text, empty on failure.
func (s *Service) readableText(html, rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		parsed = &url.URL{}
	}
	article, err := readability.FromReader(strings.NewReader(html), parsed)
	if err != nil {
		return ""
	}
	text := strings.TrimSpace(article.TextContent)
	if len(text) > s.maxChars {
		text = text[:s.maxChars]
	}
	return text
}

var _ engine.CaptureService = (*Service)(nil)
