package engine

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
)

// captureWindow bounds the detached screenshot pass for one session.
const captureWindow = 3 * time.Minute

// PipelineConfig tunes one search pipeline.
type PipelineConfig struct {
	// Limit is the per-provider result cap passed to every adapter.
	Limit int
	// CaptureMax caps how many viral records get screenshotted per session.
	CaptureMax int
}

func (c *PipelineConfig) normalize() {
	if c.Limit <= 0 {
		c.Limit = 10
	}
	if c.CaptureMax <= 0 {
		c.CaptureMax = 3
	}
}

// SearchPipeline runs the whole search flow for one query: fan-out across
// providers, aggregation, persistence and the screenshot pass. Storage and
// capture are optional; their failures are logged and never fail the search.
type SearchPipeline struct {
	registry *Registry
	fanout   *FanoutExecutor
	agg      *Aggregator
	storage  Storage
	capture  CaptureService
	cfg      PipelineConfig
	logger   *log.Logger
}

func NewSearchPipeline(registry *Registry, fanout *FanoutExecutor, agg *Aggregator, storage Storage, capture CaptureService, cfg PipelineConfig, logger *log.Logger) *SearchPipeline {
	if logger == nil {
		logger = log.New(log.Writer(), "[ORCH] ", log.LstdFlags)
	}
	cfg.normalize()
	return &SearchPipeline{
		registry: registry,
		fanout:   fanout,
		agg:      agg,
		storage:  storage,
		capture:  capture,
		cfg:      cfg,
		logger:   logger,
	}
}

// RunSearch executes a search session. An empty sessionID gets a fresh UUID.
// It fails only when no search provider is configured; individual provider
// failures degrade the result instead.
func (p *SearchPipeline) RunSearch(ctx context.Context, query, sessionID string) (*AggregatedResult, error) {
	if !p.registry.HasAny(CapWebSearch, CapNeuralSearch, CapVideoSearch, CapSocialSearch) {
		return nil, ErrNoProviders
	}
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	p.logger.Printf("session=%s query=%q", sessionID, query)

	fr := p.fanout.Run(ctx, SearchRequest{Query: query, Limit: p.cfg.Limit})
	res := p.agg.Aggregate(query, sessionID, fr)

	if p.storage != nil {
		if err := p.storage.SaveResult(ctx, res); err != nil {
			p.logger.Printf("session=%s save failed: %v", sessionID, err)
		}
	}
	if p.capture != nil && len(res.Viral) > 0 {
		go p.captureViral(sessionID, res.Viral)
	}
	return res, nil
}

// captureViral screenshots the top viral records in the background. It runs
// detached from the request context so an HTTP response never waits on a
// headless browser.
func (p *SearchPipeline) captureViral(sessionID string, viral []SearchRecord) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Printf("session=%s capture panic: %v", sessionID, r)
		}
	}()
	ctx, cancel := context.WithTimeout(context.Background(), captureWindow)
	defer cancel()

	n := len(viral)
	if n > p.cfg.CaptureMax {
		n = p.cfg.CaptureMax
	}
	items := make([]CaptureItem, 0, n)
	for _, r := range viral[:n] {
		if r.URL == "" {
			continue
		}
		items = append(items, CaptureItem{URL: r.URL, Platform: r.Platform, Title: r.Title, ViralScore: r.ViralScore})
	}
	if len(items) == 0 {
		return
	}

	results := p.capture.Capture(ctx, sessionID, items)
	ok := 0
	for _, cr := range results {
		if cr.Success {
			ok++
		}
	}
	p.logger.Printf("session=%s captured %d/%d pages", sessionID, ok, len(items))
	if p.storage != nil {
		if err := p.storage.SaveCaptures(ctx, sessionID, results); err != nil {
			p.logger.Printf("session=%s save captures failed: %v", sessionID, err)
		}
	}
}
