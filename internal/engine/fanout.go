package engine

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"
)

// FanoutResult carries the raw per-bucket output of one fan-out run before
// aggregation. APICalls counts credential fetches across all attempts.
type FanoutResult struct {
	Web       []SearchRecord
	Video     []SearchRecord
	Social    []SearchRecord
	Providers []string
	APICalls  int
	StartedAt time.Time
}

// FanoutExecutor runs every available search provider concurrently in two
// waves (web-class first, then video and social) and collects their output.
// A provider failing, panicking or timing out never disturbs its siblings.
type FanoutExecutor struct {
	registry *Registry
	rec      Recorder
	timeout  time.Duration
	logger   *log.Logger

	mu sync.Mutex
}

// NewFanoutExecutor builds an executor. timeout bounds a single provider call
// when the entry does not carry its own.
func NewFanoutExecutor(registry *Registry, rec Recorder, timeout time.Duration, logger *log.Logger) *FanoutExecutor {
	if rec == nil {
		rec = NopRecorder{}
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[FANOUT] ", log.LstdFlags)
	}
	return &FanoutExecutor{registry: registry, rec: rec, timeout: timeout, logger: logger}
}

// Run executes the fan-out for one request.
func (f *FanoutExecutor) Run(ctx context.Context, req SearchRequest) *FanoutResult {
	fr := &FanoutResult{StartedAt: time.Now()}
	f.wave(ctx, f.registry.Available(CapWebSearch, CapNeuralSearch), req, fr)
	f.wave(ctx, f.registry.Available(CapVideoSearch, CapSocialSearch), req, fr)
	f.rec.FanoutDuration(time.Since(fr.StartedAt).Seconds())
	return fr
}

func (f *FanoutExecutor) wave(ctx context.Context, entries []*Entry, req SearchRequest, fr *FanoutResult) {
	var wg sync.WaitGroup
	for _, e := range entries {
		wg.Add(1)
		go func(e *Entry) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					f.logger.Printf("provider=%s panic: %v", e.ID, r)
					f.rec.ProviderCall(e.ID, "panic")
				}
			}()

			timeout := e.Timeout
			if timeout <= 0 {
				timeout = f.timeout
			}
			cctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			records, attempts, err := f.call(cctx, e, req)

			f.mu.Lock()
			defer f.mu.Unlock()
			fr.APICalls += attempts
			if err != nil {
				kind := KindOf(err)
				f.logger.Printf("provider=%s failed kind=%s attempts=%d: %v", e.ID, kind, attempts, err)
				f.rec.ProviderCall(e.ID, kind.String())
				return
			}
			switch {
			case e.Has(CapVideoSearch):
				fr.Video = append(fr.Video, records...)
			case e.Has(CapSocialSearch):
				fr.Social = append(fr.Social, records...)
			default:
				fr.Web = append(fr.Web, records...)
			}
			fr.Providers = append(fr.Providers, e.ID)
			f.rec.ProviderCall(e.ID, "ok")
			f.rec.RecordsFetched(e.ID, len(records))
			f.logger.Printf("provider=%s records=%d attempts=%d", e.ID, len(records), attempts)
		}(e)
	}
	wg.Wait()
}

// call drives one provider through its credential pool. Each Search invocation
// consumes one credential. Rate limiting rotates to the next credential until
// the pool is exhausted, which disables the provider for the re-enable window.
// Credit exhaustion and protocol or transport failures stop immediately.
func (f *FanoutExecutor) call(ctx context.Context, e *Entry, req SearchRequest) ([]SearchRecord, int, error) {
	tries := 1
	if e.Pool != nil && e.Pool.Size() > 1 {
		tries = e.Pool.Size()
	}
	var lastErr error
	for attempt := 1; attempt <= tries; attempt++ {
		records, err := e.Search.Search(ctx, req)
		if err == nil && len(records) == 0 {
			err = NewProviderError(e.ID, KindProtocol, 0, errors.New("no records in response"))
		}
		if err == nil {
			return records, attempt, nil
		}
		lastErr = Classify(e.ID, err)
		if KindOf(lastErr) != KindRateLimited {
			return nil, attempt, lastErr
		}
		f.logger.Printf("provider=%s rate limited, rotating credential (%d/%d)", e.ID, attempt, tries)
	}
	f.registry.MarkUnavailable(e.ID)
	f.rec.ProviderDisabled(e.ID)
	return nil, tries, lastErr
}
