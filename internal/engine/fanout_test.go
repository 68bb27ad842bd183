package engine

import (
	"context"
	"errors"
	"testing"
	"time"
)

func webEntry(id string, prio int, fn func(ctx context.Context, req SearchRequest) ([]SearchRecord, error)) *Entry {
	return &Entry{ID: id, Priority: prio, Caps: []Capability{CapWebSearch}, Search: stubSearch{name: id, fn: fn}}
}

func recordsFor(id string, n int) []SearchRecord {
	out := make([]SearchRecord, n)
	for i := range out {
		out[i] = SearchRecord{Title: id, URL: "https://" + id + ".site/" + string(rune('a'+i)), Source: id, Relevance: 0.5}
	}
	return out
}

func TestFanoutFailureIsolation(t *testing.T) {
	ok := webEntry("ok", 1, func(ctx context.Context, req SearchRequest) ([]SearchRecord, error) {
		return recordsFor("ok", 2), nil
	})
	bad := webEntry("bad", 2, func(ctx context.Context, req SearchRequest) ([]SearchRecord, error) {
		return nil, &HTTPStatusError{Status: 500, Body: "backend down"}
	})
	panicky := webEntry("panicky", 3, func(ctx context.Context, req SearchRequest) ([]SearchRecord, error) {
		panic("adapter bug")
	})
	r := newTestRegistry(0, ok, bad, panicky)
	f := NewFanoutExecutor(r, nil, time.Second, testLogger())

	fr := f.Run(context.Background(), SearchRequest{Query: "q", Limit: 5})
	if len(fr.Web) != 2 {
		t.Fatalf("expected the healthy provider's records, got %d", len(fr.Web))
	}
	if len(fr.Providers) != 1 || fr.Providers[0] != "ok" {
		t.Fatalf("expected only the healthy provider recorded, got %v", fr.Providers)
	}
}

func TestFanoutBucketsByCapability(t *testing.T) {
	web := webEntry("serper", 1, func(ctx context.Context, req SearchRequest) ([]SearchRecord, error) {
		return recordsFor("serper", 1), nil
	})
	video := &Entry{ID: "youtube", Priority: 2, Caps: []Capability{CapVideoSearch},
		Search: stubSearch{name: "youtube", fn: func(ctx context.Context, req SearchRequest) ([]SearchRecord, error) {
			return recordsFor("youtube", 2), nil
		}}}
	social := &Entry{ID: "supadata", Priority: 3, Caps: []Capability{CapSocialSearch},
		Search: stubSearch{name: "supadata", fn: func(ctx context.Context, req SearchRequest) ([]SearchRecord, error) {
			return recordsFor("supadata", 3), nil
		}}}
	r := newTestRegistry(0, web, video, social)
	f := NewFanoutExecutor(r, nil, time.Second, testLogger())

	fr := f.Run(context.Background(), SearchRequest{Query: "q"})
	if len(fr.Web) != 1 || len(fr.Video) != 2 || len(fr.Social) != 3 {
		t.Fatalf("expected buckets 1/2/3, got %d/%d/%d", len(fr.Web), len(fr.Video), len(fr.Social))
	}
	if fr.APICalls != 3 {
		t.Fatalf("expected 3 api calls, got %d", fr.APICalls)
	}
}

func TestFanoutRecordsStayContiguous(t *testing.T) {
	a := webEntry("a", 1, func(ctx context.Context, req SearchRequest) ([]SearchRecord, error) {
		time.Sleep(10 * time.Millisecond)
		return recordsFor("a", 3), nil
	})
	b := webEntry("b", 2, func(ctx context.Context, req SearchRequest) ([]SearchRecord, error) {
		return recordsFor("b", 3), nil
	})
	r := newTestRegistry(0, a, b)
	f := NewFanoutExecutor(r, nil, time.Second, testLogger())

	fr := f.Run(context.Background(), SearchRequest{Query: "q"})
	if len(fr.Web) != 6 {
		t.Fatalf("expected 6 records, got %d", len(fr.Web))
	}
	// each provider's block must be contiguous regardless of finish order
	for i := 1; i < 3; i++ {
		if fr.Web[i].Source != fr.Web[0].Source {
			t.Fatalf("expected first block from one provider, got %v then %v", fr.Web[0].Source, fr.Web[i].Source)
		}
	}
	for i := 4; i < 6; i++ {
		if fr.Web[i].Source != fr.Web[3].Source {
			t.Fatalf("expected second block from one provider, got %v then %v", fr.Web[3].Source, fr.Web[i].Source)
		}
	}
	if fr.Web[0].Source == fr.Web[3].Source {
		t.Fatalf("expected two distinct provider blocks")
	}
}

func TestFanoutStragglerStillCollected(t *testing.T) {
	fast := webEntry("fast", 1, func(ctx context.Context, req SearchRequest) ([]SearchRecord, error) {
		return recordsFor("fast", 1), nil
	})
	slow := webEntry("slow", 2, func(ctx context.Context, req SearchRequest) ([]SearchRecord, error) {
		time.Sleep(50 * time.Millisecond)
		return recordsFor("slow", 1), nil
	})
	r := newTestRegistry(0, fast, slow)
	f := NewFanoutExecutor(r, nil, time.Second, testLogger())

	fr := f.Run(context.Background(), SearchRequest{Query: "q"})
	if len(fr.Web) != 2 {
		t.Fatalf("expected the wave to wait for the straggler, got %d records", len(fr.Web))
	}
}

func TestFanoutPerCallTimeout(t *testing.T) {
	hang := &Entry{ID: "hang", Priority: 1, Caps: []Capability{CapWebSearch}, Timeout: 20 * time.Millisecond,
		Search: stubSearch{name: "hang", fn: func(ctx context.Context, req SearchRequest) ([]SearchRecord, error) {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(5 * time.Second):
				return recordsFor("hang", 1), nil
			}
		}}}
	r := newTestRegistry(0, hang)
	f := NewFanoutExecutor(r, nil, time.Second, testLogger())

	start := time.Now()
	fr := f.Run(context.Background(), SearchRequest{Query: "q"})
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("expected the entry timeout to cut the call short, took %s", elapsed)
	}
	if len(fr.Web) != 0 {
		t.Fatalf("expected no records from a timed-out provider")
	}
}

func TestFanoutEmptySuccessIsProtocolError(t *testing.T) {
	empty := webEntry("empty", 1, func(ctx context.Context, req SearchRequest) ([]SearchRecord, error) {
		return nil, nil
	})
	r := newTestRegistry(0, empty)
	f := NewFanoutExecutor(r, nil, time.Second, testLogger())

	fr := f.Run(context.Background(), SearchRequest{Query: "q"})
	if len(fr.Providers) != 0 {
		t.Fatalf("expected an empty response to not count as a used provider, got %v", fr.Providers)
	}
	if fr.APICalls != 1 {
		t.Fatalf("expected the attempt still counted, got %d", fr.APICalls)
	}
}

func TestFanoutRateLimitRotatesThenDisables(t *testing.T) {
	calls := 0
	limited := &Entry{ID: "limited", Priority: 1, Caps: []Capability{CapWebSearch},
		Pool: NewCredentialPool([]string{"k1", "k2", "k3"}),
		Search: stubSearch{name: "limited", fn: func(ctx context.Context, req SearchRequest) ([]SearchRecord, error) {
			calls++
			return nil, &HTTPStatusError{Status: 429, Body: "slow down"}
		}}}
	r := newTestRegistry(0, limited)
	f := NewFanoutExecutor(r, nil, time.Second, testLogger())

	fr := f.Run(context.Background(), SearchRequest{Query: "q"})
	if calls != 3 {
		t.Fatalf("expected one attempt per credential, got %d", calls)
	}
	if fr.APICalls != 3 {
		t.Fatalf("expected 3 api calls counted, got %d", fr.APICalls)
	}
	if r.Usable(limited) {
		t.Fatalf("expected the provider disabled after a full credential cycle")
	}
}

func TestFanoutCreditExhaustionStopsImmediately(t *testing.T) {
	calls := 0
	broke := &Entry{ID: "broke", Priority: 1, Caps: []Capability{CapWebSearch},
		Pool: NewCredentialPool([]string{"k1", "k2"}),
		Search: stubSearch{name: "broke", fn: func(ctx context.Context, req SearchRequest) ([]SearchRecord, error) {
			calls++
			return nil, &HTTPStatusError{Status: 402, Body: "out of credit"}
		}}}
	r := newTestRegistry(0, broke)
	f := NewFanoutExecutor(r, nil, time.Second, testLogger())

	f.Run(context.Background(), SearchRequest{Query: "q"})
	if calls != 1 {
		t.Fatalf("expected no credential rotation on 402, got %d calls", calls)
	}
	if !r.Usable(broke) {
		t.Fatalf("expected 402 to skip the provider without disabling it")
	}
}

func TestFanoutTransportErrorDoesNotRotate(t *testing.T) {
	calls := 0
	flaky := &Entry{ID: "flaky", Priority: 1, Caps: []Capability{CapWebSearch},
		Pool: NewCredentialPool([]string{"k1", "k2"}),
		Search: stubSearch{name: "flaky", fn: func(ctx context.Context, req SearchRequest) ([]SearchRecord, error) {
			calls++
			return nil, errors.New("connection reset")
		}}}
	r := newTestRegistry(0, flaky)
	f := NewFanoutExecutor(r, nil, time.Second, testLogger())

	f.Run(context.Background(), SearchRequest{Query: "q"})
	if calls != 1 {
		t.Fatalf("expected a transport error to stop after one attempt, got %d", calls)
	}
}
