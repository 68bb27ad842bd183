package server

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/gorhill/cronexpr"

	"github.com/mohammad-safakhou/trender/internal/engine"
	"github.com/mohammad-safakhou/trender/internal/store"
)

const sweepLockTTL = 2 * time.Minute

// Scheduler re-runs stored sweep topics on their cron schedule. One tick per
// hour; the redis lock keeps replicas from sweeping the same topic twice.
type Scheduler struct {
	Store    *store.Store
	Cache    *store.Cache
	Pipeline engine.SearchRunner
	Stop     chan struct{}
	Logger   *log.Logger
}

func (s *Scheduler) Start() {
	ticker := time.NewTicker(1 * time.Hour)
	go func() {
		for {
			select {
			case <-s.Stop:
				ticker.Stop()
				return
			case <-ticker.C:
				s.tick()
			}
		}
	}()
}

func (s *Scheduler) tick() {
	ctx := context.Background()
	topics, err := s.Store.ListTopics(ctx)
	if err != nil {
		s.Logger.Printf("list topics failed: %v", err)
		return
	}
	for _, t := range topics {
		last, err := s.Store.LatestSweepTime(ctx, t.ID)
		if err != nil {
			s.Logger.Printf("topic=%s latest sweep lookup failed: %v", t.ID, err)
			continue
		}
		if !isDue(t.ScheduleCron, last) {
			continue
		}

		if s.Cache != nil {
			ok, err := s.Cache.AcquireSweepLock(ctx, t.ID, sweepLockTTL)
			if err != nil || !ok {
				continue
			}
		}

		sessionID := uuid.NewString()
		sweepID, err := s.Store.CreateSweep(ctx, t.ID, sessionID)
		if err != nil {
			s.Logger.Printf("topic=%s create sweep failed: %v", t.ID, err)
			if s.Cache != nil {
				_ = s.Cache.ReleaseSweepLock(ctx, t.ID)
			}
			continue
		}
		go s.run(t, sweepID, sessionID)
	}
}

func (s *Scheduler) run(t store.Topic, sweepID, sessionID string) {
	ctx := context.Background()
	defer func() {
		if s.Cache != nil {
			_ = s.Cache.ReleaseSweepLock(ctx, t.ID)
		}
	}()

	// jitter to avoid stampedes
	time.Sleep(time.Duration(250+time.Now().UnixNano()%250) * time.Millisecond)

	s.Logger.Printf("topic=%s sweep=%s session=%s query=%q", t.ID, sweepID, sessionID, t.Query)
	if _, err := s.Pipeline.RunSearch(ctx, t.Query, sessionID); err != nil {
		msg := err.Error()
		_ = s.Store.FinishSweep(ctx, sweepID, store.SweepStatusFailed, &msg)
		return
	}
	_ = s.Store.FinishSweep(ctx, sweepID, store.SweepStatusDone, nil)
}

// isDue determines if a topic with cronSpec should run now based on the last
// sweep time. Supports "@daily", "@hourly", and 5-field cron expressions; an
// invalid expression falls back to @daily.
func isDue(cronSpec string, last *time.Time) bool {
	now := time.Now()
	switch cronSpec {
	case "@daily":
		if last == nil {
			return true
		}
		return now.Sub(*last) >= 24*time.Hour
	case "@hourly":
		if last == nil {
			return true
		}
		return now.Sub(*last) >= time.Hour
	default:
		expr, err := cronexpr.Parse(cronSpec)
		if err != nil {
			if last == nil {
				return true
			}
			return now.Sub(*last) >= 24*time.Hour
		}
		if last == nil {
			return true
		}
		next := expr.Next(*last)
		return !next.After(now)
	}
}
