// Package store persists sessions, aggregated results, generation transcripts
// and capture outcomes in Postgres, with a Redis cache in front of results.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	_ "github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"

	"github.com/mohammad-safakhou/trender/internal/engine"
)

type Store struct {
	DB *sql.DB
}

// Sweep statuses persisted for scheduled topic runs.
const (
	SweepStatusRunning = "running"
	SweepStatusDone    = "done"
	SweepStatusFailed  = "failed"
)

// Topic is a stored recurring search.
type Topic struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id,omitempty"`
	Name         string    `json:"name"`
	Query        string    `json:"query"`
	ScheduleCron string    `json:"schedule_cron"`
	CreatedAt    time.Time `json:"created_at"`
}

var (
	metricsOnce    sync.Once
	resultCounter  otelmetric.Int64Counter
	recordCounter  otelmetric.Int64Counter
	metricsInitErr error
)

func initStoreMetrics() {
	meter := otel.Meter("store")
	var err error
	resultCounter, err = meter.Int64Counter("search_results_total")
	if err != nil {
		metricsInitErr = err
		return
	}
	recordCounter, err = meter.Int64Counter("search_records_total")
	if err != nil {
		metricsInitErr = err
	}
}

// New connects using DATABASE_URL or the POSTGRES_* environment variables.
func New(ctx context.Context) (*Store, error) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		host := getenvDefault("POSTGRES_HOST", "localhost")
		port := getenvDefault("POSTGRES_PORT", "5432")
		user := os.Getenv("POSTGRES_USER")
		pass := os.Getenv("POSTGRES_PASSWORD")
		db := os.Getenv("POSTGRES_DB")
		ssl := getenvDefault("POSTGRES_SSLMODE", "disable")
		dsn = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", user, pass, host, port, db, ssl)
	}
	return NewWithDSN(ctx, dsn)
}

// NewWithDSN constructs the Store using an explicit Postgres DSN
func NewWithDSN(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return &Store{DB: db}, nil
}

func getenvDefault(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

// User operations
func (s *Store) CreateUser(ctx context.Context, email, hash string) error {
	_, err := s.DB.ExecContext(ctx, `INSERT INTO users (email, password_hash) VALUES ($1,$2)`, email, hash)
	return err
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (id string, hash string, err error) {
	err = s.DB.QueryRowContext(ctx, `SELECT id, password_hash FROM users WHERE email=$1`, email).Scan(&id, &hash)
	return
}

// Session and result operations

func (s *Store) ensureSession(ctx context.Context, id, query string) error {
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO sessions (id, query) VALUES ($1,$2) ON CONFLICT (id) DO NOTHING`, id, query)
	return err
}

// SaveResult persists one aggregated result under its session.
func (s *Store) SaveResult(ctx context.Context, res *engine.AggregatedResult) error {
	if err := s.ensureSession(ctx, res.SessionID, res.Query); err != nil {
		return err
	}
	payload, err := json.Marshal(res)
	if err != nil {
		return err
	}
	_, err = s.DB.ExecContext(ctx, `
INSERT INTO results (session_id, query, payload, total_sources, unique_urls, api_calls, duration_seconds)
VALUES ($1,$2,$3,$4,$5,$6,$7)
`, res.SessionID, res.Query, payload, res.Stats.TotalSources, res.Stats.UniqueURLs, res.Stats.APICalls, res.Stats.DurationSeconds)
	if err != nil {
		return err
	}

	metricsOnce.Do(initStoreMetrics)
	if metricsInitErr == nil {
		attrs := []attribute.KeyValue{attribute.String("session_id", res.SessionID)}
		if resultCounter != nil {
			resultCounter.Add(ctx, 1, otelmetric.WithAttributes(attrs...))
		}
		if recordCounter != nil && res.Stats.UniqueURLs > 0 {
			recordCounter.Add(ctx, int64(res.Stats.UniqueURLs), otelmetric.WithAttributes(attrs...))
		}
	}
	return nil
}

// GetResult returns the latest persisted result for a session.
func (s *Store) GetResult(ctx context.Context, sessionID string) (*engine.AggregatedResult, bool, error) {
	var payload []byte
	err := s.DB.QueryRowContext(ctx, `
SELECT payload FROM results WHERE session_id=$1 ORDER BY created_at DESC LIMIT 1
`, sessionID).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var res engine.AggregatedResult
	if err := json.Unmarshal(payload, &res); err != nil {
		return nil, false, err
	}
	return &res, true, nil
}

// Generation operations

func (s *Store) SaveGeneration(ctx context.Context, prompt string, res *engine.GenerationResult) error {
	if err := s.ensureSession(ctx, res.SessionID, prompt); err != nil {
		return err
	}
	_, err := s.DB.ExecContext(ctx, `
INSERT INTO generations (session_id, prompt, response, provider, model, iterations, tool_calls, degraded)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
`, res.SessionID, prompt, res.Text, res.Provider, res.Model, res.Iterations, res.ToolCalls, res.Degraded)
	return err
}

// Capture operations

func (s *Store) SaveCaptures(ctx context.Context, sessionID string, results []engine.CaptureResult) error {
	for _, cr := range results {
		capturedAt := cr.CapturedAt
		if capturedAt.IsZero() {
			capturedAt = time.Now()
		}
		_, err := s.DB.ExecContext(ctx, `
INSERT INTO captures (session_id, url, success, path, text_content, error, captured_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
`, sessionID, cr.URL, cr.Success, cr.Path, cr.Text, cr.Error, capturedAt)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) ListCaptures(ctx context.Context, sessionID string) ([]engine.CaptureResult, error) {
	rows, err := s.DB.QueryContext(ctx, `
SELECT url, success, path, text_content, error, captured_at
FROM captures WHERE session_id=$1 ORDER BY id ASC
`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []engine.CaptureResult
	for rows.Next() {
		var cr engine.CaptureResult
		if err := rows.Scan(&cr.URL, &cr.Success, &cr.Path, &cr.Text, &cr.Error, &cr.CapturedAt); err != nil {
			return nil, err
		}
		out = append(out, cr)
	}
	return out, rows.Err()
}

// Topic operations

func (s *Store) CreateTopic(ctx context.Context, userID, name, query, cron string) (string, error) {
	var id string
	var uid interface{}
	if userID != "" {
		uid = userID
	}
	err := s.DB.QueryRowContext(ctx, `
INSERT INTO topics (user_id, name, query, schedule_cron) VALUES ($1,$2,$3,$4) RETURNING id
`, uid, name, query, cron).Scan(&id)
	return id, err
}

func (s *Store) ListTopics(ctx context.Context) ([]Topic, error) {
	rows, err := s.DB.QueryContext(ctx, `
SELECT id, COALESCE(user_id::text,''), name, query, schedule_cron, created_at
FROM topics ORDER BY created_at DESC
`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Topic
	for rows.Next() {
		var t Topic
		if err := rows.Scan(&t.ID, &t.UserID, &t.Name, &t.Query, &t.ScheduleCron, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Sweep operations

// LatestSweepTime returns when a topic last started a sweep, nil for never.
func (s *Store) LatestSweepTime(ctx context.Context, topicID string) (*time.Time, error) {
	var t time.Time
	err := s.DB.QueryRowContext(ctx, `
SELECT started_at FROM sweeps WHERE topic_id=$1 ORDER BY started_at DESC LIMIT 1
`, topicID).Scan(&t)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *Store) CreateSweep(ctx context.Context, topicID, sessionID string) (string, error) {
	var id string
	err := s.DB.QueryRowContext(ctx, `
INSERT INTO sweeps (topic_id, session_id, status) VALUES ($1,$2,$3) RETURNING id
`, topicID, sessionID, SweepStatusRunning).Scan(&id)
	return id, err
}

func (s *Store) FinishSweep(ctx context.Context, id, status string, errMsg *string) error {
	_, err := s.DB.ExecContext(ctx, `
UPDATE sweeps SET status=$2, error=$3, finished_at=NOW() WHERE id=$1
`, id, status, errMsg)
	return err
}

var _ engine.Storage = (*Store)(nil)
