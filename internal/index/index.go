// Package index keeps a small in-memory full-text index per search session so
// the API can answer ranked queries over a session's records.
package index

import (
	"fmt"
	"sync"
	"time"

	"github.com/blevesearch/bleve"

	"github.com/mohammad-safakhou/trender/internal/engine"
)

// Hit is one ranked match from a session query.
type Hit struct {
	ID      string  `json:"id"`
	URL     string  `json:"url"`
	Title   string  `json:"title"`
	Snippet string  `json:"snippet"`
	Score   float64 `json:"score"`
	Rank    int     `json:"rank"`
}

type indexDoc struct {
	Title    string `json:"title"`
	Snippet  string `json:"snippet"`
	Content  string `json:"content"`
	Source   string `json:"source"`
	Platform string `json:"platform"`
}

// SessionIndex is the in-memory index over one session's records.
type SessionIndex struct {
	id        string
	expiresAt time.Time
	idx       bleve.Index
	meta      map[string]engine.SearchRecord
	mu        sync.RWMutex
}

func newSessionIndex(id string, ttl time.Duration) (*SessionIndex, error) {
	idx, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, err
	}
	return &SessionIndex{
		id:        id,
		expiresAt: time.Now().Add(ttl),
		idx:       idx,
		meta:      make(map[string]engine.SearchRecord),
	}, nil
}

// Add indexes records under their URL (or ID when the URL is missing).
func (s *SessionIndex) Add(records []engine.SearchRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, rec := range records {
		docID := rec.URL
		if docID == "" {
			docID = rec.ID
		}
		if docID == "" {
			docID = fmt.Sprintf("%s-%d", s.id, i)
		}
		s.meta[docID] = rec
		if err := s.idx.Index(docID, indexDoc{
			Title:    rec.Title,
			Snippet:  rec.Snippet,
			Content:  rec.Content,
			Source:   rec.Source,
			Platform: rec.Platform,
		}); err != nil {
			return err
		}
	}
	return nil
}

// Query returns the top k matches for a query string.
func (s *SessionIndex) Query(q string, k int) ([]Hit, error) {
	if k <= 0 {
		k = 10
	}
	query := bleve.NewQueryStringQuery(q)
	searchReq := bleve.NewSearchRequestOptions(query, k, 0, false)
	res, err := s.idx.Search(searchReq)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Hit
	for i, hit := range res.Hits {
		rec := s.meta[hit.ID]
		snippet := rec.Snippet
		if snippet == "" {
			snippet = engine.Truncate(rec.Content, 200)
		}
		out = append(out, Hit{
			ID:      hit.ID,
			URL:     rec.URL,
			Title:   rec.Title,
			Snippet: snippet,
			Score:   hit.Score,
			Rank:    i + 1,
		})
	}
	return out, nil
}

// Manager owns the per-session indexes and expires idle ones.
type Manager struct {
	mu       sync.Mutex
	ttl      time.Duration
	sessions map[string]*SessionIndex
}

func NewManager(ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Manager{ttl: ttl, sessions: make(map[string]*SessionIndex)}
}

// IndexResult (re)indexes every record of an aggregated result.
func (m *Manager) IndexResult(res *engine.AggregatedResult) error {
	s, err := m.ensure(res.SessionID)
	if err != nil {
		return err
	}
	for _, bucket := range [][]engine.SearchRecord{res.Web, res.Video, res.Social} {
		if err := s.Add(bucket); err != nil {
			return err
		}
	}
	return nil
}

// Query searches one session's index. ok is false when the session has no
// index (never searched here, or expired).
func (m *Manager) Query(sessionID, q string, k int) (hits []Hit, ok bool, err error) {
	m.mu.Lock()
	m.purgeLocked()
	s, ok := m.sessions[sessionID]
	m.mu.Unlock()
	if !ok {
		return nil, false, nil
	}
	hits, err = s.Query(q, k)
	return hits, true, err
}

func (m *Manager) ensure(sessionID string) (*SessionIndex, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.purgeLocked()
	if s, ok := m.sessions[sessionID]; ok {
		s.expiresAt = time.Now().Add(m.ttl)
		return s, nil
	}
	s, err := newSessionIndex(sessionID, m.ttl)
	if err != nil {
		return nil, err
	}
	m.sessions[sessionID] = s
	return s, nil
}

func (m *Manager) purgeLocked() {
	now := time.Now()
	for id, s := range m.sessions {
		if now.After(s.expiresAt) {
			s.idx.Close()
			delete(m.sessions, id)
		}
	}
}
