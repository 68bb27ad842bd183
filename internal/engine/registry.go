package engine

import (
	"sort"
	"sync"
	"time"
)

// Entry describes one registered provider. Availability is the only field
// mutated after construction and is guarded by the entry's own lock.
type Entry struct {
	ID        string
	Priority  int
	Caps      []Capability
	Model     string
	MaxTokens int
	Timeout   time.Duration
	Pool      *CredentialPool
	Search    SearchProvider
	Gen       GenerationProvider

	mu         sync.Mutex
	available  bool
	disabledAt time.Time
}

// Has reports whether the entry carries the capability.
func (e *Entry) Has(cap Capability) bool {
	for _, c := range e.Caps {
		if c == cap {
			return true
		}
	}
	return false
}

func (e *Entry) markUnavailable(now time.Time) {
	e.mu.Lock()
	e.available = false
	e.disabledAt = now
	e.mu.Unlock()
}

// usable reports availability, lazily re-enabling the entry when the
// configured TTL has elapsed since it was disabled. TTL zero means a disabled
// provider stays out for the process lifetime.
func (e *Entry) usable(now time.Time, ttl time.Duration) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.available {
		return true
	}
	if ttl > 0 && now.Sub(e.disabledAt) >= ttl {
		e.available = true
		return true
	}
	return false
}

// EntryStatus is the inspectable snapshot of one registry entry.
type EntryStatus struct {
	ID          string       `json:"id"`
	Priority    int          `json:"priority"`
	Caps        []Capability `json:"capabilities"`
	Model       string       `json:"model,omitempty"`
	Available   bool         `json:"available"`
	Credentials int          `json:"credentials"`
}

// Registry holds provider entries and answers selection queries. Entries are
// fixed after construction; only per-entry availability changes.
type Registry struct {
	entries       []*Entry
	reenableAfter time.Duration
	now           func() time.Time
}

// NewRegistry builds a registry with the given availability re-enable TTL.
// Zero keeps unavailable providers out until the process restarts.
func NewRegistry(reenableAfter time.Duration) *Registry {
	return &Registry{reenableAfter: reenableAfter, now: time.Now}
}

// Register appends an entry. Declaration order is the tie-breaker for equal
// priorities. Entries start available; an entry with an empty credential pool
// is registered unavailable and can never be selected.
func (r *Registry) Register(e *Entry) {
	e.available = e.Pool == nil || e.Pool.Size() > 0
	r.entries = append(r.entries, e)
}

// Select returns the best available provider for the capability: the lowest
// priority number among available capability holders, ties broken by
// declaration order. When no available entry has the capability, it relaxes
// once to any available entry rather than failing. False only when nothing
// is available at all.
func (r *Registry) Select(cap Capability) (*Entry, bool) {
	if e := r.best(cap); e != nil {
		return e, true
	}
	if cap != "" {
		if e := r.best(""); e != nil {
			return e, true
		}
	}
	return nil, false
}

func (r *Registry) best(cap Capability) *Entry {
	now := r.now()
	var best *Entry
	for _, e := range r.entries {
		if !e.usable(now, r.reenableAfter) {
			continue
		}
		if cap != "" && !e.Has(cap) {
			continue
		}
		if best == nil || e.Priority < best.Priority {
			best = e
		}
	}
	return best
}

// Available returns every usable entry holding any of the given capabilities,
// in declaration order.
func (r *Registry) Available(caps ...Capability) []*Entry {
	now := r.now()
	var out []*Entry
	for _, e := range r.entries {
		if !e.usable(now, r.reenableAfter) {
			continue
		}
		for _, c := range caps {
			if e.Has(c) {
				out = append(out, e)
				break
			}
		}
	}
	return out
}

// Chain returns all entries with the capability sorted by priority (stable,
// so declaration order breaks ties), regardless of current availability.
// Callers re-check availability at attempt time.
func (r *Registry) Chain(cap Capability) []*Entry {
	var out []*Entry
	for _, e := range r.entries {
		if e.Has(cap) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority < out[j].Priority })
	return out
}

// Usable reports whether the entry may be called right now.
func (r *Registry) Usable(e *Entry) bool {
	return e.usable(r.now(), r.reenableAfter)
}

// MarkUnavailable disables a provider. With a zero re-enable TTL it stays
// disabled for the remainder of the process.
func (r *Registry) MarkUnavailable(id string) {
	now := r.now()
	for _, e := range r.entries {
		if e.ID == id {
			e.markUnavailable(now)
			return
		}
	}
}

// HasAny reports whether any entry is registered for the capabilities,
// available or not. Used to distinguish "nothing configured" (hard error)
// from "everything currently disabled" (degraded result).
func (r *Registry) HasAny(caps ...Capability) bool {
	for _, e := range r.entries {
		for _, c := range caps {
			if e.Has(c) {
				return true
			}
		}
	}
	return false
}

// Snapshot lists every entry's current state for diagnostics.
func (r *Registry) Snapshot() []EntryStatus {
	now := r.now()
	out := make([]EntryStatus, 0, len(r.entries))
	for _, e := range r.entries {
		creds := 0
		if e.Pool != nil {
			creds = e.Pool.Size()
		}
		out = append(out, EntryStatus{
			ID:          e.ID,
			Priority:    e.Priority,
			Caps:        e.Caps,
			Model:       e.Model,
			Available:   e.usable(now, r.reenableAfter),
			Credentials: creds,
		})
	}
	return out
}
