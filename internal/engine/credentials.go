package engine

import "sync"

// CredentialPool holds the ordered API keys for one provider with a rotating
// cursor. Safe for concurrent use: fan-out calls and generation fallbacks
// rotate the same pool.
type CredentialPool struct {
	mu     sync.Mutex
	keys   []string
	cursor int
}

// NewCredentialPool copies keys into a pool. Empty strings are dropped; an
// empty pool disables the owning provider.
func NewCredentialPool(keys []string) *CredentialPool {
	p := &CredentialPool{}
	for _, k := range keys {
		if k != "" {
			p.keys = append(p.keys, k)
		}
	}
	return p
}

// Next returns the credential at the cursor and advances it modulo pool size.
// An empty pool yields "". Exhaustion is detected by callers cycling Size()
// times without success, not by an error here.
func (p *CredentialPool) Next() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.keys) == 0 {
		return ""
	}
	key := p.keys[p.cursor]
	p.cursor = (p.cursor + 1) % len(p.keys)
	return key
}

// Size reports the number of credentials; the retry bound for rate limits.
func (p *CredentialPool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.keys)
}
