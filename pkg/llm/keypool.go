package llm

import (
	"fmt"
	"sync"
	"time"

	"github.com/aretw0/lattice/pkg/domain"
)

// DefaultCooldown is how long an exhausted key is left alone.
const DefaultCooldown = 60 * time.Second

// KeyPool hands out API keys. It sticks to the current key until that key is
// marked exhausted, then moves round-robin to the next key whose cooldown has
// elapsed.
type KeyPool struct {
	mu        sync.Mutex
	keys      []string
	current   int
	exhausted map[string]time.Time
	cooldown  time.Duration
	now       func() time.Time
}

// PoolOption configures a KeyPool.
type PoolOption func(*KeyPool)

// WithCooldown sets the exhaustion cooldown.
func WithCooldown(d time.Duration) PoolOption {
	return func(p *KeyPool) {
		if d > 0 {
			p.cooldown = d
		}
	}
}

// WithPoolClock overrides time.Now.
func WithPoolClock(now func() time.Time) PoolOption {
	return func(p *KeyPool) {
		p.now = now
	}
}

// NewKeyPool creates a pool over keys. Empty entries are ignored.
func NewKeyPool(keys []string, opts ...PoolOption) (*KeyPool, error) {
	p := &KeyPool{
		exhausted: make(map[string]time.Time),
		cooldown:  DefaultCooldown,
		now:       time.Now,
	}
	seen := make(map[string]bool)
	for _, k := range keys {
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		p.keys = append(p.keys, k)
	}
	if len(p.keys) == 0 {
		return nil, fmt.Errorf("key pool: %w", domain.ErrNoAvailableKey)
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Len returns the number of keys.
func (p *KeyPool) Len() int { return len(p.keys) }

// Acquire returns the key to use for the next request, or
// domain.ErrNoAvailableKey when every key is cooling down.
func (p *KeyPool) Acquire() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	for i := 0; i < len(p.keys); i++ {
		idx := (p.current + i) % len(p.keys)
		key := p.keys[idx]
		if at, ok := p.exhausted[key]; ok {
			if now.Sub(at) < p.cooldown {
				continue
			}
			delete(p.exhausted, key)
		}
		p.current = idx
		return key, nil
	}
	return "", domain.ErrNoAvailableKey
}

// MarkExhausted starts the cooldown of key.
func (p *KeyPool) MarkExhausted(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.exhausted[key] = p.now()
}

// Reset makes key available again, typically after a successful call.
func (p *KeyPool) Reset(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.exhausted, key)
}

// Available returns how many keys are out of cooldown.
func (p *KeyPool) Available() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := p.now()
	n := 0
	for _, k := range p.keys {
		if at, ok := p.exhausted[k]; ok && now.Sub(at) < p.cooldown {
			continue
		}
		n++
	}
	return n
}
