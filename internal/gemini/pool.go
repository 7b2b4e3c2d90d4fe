// Package gemini wraps the Google Gemini backend behind a rotating
// credential pool. All instances share one pool; advancing it swaps the
// configured client atomically with respect to readers.
package gemini

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Backend is one generative client configured with a single credential.
type Backend interface {
	Complete(ctx context.Context, prompt string) (string, error)
	Close() error
}

// DialFunc builds a Backend for one API key.
type DialFunc func(ctx context.Context, key, model string) (Backend, error)

// Pool holds the ordered Gemini API keys, the current index, and the
// backend built from the active key.
type Pool struct {
	mu      sync.RWMutex
	keys    []string
	index   int
	model   string
	backend Backend
	retired []Backend
	dial    DialFunc
	log     *zap.Logger
}

// New builds a pool backed by the real Gemini SDK.
func New(ctx context.Context, keys []string, model string, log *zap.Logger) (*Pool, error) {
	return NewWithDial(ctx, keys, model, dialGenAI, log)
}

// NewWithDial builds a pool with a custom backend constructor. The first
// key that yields a working backend becomes active; an empty key list is
// a configuration error.
func NewWithDial(ctx context.Context, keys []string, model string, dial DialFunc, log *zap.Logger) (*Pool, error) {
	if len(keys) == 0 {
		return nil, ErrNoCredentials
	}
	p := &Pool{
		keys:  keys,
		model: model,
		dial:  dial,
		log:   log,
	}
	if err := p.configureLocked(ctx, 0); err != nil {
		return nil, err
	}
	return p, nil
}

// Active returns the credential at the current index.
func (p *Pool) Active() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.keys[p.index]
}

// Index returns the current 0-based index.
func (p *Pool) Index() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.index
}

// Size returns the number of credentials in the pool.
func (p *Pool) Size() int {
	return len(p.keys)
}

// Advance moves the index to (index+1) mod N and reconfigures the
// backend. Safe to call repeatedly; concurrent readers never observe a
// stale backend for the new index or a torn index/backend pair.
func (p *Pool) Advance(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	next := (p.index + 1) % len(p.keys)
	if err := p.configureLocked(ctx, next); err != nil {
		return err
	}
	p.log.Warn("rotated generative credential", zap.Int("index", p.index))
	return nil
}

// configureLocked installs the backend for keys[start], walking forward
// through the list if a key fails to configure. Gives up after a full
// cycle. Caller holds the write lock (or owns the pool exclusively).
func (p *Pool) configureLocked(ctx context.Context, start int) error {
	var lastErr error
	for i := 0; i < len(p.keys); i++ {
		idx := (start + i) % len(p.keys)
		backend, err := p.dial(ctx, p.keys[idx], p.model)
		if err != nil {
			lastErr = err
			p.log.Error("failed to configure generative client",
				zap.Int("index", idx), zap.Error(err))
			continue
		}
		// The displaced backend may still be serving a Complete that
		// snapshotted it before the rotation; it stays open until the
		// pool itself is closed.
		if p.backend != nil {
			p.retired = append(p.retired, p.backend)
		}
		p.backend = backend
		p.index = idx
		return nil
	}
	return fmt.Errorf("gemini: no usable credential: %w", lastErr)
}

// Complete issues one completion through the active backend. The network
// call runs outside the lock; only the backend snapshot is guarded.
func (p *Pool) Complete(ctx context.Context, prompt string) (string, error) {
	p.mu.RLock()
	backend := p.backend
	p.mu.RUnlock()
	return backend.Complete(ctx, prompt)
}

// Close releases the active backend and every backend retired by
// rotation. Returns the first close failure.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var first error
	for _, b := range p.retired {
		if err := b.Close(); err != nil && first == nil {
			first = err
		}
	}
	p.retired = nil
	if p.backend != nil {
		if err := p.backend.Close(); err != nil && first == nil {
			first = err
		}
		p.backend = nil
	}
	return first
}
