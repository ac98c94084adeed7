package lock

import (
	"context"
	"sync"
	"time"
)

type semaphore struct {
	ch   chan struct{}
	refs int
}

// LocalProvider serializes holders of the same key inside one process.
type LocalProvider struct {
	mu   sync.Mutex
	keys map[string]*semaphore
}

func NewLocalProvider() *LocalProvider {
	return &LocalProvider{keys: make(map[string]*semaphore)}
}

func (p *LocalProvider) Acquire(ctx context.Context, key string, timeout time.Duration) (Handle, error) {
	sem := p.ref(key)

	timer := time.NewTimer(effectiveTimeout(timeout))
	defer timer.Stop()

	select {
	case sem.ch <- struct{}{}:
		return &localHandle{provider: p, key: key, sem: sem}, nil
	case <-timer.C:
		p.unref(key, sem)
		return nil, ErrTimeout
	case <-ctx.Done():
		p.unref(key, sem)
		return nil, ctx.Err()
	}
}

// Len reports how many keys currently have holders or waiters.
func (p *LocalProvider) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.keys)
}

func (p *LocalProvider) ref(key string) *semaphore {
	p.mu.Lock()
	defer p.mu.Unlock()

	sem, ok := p.keys[key]
	if !ok {
		sem = &semaphore{ch: make(chan struct{}, 1)}
		p.keys[key] = sem
	}
	sem.refs++
	return sem
}

func (p *LocalProvider) unref(key string, sem *semaphore) {
	p.mu.Lock()
	defer p.mu.Unlock()

	sem.refs--
	if sem.refs == 0 {
		delete(p.keys, key)
	}
}

type localHandle struct {
	provider *LocalProvider
	key      string
	sem      *semaphore
	once     sync.Once
}

func (h *localHandle) Release() {
	h.once.Do(func() {
		<-h.sem.ch
		h.provider.unref(h.key, h.sem)
	})
}
