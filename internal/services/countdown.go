package services

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	EventTimeUpdate = "TimeUpdate"
	EventGameOver   = "GameOver"
)

// Notifier pushes an event to one connection.
type Notifier interface {
	Notify(connID string, event string, payload interface{}) error
}

type TimeUpdate struct {
	Remaining int `json:"remaining"`
}

type countdown struct {
	cancel context.CancelFunc
	gen    uint64
}

// CountdownService runs at most one countdown per connection.
type CountdownService struct {
	Tick time.Duration
	Log  zerolog.Logger

	mu     sync.Mutex
	timers map[string]countdown
	gen    uint64
}

func NewCountdownService(log zerolog.Logger) *CountdownService {
	return &CountdownService{Tick: time.Second, Log: log, timers: make(map[string]countdown)}
}

// Start begins a countdown of seconds ticks for connID, replacing any running one.
func (c *CountdownService) Start(connID string, seconds int, n Notifier) {
	ctx, cancel := context.WithCancel(context.Background())

	c.mu.Lock()
	if prev, ok := c.timers[connID]; ok {
		prev.cancel()
	}
	c.gen++
	gen := c.gen
	c.timers[connID] = countdown{cancel: cancel, gen: gen}
	c.mu.Unlock()

	go c.run(ctx, connID, gen, seconds, n)
}

func (c *CountdownService) Stop(connID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t, ok := c.timers[connID]; ok {
		t.cancel()
		delete(c.timers, connID)
	}
}

func (c *CountdownService) Active(connID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.timers[connID]
	return ok
}

func (c *CountdownService) run(ctx context.Context, connID string, gen uint64, remaining int, n Notifier) {
	ticker := time.NewTicker(c.Tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			remaining--
			if remaining <= 0 {
				c.finish(connID, gen)
				c.notify(n, connID, EventGameOver, nil)
				return
			}
			c.notify(n, connID, EventTimeUpdate, TimeUpdate{Remaining: remaining})
		}
	}
}

func (c *CountdownService) finish(connID string, gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t, ok := c.timers[connID]; ok && t.gen == gen {
		t.cancel()
		delete(c.timers, connID)
	}
}

func (c *CountdownService) notify(n Notifier, connID, event string, payload interface{}) {
	if err := n.Notify(connID, event, payload); err != nil {
		c.Log.Debug().Err(err).Str("conn_id", connID).Str("event", event).Msg("countdown notification dropped")
	}
}
