package poller

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"farmart-bargain/services/bargain-service/internal/client"
)

// Group runs one poller per open session view.
type Group struct {
	fetcher  Fetcher
	interval time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	pollers map[string]*Poller
}

func NewGroup(fetcher Fetcher, interval time.Duration, logger *slog.Logger) *Group {
	return &Group{
		fetcher:  fetcher,
		interval: interval,
		logger:   logger,
		pollers:  make(map[string]*Poller),
	}
}

// Open starts polling sessionID. Opening a session that is already open
// returns its existing poller.
func (g *Group) Open(ctx context.Context, sessionID string, onUpdate func(*client.SessionView)) *Poller {
	g.mu.Lock()
	defer g.mu.Unlock()
	if p, ok := g.pollers[sessionID]; ok {
		return p
	}
	p := New(g.fetcher, sessionID, g.interval, g.logger, onUpdate)
	g.pollers[sessionID] = p
	p.Start(ctx)
	return p
}

func (g *Group) Close(sessionID string) {
	g.mu.Lock()
	p, ok := g.pollers[sessionID]
	delete(g.pollers, sessionID)
	g.mu.Unlock()
	if ok {
		p.Stop()
	}
}

func (g *Group) CloseAll() {
	g.mu.Lock()
	pollers := g.pollers
	g.pollers = make(map[string]*Poller)
	g.mu.Unlock()
	for _, p := range pollers {
		p.Stop()
	}
}

func (g *Group) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.pollers)
}

func (g *Group) Has(sessionID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.pollers[sessionID]
	return ok
}
