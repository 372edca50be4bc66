// Package poller keeps a local copy of a negotiation session fresh by
// refetching it on a fixed interval.
//
// Each tick replaces the local view wholesale with whatever the server
// returned. There is no merging and no version comparison: if responses
// arrive out of order, the last one applied wins. A poller whose session the
// server reports as not found stops itself; Gone tells the two stops apart.
package poller

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"farmart-bargain/services/bargain-service/internal/client"
	"farmart-bargain/services/bargain-service/internal/domain"
)

const DefaultInterval = 4 * time.Second

// Fetcher loads the current session and its full timeline.
type Fetcher interface {
	GetSession(ctx context.Context, id string, since int64) (*client.SessionView, error)
}

// Poller refreshes one session view. Ticks do not wait for each other: a
// slow fetch never delays the next one.
type Poller struct {
	fetcher   Fetcher
	sessionID string
	interval  time.Duration
	logger    *slog.Logger
	onUpdate  func(*client.SessionView)

	mu      sync.Mutex
	view    *client.SessionView
	stopped bool
	gone    bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// New returns an idle poller; call Start to begin polling. onUpdate may be
// nil; it is called with every applied view, never concurrently, and must
// not call Stop.
func New(fetcher Fetcher, sessionID string, interval time.Duration, logger *slog.Logger, onUpdate func(*client.SessionView)) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		fetcher:   fetcher,
		sessionID: sessionID,
		interval:  interval,
		logger:    logger,
		onUpdate:  onUpdate,
		done:      make(chan struct{}),
	}
}

// Start fetches immediately and then once per interval until Stop is called
// or ctx ends.
func (p *Poller) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	p.mu.Lock()
	if p.stopped || p.cancel != nil {
		p.mu.Unlock()
		cancel()
		return
	}
	p.cancel = cancel
	p.mu.Unlock()

	go p.run(ctx)
}

func (p *Poller) run(ctx context.Context) {
	defer close(p.done)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	go p.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			p.Stop()
			return
		case <-ticker.C:
			go p.tick(ctx)
		}
	}
}

func (p *Poller) tick(ctx context.Context) {
	view, err := p.fetcher.GetSession(ctx, p.sessionID, 0)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		if errors.Is(err, domain.ErrSessionNotFound) {
			p.mu.Lock()
			if !p.stopped {
				p.gone = true
			}
			p.mu.Unlock()
			p.logger.Warn("session not found, polling stopped", "session_id", p.sessionID)
			p.Stop()
			return
		}
		p.logger.Warn("session poll failed", "session_id", p.sessionID, "error", err)
		return
	}
	p.apply(view)
}

// apply installs view unless the poller has been stopped. The lock is held
// across onUpdate so a response cannot be delivered after Stop returns.
func (p *Poller) apply(view *client.SessionView) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return
	}
	p.view = view
	if p.onUpdate != nil {
		p.onUpdate(view)
	}
}

// Stop ends polling. It does not wait for fetches in flight; their results
// are discarded.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return
	}
	p.stopped = true
	if p.cancel != nil {
		p.cancel()
	} else {
		close(p.done)
	}
}

// Snapshot returns the last applied view, or nil before the first
// successful fetch.
func (p *Poller) Snapshot() *client.SessionView {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.view
}

// Gone reports whether polling stopped because the session does not exist.
func (p *Poller) Gone() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.gone
}

// Done is closed once the polling loop has exited.
func (p *Poller) Done() <-chan struct{} { return p.done }

func (p *Poller) SessionID() string { return p.sessionID }
