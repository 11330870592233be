package poller

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/flxgame/gamesync/pkg/gamestate"
	"github.com/flxgame/gamesync/pkg/log"
)

const (
	// DefaultInterval is the reconciliation poll cadence.
	DefaultInterval = 5 * time.Second
)

// FetchFunc retrieves the authoritative snapshot.
type FetchFunc func(ctx context.Context) (*gamestate.GameState, error)

// SnapshotFunc receives each successfully fetched snapshot.
type SnapshotFunc func(state *gamestate.GameState)

// Poller periodically re-reads the authoritative snapshot. A tick is
// skipped while the previous fetch is still in flight, so slow polls
// never pile up.
type Poller struct {
	interval   time.Duration
	fetch      FetchFunc
	onSnapshot SnapshotFunc
	onError    func(err error)

	inFlight atomic.Bool
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	started  bool
	mu       sync.Mutex
}

type NewPollerOptions struct {
	Interval   time.Duration
	Fetch      FetchFunc
	OnSnapshot SnapshotFunc
	OnError    func(err error)
}

func NewPoller(opts NewPollerOptions) *Poller {
	interval := opts.Interval
	if interval == 0 {
		interval = DefaultInterval
	}
	onError := opts.OnError
	if onError == nil {
		onError = func(err error) {
			log.Warn("Poll failed: %v", err)
		}
	}
	return &Poller{
		interval:   interval,
		fetch:      opts.Fetch,
		onSnapshot: opts.OnSnapshot,
		onError:    onError,
	}
}

// Start performs one immediate fetch, then polls on the interval until
// the context is cancelled or Stop is called.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	ctx, p.cancel = context.WithCancel(ctx)
	p.mu.Unlock()

	// initial fetch, outside the interval cadence
	if state, err := p.fetch(ctx); err != nil {
		if ctx.Err() == nil {
			p.onError(err)
		}
	} else if ctx.Err() == nil {
		p.onSnapshot(state)
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				p.poll(ctx)
			}
		}
	}()
}

func (p *Poller) poll(ctx context.Context) {
	if !p.inFlight.CompareAndSwap(false, true) {
		log.Debug("Skipping poll, previous poll still in flight")
		return
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer p.inFlight.Store(false)

		state, err := p.fetch(ctx)
		if err != nil {
			if ctx.Err() == nil {
				p.onError(err)
			}
			return
		}
		if ctx.Err() != nil {
			// the session tore down while the fetch was in flight; a
			// stale snapshot must not resurrect old values
			return
		}
		p.onSnapshot(state)
	}()
}

// Stop cancels polling and waits for any in-flight fetch to finish.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	p.cancel = nil
	p.started = false
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	p.wg.Wait()
}
