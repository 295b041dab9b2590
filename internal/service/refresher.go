package service

import (
	"context"
	"sync"
	"time"
)

// Refresher runs tick on a fixed period until stopped.
// At most one loop is live per Refresher; ticks never overlap.
type Refresher struct {
	interval time.Duration
	tick     func(ctx context.Context)

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	reset  chan struct{}
}

func NewRefresher(interval time.Duration, tick func(ctx context.Context)) *Refresher {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	return &Refresher{interval: interval, tick: tick}
}

// Start launches the loop, replacing any loop already running.
// The loop also ends when ctx is canceled.
func (r *Refresher) Start(ctx context.Context) {
	r.Stop()

	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	reset := make(chan struct{}, 1)

	r.mu.Lock()
	r.cancel, r.done, r.reset = cancel, done, reset
	r.mu.Unlock()

	go r.run(loopCtx, reset, done)
}

func (r *Refresher) run(ctx context.Context, reset <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	t := time.NewTicker(r.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-reset:
			t.Reset(r.interval)
		case <-t.C:
			if ctx.Err() != nil {
				return
			}
			r.tick(ctx)
		}
	}
}

// Reset restarts the current period. It must not block the caller,
// so a reset already pending absorbs this one.
func (r *Refresher) Reset() {
	r.mu.Lock()
	ch := r.reset
	r.mu.Unlock()
	if ch == nil {
		return
	}
	select {
	case ch <- struct{}{}:
	default:
	}
}

// Stop cancels the loop and waits for it to exit. Do not call it from tick.
func (r *Refresher) Stop() {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.cancel, r.done, r.reset = nil, nil, nil
	r.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Running reports whether a loop is live.
func (r *Refresher) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cancel != nil
}
