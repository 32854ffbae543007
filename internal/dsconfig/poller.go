package dsconfig

import (
	"context"
	"log/slog"
	"time"
)

// PollObserver receives poll outcomes. Implementations must be cheap; the
// poller calls them inline.
type PollObserver interface {
	PollApplied()
	PollSkipped()
	PollFailed(err error)
}

// Poller re-fetches the remote configuration document on a fixed interval for
// the lifetime of its context. Failures never surface to subscribers; the
// next tick simply retries.
type Poller struct {
	store    *Store
	interval time.Duration
	logger   *slog.Logger
	observer PollObserver
}

// NewPoller constructs a poller for the store. A non-positive interval
// defaults to five seconds.
func NewPoller(store *Store, interval time.Duration, logger *slog.Logger, observer PollObserver) *Poller {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{store: store, interval: interval, logger: logger, observer: observer}
}

// Run polls until the context is cancelled.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.logger.Debug("data-source config poller started", "interval", p.interval)
	for {
		select {
		case <-ctx.Done():
			p.logger.Debug("data-source config poller stopped")
			return
		case <-ticker.C:
			changed, err := p.store.PollOnce(ctx)
			switch {
			case err != nil:
				if p.observer != nil {
					p.observer.PollFailed(err)
				}
			case changed:
				p.logger.Info("data-source config refreshed from remote document")
				if p.observer != nil {
					p.observer.PollApplied()
				}
			default:
				if p.observer != nil {
					p.observer.PollSkipped()
				}
			}
		}
	}
}
