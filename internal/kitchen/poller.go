// Package kitchen keeps the kitchen display's view of orders fresh by
// replacing the local order collection with the remote one on a fixed
// interval.
package kitchen

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/andreasstove999/ecommerce-system/pos-client-go/internal/remote"
)

const DefaultInterval = 30 * time.Second

// Refresher replaces local orders with the remote collection.
type Refresher interface {
	RefreshOrders(ctx context.Context) error
}

type Poller struct {
	src      Refresher
	interval time.Duration
	timeout  time.Duration
	logger   *log.Logger
}

func NewPoller(src Refresher, interval, timeout time.Duration, logger *log.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if timeout <= 0 || timeout > interval {
		timeout = interval
	}
	return &Poller{src: src, interval: interval, timeout: timeout, logger: logger}
}

// Run polls once immediately and then every interval until ctx is done.
// Polls are never retried; a failed poll waits for the next tick.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.poll(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

func (p *Poller) poll(ctx context.Context) {
	pollCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err := p.src.RefreshOrders(pollCtx)
	switch {
	case err == nil:
	case errors.Is(err, remote.ErrNetworkUnavailable):
		// offline; the next tick tries again
	case ctx.Err() != nil:
	default:
		p.logger.Printf("kitchen poll: %v", err)
	}
}
