// Package connectivity decides whether the remote store is reachable and
// reports flips to the session.
package connectivity

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/andreasstove999/ecommerce-system/pos-client-go/internal/remote"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

// Target receives the connectivity verdict after every probe.
type Target interface {
	SetOnline(online bool)
}

type Monitor struct {
	pinger   Pinger
	target   Target
	interval time.Duration
	timeout  time.Duration
	logger   *log.Logger

	online bool
	probed bool
}

func NewMonitor(p Pinger, target Target, interval, timeout time.Duration, logger *log.Logger) *Monitor {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if timeout <= 0 || timeout > interval {
		timeout = interval
	}
	return &Monitor{pinger: p, target: target, interval: interval, timeout: timeout, logger: logger}
}

// Run probes once immediately and then every interval until ctx is done.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.Probe(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Probe(ctx)
		}
	}
}

// Probe pings the store once. Only transport failures count as offline: a
// store that answers with an error status is still reachable.
func (m *Monitor) Probe(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	err := m.pinger.Ping(probeCtx)
	if ctx.Err() != nil {
		return m.online
	}
	online := err == nil || !errors.Is(err, remote.ErrNetworkUnavailable)
	if err != nil && online {
		m.logger.Printf("probe: store reachable but answered %v", err)
	}
	if !m.probed || online != m.online {
		m.logger.Printf("probe: online=%t", online)
	}
	m.online, m.probed = online, true
	m.target.SetOnline(online)
	return online
}
