package kitchen

import (
	"context"
	"errors"
	"io"
	"log"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andreasstove999/ecommerce-system/pos-client-go/internal/remote"
)

type countingRefresher struct {
	calls atomic.Int32
	err   error
}

func (c *countingRefresher) RefreshOrders(ctx context.Context) error {
	c.calls.Add(1)
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("poll without deadline")
	}
	return c.err
}

func TestPollerPollsImmediatelyAndOnTick(t *testing.T) {
	src := &countingRefresher{}
	p := NewPoller(src, 10*time.Millisecond, 0, log.New(io.Discard, "", 0))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return src.calls.Load() >= 3 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("poller did not stop")
	}
}

func TestPollerKeepsGoingWhenOffline(t *testing.T) {
	src := &countingRefresher{err: remote.ErrNetworkUnavailable}
	p := NewPoller(src, 5*time.Millisecond, 0, log.New(io.Discard, "", 0))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	p.Run(ctx)

	assert.GreaterOrEqual(t, src.calls.Load(), int32(2))
}

func TestNewPollerDefaults(t *testing.T) {
	p := NewPoller(&countingRefresher{}, 0, time.Hour, log.New(io.Discard, "", 0))
	assert.Equal(t, DefaultInterval, p.interval)
	assert.Equal(t, DefaultInterval, p.timeout)
}
