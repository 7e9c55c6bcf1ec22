package paymentprovider

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Pinger is the reachability probe the loader warms up with.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Loader performs the one-time provider warm-up. The provider endpoint is
// a shared, lazily-verified resource: concurrent callers must await a
// single in-flight probe rather than racing to issue duplicates, the same
// way the browser must not inject the checkout script tag twice.
type Loader struct {
	pinger  Pinger
	timeout time.Duration

	group singleflight.Group
	mu    sync.Mutex
	ready bool
}

// NewLoader creates a Loader probing the given client, with a bounded
// wait per probe.
func NewLoader(pinger Pinger, timeout time.Duration) *Loader {
	return &Loader{
		pinger:  pinger,
		timeout: timeout,
	}
}

// Ensure returns once the provider has been confirmed reachable. The
// first caller performs the probe; concurrent callers share its result.
// A failed probe is not cached, so a later attempt retries.
func (l *Loader) Ensure(ctx context.Context) error {
	const op = "paymentprovider.Loader.Ensure"

	l.mu.Lock()
	if l.ready {
		l.mu.Unlock()
		return nil
	}
	l.mu.Unlock()

	_, err, _ := l.group.Do("ensure", func() (any, error) {
		probeCtx, cancel := context.WithTimeout(ctx, l.timeout)
		defer cancel()

		if err := l.pinger.Ping(probeCtx); err != nil {
			return nil, err
		}
		l.mu.Lock()
		l.ready = true
		l.mu.Unlock()
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
