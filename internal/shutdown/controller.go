// Package shutdown turns termination signals into a one-way cancellation flag.
package shutdown

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
)

// Controller holds the process-wide shutdown request. Once requested it never resets.
type Controller struct {
	requested atomic.Bool
	done      chan struct{}
	once      sync.Once

	mu     sync.Mutex
	reason string

	logger *slog.Logger
}

// New creates a controller
func New(logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		done:   make(chan struct{}),
		logger: logger.With("component", "shutdown"),
	}
}

// Request marks shutdown as requested. Later calls are no-ops.
func (c *Controller) Request(reason string) {
	c.once.Do(func() {
		c.mu.Lock()
		c.reason = reason
		c.mu.Unlock()

		c.requested.Store(true)
		close(c.done)
		c.logger.Info("Shutdown requested", "reason", reason)
	})
}

// Requested reports whether shutdown was requested
func (c *Controller) Requested() bool {
	return c.requested.Load()
}

// Done is closed when shutdown is requested
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

// Reason returns the reason given to the first Request call
func (c *Controller) Reason() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reason
}

// Context returns a child of parent that is cancelled when shutdown is requested
func (c *Controller) Context(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	if c.Requested() {
		cancel()
		return ctx, cancel
	}
	go func() {
		select {
		case <-c.done:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

// Listen routes termination signals into Request until stop is called.
// A second signal after the first is logged and otherwise ignored.
func (c *Controller) Listen() (stop func()) {
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, terminationSignals...)

	quit := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case sig := <-ch:
				if c.Requested() {
					c.logger.Warn("Already shutting down", "signal", sig.String())
					continue
				}
				c.Request("received " + sig.String())
			case <-quit:
				return
			}
		}
	}()

	var stopOnce sync.Once
	return func() {
		stopOnce.Do(func() {
			signal.Stop(ch)
			close(quit)
			wg.Wait()
		})
	}
}
