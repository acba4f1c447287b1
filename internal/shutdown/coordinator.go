// Package shutdown tears the session down on SIGINT, SIGTERM or transport
// close, then exits the process.
package shutdown

import (
	"context"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"go.uber.org/zap"
)

const defaultTimeout = 10 * time.Second

// Sessions is the part of the session manager the coordinator needs.
// End is a no-op when no session is active.
type Sessions interface {
	End(ctx context.Context) (bool, error)
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithExit replaces os.Exit.
func WithExit(exit func(code int)) Option {
	return func(c *Coordinator) { c.exit = exit }
}

// Coordinator runs the teardown sequence at most once.
type Coordinator struct {
	sessions Sessions
	timeout  time.Duration
	exit     func(int)
	logger   *zap.Logger

	started atomic.Bool
	done    chan struct{}
}

// New creates a coordinator that waits at most timeout for the session to end.
func New(sessions Sessions, timeout time.Duration, logger *zap.Logger, opts ...Option) *Coordinator {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	c := &Coordinator{
		sessions: sessions,
		timeout:  timeout,
		exit:     os.Exit,
		logger:   logger,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Listen routes SIGINT and SIGTERM to Shutdown until ctx is done.
func (c *Coordinator) Listen(ctx context.Context) {
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigCh)
		for {
			select {
			case sig := <-sigCh:
				go c.Shutdown("signal " + sig.String())
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Done is closed once teardown has finished.
func (c *Coordinator) Done() <-chan struct{} {
	return c.done
}

// Shutdown ends the session and exits with code 0.
func (c *Coordinator) Shutdown(reason string) {
	c.ShutdownWithCode(reason, 0)
}

// ShutdownWithCode ends the session and exits with code. Only the first call
// tears down; later calls wait for it.
func (c *Coordinator) ShutdownWithCode(reason string, code int) {
	if !c.started.CompareAndSwap(false, true) {
		c.logger.Info("already shutting down", zap.String("reason", reason))
		<-c.done
		return
	}

	c.logger.Info("shutting down", zap.String("reason", reason))
	c.teardown()
	close(c.done)

	_ = c.logger.Sync()
	c.exit(code)
}

// teardown runs End in its own goroutine: a Start holding the session lock
// or a hung driver must not delay exit past the timeout.
func (c *Coordinator) teardown() {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	type result struct {
		ended bool
		err   error
	}
	resCh := make(chan result, 1)
	go func() {
		ended, err := c.sessions.End(ctx)
		resCh <- result{ended, err}
	}()

	select {
	case res := <-resCh:
		switch {
		case res.err != nil:
			c.logger.Warn("session teardown failed", zap.Error(res.err))
		case res.ended:
			c.logger.Info("session closed")
		}
	case <-ctx.Done():
		c.logger.Warn("session teardown timed out, exiting anyway", zap.Duration("timeout", c.timeout))
	}
}
