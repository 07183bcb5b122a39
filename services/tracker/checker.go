package tracker

import (
	"context"
	"sync"
	"time"

	"pricetracker-backend/internal/components/telemetry"
)

const (
	DefaultCheckInterval = 10 * time.Minute
	DefaultStopGrace     = 5 * time.Second
)

type CheckerOptions struct {
	// Interval is the wait between the end of one pass and the start of the next.
	Interval time.Duration
	// StopGrace is how long Stop waits for an in-flight pass to finish.
	StopGrace time.Duration
	Tel       telemetry.API
}

// Checker runs a pass over and over in a single background goroutine until stopped.
//
// A pass that is in flight when Stop is called is never interrupted, it runs on a context
// that does not carry the stop signal. The signal is only looked at before a pass starts
// and while waiting out the interval.
type Checker struct {
	pass      func(ctx context.Context)
	interval  time.Duration
	stopGrace time.Duration
	tel       telemetry.API

	mutex  sync.Mutex
	cancel context.CancelFunc
	// done is closed once the loop goroutine has exited, it outlives a Stop that timed out.
	done chan struct{}
}

func NewChecker(pass func(ctx context.Context), opts CheckerOptions) *Checker {
	c := &Checker{
		pass:      pass,
		interval:  opts.Interval,
		stopGrace: opts.StopGrace,
		tel:       opts.Tel,
	}
	if c.interval <= 0 {
		c.interval = DefaultCheckInterval
	}
	if c.stopGrace <= 0 {
		c.stopGrace = DefaultStopGrace
	}
	if c.tel == nil {
		c.tel = telemetry.SlogAPI{}
	}
	return c
}

// Start launches the loop, it does nothing if the checker is already running.
func (c *Checker) Start() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	previous := c.done
	done := make(chan struct{})
	c.cancel = cancel
	c.done = done

	go c.loop(ctx, previous, done)
}

// Stop signals the loop to exit and waits up to the grace period for it to do so. It does
// nothing if the checker is not running.
func (c *Checker) Stop() {
	c.mutex.Lock()
	cancel := c.cancel
	done := c.done
	c.cancel = nil
	c.mutex.Unlock()

	if cancel == nil {
		return
	}
	cancel()

	timer := time.NewTimer(c.stopGrace)
	defer timer.Stop()
	select {
	case <-done:
	case <-timer.C:
		c.tel.ReportWarning(report_checker_stopped, "pass still in flight after", c.stopGrace.String())
	}
}

func (c *Checker) IsRunning() bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.cancel != nil
}

func (c *Checker) loop(ctx context.Context, previous <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	// a loop stopped mid pass may still be draining, never run two passes at once
	if previous != nil {
		select {
		case <-previous:
		case <-ctx.Done():
			return
		}
	}

	for {
		if ctx.Err() != nil {
			return
		}
		c.pass(context.WithoutCancel(ctx))

		timer := time.NewTimer(c.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}
