package tracker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"pricetracker-backend/internal/components/telemetry"

	"github.com/stretchr/testify/require"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, 5*time.Millisecond)
}

func TestCheckerRunsPassesUntilStopped(t *testing.T) {
	var passes atomic.Int64
	checker := NewChecker(func(ctx context.Context) {
		passes.Add(1)
	}, CheckerOptions{Interval: 10 * time.Millisecond})

	require.False(t, checker.IsRunning())
	checker.Start()
	require.True(t, checker.IsRunning())
	waitFor(t, func() bool { return passes.Load() >= 3 })

	checker.Stop()
	require.False(t, checker.IsRunning())
	stoppedAt := passes.Load()
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, stoppedAt, passes.Load())

	// stopping twice is fine
	checker.Stop()
}

func TestCheckerStartIsIdempotent(t *testing.T) {
	var passes atomic.Int64
	checker := NewChecker(func(ctx context.Context) {
		passes.Add(1)
	}, CheckerOptions{Interval: time.Hour})
	defer checker.Stop()

	checker.Start()
	checker.Start()
	checker.Start()
	waitFor(t, func() bool { return passes.Load() == 1 })
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, int64(1), passes.Load())
}

func TestCheckerDoesNotInterruptPass(t *testing.T) {
	var (
		started  = make(chan struct{})
		release  = make(chan struct{})
		finished = make(chan error, 1)
		passes   atomic.Int64
	)
	tel := &telemetry.Recorder{}
	checker := NewChecker(func(ctx context.Context) {
		if passes.Add(1) > 1 {
			return
		}
		close(started)
		<-release
		finished <- ctx.Err()
	}, CheckerOptions{
		Interval:  time.Hour,
		StopGrace: 20 * time.Millisecond,
		Tel:       tel,
	})

	checker.Start()
	<-started
	checker.Stop()
	require.False(t, checker.IsRunning())
	require.Len(t, tel.Reports("warning", report_checker_stopped), 1)

	// a restart while the old pass drains must not run a second pass alongside it
	checker.Start()
	time.Sleep(30 * time.Millisecond)
	require.Equal(t, int64(1), passes.Load())

	close(release)
	require.NoError(t, <-finished)
	waitFor(t, func() bool { return passes.Load() == 2 })
	checker.Stop()
}

func TestServiceBackgroundChecker(t *testing.T) {
	h := setup(t)
	h.service.checker = NewChecker(h.service.backgroundPass, CheckerOptions{Interval: time.Hour})
	product := h.track(t, amazonUrl, "amazon", nil)
	h.fetcher.set(amazonUrl, amazonPage("iPhone", "69,900"))

	h.service.StartBackgroundChecker()
	h.service.StartBackgroundChecker()
	require.True(t, h.service.BackgroundCheckerRunning())
	waitFor(t, func() bool { return h.fetcher.count(amazonUrl) == 1 })
	h.service.StopBackgroundChecker()
	require.False(t, h.service.BackgroundCheckerRunning())

	waitFor(t, func() bool {
		history, err := h.store.History(context.Background(), product.ID)
		return err == nil && len(history) == 1
	})
}
