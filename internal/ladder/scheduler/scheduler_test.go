package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"ladderbot/internal/exchange/mock"
	"ladderbot/pkg/logging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestScheduler(t *testing.T, cfg Config, active bool, run func(ctx context.Context)) *Scheduler {
	t.Helper()
	logger, err := logging.NewZapLogger("ERROR")
	require.NoError(t, err)
	ex := mock.New(logger)
	return New(logger, ex, cfg, func() bool { return active }, run)
}

// Active polling uses the jittered [min, max] window, never the inactive
// poll interval.
func TestNextInterval_ActiveWindowRespectsMinMax(t *testing.T) {
	s := newTestScheduler(t, Config{MinIntervalMs: 10000, IntervalSpreadMs: 5000, InactivePollMs: 3000}, true, nil)
	for i := 0; i < 50; i++ {
		d := s.nextInterval()
		assert.GreaterOrEqual(t, d, 10000*time.Millisecond)
		assert.LessOrEqual(t, d, 15000*time.Millisecond)
	}
}

// The adapter's open-orders cache floor raises the effective minimum
// when it exceeds the configured MinIntervalMs.
func TestNextInterval_AdapterCacheFloorRaisesMin(t *testing.T) {
	logger, err := logging.NewZapLogger("ERROR")
	require.NoError(t, err)
	ex := mock.New(logger)

	s := New(logger, ex, Config{MinIntervalMs: 100, IntervalSpreadMs: 0, InactivePollMs: 3000}, func() bool { return true }, nil)
	d := s.nextInterval()
	// mock's default OpenOrdersCacheSec is 1 -> 1000ms floor exceeds the
	// configured 100ms minimum.
	assert.Equal(t, 1000*time.Millisecond, d)
}

// While inactive, ticks use InactivePollMs regardless of the jitter
// window.
func TestNextInterval_InactiveUsesPollInterval(t *testing.T) {
	s := newTestScheduler(t, Config{MinIntervalMs: 10000, IntervalSpreadMs: 5000, InactivePollMs: 3000}, false, nil)
	assert.Equal(t, 3000*time.Millisecond, s.nextInterval())
}

// A tick that is still running when the next would start is skipped
// rather than overlapped.
func TestTick_ReentrancyGuardSkipsOverlap(t *testing.T) {
	var concurrent int32
	var maxConcurrent int32
	release := make(chan struct{})

	run := func(ctx context.Context) {
		n := atomic.AddInt32(&concurrent, 1)
		if n > atomic.LoadInt32(&maxConcurrent) {
			atomic.StoreInt32(&maxConcurrent, n)
		}
		<-release
		atomic.AddInt32(&concurrent, -1)
	}

	s := newTestScheduler(t, Config{MinIntervalMs: 10000, IntervalSpreadMs: 0, InactivePollMs: 3000}, true, run)

	done := make(chan struct{})
	go func() {
		s.tick(context.Background())
		close(done)
	}()

	// Give the first tick time to mark itself running, then attempt a
	// second tick concurrently: it must return immediately, not block.
	time.Sleep(20 * time.Millisecond)
	s.tick(context.Background())

	close(release)
	<-done

	assert.Equal(t, int32(1), maxConcurrent)
}

// Run stops rescheduling once ctx is cancelled, without aborting the
// in-flight iteration.
func TestRun_StopsOnContextCancellation(t *testing.T) {
	var calls int32
	run := func(ctx context.Context) {
		atomic.AddInt32(&calls, 1)
	}
	s := newTestScheduler(t, Config{MinIntervalMs: 1, IntervalSpreadMs: 0, InactivePollMs: 1}, true, run)

	ctx, cancel := context.WithCancel(context.Background())
	doneCh := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(doneCh)
	}()

	// mock's 1s open-orders cache floor puts the first tick at ~1000ms.
	time.Sleep(1500 * time.Millisecond)
	cancel()

	select {
	case <-doneCh:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after context cancellation")
	}
	assert.Greater(t, atomic.LoadInt32(&calls), int32(0))
}
