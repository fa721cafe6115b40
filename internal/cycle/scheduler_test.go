package cycle

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingRunner records calls and the highest number of concurrent calls.
type countingRunner struct {
	calls      atomic.Int32
	running    atomic.Int32
	maxRunning atomic.Int32

	mu    sync.Mutex
	errs  []error
	block chan struct{}
	entry chan struct{}
}

func (r *countingRunner) RunCycle(ctx context.Context, trigger Trigger) (*Report, error) {
	n := r.running.Add(1)
	defer r.running.Add(-1)
	for {
		m := r.maxRunning.Load()
		if n <= m || r.maxRunning.CompareAndSwap(m, n) {
			break
		}
	}
	call := r.calls.Add(1)

	if r.entry != nil {
		select {
		case r.entry <- struct{}{}:
		default:
		}
	}
	if r.block != nil {
		<-r.block
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if int(call) <= len(r.errs) {
		return &Report{Trigger: trigger}, r.errs[call-1]
	}
	return &Report{Trigger: trigger}, nil
}

func TestScheduler_StartIsIdempotent(t *testing.T) {
	runner := &countingRunner{}
	s := NewScheduler(runner, nil, nil, time.Hour, time.Hour)
	t.Cleanup(func() { s.Stop() })

	assert.True(t, s.Start(context.Background()))
	assert.False(t, s.Start(context.Background()))
	assert.False(t, s.Start(context.Background()))
	assert.True(t, s.IsActive())

	require.Eventually(t, func() bool { return runner.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int32(1), runner.calls.Load(), "only one loop may run")
}

func TestScheduler_RepeatsOnInterval(t *testing.T) {
	runner := &countingRunner{}
	s := NewScheduler(runner, nil, nil, 10*time.Millisecond, time.Hour)
	t.Cleanup(func() { s.Stop() })

	s.Start(context.Background())
	require.Eventually(t, func() bool { return runner.calls.Load() >= 3 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(1), runner.maxRunning.Load())
}

func TestScheduler_StopInterruptsSleep(t *testing.T) {
	runner := &countingRunner{}
	s := NewScheduler(runner, nil, nil, time.Hour, time.Hour)

	s.Start(context.Background())
	require.Eventually(t, func() bool { return runner.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	stopped := make(chan bool)
	go func() { stopped <- s.Stop() }()
	select {
	case ok := <-stopped:
		assert.True(t, ok)
	case <-time.After(time.Second):
		t.Fatal("Stop did not interrupt the interval sleep")
	}
	assert.False(t, s.IsActive())
	assert.False(t, s.Stop(), "second Stop is a no-op")
}

func TestScheduler_StopWaitsForInFlightCycle(t *testing.T) {
	runner := &countingRunner{block: make(chan struct{}), entry: make(chan struct{}, 1)}
	s := NewScheduler(runner, nil, nil, time.Hour, time.Hour)

	s.Start(context.Background())
	<-runner.entry

	stopped := make(chan struct{})
	go func() {
		s.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("Stop returned while a cycle was executing")
	case <-time.After(30 * time.Millisecond):
	}

	close(runner.block)
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return after the cycle finished")
	}
	assert.Equal(t, int32(1), runner.calls.Load())
}

func TestScheduler_RestartNeverOverlaps(t *testing.T) {
	runner := &countingRunner{}
	s := NewScheduler(runner, nil, nil, 5*time.Millisecond, time.Hour)

	for i := 0; i < 5; i++ {
		require.True(t, s.Start(context.Background()))
		time.Sleep(10 * time.Millisecond)
		require.True(t, s.Stop())
	}

	calls := runner.calls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, calls, runner.calls.Load(), "no cycle may start after Stop returns")
	assert.Equal(t, int32(1), runner.maxRunning.Load())
}

func TestScheduler_BacksOffAfterError(t *testing.T) {
	runner := &countingRunner{errs: []error{errors.New("exchange down")}}
	notifier := &notifierSpy{}
	s := NewScheduler(runner, nil, notifier, time.Hour, 10*time.Millisecond)
	t.Cleanup(func() { s.Stop() })

	s.Start(context.Background())
	require.Eventually(t, func() bool { return runner.calls.Load() == 2 }, time.Second, 5*time.Millisecond)
	assert.True(t, s.IsActive(), "a failed cycle must not stop the loop")

	msgs := notifier.all()
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0], "exchange down")

	// The successful retry waits the full interval.
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int32(2), runner.calls.Load())
}

func TestScheduler_Toggle(t *testing.T) {
	runner := &countingRunner{}
	s := NewScheduler(runner, nil, nil, time.Hour, time.Hour)

	assert.False(t, s.IsActive())
	assert.True(t, s.Toggle(context.Background()))
	assert.True(t, s.IsActive())
	assert.False(t, s.Toggle(context.Background()))
	assert.False(t, s.IsActive())
	assert.True(t, s.Toggle(context.Background()))
	assert.False(t, s.Toggle(context.Background()))
}

func TestScheduler_ParentContextEndsLoop(t *testing.T) {
	runner := &countingRunner{}
	s := NewScheduler(runner, nil, nil, 5*time.Millisecond, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())

	s.Start(ctx)
	require.Eventually(t, func() bool { return runner.calls.Load() >= 1 }, time.Second, 5*time.Millisecond)
	cancel()

	assert.True(t, s.Stop())
	calls := runner.calls.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, calls, runner.calls.Load())
}

func TestScheduler_EndedContextStartsNothing(t *testing.T) {
	runner := &countingRunner{}
	s := NewScheduler(runner, nil, nil, time.Hour, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.False(t, s.Start(ctx))
	assert.False(t, s.Toggle(ctx))
	assert.False(t, s.IsActive())
	assert.False(t, s.Stop(), "no loop may be left behind")
	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, runner.calls.Load())
}

func TestScheduler_ManualCyclesSerializeWithLoop(t *testing.T) {
	f := newFixture("100000", "0.01")
	var running, maxRunning atomic.Int32
	f.account.hook = func(context.Context) {
		n := running.Add(1)
		for {
			m := maxRunning.Load()
			if n <= m || maxRunning.CompareAndSwap(m, n) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		running.Add(-1)
	}
	s := NewScheduler(f.runner, nil, nil, time.Millisecond, time.Millisecond)

	s.Start(context.Background())
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.runner.RunCycle(context.Background(), TriggerManual)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	s.Stop()

	assert.Equal(t, int32(1), maxRunning.Load())
}

func TestNewScheduler_Defaults(t *testing.T) {
	s := NewScheduler(&countingRunner{}, nil, nil, 0, 0)
	assert.Equal(t, DefaultInterval, s.interval)
	assert.Equal(t, DefaultErrorBackoff, s.errorBackoff)
	assert.NotNil(t, s.state)
}
