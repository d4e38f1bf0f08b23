package worker

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

func newTestDispatcher(t *testing.T, opts Options) *Dispatcher {
	t.Helper()
	d := NewDispatcher(opts, nil)
	t.Cleanup(d.Close)
	return d
}

func TestSubmitReturnsJobResult(t *testing.T) {
	d := newTestDispatcher(t, Options{MinWorkers: 1, MaxWorkers: 2, QueueSize: 4})

	var out string
	err := d.Submit(context.Background(), "conv-1", func(context.Context) error {
		out = "rendered"
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "rendered", out)

	boom := errors.New("boom")
	err = d.Submit(context.Background(), "conv-1", func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)
}

func TestConcurrencyIsBoundedByMaxWorkers(t *testing.T) {
	d := newTestDispatcher(t, Options{MaxWorkers: 2, QueueSize: 16})

	var running, peak int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		key := []string{"a", "b", "c"}[i%3]
		go func() {
			defer wg.Done()
			err := d.Submit(context.Background(), key, func(context.Context) error {
				n := atomic.AddInt32(&running, 1)
				for {
					p := atomic.LoadInt32(&peak)
					if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
						break
					}
				}
				time.Sleep(10 * time.Millisecond)
				atomic.AddInt32(&running, -1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
	assert.LessOrEqual(t, d.Stats().Workers, 2)
}

func TestFullQueueIsBusy(t *testing.T) {
	d := newTestDispatcher(t, Options{MaxWorkers: 1, QueueSize: 1})

	block := make(chan struct{})
	results := make(chan error, 10)
	for i := 0; i < 10; i++ {
		go func() {
			results <- d.Submit(context.Background(), "k", func(context.Context) error {
				<-block
				return nil
			})
		}()
	}

	var busy int
	require.Eventually(t, func() bool {
		for {
			select {
			case err := <-results:
				assert.ErrorIs(t, err, ErrDispatcherBusy)
				busy++
			default:
				return busy >= 7
			}
		}
	}, 2*time.Second, 5*time.Millisecond)

	close(block)
	for i := busy; i < 10; i++ {
		assert.NoError(t, <-results)
	}
}

func TestCanceledSubmitSkipsQueuedJob(t *testing.T) {
	d := newTestDispatcher(t, Options{MaxWorkers: 1, QueueSize: 4})

	started := make(chan struct{})
	block := make(chan struct{})
	first := make(chan error, 1)
	go func() {
		first <- d.Submit(context.Background(), "k", func(context.Context) error {
			close(started)
			<-block
			return nil
		})
	}()
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	var ran atomic.Bool
	second := make(chan error, 1)
	go func() {
		second <- d.Submit(ctx, "k", func(context.Context) error {
			ran.Store(true)
			return nil
		})
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-second, context.Canceled)

	close(block)
	require.NoError(t, <-first)
	require.NoError(t, d.Submit(context.Background(), "k", func(context.Context) error { return nil }))
	assert.False(t, ran.Load())
}

func TestPanickingJobReturnsError(t *testing.T) {
	d := newTestDispatcher(t, Options{MaxWorkers: 1})

	err := d.Submit(context.Background(), "k", func(context.Context) error { panic("bad input") })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad input")

	assert.NoError(t, d.Submit(context.Background(), "k", func(context.Context) error { return nil }))
}

func TestIdleWorkersExpireDownToMin(t *testing.T) {
	d := newTestDispatcher(t, Options{MinWorkers: 0, MaxWorkers: 3, IdleTimeout: 20 * time.Millisecond})

	var wg sync.WaitGroup
	for _, key := range []string{"a", "b", "c"} {
		wg.Add(1)
		go func(key string) {
			defer wg.Done()
			_ = d.Submit(context.Background(), key, func(context.Context) error {
				time.Sleep(10 * time.Millisecond)
				return nil
			})
		}(key)
	}
	wg.Wait()
	assert.Eventually(t, func() bool { return d.Stats().Workers == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestClosedDispatcherRejects(t *testing.T) {
	d := NewDispatcher(Options{MaxWorkers: 1}, nil)
	d.Close()
	assert.ErrorIs(t, d.Submit(context.Background(), "k", func(context.Context) error { return nil }), ErrClosed)
	d.Close()
}
