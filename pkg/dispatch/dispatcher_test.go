package dispatch

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slidescraper/pkg/browser"
	"slidescraper/pkg/errs"
	"slidescraper/pkg/logger"
)

func newTestDispatcher(t *testing.T, workers int) *Dispatcher[int, string] {
	t.Helper()
	d, err := New[int, string](workers, nil, logger.GetLogger())
	require.NoError(t, err)
	d.startupDelay = 0
	return d
}

func TestNewRejectsNonPositiveWorkers(t *testing.T) {
	_, err := New[int, string](0, nil, logger.GetLogger())
	require.Error(t, err)
	assert.Equal(t, errs.KindConfiguration, errs.KindOf(err))

	_, err = New[int, string](-3, nil, logger.GetLogger())
	assert.Error(t, err)
}

func TestNewClampsToMaxWorkers(t *testing.T) {
	d, err := New[int, string](100, nil, logger.GetLogger())
	require.NoError(t, err)
	assert.Equal(t, MaxWorkers, d.workers)
}

func TestRunPreservesSubmissionOrder(t *testing.T) {
	d := newTestDispatcher(t, 4)

	tasks := make([]int, 20)
	for i := range tasks {
		tasks[i] = i
	}

	batch := d.Run(context.Background(), tasks,
		func(_ context.Context, _ *browser.Session, task int) (string, error) {
			// vary completion order
			time.Sleep(time.Duration(task%3) * time.Millisecond)
			return fmt.Sprintf("task-%d", task), nil
		})

	require.Len(t, batch.Results, 20)
	for i, res := range batch.Results {
		assert.Equal(t, i, res.Task)
		assert.Equal(t, fmt.Sprintf("task-%d", i), res.Value)
	}
	assert.Equal(t, 20, batch.Successful)
	assert.Zero(t, batch.Failed)
}

func TestRunIsolatesFailures(t *testing.T) {
	d := newTestDispatcher(t, 3)

	tasks := make([]int, 10)
	for i := range tasks {
		tasks[i] = i
	}

	batch := d.Run(context.Background(), tasks,
		func(_ context.Context, _ *browser.Session, task int) (string, error) {
			if task == 4 {
				return "", errs.New(errs.KindNavigation, "page refused to load")
			}
			return "ok", nil
		})

	assert.Equal(t, 9, batch.Successful)
	assert.Equal(t, 1, batch.Failed)
	assert.False(t, batch.Results[4].Succeeded())
	assert.Error(t, batch.Results[4].Err)
	for i, res := range batch.Results {
		if i != 4 {
			assert.NoError(t, res.Err, "task %d", i)
		}
	}
}

func TestRunEmptyTaskList(t *testing.T) {
	d := newTestDispatcher(t, 2)
	batch := d.Run(context.Background(), nil,
		func(_ context.Context, _ *browser.Session, task int) (string, error) {
			t.Fatal("work should never run")
			return "", nil
		})
	assert.Empty(t, batch.Results)
	assert.Zero(t, batch.Successful)
}

func TestRunBoundsConcurrency(t *testing.T) {
	d := newTestDispatcher(t, 2)

	var active, peak atomic.Int32
	tasks := make([]int, 12)

	batch := d.Run(context.Background(), tasks,
		func(_ context.Context, _ *browser.Session, _ int) (string, error) {
			n := active.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			active.Add(-1)
			return "ok", nil
		})

	assert.Equal(t, 12, batch.Successful)
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestRunSessionFactoryFailure(t *testing.T) {
	factoryErr := errs.New(errs.KindEnvironment, "no chrome binary")
	cleanups := atomic.Int32{}

	d, err := New[int, string](2, func(_ context.Context, _ int) (*browser.Session, func(), error) {
		return nil, func() { cleanups.Add(1) }, factoryErr
	}, logger.GetLogger())
	require.NoError(t, err)
	d.startupDelay = 0

	batch := d.Run(context.Background(), []int{1, 2, 3},
		func(_ context.Context, _ *browser.Session, _ int) (string, error) {
			t.Fatal("work should never run without a session")
			return "", nil
		})

	assert.Equal(t, 3, batch.Failed)
	for _, res := range batch.Results {
		assert.ErrorIs(t, res.Err, factoryErr)
	}
	assert.Equal(t, int32(2), cleanups.Load())
}

func TestRunContainsPanics(t *testing.T) {
	d := newTestDispatcher(t, 2)

	batch := d.Run(context.Background(), []int{1, 2, 3},
		func(_ context.Context, _ *browser.Session, task int) (string, error) {
			if task == 2 {
				panic("selector exploded")
			}
			return "ok", nil
		})

	assert.Equal(t, 2, batch.Successful)
	assert.Equal(t, 1, batch.Failed)
	require.Error(t, batch.Results[1].Err)
	assert.Contains(t, batch.Results[1].Err.Error(), "selector exploded")
}

func TestRunRespectsContextCancellation(t *testing.T) {
	d := newTestDispatcher(t, 1)
	ctx, cancel := context.WithCancel(context.Background())

	tasks := make([]int, 5)
	started := false

	batch := d.Run(ctx, tasks,
		func(_ context.Context, _ *browser.Session, _ int) (string, error) {
			if !started {
				started = true
				cancel()
				return "ok", nil
			}
			return "", ctx.Err()
		})

	// first task completed, the rest observed cancellation
	assert.GreaterOrEqual(t, batch.Failed, 1)
}
