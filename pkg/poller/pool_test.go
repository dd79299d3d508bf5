/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package poller

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wardflux/wardflux/pkg/db"
	"github.com/wardflux/wardflux/pkg/models"
	"github.com/wardflux/wardflux/pkg/queue"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func enqueue(t *testing.T, q queue.Queue, task string, n int) {
	t.Helper()

	for i := 0; i < n; i++ {
		require.NoError(t, q.Enqueue(context.Background(), queue.QueuePing, &models.Job{
			ID:    fmt.Sprintf("job-%d", i),
			Task:  task,
			Queue: queue.QueuePing,
		}))
	}
}

func runPool(ctx context.Context, p *Pool) <-chan error {
	errCh := make(chan error, 1)

	go func() { errCh <- p.Run(ctx) }()

	return errCh
}

func TestPoolProcessesJobs(t *testing.T) {
	q := queue.NewMemoryQueue(100, nil)
	defer q.Close()

	var handled atomic.Int32

	p := NewPool(q, PoolOptions{Queue: queue.QueuePing, Workers: 3}, map[string]Handler{
		queue.TaskPingSweep: HandlerFunc(func(context.Context, *models.Job) error {
			handled.Add(1)

			return nil
		}),
	}, nil)

	errCh := runPool(context.Background(), p)

	enqueue(t, q, queue.TaskPingSweep, 5)

	require.Eventually(t, func() bool { return handled.Load() == 5 }, 2*time.Second, 10*time.Millisecond)

	stopCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	require.NoError(t, p.Stop(stopCtx))
	require.NoError(t, <-errCh)
	assert.False(t, p.Halted())
}

func TestPoolHaltsOnPersistentDatabaseFailure(t *testing.T) {
	q := queue.NewMemoryQueue(100, nil)
	defer q.Close()

	core, logs := observer.New(zap.ErrorLevel)

	p := NewPool(q, PoolOptions{Queue: queue.QueuePing, Workers: 1, MaxDBFailures: 3}, map[string]Handler{
		queue.TaskPingSweep: HandlerFunc(func(context.Context, *models.Job) error {
			return fmt.Errorf("%w: connection refused", db.ErrDBUnavailable)
		}),
	}, zap.New(core))

	enqueue(t, q, queue.TaskPingSweep, 3)

	select {
	case err := <-runPool(context.Background(), p):
		require.ErrorIs(t, err, ErrPoolHalted)
	case <-time.After(5 * time.Second):
		t.Fatal("pool did not halt")
	}

	assert.True(t, p.Halted())
	assert.Equal(t, 1, logs.FilterMessage("worker pool halted").Len())
}

func TestPoolSuccessResetsFailureCount(t *testing.T) {
	q := queue.NewMemoryQueue(100, nil)
	defer q.Close()

	var n atomic.Int32

	p := NewPool(q, PoolOptions{Queue: queue.QueuePing, Workers: 1, MaxDBFailures: 2}, map[string]Handler{
		queue.TaskPingSweep: HandlerFunc(func(context.Context, *models.Job) error {
			// fail, succeed, fail, succeed
			if n.Add(1)%2 == 1 {
				return db.ErrDBUnavailable
			}

			return nil
		}),
	}, nil)

	errCh := runPool(context.Background(), p)
	enqueue(t, q, queue.TaskPingSweep, 4)

	require.Eventually(t, func() bool { return n.Load() == 4 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, p.Stop(context.Background()))
	require.NoError(t, <-errCh)
	assert.False(t, p.Halted())
}

func TestPoolAbandonsJobsAfterGracePeriod(t *testing.T) {
	q := queue.NewMemoryQueue(100, nil)
	defer q.Close()

	started := make(chan struct{})

	var cancelled atomic.Bool

	p := NewPool(q, PoolOptions{Queue: queue.QueuePing, Workers: 1, GracePeriod: 50 * time.Millisecond}, map[string]Handler{
		queue.TaskPingSweep: HandlerFunc(func(ctx context.Context, _ *models.Job) error {
			close(started)
			<-ctx.Done()
			cancelled.Store(true)

			return ctx.Err()
		}),
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := runPool(ctx, p)

	enqueue(t, q, queue.TaskPingSweep, 1)
	<-started
	cancel()

	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("pool did not stop after grace period")
	}

	assert.True(t, cancelled.Load())
}

func TestPoolLetsJobsFinishWithinGracePeriod(t *testing.T) {
	q := queue.NewMemoryQueue(100, nil)
	defer q.Close()

	started := make(chan struct{})

	var finished atomic.Bool

	p := NewPool(q, PoolOptions{Queue: queue.QueuePing, Workers: 1, GracePeriod: time.Second}, map[string]Handler{
		queue.TaskPingSweep: HandlerFunc(func(ctx context.Context, _ *models.Job) error {
			close(started)

			select {
			case <-time.After(50 * time.Millisecond):
				finished.Store(true)
			case <-ctx.Done():
			}

			return nil
		}),
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := runPool(ctx, p)

	enqueue(t, q, queue.TaskPingSweep, 1)
	<-started
	cancel()

	require.NoError(t, <-errCh)
	assert.True(t, finished.Load())
}

func TestPoolLogsUnroutedTask(t *testing.T) {
	q := queue.NewMemoryQueue(100, nil)
	defer q.Close()

	core, logs := observer.New(zap.ErrorLevel)
	p := NewPool(q, PoolOptions{Queue: queue.QueuePing, Workers: 1}, map[string]Handler{}, zap.New(core))

	errCh := runPool(context.Background(), p)
	enqueue(t, q, "unknown.task", 1)

	require.Eventually(t, func() bool { return logs.FilterMessage("no handler for task").Len() == 1 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, p.Stop(context.Background()))
	require.NoError(t, <-errCh)
}
