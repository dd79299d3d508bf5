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

package queue

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wardflux/wardflux/pkg/models"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func job(task string) *models.Job {
	return &models.Job{
		ID:      uuid.NewString(),
		Task:    task,
		SweepID: "sweep-1",
		Devices: []models.DeviceRef{{ID: 1, IP: "10.0.0.1"}},
	}
}

func TestRouter(t *testing.T) {
	r := DefaultRouter()

	tests := []struct {
		task    string
		want    string
		wantErr bool
	}{
		{task: TaskPingSweep, want: QueuePing},
		{task: TaskSNMPInterfaces, want: QueueSNMP},
		{task: TaskStateReconcile, want: QueueMaintenance},
		{task: "wardflux.tasks.snmp_tasks.poll_all", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.task, func(t *testing.T) {
			got, err := r.Route(tt.task)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrUnroutedTask)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	require.ErrorIs(t, r.Validate(TaskPingSweep, "unknown"), ErrUnroutedTask)
	assert.Equal(t, []string{QueueMaintenance, QueuePing, QueueSNMP}, r.Queues())
}

func TestMemoryQueueFIFO(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue(10, nil)

	first, second := job(TaskPingSweep), job(TaskPingSweep)
	require.NoError(t, q.Enqueue(ctx, QueuePing, first))
	require.NoError(t, q.Enqueue(ctx, QueuePing, second))

	got, err := q.Dequeue(ctx, QueuePing)
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)

	got, err = q.Dequeue(ctx, QueuePing)
	require.NoError(t, err)
	assert.Equal(t, second.ID, got.ID)
}

func TestMemoryQueueBackpressure(t *testing.T) {
	ctx := context.Background()
	core, logs := observer.New(zap.ErrorLevel)
	q := NewMemoryQueue(2, zap.New(core))

	require.NoError(t, q.Enqueue(ctx, QueuePing, job(TaskPingSweep)))
	require.NoError(t, q.Enqueue(ctx, QueuePing, job(TaskPingSweep)))
	require.ErrorIs(t, q.Enqueue(ctx, QueuePing, job(TaskPingSweep)), ErrBackpressure)

	// other queues are unaffected
	require.NoError(t, q.Enqueue(ctx, QueueSNMP, job(TaskSNMPInterfaces)))

	st, err := q.Stats(ctx, QueuePing)
	require.NoError(t, err)
	assert.Equal(t, 2, st.Depth)
	assert.Equal(t, uint64(1), st.Rejected)
	assert.Equal(t, uint64(2), st.Enqueued)

	require.Equal(t, 1, logs.FilterMessage("queue backpressure, job rejected").Len())
	assert.Equal(t, "sweep-1", logs.All()[0].ContextMap()["sweep_id"])
}

func TestMemoryQueueDequeueBlocksUntilEnqueue(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	q := NewMemoryQueue(10, nil)
	got := make(chan *models.Job, 1)

	go func() {
		j, err := q.Dequeue(ctx, QueueSNMP)
		if err == nil {
			got <- j
		}
	}()

	time.Sleep(20 * time.Millisecond)

	want := job(TaskSNMPInterfaces)
	require.NoError(t, q.Enqueue(ctx, QueueSNMP, want))

	select {
	case j := <-got:
		assert.Equal(t, want.ID, j.ID)
	case <-ctx.Done():
		t.Fatal("dequeue never returned")
	}
}

func TestMemoryQueueDequeueHonoursContextAndClose(t *testing.T) {
	q := NewMemoryQueue(10, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := q.Dequeue(ctx, QueuePing)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	errCh := make(chan error, 1)

	go func() {
		_, err := q.Dequeue(context.Background(), QueuePing)
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, q.Close())

	select {
	case err := <-errCh:
		require.ErrorIs(t, err, ErrClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("close did not wake dequeue")
	}

	require.ErrorIs(t, q.Enqueue(context.Background(), QueuePing, job(TaskPingSweep)), ErrClosed)
}

func TestMemoryQueueConcurrentConsumers(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	q := NewMemoryQueue(1000, nil)

	const jobs = 200

	for i := 0; i < jobs; i++ {
		require.NoError(t, q.Enqueue(ctx, QueuePing, job(TaskPingSweep)))
	}

	var (
		mu   sync.Mutex
		seen = make(map[string]bool)
		wg   sync.WaitGroup
	)

	for w := 0; w < 8; w++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for {
				depth, _ := q.Depth(ctx, QueuePing)
				if depth == 0 {
					return
				}

				dctx, dcancel := context.WithTimeout(ctx, 50*time.Millisecond)
				j, err := q.Dequeue(dctx, QueuePing)
				dcancel()

				if err != nil {
					continue
				}

				mu.Lock()
				assert.False(t, seen[j.ID], "job delivered twice")
				seen[j.ID] = true
				mu.Unlock()
			}
		}()
	}

	wg.Wait()
	assert.Len(t, seen, jobs)
}

func TestWatcherGrowthIgnoresOtherStatsReaders(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue(100, nil)
	w := NewWatcher(q, []string{QueuePing}, nil)

	clock := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	w.now = func() time.Time { return clock }

	require.NoError(t, w.Check(ctx))

	for i := 0; i < 10; i++ {
		require.NoError(t, q.Enqueue(ctx, QueuePing, job(TaskPingSweep)))

		// diagnostics reading the queue between checks
		st, err := q.Stats(ctx, QueuePing)
		require.NoError(t, err)
		assert.Zero(t, st.GrowthPerSecond)
	}

	clock = clock.Add(5 * time.Second)
	require.NoError(t, w.Check(ctx))

	snap := w.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, 10, snap[0].Depth)
	assert.InDelta(t, 2.0, snap[0].GrowthPerSecond, 0.0001)

	clock = clock.Add(5 * time.Second)
	require.NoError(t, w.Check(ctx))
	assert.Zero(t, w.Snapshot()[0].GrowthPerSecond)
}

func TestWatcherCheck(t *testing.T) {
	ctx := context.Background()
	core, logs := observer.New(zap.WarnLevel)
	q := NewMemoryQueue(5, nil)

	for i := 0; i < 5; i++ {
		require.NoError(t, q.Enqueue(ctx, QueuePing, job(TaskPingSweep)))
	}

	for i := 0; i < 4; i++ {
		require.NoError(t, q.Enqueue(ctx, QueueSNMP, job(TaskSNMPInterfaces)))
	}

	w := NewWatcher(q, []string{QueuePing, QueueSNMP, QueueMaintenance}, zap.New(core))
	require.NoError(t, w.Check(ctx))

	assert.Equal(t, 1, logs.FilterMessage("queue at high-water mark, producers are being rejected").Len())
	assert.Equal(t, 1, logs.FilterMessage("queue approaching high-water mark").Len())

	snap := w.Snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, 5, snap[0].Depth)
}

func TestRedisQueue(t *testing.T) {
	addr := os.Getenv("WARDFLUX_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("WARDFLUX_TEST_REDIS_ADDR not set")
	}

	ctx := context.Background()
	prefix := fmt.Sprintf("wardflux:test:%s:", uuid.NewString())

	q, err := NewRedisQueue(ctx, RedisConfig{Addr: addr, KeyPrefix: prefix}, 2, nil)
	require.NoError(t, err)

	defer q.Close()

	first := job(TaskPingSweep)
	require.NoError(t, q.Enqueue(ctx, QueuePing, first))
	require.NoError(t, q.Enqueue(ctx, QueuePing, job(TaskPingSweep)))
	require.ErrorIs(t, q.Enqueue(ctx, QueuePing, job(TaskPingSweep)), ErrBackpressure)

	depth, err := q.Depth(ctx, QueuePing)
	require.NoError(t, err)
	assert.Equal(t, 2, depth)

	got, err := q.Dequeue(ctx, QueuePing)
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)
	assert.Equal(t, first.Devices, got.Devices)
}

func TestDecodeJob(t *testing.T) {
	_, err := decodeJob("{not json")
	require.Error(t, err)

	j, err := decodeJob(`{"id":"a","task":"ping.sweep","devices":[{"id":3,"ip":"10.0.0.3","name":"r3"}],"scheduled_at":"2025-03-01T12:00:00Z"}`)
	require.NoError(t, err)
	assert.Equal(t, int64(3), j.Devices[0].ID)
	assert.Equal(t, time.UTC, j.ScheduledAt.Location())
}
