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

package scheduler

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wardflux/wardflux/pkg/logger"
	"github.com/wardflux/wardflux/pkg/models"
	"github.com/wardflux/wardflux/pkg/queue"
	"github.com/wardflux/wardflux/pkg/registry"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type sourceFunc func(ctx context.Context, profile string) ([]models.Device, registry.Diagnostics, error)

func (f sourceFunc) ListEnabledDevices(ctx context.Context, profile string) ([]models.Device, registry.Diagnostics, error) {
	return f(ctx, profile)
}

func fleet(n int) sourceFunc {
	devices := make([]models.Device, 0, n)
	for i := 1; i <= n; i++ {
		devices = append(devices, models.Device{ID: int64(i), IP: fmt.Sprintf("10.0.%d.%d", i/250, i%250), Enabled: true})
	}

	return func(context.Context, string) ([]models.Device, registry.Diagnostics, error) {
		return devices, registry.Diagnostics{Expected: n, Retrieved: n}, nil
	}
}

func TestNewRejectsUnroutedSchedule(t *testing.T) {
	_, err := New(queue.DefaultRouter(), queue.NewMemoryQueue(10, nil), fleet(1), Options{},
		Schedule{Name: "legacy", Task: "monitoring.tasks.ping_all_devices", Interval: time.Second})
	require.ErrorIs(t, err, queue.ErrUnroutedTask)
}

func TestRegisterValidates(t *testing.T) {
	s, err := New(queue.DefaultRouter(), queue.NewMemoryQueue(10, nil), fleet(1), Options{})
	require.NoError(t, err)

	require.Error(t, s.Register(Schedule{Name: "x", Task: queue.TaskPingSweep}))
	require.NoError(t, s.Register(Schedule{Name: "x", Task: queue.TaskPingSweep, Interval: time.Second}))
	require.ErrorIs(t, s.Register(Schedule{Name: "x", Task: queue.TaskPingSweep, Interval: time.Second}), errDuplicateSchedule)
}

func TestRunOnceBatchesDevices(t *testing.T) {
	ctx := context.Background()
	q := queue.NewMemoryQueue(100, nil)

	core, logs := observer.New(zap.DebugLevel)

	s, err := New(queue.DefaultRouter(), q, fleet(250), Options{Logger: zap.New(core)},
		DefaultSchedules(30*time.Second, time.Minute, 5*time.Minute, 100)...)
	require.NoError(t, err)

	summary, err := s.RunOnce(ctx, queue.TaskPingSweep)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Jobs)
	assert.Equal(t, 3, summary.Enqueued)
	assert.Equal(t, 250, summary.Retrieved)
	assert.False(t, summary.Skipped)

	depth, err := q.Depth(ctx, queue.QueuePing)
	require.NoError(t, err)
	assert.Equal(t, 3, depth)

	sizes := []int{}
	seen := map[int64]bool{}

	for i := 0; i < 3; i++ {
		job, err := q.Dequeue(ctx, queue.QueuePing)
		require.NoError(t, err)
		assert.Equal(t, summary.SweepID, job.SweepID)
		assert.Equal(t, queue.TaskPingSweep, job.Task)

		sizes = append(sizes, len(job.Devices))

		for _, d := range job.Devices {
			seen[d.ID] = true
		}
	}

	assert.Equal(t, []int{100, 100, 50}, sizes)
	assert.Len(t, seen, 250)

	scheduled := logs.FilterField(zap.String(logger.FieldStage, logger.StageScheduled))
	assert.Equal(t, 250, scheduled.Len())
	assert.Equal(t, 1, logs.FilterMessage("sweep scheduled").Len())
}

func TestRunOnceSkipsWhenQueueHoldsFullSweep(t *testing.T) {
	ctx := context.Background()
	q := queue.NewMemoryQueue(100, nil)

	s, err := New(queue.DefaultRouter(), q, fleet(150), Options{},
		Schedule{Name: "ping", Task: queue.TaskPingSweep, Interval: time.Second, BatchSize: 100})
	require.NoError(t, err)

	first, err := s.RunOnce(ctx, "ping")
	require.NoError(t, err)
	assert.Equal(t, 2, first.Enqueued)

	second, err := s.RunOnce(ctx, "ping")
	require.NoError(t, err)
	assert.True(t, second.Skipped)
	assert.Zero(t, second.Enqueued)

	depth, err := q.Depth(ctx, queue.QueuePing)
	require.NoError(t, err)
	assert.Equal(t, 2, depth)

	sweeps := s.Sweeps()
	require.Len(t, sweeps, 2)
	assert.True(t, sweeps[1].Skipped)
}

func TestRunOnceStopsOnBackpressure(t *testing.T) {
	ctx := context.Background()
	q := queue.NewMemoryQueue(2, nil)

	s, err := New(queue.DefaultRouter(), q, fleet(10), Options{},
		Schedule{Name: "ping", Task: queue.TaskPingSweep, Interval: time.Second, BatchSize: 2})
	require.NoError(t, err)

	summary, err := s.RunOnce(ctx, "ping")
	require.NoError(t, err)
	assert.Equal(t, 5, summary.Jobs)
	assert.Equal(t, 2, summary.Enqueued)
	assert.Contains(t, summary.Reason, queue.ErrBackpressure.Error())
}

func TestRunOnceSingleton(t *testing.T) {
	ctx := context.Background()
	q := queue.NewMemoryQueue(10, nil)

	source := sourceFunc(func(context.Context, string) ([]models.Device, registry.Diagnostics, error) {
		t.Fatal("singleton schedules do not read the registry")

		return nil, registry.Diagnostics{}, nil
	})

	s, err := New(queue.DefaultRouter(), q, source, Options{},
		Schedule{Name: "reconcile", Task: queue.TaskStateReconcile, Interval: time.Minute, Singleton: true})
	require.NoError(t, err)

	summary, err := s.RunOnce(ctx, "reconcile")
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Enqueued)

	job, err := q.Dequeue(ctx, queue.QueueMaintenance)
	require.NoError(t, err)
	assert.Empty(t, job.Devices)
}

func TestRunOnceRegistryFailure(t *testing.T) {
	boom := errors.New("db down")
	source := sourceFunc(func(context.Context, string) ([]models.Device, registry.Diagnostics, error) {
		return nil, registry.Diagnostics{}, boom
	})

	s, err := New(queue.DefaultRouter(), queue.NewMemoryQueue(10, nil), source, Options{},
		Schedule{Name: "ping", Task: queue.TaskPingSweep, Interval: time.Second})
	require.NoError(t, err)

	_, err = s.RunOnce(context.Background(), "ping")
	require.ErrorIs(t, err, boom)

	_, err = s.RunOnce(context.Background(), "nope")
	require.ErrorIs(t, err, errUnknownSchedule)
}

func TestPlanDoesNotEnqueue(t *testing.T) {
	ctx := context.Background()
	q := queue.NewMemoryQueue(10, nil)

	s, err := New(queue.DefaultRouter(), q, fleet(5), Options{},
		Schedule{Name: "ping", Task: queue.TaskPingSweep, Interval: time.Second, BatchSize: 2})
	require.NoError(t, err)

	p, err := s.Plan(ctx, "ping")
	require.NoError(t, err)
	assert.Equal(t, queue.QueuePing, p.Queue)
	assert.Len(t, p.Batches, 3)
	assert.Equal(t, 5, p.Diagnostics.Retrieved)

	idx, ok := p.Contains(5)
	assert.True(t, ok)
	assert.Equal(t, 2, idx)

	_, ok = p.Contains(42)
	assert.False(t, ok)

	depth, err := q.Depth(ctx, queue.QueuePing)
	require.NoError(t, err)
	assert.Zero(t, depth)

	_, err = s.Plan(ctx, "nope")
	require.ErrorIs(t, err, errUnknownSchedule)
}

func TestStartTicksAndStops(t *testing.T) {
	q := queue.NewMemoryQueue(100, nil)

	s, err := New(queue.DefaultRouter(), q, fleet(3), Options{},
		Schedule{Name: "ping", Task: queue.TaskPingSweep, Interval: 10 * time.Millisecond})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, s.Start(ctx))
	require.ErrorIs(t, s.Start(ctx), errAlreadyStarted)

	assert.Eventually(t, func() bool {
		depth, _ := q.Depth(ctx, queue.QueuePing)

		return depth == 1
	}, 2*time.Second, 5*time.Millisecond)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), time.Second)
	defer stopCancel()

	require.NoError(t, s.Stop(stopCtx))
}

func TestChunk(t *testing.T) {
	assert.Empty(t, chunk(nil, 10))
	assert.Len(t, chunk(make([]models.Device, 10), 10), 1)
	assert.Len(t, chunk(make([]models.Device, 11), 10), 2)
	assert.Len(t, chunk(make([]models.Device, 5), 0), 1)
}
