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

// Package queue carries poll jobs from the scheduler to the worker pools.
package queue

import (
	"context"
	"errors"
	"sync"

	"github.com/wardflux/wardflux/pkg/models"
	"github.com/wardflux/wardflux/pkg/telemetry"
	"go.uber.org/zap"
)

// DefaultHighWater is the depth at which a queue starts rejecting jobs.
const DefaultHighWater = 1000

var (
	ErrUnroutedTask = errors.New("task has no queue route")
	ErrBackpressure = errors.New("queue above high-water mark")
	ErrClosed       = errors.New("queue closed")
)

// Queue is a set of named FIFO job queues.
type Queue interface {
	// Enqueue adds a job without blocking. It fails with ErrBackpressure when
	// the queue already holds HighWater jobs.
	Enqueue(ctx context.Context, queue string, job *models.Job) error
	// Dequeue blocks until a job is available, ctx is done or the queue is closed.
	Dequeue(ctx context.Context, queue string) (*models.Job, error)
	Depth(ctx context.Context, queue string) (int, error)
	// Stats reads depth and counters without side effects. GrowthPerSecond
	// is left zero; only a Watcher measures growth.
	Stats(ctx context.Context, queue string) (Stats, error)
	Close() error
}

// Stats is a point-in-time view of one queue.
type Stats struct {
	Queue           string  `json:"queue"`
	Depth           int     `json:"depth"`
	HighWater       int     `json:"high_water"`
	GrowthPerSecond float64 `json:"growth_per_second"`
	Enqueued        uint64  `json:"enqueued"`
	Dequeued        uint64  `json:"dequeued"`
	Rejected        uint64  `json:"rejected"`
}

type counters struct {
	enqueued uint64
	dequeued uint64
	rejected uint64
}

// tracker keeps per-queue counters.
type tracker struct {
	mu        sync.Mutex
	byQueue   map[string]*counters
	highWater int
	logger    *zap.Logger
}

func newTracker(highWater int, logger *zap.Logger) *tracker {
	if highWater <= 0 {
		highWater = DefaultHighWater
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &tracker{
		byQueue:   make(map[string]*counters),
		highWater: highWater,
		logger:    logger,
	}
}

func (t *tracker) get(queue string) *counters {
	c, ok := t.byQueue[queue]
	if !ok {
		c = &counters{}
		t.byQueue[queue] = c
	}

	return c
}

func (t *tracker) enqueued(queue string) {
	t.mu.Lock()
	t.get(queue).enqueued++
	t.mu.Unlock()
}

func (t *tracker) dequeued(queue string) {
	t.mu.Lock()
	t.get(queue).dequeued++
	t.mu.Unlock()
}

func (t *tracker) rejected(queue string, depth int, job *models.Job) {
	t.mu.Lock()
	t.get(queue).rejected++
	t.mu.Unlock()

	telemetry.EnqueueRejected.WithLabelValues(queue).Inc()

	t.logger.Error("queue backpressure, job rejected",
		zap.String("queue", queue),
		zap.Int("depth", depth),
		zap.Int("high_water", t.highWater),
		zap.String("task", job.Task),
		zap.String("sweep_id", job.SweepID),
		zap.Int("devices", len(job.Devices)))
}

// snapshot returns the counters of queue alongside the given depth.
func (t *tracker) snapshot(queue string, depth int) Stats {
	t.mu.Lock()
	defer t.mu.Unlock()

	c := t.get(queue)

	telemetry.QueueDepth.WithLabelValues(queue).Set(float64(depth))

	return Stats{
		Queue:     queue,
		Depth:     depth,
		HighWater: t.highWater,
		Enqueued:  c.enqueued,
		Dequeued:  c.dequeued,
		Rejected:  c.rejected,
	}
}
