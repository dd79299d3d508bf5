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
	"sync"

	"github.com/wardflux/wardflux/pkg/models"
	"go.uber.org/zap"
)

type memList struct {
	jobs   []*models.Job
	notify chan struct{}
}

// MemoryQueue is an in-process Queue. Jobs do not survive a restart.
type MemoryQueue struct {
	mu     sync.Mutex
	lists  map[string]*memList
	closed bool
	done   chan struct{}
	stats  *tracker
}

var _ Queue = (*MemoryQueue)(nil)

// NewMemoryQueue creates an empty in-process queue.
func NewMemoryQueue(highWater int, logger *zap.Logger) *MemoryQueue {
	return &MemoryQueue{
		lists: make(map[string]*memList),
		done:  make(chan struct{}),
		stats: newTracker(highWater, logger),
	}
}

func (q *MemoryQueue) list(name string) *memList {
	l, ok := q.lists[name]
	if !ok {
		l = &memList{notify: make(chan struct{}, 1)}
		q.lists[name] = l
	}

	return l
}

func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

func (q *MemoryQueue) Enqueue(_ context.Context, name string, job *models.Job) error {
	q.mu.Lock()

	if q.closed {
		q.mu.Unlock()

		return ErrClosed
	}

	l := q.list(name)

	if depth := len(l.jobs); depth >= q.stats.highWater {
		q.mu.Unlock()
		q.stats.rejected(name, depth, job)

		return ErrBackpressure
	}

	l.jobs = append(l.jobs, job)
	signal(l.notify)
	q.mu.Unlock()

	q.stats.enqueued(name)

	return nil
}

func (q *MemoryQueue) Dequeue(ctx context.Context, name string) (*models.Job, error) {
	for {
		q.mu.Lock()

		if q.closed {
			q.mu.Unlock()

			return nil, ErrClosed
		}

		l := q.list(name)

		if len(l.jobs) > 0 {
			job := l.jobs[0]
			l.jobs[0] = nil
			l.jobs = l.jobs[1:]

			if len(l.jobs) > 0 {
				signal(l.notify)
			}

			q.mu.Unlock()
			q.stats.dequeued(name)

			return job, nil
		}

		notify := l.notify
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-q.done:
		case <-notify:
		}
	}
}

func (q *MemoryQueue) Depth(_ context.Context, name string) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.list(name).jobs), nil
}

func (q *MemoryQueue) Stats(ctx context.Context, name string) (Stats, error) {
	depth, err := q.Depth(ctx, name)
	if err != nil {
		return Stats{}, err
	}

	return q.stats.snapshot(name, depth), nil
}

// Close wakes every blocked Dequeue. Queued jobs are dropped.
func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.closed {
		q.closed = true
		close(q.done)
	}

	return nil
}
