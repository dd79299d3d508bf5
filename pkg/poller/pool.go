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
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wardflux/wardflux/pkg/db"
	"github.com/wardflux/wardflux/pkg/logger"
	"github.com/wardflux/wardflux/pkg/models"
	"github.com/wardflux/wardflux/pkg/queue"
	"github.com/wardflux/wardflux/pkg/telemetry"
	"go.uber.org/zap"
)

const (
	defaultGracePeriod   = 10 * time.Second
	defaultMaxDBFailures = 10
	dequeueBackoff       = time.Second
)

// PoolOptions configures one worker pool.
type PoolOptions struct {
	Queue         string
	Workers       int
	GracePeriod   time.Duration
	MaxDBFailures int
}

// Pool is a fixed set of workers consuming one queue.
type Pool struct {
	q        queue.Queue
	opts     PoolOptions
	handlers map[string]Handler
	logger   *zap.Logger

	running  atomic.Bool
	failures atomic.Int32
	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
	haltOnce sync.Once
	halted   chan struct{}
}

// NewPool creates a pool. handlers maps task names to their handler.
func NewPool(q queue.Queue, opts PoolOptions, handlers map[string]Handler, log *zap.Logger) *Pool {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}

	if opts.GracePeriod <= 0 {
		opts.GracePeriod = defaultGracePeriod
	}

	if opts.MaxDBFailures <= 0 {
		opts.MaxDBFailures = defaultMaxDBFailures
	}

	return &Pool{
		q:        q,
		opts:     opts,
		handlers: handlers,
		logger:   logger.Component(log, "pool").With(zap.String(logger.FieldQueue, opts.Queue)),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
		halted:   make(chan struct{}),
	}
}

// Run blocks until ctx is done, Stop is called or the pool halts. In-flight
// jobs get the grace period to finish and are then cancelled. Run returns
// ErrPoolHalted when consecutive database failures exceeded the bound.
func (p *Pool) Run(ctx context.Context) error {
	if !p.running.CompareAndSwap(false, true) {
		return errAlreadyRunning
	}
	defer close(p.done)

	telemetry.PoolHalted.WithLabelValues(p.opts.Queue).Set(0)

	dequeueCtx, stopDequeue := context.WithCancel(ctx)
	defer stopDequeue()

	// jobs outlive ctx by up to the grace period
	workCtx, abandon := context.WithCancel(context.WithoutCancel(ctx))
	defer abandon()

	var wg sync.WaitGroup

	for i := 0; i < p.opts.Workers; i++ {
		wg.Add(1)

		go func(id int) {
			defer wg.Done()

			p.work(dequeueCtx, workCtx, id)
		}(i)
	}

	p.logger.Info("worker pool started", zap.Int("workers", p.opts.Workers))

	select {
	case <-ctx.Done():
	case <-p.stop:
	case <-p.halted:
	}

	stopDequeue()

	finished := make(chan struct{})

	go func() {
		wg.Wait()
		close(finished)
	}()

	timer := time.NewTimer(p.opts.GracePeriod)
	defer timer.Stop()

	select {
	case <-finished:
	case <-timer.C:
		p.logger.Warn("grace period expired, abandoning in-flight jobs", zap.Duration("grace_period", p.opts.GracePeriod))
		abandon()
		<-finished
	}

	p.logger.Info("worker pool stopped")

	select {
	case <-p.halted:
		return ErrPoolHalted
	default:
		return nil
	}
}

// Stop asks Run to return and waits for it, or for ctx.
func (p *Pool) Stop(ctx context.Context) error {
	p.stopOnce.Do(func() { close(p.stop) })

	if !p.running.Load() {
		return nil
	}

	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Halted reports whether the pool stopped on database failures.
func (p *Pool) Halted() bool {
	select {
	case <-p.halted:
		return true
	default:
		return false
	}
}

func (p *Pool) work(dequeueCtx, workCtx context.Context, id int) {
	log := p.logger.With(zap.Int("worker", id))

	for {
		job, err := p.q.Dequeue(dequeueCtx, p.opts.Queue)
		if err != nil {
			if dequeueCtx.Err() != nil || errors.Is(err, queue.ErrClosed) {
				return
			}

			log.Warn("dequeue failed", zap.Error(err))

			select {
			case <-dequeueCtx.Done():
				return
			case <-time.After(dequeueBackoff):
			}

			continue
		}

		p.run(workCtx, log, job)
	}
}

func (p *Pool) run(ctx context.Context, log *zap.Logger, job *models.Job) {
	handler, ok := p.handlers[job.Task]
	if !ok {
		log.Error("no handler for task",
			zap.String(logger.FieldTask, job.Task),
			zap.String(logger.FieldJobID, job.ID),
			zap.String(logger.FieldSweepID, job.SweepID))

		return
	}

	err := handler.Handle(ctx, job)

	switch {
	case err == nil:
		p.failures.Store(0)
	case errors.Is(err, db.ErrDBUnavailable):
		n := p.failures.Add(1)

		log.Error("job hit unavailable database",
			zap.String(logger.FieldJobID, job.ID),
			zap.Int32("consecutive_failures", n),
			zap.Error(err))

		if int(n) >= p.opts.MaxDBFailures {
			p.halt(int(n))
		}
	default:
		p.failures.Store(0)

		log.Error("job failed",
			zap.String(logger.FieldJobID, job.ID),
			zap.String(logger.FieldTask, job.Task),
			zap.Error(err))
	}
}

func (p *Pool) halt(failures int) {
	p.haltOnce.Do(func() {
		telemetry.PoolHalted.WithLabelValues(p.opts.Queue).Set(1)
		p.logger.Error("worker pool halted", zap.Int("consecutive_failures", failures))
		close(p.halted)
	})
}
