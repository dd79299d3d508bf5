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

// Package scheduler is the beat: it turns the device registry into batched
// poll jobs on a fixed interval.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wardflux/wardflux/pkg/logger"
	"github.com/wardflux/wardflux/pkg/models"
	"github.com/wardflux/wardflux/pkg/queue"
	"github.com/wardflux/wardflux/pkg/registry"
	"github.com/wardflux/wardflux/pkg/telemetry"
	"go.uber.org/zap"
)

const (
	DefaultBatchSize = 100
	historySize      = 50
)

var (
	errUnknownSchedule   = errors.New("unknown schedule")
	errInvalidSchedule   = errors.New("invalid schedule")
	errDuplicateSchedule = errors.New("schedule already registered")
	errAlreadyStarted    = errors.New("scheduler already started")
)

// DeviceSource lists the devices a sweep must cover.
type DeviceSource interface {
	ListEnabledDevices(ctx context.Context, profile string) ([]models.Device, registry.Diagnostics, error)
}

// Schedule is one periodic task.
type Schedule struct {
	Name      string
	Task      string
	Interval  time.Duration
	BatchSize int
	// Singleton schedules enqueue a single job without devices.
	Singleton bool
}

// DefaultSchedules returns the built-in ping, SNMP and reconcile schedules.
func DefaultSchedules(ping, snmp, reconcile time.Duration, batchSize int) []Schedule {
	return []Schedule{
		{Name: queue.TaskPingSweep, Task: queue.TaskPingSweep, Interval: ping, BatchSize: batchSize},
		{Name: queue.TaskSNMPInterfaces, Task: queue.TaskSNMPInterfaces, Interval: snmp, BatchSize: batchSize},
		{Name: queue.TaskStateReconcile, Task: queue.TaskStateReconcile, Interval: reconcile, Singleton: true},
	}
}

// Options configures a Scheduler.
type Options struct {
	Profile string
	Logger  *zap.Logger
}

// Scheduler enqueues jobs for every registered schedule.
type Scheduler struct {
	router  *queue.Router
	queue   queue.Queue
	source  DeviceSource
	profile string
	logger  *zap.Logger

	mu        sync.Mutex
	schedules map[string]Schedule
	order     []string
	history   []models.SweepSummary
	running   bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// New creates a Scheduler. Any schedule whose task has no route fails here.
func New(router *queue.Router, q queue.Queue, source DeviceSource, opts Options, schedules ...Schedule) (*Scheduler, error) {
	s := &Scheduler{
		router:    router,
		queue:     q,
		source:    source,
		profile:   opts.Profile,
		logger:    logger.Component(opts.Logger, "scheduler"),
		schedules: make(map[string]Schedule),
	}

	if s.profile == "" {
		s.profile = models.DefaultProfile
	}

	for _, sc := range schedules {
		if err := s.Register(sc); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// Register adds a schedule after validating its route.
func (s *Scheduler) Register(sc Schedule) error {
	if _, err := s.router.Route(sc.Task); err != nil {
		return fmt.Errorf("schedule %q: %w", sc.Name, err)
	}

	if sc.Name == "" || sc.Interval <= 0 {
		return fmt.Errorf("%w: %q needs a name and a positive interval", errInvalidSchedule, sc.Name)
	}

	if sc.BatchSize <= 0 {
		sc.BatchSize = DefaultBatchSize
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.schedules[sc.Name]; ok {
		return fmt.Errorf("%w: %q", errDuplicateSchedule, sc.Name)
	}

	s.schedules[sc.Name] = sc
	s.order = append(s.order, sc.Name)

	return nil
}

// Start launches one ticker per schedule. Missed ticks are dropped.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return errAlreadyStarted
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true

	for _, name := range s.order {
		sc := s.schedules[name]

		s.wg.Add(1)

		go s.loop(ctx, sc)
	}

	s.logger.Info("scheduler started", zap.Int("schedules", len(s.order)), zap.String("profile", s.profile))

	return nil
}

func (s *Scheduler) loop(ctx context.Context, sc Schedule) {
	defer s.wg.Done()

	ticker := time.NewTicker(sc.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.sweep(ctx, sc); err != nil && ctx.Err() == nil {
				s.logger.Error("sweep failed", zap.String("schedule", sc.Name), zap.Error(err))
			}
		}
	}
}

// Stop cancels the tickers and waits for in-progress sweeps.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	cancel := s.cancel
	s.running = false
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})

	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunOnce runs one sweep of the named schedule immediately.
func (s *Scheduler) RunOnce(ctx context.Context, name string) (models.SweepSummary, error) {
	s.mu.Lock()
	sc, ok := s.schedules[name]
	s.mu.Unlock()

	if !ok {
		return models.SweepSummary{}, fmt.Errorf("%w: %q", errUnknownSchedule, name)
	}

	return s.sweep(ctx, sc)
}

// Sweeps returns the most recent sweep summaries, oldest first.
func (s *Scheduler) Sweeps() []models.SweepSummary {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.SweepSummary, len(s.history))
	copy(out, s.history)

	return out
}

func (s *Scheduler) record(summary models.SweepSummary) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history = append(s.history, summary)
	if len(s.history) > historySize {
		s.history = s.history[len(s.history)-historySize:]
	}
}

// Plan is what one sweep of a schedule would enqueue.
type Plan struct {
	Queue       string
	Batches     [][]models.DeviceRef
	Diagnostics registry.Diagnostics
}

// Contains reports whether a device is part of any batch and returns the
// batch index.
func (p *Plan) Contains(deviceID int64) (int, bool) {
	for i, batch := range p.Batches {
		for _, dev := range batch {
			if dev.ID == deviceID {
				return i, true
			}
		}
	}

	return -1, false
}

// Plan reads the registry for the named schedule and batches the devices
// without touching the queue.
func (s *Scheduler) Plan(ctx context.Context, name string) (*Plan, error) {
	s.mu.Lock()
	sc, ok := s.schedules[name]
	s.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q", errUnknownSchedule, name)
	}

	return s.plan(ctx, sc)
}

func (s *Scheduler) plan(ctx context.Context, sc Schedule) (*Plan, error) {
	qname, err := s.router.Route(sc.Task)
	if err != nil {
		return nil, err
	}

	p := &Plan{Queue: qname}

	if sc.Singleton {
		p.Batches = [][]models.DeviceRef{nil}

		return p, nil
	}

	devices, diag, err := s.source.ListEnabledDevices(ctx, s.profile)
	if err != nil {
		return nil, fmt.Errorf("device registry read: %w", err)
	}

	p.Diagnostics = diag
	p.Batches = chunk(devices, sc.BatchSize)

	return p, nil
}

func (s *Scheduler) sweep(ctx context.Context, sc Schedule) (models.SweepSummary, error) {
	summary := models.SweepSummary{
		SweepID:   uuid.NewString(),
		Schedule:  sc.Name,
		Task:      sc.Task,
		StartedAt: models.NowUTC(),
	}

	p, err := s.plan(ctx, sc)
	if err != nil {
		return summary, err
	}

	qname, batches, diag := p.Queue, p.Batches, p.Diagnostics
	summary.Queue = qname

	log := s.logger.With(
		zap.String(logger.FieldSweepID, summary.SweepID),
		zap.String(logger.FieldTask, sc.Task),
		zap.String(logger.FieldQueue, qname))

	if !sc.Singleton {
		summary.Expected = diag.Expected
		summary.Retrieved = diag.Retrieved
		summary.Missing = diag.Missing

		telemetry.SweepDevices.WithLabelValues(sc.Task, "expected").Set(float64(diag.Expected))
		telemetry.SweepDevices.WithLabelValues(sc.Task, "retrieved").Set(float64(diag.Retrieved))
	}

	summary.Jobs = len(batches)

	if summary.Jobs == 0 {
		log.Info("sweep scheduled", zap.Int("devices", 0), zap.Int("jobs", 0))
		s.record(summary)

		return summary, nil
	}

	depth, err := s.queue.Depth(ctx, qname)
	if err != nil {
		return summary, fmt.Errorf("queue depth: %w", err)
	}

	if depth >= summary.Jobs {
		summary.Skipped = true
		summary.Reason = fmt.Sprintf("queue holds %d jobs, a sweep needs %d", depth, summary.Jobs)

		telemetry.SweepsSkipped.WithLabelValues(sc.Task).Inc()
		log.Warn("sweep skipped, previous sweep not yet consumed",
			zap.Int("depth", depth),
			zap.Int("jobs", summary.Jobs))
		s.record(summary)

		return summary, nil
	}

	devicesScheduled := 0

	for _, batch := range batches {
		job := &models.Job{
			ID:          uuid.NewString(),
			Task:        sc.Task,
			Queue:       qname,
			Devices:     batch,
			SweepID:     summary.SweepID,
			ScheduledAt: models.NowUTC(),
		}

		if err := s.queue.Enqueue(ctx, qname, job); err != nil {
			summary.Reason = err.Error()

			log.Error("enqueue failed, remaining jobs of this sweep dropped",
				zap.Int("enqueued", summary.Enqueued),
				zap.Int("jobs", summary.Jobs),
				zap.Error(err))

			break
		}

		summary.Enqueued++
		devicesScheduled += len(batch)

		for i := range batch {
			log.Debug("device scheduled",
				append(logger.Device(batch[i].ID, batch[i].IP),
					zap.String(logger.FieldStage, logger.StageScheduled),
					zap.String(logger.FieldJobID, job.ID))...)
		}
	}

	log.Info("sweep scheduled",
		zap.Int("devices", devicesScheduled),
		zap.Int("expected", summary.Expected),
		zap.Int("retrieved", summary.Retrieved),
		zap.Int("jobs", summary.Jobs),
		zap.Int("enqueued", summary.Enqueued))

	s.record(summary)

	return summary, nil
}

func chunk(devices []models.Device, size int) [][]models.DeviceRef {
	if size <= 0 {
		size = DefaultBatchSize
	}

	batches := make([][]models.DeviceRef, 0, (len(devices)+size-1)/size)

	for start := 0; start < len(devices); start += size {
		end := start + size
		if end > len(devices) {
			end = len(devices)
		}

		batch := make([]models.DeviceRef, 0, end-start)
		for i := start; i < end; i++ {
			batch = append(batch, devices[i].Ref())
		}

		batches = append(batches, batch)
	}

	return batches
}
