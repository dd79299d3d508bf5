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

package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/wardflux/wardflux/pkg/alerts"
	"github.com/wardflux/wardflux/pkg/config"
	"github.com/wardflux/wardflux/pkg/crypto"
	"github.com/wardflux/wardflux/pkg/db"
	"github.com/wardflux/wardflux/pkg/httpx"
	"github.com/wardflux/wardflux/pkg/logger"
	"github.com/wardflux/wardflux/pkg/metrics"
	"github.com/wardflux/wardflux/pkg/models"
	"github.com/wardflux/wardflux/pkg/monitoring"
	"github.com/wardflux/wardflux/pkg/poller"
	"github.com/wardflux/wardflux/pkg/queue"
	"github.com/wardflux/wardflux/pkg/registry"
	"github.com/wardflux/wardflux/pkg/scheduler"
	"github.com/wardflux/wardflux/pkg/tracker"
	"go.uber.org/zap"
)

const (
	queueCheckInterval   = 15 * time.Second
	seriesCleanupEvery   = 5 * time.Minute
	seriesStaleAfter     = 30 * time.Minute
	dataCleanupEvery     = time.Hour
	maintenanceTimeout   = time.Minute
	initialSweepTimeout  = 30 * time.Second
	defaultStopTimeout   = 15 * time.Second
	fatalChannelCapacity = 4
)

// Options selects which roles a Server runs.
type Options struct {
	// Beat runs the scheduler.
	Beat bool
	// Workers runs the ping, SNMP and maintenance pools.
	Workers bool
	// InitialSweep runs one ping sweep as soon as the beat starts.
	InitialSweep bool
	// Queue overrides the configured queue backend, mainly for tests.
	Queue queue.Queue
	// Pinger overrides the ICMP pinger, mainly for tests.
	Pinger poller.Pinger
	// Collector overrides the SNMP collector, mainly for tests.
	Collector poller.InterfaceCollector
}

// Server owns every long-running component of one wardflux process.
type Server struct {
	cfg    *config.Config
	opts   Options
	base   *zap.Logger
	logger *zap.Logger

	db        *db.DB
	queue     queue.Queue
	router    *queue.Router
	registry  *registry.Registry
	scheduler *scheduler.Scheduler
	tracker   *tracker.Tracker
	engine    *alerts.Engine
	sink      metrics.Sink
	memSink   *metrics.MemorySink
	watcher   *queue.Watcher
	diagnoser *Diagnoser
	pools     []*poller.Pool
	monitors  []*monitorJob

	mu       sync.Mutex
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	fatal    chan error
	stopOnce sync.Once
}

type monitorJob struct {
	monitor *monitoring.Monitor
	check   monitoring.CheckFunc
}

// NewServer opens the store and queue and builds every component. Nothing
// runs until Start.
func NewServer(ctx context.Context, cfg *config.Config, opts Options, log *zap.Logger) (*Server, error) {
	if log == nil {
		log = zap.NewNop()
	}

	s := &Server{
		cfg:    cfg,
		opts:   opts,
		base:   log,
		logger: logger.Component(log, "core"),
		router: queue.DefaultRouter(),
		fatal:  make(chan error, fatalChannelCapacity),
	}

	database, err := db.New(ctx, db.Options{
		Driver:       cfg.Database.Driver,
		DSN:          cfg.Database.DSN,
		MaxOpenConns: cfg.Database.MaxOpenConns,
		TxTimeout:    cfg.Database.TxTimeout.Std(),
		TxRetries:    cfg.Database.TxRetries,
		Logger:       logger.Component(log, "db"),
	})
	if err != nil {
		return nil, err
	}

	s.db = database

	if err := s.build(ctx, log); err != nil {
		_ = database.Close()

		if s.queue != nil && opts.Queue == nil {
			_ = s.queue.Close()
		}

		return nil, err
	}

	return s, nil
}

func (s *Server) build(ctx context.Context, log *zap.Logger) error {
	cfg := s.cfg

	q, err := s.openQueue(ctx, log)
	if err != nil {
		return err
	}

	s.queue = q
	s.registry = registry.New(s.db, log)

	sched, err := scheduler.New(s.router, q, s.registry,
		scheduler.Options{Profile: cfg.Profile, Logger: log},
		scheduler.DefaultSchedules(
			cfg.Scheduler.PingInterval.Std(),
			cfg.Scheduler.SNMPInterval.Std(),
			cfg.Scheduler.ReconcileInterval.Std(),
			cfg.Scheduler.BatchSize)...)
	if err != nil {
		return err
	}

	s.scheduler = sched

	switch cfg.Metrics.Sink {
	case "sql":
		s.sink = metrics.NewSQLSink(s.db)
	default:
		s.memSink = metrics.NewMemorySink(models.MetricsConfig{Enabled: true, Retention: cfg.Metrics.Retention}, log)
		s.sink = s.memSink
	}

	notifier, err := buildNotifier(cfg.Alerts, log)
	if err != nil {
		return err
	}

	s.engine = alerts.NewEngine(s.db, notifier, log)
	s.tracker = tracker.New(s.db, log, s.engine)
	s.watcher = queue.NewWatcher(q, s.router.Queues(), logger.Component(log, "queue"))

	pinger := s.opts.Pinger
	if pinger == nil {
		pinger = poller.NewICMPPinger(poller.PingConfig{
			Timeout:    cfg.Ping.Timeout.Std(),
			Retries:    cfg.Ping.Retries,
			RatePerSec: cfg.Ping.RatePerSec,
			Privileged: cfg.Ping.Privileged,
		})
	}

	s.diagnoser = NewDiagnoser(DiagnoserOptions{
		Profile: cfg.Profile,
		Devices: s.registry,
		Planner: s.scheduler,
		Queue:   q,
		Pinger:  pinger,
		States:  s.db,
		Logger:  log,
	})

	if s.opts.Workers {
		if err := s.buildPools(pinger, log); err != nil {
			return err
		}
	}

	s.buildMonitors(log)

	return nil
}

func (s *Server) openQueue(ctx context.Context, log *zap.Logger) (queue.Queue, error) {
	if s.opts.Queue != nil {
		return s.opts.Queue, nil
	}

	qlog := logger.Component(log, "queue")

	switch s.cfg.Queue.Backend {
	case "redis":
		return queue.NewRedisQueue(ctx, queue.RedisConfig{
			Addr:     s.cfg.Queue.Redis.Addr,
			Password: s.cfg.Queue.Redis.Password,
			DB:       s.cfg.Queue.Redis.DB,
		}, s.cfg.Queue.HighWater, qlog)
	default:
		return queue.NewMemoryQueue(s.cfg.Queue.HighWater, qlog), nil
	}
}

const webhookKindDiscord = "discord"

func buildNotifier(cfg config.AlertsConfig, log *zap.Logger) (alerts.Notifier, error) {
	notifiers := alerts.Multi{alerts.NewLogNotifier(log)}

	for i := range cfg.Webhooks {
		if !cfg.Webhooks[i].Enabled {
			continue
		}

		var (
			wh  *alerts.WebhookNotifier
			err error
		)

		if cfg.Webhooks[i].Kind == webhookKindDiscord {
			wh, err = alerts.NewDiscordNotifier(cfg.Webhooks[i].URL, cfg.Webhooks[i].Cooldown.Std(), log)
		} else {
			wh, err = alerts.NewWebhookNotifier(cfg.Webhooks[i], log)
		}

		if err != nil {
			return nil, fmt.Errorf("webhook %d: %w", i, err)
		}

		notifiers = append(notifiers, wh)
	}

	return notifiers, nil
}

type missingKey struct{}

func (missingKey) Decrypt(string) (string, error) {
	return "", crypto.ErrNoKey
}

func (s *Server) decrypter() crypto.Decrypter {
	if s.cfg.SecretKey == "" {
		s.logger.Warn("no secret key configured, SNMP devices will be skipped")

		return missingKey{}
	}

	box, err := crypto.NewSecretBox(s.cfg.SecretKey)
	if err != nil {
		s.logger.Warn("invalid secret key, SNMP devices will be skipped", zap.Error(err))

		return missingKey{}
	}

	return box
}

func (s *Server) buildPools(pinger poller.Pinger, log *zap.Logger) error {
	cfg := s.cfg

	batch := poller.BatchOptions{
		Parallelism:   cfg.Workers.DeviceParallelism,
		DeviceTimeout: cfg.Workers.DeviceTimeout.Std(),
	}

	collector := s.opts.Collector
	if collector == nil {
		collector = poller.NewSNMPCollector(cfg.SNMP.Timeout.Std(), cfg.SNMP.Retries)
	}

	pools := []struct {
		task    string
		workers int
		handler poller.Handler
	}{
		{queue.TaskPingSweep, cfg.Workers.Ping, poller.NewPingHandler(pinger, s.tracker, s.sink, batch, log)},
		{queue.TaskSNMPInterfaces, cfg.Workers.SNMP,
			poller.NewSNMPHandler(collector, s.registry, s.decrypter(), s.db, s.sink, batch, log)},
		{queue.TaskStateReconcile, cfg.Workers.Maintenance, poller.NewReconcileHandler(s.tracker, s.engine, log)},
	}

	for _, p := range pools {
		qname, err := s.router.Route(p.task)
		if err != nil {
			return err
		}

		s.pools = append(s.pools, poller.NewPool(s.queue, poller.PoolOptions{
			Queue:         qname,
			Workers:       p.workers,
			GracePeriod:   cfg.Workers.GracePeriod.Std(),
			MaxDBFailures: cfg.Workers.MaxDBFailures,
		}, map[string]poller.Handler{p.task: p.handler}, log))
	}

	return nil
}

func (s *Server) buildMonitors(log *zap.Logger) {
	s.addMonitor(log, monitoring.MonitorConfig{Name: "queues", Interval: queueCheckInterval, Timeout: queueCheckInterval},
		s.watcher.Check)

	if s.memSink != nil {
		s.addMonitor(log, monitoring.MonitorConfig{Name: "series_cleanup", Interval: seriesCleanupEvery},
			func(context.Context) error {
				if n := s.memSink.CleanupStale(seriesStaleAfter); n > 0 {
					s.logger.Info("dropped stale series", zap.Int("series", n))
				}

				return nil
			})
	}

	if s.opts.Workers {
		retention := s.cfg.Metrics.RetentionPeriod.Std()

		s.addMonitor(log, monitoring.MonitorConfig{Name: "data_cleanup", Interval: dataCleanupEvery, Timeout: maintenanceTimeout},
			func(ctx context.Context) error {
				return s.db.CleanOldData(ctx, retention)
			})
	}
}

func (s *Server) addMonitor(log *zap.Logger, cfg monitoring.MonitorConfig, check monitoring.CheckFunc) {
	s.monitors = append(s.monitors, &monitorJob{monitor: monitoring.NewMonitor(cfg, log), check: check})
}

// Start launches the configured roles and blocks until ctx is done or a
// worker pool halts, in which case the pool error is returned.
func (s *Server) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	for _, m := range s.monitors {
		s.wg.Add(1)

		go func(m *monitorJob) {
			defer s.wg.Done()

			m.monitor.StartMonitoring(ctx, m.check)
		}(m)
	}

	for _, p := range s.pools {
		s.wg.Add(1)

		go func(p *poller.Pool) {
			defer s.wg.Done()

			if err := p.Run(ctx); err != nil {
				select {
				case s.fatal <- err:
				default:
				}
			}
		}(p)
	}

	if s.opts.Beat {
		if err := s.scheduler.Start(ctx); err != nil {
			return err
		}

		if s.opts.InitialSweep {
			s.initialSweep(ctx)
		}
	}

	s.logger.Info("server started",
		zap.Bool("beat", s.opts.Beat),
		zap.Bool("workers", s.opts.Workers),
		zap.String("profile", s.cfg.Profile),
		zap.String("queue_backend", s.cfg.Queue.Backend))

	select {
	case <-ctx.Done():
		return nil
	case err := <-s.fatal:
		return err
	}
}

func (s *Server) initialSweep(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, initialSweepTimeout)
	defer cancel()

	if _, err := s.scheduler.RunOnce(ctx, queue.TaskPingSweep); err != nil {
		s.logger.Error("initial sweep failed", zap.Error(err))
	}
}

// Stop stops the beat, drains the pools within their grace period and
// closes the queue and store.
func (s *Server) Stop(ctx context.Context) error {
	var errs []error

	s.stopOnce.Do(func() {
		if _, ok := ctx.Deadline(); !ok {
			var cancel context.CancelFunc

			ctx, cancel = context.WithTimeout(ctx, defaultStopTimeout)
			defer cancel()
		}

		if err := s.scheduler.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("scheduler: %w", err))
		}

		for _, p := range s.pools {
			if err := p.Stop(ctx); err != nil {
				errs = append(errs, fmt.Errorf("pool: %w", err))
			}
		}

		for _, m := range s.monitors {
			m.monitor.Stop(ctx)
		}

		s.mu.Lock()
		cancel := s.cancel
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
		case <-ctx.Done():
			errs = append(errs, ctx.Err())
		}

		if err := s.queue.Close(); err != nil {
			errs = append(errs, fmt.Errorf("queue: %w", err))
		}

		if err := s.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("db: %w", err))
		}

		s.logger.Info("server stopped")
	})

	return errors.Join(errs...)
}

// Handler returns the diagnostics router for this server.
func (s *Server) Handler() *mux.Router {
	return httpx.NewRouter(httpx.Options{
		Health:  s.db,
		Queues:  s.watcher,
		Sweeps:  s.scheduler,
		Devices: s.diagnoser,
		Samples: s.sink,
		Logger:  s.base,
	})
}

// Diagnose follows ip through the pipeline.
func (s *Server) Diagnose(ctx context.Context, ip string) (*models.DeviceDiagnosis, error) {
	return s.diagnoser.Diagnose(ctx, ip)
}

// DB exposes the store, for seeding and tests.
func (s *Server) DB() *db.DB {
	return s.db
}

// Scheduler exposes the beat.
func (s *Server) Scheduler() *scheduler.Scheduler {
	return s.scheduler
}

// Sink exposes the metrics sink.
func (s *Server) Sink() metrics.Sink {
	return s.sink
}
