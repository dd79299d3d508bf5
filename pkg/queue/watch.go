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
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/wardflux/wardflux/pkg/telemetry"
	"go.uber.org/zap"
)

// Watcher samples every queue on each check so that depth and growth are
// visible before backpressure starts rejecting jobs. Growth is measured
// between consecutive checks, so other Stats readers do not move the baseline.
type Watcher struct {
	q      Queue
	queues []string
	logger *zap.Logger
	now    func() time.Time

	mu   sync.RWMutex
	last map[string]Stats
	at   map[string]time.Time
}

// NewWatcher watches the given queue names.
func NewWatcher(q Queue, queues []string, logger *zap.Logger) *Watcher {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Watcher{
		q:      q,
		queues: queues,
		logger: logger,
		now:    time.Now,
		last:   make(map[string]Stats, len(queues)),
		at:     make(map[string]time.Time, len(queues)),
	}
}

// Check samples all queues. It is meant to be driven by monitoring.Monitor.
func (w *Watcher) Check(ctx context.Context) error {
	var errs []error

	for _, name := range w.queues {
		st, err := w.q.Stats(ctx, name)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))

			continue
		}

		st.GrowthPerSecond = w.record(name, st)
		telemetry.QueueGrowth.WithLabelValues(name).Set(st.GrowthPerSecond)

		fields := []zap.Field{
			zap.String("queue", name),
			zap.Int("depth", st.Depth),
			zap.Int("high_water", st.HighWater),
			zap.Float64("growth_per_second", st.GrowthPerSecond),
		}

		switch {
		case st.Depth >= st.HighWater:
			w.logger.Error("queue at high-water mark, producers are being rejected", fields...)
		case st.Depth*5 >= st.HighWater*4:
			w.logger.Warn("queue approaching high-water mark", fields...)
		case st.GrowthPerSecond > 0:
			w.logger.Debug("queue growing", fields...)
		}
	}

	return errors.Join(errs...)
}

// record stores st as the latest sample of name and returns the depth change
// per second since the previous one.
func (w *Watcher) record(name string, st Stats) float64 {
	now := w.now()

	w.mu.Lock()
	defer w.mu.Unlock()

	var growth float64

	prev, ok := w.last[name]
	if ok {
		if elapsed := now.Sub(w.at[name]).Seconds(); elapsed > 0 {
			growth = float64(st.Depth-prev.Depth) / elapsed
		}
	}

	st.GrowthPerSecond = growth
	w.last[name] = st
	w.at[name] = now

	return growth
}

// Snapshot returns the most recent sample of every queue.
func (w *Watcher) Snapshot() []Stats {
	w.mu.RLock()
	defer w.mu.RUnlock()

	out := make([]Stats, 0, len(w.queues))

	for _, name := range w.queues {
		if st, ok := w.last[name]; ok {
			out = append(out, st)
		}
	}

	return out
}
