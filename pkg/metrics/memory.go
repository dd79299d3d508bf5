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

package metrics

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wardflux/wardflux/pkg/logger"
	"github.com/wardflux/wardflux/pkg/models"
	"go.uber.org/zap"
)

const defaultRetention = 120

var ErrTooManySeries = errors.New("series limit reached")

type series struct {
	name   string
	labels map[string]string
	buffer *ringBuffer
}

// MemorySink keeps the last Retention points of each series in process.
type MemorySink struct {
	series       sync.Map // series key -> *series
	config       models.MetricsConfig
	activeSeries atomic.Int64
	logger       *zap.Logger
}

// NewMemorySink creates a MemorySink.
func NewMemorySink(cfg models.MetricsConfig, log *zap.Logger) *MemorySink {
	if cfg.Retention <= 0 {
		cfg.Retention = defaultRetention
	}

	return &MemorySink{
		config: cfg,
		logger: logger.Component(log, "metrics"),
	}
}

// WriteSample implements Sink.
func (m *MemorySink) WriteSample(_ context.Context, name string, labels map[string]string, value float64, ts time.Time) error {
	if !m.config.Enabled {
		return nil
	}

	key := models.SeriesKey(name, labels)

	s, ok := m.series.Load(key)
	if !ok {
		if m.config.MaxSeries > 0 && m.activeSeries.Load() >= int64(m.config.MaxSeries) {
			return fmt.Errorf("%w: %d", ErrTooManySeries, m.config.MaxSeries)
		}

		copied := make(map[string]string, len(labels))
		for k, v := range labels {
			copied[k] = v
		}

		var loaded bool

		s, loaded = m.series.LoadOrStore(key, &series{
			name:   name,
			labels: copied,
			buffer: newRingBuffer(m.config.Retention),
		})
		if !loaded {
			m.activeSeries.Add(1)
		}
	}

	s.(*series).buffer.Add(ts, value)

	return nil
}

// QueryLatest implements Sink.
func (m *MemorySink) QueryLatest(_ context.Context, matchers []models.LabelMatcher) ([]models.Sample, error) {
	compiled, err := compileMatchers(matchers)
	if err != nil {
		return nil, err
	}

	var samples []models.Sample

	m.series.Range(func(_, v any) bool {
		s := v.(*series)

		if !matchAll(compiled, s.name, s.labels) {
			return true
		}

		p, ok := s.buffer.Latest()
		if !ok {
			return true
		}

		samples = append(samples, models.Sample{
			Name:      s.name,
			Labels:    s.labels,
			Value:     p.value,
			Timestamp: models.NewUTCTime(time.Unix(0, p.timestamp)),
		})

		return true
	})

	sort.Slice(samples, func(i, j int) bool {
		return models.SeriesKey(samples[i].Name, samples[i].Labels) < models.SeriesKey(samples[j].Name, samples[j].Labels)
	})

	return samples, nil
}

// Points returns the buffered values of one series, newest write first.
func (m *MemorySink) Points(name string, labels map[string]string) []models.Sample {
	v, ok := m.series.Load(models.SeriesKey(name, labels))
	if !ok {
		return nil
	}

	s := v.(*series)
	points := s.buffer.Points()
	out := make([]models.Sample, 0, len(points))

	for _, p := range points {
		out = append(out, models.Sample{
			Name:      s.name,
			Labels:    s.labels,
			Value:     p.value,
			Timestamp: models.NewUTCTime(time.Unix(0, p.timestamp)),
		})
	}

	return out
}

// ActiveSeries returns the number of series held.
func (m *MemorySink) ActiveSeries() int64 {
	return m.activeSeries.Load()
}

// CleanupStale drops series whose newest point is older than staleDuration.
func (m *MemorySink) CleanupStale(staleDuration time.Duration) int {
	cutoff := time.Now().Add(-staleDuration).UnixNano()
	removed := 0

	m.series.Range(func(k, v any) bool {
		p, ok := v.(*series).buffer.Latest()
		if ok && p.timestamp >= cutoff {
			return true
		}

		if _, deleted := m.series.LoadAndDelete(k); deleted {
			m.activeSeries.Add(-1)
			removed++
		}

		return true
	})

	if removed > 0 {
		m.logger.Debug("dropped stale series", zap.Int("removed", removed))
	}

	return removed
}
