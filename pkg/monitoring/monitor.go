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

// Package monitoring pkg/monitoring/monitor.go
package monitoring

import (
	"context"
	"sync"
	"time"

	"github.com/wardflux/wardflux/pkg/logger"
	"go.uber.org/zap"
)

const defaultInterval = 15 * time.Second

// CheckFunc is one periodic housekeeping check.
type CheckFunc func(context.Context) error

// MonitorConfig holds configuration for monitoring.
type MonitorConfig struct {
	Name     string
	Interval time.Duration
	// Timeout bounds a single check. Zero means the check runs until ctx ends.
	Timeout time.Duration
}

// Monitor runs a check on a fixed interval until stopped.
type Monitor struct {
	config MonitorConfig
	logger *zap.Logger
	done   chan struct{}
	once   sync.Once
}

// NewMonitor creates a new monitoring system.
func NewMonitor(cfg MonitorConfig, log *zap.Logger) *Monitor {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}

	return &Monitor{
		config: cfg,
		logger: logger.Component(log, "monitor").With(zap.String("check", cfg.Name)),
		done:   make(chan struct{}),
	}
}

// StartMonitoring runs check immediately and then on every tick. It blocks
// until ctx is done or Stop is called.
func (m *Monitor) StartMonitoring(ctx context.Context, check CheckFunc) {
	ticker := time.NewTicker(m.config.Interval)
	defer ticker.Stop()

	if err := m.run(ctx, check); err != nil {
		m.logger.Warn("initial check failed", zap.Error(err))
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.done:
			return
		case <-ticker.C:
			if err := m.run(ctx, check); err != nil {
				m.logger.Warn("check failed", zap.Error(err))
			}
		}
	}
}

func (m *Monitor) run(ctx context.Context, check CheckFunc) error {
	if m.config.Timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, m.config.Timeout)
		defer cancel()
	}

	return check(ctx)
}

// Stop stops the monitoring. It is safe to call more than once.
func (m *Monitor) Stop(_ context.Context) {
	m.once.Do(func() { close(m.done) })
}
