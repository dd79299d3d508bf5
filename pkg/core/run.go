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
	"time"

	"github.com/wardflux/wardflux/pkg/config"
	"github.com/wardflux/wardflux/pkg/lifecycle"
	"github.com/wardflux/wardflux/pkg/logger"
	"go.uber.org/zap"
)

const shutdownSlack = 5 * time.Second

var errNeedsSharedQueue = errors.New("split beat and worker processes need the redis queue backend")

// RunOptions describes one wardflux binary.
type RunOptions struct {
	ConfigPath  string
	ServiceName string
	Roles       Options
	// SharedQueue rejects the in-process memory queue.
	SharedQueue bool
}

// Run loads configuration, builds the server and runs it until a signal
// arrives or a worker pool halts.
func Run(ctx context.Context, opts RunOptions) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if opts.SharedQueue && cfg.Queue.Backend != "redis" {
		return fmt.Errorf("%w: %s uses %q", errNeedsSharedQueue, opts.ServiceName, cfg.Queue.Backend)
	}

	log, err := NewLogger(cfg, opts.ServiceName)
	if err != nil {
		return err
	}

	defer func() { _ = log.Sync() }()

	srv, err := NewServer(ctx, cfg, opts.Roles, log)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	return lifecycle.RunServer(ctx, &lifecycle.ServerOptions{
		ListenAddr:      cfg.ListenAddr,
		ServiceName:     opts.ServiceName,
		Service:         srv,
		Handler:         srv.Handler(),
		Logger:          log,
		ShutdownTimeout: cfg.Workers.GracePeriod.Std() + shutdownSlack,
	})
}

// NewLogger builds the process logger from configuration.
func NewLogger(cfg *config.Config, service string) (*zap.Logger, error) {
	log, err := logger.New(logger.Config{
		Level:   cfg.Logging.Level,
		Format:  cfg.Logging.Format,
		Output:  cfg.Logging.Output,
		Service: service,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	return log, nil
}
