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

// Package lifecycle pkg/lifecycle/server.go
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
)

const (
	ShutdownTimeout   = 10 * time.Second
	ReadHeaderTimeout = 5 * time.Second
)

// Service defines the interface that all services must implement.
type Service interface {
	Start(context.Context) error
	Stop(context.Context) error
}

// ServerOptions holds configuration for creating a server.
type ServerOptions struct {
	ListenAddr  string
	ServiceName string
	Service     Service
	// Handler is served on ListenAddr. A nil Handler or empty address runs
	// the service without a listener.
	Handler         http.Handler
	Logger          *zap.Logger
	ShutdownTimeout time.Duration
	// Signals overrides SIGINT and SIGTERM, mainly for tests.
	Signals []os.Signal
}

// RunServer starts a service with the provided options and handles lifecycle.
func RunServer(ctx context.Context, opts *ServerOptions) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	log = log.With(zap.String("service_name", opts.ServiceName))
	log.Info("starting service")

	errChan := make(chan error, 2)

	go func() {
		if err := opts.Service.Start(ctx); err != nil {
			select {
			case errChan <- fmt.Errorf("service: %w", err):
			default:
				log.Error("service error", zap.Error(err))
			}
		}
	}()

	var srv *http.Server

	if opts.Handler != nil && opts.ListenAddr != "" {
		lis, err := net.Listen("tcp", opts.ListenAddr)
		if err != nil {
			cancel()
			stopService(opts, log)

			return fmt.Errorf("failed to listen on %s: %w", opts.ListenAddr, err)
		}

		srv = &http.Server{Handler: opts.Handler, ReadHeaderTimeout: ReadHeaderTimeout}

		go func() {
			log.Info("http listener started", zap.String("addr", lis.Addr().String()))

			if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
				select {
				case errChan <- fmt.Errorf("http: %w", err):
				default:
					log.Error("http server error", zap.Error(err))
				}
			}
		}()
	}

	return handleShutdown(ctx, cancel, opts, srv, errChan, log)
}

func handleShutdown(
	ctx context.Context, cancel context.CancelFunc, opts *ServerOptions, srv *http.Server, errChan chan error, log *zap.Logger) error {
	signals := opts.Signals
	if len(signals) == 0 {
		signals = []os.Signal{syscall.SIGINT, syscall.SIGTERM}
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, signals...)

	defer signal.Stop(sigChan)

	var runErr error

	select {
	case sig := <-sigChan:
		log.Info("received signal, initiating shutdown", zap.String("signal", sig.String()))
	case err := <-errChan:
		log.Error("received error, initiating shutdown", zap.Error(err))

		runErr = err
	case <-ctx.Done():
		log.Info("context canceled, initiating shutdown")
	}

	cancel()

	timeout := opts.ShutdownTimeout
	if timeout <= 0 {
		timeout = ShutdownTimeout
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
	defer shutdownCancel()

	if srv != nil {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn("http listener shutdown", zap.Error(err))
		}
	}

	if err := opts.Service.Stop(shutdownCtx); err != nil {
		log.Error("error during service shutdown", zap.Error(err))

		return errors.Join(runErr, fmt.Errorf("shutdown error: %w", err))
	}

	log.Info("service stopped")

	return runErr
}

func stopService(opts *ServerOptions, log *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()

	if err := opts.Service.Stop(ctx); err != nil {
		log.Error("error during service shutdown", zap.Error(err))
	}
}
