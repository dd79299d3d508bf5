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

// Package httpx serves the operator diagnostics listener.
package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/wardflux/wardflux/pkg/logger"
	"github.com/wardflux/wardflux/pkg/models"
	"github.com/wardflux/wardflux/pkg/queue"
	"go.uber.org/zap"
)

const healthTimeout = 2 * time.Second

var errInvalidMatcher = errors.New("invalid matcher, want label=value, label!=value, label=~re or label!~re")

// HealthChecker reports whether the store is reachable.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// QueueStats exposes the last queue samples.
type QueueStats interface {
	Snapshot() []queue.Stats
}

// SweepHistory exposes recent scheduler sweeps.
type SweepHistory interface {
	Sweeps() []models.SweepSummary
}

// DeviceDiagnoser follows one IP through the pipeline.
type DeviceDiagnoser interface {
	Diagnose(ctx context.Context, ip string) (*models.DeviceDiagnosis, error)
}

// SampleQuerier answers latest-sample queries.
type SampleQuerier interface {
	QueryLatest(ctx context.Context, matchers []models.LabelMatcher) ([]models.Sample, error)
}

// Options wires the router. Nil dependencies leave their routes unregistered.
type Options struct {
	Health  HealthChecker
	Queues  QueueStats
	Sweeps  SweepHistory
	Devices DeviceDiagnoser
	Samples SampleQuerier
	Logger  *zap.Logger
}

type server struct {
	opts   Options
	logger *zap.Logger
}

// NewRouter builds the diagnostics router.
func NewRouter(opts Options) *mux.Router {
	s := &server{opts: opts, logger: logger.Component(opts.Logger, "http")}

	r := mux.NewRouter()
	r.Use(CommonMiddleware, LoggingMiddleware(s.logger))

	r.HandleFunc("/healthz", s.health).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	if opts.Queues != nil {
		r.HandleFunc("/debug/queues", s.queues).Methods(http.MethodGet)
	}

	if opts.Sweeps != nil {
		r.HandleFunc("/debug/sweeps", s.sweeps).Methods(http.MethodGet)
	}

	if opts.Devices != nil {
		r.HandleFunc("/debug/devices/{ip}", s.device).Methods(http.MethodGet)
	}

	if opts.Samples != nil {
		r.HandleFunc("/debug/samples", s.samples).Methods(http.MethodGet)
	}

	return r
}

func (s *server) health(w http.ResponseWriter, r *http.Request) {
	if s.opts.Health == nil {
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})

		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	if err := s.opts.Health.Ping(ctx); err != nil {
		s.logger.Warn("health check failed", zap.Error(err))
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})

		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) queues(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.opts.Queues.Snapshot())
}

func (s *server) sweeps(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.opts.Sweeps.Sweeps())
}

func (s *server) device(w http.ResponseWriter, r *http.Request) {
	ip := mux.Vars(r)["ip"]

	diag, err := s.opts.Devices.Diagnose(r.Context(), ip)
	if err != nil {
		s.logger.Error("device diagnosis failed", zap.String(logger.FieldIP, ip), zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)

		return
	}

	s.writeJSON(w, http.StatusOK, diag)
}

func (s *server) samples(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var matchers []models.LabelMatcher

	if name := q.Get("name"); name != "" {
		matchers = append(matchers, models.LabelMatcher{Name: models.MetricNameLabel, Op: models.MatchEqual, Value: name})
	}

	for _, raw := range q["match"] {
		m, err := parseMatcher(raw)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)

			return
		}

		matchers = append(matchers, m)
	}

	samples, err := s.opts.Samples.QueryLatest(r.Context(), matchers)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)

		return
	}

	s.writeJSON(w, http.StatusOK, samples)
}

func parseMatcher(raw string) (models.LabelMatcher, error) {
	i := strings.IndexAny(raw, "=!")
	if i <= 0 {
		return models.LabelMatcher{}, fmt.Errorf("%w: %q", errInvalidMatcher, raw)
	}

	name, rest := raw[:i], raw[i:]

	for _, op := range []models.MatchOp{models.MatchRegexp, models.MatchNotRegexp, models.MatchNotEqual, models.MatchEqual} {
		if strings.HasPrefix(rest, string(op)) {
			return models.LabelMatcher{Name: name, Op: op, Value: rest[len(op):]}, nil
		}
	}

	return models.LabelMatcher{}, fmt.Errorf("%w: %q", errInvalidMatcher, raw)
}

func (s *server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("failed to encode response", zap.Error(err))
	}
}
