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

package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wardflux/wardflux/pkg/metrics"
	"github.com/wardflux/wardflux/pkg/models"
	"github.com/wardflux/wardflux/pkg/queue"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

type queueStats []queue.Stats

func (q queueStats) Snapshot() []queue.Stats { return q }

type sweepHistory []models.SweepSummary

func (s sweepHistory) Sweeps() []models.SweepSummary { return s }

type diagnoserFunc func(ctx context.Context, ip string) (*models.DeviceDiagnosis, error)

func (f diagnoserFunc) Diagnose(ctx context.Context, ip string) (*models.DeviceDiagnosis, error) {
	return f(ctx, ip)
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, http.NoBody))

	return rec
}

func TestHealth(t *testing.T) {
	healthy := NewRouter(Options{Health: pingFunc(func(context.Context) error { return nil })})
	rec := get(t, healthy, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	down := NewRouter(Options{Health: pingFunc(func(context.Context) error { return errors.New("database is locked") })})
	rec = get(t, down, "/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "database is locked")

	rec = get(t, NewRouter(Options{}), "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestOptionsPreflight(t *testing.T) {
	rec := httptest.NewRecorder()
	NewRouter(Options{}).ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/healthz", http.NoBody))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	rec := get(t, NewRouter(Options{}), "/metrics")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestQueuesAndSweeps(t *testing.T) {
	r := NewRouter(Options{
		Queues: queueStats{{Queue: queue.QueuePing, Depth: 3, HighWater: 1000}},
		Sweeps: sweepHistory{{SweepID: "s-1", Task: queue.TaskPingSweep, Expected: 2, Retrieved: 2, Jobs: 1}},
	})

	rec := get(t, r, "/debug/queues")
	require.Equal(t, http.StatusOK, rec.Code)

	var stats []queue.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	require.Len(t, stats, 1)
	assert.Equal(t, 3, stats[0].Depth)

	rec = get(t, r, "/debug/sweeps")
	require.Equal(t, http.StatusOK, rec.Code)

	var sweeps []models.SweepSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sweeps))
	require.Len(t, sweeps, 1)
	assert.Equal(t, "s-1", sweeps[0].SweepID)
}

func TestUnwiredRoutesAreNotFound(t *testing.T) {
	r := NewRouter(Options{})

	for _, path := range []string{"/debug/queues", "/debug/sweeps", "/debug/devices/10.0.0.1", "/debug/samples"} {
		assert.Equal(t, http.StatusNotFound, get(t, r, path).Code, path)
	}
}

func TestDeviceDiagnosis(t *testing.T) {
	r := NewRouter(Options{Devices: diagnoserFunc(func(_ context.Context, ip string) (*models.DeviceDiagnosis, error) {
		if ip == "10.0.0.9" {
			return nil, errors.New("registry unavailable")
		}

		d := &models.DeviceDiagnosis{IP: ip}
		d.Add("retrieved", true, "")
		d.Add("scheduled", false, "queue at high-water mark")

		return d, nil
	})})

	rec := get(t, r, "/debug/devices/10.195.83.252")
	require.Equal(t, http.StatusOK, rec.Code)

	var diag models.DeviceDiagnosis
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &diag))
	assert.Equal(t, "10.195.83.252", diag.IP)
	assert.Equal(t, "scheduled", diag.FailedStage)

	assert.Equal(t, http.StatusInternalServerError, get(t, r, "/debug/devices/10.0.0.9").Code)
}

func TestSamples(t *testing.T) {
	ctx := context.Background()
	sink := metrics.NewMemorySink(models.MetricsConfig{Enabled: true, Retention: 10}, nil)
	now := time.Now()

	require.NoError(t, sink.WriteSample(ctx, "device_ping_status", map[string]string{"ip": "10.0.0.1"}, 1, now))
	require.NoError(t, sink.WriteSample(ctx, "device_ping_status", map[string]string{"ip": "10.0.0.2"}, 0, now))
	require.NoError(t, sink.WriteSample(ctx, "device_ping_latency_ms", map[string]string{"ip": "10.0.0.1"}, 4.2, now))

	r := NewRouter(Options{Samples: sink})

	rec := get(t, r, "/debug/samples?name=device_ping_status&match=ip!%3D10.0.0.2")
	require.Equal(t, http.StatusOK, rec.Code)

	var samples []models.Sample
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &samples))
	require.Len(t, samples, 1)
	assert.Equal(t, "10.0.0.1", samples[0].Labels["ip"])

	assert.Equal(t, http.StatusBadRequest, get(t, r, "/debug/samples?match=ip").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, r, "/debug/samples?match=ip%3D~(").Code)
}

func TestParseMatcher(t *testing.T) {
	tests := []struct {
		raw  string
		want models.LabelMatcher
		err  bool
	}{
		{raw: "ip=10.0.0.1", want: models.LabelMatcher{Name: "ip", Op: models.MatchEqual, Value: "10.0.0.1"}},
		{raw: "ip!=10.0.0.1", want: models.LabelMatcher{Name: "ip", Op: models.MatchNotEqual, Value: "10.0.0.1"}},
		{raw: "isp=~Mag.*", want: models.LabelMatcher{Name: "isp", Op: models.MatchRegexp, Value: "Mag.*"}},
		{raw: "isp!~Mag.*", want: models.LabelMatcher{Name: "isp", Op: models.MatchNotRegexp, Value: "Mag.*"}},
		{raw: "isp=", want: models.LabelMatcher{Name: "isp", Op: models.MatchEqual, Value: ""}},
		{raw: "=x", err: true},
		{raw: "ip!x", err: true},
		{raw: "ip", err: true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := parseMatcher(tt.raw)
			if tt.err {
				require.ErrorIs(t, err, errInvalidMatcher)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
