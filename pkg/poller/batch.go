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
	"time"

	"github.com/wardflux/wardflux/pkg/db"
	"github.com/wardflux/wardflux/pkg/logger"
	"github.com/wardflux/wardflux/pkg/models"
	"github.com/wardflux/wardflux/pkg/telemetry"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Outcome of one device check.
const (
	OutcomeSucceeded = "succeeded"
	OutcomeFailed    = "failed"
	OutcomeSkipped   = "skipped"
)

const (
	defaultParallelism   = 16
	defaultDeviceTimeout = 15 * time.Second
)

// BatchOptions bounds the work done for one job.
type BatchOptions struct {
	// Parallelism is the number of devices checked at once.
	Parallelism int
	// DeviceTimeout bounds the network part of one device check.
	DeviceTimeout time.Duration
}

func (o BatchOptions) withDefaults() BatchOptions {
	if o.Parallelism <= 0 {
		o.Parallelism = defaultParallelism
	}

	if o.DeviceTimeout <= 0 {
		o.DeviceTimeout = defaultDeviceTimeout
	}

	return o
}

// JobSummary counts device outcomes of one job.
type JobSummary struct {
	Retrieved int
	Succeeded int
	Failed    int
	Skipped   int
}

type checkFunc func(ctx context.Context, dev models.DeviceRef) (string, error)

// runBatch checks every device of the job with bounded parallelism. Device
// errors never stop the batch. The first database-unavailable error is
// returned so the pool can count it.
func runBatch(ctx context.Context, job *models.Job, opts BatchOptions, log *zap.Logger, check checkFunc) (JobSummary, error) {
	var (
		mu      sync.Mutex
		summary = JobSummary{Retrieved: len(job.Devices)}
		dbErr   error
	)

	start := time.Now()

	g := new(errgroup.Group)
	g.SetLimit(opts.Parallelism)

	for _, dev := range job.Devices {
		dev := dev
		g.Go(func() error {
			began := time.Now()
			outcome, err := check(ctx, dev)

			telemetry.PollDuration.WithLabelValues(job.Task, outcome).Observe(time.Since(began).Seconds())
			telemetry.DevicesPolled.WithLabelValues(job.Task, outcome).Inc()

			fields := append(logger.Device(dev.ID, dev.IP),
				zap.String(logger.FieldStage, logger.StageExecuted),
				zap.String(logger.FieldSweepID, job.SweepID),
				zap.String(logger.FieldJobID, job.ID),
				zap.String(logger.FieldTask, job.Task),
				zap.String("outcome", outcome),
				zap.Duration("took", time.Since(began)))

			if err != nil {
				fields = append(fields, zap.Error(err))
			}

			log.Debug("device executed", fields...)

			mu.Lock()
			defer mu.Unlock()

			switch outcome {
			case OutcomeSucceeded:
				summary.Succeeded++
			case OutcomeSkipped:
				summary.Skipped++
			default:
				summary.Failed++
			}

			if dbErr == nil && errors.Is(err, db.ErrDBUnavailable) {
				dbErr = err
			}

			return nil
		})
	}

	_ = g.Wait()

	log.Info("job finished",
		zap.String(logger.FieldJobID, job.ID),
		zap.String(logger.FieldSweepID, job.SweepID),
		zap.String(logger.FieldTask, job.Task),
		zap.String(logger.FieldQueue, job.Queue),
		zap.Int("retrieved", summary.Retrieved),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("failed", summary.Failed),
		zap.Int("skipped", summary.Skipped),
		zap.Duration("took", time.Since(start)))

	return summary, dbErr
}
