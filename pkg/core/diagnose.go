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

	"github.com/wardflux/wardflux/pkg/db"
	"github.com/wardflux/wardflux/pkg/logger"
	"github.com/wardflux/wardflux/pkg/models"
	"github.com/wardflux/wardflux/pkg/poller"
	"github.com/wardflux/wardflux/pkg/queue"
	"go.uber.org/zap"
)

// DiagnoserOptions wires a Diagnoser.
type DiagnoserOptions struct {
	Profile string
	Devices DeviceLookup
	Planner SweepPlanner
	Queue   QueueInspector
	// Pinger is optional. Without it the executed stage is not checked.
	Pinger poller.Pinger
	States StateReader
	Logger *zap.Logger
}

// Diagnoser walks one IP through retrieval, scheduling, execution and
// recording and reports the first stage that fails.
type Diagnoser struct {
	opts   DiagnoserOptions
	logger *zap.Logger
}

// NewDiagnoser creates a Diagnoser.
func NewDiagnoser(opts DiagnoserOptions) *Diagnoser {
	if opts.Profile == "" {
		opts.Profile = models.DefaultProfile
	}

	return &Diagnoser{opts: opts, logger: logger.Component(opts.Logger, "diagnose")}
}

// Diagnose returns an error only when the registry itself cannot be read.
// Stage failures are reported in the diagnosis.
func (d *Diagnoser) Diagnose(ctx context.Context, ip string) (*models.DeviceDiagnosis, error) {
	diag := &models.DeviceDiagnosis{IP: ip, Profile: d.opts.Profile}

	devices, err := d.opts.Devices.DevicesByIP(ctx, ip)
	if err != nil {
		return nil, fmt.Errorf("lookup %s: %w", ip, err)
	}

	diag.Devices = devices

	dev, ok := d.retrieved(ctx, diag)
	if !ok {
		return diag, nil
	}

	if ok = d.scheduled(ctx, diag, dev); !ok {
		return diag, nil
	}

	if d.opts.Pinger != nil {
		if ok = d.executed(ctx, diag, dev); !ok {
			return diag, nil
		}
	}

	d.recorded(ctx, diag, dev)

	return diag, nil
}

func (d *Diagnoser) stage(diag *models.DeviceDiagnosis, dev *models.Device, stage string, ok bool, detail string) bool {
	diag.Add(stage, ok, detail)

	fields := []zap.Field{
		zap.String(logger.FieldIP, diag.IP),
		zap.String(logger.FieldStage, stage),
		zap.Bool("ok", ok),
		zap.String("detail", detail),
	}

	if dev != nil {
		fields = append(fields, zap.Int64(logger.FieldDeviceID, dev.ID))
	}

	if ok {
		d.logger.Info("stage passed", fields...)
	} else {
		d.logger.Warn("stage failed", fields...)
	}

	return ok
}

func (d *Diagnoser) retrieved(ctx context.Context, diag *models.DeviceDiagnosis) (*models.Device, bool) {
	var candidates []models.Device

	for i := range diag.Devices {
		if diag.Devices[i].Enabled && diag.Devices[i].ProfileID == d.opts.Profile {
			candidates = append(candidates, diag.Devices[i])
		}
	}

	if len(candidates) == 0 {
		return nil, d.stage(diag, nil, logger.StageRetrieved, false, d.whyNotCandidate(diag.Devices))
	}

	listed, regDiag, err := d.opts.Devices.ListEnabledDevices(ctx, d.opts.Profile)
	if err != nil {
		return nil, d.stage(diag, &candidates[0], logger.StageRetrieved, false, "registry read failed: "+err.Error())
	}

	seen := make(map[int64]struct{}, len(listed))
	for i := range listed {
		seen[listed[i].ID] = struct{}{}
	}

	for i := range candidates {
		if _, ok := seen[candidates[i].ID]; !ok {
			return nil, d.stage(diag, &candidates[i], logger.StageRetrieved, false,
				fmt.Sprintf("device %d is enabled but missing from the sweep read (expected %d, retrieved %d)",
					candidates[i].ID, regDiag.Expected, regDiag.Retrieved))
		}
	}

	detail := fmt.Sprintf("device %d retrieved with %d enabled devices", candidates[0].ID, regDiag.Retrieved)
	if len(candidates) > 1 {
		detail += fmt.Sprintf("; ip shared by %d enabled devices, all are polled", len(candidates))
	}

	return &candidates[0], d.stage(diag, &candidates[0], logger.StageRetrieved, true, detail)
}

func (d *Diagnoser) whyNotCandidate(devices []models.Device) string {
	if len(devices) == 0 {
		return "no device registered with this ip"
	}

	for i := range devices {
		if devices[i].Enabled {
			return fmt.Sprintf("device %d is enabled in profile %q, sweeps read profile %q",
				devices[i].ID, devices[i].ProfileID, d.opts.Profile)
		}
	}

	return fmt.Sprintf("device %d is disabled", devices[0].ID)
}

func (d *Diagnoser) scheduled(ctx context.Context, diag *models.DeviceDiagnosis, dev *models.Device) bool {
	plan, err := d.opts.Planner.Plan(ctx, queue.TaskPingSweep)
	if err != nil {
		return d.stage(diag, dev, logger.StageScheduled, false, "sweep plan failed: "+err.Error())
	}

	batch, ok := plan.Contains(dev.ID)
	if !ok {
		return d.stage(diag, dev, logger.StageScheduled, false, "device is not part of any batch")
	}

	st, err := d.opts.Queue.Stats(ctx, plan.Queue)
	if err != nil {
		return d.stage(diag, dev, logger.StageScheduled, false, "queue unavailable: "+err.Error())
	}

	if st.Depth >= st.HighWater {
		return d.stage(diag, dev, logger.StageScheduled, false,
			fmt.Sprintf("queue %s at high-water mark (%d/%d), enqueues are rejected", plan.Queue, st.Depth, st.HighWater))
	}

	return d.stage(diag, dev, logger.StageScheduled, true,
		fmt.Sprintf("batch %d of %d on queue %s (depth %d)", batch+1, len(plan.Batches), plan.Queue, st.Depth))
}

func (d *Diagnoser) executed(ctx context.Context, diag *models.DeviceDiagnosis, dev *models.Device) bool {
	reply, err := d.opts.Pinger.Ping(ctx, dev.IP)

	switch {
	case err == nil:
		return d.stage(diag, dev, logger.StageExecuted, true,
			fmt.Sprintf("echo reply in %s after %d attempts", reply.Latency.Round(time.Microsecond), reply.Attempts))
	case errors.Is(err, poller.ErrNoReply):
		return d.stage(diag, dev, logger.StageExecuted, true, "check ran, no echo reply; the device is recorded DOWN")
	case errors.Is(err, poller.ErrPingNotSent):
		return d.stage(diag, dev, logger.StageExecuted, false, "check not sent, the device is left unchanged: "+err.Error())
	default:
		return d.stage(diag, dev, logger.StageExecuted, false, "check could not run: "+err.Error())
	}
}

func (d *Diagnoser) recorded(ctx context.Context, diag *models.DeviceDiagnosis, dev *models.Device) bool {
	if alerts, err := d.opts.States.ListAlerts(ctx, dev.ID); err == nil {
		for i := range alerts {
			if alerts[i].Open() {
				diag.OpenAlerts = append(diag.OpenAlerts, alerts[i])
			}
		}
	}

	state, err := d.opts.States.GetState(ctx, dev.ID)
	if errors.Is(err, db.ErrNotFound) {
		return d.stage(diag, dev, logger.StageRecorded, false, "no state recorded, workers have not processed this device")
	}

	if err != nil {
		return d.stage(diag, dev, logger.StageRecorded, false, "state read failed: "+err.Error())
	}

	diag.State = state

	if state.LastEvaluated == nil {
		return d.stage(diag, dev, logger.StageRecorded, false, "state row exists but was never evaluated")
	}

	if (state.Status == models.StatusDown) != (state.DownSince != nil) {
		return d.stage(diag, dev, logger.StageRecorded, false,
			fmt.Sprintf("status %s with down_since %v is inconsistent, the next evaluation self-heals it", state.Status, state.DownSince))
	}

	return d.stage(diag, dev, logger.StageRecorded, true,
		fmt.Sprintf("status %s, last evaluated %s", state.Status, state.LastEvaluated))
}
