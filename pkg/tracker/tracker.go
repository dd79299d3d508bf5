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

// Package tracker owns the UNKNOWN/UP/DOWN state machine of every device.
package tracker

import (
	"context"
	"errors"
	"time"

	"github.com/wardflux/wardflux/pkg/db"
	"github.com/wardflux/wardflux/pkg/logger"
	"github.com/wardflux/wardflux/pkg/models"
	"github.com/wardflux/wardflux/pkg/telemetry"
	"go.uber.org/zap"
)

//go:generate mockgen -destination=mock_tracker.go -package=tracker github.com/wardflux/wardflux/pkg/tracker Observer

// Store is the subset of db.Service the tracker needs.
type Store interface {
	WithTx(ctx context.Context, fn func(tx db.Tx) error) error
	GetState(ctx context.Context, deviceID int64) (*models.DeviceState, error)
	ListStates(ctx context.Context) ([]models.DeviceState, error)
}

// Observer follows device state after each commit. Calls for one device
// never overlap and arrive in commit order. Stale results are not observed.
type Observer interface {
	// OnTransition is called for every status change.
	OnTransition(ctx context.Context, tr models.Transition) error
	// OnResult is called for every accepted poll result, after OnTransition.
	OnResult(ctx context.Context, result *models.PollResult) error
	// SyncState is called by Reconcile with the current state of a device and
	// repairs anything derived from it. It reports whether it changed anything.
	SyncState(ctx context.Context, state *models.DeviceState) (bool, error)
}

// ReconcileReport summarises a full self-heal pass.
type ReconcileReport struct {
	Scanned int `json:"scanned"`
	Healed  int `json:"healed"`
	Synced  int `json:"synced"`
	Failed  int `json:"failed"`
}

// Tracker applies poll results to device state.
type Tracker struct {
	store     Store
	observers []Observer
	locks     *keyedMutex
	logger    *zap.Logger
	now       func() time.Time
}

// New creates a Tracker.
func New(store Store, log *zap.Logger, observers ...Observer) *Tracker {
	return &Tracker{
		store:     store,
		observers: observers,
		locks:     newKeyedMutex(),
		logger:    logger.Component(log, "tracker"),
		now:       time.Now,
	}
}

// Apply folds one poll result into the device state inside a per-device
// transaction and then hands the transition and the result to the observers.
// Observer failures are logged; only an unavailable database is returned.
func (t *Tracker) Apply(ctx context.Context, result models.PollResult) (models.Transition, error) {
	unlock := t.locks.Lock(result.DeviceID)
	defer unlock()

	var tr models.Transition

	err := t.store.WithTx(ctx, func(tx db.Tx) error {
		state, err := tx.LockState(ctx, result.DeviceID)
		if err != nil {
			return err
		}

		tr = evaluate(state, &result, t.now().UTC())

		if tr.Kind == models.TransitionStale && len(tr.Healed) == 0 {
			return nil
		}

		return tx.SaveState(ctx, state)
	})
	if err != nil {
		return models.Transition{}, err
	}

	fields := append(logger.Device(result.DeviceID, result.IP),
		zap.String("from", string(tr.From)),
		zap.String("to", string(tr.To)),
		zap.Time("at", tr.At.Time))

	t.logHeals(tr.Healed, fields)

	switch {
	case tr.Kind == models.TransitionStale:
		t.logger.Debug("stale poll result ignored", fields...)

		return tr, nil
	case tr.Changed():
		telemetry.Transitions.WithLabelValues(string(tr.Kind)).Inc()
		t.logger.Info("state transition",
			append(fields, zap.String("transition", string(tr.Kind)), zap.Duration("downtime", tr.Downtime))...)
	}

	t.logger.Debug("device recorded", append(fields, zap.String(logger.FieldStage, logger.StageRecorded))...)

	return tr, t.notify(ctx, tr, &result)
}

func (t *Tracker) logHeals(reasons []string, fields []zap.Field) {
	for _, reason := range reasons {
		telemetry.SelfHeals.WithLabelValues(reason).Inc()
		telemetry.IntegrityViolations.WithLabelValues(reason).Inc()

		t.logger.Warn("state self-healed", append(fields, zap.String("reason", reason))...)
	}
}

func (t *Tracker) notify(ctx context.Context, tr models.Transition, result *models.PollResult) error {
	var errs []error

	for _, o := range t.observers {
		if tr.Changed() {
			if err := o.OnTransition(ctx, tr); err != nil {
				t.logger.Error("transition observer failed",
					append(logger.Device(tr.DeviceID, tr.IP),
						zap.String("transition", string(tr.Kind)),
						zap.Error(err))...)

				errs = append(errs, err)
			}
		}

		if err := o.OnResult(ctx, result); err != nil {
			t.logger.Warn("result observer failed", append(logger.Device(tr.DeviceID, tr.IP), zap.Error(err))...)

			errs = append(errs, err)
		}
	}

	return unavailable(errs)
}

// unavailable returns the first error that means the database is gone.
func unavailable(errs []error) error {
	for _, err := range errs {
		if errors.Is(err, db.ErrDBUnavailable) {
			return err
		}
	}

	return nil
}

// Reconcile scans every stored state, repairs the inconsistent ones and lets
// the observers resynchronise with each device. Alerts missed because an
// observer failed earlier are recovered here.
func (t *Tracker) Reconcile(ctx context.Context) (ReconcileReport, error) {
	states, err := t.store.ListStates(ctx)
	if err != nil {
		return ReconcileReport{}, err
	}

	report := ReconcileReport{Scanned: len(states)}

	for i := range states {
		healed, synced, err := t.reconcileOne(ctx, states[i].DeviceID)
		if healed {
			report.Healed++
		}

		if synced {
			report.Synced++
		}

		if err != nil {
			report.Failed++

			t.logger.Error("reconcile failed", zap.Int64(logger.FieldDeviceID, states[i].DeviceID), zap.Error(err))

			if errors.Is(err, db.ErrDBUnavailable) {
				return report, err
			}
		}
	}

	t.logger.Info("reconcile finished",
		zap.Int("scanned", report.Scanned),
		zap.Int("healed", report.Healed),
		zap.Int("synced", report.Synced),
		zap.Int("failed", report.Failed))

	return report, nil
}

// reconcileOne holds the device lock across the repair and the observer sync
// so that no result for the device is applied in between.
func (t *Tracker) reconcileOne(ctx context.Context, deviceID int64) (healed, synced bool, err error) {
	unlock := t.locks.Lock(deviceID)
	defer unlock()

	state, err := t.store.GetState(ctx, deviceID)
	if err != nil {
		return false, false, err
	}

	candidate := *state
	if len(heal(&candidate, t.now().UTC())) > 0 {
		state, healed, err = t.healOne(ctx, deviceID)
		if err != nil {
			return false, false, err
		}
	}

	var errs []error

	for _, o := range t.observers {
		changed, err := o.SyncState(ctx, state)
		if err != nil {
			errs = append(errs, err)

			continue
		}

		synced = synced || changed
	}

	if synced {
		t.logger.Warn("derived state resynchronised",
			zap.Int64(logger.FieldDeviceID, state.DeviceID),
			zap.String("status", string(state.Status)))
	}

	return healed, synced, errors.Join(errs...)
}

// healOne repairs one device under a row lock. The caller holds the device
// lock.
func (t *Tracker) healOne(ctx context.Context, deviceID int64) (*models.DeviceState, bool, error) {
	var (
		reasons []string
		healed  *models.DeviceState
	)

	err := t.store.WithTx(ctx, func(tx db.Tx) error {
		state, err := tx.LockState(ctx, deviceID)
		if err != nil {
			return err
		}

		reasons = heal(state, t.now().UTC())
		healed = state

		if len(reasons) == 0 {
			return nil
		}

		return tx.SaveState(ctx, state)
	})
	if err != nil {
		return nil, false, err
	}

	t.logHeals(reasons, []zap.Field{
		zap.Int64(logger.FieldDeviceID, deviceID),
		zap.String("status", string(healed.Status)),
	})

	return healed, len(reasons) > 0, nil
}
