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

package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/wardflux/wardflux/pkg/models"
)

const stateColumns = `device_id, status, down_since, last_evaluated, last_latency_ms, last_downtime_seconds, version`

// GetState returns the stored state of a device without locking it.
func (db *DB) GetState(ctx context.Context, deviceID int64) (*models.DeviceState, error) {
	var state models.DeviceState

	err := db.GetContext(ctx, &state,
		db.Rebind(`SELECT `+stateColumns+` FROM device_states WHERE device_id = ?`), deviceID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: state for device %d", ErrNotFound, deviceID)
	}

	if err != nil {
		return nil, fmt.Errorf("%w state: %w", ErrFailedToQuery, err)
	}

	return &state, nil
}

// ListStates returns every stored device state.
func (db *DB) ListStates(ctx context.Context) ([]models.DeviceState, error) {
	var states []models.DeviceState

	if err := db.SelectContext(ctx, &states, `SELECT `+stateColumns+` FROM device_states ORDER BY device_id`); err != nil {
		return nil, fmt.Errorf("%w states: %w", ErrFailedToQuery, err)
	}

	return states, nil
}

func (t *tx) LockState(ctx context.Context, deviceID int64) (*models.DeviceState, error) {
	_, err := t.ExecContext(ctx, t.Rebind(`
		INSERT INTO device_states (device_id, status, version)
		VALUES (?, ?, 0)
		ON CONFLICT (device_id) DO NOTHING`), deviceID, models.StatusUnknown)
	if err != nil {
		return nil, fmt.Errorf("%w state: %w", ErrFailedToInsert, err)
	}

	var state models.DeviceState

	err = t.GetContext(ctx, &state,
		t.Rebind(`SELECT `+stateColumns+` FROM device_states WHERE device_id = ?`+t.forUpdate()), deviceID)
	if err != nil {
		return nil, fmt.Errorf("%w state: %w", ErrFailedToQuery, err)
	}

	return &state, nil
}

// SaveState writes state and bumps its version. The row must still carry the
// version that was read.
func (t *tx) SaveState(ctx context.Context, state *models.DeviceState) error {
	res, err := t.ExecContext(ctx, t.Rebind(`
		UPDATE device_states
		SET status = ?,
			down_since = ?,
			last_evaluated = ?,
			last_latency_ms = ?,
			last_downtime_seconds = ?,
			version = version + 1
		WHERE device_id = ? AND version = ?`),
		state.Status,
		state.DownSince,
		state.LastEvaluated,
		state.LastLatencyMs,
		state.LastDowntimeSec,
		state.DeviceID,
		state.Version)
	if err != nil {
		return fmt.Errorf("%w state: %w", ErrFailedToUpdate, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w state: %w", ErrFailedToUpdate, err)
	}

	if n == 0 {
		return fmt.Errorf("%w: device %d", ErrVersionConflict, state.DeviceID)
	}

	state.Version++

	return nil
}
