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

const deviceColumns = `id, ip, name, enabled, device_type, branch_id, profile_id, snmp_port, created_at, updated_at`

// CreateDevice inserts a device. An enabled device may not reuse the IP of
// another enabled device.
func (db *DB) CreateDevice(ctx context.Context, device *models.Device) error {
	if device.ProfileID == "" {
		device.ProfileID = models.DefaultProfile
	}

	if device.SNMPPort == 0 {
		device.SNMPPort = 161
	}

	now := models.NowUTC()
	device.CreatedAt = now
	device.UpdatedAt = now

	const insertSQL = `
		INSERT INTO devices
			(ip, name, enabled, device_type, branch_id, profile_id, snmp_port, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`

	return db.withTx(ctx, func(t *tx) error {
		if device.Enabled {
			if err := t.rejectEnabledIP(ctx, device.IP); err != nil {
				return err
			}
		}

		err := t.GetContext(ctx, &device.ID, t.Rebind(insertSQL),
			device.IP,
			device.Name,
			device.Enabled,
			device.DeviceType,
			device.BranchID,
			device.ProfileID,
			device.SNMPPort,
			device.CreatedAt,
			device.UpdatedAt)
		if err != nil {
			return fmt.Errorf("%w device: %w", ErrFailedToInsert, err)
		}

		return nil
	})
}

// rejectEnabledIP fails with ErrDuplicateIP when an enabled device already
// owns ip. On Postgres it first takes a transaction-scoped advisory lock on
// the address so concurrent creates of the same ip serialise; SQLite
// transactions already hold the writer lock.
func (t *tx) rejectEnabledIP(ctx context.Context, ip string) error {
	if t.driver == DriverPostgres {
		if _, err := t.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, ip); err != nil {
			return fmt.Errorf("%w device ip lock: %w", ErrFailedToQuery, err)
		}
	}

	var count int

	err := t.GetContext(ctx, &count,
		t.Rebind(`SELECT COUNT(*) FROM devices WHERE ip = ? AND enabled = TRUE`), ip)
	if err != nil {
		return fmt.Errorf("%w device ip: %w", ErrFailedToQuery, err)
	}

	if count > 0 {
		return fmt.Errorf("%w: %s", ErrDuplicateIP, ip)
	}

	return nil
}

// GetDevice returns a single device by id.
func (db *DB) GetDevice(ctx context.Context, id int64) (*models.Device, error) {
	var device models.Device

	err := db.GetContext(ctx, &device, db.Rebind(`SELECT `+deviceColumns+` FROM devices WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: device %d", ErrNotFound, id)
	}

	if err != nil {
		return nil, fmt.Errorf("%w device: %w", ErrFailedToQuery, err)
	}

	return &device, nil
}

// FindDevicesByIP returns every device, enabled or not, registered with ip.
func (db *DB) FindDevicesByIP(ctx context.Context, ip string) ([]models.Device, error) {
	var devices []models.Device

	err := db.SelectContext(ctx, &devices,
		db.Rebind(`SELECT `+deviceColumns+` FROM devices WHERE ip = ? ORDER BY id`), ip)
	if err != nil {
		return nil, fmt.Errorf("%w devices by ip: %w", ErrFailedToQuery, err)
	}

	return devices, nil
}

// ListEnabledDevices reads every enabled device of a profile. Each call runs
// a new statement on the pool; nothing is cached between sweeps.
func (db *DB) ListEnabledDevices(ctx context.Context, profile string) ([]models.Device, error) {
	var devices []models.Device

	err := db.SelectContext(ctx, &devices,
		db.Rebind(`SELECT `+deviceColumns+` FROM devices WHERE enabled = TRUE AND profile_id = ? ORDER BY id`),
		profile)
	if err != nil {
		return nil, fmt.Errorf("%w enabled devices: %w", ErrFailedToQuery, err)
	}

	return devices, nil
}

// ListEnabledDeviceIDs returns only the ids of enabled devices of a profile.
func (db *DB) ListEnabledDeviceIDs(ctx context.Context, profile string) ([]int64, error) {
	var ids []int64

	err := db.SelectContext(ctx, &ids,
		db.Rebind(`SELECT id FROM devices WHERE enabled = TRUE AND profile_id = ? ORDER BY id`), profile)
	if err != nil {
		return nil, fmt.Errorf("%w enabled device ids: %w", ErrFailedToQuery, err)
	}

	return ids, nil
}

// CountEnabledDevices counts enabled devices of a profile independently of
// ListEnabledDevices.
func (db *DB) CountEnabledDevices(ctx context.Context, profile string) (int, error) {
	var count int

	err := db.GetContext(ctx, &count,
		db.Rebind(`SELECT COUNT(*) FROM devices WHERE enabled = TRUE AND profile_id = ?`), profile)
	if err != nil {
		return 0, fmt.Errorf("%w enabled device count: %w", ErrFailedToQuery, err)
	}

	return count, nil
}

// PutCredential inserts or replaces the SNMP credential of a device.
func (db *DB) PutCredential(ctx context.Context, cred *models.SNMPCredential) error {
	const upsertSQL = `
		INSERT INTO snmp_credentials
			(device_id, version, community_enc, username, auth_protocol, auth_key_enc, priv_protocol, priv_key_enc)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (device_id) DO UPDATE SET
			version = excluded.version,
			community_enc = excluded.community_enc,
			username = excluded.username,
			auth_protocol = excluded.auth_protocol,
			auth_key_enc = excluded.auth_key_enc,
			priv_protocol = excluded.priv_protocol,
			priv_key_enc = excluded.priv_key_enc`

	_, err := db.ExecContext(ctx, db.Rebind(upsertSQL),
		cred.DeviceID,
		cred.Version,
		cred.CommunityEnc,
		cred.Username,
		cred.AuthProtocol,
		cred.AuthKeyEnc,
		cred.PrivProtocol,
		cred.PrivKeyEnc)
	if err != nil {
		return fmt.Errorf("%w credential: %w", ErrFailedToInsert, err)
	}

	return nil
}

// GetCredential returns the encrypted SNMP credential of a device.
func (db *DB) GetCredential(ctx context.Context, deviceID int64) (*models.SNMPCredential, error) {
	var cred models.SNMPCredential

	err := db.GetContext(ctx, &cred, db.Rebind(`
		SELECT device_id, version, community_enc, username, auth_protocol, auth_key_enc, priv_protocol, priv_key_enc
		FROM snmp_credentials
		WHERE device_id = ?`), deviceID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: credential for device %d", ErrNotFound, deviceID)
	}

	if err != nil {
		return nil, fmt.Errorf("%w credential: %w", ErrFailedToQuery, err)
	}

	return &cred, nil
}
