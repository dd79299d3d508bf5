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
	"encoding/json"
	"fmt"
	"time"

	"github.com/wardflux/wardflux/pkg/models"
)

// UpsertInterfaceMetrics stores the latest view of each polled interface.
func (db *DB) UpsertInterfaceMetrics(ctx context.Context, metrics []models.InterfaceMetric) error {
	if len(metrics) == 0 {
		return nil
	}

	const upsertSQL = `
		INSERT INTO interface_metrics
			(device_id, if_index, if_name, if_alias, oper_status, isp_provider, in_octets, out_octets, last_polled)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (device_id, if_index) DO UPDATE SET
			if_name = excluded.if_name,
			if_alias = excluded.if_alias,
			oper_status = excluded.oper_status,
			isp_provider = excluded.isp_provider,
			in_octets = excluded.in_octets,
			out_octets = excluded.out_octets,
			last_polled = excluded.last_polled`

	return db.WithTx(ctx, func(t Tx) error {
		sqlTx := t.(*tx)
		query := sqlTx.Rebind(upsertSQL)

		for i := range metrics {
			m := &metrics[i]

			if _, err := sqlTx.ExecContext(ctx, query,
				m.DeviceID,
				m.IfIndex,
				m.IfName,
				m.IfAlias,
				m.OperStatus,
				m.ISPProvider,
				m.InOctets,
				m.OutOctets,
				m.LastPolled); err != nil {
				return fmt.Errorf("%w interface metric: %w", ErrFailedToInsert, err)
			}
		}

		return nil
	})
}

// ListInterfaceMetrics returns the stored interfaces of a device.
func (db *DB) ListInterfaceMetrics(ctx context.Context, deviceID int64) ([]models.InterfaceMetric, error) {
	var metrics []models.InterfaceMetric

	err := db.SelectContext(ctx, &metrics, db.Rebind(`
		SELECT device_id, if_index, if_name, if_alias, oper_status, isp_provider, in_octets, out_octets, last_polled
		FROM interface_metrics
		WHERE device_id = ?
		ORDER BY if_index`), deviceID)
	if err != nil {
		return nil, fmt.Errorf("%w interface metrics: %w", ErrFailedToQuery, err)
	}

	return metrics, nil
}

// StoreSample stores a timeseries sample.
func (db *DB) StoreSample(ctx context.Context, sample *models.Sample) error {
	labels, err := json.Marshal(sample.Labels)
	if err != nil {
		return fmt.Errorf("failed to marshal labels: %w", err)
	}

	_, err = db.ExecContext(ctx, db.Rebind(`
		INSERT INTO timeseries_samples (name, series_key, labels, value, ts)
		VALUES (?, ?, ?, ?, ?)`),
		sample.Name,
		models.SeriesKey(sample.Name, sample.Labels),
		string(labels),
		sample.Value,
		sample.Timestamp)
	if err != nil {
		return fmt.Errorf("%w sample: %w", ErrFailedToInsert, err)
	}

	return nil
}

type sampleRow struct {
	Name      string         `db:"name"`
	SeriesKey string         `db:"series_key"`
	Labels    string         `db:"labels"`
	Value     float64        `db:"value"`
	Timestamp models.UTCTime `db:"ts"`
}

// LatestSamples returns the newest sample of every series with the given
// name. An empty name returns the newest sample of every series.
func (db *DB) LatestSamples(ctx context.Context, name string) ([]models.Sample, error) {
	var rows []sampleRow

	err := db.SelectContext(ctx, &rows, db.Rebind(`
		SELECT s.name, s.series_key, s.labels, s.value, s.ts
		FROM timeseries_samples s
		JOIN (
			SELECT series_key, MAX(ts) AS ts
			FROM timeseries_samples
			WHERE (? = '' OR name = ?)
			GROUP BY series_key
		) latest ON s.series_key = latest.series_key AND s.ts = latest.ts
		ORDER BY s.series_key, s.id DESC`), name, name)
	if err != nil {
		return nil, fmt.Errorf("%w latest samples: %w", ErrFailedToQuery, err)
	}

	samples := make([]models.Sample, 0, len(rows))
	seen := make(map[string]struct{}, len(rows))

	for _, row := range rows {
		if _, dup := seen[row.SeriesKey]; dup {
			continue
		}

		seen[row.SeriesKey] = struct{}{}

		s := models.Sample{Name: row.Name, Value: row.Value, Timestamp: row.Timestamp}
		if err := json.Unmarshal([]byte(row.Labels), &s.Labels); err != nil {
			return nil, fmt.Errorf("%w sample labels: %w", ErrFailedToScan, err)
		}

		samples = append(samples, s)
	}

	return samples, nil
}

// CleanOldData removes samples and resolved alerts older than the retention
// period. Device state and open alerts are never removed.
func (db *DB) CleanOldData(ctx context.Context, retentionPeriod time.Duration) error {
	cutoff := models.NewUTCTime(time.Now().Add(-retentionPeriod))

	return db.WithTx(ctx, func(t Tx) error {
		sqlTx := t.(*tx)

		if _, err := sqlTx.ExecContext(ctx,
			sqlTx.Rebind("DELETE FROM timeseries_samples WHERE ts < ?"), cutoff); err != nil {
			return fmt.Errorf("%w timeseries samples: %w", ErrFailedToClean, err)
		}

		if _, err := sqlTx.ExecContext(ctx,
			sqlTx.Rebind("DELETE FROM alert_history WHERE resolved_at IS NOT NULL AND resolved_at < ?"), cutoff); err != nil {
			return fmt.Errorf("%w alert history: %w", ErrFailedToClean, err)
		}

		return nil
	})
}
