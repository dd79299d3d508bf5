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

const (
	ruleColumns  = `id, name, severity, condition, threshold, active`
	alertColumns = `id, device_id, rule_id, rule_name, severity, message, triggered_at, resolved_at`
)

// CreateRule inserts an alert rule.
func (db *DB) CreateRule(ctx context.Context, rule *models.AlertRule) error {
	err := db.GetContext(ctx, &rule.ID, db.Rebind(`
		INSERT INTO alert_rules (name, severity, condition, threshold, active)
		VALUES (?, ?, ?, ?, ?)
		RETURNING id`),
		rule.Name, rule.Severity, rule.Condition, rule.Threshold, rule.Active)
	if err != nil {
		return fmt.Errorf("%w rule: %w", ErrFailedToInsert, err)
	}

	return nil
}

// ListRules returns rules for a condition. An empty condition matches all.
func (db *DB) ListRules(ctx context.Context, condition models.AlertCondition, activeOnly bool) ([]models.AlertRule, error) {
	query := `SELECT ` + ruleColumns + ` FROM alert_rules WHERE (? = '' OR condition = ?)`
	if activeOnly {
		query += ` AND active = TRUE`
	}

	query += ` ORDER BY id`

	var rules []models.AlertRule

	if err := db.SelectContext(ctx, &rules, db.Rebind(query), string(condition), string(condition)); err != nil {
		return nil, fmt.Errorf("%w rules: %w", ErrFailedToQuery, err)
	}

	return rules, nil
}

// ListAlerts returns the alert history of a device, oldest first.
func (db *DB) ListAlerts(ctx context.Context, deviceID int64) ([]models.AlertHistory, error) {
	var alerts []models.AlertHistory

	err := db.SelectContext(ctx, &alerts,
		db.Rebind(`SELECT `+alertColumns+` FROM alert_history WHERE device_id = ? ORDER BY id`), deviceID)
	if err != nil {
		return nil, fmt.Errorf("%w alerts: %w", ErrFailedToQuery, err)
	}

	return alerts, nil
}

// BackfillAlertRuleIDs links legacy alert rows that only carry a rule name to
// the rule of that name. Rows whose name matches no rule are reported.
func (db *DB) BackfillAlertRuleIDs(ctx context.Context) (*BackfillReport, error) {
	report := &BackfillReport{}

	err := db.WithTx(ctx, func(t Tx) error {
		sqlTx := t.(*tx)

		res, err := sqlTx.ExecContext(ctx, `
			UPDATE alert_history
			SET rule_id = (SELECT r.id FROM alert_rules r WHERE r.name = alert_history.rule_name)
			WHERE rule_id IS NULL
			  AND EXISTS (SELECT 1 FROM alert_rules r WHERE r.name = alert_history.rule_name)`)
		if err != nil {
			return fmt.Errorf("%w alert rule ids: %w", ErrFailedToUpdate, err)
		}

		linked, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("%w alert rule ids: %w", ErrFailedToUpdate, err)
		}

		report.Linked = int(linked)

		if err := sqlTx.SelectContext(ctx, &report.Unresolved,
			`SELECT id FROM alert_history WHERE rule_id IS NULL ORDER BY id`); err != nil {
			return fmt.Errorf("%w unresolved alerts: %w", ErrFailedToQuery, err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return report, nil
}

func (t *tx) FindOpenAlert(ctx context.Context, deviceID, ruleID int64) (*models.AlertHistory, error) {
	return t.findOpen(ctx,
		`SELECT `+alertColumns+` FROM alert_history
		WHERE device_id = ? AND rule_id = ? AND resolved_at IS NULL
		ORDER BY id LIMIT 1`, deviceID, ruleID)
}

// FindOpenLegacyAlert matches only rows that have no rule id.
func (t *tx) FindOpenLegacyAlert(ctx context.Context, deviceID int64, ruleName string) (*models.AlertHistory, error) {
	return t.findOpen(ctx,
		`SELECT `+alertColumns+` FROM alert_history
		WHERE device_id = ? AND rule_name = ? AND rule_id IS NULL AND resolved_at IS NULL
		ORDER BY id LIMIT 1`, deviceID, ruleName)
}

func (t *tx) findOpen(ctx context.Context, query string, args ...interface{}) (*models.AlertHistory, error) {
	var alert models.AlertHistory

	err := t.GetContext(ctx, &alert, t.Rebind(query), args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("%w open alert: %w", ErrFailedToQuery, err)
	}

	return &alert, nil
}

// InsertAlert writes a new alert row. Rows without a rule id are refused.
func (t *tx) InsertAlert(ctx context.Context, alert *models.AlertHistory) error {
	if alert.RuleID == nil {
		return ErrMissingRuleID
	}

	if alert.TriggeredAt.IsZero() {
		alert.TriggeredAt = models.NowUTC()
	}

	err := t.GetContext(ctx, &alert.ID, t.Rebind(`
		INSERT INTO alert_history (device_id, rule_id, rule_name, severity, message, triggered_at)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id`),
		alert.DeviceID,
		*alert.RuleID,
		alert.RuleName,
		alert.Severity,
		alert.Message,
		alert.TriggeredAt)
	if err != nil {
		return fmt.Errorf("%w alert: %w", ErrFailedToInsert, err)
	}

	return nil
}

func (t *tx) ResolveAlert(ctx context.Context, alertID int64, at models.UTCTime) error {
	res, err := t.ExecContext(ctx,
		t.Rebind(`UPDATE alert_history SET resolved_at = ? WHERE id = ? AND resolved_at IS NULL`), at, alertID)
	if err != nil {
		return fmt.Errorf("%w alert: %w", ErrFailedToUpdate, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w alert: %w", ErrFailedToUpdate, err)
	}

	if n == 0 {
		return fmt.Errorf("%w: %d", ErrAlertNotResolved, alertID)
	}

	return nil
}
