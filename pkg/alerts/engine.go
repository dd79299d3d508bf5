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

package alerts

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/wardflux/wardflux/pkg/db"
	"github.com/wardflux/wardflux/pkg/logger"
	"github.com/wardflux/wardflux/pkg/models"
	"github.com/wardflux/wardflux/pkg/telemetry"
	"go.uber.org/zap"
)

const (
	defaultRuleTTL       = 30 * time.Second
	defaultNotifyTimeout = 5 * time.Second
)

// Engine evaluates alert rules. It implements tracker.Observer.
type Engine struct {
	store         Store
	notifier      Notifier
	logger        *zap.Logger
	ruleTTL       time.Duration
	notifyTimeout time.Duration
	now           func() time.Time

	mu    sync.Mutex
	rules map[ruleKey]cachedRules
}

type ruleKey struct {
	condition  models.AlertCondition
	activeOnly bool
}

type cachedRules struct {
	rules   []models.AlertRule
	fetched time.Time
}

// NewEngine creates an Engine. A nil notifier only records history.
func NewEngine(store Store, notifier Notifier, log *zap.Logger) *Engine {
	return &Engine{
		store:         store,
		notifier:      notifier,
		logger:        logger.Component(log, "alerts"),
		ruleTTL:       defaultRuleTTL,
		notifyTimeout: defaultNotifyTimeout,
		now:           time.Now,
		rules:         make(map[ruleKey]cachedRules),
	}
}

// OnTransition opens ping_unavailable alerts when a device goes DOWN and
// resolves them when it comes back UP.
func (e *Engine) OnTransition(ctx context.Context, tr models.Transition) error {
	switch {
	case tr.Kind == models.TransitionDown:
		since := tr.At
		if tr.DownSince != nil {
			since = *tr.DownSince
		}

		msg := fmt.Sprintf("device %s unreachable since %s", tr.IP, since)

		return e.forRules(ctx, models.ConditionPingUnavailable, true, func(rule *models.AlertRule) error {
			_, err := e.open(ctx, rule, tr.DeviceID, tr.IP, msg, tr.At)

			return err
		})
	case tr.To == models.StatusUp:
		return e.resolveAll(ctx, models.ConditionPingUnavailable, tr.DeviceID, tr.IP, tr.At)
	}

	return nil
}

// OnResult evaluates high_latency rules against a successful poll result.
// Failed polls are left to the ping_unavailable rules.
func (e *Engine) OnResult(ctx context.Context, result *models.PollResult) error {
	if !result.Success {
		return nil
	}

	latency := result.LatencyMs()
	at := result.Timestamp

	if at.IsZero() {
		at = models.NewUTCTime(e.now())
	}

	// inactive rules are only ever resolved
	return e.forRules(ctx, models.ConditionHighLatency, false, func(rule *models.AlertRule) error {
		var err error

		if rule.Active && latency > rule.Threshold {
			msg := fmt.Sprintf("device %s latency %.1fms above %.1fms", result.IP, latency, rule.Threshold)
			_, err = e.open(ctx, rule, result.DeviceID, result.IP, msg, at)
		} else {
			_, err = e.resolve(ctx, rule, result.DeviceID, result.IP, at)
		}

		return err
	})
}

// SyncState brings the ping_unavailable alerts of one device in line with
// its stored state: a DOWN device gets the alerts it is missing and an UP
// device loses the ones left open. It reports whether anything changed.
func (e *Engine) SyncState(ctx context.Context, state *models.DeviceState) (bool, error) {
	if state.Status != models.StatusDown && state.Status != models.StatusUp {
		return false, nil
	}

	ip := ""

	device, err := e.store.GetDevice(ctx, state.DeviceID)
	switch {
	case err == nil:
		ip = device.IP
	case !errors.Is(err, db.ErrNotFound):
		return false, err
	}

	at := models.NewUTCTime(e.now())
	if state.LastEvaluated != nil {
		at = *state.LastEvaluated
	}

	changed := false

	if state.Status == models.StatusUp {
		err = e.forRules(ctx, models.ConditionPingUnavailable, false, func(rule *models.AlertRule) error {
			resolved, err := e.resolve(ctx, rule, state.DeviceID, ip, at)
			changed = changed || resolved

			return err
		})

		return changed, err
	}

	since := at
	if state.DownSince != nil {
		since = *state.DownSince
	}

	msg := fmt.Sprintf("device %s unreachable since %s", ip, since)

	err = e.forRules(ctx, models.ConditionPingUnavailable, true, func(rule *models.AlertRule) error {
		opened, err := e.open(ctx, rule, state.DeviceID, ip, msg, since)
		changed = changed || opened

		return err
	})

	return changed, err
}

// BackfillRuleIDs links alert rows that only carry a rule name to their rule.
func (e *Engine) BackfillRuleIDs(ctx context.Context) (*db.BackfillReport, error) {
	report, err := e.store.BackfillAlertRuleIDs(ctx)
	if err != nil {
		return nil, err
	}

	if report.Linked > 0 {
		e.logger.Info("linked legacy alerts to rules", zap.Int("linked", report.Linked))
	}

	if len(report.Unresolved) > 0 {
		e.logger.Warn("legacy alerts without a matching rule",
			zap.Int64s("alert_ids", report.Unresolved))
	}

	return report, nil
}

// InvalidateRules drops the cached rule lists.
func (e *Engine) InvalidateRules() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.rules = make(map[ruleKey]cachedRules)
}

func (e *Engine) listRules(ctx context.Context, cond models.AlertCondition, activeOnly bool) ([]models.AlertRule, error) {
	key := ruleKey{condition: cond, activeOnly: activeOnly}

	e.mu.Lock()
	cached, ok := e.rules[key]
	e.mu.Unlock()

	if ok && e.now().Sub(cached.fetched) < e.ruleTTL {
		return cached.rules, nil
	}

	rules, err := e.store.ListRules(ctx, cond, activeOnly)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.rules[key] = cachedRules{rules: rules, fetched: e.now()}
	e.mu.Unlock()

	return rules, nil
}

// resolveAll closes the open alerts of every rule of cond, including rules
// deactivated while their alert was open.
func (e *Engine) resolveAll(ctx context.Context, cond models.AlertCondition, deviceID int64, ip string, at models.UTCTime) error {
	return e.forRules(ctx, cond, false, func(rule *models.AlertRule) error {
		_, err := e.resolve(ctx, rule, deviceID, ip, at)

		return err
	})
}

func (e *Engine) forRules(ctx context.Context, cond models.AlertCondition, activeOnly bool, fn func(rule *models.AlertRule) error) error {
	rules, err := e.listRules(ctx, cond, activeOnly)
	if err != nil {
		return err
	}

	var errs []error

	for i := range rules {
		if err := fn(&rules[i]); err != nil {
			errs = append(errs, fmt.Errorf("rule %q: %w", rules[i].Name, err))
		}
	}

	return errors.Join(errs...)
}

func (e *Engine) open(ctx context.Context, rule *models.AlertRule, deviceID int64, ip, msg string, at models.UTCTime) (bool, error) {
	var opened *models.AlertHistory

	err := e.store.WithTx(ctx, func(tx db.Tx) error {
		existing, err := tx.FindOpenAlert(ctx, deviceID, rule.ID)
		if err != nil {
			return err
		}

		if existing == nil {
			existing, err = tx.FindOpenLegacyAlert(ctx, deviceID, rule.Name)
			if err != nil {
				return err
			}
		}

		if existing != nil {
			return nil
		}

		ruleID := rule.ID
		alert := &models.AlertHistory{
			DeviceID:    deviceID,
			RuleID:      &ruleID,
			RuleName:    rule.Name,
			Severity:    rule.Severity,
			Message:     msg,
			TriggeredAt: at,
		}

		if err := tx.InsertAlert(ctx, alert); err != nil {
			return err
		}

		opened = alert

		return nil
	})
	if err != nil || opened == nil {
		return false, err
	}

	telemetry.Alerts.WithLabelValues(string(EventOpened), string(rule.Condition)).Inc()
	e.logger.Warn("alert opened",
		append(logger.Device(deviceID, ip),
			zap.Int64("alert_id", opened.ID),
			zap.Int64("rule_id", rule.ID),
			zap.String("rule", rule.Name),
			zap.String("severity", string(rule.Severity)))...)

	e.emit(ctx, &Event{Kind: EventOpened, IP: ip, Rule: *rule, Alert: *opened})

	return true, nil
}

func (e *Engine) resolve(ctx context.Context, rule *models.AlertRule, deviceID int64, ip string, at models.UTCTime) (bool, error) {
	var (
		resolved *models.AlertHistory
		legacy   bool
	)

	err := e.store.WithTx(ctx, func(tx db.Tx) error {
		alert, err := tx.FindOpenAlert(ctx, deviceID, rule.ID)
		if err != nil {
			return err
		}

		if alert == nil {
			alert, err = tx.FindOpenLegacyAlert(ctx, deviceID, rule.Name)
			if err != nil {
				return err
			}

			legacy = alert != nil
		}

		if alert == nil {
			return nil
		}

		if err := tx.ResolveAlert(ctx, alert.ID, at); err != nil {
			return err
		}

		alert.ResolvedAt = &at
		resolved = alert

		return nil
	})
	if err != nil || resolved == nil {
		return false, err
	}

	fields := append(logger.Device(deviceID, ip),
		zap.Int64("alert_id", resolved.ID),
		zap.Int64("rule_id", rule.ID),
		zap.String("rule", rule.Name))

	if legacy {
		e.logger.Warn("deprecated: legacy alert resolved by rule name", fields...)
	}

	telemetry.Alerts.WithLabelValues(string(EventResolved), string(rule.Condition)).Inc()
	e.logger.Info("alert resolved", fields...)

	e.emit(ctx, &Event{Kind: EventResolved, IP: ip, Rule: *rule, Alert: *resolved})

	return true, nil
}

func (e *Engine) emit(ctx context.Context, event *Event) {
	if e.notifier == nil {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, e.notifyTimeout)
	defer cancel()

	err := e.notifier.Notify(ctx, event)

	switch {
	case err == nil:
	case errors.Is(err, ErrCooldown), errors.Is(err, ErrWebhookDisabled):
		e.logger.Debug("notification suppressed", zap.String("rule", event.Rule.Name), zap.Error(err))
	default:
		e.logger.Error("notification failed",
			append(logger.Device(event.Alert.DeviceID, event.IP),
				zap.String("event", string(event.Kind)),
				zap.Error(err))...)
	}
}
