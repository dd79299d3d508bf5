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
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wardflux/wardflux/pkg/db"
	"github.com/wardflux/wardflux/pkg/models"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type fixture struct {
	store   *db.DB
	device  *models.Device
	down    *models.AlertRule
	latency *models.AlertRule
}

func setup(t *testing.T) *fixture {
	t.Helper()

	ctx := context.Background()

	store, err := db.New(ctx, db.Options{
		Driver: db.DriverSQLite,
		DSN:    filepath.Join(t.TempDir(), "alerts.db"),
	})
	require.NoError(t, err)

	t.Cleanup(func() { _ = store.Close() })

	f := &fixture{
		store:  store,
		device: &models.Device{IP: "10.195.83.252", Name: "branch-252", Enabled: true},
		down: &models.AlertRule{
			Name:      "Device Down",
			Severity:  models.SeverityCritical,
			Condition: models.ConditionPingUnavailable,
			Active:    true,
		},
		latency: &models.AlertRule{
			Name:      "High Latency",
			Severity:  models.SeverityWarning,
			Condition: models.ConditionHighLatency,
			Threshold: 100,
			Active:    true,
		},
	}

	require.NoError(t, store.CreateDevice(ctx, f.device))
	require.NoError(t, store.CreateRule(ctx, f.down))
	require.NoError(t, store.CreateRule(ctx, f.latency))
	require.NoError(t, store.CreateRule(ctx, &models.AlertRule{
		Name:      "Disabled Down",
		Severity:  models.SeverityInfo,
		Condition: models.ConditionPingUnavailable,
	}))

	return f
}

func (f *fixture) transition(kind models.TransitionKind, offset time.Duration) models.Transition {
	at := models.NewUTCTime(time.Now().Add(-time.Hour).Add(offset))
	tr := models.Transition{DeviceID: f.device.ID, IP: f.device.IP, Kind: kind, At: at}

	switch kind {
	case models.TransitionDown:
		tr.From, tr.To = models.StatusUp, models.StatusDown
		tr.DownSince = &at
	case models.TransitionUp:
		tr.From, tr.To = models.StatusDown, models.StatusUp
	}

	return tr
}

func (f *fixture) insertLegacy(t *testing.T, name string) {
	t.Helper()

	_, err := f.store.ExecContext(context.Background(),
		`INSERT INTO alert_history (device_id, rule_id, rule_name, severity, message, triggered_at)
		 VALUES (?, NULL, ?, 'critical', 'legacy', ?)`,
		f.device.ID, name, models.NowUTC())
	require.NoError(t, err)
}

func TestDownThenUpOpensAndResolvesOneAlert(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ctx := context.Background()
	f := setup(t)
	notifier := NewMockNotifier(ctrl)

	var events []*Event

	notifier.EXPECT().Notify(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, e *Event) error {
			events = append(events, e)
			return nil
		}).Times(2)

	engine := NewEngine(f.store, notifier, nil)

	require.NoError(t, engine.OnTransition(ctx, f.transition(models.TransitionDown, 0)))
	require.NoError(t, engine.OnTransition(ctx, f.transition(models.TransitionDown, time.Minute)))
	require.NoError(t, engine.OnTransition(ctx, f.transition(models.TransitionUp, 2*time.Minute)))

	history, err := f.store.ListAlerts(ctx, f.device.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)

	alert := history[0]
	require.NotNil(t, alert.RuleID)
	assert.Equal(t, f.down.ID, *alert.RuleID)
	assert.False(t, alert.Open())

	require.Len(t, events, 2)
	assert.Equal(t, EventOpened, events[0].Kind)
	assert.Equal(t, EventResolved, events[1].Kind)
	assert.Equal(t, *events[0].Alert.RuleID, *events[1].Alert.RuleID)
}

func TestUpWithoutOpenAlertIsNoop(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	require.NoError(t, NewEngine(f.store, nil, nil).OnTransition(ctx, f.transition(models.TransitionUp, 0)))

	history, err := f.store.ListAlerts(ctx, f.device.ID)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestLegacyAlertResolvedByNameAndLoggedDeprecated(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	f.insertLegacy(t, f.down.Name)

	core, logs := observer.New(zap.WarnLevel)
	engine := NewEngine(f.store, nil, zap.New(core))

	// an open legacy row already covers the rule
	require.NoError(t, engine.OnTransition(ctx, f.transition(models.TransitionDown, 0)))

	history, err := f.store.ListAlerts(ctx, f.device.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)

	require.NoError(t, engine.OnTransition(ctx, f.transition(models.TransitionUp, time.Minute)))

	history, err = f.store.ListAlerts(ctx, f.device.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.False(t, history[0].Open())
	assert.Equal(t, 1, logs.FilterMessage("deprecated: legacy alert resolved by rule name").Len())
}

func TestHighLatency(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	engine := NewEngine(f.store, nil, nil)

	result := func(latency time.Duration, ok bool) *models.PollResult {
		return &models.PollResult{
			DeviceID:  f.device.ID,
			IP:        f.device.IP,
			Success:   ok,
			Latency:   latency,
			Timestamp: models.NowUTC(),
		}
	}

	require.NoError(t, engine.OnResult(ctx, result(150*time.Millisecond, true)))
	require.NoError(t, engine.OnResult(ctx, result(180*time.Millisecond, true)))
	require.NoError(t, engine.OnResult(ctx, result(0, false)))

	history, err := f.store.ListAlerts(ctx, f.device.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.True(t, history[0].Open())
	assert.Equal(t, f.latency.ID, *history[0].RuleID)

	require.NoError(t, engine.OnResult(ctx, result(20*time.Millisecond, true)))

	history, err = f.store.ListAlerts(ctx, f.device.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.False(t, history[0].Open())
}

func TestNotifierFailureDoesNotFailTransition(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	f := setup(t)
	notifier := NewMockNotifier(ctrl)
	notifier.EXPECT().Notify(gomock.Any(), gomock.Any()).Return(errors.New("connection refused"))

	core, logs := observer.New(zap.ErrorLevel)
	engine := NewEngine(f.store, notifier, zap.New(core))

	require.NoError(t, engine.OnTransition(context.Background(), f.transition(models.TransitionDown, 0)))
	assert.Equal(t, 1, logs.FilterMessage("notification failed").Len())
}

func TestInsertWithoutRuleIDRefused(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	err := f.store.WithTx(ctx, func(tx db.Tx) error {
		return tx.InsertAlert(ctx, &models.AlertHistory{
			DeviceID: f.device.ID,
			RuleName: f.down.Name,
			Severity: models.SeverityCritical,
		})
	})
	require.ErrorIs(t, err, db.ErrMissingRuleID)
}

func TestBackfillRuleIDs(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	f.insertLegacy(t, f.down.Name)
	f.insertLegacy(t, "Removed Rule")

	core, logs := observer.New(zap.InfoLevel)

	report, err := NewEngine(f.store, nil, zap.New(core)).BackfillRuleIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Linked)
	assert.Len(t, report.Unresolved, 1)
	assert.Equal(t, 1, logs.FilterMessage("legacy alerts without a matching rule").Len())

	history, err := f.store.ListAlerts(ctx, f.device.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.NotNil(t, history[0].RuleID)
	assert.Equal(t, f.down.ID, *history[0].RuleID)
	assert.Nil(t, history[1].RuleID)
}

func TestMultiJoinsErrors(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	a, b := NewMockNotifier(ctrl), NewMockNotifier(ctrl)
	a.EXPECT().Notify(gomock.Any(), gomock.Any()).Return(ErrCooldown)
	b.EXPECT().Notify(gomock.Any(), gomock.Any()).Return(nil)

	err := Multi{a, b}.Notify(context.Background(), &Event{Kind: EventOpened})
	assert.ErrorIs(t, err, ErrCooldown)
}

func TestLogNotifier(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)

	err := NewLogNotifier(zap.New(core)).Notify(context.Background(), &Event{
		Kind: EventOpened,
		IP:   "10.0.0.1",
		Rule: models.AlertRule{Name: "Device Down"},
	})
	require.NoError(t, err)

	entries := logs.FilterMessage("alert opened").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "Device Down", entries[0].ContextMap()["rule"])
}

func (f *fixture) deactivate(t *testing.T, rule *models.AlertRule) {
	t.Helper()

	_, err := f.store.ExecContext(context.Background(),
		f.store.Rebind(`UPDATE alert_rules SET active = ? WHERE id = ?`), false, rule.ID)
	require.NoError(t, err)
}

func TestDeactivatedRuleAlertsStillResolve(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	engine := NewEngine(f.store, nil, nil)

	require.NoError(t, engine.OnTransition(ctx, f.transition(models.TransitionDown, 0)))
	require.NoError(t, engine.OnResult(ctx, &models.PollResult{
		DeviceID: f.device.ID, IP: f.device.IP, Success: true, Latency: 300 * time.Millisecond, Timestamp: models.NowUTC(),
	}))

	f.deactivate(t, f.down)
	f.deactivate(t, f.latency)
	engine.InvalidateRules()

	// still above the threshold, but the rule no longer applies
	require.NoError(t, engine.OnResult(ctx, &models.PollResult{
		DeviceID: f.device.ID, IP: f.device.IP, Success: true, Latency: 300 * time.Millisecond, Timestamp: models.NowUTC(),
	}))
	require.NoError(t, engine.OnTransition(ctx, f.transition(models.TransitionUp, time.Minute)))

	history, err := f.store.ListAlerts(ctx, f.device.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)

	for _, alert := range history {
		assert.False(t, alert.Open(), "rule %s", alert.RuleName)
	}

	// deactivated rules never open new alerts
	require.NoError(t, engine.OnTransition(ctx, f.transition(models.TransitionDown, 2*time.Minute)))

	history, err = f.store.ListAlerts(ctx, f.device.ID)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestSyncState(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	engine := NewEngine(f.store, nil, nil)

	since := models.NewUTCTime(time.Now().Add(-30 * time.Minute))
	down := &models.DeviceState{DeviceID: f.device.ID, Status: models.StatusDown, DownSince: &since, LastEvaluated: models.UTCPtr(time.Now())}

	changed, err := engine.SyncState(ctx, down)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = engine.SyncState(ctx, down)
	require.NoError(t, err)
	assert.False(t, changed)

	history, err := f.store.ListAlerts(ctx, f.device.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.True(t, history[0].Open())
	assert.Equal(t, f.down.ID, *history[0].RuleID)
	assert.True(t, since.Equal(history[0].TriggeredAt.Time))
	assert.Contains(t, history[0].Message, f.device.IP)

	up := &models.DeviceState{DeviceID: f.device.ID, Status: models.StatusUp, LastEvaluated: models.UTCPtr(time.Now())}

	changed, err = engine.SyncState(ctx, up)
	require.NoError(t, err)
	assert.True(t, changed)

	history, err = f.store.ListAlerts(ctx, f.device.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.False(t, history[0].Open())

	changed, err = engine.SyncState(ctx, &models.DeviceState{DeviceID: f.device.ID, Status: models.StatusUnknown})
	require.NoError(t, err)
	assert.False(t, changed)
}
