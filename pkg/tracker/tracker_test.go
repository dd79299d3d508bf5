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

package tracker

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wardflux/wardflux/pkg/alerts"
	"github.com/wardflux/wardflux/pkg/db"
	"github.com/wardflux/wardflux/pkg/models"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func setup(t *testing.T) (*db.DB, *models.Device) {
	t.Helper()

	store, err := db.New(context.Background(), db.Options{
		Driver: db.DriverSQLite,
		DSN:    filepath.Join(t.TempDir(), "tracker.db"),
	})
	require.NoError(t, err)

	t.Cleanup(func() { _ = store.Close() })

	device := &models.Device{IP: "10.195.83.252", Name: "branch-252", Enabled: true}
	require.NoError(t, store.CreateDevice(context.Background(), device))

	return store, device
}

func result(d *models.Device, ok bool, offset time.Duration) models.PollResult {
	return models.PollResult{
		DeviceID:  d.ID,
		IP:        d.IP,
		Success:   ok,
		Timestamp: models.NewUTCTime(time.Now().Add(-time.Hour).Add(offset)),
		Latency:   5 * time.Millisecond,
	}
}

func TestApplyUpDownUpNotifiesInOrder(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ctx := context.Background()
	store, device := setup(t)
	obs := NewMockObserver(ctrl)

	kind := func(k models.TransitionKind) gomock.Matcher {
		return gomock.Cond(func(x any) bool { return x.(models.Transition).Kind == k })
	}

	gomock.InOrder(
		obs.EXPECT().OnTransition(gomock.Any(), kind(models.TransitionInitial)).Return(nil),
		obs.EXPECT().OnTransition(gomock.Any(), kind(models.TransitionDown)).Return(nil),
		obs.EXPECT().OnTransition(gomock.Any(), kind(models.TransitionUp)).Return(nil),
	)
	obs.EXPECT().OnResult(gomock.Any(), gomock.Any()).Return(nil).Times(5)

	tr := New(store, nil, obs)

	for i, ok := range []bool{true, true, false, false, true} {
		_, err := tr.Apply(ctx, result(device, ok, time.Duration(i)*time.Minute))
		require.NoError(t, err)
	}

	state, err := store.GetState(ctx, device.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusUp, state.Status)
	assert.Nil(t, state.DownSince)
	assert.InDelta(t, 120.0, state.LastDowntimeSec, 1.0)
}

func TestApplySameResultTwiceIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store, device := setup(t)
	tr := New(store, nil)

	r := result(device, false, 0)

	first, err := tr.Apply(ctx, r)
	require.NoError(t, err)
	assert.Equal(t, models.TransitionDown, first.Kind)

	before, err := store.GetState(ctx, device.ID)
	require.NoError(t, err)

	second, err := tr.Apply(ctx, r)
	require.NoError(t, err)
	assert.Equal(t, models.TransitionStale, second.Kind)

	after, err := store.GetState(ctx, device.ID)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestApplyDownSinceNeverAfterNow(t *testing.T) {
	ctx := context.Background()
	store, device := setup(t)
	tr := New(store, nil)

	r := result(device, false, 0)
	r.Timestamp = models.NewUTCTime(time.Now().Add(time.Hour))

	_, err := tr.Apply(ctx, r)
	require.NoError(t, err)

	state, err := store.GetState(ctx, device.ID)
	require.NoError(t, err)
	require.NotNil(t, state.DownSince)
	assert.False(t, state.DownSince.After(time.Now()))
}

func TestApplyHealsNullDownSinceWithoutTransition(t *testing.T) {
	ctx := context.Background()
	store, device := setup(t)

	lastEval := models.NewUTCTime(time.Now().Add(-10 * time.Minute))
	_, err := store.ExecContext(ctx,
		`INSERT INTO device_states (device_id, status, down_since, last_evaluated, version) VALUES (?, 'DOWN', NULL, ?, 0)`,
		device.ID, lastEval)
	require.NoError(t, err)

	core, logs := observer.New(zap.DebugLevel)
	tr := New(store, zap.New(core))

	got, err := tr.Apply(ctx, result(device, false, 55*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, models.TransitionNone, got.Kind)
	assert.Equal(t, []string{"null_down_since"}, got.Healed)

	state, err := store.GetState(ctx, device.ID)
	require.NoError(t, err)
	require.NotNil(t, state.DownSince)
	assert.True(t, lastEval.Equal(state.DownSince.Time))

	healed := logs.FilterMessage("state self-healed").All()
	require.Len(t, healed, 1)
	assert.Equal(t, "null_down_since", healed[0].ContextMap()["reason"])
	assert.Zero(t, logs.FilterMessage("state transition").Len())
}

func TestApplyHealsEvenWhenResultIsStale(t *testing.T) {
	ctx := context.Background()
	store, device := setup(t)

	_, err := store.ExecContext(ctx,
		`INSERT INTO device_states (device_id, status, down_since, last_evaluated, version) VALUES (?, 'UP', ?, ?, 0)`,
		device.ID, models.NowUTC(), models.NowUTC())
	require.NoError(t, err)

	got, err := New(store, nil).Apply(ctx, result(device, true, 0))
	require.NoError(t, err)
	assert.Equal(t, models.TransitionStale, got.Kind)

	state, err := store.GetState(ctx, device.ID)
	require.NoError(t, err)
	assert.Nil(t, state.DownSince)
}

func TestApplyObserverErrorIsLoggedNotReturned(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ctx := context.Background()
	store, device := setup(t)
	obs := NewMockObserver(ctrl)
	obs.EXPECT().OnTransition(gomock.Any(), gomock.Any()).Return(errors.New("webhook down"))
	obs.EXPECT().OnResult(gomock.Any(), gomock.Any()).Return(nil)

	core, logs := observer.New(zap.ErrorLevel)

	_, err := New(store, zap.New(core), obs).Apply(ctx, result(device, false, 0))
	require.NoError(t, err)
	assert.Equal(t, 1, logs.FilterMessage("transition observer failed").Len())
}

func TestApplyConcurrentResultsKeepNewest(t *testing.T) {
	ctx := context.Background()
	store, device := setup(t)
	tr := New(store, nil)

	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)

		go func(i int) {
			defer wg.Done()

			_, err := tr.Apply(ctx, result(device, i%2 == 0, time.Duration(i)*time.Second))
			assert.NoError(t, err)
		}(i)
	}

	wg.Wait()

	state, err := store.GetState(ctx, device.ID)
	require.NoError(t, err)
	require.NotNil(t, state.LastEvaluated)

	newest := result(device, true, 19*time.Second).Timestamp
	assert.WithinDuration(t, newest.Time, state.LastEvaluated.Time, time.Second)
	assert.True(t, state.Consistent())
	assert.Zero(t, tr.locks.size())
}

func TestReconcile(t *testing.T) {
	ctx := context.Background()
	store, device := setup(t)

	other := &models.Device{IP: "10.0.0.9", Name: "other", Enabled: true}
	require.NoError(t, store.CreateDevice(ctx, other))

	third := &models.Device{IP: "10.0.0.10", Name: "third", Enabled: true}
	require.NoError(t, store.CreateDevice(ctx, third))

	insert := `INSERT INTO device_states (device_id, status, down_since, last_evaluated, version) VALUES (?, ?, ?, ?, 0)`
	_, err := store.ExecContext(ctx, insert, device.ID, "DOWN", nil, nil)
	require.NoError(t, err)
	_, err = store.ExecContext(ctx, insert, other.ID, "UP", models.NowUTC(), models.NowUTC())
	require.NoError(t, err)
	_, err = store.ExecContext(ctx, insert, third.ID, "UP", nil, models.NowUTC())
	require.NoError(t, err)

	report, err := New(store, nil).Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, ReconcileReport{Scanned: 3, Healed: 2}, report)

	states, err := store.ListStates(ctx)
	require.NoError(t, err)

	for _, s := range states {
		assert.True(t, s.Consistent(), "device %d", s.DeviceID)
	}
}

func TestApplyStaleResultIsNotObserved(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ctx := context.Background()
	store, device := setup(t)
	obs := NewMockObserver(ctrl)

	newer := result(device, true, 10*time.Second)
	newer.Latency = 10 * time.Millisecond

	older := result(device, true, 0)
	older.Latency = 500 * time.Millisecond

	obs.EXPECT().OnTransition(gomock.Any(), gomock.Any()).Return(nil)
	obs.EXPECT().OnResult(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, r *models.PollResult) error {
			assert.Equal(t, newer.Latency, r.Latency)

			return nil
		})

	tr := New(store, nil, obs)

	_, err := tr.Apply(ctx, newer)
	require.NoError(t, err)

	got, err := tr.Apply(ctx, older)
	require.NoError(t, err)
	assert.Equal(t, models.TransitionStale, got.Kind)

	state, err := store.GetState(ctx, device.ID)
	require.NoError(t, err)
	assert.InDelta(t, 10.0, state.LastLatencyMs, 0.001)
}

func TestApplyReturnsUnavailableDatabaseFromObserver(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store, device := setup(t)
	obs := NewMockObserver(ctrl)
	obs.EXPECT().OnTransition(gomock.Any(), gomock.Any()).Return(nil)
	obs.EXPECT().OnResult(gomock.Any(), gomock.Any()).Return(db.ErrDBUnavailable)

	got, err := New(store, nil, obs).Apply(context.Background(), result(device, true, 0))
	require.ErrorIs(t, err, db.ErrDBUnavailable)
	assert.Equal(t, models.TransitionInitial, got.Kind)
}

// failingEngine drops the next n transitions before they reach the engine.
type failingEngine struct {
	*alerts.Engine
	drop int
}

func (f *failingEngine) OnTransition(ctx context.Context, tr models.Transition) error {
	if f.drop > 0 {
		f.drop--

		return errors.New("alert store timeout")
	}

	return f.Engine.OnTransition(ctx, tr)
}

func TestReconcileRepairsAlertsMissedByObserver(t *testing.T) {
	ctx := context.Background()
	store, device := setup(t)

	require.NoError(t, store.CreateRule(ctx, &models.AlertRule{
		Name:      "Device Down",
		Severity:  models.SeverityCritical,
		Condition: models.ConditionPingUnavailable,
		Active:    true,
	}))

	engine := &failingEngine{Engine: alerts.NewEngine(store, nil, nil), drop: 1}
	tr := New(store, nil, engine)

	for i := 0; i < 5; i++ {
		_, err := tr.Apply(ctx, result(device, false, time.Duration(i)*time.Minute))
		require.NoError(t, err)
	}

	history, err := store.ListAlerts(ctx, device.ID)
	require.NoError(t, err)
	require.Empty(t, history)

	report, err := tr.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, ReconcileReport{Scanned: 1, Synced: 1}, report)

	history, err = store.ListAlerts(ctx, device.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.True(t, history[0].Open())

	// a second pass finds nothing to do
	report, err = tr.Reconcile(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.Synced)

	// the recovery is lost as well
	engine.drop = 1

	_, err = tr.Apply(ctx, result(device, true, 10*time.Minute))
	require.NoError(t, err)

	history, err = store.ListAlerts(ctx, device.ID)
	require.NoError(t, err)
	require.True(t, history[0].Open())

	report, err = tr.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Synced)

	history, err = store.ListAlerts(ctx, device.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.False(t, history[0].Open())
}
