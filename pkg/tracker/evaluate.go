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
	"time"

	"github.com/wardflux/wardflux/pkg/models"
	"github.com/wardflux/wardflux/pkg/telemetry"
)

// heal repairs a state that violates the DownSince invariant and returns the
// reasons, one per repair. It never changes Status.
func heal(state *models.DeviceState, now time.Time) []string {
	var reasons []string

	switch {
	case state.Status == models.StatusDown && (state.DownSince == nil || state.DownSince.IsZero()):
		// the last evaluation is the latest moment the device is known to
		// have been checked; use it when it is not in the future
		at := now
		if state.LastEvaluated != nil && !state.LastEvaluated.IsZero() && !state.LastEvaluated.After(now) {
			at = state.LastEvaluated.Time
		}

		state.DownSince = models.UTCPtr(at)
		reasons = append(reasons, telemetry.KindNullDownSince)
	case state.Status == models.StatusDown && state.DownSince.After(now):
		state.DownSince = models.UTCPtr(now)
		reasons = append(reasons, telemetry.KindFutureDownSince)
	case state.Status != models.StatusDown && state.DownSince != nil:
		state.DownSince = nil
		reasons = append(reasons, telemetry.KindStaleDownSince)
	}

	return reasons
}

// evaluate folds result into state. It heals first, then rejects results not
// newer than the last evaluation, then applies the status transition.
func evaluate(state *models.DeviceState, result *models.PollResult, now time.Time) models.Transition {
	healed := heal(state, now)

	at := result.Timestamp
	if at.IsZero() || at.After(now) {
		at = models.NewUTCTime(now)
	}

	tr := models.Transition{
		DeviceID: state.DeviceID,
		IP:       result.IP,
		From:     state.Status,
		To:       state.Status,
		At:       at,
		Healed:   healed,
	}

	if state.LastEvaluated != nil && !at.After(state.LastEvaluated.Time) {
		tr.Kind = models.TransitionStale
		tr.DownSince = state.DownSince

		return tr
	}

	tr.Kind = models.TransitionNone

	if result.Success {
		switch state.Status {
		case models.StatusDown:
			tr.Kind = models.TransitionUp
			tr.DownSince = state.DownSince
			tr.Downtime = at.Sub(state.DownSince.Time)
			if tr.Downtime < 0 {
				tr.Downtime = 0
			}

			state.LastDowntimeSec = tr.Downtime.Seconds()
			state.DownSince = nil
		case models.StatusUnknown:
			tr.Kind = models.TransitionInitial
		}

		state.Status = models.StatusUp
		state.LastLatencyMs = result.LatencyMs()
	} else {
		if state.Status != models.StatusDown {
			tr.Kind = models.TransitionDown
			state.DownSince = models.UTCPtr(at.Time)
		}

		state.Status = models.StatusDown
		tr.DownSince = state.DownSince
	}

	tr.To = state.Status
	state.LastEvaluated = &at

	return tr
}
