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

// Package alerts opens and resolves alert history rows from device state
// transitions and poll results, and forwards the events to notifiers.

//go:generate mockgen -destination=mock_alerts.go -package=alerts github.com/wardflux/wardflux/pkg/alerts Notifier

package alerts

import (
	"context"

	"github.com/wardflux/wardflux/pkg/db"
	"github.com/wardflux/wardflux/pkg/models"
)

// Store is the subset of db.Service the engine needs.
type Store interface {
	WithTx(ctx context.Context, fn func(tx db.Tx) error) error
	ListRules(ctx context.Context, condition models.AlertCondition, activeOnly bool) ([]models.AlertRule, error)
	GetDevice(ctx context.Context, id int64) (*models.Device, error)
	BackfillAlertRuleIDs(ctx context.Context) (*db.BackfillReport, error)
}

// Notifier delivers alert events.
type Notifier interface {
	// Notify sends one event. Implementations must be safe for concurrent use.
	Notify(ctx context.Context, event *Event) error
}

// EventKind is what happened to an alert.
type EventKind string

const (
	EventOpened   EventKind = "opened"
	EventResolved EventKind = "resolved"
)

// Event is emitted after the alert row change has been committed.
type Event struct {
	Kind  EventKind           `json:"kind"`
	IP    string              `json:"ip"`
	Rule  models.AlertRule    `json:"rule"`
	Alert models.AlertHistory `json:"alert"`
}
