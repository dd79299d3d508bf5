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

// Package poller runs ping and SNMP jobs taken from the queue and feeds the
// results to the tracker, the alert engine and the metrics sink.
package poller

import (
	"context"

	"github.com/wardflux/wardflux/pkg/db"
	"github.com/wardflux/wardflux/pkg/models"
	"github.com/wardflux/wardflux/pkg/tracker"
)

//go:generate mockgen -destination=mock_poller.go -package=poller github.com/wardflux/wardflux/pkg/poller Pinger,InterfaceCollector,Tracker,CredentialSource,InterfaceStore

// Pinger sends ICMP echo requests to one address.
type Pinger interface {
	// Ping returns the reply statistics. A nil error means at least one echo
	// reply arrived.
	Ping(ctx context.Context, ip string) (*PingReply, error)
}

// InterfaceCollector reads the interface table of a device.
type InterfaceCollector interface {
	CollectInterfaces(ctx context.Context, target *SNMPTarget) ([]models.InterfaceMetric, error)
}

// Tracker folds poll results into device state.
type Tracker interface {
	Apply(ctx context.Context, result models.PollResult) (models.Transition, error)
}

// CredentialSource returns the encrypted SNMP credential of a device.
type CredentialSource interface {
	Credential(ctx context.Context, deviceID int64) (*models.SNMPCredential, error)
}

// InterfaceStore persists the latest interface view of a device.
type InterfaceStore interface {
	UpsertInterfaceMetrics(ctx context.Context, metrics []models.InterfaceMetric) error
}

// Reconciler repairs inconsistent device states and the alerts derived from them.
type Reconciler interface {
	Reconcile(ctx context.Context) (tracker.ReconcileReport, error)
}

// Backfiller links legacy alert rows to rules.
type Backfiller interface {
	BackfillRuleIDs(ctx context.Context) (*db.BackfillReport, error)
}

// Handler executes one job.
type Handler interface {
	Handle(ctx context.Context, job *models.Job) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, job *models.Job) error

func (f HandlerFunc) Handle(ctx context.Context, job *models.Job) error {
	return f(ctx, job)
}
