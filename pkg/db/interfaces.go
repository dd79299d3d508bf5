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

// Package db pkg/db/interfaces.go
package db

import (
	"context"
	"time"

	"github.com/wardflux/wardflux/pkg/models"
)

// Tx is the set of operations available inside a per-device transaction.
type Tx interface {
	// LockState returns the state row for the device, creating an UNKNOWN row
	// when none exists, and holds its row lock until the transaction ends.
	LockState(ctx context.Context, deviceID int64) (*models.DeviceState, error)
	SaveState(ctx context.Context, state *models.DeviceState) error

	FindOpenAlert(ctx context.Context, deviceID, ruleID int64) (*models.AlertHistory, error)
	FindOpenLegacyAlert(ctx context.Context, deviceID int64, ruleName string) (*models.AlertHistory, error)
	InsertAlert(ctx context.Context, alert *models.AlertHistory) error
	ResolveAlert(ctx context.Context, alertID int64, at models.UTCTime) error
}

// Service represents all database operations.
type Service interface {
	// Core database operations.

	WithTx(ctx context.Context, fn func(tx Tx) error) error
	Ping(ctx context.Context) error
	Close() error
	Driver() string

	// Device operations.

	CreateDevice(ctx context.Context, device *models.Device) error
	GetDevice(ctx context.Context, id int64) (*models.Device, error)
	FindDevicesByIP(ctx context.Context, ip string) ([]models.Device, error)
	ListEnabledDevices(ctx context.Context, profile string) ([]models.Device, error)
	ListEnabledDeviceIDs(ctx context.Context, profile string) ([]int64, error)
	CountEnabledDevices(ctx context.Context, profile string) (int, error)

	// Credential operations.

	PutCredential(ctx context.Context, cred *models.SNMPCredential) error
	GetCredential(ctx context.Context, deviceID int64) (*models.SNMPCredential, error)

	// State operations.

	GetState(ctx context.Context, deviceID int64) (*models.DeviceState, error)
	ListStates(ctx context.Context) ([]models.DeviceState, error)

	// Alert operations.

	CreateRule(ctx context.Context, rule *models.AlertRule) error
	ListRules(ctx context.Context, condition models.AlertCondition, activeOnly bool) ([]models.AlertRule, error)
	ListAlerts(ctx context.Context, deviceID int64) ([]models.AlertHistory, error)
	BackfillAlertRuleIDs(ctx context.Context) (*BackfillReport, error)

	// Metric operations.

	UpsertInterfaceMetrics(ctx context.Context, metrics []models.InterfaceMetric) error
	ListInterfaceMetrics(ctx context.Context, deviceID int64) ([]models.InterfaceMetric, error)
	StoreSample(ctx context.Context, sample *models.Sample) error
	LatestSamples(ctx context.Context, name string) ([]models.Sample, error)

	// Maintenance operations.

	CleanOldData(ctx context.Context, retentionPeriod time.Duration) error
}

// BackfillReport describes a legacy rule-id backfill run.
type BackfillReport struct {
	Linked     int     `json:"linked"`
	Unresolved []int64 `json:"unresolved"`
}
