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

// Package core pkg/core/interfaces.go
package core

//go:generate mockgen -destination=mock_core.go -package=core github.com/wardflux/wardflux/pkg/core DeviceLookup,SweepPlanner,QueueInspector,StateReader

import (
	"context"

	"github.com/wardflux/wardflux/pkg/models"
	"github.com/wardflux/wardflux/pkg/queue"
	"github.com/wardflux/wardflux/pkg/registry"
	"github.com/wardflux/wardflux/pkg/scheduler"
)

// DeviceLookup resolves devices through the registry.
type DeviceLookup interface {
	DevicesByIP(ctx context.Context, ip string) ([]models.Device, error)
	ListEnabledDevices(ctx context.Context, profile string) ([]models.Device, registry.Diagnostics, error)
}

// SweepPlanner batches a schedule without enqueueing it.
type SweepPlanner interface {
	Plan(ctx context.Context, name string) (*scheduler.Plan, error)
}

// QueueInspector reads queue counters.
type QueueInspector interface {
	Stats(ctx context.Context, name string) (queue.Stats, error)
}

// StateReader reads recorded device state and alert history.
type StateReader interface {
	GetState(ctx context.Context, deviceID int64) (*models.DeviceState, error)
	ListAlerts(ctx context.Context, deviceID int64) ([]models.AlertHistory, error)
}
