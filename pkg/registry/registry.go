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

// Package registry is the read side of the device inventory used by sweeps.
package registry

import (
	"context"
	"fmt"
	"sort"

	"github.com/wardflux/wardflux/pkg/db"
	"github.com/wardflux/wardflux/pkg/logger"
	"github.com/wardflux/wardflux/pkg/models"
	"github.com/wardflux/wardflux/pkg/telemetry"
	"go.uber.org/zap"
)

//go:generate mockgen -destination=mock_registry.go -package=registry github.com/wardflux/wardflux/pkg/registry Store

// Store is the subset of db.Service the registry reads from.
type Store interface {
	ListEnabledDevices(ctx context.Context, profile string) ([]models.Device, error)
	ListEnabledDeviceIDs(ctx context.Context, profile string) ([]int64, error)
	CountEnabledDevices(ctx context.Context, profile string) (int, error)
	GetDevice(ctx context.Context, id int64) (*models.Device, error)
	FindDevicesByIP(ctx context.Context, ip string) ([]models.Device, error)
	GetCredential(ctx context.Context, deviceID int64) (*models.SNMPCredential, error)
}

var _ Store = (db.Service)(nil)

// Diagnostics reports how a device read compares to the independent count.
type Diagnostics struct {
	Expected     int                `json:"expected"`
	Retrieved    int                `json:"retrieved"`
	Missing      []int64            `json:"missing,omitempty"`
	DuplicateIPs map[string][]int64 `json:"duplicate_ips,omitempty"`
}

// Consistent reports whether every expected device was retrieved and no IP
// is shared.
func (d *Diagnostics) Consistent() bool {
	return d.Expected == d.Retrieved && len(d.Missing) == 0 && len(d.DuplicateIPs) == 0
}

// Registry answers which devices a sweep must poll.
type Registry struct {
	store  Store
	logger *zap.Logger
}

// New creates a Registry.
func New(store Store, log *zap.Logger) *Registry {
	return &Registry{store: store, logger: logger.Component(log, "registry")}
}

// ListEnabledDevices reads the enabled devices of a profile and checks the
// result against an independent count. Mismatches and duplicate IPs are
// logged and counted; they never fail the read.
func (r *Registry) ListEnabledDevices(ctx context.Context, profile string) ([]models.Device, Diagnostics, error) {
	devices, err := r.store.ListEnabledDevices(ctx, profile)
	if err != nil {
		return nil, Diagnostics{}, err
	}

	diag := Diagnostics{Retrieved: len(devices)}

	expected, err := r.store.CountEnabledDevices(ctx, profile)
	if err != nil {
		r.logger.Warn("enabled device count unavailable", zap.String("profile", profile), zap.Error(err))

		expected = len(devices)
	}

	diag.Expected = expected

	if expected != len(devices) {
		diag.Missing = r.missing(ctx, profile, devices)

		telemetry.IntegrityViolations.WithLabelValues(telemetry.KindMissingDevice).Inc()

		r.logger.Error("device retrieval mismatch",
			zap.String("profile", profile),
			zap.Int("expected", expected),
			zap.Int("retrieved", len(devices)),
			zap.Int64s("missing_ids", diag.Missing))
	}

	diag.DuplicateIPs = r.reportDuplicates(profile, devices)

	for i := range devices {
		r.logger.Debug("device retrieved",
			append(logger.Device(devices[i].ID, devices[i].IP),
				zap.String(logger.FieldStage, logger.StageRetrieved),
				zap.String("profile", profile))...)
	}

	return devices, diag, nil
}

func (r *Registry) missing(ctx context.Context, profile string, devices []models.Device) []int64 {
	ids, err := r.store.ListEnabledDeviceIDs(ctx, profile)
	if err != nil {
		r.logger.Warn("enabled device ids unavailable", zap.Error(err))

		return nil
	}

	got := make(map[int64]struct{}, len(devices))
	for i := range devices {
		got[devices[i].ID] = struct{}{}
	}

	var missing []int64

	for _, id := range ids {
		if _, ok := got[id]; !ok {
			missing = append(missing, id)
		}
	}

	return missing
}

// FindDuplicateIPs returns every IP shared by more than one enabled device of
// the profile.
func (r *Registry) FindDuplicateIPs(ctx context.Context, profile string) (map[string][]int64, error) {
	devices, err := r.store.ListEnabledDevices(ctx, profile)
	if err != nil {
		return nil, err
	}

	return r.reportDuplicates(profile, devices), nil
}

func (r *Registry) reportDuplicates(profile string, devices []models.Device) map[string][]int64 {
	dups := duplicateIPs(devices)

	ips := make([]string, 0, len(dups))
	for ip := range dups {
		ips = append(ips, ip)
	}

	sort.Strings(ips)

	for _, ip := range ips {
		telemetry.IntegrityViolations.WithLabelValues(telemetry.KindDuplicateIP).Inc()

		r.logger.Error("duplicate ip across enabled devices",
			zap.String("profile", profile),
			zap.String(logger.FieldIP, ip),
			zap.Int64s("device_ids", dups[ip]))
	}

	return dups
}

func duplicateIPs(devices []models.Device) map[string][]int64 {
	byIP := make(map[string][]int64, len(devices))

	for i := range devices {
		byIP[devices[i].IP] = append(byIP[devices[i].IP], devices[i].ID)
	}

	dups := make(map[string][]int64)

	for ip, ids := range byIP {
		if len(ids) > 1 {
			dups[ip] = ids
		}
	}

	return dups
}

// Device returns a device by id.
func (r *Registry) Device(ctx context.Context, id int64) (*models.Device, error) {
	return r.store.GetDevice(ctx, id)
}

// DevicesByIP returns every device registered with ip.
func (r *Registry) DevicesByIP(ctx context.Context, ip string) ([]models.Device, error) {
	return r.store.FindDevicesByIP(ctx, ip)
}

// Credential returns the encrypted SNMP credential of a device.
func (r *Registry) Credential(ctx context.Context, deviceID int64) (*models.SNMPCredential, error) {
	cred, err := r.store.GetCredential(ctx, deviceID)
	if err != nil {
		return nil, fmt.Errorf("credential for device %d: %w", deviceID, err)
	}

	return cred, nil
}
