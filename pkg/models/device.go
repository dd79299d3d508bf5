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

package models

import (
	"encoding/json"
	"time"
)

// DeviceStatus is the reachability state of a device.
type DeviceStatus string

const (
	StatusUnknown DeviceStatus = "UNKNOWN"
	StatusUp      DeviceStatus = "UP"
	StatusDown    DeviceStatus = "DOWN"
)

// DefaultProfile is the monitoring profile used when none is configured.
const DefaultProfile = "default"

// Device is a monitored network device as held by the registry.
type Device struct {
	ID         int64   `db:"id" json:"id"`
	IP         string  `db:"ip" json:"ip"`
	Name       string  `db:"name" json:"name"`
	Enabled    bool    `db:"enabled" json:"enabled"`
	DeviceType string  `db:"device_type" json:"device_type"`
	BranchID   *int64  `db:"branch_id" json:"branch_id,omitempty"`
	ProfileID  string  `db:"profile_id" json:"profile_id"`
	SNMPPort   int     `db:"snmp_port" json:"snmp_port"`
	CreatedAt  UTCTime `db:"created_at" json:"created_at"`
	UpdatedAt  UTCTime `db:"updated_at" json:"updated_at"`
}

// Ref returns the part of the device carried inside a job.
func (d *Device) Ref() DeviceRef {
	return DeviceRef{
		ID:       d.ID,
		IP:       d.IP,
		Name:     d.Name,
		SNMPPort: d.SNMPPort,
	}
}

// SNMPVersion represents supported SNMP versions.
type SNMPVersion string

const (
	SNMPVersion1  SNMPVersion = "v1"
	SNMPVersion2c SNMPVersion = "v2c"
	SNMPVersion3  SNMPVersion = "v3"
)

// SNMPCredential is the encrypted SNMP access material for one device.
type SNMPCredential struct {
	DeviceID     int64       `db:"device_id" json:"device_id"`
	Version      SNMPVersion `db:"version" json:"version"`
	CommunityEnc string      `db:"community_enc" json:"-"`
	Username     string      `db:"username" json:"username,omitempty"`
	AuthProtocol string      `db:"auth_protocol" json:"auth_protocol,omitempty"`
	AuthKeyEnc   string      `db:"auth_key_enc" json:"-"`
	PrivProtocol string      `db:"priv_protocol" json:"priv_protocol,omitempty"`
	PrivKeyEnc   string      `db:"priv_key_enc" json:"-"`
}

// SNMPSecrets holds decrypted credential material. It only lives for the
// duration of one poll and never renders its contents.
type SNMPSecrets struct {
	Community string
	AuthKey   string
	PrivKey   string
}

func (SNMPSecrets) String() string {
	return "SNMPSecrets{redacted}"
}

func (SNMPSecrets) GoString() string {
	return "SNMPSecrets{redacted}"
}

func (SNMPSecrets) MarshalJSON() ([]byte, error) {
	return json.Marshal("redacted")
}

// DeviceState is the tracked reachability state of a device.
// DownSince is set iff Status is DOWN.
type DeviceState struct {
	DeviceID        int64        `db:"device_id" json:"device_id"`
	Status          DeviceStatus `db:"status" json:"status"`
	DownSince       *UTCTime     `db:"down_since" json:"down_since"`
	LastEvaluated   *UTCTime     `db:"last_evaluated" json:"last_evaluated"`
	LastLatencyMs   float64      `db:"last_latency_ms" json:"last_latency_ms"`
	LastDowntimeSec float64      `db:"last_downtime_seconds" json:"last_downtime_seconds"`
	Version         int64        `db:"version" json:"version"`
}

// LastDowntime is the duration of the most recently resolved outage.
func (s *DeviceState) LastDowntime() time.Duration {
	return time.Duration(s.LastDowntimeSec * float64(time.Second))
}

// Consistent reports whether the DownSince invariant holds.
func (s *DeviceState) Consistent() bool {
	if s.Status == StatusDown {
		return s.DownSince != nil && !s.DownSince.IsZero()
	}

	return s.DownSince == nil
}

// InterfaceMetric is the latest polled view of one device interface.
type InterfaceMetric struct {
	DeviceID    int64   `db:"device_id" json:"device_id"`
	IfIndex     int     `db:"if_index" json:"if_index"`
	IfName      string  `db:"if_name" json:"if_name"`
	IfAlias     string  `db:"if_alias" json:"if_alias"`
	OperStatus  int     `db:"oper_status" json:"oper_status"`
	ISPProvider string  `db:"isp_provider" json:"isp_provider,omitempty"`
	InOctets    int64   `db:"in_octets" json:"in_octets"`
	OutOctets   int64   `db:"out_octets" json:"out_octets"`
	LastPolled  UTCTime `db:"last_polled" json:"last_polled"`
}

// OperStatusUp is the IF-MIB ifOperStatus value for up(1).
const OperStatusUp = 1
