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

import "time"

// DeviceRef is the device identity carried inside a job.
type DeviceRef struct {
	ID       int64  `json:"id"`
	IP       string `json:"ip"`
	Name     string `json:"name"`
	SNMPPort int    `json:"snmp_port,omitempty"`
}

// Job is one batch of devices handed to a worker queue.
type Job struct {
	ID          string      `json:"id"`
	Task        string      `json:"task"`
	Queue       string      `json:"queue"`
	Devices     []DeviceRef `json:"devices"`
	SweepID     string      `json:"sweep_id"`
	ScheduledAt UTCTime     `json:"scheduled_at"`
}

// SweepSummary describes one scheduler tick.
type SweepSummary struct {
	SweepID   string  `json:"sweep_id"`
	Schedule  string  `json:"schedule"`
	Task      string  `json:"task"`
	Queue     string  `json:"queue"`
	Expected  int     `json:"expected"`
	Retrieved int     `json:"retrieved"`
	Missing   []int64 `json:"missing,omitempty"`
	Jobs      int     `json:"jobs"`
	Enqueued  int     `json:"enqueued"`
	Skipped   bool    `json:"skipped"`
	Reason    string  `json:"reason,omitempty"`
	StartedAt UTCTime `json:"started_at"`
}

// PollResult is the outcome of one reachability check of one device.
type PollResult struct {
	DeviceID   int64         `json:"device_id"`
	IP         string        `json:"ip"`
	Timestamp  UTCTime       `json:"timestamp"`
	Success    bool          `json:"success"`
	Latency    time.Duration `json:"latency"`
	PacketLoss float64       `json:"packet_loss"`
	Attempts   int           `json:"attempts"`
	Error      string        `json:"error,omitempty"`
}

// LatencyMs returns the latency in milliseconds.
func (r *PollResult) LatencyMs() float64 {
	return float64(r.Latency) / float64(time.Millisecond)
}

// TransitionKind classifies the effect of a poll result on device state.
type TransitionKind string

const (
	TransitionNone    TransitionKind = "none"
	TransitionInitial TransitionKind = "initial"
	TransitionDown    TransitionKind = "down"
	TransitionUp      TransitionKind = "up"
	TransitionStale   TransitionKind = "stale"
)

// Transition is the result of applying a PollResult to a DeviceState.
type Transition struct {
	DeviceID  int64          `json:"device_id"`
	IP        string         `json:"ip"`
	Kind      TransitionKind `json:"kind"`
	From      DeviceStatus   `json:"from"`
	To        DeviceStatus   `json:"to"`
	At        UTCTime        `json:"at"`
	DownSince *UTCTime       `json:"down_since,omitempty"`
	Downtime  time.Duration  `json:"downtime,omitempty"`
	Healed    []string       `json:"healed,omitempty"`
}

// Changed reports whether the transition moved the device between statuses.
func (t *Transition) Changed() bool {
	return t.Kind == TransitionDown || t.Kind == TransitionUp || t.Kind == TransitionInitial
}
