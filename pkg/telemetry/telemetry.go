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

// Package telemetry holds the Prometheus collectors shared by wardflux components.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Integrity violation kinds.
const (
	KindDuplicateIP     = "duplicate_ip"
	KindMissingDevice   = "missing_device"
	KindNullDownSince   = "null_down_since"
	KindFutureDownSince = "future_down_since"
	KindStaleDownSince  = "stale_down_since"
	KindLegacyRuleName  = "legacy_rule_name"
)

var (
	QueueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "wardflux_queue_depth",
			Help: "Jobs waiting in each queue",
		},
		[]string{"queue"},
	)
	QueueGrowth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "wardflux_queue_growth_per_second",
			Help: "Queue depth change per second since the previous sample",
		},
		[]string{"queue"},
	)
	EnqueueRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wardflux_enqueue_rejected_total",
			Help: "Jobs rejected because a queue was above its high-water mark",
		},
		[]string{"queue"},
	)
	SweepDevices = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "wardflux_sweep_devices",
			Help: "Devices expected and retrieved by the last sweep",
		},
		[]string{"task", "kind"},
	)
	SweepsSkipped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wardflux_sweeps_skipped_total",
			Help: "Scheduler ticks skipped because the queue still held a full sweep",
		},
		[]string{"task"},
	)
	IntegrityViolations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wardflux_integrity_violations_total",
			Help: "Data integrity violations detected",
		},
		[]string{"kind"},
	)
	Transitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wardflux_state_transitions_total",
			Help: "Device state transitions",
		},
		[]string{"kind"},
	)
	SelfHeals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wardflux_state_self_heals_total",
			Help: "Inconsistent device states repaired",
		},
		[]string{"reason"},
	)
	Alerts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wardflux_alerts_total",
			Help: "Alert history rows opened and resolved",
		},
		[]string{"event", "condition"},
	)
	PollDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "wardflux_poll_duration_seconds",
			Help:    "Duration of a single device poll",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"task", "outcome"},
	)
	DevicesPolled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wardflux_devices_polled_total",
			Help: "Device polls by outcome",
		},
		[]string{"task", "outcome"},
	)
	PoolHalted = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "wardflux_pool_halted",
			Help: "1 when a worker pool stopped on persistent database failure",
		},
		[]string{"queue"},
	)
)

func init() {
	prometheus.MustRegister(
		QueueDepth,
		QueueGrowth,
		EnqueueRejected,
		SweepDevices,
		SweepsSkipped,
		IntegrityViolations,
		Transitions,
		SelfHeals,
		Alerts,
		PollDuration,
		DevicesPolled,
		PoolHalted,
	)
}
