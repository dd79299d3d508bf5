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

// AlertSeverity is the severity attached to an alert rule.
type AlertSeverity string

const (
	SeverityInfo     AlertSeverity = "info"
	SeverityWarning  AlertSeverity = "warning"
	SeverityCritical AlertSeverity = "critical"
)

// AlertCondition names the condition a rule evaluates.
type AlertCondition string

const (
	ConditionPingUnavailable AlertCondition = "ping_unavailable"
	ConditionHighLatency     AlertCondition = "high_latency"
)

// AlertRule is an operator-defined alerting rule.
type AlertRule struct {
	ID        int64          `db:"id" json:"id"`
	Name      string         `db:"name" json:"name"`
	Severity  AlertSeverity  `db:"severity" json:"severity"`
	Condition AlertCondition `db:"condition" json:"condition"`
	Threshold float64        `db:"threshold" json:"threshold"`
	Active    bool           `db:"active" json:"active"`
}

// AlertHistory is one alert occurrence for a device. RuleID is only nil on
// rows written before rule ids were mandatory.
type AlertHistory struct {
	ID          int64         `db:"id" json:"id"`
	DeviceID    int64         `db:"device_id" json:"device_id"`
	RuleID      *int64        `db:"rule_id" json:"rule_id"`
	RuleName    string        `db:"rule_name" json:"rule_name"`
	Severity    AlertSeverity `db:"severity" json:"severity"`
	Message     string        `db:"message" json:"message"`
	TriggeredAt UTCTime       `db:"triggered_at" json:"triggered_at"`
	ResolvedAt  *UTCTime      `db:"resolved_at" json:"resolved_at"`
}

// Open reports whether the alert is still unresolved.
func (a *AlertHistory) Open() bool {
	return a.ResolvedAt == nil
}
