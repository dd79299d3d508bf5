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

// StageCheck is the verdict for one pipeline stage of a device.
type StageCheck struct {
	Stage  string `json:"stage"`
	OK     bool   `json:"ok"`
	Detail string `json:"detail,omitempty"`
}

// DeviceDiagnosis follows one IP through the polling pipeline and names the
// first stage that fails.
type DeviceDiagnosis struct {
	IP          string         `json:"ip"`
	Profile     string         `json:"profile"`
	Devices     []Device       `json:"devices"`
	Stages      []StageCheck   `json:"stages"`
	FailedStage string         `json:"failed_stage,omitempty"`
	State       *DeviceState   `json:"state,omitempty"`
	OpenAlerts  []AlertHistory `json:"open_alerts,omitempty"`
}

// Add appends a stage verdict. The first failing stage is remembered.
func (d *DeviceDiagnosis) Add(stage string, ok bool, detail string) bool {
	d.Stages = append(d.Stages, StageCheck{Stage: stage, OK: ok, Detail: detail})

	if !ok && d.FailedStage == "" {
		d.FailedStage = stage
	}

	return ok
}

// Healthy reports whether every checked stage passed.
func (d *DeviceDiagnosis) Healthy() bool {
	return d.FailedStage == "" && len(d.Stages) > 0
}
