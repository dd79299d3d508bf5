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

package alerts

import "github.com/wardflux/wardflux/pkg/models"

// Embed colours by alert level. Resolutions are sent at info level.
const (
	DiscordColorRed    = 15158332
	DiscordColorYellow = 16776960
	DiscordColorBlue   = 3447003
)

func discordColor(level models.AlertSeverity) int {
	switch level {
	case models.SeverityCritical:
		return DiscordColorRed
	case models.SeverityWarning:
		return DiscordColorYellow
	default:
		return DiscordColorBlue
	}
}

// DiscordTemplate renders a WebhookAlert as a single Discord embed with the
// device IP and every detail as inline fields. Detail values are formatted
// with print so numeric ids arrive as strings, which Discord requires.
const DiscordTemplate = `{
  "embeds": [{
    "title": {{json .alert.Title}},
    "description": {{json .alert.Message}},
    "color": {{discordColor .alert.Level}},
    "timestamp": {{json .alert.Timestamp}},
    "fields": [
      {
        "name": "Device",
        "value": {{json .alert.IP}},
        "inline": true
      }
      {{range $key, $value := .alert.Details}},
      {
        "name": {{json $key}},
        "value": {{json (print $value)}},
        "inline": true
      }
      {{end}}
    ]
  }]
}`
