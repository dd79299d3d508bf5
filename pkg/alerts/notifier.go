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

import (
	"context"
	"errors"

	"github.com/wardflux/wardflux/pkg/logger"
	"go.uber.org/zap"
)

// LogNotifier writes alert events to the log.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier(log *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.Component(log, "notifier")}
}

// Notify implements Notifier.
func (l *LogNotifier) Notify(_ context.Context, event *Event) error {
	l.logger.Info("alert "+string(event.Kind),
		append(logger.Device(event.Alert.DeviceID, event.IP),
			zap.Int64("alert_id", event.Alert.ID),
			zap.String("rule", event.Rule.Name),
			zap.String("severity", string(event.Rule.Severity)),
			zap.String("alert_message", event.Alert.Message))...)

	return nil
}

// Multi fans an event out to several notifiers. Every notifier is tried.
type Multi []Notifier

// Notify implements Notifier.
func (m Multi) Notify(ctx context.Context, event *Event) error {
	var errs []error

	for _, n := range m {
		if err := n.Notify(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
