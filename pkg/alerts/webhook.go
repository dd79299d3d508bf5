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
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"text/template"
	"time"

	"github.com/wardflux/wardflux/pkg/config"
	"github.com/wardflux/wardflux/pkg/logger"
	"github.com/wardflux/wardflux/pkg/models"
	"go.uber.org/zap"
)

var (
	ErrWebhookDisabled   = errors.New("webhook notifier is disabled")
	ErrCooldown          = errors.New("alert is within cooldown period")
	errInvalidJSON       = errors.New("invalid JSON generated")
	errWebhookStatus     = errors.New("webhook returned non-2xx status")
	errTemplateParse     = errors.New("template parsing failed")
	errTemplateExecution = errors.New("template execution failed")
)

// WebhookAlert is the payload posted to a webhook, or handed to its template
// as .alert.
type WebhookAlert struct {
	Level     models.AlertSeverity `json:"level"`
	Title     string               `json:"title"`
	Message   string               `json:"message"`
	Timestamp string               `json:"timestamp"`
	DeviceID  int64                `json:"device_id"`
	IP        string               `json:"ip"`
	Details   map[string]any       `json:"details,omitempty"`
}

// WebhookNotifier posts alert events to an HTTP endpoint.
type WebhookNotifier struct {
	config         config.WebhookConfig
	client         *http.Client
	tmpl           *template.Template
	lastAlertTimes map[string]time.Time
	mu             sync.Mutex
	bufferPool     *sync.Pool
	logger         *zap.Logger
	now            func() time.Time
}

// NewWebhookNotifier creates a notifier. The template, if any, is parsed up
// front so a broken template fails at startup.
func NewWebhookNotifier(cfg config.WebhookConfig, log *zap.Logger) (*WebhookNotifier, error) {
	w := &WebhookNotifier{
		config: cfg,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		lastAlertTimes: make(map[string]time.Time),
		bufferPool: &sync.Pool{
			New: func() interface{} {
				return new(bytes.Buffer)
			},
		},
		logger: logger.Component(log, "webhook"),
		now:    time.Now,
	}

	if cfg.Template != "" {
		tmpl, err := template.New("webhook").Funcs(w.templateFuncs()).Parse(cfg.Template)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", errTemplateParse, err)
		}

		w.tmpl = tmpl
	}

	return w, nil
}

// NewDiscordNotifier posts alerts to a Discord webhook URL using
// DiscordTemplate. Embed colour follows the alert level and resolutions are
// blue. Cooldown and retry behaviour are those of NewWebhookNotifier.
func NewDiscordNotifier(webhookURL string, cooldown time.Duration, log *zap.Logger) (*WebhookNotifier, error) {
	return NewWebhookNotifier(config.WebhookConfig{
		Enabled:  true,
		URL:      webhookURL,
		Template: DiscordTemplate,
		Cooldown: config.Duration(cooldown),
	}, log)
}

// IsEnabled reports whether the notifier sends anything.
func (w *WebhookNotifier) IsEnabled() bool {
	return w.config.Enabled
}

func (w *WebhookNotifier) templateFuncs() template.FuncMap {
	return template.FuncMap{
		"discordColor": discordColor,
		"json": func(v interface{}) (string, error) {
			buf := w.bufferPool.Get().(*bytes.Buffer)
			buf.Reset()
			defer w.bufferPool.Put(buf)

			enc := json.NewEncoder(buf)
			if err := enc.Encode(v); err != nil {
				return "", fmt.Errorf("JSON marshaling failed: %w", err)
			}

			return strings.TrimSpace(buf.String()), nil
		},
	}
}

// Notify implements Notifier.
func (w *WebhookNotifier) Notify(ctx context.Context, event *Event) error {
	return w.Send(ctx, w.alertFor(event))
}

// Send posts a single alert, honouring the per-title cooldown.
func (w *WebhookNotifier) Send(ctx context.Context, alert *WebhookAlert) error {
	if !w.IsEnabled() {
		return ErrWebhookDisabled
	}

	if err := w.checkCooldown(alert.Title); err != nil {
		return err
	}

	if alert.Timestamp == "" {
		alert.Timestamp = w.now().UTC().Format(time.RFC3339)
	}

	payload, err := w.preparePayload(alert)
	if err != nil {
		return fmt.Errorf("failed to prepare payload: %w", err)
	}

	return w.sendRequest(ctx, payload)
}

func (*WebhookNotifier) alertFor(event *Event) *WebhookAlert {
	alert := &WebhookAlert{
		Level:     event.Rule.Severity,
		Message:   event.Alert.Message,
		Timestamp: event.Alert.TriggeredAt.Format(time.RFC3339),
		DeviceID:  event.Alert.DeviceID,
		IP:        event.IP,
		Details: map[string]any{
			"rule":      event.Rule.Name,
			"condition": string(event.Rule.Condition),
			"alert_id":  event.Alert.ID,
		},
	}

	switch event.Kind {
	case EventResolved:
		alert.Title = fmt.Sprintf("Resolved: %s on %s", event.Rule.Name, event.IP)
		alert.Level = models.SeverityInfo

		if event.Alert.ResolvedAt != nil {
			alert.Timestamp = event.Alert.ResolvedAt.Format(time.RFC3339)
		}
	default:
		alert.Title = fmt.Sprintf("%s on %s", event.Rule.Name, event.IP)
	}

	return alert
}

func (w *WebhookNotifier) checkCooldown(title string) error {
	if w.config.Cooldown <= 0 {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()

	last, exists := w.lastAlertTimes[title]
	if exists && now.Sub(last) < w.config.Cooldown.Std() {
		w.logger.Debug("alert within cooldown period", zap.String("title", title))

		return ErrCooldown
	}

	w.lastAlertTimes[title] = now

	return nil
}

func (w *WebhookNotifier) preparePayload(alert *WebhookAlert) ([]byte, error) {
	buf := w.bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer w.bufferPool.Put(buf)

	if w.tmpl == nil {
		if err := json.NewEncoder(buf).Encode(alert); err != nil {
			return nil, fmt.Errorf("failed to marshal alert: %w", err)
		}

		return append([]byte(nil), buf.Bytes()...), nil
	}

	if err := w.tmpl.Execute(buf, map[string]interface{}{
		"alert": alert,
	}); err != nil {
		return nil, fmt.Errorf("%w: %w", errTemplateExecution, err)
	}

	if !json.Valid(buf.Bytes()) {
		return nil, errInvalidJSON
	}

	return append([]byte(nil), buf.Bytes()...), nil
}

func (w *WebhookNotifier) sendRequest(ctx context.Context, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.config.URL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	w.setHeaders(req)

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}

	defer func(body io.ReadCloser) {
		if err := body.Close(); err != nil {
			w.logger.Warn("failed to close response body", zap.Error(err))
		}
	}(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

		return fmt.Errorf("%w: status=%d body=%s", errWebhookStatus, resp.StatusCode, body)
	}

	return nil
}

func (w *WebhookNotifier) setHeaders(req *http.Request) {
	hasContentType := false

	for _, header := range w.config.Headers {
		if strings.EqualFold(header.Key, "content-type") {
			hasContentType = true
		}

		req.Header.Set(header.Key, header.Value)
	}

	if !hasContentType {
		req.Header.Set("Content-Type", "application/json")
	}
}
