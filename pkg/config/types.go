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

package config

import (
	"encoding/json"
	"fmt"
	"time"
)

type Duration time.Duration

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}

	switch value := v.(type) {
	case float64:
		// parse numeric as nanoseconds
		*d = Duration(time.Duration(value))
		return nil
	case string:
		dur, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration: %w", err)
		}

		*d = Duration(dur)

		return nil
	default:
		return errInvalidDuration
	}
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

const (
	DefaultPingInterval      = 30 * time.Second
	DefaultSNMPInterval      = 60 * time.Second
	DefaultReconcileInterval = 5 * time.Minute
	DefaultBatchSize         = 100
	DefaultHighWater         = 1000
	DefaultPingWorkers       = 20
	DefaultSNMPWorkers       = 5
	DefaultMaintWorkers      = 1
	DefaultGracePeriod       = 10 * time.Second
	DefaultPingTimeout       = 2 * time.Second
	DefaultPingRetries       = 2
	DefaultPingRate          = 200
	DefaultSNMPTimeout       = 5 * time.Second
	DefaultSNMPRetries       = 3
	DefaultDeviceTimeout     = 15 * time.Second
	DefaultDeviceParallelism = 16
	DefaultTxTimeout         = 5 * time.Second
	DefaultTxRetries         = 3
	DefaultMaxDBFailures     = 10
	DefaultListenAddr        = ":9108"
	DefaultSQLitePath        = "wardflux.db"
	DefaultRetention         = 120
	DefaultRetentionPeriod   = 7 * 24 * time.Hour

	minPingInterval = 10 * time.Second
	maxPingInterval = 30 * time.Second
)

// Config is the root configuration shared by every wardflux binary.
type Config struct {
	Profile    string          `json:"profile"`
	ListenAddr string          `json:"listen_addr"`
	SecretKey  string          `json:"-"`
	Logging    LoggingConfig   `json:"logging"`
	Database   DatabaseConfig  `json:"database"`
	Queue      QueueConfig     `json:"queue"`
	Scheduler  SchedulerConfig `json:"scheduler"`
	Workers    WorkersConfig   `json:"workers"`
	Ping       PingConfig      `json:"ping"`
	SNMP       SNMPConfig      `json:"snmp"`
	Metrics    MetricsConfig   `json:"metrics"`
	Alerts     AlertsConfig    `json:"alerts"`
}

// LoggingConfig controls the zap logger.
type LoggingConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"` // json or console
	Output string `json:"output"` // stdout, stderr, or file path
}

// DatabaseConfig selects the store driver.
type DatabaseConfig struct {
	Driver       string   `json:"driver"` // sqlite3 or postgres
	DSN          string   `json:"dsn"`
	MaxOpenConns int      `json:"max_open_conns"`
	TxTimeout    Duration `json:"tx_timeout"`
	TxRetries    int      `json:"tx_retries"`
}

// RedisConfig holds the Redis queue connection.
type RedisConfig struct {
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

// QueueConfig selects the queue backend.
type QueueConfig struct {
	Backend   string      `json:"backend"` // memory or redis
	HighWater int         `json:"high_water"`
	Redis     RedisConfig `json:"redis"`
}

// SchedulerConfig holds beat intervals.
type SchedulerConfig struct {
	PingInterval      Duration `json:"ping_interval"`
	SNMPInterval      Duration `json:"snmp_interval"`
	ReconcileInterval Duration `json:"reconcile_interval"`
	BatchSize         int      `json:"batch_size"`
}

// WorkersConfig sizes the per-queue pools.
type WorkersConfig struct {
	Ping              int      `json:"ping"`
	SNMP              int      `json:"snmp"`
	Maintenance       int      `json:"maintenance"`
	GracePeriod       Duration `json:"grace_period"`
	DeviceTimeout     Duration `json:"device_timeout"`
	DeviceParallelism int      `json:"device_parallelism"`
	MaxDBFailures     int      `json:"max_db_failures"`
}

// PingConfig controls the ICMP pinger.
type PingConfig struct {
	Timeout    Duration `json:"timeout"`
	Retries    int      `json:"retries"`
	RatePerSec int      `json:"rate_per_sec"`
	Privileged bool     `json:"privileged"`
}

// SNMPConfig controls the interface collector.
type SNMPConfig struct {
	Timeout Duration `json:"timeout"`
	Retries int      `json:"retries"`
}

// MetricsConfig selects the sample sink.
type MetricsConfig struct {
	Sink      string `json:"sink"` // memory or sql
	Retention int    `json:"retention"`

	// RetentionPeriod bounds stored samples and resolved alerts.
	RetentionPeriod Duration `json:"retention_period"`
}

// WebhookConfig represents a webhook notification configuration.
type WebhookConfig struct {
	Enabled bool   `json:"enabled"`
	URL     string `json:"url"`
	// Kind "discord" posts Discord embeds and ignores Template.
	Kind     string   `json:"kind,omitempty"`
	Cooldown Duration `json:"cooldown"`
	Template string   `json:"template"`
	Headers  []Header `json:"headers,omitempty"` // Optional custom headers
}

// Header represents a custom HTTP header.
type Header struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// AlertsConfig lists notification targets.
type AlertsConfig struct {
	Webhooks []WebhookConfig `json:"webhooks,omitempty"`
}

// Validate applies defaults and rejects invalid values.
func (c *Config) Validate() error {
	c.applyDefaults()

	switch c.Database.Driver {
	case "sqlite3", "postgres":
	default:
		return fmt.Errorf("%w: unknown database driver %q", errInvalidConfig, c.Database.Driver)
	}

	switch c.Queue.Backend {
	case "memory":
	case "redis":
		if c.Queue.Redis.Addr == "" {
			return fmt.Errorf("%w: redis queue requires an address", errInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown queue backend %q", errInvalidConfig, c.Queue.Backend)
	}

	switch c.Metrics.Sink {
	case "memory", "sql":
	default:
		return fmt.Errorf("%w: unknown metrics sink %q", errInvalidConfig, c.Metrics.Sink)
	}

	if pi := c.Scheduler.PingInterval.Std(); pi < minPingInterval || pi > maxPingInterval {
		return fmt.Errorf("%w: ping interval %s outside %s-%s", errInvalidConfig, pi, minPingInterval, maxPingInterval)
	}

	if c.Scheduler.BatchSize < 1 {
		return fmt.Errorf("%w: batch size must be positive", errInvalidConfig)
	}

	if c.Queue.HighWater < 1 {
		return fmt.Errorf("%w: high water must be positive", errInvalidConfig)
	}

	if c.Workers.Ping < 1 || c.Workers.SNMP < 1 || c.Workers.Maintenance < 1 {
		return fmt.Errorf("%w: worker pools must have at least one worker", errInvalidConfig)
	}

	if c.Ping.Retries < 0 || c.SNMP.Retries < 0 {
		return fmt.Errorf("%w: retries cannot be negative", errInvalidConfig)
	}

	for i, wh := range c.Alerts.Webhooks {
		if wh.Enabled && wh.URL == "" {
			return fmt.Errorf("%w: webhook %d has no url", errInvalidConfig, i)
		}
	}

	return nil
}

func (c *Config) applyDefaults() {
	if c.Profile == "" {
		c.Profile = "default"
	}

	if c.ListenAddr == "" {
		c.ListenAddr = DefaultListenAddr
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}

	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}

	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite3"
	}

	if c.Database.DSN == "" && c.Database.Driver == "sqlite3" {
		c.Database.DSN = DefaultSQLitePath
	}

	setDuration(&c.Database.TxTimeout, DefaultTxTimeout)
	setInt(&c.Database.TxRetries, DefaultTxRetries)

	if c.Queue.Backend == "" {
		c.Queue.Backend = "memory"
	}

	setInt(&c.Queue.HighWater, DefaultHighWater)

	setDuration(&c.Scheduler.PingInterval, DefaultPingInterval)
	setDuration(&c.Scheduler.SNMPInterval, DefaultSNMPInterval)
	setDuration(&c.Scheduler.ReconcileInterval, DefaultReconcileInterval)
	setInt(&c.Scheduler.BatchSize, DefaultBatchSize)

	setInt(&c.Workers.Ping, DefaultPingWorkers)
	setInt(&c.Workers.SNMP, DefaultSNMPWorkers)
	setInt(&c.Workers.Maintenance, DefaultMaintWorkers)
	setDuration(&c.Workers.GracePeriod, DefaultGracePeriod)
	setDuration(&c.Workers.DeviceTimeout, DefaultDeviceTimeout)
	setInt(&c.Workers.DeviceParallelism, DefaultDeviceParallelism)
	setInt(&c.Workers.MaxDBFailures, DefaultMaxDBFailures)

	setDuration(&c.Ping.Timeout, DefaultPingTimeout)
	setInt(&c.Ping.Retries, DefaultPingRetries)
	setInt(&c.Ping.RatePerSec, DefaultPingRate)

	setDuration(&c.SNMP.Timeout, DefaultSNMPTimeout)
	setInt(&c.SNMP.Retries, DefaultSNMPRetries)

	if c.Metrics.Sink == "" {
		c.Metrics.Sink = "memory"
	}

	setInt(&c.Metrics.Retention, DefaultRetention)
	setDuration(&c.Metrics.RetentionPeriod, DefaultRetentionPeriod)
}

func setDuration(d *Duration, def time.Duration) {
	if *d == 0 {
		*d = Duration(def)
	}
}

func setInt(v *int, def int) {
	if *v == 0 {
		*v = def
	}
}
