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

// Package config pkg/config/config.go
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

var (
	errInvalidDuration = errors.New("invalid duration")
	errInvalidConfig   = errors.New("invalid configuration")
)

// EnvPrefix is prepended to every environment override.
const EnvPrefix = "WARDFLUX_"

// Validator interface for configurations that need validation.
type Validator interface {
	Validate() error
}

// LoadFile is a generic helper that loads a JSON file from path into
// the struct pointed to by dst.
func LoadFile(path string, dst interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read file '%s': %w", path, err)
	}

	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("failed to unmarshal JSON from '%s': %w", path, err)
	}

	return nil
}

// ValidateConfig validates a configuration if it implements Validator.
func ValidateConfig(cfg interface{}) error {
	if v, ok := cfg.(Validator); ok {
		return v.Validate()
	}

	return nil
}

// LoadAndValidate loads a configuration file and validates it if possible.
func LoadAndValidate(path string, cfg interface{}) error {
	if err := LoadFile(path, cfg); err != nil {
		return err
	}

	return ValidateConfig(cfg)
}

// Load reads the JSON file at path (optional), applies .env and WARDFLUX_*
// environment overrides, then validates the result.
func Load(path string) (*Config, error) {
	// a missing .env file is normal outside development
	_ = godotenv.Load()

	cfg := &Config{}

	if path != "" {
		if err := LoadFile(path, cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LookupFunc resolves an environment variable.
type LookupFunc func(key string) (string, bool)

// ApplyEnv overrides secrets, DSNs and a few operational knobs from the
// environment. Unset variables leave the file values untouched.
func (c *Config) ApplyEnv(lookup LookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(EnvPrefix + key); ok && v != "" {
			*dst = v
		}
	}

	str("DB_DRIVER", &c.Database.Driver)
	str("DB_DSN", &c.Database.DSN)
	str("SECRET_KEY", &c.SecretKey)
	str("REDIS_ADDR", &c.Queue.Redis.Addr)
	str("REDIS_PASSWORD", &c.Queue.Redis.Password)
	str("QUEUE_BACKEND", &c.Queue.Backend)
	str("PROFILE", &c.Profile)
	str("LOG_LEVEL", &c.Logging.Level)
	str("LOG_FORMAT", &c.Logging.Format)
	str("LISTEN_ADDR", &c.ListenAddr)

	if v, ok := lookup(EnvPrefix + "PING_INTERVAL"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%w: %sPING_INTERVAL: %w", errInvalidConfig, EnvPrefix, err)
		}

		c.Scheduler.PingInterval = Duration(d)
	}

	if v, ok := lookup(EnvPrefix + "BATCH_SIZE"); ok && v != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%w: %sBATCH_SIZE: %w", errInvalidConfig, EnvPrefix, err)
		}

		c.Scheduler.BatchSize = n
	}

	return nil
}
