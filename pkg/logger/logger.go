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

// Package logger builds the zap loggers used by every wardflux component.
package logger

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds logger configuration.
type Config struct {
	Level   string `json:"level"`
	Format  string `json:"format"` // json or console
	Output  string `json:"output"` // stdout, stderr, or file path
	Service string `json:"service"`
}

// Field names shared by every component so that one device can be followed
// through each stage of the pipeline.
const (
	FieldDeviceID  = "device_id"
	FieldIP        = "ip"
	FieldSweepID   = "sweep_id"
	FieldJobID     = "job_id"
	FieldStage     = "stage"
	FieldQueue     = "queue"
	FieldTask      = "task"
	FieldComponent = "component"
)

// Pipeline stages.
const (
	StageRetrieved = "retrieved"
	StageScheduled = "scheduled"
	StageExecuted  = "executed"
	StageRecorded  = "recorded"
)

// New creates a structured logger from configuration.
func New(cfg Config) (*zap.Logger, error) {
	level := zap.InfoLevel
	if cfg.Level != "" {
		if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.MessageKey = "message"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeLevel = zapcore.LowercaseLevelEncoder
	encoderConfig.EncodeDuration = zapcore.StringDurationEncoder
	encoderConfig.EncodeCaller = zapcore.ShortCallerEncoder

	var encoder zapcore.Encoder
	if cfg.Format == "console" {
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	} else {
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	}

	var ws zapcore.WriteSyncer

	switch cfg.Output {
	case "stdout", "":
		ws = zapcore.AddSync(os.Stdout)
	case "stderr":
		ws = zapcore.AddSync(os.Stderr)
	default:
		if err := os.MkdirAll(filepath.Dir(cfg.Output), 0o755); err != nil {
			return nil, err
		}

		f, err := os.OpenFile(cfg.Output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, err
		}

		ws = zapcore.AddSync(f)
	}

	service := cfg.Service
	if service == "" {
		service = "wardflux"
	}

	logger := zap.New(zapcore.NewCore(encoder, ws, level),
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.DPanicLevel),
	)

	return logger.With(zap.String("service", service)), nil
}

// Component returns a child logger tagged with the component name.
func Component(base *zap.Logger, name string) *zap.Logger {
	if base == nil {
		base = zap.NewNop()
	}

	return base.With(zap.String(FieldComponent, name))
}

// Device returns the standard fields identifying a device.
func Device(id int64, ip string) []zap.Field {
	return []zap.Field{zap.Int64(FieldDeviceID, id), zap.String(FieldIP, ip)}
}
