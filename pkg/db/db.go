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

// Package db pkg/db/db.go provides the SQLite and PostgreSQL store for wardflux
package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"           // PostgreSQL driver
	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"go.uber.org/zap"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"

	defaultTxTimeout = 5 * time.Second
	defaultTxRetries = 3
	beginBackoff     = 50 * time.Millisecond

	sqliteParams = "_busy_timeout=5000&_txlock=immediate&_foreign_keys=on"

	// Schema template. {{pk}} and {{ts}} are replaced per dialect.
	createTablesSQL = `
	CREATE TABLE IF NOT EXISTS devices (
		id {{pk}},
		ip TEXT NOT NULL,
		name TEXT NOT NULL,
		enabled BOOLEAN NOT NULL DEFAULT TRUE,
		device_type TEXT NOT NULL DEFAULT '',
		branch_id BIGINT,
		profile_id TEXT NOT NULL DEFAULT 'default',
		snmp_port INTEGER NOT NULL DEFAULT 161,
		created_at {{ts}} NOT NULL,
		updated_at {{ts}} NOT NULL
	);

	CREATE TABLE IF NOT EXISTS snmp_credentials (
		device_id BIGINT PRIMARY KEY REFERENCES devices(id) ON DELETE CASCADE,
		version TEXT NOT NULL DEFAULT 'v2c',
		community_enc TEXT NOT NULL DEFAULT '',
		username TEXT NOT NULL DEFAULT '',
		auth_protocol TEXT NOT NULL DEFAULT '',
		auth_key_enc TEXT NOT NULL DEFAULT '',
		priv_protocol TEXT NOT NULL DEFAULT '',
		priv_key_enc TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS device_states (
		device_id BIGINT PRIMARY KEY REFERENCES devices(id) ON DELETE CASCADE,
		status TEXT NOT NULL DEFAULT 'UNKNOWN',
		down_since {{ts}},
		last_evaluated {{ts}},
		last_latency_ms DOUBLE PRECISION NOT NULL DEFAULT 0,
		last_downtime_seconds DOUBLE PRECISION NOT NULL DEFAULT 0,
		version BIGINT NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS alert_rules (
		id {{pk}},
		name TEXT NOT NULL UNIQUE,
		severity TEXT NOT NULL,
		condition TEXT NOT NULL,
		threshold DOUBLE PRECISION NOT NULL DEFAULT 0,
		active BOOLEAN NOT NULL DEFAULT TRUE
	);

	-- rule_id stays nullable for rows written before it was mandatory
	CREATE TABLE IF NOT EXISTS alert_history (
		id {{pk}},
		device_id BIGINT NOT NULL REFERENCES devices(id) ON DELETE CASCADE,
		rule_id BIGINT REFERENCES alert_rules(id),
		rule_name TEXT NOT NULL,
		severity TEXT NOT NULL,
		message TEXT NOT NULL DEFAULT '',
		triggered_at {{ts}} NOT NULL,
		resolved_at {{ts}}
	);

	CREATE TABLE IF NOT EXISTS interface_metrics (
		device_id BIGINT NOT NULL REFERENCES devices(id) ON DELETE CASCADE,
		if_index INTEGER NOT NULL,
		if_name TEXT NOT NULL DEFAULT '',
		if_alias TEXT NOT NULL DEFAULT '',
		oper_status INTEGER NOT NULL DEFAULT 0,
		isp_provider TEXT NOT NULL DEFAULT '',
		in_octets BIGINT NOT NULL DEFAULT 0,
		out_octets BIGINT NOT NULL DEFAULT 0,
		last_polled {{ts}} NOT NULL,
		PRIMARY KEY (device_id, if_index)
	);

	CREATE TABLE IF NOT EXISTS timeseries_samples (
		id {{pk}},
		name TEXT NOT NULL,
		series_key TEXT NOT NULL,
		labels TEXT NOT NULL,
		value DOUBLE PRECISION NOT NULL,
		ts {{ts}} NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_devices_enabled_profile
		ON devices(enabled, profile_id);
	CREATE INDEX IF NOT EXISTS idx_devices_ip
		ON devices(ip);
	CREATE INDEX IF NOT EXISTS idx_alert_history_open_rule
		ON alert_history(device_id, rule_id, resolved_at);
	CREATE INDEX IF NOT EXISTS idx_alert_history_open_name
		ON alert_history(device_id, rule_name, resolved_at);
	CREATE INDEX IF NOT EXISTS idx_timeseries_samples_series_ts
		ON timeseries_samples(series_key, ts);
	CREATE INDEX IF NOT EXISTS idx_timeseries_samples_name_ts
		ON timeseries_samples(name, ts);
	`
)

// Options configures a DB.
type Options struct {
	Driver       string
	DSN          string
	MaxOpenConns int
	TxTimeout    time.Duration
	TxRetries    int
	Logger       *zap.Logger
}

// DB represents the database connection and operations.
type DB struct {
	*sqlx.DB
	txTimeout time.Duration
	txRetries int
	logger    *zap.Logger
}

var _ Service = (*DB)(nil)

// New opens the configured database and initializes the schema.
func New(ctx context.Context, opts Options) (*DB, error) {
	dsn, err := dataSourceName(opts.Driver, opts.DSN)
	if err != nil {
		return nil, err
	}

	conn, err := sqlx.Open(opts.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFailedOpenDB, err)
	}

	if opts.MaxOpenConns > 0 {
		conn.SetMaxOpenConns(opts.MaxOpenConns)
	}

	db := NewWithDB(conn, opts)

	pingCtx, cancel := context.WithTimeout(ctx, db.txTimeout)
	defer cancel()

	if err := conn.PingContext(pingCtx); err != nil {
		_ = conn.Close()

		return nil, fmt.Errorf("%w: %w", ErrFailedOpenDB, err)
	}

	if opts.Driver == DriverSQLite {
		if _, err := conn.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			_ = conn.Close()

			return nil, fmt.Errorf("%w: %w", ErrFailedToInit, err)
		}
	}

	if err := db.initSchema(ctx); err != nil {
		_ = conn.Close()

		return nil, fmt.Errorf("%w: %w", ErrFailedToInit, err)
	}

	db.logger.Info("database ready", zap.String("driver", opts.Driver))

	return db, nil
}

// NewWithDB wraps an already opened connection without touching the schema.
func NewWithDB(conn *sqlx.DB, opts Options) *DB {
	db := &DB{
		DB:        conn,
		txTimeout: opts.TxTimeout,
		txRetries: opts.TxRetries,
		logger:    opts.Logger,
	}

	if db.txTimeout <= 0 {
		db.txTimeout = defaultTxTimeout
	}

	if db.txRetries <= 0 {
		db.txRetries = defaultTxRetries
	}

	if db.logger == nil {
		db.logger = zap.NewNop()
	}

	return db
}

func dataSourceName(driver, dsn string) (string, error) {
	switch driver {
	case DriverPostgres:
		return dsn, nil
	case DriverSQLite:
		if strings.Contains(dsn, "?") {
			return dsn + "&" + sqliteParams, nil
		}

		return "file:" + dsn + "?" + sqliteParams, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedDrv, driver)
	}
}

func schemaFor(driver string) string {
	pk, ts := "INTEGER PRIMARY KEY AUTOINCREMENT", "TEXT"
	if driver == DriverPostgres {
		pk, ts = "BIGSERIAL PRIMARY KEY", "TIMESTAMPTZ"
	}

	return strings.NewReplacer("{{pk}}", pk, "{{ts}}", ts).Replace(createTablesSQL)
}

// initSchema creates the database tables if they don't exist.
func (db *DB) initSchema(ctx context.Context) error {
	_, err := db.ExecContext(ctx, schemaFor(db.DriverName()))

	return err
}

// Driver returns the database driver name.
func (db *DB) Driver() string {
	return db.DriverName()
}

// Ping checks that the database answers within the transaction timeout.
func (db *DB) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, db.txTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrDBUnavailable, err)
	}

	return nil
}

// WithTx runs fn inside a transaction bounded by the configured timeout. The
// transaction is committed when fn returns nil and rolled back on every other
// path, including panics. Failing to obtain a connection after the configured
// retries yields ErrDBUnavailable.
func (db *DB) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	return db.withTx(ctx, func(t *tx) error { return fn(t) })
}

func (db *DB) withTx(ctx context.Context, fn func(t *tx) error) (err error) {
	ctx, cancel := context.WithTimeout(ctx, db.txTimeout)
	defer cancel()

	sqlTx, err := db.begin(ctx)
	if err != nil {
		return err
	}

	committed := false

	defer func() {
		if committed {
			return
		}

		if rbErr := sqlTx.Rollback(); rbErr != nil && !errors.Is(rbErr, context.Canceled) &&
			!errors.Is(rbErr, context.DeadlineExceeded) {
			db.logger.Warn("rollback failed", zap.Error(rbErr))
		}

		if r := recover(); r != nil {
			panic(r)
		}
	}()

	if err = fn(&tx{Tx: sqlTx, driver: db.DriverName()}); err != nil {
		return err
	}

	if err = sqlTx.Commit(); err != nil {
		return fmt.Errorf("%w: %w", ErrFailedToCommit, err)
	}

	committed = true

	return nil
}

func (db *DB) begin(ctx context.Context) (*sqlx.Tx, error) {
	var lastErr error

	for attempt := 0; attempt <= db.txRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %w", ErrDBUnavailable, ctx.Err())
			case <-time.After(beginBackoff << (attempt - 1)):
			}
		}

		sqlTx, err := db.BeginTxx(ctx, nil)
		if err == nil {
			return sqlTx, nil
		}

		lastErr = err

		db.logger.Warn("begin transaction failed",
			zap.Int("attempt", attempt+1),
			zap.Error(err))

		if ctx.Err() != nil {
			break
		}
	}

	return nil, fmt.Errorf("%w: %w: %w", ErrDBUnavailable, ErrFailedToBeginTx, lastErr)
}

// tx implements Tx on top of sqlx.
type tx struct {
	*sqlx.Tx
	driver string
}

func (t *tx) forUpdate() string {
	if t.driver == DriverPostgres {
		return " FOR UPDATE"
	}

	// SQLite transactions begin IMMEDIATE and already hold the writer lock.
	return ""
}
