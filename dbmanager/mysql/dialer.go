// Copyright 2026 Shala
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package mysql implements the base.Dialer contract over database/sql and the
// go-sql-driver/mysql driver. One Dialer serves both the control-plane
// database and every tenant database; the tenant database name is derived
// deterministically from the tenant code.
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql" // MySQL driver

	"shala/platform/dbmanager/base"
)

const (
	// DefaultSystemPingTimeout bounds authentication of the control-plane pool.
	DefaultSystemPingTimeout = 15 * time.Second
	// DefaultTenantPingTimeout bounds authentication of a tenant pool.
	DefaultTenantPingTimeout = 10 * time.Second
)

// Config holds everything needed to reach the MySQL server and derive
// database names. Credentials are resolved by the config package before this
// struct is built.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string

	// SystemDatabase is the control-plane database name.
	SystemDatabase string
	// TenantPrefix is prepended to a tenant code to form its database name.
	TenantPrefix string

	Charset   string
	Collation string

	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration

	SystemPingTimeout time.Duration
	// TenantPingTimeout, when set, overrides Pool.AcquireTimeout as the
	// bound on tenant pool authentication.
	TenantPingTimeout time.Duration

	Pool base.PoolConfig
}

// Dialer opens MySQL connection pools.
type Dialer struct {
	cfg    Config
	logger *log.Logger
}

// NewDialer creates a Dialer, filling unset timeouts and pool sizing with
// defaults.
func NewDialer(cfg Config) (*Dialer, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("mysql: host is required")
	}
	if cfg.SystemDatabase == "" {
		return nil, fmt.Errorf("mysql: system database name is required")
	}
	if cfg.Port == 0 {
		cfg.Port = 3306
	}
	if cfg.Charset == "" {
		cfg.Charset = "utf8mb4"
	}
	if cfg.Collation == "" {
		cfg.Collation = "utf8mb4_unicode_ci"
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 30 * time.Second
	}
	if cfg.Pool == (base.PoolConfig{}) {
		cfg.Pool = base.DefaultPoolConfig()
	}
	if cfg.SystemPingTimeout == 0 {
		cfg.SystemPingTimeout = DefaultSystemPingTimeout
	}
	// The pool's acquire timeout bounds tenant authentication unless an
	// explicit override is set.
	if cfg.TenantPingTimeout == 0 {
		if cfg.Pool.AcquireTimeout > 0 {
			cfg.TenantPingTimeout = cfg.Pool.AcquireTimeout
		} else {
			cfg.TenantPingTimeout = DefaultTenantPingTimeout
		}
	}
	return &Dialer{
		cfg:    cfg,
		logger: log.New(os.Stdout, "[MYSQL] ", log.LstdFlags),
	}, nil
}

// TenantDatabaseName derives the database name for a tenant code.
func (d *Dialer) TenantDatabaseName(code base.TenantCode) string {
	return d.cfg.TenantPrefix + code.String()
}

// DialSystem opens the control-plane pool.
func (d *Dialer) DialSystem(ctx context.Context) (base.Conn, error) {
	return d.dial(ctx, d.cfg.SystemDatabase, d.cfg.SystemPingTimeout)
}

// DialTenant opens a pool pointed at the tenant-derived database.
func (d *Dialer) DialTenant(ctx context.Context, code base.TenantCode) (base.Conn, error) {
	return d.dial(ctx, d.TenantDatabaseName(code), d.cfg.TenantPingTimeout)
}

func (d *Dialer) dial(ctx context.Context, database string, pingTimeout time.Duration) (base.Conn, error) {
	dsn := d.buildDSN(database)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", database, err)
	}

	db.SetMaxOpenConns(d.cfg.Pool.MaxOpenConns)
	db.SetMaxIdleConns(d.cfg.Pool.MaxIdleConns)
	db.SetConnMaxLifetime(d.cfg.Pool.ConnMaxLifetime)
	db.SetConnMaxIdleTime(d.cfg.Pool.ConnMaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", database, err)
	}

	d.logger.Printf("Connected to %s (max_open=%d, max_idle=%d)",
		database, d.cfg.Pool.MaxOpenConns, d.cfg.Pool.MaxIdleConns)

	return &conn{db: db, database: database}, nil
}

// buildDSN constructs the Data Source Name for one database.
func (d *Dialer) buildDSN(database string) string {
	params := []string{
		"parseTime=true",
		"loc=UTC",
		fmt.Sprintf("charset=%s", d.cfg.Charset),
		fmt.Sprintf("collation=%s", d.cfg.Collation),
		fmt.Sprintf("timeout=%s", d.cfg.ConnectTimeout),
		fmt.Sprintf("readTimeout=%s", d.cfg.ReadTimeout),
		fmt.Sprintf("writeTimeout=%s", d.cfg.WriteTimeout),
		"multiStatements=false",
		"interpolateParams=false",
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?%s",
		d.cfg.Username, d.cfg.Password, d.cfg.Host, d.cfg.Port, database,
		strings.Join(params, "&"))
}
