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

package base

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// tenantCodeRegex constrains codes to the shape used for school onboarding:
// lowercase alphanumerics and hyphens, 2-32 chars, must start with a letter.
var tenantCodeRegex = regexp.MustCompile(`^[a-z][a-z0-9-]{1,31}$`)

// TenantCode identifies one onboarded school. Codes are validated once at the
// boundary via ParseTenantCode; a zero TenantCode is never valid.
type TenantCode string

// ParseTenantCode validates and normalizes a raw tenant code.
func ParseTenantCode(raw string) (TenantCode, error) {
	code := strings.ToLower(strings.TrimSpace(raw))
	if !tenantCodeRegex.MatchString(code) {
		return "", fmt.Errorf("invalid tenant code %q", raw)
	}
	return TenantCode(code), nil
}

func (c TenantCode) String() string { return string(c) }

// Conn is the minimal surface the registry needs from a live database handle.
// Implementations wrap a *sql.DB pool; Close tears down the whole pool.
type Conn interface {
	// Ping performs a liveness round-trip.
	Ping(ctx context.Context) error

	// Exec runs a statement that returns no rows.
	Exec(ctx context.Context, statement string, args ...interface{}) error

	// QueryRow runs a query expected to return at most one row, scanning it
	// into dest. The bool reports whether a row was found.
	QueryRow(ctx context.Context, query string, args []interface{}, dest ...interface{}) (bool, error)

	// Stats reports current pool utilization.
	Stats() PoolStats

	// Close tears down the underlying pool.
	Close() error
}

// Dialer opens database handles. The registry owns every Conn a Dialer
// returns; callers of the registry only ever borrow them.
type Dialer interface {
	// DialSystem opens a handle to the control-plane database.
	DialSystem(ctx context.Context) (Conn, error)

	// DialTenant opens a handle to the database derived from the tenant code.
	DialTenant(ctx context.Context, code TenantCode) (Conn, error)

	// TenantDatabaseName reports the database name derived from a code,
	// used by provisioning statements and catalog probes.
	TenantDatabaseName(code TenantCode) string
}

// PoolConfig holds connection pool sizing and lifetime settings. It is read
// once at startup and shared read-only by every connection.
type PoolConfig struct {
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`

	// AcquireTimeout bounds authentication of a freshly dialed tenant pool.
	AcquireTimeout time.Duration `yaml:"acquire_timeout"`
}

// DefaultPoolConfig returns the pool sizing used when the config file leaves
// the section empty.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxOpenConns:    10,
		MaxIdleConns:    2,
		ConnMaxLifetime: 30 * time.Minute,
		ConnMaxIdleTime: 10 * time.Minute,
		AcquireTimeout:  10 * time.Second,
	}
}

// PoolStats is a point-in-time snapshot of one connection pool.
type PoolStats struct {
	OpenConnections int   `json:"open_connections"`
	InUse           int   `json:"in_use"`
	Idle            int   `json:"idle"`
	WaitCount       int64 `json:"wait_count"`
}

// HealthSnapshot summarizes registry health at a point in time. Produced on
// demand by Manager.HealthCheck, never persisted.
type HealthSnapshot struct {
	SystemUp      bool                     `json:"system_up"`
	TenantCount   int                      `json:"tenant_count"`
	ActiveTenants []TenantCode             `json:"active_tenants"`
	Pools         map[TenantCode]PoolStats `json:"pools"`
	Timestamp     time.Time                `json:"timestamp"`
}
