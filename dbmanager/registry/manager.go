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

package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"shala/platform/dbmanager/base"
	"shala/platform/dbmanager/metrics"
	"shala/platform/dbmanager/retry"
	"shala/platform/shared/logger"
)

const (
	// DefaultIdleThreshold is how long a tenant connection may sit unused
	// before the sweeper closes it.
	DefaultIdleThreshold = 30 * time.Minute
	// DefaultSweepInterval is how often the idle sweeper runs.
	DefaultSweepInterval = 5 * time.Minute
	// DefaultProbeTimeout bounds a single liveness probe.
	DefaultProbeTimeout = 5 * time.Second
)

// Config tunes the registry's eviction and probing behavior.
type Config struct {
	IdleThreshold time.Duration `yaml:"idle_threshold"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
	ProbeTimeout  time.Duration `yaml:"probe_timeout"`

	// Charset and Collation are applied to databases created through
	// CreateTenantDatabase.
	Charset   string `yaml:"charset"`
	Collation string `yaml:"collation"`
}

func (c Config) withDefaults() Config {
	if c.IdleThreshold == 0 {
		c.IdleThreshold = DefaultIdleThreshold
	}
	if c.SweepInterval == 0 {
		c.SweepInterval = DefaultSweepInterval
	}
	if c.ProbeTimeout == 0 {
		c.ProbeTimeout = DefaultProbeTimeout
	}
	if c.Charset == "" {
		c.Charset = "utf8mb4"
	}
	if c.Collation == "" {
		c.Collation = "utf8mb4_unicode_ci"
	}
	return c
}

// tenantEntry is one cached tenant connection with the timestamps the idle
// sweeper keys off.
type tenantEntry struct {
	conn       base.Conn
	createdAt  time.Time
	lastUsedAt time.Time
}

// Manager is the central authority for obtaining, caching, health-checking,
// and retiring the system connection and per-tenant connections. One Manager
// exists per process, constructed by the entry point and injected into
// request handlers.
//
// The mutex serializes map mutation, so eviction and creation for the same
// tenant never interleave. Connections are handed out without holding the
// lock; a sweep can therefore evict an entry between a caller's successful
// probe and its first use of the borrowed Conn. That caller's query fails and
// the next GetTenant redials. Reconnection is cheap and idempotent, so this
// race is tolerated rather than guarded per key.
type Manager struct {
	cfg     Config
	dialer  base.Dialer
	log     *logger.Logger
	metrics *metrics.Registry

	// Retry policies, overridable in tests.
	systemRetry *retry.Policy
	tenantRetry *retry.Policy
	probeRetry  *retry.Policy

	mu      sync.RWMutex
	system  base.Conn
	tenants map[base.TenantCode]*tenantEntry

	sweepMu   sync.Mutex
	sweepStop chan struct{}
	armSweep  sync.Once

	now func() time.Time
}

// NewManager builds a Manager. The metrics registry may be nil.
func NewManager(dialer base.Dialer, cfg Config, log *logger.Logger, m *metrics.Registry) *Manager {
	if log == nil {
		log = logger.New("dbmanager")
	}
	return &Manager{
		cfg:         cfg.withDefaults(),
		dialer:      dialer,
		log:         log,
		metrics:     m,
		systemRetry: retry.Critical(),
		tenantRetry: retry.Standard(),
		probeRetry: &retry.Policy{
			MaxRetries:      1,
			InitialInterval: 100 * time.Millisecond,
			MaxInterval:     time.Second,
			Multiplier:      2.0,
			RetryIf:         retry.Transient,
		},
		tenants: make(map[base.TenantCode]*tenantEntry),
		now:     time.Now,
	}
}

// GetSystem returns the cached control-plane connection, dialing it under the
// critical retry policy on first use. The first successful dial arms the idle
// sweeper. Exhausting the retry budget returns *base.InitializationError and
// leaves nothing cached.
func (m *Manager) GetSystem(ctx context.Context) (base.Conn, error) {
	m.mu.RLock()
	system := m.system
	m.mu.RUnlock()
	if system != nil {
		return system, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.system != nil {
		return m.system, nil
	}

	conn, err := retry.Do(ctx, m.systemRetry, func(ctx context.Context) (base.Conn, error) {
		return m.dialer.DialSystem(ctx)
	})
	if err != nil {
		m.log.ErrorWithCause("", "", "System database connection failed", err, nil)
		return nil, base.NewInitializationError("could not establish system connection", err)
	}

	m.system = conn
	m.metrics.RecordConnect("system")
	m.log.Info("", "", "System database connection established", nil)

	m.armSweep.Do(m.StartIdleCleanup)
	return conn, nil
}

// GetTenant returns a live connection for the tenant, reusing the cached one
// when its liveness probe succeeds and dialing a fresh one otherwise.
// Exhausting the retry budget returns *base.TenantConnectionError; other
// tenants are unaffected.
func (m *Manager) GetTenant(ctx context.Context, code base.TenantCode) (base.Conn, error) {
	m.mu.RLock()
	entry := m.tenants[code]
	m.mu.RUnlock()

	if entry != nil {
		if err := m.probe(ctx, entry.conn); err == nil {
			m.mu.Lock()
			// Refresh only if the sweep has not replaced or removed the
			// entry in the meantime.
			if current := m.tenants[code]; current == entry {
				current.lastUsedAt = m.now()
			}
			m.mu.Unlock()
			return entry.conn, nil
		}
		m.log.Warn(code.String(), "", "Cached tenant connection failed liveness probe, evicting", nil)
		m.evict(code, entry, "stale")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Another request may have dialed while we waited on the lock.
	if current := m.tenants[code]; current != nil {
		current.lastUsedAt = m.now()
		return current.conn, nil
	}

	conn, err := retry.Do(ctx, m.tenantRetry, func(ctx context.Context) (base.Conn, error) {
		return m.dialer.DialTenant(ctx, code)
	})
	if err != nil {
		m.log.ErrorWithCause(code.String(), "", "Tenant database connection failed", err, nil)
		return nil, base.NewTenantConnectionError(code, "connect", "could not establish tenant connection", err)
	}

	nowTS := m.now()
	m.tenants[code] = &tenantEntry{conn: conn, createdAt: nowTS, lastUsedAt: nowTS}
	m.metrics.RecordConnect("tenant")
	m.metrics.SetTenantCount(len(m.tenants))
	m.log.Info(code.String(), "", "Tenant database connection established", map[string]interface{}{
		"database": m.dialer.TenantDatabaseName(code),
	})
	return conn, nil
}

// CreateTenantDatabase creates the tenant's database if it does not already
// exist, using the configured charset and collation. Safe to call repeatedly.
func (m *Manager) CreateTenantDatabase(ctx context.Context, code base.TenantCode) error {
	system, err := m.GetSystem(ctx)
	if err != nil {
		return base.NewTenantConnectionError(code, "create database", "system connection unavailable", err)
	}

	// Database names cannot be bound as parameters; the name is safe because
	// tenant codes are validated and the prefix is operator-controlled.
	stmt := fmt.Sprintf("CREATE DATABASE IF NOT EXISTS `%s` CHARACTER SET %s COLLATE %s",
		m.dialer.TenantDatabaseName(code), m.cfg.Charset, m.cfg.Collation)
	if err := system.Exec(ctx, stmt); err != nil {
		return base.NewTenantConnectionError(code, "create database", "statement failed", err)
	}

	m.log.Info(code.String(), "", "Tenant database ensured", map[string]interface{}{
		"database": m.dialer.TenantDatabaseName(code),
	})
	return nil
}

// TenantDatabaseExists reports whether the tenant's database exists in the
// server catalog. Best-effort: any failure reads as false.
func (m *Manager) TenantDatabaseExists(ctx context.Context, code base.TenantCode) bool {
	system, err := m.GetSystem(ctx)
	if err != nil {
		return false
	}
	var name string
	found, err := system.QueryRow(ctx,
		"SELECT SCHEMA_NAME FROM information_schema.SCHEMATA WHERE SCHEMA_NAME = ?",
		[]interface{}{m.dialer.TenantDatabaseName(code)}, &name)
	if err != nil {
		return false
	}
	return found
}

// CleanupIdle probes every cached tenant connection, evicting dead entries
// and closing entries unused for longer than the idle threshold.
func (m *Manager) CleanupIdle(ctx context.Context) {
	m.mu.RLock()
	snapshot := make(map[base.TenantCode]*tenantEntry, len(m.tenants))
	for code, entry := range m.tenants {
		snapshot[code] = entry
	}
	m.mu.RUnlock()

	for code, entry := range snapshot {
		if err := m.probe(ctx, entry.conn); err != nil {
			m.log.Warn(code.String(), "", "Evicting dead tenant connection", nil)
			m.evict(code, entry, "stale")
			continue
		}
		m.mu.RLock()
		lastUsed := entry.lastUsedAt
		m.mu.RUnlock()
		if m.now().Sub(lastUsed) > m.cfg.IdleThreshold {
			m.log.Info(code.String(), "", "Evicting idle tenant connection", map[string]interface{}{
				"idle_for": m.now().Sub(lastUsed).String(),
			})
			m.evict(code, entry, "idle")
		}
	}
}

// StartIdleCleanup arms the recurring idle sweep. Calling it again stops the
// existing sweeper and starts a fresh one; sweepers never stack.
func (m *Manager) StartIdleCleanup() {
	m.sweepMu.Lock()
	defer m.sweepMu.Unlock()

	if m.sweepStop != nil {
		close(m.sweepStop)
	}
	stop := make(chan struct{})
	m.sweepStop = stop

	interval := m.cfg.SweepInterval
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				sweepCtx, cancel := context.WithTimeout(context.Background(), interval)
				m.CleanupIdle(sweepCtx)
				cancel()
			}
		}
	}()

	m.log.Info("", "", "Idle connection sweeper started", map[string]interface{}{
		"interval": interval.String(),
	})
}

// CloseAll stops the sweeper, closes every cached connection, and clears the
// registry. Individual close failures are logged and skipped. Intended for
// graceful shutdown.
func (m *Manager) CloseAll(ctx context.Context) {
	m.sweepMu.Lock()
	if m.sweepStop != nil {
		close(m.sweepStop)
		m.sweepStop = nil
	}
	m.sweepMu.Unlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	for code, entry := range m.tenants {
		if err := entry.conn.Close(); err != nil {
			m.log.ErrorWithCause(code.String(), "", "Error closing tenant connection", err, nil)
		}
		m.metrics.RecordEviction("shutdown")
	}
	m.tenants = make(map[base.TenantCode]*tenantEntry)
	m.metrics.SetTenantCount(0)

	if m.system != nil {
		if err := m.system.Close(); err != nil {
			m.log.ErrorWithCause("", "", "Error closing system connection", err, nil)
		}
		m.system = nil
	}
	m.log.Info("", "", "All database connections closed", nil)
}

// HealthCheck reports a point-in-time snapshot of registry health. It never
// returns an error; on internal failure the snapshot degrades to
// SystemUp=false with whatever else could be gathered.
func (m *Manager) HealthCheck(ctx context.Context) base.HealthSnapshot {
	snapshot := base.HealthSnapshot{
		Timestamp: m.now(),
		Pools:     make(map[base.TenantCode]base.PoolStats),
	}

	m.mu.RLock()
	system := m.system
	entries := make(map[base.TenantCode]*tenantEntry, len(m.tenants))
	for code, entry := range m.tenants {
		entries[code] = entry
	}
	m.mu.RUnlock()

	if system != nil {
		err := retry.DoVoid(ctx, m.probeRetry, func(ctx context.Context) error {
			return m.probe(ctx, system)
		})
		snapshot.SystemUp = err == nil
	}

	snapshot.TenantCount = len(entries)
	for code, entry := range entries {
		snapshot.ActiveTenants = append(snapshot.ActiveTenants, code)
		snapshot.Pools[code] = entry.conn.Stats()
	}
	sort.Slice(snapshot.ActiveTenants, func(i, j int) bool {
		return snapshot.ActiveTenants[i] < snapshot.ActiveTenants[j]
	})
	return snapshot
}

// TenantCount reports the number of cached tenant connections.
func (m *Manager) TenantCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.tenants)
}

// probe performs a bounded liveness round-trip.
func (m *Manager) probe(ctx context.Context, conn base.Conn) error {
	probeCtx, cancel := context.WithTimeout(ctx, m.cfg.ProbeTimeout)
	defer cancel()
	start := time.Now()
	err := conn.Ping(probeCtx)
	m.metrics.ObserveProbe(time.Since(start))
	return err
}

// evict removes an entry if it is still the one mapped for the code, closing
// its connection best-effort.
func (m *Manager) evict(code base.TenantCode, entry *tenantEntry, reason string) {
	m.mu.Lock()
	if current := m.tenants[code]; current != entry {
		m.mu.Unlock()
		return
	}
	delete(m.tenants, code)
	count := len(m.tenants)
	m.mu.Unlock()

	if err := entry.conn.Close(); err != nil {
		m.log.ErrorWithCause(code.String(), "", "Error closing evicted connection", err, nil)
	}
	m.metrics.RecordEviction(reason)
	m.metrics.SetTenantCount(count)
}
