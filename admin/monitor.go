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

package admin

import (
	"context"
	"time"

	"shala/platform/dbmanager/registry"
	"shala/platform/shared/logger"
)

// Monitor periodically health-checks the registry and warns when the total
// number of open database connections crosses the configured threshold, or
// when the system connection goes down.
type Monitor struct {
	manager       *registry.Manager
	warnThreshold int
	interval      time.Duration
	log           *logger.Logger
}

// NewMonitor builds a Monitor.
func NewMonitor(manager *registry.Manager, warnThreshold int, interval time.Duration, log *logger.Logger) *Monitor {
	if log == nil {
		log = logger.New("admin")
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &Monitor{
		manager:       manager,
		warnThreshold: warnThreshold,
		interval:      interval,
		log:           log,
	}
}

// Run blocks until ctx is canceled, sweeping at the configured interval.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.log.Info("", "", "Connection monitor stopped", nil)
			return
		case <-ticker.C:
			m.check(ctx)
		}
	}
}

// check runs one monitoring pass.
func (m *Monitor) check(ctx context.Context) {
	checkCtx, cancel := context.WithTimeout(ctx, m.interval)
	defer cancel()

	snapshot := m.manager.HealthCheck(checkCtx)

	if !snapshot.SystemUp {
		m.log.Error("", "", "System database connection is down", map[string]interface{}{
			"tenant_count": snapshot.TenantCount,
		})
	}

	totalOpen := 0
	for _, pool := range snapshot.Pools {
		totalOpen += pool.OpenConnections
	}
	if m.warnThreshold > 0 && totalOpen > m.warnThreshold {
		m.log.Warn("", "", "Open database connections above threshold", map[string]interface{}{
			"open_connections": totalOpen,
			"threshold":        m.warnThreshold,
			"tenant_count":     snapshot.TenantCount,
		})
	}
}
