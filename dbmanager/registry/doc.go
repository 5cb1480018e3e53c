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

/*
Package registry provides the tenant connection registry: one cached
control-plane connection plus one lazily dialed, idle-evicted connection per
onboarded school.

# Overview

The Manager is the central authority for database connections. It handles:

  - Lazy creation and caching of the system (control-plane) connection
  - Per-tenant connection caching keyed by validated tenant code
  - Liveness probing before every cached handout
  - Idle and dead-connection eviction on a recurring sweep
  - Tenant database provisioning and existence probes
  - Aggregate health snapshots for the monitoring plane

Without eviction, pooled connections accumulate one set per school for the
life of the process and eventually hit the MySQL server's global connection
ceiling. The registry trades a cheap probe per handout for a hard bound on
simultaneously open connections.

# Creating a Manager

	dialer, err := mysql.NewDialer(mysqlCfg)
	if err != nil {
	    log.Fatal(err)
	}
	mgr := registry.NewManager(dialer, registry.Config{}, logger.New("dbmanager"), nil)

The entry point dials the system connection once at startup and aborts on
failure:

	if _, err := mgr.GetSystem(ctx); err != nil {
	    log.Fatal(err) // *base.InitializationError
	}

# Serving Requests

Request middleware resolves a tenant code and borrows a connection:

	code, err := base.ParseTenantCode(r.Header.Get("X-Tenant-Code"))
	if err != nil {
	    // 400
	}
	conn, err := mgr.GetTenant(r.Context(), code)
	if err != nil {
	    // *base.TenantConnectionError -> 503 for this tenant only
	}

Callers never close a borrowed Conn; the registry owns every connection it
hands out.

# Provisioning

Onboarding a school creates its database idempotently:

	if !mgr.TenantDatabaseExists(ctx, code) {
	    err := mgr.CreateTenantDatabase(ctx, code)
	}

# Health

	snap := mgr.HealthCheck(ctx)

HealthCheck never fails; a broken system connection reads as SystemUp=false
with the rest of the snapshot still populated.

# Shutdown

	mgr.CloseAll(ctx)

# Concurrency

The Manager is safe for concurrent use. Map mutation is serialized by an
RWMutex; dials for the same tenant are serialized by the same lock, so no two
connects for one code run concurrently. The probe-then-use window documented
on Manager is the one tolerated race.
*/
package registry
