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

// Package base defines the shared types of the multi-tenant database layer:
// the validated TenantCode, the Conn and Dialer contracts the registry is
// built on, pool configuration and statistics, the HealthSnapshot value
// object, and the two typed errors every consumer switches on.
//
// # Error taxonomy
//
// Exactly two error kinds cross package boundaries:
//
//   - InitializationError: the control-plane (system) database could not be
//     reached within the critical retry budget. Startup aborts on it.
//   - TenantConnectionError: one tenant's database could not be reached or a
//     tenant-database statement failed. The route layer maps it to a 5xx for
//     that tenant; other tenants keep working.
//
// Advisory operations (existence probes, health checks) never return errors;
// they degrade to safe defaults instead.
//
// # Ownership
//
// Every Conn returned by a Dialer is owned by the registry. Consumers borrow
// a Conn for the duration of a request and must never call Close on it.
package base
