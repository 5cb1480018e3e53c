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
Command platform runs the Shala database layer: the multi-tenant connection
registry with its admin/monitoring HTTP surface.

Startup dials the control-plane MySQL database and aborts the process if it
cannot be reached within the critical retry budget; a school ERP with a dead
control plane must not come up half-working.

# Usage

	platform [flags]

# Flags

	-config string
	      Path to the YAML configuration file (default "config.yaml")

# Environment Variables

Required (unless database.secret_arn is configured):
  - DB_USER: MySQL username
  - DB_PASSWORD: MySQL password

Optional:
  - JWT_SECRET: Secret for admin API token validation
  - REDIS_URL: overrides redis.addr from the config file
  - INSTANCE_ID: deployment instance identifier for log attribution

# Example

	export DB_USER="school_erp_admin"
	export DB_PASSWORD="..."
	./platform -config deploy/config.yaml
*/
package main
