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

package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "platform.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
version: "1.0"
database:
  host: db.internal
  port: 3307
  system_database: shala_system
  tenant_prefix: shala_
registry:
  idle_threshold: 45m
  sweep_interval: 10m
admin:
  listen_addr: ":9090"
  connection_warn_threshold: 50
redis:
  addr: cache.internal:6379
  cache_ttl: 2m
`)

	f, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "1.0", f.Version)
	assert.Equal(t, "db.internal", f.Database.Host)
	assert.Equal(t, 3307, f.Database.Port)
	assert.Equal(t, "shala_system", f.Database.SystemDatabase)
	assert.Equal(t, "shala_", f.Database.TenantPrefix)
	assert.Equal(t, 45*time.Minute, f.Registry.IdleThreshold)
	assert.Equal(t, 10*time.Minute, f.Registry.SweepInterval)
	assert.Equal(t, ":9090", f.Admin.ListenAddr)
	assert.Equal(t, 50, f.Admin.ConnectionWarnThreshold)
	assert.Equal(t, "cache.internal:6379", f.Redis.Addr)
	assert.Equal(t, 2*time.Minute, f.Redis.CacheTTL)
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, `
version: "1.0"
database:
  host: db.internal
  system_database: shala_system
`)

	f, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 3306, f.Database.Port)
	assert.Equal(t, "shala_", f.Database.TenantPrefix)
	assert.Equal(t, "utf8mb4", f.Database.Charset)
	assert.Equal(t, "utf8mb4_unicode_ci", f.Database.Collation)
	assert.NotZero(t, f.Database.Pool.MaxOpenConns)
	assert.Equal(t, ":8085", f.Admin.ListenAddr)
	assert.Equal(t, time.Minute, f.Admin.MonitorInterval)
	assert.Equal(t, 100, f.Admin.ConnectionWarnThreshold)
	assert.Equal(t, 5*time.Minute, f.Redis.CacheTTL)
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name: "missing version",
			content: `
database:
  host: db.internal
  system_database: shala_system
`,
		},
		{
			name: "missing host",
			content: `
version: "1.0"
database:
  system_database: shala_system
`,
		},
		{
			name: "missing system database",
			content: `
version: "1.0"
database:
  host: db.internal
`,
		},
		{
			name:    "malformed yaml",
			content: "version: [unclosed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("SHALA_TEST_DB_HOST", "db.prod.internal")
	os.Unsetenv("SHALA_TEST_UNSET")

	path := writeConfig(t, `
version: "1.0"
database:
  host: ${SHALA_TEST_DB_HOST}
  system_database: ${SHALA_TEST_UNSET:-shala_system}
  tenant_prefix: "${SHALA_TEST_UNSET:-shala_}"
`)

	f, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "db.prod.internal", f.Database.Host)
	assert.Equal(t, "shala_system", f.Database.SystemDatabase)
	assert.Equal(t, "shala_", f.Database.TenantPrefix)
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("SHALA_TEST_VAR", "value")

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"braced", "x: ${SHALA_TEST_VAR}", "x: value"},
		{"bare", "x: $SHALA_TEST_VAR", "x: value"},
		{"default used", "x: ${SHALA_TEST_MISSING:-fallback}", "x: fallback"},
		{"default ignored when set", "x: ${SHALA_TEST_VAR:-fallback}", "x: value"},
		{"undefined without default", "x: ${SHALA_TEST_MISSING}", "x: "},
		{"no references", "x: literal", "x: literal"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, expandEnvVars(tt.input))
		})
	}
}

func TestEnvCredentials(t *testing.T) {
	t.Run("resolves from environment", func(t *testing.T) {
		t.Setenv("DB_USER", "school_erp_admin")
		t.Setenv("DB_PASSWORD", "s3cret")

		creds, err := EnvCredentials{}.Resolve(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "school_erp_admin", creds.Username)
		assert.Equal(t, "s3cret", creds.Password)
	})

	t.Run("missing user fails", func(t *testing.T) {
		t.Setenv("DB_USER", "")

		_, err := EnvCredentials{}.Resolve(context.Background())
		assert.Error(t, err)
	})
}

// fakeSecrets is an in-memory SecretsManager.
type fakeSecrets struct {
	secrets map[string]map[string]string
}

func (f *fakeSecrets) GetSecret(ctx context.Context, secretARN string) (map[string]string, error) {
	values, ok := f.secrets[secretARN]
	if !ok {
		return nil, os.ErrNotExist
	}
	return values, nil
}

func TestSecretCredentials(t *testing.T) {
	arn := "arn:aws:secretsmanager:ap-south-1:123456789012:secret:shala/db-AbCdEf"
	manager := &fakeSecrets{secrets: map[string]map[string]string{
		arn: {"username": "school_erp_admin", "password": "s3cret"},
		"arn:aws:secretsmanager:ap-south-1:123456789012:secret:empty-XyZ": {},
	}}

	t.Run("resolves username and password", func(t *testing.T) {
		creds, err := SecretCredentials{Manager: manager, SecretARN: arn}.Resolve(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "school_erp_admin", creds.Username)
		assert.Equal(t, "s3cret", creds.Password)
	})

	t.Run("missing username fails", func(t *testing.T) {
		_, err := SecretCredentials{
			Manager:   manager,
			SecretARN: "arn:aws:secretsmanager:ap-south-1:123456789012:secret:empty-XyZ",
		}.Resolve(context.Background())
		assert.Error(t, err)
	})

	t.Run("unknown secret fails", func(t *testing.T) {
		_, err := SecretCredentials{Manager: manager, SecretARN: "arn:missing"}.Resolve(context.Background())
		assert.Error(t, err)
	})
}

func TestMaskARN(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			"full arn",
			"arn:aws:secretsmanager:ap-south-1:123456789012:secret:shala/db-AbCdEf",
			"arn:aws:secretsmanager:ap-south-1:123456789012:secret:***",
		},
		{"short string", "tiny", "***"},
		{"medium string", "not-an-arn-but-long", "not-an-a***"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, maskARN(tt.input))
		})
	}
}

func TestGetEnv(t *testing.T) {
	t.Setenv("SHALA_TEST_SET", "present")
	assert.Equal(t, "present", GetEnv("SHALA_TEST_SET", "fallback"))
	assert.Equal(t, "fallback", GetEnv("SHALA_TEST_NOT_SET", "fallback"))
}
