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

// Package config loads the platform's YAML configuration with environment
// variable expansion and resolves database credentials from the environment
// or AWS Secrets Manager.
package config

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"shala/platform/dbmanager/base"
	"shala/platform/dbmanager/registry"
)

// File is the root structure of the platform configuration file.
type File struct {
	Version  string          `yaml:"version"`
	Database DatabaseConfig  `yaml:"database"`
	Registry registry.Config `yaml:"registry"`
	Admin    AdminConfig     `yaml:"admin"`
	Redis    RedisConfig     `yaml:"redis"`
}

// DatabaseConfig describes how to reach the MySQL server. Credentials come
// from CredentialSource, never from the file itself.
type DatabaseConfig struct {
	Host           string          `yaml:"host"`
	Port           int             `yaml:"port"`
	SystemDatabase string          `yaml:"system_database"`
	TenantPrefix   string          `yaml:"tenant_prefix"`
	Charset        string          `yaml:"charset"`
	Collation      string          `yaml:"collation"`
	Pool           base.PoolConfig `yaml:"pool"`

	// SecretARN, when set, sources credentials from AWS Secrets Manager
	// instead of DB_USER / DB_PASSWORD.
	SecretARN string `yaml:"secret_arn"`
	AWSRegion string `yaml:"aws_region"`
}

// AdminConfig configures the admin/monitoring HTTP service.
type AdminConfig struct {
	ListenAddr string `yaml:"listen_addr"`
	// ConnectionWarnThreshold is the total-open-connection count above which
	// the monitoring job logs a warning.
	ConnectionWarnThreshold int           `yaml:"connection_warn_threshold"`
	MonitorInterval         time.Duration `yaml:"monitor_interval"`
}

// RedisConfig configures the tenant directory cache.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

// Load reads and parses the configuration file, expanding ${VAR} and
// ${VAR:-default} references before unmarshaling.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	expanded := expandEnvVars(string(data))

	var f File
	if err := yaml.Unmarshal([]byte(expanded), &f); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := f.validate(); err != nil {
		return nil, err
	}
	f.applyDefaults()
	return &f, nil
}

func (f *File) validate() error {
	if f.Version == "" {
		return fmt.Errorf("config file must specify a version")
	}
	if f.Database.Host == "" {
		return fmt.Errorf("database.host is required")
	}
	if f.Database.SystemDatabase == "" {
		return fmt.Errorf("database.system_database is required")
	}
	return nil
}

func (f *File) applyDefaults() {
	if f.Database.Port == 0 {
		f.Database.Port = 3306
	}
	if f.Database.TenantPrefix == "" {
		f.Database.TenantPrefix = "shala_"
	}
	if f.Database.Charset == "" {
		f.Database.Charset = "utf8mb4"
	}
	if f.Database.Collation == "" {
		f.Database.Collation = "utf8mb4_unicode_ci"
	}
	if f.Database.Pool == (base.PoolConfig{}) {
		f.Database.Pool = base.DefaultPoolConfig()
	}
	if f.Admin.ListenAddr == "" {
		f.Admin.ListenAddr = ":8085"
	}
	if f.Admin.MonitorInterval == 0 {
		f.Admin.MonitorInterval = time.Minute
	}
	if f.Admin.ConnectionWarnThreshold == 0 {
		f.Admin.ConnectionWarnThreshold = 100
	}
	if f.Redis.CacheTTL == 0 {
		f.Redis.CacheTTL = 5 * time.Minute
	}
}

// GetEnv returns the value of an environment variable or a fallback.
func GetEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// envVarRegex matches ${VAR_NAME} or $VAR_NAME patterns
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

// expandEnvVars expands environment variable references in the string.
// Supports both ${VAR_NAME} and $VAR_NAME syntax, with ${VAR_NAME:-default}
// fallbacks. Undefined variables expand to the empty string.
func expandEnvVars(content string) string {
	return envVarRegex.ReplaceAllStringFunc(content, func(match string) string {
		var varName string
		if strings.HasPrefix(match, "${") {
			varName = match[2 : len(match)-1]
		} else {
			varName = match[1:]
		}

		defaultVal := ""
		if idx := strings.Index(varName, ":-"); idx != -1 {
			defaultVal = varName[idx+2:]
			varName = varName[:idx]
		}

		if value := os.Getenv(varName); value != "" {
			return value
		}
		return defaultVal
	})
}

// Credentials is a resolved username/password pair.
type Credentials struct {
	Username string
	Password string
}

// CredentialSource resolves database credentials at startup.
type CredentialSource interface {
	Resolve(ctx context.Context) (Credentials, error)
}

// EnvCredentials reads DB_USER and DB_PASSWORD from the environment.
type EnvCredentials struct{}

// Resolve implements CredentialSource.
func (EnvCredentials) Resolve(ctx context.Context) (Credentials, error) {
	user := os.Getenv("DB_USER")
	if user == "" {
		return Credentials{}, fmt.Errorf("DB_USER is not set")
	}
	return Credentials{Username: user, Password: os.Getenv("DB_PASSWORD")}, nil
}

// ResolveCredentials picks the credential source implied by the database
// config: Secrets Manager when secret_arn is set, the environment otherwise.
func ResolveCredentials(ctx context.Context, dbCfg DatabaseConfig) (Credentials, error) {
	if dbCfg.SecretARN != "" {
		sm, err := NewAWSSecretsManager(ctx, AWSSecretsManagerOptions{Region: dbCfg.AWSRegion})
		if err != nil {
			return Credentials{}, err
		}
		return SecretCredentials{Manager: sm, SecretARN: dbCfg.SecretARN}.Resolve(ctx)
	}
	return EnvCredentials{}.Resolve(ctx)
}
