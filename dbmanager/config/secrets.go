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
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// SecretsManager retrieves named secrets as string maps.
type SecretsManager interface {
	GetSecret(ctx context.Context, secretARN string) (map[string]string, error)
}

// AWSSecretsManager implements SecretsManager using AWS Secrets Manager.
type AWSSecretsManager struct {
	client *secretsmanager.Client
	cache  map[string]*secretCacheEntry
	mu     sync.RWMutex
	ttl    time.Duration
	logger *log.Logger
}

type secretCacheEntry struct {
	value     map[string]string
	expiresAt time.Time
}

// AWSSecretsManagerOptions holds options for creating an AWSSecretsManager.
type AWSSecretsManagerOptions struct {
	Region   string
	CacheTTL time.Duration
	Logger   *log.Logger
}

// NewAWSSecretsManager builds a client from the ambient AWS credential chain.
// Secrets are cached in-process so hot startup paths do not hammer the API.
func NewAWSSecretsManager(ctx context.Context, opts AWSSecretsManagerOptions) (*AWSSecretsManager, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(os.Stdout, "[SECRETS] ", log.LstdFlags)
	}

	var cfgOpts []func(*awsconfig.LoadOptions) error
	if opts.Region != "" {
		cfgOpts = append(cfgOpts, awsconfig.WithRegion(opts.Region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, cfgOpts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	return &AWSSecretsManager{
		client: secretsmanager.NewFromConfig(cfg),
		cache:  make(map[string]*secretCacheEntry),
		ttl:    ttl,
		logger: logger,
	}, nil
}

// GetSecret returns the secret's key/value map, serving from the TTL cache
// when fresh. The secret payload must be a JSON object of strings; database
// credential secrets always are.
func (s *AWSSecretsManager) GetSecret(ctx context.Context, secretARN string) (map[string]string, error) {
	s.mu.RLock()
	entry, fresh := s.cache[secretARN]
	s.mu.RUnlock()
	if fresh && time.Now().Before(entry.expiresAt) {
		return entry.value, nil
	}

	s.logger.Printf("Resolving credentials from %s", maskARN(secretARN))

	result, err := s.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(secretARN),
	})
	if err != nil {
		return nil, fmt.Errorf("fetch secret %s: %w", maskARN(secretARN), err)
	}
	if result.SecretString == nil {
		return nil, fmt.Errorf("secret %s has no string payload", maskARN(secretARN))
	}

	var values map[string]string
	if err := json.Unmarshal([]byte(*result.SecretString), &values); err != nil {
		return nil, fmt.Errorf("secret %s is not a JSON object: %w", maskARN(secretARN), err)
	}

	s.mu.Lock()
	s.cache[secretARN] = &secretCacheEntry{
		value:     values,
		expiresAt: time.Now().Add(s.ttl),
	}
	s.mu.Unlock()

	return values, nil
}

// SecretCredentials sources database credentials from a secret holding
// "username" and "password" keys.
type SecretCredentials struct {
	Manager   SecretsManager
	SecretARN string
}

// Resolve implements CredentialSource.
func (s SecretCredentials) Resolve(ctx context.Context) (Credentials, error) {
	values, err := s.Manager.GetSecret(ctx, s.SecretARN)
	if err != nil {
		return Credentials{}, err
	}
	user, ok := values["username"]
	if !ok || user == "" {
		return Credentials{}, fmt.Errorf("secret %s has no username", maskARN(s.SecretARN))
	}
	return Credentials{Username: user, Password: values["password"]}, nil
}

// maskARN hides the secret name portion of an ARN in log output.
func maskARN(arn string) string {
	parts := strings.Split(arn, ":")
	if len(parts) < 7 {
		if len(arn) > 8 {
			return arn[:8] + "***"
		}
		return "***"
	}
	return strings.Join(parts[:6], ":") + ":***"
}
