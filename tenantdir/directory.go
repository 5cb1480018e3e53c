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

// Package tenantdir caches the school directory in Redis. The control-plane
// database is the source of truth; the cache keeps per-request tenant
// resolution off the system connection's pool.
package tenantdir

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"shala/platform/dbmanager/base"
	"shala/platform/shared/logger"
)

// ErrNotFound means the tenant code is not in the directory.
var ErrNotFound = errors.New("tenant not found in directory")

// School is one directory entry.
type School struct {
	ID        uuid.UUID       `json:"id"`
	Code      base.TenantCode `json:"code"`
	Name      string          `json:"name"`
	UDISECode string          `json:"udise_code,omitempty"`
	Active    bool            `json:"active"`
}

// Loader fetches a directory entry from the source of truth (the control
// plane's schools table).
type Loader func(ctx context.Context, code base.TenantCode) (*School, error)

// Directory is a read-through Redis cache over the school directory.
type Directory struct {
	client *redis.Client
	loader Loader
	ttl    time.Duration
	log    *logger.Logger
}

// New creates a Directory. The client may be nil, in which case every lookup
// goes straight to the loader.
func New(client *redis.Client, loader Loader, ttl time.Duration, log *logger.Logger) *Directory {
	if log == nil {
		log = logger.New("tenantdir")
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Directory{client: client, loader: loader, ttl: ttl, log: log}
}

func cacheKey(code base.TenantCode) string {
	return fmt.Sprintf("tenantdir:%s", code)
}

// Lookup resolves a tenant code to its directory entry, serving from Redis
// when possible. Cache failures fall through to the loader; only loader
// failures surface.
func (d *Directory) Lookup(ctx context.Context, code base.TenantCode) (*School, error) {
	if d.client != nil {
		data, err := d.client.Get(ctx, cacheKey(code)).Bytes()
		if err == nil {
			var school School
			if jsonErr := json.Unmarshal(data, &school); jsonErr == nil {
				return &school, nil
			}
			// Corrupt entry; drop it and reload.
			d.client.Del(ctx, cacheKey(code))
		} else if err != redis.Nil {
			d.log.Warn(code.String(), "", "Directory cache read failed, falling back to loader", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}

	school, err := d.loader(ctx, code)
	if err != nil {
		return nil, err
	}

	if d.client != nil {
		if data, err := json.Marshal(school); err == nil {
			if err := d.client.Set(ctx, cacheKey(code), data, d.ttl).Err(); err != nil {
				d.log.Warn(code.String(), "", "Directory cache write failed", map[string]interface{}{
					"error": err.Error(),
				})
			}
		}
	}
	return school, nil
}

// Invalidate drops a cached entry, e.g. after a school is suspended.
func (d *Directory) Invalidate(ctx context.Context, code base.TenantCode) {
	if d.client == nil {
		return
	}
	if err := d.client.Del(ctx, cacheKey(code)).Err(); err != nil {
		d.log.Warn(code.String(), "", "Directory cache invalidation failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

// SystemLoader builds a Loader that queries the control-plane schools table
// through the registry's system connection.
func SystemLoader(getSystem func(ctx context.Context) (base.Conn, error)) Loader {
	return func(ctx context.Context, code base.TenantCode) (*School, error) {
		system, err := getSystem(ctx)
		if err != nil {
			return nil, fmt.Errorf("directory loader: %w", err)
		}
		var (
			rawID     string
			name      string
			udiseCode string
			active    bool
		)
		found, err := system.QueryRow(ctx,
			"SELECT id, name, IFNULL(udise_code, ''), is_active FROM schools WHERE code = ?",
			[]interface{}{code.String()}, &rawID, &name, &udiseCode, &active)
		if err != nil {
			return nil, fmt.Errorf("directory loader: %w", err)
		}
		if !found {
			return nil, ErrNotFound
		}
		id, err := uuid.Parse(rawID)
		if err != nil {
			return nil, fmt.Errorf("directory loader: bad school id: %w", err)
		}
		return &School{
			ID:        id,
			Code:      code,
			Name:      name,
			UDISECode: udiseCode,
			Active:    active,
		}, nil
	}
}
