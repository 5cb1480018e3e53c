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

package mysql

import (
	"context"
	"database/sql"

	"shala/platform/dbmanager/base"
)

// conn adapts a *sql.DB pool to the base.Conn contract.
type conn struct {
	db       *sql.DB
	database string
}

// WrapDB exposes an existing *sql.DB as a base.Conn. Used by tests that
// inject a mocked database.
func WrapDB(db *sql.DB, database string) base.Conn {
	return &conn{db: db, database: database}
}

func (c *conn) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

func (c *conn) Exec(ctx context.Context, statement string, args ...interface{}) error {
	_, err := c.db.ExecContext(ctx, statement, args...)
	return err
}

func (c *conn) QueryRow(ctx context.Context, query string, args []interface{}, dest ...interface{}) (bool, error) {
	err := c.db.QueryRowContext(ctx, query, args...).Scan(dest...)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (c *conn) Stats() base.PoolStats {
	s := c.db.Stats()
	return base.PoolStats{
		OpenConnections: s.OpenConnections,
		InUse:           s.InUse,
		Idle:            s.Idle,
		WaitCount:       s.WaitCount,
	}
}

func (c *conn) Close() error {
	return c.db.Close()
}
