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

// Package retry provides the single parameterized retry policy used by the
// database layer. The registry dials the control-plane database under the
// Critical preset (aggressive, bounded by an overall deadline, failure is
// fatal to startup) and tenant databases under the Standard preset (modest
// attempts, failure stays scoped to one request).
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"strings"
	"time"
)

// Policy configures retry behavior for one call site.
type Policy struct {
	MaxRetries      int              // Retries after the first attempt
	InitialInterval time.Duration    // First wait interval
	MaxInterval     time.Duration    // Cap on a single wait
	Multiplier      float64          // Backoff multiplier
	Jitter          float64          // Jitter factor (0-1)
	Deadline        time.Duration    // Overall budget across all attempts (0 = none)
	RetryIf         func(error) bool // Retry condition; nil means retry everything
}

// Critical returns the policy for operations the process cannot run without.
// Attempts are generous and the whole operation is bounded by a deadline so a
// dead database fails startup loudly instead of hanging it.
func Critical() *Policy {
	return &Policy{
		MaxRetries:      5,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     10 * time.Second,
		Multiplier:      2.0,
		Jitter:          0.1,
		Deadline:        90 * time.Second,
	}
}

// Standard returns the policy for per-tenant operations. Failure after these
// attempts surfaces to the calling request and nothing else.
func Standard() *Policy {
	return &Policy{
		MaxRetries:      2,
		InitialInterval: 200 * time.Millisecond,
		MaxInterval:     5 * time.Second,
		Multiplier:      2.0,
		Jitter:          0.1,
	}
}

// Transient reports whether an error looks worth retrying: timeouts and the
// usual transient driver failures, but never context cancellation.
func Transient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	msg := strings.ToLower(err.Error())
	transientPatterns := []string{
		"connection refused",
		"connection reset",
		"connection timed out",
		"bad connection",
		"gone away",
		"too many connections",
		"temporary failure",
		"i/o timeout",
	}
	for _, pattern := range transientPatterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

// ExhaustedError indicates every attempt under a policy failed.
type ExhaustedError struct {
	Err      error
	Attempts int
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("operation failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

// Do executes fn under the policy with exponential backoff. The last error is
// wrapped in an ExhaustedError once the budget runs out.
func Do[T any](ctx context.Context, p *Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if p == nil {
		p = Standard()
	}

	if p.Deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Deadline)
		defer cancel()
	}

	var lastErr error
	interval := p.InitialInterval

	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		if ctx.Err() != nil {
			if lastErr != nil {
				return zero, &ExhaustedError{Err: lastErr, Attempts: attempt}
			}
			return zero, ctx.Err()
		}

		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if p.RetryIf != nil && !p.RetryIf(err) {
			return zero, err
		}
		if attempt >= p.MaxRetries {
			break
		}

		wait := interval
		if p.Jitter > 0 {
			jitter := wait.Seconds() * p.Jitter * (rand.Float64()*2 - 1)
			wait += time.Duration(jitter * float64(time.Second))
		}
		if wait > p.MaxInterval {
			wait = p.MaxInterval
		}

		select {
		case <-ctx.Done():
			return zero, &ExhaustedError{Err: lastErr, Attempts: attempt + 1}
		case <-time.After(wait):
		}

		interval = time.Duration(float64(interval) * p.Multiplier)
		if interval > p.MaxInterval {
			interval = p.MaxInterval
		}
	}

	return zero, &ExhaustedError{Err: lastErr, Attempts: p.MaxRetries + 1}
}

// DoVoid executes a void function under the policy.
func DoVoid(ctx context.Context, p *Policy, fn func(ctx context.Context) error) error {
	_, err := Do(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}
