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

package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"log"
	"os"
	"strings"
	"testing"
	"time"
)

// capture redirects the stdlib logger while fn runs and returns what was
// written.
func capture(t *testing.T, fn func()) string {
	t.Helper()
	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)
	flags := log.Flags()
	log.SetFlags(0)
	defer log.SetFlags(flags)

	fn()
	return buf.String()
}

func parseEntry(t *testing.T, raw string) LogEntry {
	t.Helper()
	line := strings.TrimSpace(raw)
	var entry LogEntry
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v\nline: %s", err, line)
	}
	return entry
}

func TestNew(t *testing.T) {
	l := New("dbmanager")
	if l.Component != "dbmanager" {
		t.Errorf("Component = %q, want dbmanager", l.Component)
	}
	if l.InstanceID == "" {
		t.Error("InstanceID must never be empty")
	}
	if l.Container == "" {
		t.Error("Container must never be empty")
	}
}

func TestNew_InstanceIDFromEnv(t *testing.T) {
	t.Setenv("INSTANCE_ID", "i-0abc123")
	l := New("dbmanager")
	if l.InstanceID != "i-0abc123" {
		t.Errorf("InstanceID = %q, want i-0abc123", l.InstanceID)
	}
}

func TestLog_StructuredOutput(t *testing.T) {
	l := New("dbmanager")

	out := capture(t, func() {
		l.Info("dps-rohini", "req-42", "Tenant connection established", map[string]interface{}{
			"database": "shala_dps-rohini",
			"attempts": 1,
		})
	})

	entry := parseEntry(t, out)
	if entry.Level != INFO {
		t.Errorf("Level = %s, want INFO", entry.Level)
	}
	if entry.Component != "dbmanager" {
		t.Errorf("Component = %q, want dbmanager", entry.Component)
	}
	if entry.TenantCode != "dps-rohini" {
		t.Errorf("TenantCode = %q, want dps-rohini", entry.TenantCode)
	}
	if entry.RequestID != "req-42" {
		t.Errorf("RequestID = %q, want req-42", entry.RequestID)
	}
	if entry.Message != "Tenant connection established" {
		t.Errorf("Message = %q", entry.Message)
	}
	if entry.Fields["database"] != "shala_dps-rohini" {
		t.Errorf("Fields[database] = %v", entry.Fields["database"])
	}

	if _, err := time.Parse(time.RFC3339Nano, entry.Timestamp); err != nil {
		t.Errorf("Timestamp %q is not RFC3339Nano: %v", entry.Timestamp, err)
	}
}

func TestLogLevels(t *testing.T) {
	l := New("dbmanager")

	tests := []struct {
		name string
		log  func(tenantCode, requestID, message string, fields map[string]interface{})
		want LogLevel
	}{
		{"debug", l.Debug, DEBUG},
		{"info", l.Info, INFO},
		{"warn", l.Warn, WARN},
		{"error", l.Error, ERROR},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := capture(t, func() {
				tt.log("", "", "message", nil)
			})
			entry := parseEntry(t, out)
			if entry.Level != tt.want {
				t.Errorf("Level = %s, want %s", entry.Level, tt.want)
			}
		})
	}
}

func TestLog_OmitsEmptyOptionalFields(t *testing.T) {
	l := New("dbmanager")

	out := capture(t, func() {
		l.Info("", "", "System connection established", nil)
	})

	line := strings.TrimSpace(out)
	if strings.Contains(line, "tenant_code") {
		t.Error("empty tenant_code must be omitted")
	}
	if strings.Contains(line, "request_id") {
		t.Error("empty request_id must be omitted")
	}
	if strings.Contains(line, `"fields"`) {
		t.Error("nil fields must be omitted")
	}
}

func TestErrorWithCause(t *testing.T) {
	l := New("dbmanager")

	out := capture(t, func() {
		l.ErrorWithCause("acme", "req-7", "Tenant dial failed", errors.New("connection refused"), map[string]interface{}{
			"attempts": 3,
		})
	})

	entry := parseEntry(t, out)
	if entry.Level != ERROR {
		t.Errorf("Level = %s, want ERROR", entry.Level)
	}
	if entry.Fields["error"] != "connection refused" {
		t.Errorf("Fields[error] = %v, want the cause's message", entry.Fields["error"])
	}
	if entry.Fields["attempts"] != float64(3) {
		t.Errorf("Fields[attempts] = %v, want 3", entry.Fields["attempts"])
	}
}

func TestErrorWithCause_NilError(t *testing.T) {
	l := New("dbmanager")

	out := capture(t, func() {
		l.ErrorWithCause("acme", "", "Something failed", nil, nil)
	})

	entry := parseEntry(t, out)
	if _, present := entry.Fields["error"]; present {
		t.Error("nil cause must not produce an error field")
	}
}
