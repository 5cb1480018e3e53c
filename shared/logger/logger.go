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
	"encoding/json"
	"log"
	"os"
	"time"
)

// LogLevel is the severity of a log entry.
type LogLevel string

const (
	DEBUG LogLevel = "DEBUG"
	INFO  LogLevel = "INFO"
	WARN  LogLevel = "WARN"
	ERROR LogLevel = "ERROR"
)

// Logger emits one JSON object per line to stdout. Every entry carries the
// component and instance it came from; tenant code and request ID attribute
// the entry to one school's traffic when known.
type Logger struct {
	Component  string
	InstanceID string
	Container  string
}

// LogEntry is the wire shape of one log line.
type LogEntry struct {
	Timestamp  string                 `json:"timestamp"`
	Level      LogLevel               `json:"level"`
	Component  string                 `json:"component"`
	InstanceID string                 `json:"instance_id"`
	Container  string                 `json:"container"`
	TenantCode string                 `json:"tenant_code,omitempty"`
	RequestID  string                 `json:"request_id,omitempty"`
	Message    string                 `json:"message"`
	Fields     map[string]interface{} `json:"fields,omitempty"`
}

// New builds a Logger for one component. Instance identity comes from the
// INSTANCE_ID environment variable and the hostname.
func New(component string) *Logger {
	instanceID := os.Getenv("INSTANCE_ID")
	if instanceID == "" {
		instanceID = "unknown"
	}
	container, err := os.Hostname()
	if err != nil {
		container = "unknown"
	}
	return &Logger{
		Component:  component,
		InstanceID: instanceID,
		Container:  container,
	}
}

// Log writes one entry at the given level.
func (l *Logger) Log(level LogLevel, tenantCode, requestID, message string, fields map[string]interface{}) {
	entry := LogEntry{
		Timestamp:  time.Now().UTC().Format(time.RFC3339Nano),
		Level:      level,
		Component:  l.Component,
		InstanceID: l.InstanceID,
		Container:  l.Container,
		TenantCode: tenantCode,
		RequestID:  requestID,
		Message:    message,
		Fields:     fields,
	}

	jsonBytes, err := json.Marshal(entry)
	if err != nil {
		// A field that cannot marshal must not lose the message.
		log.Printf("ERROR: unmarshalable log entry: %v", err)
		return
	}
	log.Println(string(jsonBytes))
}

// Info logs at INFO.
func (l *Logger) Info(tenantCode, requestID, message string, fields map[string]interface{}) {
	l.Log(INFO, tenantCode, requestID, message, fields)
}

// Error logs at ERROR.
func (l *Logger) Error(tenantCode, requestID, message string, fields map[string]interface{}) {
	l.Log(ERROR, tenantCode, requestID, message, fields)
}

// Warn logs at WARN.
func (l *Logger) Warn(tenantCode, requestID, message string, fields map[string]interface{}) {
	l.Log(WARN, tenantCode, requestID, message, fields)
}

// Debug logs at DEBUG.
func (l *Logger) Debug(tenantCode, requestID, message string, fields map[string]interface{}) {
	l.Log(DEBUG, tenantCode, requestID, message, fields)
}

// ErrorWithCause logs at ERROR with the causing error folded into the fields.
func (l *Logger) ErrorWithCause(tenantCode, requestID, message string, err error, fields map[string]interface{}) {
	if fields == nil {
		fields = make(map[string]interface{})
	}
	if err != nil {
		fields["error"] = err.Error()
	}
	l.Error(tenantCode, requestID, message, fields)
}
