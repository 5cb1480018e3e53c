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

package base

import "errors"

// InitializationError means the control-plane connection could not be
// established within the critical retry budget. Fatal to process startup.
type InitializationError struct {
	Message string
	Cause   error
}

func (e *InitializationError) Error() string {
	if e.Cause != nil {
		return "system database initialization: " + e.Message + " (cause: " + e.Cause.Error() + ")"
	}
	return "system database initialization: " + e.Message
}

func (e *InitializationError) Unwrap() error { return e.Cause }

// NewInitializationError wraps a fatal control-plane failure.
func NewInitializationError(message string, cause error) *InitializationError {
	return &InitializationError{Message: message, Cause: cause}
}

// TenantConnectionError means one tenant's connection could not be established
// or a tenant-database statement failed. Scoped to a single request; other
// tenants are unaffected.
type TenantConnectionError struct {
	Code    TenantCode
	Op      string
	Message string
	Cause   error
}

func (e *TenantConnectionError) Error() string {
	msg := "tenant " + e.Code.String() + ": " + e.Op + ": " + e.Message
	if e.Cause != nil {
		msg += " (cause: " + e.Cause.Error() + ")"
	}
	return msg
}

func (e *TenantConnectionError) Unwrap() error { return e.Cause }

// NewTenantConnectionError wraps a tenant-scoped failure.
func NewTenantConnectionError(code TenantCode, op, message string, cause error) *TenantConnectionError {
	return &TenantConnectionError{Code: code, Op: op, Message: message, Cause: cause}
}

// IsInitializationError reports whether err is (or wraps) an InitializationError.
func IsInitializationError(err error) bool {
	var ie *InitializationError
	return errors.As(err, &ie)
}

// IsTenantConnectionError reports whether err is (or wraps) a TenantConnectionError.
func IsTenantConnectionError(err error) bool {
	var te *TenantConnectionError
	return errors.As(err, &te)
}
