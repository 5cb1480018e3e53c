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

import "testing"

func TestParseTenantCode(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"simple", "acme", "acme", false},
		{"with digits", "dps2024", "dps2024", false},
		{"with hyphens", "st-marys", "st-marys", false},
		{"uppercase normalized", "ACME", "acme", false},
		{"surrounding whitespace trimmed", "  acme  ", "acme", false},
		{"over max length", "a" + string(make32()), "", true},
		{"empty", "", "", true},
		{"single char too short", "a", "", true},
		{"leading digit", "9acme", "", true},
		{"leading hyphen", "-acme", "", true},
		{"underscore", "st_marys", "", true},
		{"dot", "acme.prod", "", true},
		{"sql metacharacters", "acme`; DROP DATABASE", "", true},
		{"spaces inside", "acme school", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTenantCode(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ParseTenantCode(%q) = %q, want error", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseTenantCode(%q): %v", tt.input, err)
			}
			if got.String() != tt.want {
				t.Errorf("ParseTenantCode(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

// make32 builds a 32-rune filler so "a"+filler exceeds the 32-char limit.
func make32() []rune {
	r := make([]rune, 32)
	for i := range r {
		r[i] = 'b'
	}
	return r
}

func TestTenantCodeBoundaryLengths(t *testing.T) {
	// Two characters is the shortest legal code, 32 the longest.
	shortest := "ab"
	if _, err := ParseTenantCode(shortest); err != nil {
		t.Errorf("ParseTenantCode(%q): %v", shortest, err)
	}

	longest := "a"
	for len(longest) < 32 {
		longest += "b"
	}
	if _, err := ParseTenantCode(longest); err != nil {
		t.Errorf("ParseTenantCode(%d chars): %v", len(longest), err)
	}
	if _, err := ParseTenantCode(longest + "b"); err == nil {
		t.Errorf("ParseTenantCode(%d chars) succeeded, want error", len(longest)+1)
	}
}

func TestDefaultPoolConfig(t *testing.T) {
	cfg := DefaultPoolConfig()
	if cfg.MaxOpenConns <= 0 {
		t.Error("MaxOpenConns must be positive")
	}
	if cfg.MaxIdleConns > cfg.MaxOpenConns {
		t.Error("MaxIdleConns must not exceed MaxOpenConns")
	}
	if cfg.ConnMaxLifetime <= 0 || cfg.ConnMaxIdleTime <= 0 {
		t.Error("connection age limits must be positive")
	}
}
