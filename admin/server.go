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

// Package admin exposes the database layer's monitoring and provisioning
// plane: health snapshots, tenant directory lookups, tenant database
// provisioning, and Prometheus metrics. It is the registry's only HTTP
// consumer; the ERP's business routes live elsewhere.
package admin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"shala/platform/dbmanager/base"
	"shala/platform/dbmanager/registry"
	"shala/platform/shared/logger"
	"shala/platform/tenantdir"
)

type contextKey string

const requestIDKey contextKey = "request_id"

// Server wires the admin HTTP surface.
type Server struct {
	manager   *registry.Manager
	directory *tenantdir.Directory
	jwtSecret []byte
	log       *logger.Logger
}

// NewServer builds the admin server. The directory may be nil when Redis is
// not configured; tenant lookups then return 503.
func NewServer(manager *registry.Manager, directory *tenantdir.Directory, jwtSecret []byte, log *logger.Logger) *Server {
	if log == nil {
		log = logger.New("admin")
	}
	return &Server{
		manager:   manager,
		directory: directory,
		jwtSecret: jwtSecret,
		log:       log,
	}
}

// Handler returns the full middleware-wrapped handler.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()

	// Liveness of the admin process itself; no auth so load balancers can
	// probe it.
	r.HandleFunc("/health", s.handleLiveness).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(s.requestIDMiddleware, s.authMiddleware)
	api.HandleFunc("/db/health", s.handleDBHealth).Methods("GET")
	api.HandleFunc("/tenants/{code}", s.handleTenantLookup).Methods("GET")
	api.HandleFunc("/tenants/{code}/provision", s.handleProvision).Methods("POST")
	api.HandleFunc("/tenants/{code}/ping", s.handleTenantPing).Methods("GET")

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"}, // Configure for production
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})
	return c.Handler(r)
}

// requestIDMiddleware attaches a request ID for log correlation.
func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, requestID)))
	})
}

// authMiddleware validates the Bearer token with the shared secret.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			s.writeError(w, r, http.StatusUnauthorized, "missing bearer token")
			return
		}
		tokenString := strings.TrimPrefix(header, "Bearer ")

		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return s.jwtSecret, nil
		})
		if err != nil || !token.Valid {
			s.writeError(w, r, http.StatusUnauthorized, "invalid token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleLiveness(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"service":   "shala-dbmanager",
		"timestamp": time.Now().UTC(),
	})
}

// handleDBHealth returns the registry's health snapshot. Always 200: the
// snapshot itself reports degradation.
func (s *Server) handleDBHealth(w http.ResponseWriter, r *http.Request) {
	snapshot := s.manager.HealthCheck(r.Context())
	s.writeJSON(w, http.StatusOK, snapshot)
}

func (s *Server) handleTenantLookup(w http.ResponseWriter, r *http.Request) {
	code, ok := s.tenantCode(w, r)
	if !ok {
		return
	}
	if s.directory == nil {
		s.writeError(w, r, http.StatusServiceUnavailable, "tenant directory not configured")
		return
	}
	school, err := s.directory.Lookup(r.Context(), code)
	if errors.Is(err, tenantdir.ErrNotFound) {
		s.writeError(w, r, http.StatusNotFound, "unknown tenant")
		return
	}
	if err != nil {
		s.log.ErrorWithCause(code.String(), s.requestID(r), "Tenant directory lookup failed", err, nil)
		s.writeError(w, r, http.StatusServiceUnavailable, "directory unavailable")
		return
	}
	s.writeJSON(w, http.StatusOK, school)
}

// handleProvision ensures the tenant database exists. Idempotent: already
// provisioned reads as 200, a fresh creation as 201.
func (s *Server) handleProvision(w http.ResponseWriter, r *http.Request) {
	code, ok := s.tenantCode(w, r)
	if !ok {
		return
	}

	existed := s.manager.TenantDatabaseExists(r.Context(), code)
	if err := s.manager.CreateTenantDatabase(r.Context(), code); err != nil {
		s.log.ErrorWithCause(code.String(), s.requestID(r), "Tenant provisioning failed", err, nil)
		s.writeError(w, r, http.StatusServiceUnavailable, "provisioning failed")
		return
	}

	status := http.StatusCreated
	if existed {
		status = http.StatusOK
	}
	s.writeJSON(w, status, map[string]interface{}{
		"tenant_code": code,
		"provisioned": true,
		"existed":     existed,
	})
}

// handleTenantPing borrows the tenant's connection the way request middleware
// would, reporting whether the tenant's database is reachable right now.
func (s *Server) handleTenantPing(w http.ResponseWriter, r *http.Request) {
	code, ok := s.tenantCode(w, r)
	if !ok {
		return
	}
	if _, err := s.manager.GetTenant(r.Context(), code); err != nil {
		var tcErr *base.TenantConnectionError
		if errors.As(err, &tcErr) {
			s.writeError(w, r, http.StatusServiceUnavailable, "tenant database unreachable")
			return
		}
		s.writeError(w, r, http.StatusInternalServerError, "unexpected error")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"tenant_code": code,
		"reachable":   true,
	})
}

func (s *Server) tenantCode(w http.ResponseWriter, r *http.Request) (base.TenantCode, bool) {
	code, err := base.ParseTenantCode(mux.Vars(r)["code"])
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, err.Error())
		return "", false
	}
	return code, true
}

func (s *Server) requestID(r *http.Request) string {
	if id, ok := r.Context().Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.log.ErrorWithCause("", "", "Error encoding response", err, nil)
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	s.writeJSON(w, status, map[string]interface{}{
		"error":      message,
		"request_id": s.requestID(r),
	})
}
