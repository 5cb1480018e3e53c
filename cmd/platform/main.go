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

package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"

	"shala/platform/admin"
	"shala/platform/dbmanager/config"
	"shala/platform/dbmanager/metrics"
	"shala/platform/dbmanager/mysql"
	"shala/platform/dbmanager/registry"
	"shala/platform/shared/logger"
	"shala/platform/tenantdir"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	appLog := logger.New("platform")

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	creds, err := config.ResolveCredentials(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("credentials: %v", err)
	}

	dialer, err := mysql.NewDialer(mysql.Config{
		Host:           cfg.Database.Host,
		Port:           cfg.Database.Port,
		Username:       creds.Username,
		Password:       creds.Password,
		SystemDatabase: cfg.Database.SystemDatabase,
		TenantPrefix:   cfg.Database.TenantPrefix,
		Charset:        cfg.Database.Charset,
		Collation:      cfg.Database.Collation,
		Pool:           cfg.Database.Pool,
	})
	if err != nil {
		log.Fatalf("dialer: %v", err)
	}

	m := metrics.New(prometheus.DefaultRegisterer)
	manager := registry.NewManager(dialer, cfg.Registry, logger.New("dbmanager"), m)

	// Fail fast: a dead control plane aborts startup rather than serving
	// with a broken system connection.
	if _, err := manager.GetSystem(ctx); err != nil {
		log.Fatalf("system database: %v", err)
	}

	var directory *tenantdir.Directory
	redisAddr := config.GetEnv("REDIS_URL", cfg.Redis.Addr)
	if redisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     redisAddr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := client.Ping(pingCtx).Err(); err != nil {
			appLog.Warn("", "", "Redis unreachable, tenant directory cache disabled", map[string]interface{}{
				"addr":  redisAddr,
				"error": err.Error(),
			})
			client = nil
		}
		cancel()
		directory = tenantdir.New(client, tenantdir.SystemLoader(manager.GetSystem), cfg.Redis.CacheTTL, logger.New("tenantdir"))
	}

	server := admin.NewServer(manager, directory, []byte(os.Getenv("JWT_SECRET")), logger.New("admin"))
	httpServer := &http.Server{
		Addr:    cfg.Admin.ListenAddr,
		Handler: server.Handler(),
	}

	monitor := admin.NewMonitor(manager, cfg.Admin.ConnectionWarnThreshold, cfg.Admin.MonitorInterval, logger.New("admin"))
	go monitor.Run(ctx)

	go func() {
		appLog.Info("", "", "Admin server listening", map[string]interface{}{
			"addr": cfg.Admin.ListenAddr,
		})
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server: %v", err)
		}
	}()

	<-ctx.Done()
	appLog.Info("", "", "Shutting down", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		appLog.ErrorWithCause("", "", "HTTP server shutdown error", err, nil)
	}
	manager.CloseAll(shutdownCtx)
}
