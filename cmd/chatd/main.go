// Copyright (c) 2026 Medica Movil
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// chatd hosts the chat delivery subsystem : NATS channels, postgres
// persistence, S3 attachments, prometheus metrics and health checks.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Roeschstudio/medica-movil-sub004/pkg/chat/attachments"
	"github.com/Roeschstudio/medica-movil-sub004/pkg/chat/channel/natschannel"
	"github.com/Roeschstudio/medica-movil-sub004/pkg/chat/session"
	"github.com/Roeschstudio/medica-movil-sub004/pkg/chat/store/pgstore"
	"github.com/Roeschstudio/medica-movil-sub004/pkg/commons"
	"github.com/Roeschstudio/medica-movil-sub004/pkg/logging"
	"github.com/Roeschstudio/medica-movil-sub004/pkg/metrics"
)

type pkgobject struct{}

var logger = logging.NewPackageLogger(pkgobject{})

// log events
const (
	EVENT_STARTING      = "starting"
	EVENT_STARTED       = "started"
	EVENT_STOPPING      = "stopping"
	EVENT_STOPPED       = "stopped"
	EVENT_FATAL         = "fatal"
	EVENT_HEALTHCHECK   = "healthcheck"
	EVENT_HTTP_SERVER   = "http_server"
	EVENT_SIGNAL_CAUGHT = "signal_caught"
)

const (
	healthCheckInterval = 15 * time.Second
	healthCheckTimeout  = 5 * time.Second
	shutdownTimeout     = 10 * time.Second
)

func main() {
	configPath := flag.String("config", "chatd.yaml", "path to the yaml config file")
	flag.Parse()

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		logger.Error().Str(logging.EVENT, EVENT_FATAL).Err(err).Msg("")
		os.Exit(1)
	}
	logger.Info().Str(logging.EVENT, EVENT_STARTING).Str("addr", cfg.Server.Addr).Msg("")

	ctx := context.Background()

	pool, err := pgxpool.New(ctx, cfg.Database.DSN)
	if err != nil {
		logger.Error().Str(logging.EVENT, EVENT_FATAL).Err(err).Msg("")
		os.Exit(1)
	}
	defer pool.Close()
	if err := pgstore.EnsureSchema(ctx, pool); err != nil {
		logger.Error().Str(logging.EVENT, EVENT_FATAL).Err(err).Msg("")
		os.Exit(1)
	}
	messages, rooms := pgstore.New(pool)

	provider, err := natschannel.NewProvider(cfg.NATS.URL)
	if err != nil {
		logger.Error().Str(logging.EVENT, EVENT_FATAL).Err(err).Msg("")
		os.Exit(1)
	}
	defer provider.Close()

	blobs, err := attachments.NewS3Store(cfg.Storage)
	if err != nil {
		logger.Error().Str(logging.EVENT, EVENT_FATAL).Err(err).Msg("")
		os.Exit(1)
	}

	svc := session.New(cfg.Chat, session.Dependencies{
		Provider: provider,
		Messages: messages,
		Rooms:    rooms,
		Blobs:    blobs,
	})
	defer svc.Destroy()

	checks := []metrics.HealthCheck{
		metrics.NewHealthCheck(prometheus.GaugeOpts{
			Namespace: "chatd",
			Name:      "nats_healthcheck",
			Help:      "Whether the NATS connection is alive",
		}, healthCheckInterval, func() error {
			if !provider.Connected() {
				return &natsDownError{}
			}
			return nil
		}),
		metrics.NewHealthCheck(prometheus.GaugeOpts{
			Namespace: "chatd",
			Name:      "postgres_healthcheck",
			Help:      "Whether postgres answers a ping",
		}, healthCheckInterval, func() error {
			pingCtx, cancel := context.WithTimeout(context.Background(), healthCheckTimeout)
			defer cancel()
			return pool.Ping(pingCtx)
		}),
	}
	stopChecks := scheduleHealthChecks(checks)
	defer stopChecks()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		for _, check := range checks {
			result := check.LastResult()
			if result == nil {
				result = check.Run()
			}
			if !result.Success() {
				logger.Warn().Str(logging.EVENT, EVENT_HEALTHCHECK).Str("check", check.Name()).Err(result.Err).Msg("")
				http.Error(w, check.Name()+" : "+result.Err.Error(), http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	server := &http.Server{Addr: cfg.Server.Addr, Handler: mux}
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.ListenAndServe()
	}()
	logger.Info().Str(logging.EVENT, EVENT_STARTED).Msg("")

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigs:
		logger.Info().Str(logging.EVENT, EVENT_SIGNAL_CAUGHT).Str("signal", sig.String()).Msg("")
	case err := <-serverErr:
		logger.Error().Str(logging.EVENT, EVENT_HTTP_SERVER).Err(err).Msg("")
	}

	logger.Info().Str(logging.EVENT, EVENT_STOPPING).Msg("")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Str(logging.EVENT, EVENT_HTTP_SERVER).Err(err).Msg("")
	}
	svc.Destroy()
	logger.Info().Str(logging.EVENT, EVENT_STOPPED).Msg("")
}

// scheduleHealthChecks runs each check at its RunInterval until the returned
// stop func is called
func scheduleHealthChecks(checks []metrics.HealthCheck) (stop func()) {
	done := make(chan struct{})
	for _, check := range checks {
		go func(check metrics.HealthCheck) {
			check.Run()
			ticker := time.NewTicker(check.RunInterval())
			defer ticker.Stop()
			for {
				select {
				case <-done:
					return
				case <-ticker.C:
					check.Run()
				}
			}
		}(check)
	}
	// safe to call more than once
	return func() { commons.CloseQuietly(done) }
}

type natsDownError struct{}

func (a *natsDownError) Error() string { return "nats connection is down" }
