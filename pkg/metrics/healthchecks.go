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

package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// HealthCheck represents a health check metric mapped to a prometheus gauge, where
//	0 = FAIL
//	1 = PASS
type HealthCheck interface {
	// Name is the health check gauge name
	Name() string

	// Help provides information about this health check
	Help() string

	// Run executes the health check and updates the gauge.
	// It is safe to run concurrently - it is protected by a mutex.
	Run() *HealthCheckResult

	// LastResult returns the result from the latest run - nil if the check never ran
	LastResult() *HealthCheckResult

	// RunInterval is the interval the health check is meant to be scheduled at
	RunInterval() time.Duration
}

// RunHealthCheck runs the health check - a non-nil error means the check failed
type RunHealthCheck func() error

// HealthCheckResult is the result of running the health check
type HealthCheckResult struct {
	// why the health check failed - nil on success
	Err error

	// when the run started
	time.Time

	// how long the run took
	time.Duration
}

// Success returns true if the health check passed
func (a *HealthCheckResult) Success() bool { return a.Err == nil }

// NewHealthCheck creates a HealthCheck backed by a gauge registered with the global Registry
func NewHealthCheck(opts prometheus.GaugeOpts, runInterval time.Duration, check RunHealthCheck) HealthCheck {
	gauge := prometheus.NewGauge(opts)
	Registry.MustRegister(gauge)
	return &healthcheck{
		name:        GaugeFQName(opts),
		help:        opts.Help,
		gauge:       gauge,
		runInterval: runInterval,
		check:       check,
	}
}

type healthcheck struct {
	mutex sync.Mutex

	name string
	help string

	gauge       prometheus.Gauge
	runInterval time.Duration
	check       RunHealthCheck

	lastResult *HealthCheckResult
}

func (a *healthcheck) Name() string { return a.name }

func (a *healthcheck) Help() string { return a.help }

func (a *healthcheck) RunInterval() time.Duration { return a.runInterval }

func (a *healthcheck) Run() *HealthCheckResult {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	start := time.Now()
	err := a.check()
	result := &HealthCheckResult{Err: err, Time: start, Duration: time.Since(start)}
	if result.Success() {
		a.gauge.Set(1)
	} else {
		a.gauge.Set(0)
	}
	a.lastResult = result
	return result
}

func (a *healthcheck) LastResult() *HealthCheckResult {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	return a.lastResult
}
