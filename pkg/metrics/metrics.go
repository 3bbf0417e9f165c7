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
	"github.com/prometheus/client_golang/prometheus"
)

// CounterVecOpts pairs counter opts with label names
type CounterVecOpts struct {
	prometheus.CounterOpts
	Labels []string
}

// GaugeVecOpts pairs gauge opts with label names
type GaugeVecOpts struct {
	prometheus.GaugeOpts
	Labels []string
}

// CounterFQName returns the fully qualified counter metric name
func CounterFQName(opts prometheus.CounterOpts) string {
	return prometheus.BuildFQName(opts.Namespace, opts.Subsystem, opts.Name)
}

// GaugeFQName returns the fully qualified gauge metric name
func GaugeFQName(opts prometheus.GaugeOpts) string {
	return prometheus.BuildFQName(opts.Namespace, opts.Subsystem, opts.Name)
}

// NewCounter creates the Counter and registers it with the global Registry
func NewCounter(opts prometheus.CounterOpts) prometheus.Counter {
	counter := prometheus.NewCounter(opts)
	Registry.MustRegister(counter)
	return counter
}

// NewGauge creates the Gauge and registers it with the global Registry
func NewGauge(opts prometheus.GaugeOpts) prometheus.Gauge {
	gauge := prometheus.NewGauge(opts)
	Registry.MustRegister(gauge)
	return gauge
}

// NewCounterVec creates the CounterVec and registers it with the global Registry
func NewCounterVec(opts *CounterVecOpts) *prometheus.CounterVec {
	vec := prometheus.NewCounterVec(opts.CounterOpts, opts.Labels)
	Registry.MustRegister(vec)
	return vec
}

// NewGaugeVec creates the GaugeVec and registers it with the global Registry
func NewGaugeVec(opts *GaugeVecOpts) *prometheus.GaugeVec {
	vec := prometheus.NewGaugeVec(opts.GaugeOpts, opts.Labels)
	Registry.MustRegister(vec)
	return vec
}
