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

package metrics_test

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Roeschstudio/medica-movil-sub004/pkg/metrics"
)

func gatheredValue(t *testing.T, name string) float64 {
	t.Helper()
	families, err := metrics.Registry.Gather()
	if err != nil {
		t.Fatalf("Gather failed : %v", err)
	}
	for _, family := range families {
		if family.GetName() == name {
			m := family.GetMetric()[0]
			if m.GetCounter() != nil {
				return m.GetCounter().GetValue()
			}
			return m.GetGauge().GetValue()
		}
	}
	t.Fatalf("metric %q not registered", name)
	return 0
}

func TestNewCounterVec(t *testing.T) {
	metrics.ResetRegistry()
	defer metrics.ResetRegistry()

	counter := metrics.NewCounterVec(&metrics.CounterVecOpts{
		CounterOpts: prometheus.CounterOpts{
			Namespace: "test",
			Subsystem: "metrics",
			Name:      "counter",
			Help:      "test counter",
		},
		Labels: []string{"room"},
	})
	counter.WithLabelValues("room-1").Inc()
	counter.WithLabelValues("room-1").Inc()

	if value := gatheredValue(t, "test_metrics_counter"); value != 2 {
		t.Errorf("expected 2 : %v", value)
	}
}

func TestHealthCheck(t *testing.T) {
	metrics.ResetRegistry()
	defer metrics.ResetRegistry()

	var fail error
	check := metrics.NewHealthCheck(prometheus.GaugeOpts{
		Namespace: "test",
		Name:      "healthcheck",
		Help:      "test health check",
	}, time.Minute, func() error { return fail })

	if check.Name() != "test_healthcheck" {
		t.Errorf("unexpected name : %q", check.Name())
	}
	if check.RunInterval() != time.Minute {
		t.Errorf("unexpected interval : %v", check.RunInterval())
	}
	if check.LastResult() != nil {
		t.Error("the check never ran")
	}

	result := check.Run()
	if !result.Success() {
		t.Errorf("expected success : %v", result.Err)
	}
	if value := gatheredValue(t, "test_healthcheck"); value != 1 {
		t.Errorf("a passing check sets the gauge to 1 : %v", value)
	}

	fail = errors.New("down")
	result = check.Run()
	if result.Success() {
		t.Error("expected failure")
	}
	if value := gatheredValue(t, "test_healthcheck"); value != 0 {
		t.Errorf("a failing check sets the gauge to 0 : %v", value)
	}
	if last := check.LastResult(); last != result {
		t.Error("LastResult must return the latest run")
	}
}
