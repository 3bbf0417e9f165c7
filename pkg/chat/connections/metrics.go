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

package connections

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Roeschstudio/medica-movil-sub004/pkg/metrics"
)

const (
	metricsNamespace = "chat"
	metricsSubsystem = "conn"
)

// metric label values for the outcome label. Rooms come and go with every
// consult, so connection metrics are labeled by outcome, never by room.
const (
	OUTCOME_SUCCESS = "success"
	OUTCOME_FAILURE = "failure"
)

var (
	connectedRoomsGauge = metrics.NewGauge(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Subsystem: metricsSubsystem,
		Name:      "connected_rooms",
		Help:      "Number of rooms currently in the Connected state",
	})

	reconnectsCounter = metrics.NewCounterVec(&metrics.CounterVecOpts{
		CounterOpts: prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "reconnects",
			Help:      "Reconnect attempts by outcome",
		},
		Labels: []string{"outcome"},
	})

	reconnectExhaustedCounter = metrics.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: metricsSubsystem,
		Name:      "reconnect_exhausted",
		Help:      "Reconnect cycles that exhausted the attempt budget",
	})
)
