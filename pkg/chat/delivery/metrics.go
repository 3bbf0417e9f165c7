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

package delivery

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Roeschstudio/medica-movil-sub004/pkg/metrics"
)

const (
	metricsNamespace = "chat"
	metricsSubsystem = "delivery"
)

// metric label values for the outcome label. Rooms come and go with every
// consult, so delivery metrics are labeled by outcome, never by room.
const (
	OUTCOME_PERSISTED = "persisted"
	OUTCOME_DEDUPED   = "deduped"
	OUTCOME_FAILED    = "failed"
)

var (
	sendRequestsCounter = metrics.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: metricsSubsystem,
		Name:      "send_requests",
		Help:      "Send requests accepted for delivery",
	})

	messagesCounter = metrics.NewCounterVec(&metrics.CounterVecOpts{
		CounterOpts: prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "messages",
			Help:      "Message delivery outcomes",
		},
		Labels: []string{"outcome"},
	})

	queueDepthGauge = metrics.NewGauge(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Subsystem: metricsSubsystem,
		Name:      "queue_depth",
		Help:      "Offline queue depth across all rooms",
	})
)
