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

package redischannel

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Roeschstudio/medica-movil-sub004/pkg/metrics"
)

const (
	metricsNamespace = "chat"
	metricsSubsystem = "redis"
)

var (
	messagesPublishedCounter = metrics.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: metricsSubsystem,
		Name:      "messages_published",
		Help:      "Chat messages published to Redis",
	})

	messagesReceivedCounter = metrics.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: metricsSubsystem,
		Name:      "messages_received",
		Help:      "Chat messages received from Redis",
	})

	signalsPublishedCounter = metrics.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: metricsSubsystem,
		Name:      "signals_published",
		Help:      "Ephemeral signals published to Redis",
	})
)
