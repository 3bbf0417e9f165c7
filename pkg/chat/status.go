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

package chat

import (
	"fmt"
	"time"
)

// ConnectionStatus is an enum representing the room connection lifecycle state.
//
// Normal life cycle : Disconnected -> Connecting -> Connected
// On channel error or close : Connected -> Reconnecting
// On successful resubscribe : Reconnecting -> Connected
// After the reconnect budget is exhausted : Reconnecting -> Disconnected
type ConnectionStatus int

// ConnectionStatus enum values
const (
	// No live channel for the room. The initial and terminal state.
	Disconnected ConnectionStatus = iota
	// A channel subscribe is in flight.
	Connecting
	// The room has a live subscribed channel.
	Connected
	// The channel dropped and reconnect attempts are running under backoff.
	Reconnecting
)

// Disconnected returns true if the status is Disconnected
func (a ConnectionStatus) Disconnected() bool { return a == Disconnected }

// Connecting returns true if the status is Connecting
func (a ConnectionStatus) Connecting() bool { return a == Connecting }

// Connected returns true if the status is Connected
func (a ConnectionStatus) Connected() bool { return a == Connected }

// Reconnecting returns true if the status is Reconnecting
func (a ConnectionStatus) Reconnecting() bool { return a == Reconnecting }

// ValidTransitions returns the permitted statuses that the current status may transition to
func (a ConnectionStatus) ValidTransitions() (statuses []ConnectionStatus) {
	switch a {
	case Disconnected:
		statuses = []ConnectionStatus{Connecting}
	case Connecting:
		statuses = []ConnectionStatus{Connected, Reconnecting, Disconnected}
	case Connected:
		statuses = []ConnectionStatus{Reconnecting, Disconnected}
	case Reconnecting:
		statuses = []ConnectionStatus{Connected, Disconnected}
	default:
		panic(fmt.Sprintf("Unknown ConnectionStatus : %v", int(a)))
	}
	return
}

// ValidTransition returns true if the status transition is permitted
func (a ConnectionStatus) ValidTransition(to ConnectionStatus) bool {
	for _, status := range a.ValidTransitions() {
		if status == to {
			return true
		}
	}
	return false
}

func (a ConnectionStatus) String() string {
	switch a {
	case Disconnected:
		return "Disconnected"
	case Connecting:
		return "Connecting"
	case Connected:
		return "Connected"
	case Reconnecting:
		return "Reconnecting"
	default:
		panic(fmt.Sprintf("UNKNOWN CONNECTION STATUS : %d", a))
	}
}

// AllConnectionStatuses contains all possible statuses
var AllConnectionStatuses = []ConnectionStatus{Disconnected, Connecting, Connected, Reconnecting}

// ConnectionInfo is a point in time snapshot of a room's connection state.
// Transitions are owned exclusively by the connection manager.
type ConnectionInfo struct {
	RoomID            RoomID
	Status            ConnectionStatus
	ReconnectAttempts int
	LastConnectedAt   time.Time
}
