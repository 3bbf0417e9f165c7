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
	"fmt"

	"github.com/Roeschstudio/medica-movil-sub004/pkg/chat"
	"github.com/Roeschstudio/medica-movil-sub004/pkg/logging"
)

// EventKind is an enum for delivery service events
type EventKind int

// EventKind enum values
const (
	// A persisted message entered the room's display list
	MESSAGE_RECEIVED EventKind = iota
	// A message exhausted its delivery budget and landed in the failed list
	MESSAGE_FAILED
	// The room's offline queue drained to empty
	QUEUE_DRAINED
)

func (a EventKind) String() string {
	switch a {
	case MESSAGE_RECEIVED:
		return "MESSAGE_RECEIVED"
	case MESSAGE_FAILED:
		return "MESSAGE_FAILED"
	case QUEUE_DRAINED:
		return "QUEUE_DRAINED"
	default:
		panic(fmt.Sprintf("UNKNOWN EVENT KIND : %d", a))
	}
}

// Event is a delivery service notification
type Event struct {
	Kind   EventKind
	RoomID chat.RoomID
	// set for MESSAGE_RECEIVED
	Message chat.Message
	// set for MESSAGE_FAILED
	Queued *chat.QueuedMessage
	Err    error
}

// Listener receives delivery events synchronously.
// Listeners must not block.
type Listener func(Event)

// Subscribe registers a delivery event listener. Listeners cannot be
// unregistered - they live as long as the service.
func (a *Service) Subscribe(l Listener) {
	if l == nil {
		return
	}
	a.mu.Lock()
	a.listeners = append(a.listeners, l)
	a.mu.Unlock()
}

func (a *Service) notify(event Event) {
	a.mu.Lock()
	listeners := make([]Listener, len(a.listeners))
	copy(listeners, a.listeners)
	a.mu.Unlock()

	for _, l := range listeners {
		func() {
			defer func() {
				if p := recover(); p != nil {
					logger.Error().Str(logging.EVENT, EVENT_LISTENER_PANIC).
						Str(logging.ROOM, event.RoomID.String()).
						Msgf("%v", p)
				}
			}()
			l(event)
		}()
	}
}
