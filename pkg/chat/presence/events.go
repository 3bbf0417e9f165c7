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

package presence

import (
	"fmt"

	"github.com/Roeschstudio/medica-movil-sub004/pkg/chat"
	"github.com/Roeschstudio/medica-movil-sub004/pkg/logging"
)

// EventKind is an enum for presence coordinator events
type EventKind int

// EventKind enum values
const (
	// The room's typing set changed
	TYPING_CHANGED EventKind = iota
	// The room's presence set changed
	PRESENCE_CHANGED
)

func (a EventKind) String() string {
	switch a {
	case TYPING_CHANGED:
		return "TYPING_CHANGED"
	case PRESENCE_CHANGED:
		return "PRESENCE_CHANGED"
	default:
		panic(fmt.Sprintf("UNKNOWN EVENT KIND : %d", a))
	}
}

// Event carries the room's full state snapshot for the changed dimension
type Event struct {
	Kind   EventKind
	RoomID chat.RoomID
	// set for TYPING_CHANGED
	Typing []chat.TypingUser
	// set for PRESENCE_CHANGED
	Online []chat.PresenceEntry
}

// Listener receives presence events synchronously.
// Listeners must not block.
type Listener func(Event)

// Subscribe registers a presence event listener. Listeners cannot be
// unregistered - they live as long as the coordinator.
func (a *Coordinator) Subscribe(l Listener) {
	if l == nil {
		return
	}
	a.mu.Lock()
	a.listeners = append(a.listeners, l)
	a.mu.Unlock()
}

func (a *Coordinator) notifyTyping(roomID chat.RoomID) {
	a.notify(Event{Kind: TYPING_CHANGED, RoomID: roomID, Typing: a.TypingUsers(roomID)})
}

func (a *Coordinator) notifyPresence(roomID chat.RoomID) {
	a.notify(Event{Kind: PRESENCE_CHANGED, RoomID: roomID, Online: a.Online(roomID)})
}

func (a *Coordinator) notify(event Event) {
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
