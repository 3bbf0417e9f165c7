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

// Package connections owns the per room connection state machine.
//
// The manager is the single writer for connection status - every transition
// flows through it, and listeners observe a serialized stream of transitions
// per room. Reconnects run under exponential backoff with a bounded attempt
// budget; once the budget is exhausted the room is left Disconnected and the
// failure is reported to listeners.
package connections

import (
	"sync"
	"time"

	"github.com/Roeschstudio/medica-movil-sub004/pkg/chat"
	"github.com/Roeschstudio/medica-movil-sub004/pkg/chat/channel"
	"github.com/Roeschstudio/medica-movil-sub004/pkg/logging"
)

type pkgobject struct{}

var logger = logging.NewPackageLogger(pkgobject{})

// log events
const (
	EVENT_STATUS_CHANGED      = "status_changed"
	EVENT_INVALID_TRANSITION  = "invalid_transition"
	EVENT_RECONNECT           = "reconnect"
	EVENT_RECONNECT_EXHAUSTED = "reconnect_exhausted"
	EVENT_LISTENER_PANIC      = "listener_panic"
)

// StatusListener is notified synchronously on every connection status change.
// err is non-nil only when the reconnect budget was exhausted - it will be a
// *chat.ReconnectExhaustedError.
// Listeners must not block - they are invoked from the connection goroutine.
type StatusListener func(info chat.ConnectionInfo, err error)

// NewManager creates a connection manager that opens channels through the
// given provider.
func NewManager(cfg chat.Config, provider channel.Provider) *Manager {
	return &Manager{
		cfg:      cfg,
		provider: provider,
		conns:    map[chat.RoomID]*roomConn{},
	}
}

// Manager owns all room connections opened through it.
type Manager struct {
	cfg      chat.Config
	provider channel.Provider

	mu        sync.Mutex
	conns     map[chat.RoomID]*roomConn
	listeners []StatusListener
	destroyed bool
}

// Connect establishes the room connection. It is idempotent - connecting an
// already connected (or connecting / reconnecting) room is a no-op.
// The caller's event handlers receive the room's message and signal traffic
// for the lifetime of the connection, across reconnects.
func (a *Manager) Connect(roomID chat.RoomID, events channel.Events) error {
	if err := roomID.Validate(); err != nil {
		return err
	}

	a.mu.Lock()
	if a.destroyed {
		a.mu.Unlock()
		return chat.ErrSessionDestroyed
	}
	if conn, ok := a.conns[roomID]; ok && conn.alive() {
		a.mu.Unlock()
		return nil
	}
	conn := newRoomConn(a, roomID, events)
	a.conns[roomID] = conn
	a.mu.Unlock()

	conn.t.Go(conn.run)
	return nil
}

// Disconnect tears down the room connection. Idempotent - disconnecting an
// unknown room is a no-op. It blocks until the connection goroutine exits.
func (a *Manager) Disconnect(roomID chat.RoomID) {
	a.mu.Lock()
	conn := a.conns[roomID]
	delete(a.conns, roomID)
	a.mu.Unlock()

	if conn != nil {
		conn.kill()
	}
}

// Channel returns the room's live channel - nil unless the room is Connected.
func (a *Manager) Channel(roomID chat.RoomID) channel.Channel {
	a.mu.Lock()
	conn := a.conns[roomID]
	a.mu.Unlock()
	if conn == nil {
		return nil
	}
	return conn.channel()
}

// Status returns the room's current connection status.
// Unknown rooms are Disconnected.
func (a *Manager) Status(roomID chat.RoomID) chat.ConnectionStatus {
	return a.Info(roomID).Status
}

// Info returns a point in time snapshot of the room's connection state
func (a *Manager) Info(roomID chat.RoomID) chat.ConnectionInfo {
	a.mu.Lock()
	conn := a.conns[roomID]
	a.mu.Unlock()
	if conn == nil {
		return chat.ConnectionInfo{RoomID: roomID, Status: chat.Disconnected}
	}
	return conn.info()
}

// ReconnectAttempts returns how many reconnect attempts the current reconnect
// cycle has consumed - 0 when the room is Connected.
func (a *Manager) ReconnectAttempts(roomID chat.RoomID) int {
	return a.Info(roomID).ReconnectAttempts
}

// LastConnectedAt returns when the room last reached Connected - the zero
// time if it never connected.
func (a *Manager) LastConnectedAt(roomID chat.RoomID) time.Time {
	return a.Info(roomID).LastConnectedAt
}

// Subscribe registers a status listener. Listeners cannot be unregistered -
// they live as long as the manager.
func (a *Manager) Subscribe(l StatusListener) {
	if l == nil {
		return
	}
	a.mu.Lock()
	a.listeners = append(a.listeners, l)
	a.mu.Unlock()
}

// ConnectedRoomCount returns the number of rooms currently Connected
func (a *Manager) ConnectedRoomCount() int {
	a.mu.Lock()
	conns := make([]*roomConn, 0, len(a.conns))
	for _, conn := range a.conns {
		conns = append(conns, conn)
	}
	a.mu.Unlock()

	count := 0
	for _, conn := range conns {
		if conn.info().Status.Connected() {
			count++
		}
	}
	return count
}

// Destroy disconnects all rooms and rejects further Connect calls. Idempotent.
func (a *Manager) Destroy() {
	a.mu.Lock()
	if a.destroyed {
		a.mu.Unlock()
		return
	}
	a.destroyed = true
	conns := make([]*roomConn, 0, len(a.conns))
	for _, conn := range a.conns {
		conns = append(conns, conn)
	}
	a.conns = map[chat.RoomID]*roomConn{}
	a.mu.Unlock()

	for _, conn := range conns {
		conn.kill()
	}
}

func (a *Manager) notify(info chat.ConnectionInfo, err error) {
	a.mu.Lock()
	listeners := make([]StatusListener, len(a.listeners))
	copy(listeners, a.listeners)
	a.mu.Unlock()

	for _, l := range listeners {
		func() {
			defer func() {
				if p := recover(); p != nil {
					logger.Error().Str(logging.EVENT, EVENT_LISTENER_PANIC).
						Str(logging.ROOM, info.RoomID.String()).
						Msgf("%v", p)
				}
			}()
			l(info, err)
		}()
	}
}

func (a *Manager) removed(conn *roomConn) {
	a.mu.Lock()
	if a.conns[conn.roomID] == conn {
		delete(a.conns, conn.roomID)
	}
	a.mu.Unlock()
}
