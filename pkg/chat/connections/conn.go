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
	"sync"
	"time"

	"github.com/nats-io/nuid"
	"gopkg.in/tomb.v2"

	"github.com/Roeschstudio/medica-movil-sub004/pkg/chat"
	"github.com/Roeschstudio/medica-movil-sub004/pkg/chat/channel"
	"github.com/Roeschstudio/medica-movil-sub004/pkg/logging"
)

// lifecycleEvent tags a channel lifecycle event with the connect attempt that
// produced it, so events from torn down channels can be discarded.
type lifecycleEvent struct {
	token string
	event channel.Event
}

func newRoomConn(manager *Manager, roomID chat.RoomID, events channel.Events) *roomConn {
	return &roomConn{
		manager:   manager,
		roomID:    roomID,
		events:    events,
		status:    chat.Disconnected,
		lifecycle: make(chan lifecycleEvent, 8),
	}
}

// roomConn runs one room's connection state machine on a dedicated goroutine.
// All status transitions happen on that goroutine - the mutex only guards
// snapshot reads.
type roomConn struct {
	manager *Manager
	roomID  chat.RoomID
	events  channel.Events

	t tomb.Tomb

	// receives lifecycle events from the live channel's callback
	lifecycle chan lifecycleEvent

	mu              sync.Mutex
	status          chat.ConnectionStatus
	attempts        int
	lastConnectedAt time.Time
	ch              channel.Channel
	token           string
}

func (a *roomConn) alive() bool { return a.t.Alive() }

func (a *roomConn) kill() {
	a.t.Kill(nil)
	a.t.Wait()
}

func (a *roomConn) channel() channel.Channel {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.status != chat.Connected {
		return nil
	}
	return a.ch
}

func (a *roomConn) info() chat.ConnectionInfo {
	a.mu.Lock()
	defer a.mu.Unlock()
	return chat.ConnectionInfo{
		RoomID:            a.roomID,
		Status:            a.status,
		ReconnectAttempts: a.attempts,
		LastConnectedAt:   a.lastConnectedAt,
	}
}

func (a *roomConn) run() error {
	defer a.manager.removed(a)
	defer a.teardown()

	a.setStatus(chat.Connecting, nil)
	if err := a.connect(); err != nil {
		if !a.reconnect(err) {
			return nil
		}
	}

	for {
		select {
		case <-a.t.Dying():
			return nil
		case e := <-a.lifecycle:
			if e.token != a.currentToken() {
				continue
			}
			switch e.event.Kind {
			case channel.ERROR, channel.CLOSED:
				if !a.reconnect(e.event.Err) {
					return nil
				}
			}
		}
	}
}

// connect opens a fresh channel and transitions to Connected on success.
// The previous channel, if any, is closed first.
func (a *roomConn) connect() error {
	a.mu.Lock()
	prev := a.ch
	a.ch = nil
	token := nuid.Next()
	a.token = token
	a.mu.Unlock()

	if prev != nil {
		prev.Close()
	}

	ch, err := a.manager.provider.OpenChannel(a.roomID, channel.Events{
		OnMessage: a.events.OnMessage,
		OnSignal:  a.events.OnSignal,
		OnLifecycle: func(e channel.Event) {
			select {
			case a.lifecycle <- lifecycleEvent{token: token, event: e}:
			default:
				// the state machine only needs one pending ERROR/CLOSED
			}
			if a.events.OnLifecycle != nil {
				a.events.OnLifecycle(e)
			}
		},
	})
	if err != nil {
		return err
	}

	a.mu.Lock()
	a.ch = ch
	a.lastConnectedAt = time.Now()
	a.attempts = 0
	a.mu.Unlock()

	a.setStatus(chat.Connected, nil)
	return nil
}

// reconnect runs the backoff loop. It returns false when the connection is
// finished - either killed or the attempt budget was exhausted.
func (a *roomConn) reconnect(cause error) bool {
	a.setStatus(chat.Reconnecting, nil)

	max := a.manager.cfg.MaxReconnectAttempts
	for attempt := 1; attempt <= max; attempt++ {
		a.setAttempts(attempt)
		logger.Info().Str(logging.EVENT, EVENT_RECONNECT).
			Str(logging.ROOM, a.roomID.String()).
			Int(logging.ATTEMPT, attempt).
			Err(cause).
			Msg("")

		timer := time.NewTimer(a.manager.cfg.ReconnectDelay(attempt))
		select {
		case <-a.t.Dying():
			timer.Stop()
			return false
		case <-timer.C:
		}

		err := a.connect()
		if err == nil {
			reconnectsCounter.WithLabelValues(OUTCOME_SUCCESS).Inc()
			return true
		}
		reconnectsCounter.WithLabelValues(OUTCOME_FAILURE).Inc()
		cause = err
	}

	exhausted := &chat.ReconnectExhaustedError{RoomID: a.roomID, Attempts: max, Err: cause}
	reconnectExhaustedCounter.Inc()
	logger.Error().Str(logging.EVENT, EVENT_RECONNECT_EXHAUSTED).
		Str(logging.ROOM, a.roomID.String()).
		Int(logging.ATTEMPT, max).
		Err(cause).
		Msg("")
	a.setStatus(chat.Disconnected, exhausted)
	return false
}

func (a *roomConn) teardown() {
	a.mu.Lock()
	ch := a.ch
	a.ch = nil
	a.token = ""
	status := a.status
	a.mu.Unlock()

	if ch != nil {
		ch.Close()
	}
	if status != chat.Disconnected {
		a.setStatus(chat.Disconnected, nil)
	}
}

// setStatus transitions the connection state machine and notifies listeners
// synchronously. Invalid transitions indicate a bug - they are logged and
// dropped.
func (a *roomConn) setStatus(to chat.ConnectionStatus, err error) {
	a.mu.Lock()
	from := a.status
	if from == to {
		a.mu.Unlock()
		return
	}
	if !from.ValidTransition(to) {
		a.mu.Unlock()
		e := &chat.InvalidStateTransition{From: from, To: to}
		logger.Error().Str(logging.EVENT, EVENT_INVALID_TRANSITION).
			Str(logging.ROOM, a.roomID.String()).
			Err(e).
			Msg("")
		return
	}
	a.status = to
	info := chat.ConnectionInfo{
		RoomID:            a.roomID,
		Status:            to,
		ReconnectAttempts: a.attempts,
		LastConnectedAt:   a.lastConnectedAt,
	}
	a.mu.Unlock()

	if to == chat.Connected {
		connectedRoomsGauge.Inc()
	} else if from == chat.Connected {
		connectedRoomsGauge.Dec()
	}

	logger.Info().Str(logging.EVENT, EVENT_STATUS_CHANGED).
		Str(logging.ROOM, a.roomID.String()).
		Str(logging.STATE, to.String()).
		Msg("")

	a.manager.notify(info, err)
}

func (a *roomConn) setAttempts(attempts int) {
	a.mu.Lock()
	a.attempts = attempts
	a.mu.Unlock()
}

func (a *roomConn) currentToken() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.token
}
