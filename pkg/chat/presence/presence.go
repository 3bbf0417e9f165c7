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

// Package presence tracks who is online and who is typing, per room.
//
// Everything here is ephemeral and best effort : state is derived from
// signals on the room's signals topic and is never persisted. Typing entries
// are leases - a janitor prunes entries that stop refreshing, so a peer that
// crashes mid-keystroke does not leave a stuck indicator.
package presence

import (
	"sync"
	"time"

	"gopkg.in/tomb.v2"

	"github.com/Roeschstudio/medica-movil-sub004/pkg/chat"
	"github.com/Roeschstudio/medica-movil-sub004/pkg/chat/channel"
	"github.com/Roeschstudio/medica-movil-sub004/pkg/chat/connections"
	"github.com/Roeschstudio/medica-movil-sub004/pkg/logging"
)

type pkgobject struct{}

var logger = logging.NewPackageLogger(pkgobject{})

// log events
const (
	EVENT_SIGNAL_PUBLISH_FAILED = "signal_publish_failed"
	EVENT_TYPING_PRUNED         = "typing_pruned"
	EVENT_LISTENER_PANIC        = "listener_panic"
)

// NewCoordinator creates the presence coordinator and starts its pruning
// janitor. Destroy stops the janitor.
func NewCoordinator(cfg chat.Config, conns *connections.Manager) *Coordinator {
	a := &Coordinator{
		cfg:   cfg,
		conns: conns,
		rooms: map[chat.RoomID]*roomPresence{},
	}
	a.t.Go(a.janitor)
	return a
}

// Coordinator owns per room typing and presence state.
// Safe for concurrent use.
type Coordinator struct {
	cfg   chat.Config
	conns *connections.Manager

	t tomb.Tomb

	mu        sync.Mutex
	rooms     map[chat.RoomID]*roomPresence
	listeners []Listener
}

type roomPresence struct {
	typing map[chat.UserID]chat.TypingUser
	online map[chat.UserID]chat.PresenceEntry
	// local auto-stop timers, one per local typing user
	stopTimers map[chat.UserID]*time.Timer
}

func (a *Coordinator) room(roomID chat.RoomID) *roomPresence {
	a.mu.Lock()
	defer a.mu.Unlock()
	rp, ok := a.rooms[roomID]
	if !ok {
		rp = &roomPresence{
			typing:     map[chat.UserID]chat.TypingUser{},
			online:     map[chat.UserID]chat.PresenceEntry{},
			stopTimers: map[chat.UserID]*time.Timer{},
		}
		a.rooms[roomID] = rp
	}
	return rp
}

// StartTyping broadcasts that the user is typing and (re)arms the auto-stop
// timer. Callers invoke it on every keystroke - each call refreshes the
// lease, and typing stops automatically TypingTimeout after the last call.
func (a *Coordinator) StartTyping(roomID chat.RoomID, userID chat.UserID, userName string) error {
	if err := roomID.Validate(); err != nil {
		return err
	}
	if err := userID.Validate(); err != nil {
		return err
	}
	if !a.t.Alive() {
		return chat.ErrSessionDestroyed
	}

	rp := a.room(roomID)
	a.mu.Lock()
	if timer, ok := rp.stopTimers[userID]; ok {
		timer.Stop()
	}
	rp.stopTimers[userID] = time.AfterFunc(a.cfg.TypingTimeout, func() {
		a.StopTyping(roomID, userID, userName)
	})
	a.mu.Unlock()

	a.publishTyping(roomID, userID, userName, true)
	return nil
}

// StopTyping broadcasts that the user stopped typing and cancels the
// auto-stop timer. Safe to call when not typing.
func (a *Coordinator) StopTyping(roomID chat.RoomID, userID chat.UserID, userName string) error {
	if err := roomID.Validate(); err != nil {
		return err
	}
	if err := userID.Validate(); err != nil {
		return err
	}

	rp := a.room(roomID)
	a.mu.Lock()
	if timer, ok := rp.stopTimers[userID]; ok {
		timer.Stop()
		delete(rp.stopTimers, userID)
	}
	a.mu.Unlock()

	a.publishTyping(roomID, userID, userName, false)
	return nil
}

func (a *Coordinator) publishTyping(roomID chat.RoomID, userID chat.UserID, userName string, typing bool) {
	ch := a.conns.Channel(roomID)
	if ch == nil {
		// not connected - nothing to tell anyone, typing is best effort
		return
	}
	if err := ch.PublishSignal(channel.TypingSignal(roomID, userID, userName, typing)); err != nil {
		logger.Warn().Str(logging.EVENT, EVENT_SIGNAL_PUBLISH_FAILED).
			Str(logging.ROOM, roomID.String()).
			Str(logging.USER, userID.String()).
			Err(err).
			Msg("")
	}
}

// HandleSignal ingests a signal from the room's signals topic. It is wired
// as the channel's OnSignal handler.
//
// Lease freshness uses local receipt time, not the sender's clock.
func (a *Coordinator) HandleSignal(sig channel.Signal) {
	if !a.t.Alive() {
		return
	}
	if sig.RoomID.Validate() != nil || sig.UserID.Validate() != nil {
		return
	}

	rp := a.room(sig.RoomID)
	switch sig.Kind {
	case channel.TYPING:
		a.mu.Lock()
		changed := a.applyTyping(rp, sig)
		a.mu.Unlock()
		if changed {
			a.notifyTyping(sig.RoomID)
		}
	case channel.JOIN:
		a.mu.Lock()
		_, known := rp.online[sig.UserID]
		if !known {
			rp.online[sig.UserID] = chat.PresenceEntry{
				UserID:   sig.UserID,
				UserName: sig.UserName,
				JoinedAt: time.Now(),
			}
		}
		a.mu.Unlock()
		if !known {
			a.notifyPresence(sig.RoomID)
		}
	case channel.LEAVE:
		a.mu.Lock()
		_, known := rp.online[sig.UserID]
		delete(rp.online, sig.UserID)
		_, typing := rp.typing[sig.UserID]
		delete(rp.typing, sig.UserID)
		a.mu.Unlock()
		if known {
			a.notifyPresence(sig.RoomID)
		}
		if typing {
			a.notifyTyping(sig.RoomID)
		}
	}
}

// applyTyping returns true if the room's typing state changed. Caller holds a.mu.
func (a *Coordinator) applyTyping(rp *roomPresence, sig channel.Signal) bool {
	if sig.Typing {
		rp.typing[sig.UserID] = chat.TypingUser{
			UserID:    sig.UserID,
			UserName:  sig.UserName,
			Typing:    true,
			UpdatedAt: time.Now(),
		}
		return true
	}
	if _, ok := rp.typing[sig.UserID]; !ok {
		return false
	}
	delete(rp.typing, sig.UserID)
	return true
}

// TypingUsers returns a snapshot of who is typing in the room
func (a *Coordinator) TypingUsers(roomID chat.RoomID) []chat.TypingUser {
	rp := a.room(roomID)
	a.mu.Lock()
	defer a.mu.Unlock()
	users := make([]chat.TypingUser, 0, len(rp.typing))
	for _, u := range rp.typing {
		users = append(users, u)
	}
	return users
}

// Online returns a snapshot of the room's presence set
func (a *Coordinator) Online(roomID chat.RoomID) []chat.PresenceEntry {
	rp := a.room(roomID)
	a.mu.Lock()
	defer a.mu.Unlock()
	entries := make([]chat.PresenceEntry, 0, len(rp.online))
	for _, e := range rp.online {
		entries = append(entries, e)
	}
	return entries
}

// TotalOnlineUsers returns the room's presence cardinality
func (a *Coordinator) TotalOnlineUsers(roomID chat.RoomID) int {
	rp := a.room(roomID)
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(rp.online)
}

// janitor prunes typing leases that stopped refreshing - peers that crashed
// or lost connectivity never send their typing=false.
func (a *Coordinator) janitor() error {
	ticker := time.NewTicker(a.cfg.TypingTimeout / 2)
	defer ticker.Stop()
	for {
		select {
		case <-a.t.Dying():
			return nil
		case <-ticker.C:
			a.prune()
		}
	}
}

func (a *Coordinator) prune() {
	cutoff := time.Now().Add(-a.cfg.TypingTimeout)

	var stale []chat.RoomID
	a.mu.Lock()
	for roomID, rp := range a.rooms {
		pruned := false
		for userID, entry := range rp.typing {
			if entry.UpdatedAt.Before(cutoff) {
				delete(rp.typing, userID)
				pruned = true
				logger.Debug().Str(logging.EVENT, EVENT_TYPING_PRUNED).
					Str(logging.ROOM, roomID.String()).
					Str(logging.USER, userID.String()).
					Msg("")
			}
		}
		if pruned {
			stale = append(stale, roomID)
		}
	}
	a.mu.Unlock()

	for _, roomID := range stale {
		a.notifyTyping(roomID)
	}
}

// Destroy stops the janitor and all auto-stop timers. Idempotent.
func (a *Coordinator) Destroy() {
	a.t.Kill(nil)
	a.t.Wait()

	a.mu.Lock()
	for _, rp := range a.rooms {
		for userID, timer := range rp.stopTimers {
			timer.Stop()
			delete(rp.stopTimers, userID)
		}
	}
	a.mu.Unlock()
}
