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

// Package session is the lifecycle facade over the chat delivery subsystem.
//
// A Service owns the shared components - connection manager, delivery
// service, presence coordinator, uploader - and hands out one Session per
// (room, user). The Session wires the room's transport events into the right
// components, announces the user's presence, and loads the room history on
// first connect. Destroying the service tears everything down synchronously;
// calls after destroy are no-ops returning chat.ErrSessionDestroyed.
package session

import (
	"context"
	"sync"

	"github.com/Roeschstudio/medica-movil-sub004/pkg/chat"
	"github.com/Roeschstudio/medica-movil-sub004/pkg/chat/attachments"
	"github.com/Roeschstudio/medica-movil-sub004/pkg/chat/channel"
	"github.com/Roeschstudio/medica-movil-sub004/pkg/chat/connections"
	"github.com/Roeschstudio/medica-movil-sub004/pkg/chat/delivery"
	"github.com/Roeschstudio/medica-movil-sub004/pkg/chat/presence"
	"github.com/Roeschstudio/medica-movil-sub004/pkg/chat/store"
	"github.com/Roeschstudio/medica-movil-sub004/pkg/logging"
)

type pkgobject struct{}

var logger = logging.NewPackageLogger(pkgobject{})

// log events
const (
	EVENT_HISTORY_LOAD_FAILED = "history_load_failed"
	EVENT_SYSTEM_NOTICE       = "system_notice"
)

// SystemSenderID is the pseudo user system notices are written under
const SystemSenderID = chat.UserID("system")

// room lifecycle notices
const (
	noticeRoomClosed   = "La consulta ha finalizado."
	noticeRoomReopened = "La consulta ha sido reabierta."
)

// Dependencies are the infrastructure collaborators a Service is built from
type Dependencies struct {
	Provider channel.Provider
	Messages store.MessageStore
	Rooms    store.RoomStore
	Blobs    attachments.BlobStore
}

// New wires up the full chat delivery subsystem
func New(cfg chat.Config, deps Dependencies) *Service {
	conns := connections.NewManager(cfg, deps.Provider)
	return &Service{
		cfg:      cfg,
		rooms:    deps.Rooms,
		conns:    conns,
		delivery: delivery.New(cfg, delivery.Dependencies{Messages: deps.Messages, Rooms: deps.Rooms, Connections: conns}),
		presence: presence.NewCoordinator(cfg, conns),
		uploader: attachments.NewUploader(cfg, deps.Blobs),
		sessions: map[sessionKey]*Session{},
	}
}

// Service owns the chat delivery subsystem's components and the live sessions
type Service struct {
	cfg      chat.Config
	rooms    store.RoomStore
	conns    *connections.Manager
	delivery *delivery.Service
	presence *presence.Coordinator
	uploader *attachments.Uploader

	mu        sync.Mutex
	sessions  map[sessionKey]*Session
	destroyed bool
}

type sessionKey struct {
	roomID chat.RoomID
	userID chat.UserID
}

// Session returns the user's session for the room, creating it on first use.
// Sessions are cached per (room, user).
func (a *Service) Session(roomID chat.RoomID, userID chat.UserID, userName string) (*Session, error) {
	if err := roomID.Validate(); err != nil {
		return nil, err
	}
	if err := userID.Validate(); err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.destroyed {
		return nil, chat.ErrSessionDestroyed
	}

	key := sessionKey{roomID: roomID, userID: userID}
	if s, ok := a.sessions[key]; ok {
		return s, nil
	}
	s := &Session{svc: a, roomID: roomID, userID: userID, userName: userName}
	a.conns.Subscribe(s.onStatus)
	a.sessions[key] = s
	return s, nil
}

// SubscribeDelivery registers a delivery event listener
func (a *Service) SubscribeDelivery(l delivery.Listener) { a.delivery.Subscribe(l) }

// SubscribePresence registers a presence event listener
func (a *Service) SubscribePresence(l presence.Listener) { a.presence.Subscribe(l) }

// SubscribeStatus registers a connection status listener
func (a *Service) SubscribeStatus(l connections.StatusListener) { a.conns.Subscribe(l) }

// SetRoomActive opens or closes the room. A real transition writes a SYSTEM
// notice into the room so both participants see when the consultation ended
// or was reopened.
func (a *Service) SetRoomActive(ctx context.Context, roomID chat.RoomID, active bool) error {
	if a.isDestroyed() {
		return chat.ErrSessionDestroyed
	}
	changed, err := a.rooms.SetActive(ctx, roomID, active)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}

	notice := noticeRoomClosed
	if active {
		notice = noticeRoomReopened
	}
	logger.Info().Str(logging.EVENT, EVENT_SYSTEM_NOTICE).
		Str(logging.ROOM, roomID.String()).
		Str(logging.STATE, notice).
		Msg("")

	_, err = a.delivery.Send(ctx, delivery.SendRequest{
		RoomID:      roomID,
		SenderID:    SystemSenderID,
		SenderClass: chat.SYSTEM,
		Content:     notice,
		Kind:        chat.TEXT,
	})
	return err
}

// Destroy tears the whole subsystem down : presence janitor, queue timers,
// connections. Idempotent, synchronous.
func (a *Service) Destroy() {
	a.mu.Lock()
	if a.destroyed {
		a.mu.Unlock()
		return
	}
	a.destroyed = true
	sessions := make([]*Session, 0, len(a.sessions))
	for _, s := range a.sessions {
		sessions = append(sessions, s)
	}
	a.sessions = map[sessionKey]*Session{}
	a.mu.Unlock()

	for _, s := range sessions {
		s.markDestroyed()
	}
	a.presence.Destroy()
	a.delivery.Destroy()
	a.conns.Destroy()
}

func (a *Service) isDestroyed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.destroyed
}
