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

package session

import (
	"context"
	"sync"

	"github.com/Roeschstudio/medica-movil-sub004/pkg/chat"
	"github.com/Roeschstudio/medica-movil-sub004/pkg/chat/attachments"
	"github.com/Roeschstudio/medica-movil-sub004/pkg/chat/channel"
	"github.com/Roeschstudio/medica-movil-sub004/pkg/chat/delivery"
	"github.com/Roeschstudio/medica-movil-sub004/pkg/logging"
)

// Session is one user's view of one room. All methods are safe for
// concurrent use and become no-ops returning chat.ErrSessionDestroyed once
// the owning Service is destroyed.
type Session struct {
	svc      *Service
	roomID   chat.RoomID
	userID   chat.UserID
	userName string

	historyOnce sync.Once

	mu        sync.Mutex
	destroyed bool
}

// RoomID is the room the session is bound to
func (a *Session) RoomID() chat.RoomID { return a.roomID }

// UserID is the local user
func (a *Session) UserID() chat.UserID { return a.userID }

// Connect brings up the room connection, announces the user, and loads the
// room history on first connect. Idempotent.
func (a *Session) Connect() error {
	if a.isDestroyed() {
		return chat.ErrSessionDestroyed
	}
	err := a.svc.conns.Connect(a.roomID, channel.Events{
		OnMessage: a.svc.delivery.Accept,
		OnSignal:  a.svc.presence.HandleSignal,
	})
	if err != nil {
		return err
	}
	// the room may already be up - another session connected it first
	if a.svc.conns.Status(a.roomID).Connected() {
		a.announce()
	}
	return nil
}

// onStatus announces the user every time the room (re)connects - peers that
// missed the first join learn about us again, and joins are idempotent.
func (a *Session) onStatus(info chat.ConnectionInfo, err error) {
	if a.isDestroyed() {
		return
	}
	if info.RoomID != a.roomID || !info.Status.Connected() {
		return
	}
	a.announce()
}

func (a *Session) announce() {
	if ch := a.svc.conns.Channel(a.roomID); ch != nil {
		ch.PublishSignal(channel.JoinSignal(a.roomID, a.userID, a.userName))
	}
	a.historyOnce.Do(func() {
		go a.loadHistory()
	})
}

// loadHistory replays the room's persisted messages through the delivery
// service - binary insertion and dedupe make the replay safe against rows
// that arrived over the transport first.
func (a *Session) loadHistory() {
	if _, err := a.svc.delivery.LoadHistory(context.Background(), a.roomID); err != nil {
		logger.Warn().Str(logging.EVENT, EVENT_HISTORY_LOAD_FAILED).
			Str(logging.ROOM, a.roomID.String()).
			Err(err).
			Msg("")
	}
}

// Disconnect says goodbye and tears the room connection down
func (a *Session) Disconnect() error {
	if a.isDestroyed() {
		return chat.ErrSessionDestroyed
	}
	if ch := a.svc.conns.Channel(a.roomID); ch != nil {
		ch.PublishSignal(channel.LeaveSignal(a.roomID, a.userID))
	}
	a.svc.conns.Disconnect(a.roomID)
	return nil
}

// SendMessage sends a text message
func (a *Session) SendMessage(ctx context.Context, content string) (chat.Message, error) {
	if a.isDestroyed() {
		return chat.Message{}, chat.ErrSessionDestroyed
	}
	return a.svc.delivery.Send(ctx, delivery.SendRequest{
		RoomID:   a.roomID,
		SenderID: a.userID,
		Content:  content,
		Kind:     chat.TEXT,
	})
}

// SendFile validates and uploads the file, then sends the message carrying
// it. The message kind follows the content type - image/video/audio/file.
// The caption may be empty.
func (a *Session) SendFile(ctx context.Context, file attachments.File, caption string) (chat.Message, error) {
	if a.isDestroyed() {
		return chat.Message{}, chat.ErrSessionDestroyed
	}
	attachment, err := a.svc.uploader.Upload(ctx, a.roomID, file)
	if err != nil {
		return chat.Message{}, err
	}
	return a.svc.delivery.Send(ctx, delivery.SendRequest{
		RoomID:     a.roomID,
		SenderID:   a.userID,
		Content:    caption,
		Kind:       chat.KindForContentType(file.ContentType),
		Attachment: &attachment,
	})
}

// MarkMessagesAsRead marks the peer's messages read, returning the count
func (a *Session) MarkMessagesAsRead(ctx context.Context) (int64, error) {
	if a.isDestroyed() {
		return 0, chat.ErrSessionDestroyed
	}
	return a.svc.delivery.MarkMessagesAsRead(ctx, a.roomID, a.userID)
}

// UnreadCount returns how many peer messages the user has not read yet
func (a *Session) UnreadCount(ctx context.Context) (int64, error) {
	if a.isDestroyed() {
		return 0, chat.ErrSessionDestroyed
	}
	return a.svc.delivery.UnreadCount(ctx, a.roomID, a.userID)
}

// StartTyping broadcasts the typing indicator - it auto-stops after the
// configured timeout unless refreshed
func (a *Session) StartTyping() error {
	if a.isDestroyed() {
		return chat.ErrSessionDestroyed
	}
	return a.svc.presence.StartTyping(a.roomID, a.userID, a.userName)
}

// StopTyping clears the typing indicator
func (a *Session) StopTyping() error {
	if a.isDestroyed() {
		return chat.ErrSessionDestroyed
	}
	return a.svc.presence.StopTyping(a.roomID, a.userID, a.userName)
}

// Messages returns the room's display list
func (a *Session) Messages() []chat.Message {
	if a.isDestroyed() {
		return nil
	}
	return a.svc.delivery.Messages(a.roomID)
}

// History returns a page of the room's persisted messages, ordered by SentAt
// ascending. A limit <= 0 returns everything from offset onward.
func (a *Session) History(ctx context.Context, offset, limit int) ([]chat.Message, error) {
	if a.isDestroyed() {
		return nil, chat.ErrSessionDestroyed
	}
	return a.svc.delivery.History(ctx, a.roomID, offset, limit)
}

// QueuedMessagesCount returns the room's offline queue depth
func (a *Session) QueuedMessagesCount() int {
	if a.isDestroyed() {
		return 0
	}
	return a.svc.delivery.QueuedCount(a.roomID)
}

// FailedMessages returns messages that exhausted their delivery budget
func (a *Session) FailedMessages() []chat.QueuedMessage {
	if a.isDestroyed() {
		return nil
	}
	return a.svc.delivery.Failed(a.roomID)
}

// Resend puts a failed message back on the queue with a fresh budget
func (a *Session) Resend(correlationID chat.CorrelationID) error {
	if a.isDestroyed() {
		return chat.ErrSessionDestroyed
	}
	return a.svc.delivery.Resend(a.roomID, correlationID)
}

// Status returns the room's connection status
func (a *Session) Status() chat.ConnectionStatus {
	return a.svc.conns.Status(a.roomID)
}

// Online returns the room's presence set
func (a *Session) Online() []chat.PresenceEntry {
	if a.isDestroyed() {
		return nil
	}
	return a.svc.presence.Online(a.roomID)
}

// TypingUsers returns who is typing in the room
func (a *Session) TypingUsers() []chat.TypingUser {
	if a.isDestroyed() {
		return nil
	}
	return a.svc.presence.TypingUsers(a.roomID)
}

func (a *Session) isDestroyed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.destroyed || a.svc.isDestroyed()
}

func (a *Session) markDestroyed() {
	a.mu.Lock()
	a.destroyed = true
	a.mu.Unlock()
}
