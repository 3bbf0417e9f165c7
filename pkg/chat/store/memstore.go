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

package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Roeschstudio/medica-movil-sub004/pkg/chat"
)

type dupKey struct {
	roomID        chat.RoomID
	senderID      chat.UserID
	correlationID chat.CorrelationID
}

// NewMemMessageStore creates an empty in-memory MessageStore
func NewMemMessageStore() *MemMessageStore {
	return &MemMessageStore{
		messages:   map[chat.RoomID][]chat.Message{},
		index:      map[dupKey]int{},
		lastSentAt: map[chat.RoomID]time.Time{},
	}
}

// MemMessageStore is an in-memory MessageStore.
// Safe for concurrent use.
type MemMessageStore struct {
	mu sync.Mutex

	// per room, ordered by SentAt ascending - inserts are monotonic so
	// append preserves the order
	messages map[chat.RoomID][]chat.Message
	// (room, sender, correlation id) -> index into messages[room]
	index      map[dupKey]int
	lastSentAt map[chat.RoomID]time.Time
}

// SaveMessage implements MessageStore
func (a *MemMessageStore) SaveMessage(ctx context.Context, msg chat.Message) (chat.Message, error) {
	if err := msg.RoomID.Validate(); err != nil {
		return chat.Message{}, err
	}
	if err := msg.SenderID.Validate(); err != nil {
		return chat.Message{}, err
	}
	if err := msg.CorrelationID.Validate(); err != nil {
		return chat.Message{}, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	key := dupKey{roomID: msg.RoomID, senderID: msg.SenderID, correlationID: msg.CorrelationID}
	if i, ok := a.index[key]; ok {
		return a.messages[msg.RoomID][i], ErrDuplicateMessage
	}

	if msg.ID == "" {
		msg.ID = chat.MessageID(uuid.NewString())
	}
	// SentAt is strictly increasing per room even when the clock stalls
	sentAt := time.Now()
	if last := a.lastSentAt[msg.RoomID]; !sentAt.After(last) {
		sentAt = last.Add(time.Nanosecond)
	}
	msg.SentAt = sentAt
	msg.Pending = false
	a.lastSentAt[msg.RoomID] = sentAt

	a.index[key] = len(a.messages[msg.RoomID])
	a.messages[msg.RoomID] = append(a.messages[msg.RoomID], msg)
	return msg, nil
}

// Messages implements MessageStore
func (a *MemMessageStore) Messages(ctx context.Context, roomID chat.RoomID, offset, limit int) ([]chat.Message, error) {
	if err := roomID.Validate(); err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	msgs := a.messages[roomID]
	if offset < 0 {
		offset = 0
	}
	if offset >= len(msgs) {
		return nil, nil
	}
	msgs = msgs[offset:]
	if limit > 0 && limit < len(msgs) {
		msgs = msgs[:limit]
	}
	return append([]chat.Message(nil), msgs...), nil
}

// MarkMessagesAsRead implements MessageStore
func (a *MemMessageStore) MarkMessagesAsRead(ctx context.Context, roomID chat.RoomID, readerID chat.UserID) (int64, error) {
	if err := roomID.Validate(); err != nil {
		return 0, err
	}
	if err := readerID.Validate(); err != nil {
		return 0, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	var updated int64
	msgs := a.messages[roomID]
	for i := range msgs {
		if !msgs[i].Read && msgs[i].SenderID != readerID {
			msgs[i].Read = true
			updated++
		}
	}
	return updated, nil
}

// UnreadCount implements MessageStore
func (a *MemMessageStore) UnreadCount(ctx context.Context, roomID chat.RoomID, userID chat.UserID) (int64, error) {
	if err := roomID.Validate(); err != nil {
		return 0, err
	}
	if err := userID.Validate(); err != nil {
		return 0, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	var count int64
	for _, msg := range a.messages[roomID] {
		if !msg.Read && msg.SenderID != userID {
			count++
		}
	}
	return count, nil
}

// NewMemRoomStore creates an empty in-memory RoomStore
func NewMemRoomStore() *MemRoomStore {
	return &MemRoomStore{rooms: map[chat.RoomID]chat.Room{}}
}

// MemRoomStore is an in-memory RoomStore.
// Safe for concurrent use.
type MemRoomStore struct {
	mu    sync.Mutex
	rooms map[chat.RoomID]chat.Room
}

// Room implements RoomStore
func (a *MemRoomStore) Room(ctx context.Context, roomID chat.RoomID) (chat.Room, error) {
	if err := roomID.Validate(); err != nil {
		return chat.Room{}, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	room, ok := a.rooms[roomID]
	if !ok {
		return chat.Room{}, ErrRoomNotFound
	}
	return room, nil
}

// SaveRoom implements RoomStore
func (a *MemRoomStore) SaveRoom(ctx context.Context, room chat.Room) error {
	if err := room.ID.Validate(); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.rooms[room.ID] = room
	return nil
}

// SetActive implements RoomStore
func (a *MemRoomStore) SetActive(ctx context.Context, roomID chat.RoomID, active bool) (bool, error) {
	if err := roomID.Validate(); err != nil {
		return false, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	room, ok := a.rooms[roomID]
	if !ok {
		return false, ErrRoomNotFound
	}
	if room.Active == active {
		return false, nil
	}
	room.Active = active
	if active {
		room.EndedAt = nil
	} else {
		now := time.Now()
		room.EndedAt = &now
	}
	a.rooms[roomID] = room
	return true, nil
}
