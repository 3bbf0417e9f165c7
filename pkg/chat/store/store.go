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

// Package store defines the persistence contracts for chat messages and
// rooms, plus an in-memory implementation used by tests and by the embedded
// mode of the delivery service. The postgres implementation lives in the
// pgstore subpackage.
//
// SaveMessage is the idempotency anchor : messages are unique per
// (room, sender, correlation id), and saving a duplicate returns the existing
// row together with ErrDuplicateMessage. Callers treat a duplicate as
// success - resending after an ambiguous failure is therefore always safe.
package store

import (
	"context"
	"errors"

	"github.com/Roeschstudio/medica-movil-sub004/pkg/chat"
)

var (
	// ErrDuplicateMessage signals that a message with the same
	// (room, sender, correlation id) already exists. SaveMessage returns the
	// existing row alongside this error.
	ErrDuplicateMessage = errors.New("message already exists for (room, sender, correlation id)")

	// ErrRoomNotFound signals an unknown room id
	ErrRoomNotFound = errors.New("room not found")
)

// MessageStore persists chat messages.
//
// Implementations assign the authoritative SentAt timestamp on insert and
// guarantee that SentAt is strictly increasing per room - client clocks are
// never trusted for ordering.
type MessageStore interface {
	// SaveMessage persists the message, assigning its ID (when blank) and its
	// SentAt timestamp, and returns the persisted row.
	// Saving a message whose (room, sender, correlation id) already exists
	// returns the existing row and ErrDuplicateMessage.
	SaveMessage(ctx context.Context, msg chat.Message) (chat.Message, error)

	// Messages returns the room's messages ordered by SentAt ascending,
	// skipping the first offset rows and returning at most limit rows.
	// A limit <= 0 returns everything from offset onward; an offset past the
	// end returns an empty result.
	Messages(ctx context.Context, roomID chat.RoomID, offset, limit int) ([]chat.Message, error)

	// MarkMessagesAsRead marks every message in the room not sent by the
	// reader as read, returning the number of rows updated.
	MarkMessagesAsRead(ctx context.Context, roomID chat.RoomID, readerID chat.UserID) (int64, error)

	// UnreadCount counts the room's unread messages that were not sent by the user
	UnreadCount(ctx context.Context, roomID chat.RoomID, userID chat.UserID) (int64, error)
}

// RoomStore persists chat rooms. Room membership and authorization are owned
// upstream - this store only tracks the room rows the chat core needs.
type RoomStore interface {
	// Room returns the room - ErrRoomNotFound if the id is unknown
	Room(ctx context.Context, roomID chat.RoomID) (chat.Room, error)

	// SaveRoom upserts the room
	SaveRoom(ctx context.Context, room chat.Room) error

	// SetActive flips the room's Active flag. It returns true if the flag
	// actually changed - callers use this to emit open / close system
	// messages exactly once per transition.
	SetActive(ctx context.Context, roomID chat.RoomID, active bool) (bool, error)
}
