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
	"strings"
	"time"
)

// MessageKind is an enum for the message content kind
type MessageKind int

// MessageKind enum values
const (
	TEXT MessageKind = iota
	IMAGE
	FILE
	VIDEO
	AUDIO
)

func (a MessageKind) String() string {
	switch a {
	case TEXT:
		return "TEXT"
	case IMAGE:
		return "IMAGE"
	case FILE:
		return "FILE"
	case VIDEO:
		return "VIDEO"
	case AUDIO:
		return "AUDIO"
	default:
		panic(fmt.Sprintf("UNKNOWN MESSAGE KIND : %d", a))
	}
}

// KindForContentType maps an attachment content type to the message kind.
// Anything that is not an image, video, or audio type is a plain FILE.
func KindForContentType(contentType string) MessageKind {
	switch {
	case strings.HasPrefix(contentType, "image/"):
		return IMAGE
	case strings.HasPrefix(contentType, "video/"):
		return VIDEO
	case strings.HasPrefix(contentType, "audio/"):
		return AUDIO
	default:
		return FILE
	}
}

// SenderClass is an enum classifying the message sender
type SenderClass int

// SenderClass enum values
const (
	USER SenderClass = iota
	SYSTEM
	ADMIN
)

func (a SenderClass) String() string {
	switch a {
	case USER:
		return "USER"
	case SYSTEM:
		return "SYSTEM"
	case ADMIN:
		return "ADMIN"
	default:
		panic(fmt.Sprintf("UNKNOWN SENDER CLASS : %d", a))
	}
}

// Attachment is the blob store metadata embedded in a non-text message.
// The URL is assigned by the blob store - the file name is opaque metadata.
type Attachment struct {
	URL  string `json:"url"`
	Name string `json:"name"`
	Size int64  `json:"size"`
}

// Message is a persisted chat message.
// Once persisted a message is immutable except for the Read flag.
// SentAt is assigned by the store and is non-decreasing in insertion order
// per room - display order is always SentAt order, never arrival order.
type Message struct {
	ID            MessageID     `json:"id"`
	RoomID        RoomID        `json:"room_id"`
	SenderID      UserID        `json:"sender_id"`
	CorrelationID CorrelationID `json:"correlation_id"`
	Content       string        `json:"content"`
	Kind          MessageKind   `json:"kind"`
	Attachment    *Attachment   `json:"attachment,omitempty"`
	Read          bool          `json:"read"`
	SentAt        time.Time     `json:"sent_at"`
	SenderClass   SenderClass   `json:"sender_class"`

	// Pending marks an optimistic local echo that has not been confirmed
	// persisted yet. Pending messages have no ID and no SentAt.
	Pending bool `json:"pending,omitempty"`
}

// Persisted returns true if the message has been confirmed persisted
func (a *Message) Persisted() bool {
	return !a.Pending && a.ID != ""
}

// QueuedMessage is an outgoing message buffered while the room is not
// connected. It lives only in the offline queue - it is removed on confirmed
// persistence or after exhausting its retry budget, in which case it is
// surfaced as an explicit delivery failure, never silently dropped.
type QueuedMessage struct {
	CorrelationID CorrelationID
	RoomID        RoomID
	SenderID      UserID
	SenderClass   SenderClass
	Content       string
	Kind          MessageKind
	Attachment    *Attachment
	Attempts      int
	EnqueuedAt    time.Time
}

// TypingUser is one entry of a room's typing state.
// It is a liveness lease - entries expire if not refreshed.
type TypingUser struct {
	UserID    UserID
	UserName  string
	Typing    bool
	UpdatedAt time.Time
}

// PresenceEntry is one member of a room's presence set.
// Presence is derived entirely from channel membership - never persisted.
type PresenceEntry struct {
	UserID   UserID
	UserName string
	JoinedAt time.Time
}
