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
	"strings"
)

// RoomID identifies a chat room. A room is tied to exactly one appointment.
type RoomID string

// Validate checks that the room id is not blank
func (a RoomID) Validate() error {
	if strings.TrimSpace(string(a)) == "" {
		return ErrRoomIDMustNotBeBlank
	}
	return nil
}

func (a RoomID) String() string { return string(a) }

// UserID identifies a participant - patient, doctor, or admin observer
type UserID string

// Validate checks that the user id is not blank
func (a UserID) Validate() error {
	if strings.TrimSpace(string(a)) == "" {
		return ErrUserIDMustNotBeBlank
	}
	return nil
}

func (a UserID) String() string { return string(a) }

// MessageID identifies a persisted message. It is assigned by the message store.
type MessageID string

func (a MessageID) String() string { return string(a) }

// CorrelationID is the client generated id used to correlate an outgoing
// message with its persisted row. The store enforces uniqueness of
// (room, sender, correlation id), which is what makes resends idempotent.
type CorrelationID string

// Validate checks that the correlation id is not blank
func (a CorrelationID) Validate() error {
	if strings.TrimSpace(string(a)) == "" {
		return ErrCorrelationIDMustNotBeBlank
	}
	return nil
}

func (a CorrelationID) String() string { return string(a) }
