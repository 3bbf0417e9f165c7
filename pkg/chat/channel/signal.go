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

package channel

import (
	"fmt"
	"time"

	"github.com/Roeschstudio/medica-movil-sub004/pkg/chat"
)

// SignalKind is an enum for ephemeral signal kinds
type SignalKind int

// SignalKind enum values
const (
	// A participant started or stopped typing. Typing signals are leases -
	// peers expire them locally if no refresh arrives.
	TYPING SignalKind = iota
	// A participant's channel joined the room
	JOIN
	// A participant's channel left the room
	LEAVE
)

func (a SignalKind) String() string {
	switch a {
	case TYPING:
		return "TYPING"
	case JOIN:
		return "JOIN"
	case LEAVE:
		return "LEAVE"
	default:
		panic(fmt.Sprintf("UNKNOWN SIGNAL KIND : %d", a))
	}
}

// Signal is an ephemeral message with no persistence guarantee and no
// delivery guarantee. Losing a signal has no correctness consequence beyond a
// transient UI glitch.
type Signal struct {
	Kind     SignalKind  `json:"kind"`
	RoomID   chat.RoomID `json:"room_id"`
	UserID   chat.UserID `json:"user_id"`
	UserName string      `json:"user_name,omitempty"`
	Typing   bool        `json:"typing,omitempty"`
	At       time.Time   `json:"at"`
}

// TypingSignal builds a typing signal for the user
func TypingSignal(roomID chat.RoomID, userID chat.UserID, userName string, typing bool) Signal {
	return Signal{
		Kind:     TYPING,
		RoomID:   roomID,
		UserID:   userID,
		UserName: userName,
		Typing:   typing,
		At:       time.Now(),
	}
}

// JoinSignal builds a presence join signal for the user
func JoinSignal(roomID chat.RoomID, userID chat.UserID, userName string) Signal {
	return Signal{Kind: JOIN, RoomID: roomID, UserID: userID, UserName: userName, At: time.Now()}
}

// LeaveSignal builds a presence leave signal for the user
func LeaveSignal(roomID chat.RoomID, userID chat.UserID) Signal {
	return Signal{Kind: LEAVE, RoomID: roomID, UserID: userID, At: time.Now()}
}
