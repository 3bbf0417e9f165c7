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

// Package channel defines the transport channel adapter contract.
// A Channel wraps a single duplex real-time channel per chat room - it is the
// only component that touches the network. Any pub/sub capable transport
// satisfies the contract - NATS and Redis implementations are provided.
package channel

import (
	"fmt"

	"github.com/Roeschstudio/medica-movil-sub004/pkg/chat"
)

// Topic represents the name of a transport topic
type Topic string

// Validate checks that the topic is not blank
func (a Topic) Validate() error {
	if string(a) == "" {
		return ErrTopicMustNotBeBlank
	}
	return nil
}

func (a Topic) String() string { return string(a) }

// MessagesTopic is the per room topic carrying persisted row change notifications
func MessagesTopic(roomID chat.RoomID) Topic {
	return Topic(fmt.Sprintf("room.%s.messages", roomID))
}

// SignalsTopic is the per room topic carrying ephemeral typing / presence signals
func SignalsTopic(roomID chat.RoomID) Topic {
	return Topic(fmt.Sprintf("room.%s.signals", roomID))
}

// EventKind is an enum for channel lifecycle events
type EventKind int

// EventKind enum values
const (
	// The channel subscription is live.
	SUBSCRIBED EventKind = iota
	// The underlying transport reported an error. The channel may recover or close.
	ERROR
	// The channel is closed and will deliver no further events.
	CLOSED
)

func (a EventKind) String() string {
	switch a {
	case SUBSCRIBED:
		return "SUBSCRIBED"
	case ERROR:
		return "ERROR"
	case CLOSED:
		return "CLOSED"
	default:
		panic(fmt.Sprintf("UNKNOWN EVENT KIND : %d", a))
	}
}

// Event is a channel lifecycle event
type Event struct {
	Kind EventKind
	// set for ERROR events
	Err error
}

// Events are the handler callbacks registered when opening a channel.
// Handlers are invoked from the channel's receive goroutine - implementations
// must not block.
// Nil handlers are permitted and simply drop the corresponding events.
type Events struct {
	// OnMessage delivers a persisted row change notification for the room
	OnMessage func(chat.Message)
	// OnSignal delivers an ephemeral typing / presence signal
	OnSignal func(Signal)
	// OnLifecycle delivers subscribe / error / close notifications
	OnLifecycle func(Event)
}

// Channel wraps a single duplex real-time channel for one chat room.
// A Channel is exclusively owned by one connection - opening a second channel
// for an already subscribed room must tear down the first.
type Channel interface {
	// ID is a unique identifier assigned to the channel for tracking purposes
	ID() string

	// RoomID is the room the channel is bound to
	RoomID() chat.RoomID

	// PublishMessage broadcasts a persisted message to all room subscribers
	PublishMessage(msg chat.Message) error

	// PublishSignal broadcasts an ephemeral signal - fire and forget, no
	// delivery guarantee
	PublishSignal(sig Signal) error

	// Close tears down the subscription. Idempotent.
	Close()

	// Closed tests if the channel has been closed
	Closed() bool
}

// Provider opens channels. One live channel per room per provider.
type Provider interface {
	// OpenChannel subscribes to the room's topics and starts delivering
	// events to the registered handlers. The SUBSCRIBED lifecycle event is
	// delivered once the subscription is live.
	OpenChannel(roomID chat.RoomID, events Events) (Channel, error)

	// Close closes the provider and all channels opened through it
	Close()
}
