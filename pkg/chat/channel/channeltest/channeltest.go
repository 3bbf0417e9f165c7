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

// Package channeltest provides an in-memory channel.Provider for tests, with
// fault injection : failing subscribes, dropping channels, and injecting
// out of order traffic. Delivery is synchronous, which keeps tests
// deterministic.
package channeltest

import (
	"sync"

	"github.com/nats-io/nuid"

	"github.com/Roeschstudio/medica-movil-sub004/pkg/chat"
	"github.com/Roeschstudio/medica-movil-sub004/pkg/chat/channel"
)

// Bus is the shared in-memory transport all providers attach to.
// Every message published to a room is delivered to every open channel for
// that room, including the publisher's own - real pub/sub transports behave
// the same way.
type Bus struct {
	mu sync.Mutex

	channels map[chat.RoomID][]*Channel

	// remaining forced OpenChannel failures per room
	failOpens map[chat.RoomID]int
	// drop the next n published messages per room without delivering
	dropMessages map[chat.RoomID]int
}

// NewBus creates a new in-memory bus
func NewBus() *Bus {
	return &Bus{
		channels:     map[chat.RoomID][]*Channel{},
		failOpens:    map[chat.RoomID]int{},
		dropMessages: map[chat.RoomID]int{},
	}
}

// NewProvider attaches a new provider to the bus. Each participant in a test
// gets its own provider, the way each client process owns its own transport
// connection.
func (a *Bus) NewProvider() *Provider {
	return &Provider{bus: a, channels: map[chat.RoomID]*Channel{}}
}

// FailNextOpens forces the next n OpenChannel calls for the room to fail
func (a *Bus) FailNextOpens(roomID chat.RoomID, n int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.failOpens[roomID] = n
}

// DropNextMessages drops the next n published messages for the room
func (a *Bus) DropNextMessages(roomID chat.RoomID, n int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.dropMessages[roomID] = n
}

// KillRoom simulates a transport drop : every open channel for the room
// receives an ERROR lifecycle event followed by CLOSED, and is closed.
func (a *Bus) KillRoom(roomID chat.RoomID, err error) {
	a.mu.Lock()
	victims := append([]*Channel(nil), a.channels[roomID]...)
	a.mu.Unlock()

	for _, ch := range victims {
		ch.fail(err)
	}
}

// OpenChannelCount returns the number of live channels for the room across all providers
func (a *Bus) OpenChannelCount(roomID chat.RoomID) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.channels[roomID])
}

// InjectMessage delivers a persisted row notification to every open channel
// for the room, bypassing any publisher. Used to simulate out of order
// arrival from the transport.
func (a *Bus) InjectMessage(roomID chat.RoomID, msg chat.Message) {
	a.broadcastMessage(roomID, msg, nil)
}

// InjectSignal delivers an ephemeral signal to every open channel for the room
func (a *Bus) InjectSignal(roomID chat.RoomID, sig channel.Signal) {
	a.broadcastSignal(roomID, sig)
}

func (a *Bus) register(ch *Channel) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.channels[ch.roomID] = append(a.channels[ch.roomID], ch)
}

func (a *Bus) unregister(ch *Channel) {
	a.mu.Lock()
	defer a.mu.Unlock()
	chans := a.channels[ch.roomID]
	for i, c := range chans {
		if c == ch {
			a.channels[ch.roomID] = append(chans[:i], chans[i+1:]...)
			return
		}
	}
}

func (a *Bus) takeFailOpen(roomID chat.RoomID) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.failOpens[roomID] > 0 {
		a.failOpens[roomID]--
		return true
	}
	return false
}

func (a *Bus) broadcastMessage(roomID chat.RoomID, msg chat.Message, from *Channel) {
	a.mu.Lock()
	if a.dropMessages[roomID] > 0 {
		a.dropMessages[roomID]--
		a.mu.Unlock()
		return
	}
	targets := append([]*Channel(nil), a.channels[roomID]...)
	a.mu.Unlock()

	// round trip through the wire codec the way a real transport would
	data, err := channel.EncodeMessage(msg)
	if err != nil {
		return
	}
	for _, ch := range targets {
		decoded, err := channel.DecodeMessage(data)
		if err != nil {
			continue
		}
		ch.deliverMessage(decoded)
	}
}

func (a *Bus) broadcastSignal(roomID chat.RoomID, sig channel.Signal) {
	a.mu.Lock()
	targets := append([]*Channel(nil), a.channels[roomID]...)
	a.mu.Unlock()

	data, err := channel.EncodeSignal(sig)
	if err != nil {
		return
	}
	for _, ch := range targets {
		decoded, err := channel.DecodeSignal(data)
		if err != nil {
			continue
		}
		ch.deliverSignal(decoded)
	}
}

// Provider implements channel.Provider on top of the bus
type Provider struct {
	mu       sync.Mutex
	bus      *Bus
	channels map[chat.RoomID]*Channel
	closed   bool
}

// OpenChannel implements channel.Provider.
// Opening a channel for an already subscribed room tears down the first.
func (a *Provider) OpenChannel(roomID chat.RoomID, events channel.Events) (channel.Channel, error) {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil, channel.ErrChannelIsClosed
	}
	prev := a.channels[roomID]
	a.mu.Unlock()

	if prev != nil {
		prev.Close()
	}

	if a.bus.takeFailOpen(roomID) {
		return nil, &chat.NetworkError{Err: channel.ErrChannelIsClosed}
	}

	ch := &Channel{
		id:       nuid.Next(),
		roomID:   roomID,
		bus:      a.bus,
		provider: a,
		events:   events,
	}

	a.mu.Lock()
	a.channels[roomID] = ch
	a.mu.Unlock()
	a.bus.register(ch)

	ch.deliverLifecycle(channel.Event{Kind: channel.SUBSCRIBED})
	return ch, nil
}

// Close implements channel.Provider
func (a *Provider) Close() {
	a.mu.Lock()
	a.closed = true
	chans := make([]*Channel, 0, len(a.channels))
	for _, ch := range a.channels {
		chans = append(chans, ch)
	}
	a.mu.Unlock()

	for _, ch := range chans {
		ch.Close()
	}
}

func (a *Provider) remove(ch *Channel) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.channels[ch.roomID] == ch {
		delete(a.channels, ch.roomID)
	}
}

// Channel implements channel.Channel on top of the bus
type Channel struct {
	id       string
	roomID   chat.RoomID
	bus      *Bus
	provider *Provider
	events   channel.Events

	mu     sync.Mutex
	closed bool
}

// ID implements channel.Channel
func (a *Channel) ID() string { return a.id }

// RoomID implements channel.Channel
func (a *Channel) RoomID() chat.RoomID { return a.roomID }

// PublishMessage implements channel.Channel
func (a *Channel) PublishMessage(msg chat.Message) error {
	if a.Closed() {
		return channel.ErrChannelIsClosed
	}
	a.bus.broadcastMessage(a.roomID, msg, a)
	return nil
}

// PublishSignal implements channel.Channel
func (a *Channel) PublishSignal(sig channel.Signal) error {
	if a.Closed() {
		return channel.ErrChannelIsClosed
	}
	a.bus.broadcastSignal(a.roomID, sig)
	return nil
}

// Close implements channel.Channel
func (a *Channel) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	a.mu.Unlock()

	a.bus.unregister(a)
	a.provider.remove(a)
	a.deliverLifecycle(channel.Event{Kind: channel.CLOSED})
}

// Closed implements channel.Channel
func (a *Channel) Closed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.closed
}

// fail simulates a transport level failure on this channel
func (a *Channel) fail(err error) {
	a.deliverLifecycle(channel.Event{Kind: channel.ERROR, Err: err})
	a.Close()
}

func (a *Channel) deliverMessage(msg chat.Message) {
	if a.Closed() {
		return
	}
	if a.events.OnMessage != nil {
		a.events.OnMessage(msg)
	}
}

func (a *Channel) deliverSignal(sig channel.Signal) {
	if a.Closed() {
		return
	}
	if a.events.OnSignal != nil {
		a.events.OnSignal(sig)
	}
}

func (a *Channel) deliverLifecycle(event channel.Event) {
	if a.events.OnLifecycle != nil {
		a.events.OnLifecycle(event)
	}
}
