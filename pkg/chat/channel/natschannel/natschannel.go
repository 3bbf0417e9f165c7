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

// Package natschannel implements the channel.Provider contract on top of NATS.
// One NATS connection per provider, one pair of topic subscriptions per room.
//
// The NATS client's own reconnect machinery is disabled - reconnect policy is
// owned by the connection manager, which reacts to channel lifecycle events.
package natschannel

import (
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nuid"

	"github.com/Roeschstudio/medica-movil-sub004/pkg/chat"
	"github.com/Roeschstudio/medica-movil-sub004/pkg/chat/channel"
	"github.com/Roeschstudio/medica-movil-sub004/pkg/logging"
)

type pkgobject struct{}

var logger = logging.NewPackageLogger(pkgobject{})

// log events
const (
	EVENT_CONN_DISCONNECT = "conn_disconnect"
	EVENT_CONN_CLOSED     = "conn_closed"
	EVENT_SUB_ERR         = "sub_err"
	EVENT_DECODE_ERR      = "decode_err"
)

// log fields
const (
	CHANNEL_ID = "channel_id"
)

// connect options
var (
	// DefaultConnectTimeout is the default timeout used when creating the NATS connection
	DefaultConnectTimeout = nats.Timeout(5 * time.Second)
	// NoReconnect disables the client's internal reconnect - the connection
	// manager owns reconnect policy
	NoReconnect = nats.NoReconnect()
)

// NewProvider connects to the NATS server and returns a channel provider.
// Additional options are applied after the defaults.
func NewProvider(url string, options ...nats.Option) (*Provider, error) {
	p := &Provider{channels: map[chat.RoomID]*natsChannel{}}

	opts := append([]nats.Option{DefaultConnectTimeout, NoReconnect}, options...)
	opts = append(opts,
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.Warn().Str(logging.EVENT, EVENT_CONN_DISCONNECT).Err(err).Msg("")
			p.fanout(channel.Event{Kind: channel.ERROR, Err: &chat.NetworkError{Err: err}})
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			logger.Info().Str(logging.EVENT, EVENT_CONN_CLOSED).Msg("")
			p.closeAll()
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			event := logger.Error().Str(logging.EVENT, EVENT_SUB_ERR).Err(err)
			if sub != nil {
				event.Str(logging.TOPIC, sub.Subject)
			}
			event.Msg("")
		}),
	)

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, &chat.NetworkError{Err: err}
	}
	p.nc = nc
	return p, nil
}

// Provider implements channel.Provider on top of a single NATS connection
type Provider struct {
	mu sync.Mutex

	nc       *nats.Conn
	channels map[chat.RoomID]*natsChannel
	closed   bool
}

// OpenChannel implements channel.Provider.
// Opening a channel for an already subscribed room tears down the first.
func (a *Provider) OpenChannel(roomID chat.RoomID, events channel.Events) (channel.Channel, error) {
	if err := roomID.Validate(); err != nil {
		return nil, err
	}

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

	ch := &natsChannel{
		id:       nuid.Next(),
		roomID:   roomID,
		provider: a,
		events:   events,
	}

	msgSub, err := a.nc.Subscribe(channel.MessagesTopic(roomID).String(), func(m *nats.Msg) {
		msg, err := channel.DecodeMessage(m.Data)
		if err != nil {
			logger.Error().Str(logging.EVENT, EVENT_DECODE_ERR).Str(logging.TOPIC, m.Subject).Err(err).Msg("")
			return
		}
		ch.deliverMessage(msg)
	})
	if err != nil {
		return nil, &chat.NetworkError{Err: err}
	}

	sigSub, err := a.nc.Subscribe(channel.SignalsTopic(roomID).String(), func(m *nats.Msg) {
		sig, err := channel.DecodeSignal(m.Data)
		if err != nil {
			logger.Error().Str(logging.EVENT, EVENT_DECODE_ERR).Str(logging.TOPIC, m.Subject).Err(err).Msg("")
			return
		}
		ch.deliverSignal(sig)
	})
	if err != nil {
		msgSub.Unsubscribe()
		return nil, &chat.NetworkError{Err: err}
	}

	// make sure the server has processed the subscriptions before reporting SUBSCRIBED
	if err := a.nc.Flush(); err != nil {
		msgSub.Unsubscribe()
		sigSub.Unsubscribe()
		return nil, &chat.NetworkError{Err: err}
	}

	ch.msgSub = msgSub
	ch.sigSub = sigSub

	a.mu.Lock()
	a.channels[roomID] = ch
	a.mu.Unlock()

	ch.deliverLifecycle(channel.Event{Kind: channel.SUBSCRIBED})
	return ch, nil
}

// Close implements channel.Provider - it closes all channels and the NATS connection
func (a *Provider) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	a.mu.Unlock()

	a.closeAll()
	a.nc.Close()
}

// Connected reports whether the underlying NATS connection is alive
func (a *Provider) Connected() bool {
	return a.nc.IsConnected()
}

func (a *Provider) closeAll() {
	a.mu.Lock()
	chans := make([]*natsChannel, 0, len(a.channels))
	for _, ch := range a.channels {
		chans = append(chans, ch)
	}
	a.mu.Unlock()

	for _, ch := range chans {
		ch.Close()
	}
}

func (a *Provider) fanout(event channel.Event) {
	a.mu.Lock()
	chans := make([]*natsChannel, 0, len(a.channels))
	for _, ch := range a.channels {
		chans = append(chans, ch)
	}
	a.mu.Unlock()

	for _, ch := range chans {
		ch.deliverLifecycle(event)
	}
}

func (a *Provider) remove(ch *natsChannel) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.channels[ch.roomID] == ch {
		delete(a.channels, ch.roomID)
	}
}

type natsChannel struct {
	id       string
	roomID   chat.RoomID
	provider *Provider
	events   channel.Events

	msgSub *nats.Subscription
	sigSub *nats.Subscription

	mu     sync.Mutex
	closed bool
}

func (a *natsChannel) ID() string { return a.id }

func (a *natsChannel) RoomID() chat.RoomID { return a.roomID }

func (a *natsChannel) PublishMessage(msg chat.Message) error {
	if a.Closed() {
		return channel.ErrChannelIsClosed
	}
	data, err := channel.EncodeMessage(msg)
	if err != nil {
		return err
	}
	if err := a.provider.nc.Publish(channel.MessagesTopic(a.roomID).String(), data); err != nil {
		return &chat.NetworkError{Err: err}
	}
	messagesPublishedCounter.Inc()
	return nil
}

func (a *natsChannel) PublishSignal(sig channel.Signal) error {
	if a.Closed() {
		return channel.ErrChannelIsClosed
	}
	data, err := channel.EncodeSignal(sig)
	if err != nil {
		return err
	}
	if err := a.provider.nc.Publish(channel.SignalsTopic(a.roomID).String(), data); err != nil {
		return &chat.NetworkError{Err: err}
	}
	signalsPublishedCounter.Inc()
	return nil
}

func (a *natsChannel) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	a.mu.Unlock()

	if a.msgSub != nil {
		a.msgSub.Unsubscribe()
	}
	if a.sigSub != nil {
		a.sigSub.Unsubscribe()
	}
	a.provider.remove(a)
	a.deliverLifecycle(channel.Event{Kind: channel.CLOSED})
}

func (a *natsChannel) Closed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.closed
}

func (a *natsChannel) deliverMessage(msg chat.Message) {
	if a.Closed() {
		return
	}
	messagesReceivedCounter.Inc()
	if a.events.OnMessage != nil {
		a.events.OnMessage(msg)
	}
}

func (a *natsChannel) deliverSignal(sig channel.Signal) {
	if a.Closed() {
		return
	}
	if a.events.OnSignal != nil {
		a.events.OnSignal(sig)
	}
}

func (a *natsChannel) deliverLifecycle(event channel.Event) {
	if a.events.OnLifecycle != nil {
		a.events.OnLifecycle(event)
	}
}
