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

// Package redischannel implements the channel.Provider contract on top of
// Redis pub/sub. One Redis client per provider, one pub/sub subscription per
// room covering both room topics.
//
// The client's internal retries are capped - sustained connection loss
// surfaces as an ERROR lifecycle event and the connection manager owns
// reconnect policy from there.
package redischannel

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nuid"
	"github.com/redis/go-redis/v9"
	"gopkg.in/tomb.v2"

	"github.com/Roeschstudio/medica-movil-sub004/pkg/chat"
	"github.com/Roeschstudio/medica-movil-sub004/pkg/chat/channel"
	"github.com/Roeschstudio/medica-movil-sub004/pkg/logging"
)

type pkgobject struct{}

var logger = logging.NewPackageLogger(pkgobject{})

// log events
const (
	EVENT_SUB_LOST   = "sub_lost"
	EVENT_DECODE_ERR = "decode_err"
)

// DefaultDialTimeout is the default timeout used when creating the Redis connection
const DefaultDialTimeout = 5 * time.Second

// NewProvider connects to the Redis server and returns a channel provider.
// The connection is verified with a PING before the provider is returned.
func NewProvider(opts *redis.Options) (*Provider, error) {
	if opts.DialTimeout == 0 {
		opts.DialTimeout = DefaultDialTimeout
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), opts.DialTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, &chat.NetworkError{Err: err}
	}

	return &Provider{
		client:   client,
		channels: map[chat.RoomID]*redisChannel{},
	}, nil
}

// Provider implements channel.Provider on top of a single Redis client
type Provider struct {
	mu sync.Mutex

	client   *redis.Client
	channels map[chat.RoomID]*redisChannel
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

	ch := &redisChannel{
		id:       nuid.Next(),
		roomID:   roomID,
		provider: a,
		events:   events,
	}

	ctx := context.Background()
	pubsub := a.client.Subscribe(ctx,
		channel.MessagesTopic(roomID).String(),
		channel.SignalsTopic(roomID).String(),
	)
	// wait for the server to ack both subscriptions before reporting SUBSCRIBED
	for i := 0; i < 2; i++ {
		if _, err := pubsub.Receive(ctx); err != nil {
			pubsub.Close()
			return nil, &chat.NetworkError{Err: err}
		}
	}
	ch.pubsub = pubsub

	a.mu.Lock()
	a.channels[roomID] = ch
	a.mu.Unlock()

	ch.t.Go(ch.receive)
	ch.deliverLifecycle(channel.Event{Kind: channel.SUBSCRIBED})
	return ch, nil
}

// Close implements channel.Provider - it closes all channels and the Redis client
func (a *Provider) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	chans := make([]*redisChannel, 0, len(a.channels))
	for _, ch := range a.channels {
		chans = append(chans, ch)
	}
	a.mu.Unlock()

	for _, ch := range chans {
		ch.Close()
	}
	a.client.Close()
}

// Connected reports whether the Redis server currently answers a PING
func (a *Provider) Connected() bool {
	ctx, cancel := context.WithTimeout(context.Background(), DefaultDialTimeout)
	defer cancel()
	return a.client.Ping(ctx).Err() == nil
}

func (a *Provider) remove(ch *redisChannel) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.channels[ch.roomID] == ch {
		delete(a.channels, ch.roomID)
	}
}

type redisChannel struct {
	id       string
	roomID   chat.RoomID
	provider *Provider
	events   channel.Events

	pubsub *redis.PubSub
	t      tomb.Tomb

	mu     sync.Mutex
	closed bool
}

func (a *redisChannel) ID() string { return a.id }

func (a *redisChannel) RoomID() chat.RoomID { return a.roomID }

// receive pumps pub/sub traffic into the event callbacks. The go-redis
// message channel closes when the subscription dies, which is reported as an
// ERROR lifecycle event unless the channel was closed on purpose.
//
// Teardown on stream loss runs inline - waiting on the tomb from its own
// goroutine would deadlock, so this path must never call Close.
func (a *redisChannel) receive() error {
	msgs := a.pubsub.Channel()
	for {
		select {
		case <-a.t.Dying():
			return nil
		case m, ok := <-msgs:
			if !ok {
				if a.markClosed() {
					logger.Warn().Str(logging.EVENT, EVENT_SUB_LOST).Str(logging.ROOM, a.roomID.String()).Msg("")
					a.deliverLifecycle(channel.Event{Kind: channel.ERROR, Err: &chat.NetworkError{Err: channel.ErrChannelIsClosed}})
					a.t.Kill(nil)
					a.pubsub.Close()
					a.teardown()
				}
				return nil
			}
			a.dispatch(m)
		}
	}
}

func (a *redisChannel) dispatch(m *redis.Message) {
	if a.Closed() {
		return
	}
	switch {
	case strings.HasSuffix(m.Channel, ".messages"):
		msg, err := channel.DecodeMessage([]byte(m.Payload))
		if err != nil {
			logger.Error().Str(logging.EVENT, EVENT_DECODE_ERR).Str(logging.TOPIC, m.Channel).Err(err).Msg("")
			return
		}
		messagesReceivedCounter.Inc()
		if a.events.OnMessage != nil {
			a.events.OnMessage(msg)
		}
	case strings.HasSuffix(m.Channel, ".signals"):
		sig, err := channel.DecodeSignal([]byte(m.Payload))
		if err != nil {
			logger.Error().Str(logging.EVENT, EVENT_DECODE_ERR).Str(logging.TOPIC, m.Channel).Err(err).Msg("")
			return
		}
		if a.events.OnSignal != nil {
			a.events.OnSignal(sig)
		}
	}
}

func (a *redisChannel) PublishMessage(msg chat.Message) error {
	if a.Closed() {
		return channel.ErrChannelIsClosed
	}
	data, err := channel.EncodeMessage(msg)
	if err != nil {
		return err
	}
	if err := a.provider.client.Publish(context.Background(), channel.MessagesTopic(a.roomID).String(), data).Err(); err != nil {
		return &chat.NetworkError{Err: err}
	}
	messagesPublishedCounter.Inc()
	return nil
}

func (a *redisChannel) PublishSignal(sig channel.Signal) error {
	if a.Closed() {
		return channel.ErrChannelIsClosed
	}
	data, err := channel.EncodeSignal(sig)
	if err != nil {
		return err
	}
	if err := a.provider.client.Publish(context.Background(), channel.SignalsTopic(a.roomID).String(), data).Err(); err != nil {
		return &chat.NetworkError{Err: err}
	}
	signalsPublishedCounter.Inc()
	return nil
}

// Close is safe to call from any goroutine except the receive pump - it
// waits for the pump to exit before reporting CLOSED.
func (a *redisChannel) Close() {
	if !a.markClosed() {
		return
	}
	a.t.Kill(nil)
	a.pubsub.Close()
	a.t.Wait()
	a.teardown()
}

// markClosed flips the closed flag. Returns false when already closed.
func (a *redisChannel) markClosed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return false
	}
	a.closed = true
	return true
}

func (a *redisChannel) teardown() {
	a.provider.remove(a)
	a.deliverLifecycle(channel.Event{Kind: channel.CLOSED})
}

func (a *redisChannel) Closed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.closed
}

func (a *redisChannel) deliverLifecycle(event channel.Event) {
	if a.events.OnLifecycle != nil {
		a.events.OnLifecycle(event)
	}
}
