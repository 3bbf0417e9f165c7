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

package redischannel_test

import (
	"os"
	"testing"
	"time"

	"github.com/nats-io/nuid"
	"github.com/redis/go-redis/v9"

	"github.com/Roeschstudio/medica-movil-sub004/pkg/chat"
	"github.com/Roeschstudio/medica-movil-sub004/pkg/chat/channel"
	"github.com/Roeschstudio/medica-movil-sub004/pkg/chat/channel/redischannel"
)

// The tests require a real Redis - they are skipped unless
// CHATD_TEST_REDIS_ADDR is set, e.g.
//
//	CHATD_TEST_REDIS_ADDR="localhost:6379" go test ./pkg/chat/channel/redischannel/...
func testProvider(t *testing.T) *redischannel.Provider {
	t.Helper()
	addr := os.Getenv("CHATD_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("CHATD_TEST_REDIS_ADDR not set")
	}
	p, err := redischannel.NewProvider(&redis.Options{Addr: addr})
	if err != nil {
		t.Fatalf("NewProvider failed : %v", err)
	}
	t.Cleanup(p.Close)
	return p
}

type recorder struct {
	messages  chan chat.Message
	signals   chan channel.Signal
	lifecycle chan channel.Event
}

func newRecorder() *recorder {
	return &recorder{
		messages:  make(chan chat.Message, 16),
		signals:   make(chan channel.Signal, 16),
		lifecycle: make(chan channel.Event, 16),
	}
}

func (a *recorder) events() channel.Events {
	return channel.Events{
		OnMessage:   func(msg chat.Message) { a.messages <- msg },
		OnSignal:    func(sig channel.Signal) { a.signals <- sig },
		OnLifecycle: func(e channel.Event) { a.lifecycle <- e },
	}
}

func (a *recorder) waitLifecycle(t *testing.T, kind channel.EventKind) {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case e := <-a.lifecycle:
			if e.Kind == kind {
				return
			}
		case <-timeout:
			t.Fatalf("timed out waiting for lifecycle event %v", kind)
		}
	}
}

func TestPublishMessageRoundTrip(t *testing.T) {
	sender := testProvider(t)
	receiver := testProvider(t)
	room := chat.RoomID("room-" + nuid.Next())

	senderRec, receiverRec := newRecorder(), newRecorder()
	senderCh, err := sender.OpenChannel(room, senderRec.events())
	if err != nil {
		t.Fatalf("OpenChannel failed : %v", err)
	}
	if _, err := receiver.OpenChannel(room, receiverRec.events()); err != nil {
		t.Fatalf("OpenChannel failed : %v", err)
	}
	senderRec.waitLifecycle(t, channel.SUBSCRIBED)
	receiverRec.waitLifecycle(t, channel.SUBSCRIBED)

	sent := chat.Message{
		ID:            "msg-1",
		RoomID:        room,
		SenderID:      "patient",
		SenderClass:   chat.USER,
		CorrelationID: "corr-1",
		Content:       "hola doctor",
		Kind:          chat.TEXT,
		SentAt:        time.Now().UTC().Truncate(time.Microsecond),
	}
	if err := senderCh.PublishMessage(sent); err != nil {
		t.Fatalf("PublishMessage failed : %v", err)
	}

	select {
	case got := <-receiverRec.messages:
		if got.ID != sent.ID || got.Content != sent.Content || !got.SentAt.Equal(sent.SentAt) {
			t.Errorf("message mangled on the wire : %+v != %+v", got, sent)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for the message")
	}
}

func TestPublishSignalRoundTrip(t *testing.T) {
	p := testProvider(t)
	room := chat.RoomID("room-" + nuid.Next())

	rec := newRecorder()
	ch, err := p.OpenChannel(room, rec.events())
	if err != nil {
		t.Fatalf("OpenChannel failed : %v", err)
	}
	rec.waitLifecycle(t, channel.SUBSCRIBED)

	if err := ch.PublishSignal(channel.TypingSignal(room, "patient", "Ana", true)); err != nil {
		t.Fatalf("PublishSignal failed : %v", err)
	}

	select {
	case sig := <-rec.signals:
		if sig.Kind != channel.TYPING || sig.UserID != "patient" || !sig.Typing {
			t.Errorf("signal mangled on the wire : %+v", sig)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for the signal")
	}
}

func TestOpenChannelReplacesPrevious(t *testing.T) {
	p := testProvider(t)
	room := chat.RoomID("room-" + nuid.Next())

	first := newRecorder()
	ch1, err := p.OpenChannel(room, first.events())
	if err != nil {
		t.Fatalf("OpenChannel failed : %v", err)
	}
	first.waitLifecycle(t, channel.SUBSCRIBED)

	second := newRecorder()
	if _, err := p.OpenChannel(room, second.events()); err != nil {
		t.Fatalf("OpenChannel failed : %v", err)
	}
	second.waitLifecycle(t, channel.SUBSCRIBED)

	first.waitLifecycle(t, channel.CLOSED)
	if !ch1.Closed() {
		t.Error("the first channel must be torn down")
	}
	if err := ch1.PublishMessage(chat.Message{ID: "m", RoomID: room}); err != channel.ErrChannelIsClosed {
		t.Errorf("expected ErrChannelIsClosed : %v", err)
	}
}

func TestProviderClose(t *testing.T) {
	addr := os.Getenv("CHATD_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("CHATD_TEST_REDIS_ADDR not set")
	}
	p, err := redischannel.NewProvider(&redis.Options{Addr: addr})
	if err != nil {
		t.Fatalf("NewProvider failed : %v", err)
	}
	room := chat.RoomID("room-" + nuid.Next())

	rec := newRecorder()
	ch, err := p.OpenChannel(room, rec.events())
	if err != nil {
		t.Fatalf("OpenChannel failed : %v", err)
	}
	rec.waitLifecycle(t, channel.SUBSCRIBED)

	p.Close()
	rec.waitLifecycle(t, channel.CLOSED)
	if !ch.Closed() {
		t.Error("channels must be closed with the provider")
	}
	if _, err := p.OpenChannel(room, rec.events()); err != channel.ErrChannelIsClosed {
		t.Errorf("expected ErrChannelIsClosed : %v", err)
	}
}
