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

package session_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/Roeschstudio/medica-movil-sub004/pkg/chat"
	"github.com/Roeschstudio/medica-movil-sub004/pkg/chat/attachments"
	"github.com/Roeschstudio/medica-movil-sub004/pkg/chat/channel/channeltest"
	"github.com/Roeschstudio/medica-movil-sub004/pkg/chat/delivery"
	"github.com/Roeschstudio/medica-movil-sub004/pkg/chat/presence"
	"github.com/Roeschstudio/medica-movil-sub004/pkg/chat/session"
	"github.com/Roeschstudio/medica-movil-sub004/pkg/chat/store"
)

const room = chat.RoomID("room-1")

func testConfig() chat.Config {
	cfg := chat.DefaultConfig()
	cfg.MaxReconnectAttempts = 3
	cfg.ReconnectBaseDelay = time.Millisecond
	cfg.ReconnectMaxDelay = 5 * time.Millisecond
	cfg.MessageRetryAttempts = 2
	cfg.MessageRetryDelay = time.Millisecond
	cfg.TypingTimeout = 40 * time.Millisecond
	return cfg
}

// client bundles one participant's service - each participant owns its own
// transport connection and its own local state, sharing the bus and the
// stores the way real clients share the broker and the database
type client struct {
	svc      *session.Service
	delivery chan delivery.Event
	presence chan presence.Event
}

type world struct {
	bus      *channeltest.Bus
	messages *store.MemMessageStore
	rooms    *store.MemRoomStore
	blobs    *attachments.MemBlobStore
}

func newWorld(t *testing.T) *world {
	t.Helper()
	w := &world{
		bus:      channeltest.NewBus(),
		messages: store.NewMemMessageStore(),
		rooms:    store.NewMemRoomStore(),
		blobs:    attachments.NewMemBlobStore(),
	}
	err := w.rooms.SaveRoom(context.Background(), chat.Room{
		ID:        room,
		PatientID: "patient",
		DoctorID:  "doctor",
		Active:    true,
		StartedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("SaveRoom failed : %v", err)
	}
	return w
}

func (a *world) newClient(t *testing.T) *client {
	t.Helper()
	c := &client{
		delivery: make(chan delivery.Event, 64),
		presence: make(chan presence.Event, 64),
	}
	c.svc = session.New(testConfig(), session.Dependencies{
		Provider: a.bus.NewProvider(),
		Messages: a.messages,
		Rooms:    a.rooms,
		Blobs:    a.blobs,
	})
	t.Cleanup(c.svc.Destroy)
	c.svc.SubscribeDelivery(func(e delivery.Event) { c.delivery <- e })
	c.svc.SubscribePresence(func(e presence.Event) { c.presence <- e })
	return c
}

func (a *client) session(t *testing.T, userID chat.UserID, userName string) *session.Session {
	t.Helper()
	s, err := a.svc.Session(room, userID, userName)
	if err != nil {
		t.Fatalf("Session failed : %v", err)
	}
	return s
}

func (a *client) connect(t *testing.T, s *session.Session) {
	t.Helper()
	connected := make(chan struct{}, 1)
	a.svc.SubscribeStatus(func(info chat.ConnectionInfo, err error) {
		if info.Status.Connected() {
			select {
			case connected <- struct{}{}:
			default:
			}
		}
	})
	if err := s.Connect(); err != nil {
		t.Fatalf("Connect failed : %v", err)
	}
	select {
	case <-connected:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for Connected")
	}
}

func (a *client) waitMessage(t *testing.T, content string) chat.Message {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case e := <-a.delivery:
			if e.Kind == delivery.MESSAGE_RECEIVED && e.Message.Content == content {
				return e.Message
			}
		case <-timeout:
			t.Fatalf("timed out waiting for message %q", content)
		}
	}
}

func TestSendMessageEndToEnd(t *testing.T) {
	w := newWorld(t)
	patientClient := w.newClient(t)
	doctorClient := w.newClient(t)

	patient := patientClient.session(t, "patient", "Ana")
	doctor := doctorClient.session(t, "doctor", "Dr. Gomez")
	patientClient.connect(t, patient)
	doctorClient.connect(t, doctor)

	sent, err := patient.SendMessage(context.Background(), "hola doctor")
	if err != nil {
		t.Fatalf("SendMessage failed : %v", err)
	}
	if !sent.Persisted() {
		t.Fatalf("expected a persisted row : %+v", sent)
	}

	received := doctorClient.waitMessage(t, "hola doctor")
	if received.ID != sent.ID {
		t.Errorf("the doctor must see the same row : %v != %v", received.ID, sent.ID)
	}

	msgs := doctor.Messages()
	if len(msgs) != 1 || msgs[0].SenderID != "patient" {
		t.Errorf("unexpected doctor display list : %+v", msgs)
	}
}

func TestHistoryLoadedOnConnect(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()

	// rows persisted before this client ever connects
	for _, content := range []string{"first", "second"} {
		_, err := w.messages.SaveMessage(ctx, chat.Message{
			RoomID:        room,
			SenderID:      "doctor",
			CorrelationID: chat.CorrelationID("hist-" + content),
			Content:       content,
			Kind:          chat.TEXT,
		})
		if err != nil {
			t.Fatalf("SaveMessage failed : %v", err)
		}
	}

	c := w.newClient(t)
	s := c.session(t, "patient", "Ana")
	c.connect(t, s)

	c.waitMessage(t, "first")
	c.waitMessage(t, "second")

	msgs := s.Messages()
	if len(msgs) != 2 || msgs[0].Content != "first" || msgs[1].Content != "second" {
		t.Errorf("history must load in SentAt order : %+v", msgs)
	}

	page, err := s.History(ctx, 1, 1)
	if err != nil {
		t.Fatalf("History failed : %v", err)
	}
	if len(page) != 1 || page[0].Content != "second" {
		t.Errorf("expected the second row only : %+v", page)
	}
}

func TestSendFile(t *testing.T) {
	w := newWorld(t)
	patientClient := w.newClient(t)
	doctorClient := w.newClient(t)

	patient := patientClient.session(t, "patient", "Ana")
	doctor := doctorClient.session(t, "doctor", "Dr. Gomez")
	patientClient.connect(t, patient)
	doctorClient.connect(t, doctor)

	data := []byte("fake png bytes")
	sent, err := patient.SendFile(context.Background(), attachments.File{
		Name:        "rash.png",
		ContentType: "image/png",
		Size:        int64(len(data)),
		Data:        bytes.NewReader(data),
	}, "this is the rash I mentioned")
	if err != nil {
		t.Fatalf("SendFile failed : %v", err)
	}
	if sent.Kind != chat.IMAGE {
		t.Errorf("expected IMAGE kind : %v", sent.Kind)
	}
	if sent.Attachment == nil || sent.Attachment.Name != "rash.png" {
		t.Fatalf("expected attachment metadata : %+v", sent.Attachment)
	}

	received := doctorClient.waitMessage(t, "this is the rash I mentioned")
	if received.Attachment == nil || received.Attachment.URL != sent.Attachment.URL {
		t.Errorf("attachment must survive the round trip : %+v", received.Attachment)
	}
}

func TestSendFileRejectedByPolicy(t *testing.T) {
	w := newWorld(t)
	c := w.newClient(t)
	s := c.session(t, "patient", "Ana")
	c.connect(t, s)

	_, err := s.SendFile(context.Background(), attachments.File{
		Name:        "malware.exe",
		ContentType: "application/x-msdownload",
		Size:        10,
		Data:        bytes.NewReader([]byte("0123456789")),
	}, "")
	if err == nil {
		t.Fatal("expected a validation error")
	}
	if w.blobs.Len() != 0 {
		t.Error("a rejected file must never reach the blob store")
	}
}

func TestOfflineQueueThroughSession(t *testing.T) {
	w := newWorld(t)
	c := w.newClient(t)
	s := c.session(t, "patient", "Ana")

	echo, err := s.SendMessage(context.Background(), "sent while offline")
	if err != nil {
		t.Fatalf("SendMessage failed : %v", err)
	}
	if !echo.Pending {
		t.Fatal("expected a pending echo while offline")
	}
	if count := s.QueuedMessagesCount(); count != 1 {
		t.Fatalf("expected 1 queued : %d", count)
	}

	c.connect(t, s)
	c.waitMessage(t, "sent while offline")

	if count := s.QueuedMessagesCount(); count != 0 {
		t.Errorf("expected the queue drained : %d", count)
	}
	msgs := s.Messages()
	if len(msgs) != 1 || msgs[0].Pending {
		t.Errorf("the echo must be replaced by the persisted row : %+v", msgs)
	}
}

func TestPresenceVisibleToEarlierJoiner(t *testing.T) {
	w := newWorld(t)
	doctorClient := w.newClient(t)
	patientClient := w.newClient(t)

	doctor := doctorClient.session(t, "doctor", "Dr. Gomez")
	doctorClient.connect(t, doctor)

	patient := patientClient.session(t, "patient", "Ana")
	patientClient.connect(t, patient)

	// the doctor was already subscribed, so the patient's join is seen
	timeout := time.After(5 * time.Second)
	for {
		online := doctor.Online()
		if len(online) == 1 && online[0].UserID == "patient" {
			break
		}
		select {
		case <-timeout:
			t.Fatalf("doctor never saw the patient join : %+v", online)
		case <-time.After(5 * time.Millisecond):
		}
	}

	// typing flows live in both directions once both are subscribed
	if err := patient.StartTyping(); err != nil {
		t.Fatalf("StartTyping failed : %v", err)
	}
	timeout = time.After(5 * time.Second)
	for {
		typing := doctor.TypingUsers()
		if len(typing) == 1 && typing[0].UserID == "patient" {
			break
		}
		select {
		case <-timeout:
			t.Fatalf("doctor never saw typing : %+v", typing)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestSetRoomActiveWritesSystemNotice(t *testing.T) {
	w := newWorld(t)
	c := w.newClient(t)
	s := c.session(t, "patient", "Ana")
	c.connect(t, s)
	ctx := context.Background()

	if err := c.svc.SetRoomActive(ctx, room, false); err != nil {
		t.Fatalf("SetRoomActive failed : %v", err)
	}

	// the notice is a SYSTEM message in the room
	var notice chat.Message
	timeout := time.After(5 * time.Second)
	for notice.ID == "" {
		for _, msg := range s.Messages() {
			if msg.SenderClass == chat.SYSTEM {
				notice = msg
			}
		}
		select {
		case <-timeout:
			t.Fatal("timed out waiting for the system notice")
		case <-time.After(5 * time.Millisecond):
		}
	}

	// sending into the closed room now fails
	if _, err := s.SendMessage(ctx, "hello?"); err == nil {
		t.Error("expected RoomClosedError")
	}

	// closing an already closed room writes nothing
	if err := c.svc.SetRoomActive(ctx, room, false); err != nil {
		t.Fatalf("SetRoomActive failed : %v", err)
	}
	stored, _ := w.messages.Messages(ctx, room, 0, 0)
	systemCount := 0
	for _, msg := range stored {
		if msg.SenderClass == chat.SYSTEM {
			systemCount++
		}
	}
	if systemCount != 1 {
		t.Errorf("expected exactly 1 system notice : %d", systemCount)
	}

	// reopening writes the reopen notice and sending works again
	if err := c.svc.SetRoomActive(ctx, room, true); err != nil {
		t.Fatalf("SetRoomActive failed : %v", err)
	}
	if _, err := s.SendMessage(ctx, "are we back?"); err != nil {
		t.Errorf("send after reopen failed : %v", err)
	}
}

func TestMarkMessagesAsRead(t *testing.T) {
	w := newWorld(t)
	patientClient := w.newClient(t)
	doctorClient := w.newClient(t)

	patient := patientClient.session(t, "patient", "Ana")
	doctor := doctorClient.session(t, "doctor", "Dr. Gomez")
	patientClient.connect(t, patient)
	doctorClient.connect(t, doctor)

	if _, err := doctor.SendMessage(context.Background(), "how are you feeling today?"); err != nil {
		t.Fatalf("SendMessage failed : %v", err)
	}
	patientClient.waitMessage(t, "how are you feeling today?")

	unread, err := patient.UnreadCount(context.Background())
	if err != nil {
		t.Fatalf("UnreadCount failed : %v", err)
	}
	if unread != 1 {
		t.Errorf("expected 1 unread : %d", unread)
	}

	updated, err := patient.MarkMessagesAsRead(context.Background())
	if err != nil {
		t.Fatalf("MarkMessagesAsRead failed : %v", err)
	}
	if updated != 1 {
		t.Errorf("expected 1 read receipt : %d", updated)
	}
	unread, err = patient.UnreadCount(context.Background())
	if err != nil {
		t.Fatalf("UnreadCount failed : %v", err)
	}
	if unread != 0 {
		t.Errorf("expected 0 unread after marking : %d", unread)
	}
}

func TestDestroy(t *testing.T) {
	w := newWorld(t)
	c := w.newClient(t)
	s := c.session(t, "patient", "Ana")
	c.connect(t, s)

	c.svc.Destroy()

	if _, err := s.SendMessage(context.Background(), "x"); err != chat.ErrSessionDestroyed {
		t.Errorf("expected ErrSessionDestroyed : %v", err)
	}
	if err := s.Connect(); err != chat.ErrSessionDestroyed {
		t.Errorf("expected ErrSessionDestroyed : %v", err)
	}
	if err := s.StartTyping(); err != chat.ErrSessionDestroyed {
		t.Errorf("expected ErrSessionDestroyed : %v", err)
	}
	if _, err := c.svc.Session(room, "doctor", "Dr. Gomez"); err != chat.ErrSessionDestroyed {
		t.Errorf("expected ErrSessionDestroyed : %v", err)
	}
	if msgs := s.Messages(); msgs != nil {
		t.Errorf("expected nil after destroy : %+v", msgs)
	}

	// idempotent
	c.svc.Destroy()

	if count := w.bus.OpenChannelCount(room); count != 0 {
		t.Errorf("expected all channels closed : %d", count)
	}
}

func TestSessionCachedPerRoomAndUser(t *testing.T) {
	w := newWorld(t)
	c := w.newClient(t)

	s1 := c.session(t, "patient", "Ana")
	s2 := c.session(t, "patient", "Ana")
	if s1 != s2 {
		t.Error("sessions are cached per (room, user)")
	}
	s3 := c.session(t, "doctor", "Dr. Gomez")
	if s1 == s3 {
		t.Error("different users get different sessions")
	}
}
