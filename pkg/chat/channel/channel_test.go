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

package channel_test

import (
	"testing"
	"time"

	"github.com/Roeschstudio/medica-movil-sub004/pkg/chat"
	"github.com/Roeschstudio/medica-movil-sub004/pkg/chat/channel"
)

func TestTopics(t *testing.T) {
	room := chat.RoomID("room-1")
	if topic := channel.MessagesTopic(room); topic.String() != "room.room-1.messages" {
		t.Errorf("unexpected messages topic : %v", topic)
	}
	if topic := channel.SignalsTopic(room); topic.String() != "room.room-1.signals" {
		t.Errorf("unexpected signals topic : %v", topic)
	}
}

func TestMessageEnvelope(t *testing.T) {
	sent := chat.Message{
		ID:            "msg-1",
		RoomID:        "room-1",
		SenderID:      "patient",
		SenderClass:   chat.USER,
		CorrelationID: "corr-1",
		Content:       "resultados adjuntos",
		Kind:          chat.FILE,
		Attachment:    &chat.Attachment{URL: "https://blobs/x", Name: "resultados.pdf", Size: 1234},
		SentAt:        time.Now().UTC().Truncate(time.Microsecond),
	}

	data, err := channel.EncodeMessage(sent)
	if err != nil {
		t.Fatalf("EncodeMessage failed : %v", err)
	}
	got, err := channel.DecodeMessage(data)
	if err != nil {
		t.Fatalf("DecodeMessage failed : %v", err)
	}
	if got.ID != sent.ID || got.Content != sent.Content || got.Kind != sent.Kind || !got.SentAt.Equal(sent.SentAt) {
		t.Errorf("message mangled : %+v != %+v", got, sent)
	}
	if got.Attachment == nil || *got.Attachment != *sent.Attachment {
		t.Errorf("attachment mangled : %+v", got.Attachment)
	}

	if _, err := channel.DecodeMessage([]byte("{not json")); err == nil {
		t.Error("expected a decode error")
	}
}

func TestSignalEnvelope(t *testing.T) {
	sent := channel.TypingSignal("room-1", "patient", "Ana", true)
	data, err := channel.EncodeSignal(sent)
	if err != nil {
		t.Fatalf("EncodeSignal failed : %v", err)
	}
	got, err := channel.DecodeSignal(data)
	if err != nil {
		t.Fatalf("DecodeSignal failed : %v", err)
	}
	if got.Kind != channel.TYPING || got.UserID != "patient" || got.UserName != "Ana" || !got.Typing {
		t.Errorf("signal mangled : %+v", got)
	}

	if _, err := channel.DecodeSignal([]byte("{not json")); err == nil {
		t.Error("expected a decode error")
	}
}

func TestSignalConstructors(t *testing.T) {
	join := channel.JoinSignal("room-1", "doctor", "Dr. Gomez")
	if join.Kind != channel.JOIN || join.RoomID != "room-1" || join.UserName != "Dr. Gomez" {
		t.Errorf("unexpected join signal : %+v", join)
	}
	leave := channel.LeaveSignal("room-1", "doctor")
	if leave.Kind != channel.LEAVE || leave.UserID != "doctor" {
		t.Errorf("unexpected leave signal : %+v", leave)
	}
}

func TestEventKindString(t *testing.T) {
	names := map[channel.EventKind]string{
		channel.SUBSCRIBED: "SUBSCRIBED",
		channel.ERROR:      "ERROR",
		channel.CLOSED:     "CLOSED",
	}
	for kind, name := range names {
		if kind.String() != name {
			t.Errorf("expected %q : %q", name, kind.String())
		}
	}
}
